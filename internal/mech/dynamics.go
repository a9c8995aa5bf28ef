package mech

import "gonum.org/v1/gonum/mat"

// Dynamics assembly. The kinetic energy is T = ½vᵀM(q)v with
//
//	M(q) = Σ m·JᵀJ + Σ JωᵀI·Jω
//
// summed over massive frames, J the origin position Jacobian and Jω the body
// angular velocity Jacobian. The integrator needs M, velocity contractions
// of its first derivative, and (for the exact Newton matrix and step
// linearization) a velocity contraction of its second derivative. All
// contractions run sparsely over each frame's affect list.

// MassMatrix writes M(q) into dst, which must be NQ×NQ.
func (s *System) MassMatrix(kin *Kinematics, dst *mat.SymDense) {
	kin.ensure(1)
	dst.Zero()
	for _, id := range s.massive {
		f := &s.frames[id]
		fs := &kin.fr[id]
		inertia := f.inertia
		for i, ka := range f.affect {
			for j := i; j < len(f.affect); j++ {
				kb := f.affect[j]
				m := f.mass * dot3(fs.dw[i].P, fs.dw[j].P)
				if fs.needRot {
					m += inertiaDot(inertia, fs.bw[i], fs.bw[j])
				}
				dst.SetSym(ka, kb, dst.At(ka, kb)+m)
			}
		}
	}
}

// KineticGrad writes ½vᵀ(∂M/∂q_k)v into dst[k] for every k: the kinetic
// half of the Lagrangian's configuration gradient.
func (s *System) KineticGrad(kin *Kinematics, v, dst []float64) {
	kin.ensure(2)
	for k := range dst {
		dst[k] = 0
	}
	for _, id := range s.massive {
		f := &s.frames[id]
		fs := &kin.fr[id]
		na := len(f.affect)
		w, omega := frameVel(f, fs, v)
		for c := 0; c < na; c++ {
			var wc [3]float64
			for i := 0; i < na; i++ {
				vi := v[f.affect[i]]
				for x := 0; x < 3; x++ {
					wc[x] += vi * fs.ddw[i][c].P[x]
				}
			}
			g := f.mass * dot3(w, wc)
			if fs.needRot {
				var oc [3]float64
				for i := 0; i < na; i++ {
					vi := v[f.affect[i]]
					for x := 0; x < 3; x++ {
						oc[x] += vi * fs.dbw[i][c][x]
					}
				}
				g += inertiaDot(f.inertia, omega, oc)
			}
			dst[f.affect[c]] += g
		}
	}
}

// MassVelJac writes G into dst (NQ×NQ) with G[j][k] = (∂M/∂q_k · v)_j.
// dst is zeroed first.
func (s *System) MassVelJac(kin *Kinematics, v []float64, dst *mat.Dense) {
	kin.ensure(2)
	dst.Zero()
	for _, id := range s.massive {
		f := &s.frames[id]
		fs := &kin.fr[id]
		na := len(f.affect)
		w, omega := frameVel(f, fs, v)
		for c := 0; c < na; c++ {
			kc := f.affect[c]
			var wc, oc [3]float64
			for i := 0; i < na; i++ {
				vi := v[f.affect[i]]
				for x := 0; x < 3; x++ {
					wc[x] += vi * fs.ddw[i][c].P[x]
				}
			}
			if fs.needRot {
				for i := 0; i < na; i++ {
					vi := v[f.affect[i]]
					for x := 0; x < 3; x++ {
						oc[x] += vi * fs.dbw[i][c][x]
					}
				}
			}
			for j := 0; j < na; j++ {
				kj := f.affect[j]
				g := f.mass * (dot3(fs.ddw[j][c].P, w) + dot3(fs.dw[j].P, wc))
				if fs.needRot {
					g += inertiaDot(f.inertia, fs.dbw[j][c], omega)
					g += inertiaDot(f.inertia, fs.bw[j], oc)
				}
				dst.Set(kj, kc, dst.At(kj, kc)+g)
			}
		}
	}
}

// MassD2Contract writes C into dst (NQ×NQ) with C[k][l] = vᵀ(∂²M/∂q_k∂q_l)v.
// Needs third kinematic derivatives; used only by the exact Newton matrix
// and step linearization. dst is zeroed first.
func (s *System) MassD2Contract(kin *Kinematics, v []float64, dst *mat.Dense) {
	kin.ensure(3)
	dst.Zero()
	for _, id := range s.massive {
		f := &s.frames[id]
		fs := &kin.fr[id]
		na := len(f.affect)
		w, omega := frameVel(f, fs, v)

		// Velocity contractions of the second and third derivative
		// tensors, one 3-vector per affect index or pair.
		wk := make([][3]float64, na)
		ok := make([][3]float64, na)
		for c := 0; c < na; c++ {
			for i := 0; i < na; i++ {
				vi := v[f.affect[i]]
				for x := 0; x < 3; x++ {
					wk[c][x] += vi * fs.ddw[i][c].P[x]
				}
				if fs.needRot {
					for x := 0; x < 3; x++ {
						ok[c][x] += vi * fs.dbw[i][c][x]
					}
				}
			}
		}

		for c := 0; c < na; c++ {
			kc := f.affect[c]
			for d := 0; d < na; d++ {
				kd := f.affect[d]
				var wcd [3]float64
				for i := 0; i < na; i++ {
					vi := v[f.affect[i]]
					for x := 0; x < 3; x++ {
						wcd[x] += vi * fs.dddw[i][c][d].P[x]
					}
				}
				g := 2 * f.mass * (dot3(wk[c], wk[d]) + dot3(w, wcd))
				if fs.needRot {
					var ocd [3]float64
					for i := 0; i < na; i++ {
						vi := v[f.affect[i]]
						for x := 0; x < 3; x++ {
							ocd[x] += vi * fs.ddbw[i][c][d][x]
						}
					}
					g += 2 * (inertiaDot(f.inertia, ok[c], ok[d]) + inertiaDot(f.inertia, omega, ocd))
				}
				dst.Set(kc, kd, dst.At(kc, kd)+g)
			}
		}
	}
}

// frameVel returns the frame's linear velocity w = J·v and, when rotational
// inertia is present, its body angular velocity ω = Jω·v.
func frameVel(f *Frame, fs *frameState, v []float64) (w, omega [3]float64) {
	for i, k := range f.affect {
		vi := v[k]
		for x := 0; x < 3; x++ {
			w[x] += vi * fs.dw[i].P[x]
		}
		if fs.needRot {
			for x := 0; x < 3; x++ {
				omega[x] += vi * fs.bw[i][x]
			}
		}
	}
	return w, omega
}

func inertiaDot(inertia, a, b [3]float64) float64 {
	return inertia[0]*a[0]*b[0] + inertia[1]*a[1]*b[1] + inertia[2]*a[2]*b[2]
}

// PotentialEnergy sums the registered potentials.
func (s *System) PotentialEnergy(kin *Kinematics) float64 {
	total := 0.0
	for _, p := range s.potentials {
		total += p.Energy(kin)
	}
	return total
}

// PotentialGrad writes ∂V/∂q into dst.
func (s *System) PotentialGrad(kin *Kinematics, dst []float64) {
	for k := range dst {
		dst[k] = 0
	}
	for _, p := range s.potentials {
		p.AddDV(kin, dst)
	}
}

// PotentialHess writes ∂²V/∂q∂q into dst (NQ×NQ). dst is zeroed first.
func (s *System) PotentialHess(kin *Kinematics, dst *mat.Dense) {
	dst.Zero()
	for _, p := range s.potentials {
		p.AddD2V(kin, dst)
	}
}

// ForceSum writes the total generalized force at (q, v, u, t) into dst.
func (s *System) ForceSum(kin *Kinematics, v, u []float64, t float64, dst []float64) {
	for k := range dst {
		dst[k] = 0
	}
	for _, f := range s.forces {
		f.Apply(kin, v, u, t, dst)
	}
}

// ForceJacQ writes ∂F/∂q into dst (NQ×NQ). dst is zeroed first.
func (s *System) ForceJacQ(kin *Kinematics, v, u []float64, t float64, dst *mat.Dense) {
	dst.Zero()
	for _, f := range s.forces {
		f.AddJacQ(kin, v, u, t, dst)
	}
}

// ForceJacV writes ∂F/∂v into dst (NQ×NQ). dst is zeroed first.
func (s *System) ForceJacV(kin *Kinematics, v, u []float64, t float64, dst *mat.Dense) {
	dst.Zero()
	for _, f := range s.forces {
		f.AddJacV(kin, v, u, t, dst)
	}
}

// ForceJacU writes ∂F/∂u into dst (NQ×NU). dst is zeroed first.
func (s *System) ForceJacU(kin *Kinematics, v, u []float64, t float64, dst *mat.Dense) {
	dst.Zero()
	for _, f := range s.forces {
		f.AddJacU(kin, v, u, t, dst)
	}
}

// EvalConstraints writes the stacked residual g(q) into dst (length NC) in
// registration order.
func (s *System) EvalConstraints(kin *Kinematics, dst []float64) {
	row := 0
	for _, c := range s.constraints {
		c.Eval(kin, dst[row:row+c.Rows()])
		row += c.Rows()
	}
}

// ConstraintJac writes the stacked ∂g/∂q into dst (NC×NQ).
func (s *System) ConstraintJac(kin *Kinematics, dst *mat.Dense) {
	dst.Zero()
	row := 0
	for _, c := range s.constraints {
		c.Jac(kin, dst, row)
		row += c.Rows()
	}
}

// ConstraintLamHess adds scale·Σ_a lam[a]·∂²g_a/∂q∂q into dst (NQ×NQ).
// dst is NOT zeroed; the integrator accumulates it into the Newton matrix.
func (s *System) ConstraintLamHess(kin *Kinematics, lam []float64, scale float64, dst *mat.Dense) {
	row := 0
	for _, c := range s.constraints {
		c.AddLamHess(kin, lam[row:row+c.Rows()], scale, dst)
		row += c.Rows()
	}
}
