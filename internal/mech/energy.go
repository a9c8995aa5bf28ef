package mech

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Energy evaluation. The integrator advances (q, p) rather than (q, v), so
// conservation checks recover the dynamic velocity from the momentum with
// VelocityFromMomentum instead of finite-differencing the trajectory, which
// would add an O(h) phase offset to the kinetic term.

// KineticEnergy returns T = ½vᵀM(q)v, summed sparsely over massive frames.
func (s *System) KineticEnergy(kin *Kinematics, v []float64) float64 {
	kin.ensure(1)
	total := 0.0
	for _, id := range s.massive {
		f := &s.frames[id]
		fs := &kin.fr[id]
		w, omega := frameVel(f, fs, v)
		total += 0.5 * f.mass * dot3(w, w)
		if fs.needRot {
			total += 0.5 * inertiaDot(f.inertia, omega, omega)
		}
	}
	return total
}

// Energy returns T + V at (q, v).
func (s *System) Energy(kin *Kinematics, v []float64) float64 {
	return s.KineticEnergy(kin, v) + s.PotentialEnergy(kin)
}

// Momentum writes the dynamic rows of M(q)·v into dst (length ND). This is
// the discrete momentum the integrator carries between steps.
func (s *System) Momentum(kin *Kinematics, v, dst []float64) {
	kin.ensure(1)
	for k := range dst {
		dst[k] = 0
	}
	for _, id := range s.massive {
		f := &s.frames[id]
		fs := &kin.fr[id]
		w, omega := frameVel(f, fs, v)
		for i, k := range f.affect {
			if k >= s.nd {
				continue
			}
			pk := f.mass * dot3(fs.dw[i].P, w)
			if fs.needRot {
				pk += inertiaDot(f.inertia, fs.bw[i], omega)
			}
			dst[k] += pk
		}
	}
}

// VelocityFromMomentum solves M_dd·v_d = p − M_dk·v_k for the dynamic
// velocity and returns the full velocity vector with the kinematic rows set
// from vkin. Dynamic variables lead the vector order, so M_dd is the leading
// principal block of the mass matrix. A mass matrix that is not positive
// definite reports ErrIllConditioned.
func (s *System) VelocityFromMomentum(kin *Kinematics, p, vkin []float64) ([]float64, error) {
	nq, nd := s.NQ(), s.nd
	if len(p) != nd || len(vkin) != nq-nd {
		return nil, ErrConfigDim
	}
	v := make([]float64, nq)
	copy(v[nd:], vkin)
	if nd == 0 {
		return v, nil
	}

	m := mat.NewSymDense(nq, nil)
	s.MassMatrix(kin, m)

	rhs := mat.NewVecDense(nd, nil)
	for k := 0; k < nd; k++ {
		r := p[k]
		for l := nd; l < nq; l++ {
			r -= m.At(k, l) * vkin[l-nd]
		}
		rhs.SetVec(k, r)
	}

	var chol mat.Cholesky
	if !chol.Factorize(m.SliceSym(0, nd)) {
		return nil, fmt.Errorf("mass matrix not positive definite: %w", ErrIllConditioned)
	}
	vd := mat.NewVecDense(nd, nil)
	if err := chol.SolveVecTo(vd, rhs); err != nil {
		return nil, fmt.Errorf("momentum solve: %w", ErrIllConditioned)
	}
	copy(v, vd.RawVector().Data)
	return v, nil
}

// EnergyQP returns T + V at (q, p), recovering the dynamic velocity from the
// momentum first.
func (s *System) EnergyQP(kin *Kinematics, p, vkin []float64) (float64, error) {
	v, err := s.VelocityFromMomentum(kin, p, vkin)
	if err != nil {
		return 0, err
	}
	return s.Energy(kin, v), nil
}
