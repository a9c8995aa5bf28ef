package varint

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/varimech/internal/mech"
)

// Linearization holds the exact first derivatives of the last committed
// step map (q1,p1,u) ↦ (q2,p2,λ2) over the dynamic coordinates, obtained by
// differentiating the converged discrete Euler–Lagrange system through the
// implicit function theorem. Stacking the blocks gives the state-space pair
//
//	A = [DQ2DQ1 DQ2DP1; DP2DQ1 DP2DP1]   B = [DQ2DU; DP2DU]
//
// about the step, which is what discrete LQR design consumes.
type Linearization struct {
	DQ2DQ1  *mat.Dense // nd×nd
	DQ2DP1  *mat.Dense // nd×nd
	DQ2DU   *mat.Dense // nd×nu, nil without inputs
	DP2DQ1  *mat.Dense // nd×nd
	DP2DP1  *mat.Dense // nd×nd
	DP2DU   *mat.Dense // nd×nu, nil without inputs
	DLamDQ1 *mat.Dense // nc×nd, nil without constraints
	DLamDP1 *mat.Dense // nc×nd, nil without constraints
	DLamDU  *mat.Dense // nc×nu, nil without either
}

// A assembles the 2nd×2nd state transition matrix over x = [q_d; p].
func (l *Linearization) A() *mat.Dense {
	nd, _ := l.DQ2DQ1.Dims()
	a := mat.NewDense(2*nd, 2*nd, nil)
	for i := 0; i < nd; i++ {
		for j := 0; j < nd; j++ {
			a.Set(i, j, l.DQ2DQ1.At(i, j))
			a.Set(i, nd+j, l.DQ2DP1.At(i, j))
			a.Set(nd+i, j, l.DP2DQ1.At(i, j))
			a.Set(nd+i, nd+j, l.DP2DP1.At(i, j))
		}
	}
	return a
}

// B assembles the 2nd×nu input matrix over x = [q_d; p], or nil for a
// system without inputs.
func (l *Linearization) B() *mat.Dense {
	if l.DQ2DU == nil {
		return nil
	}
	nd, nu := l.DQ2DU.Dims()
	b := mat.NewDense(2*nd, nu, nil)
	for i := 0; i < nd; i++ {
		for j := 0; j < nu; j++ {
			b.Set(i, j, l.DQ2DU.At(i, j))
			b.Set(nd+i, j, l.DP2DU.At(i, j))
		}
	}
	return b
}

// Linearize differentiates the last committed step exactly. It requires the
// midpoint scheme (the products use its closed-form partials) and at least
// one committed step. Kinematic inputs are held; their sensitivities serve
// trajectory optimization, which is outside this engine's scope.
func (s *Stepper) Linearize() (*Linearization, error) {
	if !s.primed {
		return nil, fmt.Errorf("varint: no committed step to linearize")
	}
	if s.opt.Scheme != Midpoint {
		return nil, fmt.Errorf("varint: linearization requires the midpoint scheme, have %s", s.opt.Scheme)
	}

	h := s.h
	nd, nc, nu, nq := s.nd, s.nc, s.nu, s.nq
	n := nd + nc

	// The step went q0 → q1 under lastU; rebuild its interval quantities.
	for i := 0; i < nq; i++ {
		s.qm[i] = 0.5 * (s.q0[i] + s.q1[i])
		s.v[i] = (s.q1[i] - s.q0[i]) / h
	}
	if err := s.kinMid.Set(s.qm); err != nil {
		return nil, err
	}
	if err := s.kinEnd.Set(s.q1); err != nil {
		return nil, err
	}
	tm := s.t1 - h/2

	s.sys.MassMatrix(s.kinMid, s.massM)
	s.sys.MassVelJac(s.kinMid, s.v, s.gVel)
	s.sys.MassD2Contract(s.kinMid, s.v, s.c2)
	s.sys.PotentialHess(s.kinMid, s.d2v)
	s.sys.ForceJacQ(s.kinMid, s.v, s.u, tm, s.fq)
	s.sys.ForceJacV(s.kinMid, s.v, s.u, tm, s.fv)
	fu := mat.NewDense(nq, max(nu, 1), nil)
	if nu > 0 {
		s.sys.ForceJacU(s.kinMid, s.v, s.lastU, tm, fu)
	}

	// Constraint blocks at the interval start, including the multiplier
	// curvature that enters ∂R1/∂q1.
	lamHess := mat.NewDense(nq, nq, nil)
	if nc > 0 {
		// kinStart holds q1 for the next step; borrow it for q0 and
		// restore below.
		if err := s.kinStart.Set(s.q0); err != nil {
			return nil, err
		}
		s.sys.ConstraintJac(s.kinStart, s.dg1)
		s.sys.ConstraintLamHess(s.kinStart, s.lam, 1, lamHess)
		if err := s.kinStart.Set(s.q1); err != nil {
			return nil, err
		}
		s.sys.ConstraintJac(s.kinEnd, s.dg2)
	}

	// Newton matrix at convergence, exact.
	s.newton.Zero()
	for k := 0; k < nd; k++ {
		for j := 0; j < nd; j++ {
			s.newton.Set(k, j,
				0.125*h*s.c2.At(k, j)+
					0.5*(s.gVel.At(j, k)-s.gVel.At(k, j))-
					0.25*h*s.d2v.At(k, j)-
					s.massM.At(k, j)/h+
					0.25*h*s.fq.At(k, j)+
					0.5*s.fv.At(k, j))
		}
	}
	for a := 0; a < nc; a++ {
		for k := 0; k < nd; k++ {
			s.newton.Set(k, nd+a, -s.dg1.At(a, k))
			s.newton.Set(nd+a, k, s.dg2.At(a, k))
		}
	}
	s.lu.Factorize(s.newton)

	// Explicit partials of R1 with respect to the step's start point.
	rhs := mat.NewDense(n, 2*nd+nu, nil)
	for k := 0; k < nd; k++ {
		for j := 0; j < nd; j++ {
			e1 := 0.125*h*s.c2.At(k, j) -
				0.5*(s.gVel.At(j, k)+s.gVel.At(k, j)) -
				0.25*h*s.d2v.At(k, j) +
				s.massM.At(k, j)/h +
				0.25*h*s.fq.At(k, j) -
				0.5*s.fv.At(k, j) -
				lamHess.At(k, j)
			rhs.Set(k, j, e1)
		}
		rhs.Set(k, nd+k, 1)
		for j := 0; j < nu; j++ {
			rhs.Set(k, 2*nd+j, 0.5*h*fu.At(k, j))
		}
	}

	sens := mat.NewDense(n, 2*nd+nu, nil)
	if err := s.lu.SolveTo(sens, false, rhs); err != nil {
		return nil, fmt.Errorf("varint: linearization solve: %w", mech.ErrIllConditioned)
	}
	sens.Scale(-1, sens)

	lin := &Linearization{
		DQ2DQ1: mat.NewDense(nd, nd, nil),
		DQ2DP1: mat.NewDense(nd, nd, nil),
		DP2DQ1: mat.NewDense(nd, nd, nil),
		DP2DP1: mat.NewDense(nd, nd, nil),
	}
	if nu > 0 {
		lin.DQ2DU = mat.NewDense(nd, nu, nil)
		lin.DP2DU = mat.NewDense(nd, nu, nil)
	}
	if nc > 0 {
		lin.DLamDQ1 = mat.NewDense(nc, nd, nil)
		lin.DLamDP1 = mat.NewDense(nc, nd, nil)
		if nu > 0 {
			lin.DLamDU = mat.NewDense(nc, nu, nil)
		}
	}
	for k := 0; k < nd; k++ {
		for j := 0; j < nd; j++ {
			lin.DQ2DQ1.Set(k, j, sens.At(k, j))
			lin.DQ2DP1.Set(k, j, sens.At(k, nd+j))
		}
		for j := 0; j < nu; j++ {
			lin.DQ2DU.Set(k, j, sens.At(k, 2*nd+j))
		}
	}
	for a := 0; a < nc; a++ {
		for j := 0; j < nd; j++ {
			lin.DLamDQ1.Set(a, j, sens.At(nd+a, j))
			lin.DLamDP1.Set(a, j, sens.At(nd+a, nd+j))
		}
		for j := 0; j < nu; j++ {
			lin.DLamDU.Set(a, j, sens.At(nd+a, 2*nd+j))
		}
	}

	// p2 = D2Ld + f⁺ depends on q2 both directly and through the solve.
	for k := 0; k < nd; k++ {
		for j := 0; j < nd; j++ {
			p2q2 := 0.125*h*s.c2.At(k, j) +
				0.5*(s.gVel.At(j, k)+s.gVel.At(k, j)) -
				0.25*h*s.d2v.At(k, j) +
				s.massM.At(k, j)/h +
				0.25*h*s.fq.At(k, j) +
				0.5*s.fv.At(k, j)
			p2q1 := 0.125*h*s.c2.At(k, j) -
				0.5*(s.gVel.At(j, k)-s.gVel.At(k, j)) -
				0.25*h*s.d2v.At(k, j) -
				s.massM.At(k, j)/h +
				0.25*h*s.fq.At(k, j) -
				0.5*s.fv.At(k, j)
			for m := 0; m < nd; m++ {
				lin.DP2DQ1.Set(k, m, lin.DP2DQ1.At(k, m)+p2q2*lin.DQ2DQ1.At(j, m))
				lin.DP2DP1.Set(k, m, lin.DP2DP1.At(k, m)+p2q2*lin.DQ2DP1.At(j, m))
			}
			for m := 0; m < nu; m++ {
				lin.DP2DU.Set(k, m, lin.DP2DU.At(k, m)+p2q2*lin.DQ2DU.At(j, m))
			}
			lin.DP2DQ1.Set(k, j, lin.DP2DQ1.At(k, j)+p2q1)
		}
		for j := 0; j < nu; j++ {
			lin.DP2DU.Set(k, j, lin.DP2DU.At(k, j)+0.5*h*fu.At(k, j))
		}
	}
	return lin, nil
}
