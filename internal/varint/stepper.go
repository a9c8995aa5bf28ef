package varint

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/varimech/internal/mech"
)

// Stepper advances one system by the constrained discrete Euler–Lagrange
// equations. It owns the committed step history (t1, q1, p1, λ and the
// previous configuration for prediction) and every evaluation cache, so
// independent simulations never share state.
//
// A Stepper is not safe for concurrent use.
type Stepper struct {
	sys *mech.System
	opt Options

	nq, nd, nc, nu int

	kinStart *mech.Kinematics // q1
	kinMid   *mech.Kinematics // (q1+q2)/2, midpoint scheme
	kinEnd   *mech.Kinematics // q2 iterate

	inited bool
	primed bool // q0 holds a committed previous configuration
	t1     float64
	h      float64 // last committed timestep
	q0     []float64
	q1     []float64
	p0     []float64
	p1     []float64
	lam    []float64
	lastU  []float64

	stats Stats

	// Newton iterate and scratch. All assembly writes here; the committed
	// history above changes only on a converged step.
	q2      []float64
	lamIt   []float64
	qm      []float64
	v       []float64
	u       []float64
	resid   *mat.VecDense
	delta   *mat.VecDense
	kinGrad []float64
	dV      []float64
	fSum    []float64
	mv      []float64

	massM  *mat.SymDense
	massM2 *mat.SymDense
	gVel   *mat.Dense
	gVel2  *mat.Dense
	d2v    *mat.Dense
	fq     *mat.Dense
	fv     *mat.Dense
	c2     *mat.Dense
	dg1    *mat.Dense
	dg2    *mat.Dense
	newton *mat.Dense
	lu     mat.LU
}

// StepResult is one committed step: the new time, configuration, momentum,
// multipliers, the finite-difference velocity v = (q2−q1)/h, and solver
// diagnostics.
type StepResult struct {
	T        float64
	Q        []float64
	P        []float64
	V        []float64
	Lam      []float64
	Iters    int
	Residual float64
}

// Stats accumulates Newton effort across committed steps.
type Stats struct {
	Steps      int
	TotalIters int
	MaxIters   int
}

// New creates a stepper for the system. The system must have at least one
// dynamic variable; its registries should be final, since the stepper sizes
// its scratch space here.
func New(sys *mech.System, opt Options) (*Stepper, error) {
	nd := sys.ND()
	if nd == 0 {
		return nil, &mech.BuildError{Detail: "system has no dynamic variables"}
	}
	nq, nc, nu := sys.NQ(), sys.NC(), sys.NU()
	n := nd + nc

	s := &Stepper{
		sys:      sys,
		opt:      opt.withDefaults(),
		nq:       nq,
		nd:       nd,
		nc:       nc,
		nu:       nu,
		kinStart: sys.NewKinematics(),
		kinMid:   sys.NewKinematics(),
		kinEnd:   sys.NewKinematics(),

		q0:    make([]float64, nq),
		q1:    make([]float64, nq),
		p0:    make([]float64, nd),
		p1:    make([]float64, nd),
		lam:   make([]float64, nc),
		lastU: make([]float64, nu),

		q2:      make([]float64, nq),
		lamIt:   make([]float64, nc),
		qm:      make([]float64, nq),
		v:       make([]float64, nq),
		u:       make([]float64, nu),
		resid:   mat.NewVecDense(n, nil),
		delta:   mat.NewVecDense(n, nil),
		kinGrad: make([]float64, nq),
		dV:      make([]float64, nq),
		fSum:    make([]float64, nq),
		mv:      make([]float64, nq),

		massM:  mat.NewSymDense(nq, nil),
		massM2: mat.NewSymDense(nq, nil),
		gVel:   mat.NewDense(nq, nq, nil),
		gVel2:  mat.NewDense(nq, nq, nil),
		d2v:    mat.NewDense(nq, nq, nil),
		fq:     mat.NewDense(nq, nq, nil),
		fv:     mat.NewDense(nq, nq, nil),
		c2:     mat.NewDense(nq, nq, nil),
		newton: mat.NewDense(n, n, nil),
	}
	if nc > 0 {
		s.dg1 = mat.NewDense(nc, nq, nil)
		s.dg2 = mat.NewDense(nc, nq, nil)
	}
	return s, nil
}

func (s *Stepper) System() *mech.System { return s.sys }
func (s *Stepper) Options() Options     { return s.opt }
func (s *Stepper) Stats() Stats         { return s.stats }

// T returns the time of the last committed state.
func (s *Stepper) T() float64 { return s.t1 }

// Init seeds the stepper at (t, q, p, λ). λ may be nil. Initial conditions
// off the constraint manifold are the caller's to fix; they are reported,
// never projected, since projection would silently alter the stated state.
func (s *Stepper) Init(t float64, q, p, lam []float64) error {
	if len(q) != s.nq || len(p) != s.nd {
		return mech.ErrConfigDim
	}
	if lam != nil && len(lam) != s.nc {
		return mech.ErrConfigDim
	}
	copy(s.q1, q)
	copy(s.p1, p)
	for i := range s.lam {
		s.lam[i] = 0
	}
	if lam != nil {
		copy(s.lam, lam)
	}
	s.t1 = t
	s.primed = false
	s.inited = true
	s.stats = Stats{}

	if err := s.kinStart.Set(s.q1); err != nil {
		return err
	}
	if s.nc > 0 {
		g := make([]float64, s.nc)
		s.sys.EvalConstraints(s.kinStart, g)
		if n := norm(g); n > s.opt.Tolerance {
			logrus.WithFields(logrus.Fields{
				"residual":  n,
				"tolerance": s.opt.Tolerance,
			}).Warn("initial configuration violates constraints")
		}
	}
	return nil
}

// Step advances by dt with zero inputs and held kinematic variables.
func (s *Stepper) Step(dt float64) (StepResult, error) {
	return s.StepInput(dt, nil, nil)
}

// StepInput advances by dt under actuation inputs u and prescribed kinematic
// positions rho2 (the kinematic configuration at the end of the step). A nil
// u means zero inputs; a nil rho2 holds the kinematic variables. On any
// failure the committed history is unchanged.
func (s *Stepper) StepInput(dt float64, u, rho2 []float64) (StepResult, error) {
	if !s.inited {
		return StepResult{}, fmt.Errorf("varint: stepper not initialized")
	}
	if dt <= 0 || math.IsNaN(dt) {
		return StepResult{}, mech.ErrInvalidStep
	}
	if u != nil && len(u) != s.nu {
		return StepResult{}, mech.ErrConfigDim
	}
	if rho2 != nil && len(rho2) != s.nq-s.nd {
		return StepResult{}, mech.ErrConfigDim
	}

	for i := range s.u {
		s.u[i] = 0
	}
	if u != nil {
		copy(s.u, u)
	}

	if err := s.predict(dt, rho2); err != nil {
		return StepResult{}, err
	}
	copy(s.lamIt, s.lam)

	// Dg(q1) carries the constraint impulse over the interval; it is
	// fixed for the whole Newton solve.
	if s.nc > 0 {
		s.sys.ConstraintJac(s.kinStart, s.dg1)
	}

	iters := 0
	var resNorm float64
	for {
		if err := s.residual(dt); err != nil {
			return StepResult{}, &mech.StepError{T: s.t1, Iter: iters, Residual: resNorm, Err: err}
		}
		resNorm = mat.Norm(s.resid, 2)
		if math.IsNaN(resNorm) || math.IsInf(resNorm, 0) {
			return StepResult{}, &mech.StepError{T: s.t1, Iter: iters, Residual: resNorm,
				Err: fmt.Errorf("non-finite residual: %w", mech.ErrDivergence)}
		}
		if resNorm < s.opt.Tolerance {
			break
		}
		if iters >= s.opt.MaxIterations {
			return StepResult{}, &mech.StepError{T: s.t1, Iter: iters, Residual: resNorm,
				Err: mech.ErrDivergence}
		}

		s.jacobian(dt)
		s.lu.Factorize(s.newton)
		if cond := s.lu.Cond(); math.IsInf(cond, 0) || cond > s.opt.CondLimit {
			return StepResult{}, s.classify(iters, resNorm, cond)
		}
		if err := s.lu.SolveVecTo(s.delta, false, s.resid); err != nil {
			return StepResult{}, s.classify(iters, resNorm, math.Inf(1))
		}
		for k := 0; k < s.nd; k++ {
			s.q2[k] -= s.delta.AtVec(k)
		}
		for a := 0; a < s.nc; a++ {
			s.lamIt[a] -= s.delta.AtVec(s.nd + a)
		}
		iters++
	}

	res := s.commit(dt, iters, resNorm)
	return res, nil
}

// predict seeds the Newton iterate: linear extrapolation once a previous
// step exists, otherwise an explicit lift through the initial momentum.
func (s *Stepper) predict(dt float64, rho2 []float64) error {
	if s.primed {
		for k := 0; k < s.nd; k++ {
			s.q2[k] = 2*s.q1[k] - s.q0[k]
		}
	} else {
		vkin := make([]float64, s.nq-s.nd)
		if rho2 != nil {
			for i := range vkin {
				vkin[i] = (rho2[i] - s.q1[s.nd+i]) / dt
			}
		}
		v1, err := s.sys.VelocityFromMomentum(s.kinStart, s.p1, vkin)
		if err != nil {
			return &mech.StepError{T: s.t1, Err: err}
		}
		for k := 0; k < s.nd; k++ {
			s.q2[k] = s.q1[k] + dt*v1[k]
		}
	}
	for i := s.nd; i < s.nq; i++ {
		if rho2 != nil {
			s.q2[i] = rho2[i-s.nd]
		} else {
			s.q2[i] = s.q1[i]
		}
	}
	return nil
}

// residual evaluates the discrete Euler–Lagrange rows and the constraint
// rows at the current iterate. The interval quantities it caches (mass
// matrix, gradients, forcing) are reused by jacobian and commit.
func (s *Stepper) residual(dt float64) error {
	for i := 0; i < s.nq; i++ {
		s.v[i] = (s.q2[i] - s.q1[i]) / dt
	}
	if err := s.kinEnd.Set(s.q2); err != nil {
		return err
	}

	kin := s.kinStart
	tf := s.t1
	if s.opt.Scheme == Midpoint {
		for i := 0; i < s.nq; i++ {
			s.qm[i] = 0.5 * (s.q1[i] + s.q2[i])
		}
		if err := s.kinMid.Set(s.qm); err != nil {
			return err
		}
		kin = s.kinMid
		tf = s.t1 + dt/2
	}

	s.sys.KineticGrad(kin, s.v, s.kinGrad)
	s.sys.PotentialGrad(kin, s.dV)
	s.sys.ForceSum(kin, s.v, s.u, tf, s.fSum)
	s.sys.MassMatrix(kin, s.massM)
	if s.opt.Scheme == Trapezoid {
		// −½(M(q1)+M(q2))v needs both endpoint mass matrices.
		s.sys.MassMatrix(s.kinEnd, s.massM2)
	}

	for k := 0; k < s.nq; k++ {
		mvk := 0.0
		for l := 0; l < s.nq; l++ {
			m := s.massM.At(k, l)
			if s.opt.Scheme == Trapezoid {
				m = 0.5 * (m + s.massM2.At(k, l))
			}
			mvk += m * s.v[l]
		}
		s.mv[k] = mvk
	}

	for k := 0; k < s.nd; k++ {
		r := s.p1[k] + 0.5*dt*(s.kinGrad[k]-s.dV[k]+s.fSum[k]) - s.mv[k]
		for a := 0; a < s.nc; a++ {
			r -= s.dg1.At(a, k) * s.lamIt[a]
		}
		s.resid.SetVec(k, r)
	}

	if s.nc > 0 {
		g := make([]float64, s.nc)
		s.sys.EvalConstraints(s.kinEnd, g)
		s.sys.ConstraintJac(s.kinEnd, s.dg2)
		for a := 0; a < s.nc; a++ {
			s.resid.SetVec(s.nd+a, g[a])
		}
	}
	return nil
}

// jacobian assembles the Newton matrix ∂(R1,R2)/∂(q2_d, λ) about the
// iterate residual just evaluated.
func (s *Stepper) jacobian(dt float64) {
	s.newton.Zero()

	if s.opt.Scheme == Midpoint {
		kin := s.kinMid
		s.sys.MassVelJac(kin, s.v, s.gVel)
		s.sys.PotentialHess(kin, s.d2v)
		s.sys.ForceJacQ(kin, s.v, s.u, s.t1+dt/2, s.fq)
		s.sys.ForceJacV(kin, s.v, s.u, s.t1+dt/2, s.fv)
		if s.opt.ExactJacobian {
			s.sys.MassD2Contract(kin, s.v, s.c2)
		}
		for k := 0; k < s.nd; k++ {
			for j := 0; j < s.nd; j++ {
				kj := 0.5*(s.gVel.At(j, k)-s.gVel.At(k, j)) -
					0.25*dt*s.d2v.At(k, j) -
					s.massM.At(k, j)/dt +
					0.25*dt*s.fq.At(k, j) +
					0.5*s.fv.At(k, j)
				if s.opt.ExactJacobian {
					kj += 0.125 * dt * s.c2.At(k, j)
				}
				s.newton.Set(k, j, kj)
			}
		}
	} else {
		s.sys.MassVelJac(s.kinStart, s.v, s.gVel)
		s.sys.MassVelJac(s.kinEnd, s.v, s.gVel2)
		s.sys.ForceJacV(s.kinStart, s.v, s.u, s.t1, s.fv)
		for k := 0; k < s.nd; k++ {
			for j := 0; j < s.nd; j++ {
				kj := 0.5*(s.gVel.At(j, k)-s.gVel2.At(k, j)) -
					0.5*(s.massM.At(k, j)+s.massM2.At(k, j))/dt +
					0.5*s.fv.At(k, j)
				s.newton.Set(k, j, kj)
			}
		}
	}

	for a := 0; a < s.nc; a++ {
		for k := 0; k < s.nd; k++ {
			s.newton.Set(k, s.nd+a, -s.dg1.At(a, k))
			s.newton.Set(s.nd+a, k, s.dg2.At(a, k))
		}
	}
}

// commit runs the discrete Legendre transform and rotates the history.
// Interval quantities cached by the final residual evaluation are reused.
func (s *Stepper) commit(dt float64, iters int, resNorm float64) StepResult {
	if s.opt.Scheme == Trapezoid {
		// D2Ld needs the endpoint gradients; the residual cached the
		// start-point ones.
		s.sys.KineticGrad(s.kinEnd, s.v, s.kinGrad)
		s.sys.PotentialGrad(s.kinEnd, s.dV)
		s.sys.ForceSum(s.kinEnd, s.v, s.u, s.t1+dt, s.fSum)
	}

	res := StepResult{
		T:        s.t1 + dt,
		Q:        append([]float64(nil), s.q2...),
		V:        append([]float64(nil), s.v...),
		P:        make([]float64, s.nd),
		Lam:      append([]float64(nil), s.lamIt...),
		Iters:    iters,
		Residual: resNorm,
	}
	for k := 0; k < s.nd; k++ {
		res.P[k] = 0.5*dt*(s.kinGrad[k]-s.dV[k]+s.fSum[k]) + s.mv[k]
	}

	copy(s.q0, s.q1)
	copy(s.q1, s.q2)
	copy(s.p0, s.p1)
	copy(s.p1, res.P)
	copy(s.lam, s.lamIt)
	copy(s.lastU, s.u)
	s.t1 += dt
	s.h = dt
	s.primed = true
	s.kinStart.Set(s.q1)

	s.stats.Steps++
	s.stats.TotalIters += iters
	if iters > s.stats.MaxIters {
		s.stats.MaxIters = iters
	}
	return res
}

// classify turns a failed linear solve into the right taxonomy entry: a
// row-rank-deficient constraint Jacobian is reported as such, anything else
// as ill-conditioning.
func (s *Stepper) classify(iters int, resNorm, cond float64) error {
	if s.nc > 0 {
		var svd mat.SVD
		if svd.Factorize(s.dg2.Slice(0, s.nc, 0, s.nd), mat.SVDNone) {
			sv := svd.Values(nil)
			max := sv[0]
			min := sv[len(sv)-1]
			if min <= 1e-12*math.Max(1, max) {
				return &mech.StepError{T: s.t1, Iter: iters, Residual: resNorm,
					Err: mech.ErrSingularConstraint}
			}
		}
	}
	return &mech.StepError{T: s.t1, Iter: iters, Residual: resNorm,
		Err: fmt.Errorf("condition estimate %.3e: %w", cond, mech.ErrIllConditioned)}
}

func norm(x []float64) float64 {
	total := 0.0
	for _, v := range x {
		total += v * v
	}
	return math.Sqrt(total)
}
