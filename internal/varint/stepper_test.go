package varint

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/varimech/internal/constraint"
	"github.com/san-kum/varimech/internal/mech"
	"github.com/san-kum/varimech/internal/potential"
)

func buildPendulum(t testing.TB, m, l float64) *mech.System {
	t.Helper()
	b := mech.NewBuilder()
	j := b.Frame(mech.World, mech.RotY, mech.Var("theta"))
	b.Frame(j, mech.Fixed, mech.Translate(0, 0, -l), mech.Name("bob"), mech.Mass(m))
	b.AddPotential(potential.NewGravity())

	sys, err := b.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	return sys
}

// buildLinkedMasses is two free point masses joined by a rigid distance
// constraint, the smallest constrained system.
func buildLinkedMasses(t testing.TB, d float64, gravity bool) *mech.System {
	t.Helper()
	b := mech.NewBuilder()
	x1 := b.Frame(mech.World, mech.TransX, mech.Var("x1"))
	y1 := b.Frame(x1, mech.TransY, mech.Var("y1"))
	b.Frame(y1, mech.TransZ, mech.Var("z1"), mech.Name("m1"), mech.Mass(1))
	x2 := b.Frame(mech.World, mech.TransX, mech.Var("x2"))
	y2 := b.Frame(x2, mech.TransY, mech.Var("y2"))
	b.Frame(y2, mech.TransZ, mech.Var("z2"), mech.Name("m2"), mech.Mass(1.5))
	b.AddConstraint(constraint.NewDistance("rod", "m1", "m2", d))
	if gravity {
		b.AddPotential(potential.NewGravity())
	}

	sys, err := b.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	return sys
}

func initFromVelocity(t testing.TB, s *Stepper, q, v []float64) {
	t.Helper()
	sys := s.System()
	kin := sys.NewKinematics()
	if err := kin.Set(q); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	p := make([]float64, sys.ND())
	sys.Momentum(kin, v, p)
	if err := s.Init(0, q, p, nil); err != nil {
		t.Fatalf("init failed: %v", err)
	}
}

func energyQP(t testing.TB, sys *mech.System, kin *mech.Kinematics, q, p []float64) float64 {
	t.Helper()
	if err := kin.Set(q); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	e, err := sys.EnergyQP(kin, p, make([]float64, sys.NK()))
	if err != nil {
		t.Fatalf("energy failed: %v", err)
	}
	return e
}

// TestPendulumEnergyBounded is the defining property of the integrator: a
// thousand pendulum steps must return to the initial energy within 1e-6,
// with no secular drift.
func TestPendulumEnergyBounded(t *testing.T) {
	sys := buildPendulum(t, 1, 1)
	s, err := New(sys, DefaultOptions())
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	initFromVelocity(t, s, []float64{0.1}, []float64{0})

	kin := sys.NewKinematics()
	e0 := energyQP(t, sys, kin, []float64{0.1}, []float64{0})

	var last StepResult
	maxDev := 0.0
	for i := 0; i < 1000; i++ {
		last, err = s.Step(0.01)
		if err != nil {
			t.Fatalf("step %d failed: %v", i, err)
		}
		e := energyQP(t, sys, kin, last.Q, last.P)
		if dev := math.Abs(e - e0); dev > maxDev {
			maxDev = dev
		}
	}

	eEnd := energyQP(t, sys, kin, last.Q, last.P)
	if math.Abs(eEnd-e0) > 1e-6 {
		t.Errorf("energy moved from %.12f to %.12f after 1000 steps", e0, eEnd)
	}
	if maxDev > 1e-6 {
		t.Errorf("peak energy deviation %.3e exceeds bound", maxDev)
	}
}

// TestHarmonicEnergyExact exercises the linear-system special case: the
// midpoint rule preserves quadratic invariants, so oscillator energy is
// conserved to Newton tolerance, not just bounded.
func TestHarmonicEnergyExact(t *testing.T) {
	b := mech.NewBuilder()
	b.Frame(mech.World, mech.TransZ, mech.Var("z"), mech.Mass(1))
	b.AddPotential(potential.NewConfigSpring("spring", "z", 25, 0))
	sys, err := b.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	s, err := New(sys, DefaultOptions())
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	initFromVelocity(t, s, []float64{0.5}, []float64{0})

	kin := sys.NewKinematics()
	e0 := energyQP(t, sys, kin, []float64{0.5}, []float64{0})

	for i := 0; i < 500; i++ {
		res, err := s.Step(0.01)
		if err != nil {
			t.Fatalf("step %d failed: %v", i, err)
		}
		e := energyQP(t, sys, kin, res.Q, res.P)
		if math.Abs(e-e0) > 1e-8 {
			t.Fatalf("step %d: oscillator energy %.12f drifted from %.12f", i, e, e0)
		}
	}
}

// TestConstraintSatisfied checks that every committed state of the linked
// masses keeps the measured distance at the prescribed value.
func TestConstraintSatisfied(t *testing.T) {
	const d = 1.0
	sys := buildLinkedMasses(t, d, true)
	s, err := New(sys, DefaultOptions())
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	q0 := []float64{0, 0, 0, d, 0, 0}
	v0 := []float64{0, 0, 0, 0, 1, 0} // spin m2 about m1 while both fall
	initFromVelocity(t, s, q0, v0)

	kin := sys.NewKinematics()
	g := make([]float64, sys.NC())
	m1, _ := sys.FrameByName("m1")
	m2, _ := sys.FrameByName("m2")

	for i := 0; i < 400; i++ {
		res, err := s.Step(0.01)
		if err != nil {
			t.Fatalf("step %d failed: %v", i, err)
		}
		if err := kin.Set(res.Q); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		sys.EvalConstraints(kin, g)
		if math.Abs(g[0]) > 1e-10 {
			t.Fatalf("step %d: constraint residual %.3e", i, g[0])
		}
		pa, pb := kin.Pos(m1), kin.Pos(m2)
		dx := [3]float64{pa[0] - pb[0], pa[1] - pb[1], pa[2] - pb[2]}
		dist := math.Sqrt(dx[0]*dx[0] + dx[1]*dx[1] + dx[2]*dx[2])
		if math.Abs(dist-d) > 1e-8 {
			t.Fatalf("step %d: distance %.12f, want %.12f", i, dist, d)
		}
	}
}

// TestCyclicMomentumConserved: x is cyclic for the falling linked pair, so
// its total momentum is conserved exactly by the discrete flow.
func TestCyclicMomentumConserved(t *testing.T) {
	sys := buildLinkedMasses(t, 1, true)
	s, err := New(sys, DefaultOptions())
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	q0 := []float64{0, 0, 0, 1, 0, 0}
	v0 := []float64{0.3, 0, 0, 0.3, 1, 0}
	initFromVelocity(t, s, q0, v0)

	ix1, _ := sys.VarByName("x1")
	ix2, _ := sys.VarByName("x2")

	var px0 float64
	for i := 0; i < 200; i++ {
		res, err := s.Step(0.01)
		if err != nil {
			t.Fatalf("step %d failed: %v", i, err)
		}
		px := res.P[ix1] + res.P[ix2]
		if i == 0 {
			px0 = px
			continue
		}
		if math.Abs(px-px0) > 1e-7 {
			t.Fatalf("step %d: x-momentum %.12f drifted from %.12f", i, px, px0)
		}
	}
}

func TestTrapezoidEnergyBounded(t *testing.T) {
	sys := buildPendulum(t, 1, 1)
	opt := DefaultOptions()
	opt.Scheme = Trapezoid
	s, err := New(sys, opt)
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	initFromVelocity(t, s, []float64{0.1}, []float64{0})

	kin := sys.NewKinematics()
	e0 := energyQP(t, sys, kin, []float64{0.1}, []float64{0})

	var last StepResult
	for i := 0; i < 1000; i++ {
		last, err = s.Step(0.01)
		if err != nil {
			t.Fatalf("step %d failed: %v", i, err)
		}
	}
	eEnd := energyQP(t, sys, kin, last.Q, last.P)
	if math.Abs(eEnd-e0) > 1e-4 {
		t.Errorf("energy moved from %.12f to %.12f", e0, eEnd)
	}
}

func TestDeterministicReplay(t *testing.T) {
	run := func() []StepResult {
		sys := buildPendulum(t, 1, 1)
		s, err := New(sys, DefaultOptions())
		if err != nil {
			t.Fatalf("new failed: %v", err)
		}
		initFromVelocity(t, s, []float64{0.4}, []float64{-0.2})
		out := make([]StepResult, 0, 100)
		for i := 0; i < 100; i++ {
			res, err := s.Step(0.01)
			if err != nil {
				t.Fatalf("step %d failed: %v", i, err)
			}
			out = append(out, res)
		}
		return out
	}

	a, b := run(), run()
	for i := range a {
		if a[i].Q[0] != b[i].Q[0] || a[i].P[0] != b[i].P[0] {
			t.Fatalf("step %d: replay diverged: %v vs %v", i, a[i], b[i])
		}
	}
}

// TestFailedStepAtomic: a step that cannot converge must leave the stepper
// history exactly as it was, so the caller can retry with a smaller dt.
func TestFailedStepAtomic(t *testing.T) {
	sys := buildPendulum(t, 1, 1)
	opt := DefaultOptions()
	opt.MaxIterations = 1
	s, err := New(sys, opt)
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	initFromVelocity(t, s, []float64{1.2}, []float64{0})

	_, err = s.Step(0.5)
	if !errors.Is(err, mech.ErrDivergence) {
		t.Fatalf("expected ErrDivergence, got %v", err)
	}
	var stepErr *mech.StepError
	if !errors.As(err, &stepErr) {
		t.Fatal("expected a StepError wrapper")
	}
	if s.T() != 0 {
		t.Errorf("failed step advanced time to %g", s.T())
	}
	if s.Stats().Steps != 0 {
		t.Errorf("failed step counted as committed")
	}

	// The same stepper must still take a proper step afterwards.
	if _, err := s.Step(1e-3); err != nil {
		t.Fatalf("recovery step failed: %v", err)
	}
}

func TestSingularConstraintReported(t *testing.T) {
	sys := buildLinkedMasses(t, 1, false)
	s, err := New(sys, DefaultOptions())
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	// Coincident endpoints zero the constraint Jacobian row.
	q0 := []float64{0, 0, 0, 0, 0, 0}
	if err := s.Init(0, q0, make([]float64, sys.ND()), nil); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	_, err = s.Step(0.01)
	if !errors.Is(err, mech.ErrSingularConstraint) {
		t.Fatalf("expected ErrSingularConstraint, got %v", err)
	}
}

func TestStepValidation(t *testing.T) {
	sys := buildPendulum(t, 1, 1)
	s, err := New(sys, DefaultOptions())
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}

	if _, err := s.Step(0.01); err == nil {
		t.Error("expected stepping before Init to fail")
	}

	initFromVelocity(t, s, []float64{0.1}, []float64{0})
	if _, err := s.Step(0); !errors.Is(err, mech.ErrInvalidStep) {
		t.Errorf("expected ErrInvalidStep for dt=0, got %v", err)
	}
	if _, err := s.Step(-0.01); !errors.Is(err, mech.ErrInvalidStep) {
		t.Errorf("expected ErrInvalidStep for dt<0, got %v", err)
	}
	if err := s.Init(0, []float64{1, 2}, []float64{0}, nil); !errors.Is(err, mech.ErrConfigDim) {
		t.Errorf("expected ErrConfigDim, got %v", err)
	}
}

// TestKinematicPrescription drives a trolley variable through rho and
// checks the integrator honors it exactly while the hanging load swings.
func TestKinematicPrescription(t *testing.T) {
	b := mech.NewBuilder()
	trolley := b.Frame(mech.World, mech.TransX, mech.KinVar("xt"))
	j := b.Frame(trolley, mech.RotY, mech.Var("theta"))
	b.Frame(j, mech.Fixed, mech.Translate(0, 0, -1), mech.Name("load"), mech.Mass(1))
	b.AddPotential(potential.NewGravity())
	sys, err := b.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	s, err := New(sys, DefaultOptions())
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	if err := s.Init(0, []float64{0, 0}, []float64{0}, nil); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	const dt = 0.01
	swingStarted := false
	for i := 0; i < 200; i++ {
		rho := []float64{0.5 * dt * float64(i+1)} // constant-velocity traverse
		res, err := s.StepInput(dt, nil, rho)
		if err != nil {
			t.Fatalf("step %d failed: %v", i, err)
		}
		ix, _ := sys.VarByName("xt")
		if res.Q[ix] != rho[0] {
			t.Fatalf("step %d: kinematic variable %.12f, prescribed %.12f", i, res.Q[ix], rho[0])
		}
		if math.Abs(res.Q[0]) > 1e-6 {
			swingStarted = true
		}
	}
	if !swingStarted {
		t.Error("expected the trolley motion to excite the load swing")
	}
}

func TestStatsAccumulate(t *testing.T) {
	sys := buildPendulum(t, 1, 1)
	s, err := New(sys, DefaultOptions())
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	initFromVelocity(t, s, []float64{0.3}, []float64{0})

	for i := 0; i < 10; i++ {
		if _, err := s.Step(0.01); err != nil {
			t.Fatalf("step failed: %v", err)
		}
	}
	st := s.Stats()
	if st.Steps != 10 {
		t.Errorf("expected 10 committed steps, got %d", st.Steps)
	}
	if st.TotalIters == 0 || st.MaxIters == 0 {
		t.Errorf("expected nonzero Newton effort, got %+v", st)
	}
}
