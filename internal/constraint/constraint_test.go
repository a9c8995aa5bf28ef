package constraint

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/varimech/internal/mech"
)

// buildFreeMasses returns two point masses each on a 3-axis translation
// chain, the minimal system where a distance constraint is meaningful.
func buildFreeMasses(t *testing.T) *mech.System {
	t.Helper()
	b := mech.NewBuilder()
	x1 := b.Frame(mech.World, mech.TransX, mech.Var("x1"))
	y1 := b.Frame(x1, mech.TransY, mech.Var("y1"))
	b.Frame(y1, mech.TransZ, mech.Var("z1"), mech.Name("m1"), mech.Mass(1))
	x2 := b.Frame(mech.World, mech.TransX, mech.Var("x2"))
	y2 := b.Frame(x2, mech.TransY, mech.Var("y2"))
	b.Frame(y2, mech.TransZ, mech.Var("z2"), mech.Name("m2"), mech.Mass(2))

	sys, err := b.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	return sys
}

func TestDistanceResidual(t *testing.T) {
	sys := buildFreeMasses(t)
	c := NewDistance("rod", "m1", "m2", 2.0)
	if err := c.Bind(sys); err != nil {
		t.Fatalf("bind failed: %v", err)
	}

	kin := sys.NewKinematics()
	g := make([]float64, 1)

	// Exactly at the prescribed distance.
	if err := kin.Set([]float64{0, 0, 0, 2, 0, 0}); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	c.Eval(kin, g)
	if math.Abs(g[0]) > 1e-14 {
		t.Errorf("expected zero residual at prescribed distance, got %g", g[0])
	}

	// Stretched: g = (r² − d²)/2.
	if err := kin.Set([]float64{0, 0, 0, 3, 0, 0}); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	c.Eval(kin, g)
	if want := 0.5 * (9 - 4); math.Abs(g[0]-want) > 1e-14 {
		t.Errorf("expected residual %g, got %g", want, g[0])
	}
}

func TestDistanceJacobianFiniteDifference(t *testing.T) {
	sys := buildFreeMasses(t)
	c := NewDistance("rod", "m1", "m2", 1.5)
	if err := c.Bind(sys); err != nil {
		t.Fatalf("bind failed: %v", err)
	}

	kin := sys.NewKinematics()
	q := []float64{0.1, -0.3, 0.2, 1.2, 0.5, -0.4}
	if err := kin.Set(q); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	jac := mat.NewDense(1, sys.NQ(), nil)
	c.Jac(kin, jac, 0)

	const h = 1e-6
	g := make([]float64, 1)
	for l := range q {
		qp := append([]float64(nil), q...)
		qp[l] += h
		if err := kin.Set(qp); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		c.Eval(kin, g)
		plus := g[0]

		qm := append([]float64(nil), q...)
		qm[l] -= h
		if err := kin.Set(qm); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		c.Eval(kin, g)
		minus := g[0]

		fd := (plus - minus) / (2 * h)
		if math.Abs(jac.At(0, l)-fd) > 1e-6 {
			t.Errorf("dg/dq[%d] = %g, finite difference %g", l, jac.At(0, l), fd)
		}
	}
}

func TestDistanceLamHessFiniteDifference(t *testing.T) {
	sys := buildFreeMasses(t)
	c := NewDistance("rod", "m1", "m2", 1.5)
	if err := c.Bind(sys); err != nil {
		t.Fatalf("bind failed: %v", err)
	}

	kin := sys.NewKinematics()
	q := []float64{0.1, -0.3, 0.2, 1.2, 0.5, -0.4}
	lam := []float64{0.8}

	if err := kin.Set(q); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	hess := mat.NewDense(sys.NQ(), sys.NQ(), nil)
	c.AddLamHess(kin, lam, 1.0, hess)

	const h = 1e-5
	for l := range q {
		jp := mat.NewDense(1, sys.NQ(), nil)
		jm := mat.NewDense(1, sys.NQ(), nil)

		qp := append([]float64(nil), q...)
		qp[l] += h
		if err := kin.Set(qp); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		c.Jac(kin, jp, 0)

		qm := append([]float64(nil), q...)
		qm[l] -= h
		if err := kin.Set(qm); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		c.Jac(kin, jm, 0)

		for k := range q {
			fd := lam[0] * (jp.At(0, k) - jm.At(0, k)) / (2 * h)
			if math.Abs(hess.At(k, l)-fd) > 1e-5 {
				t.Errorf("hess[%d][%d] = %g, finite difference %g", k, l, hess.At(k, l), fd)
			}
		}
	}
}

func TestPointOnPlane(t *testing.T) {
	b := mech.NewBuilder()
	j := b.Frame(mech.World, mech.RotY, mech.Var("theta"))
	b.Frame(j, mech.Fixed, mech.Translate(0, 0, -1), mech.Name("bob"), mech.Mass(1))
	sys, err := b.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	// Normal is normalized at bind, so the residual is a true distance.
	c := NewPointOnPlane("floor", "bob", [3]float64{0, 0, 2}, [3]float64{0, 0, -1})
	if err := c.Bind(sys); err != nil {
		t.Fatalf("bind failed: %v", err)
	}

	kin := sys.NewKinematics()
	g := make([]float64, 1)

	if err := kin.Set([]float64{0}); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	c.Eval(kin, g)
	if math.Abs(g[0]) > 1e-14 {
		t.Errorf("expected zero residual with bob on plane, got %g", g[0])
	}

	theta := 0.4
	if err := kin.Set([]float64{theta}); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	c.Eval(kin, g)
	want := -math.Cos(theta) + 1
	if math.Abs(g[0]-want) > 1e-12 {
		t.Errorf("expected residual %g, got %g", want, g[0])
	}

	jac := mat.NewDense(1, 1, nil)
	c.Jac(kin, jac, 0)
	if wantJ := math.Sin(theta); math.Abs(jac.At(0, 0)-wantJ) > 1e-12 {
		t.Errorf("expected jacobian %g, got %g", wantJ, jac.At(0, 0))
	}
}

func TestPointOnPlaneZeroNormal(t *testing.T) {
	b := mech.NewBuilder()
	j := b.Frame(mech.World, mech.RotY, mech.Var("theta"))
	b.Frame(j, mech.Fixed, mech.Translate(0, 0, -1), mech.Name("bob"), mech.Mass(1))
	sys, err := b.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	c := NewPointOnPlane("bad", "bob", [3]float64{}, [3]float64{})
	if err := c.Bind(sys); err == nil {
		t.Fatal("expected bind to fail for zero normal")
	}
}

func TestOverConstrainedRejectedAtBuild(t *testing.T) {
	b := mech.NewBuilder()
	j := b.Frame(mech.World, mech.RotY, mech.Var("theta"))
	b.Frame(j, mech.Fixed, mech.Translate(0, 0, -1), mech.Name("bob"), mech.Mass(1))
	b.AddConstraint(NewPointOnPlane("p1", "bob", [3]float64{1, 0, 0}, [3]float64{}))
	b.AddConstraint(NewPointOnPlane("p2", "bob", [3]float64{0, 0, 1}, [3]float64{}))

	// Two rows against one dynamic variable must fail at Build.
	if _, err := b.Build(); err == nil {
		t.Fatal("expected over-constrained build to fail")
	}
}
