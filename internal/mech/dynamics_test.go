package mech

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// wellPotential is a quadratic well on every configuration variable, enough
// to exercise aggregation without pulling in the real potential package.
type wellPotential struct {
	name string
	k    float64
}

func (p *wellPotential) Name() string           { return p.name }
func (p *wellPotential) Bind(sys *System) error { return nil }

func (p *wellPotential) Energy(kin *Kinematics) float64 {
	total := 0.0
	for _, q := range kin.Q() {
		total += 0.5 * p.k * q * q
	}
	return total
}

func (p *wellPotential) AddDV(kin *Kinematics, dst []float64) {
	for i, q := range kin.Q() {
		dst[i] += p.k * q
	}
}

func (p *wellPotential) AddD2V(kin *Kinematics, dst *mat.Dense) {
	for i := range kin.Q() {
		dst.Set(i, i, dst.At(i, i)+p.k)
	}
}

func buildDoublePendulum(t *testing.T, m1, m2, l1, l2 float64) *System {
	t.Helper()
	b := NewBuilder()
	j1 := b.Frame(World, RotY, Var("theta1"))
	p1 := b.Frame(j1, Fixed, Translate(0, 0, -l1), Name("bob1"), Mass(m1))
	j2 := b.Frame(p1, RotY, Var("theta2"))
	b.Frame(j2, Fixed, Translate(0, 0, -l2), Name("bob2"), Mass(m2))

	sys, err := b.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	return sys
}

func TestMassMatrixPendulum(t *testing.T) {
	b := NewBuilder()
	j := b.Frame(World, RotY, Var("theta"))
	b.Frame(j, Fixed, Translate(0, 0, -1.5), Name("bob"), Mass(2.0))
	sys, err := b.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	kin := sys.NewKinematics()
	if err := kin.Set([]float64{0.7}); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	m := mat.NewSymDense(1, nil)
	sys.MassMatrix(kin, m)

	want := 2.0 * 1.5 * 1.5
	if math.Abs(m.At(0, 0)-want) > 1e-12 {
		t.Errorf("expected ml² = %.9f, got %.9f", want, m.At(0, 0))
	}
}

func TestMassMatrixDoublePendulum(t *testing.T) {
	m1, m2, l1, l2 := 1.3, 0.8, 1.1, 0.6
	sys := buildDoublePendulum(t, m1, m2, l1, l2)

	kin := sys.NewKinematics()
	theta2 := 0.9
	if err := kin.Set([]float64{0.4, theta2}); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	m := mat.NewSymDense(2, nil)
	sys.MassMatrix(kin, m)

	c2 := math.Cos(theta2)
	want11 := (m1+m2)*l1*l1 + m2*l2*l2 + 2*m2*l1*l2*c2
	want12 := m2*l2*l2 + m2*l1*l2*c2
	want22 := m2 * l2 * l2

	if math.Abs(m.At(0, 0)-want11) > 1e-12 {
		t.Errorf("M11: expected %.9f, got %.9f", want11, m.At(0, 0))
	}
	if math.Abs(m.At(0, 1)-want12) > 1e-12 {
		t.Errorf("M12: expected %.9f, got %.9f", want12, m.At(0, 1))
	}
	if math.Abs(m.At(1, 1)-want22) > 1e-12 {
		t.Errorf("M22: expected %.9f, got %.9f", want22, m.At(1, 1))
	}
}

func TestKineticGradFiniteDifference(t *testing.T) {
	sys := buildTestChain(t)
	kin := sys.NewKinematics()
	q := []float64{0.4, -0.7, 0.25}
	v := []float64{0.9, -0.3, 0.6}
	const h = 1e-6

	if err := kin.Set(q); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	got := make([]float64, sys.NQ())
	sys.KineticGrad(kin, v, got)

	for k := 0; k < sys.NQ(); k++ {
		qp := append([]float64(nil), q...)
		qp[k] += h
		if err := kin.Set(qp); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		hi := sys.KineticEnergy(kin, v)
		qp[k] -= 2 * h
		if err := kin.Set(qp); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		lo := sys.KineticEnergy(kin, v)

		fd := (hi - lo) / (2 * h)
		if math.Abs(fd-got[k]) > 1e-6 {
			t.Errorf("component %d: expected ½vᵀM'v = %.9f, got %.9f", k, fd, got[k])
		}
	}
}

func TestMassVelJacFiniteDifference(t *testing.T) {
	sys := buildTestChain(t)
	kin := sys.NewKinematics()
	nq := sys.NQ()
	q := []float64{0.4, -0.7, 0.25}
	v := []float64{0.9, -0.3, 0.6}
	const h = 1e-6

	if err := kin.Set(q); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	got := mat.NewDense(nq, nq, nil)
	sys.MassVelJac(kin, v, got)

	massVel := func(q []float64) []float64 {
		if err := kin.Set(q); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		m := mat.NewSymDense(nq, nil)
		sys.MassMatrix(kin, m)
		out := make([]float64, nq)
		for j := 0; j < nq; j++ {
			for l := 0; l < nq; l++ {
				out[j] += m.At(j, l) * v[l]
			}
		}
		return out
	}

	for k := 0; k < nq; k++ {
		qp := append([]float64(nil), q...)
		qp[k] += h
		hi := massVel(qp)
		qp[k] -= 2 * h
		lo := massVel(qp)

		for j := 0; j < nq; j++ {
			fd := (hi[j] - lo[j]) / (2 * h)
			if math.Abs(fd-got.At(j, k)) > 1e-6 {
				t.Errorf("G[%d][%d]: expected %.9f, got %.9f", j, k, fd, got.At(j, k))
			}
		}
	}
}

func TestMassD2ContractFiniteDifference(t *testing.T) {
	sys := buildTestChain(t)
	kin := sys.NewKinematics()
	nq := sys.NQ()
	q := []float64{0.4, -0.7, 0.25}
	v := []float64{0.9, -0.3, 0.6}
	const h = 1e-5

	if err := kin.Set(q); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	got := mat.NewDense(nq, nq, nil)
	sys.MassD2Contract(kin, v, got)

	grad := func(q []float64) []float64 {
		if err := kin.Set(q); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		out := make([]float64, nq)
		sys.KineticGrad(kin, v, out)
		return out
	}

	// ∂(½vᵀM_{,k}v)/∂q_l is half the contraction, so compare against 2·FD.
	for l := 0; l < nq; l++ {
		qp := append([]float64(nil), q...)
		qp[l] += h
		hi := grad(qp)
		qp[l] -= 2 * h
		lo := grad(qp)

		for k := 0; k < nq; k++ {
			fd := (hi[k] - lo[k]) / h
			if math.Abs(fd-got.At(k, l)) > 1e-5 {
				t.Errorf("C[%d][%d]: expected %.9f, got %.9f", k, l, fd, got.At(k, l))
			}
		}
	}
}

func TestMomentumMatchesMassMatrix(t *testing.T) {
	sys := buildTestChain(t)
	kin := sys.NewKinematics()
	nq, nd := sys.NQ(), sys.ND()
	if err := kin.Set([]float64{0.4, -0.7, 0.25}); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	v := []float64{0.9, -0.3, 0.6}

	p := make([]float64, nd)
	sys.Momentum(kin, v, p)

	m := mat.NewSymDense(nq, nil)
	sys.MassMatrix(kin, m)
	for k := 0; k < nd; k++ {
		want := 0.0
		for l := 0; l < nq; l++ {
			want += m.At(k, l) * v[l]
		}
		if math.Abs(p[k]-want) > 1e-12 {
			t.Errorf("p[%d]: expected %.9f, got %.9f", k, want, p[k])
		}
	}
}

func TestVelocityFromMomentumRoundTrip(t *testing.T) {
	sys := buildTestChain(t)
	kin := sys.NewKinematics()
	if err := kin.Set([]float64{0.4, -0.7, 0.25}); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	v := []float64{0.9, -0.3, 0.6}

	p := make([]float64, sys.ND())
	sys.Momentum(kin, v, p)

	got, err := sys.VelocityFromMomentum(kin, p, v[sys.ND():])
	if err != nil {
		t.Fatalf("velocity recovery failed: %v", err)
	}
	for i := range v {
		if math.Abs(got[i]-v[i]) > 1e-10 {
			t.Errorf("v[%d]: expected %.9f, got %.9f", i, v[i], got[i])
		}
	}
}

func TestEnergyQPMatchesEnergy(t *testing.T) {
	sys := buildTestChain(t)
	if err := sys.AddPotential(&wellPotential{name: "well", k: 3.0}); err != nil {
		t.Fatalf("add potential failed: %v", err)
	}

	kin := sys.NewKinematics()
	if err := kin.Set([]float64{0.4, -0.7, 0.25}); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	v := []float64{0.9, -0.3, 0.6}

	p := make([]float64, sys.ND())
	sys.Momentum(kin, v, p)

	want := sys.Energy(kin, v)
	got, err := sys.EnergyQP(kin, p, v[sys.ND():])
	if err != nil {
		t.Fatalf("energy recovery failed: %v", err)
	}
	if math.Abs(got-want) > 1e-10 {
		t.Errorf("expected %.12f, got %.12f", want, got)
	}
}

func TestPotentialAggregation(t *testing.T) {
	sys := buildTestChain(t)
	if err := sys.AddPotential(&wellPotential{name: "a", k: 2.0}); err != nil {
		t.Fatalf("add potential failed: %v", err)
	}
	if err := sys.AddPotential(&wellPotential{name: "b", k: 1.0}); err != nil {
		t.Fatalf("add potential failed: %v", err)
	}

	kin := sys.NewKinematics()
	q := []float64{1.0, 2.0, -1.0}
	if err := kin.Set(q); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	wantV := 0.0
	for _, qi := range q {
		wantV += 0.5 * 3.0 * qi * qi
	}
	if got := sys.PotentialEnergy(kin); math.Abs(got-wantV) > 1e-12 {
		t.Errorf("expected potential %.9f, got %.9f", wantV, got)
	}

	grad := make([]float64, sys.NQ())
	sys.PotentialGrad(kin, grad)
	for i, qi := range q {
		if math.Abs(grad[i]-3.0*qi) > 1e-12 {
			t.Errorf("grad[%d]: expected %.9f, got %.9f", i, 3.0*qi, grad[i])
		}
	}

	hess := mat.NewDense(sys.NQ(), sys.NQ(), nil)
	sys.PotentialHess(kin, hess)
	for i := 0; i < sys.NQ(); i++ {
		if math.Abs(hess.At(i, i)-3.0) > 1e-12 {
			t.Errorf("hess[%d][%d]: expected 3, got %.9f", i, i, hess.At(i, i))
		}
	}
}
