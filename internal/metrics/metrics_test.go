package metrics

import (
	"context"
	"testing"

	"github.com/san-kum/varimech/internal/scenario"
	"github.com/san-kum/varimech/internal/sim"
	"github.com/san-kum/varimech/internal/varint"
)

func runScenario(t *testing.T, name string, duration, dt float64, ms ...sim.Metric) *sim.Result {
	t.Helper()
	sys, q0, v0, err := scenario.BuildNamed(name, nil)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	s, err := sim.New(sys, q0, v0, varint.DefaultOptions())
	if err != nil {
		t.Fatalf("new simulator failed: %v", err)
	}
	res, err := s.Run(context.Background(), sim.RunConfig{
		Duration: duration,
		Dt:       dt,
		Metrics:  ms,
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	return res
}

func TestEnergyDriftBoundedOnPendulum(t *testing.T) {
	sys, q0, v0, err := scenario.BuildNamed("pendulum", nil)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	drift := NewEnergyDrift(sys)
	s, err := sim.New(sys, q0, v0, varint.DefaultOptions())
	if err != nil {
		t.Fatalf("new simulator failed: %v", err)
	}
	res, err := s.Run(context.Background(), sim.RunConfig{
		Duration: 5, Dt: 0.01, Metrics: []sim.Metric{drift},
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	got := res.Metrics["energy_drift"]
	if got <= 0 {
		t.Errorf("expected a small nonzero drift, got %g", got)
	}
	if got > 1e-6 {
		t.Errorf("energy drift %g exceeds the variational bound", got)
	}
}

func TestConstraintViolationStaysAtTolerance(t *testing.T) {
	sys, q0, v0, err := scenario.BuildNamed("linked-masses", nil)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	viol := NewConstraintViolation(sys)
	s, err := sim.New(sys, q0, v0, varint.DefaultOptions())
	if err != nil {
		t.Fatalf("new simulator failed: %v", err)
	}
	res, err := s.Run(context.Background(), sim.RunConfig{
		Duration: 2, Dt: 0.01, Metrics: []sim.Metric{viol},
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if got := res.Metrics["constraint_violation"]; got > 1e-10 {
		t.Errorf("constraint violation %g exceeds solver tolerance", got)
	}
}

func TestActuationEffortIntegratesInputs(t *testing.T) {
	a := NewActuationEffort()
	a.Update(sim.State{U: []float64{2}}, 0.5)   // 4·0.5
	a.Update(sim.State{U: []float64{1, 3}}, 1)  // 1 + 9
	a.Update(sim.State{}, 1)                    // no inputs
	if got, want := a.Result(), 12.0; got != want {
		t.Errorf("effort = %g, want %g", got, want)
	}
	a.Reset()
	if a.Result() != 0 {
		t.Error("reset did not clear the accumulator")
	}
}

func TestNewtonIterationsAggregates(t *testing.T) {
	n := NewNewtonIterations()
	for _, it := range []int{2, 5, 3} {
		n.Update(sim.State{Iter: it}, 0.01)
	}
	if n.Result() != 10 {
		t.Errorf("total = %g, want 10", n.Result())
	}
	if n.Max() != 5 {
		t.Errorf("max = %d, want 5", n.Max())
	}
	n.Reset()
	if n.Result() != 0 || n.Max() != 0 {
		t.Error("reset did not clear")
	}
}

func TestNewtonIterationsOnRun(t *testing.T) {
	n := NewNewtonIterations()
	res := runScenario(t, "double-pendulum", 1, 0.005, n)
	if res.Metrics["newton_iterations"] == 0 {
		t.Error("expected nonzero Newton effort over a run")
	}
	if n.Max() == 0 {
		t.Error("expected a nonzero per-step maximum")
	}
}
