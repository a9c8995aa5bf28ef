package metrics

import "github.com/san-kum/varimech/internal/sim"

// ActuationEffort accumulates ∫‖u‖² dt over a run.
type ActuationEffort struct {
	sum float64
}

func NewActuationEffort() *ActuationEffort { return &ActuationEffort{} }

func (a *ActuationEffort) Name() string { return "actuation_effort" }

func (a *ActuationEffort) Update(s sim.State, dt float64) {
	for _, u := range s.U {
		a.sum += u * u * dt
	}
}

func (a *ActuationEffort) Result() float64 { return a.sum }

func (a *ActuationEffort) Reset() { a.sum = 0 }

// NewtonIterations totals the solver effort of a run; Max reports the worst
// single step.
type NewtonIterations struct {
	total int
	max   int
}

func NewNewtonIterations() *NewtonIterations { return &NewtonIterations{} }

func (n *NewtonIterations) Name() string { return "newton_iterations" }

func (n *NewtonIterations) Update(s sim.State, dt float64) {
	n.total += s.Iter
	if s.Iter > n.max {
		n.max = s.Iter
	}
}

func (n *NewtonIterations) Result() float64 { return float64(n.total) }

// Max returns the largest per-step iteration count seen.
func (n *NewtonIterations) Max() int { return n.max }

func (n *NewtonIterations) Reset() {
	n.total = 0
	n.max = 0
}
