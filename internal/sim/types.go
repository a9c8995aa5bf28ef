package sim

// State is one committed point of a trajectory. Slices are owned by the
// trajectory and must not be mutated by consumers.
type State struct {
	T    float64
	Q    []float64 // full configuration, dynamic variables first
	P    []float64 // dynamic momentum
	V    []float64 // interval velocity (q_k − q_{k−1})/h, full width
	Lam  []float64 // constraint multipliers
	U    []float64 // inputs applied over the arriving interval
	Iter int       // Newton iterations of the arriving step
}

// Clone deep-copies a state so callers can hold it past a Reset.
func (s State) Clone() State {
	c := s
	c.Q = append([]float64(nil), s.Q...)
	c.P = append([]float64(nil), s.P...)
	c.V = append([]float64(nil), s.V...)
	c.Lam = append([]float64(nil), s.Lam...)
	c.U = append([]float64(nil), s.U...)
	return c
}

// Controller produces the inputs for the step leaving state s at time t:
// actuation values u (length NU or nil) and prescribed kinematic positions
// rho for t+dt (length NK or nil).
type Controller interface {
	Inputs(t, dt float64, s State) (u, rho []float64)
}

// Metric accumulates a scalar over a run.
type Metric interface {
	Name() string
	Update(s State, dt float64)
	Result() float64
	Reset()
}

// Observer is called after every committed step.
type Observer func(State)

// RunConfig drives Simulator.Run.
type RunConfig struct {
	Duration   float64
	Dt         float64
	Controller Controller // nil means zero inputs, held kinematics
	Metrics    []Metric
	Observers  []Observer
}

// Result is the aggregate of one run.
type Result struct {
	States  []State // committed trajectory, initial state first
	Metrics map[string]float64
}

// Times extracts the time column.
func (r *Result) Times() []float64 {
	ts := make([]float64, len(r.States))
	for i, s := range r.States {
		ts[i] = s.T
	}
	return ts
}

// Final returns the last state of the run.
func (r *Result) Final() State { return r.States[len(r.States)-1] }
