package varint

// Scheme selects the discrete Lagrangian.
type Scheme int

const (
	// Midpoint evaluates the Lagrangian at the interval midpoint:
	// Ld = h·L((q1+q2)/2, (q2−q1)/h).
	Midpoint Scheme = iota
	// Trapezoid averages the endpoint Lagrangians:
	// Ld = (h/2)·[L(q1,v) + L(q2,v)].
	Trapezoid
)

func (s Scheme) String() string {
	if s == Trapezoid {
		return "trapezoid"
	}
	return "midpoint"
}

// Options configure a Stepper. The zero value of a field selects its
// default.
type Options struct {
	// Scheme is the discrete Lagrangian (default Midpoint).
	Scheme Scheme

	// Tolerance bounds the Newton residual norm of an accepted step; the
	// constraint residual shares it. Default 1e-10.
	Tolerance float64

	// MaxIterations caps the Newton iteration per step. Default 20.
	MaxIterations int

	// CondLimit rejects Newton systems whose condition estimate exceeds
	// it. Default 1e12.
	CondLimit float64

	// ExactJacobian includes the mass-matrix second-derivative term in
	// the Newton matrix. The residual is exact either way, so accepted
	// steps satisfy the discrete equations to tolerance regardless; the
	// exact matrix buys faster convergence at the cost of third
	// kinematic derivatives per iteration.
	ExactJacobian bool
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		Scheme:        Midpoint,
		Tolerance:     1e-10,
		MaxIterations: 20,
		CondLimit:     1e12,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Tolerance <= 0 {
		o.Tolerance = d.Tolerance
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = d.MaxIterations
	}
	if o.CondLimit <= 0 {
		o.CondLimit = d.CondLimit
	}
	return o
}
