package control

import "github.com/san-kum/varimech/internal/sim"

// None applies no actuation and holds kinematic variables.
type None struct{}

func NewNone() *None { return &None{} }

func (*None) Inputs(t, dt float64, s sim.State) (u, rho []float64) {
	return nil, nil
}
