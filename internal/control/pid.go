package control

import (
	"fmt"

	"github.com/san-kum/varimech/internal/mech"
	"github.com/san-kum/varimech/internal/sim"
)

// PID drives one actuation input from the error of one configuration
// variable. Derivative action uses the trajectory's interval velocity, so no
// error history is finite-differenced.
type PID struct {
	Kp, Ki, Kd float64
	Target     float64

	slot, idx int
	nu        int
	integral  float64
}

// NewPID binds a PID loop from variable varName to input inputName.
func NewPID(sys *mech.System, inputName, varName string, kp, ki, kd, target float64) (*PID, error) {
	slot, ok := sys.InputByName(inputName)
	if !ok {
		return nil, fmt.Errorf("control: unknown input %q", inputName)
	}
	idx, ok := sys.VarByName(varName)
	if !ok {
		return nil, fmt.Errorf("control: unknown variable %q", varName)
	}
	return &PID{
		Kp: kp, Ki: ki, Kd: kd, Target: target,
		slot: slot, idx: idx, nu: sys.NU(),
	}, nil
}

func (p *PID) Inputs(t, dt float64, s sim.State) (u, rho []float64) {
	err := p.Target - s.Q[p.idx]
	p.integral += err * dt

	out := p.Kp*err + p.Ki*p.integral - p.Kd*s.V[p.idx]

	u = make([]float64, p.nu)
	u[p.slot] = out
	return u, nil
}

// Reset clears the integral state.
func (p *PID) Reset() { p.integral = 0 }
