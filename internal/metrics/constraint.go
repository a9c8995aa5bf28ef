package metrics

import (
	"math"

	"github.com/san-kum/varimech/internal/mech"
	"github.com/san-kum/varimech/internal/sim"
)

// ConstraintViolation tracks the peak ‖g(q)‖∞ over a run.
type ConstraintViolation struct {
	sys *mech.System
	kin *mech.Kinematics
	g   []float64
	max float64
}

func NewConstraintViolation(sys *mech.System) *ConstraintViolation {
	return &ConstraintViolation{
		sys: sys,
		kin: sys.NewKinematics(),
		g:   make([]float64, sys.NC()),
	}
}

func (c *ConstraintViolation) Name() string { return "constraint_violation" }

func (c *ConstraintViolation) Update(s sim.State, dt float64) {
	if len(c.g) == 0 {
		return
	}
	if err := c.kin.Set(s.Q); err != nil {
		return
	}
	c.sys.EvalConstraints(c.kin, c.g)
	for _, ga := range c.g {
		if v := math.Abs(ga); v > c.max {
			c.max = v
		}
	}
}

func (c *ConstraintViolation) Result() float64 { return c.max }

func (c *ConstraintViolation) Reset() { c.max = 0 }
