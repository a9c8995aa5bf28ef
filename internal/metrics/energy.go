// Package metrics implements per-run scalar metrics for simulation runs.
// Each metric owns its evaluation scratch, so one instance per concurrent
// run.
package metrics

import (
	"math"

	"github.com/san-kum/varimech/internal/mech"
	"github.com/san-kum/varimech/internal/sim"
)

// EnergyDrift tracks the peak |E − E0| over a run, with the energy
// recovered from (q, p) rather than finite-differenced velocities. For a
// variational integrator this stays bounded; growth signals a modeling or
// tolerance problem.
type EnergyDrift struct {
	sys     *mech.System
	kin     *mech.Kinematics
	vkin    []float64
	initial float64
	max     float64
	seeded  bool
}

func NewEnergyDrift(sys *mech.System) *EnergyDrift {
	return &EnergyDrift{
		sys:  sys,
		kin:  sys.NewKinematics(),
		vkin: make([]float64, sys.NK()),
	}
}

func (e *EnergyDrift) Name() string { return "energy_drift" }

func (e *EnergyDrift) Update(s sim.State, dt float64) {
	if err := e.kin.Set(s.Q); err != nil {
		return
	}
	nd := e.sys.ND()
	copy(e.vkin, s.V[nd:])
	energy, err := e.sys.EnergyQP(e.kin, s.P, e.vkin)
	if err != nil {
		return
	}
	if !e.seeded {
		e.initial = energy
		e.seeded = true
		return
	}
	if d := math.Abs(energy - e.initial); d > e.max {
		e.max = d
	}
}

func (e *EnergyDrift) Result() float64 { return e.max }

func (e *EnergyDrift) Reset() {
	e.initial = 0
	e.max = 0
	e.seeded = false
}
