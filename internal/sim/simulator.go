package sim

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/varimech/internal/mech"
	"github.com/san-kum/varimech/internal/varint"
)

// Simulator owns one system's trajectory: an append-only sequence of
// committed states fed by a variational stepper. The system stays mutable
// (forces and constraints may be swapped) until the first step freezes it;
// Reset unfreezes.
type Simulator struct {
	sys     *mech.System
	opt     varint.Options
	stepper *varint.Stepper // built lazily on the first step
	kin     *mech.Kinematics
	traj    []State

	lastBounds string
}

// New seeds a simulator at (q0, v0). The momentum carried by the trajectory
// is the dynamic part of M(q0)·v0.
func New(sys *mech.System, q0, v0 []float64, opt varint.Options) (*Simulator, error) {
	s := &Simulator{
		sys: sys,
		opt: opt,
		kin: sys.NewKinematics(),
	}
	st, err := s.initialState(q0, v0)
	if err != nil {
		return nil, err
	}
	s.traj = append(s.traj, st)
	return s, nil
}

func (s *Simulator) initialState(q0, v0 []float64) (State, error) {
	nq := s.sys.NQ()
	if len(q0) != nq || len(v0) != nq {
		return State{}, mech.ErrConfigDim
	}
	if err := s.kin.Set(q0); err != nil {
		return State{}, err
	}
	p0 := make([]float64, s.sys.ND())
	s.sys.Momentum(s.kin, v0, p0)

	st := State{
		T:   0,
		Q:   append([]float64(nil), q0...),
		P:   p0,
		V:   append([]float64(nil), v0...),
		Lam: make([]float64, s.sys.NC()),
	}
	s.warnBounds(st.Q)
	return st, nil
}

func (s *Simulator) System() *mech.System { return s.sys }

// Current returns the latest committed state.
func (s *Simulator) Current() State { return s.traj[len(s.traj)-1] }

// Trajectory returns the append-only history. The slice is a read-only view;
// it is invalidated by Reset.
func (s *Simulator) Trajectory() []State { return s.traj }

// Step advances by dt with zero inputs and held kinematic variables.
func (s *Simulator) Step(dt float64) (State, error) {
	return s.StepInput(dt, nil, nil)
}

// StepInput advances by dt under actuation u and prescribed kinematic
// positions rho. The first call freezes the system; a failed step leaves the
// trajectory unchanged.
func (s *Simulator) StepInput(dt float64, u, rho []float64) (State, error) {
	if s.stepper == nil {
		s.sys.Freeze()
		stepper, err := varint.New(s.sys, s.opt)
		if err != nil {
			s.sys.Unfreeze()
			return State{}, err
		}
		cur := s.Current()
		if err := stepper.Init(cur.T, cur.Q, cur.P, cur.Lam); err != nil {
			s.sys.Unfreeze()
			return State{}, err
		}
		s.stepper = stepper
	}

	res, err := s.stepper.StepInput(dt, u, rho)
	if err != nil {
		return State{}, err
	}

	st := State{
		T:    res.T,
		Q:    res.Q,
		P:    res.P,
		V:    res.V,
		Lam:  res.Lam,
		U:    append([]float64(nil), u...),
		Iter: res.Iters,
	}
	s.warnBounds(st.Q)
	s.traj = append(s.traj, st)
	return st, nil
}

// Reset discards the trajectory, reseeds at (q0, v0) and unfreezes the
// system so forces and constraints may be swapped again.
func (s *Simulator) Reset(q0, v0 []float64) error {
	st, err := s.initialState(q0, v0)
	if err != nil {
		return err
	}
	s.sys.Unfreeze()
	s.stepper = nil
	s.traj = []State{st}
	return nil
}

// Stats reports the Newton effort of the current stepper, zero before the
// first step.
func (s *Simulator) Stats() varint.Stats {
	if s.stepper == nil {
		return varint.Stats{}
	}
	return s.stepper.Stats()
}

// Linearize differentiates the last committed step. See varint.Linearize.
func (s *Simulator) Linearize() (*varint.Linearization, error) {
	if s.stepper == nil {
		return nil, fmt.Errorf("sim: no committed step to linearize")
	}
	return s.stepper.Linearize()
}

// Run advances until Duration in fixed Dt increments. The context is checked
// between steps only; a step in flight always completes or fails whole. A
// failed step aborts the run with the error wrapped by step index and time.
func (s *Simulator) Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	if cfg.Dt <= 0 {
		return nil, fmt.Errorf("sim: dt must be positive, got %g", cfg.Dt)
	}
	if cfg.Duration <= 0 {
		return nil, fmt.Errorf("sim: duration must be positive, got %g", cfg.Duration)
	}
	steps := int(cfg.Duration/cfg.Dt + 0.5)

	for _, m := range cfg.Metrics {
		m.Reset()
	}

	result := &Result{
		States:  make([]State, 0, steps+1),
		Metrics: make(map[string]float64),
	}
	cur := s.Current()
	result.States = append(result.States, cur)
	for _, m := range cfg.Metrics {
		m.Update(cur, 0)
	}

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		var u, rho []float64
		if cfg.Controller != nil {
			u, rho = cfg.Controller.Inputs(cur.T, cfg.Dt, cur)
		}

		st, err := s.StepInput(cfg.Dt, u, rho)
		if err != nil {
			return result, fmt.Errorf("sim: step %d at t=%.6f: %w", i, cur.T, err)
		}
		cur = st
		result.States = append(result.States, st)
		for _, m := range cfg.Metrics {
			m.Update(st, cfg.Dt)
		}
		for _, obs := range cfg.Observers {
			obs(st)
		}
	}

	for _, m := range cfg.Metrics {
		result.Metrics[m.Name()] = m.Result()
	}
	return result, nil
}

// warnBounds logs soft-bound violations once per change of the violating
// set, so a long excursion does not flood the log.
func (s *Simulator) warnBounds(q []float64) {
	names := s.sys.BoundsViolations(q)
	joined := strings.Join(names, ",")
	if joined == s.lastBounds {
		return
	}
	s.lastBounds = joined
	if len(names) > 0 {
		logrus.WithField("variables", names).Warn("configuration outside declared bounds")
	}
}
