package mech

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Potential is a conservative contribution to the Lagrangian. Derivatives
// are additive: implementations add into dst rather than overwrite, so the
// system can aggregate registrations in order.
type Potential interface {
	Name() string
	// Bind resolves names against the system. Called when the potential
	// is attached and again if it is replaced.
	Bind(sys *System) error
	Energy(kin *Kinematics) float64
	// AddDV adds ∂V/∂q into dst (length NQ).
	AddDV(kin *Kinematics, dst []float64)
	// AddD2V adds ∂²V/∂q∂q into dst (NQ×NQ).
	AddD2V(kin *Kinematics, dst *mat.Dense)
}

// Force is a non-conservative generalized force F(q, v, u, t). It enters the
// integrator through the discrete forcing terms rather than the Lagrangian.
type Force interface {
	Name() string
	Bind(sys *System) error
	// Apply adds the generalized force into dst (length NQ).
	Apply(kin *Kinematics, v, u []float64, t float64, dst []float64)
	AddJacQ(kin *Kinematics, v, u []float64, t float64, dst *mat.Dense)
	AddJacV(kin *Kinematics, v, u []float64, t float64, dst *mat.Dense)
	// AddJacU adds ∂F/∂u (NQ×NU), used by step linearization.
	AddJacU(kin *Kinematics, v, u []float64, t float64, dst *mat.Dense)
}

// Constraint is a holonomic constraint g(q)=0 enforced through Lagrange
// multipliers. Rows must be constant after Bind.
type Constraint interface {
	Name() string
	Bind(sys *System) error
	Rows() int
	// Eval writes g(q) into dst (length Rows).
	Eval(kin *Kinematics, dst []float64)
	// Jac writes ∂g/∂q into dst starting at the given row.
	Jac(kin *Kinematics, dst *mat.Dense, row int)
	// AddLamHess adds scale·Σ_a lam[a]·∂²g_a/∂q∂q into dst (NQ×NQ).
	AddLamHess(kin *Kinematics, lam []float64, scale float64, dst *mat.Dense)
}

// System is a finalized mechanical system: the frame tree, its configuration
// variables and input slots, and the registered potentials, forces, and
// constraints. The structure is immutable; registries may be mutated only
// while the system is unfrozen (before simulation starts or after a reset).
//
// A System carries no evaluation state. Kinematic caches are created per
// engine with NewKinematics, so independent simulations never share mutable
// state.
type System struct {
	frames  []Frame
	vars    []ConfigVar
	nd      int
	inputs  []string
	massive []FrameID

	potentials  []Potential
	forces      []Force
	constraints []Constraint
	nc          int

	frozen bool

	frameIdx map[string]FrameID
	varIdx   map[string]int
	inputIdx map[string]int
}

// NQ is the configuration dimension, ND its dynamic part, NK its kinematic
// part. NU counts input slots and NC stacked constraint rows.
func (s *System) NQ() int { return len(s.vars) }
func (s *System) ND() int { return s.nd }
func (s *System) NK() int { return len(s.vars) - s.nd }
func (s *System) NU() int { return len(s.inputs) }
func (s *System) NC() int { return s.nc }

// NumFrames returns the arena size including the world frame.
func (s *System) NumFrames() int { return len(s.frames) }

func (s *System) Frame(id FrameID) *Frame { return &s.frames[id] }

func (s *System) FrameByName(name string) (FrameID, bool) {
	id, ok := s.frameIdx[name]
	return id, ok
}

func (s *System) Var(i int) *ConfigVar { return &s.vars[i] }

func (s *System) VarByName(name string) (int, bool) {
	i, ok := s.varIdx[name]
	return i, ok
}

// VarNames returns the configuration variable names in vector order.
func (s *System) VarNames() []string {
	names := make([]string, len(s.vars))
	for i := range s.vars {
		names[i] = s.vars[i].name
	}
	return names
}

func (s *System) InputByName(name string) (int, bool) {
	i, ok := s.inputIdx[name]
	return i, ok
}

func (s *System) InputNames() []string {
	return append([]string(nil), s.inputs...)
}

// MassiveFrames lists the frames carrying mass or rotational inertia.
// Callers must not modify the slice.
func (s *System) MassiveFrames() []FrameID { return s.massive }

func (s *System) Potentials() []Potential   { return s.potentials }
func (s *System) Forces() []Force           { return s.forces }
func (s *System) Constraints() []Constraint { return s.constraints }

// Freeze forbids registry mutation. The state manager freezes the system on
// the first step and unfreezes it on reset, keeping integrator dimensions
// and cached structure valid for the whole trajectory.
func (s *System) Freeze()      { s.frozen = true }
func (s *System) Unfreeze()    { s.frozen = false }
func (s *System) Frozen() bool { return s.frozen }

// AddPotential binds and registers a potential.
func (s *System) AddPotential(p Potential) error {
	if s.frozen {
		return ErrFrozen
	}
	if err := s.checkRegistryName(p.Name()); err != nil {
		return err
	}
	if err := p.Bind(s); err != nil {
		return &BuildError{Detail: fmt.Sprintf("potential %q", p.Name()), Err: err}
	}
	s.potentials = append(s.potentials, p)
	return nil
}

// ReplacePotential swaps the named potential for another, rebinding it.
func (s *System) ReplacePotential(name string, p Potential) error {
	if s.frozen {
		return ErrFrozen
	}
	for i := range s.potentials {
		if s.potentials[i].Name() == name {
			if err := p.Bind(s); err != nil {
				return &BuildError{Detail: fmt.Sprintf("potential %q", p.Name()), Err: err}
			}
			s.potentials[i] = p
			return nil
		}
	}
	return fmt.Errorf("%w: potential %q", ErrUnknownName, name)
}

// AddForce binds and registers a force.
func (s *System) AddForce(f Force) error {
	if s.frozen {
		return ErrFrozen
	}
	if err := s.checkRegistryName(f.Name()); err != nil {
		return err
	}
	if err := f.Bind(s); err != nil {
		return &BuildError{Detail: fmt.Sprintf("force %q", f.Name()), Err: err}
	}
	s.forces = append(s.forces, f)
	return nil
}

// ReplaceForce swaps the named force for another, rebinding it.
func (s *System) ReplaceForce(name string, f Force) error {
	if s.frozen {
		return ErrFrozen
	}
	for i := range s.forces {
		if s.forces[i].Name() == name {
			if err := f.Bind(s); err != nil {
				return &BuildError{Detail: fmt.Sprintf("force %q", f.Name()), Err: err}
			}
			s.forces[i] = f
			return nil
		}
	}
	return fmt.Errorf("%w: force %q", ErrUnknownName, name)
}

// AddConstraint binds and registers a constraint. Total constraint rows may
// never exceed the dynamic dimension: more rows than unknowns is an
// over-constrained system, rejected here rather than at step time.
func (s *System) AddConstraint(c Constraint) error {
	if s.frozen {
		return ErrFrozen
	}
	if err := s.checkRegistryName(c.Name()); err != nil {
		return err
	}
	if err := c.Bind(s); err != nil {
		return &BuildError{Detail: fmt.Sprintf("constraint %q", c.Name()), Err: err}
	}
	if s.nc+c.Rows() > s.nd {
		return buildErrf("over-constrained: %d constraint rows for %d dynamic variables",
			s.nc+c.Rows(), s.nd)
	}
	s.constraints = append(s.constraints, c)
	s.nc += c.Rows()
	return nil
}

// ReplaceConstraint swaps the named constraint for another, rebinding it and
// revalidating the row budget.
func (s *System) ReplaceConstraint(name string, c Constraint) error {
	if s.frozen {
		return ErrFrozen
	}
	for i := range s.constraints {
		if s.constraints[i].Name() == name {
			if err := c.Bind(s); err != nil {
				return &BuildError{Detail: fmt.Sprintf("constraint %q", c.Name()), Err: err}
			}
			newRows := s.nc - s.constraints[i].Rows() + c.Rows()
			if newRows > s.nd {
				return buildErrf("over-constrained: %d constraint rows for %d dynamic variables",
					newRows, s.nd)
			}
			s.constraints[i] = c
			s.nc = newRows
			return nil
		}
	}
	return fmt.Errorf("%w: constraint %q", ErrUnknownName, name)
}

func (s *System) checkRegistryName(name string) error {
	if name == "" {
		return buildErrf("empty registry name")
	}
	for _, p := range s.potentials {
		if p.Name() == name {
			return buildErrf("duplicate registry name %q", name)
		}
	}
	for _, f := range s.forces {
		if f.Name() == name {
			return buildErrf("duplicate registry name %q", name)
		}
	}
	for _, c := range s.constraints {
		if c.Name() == name {
			return buildErrf("duplicate registry name %q", name)
		}
	}
	return nil
}

// BoundsViolations returns the names of variables whose values fall outside
// their advisory bounds. Bounds never clamp; callers decide what to do.
func (s *System) BoundsViolations(q []float64) []string {
	var out []string
	for i := range s.vars {
		if i < len(q) && !s.vars[i].InRange(q[i]) {
			out = append(out, s.vars[i].name)
		}
	}
	return out
}
