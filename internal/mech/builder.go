package mech

import (
	"fmt"
	"math"
)

// Builder accumulates the description of a system: the frame tree, its
// configuration variables and input slots, and the registered potentials,
// forces, and constraints. Build validates the whole description at once.
type Builder struct {
	frames []Frame
	vars   []ConfigVar
	inputs []string

	potentials  []Potential
	forces      []Force
	constraints []Constraint

	err error
}

// NewBuilder starts a description with the world frame already present.
func NewBuilder() *Builder {
	return &Builder{
		frames: []Frame{{
			name:   "world",
			parent: -1,
			kind:   Fixed,
			varIdx: -1,
			fixed:  Identity(),
		}},
	}
}

type frameSpec struct {
	name      string
	varName   string
	varKind   VarKind
	hasVar    bool
	param     float64
	hasParam  bool
	lo, hi    float64
	hasBounds bool
	mass      float64
	inertia   [3]float64
	trans     [3]float64
	rpy       [3]float64
}

// FrameOption configures one frame declaration.
type FrameOption func(*frameSpec)

// Var drives the frame's transform with a new dynamic configuration variable.
func Var(name string) FrameOption {
	return func(s *frameSpec) { s.varName, s.varKind, s.hasVar = name, Dynamic, true }
}

// KinVar drives the frame's transform with a new kinematic configuration
// variable, prescribed externally each step.
func KinVar(name string) FrameOption {
	return func(s *frameSpec) { s.varName, s.varKind, s.hasVar = name, Kinematic, true }
}

// Bounds declares an advisory range for the frame's configuration variable.
func Bounds(lo, hi float64) FrameOption {
	return func(s *frameSpec) { s.lo, s.hi, s.hasBounds = lo, hi, true }
}

// Const fixes the frame's transform parameter.
func Const(x float64) FrameOption {
	return func(s *frameSpec) { s.param, s.hasParam = x, true }
}

// Name overrides the generated frame name.
func Name(name string) FrameOption {
	return func(s *frameSpec) { s.name = name }
}

// Mass places a point mass at the frame origin.
func Mass(m float64) FrameOption {
	return func(s *frameSpec) { s.mass = m }
}

// Inertia adds diagonal rotational inertia about the frame's own axes.
func Inertia(ixx, iyy, izz float64) FrameOption {
	return func(s *frameSpec) { s.inertia = [3]float64{ixx, iyy, izz} }
}

// Translate sets the offset of a Fixed frame.
func Translate(x, y, z float64) FrameOption {
	return func(s *frameSpec) { s.trans = [3]float64{x, y, z} }
}

// Rotate sets the fixed-axis roll/pitch/yaw of a Fixed frame.
func Rotate(roll, pitch, yaw float64) FrameOption {
	return func(s *frameSpec) { s.rpy = [3]float64{roll, pitch, yaw} }
}

// Frame declares a frame attached to parent by the given elementary
// transform and returns its ID. Declaration errors surface at Build.
func (b *Builder) Frame(parent FrameID, kind TransformKind, opts ...FrameOption) FrameID {
	id := FrameID(len(b.frames))
	var spec frameSpec
	for _, opt := range opts {
		opt(&spec)
	}
	if spec.name == "" {
		spec.name = fmt.Sprintf("%s%d", kind, id)
	}

	switch {
	case int(parent) < 0 || int(parent) >= len(b.frames):
		b.fail("frame %q: parent %d does not exist", spec.name, parent)
	case kind == Fixed && spec.hasVar:
		b.fail("frame %q: a Fixed frame cannot be variable-driven", spec.name)
	case kind != Fixed && spec.hasVar && spec.hasParam:
		b.fail("frame %q: Var and Const are mutually exclusive", spec.name)
	case kind != Fixed && !spec.hasVar && !spec.hasParam:
		b.fail("frame %q: needs Var, KinVar, or Const", spec.name)
	case spec.mass < 0:
		b.fail("frame %q: negative mass", spec.name)
	case spec.inertia[0] < 0 || spec.inertia[1] < 0 || spec.inertia[2] < 0:
		b.fail("frame %q: negative inertia", spec.name)
	case spec.hasBounds && !spec.hasVar:
		b.fail("frame %q: Bounds requires a configuration variable", spec.name)
	case spec.hasBounds && spec.lo > spec.hi:
		b.fail("frame %q: bounds lo > hi", spec.name)
	}

	f := Frame{
		name:    spec.name,
		parent:  parent,
		kind:    kind,
		varIdx:  -1,
		param:   spec.param,
		mass:    spec.mass,
		inertia: spec.inertia,
	}
	if kind == Fixed {
		rot := RPY(spec.rpy[0], spec.rpy[1], spec.rpy[2])
		rot.P = spec.trans
		f.fixed = rot
	}
	if spec.hasVar {
		lo, hi := math.Inf(-1), math.Inf(1)
		if spec.hasBounds {
			lo, hi = spec.lo, spec.hi
		}
		f.varIdx = len(b.vars)
		b.vars = append(b.vars, ConfigVar{
			name:  spec.varName,
			kind:  spec.varKind,
			frame: id,
			lo:    lo,
			hi:    hi,
		})
	}
	b.frames = append(b.frames, f)
	return id
}

// Input registers an actuation input slot and returns its index.
func (b *Builder) Input(name string) int {
	b.inputs = append(b.inputs, name)
	return len(b.inputs) - 1
}

// AddPotential registers a conservative potential.
func (b *Builder) AddPotential(p Potential) { b.potentials = append(b.potentials, p) }

// AddForce registers a non-conservative generalized force.
func (b *Builder) AddForce(f Force) { b.forces = append(b.forces, f) }

// AddConstraint registers a holonomic constraint.
func (b *Builder) AddConstraint(c Constraint) { b.constraints = append(b.constraints, c) }

func (b *Builder) fail(format string, args ...any) {
	if b.err == nil {
		b.err = buildErrf(format, args...)
	}
}

// Build validates the description and produces an immutable System. The
// configuration order is fixed here: dynamic variables in declaration order,
// then kinematic variables in declaration order.
func (b *Builder) Build() (*System, error) {
	if b.err != nil {
		return nil, b.err
	}

	// Reorder variables dynamic-first and rewrite frame references.
	remap := make([]int, len(b.vars))
	vars := make([]ConfigVar, 0, len(b.vars))
	nd := 0
	for i := range b.vars {
		if b.vars[i].kind == Dynamic {
			remap[i] = len(vars)
			vars = append(vars, b.vars[i])
			nd++
		}
	}
	for i := range b.vars {
		if b.vars[i].kind == Kinematic {
			remap[i] = len(vars)
			vars = append(vars, b.vars[i])
		}
	}

	frames := make([]Frame, len(b.frames))
	copy(frames, b.frames)
	for i := range frames {
		if frames[i].varIdx >= 0 {
			frames[i].varIdx = remap[frames[i].varIdx]
		}
	}

	sys := &System{
		frames:   frames,
		vars:     vars,
		nd:       nd,
		inputs:   append([]string(nil), b.inputs...),
		frameIdx: make(map[string]FrameID, len(frames)),
		varIdx:   make(map[string]int, len(vars)),
		inputIdx: make(map[string]int, len(b.inputs)),
	}

	for i := range frames {
		f := &sys.frames[i]
		if _, dup := sys.frameIdx[f.name]; dup {
			return nil, buildErrf("duplicate frame name %q", f.name)
		}
		sys.frameIdx[f.name] = FrameID(i)
		if i > 0 {
			parent := &sys.frames[f.parent]
			parent.children = append(parent.children, FrameID(i))
			f.affect = parent.affect
			if f.varIdx >= 0 {
				f.affect = append(append([]int(nil), parent.affect...), f.varIdx)
			}
		}
		if f.hasInertia() {
			sys.massive = append(sys.massive, FrameID(i))
		}
	}

	for i := range vars {
		v := &vars[i]
		if v.name == "" {
			return nil, buildErrf("frame %q: empty variable name", sys.frames[v.frame].name)
		}
		if _, dup := sys.varIdx[v.name]; dup {
			return nil, buildErrf("duplicate variable name %q", v.name)
		}
		sys.varIdx[v.name] = i
	}

	for i, name := range sys.inputs {
		if name == "" {
			return nil, buildErrf("input %d: empty name", i)
		}
		if _, dup := sys.inputIdx[name]; dup {
			return nil, buildErrf("duplicate input name %q", name)
		}
		sys.inputIdx[name] = i
	}

	// Every dynamic variable must move some inertia, or the mass matrix
	// has a structurally zero row.
	for k := 0; k < nd; k++ {
		found := false
		for _, id := range sys.massive {
			for _, a := range sys.frames[id].affect {
				if a == k {
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return nil, buildErrf("dynamic variable %q drives no inertia", vars[k].name)
		}
	}

	for _, p := range b.potentials {
		if err := sys.AddPotential(p); err != nil {
			return nil, err
		}
	}
	for _, f := range b.forces {
		if err := sys.AddForce(f); err != nil {
			return nil, err
		}
	}
	for _, c := range b.constraints {
		if err := sys.AddConstraint(c); err != nil {
			return nil, err
		}
	}

	return sys, nil
}
