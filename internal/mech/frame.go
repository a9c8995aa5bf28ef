package mech

// FrameID indexes the frame arena. Frames are stored parent-before-child, so
// a single forward pass evaluates the whole tree.
type FrameID int

// World is the root frame of every system.
const World FrameID = 0

// Frame is one node of the kinematic tree. The arena owns all frames; a
// frame refers to its parent by index only.
type Frame struct {
	name   string
	parent FrameID
	kind   TransformKind

	// varIdx is the driving configuration variable, or -1 when the
	// transform is constant at param (or at fixed for Fixed kind).
	varIdx int
	param  float64
	fixed  Transform

	mass    float64
	inertia [3]float64 // diagonal rotational inertia about the frame's own axes

	// affect lists, in root-to-leaf order, the variables that move this
	// frame. A parent's list is always a prefix of its children's.
	affect []int

	children []FrameID
}

func (f *Frame) Name() string           { return f.name }
func (f *Frame) Parent() FrameID        { return f.parent }
func (f *Frame) Kind() TransformKind    { return f.kind }
func (f *Frame) Mass() float64          { return f.mass }
func (f *Frame) Inertia() [3]float64    { return f.inertia }
func (f *Frame) Children() []FrameID    { return f.children }
func (f *Frame) ConfigVar() (int, bool) { return f.varIdx, f.varIdx >= 0 }

// Affects lists the configuration variables that move this frame, in
// root-to-leaf order. Callers must not modify the slice.
func (f *Frame) Affects() []int { return f.affect }

func (f *Frame) hasInertia() bool {
	return f.mass > 0 || f.inertia[0] > 0 || f.inertia[1] > 0 || f.inertia[2] > 0
}

// localAt builds the frame's local transform at configuration value x. For
// constant frames x is ignored.
func (f *Frame) localAt(x float64) Transform {
	if f.kind == Fixed {
		return f.fixed
	}
	if f.varIdx < 0 {
		return local(f.kind, f.param)
	}
	return local(f.kind, x)
}

func (f *Frame) localDerivAt(x float64, order int) Transform {
	return localDeriv(f.kind, x, order)
}
