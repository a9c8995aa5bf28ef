package mech

import "math"

// VarKind splits the configuration vector. Dynamic variables are solved by
// the integrator; kinematic variables are prescribed externally each step.
type VarKind int

const (
	Dynamic VarKind = iota
	Kinematic
)

func (k VarKind) String() string {
	if k == Kinematic {
		return "kinematic"
	}
	return "dynamic"
}

// ConfigVar is one scalar degree of freedom. The ordered set of ConfigVars
// forms the configuration vector; the order is fixed at build time with
// dynamic variables first.
type ConfigVar struct {
	name  string
	kind  VarKind
	frame FrameID

	// Advisory range. Violations are reported, never clamped.
	lo, hi float64
}

func (v *ConfigVar) Name() string   { return v.name }
func (v *ConfigVar) Kind() VarKind  { return v.kind }
func (v *ConfigVar) Frame() FrameID { return v.frame }

// Bounds returns the advisory range and whether one was declared.
func (v *ConfigVar) Bounds() (lo, hi float64, ok bool) {
	return v.lo, v.hi, !math.IsInf(v.lo, -1) || !math.IsInf(v.hi, 1)
}

// InRange reports whether x respects the declared bounds.
func (v *ConfigVar) InRange(x float64) bool {
	return x >= v.lo && x <= v.hi
}
