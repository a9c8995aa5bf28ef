package force

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/varimech/internal/mech"
)

// FramePoint applies a world-frame force vector at a frame origin. The
// generalized force is the force dotted with the frame's position Jacobian,
// F_k = f⃗(t)·∂p/∂q_k. A nil function means the constant vector.
type FramePoint struct {
	name      string
	frameName string
	vec       [3]float64
	fn        func(t float64) [3]float64
	id        mech.FrameID
}

// NewFramePoint applies the constant world-frame vector f at the named
// frame's origin.
func NewFramePoint(name, frame string, f [3]float64) *FramePoint {
	return &FramePoint{name: name, frameName: frame, vec: f}
}

// NewFramePointFunc applies a time-varying world-frame vector at the named
// frame's origin.
func NewFramePointFunc(name, frame string, fn func(t float64) [3]float64) *FramePoint {
	return &FramePoint{name: name, frameName: frame, fn: fn}
}

func (f *FramePoint) Name() string { return f.name }

func (f *FramePoint) Bind(sys *mech.System) error {
	id, ok := sys.FrameByName(f.frameName)
	if !ok {
		return fmt.Errorf("%w: frame %q", mech.ErrUnknownName, f.frameName)
	}
	f.id = id
	return nil
}

func (f *FramePoint) at(t float64) [3]float64 {
	if f.fn != nil {
		return f.fn(t)
	}
	return f.vec
}

func (f *FramePoint) Apply(kin *mech.Kinematics, v, u []float64, t float64, dst []float64) {
	fv := f.at(t)
	for i, k := range kin.Affects(f.id) {
		d := kin.DPosAt(f.id, i)
		dst[k] += fv[0]*d[0] + fv[1]*d[1] + fv[2]*d[2]
	}
}

func (f *FramePoint) AddJacQ(kin *mech.Kinematics, v, u []float64, t float64, dst *mat.Dense) {
	fv := f.at(t)
	aff := kin.Affects(f.id)
	for i, k := range aff {
		for j, l := range aff {
			d := kin.D2PosAt(f.id, i, j)
			dst.Set(k, l, dst.At(k, l)+fv[0]*d[0]+fv[1]*d[1]+fv[2]*d[2])
		}
	}
}

func (f *FramePoint) AddJacV(kin *mech.Kinematics, v, u []float64, t float64, dst *mat.Dense) {
}

func (f *FramePoint) AddJacU(kin *mech.Kinematics, v, u []float64, t float64, dst *mat.Dense) {
}
