package constraint

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/varimech/internal/mech"
)

// PointOnPlane confines a frame origin to the plane through r0 with unit
// normal n̂: g = n̂·(p−r0). Two of these on the same frame pin it to a line,
// the usual way to close a planar loop.
type PointOnPlane struct {
	name      string
	frameName string
	n         [3]float64
	r0        [3]float64
	id        mech.FrameID
}

// NewPointOnPlane constrains the named frame's origin to the plane with
// normal n through point r0. n is normalized at Bind; a zero normal fails.
func NewPointOnPlane(name, frame string, n, r0 [3]float64) *PointOnPlane {
	return &PointOnPlane{name: name, frameName: frame, n: n, r0: r0}
}

func (c *PointOnPlane) Name() string { return c.name }
func (c *PointOnPlane) Rows() int    { return 1 }

func (c *PointOnPlane) Bind(sys *mech.System) error {
	id, ok := sys.FrameByName(c.frameName)
	if !ok {
		return fmt.Errorf("%w: frame %q", mech.ErrUnknownName, c.frameName)
	}
	norm := math.Sqrt(dot(c.n, c.n))
	if norm == 0 {
		return fmt.Errorf("zero plane normal")
	}
	for i := range c.n {
		c.n[i] /= norm
	}
	c.id = id
	return nil
}

func (c *PointOnPlane) Eval(kin *mech.Kinematics, dst []float64) {
	p := kin.Pos(c.id)
	dst[0] = c.n[0]*(p[0]-c.r0[0]) + c.n[1]*(p[1]-c.r0[1]) + c.n[2]*(p[2]-c.r0[2])
}

func (c *PointOnPlane) Jac(kin *mech.Kinematics, dst *mat.Dense, row int) {
	for i, k := range kin.Affects(c.id) {
		dst.Set(row, k, dot(c.n, kin.DPosAt(c.id, i)))
	}
}

func (c *PointOnPlane) AddLamHess(kin *mech.Kinematics, lam []float64, scale float64, dst *mat.Dense) {
	w := scale * lam[0]
	if w == 0 {
		return
	}
	aff := kin.Affects(c.id)
	for i, k := range aff {
		for j, l := range aff {
			dst.Set(k, l, dst.At(k, l)+w*dot(c.n, kin.D2PosAt(c.id, i, j)))
		}
	}
}

func dot(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

// affectUnion merges two affect lists into one sorted, deduplicated list.
func affectUnion(a, b []int) []int {
	seen := make(map[int]struct{}, len(a)+len(b))
	out := make([]int, 0, len(a)+len(b))
	for _, k := range a {
		if _, dup := seen[k]; !dup {
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	for _, k := range b {
		if _, dup := seen[k]; !dup {
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	sort.Ints(out)
	return out
}
