package constraint

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/varimech/internal/mech"
)

// Distance holds two frame origins at a fixed separation d. The residual is
// the quadratic form g = ½(‖Δp‖²−d²), which keeps the Jacobian polynomial
// in the configuration; |g| ≤ tol bounds the distance error by tol/d.
type Distance struct {
	name   string
	nameA  string
	nameB  string
	D      float64
	a, b   mech.FrameID
	affect []int
	sys    *mech.System
}

// NewDistance constrains the named frame origins to separation d. Frame
// names resolve at Bind.
func NewDistance(name, frameA, frameB string, d float64) *Distance {
	return &Distance{name: name, nameA: frameA, nameB: frameB, D: d}
}

func (c *Distance) Name() string { return c.name }
func (c *Distance) Rows() int    { return 1 }

func (c *Distance) Bind(sys *mech.System) error {
	if c.D <= 0 {
		return fmt.Errorf("distance must be positive, got %g", c.D)
	}
	a, ok := sys.FrameByName(c.nameA)
	if !ok {
		return fmt.Errorf("%w: frame %q", mech.ErrUnknownName, c.nameA)
	}
	b, ok := sys.FrameByName(c.nameB)
	if !ok {
		return fmt.Errorf("%w: frame %q", mech.ErrUnknownName, c.nameB)
	}
	if a == b {
		return fmt.Errorf("constraint endpoints are the same frame %q", c.nameA)
	}
	c.a, c.b, c.sys = a, b, sys
	c.affect = affectUnion(sys.Frame(a).Affects(), sys.Frame(b).Affects())
	return nil
}

func (c *Distance) delta(kin *mech.Kinematics) [3]float64 {
	pa, pb := kin.Pos(c.a), kin.Pos(c.b)
	return [3]float64{pa[0] - pb[0], pa[1] - pb[1], pa[2] - pb[2]}
}

func (c *Distance) deltaD(kin *mech.Kinematics, k int) [3]float64 {
	da, db := kin.DPos(c.a, k), kin.DPos(c.b, k)
	return [3]float64{da[0] - db[0], da[1] - db[1], da[2] - db[2]}
}

func (c *Distance) deltaD2(kin *mech.Kinematics, k, l int) [3]float64 {
	da, db := kin.D2Pos(c.a, k, l), kin.D2Pos(c.b, k, l)
	return [3]float64{da[0] - db[0], da[1] - db[1], da[2] - db[2]}
}

func (c *Distance) Eval(kin *mech.Kinematics, dst []float64) {
	d := c.delta(kin)
	dst[0] = 0.5 * (dot(d, d) - c.D*c.D)
}

func (c *Distance) Jac(kin *mech.Kinematics, dst *mat.Dense, row int) {
	d := c.delta(kin)
	for _, k := range c.affect {
		dst.Set(row, k, dot(d, c.deltaD(kin, k)))
	}
}

func (c *Distance) AddLamHess(kin *mech.Kinematics, lam []float64, scale float64, dst *mat.Dense) {
	w := scale * lam[0]
	if w == 0 {
		return
	}
	d := c.delta(kin)
	for _, k := range c.affect {
		dk := c.deltaD(kin, k)
		for _, l := range c.affect {
			h := dot(dk, c.deltaD(kin, l)) + dot(d, c.deltaD2(kin, k, l))
			dst.Set(k, l, dst.At(k, l)+w*h)
		}
	}
}
