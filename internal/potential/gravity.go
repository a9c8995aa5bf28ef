package potential

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/varimech/internal/mech"
)

// Gravity is a uniform field g⃗ with V = −Σ mᵢ g⃗·pᵢ over every point mass.
type Gravity struct {
	name string
	g    [3]float64
	sys  *mech.System
}

// NewGravity returns the standard field, −9.81 along world z.
func NewGravity() *Gravity {
	return NewGravityVec([3]float64{0, 0, -9.81})
}

// NewGravityVec returns a uniform field with the given acceleration vector.
func NewGravityVec(g [3]float64) *Gravity {
	return &Gravity{name: "gravity", g: g}
}

func (p *Gravity) Name() string { return p.name }

func (p *Gravity) Bind(sys *mech.System) error {
	p.sys = sys
	return nil
}

func (p *Gravity) Energy(kin *mech.Kinematics) float64 {
	total := 0.0
	for _, id := range p.sys.MassiveFrames() {
		f := p.sys.Frame(id)
		if f.Mass() == 0 {
			continue
		}
		total -= f.Mass() * dot(p.g, kin.Pos(id))
	}
	return total
}

func (p *Gravity) AddDV(kin *mech.Kinematics, dst []float64) {
	for _, id := range p.sys.MassiveFrames() {
		f := p.sys.Frame(id)
		if f.Mass() == 0 {
			continue
		}
		for i, k := range f.Affects() {
			dst[k] -= f.Mass() * dot(p.g, kin.DPosAt(id, i))
		}
	}
}

func (p *Gravity) AddD2V(kin *mech.Kinematics, dst *mat.Dense) {
	for _, id := range p.sys.MassiveFrames() {
		f := p.sys.Frame(id)
		if f.Mass() == 0 {
			continue
		}
		aff := f.Affects()
		for i, k := range aff {
			for j, l := range aff {
				d := f.Mass() * dot(p.g, kin.D2PosAt(id, i, j))
				dst.Set(k, l, dst.At(k, l)-d)
			}
		}
	}
}

func dot(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}
