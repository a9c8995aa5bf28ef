package force

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/varimech/internal/mech"
)

// Damping applies viscous friction F_k = −c_k·v_k to configuration
// variables. A uniform coefficient covers every variable; per-variable
// coefficients override it where set.
type Damping struct {
	name    string
	uniform float64
	perVar  map[string]float64

	coeff []float64
}

// NewDamping applies coefficient c to every configuration variable.
func NewDamping(name string, c float64) *Damping {
	return &Damping{name: name, uniform: c}
}

// NewDampingMap applies per-variable coefficients; unnamed variables are
// undamped. Variable names resolve at Bind.
func NewDampingMap(name string, coeffs map[string]float64) *Damping {
	return &Damping{name: name, perVar: coeffs}
}

func (d *Damping) Name() string { return d.name }

func (d *Damping) Bind(sys *mech.System) error {
	if d.uniform < 0 {
		return fmt.Errorf("negative damping coefficient %g", d.uniform)
	}
	d.coeff = make([]float64, sys.NQ())
	for i := range d.coeff {
		d.coeff[i] = d.uniform
	}
	for name, c := range d.perVar {
		if c < 0 {
			return fmt.Errorf("negative damping coefficient %g for %q", c, name)
		}
		i, ok := sys.VarByName(name)
		if !ok {
			return fmt.Errorf("%w: variable %q", mech.ErrUnknownName, name)
		}
		d.coeff[i] = c
	}
	return nil
}

func (d *Damping) Apply(kin *mech.Kinematics, v, u []float64, t float64, dst []float64) {
	for k, c := range d.coeff {
		dst[k] -= c * v[k]
	}
}

func (d *Damping) AddJacQ(kin *mech.Kinematics, v, u []float64, t float64, dst *mat.Dense) {
}

func (d *Damping) AddJacV(kin *mech.Kinematics, v, u []float64, t float64, dst *mat.Dense) {
	for k, c := range d.coeff {
		dst.Set(k, k, dst.At(k, k)-c)
	}
}

func (d *Damping) AddJacU(kin *mech.Kinematics, v, u []float64, t float64, dst *mat.Dense) {
}
