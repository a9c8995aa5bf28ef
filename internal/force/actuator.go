package force

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/varimech/internal/mech"
)

// ConfigForce is an actuator: it applies the value of one input slot as a
// generalized force on one configuration variable, F_i = u[slot].
type ConfigForce struct {
	name    string
	varName string
	input   string
	idx     int
	slot    int
}

// NewConfigForce drives the named configuration variable from the named
// input slot. Both names resolve at Bind.
func NewConfigForce(name, varName, input string) *ConfigForce {
	return &ConfigForce{name: name, varName: varName, input: input, idx: -1, slot: -1}
}

func (f *ConfigForce) Name() string { return f.name }

func (f *ConfigForce) Bind(sys *mech.System) error {
	i, ok := sys.VarByName(f.varName)
	if !ok {
		return fmt.Errorf("%w: variable %q", mech.ErrUnknownName, f.varName)
	}
	s, ok := sys.InputByName(f.input)
	if !ok {
		return fmt.Errorf("%w: input %q", mech.ErrUnknownName, f.input)
	}
	f.idx, f.slot = i, s
	return nil
}

func (f *ConfigForce) Apply(kin *mech.Kinematics, v, u []float64, t float64, dst []float64) {
	if f.slot < len(u) {
		dst[f.idx] += u[f.slot]
	}
}

func (f *ConfigForce) AddJacQ(kin *mech.Kinematics, v, u []float64, t float64, dst *mat.Dense) {
}

func (f *ConfigForce) AddJacV(kin *mech.Kinematics, v, u []float64, t float64, dst *mat.Dense) {
}

func (f *ConfigForce) AddJacU(kin *mech.Kinematics, v, u []float64, t float64, dst *mat.Dense) {
	dst.Set(f.idx, f.slot, dst.At(f.idx, f.slot)+1)
}
