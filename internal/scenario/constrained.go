package scenario

import (
	"github.com/san-kum/varimech/internal/constraint"
	"github.com/san-kum/varimech/internal/mech"
	"github.com/san-kum/varimech/internal/potential"
)

func init() {
	register(Scenario{
		Name:        "linked-masses",
		Description: "two free point masses joined by a rigid rod",
		Defaults: map[string]float64{
			"m1": 1, "m2": 1, "distance": 1, "spin": 1,
		},
		Build: buildLinkedMasses,
	})
	register(Scenario{
		Name:        "fourbar",
		Description: "parallelogram four-bar linkage, loop closed by constraints",
		Defaults: map[string]float64{
			"m1": 1, "m2": 2, "m3": 1, "theta0": 0.3, "omega0": 0,
		},
		Build: buildFourbar,
	})
}

func buildLinkedMasses(p map[string]float64) (*mech.System, []float64, []float64, error) {
	d := p["distance"]

	b := mech.NewBuilder()
	x1 := b.Frame(mech.World, mech.TransX, mech.Var("x1"))
	y1 := b.Frame(x1, mech.TransY, mech.Var("y1"))
	b.Frame(y1, mech.TransZ, mech.Var("z1"), mech.Name("m1"), mech.Mass(p["m1"]))
	x2 := b.Frame(mech.World, mech.TransX, mech.Var("x2"))
	y2 := b.Frame(x2, mech.TransY, mech.Var("y2"))
	b.Frame(y2, mech.TransZ, mech.Var("z2"), mech.Name("m2"), mech.Mass(p["m2"]))
	b.AddConstraint(constraint.NewDistance("rod", "m1", "m2", d))
	b.AddPotential(potential.NewGravity())

	sys, err := b.Build()
	if err != nil {
		return nil, nil, nil, err
	}
	q0 := []float64{0, 0, 0, d, 0, 0}
	// Tangential spin of m2 about m1 keeps v0 on the constraint manifold.
	v0 := []float64{0, 0, 0, 0, p["spin"], 0}
	return sys, q0, v0, nil
}

// buildFourbar closes a crank–coupler–rocker chain onto a ground anchor at
// (2,0,0) with two plane constraints on the rocker tip. The parallelogram
// geometry (crank and rocker of length 1, coupler of length 2) admits the
// closed-form consistent state q = (θ, −θ, θ), v = ω(1, −1, 1).
func buildFourbar(p map[string]float64) (*mech.System, []float64, []float64, error) {
	b := mech.NewBuilder()
	j1 := b.Frame(mech.World, mech.RotY, mech.Var("theta1"))
	crankEnd := b.Frame(j1, mech.Fixed, mech.Translate(0, 0, -1),
		mech.Name("crank_tip"), mech.Mass(p["m1"]))
	j2 := b.Frame(crankEnd, mech.RotY, mech.Var("theta2"))
	b.Frame(j2, mech.Fixed, mech.Translate(1, 0, 0),
		mech.Name("coupler_mid"), mech.Mass(p["m2"]))
	couplerEnd := b.Frame(j2, mech.Fixed, mech.Translate(2, 0, 0), mech.Name("coupler_end"))
	j3 := b.Frame(couplerEnd, mech.RotY, mech.Var("theta3"))
	b.Frame(j3, mech.Fixed, mech.Translate(0, 0, 0.5),
		mech.Name("rocker_mid"), mech.Mass(p["m3"]))
	b.Frame(j3, mech.Fixed, mech.Translate(0, 0, 1), mech.Name("rocker_tip"))

	b.AddConstraint(constraint.NewPointOnPlane("close_x", "rocker_tip",
		[3]float64{1, 0, 0}, [3]float64{2, 0, 0}))
	b.AddConstraint(constraint.NewPointOnPlane("close_z", "rocker_tip",
		[3]float64{0, 0, 1}, [3]float64{2, 0, 0}))
	b.AddPotential(potential.NewGravity())

	sys, err := b.Build()
	if err != nil {
		return nil, nil, nil, err
	}
	th, om := p["theta0"], p["omega0"]
	q0 := []float64{th, -th, th}
	v0 := []float64{om, -om, om}
	return sys, q0, v0, nil
}
