package scenario

import (
	"github.com/san-kum/varimech/internal/force"
	"github.com/san-kum/varimech/internal/mech"
	"github.com/san-kum/varimech/internal/potential"
)

func init() {
	register(Scenario{
		Name:        "crane",
		Description: "kinematic trolley carrying a hanging load",
		Defaults: map[string]float64{
			"mass": 1, "length": 1, "theta0": 0, "omega0": 0, "damping": 0.05,
		},
		Build: buildCrane,
	})
	register(Scenario{
		Name:        "cartpole",
		Description: "force-actuated cart with an inverted pole",
		Defaults: map[string]float64{
			"cartmass": 1, "polemass": 0.2, "polelength": 0.5,
			"x0": 0, "theta0": 3.0, "vx0": 0, "omega0": 0,
		},
		Build: buildCartpole,
	})
}

// buildCrane prescribes the trolley position externally; a rho source (the
// control.Shuttle profile) drives it during runs.
func buildCrane(p map[string]float64) (*mech.System, []float64, []float64, error) {
	b := mech.NewBuilder()
	trolley := b.Frame(mech.World, mech.TransX, mech.KinVar("xt"), mech.Name("trolley"))
	j := b.Frame(trolley, mech.RotY, mech.Var("theta"), mech.Bounds(-1.2, 1.2))
	b.Frame(j, mech.Fixed, mech.Translate(0, 0, -p["length"]),
		mech.Name("load"), mech.Mass(p["mass"]))
	b.AddPotential(potential.NewGravity())
	if c := p["damping"]; c > 0 {
		b.AddForce(force.NewDampingMap("swing_drag", map[string]float64{"theta": c}))
	}

	sys, err := b.Build()
	if err != nil {
		return nil, nil, nil, err
	}
	q0 := []float64{p["theta0"], 0} // dynamic swing first, then trolley
	v0 := []float64{p["omega0"], 0}
	return sys, q0, v0, nil
}

func buildCartpole(p map[string]float64) (*mech.System, []float64, []float64, error) {
	b := mech.NewBuilder()
	cart := b.Frame(mech.World, mech.TransX, mech.Var("x"),
		mech.Name("cart"), mech.Mass(p["cartmass"]))
	j := b.Frame(cart, mech.RotY, mech.Var("theta"))
	b.Frame(j, mech.Fixed, mech.Translate(0, 0, -p["polelength"]),
		mech.Name("pole_tip"), mech.Mass(p["polemass"]))
	b.Input("force")
	b.AddPotential(potential.NewGravity())
	b.AddForce(force.NewConfigForce("push", "x", "force"))

	sys, err := b.Build()
	if err != nil {
		return nil, nil, nil, err
	}
	q0 := []float64{p["x0"], p["theta0"]}
	v0 := []float64{p["vx0"], p["omega0"]}
	return sys, q0, v0, nil
}
