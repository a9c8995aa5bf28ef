package scenario

import (
	"github.com/san-kum/varimech/internal/force"
	"github.com/san-kum/varimech/internal/mech"
	"github.com/san-kum/varimech/internal/potential"
)

func init() {
	register(Scenario{
		Name:        "pendulum",
		Description: "single rigid pendulum under gravity",
		Defaults: map[string]float64{
			"mass": 1, "length": 1, "theta0": 0.1, "omega0": 0, "damping": 0,
		},
		Build: buildPendulum,
	})
	register(Scenario{
		Name:        "double-pendulum",
		Description: "two uniform rods, chaotic for large angles",
		Defaults: map[string]float64{
			"m1": 1, "m2": 1, "l1": 1, "l2": 1,
			"theta1": 0.5, "theta2": 0, "omega1": 0, "omega2": 0,
		},
		Build: buildDoublePendulum,
	})
	register(Scenario{
		Name:        "spring-mass",
		Description: "vertical mass on a linear spring",
		Defaults: map[string]float64{
			"mass": 1, "stiffness": 25, "rest": 0, "z0": 0.5, "vz0": 0, "damping": 0,
		},
		Build: buildSpringMass,
	})
}

func buildPendulum(p map[string]float64) (*mech.System, []float64, []float64, error) {
	b := mech.NewBuilder()
	j := b.Frame(mech.World, mech.RotY, mech.Var("theta"))
	b.Frame(j, mech.Fixed, mech.Translate(0, 0, -p["length"]),
		mech.Name("bob"), mech.Mass(p["mass"]))
	b.AddPotential(potential.NewGravity())
	if c := p["damping"]; c > 0 {
		b.AddForce(force.NewDamping("drag", c))
	}

	sys, err := b.Build()
	if err != nil {
		return nil, nil, nil, err
	}
	return sys, []float64{p["theta0"]}, []float64{p["omega0"]}, nil
}

// buildDoublePendulum models each link as a uniform rod: point mass at the
// center plus Iyy = m·l²/12 about it.
func buildDoublePendulum(p map[string]float64) (*mech.System, []float64, []float64, error) {
	m1, m2 := p["m1"], p["m2"]
	l1, l2 := p["l1"], p["l2"]

	b := mech.NewBuilder()
	j1 := b.Frame(mech.World, mech.RotY, mech.Var("theta1"))
	b.Frame(j1, mech.Fixed, mech.Translate(0, 0, -l1/2),
		mech.Name("rod1"), mech.Mass(m1), mech.Inertia(0, m1*l1*l1/12, 0))
	e1 := b.Frame(j1, mech.Fixed, mech.Translate(0, 0, -l1), mech.Name("elbow"))
	j2 := b.Frame(e1, mech.RotY, mech.Var("theta2"))
	b.Frame(j2, mech.Fixed, mech.Translate(0, 0, -l2/2),
		mech.Name("rod2"), mech.Mass(m2), mech.Inertia(0, m2*l2*l2/12, 0))
	b.AddPotential(potential.NewGravity())

	sys, err := b.Build()
	if err != nil {
		return nil, nil, nil, err
	}
	q0 := []float64{p["theta1"], p["theta2"]}
	v0 := []float64{p["omega1"], p["omega2"]}
	return sys, q0, v0, nil
}

func buildSpringMass(p map[string]float64) (*mech.System, []float64, []float64, error) {
	b := mech.NewBuilder()
	b.Frame(mech.World, mech.TransZ, mech.Var("z"),
		mech.Name("mass"), mech.Mass(p["mass"]))
	b.AddPotential(potential.NewConfigSpring("spring", "z", p["stiffness"], p["rest"]))
	b.AddPotential(potential.NewGravity())
	if c := p["damping"]; c > 0 {
		b.AddForce(force.NewDamping("drag", c))
	}

	sys, err := b.Build()
	if err != nil {
		return nil, nil, nil, err
	}
	return sys, []float64{p["z0"]}, []float64{p["vz0"]}, nil
}
