package experiment

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/varimech/internal/metrics"
	"github.com/san-kum/varimech/internal/scenario"
	"github.com/san-kum/varimech/internal/sim"
	"github.com/san-kum/varimech/internal/varint"
)

// Convergence repeats one scenario over a set of timesteps and records the
// energy and constraint error at fixed final time.
type Convergence struct {
	Scenario string
	Params   map[string]float64
	Options  varint.Options
	Dts      []float64
	Duration float64
	Workers  int
}

type ConvergencePoint struct {
	Dt          float64
	EnergyError float64 // peak |E − E0| over the run
	Constraint  float64 // peak ‖g‖∞
}

func (c *Convergence) Run(ctx context.Context) ([]ConvergencePoint, error) {
	if len(c.Dts) == 0 {
		return nil, fmt.Errorf("experiment: convergence has no timesteps")
	}
	if _, err := scenario.Get(c.Scenario); err != nil {
		return nil, err
	}

	metricSets := make([][]sim.Metric, len(c.Dts))
	factory := func(run int) (*sim.Simulator, error) {
		sys, q0, v0, err := scenario.BuildNamed(c.Scenario, c.Params)
		if err != nil {
			return nil, err
		}
		metricSets[run] = []sim.Metric{
			metrics.NewEnergyDrift(sys),
			metrics.NewConstraintViolation(sys),
		}
		return sim.New(sys, q0, v0, c.Options)
	}

	logrus.WithFields(logrus.Fields{
		"scenario": c.Scenario,
		"dts":      len(c.Dts),
	}).Info("starting convergence study")

	ens := sim.NewEnsemble(factory, len(c.Dts))
	ens.SetWorkers(c.Workers)
	results, err := ens.RunWith(ctx, func(run int) sim.RunConfig {
		return sim.RunConfig{
			Duration: c.Duration,
			Dt:       c.Dts[run],
			Metrics:  metricSets[run],
		}
	})
	if err != nil {
		return nil, err
	}

	points := make([]ConvergencePoint, len(c.Dts))
	for i, res := range results {
		points[i] = ConvergencePoint{
			Dt:          c.Dts[i],
			EnergyError: res.Metrics["energy_drift"],
			Constraint:  res.Metrics["constraint_violation"],
		}
	}
	return points, nil
}

// EstimateOrder fits log(error) against log(dt) and returns the slope, the
// observed order of accuracy. Points with error at numerical zero are
// skipped, since they carry no scaling information.
func EstimateOrder(points []ConvergencePoint) float64 {
	var xs, ys []float64
	for _, p := range points {
		if p.EnergyError <= 1e-15 || p.Dt <= 0 {
			continue
		}
		xs = append(xs, math.Log(p.Dt))
		ys = append(ys, math.Log(p.EnergyError))
	}
	if len(xs) < 2 {
		return math.NaN()
	}
	_, slope := stat.LinearRegression(xs, ys, nil, false)
	return slope
}
