// Package analysis provides post-run trajectory diagnostics: secular energy
// drift estimation and frequency content.
package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// DriftResult separates the secular and oscillatory parts of an energy
// trace. A variational integrator shows Slope compatible with zero while
// Oscillation carries the whole (bounded) error; a drifting integrator
// shows the opposite.
type DriftResult struct {
	Slope       float64 // energy units per time, from a linear fit
	Intercept   float64
	Oscillation float64 // peak |E − fit|
}

// Drift fits energy(t) by least squares and measures the residual envelope.
func Drift(times, energies []float64) (DriftResult, error) {
	if len(times) != len(energies) {
		return DriftResult{}, fmt.Errorf("analysis: %d times for %d energies", len(times), len(energies))
	}
	if len(times) < 2 {
		return DriftResult{}, fmt.Errorf("analysis: need at least 2 samples, got %d", len(times))
	}

	intercept, slope := stat.LinearRegression(times, energies, nil, false)

	peak := 0.0
	for i, t := range times {
		if r := math.Abs(energies[i] - (intercept + slope*t)); r > peak {
			peak = r
		}
	}
	return DriftResult{Slope: slope, Intercept: intercept, Oscillation: peak}, nil
}
