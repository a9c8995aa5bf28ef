package analysis

import (
	"fmt"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// SpectrumResult is the one-sided power spectrum of a uniformly sampled
// signal.
type SpectrumResult struct {
	Freqs []float64 // Hz, zero first
	Power []float64
}

// Dominant returns the nonzero frequency with the most power.
func (s SpectrumResult) Dominant() float64 {
	best, bestP := 0.0, 0.0
	for i := 1; i < len(s.Freqs); i++ {
		if s.Power[i] > bestP {
			best, bestP = s.Freqs[i], s.Power[i]
		}
	}
	return best
}

// Spectrum computes the one-sided power spectrum of samples taken dt apart.
// The mean is removed first so the DC bin does not mask small oscillations.
func Spectrum(samples []float64, dt float64) (SpectrumResult, error) {
	if len(samples) < 4 {
		return SpectrumResult{}, fmt.Errorf("analysis: need at least 4 samples, got %d", len(samples))
	}
	if dt <= 0 {
		return SpectrumResult{}, fmt.Errorf("analysis: sample spacing must be positive, got %g", dt)
	}

	mean := 0.0
	for _, x := range samples {
		mean += x
	}
	mean /= float64(len(samples))
	centered := make([]float64, len(samples))
	for i, x := range samples {
		centered[i] = x - mean
	}

	coeffs := fft.FFTReal(centered)
	n := len(samples)
	half := n/2 + 1
	out := SpectrumResult{
		Freqs: make([]float64, half),
		Power: make([]float64, half),
	}
	for k := 0; k < half; k++ {
		out.Freqs[k] = float64(k) / (float64(n) * dt)
		m := cmplx.Abs(coeffs[k])
		out.Power[k] = m * m / float64(n)
	}
	return out, nil
}
