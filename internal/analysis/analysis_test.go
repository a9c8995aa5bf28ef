package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriftRecoversLinearTrend(t *testing.T) {
	var times, energies []float64
	for i := 0; i < 500; i++ {
		ti := float64(i) * 0.02
		times = append(times, ti)
		energies = append(energies, 3.0+0.25*ti+0.01*math.Sin(2*math.Pi*ti))
	}

	res, err := Drift(times, energies)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, res.Slope, 1e-3)
	assert.InDelta(t, 3.0, res.Intercept, 1e-2)
	assert.InDelta(t, 0.01, res.Oscillation, 2e-3)
}

func TestDriftFlatSignal(t *testing.T) {
	times := []float64{0, 1, 2, 3}
	energies := []float64{5, 5, 5, 5}

	res, err := Drift(times, energies)
	require.NoError(t, err)
	assert.InDelta(t, 0, res.Slope, 1e-12)
	assert.InDelta(t, 0, res.Oscillation, 1e-12)
}

func TestDriftValidation(t *testing.T) {
	_, err := Drift([]float64{0, 1}, []float64{1})
	assert.Error(t, err)

	_, err = Drift([]float64{0}, []float64{1})
	assert.Error(t, err)
}

func TestSpectrumFindsSinusoid(t *testing.T) {
	const (
		dt   = 0.01
		n    = 2048
		freq = 1.7 // Hz
	)
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 4.0 + 0.5*math.Sin(2*math.Pi*freq*float64(i)*dt)
	}

	res, err := Spectrum(samples, dt)
	require.NoError(t, err)
	require.Len(t, res.Freqs, n/2+1)

	// Resolution is 1/(n*dt) ~ 0.049 Hz.
	assert.InDelta(t, freq, res.Dominant(), 1.0/(n*dt))
}

func TestSpectrumIgnoresDC(t *testing.T) {
	samples := make([]float64, 512)
	for i := range samples {
		samples[i] = 100.0 + 0.001*math.Sin(2*math.Pi*2.0*float64(i)*0.01)
	}

	res, err := Spectrum(samples, 0.01)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, res.Dominant(), 0.2)
}

func TestSpectrumValidation(t *testing.T) {
	_, err := Spectrum([]float64{1, 2}, 0.01)
	assert.Error(t, err)

	_, err = Spectrum(make([]float64, 16), 0)
	assert.Error(t, err)
}
