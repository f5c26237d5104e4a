package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"

	"github.com/san-kum/dynfit/internal/sim"
	"github.com/san-kum/dynfit/internal/viz"
)

// Spectrum is the one-sided power spectrum of a series.
type Spectrum struct {
	Freq  []float64
	Power []float64
}

// PowerSpectrum computes the spectrum of name over the last run. The mean
// is removed first so the zero-frequency bin reflects only drift. The run
// must use a uniform output grid, as the default grid is.
func PowerSpectrum(s *sim.Simulation, name string) (*Spectrum, error) {
	ts := s.T()
	ys, err := s.Series(name)
	if err != nil {
		return nil, err
	}
	if len(ys) < 4 {
		return nil, fmt.Errorf("%w: %d samples", ErrShortSeries, len(ys))
	}
	dt := (ts[len(ts)-1] - ts[0]) / float64(len(ts)-1)
	for i := 1; i < len(ts); i++ {
		if math.Abs(ts[i]-ts[i-1]-dt) > 1e-6*math.Max(dt, 1) {
			return nil, fmt.Errorf("%w: step %g at t=%g", ErrNotUniform, ts[i]-ts[i-1], ts[i-1])
		}
	}
	return spectrumOf(ys, dt), nil
}

func spectrumOf(ys []float64, dt float64) *Spectrum {
	n := len(ys)
	mean := 0.0
	for _, y := range ys {
		mean += y
	}
	mean /= float64(n)
	centred := make([]float64, n)
	for i, y := range ys {
		centred[i] = y - mean
	}

	coeffs := fft.FFTReal(centred)
	half := n/2 + 1
	sp := &Spectrum{Freq: make([]float64, half), Power: make([]float64, half)}
	for k := 0; k < half; k++ {
		sp.Freq[k] = float64(k) / (float64(n) * dt)
		a := cmplx.Abs(coeffs[k])
		sp.Power[k] = a * a / float64(n)
	}
	return sp
}

// Dominant returns the frequency with the most power, ignoring the zero
// bin.
func (sp *Spectrum) Dominant() float64 {
	best := 0
	for k := 1; k < len(sp.Power); k++ {
		if best == 0 || sp.Power[k] > sp.Power[best] {
			best = k
		}
	}
	return sp.Freq[best]
}

func (sp *Spectrum) Render(name string, width, height int) string {
	caption := fmt.Sprintf("%s power spectrum, peak at f=%.4g", name, sp.Dominant())
	return viz.SeriesPlot([][]float64{sp.Power}, width, height, caption)
}
