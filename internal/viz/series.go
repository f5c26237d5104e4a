package viz

import (
	"math"

	"github.com/guptarohit/asciigraph"
)

// SeriesPlot draws one or more time series as an ASCII line graph. Series
// are resampled to width columns; non-finite samples are dropped.
func SeriesPlot(series [][]float64, width, height int, caption string) string {
	data := make([][]float64, 0, len(series))
	for _, s := range series {
		clean := resample(finiteOnly(s), width)
		if len(clean) > 0 {
			data = append(data, clean)
		}
	}
	if len(data) == 0 {
		return ""
	}
	opts := []asciigraph.Option{
		asciigraph.Height(height),
		asciigraph.Width(width),
	}
	if caption != "" {
		opts = append(opts, asciigraph.Caption(caption))
	}
	if len(data) == 1 {
		return asciigraph.Plot(data[0], opts...) + "\n"
	}
	return asciigraph.PlotMany(data, opts...) + "\n"
}

// Histogram counts samples into bins over [lo, hi].
func Histogram(samples []float64, bins int, lo, hi float64) []float64 {
	if bins <= 0 {
		return nil
	}
	counts := make([]float64, bins)
	if !(hi > lo) {
		return counts
	}
	for _, v := range samples {
		if !finite(v) || v < lo || v > hi {
			continue
		}
		i := int((v - lo) / (hi - lo) * float64(bins))
		if i == bins {
			i--
		}
		counts[i]++
	}
	return counts
}

// HistogramPlot renders a density histogram. If overlay is non-nil it is
// evaluated at each bin centre and drawn as a second series, scaled to the
// same density units.
func HistogramPlot(samples []float64, bins, height int, caption string, overlay func(float64) float64) string {
	clean := finiteOnly(samples)
	if len(clean) == 0 || bins <= 0 {
		return ""
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range clean {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if hi == lo {
		lo, hi = lo-0.5, hi+0.5
	}
	counts := Histogram(clean, bins, lo, hi)
	width := (hi - lo) / float64(bins)
	density := make([]float64, bins)
	for i, c := range counts {
		density[i] = c / (float64(len(clean)) * width)
	}

	series := [][]float64{density}
	if overlay != nil {
		curve := make([]float64, bins)
		for i := range curve {
			curve[i] = overlay(lo + (float64(i)+0.5)*width)
		}
		series = append(series, curve)
	}
	opts := []asciigraph.Option{
		asciigraph.Height(height),
		asciigraph.Width(bins),
		asciigraph.Caption(caption),
	}
	if len(series) == 1 {
		return asciigraph.Plot(density, opts...) + "\n"
	}
	return asciigraph.PlotMany(series, opts...) + "\n"
}

func finiteOnly(vs []float64) []float64 {
	out := make([]float64, 0, len(vs))
	for _, v := range vs {
		if finite(v) {
			out = append(out, v)
		}
	}
	return out
}

// resample picks n evenly spaced samples; shorter input is returned as is.
func resample(vs []float64, n int) []float64 {
	if n <= 0 || len(vs) <= n {
		return vs
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = vs[i*(len(vs)-1)/(n-1)]
	}
	return out
}
