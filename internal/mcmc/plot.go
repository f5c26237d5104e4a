package mcmc

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/san-kum/dynfit/internal/viz"
)

const (
	histogramBins   = 40
	histogramHeight = 10
	jointMaxPoints  = 2000
)

// PlotDistributions draws a posterior histogram for every sampled name to
// the simulation's output. With showNormal a normal density with the
// sample mean and standard deviation is overlaid.
func (m *Model) PlotDistributions(showNormal bool) error {
	return m.WriteDistributions(m.sim.Output(), showNormal)
}

func (m *Model) WriteDistributions(w io.Writer, showNormal bool) error {
	res, err := m.fitted()
	if err != nil {
		return err
	}
	for i, name := range m.names {
		trace := res.samples[i]
		mean, sd := stat.MeanStdDev(trace, nil)
		caption := fmt.Sprintf("%s  mean=%.4g  sd=%.3g", name, mean, sd)

		var overlay func(float64) float64
		if showNormal && sd > 0 {
			normal := distuv.Normal{Mu: mean, Sigma: sd}
			overlay = normal.Prob
		}
		if _, err := fmt.Fprint(w, viz.HistogramPlot(trace, histogramBins, histogramHeight, caption, overlay)); err != nil {
			return err
		}
	}
	return nil
}

// PlotJointDistribution scatters the joint posterior sample of two names.
// With showPrior the view spans the prior box, which is also outlined.
func (m *Model) PlotJointDistribution(p1, p2 string, showPrior bool) error {
	res, err := m.fitted()
	if err != nil {
		return err
	}
	i, j := m.index(p1), m.index(p2)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownParameter, p1)
	}
	if j < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownParameter, p2)
	}

	xs, ys := thin(res.samples[i], jointMaxPoints), thin(res.samples[j], jointMaxPoints)
	width, height := m.sim.PlotSize()
	chart := viz.NewChart(width, height)
	chart.Title = fmt.Sprintf("joint posterior of %s and %s", p1, p2)
	chart.XLabel = p1
	chart.YLabel = p2
	chart.Points("posterior", xs, ys)

	if showPrior {
		a, b := m.priors[p1], m.priors[p2]
		chart.Line("prior",
			[]float64{a.Low, a.High, a.High, a.Low, a.Low},
			[]float64{b.Low, b.Low, b.High, b.High, b.Low})
		chart.SetBounds(a.Low, a.High, b.Low, b.High)
	}

	_, err = fmt.Fprint(m.sim.Output(), chart.Render())
	return err
}

// PlotPredictive draws the posterior predictive mean of a data variable
// with its 95% HPD band over the observations.
func (m *Model) PlotPredictive(name string) error {
	v, err := m.Variable(name)
	if err != nil {
		return err
	}
	if v.Kind != Deterministic {
		return fmt.Errorf("%w: %s is not a data variable", ErrUnknownVariable, name)
	}
	st := v.Stats()
	lo := make([]float64, v.Len())
	hi := make([]float64, v.Len())
	for k, band := range st.HPD95 {
		lo[k], hi[k] = band[0], band[1]
	}
	_, obs := m.observations(name)

	width, height := m.sim.PlotSize()
	chart := viz.NewChart(width, height)
	chart.Title = name + " posterior predictive"
	chart.XLabel = "t"
	chart.Line("mean", v.T, st.Mean)
	chart.Line("95% HPD", v.T, lo)
	chart.Line("", v.T, hi)
	chart.Points("data", v.T, obs)

	_, err = fmt.Fprint(m.sim.Output(), chart.Render())
	return err
}

func thin(xs []float64, n int) []float64 {
	if len(xs) <= n {
		return xs
	}
	out := make([]float64, n)
	for k := range out {
		out[k] = xs[k*len(xs)/n]
	}
	return out
}
