package mcmc

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/san-kum/dynfit/internal/metrics"
	"github.com/san-kum/dynfit/internal/viz"
)

// ParamSummary is one row of Summary.
type ParamSummary struct {
	Name    string
	Mean    float64
	SD      float64
	HPD95   [2]float64
	MCError float64
	ESS     float64
	// RHat is NaN with a single chain.
	RHat float64
}

// Summaries computes per-name posterior statistics and convergence
// diagnostics.
func (m *Model) Summaries() ([]ParamSummary, error) {
	res, err := m.fitted()
	if err != nil {
		return nil, err
	}
	out := make([]ParamSummary, len(m.names))
	for i, name := range m.names {
		v, _ := m.Variable(name)
		st := v.Stats()

		ess := 0.0
		perChain := make([][]float64, len(res.chains))
		for c, ch := range res.chains {
			ess += metrics.EffectiveSampleSize(ch.Samples[i])
			perChain[c] = ch.Samples[i]
		}
		out[i] = ParamSummary{
			Name:    name,
			Mean:    st.Mean[0],
			SD:      st.SD[0],
			HPD95:   st.HPD95[0],
			MCError: st.MCError[0],
			ESS:     ess,
			RHat:    metrics.GelmanRubin(perChain),
		}
	}
	return out, nil
}

// Summary renders the posterior table followed by per-chain acceptance.
func (m *Model) Summary() (string, error) {
	res, err := m.fitted()
	if err != nil {
		return "", err
	}
	rows, err := m.Summaries()
	if err != nil {
		return "", err
	}

	header := lipgloss.NewStyle().Bold(true).Foreground(viz.CurrentTheme.Title).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(viz.CurrentTheme.Border)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		}).
		Headers("name", "mean", "sd", "95% HPD", "mc error", "ess", "r-hat")

	for _, r := range rows {
		rhat := "-"
		if !math.IsNaN(r.RHat) {
			rhat = fmt.Sprintf("%.3f", r.RHat)
		}
		t.Row(
			r.Name,
			fmt.Sprintf("%.5g", r.Mean),
			fmt.Sprintf("%.3g", r.SD),
			fmt.Sprintf("[%.4g, %.4g]", r.HPD95[0], r.HPD95[1]),
			fmt.Sprintf("%.2g", r.MCError),
			fmt.Sprintf("%.0f", r.ESS),
			rhat,
		)
	}

	var b strings.Builder
	b.WriteString(t.String())
	b.WriteByte('\n')
	fmt.Fprintf(&b, "%s %d iterations, %d burn, thin %d, %d samples, %s\n",
		viz.MetricLabel.Render("sampler:"), res.iter, res.burn, res.thin, len(res.logPost), res.elapsed.Round(time.Millisecond))
	for _, ch := range res.chains {
		fmt.Fprintf(&b, "%s acceptance %s  failed proposals %s\n",
			viz.MetricLabel.Render(fmt.Sprintf("chain %d:", ch.ID)),
			viz.MetricValue.Render(fmt.Sprintf("%.3f", ch.Acceptance)),
			viz.MetricValue.Render(fmt.Sprintf("%.3f", ch.FailureRate)))
	}
	return b.String(), nil
}
