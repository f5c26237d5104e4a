package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/san-kum/dynfit/internal/mcmc"
	"github.com/san-kum/dynfit/internal/sim"
	"github.com/san-kum/dynfit/internal/storage"
	"github.com/san-kum/dynfit/internal/viz"
)

func fitModel(cmd *cobra.Command, args []string) error {
	exp, err := loadExperiment(cmd, args[0])
	if err != nil {
		return err
	}
	cfg := exp.Config()

	var opts []mcmc.FitOption
	if cmd.Flags().Changed("burn") {
		opts = append(opts, mcmc.WithBurn(fitBurn))
	}
	if fitChains > 0 {
		opts = append(opts, mcmc.WithChains(fitChains))
	}
	if cmd.Flags().Changed("seed") {
		opts = append(opts, mcmc.WithSeed(fitSeed))
	}

	var m *mcmc.Model
	if fitTUI {
		m, err = fitWithProgress(cmd.Context(), cfg.Name, func(ctx context.Context, extra ...mcmc.FitOption) (*mcmc.Model, error) {
			return exp.Fit(ctx, fitIter, append(opts, extra...)...)
		})
	} else {
		fmt.Printf("sampling %s...\n", cfg.Name)
		m, err = exp.Fit(cmd.Context(), fitIter, opts...)
	}
	if err != nil {
		return err
	}

	summary, err := m.Summary()
	if err != nil {
		return err
	}
	fmt.Println(summary)
	if err := m.PlotDistributions(true); err != nil {
		return err
	}
	if len(showJoint) == 2 {
		if err := m.PlotJointDistribution(showJoint[0], showJoint[1], true); err != nil {
			return err
		}
	}

	s := exp.Simulation()
	if fitDraws > 0 {
		if err := printDraws(cmd.Context(), m, s, cfg.Run.Start, fitDraws); err != nil {
			return err
		}
	}

	// plot the best fit against the data
	if _, err := exp.Run(cmd.Context()); err != nil {
		return err
	}
	if err := s.Plot(); err != nil {
		return err
	}
	for _, name := range s.DataVariables() {
		if err := m.PlotPredictive(name); err != nil {
			return err
		}
	}

	if noSave {
		return nil
	}
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	id, err := st.SaveFit(cfg.Name, m)
	if err != nil {
		return err
	}
	fmt.Printf("fit id: %s\n", id)
	return nil
}

// fitWithProgress runs fit in the background while a Bubble Tea view shows
// per-chain progress. Quitting the view cancels the fit.
func fitWithProgress(ctx context.Context, title string, fit func(context.Context, ...mcmc.FitOption) (*mcmc.Model, error)) (*mcmc.Model, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(viz.NewFitProgress("fitting "+title, cancel))
	type outcome struct {
		m   *mcmc.Model
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		m, err := fit(ctx, mcmc.WithProgress(func(pr mcmc.Progress) {
			p.Send(viz.ProgressMsg{
				Chain:      pr.Chain,
				Iter:       pr.Iter,
				Total:      pr.Total,
				Burn:       pr.Burn,
				Acceptance: pr.Acceptance,
				LogPost:    pr.LogPost,
			})
		}))
		p.Send(viz.DoneMsg{Err: err})
		done <- outcome{m, err}
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return nil, err
	}
	res := <-done
	return res.m, res.err
}

// printDraws runs the model once per posterior draw and tabulates the drawn
// values with the final value of each state, then restores the best fit.
func printDraws(ctx context.Context, m *mcmc.Model, s *sim.Simulation, t0 float64, n int) error {
	best, err := m.Best()
	if err != nil {
		return err
	}
	_, end, ok := s.Span()
	if !ok {
		end, _ = s.DataEnd()
	}
	names := m.Names()
	states := s.StateNames()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	header := append(append([]string{"DRAW"}, names...), states...)
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for i := 0; i < n; i++ {
		drawn, err := m.Draw()
		if err != nil {
			return err
		}
		if err := s.Run(ctx, t0, end); err != nil {
			return err
		}
		final := s.Results().Final()
		row := []string{fmt.Sprint(i + 1)}
		for _, name := range names {
			row = append(row, fmt.Sprintf("%.4g", drawn[name]))
		}
		for _, name := range states {
			row = append(row, fmt.Sprintf("%.4g", final[name]))
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return restore(s, best)
}

// restore sets every simulation value in values, skipping noise scales.
func restore(s *sim.Simulation, values map[string]float64) error {
	known := make(map[string]bool)
	for _, name := range s.ValueNames() {
		known[name] = true
	}
	names := make([]string, 0, len(values))
	for name := range values {
		if known[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.SetValue(name, values[name]); err != nil {
			return err
		}
	}
	return nil
}

func gridModel(cmd *cobra.Command, args []string) error {
	exp, err := loadExperiment(cmd, args[0])
	if err != nil {
		return err
	}
	res, err := exp.GridSearch(cmd.Context(), gridPts)
	if err != nil {
		return err
	}

	fmt.Printf("grid search: %d points evaluated, %d failed\n", res.Evaluated, res.Failed)
	names := make([]string, 0, len(res.Params))
	for name := range res.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s: %.6g\n", name, res.Params[name])
	}
	fmt.Printf("  sse: %.6g\n", res.SSE)

	if _, err := exp.Run(cmd.Context()); err != nil {
		return err
	}
	return exp.Simulation().Plot()
}
