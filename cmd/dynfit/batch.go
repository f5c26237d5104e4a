package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/dynfit/internal/automation"
	"github.com/san-kum/dynfit/internal/experiment"
	"github.com/san-kum/dynfit/internal/storage"
)

var (
	sweepParam string
	sweepFrom  float64
	sweepTo    float64
	sweepSteps int

	mcTrials  int
	mcPerturb float64
	mcSeed    uint64
	mcBound   float64
)

func batchCommands() []*cobra.Command {
	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a scripted sequence of runs and fits",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
	scenarioCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the steps")

	sweepCmd := &cobra.Command{
		Use:   "sweep [model]",
		Short: "run a model across a range of one parameter",
		Args:  cobra.ExactArgs(1),
		RunE:  runSweep,
	}
	sweepCmd.Flags().StringVar(&sweepParam, "param", "", "parameter to sweep")
	sweepCmd.Flags().Float64Var(&sweepFrom, "from", 0, "first value")
	sweepCmd.Flags().Float64Var(&sweepTo, "to", 1, "last value")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 10, "number of values")
	_ = sweepCmd.MarkFlagRequired("param")

	mcCmd := &cobra.Command{
		Use:   "montecarlo [model]",
		Short: "run a model from randomly perturbed initial values",
		Args:  cobra.ExactArgs(1),
		RunE:  runMonteCarlo,
	}
	mcCmd.Flags().IntVar(&mcTrials, "trials", 50, "number of trials")
	mcCmd.Flags().Float64Var(&mcPerturb, "perturb", 0.1, "largest change to each initial value")
	mcCmd.Flags().Uint64Var(&mcSeed, "seed", 0, "random seed")
	mcCmd.Flags().Float64Var(&mcBound, "bound", 0, "largest stable final magnitude (default 1e6)")

	return []*cobra.Command{scenarioCmd, sweepCmd, mcCmd}
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	opts := []automation.Option{automation.WithOutput(os.Stdout), automation.WithLogger(logger)}
	if !noSave {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		opts = append(opts, automation.WithStore(st))
	}

	fmt.Printf("scenario: %s\n", sc.Name)
	results, err := automation.RunScenario(cmd.Context(), sc, experiment.NewRegistry(), opts...)
	for _, r := range results {
		fmt.Printf("\nstep %d: %s (%v)\n", r.Step, r.Model, r.Result.Duration)
		for _, name := range sortedKeys(r.Fitted) {
			fmt.Printf("  fitted %s: %.6g\n", name, r.Fitted[name])
		}
		printFinal(r.Result)
		if r.RunID != "" {
			fmt.Printf("  run id: %s\n", r.RunID)
		}
		if r.FitID != "" {
			fmt.Printf("  fit id: %s\n", r.FitID)
		}
	}
	return err
}

func runSweep(cmd *cobra.Command, args []string) error {
	sweep := &automation.ParameterSweep{
		Model: args[0],
		Param: sweepParam,
		Min:   sweepFrom,
		Max:   sweepTo,
		Steps: sweepSteps,
	}
	results, err := automation.RunSweep(cmd.Context(), sweep, experiment.NewRegistry())
	if err != nil {
		return err
	}

	var states []string
	for _, r := range results {
		if r.Err == nil {
			states = sortedKeys(r.Final)
			break
		}
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	header := []string{strings.ToUpper(sweepParam)}
	for _, s := range states {
		header = append(header, s, s+" MIN", s+" MAX")
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for _, r := range results {
		row := []string{fmt.Sprintf("%.4g", r.Value)}
		if r.Err != nil {
			row = append(row, "failed: "+r.Err.Error())
		}
		for _, s := range states {
			if r.Err != nil {
				break
			}
			row = append(row, fmt.Sprintf("%.4g", r.Final[s]), fmt.Sprintf("%.4g", r.Min[s]), fmt.Sprintf("%.4g", r.Max[s]))
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	cfg := &automation.MonteCarloConfig{
		Model:        args[0],
		Perturbation: mcPerturb,
		Trials:       mcTrials,
		Seed:         mcSeed,
		Bound:        mcBound,
	}
	if !cmd.Flags().Changed("seed") && settings.Seed != 0 {
		cfg.Seed = settings.Seed
	}
	results, err := automation.RunMonteCarlo(cmd.Context(), cfg, experiment.NewRegistry())
	if err != nil {
		return err
	}
	stable, unstable := automation.MonteCarloStats(results)
	fmt.Printf("%d trials: %d stable, %d unstable\n", len(results), stable, unstable)
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("  trial %d failed: %v\n", r.Trial, r.Err)
		}
	}
	return nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
