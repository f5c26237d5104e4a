package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/dynfit/internal/analysis"
	"github.com/san-kum/dynfit/internal/config"
	"github.com/san-kum/dynfit/internal/experiment"
	"github.com/san-kum/dynfit/internal/export"
	"github.com/san-kum/dynfit/internal/storage"
	"github.com/san-kum/dynfit/internal/viz"
)

var (
	settings *config.Settings
	logger   *slog.Logger

	dataDir    string
	plotWidth  int
	plotHeight int

	// run overrides
	method     string
	start      float64
	end        float64
	iterations int
	noSave     bool
	svgPath    string

	// fit
	fitIter   int
	fitBurn   int
	fitChains int
	fitSeed   uint64
	fitTUI    bool
	fitDraws  int
	gridPts   int
	showJoint []string

	// phase and analysis
	crossName  string
	crossLevel float64
	lyapDt     float64
	lyapTime   float64
	lyapAll    bool
	bifParam   string
	bifState   string
	bifFrom    float64
	bifTo      float64
	bifPoints  int
)

// main registers the dynfit commands and executes the root command,
// exiting with status 1 on error.
func main() {
	rootCmd := &cobra.Command{
		Use:           "dynfit",
		Short:         "equation-driven dynamical models and bayesian fitting",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "data directory (default $DYNFIT_DATA_DIR or .dynfit)")
	rootCmd.PersistentFlags().IntVar(&plotWidth, "width", 0, "plot width")
	rootCmd.PersistentFlags().IntVar(&plotHeight, "height", 0, "plot height")

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "run a model and plot it",
		Args:  cobra.ExactArgs(1),
		RunE:  runModel,
	}
	addRunFlags(runCmd)
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	runCmd.Flags().StringVar(&svgPath, "svg", "", "also write the plot as svg")

	fitCmd := &cobra.Command{
		Use:   "fit [model]",
		Short: "sample the posterior of a model's priors",
		Args:  cobra.ExactArgs(1),
		RunE:  fitModel,
	}
	fitCmd.Flags().IntVar(&fitIter, "iter", 0, "iterations per chain")
	fitCmd.Flags().IntVar(&fitBurn, "burn", 0, "burn-in iterations (default iter/4)")
	fitCmd.Flags().IntVar(&fitChains, "chains", 0, "number of chains")
	fitCmd.Flags().Uint64Var(&fitSeed, "seed", 0, "random seed")
	fitCmd.Flags().BoolVar(&fitTUI, "tui", false, "show live sampler progress")
	fitCmd.Flags().IntVar(&fitDraws, "draws", 0, "print this many posterior draws")
	fitCmd.Flags().StringSliceVar(&showJoint, "joint", nil, "two names for a joint distribution plot")
	fitCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the fit")

	gridCmd := &cobra.Command{
		Use:   "grid [model]",
		Short: "least-squares grid search over the prior boxes",
		Args:  cobra.ExactArgs(1),
		RunE:  gridModel,
	}
	gridCmd.Flags().IntVar(&gridPts, "points", 0, "grid points per parameter")

	equationsCmd := &cobra.Command{
		Use:   "equations [model]",
		Short: "print a model's equations",
		Args:  cobra.ExactArgs(1),
		RunE:  printEquations,
	}

	phaseCmd := &cobra.Command{
		Use:   "phase [model] [state...]",
		Short: "phase plot of two or three states",
		Args:  cobra.MinimumNArgs(1),
		RunE:  phaseModel,
	}
	addRunFlags(phaseCmd)
	phaseCmd.Flags().StringVar(&crossName, "cross", "", "plot the poincare section where this state crosses --level")
	phaseCmd.Flags().Float64Var(&crossLevel, "level", 0, "crossing level for --cross")

	vectorCmd := &cobra.Command{
		Use:   "vector [model]",
		Short: "vector field from the model's vector section",
		Args:  cobra.ExactArgs(1),
		RunE:  vectorModel,
	}
	addRunFlags(vectorCmd)

	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "dynamics analysis",
	}
	lyapCmd := &cobra.Command{
		Use:   "lyapunov [model]",
		Short: "largest lyapunov exponent",
		Args:  cobra.ExactArgs(1),
		RunE:  lyapunovModel,
	}
	lyapCmd.Flags().Float64Var(&lyapDt, "dt", 0, "integration step")
	lyapCmd.Flags().Float64Var(&lyapTime, "time", 0, "measured duration")
	lyapCmd.Flags().BoolVar(&lyapAll, "spectrum", false, "separation rate along every state")
	spectrumCmd := &cobra.Command{
		Use:   "spectrum [model] [state]",
		Short: "power spectrum of one series",
		Args:  cobra.ExactArgs(2),
		RunE:  spectrumModel,
	}
	addRunFlags(spectrumCmd)
	bifCmd := &cobra.Command{
		Use:   "bifurcation [model]",
		Short: "sweep a parameter and record long-run values",
		Args:  cobra.ExactArgs(1),
		RunE:  bifurcationModel,
	}
	bifCmd.Flags().StringVar(&bifParam, "param", "", "parameter to sweep")
	bifCmd.Flags().StringVar(&bifState, "state", "", "state to record")
	bifCmd.Flags().Float64Var(&bifFrom, "from", 0, "first parameter value")
	bifCmd.Flags().Float64Var(&bifTo, "to", 1, "last parameter value")
	bifCmd.Flags().IntVar(&bifPoints, "points", 100, "parameter values")
	_ = bifCmd.MarkFlagRequired("param")
	_ = bifCmd.MarkFlagRequired("state")
	analyzeCmd.AddCommand(lyapCmd, spectrumCmd, bifCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs and fits",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "print stored metadata, and the posterior summary of a fit",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "print a stored run or fit trace as csv",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [model]",
		Short: "run a model and print its series as json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	addRunFlags(exportJSONCmd)

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list built-in models and integrators",
		RunE:  listPresets,
	}

	rootCmd.AddCommand(runCmd, fitCmd, gridCmd, equationsCmd, phaseCmd, vectorCmd, analyzeCmd,
		listCmd, plotCmd, exportCmd, exportCSVCmd, exportJSONCmd, presetsCmd)
	rootCmd.AddCommand(batchCommands()...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&method, "method", "", "integrator (rk45, rk4, euler)")
	cmd.Flags().Float64Var(&start, "start", 0, "start time")
	cmd.Flags().Float64Var(&end, "end", 0, "end time")
	cmd.Flags().IntVar(&iterations, "iterations", 0, "output points")
}

// setup reads environment settings and installs the default logger and
// theme. Flags override the environment.
func setup(cmd *cobra.Command) error {
	s, err := config.LoadSettings()
	if err != nil {
		return err
	}
	settings = s
	level, _ := s.Level()
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	viz.SetTheme(s.Theme)

	if dataDir == "" {
		dataDir = s.DataDir
	}
	if plotWidth <= 0 {
		plotWidth = s.PlotWidth
	}
	if plotHeight <= 0 {
		plotHeight = s.PlotHeight
	}
	return nil
}

// loadExperiment resolves a model, applies command-line run overrides and
// builds its simulation.
func loadExperiment(cmd *cobra.Command, name string) (*experiment.Experiment, error) {
	cfg, err := experiment.NewRegistry().GetModel(name)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("method") {
		cfg.Run.Method = method
	}
	if flags.Changed("start") {
		cfg.Run.Start = start
	}
	if flags.Changed("end") {
		cfg.Run.End = end
	}
	if flags.Changed("iterations") {
		cfg.Run.Iterations = iterations
		cfg.Run.Times = nil
	}
	if cfg.Fit != nil && settings.Seed != 0 && cfg.Fit.Seed == 0 {
		cfg.Fit.Seed = settings.Seed
	}

	exp := experiment.New(cfg,
		experiment.WithOutput(os.Stdout),
		experiment.WithPlotSize(plotWidth, plotHeight),
		experiment.WithLogger(logger),
	)
	if err := exp.Setup(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return exp, nil
}

func runExperiment(cmd *cobra.Command, name string) (*experiment.Experiment, *experiment.Result, error) {
	exp, err := loadExperiment(cmd, name)
	if err != nil {
		return nil, nil, err
	}
	res, err := exp.Run(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	return exp, res, nil
}

func runMetrics(res *experiment.Result) map[string]float64 {
	m := map[string]float64{"elapsed_ms": float64(res.Duration.Microseconds()) / 1000}
	if !math.IsNaN(res.SSE) {
		m["sse"] = res.SSE
	}
	return m
}

func runModel(cmd *cobra.Command, args []string) error {
	exp, res, err := runExperiment(cmd, args[0])
	if err != nil {
		return err
	}
	s := exp.Simulation()
	cfg := exp.Config()

	fmt.Println(viz.TitleStyle.Render(cfg.Name))
	if cfg.Description != "" {
		fmt.Println(viz.Subtle.Render(cfg.Description))
	}
	fmt.Println(viz.Separator(plotWidth))
	if err := s.Plot(); err != nil {
		return err
	}
	if len(cfg.Phase) > 0 {
		if err := analysis.PhasePlot(s, cfg.Phase...); err != nil {
			return err
		}
	}
	if cfg.Vector != nil {
		if err := analysis.VectorField(s, cfg.Vector.Rescale, vectorRanges(cfg.Vector)...); err != nil {
			return err
		}
	}

	printFinal(res)
	fmt.Printf("completed in %v\n", res.Duration)

	if svgPath != "" {
		svg, err := export.SimulationToSVG(s, nil, 800, 400, viz.CurrentTheme)
		if err != nil {
			return err
		}
		if err := os.WriteFile(svgPath, []byte(svg), 0644); err != nil {
			return err
		}
		fmt.Printf("svg: %s\n", svgPath)
	}

	if noSave {
		return nil
	}
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(cfg.Name, cfg.Run.Method, s, runMetrics(res))
	if err != nil {
		return err
	}
	fmt.Printf("run id: %s\n", runID)
	return nil
}

func printFinal(res *experiment.Result) {
	names := make([]string, 0, len(res.Final))
	for name := range res.Final {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("\nfinal values:")
	for _, name := range names {
		fmt.Printf("  %s: %.6g\n", name, res.Final[name])
	}
	if !math.IsNaN(res.SSE) {
		fmt.Printf("  sse: %.6g\n", res.SSE)
	}
}

func vectorRanges(vc *config.VectorConfig) []analysis.Range {
	out := make([]analysis.Range, len(vc.Ranges))
	for i, r := range vc.Ranges {
		out[i] = analysis.Range{Name: r.Name, Values: r.Values()}
	}
	return out
}

func printEquations(cmd *cobra.Command, args []string) error {
	exp, err := loadExperiment(cmd, args[0])
	if err != nil {
		return err
	}
	fmt.Print(exp.Simulation().Equations())
	return nil
}

func phaseModel(cmd *cobra.Command, args []string) error {
	exp, _, err := runExperiment(cmd, args[0])
	if err != nil {
		return err
	}
	s := exp.Simulation()
	names := args[1:]
	if len(names) == 0 {
		names = exp.Config().Phase
	}
	if len(names) == 0 {
		states := s.StateNames()
		if len(states) < 2 {
			return analysis.ErrPhaseArgs
		}
		names = states[:2]
	}

	if crossName == "" {
		return analysis.PhasePlot(s, names...)
	}
	if len(names) != 2 {
		return fmt.Errorf("%w: a poincare section needs two states", analysis.ErrPhaseArgs)
	}
	points, err := analysis.PoincareSection(s, crossName, crossLevel, names[0], names[1])
	if err != nil {
		return err
	}
	fmt.Println(analysis.RenderPoincare(points, names[0], names[1], plotWidth, plotHeight))
	fmt.Printf("%d crossings of %s = %g\n", len(points), crossName, crossLevel)
	return nil
}

func vectorModel(cmd *cobra.Command, args []string) error {
	exp, _, err := runExperiment(cmd, args[0])
	if err != nil {
		return err
	}
	vc := exp.Config().Vector
	if vc == nil {
		return fmt.Errorf("%s: %w", args[0], analysis.ErrNoRange)
	}
	return analysis.VectorField(exp.Simulation(), vc.Rescale, vectorRanges(vc)...)
}

func exportJSON(cmd *cobra.Command, args []string) error {
	exp, res, err := runExperiment(cmd, args[0])
	if err != nil {
		return err
	}
	cfg := exp.Config()
	return storage.ExportJSON(os.Stdout, cfg.Name, cfg.Run.Method, exp.Simulation(), runMetrics(res))
}

func listPresets(cmd *cobra.Command, args []string) error {
	registry := experiment.NewRegistry()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tFIT\tDESCRIPTION")
	for _, name := range registry.ListModels() {
		cfg, err := registry.GetModel(name)
		if err != nil {
			return err
		}
		fit := "-"
		if cfg.Fit != nil {
			fit = strings.Join(cfg.Fit.PriorNames(), ",")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, fit, cfg.Description)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Println()
	fmt.Println(viz.HeaderStyle.Render("integrators"))
	fmt.Println(strings.Join(registry.ListIntegrators(), ", "))
	fmt.Println(viz.HeaderStyle.Render("themes"))
	fmt.Println(strings.Join(viz.ThemeNames(), ", "))
	return nil
}
