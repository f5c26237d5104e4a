package automation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/dynfit/internal/config"
	"github.com/san-kum/dynfit/internal/experiment"
	"github.com/san-kum/dynfit/internal/sim"
	"github.com/san-kum/dynfit/internal/storage"
)

var (
	ErrNoSteps   = errors.New("automation: scenario has no steps")
	ErrBadSweep  = errors.New("automation: sweep needs a parameter and at least two steps")
	ErrNoTrials  = errors.New("automation: monte carlo needs at least one trial")
	ErrNotTuning = errors.New("automation: model has no such parameter")
)

// Scenario is a scripted sequence of runs and fits.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep runs one model, a preset name or a model file, with
// optional overrides.
type ScenarioStep struct {
	Model  string             `yaml:"model"`
	Params map[string]float64 `yaml:"params,omitempty"`
	// Initial overrides initial values by state name.
	Initial map[string]float64 `yaml:"initial,omitempty"`
	Run     *config.RunConfig  `yaml:"run,omitempty"`
	// Fit samples the model's priors before the run; the run then uses the
	// posterior mean.
	Fit    bool   `yaml:"fit,omitempty"`
	Iter   int    `yaml:"iter,omitempty"`
	Grid   bool   `yaml:"grid,omitempty"`
	SaveAs string `yaml:"save_as,omitempty"`
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sc, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if len(scenario.Steps) == 0 {
		return nil, ErrNoSteps
	}
	return &scenario, nil
}

type options struct {
	store *storage.Store
	out   io.Writer
	log   *slog.Logger
}

type Option func(*options)

// WithStore saves every step's run, and fit when there is one.
func WithStore(st *storage.Store) Option {
	return func(o *options) { o.store = st }
}

// WithOutput sends step plots to w. Without it plots are discarded.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

func newOptions(opts []Option) *options {
	o := &options{out: io.Discard, log: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.With("component", "automation")
	return o
}

// StepResult is the outcome of one scenario step.
type StepResult struct {
	Step   int
	Model  string
	Result *experiment.Result
	// Fitted holds the posterior mean or grid optimum, when the step fit.
	Fitted map[string]float64
	RunID  string
	FitID  string
}

// RunScenario executes the steps in order and stops at the first failure,
// returning the results so far.
func RunScenario(ctx context.Context, scenario *Scenario, registry *experiment.Registry, opts ...Option) ([]StepResult, error) {
	o := newOptions(opts)
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		o.log.Info("running step", "step", i+1, "of", len(scenario.Steps), "model", step.Model)
		res, err := runStep(ctx, i+1, step, registry, o)
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		results = append(results, *res)
	}
	return results, nil
}

func runStep(ctx context.Context, n int, step ScenarioStep, registry *experiment.Registry, o *options) (*StepResult, error) {
	cfg, err := registry.GetModel(step.Model)
	if err != nil {
		return nil, err
	}
	if step.Run != nil {
		cfg.Run = *step.Run
	}
	if cfg.Params == nil {
		cfg.Params = map[string]float64{}
	}
	for k, v := range step.Params {
		cfg.Params[k] = v
	}
	name := cfg.Name
	if step.SaveAs != "" {
		name = step.SaveAs
	}

	exp := experiment.New(cfg, experiment.WithOutput(o.out), experiment.WithLogger(o.log))
	if err := exp.Setup(); err != nil {
		return nil, err
	}
	if err := setInitial(exp.Simulation(), step.Initial); err != nil {
		return nil, err
	}

	out := &StepResult{Step: n, Model: name}
	switch {
	case step.Fit:
		m, err := exp.Fit(ctx, step.Iter)
		if err != nil {
			return nil, err
		}
		if out.Fitted, err = m.Best(); err != nil {
			return nil, err
		}
		if o.store != nil {
			if out.FitID, err = o.store.SaveFit(name, m); err != nil {
				return nil, err
			}
		}
	case step.Grid:
		g, err := exp.GridSearch(ctx, 0)
		if err != nil {
			return nil, err
		}
		out.Fitted = g.Params
	}

	if out.Result, err = exp.Run(ctx); err != nil {
		return nil, err
	}
	if o.store != nil {
		metrics := map[string]float64{}
		if !math.IsNaN(out.Result.SSE) {
			metrics["sse"] = out.Result.SSE
		}
		if out.RunID, err = o.store.Save(name, cfg.Run.Method, exp.Simulation(), metrics); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func setInitial(s *sim.Simulation, values map[string]float64) error {
	names := make([]string, 0, len(values))
	for k := range values {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if err := s.SetInitial(k, values[k]); err != nil {
			return err
		}
	}
	return nil
}

// ParameterSweep runs a model once per evenly spaced parameter value.
type ParameterSweep struct {
	Model    string
	Param    string
	Min, Max float64
	Steps    int
	// Workers bounds concurrent runs; zero means one per CPU.
	Workers int
}

// SweepResult summarises one run of a sweep. Runs that fail to integrate
// carry the error and no values.
type SweepResult struct {
	Value float64
	Final map[string]float64
	Max   map[string]float64
	Min   map[string]float64
	SSE   float64
	Err   error
}

// RunSweep executes a parameter sweep, each value on its own simulation.
func RunSweep(ctx context.Context, sweep *ParameterSweep, registry *experiment.Registry) ([]SweepResult, error) {
	if sweep.Param == "" || sweep.Steps < 2 {
		return nil, ErrBadSweep
	}
	cfg, err := registry.GetModel(sweep.Model)
	if err != nil {
		return nil, err
	}
	if _, ok := cfg.Params[sweep.Param]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotTuning, sweep.Param)
	}

	values := sim.Linspace(sweep.Min, sweep.Max, sweep.Steps)
	results := make([]SweepResult, len(values))

	workers := sweep.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, v := range values {
		g.Go(func() error {
			res, err := runWith(gctx, sweep.Model, registry, func(s *sim.Simulation) error {
				return s.SetParam(sweep.Param, v)
			})
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				results[i] = SweepResult{Value: v, SSE: math.NaN(), Err: err}
				return nil
			}
			results[i] = summarise(v, res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// runWith builds a fresh experiment for model, applies edit and runs it.
func runWith(ctx context.Context, model string, registry *experiment.Registry, edit func(*sim.Simulation) error) (*experiment.Result, error) {
	cfg, err := registry.GetModel(model)
	if err != nil {
		return nil, err
	}
	exp := experiment.New(cfg, experiment.WithOutput(io.Discard))
	if err := exp.Setup(); err != nil {
		return nil, err
	}
	if err := edit(exp.Simulation()); err != nil {
		return nil, err
	}
	return exp.Run(ctx)
}

func summarise(v float64, res *experiment.Result) SweepResult {
	out := SweepResult{
		Value: v,
		Final: res.Final,
		Max:   make(map[string]float64, len(res.Results.Names)),
		Min:   make(map[string]float64, len(res.Results.Names)),
		SSE:   res.SSE,
	}
	for _, name := range res.Results.Names {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, y := range res.Results.Values[name] {
			lo = math.Min(lo, y)
			hi = math.Max(hi, y)
		}
		out.Min[name], out.Max[name] = lo, hi
	}
	return out
}

// MonteCarloConfig perturbs every initial value uniformly by up to
// Perturbation in either direction.
type MonteCarloConfig struct {
	Model        string
	Perturbation float64
	Trials       int
	Seed         uint64
	// Bound is the largest magnitude a stable final value may have,
	// 1e6 by default.
	Bound   float64
	Workers int
}

type MonteCarloResult struct {
	Trial   int
	Initial map[string]float64
	Final   map[string]float64
	// Stable reports that the run integrated and stayed bounded.
	Stable bool
	Err    error
}

// RunMonteCarlo executes trials with random initial perturbations. Trial i
// always draws the same perturbation for a given seed.
func RunMonteCarlo(ctx context.Context, cfg *MonteCarloConfig, registry *experiment.Registry) ([]MonteCarloResult, error) {
	if cfg.Trials < 1 {
		return nil, ErrNoTrials
	}
	bound := cfg.Bound
	if bound <= 0 {
		bound = 1e6
	}
	base, err := registry.GetModel(cfg.Model)
	if err != nil {
		return nil, err
	}
	s, err := experiment.Build(base)
	if err != nil {
		return nil, err
	}
	states := s.StateNames()
	baseline := make(map[string]float64, len(states))
	for _, name := range states {
		baseline[name], _ = s.Initial(name)
	}

	results := make([]MonteCarloResult, cfg.Trials)
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for trial := range results {
		rng := rand.New(rand.NewPCG(cfg.Seed, uint64(trial)))
		initial := make(map[string]float64, len(states))
		for _, name := range states {
			initial[name] = baseline[name] + (rng.Float64()-0.5)*2*cfg.Perturbation
		}
		g.Go(func() error {
			res, err := runWith(gctx, cfg.Model, registry, func(s *sim.Simulation) error {
				return setInitial(s, initial)
			})
			r := MonteCarloResult{Trial: trial, Initial: initial}
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				r.Err = err
				results[trial] = r
				return nil
			}
			r.Final = res.Final
			r.Stable = bounded(res.Final, bound)
			results[trial] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func bounded(final map[string]float64, bound float64) bool {
	for _, v := range final {
		if math.IsNaN(v) || math.Abs(v) > bound {
			return false
		}
	}
	return true
}

// MonteCarloStats counts stable and unstable trials.
func MonteCarloStats(results []MonteCarloResult) (stableCount int, unstableCount int) {
	for _, r := range results {
		if r.Stable {
			stableCount++
		} else {
			unstableCount++
		}
	}
	return
}
