package experiment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/san-kum/dynfit/internal/config"
	"github.com/san-kum/dynfit/internal/mcmc"
	"github.com/san-kum/dynfit/internal/optim"
	"github.com/san-kum/dynfit/internal/sim"
)

var (
	ErrNotSetup = errors.New("experiment: not set up")
	ErrNoFit    = errors.New("experiment: model has no fit section")
)

// Experiment runs and fits one model description.
type Experiment struct {
	cfg    *config.Config
	sim    *sim.Simulation
	model  *mcmc.Model
	out    io.Writer
	width  int
	height int
	log    *slog.Logger
}

type Option func(*Experiment)

func WithOutput(w io.Writer) Option {
	return func(e *Experiment) { e.out = w }
}

func WithPlotSize(width, height int) Option {
	return func(e *Experiment) { e.width, e.height = width, height }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Experiment) {
		if l != nil {
			e.log = l
		}
	}
}

func New(cfg *config.Config, opts ...Option) *Experiment {
	e := &Experiment{cfg: cfg, log: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With("component", "experiment", "model", cfg.Name)
	return e
}

func (e *Experiment) Config() *config.Config { return e.cfg }

// Setup builds the simulation from the model description.
func (e *Experiment) Setup() error {
	s, err := Build(e.cfg)
	if err != nil {
		return err
	}
	if e.out != nil {
		s.SetOutput(e.out)
	}
	if e.width > 0 && e.height > 0 {
		s.SetPlotSize(e.width, e.height)
	}
	e.sim = s
	e.model = nil
	return nil
}

// Build turns a model description into a simulation.
func Build(cfg *config.Config) (*sim.Simulation, error) {
	s := sim.New()
	for _, eq := range cfg.Equations {
		if err := s.Add(eq.Eq, eq.Initial, sim.WithPlotFlag(eq.Plot)); err != nil {
			return nil, err
		}
	}
	for _, st := range cfg.Stocks {
		if err := s.Stock(st.Name, st.Initial, sim.WithPlotFlag(st.Plot)); err != nil {
			return nil, err
		}
		for _, f := range st.Inflows {
			if err := s.Inflow(st.Name, f); err != nil {
				return nil, err
			}
		}
		for _, f := range st.Outflows {
			if err := s.Outflow(st.Name, f); err != nil {
				return nil, err
			}
		}
	}
	if err := s.Params(cfg.Params); err != nil {
		return nil, err
	}
	if cfg.Data != nil {
		if err := s.AddData(cfg.Data.T, cfg.Data.Values, sim.WithPlotFlag(cfg.Data.Plot)); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (e *Experiment) Simulation() *sim.Simulation { return e.sim }

// Model is the sampler of the last Fit, or nil.
func (e *Experiment) Model() *mcmc.Model { return e.model }

// Result summarises one run.
type Result struct {
	Results *sim.Results
	Final   map[string]float64
	// SSE against attached data; NaN when the model has none.
	SSE      float64
	Duration time.Duration
}

// RunOptions are the run settings of the model description.
func (e *Experiment) RunOptions() []sim.RunOption {
	rc := e.cfg.Run
	var opts []sim.RunOption
	if rc.Iterations > 0 {
		opts = append(opts, sim.WithIterations(rc.Iterations))
	}
	if rc.Method != "" {
		opts = append(opts, sim.WithMethod(rc.Method))
	}
	if len(rc.Times) > 0 {
		opts = append(opts, sim.WithTimes(rc.Times))
	}
	return opts
}

// Run integrates over the configured span. Extra options override the
// model description.
func (e *Experiment) Run(ctx context.Context, opts ...sim.RunOption) (*Result, error) {
	if e.sim == nil {
		return nil, ErrNotSetup
	}
	began := time.Now()
	all := append(e.RunOptions(), opts...)
	if err := e.sim.Run(ctx, e.cfg.Run.Start, e.cfg.Run.End, all...); err != nil {
		return nil, err
	}

	res := &Result{
		Results:  e.sim.Results(),
		Final:    e.sim.Results().Final(),
		SSE:      math.NaN(),
		Duration: time.Since(began),
	}
	if len(e.sim.Data()) > 0 {
		sse, err := e.sim.SSE()
		if err != nil {
			return nil, err
		}
		res.SSE = sse
	}
	e.log.Debug("run complete", "points", len(res.Results.T), "elapsed", res.Duration)
	return res, nil
}

// FitOptions are the sampler settings of the model description.
func (e *Experiment) FitOptions() []mcmc.FitOption {
	fc := e.cfg.Fit
	opts := []mcmc.FitOption{mcmc.WithLogger(e.log)}
	if fc == nil {
		return opts
	}
	if fc.Burn > 0 {
		opts = append(opts, mcmc.WithBurn(fc.Burn))
	}
	if fc.Thin > 0 {
		opts = append(opts, mcmc.WithThin(fc.Thin))
	}
	if fc.Chains > 0 {
		opts = append(opts, mcmc.WithChains(fc.Chains))
	}
	if fc.Seed != 0 {
		opts = append(opts, mcmc.WithSeed(fc.Seed))
	}
	return opts
}

// Fit samples the posterior of the configured priors. A non-positive iter
// uses the model description's count. Extra options override the model
// description.
func (e *Experiment) Fit(ctx context.Context, iter int, opts ...mcmc.FitOption) (*mcmc.Model, error) {
	if e.sim == nil {
		return nil, ErrNotSetup
	}
	if e.cfg.Fit == nil {
		return nil, ErrNoFit
	}
	priors, err := e.cfg.Fit.PriorMap()
	if err != nil {
		return nil, err
	}
	m, err := mcmc.New(e.sim, priors, mcmc.WithStartTime(e.cfg.Run.Start))
	if err != nil {
		return nil, err
	}
	if iter <= 0 {
		iter = e.cfg.Fit.Iter
	}
	if iter <= 0 {
		iter = config.DefaultFitIter
	}
	if err := m.Fit(ctx, iter, append(e.FitOptions(), opts...)...); err != nil {
		return nil, fmt.Errorf("fit %s: %w", e.cfg.Name, err)
	}
	e.model = m
	return m, nil
}

// GridSearch minimises the squared residuals over the prior boxes and
// applies the best point to the simulation.
func (e *Experiment) GridSearch(ctx context.Context, points int) (*optim.Result, error) {
	if e.sim == nil {
		return nil, ErrNotSetup
	}
	if e.cfg.Fit == nil {
		return nil, ErrNoFit
	}
	priors, err := e.cfg.Fit.PriorMap()
	if err != nil {
		return nil, err
	}
	if points <= 0 {
		points = e.cfg.Fit.GridPoints
	}
	if points <= 0 {
		points = config.DefaultGridPoints
	}
	g, err := optim.FromPriors(priors, points)
	if err != nil {
		return nil, err
	}
	return g.Search(ctx, e.sim, optim.WithStartTime(e.cfg.Run.Start), optim.WithLogger(e.log))
}
