package mcmc

import "log/slog"

// Sampler defaults.
const (
	// DefaultTuneInterval is the number of burn-in iterations between
	// proposal scale adjustments.
	DefaultTuneInterval = 100

	// DefaultChains is the number of chains run when none is requested.
	DefaultChains = 1

	// progressSteps is the number of progress callbacks per chain.
	progressSteps = 100
)

// Option configures a Model.
type Option func(*Model)

// WithStartTime sets the time integration starts from when computing the
// likelihood. By default it is the start of the last simulation run, or the
// first observation if the simulation has not been run.
func WithStartTime(t float64) Option {
	return func(m *Model) {
		m.startTime = t
		m.startSet = true
	}
}

// Progress reports sampling state for one chain.
type Progress struct {
	Chain      int
	Iter       int
	Total      int
	Burn       int
	Acceptance float64
	LogPost    float64
}

// FitOption configures a call to Fit.
type FitOption func(*fitConfig)

type fitConfig struct {
	burn         int
	burnSet      bool
	thin         int
	chains       int
	seed         uint64
	seedSet      bool
	tuneInterval int
	progress     func(Progress)
	logger       *slog.Logger
	start        map[string]float64
}

func newFitConfig() *fitConfig {
	return &fitConfig{
		thin:         1,
		chains:       DefaultChains,
		tuneInterval: DefaultTuneInterval,
		logger:       slog.Default(),
	}
}

// WithBurn discards the first n iterations of each chain. The default is a
// quarter of the iterations.
func WithBurn(n int) FitOption {
	return func(c *fitConfig) {
		c.burn = n
		c.burnSet = true
	}
}

// WithThin keeps every n-th post-burn iteration.
func WithThin(n int) FitOption {
	return func(c *fitConfig) { c.thin = n }
}

// WithChains runs n independent chains concurrently.
func WithChains(n int) FitOption {
	return func(c *fitConfig) { c.chains = n }
}

// WithSeed makes the fit reproducible.
func WithSeed(seed uint64) FitOption {
	return func(c *fitConfig) {
		c.seed = seed
		c.seedSet = true
	}
}

func WithTuneInterval(n int) FitOption {
	return func(c *fitConfig) { c.tuneInterval = n }
}

// WithProgress is called from the sampling goroutines; it must be safe for
// concurrent use when more than one chain runs.
func WithProgress(fn func(Progress)) FitOption {
	return func(c *fitConfig) { c.progress = fn }
}

func WithLogger(l *slog.Logger) FitOption {
	return func(c *fitConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithStart overrides starting values. Names without an entry start from
// the simulation's current value, or the prior midpoint when that lies
// outside the prior.
func WithStart(values map[string]float64) FitOption {
	return func(c *fitConfig) { c.start = values }
}
