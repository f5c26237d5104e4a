package mcmc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/dynfit/internal/dynamo"
	"github.com/san-kum/dynfit/internal/metrics"
	"github.com/san-kum/dynfit/internal/sim"
)

// maxStartAttempts bounds the prior draws tried when the starting point has
// zero posterior density.
const maxStartAttempts = 200

// Chain is the post-burn output of one sampler run.
type Chain struct {
	ID int
	// Samples holds one trace per sampled name, in Model.Names order.
	Samples [][]float64
	LogPost []float64
	// Predictive holds, per data variable, the model prediction at every
	// observation for each kept sample.
	Predictive map[string][][]float64

	Acceptance  float64
	FailureRate float64
	Scales      []float64
}

type fitResult struct {
	iter, burn, thin int
	seed             uint64
	chains           []*Chain
	// combined traces over all chains
	samples    [][]float64
	logPost    []float64
	predictive map[string][][]float64
	best       map[string]float64
	mapValues  map[string]float64
	rng        *rand.Rand
	elapsed    time.Duration
}

// Fit runs the sampler for iter iterations per chain. On success the
// posterior mean of every parameter and initial value is applied to the
// simulation.
func (m *Model) Fit(ctx context.Context, iter int, opts ...FitOption) error {
	cfg := newFitConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if !cfg.burnSet {
		cfg.burn = iter / 4
	}
	switch {
	case iter <= 0:
		return fmt.Errorf("mcmc: iterations must be positive, got %d", iter)
	case cfg.burn < 0 || cfg.burn >= iter:
		return fmt.Errorf("mcmc: burn %d must be in [0, %d)", cfg.burn, iter)
	case cfg.thin < 1:
		return fmt.Errorf("mcmc: thin must be at least 1, got %d", cfg.thin)
	case cfg.chains < 1:
		return fmt.Errorf("mcmc: chains must be at least 1, got %d", cfg.chains)
	case cfg.tuneInterval < 1:
		return fmt.Errorf("mcmc: tune interval must be at least 1, got %d", cfg.tuneInterval)
	}
	if !cfg.seedSet {
		cfg.seed = rand.Uint64()
	}

	start := m.fitStart()
	if err := m.checkPredict(ctx, start); err != nil {
		return err
	}

	log := cfg.logger.With("component", "mcmc")
	log.Debug("starting fit",
		"iter", iter, "burn", cfg.burn, "thin", cfg.thin,
		"chains", cfg.chains, "params", m.names, "start_time", start)

	began := time.Now()
	chains := make([]*Chain, cfg.chains)
	g, gctx := errgroup.WithContext(ctx)
	for c := 0; c < cfg.chains; c++ {
		s := m.sim.Clone()
		s.NoPlots = true
		s.SetOutput(io.Discard)
		rng := rand.New(rand.NewPCG(cfg.seed, uint64(c)+1))
		g.Go(func() error {
			ch, err := m.runChain(gctx, c, s, start, iter, cfg, rng, log)
			if err != nil {
				return fmt.Errorf("chain %d: %w", c, err)
			}
			chains[c] = ch
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	res := combine(chains, m.names)
	res.iter, res.burn, res.thin, res.seed = iter, cfg.burn, cfg.thin, cfg.seed
	res.rng = rand.New(rand.NewPCG(cfg.seed, 0))
	res.elapsed = time.Since(began)

	m.mu.Lock()
	m.result = res
	m.mu.Unlock()

	if err := m.apply(res.best); err != nil {
		return err
	}

	log.Info("fit complete",
		"samples", len(res.logPost),
		"elapsed", res.elapsed.Round(time.Millisecond),
		"best", res.best)
	return nil
}

// checkPredict surfaces configuration errors, such as data for a variable
// the model lacks, before any chain starts.
func (m *Model) checkPredict(ctx context.Context, start float64) error {
	_, err := m.sim.Clone().Predict(ctx, start)
	if err == nil || errors.Is(err, dynamo.ErrInvalidState) || errors.Is(err, dynamo.ErrStepTooSmall) {
		return nil
	}
	return err
}

func (m *Model) runChain(ctx context.Context, id int, s *sim.Simulation, start float64, iter int, cfg *fitConfig, rng *rand.Rand, log *slog.Logger) (*Chain, error) {
	k := len(m.names)
	theta := m.startValues(cfg.start)
	scales := make([]float64, k)
	for i, name := range m.names {
		scales[i] = m.priors[name].Width() / 20
	}

	lp, pred, err := m.logPosterior(ctx, s, start, theta)
	if err != nil {
		return nil, err
	}
	for attempt := 0; math.IsInf(lp, -1) && attempt < maxStartAttempts; attempt++ {
		for i, name := range m.names {
			theta[i] = m.priors[name].sample(rng)
		}
		if lp, pred, err = m.logPosterior(ctx, s, start, theta); err != nil {
			return nil, err
		}
	}
	if math.IsInf(lp, -1) {
		return nil, ErrNoValidStart
	}

	keep := (iter - cfg.burn + cfg.thin - 1) / cfg.thin
	chain := &Chain{
		ID:         id,
		Samples:    make([][]float64, k),
		LogPost:    make([]float64, 0, keep),
		Predictive: make(map[string][][]float64, len(m.dataVars)),
	}
	for i := range chain.Samples {
		chain.Samples[i] = make([]float64, 0, keep)
	}

	acceptance := metrics.NewAcceptanceRate()
	window := metrics.NewAcceptanceRate()
	failures := metrics.NewFailureRate()
	meanLP := metrics.NewRunningMean("log_post")
	proposal := make([]float64, k)
	report := max(1, iter/progressSteps)

	for it := 0; it < iter; it++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for j := range proposal {
			proposal[j] = theta[j] + scales[j]*rng.NormFloat64()
		}
		lpNew, predNew, err := m.logPosterior(ctx, s, start, proposal)
		if err != nil {
			return nil, err
		}
		accepted := !math.IsInf(lpNew, -1) && math.Log(rng.Float64()) < lpNew-lp
		failures.Observe(lpNew, accepted)
		if accepted {
			copy(theta, proposal)
			lp, pred = lpNew, predNew
		}

		if it < cfg.burn {
			window.Observe(lpNew, accepted)
			if (it+1)%cfg.tuneInterval == 0 {
				rate := window.Value()
				factor := tuneFactor(rate)
				for j := range scales {
					scales[j] *= factor
				}
				log.Debug("tuned proposal", "chain", id, "iter", it+1, "acceptance", rate, "factor", factor)
				window.Reset()
			}
		} else {
			acceptance.Observe(lpNew, accepted)
			meanLP.Observe(lp, accepted)
			if (it-cfg.burn)%cfg.thin == 0 {
				chain.record(theta, lp, pred, s.Data())
			}
		}

		if cfg.progress != nil && ((it+1)%report == 0 || it+1 == iter) {
			rate := acceptance.Value()
			if it < cfg.burn {
				rate = window.Value()
			}
			cfg.progress(Progress{Chain: id, Iter: it + 1, Total: iter, Burn: cfg.burn, Acceptance: rate, LogPost: lp})
		}
	}

	chain.Acceptance = acceptance.Value()
	chain.FailureRate = failures.Value()
	chain.Scales = scales
	log.Debug("chain finished", "chain", id, "acceptance", chain.Acceptance, "failure_rate", chain.FailureRate,
		"mean_log_post", meanLP.Value(), "sd_log_post", math.Sqrt(meanLP.Variance()))
	return chain, nil
}

func (c *Chain) record(theta []float64, lp float64, pred [][]float64, data []*sim.Dataset) {
	for i, v := range theta {
		c.Samples[i] = append(c.Samples[i], v)
	}
	c.LogPost = append(c.LogPost, lp)

	rows := make(map[string][]float64)
	for i, d := range data {
		rows[d.Name] = append(rows[d.Name], pred[i]...)
	}
	for name, row := range rows {
		c.Predictive[name] = append(c.Predictive[name], row)
	}
}

// tuneFactor scales the proposal width from the acceptance rate over the
// last tuning window.
func tuneFactor(rate float64) float64 {
	switch {
	case rate < 0.001:
		return 0.1
	case rate < 0.05:
		return 0.5
	case rate < 0.2:
		return 0.9
	case rate > 0.95:
		return 10
	case rate > 0.75:
		return 2
	case rate > 0.5:
		return 1.1
	default:
		return 1
	}
}

func combine(chains []*Chain, names []string) *fitResult {
	res := &fitResult{
		chains:     chains,
		samples:    make([][]float64, len(names)),
		predictive: make(map[string][][]float64),
		best:       make(map[string]float64, len(names)),
		mapValues:  make(map[string]float64, len(names)),
	}
	for _, c := range chains {
		for i := range names {
			res.samples[i] = append(res.samples[i], c.Samples[i]...)
		}
		res.logPost = append(res.logPost, c.LogPost...)
		for v, rows := range c.Predictive {
			res.predictive[v] = append(res.predictive[v], rows...)
		}
	}

	bestIdx := 0
	for i, lp := range res.logPost {
		if lp > res.logPost[bestIdx] {
			bestIdx = i
		}
	}
	for i, name := range names {
		sum := 0.0
		for _, v := range res.samples[i] {
			sum += v
		}
		res.best[name] = sum / float64(len(res.samples[i]))
		res.mapValues[name] = res.samples[i][bestIdx]
	}
	return res
}

// apply writes parameter values into the bound simulation; noise scales
// are skipped.
func (m *Model) apply(values map[string]float64) error {
	for _, name := range m.names {
		if m.isSigma(name) {
			continue
		}
		v, ok := values[name]
		if !ok {
			continue
		}
		if err := m.sim.SetValue(name, v); err != nil {
			return err
		}
	}
	return nil
}
