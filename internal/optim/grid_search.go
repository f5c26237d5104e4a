package optim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/dynfit/internal/dynamo"
	"github.com/san-kum/dynfit/internal/mcmc"
	"github.com/san-kum/dynfit/internal/sim"
)

var (
	ErrNoParams      = errors.New("optim: no parameters to search")
	ErrRangeMismatch = errors.New("optim: one value range per parameter required")
	ErrNoFeasible    = errors.New("optim: every grid point failed to simulate")
)

// GridSearch evaluates the sum of squared residuals against a
// simulation's data at every combination of parameter values.
type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) == 0 {
		return nil, ErrNoParams
	}
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("%w: %d names, %d ranges", ErrRangeMismatch, len(params), len(ranges))
	}
	for i, r := range ranges {
		if len(r) == 0 {
			return nil, fmt.Errorf("%w: %s has no values", ErrRangeMismatch, params[i])
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

// FromPriors spans each prior box with points evenly spaced values,
// endpoints included. Noise scales are skipped since they do not affect
// the residuals.
func FromPriors(priors map[string]mcmc.Prior, points int) (*GridSearch, error) {
	if points < 1 {
		points = 1
	}
	names := make([]string, 0, len(priors))
	for name := range priors {
		if strings.HasSuffix(name, mcmc.SigmaSuffix) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	ranges := make([][]float64, len(names))
	for i, name := range names {
		p := priors[name]
		if points == 1 {
			ranges[i] = []float64{p.Mid()}
			continue
		}
		ranges[i] = sim.Linspace(p.Low, p.High, points)
	}
	return NewGridSearch(names, ranges)
}

// Size is the number of grid points.
func (g *GridSearch) Size() int {
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

// Result is the best grid point found.
type Result struct {
	Params map[string]float64
	SSE    float64
	// Evaluated counts grid points that simulated; Failed those that did
	// not.
	Evaluated, Failed int
}

type searchConfig struct {
	start    float64
	startSet bool
	workers  int
	logger   *slog.Logger
}

type SearchOption func(*searchConfig)

// WithStartTime sets where each prediction starts integrating; by default
// the start of the simulation's last run, else its first observation.
func WithStartTime(t float64) SearchOption {
	return func(c *searchConfig) {
		c.start = t
		c.startSet = true
	}
}

func WithWorkers(n int) SearchOption {
	return func(c *searchConfig) { c.workers = n }
}

func WithLogger(l *slog.Logger) SearchOption {
	return func(c *searchConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Search evaluates every grid point on clones of s and applies the best
// one to s. Points that fail to simulate are skipped.
func (g *GridSearch) Search(ctx context.Context, s *sim.Simulation, opts ...SearchOption) (*Result, error) {
	cfg := searchConfig{workers: runtime.GOMAXPROCS(0), logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.workers < 1 {
		cfg.workers = 1
	}
	if len(s.Data()) == 0 {
		return nil, mcmc.ErrNoData
	}
	for _, name := range g.paramNames {
		if _, ok := s.Value(name); !ok {
			return nil, fmt.Errorf("%w: %s", mcmc.ErrUnknownParameter, name)
		}
	}
	if !cfg.startSet {
		if start, _, ok := s.Span(); ok {
			cfg.start = start
		} else {
			cfg.start, _ = s.DataStart()
		}
	}

	var points []map[string]float64
	g.searchRecursive(0, make(map[string]float64), &points)

	sse := make([]float64, len(points))
	chunk := (len(points) + cfg.workers - 1) / cfg.workers
	eg, egctx := errgroup.WithContext(ctx)
	for lo := 0; lo < len(points); lo += chunk {
		hi := min(lo+chunk, len(points))
		clone := s.Clone()
		clone.NoPlots = true
		eg.Go(func() error {
			for i := lo; i < hi; i++ {
				v, err := evaluate(egctx, clone, cfg.start, points[i])
				if err != nil {
					return err
				}
				sse[i] = v
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	res := &Result{SSE: math.Inf(1)}
	for i, v := range sse {
		if math.IsNaN(v) {
			res.Failed++
			continue
		}
		res.Evaluated++
		if v < res.SSE {
			res.SSE = v
			res.Params = points[i]
		}
	}
	if res.Params == nil {
		return nil, ErrNoFeasible
	}
	for name, v := range res.Params {
		if err := s.SetValue(name, v); err != nil {
			return nil, err
		}
	}
	cfg.logger.Debug("grid search complete",
		"component", "optim", "points", len(points), "failed", res.Failed, "sse", res.SSE, "best", res.Params)
	return res, nil
}

// searchRecursive enumerates the grid in row-major order.
func (g *GridSearch) searchRecursive(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.paramNames) {
		point := make(map[string]float64, len(current))
		for k, v := range current {
			point[k] = v
		}
		*out = append(*out, point)
		return
	}

	name := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		current[name] = val
		g.searchRecursive(depth+1, current, out)
	}
	delete(current, name)
}

// evaluate returns the SSE at one point, or NaN if the simulation fails.
// Only cancellation is an error.
func evaluate(ctx context.Context, s *sim.Simulation, start float64, point map[string]float64) (float64, error) {
	for name, v := range point {
		if err := s.SetValue(name, v); err != nil {
			return 0, err
		}
	}
	pred, err := s.Predict(ctx, start)
	if err != nil {
		if errors.Is(err, dynamo.ErrContextCanceled) || ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return math.NaN(), nil
	}
	total := 0.0
	for i, d := range s.Data() {
		for k, obs := range d.Values {
			r := obs - pred[i][k]
			total += r * r
		}
	}
	return total, nil
}
