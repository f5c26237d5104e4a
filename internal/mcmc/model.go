package mcmc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/san-kum/dynfit/internal/dynamo"
	"github.com/san-kum/dynfit/internal/sim"
)

// SigmaSuffix names the noise scale of a data variable, e.g. h_sigma.
const SigmaSuffix = "_sigma"

// Model binds a simulation to priors over its parameters and initial
// values. It is not safe for concurrent use except where noted.
type Model struct {
	sim    *sim.Simulation
	priors map[string]Prior
	names  []string

	// sigmaOf maps each data variable to the name of its noise scale.
	sigmaOf  map[string]string
	dataVars []string

	startTime float64
	startSet  bool

	mu     sync.Mutex
	result *fitResult
}

// New validates the priors against the simulation. Every data variable
// without an explicit <var>_sigma prior gets a uniform noise prior on
// [0, 10*max(span, |mean|, 1)] of its observations.
func New(s *sim.Simulation, priors map[string]Prior, opts ...Option) (*Model, error) {
	if s == nil {
		return nil, errors.New("mcmc: nil simulation")
	}
	if len(s.Data()) == 0 {
		return nil, ErrNoData
	}

	m := &Model{
		sim:      s,
		priors:   make(map[string]Prior, len(priors)),
		sigmaOf:  make(map[string]string),
		dataVars: s.DataVariables(),
	}
	for _, opt := range opts {
		opt(m)
	}

	isSigma := make(map[string]bool)
	for _, v := range m.dataVars {
		name := v + SigmaSuffix
		m.sigmaOf[v] = name
		isSigma[name] = true
	}

	var params []string
	for name, p := range priors {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		_, bound := s.Value(name)
		switch {
		case isSigma[name]:
		case bound:
			params = append(params, name)
		case strings.HasSuffix(name, SigmaSuffix):
			return nil, fmt.Errorf("%w: %s (no data for %s)", ErrUnknownParameter, name, strings.TrimSuffix(name, SigmaSuffix))
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownParameter, name)
		}
		m.priors[name] = p
	}
	sort.Strings(params)
	m.names = params

	for _, v := range m.dataVars {
		name := m.sigmaOf[v]
		if _, ok := m.priors[name]; !ok {
			m.priors[name] = Prior{Low: 0, High: 10 * m.dataScale(v)}
		}
		m.names = append(m.names, name)
	}
	return m, nil
}

// dataScale is max(span, |mean|, 1) over every observation of v.
func (m *Model) dataScale(v string) float64 {
	var all []float64
	for _, d := range m.sim.DataFor(v) {
		all = append(all, d.Values...)
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, x := range all {
		lo, hi = math.Min(lo, x), math.Max(hi, x)
	}
	scale := 1.0
	if len(all) > 0 {
		scale = math.Max(scale, hi-lo)
		scale = math.Max(scale, math.Abs(stat.Mean(all, nil)))
	}
	return scale
}

// Names lists the sampled quantities: parameters and initial values in
// sorted order, then one noise scale per data variable.
func (m *Model) Names() []string { return append([]string(nil), m.names...) }

func (m *Model) Prior(name string) (Prior, bool) {
	p, ok := m.priors[name]
	return p, ok
}

func (m *Model) Simulation() *sim.Simulation { return m.sim }

func (m *Model) isSigma(name string) bool {
	return strings.HasSuffix(name, SigmaSuffix) && m.sigmaOf[strings.TrimSuffix(name, SigmaSuffix)] == name
}

func (m *Model) fitStart() float64 {
	if m.startSet {
		return m.startTime
	}
	if start, _, ok := m.sim.Span(); ok {
		return start
	}
	t, _ := m.sim.DataStart()
	return t
}

// startValues picks the initial point of a chain.
func (m *Model) startValues(override map[string]float64) []float64 {
	theta := make([]float64, len(m.names))
	for i, name := range m.names {
		p := m.priors[name]
		if v, ok := override[name]; ok && p.Contains(v) {
			theta[i] = v
			continue
		}
		if m.isSigma(name) {
			theta[i] = p.Low + p.Width()/100
			if theta[i] <= 0 {
				theta[i] = p.Mid()
			}
			continue
		}
		if v, ok := m.sim.Value(name); ok && p.Contains(v) {
			theta[i] = v
			continue
		}
		theta[i] = p.Mid()
	}
	return theta
}

// logPosterior evaluates the unnormalised log posterior at theta on s.
// Points outside the prior or where the simulation fails give -Inf; only
// cancellation is returned as an error.
func (m *Model) logPosterior(ctx context.Context, s *sim.Simulation, start float64, theta []float64) (float64, [][]float64, error) {
	lp := 0.0
	sigma := make(map[string]float64, len(m.sigmaOf))
	for i, name := range m.names {
		p := m.priors[name]
		if !p.Contains(theta[i]) {
			return math.Inf(-1), nil, nil
		}
		lp += p.LogProb(theta[i])
		if m.isSigma(name) {
			sigma[name] = theta[i]
			continue
		}
		if err := s.SetValue(name, theta[i]); err != nil {
			return 0, nil, err
		}
	}

	pred, err := s.Predict(ctx, start)
	if err != nil {
		if errors.Is(err, dynamo.ErrContextCanceled) || ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		return math.Inf(-1), nil, nil
	}

	for i, d := range s.Data() {
		sd := sigma[m.sigmaOf[d.Name]]
		if !(sd > 0) {
			return math.Inf(-1), nil, nil
		}
		noise := distuv.Normal{Mu: 0, Sigma: sd}
		for k, obs := range d.Values {
			lp += noise.LogProb(obs - pred[i][k])
		}
	}
	if math.IsNaN(lp) {
		return math.Inf(-1), nil, nil
	}
	return lp, pred, nil
}
