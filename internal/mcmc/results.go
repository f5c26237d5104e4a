package mcmc

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/dynfit/internal/metrics"
)

// DataSuffix selects the observed values of a data variable in Variable.
const DataSuffix = "_data"

// SummaryQuantiles are the quantiles reported by Stats.
var SummaryQuantiles = []float64{0.025, 0.25, 0.5, 0.75, 0.975}

func (m *Model) fitted() (*fitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.result == nil {
		return nil, ErrNotFitted
	}
	return m.result, nil
}

func (m *Model) index(name string) int {
	for i, n := range m.names {
		if n == name {
			return i
		}
	}
	return -1
}

// Value is the best estimate (posterior mean) of a sampled name.
func (m *Model) Value(name string) (float64, error) {
	res, err := m.fitted()
	if err != nil {
		return 0, err
	}
	v, ok := res.best[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownParameter, name)
	}
	return v, nil
}

// Best returns the posterior mean of every sampled name.
func (m *Model) Best() (map[string]float64, error) {
	res, err := m.fitted()
	if err != nil {
		return nil, err
	}
	return copyMap(res.best), nil
}

// MAP returns the kept sample with the highest posterior density.
func (m *Model) MAP() (map[string]float64, error) {
	res, err := m.fitted()
	if err != nil {
		return nil, err
	}
	return copyMap(res.mapValues), nil
}

// Draw applies one posterior sample, chosen uniformly from the kept
// samples, to the simulation and returns it. Draw is safe to call from
// several goroutines, but the simulation it writes to is not.
func (m *Model) Draw() (map[string]float64, error) {
	m.mu.Lock()
	res := m.result
	if res == nil {
		m.mu.Unlock()
		return nil, ErrNotFitted
	}
	idx := res.rng.IntN(len(res.logPost))
	m.mu.Unlock()

	drawn := make(map[string]float64, len(m.names))
	for i, name := range m.names {
		drawn[name] = res.samples[i][idx]
	}
	if err := m.apply(drawn); err != nil {
		return nil, err
	}
	return drawn, nil
}

// FitInfo describes the sampler run behind the current results.
type FitInfo struct {
	Iter, Burn, Thin, Chains int
	Seed                     uint64
	Samples                  int
	Elapsed                  time.Duration
}

func (m *Model) Info() (FitInfo, error) {
	res, err := m.fitted()
	if err != nil {
		return FitInfo{}, err
	}
	return FitInfo{
		Iter:    res.iter,
		Burn:    res.burn,
		Thin:    res.thin,
		Chains:  len(res.chains),
		Seed:    res.seed,
		Samples: len(res.logPost),
		Elapsed: res.elapsed,
	}, nil
}

// Chains returns the per-chain output of the last fit.
func (m *Model) Chains() ([]*Chain, error) {
	res, err := m.fitted()
	if err != nil {
		return nil, err
	}
	return res.chains, nil
}

// Trace returns the combined samples over all chains, one row per sample
// with columns in Names order, and the matching log posterior.
func (m *Model) Trace() ([][]float64, []float64, error) {
	res, err := m.fitted()
	if err != nil {
		return nil, nil, err
	}
	n := len(res.logPost)
	rows := make([][]float64, n)
	for k := 0; k < n; k++ {
		row := make([]float64, len(m.names))
		for i := range m.names {
			row[i] = res.samples[i][k]
		}
		rows[k] = row
	}
	return rows, append([]float64(nil), res.logPost...), nil
}

type VariableKind int

const (
	// Stochastic variables are sampled: parameters, initial values and
	// noise scales.
	Stochastic VariableKind = iota
	// Deterministic variables are model predictions at the observation
	// times, one trace per observation.
	Deterministic
	// Observed variables hold the data itself and have no trace.
	Observed
)

func (k VariableKind) String() string {
	switch k {
	case Stochastic:
		return "stochastic"
	case Deterministic:
		return "deterministic"
	case Observed:
		return "observed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Variable is a named quantity tracked by a fitted model. Scalar variables
// have one component; data-linked variables have one per observation.
type Variable struct {
	Name string
	Kind VariableKind
	// T holds observation times for data-linked variables.
	T []float64

	// traces[j] is the posterior sample of component j.
	traces [][]float64
	value  []float64
}

// Variable looks up a sampled name, a data variable v (posterior
// predictive at the observation times) or v_data (the observations).
func (m *Model) Variable(name string) (*Variable, error) {
	res, err := m.fitted()
	if err != nil {
		return nil, err
	}

	if i := m.index(name); i >= 0 {
		return &Variable{
			Name:   name,
			Kind:   Stochastic,
			traces: [][]float64{res.samples[i]},
			value:  []float64{res.best[name]},
		}, nil
	}

	if v, ok := strings.CutSuffix(name, DataSuffix); ok {
		if _, isData := m.sigmaOf[v]; isData {
			t, obs := m.observations(v)
			return &Variable{Name: name, Kind: Observed, T: t, value: obs}, nil
		}
	}

	if rows, ok := res.predictive[name]; ok && len(rows) > 0 {
		t, _ := m.observations(name)
		traces := make([][]float64, len(rows[0]))
		for j := range traces {
			col := make([]float64, len(rows))
			for k, row := range rows {
				col[k] = row[j]
			}
			traces[j] = col
		}
		value := make([]float64, len(traces))
		for j, col := range traces {
			value[j] = stat.Mean(col, nil)
		}
		return &Variable{Name: name, Kind: Deterministic, T: t, traces: traces, value: value}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownVariable, name)
}

func (m *Model) observations(v string) ([]float64, []float64) {
	var t, obs []float64
	for _, d := range m.sim.DataFor(v) {
		t = append(t, d.T...)
		obs = append(obs, d.Values...)
	}
	return t, obs
}

// Value is the best estimate for each component: the posterior mean for
// sampled and predicted variables, the data for observed ones.
func (v *Variable) Value() []float64 { return append([]float64(nil), v.value...) }

// Scalar returns the first component of Value.
func (v *Variable) Scalar() float64 {
	if len(v.value) == 0 {
		return math.NaN()
	}
	return v.value[0]
}

func (v *Variable) Len() int { return len(v.value) }

// Trace returns the posterior sample of component j.
func (v *Variable) Trace(j int) []float64 {
	if j < 0 || j >= len(v.traces) {
		return nil
	}
	return v.traces[j]
}

// Stats summarises each component of a variable.
type Stats struct {
	N         int
	Mean      []float64
	SD        []float64
	MCError   []float64
	HPD95     [][2]float64
	Quantiles map[float64][]float64
}

// Stats of an observed variable treat the data as a single fixed draw.
func (v *Variable) Stats() Stats {
	comps := len(v.value)
	st := Stats{
		Mean:      make([]float64, comps),
		SD:        make([]float64, comps),
		MCError:   make([]float64, comps),
		HPD95:     make([][2]float64, comps),
		Quantiles: make(map[float64][]float64, len(SummaryQuantiles)),
	}
	for _, q := range SummaryQuantiles {
		st.Quantiles[q] = make([]float64, comps)
	}

	if v.Kind == Observed {
		st.N = 1
		for j, x := range v.value {
			st.Mean[j] = x
			st.HPD95[j] = [2]float64{x, x}
			for _, q := range SummaryQuantiles {
				st.Quantiles[q][j] = x
			}
		}
		return st
	}

	for j, trace := range v.traces {
		st.N = len(trace)
		st.Mean[j], st.SD[j] = stat.MeanStdDev(trace, nil)
		st.MCError[j] = metrics.MCError(trace)
		lo, hi := metrics.HPD(trace, 0.95)
		st.HPD95[j] = [2]float64{lo, hi}

		sorted := append([]float64(nil), trace...)
		sort.Float64s(sorted)
		for _, q := range SummaryQuantiles {
			st.Quantiles[q][j] = stat.Quantile(q, stat.Empirical, sorted, nil)
		}
	}
	return st
}

func copyMap(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
