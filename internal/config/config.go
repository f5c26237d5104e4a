package config

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/dynfit/internal/mcmc"
)

const (
	DefaultStart      = 0.0
	DefaultEnd        = 10.0
	DefaultIterations = 1000
	DefaultMethod     = "rk45"
	DefaultFitIter    = 10000
	DefaultGridPoints = 11
)

var (
	ErrNoEquations = errors.New("config: model has no equations or stocks")
	ErrBadPrior    = errors.New("config: prior must be [low, high]")
	ErrBadData     = errors.New("config: data series length does not match t")
	ErrNoPreset    = errors.New("config: unknown preset")
)

// Config describes a model file: the system, its parameters, optional data
// and how to run and fit it.
type Config struct {
	Name        string             `yaml:"name"`
	Description string             `yaml:"description,omitempty"`
	Equations   []EquationConfig   `yaml:"equations,omitempty"`
	Stocks      []StockConfig      `yaml:"stocks,omitempty"`
	Params      map[string]float64 `yaml:"params,omitempty"`
	Data        *DataConfig        `yaml:"data,omitempty"`
	Run         RunConfig          `yaml:"run"`
	Fit         *FitConfig         `yaml:"fit,omitempty"`
	// Phase names two or three states for a phase plot after a run.
	Phase  []string      `yaml:"phase,omitempty"`
	Vector *VectorConfig `yaml:"vector,omitempty"`
}

type EquationConfig struct {
	Eq      string  `yaml:"eq"`
	Initial Initial `yaml:"initial,omitempty"`
	Plot    bool    `yaml:"plot,omitempty"`
}

// Initial holds a value followed by its successive derivatives. In YAML it
// may be written as a single number or a list.
type Initial []float64

func (i *Initial) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var v float64
		if err := node.Decode(&v); err != nil {
			return err
		}
		*i = Initial{v}
		return nil
	case yaml.SequenceNode:
		var vs []float64
		if err := node.Decode(&vs); err != nil {
			return err
		}
		*i = vs
		return nil
	default:
		return fmt.Errorf("config: line %d: initial must be a number or a list", node.Line)
	}
}

type StockConfig struct {
	Name     string   `yaml:"name"`
	Initial  float64  `yaml:"initial"`
	Inflows  []string `yaml:"inflows,omitempty"`
	Outflows []string `yaml:"outflows,omitempty"`
	Plot     bool     `yaml:"plot,omitempty"`
}

type DataConfig struct {
	T      []float64            `yaml:"t"`
	Values map[string][]float64 `yaml:"values"`
	Plot   bool                 `yaml:"plot,omitempty"`
}

type RunConfig struct {
	Start      float64   `yaml:"start"`
	End        float64   `yaml:"end"`
	Iterations int       `yaml:"iterations,omitempty"`
	Method     string    `yaml:"method,omitempty"`
	Times      []float64 `yaml:"times,omitempty"`
}

// FitConfig holds sampler settings. Priors map a parameter or
// initial_<state> name to its [low, high] bounds.
type FitConfig struct {
	Priors map[string][]float64 `yaml:"priors"`
	Iter   int                  `yaml:"iter,omitempty"`
	Burn   int                  `yaml:"burn,omitempty"`
	Thin   int                  `yaml:"thin,omitempty"`
	Chains int                  `yaml:"chains,omitempty"`
	Seed   uint64               `yaml:"seed,omitempty"`
	// GridPoints per parameter for the least-squares grid search.
	GridPoints int `yaml:"grid_points,omitempty"`
}

// VectorConfig samples states on evenly spaced values for a vector field.
type VectorConfig struct {
	Rescale bool                `yaml:"rescale,omitempty"`
	Ranges  []VectorRangeConfig `yaml:"ranges"`
}

type VectorRangeConfig struct {
	Name   string  `yaml:"name"`
	From   float64 `yaml:"from"`
	To     float64 `yaml:"to"`
	Points int     `yaml:"points"`
}

func DefaultConfig() *Config {
	return &Config{
		Params: map[string]float64{},
		Run: RunConfig{
			Start:      DefaultStart,
			End:        DefaultEnd,
			Iterations: DefaultIterations,
			Method:     DefaultMethod,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a model file over the defaults and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the file's shape. Equation syntax and name resolution
// are checked when the simulation is built.
func (c *Config) Validate() error {
	if len(c.Equations) == 0 && len(c.Stocks) == 0 {
		return ErrNoEquations
	}
	if c.Data != nil {
		for name, vs := range c.Data.Values {
			if len(vs) != len(c.Data.T) {
				return fmt.Errorf("%w: %s has %d values, t has %d", ErrBadData, name, len(vs), len(c.Data.T))
			}
		}
	}
	if c.Fit != nil {
		if _, err := c.Fit.PriorMap(); err != nil {
			return err
		}
	}
	return nil
}

// PriorMap converts the [low, high] pairs into sampler priors.
func (f *FitConfig) PriorMap() (map[string]mcmc.Prior, error) {
	out := make(map[string]mcmc.Prior, len(f.Priors))
	for name, b := range f.Priors {
		if len(b) != 2 {
			return nil, fmt.Errorf("%w: %s has %d values", ErrBadPrior, name, len(b))
		}
		p := mcmc.Prior{Low: b[0], High: b[1]}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[name] = p
	}
	return out, nil
}

// PriorNames lists the fitted names in sorted order.
func (f *FitConfig) PriorNames() []string {
	names := make([]string, 0, len(f.Priors))
	for name := range f.Priors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Values expands a range into its sample points.
func (r VectorRangeConfig) Values() []float64 {
	n := r.Points
	if n < 2 {
		n = 20
	}
	out := make([]float64, n)
	step := (r.To - r.From) / float64(n-1)
	for i := range out {
		out[i] = r.From + float64(i)*step
	}
	out[n-1] = r.To
	return out
}
