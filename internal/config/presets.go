package config

import (
	"fmt"
	"math"
	"sort"
)

// Height of a plant over 12 days.
var (
	growthDays   = []float64{0, 2, 4, 6, 8, 10, 12}
	growthHeight = []float64{1.0, 1.5, 2.2, 3.2, 4.3, 5.2, 5.6}
)

// Presets builds each built-in model afresh so callers may modify it.
var Presets = map[string]func() *Config{
	"mice": func() *Config {
		return &Config{
			Name:        "mice",
			Description: "exponential growth of a mouse population",
			Equations:   []EquationConfig{{Eq: "mice' = b*mice - d*mice", Initial: Initial{100}, Plot: true}},
			Params:      map[string]float64{"b": 1.1, "d": 0.08},
			Run:         RunConfig{Start: 0, End: 4, Iterations: DefaultIterations, Method: DefaultMethod},
		}
	},
	"mice_flows": func() *Config {
		return &Config{
			Name:        "mice_flows",
			Description: "the mouse population as a stock with birth inflow and death outflow",
			Stocks: []StockConfig{{
				Name: "mice", Initial: 100, Plot: true,
				Inflows: []string{"b*mice"}, Outflows: []string{"d*mice"},
			}},
			Params: map[string]float64{"b": 1.1, "d": 0.08},
			Run:    RunConfig{Start: 0, End: 4, Iterations: DefaultIterations, Method: DefaultMethod},
		}
	},
	"predator_prey": func() *Config {
		return &Config{
			Name:        "predator_prey",
			Description: "deer and wolves",
			Equations: []EquationConfig{
				{Eq: "deer' = r*deer*(1-deer/K) - c*deer*wolf", Initial: Initial{350}, Plot: true},
				{Eq: "wolf' = -Wd*wolf + D*deer*wolf", Initial: Initial{50}, Plot: true},
			},
			Params: map[string]float64{"r": 0.25, "D": 0.001, "c": 0.005, "Wd": 0.3, "K": math.Inf(1)},
			Run:    RunConfig{Start: 0, End: 500, Iterations: DefaultIterations, Method: DefaultMethod},
			Phase:  []string{"deer", "wolf"},
		}
	},
	"logistic_vs_exponential": func() *Config {
		return &Config{
			Name:        "logistic_vs_exponential",
			Description: "logistic and exponential growth from the same start",
			Equations: []EquationConfig{
				{Eq: "pop' = r*pop*(1-pop/K)", Initial: Initial{350}, Plot: true},
				{Eq: "pop2' = r*pop2", Initial: Initial{350}, Plot: true},
			},
			Params: map[string]float64{"r": 0.25, "K": 3000},
			Run:    RunConfig{Start: 0, End: 5, Iterations: DefaultIterations, Method: DefaultMethod},
		}
	},
	"damped_spring": func() *Config {
		return &Config{
			Name:        "damped_spring",
			Description: "second-order damped oscillator",
			Equations:   []EquationConfig{{Eq: "x'' = -k*x/m - b*x'", Initial: Initial{10, 0}, Plot: true}},
			Params:      map[string]float64{"k": 1, "m": 1, "b": 0.5},
			Run:         RunConfig{Start: 0, End: 20, Iterations: DefaultIterations, Method: DefaultMethod},
			Phase:       []string{"x", "x_p"},
		}
	},
	"vector_p": func() *Config {
		return &Config{
			Name:        "vector_p",
			Description: "logistic growth with its slope field",
			Equations:   []EquationConfig{{Eq: "p' = p*(1-p)", Initial: Initial{0.1}, Plot: true}},
			Run:         RunConfig{Start: 0, End: 10, Iterations: DefaultIterations, Method: DefaultMethod},
			Vector: &VectorConfig{
				Ranges: []VectorRangeConfig{{Name: "p", From: -1, To: 2, Points: 20}},
			},
		}
	},
	"lorenz": func() *Config {
		return &Config{
			Name:        "lorenz",
			Description: "the Lorenz system",
			Equations: []EquationConfig{
				{Eq: "x' = sigma*(y-x)", Initial: Initial{14}, Plot: true},
				{Eq: "y' = x*(rho-z) - y", Initial: Initial{8.1}, Plot: true},
				{Eq: "z' = x*y - beta*z", Initial: Initial{45}, Plot: true},
			},
			Params: map[string]float64{"sigma": 10, "beta": 8.0 / 3, "rho": 15},
			Run:    RunConfig{Start: 0, End: 50, Iterations: 10000, Method: DefaultMethod},
			Phase:  []string{"x", "y", "z"},
		}
	},
	"van_der_pol": func() *Config {
		return &Config{
			Name:        "van_der_pol",
			Description: "relaxation oscillator settling onto a limit cycle",
			Equations:   []EquationConfig{{Eq: "x'' = mu*(1-x^2)*x' - x", Initial: Initial{2, 0}, Plot: true}},
			Params:      map[string]float64{"mu": 1},
			Run:         RunConfig{Start: 0, End: 30, Iterations: DefaultIterations, Method: DefaultMethod},
			Phase:       []string{"x", "x_p"},
		}
	},
	"duffing": func() *Config {
		return &Config{
			Name:        "duffing",
			Description: "forced double-well oscillator",
			Equations: []EquationConfig{{
				Eq:      "x'' = -delta*x' - alpha*x - beta*x^3 + gamma*cos(omega*t)",
				Initial: Initial{1, 0},
				Plot:    true,
			}},
			Params: map[string]float64{"alpha": -1, "beta": 1, "delta": 0.3, "gamma": 0.5, "omega": 1.2},
			Run:    RunConfig{Start: 0, End: 100, Iterations: 5000, Method: DefaultMethod},
			Phase:  []string{"x", "x_p"},
		}
	},
	"rossler": func() *Config {
		return &Config{
			Name:        "rossler",
			Description: "the Rössler attractor",
			Equations: []EquationConfig{
				{Eq: "x' = -y - z", Initial: Initial{1}, Plot: true},
				{Eq: "y' = x + a*y", Initial: Initial{1}},
				{Eq: "z' = b + z*(x-c)", Initial: Initial{1}},
			},
			Params: map[string]float64{"a": 0.2, "b": 0.2, "c": 5.7},
			Run:    RunConfig{Start: 0, End: 200, Iterations: 10000, Method: DefaultMethod},
			Phase:  []string{"x", "y", "z"},
		}
	},
	"pendulum": func() *Config {
		return &Config{
			Name:        "pendulum",
			Description: "damped pendulum",
			Equations: []EquationConfig{
				{Eq: "theta'' = -damping*theta'/(m*L^2) - g*sin(theta)/L", Initial: Initial{0.5, 0}, Plot: true},
				{Eq: "energy = 0.5*m*(L*theta')^2 + m*g*L*(1-cos(theta))", Plot: true},
			},
			Params: map[string]float64{"m": 1, "L": 1, "damping": 0.1, "g": 9.81},
			Run:    RunConfig{Start: 0, End: 20, Iterations: DefaultIterations, Method: DefaultMethod},
			Phase:  []string{"theta", "theta_p"},
		}
	},
	"logistic_map": func() *Config {
		return &Config{
			Name:        "logistic_map",
			Description: "period doubling in the discrete logistic map",
			Equations:   []EquationConfig{{Eq: "x[t+1] = r*x*(1-x)", Initial: Initial{0.2}, Plot: true}},
			Params:      map[string]float64{"r": 3.5},
			Run:         RunConfig{Start: 0, End: 60},
		}
	},
	"linear_growth_fit": func() *Config {
		return &Config{
			Name:        "linear_growth_fit",
			Description: "constant growth rate fitted to plant heights",
			Equations:   []EquationConfig{{Eq: "h' = a", Initial: Initial{1}, Plot: true}},
			Params:      map[string]float64{"a": 1},
			Data:        growthData(),
			Run:         RunConfig{Start: 0, End: 12, Iterations: DefaultIterations, Method: DefaultMethod},
			Fit: &FitConfig{
				Priors: map[string][]float64{"a": {-10, 10}, "initial_h": {0, 4}},
				Iter:   25000,
			},
		}
	},
	"logistic_growth_fit": func() *Config {
		return &Config{
			Name:        "logistic_growth_fit",
			Description: "logistic growth fitted to plant heights",
			Equations:   []EquationConfig{{Eq: "h' = a*h*(1-h/K)", Initial: Initial{1}, Plot: true}},
			Params:      map[string]float64{"a": 1, "K": 10},
			Data:        growthData(),
			Run:         RunConfig{Start: 0, End: 12, Iterations: DefaultIterations, Method: DefaultMethod},
			Fit: &FitConfig{
				Priors: map[string][]float64{"a": {0.001, 5}, "K": {0.1, 40}, "initial_h": {0, 4}},
				Iter:   25000,
			},
		}
	},
}

func growthData() *DataConfig {
	return &DataConfig{
		T:      append([]float64(nil), growthDays...),
		Values: map[string][]float64{"h": append([]float64(nil), growthHeight...)},
		Plot:   true,
	}
}

func GetPreset(name string) (*Config, error) {
	build, ok := Presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoPreset, name)
	}
	return build(), nil
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
