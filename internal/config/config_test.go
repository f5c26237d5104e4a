package config

import (
	"errors"
	"math"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Run.Method != "rk45" {
		t.Errorf("expected method rk45, got %s", cfg.Run.Method)
	}
	if cfg.Run.End <= cfg.Run.Start {
		t.Error("end should be after start")
	}
	if cfg.Run.Iterations <= 1 {
		t.Error("iterations should exceed 1")
	}
}

const springYAML = `
name: spring
equations:
  - eq: "x'' = -k*x/m - b*x'"
    initial: [10, 0]
    plot: true
  - eq: "e = x^2"
params:
  k: 1
  m: 1
  b: 0.5
  K: .inf
run:
  start: 0
  end: 20
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(springYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cfg.Equations) != 2 {
		t.Fatalf("expected 2 equations, got %d", len(cfg.Equations))
	}
	if !reflect.DeepEqual(cfg.Equations[0].Initial, Initial{10, 0}) {
		t.Errorf("initial = %v", cfg.Equations[0].Initial)
	}
	if cfg.Equations[1].Initial != nil {
		t.Errorf("auxiliary initial = %v, want none", cfg.Equations[1].Initial)
	}
	if !math.IsInf(cfg.Params["K"], 1) {
		t.Errorf("K = %v, want +Inf", cfg.Params["K"])
	}
	if cfg.Run.Iterations != DefaultIterations || cfg.Run.Method != DefaultMethod {
		t.Errorf("run defaults not kept: %+v", cfg.Run)
	}
}

func TestInitialScalar(t *testing.T) {
	cfg, err := Parse([]byte("equations:\n  - eq: \"p' = p\"\n    initial: 0.1\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !reflect.DeepEqual(cfg.Equations[0].Initial, Initial{0.1}) {
		t.Errorf("initial = %v, want [0.1]", cfg.Equations[0].Initial)
	}

	if _, err := Parse([]byte("equations:\n  - eq: \"p' = p\"\n    initial: {a: 1}\n")); err == nil {
		t.Error("expected error for mapping initial")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{"no equations", "name: empty\n", ErrNoEquations},
		{
			"short data",
			"equations: [{eq: \"h' = a\", initial: 1}]\ndata: {t: [0, 1], values: {h: [1]}}\n",
			ErrBadData,
		},
		{
			"prior arity",
			"equations: [{eq: \"h' = a\", initial: 1}]\nfit: {priors: {a: [1]}}\n",
			ErrBadPrior,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	cfg, err := GetPreset("logistic_growth_fit")
	if err != nil {
		t.Fatal(err)
	}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(loaded, cfg) {
		t.Errorf("round trip changed the config:\n got %+v\nwant %+v", loaded, cfg)
	}
}

func TestGetPreset(t *testing.T) {
	cfg, err := GetPreset("predator_prey")
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsInf(cfg.Params["K"], 1) {
		t.Errorf("expected unbounded K, got %v", cfg.Params["K"])
	}

	cfg.Params["r"] = 99
	fresh, _ := GetPreset("predator_prey")
	if fresh.Params["r"] != 0.25 {
		t.Error("presets share state between calls")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if _, err := GetPreset("nonexistent"); !errors.Is(err, ErrNoPreset) {
		t.Errorf("got %v, want ErrNoPreset", err)
	}
}

func TestPresetsValidate(t *testing.T) {
	for _, name := range ListPresets() {
		cfg, _ := GetPreset(name)
		if err := cfg.Validate(); err != nil {
			t.Errorf("%s: %v", name, err)
		}
		if cfg.Name != name {
			t.Errorf("%s: name %q", name, cfg.Name)
		}
	}
}

func TestPriorMap(t *testing.T) {
	cfg, _ := GetPreset("logistic_growth_fit")
	priors, err := cfg.Fit.PriorMap()
	if err != nil {
		t.Fatal(err)
	}
	if p := priors["K"]; p.Low != 0.1 || p.High != 40 {
		t.Errorf("K prior = %+v", p)
	}
	if got := cfg.Fit.PriorNames(); !reflect.DeepEqual(got, []string{"K", "a", "initial_h"}) {
		t.Errorf("PriorNames() = %v", got)
	}
}

func TestVectorRangeValues(t *testing.T) {
	r := VectorRangeConfig{Name: "p", From: -1, To: 2, Points: 4}
	if got := r.Values(); !reflect.DeepEqual(got, []float64{-1, 0, 1, 2}) {
		t.Errorf("Values() = %v", got)
	}
}

func TestLoadSettings(t *testing.T) {
	t.Setenv("DYNFIT_PLOT_WIDTH", "100")
	t.Setenv("DYNFIT_LOG_LEVEL", "debug")
	t.Setenv("DYNFIT_SEED", "7")

	s, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.PlotWidth != 100 || s.PlotHeight != 16 || s.Seed != 7 {
		t.Errorf("settings = %+v", s)
	}
	if lvl, _ := s.Level(); lvl.String() != "DEBUG" {
		t.Errorf("level = %v", lvl)
	}

	t.Setenv("DYNFIT_LOG_LEVEL", "loud")
	if _, err := LoadSettings(); err == nil {
		t.Error("expected error for unknown log level")
	}
}
