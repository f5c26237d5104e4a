package automation

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/san-kum/dynfit/internal/experiment"
	"github.com/san-kum/dynfit/internal/storage"
)

const scenarioYAML = `
name: mice then fit
steps:
  - model: mice
    params: {d: 1.1}
    initial: {mice: 50}
    save_as: flat_mice
  - model: linear_growth_fit
    grid: true
`

func TestParseScenario(t *testing.T) {
	sc, err := ParseScenario([]byte(scenarioYAML))
	if err != nil {
		t.Fatal(err)
	}
	if sc.Name != "mice then fit" || len(sc.Steps) != 2 {
		t.Fatalf("got %+v", sc)
	}
	if sc.Steps[0].Params["d"] != 1.1 || sc.Steps[0].Initial["mice"] != 50 {
		t.Errorf("step 1 overrides = %+v", sc.Steps[0])
	}
	if !sc.Steps[1].Grid {
		t.Error("step 2 should grid search")
	}

	if _, err := ParseScenario([]byte("name: empty\n")); !errors.Is(err, ErrNoSteps) {
		t.Errorf("got %v, want ErrNoSteps", err)
	}
}

func TestRunScenario(t *testing.T) {
	sc, err := ParseScenario([]byte(scenarioYAML))
	if err != nil {
		t.Fatal(err)
	}
	st := storage.New(t.TempDir())
	results, err := RunScenario(context.Background(), sc, experiment.NewRegistry(), WithStore(st))
	if err != nil {
		t.Fatalf("RunScenario: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	flat := results[0]
	if flat.Model != "flat_mice" {
		t.Errorf("model = %q", flat.Model)
	}
	if got := flat.Result.Final["mice"]; math.Abs(got-50) > 1e-6 {
		t.Errorf("births equal deaths, final mice = %v", got)
	}
	if !strings.HasPrefix(flat.RunID, "flat_mice_") {
		t.Errorf("run id = %q", flat.RunID)
	}

	fit := results[1]
	if _, ok := fit.Fitted["a"]; !ok {
		t.Errorf("fitted = %v", fit.Fitted)
	}
	if math.IsNaN(fit.Result.SSE) {
		t.Error("fit step should report SSE against its data")
	}

	runs, err := st.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 stored runs, got %d", len(runs))
	}
}

func TestRunScenarioStopsAtFailure(t *testing.T) {
	sc := &Scenario{Steps: []ScenarioStep{{Model: "mice"}, {Model: "no_such_model"}}}
	results, err := RunScenario(context.Background(), sc, experiment.NewRegistry())
	if err == nil || !strings.Contains(err.Error(), "step 2") {
		t.Fatalf("got %v, want a step 2 error", err)
	}
	if len(results) != 1 {
		t.Errorf("expected the first step's result, got %d", len(results))
	}
}

func TestRunSweep(t *testing.T) {
	sweep := &ParameterSweep{Model: "mice", Param: "d", Min: 0, Max: 1.1, Steps: 3, Workers: 2}
	results, err := RunSweep(context.Background(), sweep, experiment.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Value <= results[i-1].Value {
			t.Errorf("values out of order: %v then %v", results[i-1].Value, results[i].Value)
		}
		if results[i].Final["mice"] >= results[i-1].Final["mice"] {
			t.Errorf("more deaths should leave fewer mice: %v then %v", results[i-1].Final["mice"], results[i].Final["mice"])
		}
	}
	last := results[2]
	if math.Abs(last.Final["mice"]-100) > 1e-6 {
		t.Errorf("final at d=b is %v, want 100", last.Final["mice"])
	}
	if last.Min["mice"] > last.Max["mice"] {
		t.Errorf("min %v above max %v", last.Min["mice"], last.Max["mice"])
	}

	tests := []struct {
		name  string
		sweep ParameterSweep
		want  error
	}{
		{"one step", ParameterSweep{Model: "mice", Param: "d", Steps: 1}, ErrBadSweep},
		{"no param", ParameterSweep{Model: "mice", Steps: 3}, ErrBadSweep},
		{"unknown param", ParameterSweep{Model: "mice", Param: "q", Steps: 3}, ErrNotTuning},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := RunSweep(context.Background(), &tt.sweep, experiment.NewRegistry()); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRunMonteCarlo(t *testing.T) {
	cfg := &MonteCarloConfig{Model: "damped_spring", Perturbation: 1, Trials: 8, Seed: 3}
	reg := experiment.NewRegistry()
	results, err := RunMonteCarlo(context.Background(), cfg, reg)
	if err != nil {
		t.Fatal(err)
	}
	stable, unstable := MonteCarloStats(results)
	if stable != 8 || unstable != 0 {
		t.Errorf("stable %d unstable %d", stable, unstable)
	}
	for _, r := range results {
		if x := r.Initial["x"]; x < 9 || x > 11 {
			t.Errorf("trial %d: initial x %v outside [9, 11]", r.Trial, x)
		}
	}

	again, err := RunMonteCarlo(context.Background(), cfg, reg)
	if err != nil {
		t.Fatal(err)
	}
	for i := range results {
		if results[i].Initial["x"] != again[i].Initial["x"] {
			t.Errorf("trial %d not reproducible", i)
		}
	}
}

func TestRunMonteCarloBound(t *testing.T) {
	cfg := &MonteCarloConfig{Model: "mice", Perturbation: 1, Trials: 3, Bound: 10}
	results, err := RunMonteCarlo(context.Background(), cfg, experiment.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	if stable, _ := MonteCarloStats(results); stable != 0 {
		t.Errorf("growth past the bound should be unstable, got %d stable", stable)
	}

	if _, err := RunMonteCarlo(context.Background(), &MonteCarloConfig{Model: "mice"}, experiment.NewRegistry()); !errors.Is(err, ErrNoTrials) {
		t.Errorf("got %v, want ErrNoTrials", err)
	}
}
