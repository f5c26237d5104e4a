package sim

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/san-kum/dynfit/internal/dynamo"
	"github.com/san-kum/dynfit/internal/equation"
)

func mustNoErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func last(xs []float64) float64 { return xs[len(xs)-1] }

func TestExponentialGrowth(t *testing.T) {
	for _, method := range []string{"rk45", "rk4"} {
		t.Run(method, func(t *testing.T) {
			s := New()
			mustNoErr(t, s.Add("mice'=b*mice - d*mice", []float64{100}))
			mustNoErr(t, s.Params(map[string]float64{"b": 1.1, "d": 0.08}))
			mustNoErr(t, s.Run(context.Background(), 0, 4, WithMethod(method)))

			ts := s.T()
			if len(ts) != DefaultIterations || ts[0] != 0 || last(ts) != 4 {
				t.Fatalf("grid = %d points [%g, %g]", len(ts), ts[0], last(ts))
			}
			mice, err := s.Series("mice")
			mustNoErr(t, err)
			want := 100 * math.Exp(1.02*4)
			if rel := math.Abs(last(mice)-want) / want; rel > 1e-4 {
				t.Errorf("mice(4) = %g, want %g (rel err %g)", last(mice), want, rel)
			}
		})
	}
}

func TestStockFlowMatchesEquation(t *testing.T) {
	eq := New()
	mustNoErr(t, eq.Add("mice' = b*mice - d*mice", []float64{100}))
	mustNoErr(t, eq.Params(map[string]float64{"b": 1.1, "d": 0.08}))

	sf := New()
	mustNoErr(t, sf.Stock("mice", 100))
	mustNoErr(t, sf.Inflow("mice", "b*mice"))
	mustNoErr(t, sf.Outflow("mice", "d*mice"))
	mustNoErr(t, sf.Params(map[string]float64{"b": 1.1, "d": 0.08}))

	ctx := context.Background()
	mustNoErr(t, eq.Run(ctx, 0, 4, WithIterations(50)))
	mustNoErr(t, sf.Run(ctx, 0, 4, WithIterations(50)))

	a, _ := eq.Series("mice")
	b, _ := sf.Series("mice")
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-9*math.Abs(a[i]) {
			t.Fatalf("step %d: equation %g, stock-flow %g", i, a[i], b[i])
		}
	}
}

func TestConditionalFlowMatchesEquation(t *testing.T) {
	eq := New()
	mustNoErr(t, eq.Add("m' = r - (m > 50 ? 1 : 0)", []float64{100}))
	mustNoErr(t, eq.Params(map[string]float64{"r": 0.5}))

	sf := New()
	mustNoErr(t, sf.Stock("m", 100))
	mustNoErr(t, sf.Inflow("m", "r"))
	mustNoErr(t, sf.Outflow("m", "m > 50 ? 1 : 0"))
	mustNoErr(t, sf.Params(map[string]float64{"r": 0.5}))

	for _, s := range []*Simulation{eq, sf} {
		d, err := s.Derivatives(map[string]float64{"m": 100}, 0)
		mustNoErr(t, err)
		if d["m"] != -0.5 {
			t.Errorf("m' at m=100 = %g, want -0.5", d["m"])
		}
	}

	ctx := context.Background()
	mustNoErr(t, eq.Run(ctx, 0, 10, WithIterations(20)))
	mustNoErr(t, sf.Run(ctx, 0, 10, WithIterations(20)))
	a, _ := eq.Series("m")
	b, _ := sf.Series("m")
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-9*math.Abs(a[i]) {
			t.Fatalf("step %d: equation %g, stock-flow %g", i, a[i], b[i])
		}
	}
}

func TestFlowRHS(t *testing.T) {
	tests := []struct {
		in, out []string
		want    string
	}{
		{nil, nil, "0"},
		{[]string{"b*m"}, []string{"d*m"}, "b*m - d*m"},
		{[]string{"a", "c"}, nil, "a + c"},
		{nil, []string{"d*m"}, "-d*m"},
		{[]string{"r"}, []string{"k - m"}, "r - (k - m)"},
		{nil, []string{"m > 50 ? 1 : 0"}, "-(m > 50 ? 1 : 0)"},
		{[]string{"a ? b : c", "d"}, nil, "(a ? b : c) + d"},
		{[]string{"sin(t)*k", "x^2"}, []string{"a)*(b"}, "sin(t)*k + x^2 - (a)*(b)"},
	}
	for _, tt := range tests {
		if got := flowRHS(tt.in, tt.out); got != tt.want {
			t.Errorf("flowRHS(%v, %v) = %q, want %q", tt.in, tt.out, got, tt.want)
		}
	}
}

func TestDampedSpring(t *testing.T) {
	s := New()
	mustNoErr(t, s.Add("x''=-k*x/m -b*x'", []float64{10, 0}))
	mustNoErr(t, s.Params(map[string]float64{"k": 1, "m": 1, "b": 0.5}))
	mustNoErr(t, s.Run(context.Background(), 0, 20))

	names := s.Names()
	if len(names) != 2 || names[0] != "x" || names[1] != "x_p" {
		t.Fatalf("names = %v, want [x x_p]", names)
	}

	zeta, wd := 0.25, math.Sqrt(1-0.0625)
	exact := func(t float64) float64 {
		return math.Exp(-zeta*t) * (10*math.Cos(wd*t) + zeta*10/wd*math.Sin(wd*t))
	}
	xs, _ := s.Series("x")
	ts := s.T()
	for _, i := range []int{100, 500, len(ts) - 1} {
		if d := math.Abs(xs[i] - exact(ts[i])); d > 1e-3 {
			t.Errorf("x(%g) = %g, want %g", ts[i], xs[i], exact(ts[i]))
		}
	}
}

func TestLorenzStaysBounded(t *testing.T) {
	s := New()
	mustNoErr(t, s.Add("x'=sigma*(y-x)", []float64{14}))
	mustNoErr(t, s.Add("y'=x*(rho-z)-y", []float64{8.1}))
	mustNoErr(t, s.Add("z'=x*y-beta*z", []float64{45}))
	mustNoErr(t, s.Params(map[string]float64{"sigma": 10, "beta": 8.0 / 3, "rho": 15}))
	mustNoErr(t, s.Run(context.Background(), 0, 50, WithIterations(10000)))

	for _, name := range []string{"x", "y", "z"} {
		vs, _ := s.Series(name)
		for _, v := range vs {
			if math.Abs(v) > 100 {
				t.Fatalf("%s left the attractor: %g", name, v)
			}
		}
	}
}

func TestDifferenceEquation(t *testing.T) {
	s := New()
	mustNoErr(t, s.Add("x[t+1] = r*x", []float64{1}))
	mustNoErr(t, s.Add("twice = 2*x", nil))
	mustNoErr(t, s.Params(map[string]float64{"r": 2}))
	mustNoErr(t, s.Run(context.Background(), 0, 5))

	xs, _ := s.Series("x")
	want := []float64{1, 2, 4, 8, 16, 32}
	if len(xs) != len(want) {
		t.Fatalf("len = %d, want %d", len(xs), len(want))
	}
	for i := range want {
		if xs[i] != want[i] {
			t.Errorf("x[%d] = %g, want %g", i, xs[i], want[i])
		}
	}
	tw, _ := s.Series("twice")
	if last(tw) != 64 {
		t.Errorf("twice(5) = %g, want 64", last(tw))
	}
}

func TestPredictDifferenceSystem(t *testing.T) {
	build := func(ts []float64) *Simulation {
		s := New()
		mustNoErr(t, s.Add("x[t+1] = r*x", []float64{1}))
		mustNoErr(t, s.Params(map[string]float64{"r": 2}))
		mustNoErr(t, s.AddData(ts, map[string][]float64{"x": make([]float64, len(ts))}))
		return s
	}

	pred, err := build([]float64{0, 1, 3}).Predict(context.Background(), 0)
	mustNoErr(t, err)
	want := []float64{1, 2, 8}
	for i, w := range want {
		if pred[0][i] != w {
			t.Errorf("x(%d) = %g, want %g", i, pred[0][i], w)
		}
	}

	_, err = build([]float64{0, 1, 2.5}).Predict(context.Background(), 0)
	if !errors.Is(err, ErrInvalidData) {
		t.Errorf("got %v, want ErrInvalidData for an observation between steps", err)
	}
}

func TestAuxiliaries(t *testing.T) {
	s := New()
	mustNoErr(t, s.Add("deer' = r*deer*(1-deer/K)-c*deer*wolf", []float64{350}))
	mustNoErr(t, s.Add("wolf' = -Wd*wolf+D*deer*wolf", []float64{50}))
	// defined before its dependency
	mustNoErr(t, s.Add("ratio = total/wolf", nil))
	mustNoErr(t, s.Add("total = deer + wolf", nil))
	mustNoErr(t, s.Params(map[string]float64{"r": 0.25, "D": 0.001, "c": 0.005, "Wd": 0.3, "K": math.Inf(1)}))
	mustNoErr(t, s.Run(context.Background(), 0, 50, WithIterations(101)))

	deer, _ := s.Series("deer")
	wolf, _ := s.Series("wolf")
	total, _ := s.Series("total")
	ratio, _ := s.Series("ratio")
	for i := range deer {
		if math.Abs(total[i]-(deer[i]+wolf[i])) > 1e-9 {
			t.Fatalf("total[%d] = %g, want %g", i, total[i], deer[i]+wolf[i])
		}
		if math.Abs(ratio[i]-total[i]/wolf[i]) > 1e-9 {
			t.Fatalf("ratio[%d] mismatch", i)
		}
	}
}

func TestDefinitionErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func(s *Simulation) error
		want  error
	}{
		{"duplicate", func(s *Simulation) error {
			_ = s.Add("x' = 1", []float64{0})
			return s.Add("x' = 2", []float64{0})
		}, ErrDuplicateVariable},
		{"initial length", func(s *Simulation) error {
			return s.Add("x'' = -x", []float64{1})
		}, ErrInitialValues},
		{"auxiliary with initial", func(s *Simulation) error {
			return s.Add("y = 2", []float64{1})
		}, ErrInitialValues},
		{"param shadows variable", func(s *Simulation) error {
			_ = s.Add("x' = 1", []float64{0})
			return s.SetParam("x", 1)
		}, ErrNameConflict},
		{"variable shadows param", func(s *Simulation) error {
			_ = s.SetParam("a", 1)
			return s.Add("a' = 1", []float64{0})
		}, ErrNameConflict},
		{"flow on plain variable", func(s *Simulation) error {
			_ = s.Add("x' = 1", []float64{0})
			return s.Inflow("x", "2")
		}, ErrNotStock},
		{"flow on missing stock", func(s *Simulation) error {
			return s.Outflow("nope", "2")
		}, ErrUnknownVariable},
		{"reserved name", func(s *Simulation) error {
			return s.Stock("t", 0)
		}, equation.ErrReservedName},
		{"bad equation", func(s *Simulation) error {
			return s.Add("x' 1", []float64{0})
		}, equation.ErrSyntax},
		{"unknown initial", func(s *Simulation) error {
			return s.SetInitial("ghost", 1)
		}, ErrUnknownVariable},
		{"unsorted data", func(s *Simulation) error {
			return s.AddData([]float64{0, 2, 1}, map[string][]float64{"x": {1, 2, 3}})
		}, ErrInvalidData},
		{"ragged data", func(s *Simulation) error {
			return s.AddData([]float64{0, 1}, map[string][]float64{"x": {1}})
		}, ErrInvalidData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build(New())
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func(s *Simulation)
		start float64
		end   float64
		opts  []RunOption
		want  error
	}{
		{"empty", func(s *Simulation) {}, 0, 1, nil, ErrEmptySystem},
		{"only auxiliaries", func(s *Simulation) { _ = s.Add("y = 1", nil) }, 0, 1, nil, ErrEmptySystem},
		{"mixed", func(s *Simulation) {
			_ = s.Add("x' = 1", []float64{0})
			_ = s.Add("n[t+1] = n", []float64{0})
		}, 0, 1, nil, ErrMixedSystem},
		{"undefined name", func(s *Simulation) { _ = s.Add("x' = q*x", []float64{1}) }, 0, 1, nil, equation.ErrUndefinedName},
		{"derivative too high", func(s *Simulation) { _ = s.Add("x' = x'", []float64{1}) }, 0, 1, nil, equation.ErrUnknownDerivative},
		{"cycle", func(s *Simulation) {
			_ = s.Add("x' = a", []float64{1})
			_ = s.Add("a = b", nil)
			_ = s.Add("b = a", nil)
		}, 0, 1, nil, ErrCyclicDefinition},
		{"derivative name clash", func(s *Simulation) {
			_ = s.Add("x'' = -x", []float64{1, 0})
			_ = s.SetParam("x_p", 2)
		}, 0, 1, nil, ErrNameConflict},
		{"reversed range", func(s *Simulation) { _ = s.Add("x' = 1", []float64{0}) }, 1, 0, nil, ErrInvalidRange},
		{"one point", func(s *Simulation) { _ = s.Add("x' = 1", []float64{0}) }, 0, 1, []RunOption{WithIterations(1)}, ErrInvalidRange},
		{"times outside", func(s *Simulation) { _ = s.Add("x' = 1", []float64{0}) }, 0, 1, []RunOption{WithTimes([]float64{0, 2})}, ErrInvalidRange},
		{"blow up", func(s *Simulation) { _ = s.Add("x' = x*x", []float64{1}) }, 0, 2, []RunOption{WithMethod("rk4")}, dynamo.ErrInvalidState},
		{"short difference range", func(s *Simulation) { _ = s.Add("n[t+1] = n", []float64{0}) }, 0, 0.5, nil, ErrInvalidRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			tt.build(s)
			err := s.Run(context.Background(), tt.start, tt.end, tt.opts...)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestUnknownMethod(t *testing.T) {
	s := New()
	mustNoErr(t, s.Add("x' = 1", []float64{0}))
	if err := s.Run(context.Background(), 0, 1, WithMethod("leapfrog")); err == nil {
		t.Error("expected error for unknown method")
	}
}

func TestRunCanceled(t *testing.T) {
	s := New()
	mustNoErr(t, s.Add("x' = -x", []float64{1}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Run(ctx, 0, 10)
	if !errors.Is(err, dynamo.ErrContextCanceled) || !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context cancellation", err)
	}
	var simErr *dynamo.SimulationError
	if !errors.As(err, &simErr) {
		t.Error("cancellation should carry simulation context")
	}
	if s.Results() != nil {
		t.Error("failed run must not store results")
	}
}

func TestSeriesBeforeRun(t *testing.T) {
	s := New()
	mustNoErr(t, s.Add("x' = 1", []float64{0}))
	if _, err := s.Series("x"); !errors.Is(err, ErrNotRun) {
		t.Errorf("got %v, want ErrNotRun", err)
	}
	if _, err := s.SSE(); !errors.Is(err, ErrNotRun) {
		t.Errorf("got %v, want ErrNotRun", err)
	}
}

func TestEquations(t *testing.T) {
	s := New()
	mustNoErr(t, s.Add("x''=-k*x/m -b*x'", []float64{10, 0}))
	mustNoErr(t, s.Params(map[string]float64{"k": 1, "m": 1, "b": 0.5}))

	want := "x' = x_p\n" +
		"x_p' = -k*x/m -b*x_p\n" +
		"params:\n" +
		"\tb = 0.5\n" +
		"\tk = 1\n" +
		"\tm = 1\n" +
		"initial values:\n" +
		"\tx = 10\n" +
		"\tx_p = 0\n"
	if got := s.Equations(); got != want {
		t.Errorf("Equations() =\n%s\nwant\n%s", got, want)
	}
}

func TestEquationsRewritesEveryRHS(t *testing.T) {
	s := New()
	mustNoErr(t, s.Add("x'' = -x", []float64{1, 0}))
	mustNoErr(t, s.Add("y' = x'", []float64{0}))
	mustNoErr(t, s.Add("speed = abs(x')", nil))

	got := s.Equations()
	for _, line := range []string{"x_p' = -x\n", "y' = x_p\n", "speed = abs(x_p)\n"} {
		if !strings.Contains(got, line) {
			t.Errorf("Equations() = %q, missing %q", got, line)
		}
	}
	if _, err := s.Derivatives(map[string]float64{"x_p": 2}, 0); err != nil {
		t.Fatal(err)
	}
}

func TestEquationsStockFlow(t *testing.T) {
	s := New()
	mustNoErr(t, s.Stock("mice", 100))
	mustNoErr(t, s.Inflow("mice", "b*mice"))
	mustNoErr(t, s.Outflow("mice", "d*mice"))
	if got := s.Equations(); !strings.HasPrefix(got, "mice' = b*mice - d*mice\n") {
		t.Errorf("Equations() = %q", got)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := New()
	mustNoErr(t, s.Add("x' = a*x", []float64{1}))
	mustNoErr(t, s.SetParam("a", 1))
	mustNoErr(t, s.Run(context.Background(), 0, 1))

	c := s.Clone()
	mustNoErr(t, c.SetParam("a", -1))
	mustNoErr(t, c.SetInitial("x", 5))
	mustNoErr(t, c.Run(context.Background(), 0, 1))

	if a, _ := s.Param("a"); a != 1 {
		t.Errorf("original a = %g after clone change", a)
	}
	if x0, _ := s.Initial("x"); x0 != 1 {
		t.Errorf("original x0 = %g after clone change", x0)
	}
	xs, _ := s.Series("x")
	if math.Abs(last(xs)-math.E) > 1e-4 {
		t.Errorf("original results changed: x(1) = %g", last(xs))
	}
}

func TestSetParamAfterRun(t *testing.T) {
	s := New()
	mustNoErr(t, s.Add("x' = a", []float64{0}))
	mustNoErr(t, s.SetParam("a", 1))
	mustNoErr(t, s.Run(context.Background(), 0, 1))
	mustNoErr(t, s.SetParam("a", 3))
	mustNoErr(t, s.Run(context.Background(), 0, 1))

	xs, _ := s.Series("x")
	if math.Abs(last(xs)-3) > 1e-9 {
		t.Errorf("x(1) = %g, want 3 after parameter change", last(xs))
	}
}

func TestSetValue(t *testing.T) {
	s := New()
	mustNoErr(t, s.Add("x'' = -w*x", []float64{1, 0}))
	mustNoErr(t, s.SetParam("w", 1))

	mustNoErr(t, s.SetValue("w", 4))
	mustNoErr(t, s.SetValue("initial_x_p", 2))
	if v, _ := s.Value("w"); v != 4 {
		t.Errorf("w = %g", v)
	}
	if v, _ := s.Value("initial_x_p"); v != 2 {
		t.Errorf("initial_x_p = %g", v)
	}
	if err := s.SetValue("initial_q", 1); !errors.Is(err, ErrUnknownVariable) {
		t.Errorf("got %v, want ErrUnknownVariable", err)
	}

	snap := s.Snapshot()
	if snap["initial_x"] != 1 || snap["w"] != 4 {
		t.Errorf("snapshot = %v", snap)
	}
}

func TestWithTimes(t *testing.T) {
	s := New()
	mustNoErr(t, s.Add("x' = 1", []float64{0}))
	mustNoErr(t, s.Run(context.Background(), 0, 3, WithTimes([]float64{0.5, 1, 3})))

	ts := s.T()
	if len(ts) != 4 || ts[0] != 0 {
		t.Fatalf("grid = %v, want start prepended", ts)
	}
	xs, _ := s.Series("x")
	if math.Abs(xs[2]-1) > 1e-9 {
		t.Errorf("x(1) = %g", xs[2])
	}
}

func TestPredictAndResiduals(t *testing.T) {
	s := New()
	mustNoErr(t, s.Add("x' = a", []float64{1}))
	mustNoErr(t, s.SetParam("a", 0.5))
	ts := []float64{0, 1, 2, 3, 4}
	obs := []float64{1, 1.5, 2, 2.5, 3}
	mustNoErr(t, s.AddData(ts, map[string][]float64{"x": obs}))

	pred, err := s.Predict(context.Background(), 0)
	mustNoErr(t, err)
	for i, v := range pred[0] {
		if math.Abs(v-obs[i]) > 1e-9 {
			t.Errorf("pred[%d] = %g, want %g", i, v, obs[i])
		}
	}
	if s.Results() != nil {
		t.Error("Predict should not store results")
	}

	mustNoErr(t, s.Run(context.Background(), 0, 4, WithIterations(41)))
	sse, err := s.SSE()
	mustNoErr(t, err)
	if sse > 1e-12 {
		t.Errorf("SSE = %g, want ~0", sse)
	}

	mustNoErr(t, s.SetParam("a", 1))
	mustNoErr(t, s.Run(context.Background(), 0, 4, WithIterations(41)))
	sse, _ = s.SSE()
	// residuals are -0.5k for k = 0..4
	if math.Abs(sse-7.5) > 1e-6 {
		t.Errorf("SSE = %g, want 7.5", sse)
	}
}

func TestPredictUnknownVariable(t *testing.T) {
	s := New()
	mustNoErr(t, s.Add("x' = 1", []float64{0}))
	mustNoErr(t, s.AddData([]float64{1}, map[string][]float64{"y": {1}}))
	if _, err := s.Predict(context.Background(), 0); !errors.Is(err, ErrUnknownVariable) {
		t.Errorf("got %v, want ErrUnknownVariable", err)
	}
	if _, err := s.Predict(context.Background(), 2); !errors.Is(err, ErrInvalidData) {
		t.Errorf("got %v, want ErrInvalidData", err)
	}
}

func TestDerivatives(t *testing.T) {
	s := New()
	mustNoErr(t, s.Add("x'' = -k*x - b*x'", []float64{1, 0}))
	mustNoErr(t, s.Params(map[string]float64{"k": 2, "b": 0.5}))

	d, err := s.Derivatives(map[string]float64{"x": 3, "x_p": 4}, 0)
	mustNoErr(t, err)
	if d["x"] != 4 || d["x_p"] != -8 {
		t.Errorf("derivatives = %v", d)
	}
	if _, err := s.Derivatives(map[string]float64{"k": 1}, 0); !errors.Is(err, ErrUnknownVariable) {
		t.Errorf("got %v, want ErrUnknownVariable", err)
	}
}

func TestSystemIsIndependent(t *testing.T) {
	s := New()
	mustNoErr(t, s.Add("x' = a*x", []float64{2}))
	mustNoErr(t, s.SetParam("a", 1))

	sys, x0, names, err := s.System()
	mustNoErr(t, err)
	if sys.StateDim() != 1 || x0[0] != 2 || names[0] != "x" {
		t.Fatalf("dim %d x0 %v names %v", sys.StateDim(), x0, names)
	}
	cfg, ok := sys.(dynamo.Configurable)
	if !ok {
		t.Fatal("system should be configurable")
	}
	mustNoErr(t, cfg.SetParam("a", 3))
	if dx := sys.Derive(x0, 0); dx[0] != 6 {
		t.Errorf("dx = %g, want 6", dx[0])
	}
	if a, _ := s.Param("a"); a != 1 {
		t.Error("system parameter change leaked into simulation")
	}
	if err := cfg.SetParam("zz", 1); !errors.Is(err, dynamo.ErrUnknownParameter) {
		t.Errorf("got %v, want ErrUnknownParameter", err)
	}
}

func TestPlotOutput(t *testing.T) {
	var buf bytes.Buffer
	s := New()
	s.SetOutput(&buf)
	mustNoErr(t, s.Add("mice' = b*mice", []float64{100}, WithPlot()))
	mustNoErr(t, s.SetParam("b", 0.5))
	mustNoErr(t, s.AddData([]float64{0, 1, 2}, map[string][]float64{"mice": {100, 160, 270}}))
	mustNoErr(t, s.Run(context.Background(), 0, 2))

	out := buf.String()
	if !strings.Contains(out, "mice") || !strings.Contains(out, "mice data") {
		t.Errorf("plot missing series:\n%s", out)
	}

	buf.Reset()
	s.NoPlots = true
	mustNoErr(t, s.Run(context.Background(), 0, 2))
	if buf.Len() != 0 {
		t.Error("NoPlots should suppress output")
	}
}

func TestLinspace(t *testing.T) {
	got := Linspace(0, 1, 5)
	want := []float64{0, 0.25, 0.5, 0.75, 1}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-15 {
			t.Errorf("Linspace[%d] = %g, want %g", i, got[i], want[i])
		}
	}
	if len(Linspace(0, 1, 0)) != 0 || len(Linspace(3, 4, 1)) != 1 {
		t.Error("degenerate Linspace lengths")
	}
}
