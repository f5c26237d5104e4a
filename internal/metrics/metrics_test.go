package metrics

import (
	"math"
	"math/rand/v2"
	"testing"
)

func TestAcceptanceRate(t *testing.T) {
	m := NewAcceptanceRate()
	if m.Value() != 0 {
		t.Error("empty rate should be 0")
	}
	for i := 0; i < 10; i++ {
		m.Observe(0, i%4 == 0)
	}
	if got := m.Value(); got != 0.3 {
		t.Errorf("rate = %g, want 0.3", got)
	}
	m.Reset()
	if acc, total := m.Counts(); acc != 0 || total != 0 {
		t.Error("expected zero counts after reset")
	}
}

func TestFailureRate(t *testing.T) {
	m := NewFailureRate()
	for _, v := range []float64{-1, math.Inf(-1), math.NaN(), -3} {
		m.Observe(v, false)
	}
	if got := m.Value(); got != 0.5 {
		t.Errorf("failure rate = %g, want 0.5", got)
	}
}

func TestRunningMean(t *testing.T) {
	m := NewRunningMean("x")
	for _, v := range []float64{2, 4, 4, 4, 5, 5, 7, 9, math.NaN()} {
		m.Observe(v, true)
	}
	if m.Count() != 8 || m.Value() != 5 {
		t.Errorf("count %d mean %g, want 8 and 5", m.Count(), m.Value())
	}
	if math.Abs(m.Variance()-32.0/7) > 1e-12 {
		t.Errorf("variance = %g, want %g", m.Variance(), 32.0/7)
	}
}

func ar1(n int, phi float64, seed uint64) []float64 {
	rng := rand.New(rand.NewPCG(seed, 1))
	x := make([]float64, n)
	for i := 1; i < n; i++ {
		x[i] = phi*x[i-1] + rng.NormFloat64()
	}
	return x
}

func TestAutocorrelation(t *testing.T) {
	x := ar1(20000, 0.8, 1)
	if r := Autocorrelation(x, 1); math.Abs(r-0.8) > 0.03 {
		t.Errorf("lag-1 autocorrelation = %g, want ~0.8", r)
	}
	if r := Autocorrelation(x, 0); math.Abs(r-1) > 1e-12 {
		t.Errorf("lag-0 autocorrelation = %g", r)
	}
	if !math.IsNaN(Autocorrelation([]float64{1, 1, 1}, 1)) {
		t.Error("constant trace should give NaN")
	}

	rho := autocorrelations(x)
	for _, lag := range []int{1, 2, 5} {
		if d := math.Abs(rho[lag] - Autocorrelation(x, lag)); d > 1e-9 {
			t.Errorf("fft lag %d differs by %g", lag, d)
		}
	}
}

func TestEffectiveSampleSize(t *testing.T) {
	rng := rand.New(rand.NewPCG(2, 2))
	iid := make([]float64, 5000)
	for i := range iid {
		iid[i] = rng.NormFloat64()
	}
	if ess := EffectiveSampleSize(iid); ess < 3500 || ess > 7000 {
		t.Errorf("iid ESS = %g, want close to 5000", ess)
	}

	// AR(1) with phi=0.9 has tau = (1+phi)/(1-phi) = 19.
	corr := ar1(20000, 0.9, 3)
	ess := EffectiveSampleSize(corr)
	if ess < 20000/40.0 || ess > 20000/10.0 {
		t.Errorf("AR(1) ESS = %g, want about %g", ess, 20000/19.0)
	}
}

func TestGelmanRubin(t *testing.T) {
	a, b := ar1(4000, 0.5, 4), ar1(4000, 0.5, 5)
	if r := GelmanRubin([][]float64{a, b}); r > 1.05 {
		t.Errorf("R-hat for mixed chains = %g", r)
	}

	shifted := make([]float64, len(b))
	for i, v := range b {
		shifted[i] = v + 10
	}
	if r := GelmanRubin([][]float64{a, shifted}); r < 2 {
		t.Errorf("R-hat for separated chains = %g, want large", r)
	}
	if !math.IsNaN(GelmanRubin([][]float64{a})) {
		t.Error("single chain should give NaN")
	}
}

func TestHPD(t *testing.T) {
	tests := []struct {
		name    string
		samples []float64
		mass    float64
		lo, hi  float64
	}{
		{"uniform grid", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.8, 1, 8},
		{"skewed", []float64{0, 0.1, 0.2, 0.3, 5, 10}, 0.5, 0, 0.2},
		{"full mass", []float64{3, 1, 2}, 1, 1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi := HPD(tt.samples, tt.mass)
			if lo != tt.lo || hi != tt.hi {
				t.Errorf("HPD = [%g, %g], want [%g, %g]", lo, hi, tt.lo, tt.hi)
			}
		})
	}
	if lo, _ := HPD(nil, 0.95); !math.IsNaN(lo) {
		t.Error("empty samples should give NaN")
	}
}

func TestMCError(t *testing.T) {
	x := ar1(10000, 0, 6)
	if e := MCError(x); e < 0.005 || e > 0.02 {
		t.Errorf("MC error = %g, want about 0.01", e)
	}
}
