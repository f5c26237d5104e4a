package metrics

import (
	"math"
	"math/cmplx"
	"sort"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/stat"
)

// Autocorrelation is the lag-k sample autocorrelation of x.
func Autocorrelation(x []float64, lag int) float64 {
	n := len(x)
	if lag < 0 || lag >= n || n < 2 {
		return math.NaN()
	}
	mean := stat.Mean(x, nil)
	var num, den float64
	for i := 0; i < n; i++ {
		d := x[i] - mean
		den += d * d
		if i+lag < n {
			num += d * (x[i+lag] - mean)
		}
	}
	if den == 0 {
		return math.NaN()
	}
	return num / den
}

// autocorrelations returns rho_0..rho_{n-1} through a zero-padded FFT.
func autocorrelations(x []float64) []float64 {
	n := len(x)
	mean := stat.Mean(x, nil)
	size := 1
	for size < 2*n {
		size <<= 1
	}
	padded := make([]float64, size)
	for i, v := range x {
		padded[i] = v - mean
	}
	power := fft.FFTReal(padded)
	for i, c := range power {
		m := cmplx.Abs(c)
		power[i] = complex(m*m, 0)
	}
	acov := fft.IFFT(power)

	out := make([]float64, n)
	c0 := real(acov[0])
	if c0 == 0 {
		return out
	}
	for k := 0; k < n; k++ {
		out[k] = real(acov[k]) / c0
	}
	return out
}

// EffectiveSampleSize estimates the number of independent draws in a
// correlated trace, truncating the autocorrelation sum with Geyer's
// initial positive sequence.
func EffectiveSampleSize(x []float64) float64 {
	n := len(x)
	if n < 4 {
		return float64(n)
	}
	rho := autocorrelations(x)
	if rho[0] == 0 {
		return float64(n)
	}

	sum := 0.0
	for k := 1; k+1 < n; k += 2 {
		pair := rho[k] + rho[k+1]
		if pair <= 0 {
			break
		}
		sum += pair
	}
	tau := 1 + 2*sum
	if tau < 1/float64(n) {
		tau = 1 / float64(n)
	}
	return math.Min(float64(n)*float64(n), float64(n)/tau)
}

// MCError is the Monte Carlo standard error of the trace mean.
func MCError(x []float64) float64 {
	if len(x) < 2 {
		return math.NaN()
	}
	ess := EffectiveSampleSize(x)
	return stat.StdDev(x, nil) / math.Sqrt(ess)
}

// GelmanRubin is the potential scale reduction factor R-hat over parallel
// chains. Chains are truncated to the shortest; fewer than two chains or
// fewer than two draws give NaN.
func GelmanRubin(chains [][]float64) float64 {
	m := len(chains)
	if m < 2 {
		return math.NaN()
	}
	n := len(chains[0])
	for _, c := range chains {
		n = min(n, len(c))
	}
	if n < 2 {
		return math.NaN()
	}

	means := make([]float64, m)
	vars := make([]float64, m)
	for j, c := range chains {
		means[j], vars[j] = stat.MeanVariance(c[:n], nil)
	}
	w := stat.Mean(vars, nil)
	b := float64(n) * stat.Variance(means, nil)
	if w == 0 {
		if b == 0 {
			return 1
		}
		return math.Inf(1)
	}
	varPlus := float64(n-1)/float64(n)*w + b/float64(n)
	return math.Sqrt(varPlus / w)
}

// HPD returns the shortest interval containing the given probability mass
// of the samples.
func HPD(samples []float64, mass float64) (lo, hi float64) {
	n := len(samples)
	if n == 0 {
		return math.NaN(), math.NaN()
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	if mass >= 1 {
		return sorted[0], sorted[n-1]
	}
	k := int(math.Ceil(mass * float64(n)))
	if k < 1 {
		k = 1
	}
	best := math.Inf(1)
	for i := 0; i+k-1 < n; i++ {
		if w := sorted[i+k-1] - sorted[i]; w < best {
			best = w
			lo, hi = sorted[i], sorted[i+k-1]
		}
	}
	return lo, hi
}
