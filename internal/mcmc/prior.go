package mcmc

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Prior is a uniform distribution on [Low, High].
type Prior struct {
	Low  float64 `json:"low" yaml:"low"`
	High float64 `json:"high" yaml:"high"`
}

func (p Prior) Validate() error {
	if math.IsNaN(p.Low) || math.IsNaN(p.High) || math.IsInf(p.Low, 0) || math.IsInf(p.High, 0) {
		return fmt.Errorf("%w: [%g, %g] not finite", ErrInvalidPrior, p.Low, p.High)
	}
	if p.Low >= p.High {
		return fmt.Errorf("%w: low %g >= high %g", ErrInvalidPrior, p.Low, p.High)
	}
	return nil
}

func (p Prior) Contains(v float64) bool { return v >= p.Low && v <= p.High }

func (p Prior) Width() float64 { return p.High - p.Low }

func (p Prior) Mid() float64 { return (p.Low + p.High) / 2 }

func (p Prior) LogProb(v float64) float64 {
	return distuv.Uniform{Min: p.Low, Max: p.High}.LogProb(v)
}

func (p Prior) sample(rng *rand.Rand) float64 {
	return p.Low + rng.Float64()*p.Width()
}
