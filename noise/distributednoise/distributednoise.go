// Package distributednoise generates shares of two-sided geometric noise.
//
// It is the floating point alternative to the nbin mechanism. Every party draws
// its own share locally, and Share embeds it in the same field as the nbin
// samples so both kinds of noise are combined the same way.
package distributednoise

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/google/privacy-sandbox-distributed-noise/field"
	"github.com/google/privacy-sandbox-distributed-noise/noise"
)

// Geometric is the distributed two-sided geometric mechanism (discrete Laplace)
// for numShares parties.
//
// Geom(p) = Polya(1, p) is the sum of numShares independent Polya(1/numShares, p)
// values, so each party contributes the difference of two such values and the
// parties' contributions add up to two-sided geometric noise.
type Geometric struct {
	epsilon       float64
	l1Sensitivity uint64
	numShares     uint64
	// Parameters of the Gamma mixing distribution of one Polya draw.
	shape, rate float64
}

// NewGeometric validates the privacy parameters and returns the mechanism.
func NewGeometric(epsilon float64, l1Sensitivity, numShares uint64) (*Geometric, error) {
	if epsilon <= 0 || math.IsInf(epsilon, 0) || math.IsNaN(epsilon) {
		return nil, fmt.Errorf("%w: expect positive finite epsilon, got %v", noise.ErrConfiguration, epsilon)
	}
	if l1Sensitivity == 0 {
		return nil, fmt.Errorf("%w: expect positive L1 sensitivity", noise.ErrConfiguration)
	}
	if numShares == 0 {
		return nil, fmt.Errorf("%w: expect positive share count", noise.ErrConfiguration)
	}
	p := math.Exp(-epsilon / float64(l1Sensitivity))
	return &Geometric{
		epsilon:       epsilon,
		l1Sensitivity: l1Sensitivity,
		numShares:     numShares,
		shape:         1 / float64(numShares),
		rate:          (1 - p) / p,
	}, nil
}

// polya draws from Polya(1/numShares, p) as a Gamma-Poisson mixture:
// https://en.wikipedia.org/wiki/Negative_binomial_distribution
func (g *Geometric) polya() int64 {
	lambda := distuv.Gamma{Alpha: g.shape, Beta: g.rate}.Rand()
	return int64(distuv.Poisson{Lambda: lambda}.Rand())
}

// Rand draws one party's share of the noise.
func (g *Geometric) Rand() int64 {
	return g.polya() - g.polya()
}

// NumShares returns the number of parties the shares are drawn for.
func (g *Geometric) NumShares() int {
	return int(g.numShares)
}

// Variance returns the variance of the reconstructed noise, 2p/(1-p)^2.
func (g *Geometric) Variance() float64 {
	p := math.Exp(-g.epsilon / float64(g.l1Sensitivity))
	return 2 * p / ((1 - p) * (1 - p))
}

// Share draws one party's share of the noise and embeds it in f.
func Share[E field.Element[E]](f field.Field[E], g *Geometric) (E, error) {
	return field.EncodeSigned(f, g.Rand())
}
