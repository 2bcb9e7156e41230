// Package distributions implements the 3-parameter Weibull distribution and
// the failure-time-source abstraction used by the simulators.
package distributions

import (
	"fmt"
	"math/big"
	"math/rand"
)

// Precision is the minimum working precision, in bits, used for every
// big.Float computed by this package. 100 decimal digits ~= 333 bits; we
// round up for headroom the same way mpmath.mp.dps = 100 does in the
// original implementation.
const Precision uint = 360

func newFloat() *big.Float {
	return new(big.Float).SetPrec(Precision)
}

func floatFromFloat64(v float64) *big.Float {
	return newFloat().SetFloat64(v)
}

// Weibull is a 3-parameter Weibull(shape, scale, location) distribution.
// When shape == 1 this reduces to an Exponential(scale) distribution.
type Weibull struct {
	Shape    float64
	Scale    float64
	Location float64
}

// NewWeibull constructs a Weibull with the given shape, scale and location.
func NewWeibull(shape, scale, location float64) *Weibull {
	return &Weibull{Shape: shape, Scale: scale, Location: location}
}

// PDF returns the probability density of the distribution at x.
func (w *Weibull) PDF(x float64) *big.Float {
	if x < 0 || x < w.Location {
		return floatFromFloat64(0)
	}

	a := newFloat().Quo(floatFromFloat64(w.Shape), floatFromFloat64(w.Scale))
	b := newFloat().Quo(floatFromFloat64(x-w.Location), floatFromFloat64(w.Scale))
	b = bigPow(b, w.Shape-1)
	c := bigExp(negate(bigPow(newFloat().Quo(floatFromFloat64(x-w.Location), floatFromFloat64(w.Scale)), w.Shape)))

	return newFloat().Mul(newFloat().Mul(a, b), c)
}

// CDF returns P(X <= x), the probability of failure at or before x.
func (w *Weibull) CDF(x float64) *big.Float {
	if x < w.Location {
		return floatFromFloat64(0)
	}

	ratio := newFloat().Quo(floatFromFloat64(x-w.Location), floatFromFloat64(w.Scale))
	exponent := negate(bigPow(ratio, w.Shape))

	return newFloat().Sub(floatFromFloat64(1), bigExp(exponent))
}

// HazardRate returns the instantaneous failure rate at x. It is constant
// over x when Shape == 1.
func (w *Weibull) HazardRate(x float64) *big.Float {
	if x < w.Location {
		return floatFromFloat64(0)
	}
	if w.Shape == 1 {
		return newFloat().Quo(floatFromFloat64(1), floatFromFloat64(w.Scale))
	}

	denom := newFloat().Sub(floatFromFloat64(1), w.CDF(x))
	rate := newFloat().Quo(w.PDF(x), denom)
	return rate.Abs(rate)
}

// MaxHazardRate samples the hazard rate across [0, missionTime] at 10
// evenly spaced points and returns the largest value observed, matching
// the original's discrete scan used to bound uniformization's max rate.
func (w *Weibull) MaxHazardRate(missionTime float64) *big.Float {
	if w.Shape == 1 {
		return newFloat().Quo(floatFromFloat64(1), floatFromFloat64(w.Scale))
	}

	step := 0.1 * missionTime
	max := floatFromFloat64(0)
	for x := float64(1); x < missionTime; x += step {
		rate := w.HazardRate(x)
		if rate.Cmp(max) > 0 {
			max = rate
		}
	}
	return max
}

// MinHazardRate mirrors MaxHazardRate but returns the smallest sampled
// value, starting the scan at 1.0 as the original does.
func (w *Weibull) MinHazardRate(missionTime float64) *big.Float {
	if w.Shape == 1 {
		return newFloat().Quo(floatFromFloat64(1), floatFromFloat64(w.Scale))
	}

	step := 0.1 * missionTime
	min := floatFromFloat64(1)
	for x := float64(1); x < missionTime; x += step {
		rate := w.HazardRate(x)
		if rate.Cmp(min) < 0 {
			min = rate
		}
	}
	return min
}

// Draw returns a plain Weibull-distributed sample, shifted by Location,
// using the standard inverse-CDF construction: scale * (-ln(1-U))^(1/shape).
func (w *Weibull) Draw(rng *rand.Rand) float64 {
	u := rng.Float64()
	for u == 0 {
		u = rng.Float64()
	}
	return w.Scale*mathPow(-mathLog(1-u), 1/w.Shape) + w.Location
}

// DrawTruncated draws repeatedly until the sample exceeds lower, rejecting
// the Weibull-distributed samples at or below the truncation point.
const maxRedrawAttempts = 1000

func (w *Weibull) DrawTruncated(rng *rand.Rand, lower float64) (float64, error) {
	for attempt := 0; attempt < maxRedrawAttempts; attempt++ {
		val := w.Draw(rng)
		if val > lower {
			return val, nil
		}
	}
	return 0, fmt.Errorf("distributions: DrawTruncated exceeded %d attempts without exceeding lower bound %v", maxRedrawAttempts, lower)
}

// DrawInverseTransform draws the residual waiting time to the next failure
// given that the component has already survived currTime of operation
// (memoryless only when Shape == 1). Through WeibullSource it supplies the
// importance-sampling simulator's OK-state residual failure draws; the
// regular simulator pre-draws failure times with Draw instead.
func (w *Weibull) DrawInverseTransform(rng *rand.Rand, currTime float64) (float64, error) {
	u, err := uniformNonZero(rng)
	if err != nil {
		return 0, err
	}

	scalePow := bigPow(floatFromFloat64(w.Scale), w.Shape)
	lnU := bigLn(floatFromFloat64(u))
	term1 := negate(newFloat().Mul(scalePow, lnU))
	term2 := bigPow(floatFromFloat64(currTime), w.Shape)
	sum := newFloat().Add(term1, term2)
	inner := bigPow(sum, 1/w.Shape)
	draw := newFloat().Sub(inner, floatFromFloat64(currTime))
	draw.Abs(draw)

	f, _ := draw.Float64()
	return f, nil
}

func uniformNonZero(rng *rand.Rand) (float64, error) {
	for attempt := 0; attempt < maxRedrawAttempts; attempt++ {
		u := rng.Float64()
		if u != 0 {
			return u, nil
		}
	}
	return 0, fmt.Errorf("distributions: uniform draw stayed at 0 for %d attempts", maxRedrawAttempts)
}
