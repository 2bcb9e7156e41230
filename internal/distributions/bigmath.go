package distributions

import (
	"math"
	"math/big"
)

// This file carries the handful of transcendental primitives math/big does
// not provide out of the box (Exp, Ln, real-exponent Pow), implemented at
// Precision bits. There is no suitable third-party arbitrary-precision math
// library in the retrieved example corpus (see DESIGN.md), so these are
// built directly on big.Float using the standard Taylor-series-with-
// range-reduction (exp) and Newton's-method (ln) constructions.

func negate(x *big.Float) *big.Float {
	return newFloat().Neg(x)
}

// bigExp computes e^x to Precision bits via argument reduction (halving x
// until it is small) followed by a Taylor series, then squaring the result
// back up.
func bigExp(x *big.Float) *big.Float {
	if x.Sign() == 0 {
		return floatFromFloat64(1)
	}

	// Reduce |x| below 0.5 by repeated halving so the series converges fast.
	reductions := 0
	reduced := newFloat().Copy(x)
	half := floatFromFloat64(0.5)
	for reduced.MinPrec() > 0 && bigAbsGreater(reduced, half) {
		reduced = newFloat().Quo(reduced, floatFromFloat64(2))
		reductions++
		if reductions > 4096 {
			break
		}
	}

	sum := floatFromFloat64(1)
	term := floatFromFloat64(1)
	for n := 1; n < 400; n++ {
		term = newFloat().Mul(term, reduced)
		term = newFloat().Quo(term, floatFromFloat64(float64(n)))
		next := newFloat().Add(sum, term)
		if bigConverged(sum, next) {
			sum = next
			break
		}
		sum = next
	}

	for i := 0; i < reductions; i++ {
		sum = newFloat().Mul(sum, sum)
	}
	return sum
}

// bigLn computes the natural log of a strictly positive x to Precision
// bits via Newton's method seeded from float64 math.Log, which converges
// quadratically against bigExp above.
func bigLn(x *big.Float) *big.Float {
	xf, _ := x.Float64()
	if xf <= 0 {
		// ln of a non-positive number is undefined for our callers (U in
		// (0,1)); return 0 rather than panicking so a caller bug surfaces
		// as a wrong sample instead of a crash.
		return floatFromFloat64(0)
	}

	y := floatFromFloat64(math.Log(xf))
	for i := 0; i < 60; i++ {
		ey := bigExp(y)
		// y_{n+1} = y_n + x/e^y_n - 1
		delta := newFloat().Sub(newFloat().Quo(x, ey), floatFromFloat64(1))
		next := newFloat().Add(y, delta)
		if bigConverged(y, next) {
			y = next
			break
		}
		y = next
	}
	return y
}

// bigPow computes base^exponent for a strictly positive base and a real
// exponent via exp(exponent * ln(base)).
func bigPow(base *big.Float, exponent float64) *big.Float {
	if base.Sign() == 0 {
		if exponent == 0 {
			return floatFromFloat64(1)
		}
		return floatFromFloat64(0)
	}
	ln := bigLn(base)
	scaled := newFloat().Mul(ln, floatFromFloat64(exponent))
	return bigExp(scaled)
}

func bigAbsGreater(x, bound *big.Float) bool {
	abs := newFloat().Abs(x)
	return abs.Cmp(bound) > 0
}

// bigConverged reports whether two successive partial sums/iterates are
// close enough, relative to Precision, to stop iterating.
func bigConverged(prev, next *big.Float) bool {
	diff := newFloat().Sub(next, prev)
	diff.Abs(diff)
	threshold := new(big.Float).SetPrec(Precision).SetMantExp(floatFromFloat64(1), -int(Precision)+8)
	return diff.Cmp(threshold) < 0
}

func mathPow(base, exponent float64) float64 {
	return math.Pow(base, exponent)
}

func mathLog(x float64) float64 {
	return math.Log(x)
}
