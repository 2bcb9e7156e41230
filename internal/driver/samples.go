package driver

import (
	"math/big"

	"github.com/jihwankim/rackrel/internal/distributions"
)

// prec is the working precision for every statistic this package derives
// from samples, matching the precision the simulators carry their
// likelihood ratios at so aggregation never reintroduces the underflow a
// premature float64 conversion would cause.
const prec = distributions.Precision

func bigFromFloat64(v float64) *big.Float { return new(big.Float).SetPrec(prec).SetFloat64(v) }
func bigFromInt(n int) *big.Float         { return new(big.Float).SetPrec(prec).SetInt64(int64(n)) }
func newBig() *big.Float                  { return new(big.Float).SetPrec(prec) }

// confidenceZ mirrors the original's static confidence-level lookup table
// (sim_analysis_functions.Samples.conf_lvl_lku), carried in full; only the
// 0.95 entry is used by the reporting surface.
var confidenceZ = map[string]float64{
	"0.80":  1.281,
	"0.85":  1.440,
	"0.90":  1.645,
	"0.95":  1.960,
	"0.995": 2.801,
}

// Sample is one Monte Carlo iteration's outcome, contributed by either the
// Regular or the UnifBFB simulator. Weight is the PDL indicator: 1 (or the
// accumulated likelihood ratio, for importance sampling) when the iteration
// hit data loss before mission time, 0 otherwise.
type Sample struct {
	Weight                 *big.Float
	NumFailedStripes       int
	NumLostChunks          int
	BlockedRatio           float64
	SingleChunkRepairRatio float64
	Invalid                bool
}

// Samples couples a batch of Sample values with the statistics functions
// over them, generalizing sim_analysis_functions.Samples from a plain PDL
// indicator array to the full set of metrics the driver reports, all
// carried at big.Float precision until Render.
type Samples struct {
	weights          []*big.Float
	sumLostChunks    *big.Float
	sumBlockedRatio  *big.Float
	sumSingleChunk   *big.Float
	numZero          int
	invalidCount     int
	numStripes       int
	codeN            int
}

// NewSamples builds an aggregator for samples drawn against a placement of
// numStripes stripes each with codeN total chunks, needed to normalize NOMDL.
func NewSamples(numStripes, codeN int) *Samples {
	return &Samples{
		sumLostChunks:   newBig(),
		sumBlockedRatio: newBig(),
		sumSingleChunk:  newBig(),
		numStripes:      numStripes,
		codeN:           codeN,
	}
}

// Add folds one sample into the aggregator. Invalid samples (internal
// invariant violations surfaced by a worker) are counted but excluded from
// every statistic, per spec.md §7's error-handling design.
func (s *Samples) Add(sample Sample) {
	if sample.Invalid {
		s.invalidCount++
		return
	}
	if sample.Weight.Sign() == 0 {
		s.numZero++
	}
	s.weights = append(s.weights, sample.Weight)
	s.sumLostChunks.Add(s.sumLostChunks, bigFromInt(sample.NumLostChunks))
	s.sumBlockedRatio.Add(s.sumBlockedRatio, bigFromFloat64(sample.BlockedRatio))
	s.sumSingleChunk.Add(s.sumSingleChunk, bigFromFloat64(sample.SingleChunkRepairRatio))
}

// NumSamples returns the count of valid (non-invalid) samples folded in.
func (s *Samples) NumSamples() int { return len(s.weights) }

// InvalidCount returns the count of invalid samples folded in.
func (s *Samples) InvalidCount() int { return s.invalidCount }

// NumZeroes returns how many samples carried a zero weight (no data loss).
func (s *Samples) NumZeroes() int { return s.numZero }

func (s *Samples) allZero() bool { return s.numZero == len(s.weights) }

// Mean is the sample mean of the weight array — the PDL estimator.
func (s *Samples) Mean() *big.Float {
	if len(s.weights) == 0 || s.allZero() {
		return newBig()
	}
	sum := newBig()
	for _, w := range s.weights {
		sum.Add(sum, w)
	}
	return new(big.Float).SetPrec(prec).Quo(sum, bigFromInt(len(s.weights)))
}

// StdDev is the sample standard deviation of the weight array, 0 by
// convention when there is only one sample (division by N-1 would be
// division by zero).
func (s *Samples) StdDev() *big.Float {
	if len(s.weights) == 0 || s.allZero() {
		return newBig()
	}
	mean := s.Mean()
	if mean.Sign() == 0 {
		return newBig()
	}
	if len(s.weights) == 1 {
		return newBig()
	}
	sumSq := newBig()
	for _, w := range s.weights {
		diff := new(big.Float).SetPrec(prec).Sub(w, mean)
		sq := new(big.Float).SetPrec(prec).Mul(diff, diff)
		sumSq.Add(sumSq, sq)
	}
	variance := new(big.Float).SetPrec(prec).Quo(sumSq, bigFromInt(len(s.weights)-1))
	return new(big.Float).SetPrec(prec).Sqrt(variance)
}

// CIHalfWidth is the half-width of the confidence interval around the
// sample mean at the given confidence level ("0.95" is the one this
// project's CLI and report surface), |z * stddev/sqrt(N)|.
func (s *Samples) CIHalfWidth(confLevel string) *big.Float {
	if len(s.weights) == 0 || s.allZero() {
		return newBig()
	}
	z, ok := confidenceZ[confLevel]
	if !ok {
		z = confidenceZ["0.95"]
	}
	sqrtN := new(big.Float).SetPrec(prec).Sqrt(bigFromInt(len(s.weights)))
	hw := new(big.Float).SetPrec(prec).Quo(s.StdDev(), sqrtN)
	hw.Mul(hw, bigFromFloat64(z))
	return hw.Abs(hw)
}

// RelativeError is the half-width expressed as a percentage of the mean,
// 0 by convention when every sample is zero.
func (s *Samples) RelativeError(confLevel string) *big.Float {
	mean := s.Mean()
	if mean.Sign() == 0 {
		return newBig()
	}
	re := new(big.Float).SetPrec(prec).Quo(s.CIHalfWidth(confLevel), mean)
	return re.Mul(re, bigFromInt(100))
}

// NOMDL is the mean lost-chunk count per sample, normalized by the total
// chunk count in the placement (num_stripes * code_n).
func (s *Samples) NOMDL() *big.Float {
	if len(s.weights) == 0 {
		return newBig()
	}
	avgLostChunks := new(big.Float).SetPrec(prec).Quo(s.sumLostChunks, bigFromInt(len(s.weights)))
	denom := bigFromInt(s.numStripes * s.codeN)
	if denom.Sign() == 0 {
		return newBig()
	}
	return new(big.Float).SetPrec(prec).Quo(avgLostChunks, denom)
}

// MeanBlockedRatio is the plain (unweighted) average blocked ratio across
// every sample, matching simedc.py's avg_br accumulation.
func (s *Samples) MeanBlockedRatio() *big.Float {
	if len(s.weights) == 0 {
		return newBig()
	}
	return new(big.Float).SetPrec(prec).Quo(s.sumBlockedRatio, bigFromInt(len(s.weights)))
}

// MeanSingleChunkRepairRatio is the plain average single-chunk-repair ratio
// across every sample.
func (s *Samples) MeanSingleChunkRepairRatio() *big.Float {
	if len(s.weights) == 0 {
		return newBig()
	}
	return new(big.Float).SetPrec(prec).Quo(s.sumSingleChunk, bigFromInt(len(s.weights)))
}
