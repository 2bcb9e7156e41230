// Package driver implements the Iteration Driver (spec component C8): it
// splits a Monte Carlo run into disjoint-seeded jobs, fans them out across
// a bounded worker pool, and aggregates the resulting samples into the
// reliability statistics the CLI reports.
package driver

import (
	"context"
	"math/big"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"github.com/JekaMas/workerpool"

	"github.com/jihwankim/rackrel/internal/simulator"
)

// SimType selects which simulator a job runs.
type SimType int

const (
	// SimRegular runs the discrete-event Regular simulator (unbiased).
	SimRegular SimType = iota
	// SimUnifBFB runs the uniformization + balanced-failure-biasing
	// importance-sampling simulator.
	SimUnifBFB
)

// Recorder receives optional, coarse-grained progress updates as jobs
// complete. It is checked after each job rather than each iteration, so
// a metrics implementation never sits in the sampling hot path. The
// zero value of Config leaves Metrics nil, which Run treats as "no
// recorder" without the caller needing a no-op implementation.
type Recorder interface {
	IterationsCompleted(n int)
	PDLEstimate(pdl float64)
	SamplesTotal(n int)
}

// Config bundles everything the driver needs to run a full Monte Carlo
// estimate: the simulator configuration, the importance-sampling knobs
// (ignored when SimType is SimRegular), and the run-level parallelism and
// seeding parameters from spec.md §4.8.
type Config struct {
	SimType SimType

	// Metrics, if non-nil, is notified as each job finishes. Optional.
	Metrics Recorder

	Regular simulator.Config
	IS      simulator.ISConfig

	TotalIterations int
	NumProcesses    int
	// RSeedPlus is the deterministic seed base; job i's PRNG is seeded
	// with RSeedPlus+i so reruns with the same seed reproduce identical
	// samples.
	RSeedPlus int64
}

// RunReport is the final, float64-rendered set of reliability metrics,
// produced by Render truncating the big.Float-precise aggregation at the
// very last step, per spec.md §9's precision discipline.
type RunReport struct {
	PDL                  float64
	RelativeErrorPct     float64
	NOMDL                float64
	MeanBlockedRatio     float64
	MeanSingleChunkRatio float64
	NumSamples           int
	NumZeroes            int
	InvalidIterations    int
}

// Driver runs a Monte Carlo reliability estimate by splitting
// TotalIterations into NumProcesses*n jobs, each with its own disjoint
// PRNG stream, and aggregating their samples.
type Driver struct {
	cfg Config
}

// New constructs a Driver.
func New(cfg Config) *Driver {
	return &Driver{cfg: cfg}
}

// job is one unit of work: run n iterations of the configured simulator
// with the given seed, appending a Sample per iteration.
type job struct {
	seed       int64
	iterations int
}

// splitJobs divides TotalIterations into NumProcesses*n disjoint-seeded
// jobs. Each job gets floor(total/numJobs) iterations except the last,
// which also absorbs the remainder, so every iteration requested is accounted
// for exactly once.
func (d *Driver) splitJobs() []job {
	numProcesses := d.cfg.NumProcesses
	if numProcesses < 1 {
		numProcesses = 1
	}
	total := d.cfg.TotalIterations
	if total < 1 {
		total = 1
	}
	// n jobs per process keeps the pool saturated even when an individual
	// job finishes early (e.g. data loss hit quickly); 4 per worker is a
	// reasonable oversubscription factor.
	const jobsPerWorker = 4
	numJobs := numProcesses * jobsPerWorker
	if numJobs > total {
		numJobs = total
	}
	if numJobs < 1 {
		numJobs = 1
	}

	base := total / numJobs
	remainder := total % numJobs

	jobs := make([]job, 0, numJobs)
	for i := 0; i < numJobs; i++ {
		n := base
		if i == numJobs-1 {
			n += remainder
		}
		if n <= 0 {
			continue
		}
		jobs = append(jobs, job{seed: d.cfg.RSeedPlus + int64(i), iterations: n})
	}
	return jobs
}

// Run executes every job across a workerpool sized to NumProcesses,
// propagating the first job error via errgroup and stopping remaining
// in-flight work at the next iteration boundary when ctx is cancelled.
func (d *Driver) Run(ctx context.Context) (*RunReport, error) {
	jobs := d.splitJobs()

	numProcesses := d.cfg.NumProcesses
	if numProcesses < 1 {
		numProcesses = 1
	}
	pool := workerpool.New(numProcesses)
	defer pool.StopWait()

	results := make([][]Sample, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	for i, jb := range jobs {
		i, jb := i, jb
		g.Go(func() error {
			done := make(chan error, 1)
			pool.Submit(func() {
				samples, err := runJob(ctx, d.cfg, jb)
				results[i] = samples
				if d.cfg.Metrics != nil {
					d.cfg.Metrics.IterationsCompleted(len(samples))
					d.cfg.Metrics.SamplesTotal(len(samples))
				}
				done <- err
			})
			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	numStripes := d.cfg.Regular.Placement.NumStripes
	codeN := d.cfg.Regular.Placement.N
	if d.cfg.SimType == SimUnifBFB {
		numStripes = d.cfg.IS.Placement.NumStripes
		codeN = d.cfg.IS.Placement.N
	}
	agg := NewSamples(numStripes, codeN)
	for _, samples := range results {
		for _, s := range samples {
			agg.Add(s)
		}
	}

	report := Render(agg)
	if d.cfg.Metrics != nil {
		d.cfg.Metrics.PDLEstimate(report.PDL)
	}
	return report, nil
}

// runJob replays jb.iterations Monte Carlo iterations with a PRNG seeded
// from jb.seed, honoring ctx cancellation between iterations.
func runJob(ctx context.Context, cfg Config, jb job) ([]Sample, error) {
	rng := rand.New(rand.NewSource(jb.seed))
	samples := make([]Sample, 0, jb.iterations)

	switch cfg.SimType {
	case SimUnifBFB:
		sim := simulator.NewUnifBFB(cfg.IS, rng)
		for i := 0; i < jb.iterations; i++ {
			if err := ctx.Err(); err != nil {
				return samples, err
			}
			result, lr, err := sim.RunIteration()
			if err != nil {
				samples = append(samples, Sample{Invalid: true})
				continue
			}
			samples = append(samples, sampleFromIS(result, lr))
		}
	default:
		sim := simulator.NewRegular(cfg.Regular, rng)
		for i := 0; i < jb.iterations; i++ {
			if err := ctx.Err(); err != nil {
				return samples, err
			}
			result, err := sim.RunIteration()
			if err != nil {
				samples = append(samples, Sample{Invalid: true})
				continue
			}
			samples = append(samples, sampleFromRegular(result))
		}
	}
	return samples, nil
}

func sampleFromRegular(r simulator.IterationResult) Sample {
	weight := newBig()
	if r.DataLoss {
		weight = bigFromInt(1)
	}
	return Sample{
		Weight:                 weight,
		NumFailedStripes:       r.NumFailedStripes,
		NumLostChunks:          r.NumLostChunks,
		BlockedRatio:           r.BlockedRatio,
		SingleChunkRepairRatio: r.SingleChunkRepairRatio,
	}
}

func sampleFromIS(r simulator.IterationResult, lr *big.Float) Sample {
	weight := newBig()
	if r.DataLoss {
		weight = new(big.Float).SetPrec(prec).Copy(lr)
	}
	return Sample{
		Weight:                 weight,
		NumFailedStripes:       r.NumFailedStripes,
		NumLostChunks:          r.NumLostChunks,
		BlockedRatio:           r.BlockedRatio,
		SingleChunkRepairRatio: r.SingleChunkRepairRatio,
	}
}

// Render truncates the big.Float-precise aggregation to float64 for
// display — the only point in the pipeline where precision is allowed to
// drop, per spec.md §9.
func Render(agg *Samples) *RunReport {
	pdl, _ := agg.Mean().Float64()
	re, _ := agg.RelativeError("0.95").Float64()
	nomdl, _ := agg.NOMDL().Float64()
	br, _ := agg.MeanBlockedRatio().Float64()
	scr, _ := agg.MeanSingleChunkRepairRatio().Float64()

	return &RunReport{
		PDL:                  pdl,
		RelativeErrorPct:     re,
		NOMDL:                nomdl,
		MeanBlockedRatio:     br,
		MeanSingleChunkRatio: scr,
		NumSamples:           agg.NumSamples(),
		NumZeroes:            agg.NumZeroes(),
		InvalidIterations:    agg.InvalidCount(),
	}
}
