package driver

import (
	"context"
	"testing"

	"github.com/jihwankim/rackrel/internal/distributions"
	"github.com/jihwankim/rackrel/internal/placement"
	"github.com/jihwankim/rackrel/internal/simulator"
)

func baseRegularConfig() simulator.Config {
	return simulator.Config{
		NumRacks:     6,
		NodesPerRack: 4,
		DisksPerNode: 1,
		MissionTime:  24,

		DiskFailDist:   distributions.NewWeibull(1.0, 100, 0),
		DiskRepairDist: distributions.NewWeibull(1.0, 0.1, 0),
		NodeFailDist:   distributions.NewWeibull(1.0, 1000, 0),
		RackFailDist:   distributions.NewWeibull(1.0, 10000, 0),
		RackRepairDist: distributions.NewWeibull(1.0, 1, 0),

		Placement: placement.Config{
			CapacityPerDisk: 1 << 20,
			NumStripes:      10,
			ChunkSize:       256,
			CodeType:        placement.CodeRS,
			N:               6,
			K:               3,
			PlaceType:       placement.PlaceFlat,
		},
	}
}

func TestDriverRunAggregatesRegularSamples(t *testing.T) {
	d := New(Config{
		SimType:         SimRegular,
		Regular:         baseRegularConfig(),
		TotalIterations: 20,
		NumProcesses:    2,
		RSeedPlus:       1,
	})

	report, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.NumSamples != 20 {
		t.Fatalf("expected 20 samples, got %d", report.NumSamples)
	}
	if report.PDL < 0 || report.PDL > 1 {
		t.Fatalf("PDL out of [0,1]: %v", report.PDL)
	}
	if report.NOMDL < 0 {
		t.Fatalf("NOMDL must be non-negative, got %v", report.NOMDL)
	}
}

func TestDriverRunCancelledContext(t *testing.T) {
	d := New(Config{
		SimType:         SimRegular,
		Regular:         baseRegularConfig(),
		TotalIterations: 1000,
		NumProcesses:    4,
		RSeedPlus:       7,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := d.Run(ctx); err == nil {
		t.Fatalf("expected cancellation error from a pre-cancelled context")
	}
}

func TestSplitJobsCoversEveryIteration(t *testing.T) {
	d := New(Config{TotalIterations: 37, NumProcesses: 3})
	jobs := d.splitJobs()

	total := 0
	for _, j := range jobs {
		total += j.iterations
	}
	if total != 37 {
		t.Fatalf("expected jobs to cover all 37 iterations, got %d", total)
	}
}
