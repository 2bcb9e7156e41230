package simulator

import (
	"math/rand"
	"testing"

	"github.com/jihwankim/rackrel/internal/distributions"
	"github.com/jihwankim/rackrel/internal/placement"
)

func baseConfig() Config {
	return Config{
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
			NumStripes:      20,
			ChunkSize:       256,
			CodeType:        placement.CodeRS,
			N:               6,
			K:               4,
			PlaceType:       placement.PlaceFlat,
		},
	}
}

func TestRegularRunIterationCompletesWithoutNetwork(t *testing.T) {
	cfg := baseConfig()
	sim := NewRegular(cfg, rand.New(rand.NewSource(42)))

	result, err := sim.RunIteration()
	if err != nil {
		t.Fatalf("RunIteration: %v", err)
	}
	if result.BlockedRatio < 0 {
		t.Fatalf("blocked ratio must be non-negative, got %v", result.BlockedRatio)
	}
	if result.SingleChunkRepairRatio < 0 || result.SingleChunkRepairRatio > 1 {
		t.Fatalf("single-chunk repair ratio out of [0,1]: %v", result.SingleChunkRepairRatio)
	}
}

func TestRegularRunIterationWithNetworkBandwidth(t *testing.T) {
	cfg := baseConfig()
	cfg.UseNetwork = true
	cfg.CrossRackBwth = 125
	cfg.IntraRackBwth = 125

	sim := NewRegular(cfg, rand.New(rand.NewSource(7)))
	if _, err := sim.RunIteration(); err != nil {
		t.Fatalf("RunIteration: %v", err)
	}
}

func TestRegularDetectsDataLossUnderAggressiveFailures(t *testing.T) {
	cfg := baseConfig()
	// Fail disks far faster than they can be repaired, over a long
	// mission, to force data loss within a reasonable iteration count.
	cfg.DiskFailDist = distributions.NewWeibull(1.0, 0.01, 0)
	cfg.DiskRepairDist = distributions.NewWeibull(1.0, 1000, 0)
	cfg.MissionTime = 1000

	found := false
	for seed := int64(0); seed < 20 && !found; seed++ {
		sim := NewRegular(cfg, rand.New(rand.NewSource(seed)))
		result, err := sim.RunIteration()
		if err != nil {
			t.Fatalf("RunIteration: %v", err)
		}
		if result.DataLoss {
			found = true
			if result.NumFailedStripes <= 0 || result.NumLostChunks <= 0 {
				t.Fatalf("data loss reported with non-positive counters: %+v", result)
			}
		}
	}
	if !found {
		t.Fatalf("expected at least one of 20 aggressive-failure iterations to report data loss")
	}
}
