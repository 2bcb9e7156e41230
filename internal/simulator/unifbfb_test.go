package simulator

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/jihwankim/rackrel/internal/devstate"
	"github.com/jihwankim/rackrel/internal/distributions"
)

func TestUnifBFBRunIterationCompletes(t *testing.T) {
	cfg := ISConfig{
		Config: baseConfig(),
		FBProb: 0.5,
		Beta:   0.61,
	}
	sim := NewUnifBFB(cfg, rand.New(rand.NewSource(1)))

	result, lr, err := sim.RunIteration()
	if err != nil {
		t.Fatalf("RunIteration: %v", err)
	}
	if lr.Sign() < 0 {
		t.Fatalf("likelihood ratio must be non-negative, got %v", lr)
	}
	if result.DataLoss && lr.Sign() == 0 {
		t.Fatalf("a data-loss sample must carry a positive likelihood ratio")
	}
}

func TestUnifBFBLikelihoodRatioStartsAtOne(t *testing.T) {
	cfg := ISConfig{Config: baseConfig(), FBProb: 0.5, Beta: 0.61}
	sim := NewUnifBFB(cfg, rand.New(rand.NewSource(2)))
	if err := sim.reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if sim.lr.Cmp(big.NewFloat(1)) != 0 {
		t.Fatalf("expected lr initialized to 1, got %v", sim.lr)
	}
}

func TestUnifBFBNodeFailureCascadesAndRepairs(t *testing.T) {
	base := baseConfig()
	base.NodeFailDist = distributions.NewWeibull(1.0, 1e-6, 0)
	base.DiskFailDist = distributions.NewWeibull(1.0, 1e6, 0)
	base.DiskRepairDist = distributions.NewWeibull(1.0, 1e-3, 0)

	cfg := ISConfig{Config: base, FBProb: 0.5, Beta: 1000}
	sim := NewUnifBFB(cfg, rand.New(rand.NewSource(3)))
	if err := sim.reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}

	newTime := sim.stepOK(0)

	failedNode := -1
	for i, n := range sim.nodes {
		if n.State() == devstate.NodeCrashed {
			failedNode = i
			break
		}
	}
	if failedNode < 0 {
		t.Fatalf("expected a node failure given NodeFailDist's near-zero scale")
	}
	for i := uint(0); i < sim.cfg.DisksPerNode; i++ {
		diskID := uint(failedNode)*sim.cfg.DisksPerNode + i
		if sim.disks[diskID].State() != devstate.DiskCrashed {
			t.Fatalf("disk %d on failed node %d did not cascade to crashed, got %v", diskID, failedNode, sim.disks[diskID].State())
		}
	}
	if len(sim.pendingNodes) != 1 {
		t.Fatalf("expected exactly one pending node repair, got %d", len(sim.pendingNodes))
	}

	sim.schedulePendingRepairs(newTime + 1000)

	if sim.nodes[failedNode].State() != devstate.NodeNormal {
		t.Fatalf("expected failed node to repair, got state %v", sim.nodes[failedNode].State())
	}
	for i := uint(0); i < sim.cfg.DisksPerNode; i++ {
		diskID := uint(failedNode)*sim.cfg.DisksPerNode + i
		if sim.disks[diskID].State() != devstate.DiskNormal {
			t.Fatalf("expected disk %d on repaired node to be normal, got %v", diskID, sim.disks[diskID].State())
		}
	}
}
