package placement

import (
	"math/rand"
	"testing"
)

func newTestRS(t *testing.T) *Placement {
	t.Helper()
	p, err := New(Config{
		NumRacks:        6,
		NodesPerRack:    4,
		DisksPerNode:    1,
		CapacityPerDisk: 1 << 20,
		NumStripes:      50,
		ChunkSize:       256,
		CodeType:        CodeRS,
		N:               6,
		K:               4,
		PlaceType:       PlaceFlat,
	}, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestFlatPlacementPutsChunksInDistinctRacks(t *testing.T) {
	p := newTestRS(t)
	for stripeID := 0; stripeID < p.NumStripes; stripeID++ {
		racks := make(map[uint]struct{})
		for _, diskID := range p.GetStripeLocation(stripeID) {
			racks[p.RackOfDisk(diskID)] = struct{}{}
		}
		if len(racks) != p.N {
			t.Fatalf("stripe %d: expected %d distinct racks, got %d", stripeID, p.N, len(racks))
		}
	}
}

func TestReverseIndexIsConsistentWithForwardIndex(t *testing.T) {
	p := newTestRS(t)
	for stripeID := 0; stripeID < p.NumStripes; stripeID++ {
		for _, diskID := range p.GetStripeLocation(stripeID) {
			found := false
			for _, s := range p.GetStripesToRepair(diskID) {
				if s == stripeID {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("disk %d does not list stripe %d in its reverse index", diskID, stripeID)
			}
		}
	}
}

func TestCheckDataLossBelowThreshold(t *testing.T) {
	p := newTestRS(t)
	location := p.GetStripeLocation(0)
	// m = n - k = 2; failing exactly m disks must not be data loss.
	if p.CheckDataLoss(location[:p.M]) {
		t.Fatalf("expected no data loss with only m=%d failed disks", p.M)
	}
	if !p.CheckDataLoss(location[:p.M+1]) {
		t.Fatalf("expected data loss with m+1=%d failed disks", p.M+1)
	}
}

type fakeQuerier struct {
	crashed map[uint]bool
}

func (f fakeQuerier) IsUnavailable(diskID uint) bool { return f.crashed[diskID] }
func (f fakeQuerier) IsCrashed(diskID uint) bool     { return f.crashed[diskID] }

func TestPlanDiskRepairCountsCrossRackDownloadForRS(t *testing.T) {
	p := newTestRS(t)
	location := p.GetStripeLocation(0)
	failing := location[0]

	q := fakeQuerier{crashed: map[uint]bool{failing: true}}
	plan := p.PlanDiskRepair(failing, q)

	if plan.StripesRepaired == 0 {
		t.Fatalf("expected at least one stripe to repair")
	}
	if plan.CrossRackDownload <= 0 {
		t.Fatalf("expected positive cross-rack download, since k=%d data chunks must be read and no rack holds more than one chunk of a stripe", p.K)
	}
}

func TestLRCLayoutGeneralizesCanonicalExample(t *testing.T) {
	p, err := New(Config{
		NumRacks:        20,
		NodesPerRack:    4,
		DisksPerNode:    1,
		CapacityPerDisk: 1 << 20,
		NumStripes:      1,
		ChunkSize:       256,
		CodeType:        CodeLRC,
		N:               16,
		K:               12,
		L:               2,
		PlaceType:       PlaceFlat,
	}, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	wantDataGroup0 := []int{0, 1, 2, 3, 4, 5}
	wantDataGroup1 := []int{8, 9, 10, 11, 12, 13}
	if !intSliceEqual(p.LRCDataGroup[0], wantDataGroup0) {
		t.Fatalf("lrc data group 0 = %v, want %v", p.LRCDataGroup[0], wantDataGroup0)
	}
	if !intSliceEqual(p.LRCDataGroup[1], wantDataGroup1) {
		t.Fatalf("lrc data group 1 = %v, want %v", p.LRCDataGroup[1], wantDataGroup1)
	}
	if !intSliceEqual(p.LRCLocalParity, []int{6, 14}) {
		t.Fatalf("lrc local parity = %v, want [6 14]", p.LRCLocalParity)
	}
	if !intSliceEqual(p.LRCGlobalParity, []int{7, 15}) {
		t.Fatalf("lrc global parity = %v, want [7 15]", p.LRCGlobalParity)
	}
}

func intSliceEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
