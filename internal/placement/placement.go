// Package placement generates the disk locations of every stripe for a
// rack-organized erasure-coded cluster, and answers durability questions
// (data loss, failed-stripe/lost-chunk counts, cross-rack repair traffic)
// against an arbitrary set of failed disks.
package placement

import (
	"fmt"
	"math/rand"
)

// CodeType identifies the erasure code a Placement lays stripes out for.
type CodeType int

const (
	CodeRS CodeType = iota
	CodeLRC
	CodeDRC
)

func (c CodeType) String() string {
	switch c {
	case CodeRS:
		return "Reed-Solomon Codes"
	case CodeLRC:
		return "Locally Repairable Codes"
	case CodeDRC:
		return "Double Regenerating Codes"
	default:
		return "unknown code"
	}
}

// PlaceType identifies how a stripe's n chunks are spread across racks.
type PlaceType int

const (
	// PlaceFlat puts every chunk of a stripe in a different rack.
	PlaceFlat PlaceType = iota
	// PlaceHierarchical allows more than one chunk of a stripe to reside
	// in the same rack, per ChunkRackConfig.
	PlaceHierarchical
)

func (p PlaceType) String() string {
	if p == PlaceHierarchical {
		return "HIERARCHICAL"
	}
	return "FLAT"
}

// Placement owns the stripe-to-disk layout for one simulation run and the
// reverse disk-to-stripes index built alongside it.
type Placement struct {
	NumRacks        uint
	NodesPerRack    uint
	DisksPerNode    uint
	NumDisks        uint
	CapacityPerDisk float64
	NumStripes      int
	ChunkSize       float64

	CodeType CodeType
	N, K, L  int
	M        int // N - K

	NumChunks     int
	NumDataChunks int

	PlaceType       PlaceType
	ChunkRackConfig []int

	// LRC canonical chunk layout, generalized from the fixed n=16,k=12,l=2
	// example: data chunks are split into L equally-sized (remainder in
	// the last) groups, each followed by one local parity chunk; the
	// global parity chunks are distributed as evenly as possible across
	// groups, with any remainder appended to the last group.
	LRCDataGroup    [][]int
	LRCLocalParity  []int
	LRCGlobalParity []int

	stripesLocation [][]uint   // stripesLocation[stripeID] = disk ids
	stripesPerDisk  [][]int    // stripesPerDisk[diskID] = stripe ids
	numChunksPerDisk []int

	rng *rand.Rand
}

// Config bundles the constructor parameters for New.
type Config struct {
	NumRacks        uint
	NodesPerRack    uint
	DisksPerNode    uint
	CapacityPerDisk float64
	NumStripes      int
	ChunkSize       float64
	CodeType        CodeType
	N, K, L         int
	PlaceType       PlaceType
	ChunkRackConfig []int
}

// New validates cfg, generates the stripe placement and builds the
// disk-to-stripes reverse index. It returns an error in place of the
// original's silent false-returning generate_placement, since an invalid
// topology/code configuration is a configuration error, not a recoverable
// runtime condition.
func New(cfg Config, rng *rand.Rand) (*Placement, error) {
	p := &Placement{
		NumRacks:        cfg.NumRacks,
		NodesPerRack:    cfg.NodesPerRack,
		DisksPerNode:    cfg.DisksPerNode,
		NumDisks:        cfg.NumRacks * cfg.NodesPerRack * cfg.DisksPerNode,
		CapacityPerDisk: cfg.CapacityPerDisk,
		NumStripes:      cfg.NumStripes,
		ChunkSize:       cfg.ChunkSize,
		CodeType:        cfg.CodeType,
		N:               cfg.N,
		K:               cfg.K,
		L:               cfg.L,
		M:               cfg.N - cfg.K,
		NumChunks:       cfg.N * cfg.NumStripes,
		NumDataChunks:   cfg.K * cfg.NumStripes,
		PlaceType:       cfg.PlaceType,
		ChunkRackConfig: cfg.ChunkRackConfig,
		rng:             rng,
	}

	if p.ChunkRackConfig != nil {
		sum := 0
		for _, each := range p.ChunkRackConfig {
			sum += each
		}
		if sum != p.N {
			return nil, fmt.Errorf("placement: chunk_rack_config sums to %d, want %d", sum, p.N)
		}
	}

	switch p.CodeType {
	case CodeRS:
		if p.K < 1 || p.N <= p.K {
			return nil, fmt.Errorf("placement: invalid n=%d, k=%d for erasure coding", p.N, p.K)
		}
	case CodeLRC:
		if p.K < 1 || p.N <= p.K {
			return nil, fmt.Errorf("placement: invalid n=%d, k=%d for erasure coding", p.N, p.K)
		}
		if p.L == 0 {
			return nil, fmt.Errorf("placement: l must not be 0 for LRC")
		}
		if err := p.buildLRCLayout(); err != nil {
			return nil, err
		}
	case CodeDRC:
		if !((p.N == 9 && p.K == 6) || (p.N == 9 && p.K == 5)) {
			return nil, fmt.Errorf("placement: DRC only supports (n,k) of (9,6) or (9,5), got (%d,%d)", p.N, p.K)
		}
		p.ChunkRackConfig = []int{3, 3, 3}
	default:
		return nil, fmt.Errorf("placement: unknown code type %v", p.CodeType)
	}

	p.stripesPerDisk = make([][]int, p.NumDisks)
	if err := p.generatePlacementEC(); err != nil {
		return nil, err
	}
	p.generateNumChunksPerDisk()

	return p, nil
}

// buildLRCLayout generalizes the original's hardcoded n=16,k=12,l=2 example
// (data-group-0, local-parity-0, global-parity, data-group-1,
// local-parity-1, global-parity) to arbitrary n, k, l.
func (p *Placement) buildLRCLayout() error {
	numGlobalParity := p.M - p.L
	if numGlobalParity < 0 {
		return fmt.Errorf("placement: n-k-l must be >= 0 for LRC, got n=%d k=%d l=%d", p.N, p.K, p.L)
	}

	dataPerGroup := p.K / p.L
	dataRemainder := p.K % p.L
	globalPerGroup := numGlobalParity / p.L
	globalRemainder := numGlobalParity % p.L

	p.LRCDataGroup = make([][]int, p.L)
	p.LRCLocalParity = make([]int, p.L)

	idx := 0
	for gid := 0; gid < p.L; gid++ {
		groupSize := dataPerGroup
		if gid == p.L-1 {
			groupSize += dataRemainder
		}
		group := make([]int, 0, groupSize)
		for i := 0; i < groupSize; i++ {
			group = append(group, idx)
			idx++
		}
		p.LRCDataGroup[gid] = group

		p.LRCLocalParity[gid] = idx
		idx++

		thisGroupGlobal := globalPerGroup
		if gid == p.L-1 {
			thisGroupGlobal += globalRemainder
		}
		for i := 0; i < thisGroupGlobal; i++ {
			p.LRCGlobalParity = append(p.LRCGlobalParity, idx)
			idx++
		}
	}
	return nil
}

// GetStripeLocation returns the disk ids holding stripeID's n chunks, in
// canonical chunk order (chunk index 0 at position 0, and so on).
func (p *Placement) GetStripeLocation(stripeID int) []uint {
	return p.stripesLocation[stripeID]
}

// GetStripesToRepair returns the stripe ids with a chunk on diskID.
func (p *Placement) GetStripesToRepair(diskID uint) []int {
	return p.stripesPerDisk[diskID]
}

// GetNumStripesToRepair returns len(GetStripesToRepair(diskID)).
func (p *Placement) GetNumStripesToRepair(diskID uint) int {
	return len(p.stripesPerDisk[diskID])
}

// GetNumChunksPerDisk returns the number of chunks (of any stripe) stored
// on diskID.
func (p *Placement) GetNumChunksPerDisk(diskID uint) int {
	return p.numChunksPerDisk[diskID]
}

// CapacityUtilization returns the fraction of total raw cluster capacity
// occupied by stripe data, assuming every chunk occupies ChunkSize bytes.
func (p *Placement) CapacityUtilization() float64 {
	total := float64(p.NumDisks) * p.CapacityPerDisk
	if total == 0 {
		return 0
	}
	used := float64(p.NumChunks) * p.ChunkSize
	return used / total
}
