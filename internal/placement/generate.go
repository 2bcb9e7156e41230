package placement

import "fmt"

// generatePlacementEC lays out every stripe's n chunks across disks,
// according to PlaceType and (for HIERARCHICAL and DRC) ChunkRackConfig.
func (p *Placement) generatePlacementEC() error {
	switch p.PlaceType {
	case PlaceFlat:
		return p.generateFlat()
	case PlaceHierarchical:
		return p.generateHierarchical()
	default:
		return fmt.Errorf("placement: unknown place type %v", p.PlaceType)
	}
}

func (p *Placement) generateFlat() error {
	if p.ChunkRackConfig != nil {
		// FLAT placement has no notion of an explicit per-rack chunk
		// count; DRC (which sets ChunkRackConfig itself) requires
		// PlaceHierarchical, enforced at the configuration layer.
		return fmt.Errorf("placement: chunk_rack_config is set but place type is FLAT; DRC requires HIERARCHICAL placement")
	}

	disksPerRack := p.DisksPerNode * p.NodesPerRack
	if p.NumRacks < uint(p.N) || disksPerRack < 1 {
		return fmt.Errorf("placement: not enough racks (%d) for n=%d chunks per stripe", p.NumRacks, p.N)
	}

	p.stripesLocation = make([][]uint, p.NumStripes)
	for stripeID := 0; stripeID < p.NumStripes; stripeID++ {
		racks := p.getDiffRacks(p.N)
		disks := make([]uint, 0, p.N)
		for _, rackID := range racks {
			disks = append(disks, p.getDiskRandomly(rackID))
		}
		p.stripesLocation[stripeID] = disks
	}
	return nil
}

func (p *Placement) generateHierarchical() error {
	if p.ChunkRackConfig == nil {
		return fmt.Errorf("placement: chunk_rack_config is required for HIERARCHICAL placement")
	}
	maxChunksInRack := 0
	for _, each := range p.ChunkRackConfig {
		if each > maxChunksInRack {
			maxChunksInRack = each
		}
	}
	if int(p.NumRacks) < len(p.ChunkRackConfig) || int(p.NodesPerRack) < maxChunksInRack {
		return fmt.Errorf("placement: topology too small for chunk_rack_config %v", p.ChunkRackConfig)
	}

	p.stripesLocation = make([][]uint, p.NumStripes)
	for stripeID := 0; stripeID < p.NumStripes; stripeID++ {
		racks := p.getDiffRacks(len(p.ChunkRackConfig))
		disks := make([]uint, 0, p.N)
		for i, rackID := range racks {
			disks = append(disks, p.getDiffDisks(rackID, p.ChunkRackConfig[i])...)
		}
		p.stripesLocation[stripeID] = disks
	}
	return nil
}

// getDiskRandomly picks one uniformly random disk from rackID.
func (p *Placement) getDiskRandomly(rackID uint) uint {
	perRack := p.NodesPerRack * p.DisksPerNode
	minDisk := rackID * perRack
	maxDisk := minDisk + perRack - 1
	if minDisk == maxDisk {
		return minDisk
	}
	return minDisk + uint(p.rng.Int63n(int64(maxDisk-minDisk+1)))
}

// getDiffDisks picks numDiffDisks disks in rackID, each on a different
// node.
func (p *Placement) getDiffDisks(rackID uint, numDiffDisks int) []uint {
	nodes := p.getDiffNodes(rackID, numDiffDisks)
	if p.DisksPerNode == 1 {
		return nodes
	}
	disks := make([]uint, 0, len(nodes))
	for _, node := range nodes {
		disks = append(disks, node*p.DisksPerNode+uint(p.rng.Int63n(int64(p.DisksPerNode))))
	}
	return disks
}

// getDiffNodes picks numDiffNodes distinct nodes from rackID.
func (p *Placement) getDiffNodes(rackID uint, numDiffNodes int) []uint {
	perm := p.rng.Perm(int(p.NodesPerRack))[:numDiffNodes]
	nodes := make([]uint, numDiffNodes)
	for i, n := range perm {
		nodes[i] = rackID*p.NodesPerRack + uint(n)
	}
	return nodes
}

// getDiffRacks picks numDiffRacks distinct racks from the whole cluster.
func (p *Placement) getDiffRacks(numDiffRacks int) []uint {
	perm := p.rng.Perm(int(p.NumRacks))[:numDiffRacks]
	racks := make([]uint, numDiffRacks)
	for i, r := range perm {
		racks[i] = uint(r)
	}
	return racks
}

// generateNumChunksPerDisk builds the per-disk chunk count and the
// disk-to-stripes reverse index in the same pass, matching
// generate_num_chunks_per_disk.
func (p *Placement) generateNumChunksPerDisk() {
	p.numChunksPerDisk = make([]int, p.NumDisks)
	for stripeID := 0; stripeID < p.NumStripes; stripeID++ {
		for _, diskID := range p.stripesLocation[stripeID] {
			p.numChunksPerDisk[diskID]++
			p.stripesPerDisk[diskID] = append(p.stripesPerDisk[diskID], stripeID)
		}
	}
}
