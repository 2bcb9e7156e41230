package placement

// DiskQuerier answers state questions about a disk, as needed by
// PlanDiskRepair to compute cross-rack repair traffic without internal/placement
// depending on the device-state packages directly.
type DiskQuerier interface {
	// IsUnavailable reports whether diskID is neither NORMAL (i.e. it is
	// CRASHED or transiently UNAVAILABLE).
	IsUnavailable(diskID uint) bool
	// IsCrashed reports whether diskID is permanently CRASHED.
	IsCrashed(diskID uint) bool
}

// RepairPlan is the result of planning the repair of one failed disk: how
// much data must cross racks, which of its stripes must have their repair
// delayed (too many simultaneously-unavailable chunks), and whether the
// repair was a single-chunk repair.
type RepairPlan struct {
	CrossRackDownload  float64
	StripesToDelay     []int
	StripesRepaired    int
	SingleChunkRepairs int
}

// RackOfDisk returns the rack index that owns diskID.
func (p *Placement) RackOfDisk(diskID uint) uint {
	return diskID / (p.NodesPerRack * p.DisksPerNode)
}

// PlanDiskRepair computes the cross-rack repair traffic for repairing
// diskID, which has just failed, given the current state of every other
// disk (via q). It mirrors the per-stripe accounting of the repair-cost
// computation this is grounded on, with the LRC local-parity-absorption
// fix applied (DESIGN.md decision 1).
func (p *Placement) PlanDiskRepair(diskID uint, q DiskQuerier) RepairPlan {
	rackID := p.RackOfDisk(diskID)
	stripesToRepair := p.stripesPerDisk[diskID]

	plan := RepairPlan{StripesRepaired: len(stripesToRepair)}

	for _, stripeID := range stripesToRepair {
		location := p.stripesLocation[stripeID]

		numFailedChunk := 0
		numUnavailChunk := 0
		numAliveChunkSameRack := 0
		failIdx := 0
		var aliveChunkSameRack []int

		for idx, otherDisk := range location {
			if q.IsUnavailable(otherDisk) {
				numUnavailChunk++
			}

			if p.CodeType != CodeLRC {
				switch {
				case q.IsCrashed(otherDisk):
					numFailedChunk++
				case p.RackOfDisk(otherDisk) == rackID:
					numAliveChunkSameRack++
				}
			} else {
				switch {
				case q.IsCrashed(otherDisk):
					numFailedChunk++
					if otherDisk == diskID {
						failIdx = idx
					}
				case p.RackOfDisk(otherDisk) == rackID:
					numAliveChunkSameRack++
					aliveChunkSameRack = append(aliveChunkSameRack, idx)
				}
			}
		}

		if numFailedChunk == 1 {
			plan.SingleChunkRepairs++
		}
		if numUnavailChunk > p.M {
			plan.StripesToDelay = append(plan.StripesToDelay, stripeID)
		}

		switch p.CodeType {
		case CodeRS:
			if numAliveChunkSameRack < p.K {
				plan.CrossRackDownload += float64(p.K - numAliveChunkSameRack)
			}
		case CodeLRC:
			plan.CrossRackDownload += p.lrcRepairCost(failIdx, numFailedChunk, numAliveChunkSameRack, aliveChunkSameRack)
		case CodeDRC:
			plan.CrossRackDownload += p.drcRepairCost(numFailedChunk, numAliveChunkSameRack)
		}
	}

	return plan
}

func (p *Placement) lrcRepairCost(failIdx, numFailedChunk, numAliveChunkSameRack int, aliveChunkSameRack []int) float64 {
	if numFailedChunk != 1 {
		if numAliveChunkSameRack < p.K {
			return float64(p.K - numAliveChunkSameRack)
		}
		return 0
	}

	if containsInt(p.LRCGlobalParity, failIdx) {
		if numAliveChunkSameRack < p.K {
			return float64(p.K - numAliveChunkSameRack)
		}
		return 0
	}

	failGid := 0
	for gid := 0; gid < p.L; gid++ {
		if containsInt(p.LRCDataGroup[gid], failIdx) || failIdx == p.LRCLocalParity[gid] {
			failGid = gid
			break
		}
	}

	aliveInGroup := 0
	for _, idx := range aliveChunkSameRack {
		if containsInt(p.LRCDataGroup[failGid], idx) || idx == p.LRCLocalParity[failGid] {
			aliveInGroup++
		}
	}

	groupRepairWidth := p.K / p.L
	if aliveInGroup < groupRepairWidth {
		return float64(groupRepairWidth - aliveInGroup)
	}
	return 0
}

func (p *Placement) drcRepairCost(numFailedChunk, numAliveChunkSameRack int) float64 {
	if numFailedChunk == 1 {
		switch {
		case p.K == 5 && p.N == 9:
			return 1.0
		case p.K == 6 && p.N == 9:
			return 2.0
		default:
			return 0
		}
	}
	if numAliveChunkSameRack < p.K {
		return float64(p.K - numAliveChunkSameRack)
	}
	return 0
}
