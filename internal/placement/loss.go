package placement

// failedStripeSet returns the distinct stripe ids with a chunk on any disk
// in failedDisks.
func (p *Placement) failedStripeSet(failedDisks []uint) map[int]struct{} {
	set := make(map[int]struct{})
	for _, diskID := range failedDisks {
		for _, stripeID := range p.stripesPerDisk[diskID] {
			set[stripeID] = struct{}{}
		}
	}
	return set
}

// CheckDataLoss reports whether any stripe touched by failedDisks has lost
// more chunks than it can tolerate.
func (p *Placement) CheckDataLoss(failedDisks []uint) bool {
	failedSet := toSet(failedDisks)
	for stripeID := range p.failedStripeSet(failedDisks) {
		if p.CodeType == CodeLRC {
			if p.lrcStripeFailedCount(stripeID, failedSet) > p.N-p.K-p.L {
				return true
			}
		} else {
			if p.plainStripeFailedCount(stripeID, failedSet) > p.M {
				return true
			}
		}
	}
	return false
}

// GetNumFailedStatus returns the number of stripes that have lost data and
// the total number of chunks lost across them.
func (p *Placement) GetNumFailedStatus(failedDisks []uint) (numFailedStripes, numLostChunks int) {
	if len(failedDisks) == 0 {
		return 0, 0
	}
	failedSet := toSet(failedDisks)

	for stripeID := range p.failedStripeSet(failedDisks) {
		lost := p.stripeLostChunks(stripeID, failedSet)
		var effectiveFailures int
		if p.CodeType == CodeLRC {
			effectiveFailures = p.lrcStripeFailedCount(stripeID, failedSet)
		} else {
			effectiveFailures = p.plainStripeFailedCount(stripeID, failedSet)
		}
		threshold := p.M
		if p.CodeType == CodeLRC {
			threshold = p.N - p.K - p.L
		}
		if effectiveFailures > threshold {
			numFailedStripes++
			numLostChunks += lost
		}
	}
	return numFailedStripes, numLostChunks
}

func (p *Placement) plainStripeFailedCount(stripeID int, failedSet map[uint]struct{}) int {
	count := 0
	for _, diskID := range p.stripesLocation[stripeID] {
		if _, failed := failedSet[diskID]; failed {
			count++
		}
	}
	return count
}

func (p *Placement) stripeLostChunks(stripeID int, failedSet map[uint]struct{}) int {
	lost := 0
	for _, diskID := range p.stripesLocation[stripeID] {
		if _, failed := failedSet[diskID]; failed {
			lost++
		}
	}
	return lost
}

// lrcStripeFailedCount implements the LRC local-parity-absorption rule: a
// surviving local parity chunk in a group absorbs one of that group's
// failed data chunks, reducing the effective failure count the cluster
// must recover cross-rack. This is the corrected form of a dead comparison
// in the source this is grounded on; see DESIGN.md decision 1.
func (p *Placement) lrcStripeFailedCount(stripeID int, failedSet map[uint]struct{}) int {
	groupFailed := make([]int, p.L)
	globalFailed := 0

	location := p.stripesLocation[stripeID]
	for idx, diskID := range location {
		_, failed := failedSet[diskID]
		if failed {
			if containsInt(p.LRCGlobalParity, idx) {
				globalFailed++
			} else if !containsInt(p.LRCLocalParity, idx) {
				for gid, group := range p.LRCDataGroup {
					if containsInt(group, idx) {
						groupFailed[gid]++
						break
					}
				}
			}
		} else {
			for gid, parityIdx := range p.LRCLocalParity {
				if idx == parityIdx && groupFailed[gid] > 0 {
					groupFailed[gid]--
					break
				}
			}
		}
	}

	total := globalFailed
	for _, n := range groupFailed {
		total += n
	}
	return total
}

func containsInt(haystack []int, needle int) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}

func toSet(ids []uint) map[uint]struct{} {
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
