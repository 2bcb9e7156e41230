// Package sysstate maintains the aggregate, bitset-backed view of which
// disks and nodes are failed, unavailable or available, and applies the
// event-driven transitions used by both the regular and
// importance-sampling simulators.
package sysstate

import "github.com/bits-and-blooms/bitset"

// SysState summarizes whether the system has any outstanding failure.
type SysState int

const (
	// StateOK means no disk or node is failed or unavailable.
	StateOK SysState = iota
	// StateDegraded means at least one disk or node is failed or
	// unavailable.
	StateDegraded
)

func (s SysState) String() string {
	if s == StateOK {
		return "system is operational"
	}
	return "system has at least one failure"
}

// State is the aggregate, bitset-backed view of disk/node
// availability across the whole cluster for one simulation run.
type State struct {
	numDisks      uint
	numNodes      uint
	disksPerNode  uint

	availDisk    *bitset.BitSet
	failedDisks  *bitset.BitSet
	unavailDisks *bitset.BitSet

	availNodes  *bitset.BitSet
	failedNodes *bitset.BitSet

	numFailedDisks    int
	numUnavailDisks   int
	numFailedNodes    int

	sysState SysState
}

// New constructs a State for a cluster with numDisks disks and numNodes
// nodes, with every disk and node initially available.
func New(numDisks, numNodes uint) *State {
	s := &State{
		numDisks:     numDisks,
		numNodes:     numNodes,
		availDisk:    bitset.New(numDisks),
		failedDisks:  bitset.New(numDisks),
		unavailDisks: bitset.New(numDisks),
		availNodes:   bitset.New(numNodes),
		failedNodes:  bitset.New(numNodes),
		sysState:     StateOK,
	}
	if numNodes != 0 {
		s.disksPerNode = numDisks / numNodes
	}
	for i := uint(0); i < numDisks; i++ {
		s.availDisk.Set(i)
	}
	for i := uint(0); i < numNodes; i++ {
		s.availNodes.Set(i)
	}
	return s
}

// UpdateSysState recomputes the aggregate system state from the current
// failed/unavailable disk counts.
func (s *State) UpdateSysState() {
	if s.numFailedDisks == 0 && s.numUnavailDisks == 0 {
		s.sysState = StateOK
	} else {
		s.sysState = StateDegraded
	}
}

// SysState returns the current aggregate system state.
func (s *State) SysState() SysState { return s.sysState }

// FailDisk marks diskID as failed. Panics if diskID is out of range — an
// internal invariant violation, not a recoverable configuration error.
func (s *State) FailDisk(diskID uint) {
	mustInRange(diskID, s.numDisks, "FailDisk")
	s.failedDisks.Set(diskID)
	s.availDisk.Clear(diskID)
	s.numFailedDisks++
}

// RepairDisk marks diskID as repaired (removed from the failed set).
func (s *State) RepairDisk(diskID uint) {
	mustInRange(diskID, s.numDisks, "RepairDisk")
	s.failedDisks.Clear(diskID)
	s.availDisk.Set(diskID)
	s.numFailedDisks--
}

// FailNode marks nodeID as failed.
func (s *State) FailNode(nodeID uint) {
	mustInRange(nodeID, s.numNodes, "FailNode")
	s.failedNodes.Set(nodeID)
	s.availNodes.Clear(nodeID)
	s.numFailedNodes = int(s.failedNodes.Count())
}

// RepairNode marks nodeID as repaired.
func (s *State) RepairNode(nodeID uint) {
	mustInRange(nodeID, s.numNodes, "RepairNode")
	s.failedNodes.Clear(nodeID)
	s.availNodes.Set(nodeID)
	s.numFailedNodes = int(s.failedNodes.Count())
}

// SetDiskOffline marks diskID unavailable due to a rack/node transient
// cascade, distinct from a permanent FailDisk. Unused: transient cascades
// are tracked at the device layer via devstate.Disk.OfflineDisk/OnlineDisk
// instead, and this aggregate-layer path is never exercised. The original
// implementation carries the same unused pair; kept for parity rather than
// removed.
func (s *State) SetDiskOffline(diskID uint) {
	s.availDisk.Clear(diskID)
	s.unavailDisks.Set(diskID)
	s.numUnavailDisks++
}

// SetDiskOnline reverses SetDiskOffline. No-op if diskID wasn't marked
// unavailable. Unused for the same reason as SetDiskOffline.
func (s *State) SetDiskOnline(diskID uint) {
	if !s.unavailDisks.Test(diskID) {
		return
	}
	s.unavailDisks.Clear(diskID)
	s.availDisk.Set(diskID)
	s.numUnavailDisks--
}

// GetNumFailedDisks returns the number of currently failed disks.
func (s *State) GetNumFailedDisks() int { return s.numFailedDisks }

// GetFailedDisks returns the sorted disk indices currently failed.
func (s *State) GetFailedDisks() []uint {
	return toSlice(s.failedDisks)
}

// GetAvailDisks returns the sorted disk indices currently available.
func (s *State) GetAvailDisks() []uint {
	return toSlice(s.availDisk)
}

// GetAvailNodes returns the sorted node indices currently available.
func (s *State) GetAvailNodes() []uint {
	return toSlice(s.availNodes)
}

// GetNumFailedNodes returns the number of currently failed nodes.
func (s *State) GetNumFailedNodes() int { return s.numFailedNodes }

// GetFailedNodes returns the sorted node indices currently failed. This is
// the corrected form of a copy-paste bug in the original implementation,
// which returned the failed-disks bitmap from this accessor; see
// DESIGN.md.
func (s *State) GetFailedNodes() []uint {
	return toSlice(s.failedNodes)
}

// UpdateState applies the Regular Simulator's event-driven transitions:
// disk/node permanent-failure events fail each disk in diskIDs, disk
// repair events repair each disk in diskIDs, and node/rack transient
// events are ignored here — they are applied directly against device
// state (devstate.Disk.OfflineDisk/OnlineDisk) and do not themselves
// move bits in this aggregate view.
func (s *State) UpdateState(event EventType, diskIDs []uint) {
	switch event {
	case EventNodeFail, EventDiskFail:
		for _, id := range diskIDs {
			s.FailDisk(id)
		}
	case EventDiskRepair:
		for _, id := range diskIDs {
			s.RepairDisk(id)
		}
	case EventNodeTransientFail, EventNodeTransientRepair, EventRackFail, EventRackRepair:
		// No aggregate bitmap change here.
	}
	s.UpdateSysState()
}

// UpdateStateUnifBFB applies the importance-sampling simulator's
// transitions, including the node<->disk promotion/demotion rule: failing
// the last healthy disk on a node promotes the node to failed, and
// repairing the last failed disk on a failed node demotes it back.
func (s *State) UpdateStateUnifBFB(event EventType, subsystemIdx uint) {
	switch event {
	case EventDiskFail:
		s.FailDisk(subsystemIdx)
		nodeIdx := subsystemIdx / s.disksPerNode
		if s.allDisksOnNodeFailed(nodeIdx) {
			s.FailNode(nodeIdx)
		}
	case EventDiskRepair:
		s.RepairDisk(subsystemIdx)
		nodeIdx := subsystemIdx / s.disksPerNode
		if !s.anyDiskOnNodeFailed(nodeIdx) && s.failedNodes.Test(nodeIdx) {
			s.RepairNode(nodeIdx)
		}
	case EventNodeFail:
		s.FailNode(subsystemIdx)
		for i := uint(0); i < s.disksPerNode; i++ {
			s.FailDisk(subsystemIdx*s.disksPerNode + i)
		}
	case EventNodeRepair:
		s.RepairNode(subsystemIdx)
		for i := uint(0); i < s.disksPerNode; i++ {
			s.RepairDisk(subsystemIdx*s.disksPerNode + i)
		}
	}
	s.UpdateSysState()
}

func (s *State) allDisksOnNodeFailed(nodeIdx uint) bool {
	for i := uint(0); i < s.disksPerNode; i++ {
		if !s.failedDisks.Test(nodeIdx*s.disksPerNode + i) {
			return false
		}
	}
	return true
}

func (s *State) anyDiskOnNodeFailed(nodeIdx uint) bool {
	for i := uint(0); i < s.disksPerNode; i++ {
		if s.failedDisks.Test(nodeIdx*s.disksPerNode + i) {
			return true
		}
	}
	return false
}

func toSlice(bs *bitset.BitSet) []uint {
	out := make([]uint, 0, bs.Count())
	for i, ok := bs.NextSet(0); ok; i, ok = bs.NextSet(i + 1) {
		out = append(out, i)
	}
	return out
}

func mustInRange(id, limit uint, op string) {
	if id >= limit {
		panic("sysstate: " + op + ": id out of range")
	}
}
