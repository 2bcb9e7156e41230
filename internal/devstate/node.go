package devstate

import "github.com/jihwankim/rackrel/internal/distributions"

// NodeState is one of the three states a Node can be in.
type NodeState int

const (
	NodeNormal NodeState = iota
	NodeUnavailable
	NodeCrashed
)

func (s NodeState) String() string {
	switch s {
	case NodeNormal:
		return "normal"
	case NodeUnavailable:
		return "unavailable"
	case NodeCrashed:
		return "crashed"
	default:
		return "unknown"
	}
}

// Node mirrors Disk's clock/state discipline at the node granularity, used
// both for whole-node permanent failures and for transient (e.g. reboot)
// cascades that do not imply data loss.
type Node struct {
	state NodeState

	unavailStart float64
	unavailClock float64

	lastTimeUpdate float64
	beginTime      float64
	clock          float64
	repairClock    float64
	repairStart    float64

	FailSource            distributions.FailureTimeSource
	TransientFailSource   distributions.FailureTimeSource
	TransientRepairSource distributions.FailureTimeSource
}

// NewNode constructs a Node in the NORMAL state with zeroed clocks.
func NewNode(failSource, transientFailSource, transientRepairSource distributions.FailureTimeSource) *Node {
	return &Node{
		state:                 NodeNormal,
		FailSource:            failSource,
		TransientFailSource:   transientFailSource,
		TransientRepairSource: transientRepairSource,
	}
}

// InitClock resets all clocks relative to currTime.
func (n *Node) InitClock(currTime float64) {
	n.unavailStart = 0
	n.unavailClock = 0
	n.lastTimeUpdate = currTime
	n.beginTime = currTime
	n.clock = 0
	n.repairClock = 0
	n.repairStart = 0
}

// InitState resets the node to NORMAL without touching the clocks.
func (n *Node) InitState() { n.state = NodeNormal }

// UpdateClock advances the node's local clock and, while CRASHED, its
// repair clock.
func (n *Node) UpdateClock(currTime float64) {
	n.clock += currTime - n.lastTimeUpdate
	if n.state == NodeCrashed {
		n.repairClock = currTime - n.repairStart
	} else {
		n.repairClock = 0
	}
	n.lastTimeUpdate = currTime
}

// ReadClock returns the node's local clock.
func (n *Node) ReadClock() float64 { return n.clock }

// ReadRepairClock returns the node's local repair clock.
func (n *Node) ReadRepairClock() float64 { return n.repairClock }

// State returns the node's current state.
func (n *Node) State() NodeState { return n.state }

// FailNode transitions the node to CRASHED (a permanent, whole-node
// failure — distinct from a transient Offline/Online cascade).
// unavailStart is only set when the node was previously NORMAL, mirroring
// Disk.FailDisk.
func (n *Node) FailNode(currTime float64) {
	if n.state == NodeNormal {
		n.unavailStart = currTime
	}
	n.state = NodeCrashed
	n.repairClock = 0
	n.repairStart = currTime
}

// RepairNode transitions a CRASHED node back to NORMAL, accumulates the
// unavailable time it accrued and resets its clock — the node is treated
// as brand-new after repair. Restoring unavailClock here is the resolved
// form of a gap in the importance-sampling source this is grounded on; see
// DESIGN.md decision 3.
func (n *Node) RepairNode(currTime float64) {
	n.unavailClock += currTime - n.unavailStart
	n.beginTime = n.lastTimeUpdate
	n.clock = 0
	n.repairClock = 0
	n.state = NodeNormal
}

// OfflineNode marks a NORMAL node UNAVAILABLE (transient). No-op
// otherwise.
func (n *Node) OfflineNode(currTime float64) {
	if n.state == NodeNormal {
		n.state = NodeUnavailable
		n.unavailStart = currTime
	}
}

// OnlineNode restores an UNAVAILABLE node to NORMAL, accumulating the
// unavailable time it accrued. No-op otherwise.
func (n *Node) OnlineNode(currTime float64) {
	if n.state == NodeUnavailable {
		n.state = NodeNormal
		n.unavailClock += currTime - n.unavailStart
	}
}

// GetUnavailTime returns the total accumulated unavailable time as of
// currTime, including any in-progress unavailability window.
func (n *Node) GetUnavailTime(currTime float64) float64 {
	if n.state == NodeNormal {
		return n.unavailClock
	}
	return n.unavailClock + (currTime - n.unavailStart)
}

// CurrFailRate returns the instantaneous whole-node failure rate: zero
// once crashed.
func (n *Node) CurrFailRate(weibull *distributions.Weibull) float64 {
	if n.state == NodeCrashed || weibull == nil {
		return 0
	}
	rate, _ := weibull.HazardRate(n.clock).Float64()
	return rate
}
