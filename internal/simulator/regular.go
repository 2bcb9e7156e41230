// Package simulator implements the discrete-event Regular simulator and
// the uniformization/balanced-failure-biasing importance-sampling
// simulator that estimate cluster reliability by replaying disk, node and
// rack failure/repair histories against a placement.Placement.
package simulator

import (
	"fmt"
	"math/rand"

	"github.com/jihwankim/rackrel/internal/devstate"
	"github.com/jihwankim/rackrel/internal/distributions"
	"github.com/jihwankim/rackrel/internal/netarbiter"
	"github.com/jihwankim/rackrel/internal/placement"
	"github.com/jihwankim/rackrel/internal/sysstate"
)

// Config bundles every distribution, topology and policy knob the Regular
// and UnifBFB simulators share.
type Config struct {
	NumRacks     uint
	NodesPerRack uint
	DisksPerNode uint
	MissionTime  float64

	UseNetwork              bool
	UsePowerOutage          bool
	EnableTransientFailures bool
	CrossRackBwth           float64
	IntraRackBwth           float64
	PowerOutageDuration     float64

	DiskFailDist            *distributions.Weibull
	DiskRepairDist          *distributions.Weibull
	NodeFailDist            *distributions.Weibull
	NodeTransientFailDist   *distributions.Weibull
	NodeTransientRepairDist *distributions.Weibull
	RackFailDist            *distributions.Weibull
	RackRepairDist          *distributions.Weibull
	PowerOutageDist         *distributions.Weibull

	Placement placement.Config
}

func (c Config) numDisks() uint { return c.NumRacks * c.NodesPerRack * c.DisksPerNode }
func (c Config) numNodes() uint { return c.NumRacks * c.NodesPerRack }

// IterationResult is the outcome of one Monte Carlo iteration of the
// Regular simulator, matching the original's
// (data_loss, num_failed_stripes, num_lost_chunks, blocked_ratio,
// single_chunk_repair_ratio) return contract.
type IterationResult struct {
	DataLoss               bool
	NumFailedStripes       int
	NumLostChunks          int
	BlockedRatio           float64
	SingleChunkRepairRatio float64
}

// Regular is the discrete-event simulator that replays whole failure and
// repair histories for every disk, node and rack over [0, MissionTime],
// checking for data loss after every permanent failure.
type Regular struct {
	cfg Config
	rng *rand.Rand

	placement *placement.Placement
	network   *netarbiter.Network
	state     *sysstate.State

	racks []*devstate.Rack
	nodes []*devstate.Node
	disks []*devstate.Disk

	queue           *eventQueue
	waitRepairQueue []waitEntry
	delayedRepair   map[uint][]int

	numStripesRepaired            int
	numStripesRepairedSingleChunk int
	numStripesDelayed             int
}

type waitEntry struct {
	time   float64
	diskID uint
}

// NewRegular constructs a Regular simulator. Call Reset (or RunIteration,
// which calls it) before use.
func NewRegular(cfg Config, rng *rand.Rand) *Regular {
	return &Regular{cfg: cfg, rng: rng}
}

// Reset rebuilds device state, placement, network budget and event queue
// for a fresh Monte Carlo iteration, and pre-populates the queue with one
// failure event per disk, node and (if enabled) rack.
func (r *Regular) Reset() error {
	cfg := r.cfg
	numDisks := cfg.numDisks()
	numNodes := cfg.numNodes()

	r.state = sysstate.New(numDisks, numNodes)
	r.queue = newEventQueue()
	r.waitRepairQueue = nil
	r.delayedRepair = make(map[uint][]int)
	r.numStripesRepaired = 0
	r.numStripesRepairedSingleChunk = 0
	r.numStripesDelayed = 0

	r.racks = make([]*devstate.Rack, cfg.NumRacks)
	for i := range r.racks {
		r.racks[i] = devstate.NewRack()
	}

	r.nodes = make([]*devstate.Node, numNodes)
	for i := range r.nodes {
		var transientFail, transientRepair distributions.FailureTimeSource
		if cfg.NodeTransientFailDist != nil {
			transientFail = distributions.NewWeibullSource(cfg.NodeTransientFailDist)
		}
		if cfg.NodeTransientRepairDist != nil {
			transientRepair = distributions.NewWeibullSource(cfg.NodeTransientRepairDist)
		}
		r.nodes[i] = devstate.NewNode(distributions.NewWeibullSource(cfg.NodeFailDist), transientFail, transientRepair)
		r.nodes[i].InitClock(0)
		r.nodes[i].InitState()
	}

	r.disks = make([]*devstate.Disk, numDisks)
	for i := range r.disks {
		r.disks[i] = devstate.NewDisk(distributions.NewWeibullSource(cfg.DiskFailDist), distributions.NewWeibullSource(cfg.DiskRepairDist))
		r.disks[i].InitClock(0)
		r.disks[i].InitState()
	}

	placementCfg := cfg.Placement
	placementCfg.NumRacks = cfg.NumRacks
	placementCfg.NodesPerRack = cfg.NodesPerRack
	placementCfg.DisksPerNode = cfg.DisksPerNode
	p, err := placement.New(placementCfg, r.rng)
	if err != nil {
		return fmt.Errorf("simulator: %w", err)
	}
	r.placement = p
	r.network = netarbiter.New(cfg.NumRacks, cfg.CrossRackBwth, cfg.IntraRackBwth)

	for diskID := uint(0); diskID < numDisks; diskID++ {
		failTime := cfg.DiskFailDist.Draw(r.rng)
		if failTime <= cfg.MissionTime {
			r.queue.push(event{Time: failTime, Kind: sysstate.EventDiskFail, Device: diskID})
		}
	}
	for nodeID := uint(0); nodeID < numNodes; nodeID++ {
		r.queue.push(event{Time: cfg.NodeFailDist.Draw(r.rng), Kind: sysstate.EventNodeFail, Device: nodeID})
		if cfg.EnableTransientFailures && cfg.NodeTransientFailDist != nil {
			r.queue.push(event{Time: cfg.NodeTransientFailDist.Draw(r.rng), Kind: sysstate.EventNodeTransientFail, Device: nodeID})
		}
	}

	if !cfg.UsePowerOutage && cfg.EnableTransientFailures && cfg.RackFailDist != nil {
		for rackID := uint(0); rackID < cfg.NumRacks; rackID++ {
			r.queue.push(event{Time: cfg.RackFailDist.Draw(r.rng), Kind: sysstate.EventRackFail, Device: rackID})
		}
	}

	if cfg.UsePowerOutage && cfg.PowerOutageDist != nil {
		for rackID := uint(0); rackID < cfg.NumRacks; rackID++ {
			occurTime := cfg.PowerOutageDist.Draw(r.rng)
			for occurTime < cfg.MissionTime {
				r.queue.push(event{Time: occurTime, Kind: sysstate.EventRackFail, Device: rackID})
				occurTime += cfg.PowerOutageDuration
				r.queue.push(event{Time: occurTime, Kind: sysstate.EventRackRepair, Device: rackID})
				for i := uint(0); i < cfg.NodesPerRack; i++ {
					if r.rng.Float64() < 0.01 {
						r.queue.push(event{Time: occurTime, Kind: sysstate.EventNodeFail, Device: cfg.NodesPerRack*rackID + i})
					}
				}
				occurTime += cfg.PowerOutageDist.Draw(r.rng)
			}
		}
	}

	return nil
}

// diskQuerier adapts Regular's disk slice to placement.DiskQuerier.
type diskQuerier struct{ r *Regular }

func (q diskQuerier) IsUnavailable(diskID uint) bool {
	return q.r.disks[diskID].State() != devstate.DiskNormal
}
func (q diskQuerier) IsCrashed(diskID uint) bool {
	return q.r.disks[diskID].State() == devstate.DiskCrashed
}

// setDiskFail schedules diskID's next permanent failure.
func (r *Regular) setDiskFail(diskID uint, currTime float64) {
	r.queue.push(event{Time: r.cfg.DiskFailDist.Draw(r.rng) + currTime, Kind: sysstate.EventDiskFail, Device: diskID})
}

// setDiskRepair schedules diskID's repair, either from a repair
// distribution directly, or (when UseNetwork) from a cross-rack traffic
// plan computed against the current state of every other disk in its
// stripes.
func (r *Regular) setDiskRepair(diskID uint, currTime float64) {
	if !r.cfg.UseNetwork {
		r.queue.push(event{Time: r.cfg.DiskRepairDist.Draw(r.rng) + currTime, Kind: sysstate.EventDiskRepair, Device: diskID})
		return
	}

	rackID := r.placement.RackOfDisk(diskID)
	if r.network.AvailCrossRack() == 0 || r.racks[rackID].State() != devstate.RackNormal {
		r.waitRepairQueue = append(r.waitRepairQueue, waitEntry{time: currTime, diskID: diskID})
		return
	}

	plan := r.placement.PlanDiskRepair(diskID, diskQuerier{r})
	r.numStripesRepaired += plan.StripesRepaired
	r.numStripesRepairedSingleChunk += plan.SingleChunkRepairs

	repairBwth := r.network.ReserveAllCrossRack()
	repairTime := plan.CrossRackDownload * r.placement.ChunkSize / repairBwth
	repairTime /= 3600

	if len(plan.StripesToDelay) != 0 {
		r.numStripesDelayed += len(plan.StripesToDelay)
		r.delayedRepair[diskID] = plan.StripesToDelay
	}

	r.queue.push(event{Time: repairTime + currTime, Kind: sysstate.EventDiskRepair, Device: diskID, RepairBwth: repairBwth, hasBwth: true})
}

func (r *Regular) setNodeFail(nodeID uint, currTime float64) {
	r.queue.push(event{Time: r.cfg.NodeFailDist.Draw(r.rng) + currTime, Kind: sysstate.EventNodeFail, Device: nodeID})
}

// setNodeRepair repairs every disk on nodeID — the node's repair is
// entirely driven by its disks' repairs completing.
func (r *Regular) setNodeRepair(nodeID uint, currTime float64) {
	for i := uint(0); i < r.cfg.DisksPerNode; i++ {
		r.setDiskRepair(nodeID*r.cfg.DisksPerNode+i, currTime)
	}
}

func (r *Regular) setNodeTransientFail(nodeID uint, currTime float64) {
	n := r.nodes[nodeID]
	if n.TransientFailSource == nil {
		return
	}
	delta, _, _ := n.TransientFailSource.NextFailureIn(r.rng, 0)
	r.queue.push(event{Time: delta + currTime, Kind: sysstate.EventNodeTransientFail, Device: nodeID})
}

func (r *Regular) setNodeTransientRepair(nodeID uint, currTime float64) {
	n := r.nodes[nodeID]
	if n.TransientRepairSource == nil {
		return
	}
	delta, _, _ := n.TransientRepairSource.NextFailureIn(r.rng, 0)
	r.queue.push(event{Time: delta + currTime, Kind: sysstate.EventNodeTransientRepair, Device: nodeID})
}

func (r *Regular) setRackFail(rackID uint, currTime float64) {
	r.queue.push(event{Time: r.cfg.RackFailDist.Draw(r.rng) + currTime, Kind: sysstate.EventRackFail, Device: rackID})
}

func (r *Regular) setRackRepair(rackID uint, currTime float64) {
	r.queue.push(event{Time: r.cfg.RackRepairDist.Draw(r.rng) + currTime, Kind: sysstate.EventRackRepair, Device: rackID})
}

// pruneDelayedRepairs re-evaluates every stripe held in delayedRepair,
// dropping a key once none of its stripes are still over the
// too-many-unavailable-chunks threshold.
func (r *Regular) pruneDelayedRepairs() {
	for key, stripes := range r.delayedRepair {
		var stillDelayed []int
		for _, stripeID := range stripes {
			numUnavail := 0
			delayed := false
			for _, diskID := range r.placement.GetStripeLocation(stripeID) {
				if r.disks[diskID].State() != devstate.DiskNormal {
					numUnavail++
				}
				if numUnavail > r.placement.M {
					delayed = true
					break
				}
			}
			if delayed {
				stillDelayed = append(stillDelayed, stripeID)
			}
		}
		if len(stillDelayed) == 0 {
			delete(r.delayedRepair, key)
		} else {
			r.delayedRepair[key] = stillDelayed
		}
	}
}

// dispatchWaitingRepair pops the head of the wait-repair queue, if any, and
// retries its repair once cross-rack and intra-rack bandwidth are
// available and its rack is NORMAL — one disk at a time.
func (r *Regular) dispatchWaitingRepair(currTime float64) {
	if len(r.waitRepairQueue) == 0 {
		return
	}
	head := r.waitRepairQueue[0]
	rackID := r.placement.RackOfDisk(head.diskID)
	if r.cfg.UseNetwork && r.network.AvailCrossRack() != 0 &&
		r.network.AvailIntraRack(rackID) != 0 &&
		r.racks[rackID].State() == devstate.RackNormal {
		r.waitRepairQueue = r.waitRepairQueue[1:]
		r.setDiskRepair(head.diskID, currTime)
	}
}

// dispatched is the result of draining one (time, kind)-coalesced batch of
// events off the queue and applying it.
type dispatched struct {
	time    float64
	kind    sysstate.EventType
	devices []uint
	missed  bool // next_event_time > MissionTime
}

// getNextEvent pops and applies the next coalesced batch of same-time,
// same-kind events, returning the devices it touched.
func (r *Regular) getNextEvent(currTime float64) dispatched {
	r.pruneDelayedRepairs()
	r.dispatchWaitingRepair(currTime)

	first := r.queue.pop()
	if first.Time > r.cfg.MissionTime {
		return dispatched{time: first.Time, missed: true}
	}

	devices := []uint{first.Device}
	bwths := []float64{first.RepairBwth}
	for !r.queue.empty() {
		top := r.queue.peek()
		if top.Time != first.Time || top.Kind != first.Kind {
			break
		}
		e := r.queue.pop()
		devices = append(devices, e.Device)
		bwths = append(bwths, e.RepairBwth)
	}

	switch first.Kind {
	case sysstate.EventDiskFail:
		for _, diskID := range devices {
			if r.disks[diskID].State() != devstate.DiskCrashed {
				delete(r.delayedRepair, diskID)
				r.disks[diskID].FailDisk(first.Time)
				r.setDiskRepair(diskID, first.Time)
			}
		}
		return dispatched{time: first.Time, kind: first.Kind, devices: devices}

	case sysstate.EventNodeFail:
		var failedDisks []uint
		for _, nodeID := range devices {
			if r.nodes[nodeID].State() != devstate.NodeCrashed {
				r.nodes[nodeID].FailNode(first.Time)
				for i := uint(0); i < r.cfg.DisksPerNode; i++ {
					diskID := nodeID*r.cfg.DisksPerNode + i
					failedDisks = append(failedDisks, diskID)
					if r.disks[diskID].State() != devstate.DiskCrashed {
						delete(r.delayedRepair, diskID)
						r.disks[diskID].FailDisk(first.Time)
						r.setDiskRepair(diskID, first.Time)
					}
				}
			}
		}
		return dispatched{time: first.Time, kind: first.Kind, devices: failedDisks}

	case sysstate.EventNodeTransientFail:
		for _, nodeID := range devices {
			if r.nodes[nodeID].State() == devstate.NodeNormal {
				r.nodes[nodeID].OfflineNode(first.Time)
				for i := uint(0); i < r.cfg.DisksPerNode; i++ {
					diskID := nodeID*r.cfg.DisksPerNode + i
					if r.disks[diskID].State() == devstate.DiskNormal {
						r.disks[diskID].OfflineDisk(first.Time)
					}
				}
			}
			r.setNodeTransientRepair(nodeID, first.Time)
		}
		return dispatched{time: first.Time, kind: first.Kind}

	case sysstate.EventRackFail:
		for _, rackID := range devices {
			if r.racks[rackID].State() == devstate.RackNormal {
				r.racks[rackID].FailRack()
				for i := uint(0); i < r.cfg.NodesPerRack; i++ {
					nodeID := rackID*r.cfg.NodesPerRack + i
					if r.nodes[nodeID].State() == devstate.NodeNormal {
						r.nodes[nodeID].OfflineNode(first.Time)
						for j := uint(0); j < r.cfg.DisksPerNode; j++ {
							diskID := nodeID*r.cfg.DisksPerNode + j
							if r.disks[diskID].State() == devstate.DiskNormal {
								r.disks[diskID].OfflineDisk(first.Time)
							}
						}
					}
				}
			}
			if !r.cfg.UsePowerOutage {
				r.setRackRepair(rackID, first.Time)
			}
		}
		return dispatched{time: first.Time, kind: first.Kind}

	case sysstate.EventDiskRepair:
		for _, diskID := range devices {
			if r.disks[diskID].State() == devstate.DiskCrashed {
				r.disks[diskID].RepairDisk(first.Time)
				r.setDiskFail(diskID, first.Time)
			}
			nodeID := diskID / r.cfg.DisksPerNode
			if r.nodes[nodeID].State() == devstate.NodeCrashed {
				allOK := true
				for i := uint(0); i < r.cfg.DisksPerNode; i++ {
					if r.disks[nodeID*r.cfg.DisksPerNode+i].State() != devstate.DiskNormal {
						allOK = false
						break
					}
				}
				if allOK {
					r.nodes[nodeID].RepairNode(first.Time)
					r.setNodeFail(nodeID, first.Time)
				}
			}
		}
		if r.cfg.UseNetwork && len(bwths) > 0 {
			// "One repair at a time" means at most one of a coalesced
			// batch actually held the reservation; releasing restores
			// the full budget regardless of which one it was.
			r.network.ReleaseCrossRack()
		}
		return dispatched{time: first.Time, kind: first.Kind, devices: devices}

	case sysstate.EventNodeTransientRepair:
		for _, nodeID := range devices {
			if r.nodes[nodeID].State() == devstate.NodeUnavailable {
				r.nodes[nodeID].OnlineNode(first.Time)
				for i := uint(0); i < r.cfg.DisksPerNode; i++ {
					diskID := nodeID*r.cfg.DisksPerNode + i
					if r.disks[diskID].State() == devstate.DiskUnavailable {
						r.disks[diskID].OnlineDisk(first.Time)
					}
				}
			}
			r.setNodeTransientFail(nodeID, first.Time)
		}
		return dispatched{time: first.Time, kind: first.Kind}

	case sysstate.EventRackRepair:
		for _, rackID := range devices {
			if r.racks[rackID].State() == devstate.RackUnavailable {
				r.racks[rackID].RepairRack()
				for i := uint(0); i < r.cfg.NodesPerRack; i++ {
					nodeID := rackID*r.cfg.NodesPerRack + i
					if r.nodes[nodeID].State() == devstate.NodeUnavailable {
						r.nodes[nodeID].OnlineNode(first.Time)
						for j := uint(0); j < r.cfg.DisksPerNode; j++ {
							diskID := nodeID*r.cfg.DisksPerNode + j
							if r.disks[diskID].State() == devstate.DiskUnavailable {
								r.disks[diskID].OnlineDisk(first.Time)
							}
						}
					}
				}
			}
			if !r.cfg.UsePowerOutage {
				r.setRackFail(rackID, first.Time)
			}
		}
		return dispatched{time: first.Time, kind: first.Kind}
	}

	return dispatched{time: first.Time, missed: true}
}

// RunIteration replays one full failure/repair history, checking for data
// loss after every permanent disk or node failure, and returns the
// reliability counters the driver accumulates across iterations.
func (r *Regular) RunIteration() (IterationResult, error) {
	if err := r.Reset(); err != nil {
		return IterationResult{}, err
	}

	currTime := 0.0
	for {
		d := r.getNextEvent(currTime)
		currTime = d.time
		if currTime > r.cfg.MissionTime {
			break
		}

		r.state.UpdateState(d.kind, d.devices)

		if d.kind == sysstate.EventDiskFail || d.kind == sysstate.EventNodeFail {
			failedDisks := r.state.GetFailedDisks()
			if r.placement.CheckDataLoss(failedDisks) {
				numFailedStripes, numLostChunks := r.placement.GetNumFailedStatus(failedDisks)
				for _, stripes := range r.delayedRepair {
					numFailedStripes += len(stripes)
					numLostChunks += len(stripes)
				}
				return IterationResult{
					DataLoss:               true,
					NumFailedStripes:       numFailedStripes,
					NumLostChunks:          numLostChunks,
					BlockedRatio:           r.blockedRatio(currTime),
					SingleChunkRepairRatio: r.singleChunkRepairRatio(),
				}, nil
			}
		}
	}

	return IterationResult{
		BlockedRatio:           r.blockedRatio(r.cfg.MissionTime),
		SingleChunkRepairRatio: r.singleChunkRepairRatio(),
	}, nil
}

func (r *Regular) blockedRatio(atTime float64) float64 {
	sum := 0.0
	for diskID := uint(0); diskID < r.cfg.numDisks(); diskID++ {
		sum += r.disks[diskID].GetUnavailTime(atTime) * float64(r.placement.GetNumChunksPerDisk(diskID))
	}
	if atTime == 0 {
		return 0
	}
	return sum / (float64(r.placement.NumChunks) * atTime)
}

func (r *Regular) singleChunkRepairRatio() float64 {
	if r.numStripesRepaired == 0 {
		return 0
	}
	return float64(r.numStripesRepairedSingleChunk) / float64(r.numStripesRepaired)
}
