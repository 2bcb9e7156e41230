package simulator

import (
	"math"
	"math/big"
	"math/rand"

	"github.com/jihwankim/rackrel/internal/devstate"
	"github.com/jihwankim/rackrel/internal/distributions"
	"github.com/jihwankim/rackrel/internal/netarbiter"
	"github.com/jihwankim/rackrel/internal/placement"
	"github.com/jihwankim/rackrel/internal/sysstate"
)

// ISConfig adds the importance-sampling-specific knobs (balanced failure
// biasing probability and the uniformization pseudo-event rate) on top of
// the shared Config.
type ISConfig struct {
	Config
	// FBProb is the probability a DEGRADED-state pseudo-event commits a
	// real, biased failure rather than merely updating the likelihood
	// ratio for surviving the interval ("fb_prob" in the source this is
	// grounded on).
	FBProb float64
	// Beta is the uniformization pseudo-event rate ("is_beta").
	Beta float64
}

// UnifBFB is the uniformization + balanced-failure-biasing importance
// sampling simulator: in the OK state it draws every component's residual
// failure time directly (inverse-transform sampling, no bias needed since
// the system is not yet in a rare-event-relevant region); in the DEGRADED
// state it draws a uniformization pseudo-event and biases which component
// fails next toward whichever class (disk or node) is more likely to
// complete the rare event, tracking the resulting likelihood ratio.
type UnifBFB struct {
	cfg ISConfig
	rng *rand.Rand

	placement *placement.Placement
	network   *netarbiter.Network
	state     *sysstate.State

	nodes []*devstate.Node
	disks []*devstate.Disk

	pending      []pendingRepair
	pendingNodes []pendingNodeRepair
	lr           *big.Float
}

// lrPrecision matches distributions.Precision: the likelihood ratio can
// underflow to the same extreme magnitudes as the Weibull tail
// probabilities it is built from, so it is carried at the same working
// precision rather than float64.
const lrPrecision = distributions.Precision

func newLR() *big.Float { return new(big.Float).SetPrec(lrPrecision).SetInt64(1) }

func fromFloat64(v float64) *big.Float { return new(big.Float).SetPrec(lrPrecision).SetFloat64(v) }

// NewUnifBFB constructs a UnifBFB simulator. Call RunIteration, which
// resets internal state on every call.
func NewUnifBFB(cfg ISConfig, rng *rand.Rand) *UnifBFB {
	return &UnifBFB{cfg: cfg, rng: rng}
}

func (u *UnifBFB) reset() error {
	cfg := u.cfg.Config
	numDisks := cfg.numDisks()
	numNodes := cfg.numNodes()

	u.state = sysstate.New(numDisks, numNodes)
	u.lr = newLR()
	u.pending = nil
	u.pendingNodes = nil

	u.nodes = make([]*devstate.Node, numNodes)
	for i := range u.nodes {
		u.nodes[i] = devstate.NewNode(distributions.NewWeibullSource(cfg.NodeFailDist), nil, nil)
		u.nodes[i].InitClock(0)
		u.nodes[i].InitState()
	}
	u.disks = make([]*devstate.Disk, numDisks)
	for i := range u.disks {
		u.disks[i] = devstate.NewDisk(distributions.NewWeibullSource(cfg.DiskFailDist), distributions.NewWeibullSource(cfg.DiskRepairDist))
		u.disks[i].InitClock(0)
		u.disks[i].InitState()
	}

	placementCfg := cfg.Placement
	placementCfg.NumRacks = cfg.NumRacks
	placementCfg.NodesPerRack = cfg.NodesPerRack
	placementCfg.DisksPerNode = cfg.DisksPerNode
	p, err := placement.New(placementCfg, u.rng)
	if err != nil {
		return err
	}
	u.placement = p
	u.network = netarbiter.New(cfg.NumRacks, cfg.CrossRackBwth, cfg.IntraRackBwth)

	return nil
}

type diskQuerierIS struct{ u *UnifBFB }

func (q diskQuerierIS) IsUnavailable(diskID uint) bool {
	return q.u.disks[diskID].State() != devstate.DiskNormal
}
func (q diskQuerierIS) IsCrashed(diskID uint) bool {
	return q.u.disks[diskID].State() == devstate.DiskCrashed
}

// getDiskRepairDuration computes the cross-rack-bandwidth-bound repair
// time for diskID using the same per-stripe chunk-counting logic as the
// Regular simulator, reused rather than duplicated.
func (u *UnifBFB) getDiskRepairDuration(diskID uint) float64 {
	if !u.cfg.UseNetwork {
		return u.cfg.DiskRepairDist.Draw(u.rng)
	}
	plan := u.placement.PlanDiskRepair(diskID, diskQuerierIS{u})
	bwth := u.network.ReserveAllCrossRack()
	if bwth == 0 {
		return u.cfg.DiskRepairDist.Draw(u.rng)
	}
	repairTime := plan.CrossRackDownload * u.placement.ChunkSize / bwth
	return repairTime / 3600
}

// getNodeFailureProb weights the real-failure bias between a node-class
// event and a disk-class event by each class's summed current hazard rate
// over its healthy members, so balanced failure biasing spends its
// samples proportionally to which class is more likely to actually cause
// the next real failure.
func (u *UnifBFB) getNodeFailureProb() float64 {
	nodeRate := 0.0
	diskRate := 0.0
	for _, n := range u.nodes {
		if n.State() == devstate.NodeNormal {
			nodeRate += n.CurrFailRate(u.cfg.NodeFailDist)
		}
	}
	for _, d := range u.disks {
		if d.State() == devstate.DiskNormal {
			diskRate += d.CurrFailRate(u.cfg.DiskFailDist)
		}
	}
	total := nodeRate + diskRate
	if total == 0 {
		return 0
	}
	return nodeRate / total
}

func hazardOrZero(w *distributions.Weibull, x float64) float64 {
	if w == nil {
		return 0
	}
	v, _ := w.HazardRate(x).Float64()
	return v
}

// totalTrueRate sums the instantaneous hazard rate of every currently
// healthy disk and node, the denominator uniformization's pseudo-event
// rate Beta must dominate.
func (u *UnifBFB) totalTrueRate() float64 {
	total := 0.0
	for _, d := range u.disks {
		total += d.CurrFailRate(u.cfg.DiskFailDist)
	}
	for _, n := range u.nodes {
		total += n.CurrFailRate(u.cfg.NodeFailDist)
	}
	return total
}

func (u *UnifBFB) updateClocks(newTime float64) {
	for _, d := range u.disks {
		d.UpdateClock(newTime)
	}
	for _, n := range u.nodes {
		n.UpdateClock(newTime)
	}
}

// RunIteration replays one importance-sampled history to mission time (or
// until a rare-event data-loss check triggers), returning the likelihood
// ratio (capped at 1 on data loss) and the same failed-stripe/lost-chunk counters the Regular
// simulator reports, so both can be combined into the same Samples
// accumulator.
func (u *UnifBFB) RunIteration() (IterationResult, *big.Float, error) {
	if err := u.reset(); err != nil {
		return IterationResult{}, nil, err
	}

	currTime := 0.0
	for currTime <= u.cfg.MissionTime {
		if u.state.SysState() == sysstate.StateOK {
			currTime = u.stepOK(currTime)
		} else {
			currTime = u.stepDegraded(currTime)
		}
		if currTime > u.cfg.MissionTime {
			break
		}

		failedDisks := u.state.GetFailedDisks()
		if len(failedDisks) > 0 && u.placement.CheckDataLoss(failedDisks) {
			numFailedStripes, numLostChunks := u.placement.GetNumFailedStatus(failedDisks)
			if u.lr.Cmp(newLR()) > 0 {
				u.lr = newLR()
			}
			return IterationResult{
				DataLoss:         true,
				NumFailedStripes: numFailedStripes,
				NumLostChunks:    numLostChunks,
			}, u.lr, nil
		}
	}

	return IterationResult{}, u.lr, nil
}

// stepOK draws every disk and node's residual failure time directly
// (unbiased — the system has no outstanding failure, so there is nothing
// to bias toward yet) and commits whichever fires first.
func (u *UnifBFB) stepOK(currTime float64) float64 {
	bestTime := math.Inf(1)
	bestIsNode := false
	bestIdx := uint(0)

	for i, d := range u.disks {
		delta, ok, _ := d.FailSource.NextFailureIn(u.rng, d.ReadClock())
		if ok && currTime+delta < bestTime {
			bestTime = currTime + delta
			bestIsNode = false
			bestIdx = uint(i)
		}
	}
	for i, n := range u.nodes {
		delta, ok, _ := n.FailSource.NextFailureIn(u.rng, n.ReadClock())
		if ok && currTime+delta < bestTime {
			bestTime = currTime + delta
			bestIsNode = true
			bestIdx = uint(i)
		}
	}

	u.updateClocks(bestTime)
	if bestIsNode {
		u.state.UpdateStateUnifBFB(sysstate.EventNodeFail, bestIdx)
		u.nodes[bestIdx].FailNode(bestTime)
		for i := uint(0); i < u.cfg.DisksPerNode; i++ {
			u.disks[bestIdx*u.cfg.DisksPerNode+i].FailDisk(bestTime)
		}
		u.scheduleNodeRepair(bestIdx, bestTime)
	} else {
		u.state.UpdateStateUnifBFB(sysstate.EventDiskFail, bestIdx)
		u.disks[bestIdx].FailDisk(bestTime)
		u.scheduleRepair(bestIdx, bestTime)
	}
	return bestTime
}

// stepDegraded draws a uniformization candidate time at rate Beta. A
// pending repair due no later than that time fires first; otherwise the
// candidate is a pseudo-event with probability 1-FBProb, or commits a real
// biased failure with probability FBProb, choosing disk vs node via
// getNodeFailureProb.
func (u *UnifBFB) stepDegraded(currTime float64) float64 {
	pseudoDelta := u.rng.ExpFloat64() / u.cfg.Beta
	newTime := currTime + pseudoDelta

	earliest := math.Inf(1)
	for _, pr := range u.pending {
		earliest = math.Min(earliest, pr.deadline)
	}
	for _, pr := range u.pendingNodes {
		earliest = math.Min(earliest, pr.deadline)
	}
	if earliest <= newTime {
		u.updateClocks(earliest)
		u.schedulePendingRepairs(earliest)
		return earliest
	}

	trueRate := u.totalTrueRate()
	if u.rng.Float64() >= u.cfg.FBProb {
		// Pseudo event: no real failure committed. The likelihood ratio
		// takes the true pseudo-event probability 1-trueRate/Beta over
		// its biased probability 1-FBProb.
		u.lr.Mul(u.lr, fromFloat64((1-trueRate/u.cfg.Beta)/(1-u.cfg.FBProb)))
		u.updateClocks(newTime)
		u.schedulePendingRepairs(newTime)
		return newTime
	}

	u.updateClocks(newTime)
	nodeProb := u.getNodeFailureProb()
	if u.rng.Float64() < nodeProb {
		idx := u.pickHealthyNode()
		if idx >= 0 {
			u.lr.Mul(u.lr, fromFloat64((trueRate/u.cfg.Beta)/u.cfg.FBProb))
			u.state.UpdateStateUnifBFB(sysstate.EventNodeFail, uint(idx))
			u.nodes[idx].FailNode(newTime)
			for i := uint(0); i < u.cfg.DisksPerNode; i++ {
				u.disks[uint(idx)*u.cfg.DisksPerNode+i].FailDisk(newTime)
			}
			u.scheduleNodeRepair(uint(idx), newTime)
		}
	} else {
		idx := u.pickHealthyDisk()
		if idx >= 0 {
			u.lr.Mul(u.lr, fromFloat64((trueRate/u.cfg.Beta)/u.cfg.FBProb))
			u.state.UpdateStateUnifBFB(sysstate.EventDiskFail, uint(idx))
			u.disks[idx].FailDisk(newTime)
			u.scheduleRepair(uint(idx), newTime)
		}
	}
	u.schedulePendingRepairs(newTime)
	return newTime
}

func (u *UnifBFB) pickHealthyDisk() int {
	var candidates []int
	for i, d := range u.disks {
		if d.State() == devstate.DiskNormal {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return -1
	}
	return candidates[u.rng.Intn(len(candidates))]
}

func (u *UnifBFB) pickHealthyNode() int {
	var candidates []int
	for i, n := range u.nodes {
		if n.State() == devstate.NodeNormal {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return -1
	}
	return candidates[u.rng.Intn(len(candidates))]
}

// pendingRepair: failed disks repair after a duration
// computed at failure time; since UnifBFB does not run an event queue the
// way Regular does, repairs are tracked as deadlines checked every step.
type pendingRepair struct {
	diskID   uint
	deadline float64
}

func (u *UnifBFB) scheduleRepair(diskID uint, failTime float64) {
	duration := u.getDiskRepairDuration(diskID)
	u.pending = append(u.pending, pendingRepair{diskID: diskID, deadline: failTime + duration})
}

// pendingNodeRepair mirrors pendingRepair for a failed node: its deadline is
// the sum of every one of its disks' repair durations (set_node_repair in
// the source this is grounded on), not the max, so a node recovers only
// after all of its disks would individually have finished repairing in
// sequence.
type pendingNodeRepair struct {
	nodeID   uint
	deadline float64
}

func (u *UnifBFB) scheduleNodeRepair(nodeID uint, failTime float64) {
	duration := 0.0
	for i := uint(0); i < u.cfg.DisksPerNode; i++ {
		duration += u.getDiskRepairDuration(nodeID*u.cfg.DisksPerNode + i)
	}
	u.pendingNodes = append(u.pendingNodes, pendingNodeRepair{nodeID: nodeID, deadline: failTime + duration})
}

func (u *UnifBFB) schedulePendingRepairs(currTime float64) {
	var remaining []pendingRepair
	for _, pr := range u.pending {
		if currTime >= pr.deadline {
			u.disks[pr.diskID].RepairDisk(pr.deadline)
			u.state.UpdateStateUnifBFB(sysstate.EventDiskRepair, pr.diskID)
			if u.cfg.UseNetwork {
				u.network.ReleaseCrossRack()
			}
		} else {
			remaining = append(remaining, pr)
		}
	}
	u.pending = remaining

	var remainingNodes []pendingNodeRepair
	for _, pr := range u.pendingNodes {
		if currTime >= pr.deadline {
			u.nodes[pr.nodeID].RepairNode(pr.deadline)
			for i := uint(0); i < u.cfg.DisksPerNode; i++ {
				u.disks[pr.nodeID*u.cfg.DisksPerNode+i].RepairDisk(pr.deadline)
			}
			u.state.UpdateStateUnifBFB(sysstate.EventNodeRepair, pr.nodeID)
			if u.cfg.UseNetwork {
				for i := uint(0); i < u.cfg.DisksPerNode; i++ {
					u.network.ReleaseCrossRack()
				}
			}
		} else {
			remainingNodes = append(remainingNodes, pr)
		}
	}
	u.pendingNodes = remainingNodes
}
