// Package devstate implements the per-component state machines (Disk,
// Node, Rack) that track availability, clocks and unavailability time for
// a single simulated device.
package devstate

import "github.com/jihwankim/rackrel/internal/distributions"

// DiskState is one of the three states a Disk can be in.
type DiskState int

const (
	DiskNormal DiskState = iota
	DiskUnavailable
	DiskCrashed
)

func (s DiskState) String() string {
	switch s {
	case DiskNormal:
		return "normal"
	case DiskUnavailable:
		return "unavailable"
	case DiskCrashed:
		return "crashed"
	default:
		return "unknown"
	}
}

// Disk tracks the availability state, clocks and accumulated unavailable
// time of a single disk. InitClock must be called before first use, and
// UpdateClock must be called before reading the clock at a new
// simulation time — matching the original's lazy clock-advance discipline.
type Disk struct {
	state DiskState

	unavailStart float64
	unavailClock float64

	lastTimeUpdate float64
	beginTime      float64
	clock          float64
	repairClock    float64
	repairStart    float64

	FailSource   distributions.FailureTimeSource
	RepairSource distributions.FailureTimeSource
}

// NewDisk constructs a Disk in the NORMAL state with zeroed clocks.
func NewDisk(failSource, repairSource distributions.FailureTimeSource) *Disk {
	return &Disk{state: DiskNormal, FailSource: failSource, RepairSource: repairSource}
}

// InitClock resets all clocks relative to currTime, the t0 for this disk.
func (d *Disk) InitClock(currTime float64) {
	d.unavailStart = 0
	d.unavailClock = 0
	d.lastTimeUpdate = currTime
	d.beginTime = currTime
	d.clock = 0
	d.repairClock = 0
	d.repairStart = 0
}

// InitState resets the disk to NORMAL without touching the clocks.
func (d *Disk) InitState() {
	d.state = DiskNormal
}

// UpdateClock advances the disk's local clock and, if the disk is
// currently CRASHED, its repair clock, then records currTime as the last
// update point. Callers must call this before reading either clock.
func (d *Disk) UpdateClock(currTime float64) {
	d.clock += currTime - d.lastTimeUpdate
	if d.state == DiskCrashed {
		d.repairClock = currTime - d.repairStart
	} else {
		d.repairClock = 0
	}
	d.lastTimeUpdate = currTime
}

// ReadClock returns the disk's local (relative) clock.
func (d *Disk) ReadClock() float64 { return d.clock }

// ReadRepairClock returns the disk's local repair clock.
func (d *Disk) ReadRepairClock() float64 { return d.repairClock }

// State returns the disk's current state.
func (d *Disk) State() DiskState { return d.state }

// FailDisk transitions the disk to CRASHED. unavailStart is only set when
// the disk was previously NORMAL, matching the original's semantics: a
// disk that was already UNAVAILABLE keeps accruing from its original
// unavailability start.
func (d *Disk) FailDisk(currTime float64) {
	if d.state == DiskNormal {
		d.unavailStart = currTime
	}
	d.state = DiskCrashed
	d.repairClock = 0
	d.repairStart = currTime
}

// RepairDisk transitions a CRASHED disk back to NORMAL, accumulates the
// unavailable time it accrued, and resets the disk's clock to 0 — a
// repaired disk is treated as brand-new for failure-rate purposes.
func (d *Disk) RepairDisk(currTime float64) {
	d.state = DiskNormal
	d.unavailClock += currTime - d.unavailStart
	d.beginTime = d.lastTimeUpdate
	d.clock = 0
	d.repairClock = 0
}

// OfflineDisk marks a NORMAL disk UNAVAILABLE due to a transient cascade
// (e.g. rack power outage). No-op if the disk isn't currently NORMAL — a
// CRASHED disk is never silently demoted to UNAVAILABLE.
func (d *Disk) OfflineDisk(currTime float64) {
	if d.state == DiskNormal {
		d.state = DiskUnavailable
		d.unavailStart = currTime
	}
}

// OnlineDisk restores an UNAVAILABLE disk to NORMAL, accumulating the
// unavailable time it accrued. No-op from any other state.
func (d *Disk) OnlineDisk(currTime float64) {
	if d.state == DiskUnavailable {
		d.state = DiskNormal
		d.unavailClock += currTime - d.unavailStart
	}
}

// GetUnavailTime returns the total accumulated unavailable time as of
// currTime, including the in-progress unavailability window if the disk
// isn't currently NORMAL.
func (d *Disk) GetUnavailTime(currTime float64) float64 {
	if d.state == DiskNormal {
		return d.unavailClock
	}
	return d.unavailClock + (currTime - d.unavailStart)
}

// CurrFailRate returns the instantaneous failure rate of the disk: zero
// once crashed, else the hazard rate of the given weibull distribution
// evaluated at the disk's local clock.
func (d *Disk) CurrFailRate(weibull *distributions.Weibull) float64 {
	if d.state == DiskCrashed || weibull == nil {
		return 0
	}
	rate, _ := weibull.HazardRate(d.clock).Float64()
	return rate
}

// CurrRepairRate returns the instantaneous repair rate of the disk: zero
// while NORMAL, else the hazard rate of the repair distribution evaluated
// at the disk's repair clock.
func (d *Disk) CurrRepairRate(weibull *distributions.Weibull) float64 {
	if d.state == DiskNormal || weibull == nil {
		return 0
	}
	rate, _ := weibull.HazardRate(d.repairClock).Float64()
	return rate
}
