// Package netarbiter tracks the cross-rack and per-rack intra-rack repair
// bandwidth budgets and enforces the "one repair at a time" cross-rack
// reservation policy.
package netarbiter

import "fmt"

// Network holds the repair-bandwidth budget for a cluster: one shared
// cross-rack pool, and one intra-rack pool per rack.
type Network struct {
	maxCrossRack   float64
	maxIntraRack   float64
	availCrossRack float64
	availIntraRack []float64
}

// New constructs a Network for numRacks racks with the given cross-rack
// and intra-rack bandwidth ceilings, both pools starting fully available.
func New(numRacks uint, maxCrossRack, maxIntraRack float64) *Network {
	intra := make([]float64, numRacks)
	for i := range intra {
		intra[i] = maxIntraRack
	}
	return &Network{
		maxCrossRack:   maxCrossRack,
		maxIntraRack:   maxIntraRack,
		availCrossRack: maxCrossRack,
		availIntraRack: intra,
	}
}

// AvailCrossRack returns the cross-rack bandwidth currently available.
func (n *Network) AvailCrossRack() float64 { return n.availCrossRack }

// AvailIntraRack returns the intra-rack bandwidth currently available in
// rack.
func (n *Network) AvailIntraRack(rack uint) float64 { return n.availIntraRack[rack] }

// UpdateAvailCrossRack sets the available cross-rack bandwidth. A value
// outside [0, max] is rejected with an error and leaves the budget
// unchanged.
func (n *Network) UpdateAvailCrossRack(updated float64) error {
	clamped, err := clamp(updated, n.maxCrossRack)
	if err != nil {
		return fmt.Errorf("netarbiter: cross-rack bandwidth: %w", err)
	}
	n.availCrossRack = clamped
	return nil
}

// UpdateAvailIntraRack sets the available intra-rack bandwidth for rack.
// A value outside [0, max] is rejected with an error and leaves the budget
// unchanged.
func (n *Network) UpdateAvailIntraRack(rack uint, updated float64) error {
	clamped, err := clamp(updated, n.maxIntraRack)
	if err != nil {
		return fmt.Errorf("netarbiter: rack %d intra-rack bandwidth: %w", rack, err)
	}
	n.availIntraRack[rack] = clamped
	return nil
}

// ReserveAllCrossRack implements the "one repair at a time" policy: the
// caller reserves the entire remaining cross-rack budget for its repair,
// returning the bandwidth it was granted (which the repair's completion
// must later release via ReleaseCrossRack).
func (n *Network) ReserveAllCrossRack() float64 {
	reserved := n.availCrossRack
	n.availCrossRack = 0
	return reserved
}

// ReleaseCrossRack releases the entire cross-rack budget back to the
// pool, called when a disk/node repair that reserved it completes.
func (n *Network) ReleaseCrossRack() {
	n.availCrossRack = n.maxCrossRack
}

func clamp(value, max float64) (float64, error) {
	if value < 0 || value > max {
		return 0, fmt.Errorf("value %v outside [0, %v]", value, max)
	}
	return value, nil
}
