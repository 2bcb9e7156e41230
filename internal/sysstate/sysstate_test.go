package sysstate

import "testing"

func TestFailRepairDiskUpdatesSysState(t *testing.T) {
	s := New(8, 2)
	if s.SysState() != StateOK {
		t.Fatalf("expected OK initially")
	}

	s.UpdateState(EventDiskFail, []uint{3})
	if s.SysState() != StateDegraded {
		t.Fatalf("expected degraded after a disk failure")
	}
	if got := s.GetFailedDisks(); len(got) != 1 || got[0] != 3 {
		t.Fatalf("unexpected failed disks: %v", got)
	}

	s.UpdateState(EventDiskRepair, []uint{3})
	if s.SysState() != StateOK {
		t.Fatalf("expected OK after repair")
	}
}

func TestUnifBFBPromotesNodeWhenAllDisksFail(t *testing.T) {
	s := New(8, 2) // 4 disks per node

	s.UpdateStateUnifBFB(EventDiskFail, 0)
	s.UpdateStateUnifBFB(EventDiskFail, 1)
	s.UpdateStateUnifBFB(EventDiskFail, 2)
	if s.GetNumFailedNodes() != 0 {
		t.Fatalf("node should not be promoted until all its disks have failed")
	}
	s.UpdateStateUnifBFB(EventDiskFail, 3)
	if s.GetNumFailedNodes() != 1 {
		t.Fatalf("expected node 0 promoted to failed once all 4 disks failed")
	}

	s.UpdateStateUnifBFB(EventDiskRepair, 0)
	if s.GetNumFailedNodes() != 1 {
		t.Fatalf("node should remain failed while any disk is still down")
	}
	s.UpdateStateUnifBFB(EventDiskRepair, 1)
	s.UpdateStateUnifBFB(EventDiskRepair, 2)
	s.UpdateStateUnifBFB(EventDiskRepair, 3)
	if s.GetNumFailedNodes() != 0 {
		t.Fatalf("expected node demoted back once all its disks repaired")
	}
}

func TestGetFailedNodesIsNotFailedDisksAlias(t *testing.T) {
	s := New(8, 2)
	s.UpdateState(EventDiskFail, []uint{0, 1})
	s.FailNode(1)

	failedNodes := s.GetFailedNodes()
	if len(failedNodes) != 1 || failedNodes[0] != 1 {
		t.Fatalf("GetFailedNodes must report node indices, not the failed-disks bitmap: got %v", failedNodes)
	}
}
