package devstate

import "testing"

func TestDiskFailRepairCycleAccumulatesUnavailTime(t *testing.T) {
	d := NewDisk(nil, nil)
	d.InitClock(0)

	d.FailDisk(10)
	if d.State() != DiskCrashed {
		t.Fatalf("expected crashed, got %v", d.State())
	}
	if got := d.GetUnavailTime(20); got != 10 {
		t.Fatalf("expected 10 hours unavailable so far, got %v", got)
	}

	d.RepairDisk(25)
	if d.State() != DiskNormal {
		t.Fatalf("expected normal after repair, got %v", d.State())
	}
	if got := d.GetUnavailTime(25); got != 15 {
		t.Fatalf("expected 15 hours accumulated unavailable time, got %v", got)
	}
	if got := d.ReadClock(); got != 0 {
		t.Fatalf("expected clock reset to 0 after repair, got %v", got)
	}
}

func TestDiskOfflineOnlineDoesNotTouchCrashed(t *testing.T) {
	d := NewDisk(nil, nil)
	d.InitClock(0)
	d.FailDisk(5)

	d.OfflineDisk(6)
	if d.State() != DiskCrashed {
		t.Fatalf("a crashed disk must never be silently demoted to unavailable, got %v", d.State())
	}
}

func TestNodeRepairResetsClock(t *testing.T) {
	n := NewNode(nil, nil, nil)
	n.InitClock(0)
	n.UpdateClock(50)
	if n.ReadClock() != 50 {
		t.Fatalf("expected clock to read 50, got %v", n.ReadClock())
	}

	n.FailNode(50)
	n.RepairNode(60)
	if n.ReadClock() != 0 {
		t.Fatalf("expected clock reset to 0 after repair, got %v", n.ReadClock())
	}
	if n.State() != NodeNormal {
		t.Fatalf("expected normal after repair, got %v", n.State())
	}
}

func TestNodeRepairAccumulatesUnavailTime(t *testing.T) {
	n := NewNode(nil, nil, nil)
	n.InitClock(0)

	n.FailNode(10)
	if got := n.GetUnavailTime(20); got != 10 {
		t.Fatalf("expected 10 hours unavailable so far, got %v", got)
	}

	n.RepairNode(25)
	if got := n.GetUnavailTime(25); got != 15 {
		t.Fatalf("expected 15 hours accumulated unavailable time after repair, got %v", got)
	}
}

func TestRackTransientCycle(t *testing.T) {
	r := NewRack()
	r.FailRack()
	if r.State() != RackUnavailable {
		t.Fatalf("expected unavailable, got %v", r.State())
	}
	r.RepairRack()
	if r.State() != RackNormal {
		t.Fatalf("expected normal, got %v", r.State())
	}
}
