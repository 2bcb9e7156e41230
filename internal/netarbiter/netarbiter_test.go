package netarbiter

import "testing"

func TestReserveAllCrossRackGrantsEntireBudget(t *testing.T) {
	n := New(4, 125, 125)

	reserved := n.ReserveAllCrossRack()
	if reserved != 125 {
		t.Fatalf("expected to reserve the full 125, got %v", reserved)
	}
	if n.AvailCrossRack() != 0 {
		t.Fatalf("expected zero bandwidth remaining after reservation")
	}

	n.ReleaseCrossRack()
	if n.AvailCrossRack() != 125 {
		t.Fatalf("expected full bandwidth restored after release")
	}
}

func TestUpdateAvailCrossRackRejectsOutOfRange(t *testing.T) {
	n := New(1, 100, 100)

	if err := n.UpdateAvailCrossRack(-1); err == nil {
		t.Fatalf("expected error for negative bandwidth")
	}
	if err := n.UpdateAvailCrossRack(200); err == nil {
		t.Fatalf("expected error for bandwidth exceeding max")
	}
	if err := n.UpdateAvailCrossRack(50); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.AvailCrossRack() != 50 {
		t.Fatalf("expected 50, got %v", n.AvailCrossRack())
	}
}
