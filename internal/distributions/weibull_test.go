package distributions

import (
	"math/rand"
	"testing"
)

func TestWeibullCDFMonotonic(t *testing.T) {
	w := NewWeibull(2.0, 12.0, 6.0)

	prev := w.CDF(6)
	for x := 7.0; x < 200; x += 5 {
		cur := w.CDF(x)
		if cur.Cmp(prev) < 0 {
			t.Fatalf("CDF not monotonic at x=%v: prev=%v cur=%v", x, prev, cur)
		}
		prev = cur
	}
}

func TestWeibullCDFBelowLocationIsZero(t *testing.T) {
	w := NewWeibull(2.0, 12.0, 6.0)
	if got := w.CDF(3); got.Sign() != 0 {
		t.Fatalf("CDF below location should be 0, got %v", got)
	}
}

func TestWeibullHazardRateConstantForExponential(t *testing.T) {
	w := NewWeibull(1.0, 120000.0, 0)
	want, _ := w.HazardRate(0).Float64()
	for _, x := range []float64{0, 1000, 500000} {
		got, _ := w.HazardRate(x).Float64()
		if got != want {
			t.Fatalf("hazard rate should be constant for shape=1: at x=%v got %v want %v", x, got, want)
		}
	}
}

func TestWeibullDrawInverseTransformNonNegative(t *testing.T) {
	w := NewWeibull(1.0, 120000.0, 0)
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 100; i++ {
		delta, err := w.DrawInverseTransform(rng, 1000000)
		if err != nil {
			t.Fatalf("DrawInverseTransform: %v", err)
		}
		if delta < 0 {
			t.Fatalf("expected non-negative residual time, got %v", delta)
		}
	}
}

func TestTraceSourceExhausts(t *testing.T) {
	src := NewTraceSource([]float64{10, 20, 30})
	rng := rand.New(rand.NewSource(1))

	delta, ok, err := src.NextFailureIn(rng, 0)
	if err != nil || !ok || delta != 10 {
		t.Fatalf("unexpected first draw: delta=%v ok=%v err=%v", delta, ok, err)
	}
	delta, ok, err = src.NextFailureIn(rng, 10)
	if err != nil || !ok || delta != 10 {
		t.Fatalf("unexpected second draw: delta=%v ok=%v err=%v", delta, ok, err)
	}
	delta, ok, err = src.NextFailureIn(rng, 20)
	if err != nil || !ok || delta != 10 {
		t.Fatalf("unexpected third draw: delta=%v ok=%v err=%v", delta, ok, err)
	}
	_, ok, err = src.NextFailureIn(rng, 30)
	if err != nil || ok {
		t.Fatalf("expected exhaustion, got ok=%v err=%v", ok, err)
	}
}
