package rrmetrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestNopRecorderDoesNotPanic(t *testing.T) {
	var r Recorder = NopRecorder
	r.IterationsCompleted(10)
	r.PDLEstimate(1e-9)
	r.SamplesTotal(10)
}

func TestServerRecordsAndServesMetrics(t *testing.T) {
	s := NewServer()
	s.IterationsCompleted(5)
	s.PDLEstimate(0.25)
	s.SamplesTotal(5)

	addr := "127.0.0.1:0"
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Use a fixed loopback port rather than :0 so the test can dial it
	// without parsing the OS-assigned port back out of the listener.
	addr = "127.0.0.1:19876"
	if err := s.Serve(ctx, addr); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	defer s.Shutdown(context.Background())

	time.Sleep(50 * time.Millisecond)

	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	for _, want := range []string{
		"rackrel_iterations_completed",
		"rackrel_pdl_running_estimate",
		"rackrel_samples_total",
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("expected /metrics output to contain %q, got:\n%s", want, body)
		}
	}
}
