// Package rrmetrics exposes live run progress over HTTP for scraping.
// The teacher's pkg/monitoring/prometheus client queries an external
// Prometheus server; this package is the natural dual — it serves one.
// It uses client_golang's instrumentation API (Registry + promhttp)
// rather than the v1 query API the teacher's client wraps.
//
// Serving metrics is optional and never sits in the sampling hot path:
// Driver.Run pushes updates to a Recorder only when one is configured
// (cmd/rackrel sets one when --metrics-addr is given and otherwise leaves
// it nil, which the driver checks for).
package rrmetrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the narrow interface internal/driver pushes progress
// through. A *Server satisfies it; NopRecorder is a Recorder that
// discards every update.
type Recorder interface {
	IterationsCompleted(n int)
	PDLEstimate(pdl float64)
	SamplesTotal(n int)
}

type nopRecorder struct{}

func (nopRecorder) IterationsCompleted(int)  {}
func (nopRecorder) PDLEstimate(float64)      {}
func (nopRecorder) SamplesTotal(int)         {}

// NopRecorder is the Recorder used when metrics serving is disabled.
var NopRecorder Recorder = nopRecorder{}

// Server owns a dedicated Prometheus registry (not the global default
// registry, so repeated runs in one process never collide) and an HTTP
// server exposing it.
type Server struct {
	registry *prometheus.Registry

	iterationsCompleted prometheus.Counter
	pdlRunningEstimate  prometheus.Gauge
	samplesTotal        prometheus.Counter

	httpServer *http.Server
}

// NewServer registers the three rackrel_* metrics on a fresh registry.
func NewServer() *Server {
	reg := prometheus.NewRegistry()

	s := &Server{
		registry: reg,
		iterationsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rackrel_iterations_completed",
			Help: "Total number of Monte Carlo iterations completed across all worker jobs.",
		}),
		pdlRunningEstimate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rackrel_pdl_running_estimate",
			Help: "Estimate of probability of data loss (PDL), set when the run's samples are aggregated.",
		}),
		samplesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rackrel_samples_total",
			Help: "Total number of samples (including invalid/degenerate ones) produced so far.",
		}),
	}

	reg.MustRegister(s.iterationsCompleted, s.pdlRunningEstimate, s.samplesTotal)
	return s
}

// IterationsCompleted increments the completed-iteration counter by n.
func (s *Server) IterationsCompleted(n int) {
	s.iterationsCompleted.Add(float64(n))
}

// PDLEstimate sets the running PDL gauge to pdl.
func (s *Server) PDLEstimate(pdl float64) {
	s.pdlRunningEstimate.Set(pdl)
}

// SamplesTotal increments the samples-total counter by n.
func (s *Server) SamplesTotal(n int) {
	s.samplesTotal.Add(float64(n))
}

// Serve starts an HTTP server on addr exposing /metrics, returning
// immediately; call Shutdown (or cancel ctx) to stop it.
func (s *Server) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("rrmetrics: serve: %w", err)
		}
	}()

	go func() {
		<-ctx.Done()
		_ = s.httpServer.Close()
	}()

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

// Shutdown stops the metrics HTTP server, if it was started.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
