package rrreport

import (
	"encoding/json"
	"fmt"
	"time"
)

// ProgressReporter prints live progress during a long Monte Carlo run,
// generalizing the teacher's ProgressReporter from chaos-test state
// transitions to iteration counts and a running PDL estimate.
type ProgressReporter struct {
	format Format
}

// NewProgressReporter builds a ProgressReporter that renders in format.
func NewProgressReporter(format Format) *ProgressReporter {
	return &ProgressReporter{format: format}
}

// ReportProgress prints the iterations completed so far out of total,
// and the running PDL estimate over samples seen up to this point.
func (p *ProgressReporter) ReportProgress(completed, total int, runningPDL float64) {
	switch p.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event":       "progress",
			"completed":   completed,
			"total":       total,
			"running_pdl": runningPDL,
			"timestamp":   time.Now(),
		})
		fmt.Println(string(data))
	default:
		pct := 0.0
		if total > 0 {
			pct = 100 * float64(completed) / float64(total)
		}
		fmt.Printf("[%5.1f%%] %d/%d iterations, PDL~=%e\n", pct, completed, total, runningPDL)
	}
}

// ReportDone prints a one-line run-completion marker.
func (p *ProgressReporter) ReportDone(report *RunReport) {
	switch p.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event":     "run_completed",
			"report":    report,
			"timestamp": time.Now(),
		})
		fmt.Println(string(data))
	default:
		fmt.Printf("[DONE] %d samples, PDL=%e\n", report.NumSamples, report.PDL)
	}
}
