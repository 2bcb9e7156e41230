package rrreport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Format selects the rendered output shape.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Render returns report rendered in the requested format.
func Render(report *RunReport, format Format) (string, error) {
	switch format {
	case FormatJSON:
		return renderJSON(report)
	default:
		return renderText(report), nil
	}
}

func renderJSON(report *RunReport) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("rrreport: marshal: %w", err)
	}
	return string(data), nil
}

// renderText matches spec.md §6's stdout contract: PDL, 95% relative
// error, NOMDL, blocked ratio, single-chunk repair ratio, by exact field
// name.
func renderText(report *RunReport) string {
	var buf bytes.Buffer

	buf.WriteString(strings.Repeat("=", 60) + "\n")
	buf.WriteString("   RACKREL RESULT\n")
	buf.WriteString(strings.Repeat("=", 60) + "\n\n")

	buf.WriteString(fmt.Sprintf("num_samples = %d\n", report.NumSamples))
	buf.WriteString(fmt.Sprintf("num_zeroes  = %d\n", report.NumZeroes))
	if report.InvalidIterations > 0 {
		buf.WriteString(fmt.Sprintf("invalid_iterations = %d\n", report.InvalidIterations))
	}
	buf.WriteString(fmt.Sprintf("PDL = %e\n", report.PDL))
	buf.WriteString(fmt.Sprintf("RE = %.1f%%\n", report.RelativeErrorPct))
	buf.WriteString(fmt.Sprintf("NOMDL (bytes/byte) = %e\n", report.NOMDL))
	buf.WriteString(fmt.Sprintf("blocked_ratio = %e\n", report.BlockedRatio))
	buf.WriteString(fmt.Sprintf("single_chunk_repair_ratio = %.6f\n", report.SingleChunkRepairRatio))

	buf.WriteString("\n" + strings.Repeat("=", 60) + "\n")

	return buf.String()
}
