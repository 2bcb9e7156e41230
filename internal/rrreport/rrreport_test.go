package rrreport

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sampleReport() *RunReport {
	return &RunReport{
		RunID:                  "test-run",
		StartTime:              time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndTime:                time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC),
		Duration:               "1h0m0s",
		Status:                 StatusCompleted,
		Success:                true,
		PDL:                    1.2e-9,
		RelativeErrorPct:       3.4,
		NOMDL:                  5.6e-12,
		BlockedRatio:           0.001,
		SingleChunkRepairRatio: 0.75,
		NumSamples:             1000,
		NumZeroes:              998,
	}
}

func TestRenderTextContainsContractFieldNames(t *testing.T) {
	out, err := Render(sampleReport(), FormatText)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, want := range []string{"PDL", "RE", "NOMDL", "blocked_ratio", "single_chunk_repair_ratio"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected text report to contain %q, got:\n%s", want, out)
		}
	}
}

func TestRenderJSONContainsPDLField(t *testing.T) {
	out, err := Render(sampleReport(), FormatJSON)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(out, `"pdl"`) {
		t.Fatalf("expected json report to contain pdl field, got:\n%s", out)
	}
}

func TestStorageSaveAndListReports(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStorage(dir, 2, nil)
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}

	r1 := sampleReport()
	r1.RunID = "run-1"
	r1.StartTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r2 := sampleReport()
	r2.RunID = "run-2"
	r2.StartTime = time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	r3 := sampleReport()
	r3.RunID = "run-3"
	r3.StartTime = time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)

	for _, r := range []*RunReport{r1, r2, r3} {
		if _, err := s.SaveReport(r); err != nil {
			t.Fatalf("SaveReport: %v", err)
		}
	}

	summaries, err := s.ListReports()
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected keepLastN=2 to prune to 2 reports, got %d", len(summaries))
	}
	if summaries[0].RunID != "run-3" {
		t.Fatalf("expected newest report first, got %s", summaries[0].RunID)
	}
}

func TestStorageLoadReportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStorage(dir, 0, nil)
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	report := sampleReport()
	path, err := s.SaveReport(report)
	if err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("expected report saved under %s, got %s", dir, path)
	}

	loaded, err := s.LoadReport(path)
	if err != nil {
		t.Fatalf("LoadReport: %v", err)
	}
	if loaded.RunID != report.RunID || loaded.PDL != report.PDL {
		t.Fatalf("loaded report does not match saved report: %+v", loaded)
	}
}
