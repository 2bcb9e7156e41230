package rrreport

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/jihwankim/rackrel/internal/rrlog"
)

// Storage persists run reports as JSON files under a retention bound,
// generalizing the teacher's chaos-test report Storage.
type Storage struct {
	outputDir string
	keepLastN int
	logger    *rrlog.Logger
}

// NewStorage builds a Storage rooted at outputDir, creating it if
// necessary.
func NewStorage(outputDir string, keepLastN int, logger *rrlog.Logger) (*Storage, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("rrreport: create output dir: %w", err)
	}
	return &Storage{outputDir: outputDir, keepLastN: keepLastN, logger: logger}, nil
}

// SaveReport writes report to a timestamped JSON file and prunes old
// reports beyond keepLastN.
func (s *Storage) SaveReport(report *RunReport) (string, error) {
	timestamp := report.StartTime.Format("20060102-150405")
	filename := fmt.Sprintf("run-%s-%s.json", timestamp, report.RunID)
	path := filepath.Join(s.outputDir, filename)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("rrreport: marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("rrreport: write report: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("run report saved", "path", path)
	}

	if s.keepLastN > 0 {
		if err := s.cleanupOldReports(); err != nil && s.logger != nil {
			s.logger.Warn("failed to clean up old reports", "error", err)
		}
	}

	return path, nil
}

// LoadReport reads a run report from path.
func (s *Storage) LoadReport(path string) (*RunReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rrreport: read report: %w", err)
	}
	var report RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("rrreport: unmarshal report: %w", err)
	}
	return &report, nil
}

// ListReports returns every report under the output directory, newest
// first.
func (s *Storage) ListReports() ([]RunSummary, error) {
	entries, err := os.ReadDir(s.outputDir)
	if err != nil {
		return nil, fmt.Errorf("rrreport: read output dir: %w", err)
	}

	summaries := make([]RunSummary, 0)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(s.outputDir, entry.Name())
		report, err := s.LoadReport(path)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("failed to load report", "path", path, "error", err)
			}
			continue
		}
		summaries = append(summaries, RunSummary{
			RunID:     report.RunID,
			StartTime: report.StartTime,
			Duration:  report.Duration,
			Status:    report.Status,
			Success:   report.Success,
			Filepath:  path,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].StartTime.After(summaries[j].StartTime)
	})
	return summaries, nil
}

func (s *Storage) cleanupOldReports() error {
	summaries, err := s.ListReports()
	if err != nil {
		return err
	}
	if len(summaries) <= s.keepLastN {
		return nil
	}
	for _, summary := range summaries[s.keepLastN:] {
		if err := os.Remove(summary.Filepath); err != nil && s.logger != nil {
			s.logger.Warn("failed to delete old report", "path", summary.Filepath, "error", err)
		}
	}
	return nil
}
