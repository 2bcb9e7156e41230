// Package rrreport renders and persists the reliability statistics a
// rackrel run produces, generalizing the teacher's chaos-test TestReport
// (JSON/text formatting, live progress, retention-bounded storage) from
// pass/fail chaos-test reports to Monte Carlo simulation-run reports.
package rrreport

import "time"

// RunStatus is the terminal state of a run.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
	StatusStopped   RunStatus = "stopped"
)

// RunReport is the complete record of one rackrel run: the resolved
// configuration it ran with, the reliability statistics it produced, and
// run metadata, with exactly the field names spec.md §6 names as part of
// the contract (PDL, NOMDL, blocked ratio, single-chunk repair ratio, 95%
// relative error).
type RunReport struct {
	RunID     string    `json:"run_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  string    `json:"duration"`

	Status  RunStatus `json:"status"`
	Success bool      `json:"success"`
	Message string    `json:"message,omitempty"`

	Config ResolvedConfig `json:"config"`

	PDL                    float64 `json:"pdl"`
	RelativeErrorPct       float64 `json:"relative_error_pct"`
	NOMDL                  float64 `json:"nomdl"`
	BlockedRatio           float64 `json:"blocked_ratio"`
	SingleChunkRepairRatio float64 `json:"single_chunk_repair_ratio"`

	NumSamples        int `json:"num_samples"`
	NumZeroes         int `json:"num_zeroes"`
	InvalidIterations int `json:"invalid_iterations,omitempty"`
}

// ResolvedConfig is the subset of the run's configuration worth
// persisting alongside its statistics, so a report is self-describing
// without the original YAML/flags.
type ResolvedConfig struct {
	NumRacks        uint    `json:"num_racks"`
	NodesPerRack    uint    `json:"nodes_per_rack"`
	DisksPerNode    uint    `json:"disks_per_node"`
	CapacityPerDisk float64 `json:"capacity_per_disk"`
	ChunkSize       float64 `json:"chunk_size"`
	NumStripes      int     `json:"num_stripes"`
	CodeType        string  `json:"code_type"`
	CodeN           int     `json:"code_n"`
	CodeK           int     `json:"code_k"`
	CodeL           int     `json:"code_l,omitempty"`
	PlaceType       string  `json:"place_type"`
	MissionTime     float64 `json:"mission_time"`
	TotalIterations int     `json:"total_iterations"`
	NumProcesses    int     `json:"num_processes"`
	SimType         string  `json:"sim_type"`
}

// RunSummary is the lightweight index entry Storage.ListReports returns,
// mirroring the teacher's ReportSummary.
type RunSummary struct {
	RunID     string    `json:"run_id"`
	StartTime time.Time `json:"start_time"`
	Duration  string    `json:"duration"`
	Status    RunStatus `json:"status"`
	Success   bool      `json:"success"`
	Filepath  string    `json:"filepath"`
}
