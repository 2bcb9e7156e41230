// Package rrconfig is the run configuration: defaults, YAML file
// loading, and the validation preconditions spec.md §6 names, following
// the teacher's pkg/config (DefaultConfig/Load/Save/Validate, env-var
// expansion) shape.
package rrconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full resolved configuration for one rackrel run. CLI
// flags override file values override these defaults, in that
// precedence order (applied by cmd/rackrel, not by this package).
type Config struct {
	Topology  TopologyConfig  `yaml:"topology"`
	Code      CodeConfig      `yaml:"code"`
	Network   NetworkConfig   `yaml:"network"`
	Trace     TraceConfig     `yaml:"trace"`
	Run       RunConfig       `yaml:"run"`
	Reporting ReportingConfig `yaml:"reporting"`
}

// TopologyConfig describes the physical rack/node/disk layout.
type TopologyConfig struct {
	NumRacks        uint    `yaml:"num_racks"`
	NodesPerRack    uint    `yaml:"nodes_per_rack"`
	DisksPerNode    uint    `yaml:"disks_per_node"`
	CapacityPerDisk float64 `yaml:"capacity_per_disk"`
	ChunkSize       float64 `yaml:"chunk_size"`
	NumStripes      int     `yaml:"num_stripes"`
}

// CodeConfig describes the erasure code and chunk placement strategy.
type CodeConfig struct {
	CodeType        string `yaml:"code_type"` // "rs", "lrc", "drc"
	N               int    `yaml:"code_n"`
	K               int    `yaml:"code_k"`
	L               int    `yaml:"code_l,omitempty"`
	PlaceType       string `yaml:"place_type"` // "flat", "hierarchical"
	ChunkRackConfig []int  `yaml:"chunk_rack_config,omitempty"`
}

// NetworkConfig describes the cross-rack/intra-rack repair bandwidth
// policy and optional power-outage correlated-failure mode.
type NetworkConfig struct {
	UseNetwork          bool    `yaml:"use_network"`
	NetworkSetting      string  `yaml:"network_setting"`
	CrossRackBwth       float64 `yaml:"cross_rack_bwth"`
	IntraRackBwth       float64 `yaml:"intra_rack_bwth"`
	UsePowerOutage      bool    `yaml:"use_power_outage"`
	PowerOutageDuration float64 `yaml:"power_outage_duration"`
}

// TraceConfig selects trace-replay mode over distribution-fitted
// failure/repair sampling.
type TraceConfig struct {
	UseTrace bool `yaml:"use_trace"`
	TraceID  int  `yaml:"trace_id"`
}

// RunConfig describes Monte Carlo run parameters: which simulator, how
// many iterations, how parallelized, and the deterministic seed base.
type RunConfig struct {
	MissionTime     float64 `yaml:"mission_time"`
	TotalIterations int     `yaml:"total_iterations"`
	NumProcesses    int     `yaml:"num_processes"`
	RSeedPlus       int64   `yaml:"rseed_plus"`
	SimType         string  `yaml:"sim_type"` // "regular", "unifbfb" or "is"
	FBProb          float64 `yaml:"fb_prob"`
	Beta            float64 `yaml:"beta"`
}

// ReportingConfig describes output formatting and persistence.
type ReportingConfig struct {
	Format    string `yaml:"format"` // "text" or "json"
	OutputDir string `yaml:"output_dir"`
	KeepLastN int    `yaml:"keep_last_n"`
}

// DefaultConfig returns sane defaults: a small FLAT RS(6,4) cluster of
// 6 racks × 4 nodes × 1 disk over a one-year (8760 h) mission.
func DefaultConfig() *Config {
	return &Config{
		Topology: TopologyConfig{
			NumRacks:        6,
			NodesPerRack:    4,
			DisksPerNode:    1,
			CapacityPerDisk: 1 << 40,
			ChunkSize:       256,
			NumStripes:      1000,
		},
		Code: CodeConfig{
			CodeType:  "rs",
			N:         6,
			K:         4,
			PlaceType: "flat",
		},
		Network: NetworkConfig{
			UseNetwork:     false,
			CrossRackBwth:  125,
			IntraRackBwth:  1250,
			UsePowerOutage: false,
		},
		Run: RunConfig{
			MissionTime:     8760,
			TotalIterations: 10000,
			NumProcesses:    4,
			RSeedPlus:       0,
			SimType:         "regular",
			FBProb:          0.5,
			Beta:            0.6,
		},
		Reporting: ReportingConfig{
			Format:    "text",
			OutputDir: "./reports",
			KeepLastN: 50,
		},
	}
}

// Load reads configuration from a YAML file, falling back to defaults if
// the file does not exist, with environment variable expansion exactly
// as the teacher's pkg/config.Load does.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = "rackrel.yaml"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rrconfig: read config file: %w", err)
	}

	expanded := []byte(os.ExpandEnv(string(data)))
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, fmt.Errorf("rrconfig: parse config file: %w", err)
	}

	return cfg, nil
}

// Save writes cfg to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("rrconfig: marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("rrconfig: write config file: %w", err)
	}
	return nil
}

// Validate checks the preconditions spec.md §6 names: enough raw
// capacity for the placement, cross-rack bandwidth not exceeding
// intra-rack bandwidth, K < N, and HIERARCHICAL placement requiring an
// explicit chunk_rack_config.
func (c *Config) Validate() error {
	t, code, net := c.Topology, c.Code, c.Network

	if code.K >= code.N {
		return fmt.Errorf("code.code_k (%d) must be less than code.code_n (%d)", code.K, code.N)
	}

	totalCapacity := float64(t.NumRacks) * float64(t.NodesPerRack) * float64(t.DisksPerNode) * t.CapacityPerDisk
	required := float64(code.N) * float64(t.NumStripes) * t.ChunkSize
	if totalCapacity < required {
		return fmt.Errorf("cluster capacity %.0f is less than required %.0f (code_n * num_stripes * chunk_size)", totalCapacity, required)
	}

	if net.UseNetwork && net.CrossRackBwth > net.IntraRackBwth {
		return fmt.Errorf("network.cross_rack_bwth (%v) must not exceed network.intra_rack_bwth (%v)", net.CrossRackBwth, net.IntraRackBwth)
	}

	if code.PlaceType == "hierarchical" && len(code.ChunkRackConfig) == 0 {
		return fmt.Errorf("code.place_type is hierarchical but code.chunk_rack_config is empty")
	}

	switch code.CodeType {
	case "rs", "lrc", "drc":
	default:
		return fmt.Errorf("code.code_type must be one of rs, lrc, drc, got %q", code.CodeType)
	}

	switch code.PlaceType {
	case "flat", "hierarchical":
	default:
		return fmt.Errorf("code.place_type must be one of flat, hierarchical, got %q", code.PlaceType)
	}

	if c.Run.TotalIterations < 1 {
		return fmt.Errorf("run.total_iterations must be at least 1")
	}
	if c.Run.NumProcesses < 1 {
		return fmt.Errorf("run.num_processes must be at least 1")
	}

	return nil
}
