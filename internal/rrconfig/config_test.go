package rrconfig

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
}

func TestValidateRejectsKGreaterOrEqualN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Code.K = cfg.Code.N
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error when code_k >= code_n")
	}
}

func TestValidateRejectsInsufficientCapacity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Topology.CapacityPerDisk = 1
	cfg.Topology.NumRacks = 1
	cfg.Topology.NodesPerRack = 1
	cfg.Topology.DisksPerNode = 1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for insufficient cluster capacity")
	}
}

func TestValidateRejectsCrossExceedingIntraBandwidth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Network.UseNetwork = true
	cfg.Network.CrossRackBwth = 2000
	cfg.Network.IntraRackBwth = 100
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error when cross-rack bandwidth exceeds intra-rack")
	}
}

func TestValidateRequiresChunkRackConfigForHierarchical(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Code.PlaceType = "hierarchical"
	cfg.Code.ChunkRackConfig = nil
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error when hierarchical placement has no chunk_rack_config")
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load on missing file should not error, got %v", err)
	}
	if cfg.Run.TotalIterations != DefaultConfig().Run.TotalIterations {
		t.Fatalf("expected defaults when config file is absent")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rackrel.yaml")

	cfg := DefaultConfig()
	cfg.Run.TotalIterations = 42
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Run.TotalIterations != 42 {
		t.Fatalf("expected round-tripped total_iterations=42, got %d", loaded.Run.TotalIterations)
	}
}
