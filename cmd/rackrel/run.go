package main

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jihwankim/rackrel/internal/distributions"
	"github.com/jihwankim/rackrel/internal/driver"
	"github.com/jihwankim/rackrel/internal/placement"
	"github.com/jihwankim/rackrel/internal/rrconfig"
	"github.com/jihwankim/rackrel/internal/rrlog"
	"github.com/jihwankim/rackrel/internal/rrmetrics"
	"github.com/jihwankim/rackrel/internal/rrreport"
	"github.com/jihwankim/rackrel/internal/rrsignal"
	"github.com/jihwankim/rackrel/internal/simulator"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Args:  cobra.NoArgs,
	Short: "Run a Monte Carlo reliability estimate",
	Long:  `Loads a cluster/code/run configuration, validates it, and runs the Iteration Driver.`,
	RunE:  runRackrel,
}

func init() {
	f := runCmd.Flags()

	f.Float64("mission-time", 0, "simulation horizon in hours (overrides config)")
	f.Int("total-iterations", 0, "total Monte Carlo iterations (overrides config)")
	f.Int("num-processes", 0, "number of parallel worker jobs (overrides config)")
	f.Int64("rseed-plus", 0, "base PRNG seed (overrides config)")

	f.Uint("num-racks", 0, "number of racks (overrides config)")
	f.Uint("nodes-per-rack", 0, "nodes per rack (overrides config)")
	f.Uint("disks-per-node", 0, "disks per node (overrides config)")
	f.Float64("capacity-per-disk", 0, "capacity per disk, MiB (overrides config)")

	f.Float64("chunk-size", 0, "chunk size, MiB (overrides config)")
	f.Int("num-stripes", 0, "number of stripes (overrides config)")

	f.String("code-type", "", "erasure code: rs, lrc, drc (overrides config)")
	f.Int("code-n", 0, "code width n (overrides config)")
	f.Int("code-k", 0, "code data symbols k (overrides config)")
	f.Int("code-l", 0, "LRC local-parity groups l (overrides config)")

	f.String("place-type", "", "placement: flat, hierarchical (overrides config)")
	f.String("chunk-rack-config", "", "comma-separated per-rack chunk counts for hierarchical placement")

	f.Bool("use-network", false, "enable bandwidth-limited repair model")
	f.String("network-setting", "", "cross,intra bandwidth in MiB/s, e.g. 125,1250")

	f.Bool("use-power-outage", false, "enable correlated power-outage failure model")

	f.Bool("use-trace", false, "replay recorded failure/repair traces instead of Weibull draws")
	f.Int("trace-id", 0, "trace id to replay (overrides config)")

	f.String("sim-type", "", "estimator: regular, unifbfb (overrides config)")
	f.Float64("fb-prob", 0, "importance-sampling failure-biasing probability (overrides config)")
	f.Float64("beta", 0, "importance-sampling uniformization rate (overrides config)")

	f.String("format", "text", "output format: text, json")
	f.Bool("dry-run", false, "validate configuration without running")
	f.String("output-dir", "", "directory to persist JSON reports (overrides config)")
	f.String("metrics-addr", "", "address to serve Prometheus metrics on (disabled if empty)")
}

func runRackrel(cmd *cobra.Command, args []string) error {
	cfg, err := rrconfig.Load(cfgFile)
	if err != nil {
		return newConfigError(err)
	}
	if err := applyFlagOverrides(cmd, cfg); err != nil {
		return newConfigError(err)
	}
	if err := cfg.Validate(); err != nil {
		return newConfigError(fmt.Errorf("invalid configuration: %w", err))
	}

	logLevel := rrlog.LevelInfo
	if verbose {
		logLevel = rrlog.LevelDebug
	}
	logFormat := rrlog.FormatText
	if f, _ := cmd.Flags().GetString("format"); f == "json" {
		logFormat = rrlog.FormatJSON
	}
	logger := rrlog.New(rrlog.Config{Level: logLevel, Format: logFormat, Output: os.Stdout})
	logger.Info("rackrel starting", "version", version)

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if dryRun {
		fmt.Println("configuration is valid (dry-run mode)")
		return nil
	}

	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	var recorder driver.Recorder
	var metricsServer *rrmetrics.Server
	if metricsAddr != "" {
		metricsServer = rrmetrics.NewServer()
		recorder = metricsServer
	}

	ctx, cancel := rrsignal.WithCancelOnInterrupt(cmd.Context())
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Serve(ctx, metricsAddr); err != nil {
			logger.Warn("failed to start metrics server", "error", err)
		} else {
			logger.Info("serving metrics", "addr", metricsAddr)
		}
	}

	simCfg, err := buildSimulatorConfig(cfg)
	if err != nil {
		return newConfigError(err)
	}

	driverCfg := driver.Config{
		Regular:         simCfg,
		TotalIterations: cfg.Run.TotalIterations,
		NumProcesses:    cfg.Run.NumProcesses,
		RSeedPlus:       cfg.Run.RSeedPlus,
		Metrics:         recorder,
	}
	if cfg.Run.SimType == "is" || cfg.Run.SimType == "unifbfb" {
		driverCfg.SimType = driver.SimUnifBFB
		driverCfg.IS = simulator.ISConfig{Config: simCfg, FBProb: cfg.Run.FBProb, Beta: cfg.Run.Beta}
	}

	d := driver.New(driverCfg)

	startTime := time.Now()
	logger.Info("starting run", "total_iterations", cfg.Run.TotalIterations, "num_processes", cfg.Run.NumProcesses)

	result, runErr := d.Run(ctx)

	endTime := time.Now()

	status := rrreport.StatusCompleted
	success := runErr == nil
	message := ""
	if runErr != nil {
		status = rrreport.StatusFailed
		message = runErr.Error()
		if ctx.Err() != nil {
			status = rrreport.StatusStopped
		}
	}

	report := &rrreport.RunReport{
		RunID:     uuid.NewString(),
		StartTime: startTime,
		EndTime:   endTime,
		Duration:  endTime.Sub(startTime).String(),
		Status:    status,
		Success:   success,
		Message:   message,
		Config:    resolvedConfig(cfg),
	}
	if result != nil {
		report.PDL = result.PDL
		report.RelativeErrorPct = result.RelativeErrorPct
		report.NOMDL = result.NOMDL
		report.BlockedRatio = result.MeanBlockedRatio
		report.SingleChunkRepairRatio = result.MeanSingleChunkRatio
		report.NumSamples = result.NumSamples
		report.NumZeroes = result.NumZeroes
		report.InvalidIterations = result.InvalidIterations
	}

	outputDir := cfg.Reporting.OutputDir
	if v, _ := cmd.Flags().GetString("output-dir"); v != "" {
		outputDir = v
	}
	if outputDir != "" {
		storage, storageErr := rrreport.NewStorage(outputDir, cfg.Reporting.KeepLastN, logger)
		if storageErr != nil {
			logger.Warn("failed to open report storage", "error", storageErr)
		} else if _, saveErr := storage.SaveReport(report); saveErr != nil {
			logger.Warn("failed to save report", "error", saveErr)
		}
	}

	format, _ := cmd.Flags().GetString("format")
	rendered, renderErr := rrreport.Render(report, rrreport.Format(format))
	if renderErr != nil {
		logger.Warn("failed to render report", "error", renderErr)
	} else {
		fmt.Println(rendered)
	}

	if metricsServer != nil {
		_ = metricsServer.Shutdown(ctx)
	}

	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}
	return nil
}

// applyFlagOverrides mutates cfg in place with any flag explicitly set on
// cmd, per the CLI-over-file-over-defaults precedence spec.md §6 names.
func applyFlagOverrides(cmd *cobra.Command, cfg *rrconfig.Config) error {
	f := cmd.Flags()

	if f.Changed("mission-time") {
		cfg.Run.MissionTime, _ = f.GetFloat64("mission-time")
	}
	if f.Changed("total-iterations") {
		cfg.Run.TotalIterations, _ = f.GetInt("total-iterations")
	}
	if f.Changed("num-processes") {
		cfg.Run.NumProcesses, _ = f.GetInt("num-processes")
	}
	if f.Changed("rseed-plus") {
		cfg.Run.RSeedPlus, _ = f.GetInt64("rseed-plus")
	}
	if f.Changed("num-racks") {
		v, _ := f.GetUint("num-racks")
		cfg.Topology.NumRacks = v
	}
	if f.Changed("nodes-per-rack") {
		v, _ := f.GetUint("nodes-per-rack")
		cfg.Topology.NodesPerRack = v
	}
	if f.Changed("disks-per-node") {
		v, _ := f.GetUint("disks-per-node")
		cfg.Topology.DisksPerNode = v
	}
	if f.Changed("capacity-per-disk") {
		cfg.Topology.CapacityPerDisk, _ = f.GetFloat64("capacity-per-disk")
	}
	if f.Changed("chunk-size") {
		cfg.Topology.ChunkSize, _ = f.GetFloat64("chunk-size")
	}
	if f.Changed("num-stripes") {
		cfg.Topology.NumStripes, _ = f.GetInt("num-stripes")
	}
	if f.Changed("code-type") {
		cfg.Code.CodeType, _ = f.GetString("code-type")
	}
	if f.Changed("code-n") {
		cfg.Code.N, _ = f.GetInt("code-n")
	}
	if f.Changed("code-k") {
		cfg.Code.K, _ = f.GetInt("code-k")
	}
	if f.Changed("code-l") {
		cfg.Code.L, _ = f.GetInt("code-l")
	}
	if f.Changed("place-type") {
		cfg.Code.PlaceType, _ = f.GetString("place-type")
	}
	if f.Changed("chunk-rack-config") {
		raw, _ := f.GetString("chunk-rack-config")
		parsed, err := parseIntList(raw)
		if err != nil {
			return fmt.Errorf("--chunk-rack-config: %w", err)
		}
		cfg.Code.ChunkRackConfig = parsed
	}
	if f.Changed("use-network") {
		cfg.Network.UseNetwork, _ = f.GetBool("use-network")
	}
	if f.Changed("network-setting") {
		raw, _ := f.GetString("network-setting")
		cross, intra, err := parseNetworkSetting(raw)
		if err != nil {
			return fmt.Errorf("--network-setting: %w", err)
		}
		cfg.Network.CrossRackBwth, cfg.Network.IntraRackBwth = cross, intra
		cfg.Network.NetworkSetting = raw
	}
	if f.Changed("use-power-outage") {
		cfg.Network.UsePowerOutage, _ = f.GetBool("use-power-outage")
	}
	if f.Changed("use-trace") {
		cfg.Trace.UseTrace, _ = f.GetBool("use-trace")
	}
	if f.Changed("trace-id") {
		cfg.Trace.TraceID, _ = f.GetInt("trace-id")
	}
	if f.Changed("sim-type") {
		cfg.Run.SimType, _ = f.GetString("sim-type")
	}
	if f.Changed("fb-prob") {
		cfg.Run.FBProb, _ = f.GetFloat64("fb-prob")
	}
	if f.Changed("beta") {
		cfg.Run.Beta, _ = f.GetFloat64("beta")
	}

	return nil
}

func parseIntList(raw string) ([]int, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", p)
		}
		out = append(out, v)
	}
	return out, nil
}

func parseNetworkSetting(raw string) (cross, intra float64, err error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected cross,intra, got %q", raw)
	}
	cross, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid cross-rack bandwidth %q", parts[0])
	}
	intra, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid intra-rack bandwidth %q", parts[1])
	}
	return cross, intra, nil
}

// buildSimulatorConfig translates the resolved rrconfig.Config into a
// simulator.Config, attaching the fixed Weibull failure/repair
// distributions the original calibrates (shape/scale/location are not
// CLI-tunable — they match the reference deployment's measured rates,
// not scenario parameters).
func buildSimulatorConfig(cfg *rrconfig.Config) (simulator.Config, error) {
	codeType, err := parseCodeType(cfg.Code.CodeType)
	if err != nil {
		return simulator.Config{}, err
	}
	placeType, err := parsePlaceType(cfg.Code.PlaceType)
	if err != nil {
		return simulator.Config{}, err
	}

	simCfg := simulator.Config{
		NumRacks:     cfg.Topology.NumRacks,
		NodesPerRack: cfg.Topology.NodesPerRack,
		DisksPerNode: cfg.Topology.DisksPerNode,
		MissionTime:  cfg.Run.MissionTime,

		UseNetwork:     cfg.Network.UseNetwork,
		UsePowerOutage: cfg.Network.UsePowerOutage,
		CrossRackBwth:  cfg.Network.CrossRackBwth,
		IntraRackBwth:  cfg.Network.IntraRackBwth,

		DiskFailDist: distributions.NewWeibull(1.12, 87600, 0),

		Placement: placement.Config{
			NumRacks:        cfg.Topology.NumRacks,
			NodesPerRack:    cfg.Topology.NodesPerRack,
			DisksPerNode:    cfg.Topology.DisksPerNode,
			CapacityPerDisk: cfg.Topology.CapacityPerDisk,
			NumStripes:      cfg.Topology.NumStripes,
			ChunkSize:       cfg.Topology.ChunkSize,
			CodeType:        codeType,
			N:               cfg.Code.N,
			K:               cfg.Code.K,
			L:               cfg.Code.L,
			PlaceType:       placeType,
			ChunkRackConfig: cfg.Code.ChunkRackConfig,
		},
	}

	if cfg.Network.UseNetwork {
		simCfg.DiskRepairDist = nil
	} else {
		simCfg.DiskRepairDist = distributions.NewWeibull(3.0, 0.03, 0.01)
	}

	if cfg.Network.UsePowerOutage {
		simCfg.PowerOutageDist = distributions.NewWeibull(1.0, 365*24, 0)
		simCfg.PowerOutageDuration = 15
	} else {
		simCfg.RackFailDist = distributions.NewWeibull(1.0, 87600, 0)
		simCfg.RackRepairDist = distributions.NewWeibull(1.0, 24, 10)
	}

	if !cfg.Trace.UseTrace {
		simCfg.NodeFailDist = distributions.NewWeibull(1.0, 91250, 0)
		simCfg.NodeTransientFailDist = distributions.NewWeibull(1.0, 2890.8, 0)
		simCfg.NodeTransientRepairDist = distributions.NewWeibull(1.0, 0.25, 0)
		simCfg.EnableTransientFailures = true
	}

	// Build one placement up front so a code/placement/topology combination
	// the placement rejects (e.g. FLAT with fewer racks than n) is reported
	// as a configuration error before any iteration runs.
	if _, err := placement.New(simCfg.Placement, rand.New(rand.NewSource(cfg.Run.RSeedPlus))); err != nil {
		return simulator.Config{}, err
	}

	return simCfg, nil
}

func parseCodeType(s string) (placement.CodeType, error) {
	switch s {
	case "rs":
		return placement.CodeRS, nil
	case "lrc":
		return placement.CodeLRC, nil
	case "drc":
		return placement.CodeDRC, nil
	default:
		return 0, fmt.Errorf("unknown code_type %q", s)
	}
}

func parsePlaceType(s string) (placement.PlaceType, error) {
	switch s {
	case "flat":
		return placement.PlaceFlat, nil
	case "hierarchical", "hie":
		return placement.PlaceHierarchical, nil
	default:
		return 0, fmt.Errorf("unknown place_type %q", s)
	}
}

func resolvedConfig(cfg *rrconfig.Config) rrreport.ResolvedConfig {
	return rrreport.ResolvedConfig{
		NumRacks:        cfg.Topology.NumRacks,
		NodesPerRack:    cfg.Topology.NodesPerRack,
		DisksPerNode:    cfg.Topology.DisksPerNode,
		CapacityPerDisk: cfg.Topology.CapacityPerDisk,
		ChunkSize:       cfg.Topology.ChunkSize,
		NumStripes:      cfg.Topology.NumStripes,
		CodeType:        cfg.Code.CodeType,
		CodeN:           cfg.Code.N,
		CodeK:           cfg.Code.K,
		CodeL:           cfg.Code.L,
		PlaceType:       cfg.Code.PlaceType,
		MissionTime:     cfg.Run.MissionTime,
		TotalIterations: cfg.Run.TotalIterations,
		NumProcesses:    cfg.Run.NumProcesses,
		SimType:         cfg.Run.SimType,
	}
}
