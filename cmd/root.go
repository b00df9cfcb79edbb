package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pmu-cosim/pmu-cosim/cosim"
	"github.com/pmu-cosim/pmu-cosim/cosim/record"
)

var (
	// Run identity and I/O
	seed       int64  // Seed for scenario noise and compute jitter
	logLevel   string // Log verbosity level
	configPath string // YAML run configuration (overrides flags when set)
	outPath    string // JSONL record stream output path
	sqlitePath string // Optional SQLite record sink path

	// Co-simulation loop configs
	frameLen     int     // Samples per estimator update
	fs           float64 // Sampling rate (Hz)
	warmupFrames int     // Accepted frames flagged warmup

	// Scenario configs
	scenarioKind string  // clean, step, ramp-step
	f0           float64 // Nominal frequency (Hz)
	df           float64 // Total ramp excursion for "clean" (Hz)
	fStep        float64 // Disturbance frequency (Hz)
	tStep        float64 // Disturbance onset (s)
	tBack        float64 // Return onset (s)
	scenRocof    float64 // Ramp rate for "ramp-step" (Hz/s)
	duration     float64 // Signal length (s)
	noiseStd     float64 // Additive Gaussian noise stddev

	// Estimator configs
	estimatorID string // Registry id (zcd, ipdft)

	// Compute profile configs
	deadtimeS       float64 // Fixed additive overhead (s)
	jitterKind      string  // none, normal, uniform
	jitterSigma     float64 // Stddev for normal jitter
	jitterBound     float64 // Half-width for uniform jitter
	throttleFactor  float64 // Hardware-class scale factor
	nominalLatencyS float64 // Replaces self-reported latency when > 0

	// Fairness budget configs
	budgetsPath    string  // YAML file of named budget presets
	budgetName     string  // Preset name within the budgets file
	maxLatencyS    float64 // p95 latency budget (s)
	maxMemoryBytes int64   // Peak memory budget (bytes)
	maxWindowS     float64 // Estimation window budget (s)
	maxFailureRate float64 // Tolerated failed-frame fraction
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "pmu-cosim",
	Short: "Dual-clock co-simulation of streaming PMU frequency estimators",
}

// runCmd executes one co-simulation run using parameters from CLI flags
// or a strict YAML configuration file.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the co-simulation",
	Run: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		cfg := buildRunConfig()
		if err := cfg.Validate(); err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}

		sink, err := buildSink()
		if err != nil {
			logrus.Fatalf("Unable to open record sink: %v", err)
		}

		orch, err := cosim.NewOrchestrator(cfg, sink)
		if err != nil {
			logrus.Fatalf("Unable to initialize run: %v", err)
		}

		// Cancellation between ticks on SIGINT/SIGTERM; the partial record
		// stream stays valid and the manifest is marked aborted.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		result, err := orch.Run(ctx)
		if err != nil {
			logrus.Errorf("Run aborted: %v", err)
			os.Exit(1)
		}

		result.Aggregate.Print()
		if result.Gate.Pass {
			logrus.Info("Fairness gate: PASS")
		} else {
			logrus.Errorf("Fairness gate: FAIL (%s)", result.Gate.Reason)
			os.Exit(2)
		}
	},
}

// buildRunConfig assembles the run configuration, preferring the YAML file
// when --config is given.
func buildRunConfig() *cosim.RunConfig {
	if configPath != "" {
		cfg, err := cosim.LoadRunConfig(configPath)
		if err != nil {
			logrus.Fatalf("Unable to load run config: %v", err)
		}
		return cfg
	}

	budget := cosim.FairnessBudget{
		MaxLatencyS:    maxLatencyS,
		MaxMemoryBytes: maxMemoryBytes,
		MaxWindowS:     maxWindowS,
		MaxFailureRate: maxFailureRate,
	}
	if budgetsPath != "" {
		if preset := GetFairnessBudget(budgetsPath, budgetName); preset != nil {
			budget = *preset
		} else {
			logrus.Fatalf("Budget preset %q not found in %s", budgetName, budgetsPath)
		}
	}

	return &cosim.RunConfig{
		FrameLen:     frameLen,
		FS:           fs,
		WarmupFrames: warmupFrames,
		Seed:         seed,
		Scenario: cosim.ScenarioConfig{
			Kind:     scenarioKind,
			F0:       f0,
			DF:       df,
			FStep:    fStep,
			TStep:    tStep,
			TBack:    tBack,
			Rocof:    scenRocof,
			Duration: duration,
			NoiseStd: noiseStd,
		},
		Estimator: cosim.EstimatorConfig{ID: estimatorID},
		ComputeProfile: cosim.ComputeProfile{
			DeadtimeS: deadtimeS,
			Jitter: cosim.JitterConfig{
				Kind:  jitterKind,
				Sigma: jitterSigma,
				Bound: jitterBound,
			},
			ThrottleFactor:  throttleFactor,
			NominalLatencyS: nominalLatencyS,
		},
		FairnessBudget: budget,
	}
}

// buildSink opens the configured record sinks (JSONL always, SQLite when
// requested).
func buildSink() (record.Sink, error) {
	jsonl, err := record.NewJSONLWriter(outPath)
	if err != nil {
		return nil, err
	}
	if sqlitePath == "" {
		return jsonl, nil
	}
	sqlite, err := record.NewSQLiteWriter(sqlitePath)
	if err != nil {
		jsonl.Close()
		return nil, err
	}
	return record.MultiSink{jsonl, sqlite}, nil
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for scenario noise and compute jitter")
	runCmd.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().StringVar(&configPath, "config", "", "YAML run configuration (strict keys; overrides other flags)")
	runCmd.Flags().StringVar(&outPath, "out", "records.jsonl", "JSONL record stream output path")
	runCmd.Flags().StringVar(&sqlitePath, "sqlite", "", "Optional SQLite record sink path")

	// Loop configs
	runCmd.Flags().IntVar(&frameLen, "frame-len", 256, "Samples per estimator update")
	runCmd.Flags().Float64Var(&fs, "fs", 5000, "Sampling rate (Hz)")
	runCmd.Flags().IntVar(&warmupFrames, "warmup-frames", 0, "Accepted frames flagged warmup and excluded from metrics")

	// Scenario configs
	runCmd.Flags().StringVar(&scenarioKind, "scenario", "step", "Scenario kind (clean, step, ramp-step)")
	runCmd.Flags().Float64Var(&f0, "f0", 60.0, "Nominal frequency (Hz)")
	runCmd.Flags().Float64Var(&df, "df", 0.0, "Total ramp excursion for clean scenario (Hz)")
	runCmd.Flags().Float64Var(&fStep, "f-step", 59.5, "Disturbance frequency (Hz)")
	runCmd.Flags().Float64Var(&tStep, "t-step", 2.0, "Disturbance onset (s)")
	runCmd.Flags().Float64Var(&tBack, "t-back", 4.0, "Return onset (s)")
	runCmd.Flags().Float64Var(&scenRocof, "rocof", 1.0, "Ramp rate for ramp-step scenario (Hz/s)")
	runCmd.Flags().Float64Var(&duration, "duration", 6.0, "Signal length (s)")
	runCmd.Flags().Float64Var(&noiseStd, "noise-std", 0.0, "Additive Gaussian noise stddev")

	// Estimator configs
	runCmd.Flags().StringVar(&estimatorID, "estimator", "zcd", "Estimator id (zcd, ipdft)")

	// Compute profile configs
	runCmd.Flags().Float64Var(&deadtimeS, "deadtime", 0.0, "Fixed additive compute overhead (s)")
	runCmd.Flags().StringVar(&jitterKind, "jitter-kind", "none", "Jitter distribution (none, normal, uniform)")
	runCmd.Flags().Float64Var(&jitterSigma, "jitter-sigma", 0.0, "Stddev for normal jitter")
	runCmd.Flags().Float64Var(&jitterBound, "jitter-bound", 0.0, "Half-width for uniform jitter")
	runCmd.Flags().Float64Var(&throttleFactor, "throttle", 1.0, "Hardware-class throttle factor")
	runCmd.Flags().Float64Var(&nominalLatencyS, "nominal-latency", 0.0, "Replaces self-reported latency when > 0")

	// Fairness budget configs
	runCmd.Flags().StringVar(&budgetsPath, "budgets", "", "YAML file of named fairness budget presets")
	runCmd.Flags().StringVar(&budgetName, "budget", "default", "Preset name within the budgets file")
	runCmd.Flags().Float64Var(&maxLatencyS, "max-latency", 0.0, "p95 latency budget (s), 0 = unlimited")
	runCmd.Flags().Int64Var(&maxMemoryBytes, "max-memory", 0, "Peak memory budget (bytes), 0 = unlimited")
	runCmd.Flags().Float64Var(&maxWindowS, "max-window", 0.0, "Estimation window budget (s), 0 = unlimited")
	runCmd.Flags().Float64Var(&maxFailureRate, "max-failure-rate", 0.0, "Tolerated failed-frame fraction")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
