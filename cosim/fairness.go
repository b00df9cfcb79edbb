// FairnessGate: post-run pass/fail judgment of per-estimator-per-scenario
// aggregates against configured budgets. The gate fails closed and reports
// every violated budget, not just the first.

package cosim

import (
	"fmt"
	"strings"
)

// FairnessBudget holds the configured limits. A zero-valued field means
// "no limit" for that budget, except MaxFailureRate where zero is the
// default zero-tolerance policy (see FailureRateConfigured).
// Read-only after construction; safe to share across runs.
type FairnessBudget struct {
	MaxLatencyS    float64 `yaml:"max_latency_s"`
	MaxMemoryBytes int64   `yaml:"max_memory_bytes"`
	MaxWindowS     float64 `yaml:"max_window_s"`

	// MaxFailureRate is the tolerated fraction of failed frames.
	// Zero tolerance unless explicitly configured otherwise.
	MaxFailureRate float64 `yaml:"max_failure_rate"`
}

// Validate checks the budget's parameter ranges.
func (b *FairnessBudget) Validate() error {
	if b.MaxLatencyS < 0 || b.MaxWindowS < 0 {
		return &ConfigurationError{Field: "fairness_budget", Reason: "latency and window budgets must be >= 0"}
	}
	if b.MaxMemoryBytes < 0 {
		return &ConfigurationError{Field: "fairness_budget.max_memory_bytes", Reason: "must be >= 0"}
	}
	if b.MaxFailureRate < 0 || b.MaxFailureRate > 1 {
		return &ConfigurationError{Field: "fairness_budget.max_failure_rate", Reason: "must be in [0, 1]"}
	}
	return nil
}

// GateInput is the aggregated statistics the gate judges.
// PeakMemoryBytes is optional (0 = not supplied, memory budget skipped).
type GateInput struct {
	P50LatencyS     float64
	P95LatencyS     float64
	PeakMemoryBytes int64
	WindowS         float64
	FailureRate     float64
}

// GateResult is the gate's verdict with a human-readable reason.
type GateResult struct {
	Pass   bool
	Reason string
}

// Evaluate applies the budget to the aggregate. All violations are
// collected so the reason names every exceeded budget and by how much.
func (b *FairnessBudget) Evaluate(in GateInput) GateResult {
	var violations []string

	if b.MaxLatencyS > 0 && in.P95LatencyS > b.MaxLatencyS {
		violations = append(violations, fmt.Sprintf(
			"p95 latency %.6gs exceeds budget %.6gs by %.6gs",
			in.P95LatencyS, b.MaxLatencyS, in.P95LatencyS-b.MaxLatencyS))
	}
	if b.MaxMemoryBytes > 0 && in.PeakMemoryBytes > 0 && in.PeakMemoryBytes > b.MaxMemoryBytes {
		violations = append(violations, fmt.Sprintf(
			"peak memory %d bytes exceeds budget %d bytes by %d",
			in.PeakMemoryBytes, b.MaxMemoryBytes, in.PeakMemoryBytes-b.MaxMemoryBytes))
	}
	if b.MaxWindowS > 0 && in.WindowS > b.MaxWindowS {
		violations = append(violations, fmt.Sprintf(
			"window %.6gs exceeds budget %.6gs by %.6gs",
			in.WindowS, b.MaxWindowS, in.WindowS-b.MaxWindowS))
	}
	if in.FailureRate > b.MaxFailureRate {
		violations = append(violations, fmt.Sprintf(
			"failure rate %.6g exceeds tolerated %.6g",
			in.FailureRate, b.MaxFailureRate))
	}

	if len(violations) > 0 {
		return GateResult{Pass: false, Reason: strings.Join(violations, "; ")}
	}
	return GateResult{Pass: true}
}
