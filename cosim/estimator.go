package cosim

import (
	"fmt"
	"sort"
)

// EstimateOutput is the result of one estimator update.
// AlgLatencyS is the self-reported wall-clock time actually spent inside
// Update; zero means "not reported" and the Orchestrator logs a warning.
// Valid is cleared when the estimate is best-effort only (buffer not yet
// filled, non-finite input, no crossing observed yet).
type EstimateOutput struct {
	F           float64 // frequency estimate [Hz]
	Rocof       float64 // ROCOF estimate [Hz/s]
	Theta       float64 // phase estimate [rad]
	AlgLatencyS float64 // self-reported processing time [s], wall clock
	Valid       bool
}

// Estimator is the pluggable streaming frequency/ROCOF transform driven by
// the Orchestrator.
//
// Contract:
//   - Configure is called exactly once before the first Update; it returns
//     a *ConfigurationError for fs <= 0, frameLen <= 0, or unknown
//     parameter keys.
//   - Reset clears internal state and is idempotent.
//   - Update consumes exactly one Frame and must not retain the frame's
//     sample buffer beyond the call.
//   - Update must never fail on malformed numeric input (NaN/Inf); it
//     reports Valid=false instead. An error return is reserved for genuine
//     internal failures and is tolerated per frame by the Orchestrator.
type Estimator interface {
	Configure(fs float64, frameLen int, params map[string]float64) error
	Reset()
	Update(frame *Frame) (EstimateOutput, error)
}

// ValidEstimators is the set of recognized estimator ids.
// Shared by config validation and NewEstimator to avoid duplication.
var ValidEstimators = map[string]bool{
	EstimatorZCD:   true,
	EstimatorIpDFT: true,
}

const (
	// EstimatorZCD is the zero-crossing detector estimator id.
	EstimatorZCD = "zcd"
	// EstimatorIpDFT is the interpolated-DFT estimator id.
	EstimatorIpDFT = "ipdft"
)

// NewEstimator creates an estimator by registry id. Returns a
// *ConfigurationError for unrecognized ids.
func NewEstimator(id string) (Estimator, error) {
	switch id {
	case EstimatorZCD:
		return NewZeroCrossingEstimator(), nil
	case EstimatorIpDFT:
		return NewIpDFTEstimator(), nil
	default:
		return nil, &ConfigurationError{
			Field:  "estimator.id",
			Reason: fmt.Sprintf("unknown estimator %q (valid: %v)", id, estimatorIDs()),
		}
	}
}

func estimatorIDs() []string {
	ids := make([]string, 0, len(ValidEstimators))
	for id := range ValidEstimators {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// checkEstimatorParams validates the shared Configure preconditions and
// rejects parameter keys outside the known set.
func checkEstimatorParams(fs float64, frameLen int, params map[string]float64, known map[string]bool) error {
	if fs <= 0 {
		return &ConfigurationError{Field: "fs", Reason: fmt.Sprintf("must be > 0, got %v", fs)}
	}
	if frameLen <= 0 {
		return &ConfigurationError{Field: "frame_len", Reason: fmt.Sprintf("must be > 0, got %d", frameLen)}
	}
	for key := range params {
		if !known[key] {
			return &ConfigurationError{
				Field:  "params",
				Reason: fmt.Sprintf("unknown parameter key %q", key),
			}
		}
	}
	return nil
}
