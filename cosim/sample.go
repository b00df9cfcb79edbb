// Defines the Sample and Frame carriers that flow from a Scenario source
// into the Orchestrator. Samples are immutable once emitted; a Frame is
// owned exclusively by the Orchestrator for one loop iteration.

package cosim

import "math"

// Sample is a single timestamped scalar measurement belonging to a Scenario.
type Sample struct {
	T     float64 // signal time [s]
	Value float64 // instantaneous waveform value
	FTrue float64 // ground-truth instantaneous frequency [Hz]
	RTrue float64 // ground-truth ROCOF [Hz/s]
}

// Finite reports whether the sample carries a usable numeric value.
// Non-finite samples are still delivered to estimators; the estimator
// contract requires them to degrade to Valid=false rather than fail.
func (s Sample) Finite() bool {
	return !math.IsNaN(s.Value) && !math.IsInf(s.Value, 0)
}

// Frame is an ordered, fixed-length window of Samples assembled for one
// estimator update call.
type Frame struct {
	Index    int64    // 0-based frame sequence number
	Samples  []Sample // exactly frame_len samples, ascending T
	TSimMid  float64  // signal time at the center of the window [s]
	TArrival float64  // T_sim at which the frame entered the input buffer [s]
	FTrue    float64  // ground truth frequency at TSimMid [Hz]
	RTrue    float64  // ground truth ROCOF at TSimMid [Hz/s]
}

// Len returns the number of samples in the frame.
func (f *Frame) Len() int {
	return len(f.Samples)
}
