// Error taxonomy for the co-simulation loop.
// ConfigurationError and ProfilingError are fatal; EstimationError is
// tolerated per frame and captured inline in the record stream.

package cosim

import "fmt"

// ConfigurationError reports invalid setup (bad fs, frame length, unknown
// strict keys, unregistered estimator id). Fatal: the run aborts before the
// first frame is processed.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// EstimationError reports a single-frame estimator failure. The frame's
// record is marked failed and the loop continues with the next frame.
type EstimationError struct {
	FrameIndex int64
	Estimator  string
	Err        error
}

func (e *EstimationError) Error() string {
	return fmt.Sprintf("estimation error: estimator %q failed on frame %d: %v",
		e.Estimator, e.FrameIndex, e.Err)
}

func (e *EstimationError) Unwrap() error { return e.Err }

// ProfilingError reports an internal inconsistency in the timing emulation,
// such as a negative derived duration or a non-finite jitter draw. It
// indicates a modeling bug, not a data issue, and is therefore fatal.
type ProfilingError struct {
	FrameIndex int64
	Reason     string
}

func (e *ProfilingError) Error() string {
	return fmt.Sprintf("profiling error at frame %d: %s", e.FrameIndex, e.Reason)
}
