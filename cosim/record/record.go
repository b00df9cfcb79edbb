// Package record provides the per-frame estimate records and run manifests
// emitted by the co-simulation loop, plus append-only sinks for them.
// This package stores pure data types and has no dependencies on cosim/.
package record

import "time"

// Record status values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// EstimateRecord is the per-frame output of the co-simulation loop.
// Produced once per admitted frame and never mutated after creation; the
// stream it is appended to is strictly ordered by FrameIndex.
type EstimateRecord struct {
	FrameIndex int64   `json:"frame_index"`
	TSimMid    float64 `json:"t_sim_mid"`  // signal time at window center [s]
	TArrival   float64 `json:"t_arrival"`  // T_sim when the frame entered the buffer [s]
	TAdmitted  float64 `json:"t_admitted"` // T_proc when the frame was popped for processing [s]

	// TDelivery is T_proc after the emulated cost was charged, i.e. when
	// the estimate would have been available. Nil for failed frames.
	TDelivery *float64 `json:"t_delivery"`

	FHat      float64 `json:"f_hat"`
	RocofHat  float64 `json:"rocof_hat"`
	FTrue     float64 `json:"f_true"`
	RocofTrue float64 `json:"rocof_true"`

	AlgLatencyS   float64 `json:"alg_latency_s"`
	EmulatedCostS float64 `json:"emulated_cost_s"`
	TProcAfter    float64 `json:"t_proc_after"`

	// QueueLen is the number of frames still buffered after this frame was
	// admitted, letting backlog state be reconstructed from the stream.
	QueueLen int `json:"queue_len"`

	Warmup      bool   `json:"warmup"`
	Valid       bool   `json:"valid"`
	Status      string `json:"status"`
	ErrorReason string `json:"error_reason,omitempty"`
}

// Delivered reports whether the record carries a delivery time.
func (r *EstimateRecord) Delivered() bool {
	return r.TDelivery != nil
}

// Manifest is the terminal object of a record stream, carrying run-level
// metadata. A run aborted mid-stream still writes a manifest with
// Aborted=true; the preceding records remain valid.
type Manifest struct {
	RunID     string    `json:"run_id"`
	Seed      int64     `json:"seed"`
	Scenario  string    `json:"scenario"`
	Estimator string    `json:"estimator"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Aborted   bool      `json:"aborted"`

	FramesEmitted int64 `json:"frames_emitted"`
	FramesFailed  int64 `json:"frames_failed"`
	WarmupFrames  int64 `json:"warmup_frames"`

	// Profile and Budget echo the run configuration; Pass/Reason echo the
	// FairnessGate verdict. Stored as opaque values so this package stays
	// free of cosim types.
	Profile any    `json:"compute_profile,omitempty"`
	Budget  any    `json:"fairness_budget,omitempty"`
	Pass    bool   `json:"pass"`
	Reason  string `json:"reason,omitempty"`
}

// Sink receives the record stream. Records arrive in FrameIndex order;
// WriteManifest is called exactly once, last, even on aborted runs.
type Sink interface {
	WriteRecord(r EstimateRecord) error
	WriteManifest(m Manifest) error
	Close() error
}

// MultiSink fans the stream out to several sinks.
type MultiSink []Sink

func (ms MultiSink) WriteRecord(r EstimateRecord) error {
	for _, s := range ms {
		if err := s.WriteRecord(r); err != nil {
			return err
		}
	}
	return nil
}

func (ms MultiSink) WriteManifest(m Manifest) error {
	for _, s := range ms {
		if err := s.WriteManifest(m); err != nil {
			return err
		}
	}
	return nil
}

func (ms MultiSink) Close() error {
	var firstErr error
	for _, s := range ms {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// MemorySink buffers the stream in memory. Used by tests and by the
// in-process aggregation path.
type MemorySink struct {
	Records  []EstimateRecord
	Manifest *Manifest
}

func (s *MemorySink) WriteRecord(r EstimateRecord) error {
	s.Records = append(s.Records, r)
	return nil
}

func (s *MemorySink) WriteManifest(m Manifest) error {
	s.Manifest = &m
	return nil
}

func (s *MemorySink) Close() error { return nil }
