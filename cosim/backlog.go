// BacklogTracker derives queueing and utilization signals from the two
// clocks maintained by the Orchestrator. Everything it tracks can be
// recomputed from the record stream through the pure helpers below, which
// is what the tests do.

package cosim

import (
	"fmt"

	"github.com/pmu-cosim/pmu-cosim/cosim/record"
)

// BacklogState is the live queueing snapshot after the most recent tick.
// Mutated once per frame by the tracker; lifetime equals the run.
type BacklogState struct {
	QueueLen          int     // frames buffered but not yet admitted
	TProc             float64 // processing clock [s], non-decreasing
	TSim              float64 // signal clock [s], non-decreasing
	DeadlineMissCount int64
	Utilization       float64 // sum(emulated_cost) / sum(dt_sim) so far
}

// BacklogTracker maintains BacklogState across the run.
type BacklogTracker struct {
	state   BacklogState
	dtSim   float64
	sumCost float64
	sumDt   float64
}

// NewBacklogTracker creates a tracker for a run with the given per-frame
// signal advance.
func NewBacklogTracker(dtSim float64) *BacklogTracker {
	return &BacklogTracker{dtSim: dtSim}
}

// OnArrival records a frame entering the input buffer at signal time tSim.
func (bt *BacklogTracker) OnArrival(tSim float64) {
	bt.state.QueueLen++
	bt.state.TSim = tSim
	bt.sumDt += bt.dtSim
}

// OnAdmission consumes the record emitted for an admitted frame and
// updates the derived state. A clock running backwards is a modeling bug
// and surfaces as a *ProfilingError.
func (bt *BacklogTracker) OnAdmission(rec record.EstimateRecord) error {
	if rec.TProcAfter < bt.state.TProc {
		return &ProfilingError{
			FrameIndex: rec.FrameIndex,
			Reason: fmt.Sprintf("processing clock moved backwards: %v -> %v",
				bt.state.TProc, rec.TProcAfter),
		}
	}
	if QueuingDelay(rec) < 0 {
		return &ProfilingError{
			FrameIndex: rec.FrameIndex,
			Reason:     fmt.Sprintf("negative queuing delay %v", QueuingDelay(rec)),
		}
	}
	bt.state.QueueLen--
	bt.state.TProc = rec.TProcAfter
	bt.sumCost += rec.EmulatedCostS
	if bt.sumDt > 0 {
		bt.state.Utilization = bt.sumCost / bt.sumDt
	}
	if DeadlineMiss(rec, bt.dtSim) {
		bt.state.DeadlineMissCount++
	}
	return nil
}

// State returns a copy of the current backlog state.
func (bt *BacklogTracker) State() BacklogState {
	return bt.state
}

// === Pure derivations over the record stream ===

// DeadlineMiss reports whether the frame's result arrived after the next
// sample period had already started. The boundary is exclusive: delivery
// exactly at t_sim_mid + dt_sim counts as a hit.
func DeadlineMiss(rec record.EstimateRecord, dtSim float64) bool {
	if rec.TDelivery == nil {
		return false
	}
	return *rec.TDelivery > rec.TSimMid+dtSim
}

// QueuingDelay is the time the frame spent waiting in the buffer before
// being admitted.
func QueuingDelay(rec record.EstimateRecord) float64 {
	return rec.TAdmitted - rec.TArrival
}

// Utilization over a window of records is the ratio of emulated compute
// time to signal time covered. Values above 1 indicate sustained overload.
func Utilization(recs []record.EstimateRecord, dtSim float64) float64 {
	if len(recs) == 0 || dtSim <= 0 {
		return 0
	}
	var sumCost float64
	for _, r := range recs {
		sumCost += r.EmulatedCostS
	}
	return sumCost / (float64(len(recs)) * dtSim)
}

// CountDeadlineMisses counts missed deadlines in a record window.
func CountDeadlineMisses(recs []record.EstimateRecord, dtSim float64) int64 {
	var n int64
	for _, r := range recs {
		if DeadlineMiss(r, dtSim) {
			n++
		}
	}
	return n
}
