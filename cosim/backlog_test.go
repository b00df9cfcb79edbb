package cosim

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pmu-cosim/pmu-cosim/cosim/record"
)

func deliveredRecord(idx int64, tSimMid, tArrival, tAdmitted, cost float64) record.EstimateRecord {
	delivery := tAdmitted + cost
	return record.EstimateRecord{
		FrameIndex:    idx,
		TSimMid:       tSimMid,
		TArrival:      tArrival,
		TAdmitted:     tAdmitted,
		TDelivery:     &delivery,
		EmulatedCostS: cost,
		TProcAfter:    delivery,
		Status:        record.StatusOK,
	}
}

func TestDeadlineMiss_ExclusiveBoundary(t *testing.T) {
	dtSim := 0.01

	// GIVEN a record delivered exactly at t_sim_mid + dt_sim
	onTime := deliveredRecord(0, 0.005, 0.01, 0.01, 0.005) // delivery = 0.015 = 0.005 + 0.01

	// THEN the exclusive boundary counts it as a hit
	if DeadlineMiss(onTime, dtSim) {
		t.Error("delivery exactly on the boundary counted as a miss")
	}

	// GIVEN a record delivered just past the boundary
	late := deliveredRecord(1, 0.005, 0.01, 0.01, 0.0051)
	if !DeadlineMiss(late, dtSim) {
		t.Error("late delivery not counted as a miss")
	}
}

func TestDeadlineMiss_NoDeliveryNoMiss(t *testing.T) {
	// GIVEN a failed record with no delivery time
	rec := record.EstimateRecord{FrameIndex: 0, Status: record.StatusFailed}

	// THEN it is not a deadline miss
	if DeadlineMiss(rec, 0.01) {
		t.Error("record without delivery counted as a miss")
	}
}

func TestQueuingDelay(t *testing.T) {
	// GIVEN a frame that waited 30 ms in the buffer
	rec := deliveredRecord(0, 0.005, 0.01, 0.04, 0.002)

	// THEN queuing delay is admission minus arrival
	assert.InDelta(t, 0.03, QueuingDelay(rec), 1e-12)
}

func TestUtilization_OverWindow(t *testing.T) {
	// GIVEN three records each costing 3 ms against a 10 ms frame period
	recs := []record.EstimateRecord{
		deliveredRecord(0, 0.005, 0.01, 0.01, 0.003),
		deliveredRecord(1, 0.015, 0.02, 0.02, 0.003),
		deliveredRecord(2, 0.025, 0.03, 0.03, 0.003),
	}

	// THEN utilization = sum(cost)/sum(dt) = 0.009/0.03
	assert.InDelta(t, 0.3, Utilization(recs, 0.01), 1e-12)
}

func TestUtilization_EmptyWindow(t *testing.T) {
	if got := Utilization(nil, 0.01); got != 0 {
		t.Errorf("utilization of empty window: got %v, want 0", got)
	}
}

func TestBacklogTracker_LiveState(t *testing.T) {
	// GIVEN a tracker over a 10 ms frame period
	bt := NewBacklogTracker(0.01)

	// WHEN two frames arrive and one is admitted at 3 ms cost
	bt.OnArrival(0.01)
	bt.OnArrival(0.02)
	rec := deliveredRecord(0, 0.005, 0.01, 0.01, 0.003)
	if err := bt.OnAdmission(rec); err != nil {
		t.Fatalf("OnAdmission: %v", err)
	}

	// THEN the state reflects one remaining frame and the new clocks
	st := bt.State()
	assert.Equal(t, 1, st.QueueLen)
	assert.InDelta(t, 0.013, st.TProc, 1e-12)
	assert.InDelta(t, 0.02, st.TSim, 1e-12)
	assert.InDelta(t, 0.003/0.02, st.Utilization, 1e-12)
	assert.Equal(t, int64(0), st.DeadlineMissCount)
}

func TestBacklogTracker_BackwardsClockIsProfilingError(t *testing.T) {
	// GIVEN a tracker that has seen a frame finish at t_proc=0.013
	bt := NewBacklogTracker(0.01)
	bt.OnArrival(0.01)
	if err := bt.OnAdmission(deliveredRecord(0, 0.005, 0.01, 0.01, 0.003)); err != nil {
		t.Fatalf("OnAdmission: %v", err)
	}

	// WHEN a later record claims an earlier processing time
	bt.OnArrival(0.02)
	bad := deliveredRecord(1, 0.015, 0.02, 0.001, 0.001)
	err := bt.OnAdmission(bad)

	// THEN the inconsistency is fatal
	if _, ok := err.(*ProfilingError); !ok {
		t.Fatalf("got %v, want *ProfilingError", err)
	}
}

func TestBacklogTracker_CountsDeadlineMisses(t *testing.T) {
	// GIVEN a tracker and a record delivered far too late
	bt := NewBacklogTracker(0.01)
	bt.OnArrival(0.01)
	late := deliveredRecord(0, 0.005, 0.01, 0.05, 0.01) // delivery 0.06 >> 0.015
	if err := bt.OnAdmission(late); err != nil {
		t.Fatalf("OnAdmission: %v", err)
	}

	// THEN the miss counter advances
	assert.Equal(t, int64(1), bt.State().DeadlineMissCount)
}
