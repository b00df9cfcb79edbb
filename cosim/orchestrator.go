// The Orchestrator drives the dual-clock co-simulation loop.
//
// T_sim (simulated signal time) advances by a fixed dt per frame as the
// scenario produces data; T_proc (emulated processing time) advances only
// by the ComputeModel's per-update cost. A buffered frame is admitted for
// processing only while T_proc <= T_sim; otherwise the backlog grows.
// The loop is intentionally single-goroutine: correctness depends on the
// deterministic ordering of clock advances.

package cosim

import (
	"context"
	"runtime"
	"time"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/pmu-cosim/pmu-cosim/cosim/record"
)

// RunResult bundles everything a completed (or aborted) run produced.
type RunResult struct {
	Manifest  record.Manifest
	Aggregate Aggregate
	Gate      GateResult
	Records   []record.EstimateRecord
}

// Orchestrator owns one run's clocks, buffer, estimator and RNG streams.
// Not safe for concurrent use; run independent Orchestrators for
// parallelism across estimator/scenario combinations.
type Orchestrator struct {
	cfg       *RunConfig
	framer    *Framer
	estimator Estimator
	model     *ComputeModel
	tracker   *BacklogTracker
	sink      record.Sink

	TSim  float64
	TProc float64

	buffer   FrameQueue
	dtSim    float64
	admitted int64
	failed   int64
	records  []record.EstimateRecord

	warnedNoLatency bool
}

// NewOrchestrator builds a full run from configuration: scenario source,
// estimator from the registry, compute model, and backlog tracker, all
// sharing one partitioned RNG derived from cfg.Seed.
// Configuration failures (including Estimator.Configure) are fatal and
// occur before any frame is processed.
func NewOrchestrator(cfg *RunConfig, sink record.Sink) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng := NewPartitionedRNG(NewRunKey(cfg.Seed))

	src, err := NewSyntheticScenario(cfg.Scenario, cfg.FS, rng)
	if err != nil {
		return nil, err
	}
	est, err := NewEstimator(cfg.Estimator.ID)
	if err != nil {
		return nil, err
	}
	return NewOrchestratorWith(cfg, src, est, sink)
}

// NewOrchestratorWith wires an explicit scenario source and estimator,
// for callers that plug in their own implementations of either contract.
func NewOrchestratorWith(cfg *RunConfig, src Scenario, est Estimator, sink record.Sink) (*Orchestrator, error) {
	if cfg.FrameLen <= 0 || cfg.FS <= 0 {
		return nil, &ConfigurationError{Field: "frame_len/fs", Reason: "must be > 0"}
	}
	if err := est.Configure(cfg.FS, cfg.FrameLen, cfg.Estimator.Params); err != nil {
		return nil, err
	}
	model, err := NewComputeModel(&cfg.ComputeProfile, NewPartitionedRNG(NewRunKey(cfg.Seed)))
	if err != nil {
		return nil, err
	}
	if sink == nil {
		sink = &record.MemorySink{}
	}
	return &Orchestrator{
		cfg:       cfg,
		framer:    NewFramer(src, cfg.FrameLen),
		estimator: est,
		model:     model,
		tracker:   NewBacklogTracker(cfg.DtSim()),
		sink:      sink,
		dtSim:     cfg.DtSim(),
	}, nil
}

// Tracker exposes the live backlog state.
func (o *Orchestrator) Tracker() *BacklogTracker { return o.tracker }

// Run executes the co-simulation loop until the scenario is exhausted and
// the buffer drains, or until ctx is cancelled between ticks. The sink is
// always left with a terminal manifest; on abort the manifest is marked
// Aborted and the partial record stream remains valid.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	started := time.Now()
	runID := xid.New().String()

	logrus.Infof("run %s: scenario=%s estimator=%s frame_len=%d fs=%v dt_sim=%v",
		runID, o.cfg.Scenario.Kind, o.cfg.Estimator.ID, o.cfg.FrameLen, o.cfg.FS, o.dtSim)

	for {
		if err := ctx.Err(); err != nil {
			return o.finish(runID, started, true, err)
		}
		frame, ok := o.framer.NextFrame()
		if !ok {
			break
		}

		// Tick: the frame's last sample has now "arrived" in signal time.
		o.TSim += o.dtSim
		frame.TArrival = o.TSim
		o.buffer.Enqueue(frame)
		o.tracker.OnArrival(o.TSim)
		logrus.Debugf("[t_sim %.6f] frame %d buffered (queue=%d, t_proc=%.6f)",
			o.TSim, frame.Index, o.buffer.Len(), o.TProc)

		if err := o.admitLoop(); err != nil {
			return o.finish(runID, started, true, err)
		}
	}

	// Source exhausted: keep ticking the signal clock until the backlog
	// drains.
	for o.buffer.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return o.finish(runID, started, true, err)
		}
		o.TSim += o.dtSim
		if err := o.admitLoop(); err != nil {
			return o.finish(runID, started, true, err)
		}
	}

	return o.finish(runID, started, false, nil)
}

// admitLoop pops and processes buffered frames while the emulated pipeline
// is not behind the signal's arrival time. Returned errors are fatal
// (ProfilingError or sink failure); per-frame estimation errors are
// recorded inline and do not surface here.
func (o *Orchestrator) admitLoop() error {
	for o.buffer.Len() > 0 && o.TProc <= o.TSim {
		if err := o.processFrame(o.buffer.Dequeue()); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) processFrame(frame *Frame) error {
	// Processing cannot start before the frame's data exists; an idle
	// pipeline fast-forwards to the arrival instant. This also upholds the
	// invariant t_delivery >= t_sim_mid.
	tAdmitted := o.TProc
	if frame.TArrival > tAdmitted {
		tAdmitted = frame.TArrival
	}

	out, uerr := o.estimator.Update(frame)

	// A failed update carries a zero-value output; only a successful update
	// that reports no latency warrants the warning.
	if uerr == nil && out.AlgLatencyS == 0 && o.model.Profile().NominalLatencyS == 0 && !o.warnedNoLatency {
		logrus.Warnf("estimator %q did not report alg_latency_s; treating as 0", o.cfg.Estimator.ID)
		o.warnedNoLatency = true
	}

	cost, perr := o.model.EmulatedCost(frame.Index, out.AlgLatencyS)
	if perr != nil {
		return perr
	}
	tDelivery := tAdmitted + cost
	o.TProc = tDelivery

	rec := record.EstimateRecord{
		FrameIndex:    frame.Index,
		TSimMid:       frame.TSimMid,
		TArrival:      frame.TArrival,
		TAdmitted:     tAdmitted,
		FTrue:         frame.FTrue,
		RocofTrue:     frame.RTrue,
		AlgLatencyS:   o.model.EffectiveLatency(out.AlgLatencyS),
		EmulatedCostS: cost,
		TProcAfter:    o.TProc,
		QueueLen:      o.buffer.Len(),
		Warmup:        o.admitted < int64(o.cfg.WarmupFrames),
		Status:        record.StatusOK,
	}
	o.admitted++

	if uerr != nil {
		eerr := &EstimationError{
			FrameIndex: frame.Index,
			Estimator:  o.cfg.Estimator.ID,
			Err:        uerr,
		}
		logrus.Warnf("%v (continuing)", eerr)
		rec.Status = record.StatusFailed
		rec.ErrorReason = eerr.Error()
		o.failed++
	} else {
		rec.TDelivery = &tDelivery
		rec.FHat = out.F
		rec.RocofHat = out.Rocof
		rec.Valid = out.Valid
	}

	o.records = append(o.records, rec)
	if err := o.sink.WriteRecord(rec); err != nil {
		return err
	}
	return o.tracker.OnAdmission(rec)
}

// finish summarizes, gates, and writes the terminal manifest. Aborted runs
// skip the gate and carry the abort cause in the manifest reason.
func (o *Orchestrator) finish(runID string, started time.Time, aborted bool, cause error) (*RunResult, error) {
	agg := Summarize(o.records, o.dtSim, o.cfg.WindowS())

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	agg.PeakMemoryBytes = int64(ms.HeapInuse)

	var gate GateResult
	if aborted {
		gate = GateResult{Pass: false, Reason: "run aborted: " + cause.Error()}
	} else {
		gate = o.cfg.FairnessBudget.Evaluate(agg.GateInput())
	}

	manifest := record.Manifest{
		RunID:         runID,
		Seed:          o.cfg.Seed,
		Scenario:      o.cfg.Scenario.Kind,
		Estimator:     o.cfg.Estimator.ID,
		StartedAt:     started,
		EndedAt:       time.Now(),
		Aborted:       aborted,
		FramesEmitted: int64(len(o.records)),
		FramesFailed:  o.failed,
		WarmupFrames:  int64(o.cfg.WarmupFrames),
		Profile:       o.cfg.ComputeProfile,
		Budget:        o.cfg.FairnessBudget,
		Pass:          gate.Pass,
		Reason:        gate.Reason,
	}

	result := &RunResult{
		Manifest:  manifest,
		Aggregate: agg,
		Gate:      gate,
		Records:   o.records,
	}

	if err := o.sink.WriteManifest(manifest); err != nil {
		if cause == nil {
			cause = err
		}
		return result, cause
	}
	if err := o.sink.Close(); err != nil && cause == nil {
		cause = err
	}

	if aborted {
		logrus.Warnf("run %s aborted after %d frames: %v", runID, len(o.records), cause)
	} else {
		logrus.Infof("run %s complete: %d frames, %d failed, pass=%v",
			runID, len(o.records), o.failed, gate.Pass)
	}
	return result, cause
}
