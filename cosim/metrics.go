// Aggregates the per-frame record stream into run-level accuracy and
// timing metrics: FE/RFE (RMSE against ground truth), latency percentiles,
// deadline compliance, and utilization.

package cosim

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/pmu-cosim/pmu-cosim/cosim/record"
)

// Aggregate holds run-level statistics derived from the record stream.
// Warm-up records never contribute; they stay in the raw stream so
// re-aggregation with a different warm-up count is always possible.
type Aggregate struct {
	Frames       int // records considered (non-warmup)
	WarmupFrames int // records excluded by the warmup flag
	FailedFrames int // non-warmup records with status=failed

	FE  float64 // RMSE of frequency estimate vs truth [Hz]
	RFE float64 // RMSE of ROCOF estimate vs truth [Hz/s]

	MeanLatencyS float64
	P50LatencyS  float64
	P95LatencyS  float64

	DeadlineMisses int64
	Compliance     float64 // fraction of delivered frames meeting the deadline
	Utilization    float64
	FailureRate    float64

	PeakMemoryBytes int64   // supplied by the caller; 0 = not measured
	WindowS         float64 // estimation window length [s]
}

// Summarize reduces a record stream to an Aggregate. dtSim is the signal
// advance per frame; windowS is the estimation window length used.
func Summarize(recs []record.EstimateRecord, dtSim, windowS float64) Aggregate {
	agg := Aggregate{WindowS: windowS}

	var latencies []float64
	var feSq, rfeSq float64
	var feN int
	var delivered int64

	for _, r := range recs {
		if r.Warmup {
			agg.WarmupFrames++
			continue
		}
		agg.Frames++
		if r.Status == record.StatusFailed {
			agg.FailedFrames++
			continue
		}
		latencies = append(latencies, r.AlgLatencyS)
		if r.Valid {
			feSq += (r.FHat - r.FTrue) * (r.FHat - r.FTrue)
			rfeSq += (r.RocofHat - r.RocofTrue) * (r.RocofHat - r.RocofTrue)
			feN++
		}
		if r.Delivered() {
			delivered++
			if DeadlineMiss(r, dtSim) {
				agg.DeadlineMisses++
			}
		}
	}

	if feN > 0 {
		agg.FE = math.Sqrt(feSq / float64(feN))
		agg.RFE = math.Sqrt(rfeSq / float64(feN))
	}
	if len(latencies) > 0 {
		sort.Float64s(latencies)
		agg.MeanLatencyS = stat.Mean(latencies, nil)
		agg.P50LatencyS = stat.Quantile(0.50, stat.Empirical, latencies, nil)
		agg.P95LatencyS = stat.Quantile(0.95, stat.Empirical, latencies, nil)
	}
	if delivered > 0 {
		agg.Compliance = float64(delivered-agg.DeadlineMisses) / float64(delivered)
	}
	if agg.Frames > 0 {
		agg.FailureRate = float64(agg.FailedFrames) / float64(agg.Frames)
	}

	// Utilization over the non-warmup window.
	nonWarmup := make([]record.EstimateRecord, 0, agg.Frames)
	for _, r := range recs {
		if !r.Warmup {
			nonWarmup = append(nonWarmup, r)
		}
	}
	agg.Utilization = Utilization(nonWarmup, dtSim)

	return agg
}

// GateInput converts the aggregate into the statistics the FairnessGate
// judges.
func (a *Aggregate) GateInput() GateInput {
	return GateInput{
		P50LatencyS:     a.P50LatencyS,
		P95LatencyS:     a.P95LatencyS,
		PeakMemoryBytes: a.PeakMemoryBytes,
		WindowS:         a.WindowS,
		FailureRate:     a.FailureRate,
	}
}

// Print displays the aggregated metrics at the end of a run.
func (a *Aggregate) Print() {
	fmt.Println("=== Co-simulation Metrics ===")
	fmt.Printf("Frames (non-warmup)  : %d\n", a.Frames)
	fmt.Printf("Warm-up frames       : %d\n", a.WarmupFrames)
	fmt.Printf("Failed frames        : %d\n", a.FailedFrames)
	if a.Frames > 0 {
		fmt.Printf("FE (RMSE)            : %.6f Hz\n", a.FE)
		fmt.Printf("RFE (RMSE)           : %.6f Hz/s\n", a.RFE)
		fmt.Printf("Latency mean/p50/p95 : %.6f / %.6f / %.6f s\n",
			a.MeanLatencyS, a.P50LatencyS, a.P95LatencyS)
		fmt.Printf("Deadline misses      : %d\n", a.DeadlineMisses)
		fmt.Printf("Compliance           : %.4f\n", a.Compliance)
		fmt.Printf("Utilization          : %.4f\n", a.Utilization)
	}
}
