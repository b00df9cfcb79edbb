package cosim

import (
	"math"
	"testing"
)

// sineFrame builds one frame of a pure sinusoid. startIdx positions the
// frame within the continuing signal so consecutive frames stay phase
// coherent.
func sineFrame(t *testing.T, freqHz, fs float64, n int, startIdx int) *Frame {
	t.Helper()
	samples := make([]Sample, n)
	for i := 0; i < n; i++ {
		ts := float64(startIdx+i) / fs
		samples[i] = Sample{
			T:     ts,
			Value: math.Sin(2 * math.Pi * freqHz * ts),
			FTrue: freqHz,
		}
	}
	return &Frame{
		Index:   int64(startIdx / n),
		Samples: samples,
		TSimMid: (samples[0].T + samples[n-1].T) / 2,
		FTrue:   freqHz,
	}
}

// feedSine pushes numFrames consecutive sine frames through the estimator
// and returns the last output.
func feedSine(t *testing.T, est Estimator, freqHz, fs float64, frameLen, numFrames int) EstimateOutput {
	t.Helper()
	var out EstimateOutput
	var err error
	for i := 0; i < numFrames; i++ {
		frame := sineFrame(t, freqHz, fs, frameLen, i*frameLen)
		out, err = est.Update(frame)
		if err != nil {
			t.Fatalf("Update frame %d: %v", i, err)
		}
	}
	return out
}

// constEstimator is a stub with a fixed output and self-reported latency,
// used where tests need deterministic timing.
type constEstimator struct {
	f        float64
	rocof    float64
	latencyS float64
	updates  int
	failOn   map[int]error // update ordinal (1-based) -> error to return
}

func (c *constEstimator) Configure(fs float64, frameLen int, params map[string]float64) error {
	return checkEstimatorParams(fs, frameLen, params, map[string]bool{})
}

func (c *constEstimator) Reset() { c.updates = 0 }

func (c *constEstimator) Update(frame *Frame) (EstimateOutput, error) {
	c.updates++
	if err, ok := c.failOn[c.updates]; ok {
		return EstimateOutput{}, err
	}
	return EstimateOutput{
		F:           c.f,
		Rocof:       c.rocof,
		AlgLatencyS: c.latencyS,
		Valid:       true,
	}, nil
}
