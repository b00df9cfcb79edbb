// Zero-crossing frequency estimator.
//
// Detects negative-to-positive zero crossings with an optional deadband and
// linearly interpolates the crossing instant between the two straddling
// samples. Each pair of consecutive crossings yields a period estimate and
// hence a frequency; ROCOF comes from the finite difference of consecutive
// frequency estimates.

package cosim

import (
	"math"
	"time"
)

// zcdKnownParams are the recognized Configure parameter keys for ZCD.
var zcdKnownParams = map[string]bool{
	"epsilon":      true, // deadband around zero
	"nominal_hz":   true, // fallback before the first crossing pair
	"min_period_s": true, // reject absurdly small periods
	"max_period_s": true, // reject absurdly large periods
}

// ZeroCrossingEstimator implements Estimator via zero-crossing detection.
// State survives across frames: the estimator is streaming, one frame is
// just a batch of consecutive samples.
type ZeroCrossingEstimator struct {
	fs         float64
	epsilon    float64
	nominalHz  float64
	minPeriodS float64
	maxPeriodS float64

	prevVal     float64
	prevTS      float64
	havePrev    bool
	lastCrossTS float64
	haveCross   bool

	lastFreq   float64
	lastFreqTS float64
	haveFreq   bool

	rocof float64
}

// NewZeroCrossingEstimator returns an unconfigured ZCD estimator.
func NewZeroCrossingEstimator() *ZeroCrossingEstimator {
	return &ZeroCrossingEstimator{}
}

func (z *ZeroCrossingEstimator) Configure(fs float64, frameLen int, params map[string]float64) error {
	if err := checkEstimatorParams(fs, frameLen, params, zcdKnownParams); err != nil {
		return err
	}
	z.fs = fs
	z.epsilon = params["epsilon"]
	z.nominalHz = 60.0
	if v, ok := params["nominal_hz"]; ok {
		z.nominalHz = v
	}
	z.minPeriodS = 1e-6
	if v, ok := params["min_period_s"]; ok {
		z.minPeriodS = v
	}
	z.maxPeriodS = 1.0
	if v, ok := params["max_period_s"]; ok {
		z.maxPeriodS = v
	}
	z.Reset()
	return nil
}

func (z *ZeroCrossingEstimator) Reset() {
	z.havePrev = false
	z.haveCross = false
	z.haveFreq = false
	z.prevVal, z.prevTS = 0, 0
	z.lastCrossTS = 0
	z.lastFreq, z.lastFreqTS = 0, 0
	z.rocof = 0
}

// sign returns the signed region with deadband: -1, 0, +1.
func (z *ZeroCrossingEstimator) sign(x float64) int {
	if x > z.epsilon {
		return 1
	}
	if x < -z.epsilon {
		return -1
	}
	return 0
}

func (z *ZeroCrossingEstimator) Update(frame *Frame) (EstimateOutput, error) {
	start := time.Now()

	valid := z.haveFreq
	for _, s := range frame.Samples {
		if !s.Finite() {
			// Best-effort: skip the sample, degrade validity, never fail.
			valid = false
			continue
		}
		if z.havePrev {
			if crossed, tCross := z.detectCrossing(s.Value, s.T); crossed {
				if z.haveCross {
					period := tCross - z.lastCrossTS
					if period >= z.minPeriodS && period <= z.maxPeriodS {
						f := 1.0 / period
						if z.haveFreq && tCross > z.lastFreqTS {
							z.rocof = (f - z.lastFreq) / (tCross - z.lastFreqTS)
						}
						z.lastFreq = f
						z.lastFreqTS = tCross
						z.haveFreq = true
						valid = true
					}
				}
				z.lastCrossTS = tCross
				z.haveCross = true
			}
		}
		z.prevVal, z.prevTS = s.Value, s.T
		z.havePrev = true
	}

	f := z.nominalHz
	if z.haveFreq {
		f = z.lastFreq
	} else {
		valid = false
	}

	return EstimateOutput{
		F:           f,
		Rocof:       z.rocof,
		Theta:       0,
		AlgLatencyS: time.Since(start).Seconds(),
		Valid:       valid,
	}, nil
}

// detectCrossing checks for a negative-to-positive crossing between the
// stored previous sample and (val, ts), interpolating the crossing time.
func (z *ZeroCrossingEstimator) detectCrossing(val, ts float64) (bool, float64) {
	s0 := z.sign(z.prevVal)
	s1 := z.sign(val)
	if !(s0 == -1 && s1 >= 0) {
		return false, 0
	}
	dx := val - z.prevVal
	if dx == 0 {
		return true, ts
	}
	alpha := -z.prevVal / dx
	tCross := z.prevTS + (ts-z.prevTS)*alpha
	if math.IsNaN(tCross) || math.IsInf(tCross, 0) {
		return false, 0
	}
	return true, tCross
}
