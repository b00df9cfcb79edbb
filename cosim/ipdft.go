// Interpolated DFT (IpDFT) frequency estimator.
//
// Keeps a sliding buffer of the most recent frame_len samples. Each update
// refreshes the buffer, takes the FFT magnitude spectrum, locates the peak
// bin, and refines it with 3-point parabolic interpolation:
//
//	delta = 0.5 * (|X[k-1]| - |X[k+1]|) / (|X[k-1]| - 2|X[k]| + |X[k+1]|)
//	f_hat = (k + delta) * fs / N
//
// Until the buffer fills, the estimator reports the nominal frequency with
// Valid=false.

package cosim

import (
	"math"
	"math/cmplx"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"
)

// ipdftKnownParams are the recognized Configure parameter keys for IpDFT.
var ipdftKnownParams = map[string]bool{
	"nominal_hz": true, // reported before the sliding buffer fills
}

// IpDFTEstimator implements Estimator via interpolated DFT on a sliding
// buffer.
type IpDFTEstimator struct {
	fs        float64
	frameLen  int
	nominalHz float64

	fft    *fourier.FFT
	buffer []float64
	coeffs []complex128
	ptr    int
	filled bool

	lastFreq float64
	lastTS   float64
	haveLast bool
}

// NewIpDFTEstimator returns an unconfigured IpDFT estimator.
func NewIpDFTEstimator() *IpDFTEstimator {
	return &IpDFTEstimator{}
}

func (e *IpDFTEstimator) Configure(fs float64, frameLen int, params map[string]float64) error {
	if err := checkEstimatorParams(fs, frameLen, params, ipdftKnownParams); err != nil {
		return err
	}
	if frameLen < 3 {
		return &ConfigurationError{Field: "frame_len", Reason: "ipdft requires frame_len >= 3"}
	}
	e.fs = fs
	e.frameLen = frameLen
	e.nominalHz = 60.0
	if v, ok := params["nominal_hz"]; ok {
		e.nominalHz = v
	}
	e.fft = fourier.NewFFT(frameLen)
	e.buffer = make([]float64, frameLen)
	e.coeffs = make([]complex128, frameLen/2+1)
	e.Reset()
	return nil
}

func (e *IpDFTEstimator) Reset() {
	for i := range e.buffer {
		e.buffer[i] = 0
	}
	e.ptr = 0
	e.filled = false
	e.haveLast = false
	e.lastFreq, e.lastTS = 0, 0
}

func (e *IpDFTEstimator) Update(frame *Frame) (EstimateOutput, error) {
	start := time.Now()

	finite := true
	for _, s := range frame.Samples {
		if !s.Finite() {
			// Keep the buffer clean; non-finite samples would poison the
			// whole spectrum.
			finite = false
			continue
		}
		e.buffer[e.ptr] = s.Value
		e.ptr = (e.ptr + 1) % e.frameLen
		if !e.filled && e.ptr == 0 {
			e.filled = true
		}
	}

	f := e.nominalHz
	theta := 0.0
	valid := false
	if e.filled {
		f, theta = e.estimate()
		valid = finite
	}

	// ROCOF via finite difference of consecutive window estimates.
	rocof := 0.0
	ts := frame.TSimMid
	if e.haveLast && ts > e.lastTS {
		rocof = (f - e.lastFreq) / (ts - e.lastTS)
	}
	e.lastFreq, e.lastTS = f, ts
	e.haveLast = true

	return EstimateOutput{
		F:           f,
		Rocof:       rocof,
		Theta:       theta,
		AlgLatencyS: time.Since(start).Seconds(),
		Valid:       valid,
	}, nil
}

// estimate runs the FFT over the current full buffer and returns the
// interpolated peak frequency and the phase at the peak bin.
func (e *IpDFTEstimator) estimate() (freq, theta float64) {
	// The FFT does not care where the ring pointer is: a circular shift of
	// the window only rotates phases, and the magnitude peak is unaffected.
	coeffs := e.fft.Coefficients(e.coeffs, e.buffer)

	k := 1
	peak := 0.0
	for i := 1; i < len(coeffs); i++ {
		if m := cmplx.Abs(coeffs[i]); m > peak {
			peak = m
			k = i
		}
	}

	delta := 0.0
	if k >= 1 && k < len(coeffs)-1 {
		m0 := cmplx.Abs(coeffs[k-1])
		m1 := cmplx.Abs(coeffs[k])
		m2 := cmplx.Abs(coeffs[k+1])
		denom := m0 - 2.0*m1 + m2
		if denom != 0 {
			delta = 0.5 * (m0 - m2) / denom
		}
	}

	freq = (float64(k) + delta) * e.fs / float64(e.frameLen)
	theta = cmplx.Phase(coeffs[k])
	if math.IsNaN(freq) || math.IsInf(freq, 0) {
		freq = e.nominalHz
		theta = 0
	}
	return freq, theta
}
