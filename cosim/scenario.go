// Synthetic scenario sources and the framer that packs their samples into
// fixed-length frames for the Orchestrator.
//
// Every scenario emits a sinusoid by phase accumulation over a piecewise
// instantaneous-frequency profile, so the ground-truth frequency and ROCOF
// are known exactly at each sample.

package cosim

import (
	"fmt"
	"math"
	"math/rand"
)

// Scenario kinds recognized by the registry.
const (
	ScenarioClean    = "clean"     // linear ramp f0 -> f0+df over the full duration
	ScenarioStep     = "step"      // f0 -> f_step at t_step, back to f0 at t_back
	ScenarioRampStep = "ramp-step" // ramp at a fixed ROCOF, hold, ramp back
)

// ValidScenarios is the set of recognized scenario kinds.
var ValidScenarios = map[string]bool{
	ScenarioClean:    true,
	ScenarioStep:     true,
	ScenarioRampStep: true,
}

// ScenarioConfig describes a synthetic waveform.
// Immutable after construction; safe to share across runs.
type ScenarioConfig struct {
	Kind      string  `yaml:"kind"`
	F0        float64 `yaml:"f0"`         // nominal frequency [Hz]
	DF        float64 `yaml:"df"`         // total ramp excursion for "clean" [Hz]
	FStep     float64 `yaml:"f_step"`     // disturbance frequency for "step"/"ramp-step" [Hz]
	TStep     float64 `yaml:"t_step"`     // disturbance onset [s]
	TBack     float64 `yaml:"t_back"`     // return onset [s]
	Rocof     float64 `yaml:"rocof"`      // ramp rate for "ramp-step" [Hz/s]
	Duration  float64 `yaml:"duration"`   // total signal length [s]
	Amplitude float64 `yaml:"amplitude"`  // waveform amplitude (0 = 1.0)
	NoiseStd  float64 `yaml:"noise_std"`  // additive Gaussian noise stddev (0 = clean)
	PhaseRad  float64 `yaml:"phase_rad"`  // initial phase [rad]
}

// Validate checks the scenario parameters against the recognized kinds.
func (c *ScenarioConfig) Validate() error {
	if !ValidScenarios[c.Kind] {
		return &ConfigurationError{Field: "scenario.kind", Reason: fmt.Sprintf("unknown scenario %q", c.Kind)}
	}
	if c.Duration <= 0 {
		return &ConfigurationError{Field: "scenario.duration", Reason: fmt.Sprintf("must be > 0, got %v", c.Duration)}
	}
	if c.F0 <= 0 {
		return &ConfigurationError{Field: "scenario.f0", Reason: fmt.Sprintf("must be > 0, got %v", c.F0)}
	}
	if c.NoiseStd < 0 {
		return &ConfigurationError{Field: "scenario.noise_std", Reason: "must be >= 0"}
	}
	if c.Kind == ScenarioRampStep && c.Rocof < 0 {
		return &ConfigurationError{Field: "scenario.rocof", Reason: "must be >= 0"}
	}
	return nil
}

// Scenario produces an ordered, finite, restartable sequence of Samples
// with aligned ground truth. Deterministic given the RNG it was built with.
type Scenario interface {
	// Next returns the next sample, or ok=false when the sequence is done.
	Next() (Sample, bool)
	// Reset restarts the sequence, including the noise stream.
	Reset()
	// SampleRate returns the scenario's sampling frequency [Hz].
	SampleRate() float64
}

// SyntheticScenario generates samples lazily by phase accumulation.
type SyntheticScenario struct {
	cfg  ScenarioConfig
	fs   float64
	n    int // total samples
	seed int64

	idx   int
	theta float64
	rng   *rand.Rand
}

// NewSyntheticScenario builds a scenario from a validated config.
// The RNG feeding the noise stream is derived from the run's partitioned
// RNG so two runs with the same seed produce identical signals.
func NewSyntheticScenario(cfg ScenarioConfig, fs float64, rng *PartitionedRNG) (*SyntheticScenario, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if fs <= 0 {
		return nil, &ConfigurationError{Field: "fs", Reason: fmt.Sprintf("must be > 0, got %v", fs)}
	}
	s := &SyntheticScenario{
		cfg:  cfg,
		fs:   fs,
		n:    int(cfg.Duration * fs),
		seed: int64(rng.Key()),
	}
	s.Reset()
	return s, nil
}

func (s *SyntheticScenario) SampleRate() float64 { return s.fs }

func (s *SyntheticScenario) Reset() {
	s.idx = 0
	s.theta = s.cfg.PhaseRad
	// Re-derive the noise stream so a restarted scenario replays exactly.
	s.rng = NewPartitionedRNG(NewRunKey(s.seed)).ForSubsystem(SubsystemScenario)
}

func (s *SyntheticScenario) Next() (Sample, bool) {
	if s.idx >= s.n {
		return Sample{}, false
	}
	t := float64(s.idx) / s.fs
	f, r := s.truthAt(t)

	// Phase accumulation: theta_i = theta_{i-1} + 2*pi*f_i/fs.
	s.theta += 2 * math.Pi * f / s.fs
	amp := s.cfg.Amplitude
	if amp == 0 {
		amp = 1.0
	}
	v := amp * math.Sin(s.theta)
	if s.cfg.NoiseStd > 0 {
		v += s.rng.NormFloat64() * s.cfg.NoiseStd
	}

	s.idx++
	return Sample{T: t, Value: v, FTrue: f, RTrue: r}, true
}

// truthAt returns the instantaneous frequency and ROCOF at time t.
func (s *SyntheticScenario) truthAt(t float64) (f, rocof float64) {
	c := &s.cfg
	switch c.Kind {
	case ScenarioClean:
		return c.F0 + c.DF*t/c.Duration, c.DF / c.Duration
	case ScenarioStep:
		if t >= c.TStep && t < c.TBack {
			return c.FStep, 0
		}
		return c.F0, 0
	case ScenarioRampStep:
		if c.Rocof == 0 {
			return c.F0, 0
		}
		rampTime := math.Abs(c.FStep-c.F0) / c.Rocof
		sgn := 1.0
		if c.FStep < c.F0 {
			sgn = -1.0
		}
		switch {
		case t < c.TStep:
			return c.F0, 0
		case t < c.TStep+rampTime:
			return c.F0 + sgn*c.Rocof*(t-c.TStep), sgn * c.Rocof
		case t < c.TBack:
			return c.FStep, 0
		case t < c.TBack+rampTime:
			return c.FStep - sgn*c.Rocof*(t-c.TBack), -sgn * c.Rocof
		default:
			return c.F0, 0
		}
	}
	return c.F0, 0
}

// Framer assembles scenario samples into consecutive non-overlapping
// frames of frameLen samples each.
type Framer struct {
	src      Scenario
	frameLen int
	next     int64
}

// NewFramer wraps a scenario source.
func NewFramer(src Scenario, frameLen int) *Framer {
	return &Framer{src: src, frameLen: frameLen}
}

// NextFrame returns the next full frame, or ok=false once the source
// cannot fill another frame. A trailing partial window is discarded: the
// estimator contract requires fixed-length frames.
func (fr *Framer) NextFrame() (*Frame, bool) {
	samples := make([]Sample, 0, fr.frameLen)
	for len(samples) < fr.frameLen {
		s, ok := fr.src.Next()
		if !ok {
			return nil, false
		}
		samples = append(samples, s)
	}

	mid := samples[len(samples)/2]
	f := &Frame{
		Index:   fr.next,
		Samples: samples,
		TSimMid: (samples[0].T + samples[len(samples)-1].T) / 2,
		FTrue:   mid.FTrue,
		RTrue:   mid.RTrue,
	}
	fr.next++
	return f, true
}
