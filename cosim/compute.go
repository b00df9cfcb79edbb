// ComputeModel: timing emulation that turns a measured (or nominal)
// algorithmic cost into a realistic wall-clock delay, emulating production
// hardware variability without re-running on different hardware.

package cosim

import (
	"fmt"
	"math"
	"math/rand"
)

// Jitter distribution kinds.
const (
	JitterNone    = "none"
	JitterNormal  = "normal"  // mean 0, stddev sigma
	JitterUniform = "uniform" // [-a, a]
)

// validJitterKinds maps accepted jitter kind strings.
var validJitterKinds = map[string]bool{
	JitterNone:    true,
	JitterNormal:  true,
	JitterUniform: true,
	"":            true, // empty defaults to none
}

// JitterConfig describes the relative perturbation applied to each
// per-update cost.
type JitterConfig struct {
	Kind  string  `yaml:"kind"`
	Sigma float64 `yaml:"sigma"` // stddev, for "normal"
	Bound float64 `yaml:"bound"` // half-width a, for "uniform"
}

// ComputeProfile configures the timing emulation. Immutable for a run;
// safe to share (by reference) across concurrently executing runs.
type ComputeProfile struct {
	DeadtimeS       float64      `yaml:"deadtime_s"`        // fixed additive overhead [s]
	Jitter          JitterConfig `yaml:"jitter"`            // relative perturbation
	ThrottleFactor  float64      `yaml:"throttle_factor"`   // hardware-class scale, 0 = 1.0
	NominalLatencyS float64      `yaml:"nominal_latency_s"` // >0 replaces self-reported latency
}

// Validate checks the profile's parameter ranges.
func (p *ComputeProfile) Validate() error {
	if p.DeadtimeS < 0 {
		return &ConfigurationError{Field: "compute_profile.deadtime_s", Reason: "must be >= 0"}
	}
	if p.ThrottleFactor < 0 {
		return &ConfigurationError{Field: "compute_profile.throttle_factor", Reason: "must be >= 0"}
	}
	if p.NominalLatencyS < 0 {
		return &ConfigurationError{Field: "compute_profile.nominal_latency_s", Reason: "must be >= 0"}
	}
	if !validJitterKinds[p.Jitter.Kind] {
		return &ConfigurationError{
			Field:  "compute_profile.jitter.kind",
			Reason: fmt.Sprintf("unknown jitter kind %q", p.Jitter.Kind),
		}
	}
	if p.Jitter.Sigma < 0 || p.Jitter.Bound < 0 {
		return &ConfigurationError{Field: "compute_profile.jitter", Reason: "sigma and bound must be >= 0"}
	}
	return nil
}

// throttle returns the effective throttle factor (zero-value means 1.0).
func (p *ComputeProfile) throttle() float64 {
	if p.ThrottleFactor == 0 {
		return 1.0
	}
	return p.ThrottleFactor
}

// ComputeModel draws emulated per-update costs from a validated profile
// using the run's seeded jitter RNG stream.
//
// Not safe for concurrent use: the RNG stream is owned by one run.
type ComputeModel struct {
	profile *ComputeProfile
	rng     *rand.Rand
}

// NewComputeModel validates the profile and binds it to the run's RNG.
func NewComputeModel(profile *ComputeProfile, rng *PartitionedRNG) (*ComputeModel, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return &ComputeModel{
		profile: profile,
		rng:     rng.ForSubsystem(SubsystemJitter),
	}, nil
}

// Profile returns the bound (read-only) compute profile.
func (m *ComputeModel) Profile() *ComputeProfile { return m.profile }

// EmulatedCost converts a per-update algorithmic latency into an emulated
// wall-clock cost:
//
//	cost = max(0, (alg_latency + deadtime) * (1 + jitter)) * throttle_factor
//
// When the profile carries a nominal latency, it replaces algLatencyS so
// that record timestamps are reproducible bit-for-bit. Deadtime applies
// even at zero latency, so cost is never identically zero unless the
// profile says deadtime_s=0.
//
// A non-finite result is a *ProfilingError: the model produced an
// impossible duration, which is a modeling bug, not a data issue.
func (m *ComputeModel) EmulatedCost(frameIndex int64, algLatencyS float64) (float64, error) {
	algLatencyS = m.EffectiveLatency(algLatencyS)
	if algLatencyS < 0 {
		return 0, &ProfilingError{
			FrameIndex: frameIndex,
			Reason:     fmt.Sprintf("negative algorithmic latency %v", algLatencyS),
		}
	}

	jitter := m.drawJitter()
	cost := (algLatencyS + m.profile.DeadtimeS) * (1 + jitter)
	if cost < 0 {
		cost = 0
	}
	cost *= m.profile.throttle()

	if math.IsNaN(cost) || math.IsInf(cost, 0) {
		return 0, &ProfilingError{
			FrameIndex: frameIndex,
			Reason:     fmt.Sprintf("non-finite emulated cost (jitter=%v)", jitter),
		}
	}
	return cost, nil
}

// EffectiveLatency returns the latency the model actually charges: the
// profile's nominal latency when set, otherwise the self-reported value.
// Records carry this value so that reproducibility runs with a nominal
// latency produce bit-identical streams.
func (m *ComputeModel) EffectiveLatency(algLatencyS float64) float64 {
	if m.profile.NominalLatencyS > 0 {
		return m.profile.NominalLatencyS
	}
	return algLatencyS
}

func (m *ComputeModel) drawJitter() float64 {
	switch m.profile.Jitter.Kind {
	case JitterNormal:
		return m.rng.NormFloat64() * m.profile.Jitter.Sigma
	case JitterUniform:
		a := m.profile.Jitter.Bound
		return m.rng.Float64()*2*a - a
	default:
		return 0
	}
}
