package cosim

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EstimatorConfig selects and parameterizes a registered estimator.
type EstimatorConfig struct {
	ID     string             `yaml:"id"`
	Params map[string]float64 `yaml:"params"`
}

// RunConfig is the full, validated configuration of one co-simulation run.
// Loaded once; read-only afterwards.
type RunConfig struct {
	FrameLen     int     `yaml:"frame_len"`     // samples per estimator update (> 0)
	FS           float64 `yaml:"fs"`            // sampling rate [Hz] (> 0)
	WarmupFrames int     `yaml:"warmup_frames"` // accepted frames flagged warmup (>= 0)
	Seed         int64   `yaml:"seed"`

	Scenario       ScenarioConfig  `yaml:"scenario"`
	Estimator      EstimatorConfig `yaml:"estimator"`
	ComputeProfile ComputeProfile  `yaml:"compute_profile"`
	FairnessBudget FairnessBudget  `yaml:"fairness_budget"`
}

// DtSim returns the simulated signal advance per frame [s].
func (c *RunConfig) DtSim() float64 {
	return float64(c.FrameLen) / c.FS
}

// WindowS returns the estimation window length [s].
func (c *RunConfig) WindowS() float64 {
	return float64(c.FrameLen) / c.FS
}

// Validate checks all recognized options and parameter ranges.
func (c *RunConfig) Validate() error {
	if c.FrameLen <= 0 {
		return &ConfigurationError{Field: "frame_len", Reason: fmt.Sprintf("must be > 0, got %d", c.FrameLen)}
	}
	if c.FS <= 0 {
		return &ConfigurationError{Field: "fs", Reason: fmt.Sprintf("must be > 0, got %v", c.FS)}
	}
	if c.WarmupFrames < 0 {
		return &ConfigurationError{Field: "warmup_frames", Reason: fmt.Sprintf("must be >= 0, got %d", c.WarmupFrames)}
	}
	if !ValidEstimators[c.Estimator.ID] {
		return &ConfigurationError{Field: "estimator.id", Reason: fmt.Sprintf("unknown estimator %q", c.Estimator.ID)}
	}
	if err := c.Scenario.Validate(); err != nil {
		return err
	}
	if err := c.ComputeProfile.Validate(); err != nil {
		return err
	}
	return c.FairnessBudget.Validate()
}

// LoadRunConfig reads and strictly parses a YAML run configuration.
// Unknown keys are a *ConfigurationError.
func LoadRunConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run config: %w", err)
	}
	cfg, err := ParseRunConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseRunConfig strictly decodes a YAML run configuration from bytes.
func ParseRunConfig(data []byte) (*RunConfig, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg RunConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("parsing run config: %v", err)}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
