// Package cosim provides the co-simulation core: a dual-clock orchestrator
// that replays synthetic PMU scenarios through streaming frequency/ROCOF
// estimators while emulating the real-world cost of computation.
//
// # Reading Guide
//
// Start with these three files to understand the loop:
//   - sample.go: Sample and Frame carriers flowing from scenario to estimator
//   - orchestrator.go: the dual-clock loop, admission rule, and failure policy
//   - compute.go: the timing emulation (deadtime, jitter, throttle)
//
// # Key Interfaces
//
// The extension points are small interfaces:
//   - Estimator: configure/reset/update contract for pluggable estimators,
//     constructed by id through NewEstimator
//   - Scenario: ordered, finite, restartable sample source with aligned
//     ground truth
//   - record.Sink: append-only consumer of the per-frame record stream
//
// Determinism: every random draw (scenario noise, compute jitter) comes
// from a PartitionedRNG derived from the run seed, so identical
// configuration and seed reproduce identical record streams.
package cosim
