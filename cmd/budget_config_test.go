package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

const budgetsYAML = `
budgets:
  default:
    max_latency_s: 0.05
    max_failure_rate: 0.0
  m-class:
    max_latency_s: 0.2
    max_window_s: 0.1
    max_memory_bytes: 268435456
    max_failure_rate: 0.01
`

func TestGetFairnessBudget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budgets.yaml")
	if err := os.WriteFile(path, []byte(budgetsYAML), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	// WHEN loading a named preset
	b := GetFairnessBudget(path, "m-class")

	// THEN its limits come back populated
	if b == nil {
		t.Fatal("preset not found")
	}
	assert.Equal(t, 0.2, b.MaxLatencyS)
	assert.Equal(t, 0.1, b.MaxWindowS)
	assert.Equal(t, int64(268435456), b.MaxMemoryBytes)
	assert.Equal(t, 0.01, b.MaxFailureRate)

	// AND an unknown preset returns nil
	assert.Nil(t, GetFairnessBudget(path, "nonexistent"))
}
