package record

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func sampleRecord(idx int64) EstimateRecord {
	delivery := float64(idx)*0.01 + 0.013
	return EstimateRecord{
		FrameIndex:    idx,
		TSimMid:       float64(idx)*0.01 + 0.005,
		TArrival:      float64(idx+1) * 0.01,
		TAdmitted:     float64(idx+1) * 0.01,
		TDelivery:     &delivery,
		FHat:          60.01,
		FTrue:         60.0,
		AlgLatencyS:   0.002,
		EmulatedCostS: 0.003,
		TProcAfter:    delivery,
		Valid:         true,
		Status:        StatusOK,
	}
}

func TestJSONLWriter_RoundTrip(t *testing.T) {
	// GIVEN a stream of records and a terminal manifest
	path := filepath.Join(t.TempDir(), "run.jsonl")
	w, err := NewJSONLWriter(path)
	if err != nil {
		t.Fatalf("NewJSONLWriter: %v", err)
	}
	want := []EstimateRecord{sampleRecord(0), sampleRecord(1), sampleRecord(2)}
	for _, r := range want {
		if err := w.WriteRecord(r); err != nil {
			t.Fatalf("WriteRecord: %v", err)
		}
	}
	manifest := Manifest{
		RunID:         "test-run",
		Seed:          42,
		Scenario:      "step",
		Estimator:     "zcd",
		StartedAt:     time.Now().UTC().Truncate(time.Second),
		EndedAt:       time.Now().UTC().Truncate(time.Second),
		FramesEmitted: 3,
		Pass:          true,
	}
	if err := w.WriteManifest(manifest); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// WHEN the file is read back
	got, m, err := ReadJSONL(path)
	if err != nil {
		t.Fatalf("ReadJSONL: %v", err)
	}

	// THEN records and manifest survive unchanged
	assert.Equal(t, want, got)
	if m == nil {
		t.Fatal("manifest not found")
	}
	assert.Equal(t, manifest.RunID, m.RunID)
	assert.Equal(t, manifest.Seed, m.Seed)
	assert.True(t, m.Pass)
}

func TestJSONLWriter_FailedRecordHasNoDelivery(t *testing.T) {
	// GIVEN a failed record with nil TDelivery
	path := filepath.Join(t.TempDir(), "run.jsonl")
	w, err := NewJSONLWriter(path)
	if err != nil {
		t.Fatalf("NewJSONLWriter: %v", err)
	}
	failed := sampleRecord(0)
	failed.TDelivery = nil
	failed.Valid = false
	failed.Status = StatusFailed
	failed.ErrorReason = "estimator blew up"
	if err := w.WriteRecord(failed); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// WHEN read back
	got, _, err := ReadJSONL(path)
	if err != nil {
		t.Fatalf("ReadJSONL: %v", err)
	}

	// THEN the absence of a delivery time round-trips
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	assert.False(t, got[0].Delivered())
	assert.Equal(t, StatusFailed, got[0].Status)
	assert.Equal(t, "estimator blew up", got[0].ErrorReason)
}

func TestReadJSONL_PartialStreamWithoutManifest(t *testing.T) {
	// GIVEN a stream cut off before the manifest (crashed process)
	path := filepath.Join(t.TempDir(), "partial.jsonl")
	w, err := NewJSONLWriter(path)
	if err != nil {
		t.Fatalf("NewJSONLWriter: %v", err)
	}
	for i := int64(0); i < 5; i++ {
		if err := w.WriteRecord(sampleRecord(i)); err != nil {
			t.Fatalf("WriteRecord: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// WHEN read back
	got, m, err := ReadJSONL(path)

	// THEN the records parse and the manifest is reported missing
	if err != nil {
		t.Fatalf("ReadJSONL: %v", err)
	}
	assert.Len(t, got, 5)
	assert.Nil(t, m)
}

func TestReadJSONL_GarbageLineFails(t *testing.T) {
	// GIVEN a stream with a corrupted line
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	if err := os.WriteFile(path, []byte("{\"frame_index\":0}\nnot json\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	// WHEN read back
	_, _, err := ReadJSONL(path)

	// THEN the corruption surfaces as an error
	if err == nil {
		t.Fatal("corrupted stream accepted")
	}
}
