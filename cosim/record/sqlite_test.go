package record

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSQLiteWriter_RoundTrip(t *testing.T) {
	// GIVEN a stream of records and a terminal manifest
	path := filepath.Join(t.TempDir(), "run.sqlite3")
	w, err := NewSQLiteWriter(path)
	if err != nil {
		t.Fatalf("NewSQLiteWriter: %v", err)
	}
	for i := int64(0); i < 3; i++ {
		if err := w.WriteRecord(sampleRecord(i)); err != nil {
			t.Fatalf("WriteRecord: %v", err)
		}
	}
	if err := w.WriteManifest(Manifest{RunID: "orchestrator-run", Pass: true}); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}
	runID := w.RunID()
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// WHEN the database is queried back
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	// THEN this session's rows are all present under its run id
	var n int
	if err := db.QueryRow(
		`SELECT COUNT(*) FROM estimate_records WHERE run_id = ?`, runID).Scan(&n); err != nil {
		t.Fatalf("counting records: %v", err)
	}
	assert.Equal(t, 3, n)

	// AND one record's fields survive intact
	var fHat, cost float64
	var status string
	if err := db.QueryRow(
		`SELECT f_hat, emulated_cost_s, status FROM estimate_records
		 WHERE run_id = ? AND frame_index = 1`, runID).Scan(&fHat, &cost, &status); err != nil {
		t.Fatalf("selecting record: %v", err)
	}
	assert.Equal(t, 60.01, fHat)
	assert.Equal(t, 0.003, cost)
	assert.Equal(t, StatusOK, status)

	// AND the manifest row joins against the same run id
	var manifest string
	if err := db.QueryRow(
		`SELECT manifest FROM manifests WHERE run_id = ?`, runID).Scan(&manifest); err != nil {
		t.Fatalf("selecting manifest: %v", err)
	}
	assert.Contains(t, manifest, `"orchestrator-run"`)
}

func TestSQLiteWriter_NilDeliveryStoredAsNull(t *testing.T) {
	// GIVEN a failed record with no delivery time
	path := filepath.Join(t.TempDir(), "run.sqlite3")
	w, err := NewSQLiteWriter(path)
	if err != nil {
		t.Fatalf("NewSQLiteWriter: %v", err)
	}
	failed := sampleRecord(0)
	failed.TDelivery = nil
	failed.Status = StatusFailed
	if err := w.WriteRecord(failed); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	runID := w.RunID()
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// THEN the column reads back as NULL
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var delivery sql.NullFloat64
	if err := db.QueryRow(
		`SELECT t_delivery FROM estimate_records WHERE run_id = ? AND frame_index = 0`,
		runID).Scan(&delivery); err != nil {
		t.Fatalf("selecting record: %v", err)
	}
	assert.False(t, delivery.Valid)
}

func TestSQLiteWriter_MultipleRunsSharePath(t *testing.T) {
	// GIVEN two writer sessions against the same database file, both
	// starting at frame 0
	path := filepath.Join(t.TempDir(), "runs.sqlite3")

	writeRun := func(manifestID string) string {
		w, err := NewSQLiteWriter(path)
		if err != nil {
			t.Fatalf("NewSQLiteWriter: %v", err)
		}
		if err := w.WriteRecord(sampleRecord(0)); err != nil {
			t.Fatalf("WriteRecord: %v", err)
		}
		if err := w.WriteManifest(Manifest{RunID: manifestID}); err != nil {
			t.Fatalf("WriteManifest: %v", err)
		}
		id := w.RunID()
		if err := w.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
		return id
	}
	idA := writeRun("run-a")
	idB := writeRun("run-b")

	// THEN both runs' frame-0 rows coexist under distinct run ids
	if idA == idB {
		t.Fatalf("writer sessions share run id %q", idA)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var records, runs, manifests int
	if err := db.QueryRow(`SELECT COUNT(*) FROM estimate_records`).Scan(&records); err != nil {
		t.Fatalf("counting records: %v", err)
	}
	if err := db.QueryRow(`SELECT COUNT(DISTINCT run_id) FROM estimate_records`).Scan(&runs); err != nil {
		t.Fatalf("counting runs: %v", err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM manifests`).Scan(&manifests); err != nil {
		t.Fatalf("counting manifests: %v", err)
	}
	assert.Equal(t, 2, records)
	assert.Equal(t, 2, runs)
	assert.Equal(t, 2, manifests)
}
