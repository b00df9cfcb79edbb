package record

import (
	"database/sql"
	"encoding/json"
	"fmt"

	// SQLite driver registration for database/sql.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// SQLiteWriter is a sink that writes the record stream to a SQLite
// database for queryable post-processing. Records are buffered and
// inserted in batched transactions. Each writer session carries its own
// run id, so one database file can accumulate the records of many runs.
type SQLiteWriter struct {
	db        *sql.DB
	statement *sql.Stmt

	path      string
	runID     string
	buffered  []EstimateRecord
	batchSize int
}

// NewSQLiteWriter creates a writer for the given database path. An empty
// path generates a unique file name from a fresh xid.
func NewSQLiteWriter(path string) (*SQLiteWriter, error) {
	if path == "" {
		path = xid.New().String() + ".sqlite3"
	}
	w := &SQLiteWriter{
		path:      path,
		runID:     xid.New().String(),
		batchSize: 10000,
	}
	if err := w.init(); err != nil {
		return nil, err
	}

	atexit.Register(func() { w.Flush() })

	return w, nil
}

// RunID returns the id under which this writer session stores its rows.
func (w *SQLiteWriter) RunID() string { return w.runID }

func (w *SQLiteWriter) init() error {
	db, err := sql.Open("sqlite3", w.path)
	if err != nil {
		return fmt.Errorf("opening sqlite db %s: %w", w.path, err)
	}
	w.db = db

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS estimate_records (
			run_id          TEXT,
			frame_index     INTEGER,
			t_sim_mid       REAL,
			t_arrival       REAL,
			t_admitted      REAL,
			t_delivery      REAL,
			f_hat           REAL,
			rocof_hat       REAL,
			f_true          REAL,
			rocof_true      REAL,
			alg_latency_s   REAL,
			emulated_cost_s REAL,
			t_proc_after    REAL,
			queue_len       INTEGER,
			warmup          INTEGER,
			valid           INTEGER,
			status          TEXT,
			error_reason    TEXT,
			PRIMARY KEY (run_id, frame_index)
		);
		CREATE TABLE IF NOT EXISTS manifests (
			run_id   TEXT PRIMARY KEY,
			manifest TEXT
		);`)
	if err != nil {
		return fmt.Errorf("creating sqlite schema: %w", err)
	}

	w.statement, err = db.Prepare(`
		INSERT INTO estimate_records VALUES
		(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing sqlite statement: %w", err)
	}
	return nil
}

func (w *SQLiteWriter) WriteRecord(r EstimateRecord) error {
	w.buffered = append(w.buffered, r)
	if len(w.buffered) >= w.batchSize {
		return w.Flush()
	}
	return nil
}

// Flush writes all buffered records inside one transaction.
func (w *SQLiteWriter) Flush() error {
	if len(w.buffered) == 0 {
		return nil
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning sqlite transaction: %w", err)
	}
	stmt := tx.Stmt(w.statement)
	for _, r := range w.buffered {
		var delivery any
		if r.TDelivery != nil {
			delivery = *r.TDelivery
		}
		_, err := stmt.Exec(
			w.runID, r.FrameIndex, r.TSimMid, r.TArrival, r.TAdmitted, delivery,
			r.FHat, r.RocofHat, r.FTrue, r.RocofTrue,
			r.AlgLatencyS, r.EmulatedCostS, r.TProcAfter,
			r.QueueLen, r.Warmup, r.Valid, r.Status, r.ErrorReason,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting record %d: %w", r.FrameIndex, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing sqlite transaction: %w", err)
	}

	w.buffered = nil
	return nil
}

func (w *SQLiteWriter) WriteManifest(m Manifest) error {
	if err := w.Flush(); err != nil {
		return err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	// Keyed by the writer's run id so the row joins against this session's
	// estimate_records.
	_, err = w.db.Exec(
		`INSERT OR REPLACE INTO manifests (run_id, manifest) VALUES (?, ?)`,
		w.runID, string(data))
	if err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// Close flushes buffered records and closes the database.
func (w *SQLiteWriter) Close() error {
	if err := w.Flush(); err != nil {
		w.db.Close()
		return err
	}
	w.statement.Close()
	return w.db.Close()
}
