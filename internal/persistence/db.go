// Package persistence provides SQLite-based storage for simulation runs: run
// metadata, per-tick bin and agent samples, deliveries and events.
package persistence

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/orchard-sim/internal/engine"
)

// DB wraps a SQLite connection for run storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		seed INTEGER NOT NULL,
		grid_cols INTEGER NOT NULL,
		grid_rows INTEGER NOT NULL,
		agents INTEGER NOT NULL,
		workers INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		ticks INTEGER NOT NULL DEFAULT 0,
		delivered INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS bin_samples (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		bin_id INTEGER NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		level REAL NOT NULL,
		state TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agent_samples (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		agent_id INTEGER NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		state TEXT NOT NULL,
		carried_bin INTEGER NOT NULL,
		target_bin INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS deliveries (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		bin_id INTEGER NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		level REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS repo_counts (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		count INTEGER NOT NULL,
		PRIMARY KEY (run_id, tick)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_meta (
		run_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (run_id, key)
	);

	CREATE INDEX IF NOT EXISTS idx_bin_samples_run_tick ON bin_samples(run_id, tick);
	CREATE INDEX IF NOT EXISTS idx_agent_samples_run_tick ON agent_samples(run_id, tick);
	CREATE INDEX IF NOT EXISTS idx_events_run_tick ON events(run_id, tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Run is one row of the runs table.
type Run struct {
	ID         string  `db:"id" json:"id"`
	Mode       string  `db:"mode" json:"mode"`
	Seed       int64   `db:"seed" json:"seed"`
	Cols       int     `db:"grid_cols" json:"cols"`
	Rows       int     `db:"grid_rows" json:"rows"`
	Agents     int     `db:"agents" json:"agents"`
	Workers    int     `db:"workers" json:"workers"`
	StartedAt  string  `db:"started_at" json:"started_at"`
	FinishedAt *string `db:"finished_at" json:"finished_at,omitempty"`
	Ticks      uint64  `db:"ticks" json:"ticks"`
	Delivered  int     `db:"delivered" json:"delivered"`
}

// StartRun records a new run. An empty ID is replaced by a fresh UUID; the
// run's ID is returned.
func (db *DB) StartRun(r Run) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.StartedAt == "" {
		r.StartedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := db.conn.NamedExec(`INSERT INTO runs
		(id, mode, seed, grid_cols, grid_rows, agents, workers, started_at)
		VALUES (:id, :mode, :seed, :grid_cols, :grid_rows, :agents, :workers, :started_at)`, r)
	if err != nil {
		return "", fmt.Errorf("insert run %s: %w", r.ID, err)
	}
	slog.Info("run recorded", "run", r.ID, "mode", r.Mode, "seed", r.Seed)
	return r.ID, nil
}

// FinishRun stores the final tick count and repository size of a run.
func (db *DB) FinishRun(runID string, ticks uint64, delivered int) error {
	_, err := db.conn.Exec(
		"UPDATE runs SET finished_at = ?, ticks = ?, delivered = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339), ticks, delivered, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	return nil
}

// GetRun loads one run.
func (db *DB) GetRun(runID string) (Run, error) {
	var r Run
	err := db.conn.Get(&r, "SELECT * FROM runs WHERE id = ?", runID)
	return r, err
}

// Runs lists all recorded runs, newest first.
func (db *DB) Runs() ([]Run, error) {
	var runs []Run
	err := db.conn.Select(&runs, "SELECT * FROM runs ORDER BY started_at DESC, id")
	return runs, err
}

// SaveTick writes one snapshot in a single transaction.
func (db *DB) SaveTick(runID string, snap *engine.Snapshot) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	binStmt, err := tx.Preparex(`INSERT INTO bin_samples
		(run_id, tick, bin_id, x, y, level, state) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer binStmt.Close()
	for _, b := range snap.Bins {
		if _, err := binStmt.Exec(runID, snap.Tick, b.ID, b.Loc.X, b.Loc.Y, b.Level, b.State); err != nil {
			return fmt.Errorf("insert bin sample %d: %w", b.ID, err)
		}
	}

	agentStmt, err := tx.Preparex(`INSERT INTO agent_samples
		(run_id, tick, agent_id, x, y, state, carried_bin, target_bin) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer agentStmt.Close()
	for _, a := range snap.Agents {
		if _, err := agentStmt.Exec(runID, snap.Tick, a.ID, a.Loc.X, a.Loc.Y, a.State, a.CarriedBin, a.TargetBin); err != nil {
			return fmt.Errorf("insert agent sample %d: %w", a.ID, err)
		}
	}

	for _, d := range snap.Deliveries {
		_, err := tx.Exec(
			"INSERT INTO deliveries (run_id, tick, bin_id, x, y, level) VALUES (?, ?, ?, ?, ?, ?)",
			runID, d.Tick, d.Bin.ID, d.Bin.Loc.X, d.Bin.Loc.Y, d.Bin.Level,
		)
		if err != nil {
			return fmt.Errorf("insert delivery %d: %w", d.Bin.ID, err)
		}
	}

	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO repo_counts (run_id, tick, count) VALUES (?, ?, ?)",
		runID, snap.Tick, snap.RepoCount,
	); err != nil {
		return fmt.Errorf("insert repo count: %w", err)
	}

	if err := saveEvents(tx, runID, snap.Events); err != nil {
		return fmt.Errorf("insert events: %w", err)
	}

	return tx.Commit()
}

func saveEvents(tx *sqlx.Tx, runID string, events []engine.Event) error {
	for _, e := range events {
		_, err := tx.Exec(
			"INSERT INTO events (run_id, tick, description, category) VALUES (?, ?, ?, ?)",
			runID, e.Tick, e.Description, e.Category,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// SaveMeta stores a key-value pair for a run.
func (db *DB) SaveMeta(runID, key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO run_meta (run_id, key, value) VALUES (?, ?, ?)",
		runID, key, value,
	)
	return err
}

// GetMeta retrieves a run metadata value.
func (db *DB) GetMeta(runID, key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM run_meta WHERE run_id = ? AND key = ?", runID, key)
	return value, err
}

// RecentEvents returns the most recent N events of a run, newest first.
func (db *DB) RecentEvents(runID string, limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT tick, description, category FROM events WHERE run_id = ? ORDER BY id DESC LIMIT ?",
		runID, limit,
	)
	return events, err
}

// BinSample is one stored (time, coordinate, fill level) record.
type BinSample struct {
	Tick  uint64  `db:"tick" json:"tick"`
	BinID int     `db:"bin_id" json:"bin_id"`
	X     int     `db:"x" json:"x"`
	Y     int     `db:"y" json:"y"`
	Level float64 `db:"level" json:"level"`
	State string  `db:"state" json:"state"`
}

// BinHistory returns every sample of one bin in tick order.
func (db *DB) BinHistory(runID string, binID int) ([]BinSample, error) {
	var out []BinSample
	err := db.conn.Select(&out,
		"SELECT tick, bin_id, x, y, level, state FROM bin_samples WHERE run_id = ? AND bin_id = ? ORDER BY tick",
		runID, binID,
	)
	return out, err
}

// AgentSample is one stored (time, coordinate) record of an agent.
type AgentSample struct {
	Tick       uint64 `db:"tick" json:"tick"`
	AgentID    int    `db:"agent_id" json:"agent_id"`
	X          int    `db:"x" json:"x"`
	Y          int    `db:"y" json:"y"`
	State      string `db:"state" json:"state"`
	CarriedBin int    `db:"carried_bin" json:"carried_bin"`
	TargetBin  int    `db:"target_bin" json:"target_bin"`
}

// AgentPath returns every sample of one agent in tick order.
func (db *DB) AgentPath(runID string, agentID int) ([]AgentSample, error) {
	var out []AgentSample
	err := db.conn.Select(&out,
		`SELECT tick, agent_id, x, y, state, carried_bin, target_bin
		 FROM agent_samples WHERE run_id = ? AND agent_id = ? ORDER BY tick`,
		runID, agentID,
	)
	return out, err
}

// RepoCount is the repository size at the end of a tick.
type RepoCount struct {
	Tick  uint64 `db:"tick" json:"tick"`
	Count int    `db:"count" json:"count"`
}

// RepoCounts returns the repository size per tick.
func (db *DB) RepoCounts(runID string) ([]RepoCount, error) {
	var out []RepoCount
	err := db.conn.Select(&out, "SELECT tick, count FROM repo_counts WHERE run_id = ? ORDER BY tick", runID)
	return out, err
}

// DeliveredYield sums the level of every delivered bin in a run.
func (db *DB) DeliveredYield(runID string) (float64, error) {
	var total float64
	err := db.conn.Get(&total, "SELECT COALESCE(SUM(level), 0) FROM deliveries WHERE run_id = ?", runID)
	return total, err
}

// Recorder stores every tick snapshot of one run.
type Recorder struct {
	db    *DB
	runID string
}

// NewRecorder creates a recorder for runID.
func (db *DB) NewRecorder(runID string) *Recorder {
	return &Recorder{db: db, runID: runID}
}

// RecordTick implements engine.Recorder.
func (r *Recorder) RecordTick(snap *engine.Snapshot) error {
	return r.db.SaveTick(r.runID, snap)
}
