// Package history stores per-generation run summaries in SQLite.
//
// A Recorder is an evolve.Observer: attach it to a World and every
// generation and migration report is written as it completes. Populations
// themselves are never stored.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/chazu/pushgp/evolve"
)

// ErrRunNotFound indicates the requested run doesn't exist.
var ErrRunNotFound = errors.New("history: run not found")

var schema = []string{`
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	started_at INTEGER NOT NULL,
	seed       INTEGER NOT NULL,
	config     TEXT NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS generations (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	generation  INTEGER NOT NULL,
	island      TEXT NOT NULL,
	population  INTEGER NOT NULL,
	evaluated   INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	duration_us INTEGER NOT NULL,
	best_id     TEXT,
	best_code   TEXT,
	best_points INTEGER,
	best_result TEXT
)`, `
CREATE TABLE IF NOT EXISTS migrations (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	generation INTEGER NOT NULL,
	algorithm  TEXT NOT NULL,
	moves      INTEGER NOT NULL
)`,
}

// Run describes one recorded run.
type Run struct {
	ID        string
	StartedAt time.Time
	Seed      uint64
	Config    string

	Generations int
	Migrations  int
}

// Generation is one island's row for one generation.
type Generation struct {
	Generation int
	Island     string
	Population int
	Evaluated  int
	Failed     int
	Duration   time.Duration
	BestID     string
	BestCode   string
	BestPoints int
	BestResult string
}

// Recorder writes reports for a single run.
type Recorder struct {
	db    *sql.DB
	runID string
	mu    sync.Mutex
}

var _ evolve.Observer = (*Recorder)(nil)

// Open opens (creating if needed) the database at path. Use ":memory:" for a
// throwaway database.
func Open(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection keeps an in-memory database alive and serializes writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating tables: %w", err)
		}
	}
	return &Recorder{db: db}, nil
}

// Close closes the database connection.
func (r *Recorder) Close() error {
	return r.db.Close()
}

// StartRun records a new run and makes it the target of later reports. config
// is stored verbatim, typically the manifest source.
func (r *Recorder) StartRun(ctx context.Context, seed uint64, config string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO runs (id, started_at, seed, config) VALUES (?, ?, ?, ?)",
		id, time.Now().UnixMilli(), int64(seed), config,
	)
	if err != nil {
		return "", fmt.Errorf("saving run: %w", err)
	}
	r.runID = id
	return id, nil
}

// RunID returns the current run, or "" before StartRun.
func (r *Recorder) RunID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runID
}

// GenerationCompleted writes one row per island.
func (r *Recorder) GenerationCompleted(ctx context.Context, report evolve.GenerationReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.runID == "" {
		return errors.New("history: no run started")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, is := range report.Islands {
		var bestID any
		if is.BestID != uuid.Nil {
			bestID = is.BestID.String()
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO generations
			(run_id, generation, island, population, evaluated, failed, duration_us,
			 best_id, best_code, best_points, best_result)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.runID, report.Generation, is.Island, is.Population, is.Evaluated, is.Failed,
			is.Duration.Microseconds(), bestID, is.BestCode, is.BestPoints, is.BestResult,
		)
		if err != nil {
			return fmt.Errorf("saving generation %d: %w", report.Generation, err)
		}
	}
	return tx.Commit()
}

// MigrationCompleted writes one migration row.
func (r *Recorder) MigrationCompleted(ctx context.Context, report evolve.MigrationReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.runID == "" {
		return errors.New("history: no run started")
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO migrations (run_id, generation, algorithm, moves) VALUES (?, ?, ?, ?)",
		r.runID, report.Generation, report.Algorithm, report.Moves,
	)
	if err != nil {
		return fmt.Errorf("saving migration: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// Runs lists every recorded run, newest first.
func (r *Recorder) Runs(ctx context.Context) ([]Run, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.id, r.started_at, r.seed, r.config,
			(SELECT COUNT(DISTINCT generation) FROM generations g WHERE g.run_id = r.id),
			(SELECT COUNT(*) FROM migrations m WHERE m.run_id = r.id)
		FROM runs r
		ORDER BY r.started_at DESC, r.rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var started, seed int64
		if err := rows.Scan(&run.ID, &started, &seed, &run.Config, &run.Generations, &run.Migrations); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		run.StartedAt = time.UnixMilli(started)
		run.Seed = uint64(seed)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Generations returns every island row of runID in generation order.
func (r *Recorder) Generations(ctx context.Context, runID string) ([]Generation, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM runs WHERE id = ?", runID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("querying run: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT generation, island, population, evaluated, failed, duration_us,
			COALESCE(best_id, ''), COALESCE(best_code, ''), COALESCE(best_points, 0), COALESCE(best_result, '')
		FROM generations
		WHERE run_id = ?
		ORDER BY generation, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying generations: %w", err)
	}
	defer rows.Close()

	var out []Generation
	for rows.Next() {
		var g Generation
		var us int64
		if err := rows.Scan(&g.Generation, &g.Island, &g.Population, &g.Evaluated, &g.Failed, &us,
			&g.BestID, &g.BestCode, &g.BestPoints, &g.BestResult); err != nil {
			return nil, fmt.Errorf("scanning generation: %w", err)
		}
		g.Duration = time.Duration(us) * time.Microsecond
		out = append(out, g)
	}
	return out, rows.Err()
}
