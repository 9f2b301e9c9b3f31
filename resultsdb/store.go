// Package resultsdb optionally persists *run summaries* — not simulation
// state, which always stays in-memory and deterministic (spec.md §1's
// "no persistence" non-goal binds that, not this) — so `cmd compare
// --save` can track capacity-planning runs across process invocations.
// Grounded on abdul-hamid-achik-hitspec's packages/db/db.go: a thin
// database/sql wrapper over the mattn/go-sqlite3 driver.
package resultsdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// RunSummary is one row: the outcome metrics of a single scenario run,
// enough to compare capacity-planning alternatives after the fact.
type RunSummary struct {
	RunID           string
	ScenarioName    string
	Seed            int64
	Horizon         float64
	Throughput      float64
	AvgResponseTime float64
	P50             float64
	P95             float64
	P99             float64
	RecordedAt      time.Time
}

// Store wraps a SQLite-backed database/sql connection holding run
// summaries.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS run_summaries (
	run_id            TEXT PRIMARY KEY,
	scenario_name     TEXT NOT NULL,
	seed              INTEGER NOT NULL,
	horizon           REAL NOT NULL,
	throughput        REAL NOT NULL,
	avg_response_time REAL NOT NULL,
	p50               REAL NOT NULL,
	p95               REAL NOT NULL,
	p99               REAL NOT NULL,
	recorded_at       TEXT NOT NULL
);
`

// Open opens (creating if necessary) a SQLite database at path and
// ensures its schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("resultsdb: opening %s: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("resultsdb: connecting to %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("resultsdb: creating schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

// Save inserts or replaces one run summary.
func (s *Store) Save(r RunSummary) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO run_summaries
			(run_id, scenario_name, seed, horizon, throughput, avg_response_time, p50, p95, p99, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.ScenarioName, r.Seed, r.Horizon, r.Throughput, r.AvgResponseTime,
		r.P50, r.P95, r.P99, r.RecordedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("resultsdb: saving run %s: %w", r.RunID, err)
	}
	return nil
}

// RunsForScenario returns every saved run for scenarioName, most recent
// first.
func (s *Store) RunsForScenario(scenarioName string) ([]RunSummary, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, scenario_name, seed, horizon, throughput, avg_response_time, p50, p95, p99, recorded_at
		FROM run_summaries WHERE scenario_name = ? ORDER BY recorded_at DESC`, scenarioName)
	if err != nil {
		return nil, fmt.Errorf("resultsdb: querying runs for %s: %w", scenarioName, err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var recordedAt string
		if err := rows.Scan(&r.RunID, &r.ScenarioName, &r.Seed, &r.Horizon, &r.Throughput,
			&r.AvgResponseTime, &r.P50, &r.P95, &r.P99, &recordedAt); err != nil {
			return nil, fmt.Errorf("resultsdb: scanning row: %w", err)
		}
		r.RecordedAt, _ = time.Parse(time.RFC3339Nano, recordedAt)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("resultsdb: iterating rows: %w", err)
	}
	return out, nil
}

// Diff reports b's metrics minus a's, for the capacity-planning
// comparison `cmd compare` prints: a positive Throughput means b
// processes more work per unit time, a positive AvgResponseTime means b
// is slower.
type Diff struct {
	Throughput      float64
	AvgResponseTime float64
	P99             float64
}

// CompareRuns computes Diff(b) - Diff(a).
func CompareRuns(a, b RunSummary) Diff {
	return Diff{
		Throughput:      b.Throughput - a.Throughput,
		AvgResponseTime: b.AvgResponseTime - a.AvgResponseTime,
		P99:             b.P99 - a.P99,
	}
}
