package results

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kumasuke/s3ready/internal/catalog"
	"github.com/kumasuke/s3ready/internal/endpoint"
)

// Journal persists results to SQLite as they are recorded.
type Journal struct {
	db *sql.DB
}

// OpenJournal opens (or creates) a journal database at the given path.
func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	j := &Journal{db: db}
	if err := j.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) initialize() error {
	_, err := j.db.Exec(`
		CREATE TABLE IF NOT EXISTS results (
			run_id        TEXT NOT NULL,
			test_id       INTEGER NOT NULL,
			name          TEXT NOT NULL,
			category      TEXT NOT NULL,
			tier          TEXT NOT NULL,
			status        TEXT NOT NULL,
			duration_ms   INTEGER NOT NULL,
			retries       INTEGER NOT NULL,
			error_kind    TEXT,
			error_message TEXT,
			skip_reason   TEXT,
			leaked        INTEGER NOT NULL DEFAULT 0,
			recorded_at   DATETIME NOT NULL,
			PRIMARY KEY (run_id, test_id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create results table: %w", err)
	}
	return nil
}

// Insert writes one result row.
func (j *Journal) Insert(runID string, r TestResult) error {
	_, err := j.db.Exec(`
		INSERT INTO results (
			run_id, test_id, name, category, tier, status, duration_ms,
			retries, error_kind, error_message, skip_reason, leaked, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, r.ID, r.Name, string(r.Category), string(r.Tier), string(r.Status),
		r.Duration.Milliseconds(), r.Retries, string(r.ErrorKind), r.ErrorMessage,
		r.SkipReason, boolToInt(r.Leaked), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert result for test %d: %w", r.ID, err)
	}
	return nil
}

// Load reads back every result journaled for a run, in id order.
func (j *Journal) Load(runID string) ([]TestResult, error) {
	rows, err := j.db.Query(`
		SELECT test_id, name, category, tier, status, duration_ms,
		       retries, error_kind, error_message, skip_reason, leaked
		FROM results WHERE run_id = ? ORDER BY test_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var out []TestResult
	for rows.Next() {
		var r TestResult
		var category, tier, status, kind string
		var durationMs int64
		var leaked int
		if err := rows.Scan(&r.ID, &r.Name, &category, &tier, &status, &durationMs,
			&r.Retries, &kind, &r.ErrorMessage, &r.SkipReason, &leaked); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		r.Category = catalog.Category(category)
		r.Tier = catalog.Tier(tier)
		r.Status = Status(status)
		r.ErrorKind = endpoint.Kind(kind)
		r.Duration = time.Duration(durationMs) * time.Millisecond
		r.Leaked = leaked != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
