package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/okian/klepsydra/internal/domain/model"
	"github.com/okian/klepsydra/internal/domain/penalty"
	"github.com/okian/klepsydra/pkg/metrics"
)

// Schema for the attempt history store. Penalties are stored as their
// textual form; the effective penalty and final duration are recombined
// from the domain rules on load rather than persisted.
const schema = `
CREATE TABLE IF NOT EXISTS attempts (
    id                  TEXT PRIMARY KEY,
    ordering_key        INTEGER NOT NULL,
    scramble            TEXT NOT NULL DEFAULT '',
    start_ts            INTEGER NOT NULL,
    end_ts              INTEGER NOT NULL,
    inspection_ms       INTEGER NOT NULL,
    raw_ms              INTEGER NOT NULL,
    inspection_penalty  TEXT NOT NULL,
    manual_penalty      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_attempts_ordering ON attempts(ordering_key);
`

// SQLiteStore is a Store backed by a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the SQLite history database at path and
// applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Append adds an attempt to the end of the history.
func (s *SQLiteStore) Append(ctx context.Context, a model.Attempt) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attempts (id, ordering_key, scramble, start_ts, end_ts, inspection_ms, raw_ms, inspection_penalty, manual_penalty)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.OrderingKey, a.Scramble,
		a.Result.StartTS, a.Result.EndTS, a.Result.InspectionMS, a.Result.RawMS,
		a.Result.InspectionPenalty.String(), a.Result.ManualPenalty.String(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateAttempt, a.ID)
		}
		return fmt.Errorf("insert attempt: %w", err)
	}
	metrics.RecordStoreAppendLatency(float64(time.Since(start).Microseconds()) / 1000.0)
	return nil
}

// List returns attempts ordered by insertion, skipping offset entries
// and returning at most limit. A limit <= 0 means no cap.
func (s *SQLiteStore) List(ctx context.Context, offset, limit int) ([]model.Attempt, error) {
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset %d", ErrInvalidLimit, offset)
	}
	start := time.Now()

	// SQLite requires a LIMIT clause for OFFSET; -1 means unlimited.
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ordering_key, scramble, start_ts, end_ts, inspection_ms, raw_ms, inspection_penalty, manual_penalty
		FROM attempts ORDER BY ordering_key, id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	out := []model.Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}

	metrics.RecordStoreQueryLatency(float64(time.Since(start).Microseconds()) / 1000.0)
	return out, nil
}

// Get returns the attempt with the given ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (model.Attempt, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, ordering_key, scramble, start_ts, end_ts, inspection_ms, raw_ms, inspection_penalty, manual_penalty
		FROM attempts WHERE id = ?`, id)

	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Attempt{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return model.Attempt{}, err
	}
	return a, nil
}

// SetPenalty replaces the manual penalty of a stored attempt.
func (s *SQLiteStore) SetPenalty(ctx context.Context, id string, p penalty.Penalty) (model.Attempt, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE attempts SET manual_penalty = ? WHERE id = ?`, p.String(), id)
	if err != nil {
		return model.Attempt{}, fmt.Errorf("update penalty: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.Attempt{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.Get(ctx, id)
}

// Count returns the number of attempts in the history.
func (s *SQLiteStore) Count(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attempts`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Clear removes every attempt from the history.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM attempts`); err != nil {
		return fmt.Errorf("clear attempts: %w", err)
	}
	metrics.UpdateHistorySize(0)
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row scanner) (model.Attempt, error) {
	var (
		a                 model.Attempt
		inspText, manText string
	)
	err := row.Scan(&a.ID, &a.OrderingKey, &a.Scramble,
		&a.Result.StartTS, &a.Result.EndTS, &a.Result.InspectionMS, &a.Result.RawMS,
		&inspText, &manText)
	if err != nil {
		return model.Attempt{}, err
	}

	insp, err := penalty.Parse(inspText)
	if err != nil {
		return model.Attempt{}, fmt.Errorf("attempt %s: %w", a.ID, err)
	}
	man, err := penalty.Parse(manText)
	if err != nil {
		return model.Attempt{}, fmt.Errorf("attempt %s: %w", a.ID, err)
	}

	a.Result.InspectionPenalty = insp
	a.Result = a.Result.WithManualPenalty(man)
	return a, nil
}

func isUniqueViolation(err error) bool {
	// mattn/go-sqlite3 reports constraint failures in the message text.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ Store = (*SQLiteStore)(nil)
var _ Store = (*MemStore)(nil)
