// Package sqlframe provides a corral.Frame backed by a SQLite transaction:
// a single-writer connection, WAL mode, a busy-timeout pragma, and a
// content blob column holding the serialized state, versioned by a
// monotone seq column.
package sqlframe

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tannerlabs/corral"
)

//go:embed schema.sql
var schemaSQL string

// Store owns the SQLite connection backing a corral.Frame. State is
// marshaled to JSON and stored in a single-row table; the framework treats
// S as opaque, so JSON (not a typed schema) is the only representation
// that can hold an arbitrary caller-defined state type without requiring
// the caller to write their own marshaling glue.
type Store[S any] struct {
	db *sql.DB
}

// Open opens or creates a SQLite database at path, applies the required
// pragmas and schema, and seeds the single state row with initial if it
// does not already exist. This function is idempotent.
func Open[S any](path string, initial S) (*Store[S], error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlframe: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlframe: connect database: %w", err)
	}

	// SQLite allows only one writer; serialize through a single connection
	// to avoid SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlframe: apply pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlframe: apply schema: %w", err)
	}

	s := &Store[S]{db: db}
	if err := s.seed(initial); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store[S]) seed(initial S) error {
	payload, err := json.Marshal(initial)
	if err != nil {
		return fmt.Errorf("sqlframe: marshal initial state: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO machine_state (id, payload, seq) VALUES (1, ?, 0)
		ON CONFLICT(id) DO NOTHING
	`, payload)
	if err != nil {
		return fmt.Errorf("sqlframe: seed initial state: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store[S]) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Open opens a fresh Frame rooted at the row currently committed in the
// database, started within its own SQL transaction.
func (s *Store[S]) Open(ctx context.Context) (corral.Frame[S], error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlframe: begin transaction: %w", err)
	}

	var payload []byte
	var seq int64
	err = tx.QueryRowContext(ctx, `SELECT payload, seq FROM machine_state WHERE id = 1`).Scan(&payload, &seq)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("sqlframe: read state row: %w", err)
	}

	var current S
	if err := json.Unmarshal(payload, &current); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("sqlframe: unmarshal state: %w", err)
	}

	return &frame[S]{tx: tx, seq: seq, current: current}, nil
}

type frame[S any] struct {
	tx      *sql.Tx
	seq     int64
	current S
	done    bool
}

func (f *frame[S]) Read(ctx context.Context) (*S, error) {
	if f.done {
		return nil, fmt.Errorf("sqlframe: frame already closed")
	}
	return &f.current, nil
}

func (f *frame[S]) Write(ctx context.Context, state *S) error {
	if f.done {
		return fmt.Errorf("sqlframe: frame already closed")
	}
	f.current = *state
	return nil
}

func (f *frame[S]) Commit(ctx context.Context) error {
	if f.done {
		return fmt.Errorf("sqlframe: frame already closed")
	}
	f.done = true

	payload, err := json.Marshal(f.current)
	if err != nil {
		f.tx.Rollback()
		return fmt.Errorf("sqlframe: marshal state: %w", err)
	}

	_, err = f.tx.ExecContext(ctx, `
		UPDATE machine_state SET payload = ?, seq = seq + 1 WHERE id = 1
	`, payload)
	if err != nil {
		f.tx.Rollback()
		return fmt.Errorf("sqlframe: write state row: %w", err)
	}

	if err := f.tx.Commit(); err != nil {
		return fmt.Errorf("sqlframe: commit transaction: %w", err)
	}
	return nil
}

func (f *frame[S]) Rollback(ctx context.Context) error {
	if f.done {
		return nil
	}
	f.done = true
	return f.tx.Rollback()
}
