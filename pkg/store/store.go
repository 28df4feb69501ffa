// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package store persists alarm rules, violation states and the alarm history
// in a single sqlite database.
//
// Rule and state rows carry a full JSON document next to the indexed columns,
// so the schema never needs a migration when the model grows a field. All
// operations are safe for concurrent use; the database handle is capped to a
// single connection, which serializes writers and keeps sqlite from returning
// busy errors under load.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/DataDog/alarm-engine/pkg/util/log"
)

// ErrNotFound is returned when the requested rule or state does not exist.
var ErrNotFound = errors.New("store: not found")

// FatalError marks a database failure that retrying cannot fix, such as a
// corrupt file or a full disk. The engine shuts down when it sees one.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal store error: %s", e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err carries a FatalError anywhere in its chain.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

const schema = `
CREATE TABLE IF NOT EXISTS alarm_rules (
	rule_id    TEXT PRIMARY KEY,
	device_id  TEXT NOT NULL,
	rule_data  TEXT NOT NULL,
	enabled    INTEGER DEFAULT 1,
	created_at REAL,
	updated_at REAL
);
CREATE INDEX IF NOT EXISTS idx_rules_device ON alarm_rules(device_id);

CREATE TABLE IF NOT EXISTS alarm_states (
	rule_id    TEXT PRIMARY KEY,
	device_id  TEXT NOT NULL,
	state_data TEXT NOT NULL,
	updated_at REAL
);
CREATE INDEX IF NOT EXISTS idx_states_device ON alarm_states(device_id);

CREATE TABLE IF NOT EXISTS alarm_history (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	rule_id    TEXT NOT NULL,
	device_id  TEXT NOT NULL,
	alarm_data TEXT NOT NULL,
	timestamp  REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_timestamp ON alarm_history(timestamp);
`

// two retries after the initial attempt, three tries in total
const storeMaxRetries = 2

// Store owns the sqlite database behind the engine.
type Store struct {
	db    *sql.DB
	path  string
	clock clock.Clock
}

// New opens (creating if needed) the database at path and ensures the schema
// is in place. The parent directory is created when missing.
func New(path string, clk clock.Clock) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode=WAL&_pragma=busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// a single connection serializes writers; WAL keeps that cheap
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	log.Infof("Database initialized at %s", path)
	return &Store{db: db, path: path, clock: clk}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the location of the database file.
func (s *Store) Path() string {
	return s.path
}

// withRetry runs op, retrying transient sqlite failures with exponential
// backoff. Any other failure aborts immediately and is classified so callers
// can tell an unusable database from a passing fault.
func (s *Store) withRetry(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = time.Second

	err := backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if isTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(bo, storeMaxRetries), ctx))
	return classify(err)
}

func isTransient(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
	}
	return false
}

// classify wraps failures that mean the database itself is unusable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_FULL, sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_IOERR:
			return &FatalError{Err: err}
		}
	}
	return err
}

func timeToUnix(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
