// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package store is the single point of contact with the SQLite database:
// nodes seen on the mesh, observed packets, store-and-forward mail, and
// traceroute session state. All access is serialised behind one mutex —
// every operation is short, so contention is resolved by waiting rather
// than by spreading writers across a connection pool.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/mesh-companion/meshbot/internal/clock"
)

// pragmas applied once per connection. journal_mode=WAL and a generous
// busy_timeout let the single connection absorb the occasional slow
// fsync without returning SQLITE_BUSY to a caller; foreign_keys stays
// off since referential integrity here is enforced by the Go layer
// (UpsertNode before any packet/session insert references a node_id).
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=OFF",
	"PRAGMA cache_size=-8192",
	"PRAGMA mmap_size=268435456",
	"PRAGMA temp_store=MEMORY",
}

// Store owns the one connection to the database file and the mutex
// serialising access to it.
type Store struct {
	logger *slog.Logger
	clock  clock.Clock

	mu   sync.Mutex
	conn *sqlite.Conn

	// changed is closed and replaced on every successful write, so
	// callers (the dashboard's SSE stream) can select on it to learn
	// when to re-poll the read surface without a busy-poll loop.
	changedMu sync.Mutex
	changed   chan struct{}

	optimizeTimer *clock.Timer
}

// Open opens (creating if necessary) the database at path, applies
// pragmas, and runs the schema migration. path may be ":memory:" for
// tests, but note that an in-memory database vanishes when the
// connection closes — there is only ever one connection, so this is
// safe to rely on for deterministic per-test databases.
func Open(path string, c clock.Clock, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if c == nil {
		c = clock.Real()
	}

	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite, sqlite.OpenCreate, sqlite.OpenWAL)
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}

	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			conn.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: migrating %s: %w", path, err)
	}

	s := &Store{
		logger:  logger,
		clock:   c,
		conn:    conn,
		changed: make(chan struct{}),
	}

	s.optimizeTimer = c.AfterFunc(optimizeInterval, s.runOptimize)

	logger.Info("store opened", "path", path)
	return s, nil
}

// optimizeInterval is how often PRAGMA optimize runs. SQLite's own docs
// recommend running it periodically on long-lived connections rather
// than after every transaction; hours-scale is plenty for a mesh bot's
// write volume.
const optimizeInterval = 4 * time.Hour

func (s *Store) runOptimize() {
	s.mu.Lock()
	err := sqlitex.ExecuteTransient(s.conn, "PRAGMA optimize", nil)
	s.mu.Unlock()
	if err != nil {
		s.logger.Warn("PRAGMA optimize failed", "error", err)
	}
	s.optimizeTimer = s.clock.AfterFunc(optimizeInterval, s.runOptimize)
}

// Close stops background timers and closes the connection.
func (s *Store) Close() error {
	if s.optimizeTimer != nil {
		s.optimizeTimer.Stop()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	if err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	s.logger.Info("store closed")
	return nil
}

// Changed returns a channel that is closed the next time a write
// commits successfully. Callers re-fetch and call Changed again for the
// next notification; the channel is never sent on, only closed.
func (s *Store) Changed() <-chan struct{} {
	s.changedMu.Lock()
	defer s.changedMu.Unlock()
	return s.changed
}

func (s *Store) notifyChanged() {
	s.changedMu.Lock()
	close(s.changed)
	s.changed = make(chan struct{})
	s.changedMu.Unlock()
}

// withConn serialises access to the single connection for the duration
// of fn. ctx is accepted for symmetry with the rest of the codebase's
// blocking operations, but the mutex itself does not honor cancellation
// since every held-lock operation is a short, local SQLite call.
func (s *Store) withConn(ctx context.Context, operation string, fn func(conn *sqlite.Conn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return &Error{Kind: KindTransient, Operation: operation, Err: fmt.Errorf("store is closed")}
	}
	if err := fn(s.conn); err != nil {
		return wrapErr(operation, err)
	}
	return nil
}

// withWrite is withConn plus a change notification on success.
func (s *Store) withWrite(ctx context.Context, operation string, fn func(conn *sqlite.Conn) error) error {
	err := s.withConn(ctx, operation, fn)
	if err == nil {
		s.notifyChanged()
	}
	return err
}
