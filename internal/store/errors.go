// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"errors"
	"fmt"

	"zombiezen.com/go/sqlite"
)

// Kind classifies a Store failure so callers know whether to retry.
type Kind int

const (
	// KindTransient covers lock contention and other conditions a
	// caller can retry: busy/locked database, I/O hiccups.
	KindTransient Kind = iota
	// KindCorruption means the database file itself is unreadable or
	// malformed. Not retryable; the process should surface this loudly.
	KindCorruption
	// KindIntegrityViolation means a constraint (unique, not-null,
	// check) rejected the write. Not retryable without changing the
	// input.
	KindIntegrityViolation
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindCorruption:
		return "corruption"
	case KindIntegrityViolation:
		return "integrity_violation"
	default:
		return "unknown"
	}
}

// Error wraps a SQLite failure with its classification. Operation names the
// Store method that failed (e.g. "UpsertNode"), for log context.
type Error struct {
	Kind      Kind
	Operation string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store: %s: %s: %v", e.Operation, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable Store error.
func IsTransient(err error) bool { return kindOf(err) == KindTransient }

// IsCorruption reports whether err indicates database corruption.
func IsCorruption(err error) bool { return kindOf(err) == KindCorruption }

func kindOf(err error) Kind {
	var storeErr *Error
	if errors.As(err, &storeErr) {
		return storeErr.Kind
	}
	return KindTransient
}

// wrapErr classifies a raw sqlite/sqlitex error and attaches the operation
// name. Returns nil if err is nil.
func wrapErr(operation string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: classify(err), Operation: operation, Err: err}
}

// classify maps a SQLite result code to a Store Kind. Codes outside the
// small set checked here (most I/O and protocol errors) default to
// transient, matching the "retry once, then surface as log-warn" guidance:
// an unclassified failure is safer to retry than to treat as fatal.
func classify(err error) Kind {
	code := sqlite.ErrCode(err)
	switch code.ToPrimary() {
	case sqlite.ResultBusy, sqlite.ResultLocked, sqlite.ResultIOErr, sqlite.ResultCantOpen, sqlite.ResultProtocol, sqlite.ResultInterrupt:
		return KindTransient
	case sqlite.ResultCorrupt, sqlite.ResultNotADB:
		return KindCorruption
	case sqlite.ResultConstraint:
		return KindIntegrityViolation
	default:
		return KindTransient
	}
}
