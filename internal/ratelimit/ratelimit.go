// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ratelimit admits or rejects text commands per sender using a
// sliding window: at most N admissions from one node in the trailing
// window, not a token-bucket refill rate. That distinction matters here
// because the spec's invariant is stated as a hard count within a
// window, not an average rate — a bucket that refills mid-window would
// admit a burst the window is supposed to forbid.
package ratelimit

import (
	"sync"

	"github.com/mesh-companion/meshbot/internal/clock"
)

// Limiter tracks recent admission timestamps per sender.
type Limiter struct {
	clock  clock.Clock
	max    int
	window func() int64 // window width in the same units as clock.Now().Unix()

	mu      sync.Mutex
	history map[uint32][]int64
}

// New returns a Limiter admitting at most max commands per sender within
// windowSecs seconds.
func New(c clock.Clock, max int, windowSecs int64) *Limiter {
	return &Limiter{
		clock:   c,
		max:     max,
		window:  func() int64 { return windowSecs },
		history: make(map[uint32][]int64),
	}
}

// Allow reports whether sender may issue another command right now, and
// if so, records the admission. Callers must not call Allow again for
// the same command if it returns false.
func (l *Limiter) Allow(sender uint32) bool {
	if l.max <= 0 {
		return true
	}
	now := l.clock.Now().Unix()
	windowStart := now - l.window()

	l.mu.Lock()
	defer l.mu.Unlock()

	times := l.history[sender]
	kept := times[:0]
	for _, t := range times {
		if t > windowStart {
			kept = append(kept, t)
		}
	}
	if len(kept) >= l.max {
		l.history[sender] = kept
		return false
	}
	l.history[sender] = append(kept, now)
	return true
}
