// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time so the event loop, queue pacing, and probe
// scheduler can be driven deterministically in tests.
//
// Production wiring injects Real(); tests inject Fake() and advance time
// explicitly. Every place that would otherwise call time.Now, time.After,
// time.NewTicker, time.AfterFunc, or time.Sleep takes a Clock instead.
package clock

import "time"

// Clock is the seam between the scheduler and wall-clock time.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the time once d elapses.
	// If d <= 0 the channel is ready immediately.
	After(d time.Duration) <-chan time.Time

	// AfterFunc calls f after d elapses and returns a Timer that can
	// cancel the pending call. The Timer's C field is nil, matching
	// time.AfterFunc.
	AfterFunc(d time.Duration, f func()) *Timer

	// NewTicker returns a Ticker delivering ticks on C every d. Panics
	// if d <= 0.
	NewTicker(d time.Duration) *Ticker

	// Sleep blocks the calling goroutine for at least d.
	Sleep(d time.Duration)
}

// Ticker wraps a periodic timer. Read ticks from C; call Stop when done.
//
// C has capacity 1, matching time.Ticker: a consumer that falls behind
// misses ticks rather than queuing them.
type Ticker struct {
	C <-chan time.Time

	stopFunc  func()
	resetFunc func(time.Duration)
}

// Stop turns off the ticker. No further ticks arrive on C. Stop does not
// close C.
func (t *Ticker) Stop() { t.stopFunc() }

// Reset restarts the tick cycle at a new interval.
func (t *Ticker) Reset(d time.Duration) { t.resetFunc(d) }

// Timer represents a scheduled one-shot event. For AfterFunc timers, C is
// nil — the callback fires on its own goroutine (or synchronously, for the
// fake clock) instead.
type Timer struct {
	C <-chan time.Time

	stopFunc  func() bool
	resetFunc func(time.Duration) bool
}

// Stop prevents the Timer from firing. Returns true if the call stopped
// the timer before it fired.
func (t *Timer) Stop() bool { return t.stopFunc() }

// Reset reschedules the Timer to fire after d. Returns true if the timer
// was still pending before the reset.
func (t *Timer) Reset(d time.Duration) bool { return t.resetFunc(d) }
