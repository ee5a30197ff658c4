// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"math/rand"
	"time"
)

// JitteredInterval returns base plus a uniformly random extra delay of up
// to jitterPct percent of base. jitterPct <= 0 returns base unchanged.
//
// The probe scheduler uses this to avoid every companion process on a
// mesh waking to probe at the same instant.
func JitteredInterval(base time.Duration, jitterPct int) time.Duration {
	if jitterPct <= 0 || base <= 0 {
		return base
	}
	maxExtra := base * time.Duration(jitterPct) / 100
	if maxExtra <= 0 {
		return base
	}
	return base + time.Duration(rand.Int63n(int64(maxExtra)+1))
}

// AfterJittered schedules f to run after JitteredInterval(base, jitterPct)
// elapses, then reschedules itself with a freshly rolled jitter each time.
// Returns a Timer whose Stop cancels the recurring schedule.
//
// Unlike a Ticker, each firing picks new jitter — a plain jittered ticker
// would either fix the jitter for the ticker's lifetime or require manual
// Reset bookkeeping at every call site.
func AfterJittered(c Clock, base time.Duration, jitterPct int, f func()) *Timer {
	var timer *Timer
	var stopped bool

	var schedule func()
	schedule = func() {
		if stopped {
			return
		}
		timer = c.AfterFunc(JitteredInterval(base, jitterPct), func() {
			f()
			schedule()
		})
	}
	schedule()

	return &Timer{
		stopFunc: func() bool {
			if stopped {
				return false
			}
			stopped = true
			if timer != nil {
				return timer.Stop()
			}
			return true
		},
		resetFunc: func(time.Duration) bool { return false },
	}
}
