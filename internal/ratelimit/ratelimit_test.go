// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ratelimit

import (
	"testing"
	"time"

	"github.com/mesh-companion/meshbot/internal/clock"
)

func TestAllowsUpToMaxWithinWindow(t *testing.T) {
	c := clock.Fake(time.Unix(1000, 0))
	l := New(c, 3, 60)

	for i := 0; i < 3; i++ {
		if !l.Allow(0xAAAA) {
			t.Fatalf("admission %d should be allowed", i)
		}
	}
	if l.Allow(0xAAAA) {
		t.Fatal("4th admission within the window should be rejected")
	}
}

func TestWindowSlidesOverTime(t *testing.T) {
	c := clock.Fake(time.Unix(1000, 0))
	l := New(c, 1, 60)

	if !l.Allow(1) {
		t.Fatal("first admission should be allowed")
	}
	if l.Allow(1) {
		t.Fatal("second admission before the window elapses should be rejected")
	}

	c.Advance(61 * time.Second)
	if !l.Allow(1) {
		t.Fatal("admission after the window elapses should be allowed")
	}
}

func TestSendersAreIndependent(t *testing.T) {
	c := clock.Fake(time.Unix(1000, 0))
	l := New(c, 1, 60)

	if !l.Allow(1) {
		t.Fatal("sender 1's first admission should be allowed")
	}
	if !l.Allow(2) {
		t.Fatal("sender 2's admission should be unaffected by sender 1's usage")
	}
}

func TestZeroMaxAlwaysAllows(t *testing.T) {
	c := clock.Fake(time.Unix(1000, 0))
	l := New(c, 0, 60)
	for i := 0; i < 100; i++ {
		if !l.Allow(1) {
			t.Fatal("max=0 should mean rate limiting is disabled")
		}
	}
}
