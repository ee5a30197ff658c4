// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"time"
)

// Cooldowns tracks a per-key "not before" deadline, e.g. keeping the probe
// scheduler from re-targeting the same node more often than
// per_node_cooldown_secs.
//
// Cooldowns is safe for concurrent use.
type Cooldowns struct {
	clock Clock

	mu       sync.Mutex
	deadline map[uint32]time.Time
}

// NewCooldowns returns an empty tracker driven by c.
func NewCooldowns(c Clock) *Cooldowns {
	return &Cooldowns{clock: c, deadline: make(map[uint32]time.Time)}
}

// Active reports whether key is still cooling down.
func (co *Cooldowns) Active(key uint32) bool {
	co.mu.Lock()
	defer co.mu.Unlock()
	until, ok := co.deadline[key]
	if !ok {
		return false
	}
	return co.clock.Now().Before(until)
}

// Start begins a cooldown of duration d for key, replacing any existing
// cooldown for that key.
func (co *Cooldowns) Start(key uint32, d time.Duration) {
	co.mu.Lock()
	defer co.mu.Unlock()
	co.deadline[key] = co.clock.Now().Add(d)
}

// Clear removes any cooldown for key.
func (co *Cooldowns) Clear(key uint32) {
	co.mu.Lock()
	defer co.mu.Unlock()
	delete(co.deadline, key)
}
