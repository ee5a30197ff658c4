// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package queue implements the outgoing transmission queue: a FIFO of
// packets awaiting radio send, paced by a single drain site so producers
// (modules, bridges, the probe scheduler) can never burst the radio
// faster than send_delay_ms allows.
package queue

import (
	"sync"
	"sync/atomic"

	"github.com/mesh-companion/meshbot/internal/meshproto"
)

// Transmission is one outgoing packet plus enough context to log it once
// it's sent.
type Transmission struct {
	Packet *meshproto.MeshPacket
	// PacketType labels this transmission for the packets table
	// ("text", "traceroute", ...); set by the producer.
	PacketType string
}

// Queue is a mutex-guarded FIFO. Enqueue is called by any number of
// producer goroutines; Dequeue is called by exactly one consumer, the
// event loop's send-tick handler. depth mirrors len(items) as an atomic
// so the dashboard can read queue depth without contending with the
// drain site's mutex.
type Queue struct {
	mu    sync.Mutex
	items []Transmission
	depth atomic.Int64
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{}
}

// Enqueue appends t to the back of the queue. Never blocks the drain
// site — it only ever holds mu for the duration of the append.
func (q *Queue) Enqueue(t Transmission) {
	q.mu.Lock()
	q.items = append(q.items, t)
	q.mu.Unlock()
	q.depth.Add(1)
}

// Dequeue removes and returns the front of the queue. ok is false if the
// queue was empty.
func (q *Queue) Dequeue() (t Transmission, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Transmission{}, false
	}
	t = q.items[0]
	q.items = q.items[1:]
	q.depth.Add(-1)
	return t, true
}

// Depth reports the current queue length for read-only observation (the
// dashboard's queue-depth endpoint).
func (q *Queue) Depth() int {
	return int(q.depth.Load())
}
