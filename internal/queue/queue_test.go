// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"sync"
	"testing"

	"github.com/mesh-companion/meshbot/internal/meshproto"
)

func TestFIFOOrder(t *testing.T) {
	q := New()
	q.Enqueue(Transmission{Packet: &meshproto.MeshPacket{ID: 1}, PacketType: "text"})
	q.Enqueue(Transmission{Packet: &meshproto.MeshPacket{ID: 2}, PacketType: "text"})
	q.Enqueue(Transmission{Packet: &meshproto.MeshPacket{ID: 3}, PacketType: "text"})

	for _, want := range []uint32{1, 2, 3} {
		tx, ok := q.Dequeue()
		if !ok {
			t.Fatalf("Dequeue() ok=false, want a transmission with ID %d", want)
		}
		if tx.Packet.ID != want {
			t.Fatalf("Dequeue() ID = %d, want %d", tx.Packet.ID, want)
		}
	}

	if _, ok := q.Dequeue(); ok {
		t.Fatal("Dequeue() on an empty queue returned ok=true")
	}
}

func TestDepthTracksEnqueueDequeue(t *testing.T) {
	q := New()
	if q.Depth() != 0 {
		t.Fatalf("Depth() = %d, want 0", q.Depth())
	}
	q.Enqueue(Transmission{Packet: &meshproto.MeshPacket{ID: 1}})
	if q.Depth() != 1 {
		t.Fatalf("Depth() = %d, want 1", q.Depth())
	}
	q.Dequeue()
	if q.Depth() != 0 {
		t.Fatalf("Depth() = %d, want 0", q.Depth())
	}
}

func TestConcurrentEnqueueDoesNotBlockDrain(t *testing.T) {
	q := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id uint32) {
			defer wg.Done()
			q.Enqueue(Transmission{Packet: &meshproto.MeshPacket{ID: id}})
		}(uint32(i))
	}
	wg.Wait()

	count := 0
	for {
		if _, ok := q.Dequeue(); !ok {
			break
		}
		count++
	}
	if count != 50 {
		t.Fatalf("drained %d transmissions, want 50", count)
	}
}
