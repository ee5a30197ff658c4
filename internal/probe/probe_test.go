// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package probe

import (
	"context"
	"testing"
	"time"

	"github.com/mesh-companion/meshbot/internal/clock"
	"github.com/mesh-companion/meshbot/internal/queue"
	"github.com/mesh-companion/meshbot/internal/store"
)

const myNode = uint32(0xAAAA)

func newTestScheduler(t *testing.T) (*store.Store, clock.Clock, *clock.Cooldowns, *queue.Queue, *Scheduler) {
	t.Helper()
	c := clock.Fake(time.Unix(1_700_000_000, 0))
	s, err := store.Open(":memory:", c, nil)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	q := queue.New()
	cooldowns := clock.NewCooldowns(c)
	cfg := Config{
		Enabled:              true,
		Interval:             15 * time.Minute,
		IntervalJitterPct:    20,
		RecentSeenWithinSecs: 3600,
		PerNodeCooldownSecs:  1800,
		MeshChannel:          0,
	}
	sc := New(s, q, cooldowns, c, func() uint32 { return myNode }, cfg, nil)
	return s, c, cooldowns, q, sc
}

func seedNode(t *testing.T, s *store.Store, nodeID uint32, lastSeen int64) {
	t.Helper()
	if err := s.UpsertNode(context.Background(), store.NodeObservation{
		NodeID: nodeID, ShortName: "NODE", LongName: "Node", At: lastSeen,
	}); err != nil {
		t.Fatalf("UpsertNode(%08x): %v", nodeID, err)
	}
}

// TestTickPicksMostRecentCandidate covers the plain path: one eligible
// node, no cooldowns in effect.
func TestTickPicksMostRecentCandidate(t *testing.T) {
	s, c, _, q, sc := newTestScheduler(t)
	ctx := context.Background()
	seedNode(t, s, 0xBBBB, c.Now().Unix())

	if err := sc.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	tx, ok := q.Dequeue()
	if !ok {
		t.Fatal("expected an enqueued transmission")
	}
	if tx.Packet.To != 0xBBBB || tx.PacketType != "traceroute" {
		t.Fatalf("unexpected transmission: %+v", tx.Packet)
	}

	sess, err := s.GetSessionByTraceKey(ctx, traceKeyFor(myNode, 0xBBBB, tx.Packet.ID))
	if err != nil {
		t.Fatalf("GetSessionByTraceKey: %v", err)
	}
	if sess == nil {
		t.Fatal("expected a session row to be recorded")
	}
	if sess.Status != store.StatusObserved || sess.RequestPacketID == nil || *sess.RequestPacketID != tx.Packet.ID {
		t.Fatalf("unexpected session: %+v", sess)
	}
}

// TestTickExcludesOurselves mirrors candidate rule 1: we are never our
// own probe target even if our own node row happens to qualify otherwise.
func TestTickExcludesOurselves(t *testing.T) {
	s, c, _, q, sc := newTestScheduler(t)
	ctx := context.Background()
	seedNode(t, s, myNode, c.Now().Unix())

	if err := sc.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatal("expected no transmission: only candidate was ourselves")
	}
}

// TestTickSkipsStaleNodes mirrors candidate rule 1's recent_seen_within_secs
// bound.
func TestTickSkipsStaleNodes(t *testing.T) {
	s, c, _, q, sc := newTestScheduler(t)
	ctx := context.Background()
	seedNode(t, s, 0xBBBB, c.Now().Unix()-7200) // older than the 3600s window

	if err := sc.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatal("expected no transmission: only candidate is stale")
	}
}

// TestTickSkipsNodesWithStoredHop mirrors candidate rule 1: a node that
// already has an inbound RF hop sample isn't a candidate. The hop sample
// can come from any RF packet carrying hop metadata, not just a completed
// traceroute.
func TestTickSkipsNodesWithStoredHop(t *testing.T) {
	s, c, _, q, sc := newTestScheduler(t)
	ctx := context.Background()
	seedNode(t, s, 0xBBBB, c.Now().Unix())

	hopCount := int32(2)
	if err := s.InsertPacket(ctx, store.PacketObservation{
		Timestamp: c.Now().Unix(), FromNode: 0xBBBB, Direction: store.DirectionIncoming,
		ViaMQTT: false, HopCount: &hopCount, PacketType: "text",
	}); err != nil {
		t.Fatalf("InsertPacket: %v", err)
	}

	if err := sc.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatal("expected no transmission: only candidate already has a hop sample")
	}
}

// TestProbeStarvationAvoidance is the spec's literal scenario 5: three
// nodes missing RF hop samples are seen recently, the most-recent one is
// in cooldown, so selection should fall through to the second-most-recent.
func TestProbeStarvationAvoidance(t *testing.T) {
	s, c, cooldowns, q, sc := newTestScheduler(t)
	ctx := context.Background()

	now := c.Now().Unix()
	seedNode(t, s, 0xCCCC, now)    // most recent
	seedNode(t, s, 0xBBBB, now-10) // second most recent
	seedNode(t, s, 0xDDDD, now-20) // third most recent
	cooldowns.Start(0xCCCC, time.Hour)

	if err := sc.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	tx, ok := q.Dequeue()
	if !ok {
		t.Fatal("expected an enqueued transmission")
	}
	if tx.Packet.To != 0xBBBB {
		t.Fatalf("expected second-most-recent candidate 0xBBBB, got %08x", tx.Packet.To)
	}
}

// TestAllCandidatesCoolingExhaustsEveryWindow checks the other half of
// scenario 5: when every candidate in every widened window is cooling,
// the tick logs and enqueues nothing rather than erroring.
func TestAllCandidatesCoolingExhaustsEveryWindow(t *testing.T) {
	s, c, cooldowns, q, sc := newTestScheduler(t)
	ctx := context.Background()

	now := c.Now().Unix()
	seedNode(t, s, 0xBBBB, now)
	seedNode(t, s, 0xCCCC, now-5)
	cooldowns.Start(0xBBBB, time.Hour)
	cooldowns.Start(0xCCCC, time.Hour)

	if err := sc.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatal("expected no transmission: every candidate is cooling in every window")
	}
}

// TestTickStartsCooldownOnSentProbe ensures a successfully probed node
// won't be re-selected until per_node_cooldown_secs elapses.
func TestTickStartsCooldownOnSentProbe(t *testing.T) {
	s, c, cooldowns, _, sc := newTestScheduler(t)
	ctx := context.Background()
	seedNode(t, s, 0xBBBB, c.Now().Unix())

	if err := sc.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if !cooldowns.Active(0xBBBB) {
		t.Fatal("expected 0xBBBB to be in cooldown after being probed")
	}
}

// TestDisabledSchedulerDoesNotArm covers Start's early return when the
// feature is off.
func TestDisabledSchedulerDoesNotArm(t *testing.T) {
	_, _, _, _, sc := newTestScheduler(t)
	sc.cfg.Enabled = false
	if timer := sc.Start(context.Background()); timer != nil {
		t.Fatal("expected Start to return nil when disabled")
	}
}
