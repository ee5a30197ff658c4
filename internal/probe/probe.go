// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package probe implements the traceroute auto-probe: a recurring timer
// that picks one node lacking an RF hop sample and sends it a traceroute,
// feeding the same correlation path as any traceroute the mesh happens
// to carry on its own.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/mesh-companion/meshbot/internal/clock"
	"github.com/mesh-companion/meshbot/internal/meshproto"
	"github.com/mesh-companion/meshbot/internal/queue"
	"github.com/mesh-companion/meshbot/internal/store"
)

// candidateWindows is the adaptive widening sequence: try the 10 most
// recently seen candidates first, and only look further if every one of
// them is cooling down.
var candidateWindows = []int{10, 25, 50, 100}

// Config holds the [traceroute_probe] settings from spec.md §6.
type Config struct {
	Enabled              bool
	Interval             time.Duration
	IntervalJitterPct    int
	RecentSeenWithinSecs int64
	PerNodeCooldownSecs  int64
	MeshChannel          uint32
}

// Scheduler owns the probe tick and the candidate-selection logic. It
// holds no connection state of its own; it only enqueues transmissions
// and records sessions, the same way any other producer does.
type Scheduler struct {
	store     *store.Store
	queue     *queue.Queue
	cooldowns *clock.Cooldowns
	clock     clock.Clock
	logger    *slog.Logger

	cfg    Config
	myNode func() uint32
}

// New builds a Scheduler. myNode is called fresh on every tick rather
// than captured once, since the companion's own node id is only learned
// after the radio connection's first MyInfo frame — which can arrive, or
// change across a reconnect, after the Scheduler is constructed.
func New(s *store.Store, q *queue.Queue, cooldowns *clock.Cooldowns, c clock.Clock, myNode func() uint32, cfg Config, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{store: s, queue: q, cooldowns: cooldowns, clock: c, cfg: cfg, myNode: myNode, logger: logger}
}

// Start arms the recurring jittered probe timer. It is a no-op, returning
// nil, if the feature is disabled. The returned Timer's Stop should be
// called when the event loop shuts down.
func (sc *Scheduler) Start(ctx context.Context) *clock.Timer {
	if !sc.cfg.Enabled {
		return nil
	}
	return clock.AfterJittered(sc.clock, sc.cfg.Interval, sc.cfg.IntervalJitterPct, func() {
		if err := sc.Tick(ctx); err != nil {
			sc.logger.Error("probe tick failed", "error", err)
		}
	})
}

// Tick runs one probe cycle: select a candidate, if any, and enqueue a
// traceroute for it. It never returns an error for "no eligible
// candidate" — that's the expected steady-state outcome once the mesh is
// fully probed, logged rather than surfaced as a failure.
func (sc *Scheduler) Tick(ctx context.Context) error {
	if sc.myNode() == 0 {
		sc.logger.Debug("probe tick skipped: my_node_id not yet known")
		return nil
	}

	now := sc.clock.Now().Unix()

	candidate, windowUsed, err := sc.selectCandidate(ctx, now)
	if err != nil {
		return fmt.Errorf("probe: selecting candidate: %w", err)
	}
	if candidate == nil {
		sc.logger.Info("no eligible probe candidate", "windows_tried", candidateWindows)
		return nil
	}

	if err := sc.send(ctx, *candidate, now); err != nil {
		return fmt.Errorf("probe: sending to %08x: %w", *candidate, err)
	}

	sc.cooldowns.Start(*candidate, time.Duration(sc.cfg.PerNodeCooldownSecs)*time.Second)
	sc.logger.Info("probe sent", "target", fmt.Sprintf("%08x", *candidate), "window", windowUsed)
	return nil
}

// selectCandidate widens through candidateWindows until it finds a node
// that isn't cooling down, or exhausts every window.
func (sc *Scheduler) selectCandidate(ctx context.Context, now int64) (*uint32, int, error) {
	for _, window := range candidateWindows {
		nodes, err := sc.store.CandidateNodesForProbe(ctx, now, sc.cfg.RecentSeenWithinSecs, sc.myNode(), window)
		if err != nil {
			return nil, 0, err
		}
		for _, node := range nodes {
			if sc.cooldowns.Active(node) {
				continue
			}
			return &node, window, nil
		}
	}
	return nil, 0, nil
}

// send builds and enqueues a traceroute request packet for target,
// recording the session the correlator will later promote when a reply
// arrives.
func (sc *Scheduler) send(ctx context.Context, target uint32, now int64) error {
	us := sc.myNode()
	requestID := rand.Uint32()

	packet := &meshproto.MeshPacket{
		From:     us,
		To:       target,
		Channel:  sc.cfg.MeshChannel,
		ID:       requestID,
		HopLimit: 7,
		Decoded: &meshproto.Data{
			PortNum:      meshproto.PortTraceroute,
			Payload:      meshproto.EncodeRouteDiscovery(&meshproto.RouteDiscovery{}),
			WantResponse: true,
			Dest:         target,
			Source:       us,
		},
	}

	traceKey := traceKeyFor(us, target, requestID)
	if _, err := sc.store.CreateSession(ctx, store.TracerouteSession{
		TraceKey:        traceKey,
		SrcNode:         us,
		DstNode:         &target,
		FirstSeen:       now,
		LastSeen:        now,
		ViaMQTT:         false,
		Status:          store.StatusObserved,
		RequestPacketID: &requestID,
	}); err != nil {
		return fmt.Errorf("recording session %s: %w", traceKey, err)
	}

	sc.queue.Enqueue(queue.Transmission{Packet: packet, PacketType: "traceroute"})
	return nil
}

// traceKeyFor builds the session key for a probe we originated, matching
// the correlator's "req:" key format so a later reply finds this session.
func traceKeyFor(us, target, requestID uint32) string {
	return fmt.Sprintf("req:%X:%X:%08X", us, target, requestID)
}
