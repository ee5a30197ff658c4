// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"testing"
)

func TestCreateSessionAndGetByTraceKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	reqID := uint32(0x01020304)
	dst := uint32(0xBBBB)
	id, err := s.CreateSession(ctx, TracerouteSession{
		TraceKey: "req:AAAA:BBBB:01020304", SrcNode: 0xAAAA, DstNode: &dst,
		FirstSeen: 1000, LastSeen: 1000, Status: StatusObserved, RequestPacketID: &reqID,
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	sess, err := s.GetSessionByTraceKey(ctx, "req:AAAA:BBBB:01020304")
	if err != nil {
		t.Fatalf("GetSessionByTraceKey: %v", err)
	}
	if sess == nil || sess.ID != id {
		t.Fatalf("GetSessionByTraceKey = %+v, want id %d", sess, id)
	}
	if sess.Status != StatusObserved {
		t.Fatalf("Status = %s, want observed", sess.Status)
	}
	if sess.RequestPacketID == nil || *sess.RequestPacketID != reqID {
		t.Fatalf("RequestPacketID = %v, want %d", sess.RequestPacketID, reqID)
	}
}

// TestOriginatedTraceroutePromotesToComplete stores the end state of the
// spec's scenario 3 (status complete, request_hops 2, response hops 2 of
// 4, four route/route_back hop rows) on an originated session and checks
// the store reads it back. The promotion and derivation themselves are
// done by internal/correlate and tested there.
func TestOriginatedTraceroutePromotesToComplete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dst := uint32(0xBBBB)
	reqID := uint32(0x01020304)
	id, err := s.CreateSession(ctx, TracerouteSession{
		TraceKey: "req:AAAA:BBBB:01020304", SrcNode: 0xAAAA, DstNode: &dst,
		FirstSeen: 1000, LastSeen: 1000, Status: StatusObserved, RequestPacketID: &reqID,
	})
	if err != nil {
		t.Fatal(err)
	}

	const X, Y = uint32(0x1111), uint32(0x2222)
	if err := s.InsertHop(ctx, TracerouteHop{SessionID: id, Direction: "request", HopIndex: 0, NodeID: X, ObservedAt: 1010, SourceKind: "route"}); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertHop(ctx, TracerouteHop{SessionID: id, Direction: "request", HopIndex: 1, NodeID: Y, ObservedAt: 1010, SourceKind: "route"}); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertHop(ctx, TracerouteHop{SessionID: id, Direction: "response", HopIndex: 0, NodeID: Y, ObservedAt: 1010, SourceKind: "route_back"}); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertHop(ctx, TracerouteHop{SessionID: id, Direction: "response", HopIndex: 1, NodeID: X, ObservedAt: 1010, SourceKind: "route_back"}); err != nil {
		t.Fatal(err)
	}

	reqHops, respHops, respStart := int32(2), int32(2), int32(4)
	if err := s.UpdateSession(ctx, id, SessionUpdate{
		LastSeen: 1010, Status: StatusComplete, SampleCountDelta: 1,
		RequestHopCount: &reqHops, ResponseHopCount: &respHops, ResponseHopStart: &respStart,
	}); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}

	sess, err := s.GetSession(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if sess.Status != StatusComplete {
		t.Fatalf("Status = %s, want complete", sess.Status)
	}
	if sess.RequestHopCount == nil || *sess.RequestHopCount != 2 {
		t.Fatalf("RequestHopCount = %v, want 2", sess.RequestHopCount)
	}
	if sess.ResponseHopCount == nil || *sess.ResponseHopCount != 2 {
		t.Fatalf("ResponseHopCount = %v, want 2", sess.ResponseHopCount)
	}
	if sess.ResponseHopStart == nil || *sess.ResponseHopStart != 4 {
		t.Fatalf("ResponseHopStart = %v, want 4", sess.ResponseHopStart)
	}

	hops, err := s.ListHops(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(hops) != 4 {
		t.Fatalf("len(hops) = %d, want 4", len(hops))
	}
}

// TestPassivelyObservedSessionNeverReachesComplete stores an "in:" session
// at partial, the highest status the correlator gives such sessions, and
// checks that inserting the same hop twice leaves one row (idempotent
// merge).
func TestPassivelyObservedSessionNeverReachesComplete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dst := uint32(0x0D)
	id, err := s.CreateSession(ctx, TracerouteSession{
		TraceKey: "in:0C:0D:00000042", SrcNode: 0x0C, DstNode: &dst,
		FirstSeen: 1000, LastSeen: 1000, Status: StatusObserved,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.InsertHop(ctx, TracerouteHop{SessionID: id, Direction: "response", HopIndex: 0, NodeID: 0x0E, ObservedAt: 1010, SourceKind: "route"}); err != nil {
		t.Fatal(err)
	}
	// Re-ingesting the identical hop must not create a second row.
	if err := s.InsertHop(ctx, TracerouteHop{SessionID: id, Direction: "response", HopIndex: 0, NodeID: 0x0E, ObservedAt: 1020, SourceKind: "route"}); err != nil {
		t.Fatal(err)
	}

	if err := s.UpdateSession(ctx, id, SessionUpdate{LastSeen: 1010, Status: StatusPartial, SampleCountDelta: 1}); err != nil {
		t.Fatal(err)
	}

	sess, err := s.GetSession(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if sess.Status != StatusPartial {
		t.Fatalf("Status = %s, want partial", sess.Status)
	}

	hops, err := s.ListHops(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(hops) != 1 {
		t.Fatalf("len(hops) = %d, want 1 (duplicate insert must be idempotent)", len(hops))
	}
}

func TestRecentSessionsOrdersByLastSeenDescending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.CreateSession(ctx, TracerouteSession{TraceKey: "req:A:B:1", SrcNode: 1, FirstSeen: 100, LastSeen: 100, Status: StatusObserved})
	s.CreateSession(ctx, TracerouteSession{TraceKey: "req:A:B:2", SrcNode: 1, FirstSeen: 200, LastSeen: 300, Status: StatusObserved})

	sessions, err := s.RecentSessions(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 || sessions[0].TraceKey != "req:A:B:2" {
		t.Fatalf("RecentSessions ordering wrong: %+v", sessions)
	}
}
