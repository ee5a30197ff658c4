// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package correlate

import (
	"context"
	"testing"
	"time"

	"github.com/mesh-companion/meshbot/internal/clock"
	"github.com/mesh-companion/meshbot/internal/meshproto"
	"github.com/mesh-companion/meshbot/internal/store"
)

func newTestSetup(t *testing.T, myNode uint32) (*store.Store, *Correlator) {
	t.Helper()
	c := clock.Fake(time.Unix(1_700_000_000, 0))
	s, err := store.Open(":memory:", c, nil)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, New(s, myNode, nil)
}

// TestOriginatedTraceroutePromotesToComplete mirrors the spec's scenario
// 3: a traceroute we originated to 0xBBBB is promoted to complete once a
// reply with a decoded RouteDiscovery arrives.
func TestOriginatedTraceroutePromotesToComplete(t *testing.T) {
	const myNode, target = uint32(0xAAAA), uint32(0xBBBB)
	const requestID = uint32(0x01020304)
	s, corr := newTestSetup(t, myNode)
	ctx := context.Background()

	reqPacketID := requestID
	if err := corr.Observe(ctx, Observation{
		Port: meshproto.PortTraceroute, From: myNode, To: target,
		RequestID: requestID, ResponseFor: 0, At: 1000, PacketID: &reqPacketID,
		Payload: meshproto.EncodeRouteDiscovery(&meshproto.RouteDiscovery{}),
	}); err != nil {
		t.Fatalf("Observe(request): %v", err)
	}

	sess, err := s.GetSessionByTraceKey(ctx, "req:AAAA:BBBB:01020304")
	if err != nil {
		t.Fatalf("GetSessionByTraceKey: %v", err)
	}
	if sess == nil {
		t.Fatal("expected a session row keyed req:AAAA:BBBB:01020304")
	}
	if sess.Status != store.StatusObserved {
		t.Fatalf("Status = %s, want observed", sess.Status)
	}
	if sess.RequestPacketID == nil || *sess.RequestPacketID != requestID {
		t.Fatalf("RequestPacketID = %v, want %08X", sess.RequestPacketID, requestID)
	}

	const X, Y = uint32(0x1111), uint32(0x2222)
	rssi, snr, hopCount, hopStart := int32(-80), 3.0, int32(2), int32(4)
	replyPacketID := uint32(0x05060708)
	if err := corr.Observe(ctx, Observation{
		Port: meshproto.PortTraceroute, From: target, To: myNode,
		RequestID: replyPacketID, ResponseFor: requestID, At: 1010,
		RSSI: &rssi, SNR: &snr, HopCount: &hopCount, HopStart: &hopStart, PacketID: &replyPacketID,
		Payload: meshproto.EncodeRouteDiscovery(&meshproto.RouteDiscovery{
			Route: []uint32{X, Y}, RouteBack: []uint32{Y, X},
		}),
	}); err != nil {
		t.Fatalf("Observe(reply): %v", err)
	}

	sess, err = s.GetSessionByTraceKey(ctx, "req:AAAA:BBBB:01020304")
	if err != nil {
		t.Fatal(err)
	}
	if sess.Status != store.StatusComplete {
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

	hops, err := s.ListHops(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(hops) != 4 {
		t.Fatalf("len(hops) = %d, want 4: %+v", len(hops), hops)
	}
	want := map[string]bool{
		"request:0:4369":   true, // X = 0x1111 = 4369
		"request:1:8738":   true, // Y = 0x2222 = 8738
		"response:0:8738":  true,
		"response:1:4369":  true,
	}
	for _, h := range hops {
		key := h.Direction + ":" + itoa(h.HopIndex) + ":" + itoa(int(h.NodeID))
		if !want[key] {
			t.Fatalf("unexpected hop %+v", h)
		}
		if h.SourceKind != "route" && h.SourceKind != "route_back" {
			t.Fatalf("hop %+v has unexpected source_kind", h)
		}
	}
}

// TestThirdPartyTracerouteStaysPartial mirrors scenario 4: a traceroute
// between two other nodes, sniffed passively, never reaches complete even
// once its reply is correlated, and the request-side hops (already
// recorded when the request was sniffed) are not duplicated.
func TestThirdPartyTracerouteStaysPartial(t *testing.T) {
	const myNode = uint32(0xFFFF)
	const requester, replier = uint32(0x0C), uint32(0x0D)
	const requestID = uint32(0x42)
	s, corr := newTestSetup(t, myNode)
	ctx := context.Background()

	if err := corr.Observe(ctx, Observation{
		Port: meshproto.PortTraceroute, From: requester, To: replier,
		RequestID: requestID, ResponseFor: 0, At: 1000,
		Payload: meshproto.EncodeRouteDiscovery(&meshproto.RouteDiscovery{}),
	}); err != nil {
		t.Fatalf("Observe(request): %v", err)
	}

	sess, err := s.GetSessionByTraceKey(ctx, "in:C:D:00000042")
	if err != nil {
		t.Fatal(err)
	}
	if sess == nil {
		t.Fatal("expected session keyed in:C:D:00000042")
	}
	if sess.Status != store.StatusObserved {
		t.Fatalf("Status = %s, want observed", sess.Status)
	}

	const E = uint32(0x0E)
	replyPacketID := uint32(0x99)
	if err := corr.Observe(ctx, Observation{
		Port: meshproto.PortTraceroute, From: replier, To: requester,
		RequestID: replyPacketID, ResponseFor: requestID, At: 1010, PacketID: &replyPacketID,
		Payload: meshproto.EncodeRouteDiscovery(&meshproto.RouteDiscovery{Route: []uint32{E}}),
	}); err != nil {
		t.Fatalf("Observe(reply): %v", err)
	}

	sess, err = s.GetSessionByTraceKey(ctx, "in:C:D:00000042")
	if err != nil {
		t.Fatal(err)
	}
	if sess.Status != store.StatusPartial {
		t.Fatalf("Status = %s, want partial (in: sessions never reach complete)", sess.Status)
	}

	hops, err := s.ListHops(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	requestHops := 0
	for _, h := range hops {
		if h.Direction == "request" {
			requestHops++
		}
	}
	if requestHops != 0 {
		t.Fatalf("request-side hops were re-inserted from the reply side: %+v", hops)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
