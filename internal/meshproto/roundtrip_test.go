// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package meshproto

import (
	"reflect"
	"testing"
)

func TestMeshPacketRoundTrip(t *testing.T) {
	pkt := &MeshPacket{
		From:     0xAAAA,
		To:       0xBBBB,
		Channel:  0,
		ID:       0x01020304,
		HopLimit: 3,
		HopStart: 3,
		RxRSSI:   -70,
		RxSNR:    7.5,
		ViaMQTT:  false,
		Decoded: &Data{
			PortNum: PortTextMessage,
			Payload: []byte("!ping"),
		},
	}

	decoded, err := DecodeMeshPacket(EncodeMeshPacket(pkt))
	if err != nil {
		t.Fatalf("DecodeMeshPacket: %v", err)
	}
	if !reflect.DeepEqual(pkt, decoded) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", decoded, pkt)
	}
}

func TestMeshPacketBroadcastTo(t *testing.T) {
	pkt := &MeshPacket{From: 1, To: 0, ID: 5}
	decoded, err := DecodeMeshPacket(EncodeMeshPacket(pkt))
	if err != nil {
		t.Fatalf("DecodeMeshPacket: %v", err)
	}
	if decoded.To != 0 {
		t.Fatalf("To = %d, want 0 (broadcast)", decoded.To)
	}
}

func TestFromRadioMyInfoRoundTrip(t *testing.T) {
	fr := &FromRadio{MyInfo: &MyInfo{MyNodeNum: 0xAAAA}}
	decoded, err := DecodeFromRadio(EncodeFromRadio(fr))
	if err != nil {
		t.Fatalf("DecodeFromRadio: %v", err)
	}
	if decoded.MyInfo == nil || decoded.MyInfo.MyNodeNum != 0xAAAA {
		t.Fatalf("MyInfo = %+v, want MyNodeNum 0xAAAA", decoded.MyInfo)
	}
}

func TestFromRadioNodeInfoRoundTrip(t *testing.T) {
	fr := &FromRadio{
		NodeInfo: &NodeInfo{
			Num:      0x1234,
			User:     &User{ID: "!00001234", LongName: "Test Node", ShortName: "TST"},
			Position: &Position{LatitudeI: 407128000, LongitudeI: -740060000, HasCoords: true},
		},
	}
	decoded, err := DecodeFromRadio(EncodeFromRadio(fr))
	if err != nil {
		t.Fatalf("DecodeFromRadio: %v", err)
	}
	if !reflect.DeepEqual(fr.NodeInfo, decoded.NodeInfo) {
		t.Fatalf("NodeInfo round trip mismatch:\n got %+v\nwant %+v", decoded.NodeInfo, fr.NodeInfo)
	}
}

func TestRouteDiscoveryRoundTrip(t *testing.T) {
	rd := &RouteDiscovery{
		Route:      []uint32{0x1111, 0x2222},
		SNRTowards: []int32{-12, 8},
		RouteBack:  []uint32{0x2222, 0x1111},
		SNRBack:    []int32{4, -6},
	}
	decoded, err := DecodeRouteDiscovery(EncodeRouteDiscovery(rd))
	if err != nil {
		t.Fatalf("DecodeRouteDiscovery: %v", err)
	}
	if !reflect.DeepEqual(rd, decoded) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", decoded, rd)
	}
}

// TestRoutingWrapsRouteDiscovery exercises the pitfall called out in the
// design docs: the routing app port carries a Routing wrapper, not a bare
// RouteDiscovery, even though both shapes contain a route vector.
func TestRoutingWrapsRouteDiscovery(t *testing.T) {
	inner := &RouteDiscovery{Route: []uint32{0xAAAA, 0xBBBB}, RouteBack: []uint32{0xBBBB, 0xAAAA}}
	routing := &Routing{RouteReply: inner}

	encoded := EncodeRouting(routing)

	decoded, err := DecodeRouting(encoded)
	if err != nil {
		t.Fatalf("DecodeRouting: %v", err)
	}
	if decoded.RouteReply == nil || !reflect.DeepEqual(decoded.RouteReply.Route, inner.Route) {
		t.Fatalf("DecodeRouting did not recover the nested route: %+v", decoded.RouteReply)
	}

	// Decoding the same bytes as a bare RouteDiscovery must not silently
	// recover the same route vector — field 1 of Routing is the
	// length-delimited route_reply, not a packed uint32 like
	// RouteDiscovery.route, so this mismatches and should end up empty.
	misdecoded, err := DecodeRouteDiscovery(encoded)
	if err != nil {
		t.Fatalf("DecodeRouteDiscovery: %v", err)
	}
	if len(misdecoded.Route) != 0 {
		t.Fatalf("expected empty route when misdecoding a Routing wrapper as bare RouteDiscovery, got %v", misdecoded.Route)
	}
}

func TestDataRoundTrip(t *testing.T) {
	d := &Data{
		PortNum:      PortTraceroute,
		Payload:      []byte{},
		WantResponse: true,
		Dest:         0xBBBB,
		Source:       0xAAAA,
		RequestID:    0x01020304,
	}
	pkt := &MeshPacket{From: 0xAAAA, To: 0xBBBB, ID: 99, Decoded: d}
	decoded, err := DecodeMeshPacket(EncodeMeshPacket(pkt))
	if err != nil {
		t.Fatalf("DecodeMeshPacket: %v", err)
	}
	if decoded.Decoded.RequestID != d.RequestID || decoded.Decoded.PortNum != d.PortNum {
		t.Fatalf("Data round trip mismatch: got %+v, want %+v", decoded.Decoded, d)
	}
}

func TestPortNumString(t *testing.T) {
	cases := map[PortNum]string{
		PortTextMessage:  "text",
		PortPosition:     "position",
		PortNodeInfo:     "nodeinfo",
		PortTelemetry:    "telemetry",
		PortTraceroute:   "traceroute",
		PortNeighborInfo: "neighborinfo",
		PortRouting:      "routing",
		PortAdmin:        "other",
	}
	for port, want := range cases {
		if got := port.String(); got != want {
			t.Errorf("PortNum(%d).String() = %q, want %q", port, got, want)
		}
	}
}
