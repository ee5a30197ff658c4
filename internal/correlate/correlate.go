// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package correlate implements the traceroute session correlator: it
// turns a stream of observed traceroute/routing packets into
// store.TracerouteSession rows and hop rows, applying the session-keying,
// merge, and status-promotion rules that make replies findable by their
// original request.
package correlate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mesh-companion/meshbot/internal/meshproto"
	"github.com/mesh-companion/meshbot/internal/store"
)

// Correlator has no state of its own beyond the Store — every decision
// is re-derived from what's already persisted, so a restart loses
// nothing but in-flight timing precision.
type Correlator struct {
	store  *store.Store
	myNode uint32
	logger *slog.Logger
}

func New(s *store.Store, myNode uint32, logger *slog.Logger) *Correlator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Correlator{store: s, myNode: myNode, logger: logger}
}

// Observation is everything the event loop knows about one traceroute or
// routing packet, already classified by app port.
type Observation struct {
	Port        meshproto.PortNum // PortTraceroute or PortRouting
	From        uint32
	To          uint32 // 0 means broadcast
	RequestID   uint32 // MeshPacket.ID
	ResponseFor uint32 // Data.RequestID; 0 means this is a request, not a reply
	At          int64
	ViaMQTT     bool
	RSSI        *int32
	SNR         *float64
	HopCount    *int32
	HopStart    *int32
	PacketID    *uint32
	Payload     []byte
}

// Observe feeds one traceroute or routing packet through the correlator.
// It is safe to call for every packet on these two ports; requests and
// replies are told apart by ResponseFor being zero or not.
func (c *Correlator) Observe(ctx context.Context, obs Observation) error {
	route, routeBack, requestKind, responseKind, decodeErr := decodeRoute(obs.Port, obs.Payload)
	if decodeErr != nil {
		return fmt.Errorf("correlate: decoding payload: %w", decodeErr)
	}

	if obs.ResponseFor == 0 {
		return c.observeRequest(ctx, obs, route, routeBack, requestKind, responseKind)
	}
	return c.observeReply(ctx, obs, route, routeBack, requestKind, responseKind)
}

// decodeRoute extracts the forward/back route vectors regardless of
// whether the payload is a bare RouteDiscovery (traceroute app port) or a
// Routing wrapper (routing app port), and returns the hop source_kind
// tags appropriate to that provenance.
func decodeRoute(port meshproto.PortNum, payload []byte) (route, routeBack []uint32, requestKind, responseKind string, err error) {
	switch port {
	case meshproto.PortTraceroute:
		rd, err := meshproto.DecodeRouteDiscovery(payload)
		if err != nil {
			return nil, nil, "", "", err
		}
		return rd.Route, rd.RouteBack, "route", "route_back", nil
	case meshproto.PortRouting:
		r, err := meshproto.DecodeRouting(payload)
		if err != nil {
			return nil, nil, "", "", err
		}
		if r.RouteReply != nil {
			return r.RouteReply.Route, r.RouteReply.RouteBack, "routing_route", "routing_route_back", nil
		}
		if r.RouteRequest != nil {
			return r.RouteRequest.Route, r.RouteRequest.RouteBack, "routing_route", "routing_route_back", nil
		}
		return nil, nil, "routing_route", "routing_route_back", nil
	default:
		return nil, nil, "", "", fmt.Errorf("correlate: unsupported port %s", port)
	}
}

// traceKey computes the canonical session key per the request-id's
// originator: "req:" when we sent the request, "in:" when we merely
// observed it in transit.
func (c *Correlator) traceKey(from, to, requestID uint32) string {
	prefix := "in"
	if from == c.myNode {
		prefix = "req"
	}
	return fmt.Sprintf("%s:%X:%X:%08X", prefix, from, to, requestID)
}

func (c *Correlator) observeRequest(ctx context.Context, obs Observation, route, routeBack []uint32, requestKind, responseKind string) error {
	key := c.traceKey(obs.From, obs.To, obs.RequestID)

	sess, err := c.store.GetSessionByTraceKey(ctx, key)
	if err != nil {
		return err
	}
	if sess == nil {
		dst := obs.To
		var dstPtr *uint32
		if dst != 0 {
			dstPtr = &dst
		}
		id, err := c.store.CreateSession(ctx, store.TracerouteSession{
			TraceKey: key, SrcNode: obs.From, DstNode: dstPtr,
			FirstSeen: obs.At, LastSeen: obs.At, ViaMQTT: obs.ViaMQTT,
			Status: store.StatusObserved, SampleCount: 1,
			RequestPacketID: obs.PacketID,
			RequestHopCount: obs.HopCount, RequestHopStart: obs.HopStart,
		})
		if err != nil {
			return err
		}
		sess = &store.TracerouteSession{ID: id}
	} else {
		if err := c.store.UpdateSession(ctx, sess.ID, store.SessionUpdate{
			LastSeen: obs.At, Status: sess.Status, SampleCountDelta: 1,
			RequestHopCount: obs.HopCount, RequestHopStart: obs.HopStart,
		}); err != nil {
			return err
		}
	}

	return c.insertRouteHops(ctx, sess.ID, obs.At, obs.PacketID, route, routeBack, requestKind, responseKind, false)
}

func (c *Correlator) observeReply(ctx context.Context, obs Observation, route, routeBack []uint32, requestKind, responseKind string) error {
	// The reply is addressed from obs.From to obs.To; the request it
	// answers travelled the opposite direction, so the candidate key
	// reconstructs the request's own originator naming.
	requester, replier := obs.To, obs.From

	key := fmt.Sprintf("req:%X:%X:%08X", requester, replier, obs.ResponseFor)
	sess, err := c.store.GetSessionByTraceKey(ctx, key)
	if err != nil {
		return err
	}
	requestRouteEmpty := false
	if sess == nil {
		// Not a session we originated; look for the sniffed request under
		// the reversed in: key (we saw the request pass through us in its
		// original direction, requester -> replier).
		key = fmt.Sprintf("in:%X:%X:%08X", requester, replier, obs.ResponseFor)
		sess, err = c.store.GetSessionByTraceKey(ctx, key)
		if err != nil {
			return err
		}
		if sess == nil {
			// No pre-existing request row: per the correlator contract, no
			// session is forged for an orphan reply.
			c.logger.Debug("traceroute reply with no matching request", "requester", requester, "replier", replier, "request_id", obs.ResponseFor)
			return nil
		}
		requestRouteEmpty = true
	}

	newStatus := store.StatusPartial
	if sess.Status == store.StatusComplete {
		newStatus = store.StatusComplete
	}
	if isOriginatedKey(sess.TraceKey) && len(route) > 0 {
		newStatus = store.StatusComplete
	}

	var reqHops *int32
	if len(route) > 0 {
		n := int32(len(route))
		reqHops = &n
	}

	respHops, respStart := obs.HopCount, obs.HopStart
	if !isOriginatedKey(sess.TraceKey) {
		// A passively observed reply only uses us as a relay; its final
		// RF hop metadata is not observable here, so it stays null.
		respHops, respStart = nil, nil
	}
	if err := c.store.UpdateSession(ctx, sess.ID, store.SessionUpdate{
		LastSeen: obs.At, Status: newStatus, SampleCountDelta: 1,
		RequestHopCount: reqHops, ResponseHopCount: respHops, ResponseHopStart: respStart,
		ResponsePacketID: obs.PacketID,
	}); err != nil {
		return err
	}

	// When the request side was only sniffed (not originated by us), its
	// hops were already recorded while it flew through us; skip
	// re-inserting them from the reply's own route vector to avoid
	// duplicating provenance under a different packet id.
	return c.insertRouteHops(ctx, sess.ID, obs.At, obs.PacketID, route, routeBack, requestKind, responseKind, requestRouteEmpty)
}

func isOriginatedKey(key string) bool {
	return len(key) >= 4 && key[:4] == "req:"
}

// insertRouteHops writes route under direction "request" and routeBack
// under direction "response" — a RouteDiscovery's forward vector is
// always the path from originator to target, regardless of whether this
// call came from observing the request or the reply. skipRequest omits
// the request-side insert, used when those hops were already recorded
// while the request itself flew through us.
func (c *Correlator) insertRouteHops(ctx context.Context, sessionID int64, at int64, packetID *uint32, route, routeBack []uint32, requestKind, responseKind string, skipRequest bool) error {
	if !skipRequest {
		for i, node := range route {
			if err := c.store.InsertHop(ctx, store.TracerouteHop{
				SessionID: sessionID, Direction: "request", HopIndex: i, NodeID: node,
				ObservedAt: at, PacketID: packetID, SourceKind: requestKind,
			}); err != nil {
				return err
			}
		}
	}
	for i, node := range routeBack {
		if err := c.store.InsertHop(ctx, store.TracerouteHop{
			SessionID: sessionID, Direction: "response", HopIndex: i, NodeID: node,
			ObservedAt: at, PacketID: packetID, SourceKind: responseKind,
		}); err != nil {
			return err
		}
	}
	return nil
}
