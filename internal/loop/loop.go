// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package loop implements the event loop: the single-threaded scheduler
// that owns one radio connection at a time, classifies every packet that
// arrives on it, drains the outgoing queue at a paced rate, and ties the
// store, the traceroute correlator, the module registry, the rate
// limiter, and the bridge fabric together. Nothing here runs concurrent
// to itself — every mutation of loop-local state happens inside the one
// select loop in runConnection.
package loop

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mesh-companion/meshbot/internal/bridgefabric"
	"github.com/mesh-companion/meshbot/internal/clock"
	"github.com/mesh-companion/meshbot/internal/correlate"
	"github.com/mesh-companion/meshbot/internal/meshproto"
	"github.com/mesh-companion/meshbot/internal/probe"
	"github.com/mesh-companion/meshbot/internal/queue"
	"github.com/mesh-companion/meshbot/internal/radio"
	"github.com/mesh-companion/meshbot/internal/ratelimit"
	"github.com/mesh-companion/meshbot/internal/registry"
	"github.com/mesh-companion/meshbot/internal/store"
)

// maxMessageLen is the largest text chunk the loop will ever hand the
// radio adapter in one packet.
const maxMessageLen = 220

// Config carries the knobs the loop itself needs, independent of how the
// caller assembled its collaborators.
type Config struct {
	Address        string
	ReconnectDelay time.Duration
	SendInterval   time.Duration
	GracePeriod    time.Duration
}

// Loop owns the collaborators wired together at startup and drives them
// for the life of the process. The zero value is not usable; build with
// New.
type Loop struct {
	dialer  radio.Dialer
	cfg     Config
	clock   clock.Clock
	logger  *slog.Logger
	store   *store.Store
	queue   *queue.Queue
	reg     *registry.Registry
	limiter *ratelimit.Limiter
	fabric  *bridgefabric.Fabric
	probe   *probe.Scheduler

	myNode     atomic.Uint32
	correlator *correlate.Correlator
}

// MyNode returns the companion's own node id, as learned from the most
// recent MyInfo frame. Zero means it isn't known yet. Safe to call from
// any goroutine, including the dashboard's HTTP handlers.
func (l *Loop) MyNode() uint32 { return l.myNode.Load() }

// New builds a Loop. The probe scheduler, if the auto-probe feature is
// enabled, is wired in afterward with SetProbe — it needs this Loop's
// MyNode accessor to build, which doesn't exist until New returns.
func New(dialer radio.Dialer, s *store.Store, q *queue.Queue, reg *registry.Registry, limiter *ratelimit.Limiter, fabric *bridgefabric.Fabric, c clock.Clock, logger *slog.Logger, cfg Config) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		dialer:  dialer,
		cfg:     cfg,
		clock:   c,
		logger:  logger,
		store:   s,
		queue:   q,
		reg:     reg,
		limiter: limiter,
		fabric:  fabric,
	}
}

// SetProbe wires in the auto-probe scheduler. Leave unset when the
// feature is disabled; Run treats a nil probe as a no-op.
func (l *Loop) SetProbe(p *probe.Scheduler) { l.probe = p }

// Run drives the outer reconnect loop until ctx is cancelled. The probe
// scheduler, if configured, is armed once here — it runs independently of
// any single connection's lifetime, since the outgoing queue it feeds
// survives reconnects.
func (l *Loop) Run(ctx context.Context) error {
	var probeTimer *clock.Timer
	if l.probe != nil {
		probeTimer = l.probe.Start(ctx)
	}
	defer func() {
		if probeTimer != nil {
			probeTimer.Stop()
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := l.runConnection(ctx); err != nil {
			l.logger.Warn("radio connection ended", "error", err)
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		l.logger.Info("reconnecting", "delay", l.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.clock.After(l.cfg.ReconnectDelay):
		}
	}
}

// runConnection owns exactly one radio connection from dial to death. It
// is the single select loop described by the component design: radio
// frames, the send-tick, the one-shot startup grace timer, and bridge
// inbound messages are the only things it ever waits on.
func (l *Loop) runConnection(ctx context.Context) error {
	client := radio.NewClient(l.logger)
	if err := client.Connect(ctx, l.dialer, l.cfg.Address); err != nil {
		return fmt.Errorf("loop: connecting: %w", err)
	}
	defer client.Close()

	// Per-connection state is dropped when this connection ends and
	// re-learned from the next connection's MyInfo frame.
	defer func() {
		l.myNode.Store(0)
		l.correlator = nil
	}()

	frames := make(chan *meshproto.FromRadio)
	connErr := make(chan error, 1)
	go func() {
		for {
			frame, diag, err := client.Recv()
			if err != nil {
				connErr <- err
				return
			}
			if diag != nil {
				l.logger.Debug("radio decode diagnostic", "error", diag)
				continue
			}
			select {
			case frames <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()

	sendTicker := l.clock.NewTicker(l.cfg.SendInterval)
	defer sendTicker.Stop()

	graceCh := make(chan struct{})
	graceTimer := l.clock.AfterFunc(l.cfg.GracePeriod, func() { close(graceCh) })
	defer graceTimer.Stop()

	graceElapsed := false
	var deferredEvents []registry.Event

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-connErr:
			return fmt.Errorf("loop: radio disconnected: %w", err)

		case frame := <-frames:
			if err := l.handleFrame(ctx, frame, graceElapsed, &deferredEvents); err != nil {
				l.logger.Error("handling radio frame", "error", err)
			}

		case <-sendTicker.C:
			l.drainOne(ctx, client)

		case <-graceCh:
			graceElapsed = true
			graceCh = nil
			pending := deferredEvents
			deferredEvents = nil
			l.logger.Info("startup grace period elapsed", "deferred_events", len(pending))
			for _, ev := range pending {
				l.dispatchEvent(ctx, ev)
				l.upsertNode(ctx, ev.Node, ev.ShortName, ev.LongName, nil, nil, ev.ViaMQTT, ev.At)
			}

		case msg := <-l.fabric.Inbound():
			l.handleBridgeInbound(msg)
		}
	}
}

// handleFrame dispatches one FromRadio envelope by which field it carries.
func (l *Loop) handleFrame(ctx context.Context, frame *meshproto.FromRadio, graceElapsed bool, deferred *[]registry.Event) error {
	switch {
	case frame.MyInfo != nil:
		myNode := frame.MyInfo.MyNodeNum
		l.myNode.Store(myNode)
		l.correlator = correlate.New(l.store, myNode, l.logger)
		l.logger.Info("learned my_node_id", "node", fmt.Sprintf("%08x", myNode))
		return nil
	case frame.NodeInfo != nil:
		return l.handleNodeInfoDump(ctx, frame.NodeInfo, graceElapsed, deferred)
	case frame.Packet != nil:
		return l.handlePacket(ctx, frame.Packet, graceElapsed, deferred)
	default:
		return nil
	}
}

// handleNodeInfoDump processes one entry of the attached node's initial
// config-dump: the full NodeInfo carries both identity and last-known
// position, unlike a live nodeinfo-port packet which carries identity
// alone.
func (l *Loop) handleNodeInfoDump(ctx context.Context, ni *meshproto.NodeInfo, graceElapsed bool, deferred *[]registry.Event) error {
	at := l.clock.Now().Unix()
	var shortName, longName string
	if ni.User != nil {
		shortName, longName = ni.User.ShortName, ni.User.LongName
	}

	if err := retryStoreWrite(func() error {
		return l.store.InsertPacket(ctx, store.PacketObservation{
			Timestamp: at, FromNode: ni.Num, PacketType: "nodeinfo",
		})
	}); err != nil {
		return fmt.Errorf("logging nodeinfo dump: %w", err)
	}

	l.observeNodeInfo(ctx, ni.Num, shortName, longName, false, at, graceElapsed, deferred)

	if ni.Position != nil && ni.Position.HasCoords {
		lat, lon := positionToDegrees(ni.Position)
		if lat != 0 || lon != 0 {
			l.upsertPosition(ctx, ni.Num, lat, lon, at)
		}
	}
	return nil
}

// observeNodeInfo is the identity half of node-info handling, shared by
// the initial config dump and any live nodeinfo-port packet. Our own
// node never raises NodeDiscovered. During the startup grace period the
// event — and the upsert that would make the node stop looking "new" —
// are both deferred together, so a node greeted after the grace period
// still gets the first-sight welcome rather than the welcome-back one.
func (l *Loop) observeNodeInfo(ctx context.Context, nodeID uint32, shortName, longName string, viaMQTT bool, at int64, graceElapsed bool, deferred *[]registry.Event) {
	if nodeID == l.myNode.Load() {
		l.upsertNode(ctx, nodeID, shortName, longName, nil, nil, viaMQTT, at)
		return
	}

	ev := registry.Event{
		Kind: registry.EventNodeDiscovered, Node: nodeID,
		ShortName: shortName, LongName: longName, ViaMQTT: viaMQTT, At: at,
	}

	if !graceElapsed {
		*deferred = append(*deferred, ev)
		return
	}

	l.dispatchEvent(ctx, ev)
	l.upsertNode(ctx, nodeID, shortName, longName, nil, nil, viaMQTT, at)
}

// handlePacket classifies one live MeshPacket by its application port.
// A still-encrypted packet (Decoded == nil) carries nothing to classify
// and is silently dropped, matching the radio adapter's stance of never
// treating undecodable content as an error.
func (l *Loop) handlePacket(ctx context.Context, pkt *meshproto.MeshPacket, graceElapsed bool, deferred *[]registry.Event) error {
	if pkt.Decoded == nil {
		return nil
	}

	at := l.clock.Now().Unix()
	rssi, snr, hopCount, hopStart := rfMetadata(pkt)
	data := pkt.Decoded

	switch data.PortNum {
	case meshproto.PortNodeInfo:
		return l.handleLiveNodeInfo(ctx, pkt, data, at, graceElapsed, deferred)
	case meshproto.PortPosition:
		return l.handlePosition(ctx, pkt, data, at, rssi, snr, hopCount, hopStart)
	case meshproto.PortTelemetry:
		return l.logPacket(ctx, pkt, at, rssi, snr, hopCount, hopStart, "telemetry", "")
	case meshproto.PortTraceroute:
		return l.handleRouteTraffic(ctx, pkt, data, at, rssi, snr, hopCount, hopStart, "traceroute")
	case meshproto.PortRouting:
		return l.handleRouteTraffic(ctx, pkt, data, at, rssi, snr, hopCount, hopStart, "routing")
	case meshproto.PortNeighborInfo:
		return l.logPacket(ctx, pkt, at, rssi, snr, hopCount, hopStart, "neighborinfo", "")
	case meshproto.PortTextMessage:
		return l.handleTextMessage(ctx, pkt, data, at, rssi, snr, hopCount, hopStart, graceElapsed)
	default:
		return l.logPacket(ctx, pkt, at, rssi, snr, hopCount, hopStart, "other", "")
	}
}

// handleLiveNodeInfo handles a nodeinfo-port packet arriving as ordinary
// mesh traffic (a re-announce), as opposed to the initial config dump's
// FromRadio.NodeInfo frame. The payload is a bare User message.
func (l *Loop) handleLiveNodeInfo(ctx context.Context, pkt *meshproto.MeshPacket, data *meshproto.Data, at int64, graceElapsed bool, deferred *[]registry.Event) error {
	if err := retryStoreWrite(func() error {
		return l.store.InsertPacket(ctx, store.PacketObservation{
			Timestamp: at, FromNode: pkt.From, Channel: pkt.Channel, Direction: store.DirectionIncoming,
			ViaMQTT: pkt.ViaMQTT, PacketType: "nodeinfo",
		})
	}); err != nil {
		return fmt.Errorf("logging nodeinfo packet: %w", err)
	}

	user, err := meshproto.DecodeUser(data.Payload)
	if err != nil {
		l.logger.Debug("decoding live nodeinfo payload", "error", err)
		return nil
	}

	l.observeNodeInfo(ctx, pkt.From, user.ShortName, user.LongName, pkt.ViaMQTT, at, graceElapsed, deferred)
	return nil
}

// handlePosition logs a position-port packet and, when it carries
// coordinates, updates the node's last-known position without touching
// its names.
func (l *Loop) handlePosition(ctx context.Context, pkt *meshproto.MeshPacket, data *meshproto.Data, at int64, rssi *int32, snr *float64, hopCount, hopStart *int32) error {
	if err := l.logPacket(ctx, pkt, at, rssi, snr, hopCount, hopStart, "position", ""); err != nil {
		return err
	}

	pos, err := meshproto.DecodePosition(data.Payload)
	if err != nil {
		l.logger.Debug("decoding position payload", "error", err)
		return nil
	}
	if !pos.HasCoords {
		return nil
	}
	lat, lon := positionToDegrees(pos)
	if lat == 0 && lon == 0 {
		return nil
	}
	l.upsertPosition(ctx, pkt.From, lat, lon, at)
	return nil
}

// handleRouteTraffic logs a traceroute or routing packet and, once
// my_node_id is known, feeds it to the correlator. Before the first
// MyInfo frame of a connection arrives there is no correlator to feed
// yet; the packet is still logged.
func (l *Loop) handleRouteTraffic(ctx context.Context, pkt *meshproto.MeshPacket, data *meshproto.Data, at int64, rssi *int32, snr *float64, hopCount, hopStart *int32, packetType string) error {
	if err := l.logPacket(ctx, pkt, at, rssi, snr, hopCount, hopStart, packetType, ""); err != nil {
		return err
	}
	if l.correlator == nil {
		return nil
	}

	packetID := pkt.ID
	obs := correlate.Observation{
		Port: data.PortNum, From: pkt.From, To: pkt.To,
		RequestID: pkt.ID, ResponseFor: data.RequestID,
		At: at, ViaMQTT: pkt.ViaMQTT,
		RSSI: rssi, SNR: snr, HopCount: hopCount, HopStart: hopStart,
		PacketID: &packetID, Payload: data.Payload,
	}
	if err := l.correlator.Observe(ctx, obs); err != nil {
		l.logger.Warn("correlator observe failed", "port", data.PortNum, "error", err)
	}
	return nil
}

// handleTextMessage is the densest classification branch: it logs the
// packet, fans non-DM non-bridge-origin text out to the bridges, then
// resolves and runs a command if the text carries one.
func (l *Loop) handleTextMessage(ctx context.Context, pkt *meshproto.MeshPacket, data *meshproto.Data, at int64, rssi *int32, snr *float64, hopCount, hopStart *int32, graceElapsed bool) error {
	text := string(data.Payload)
	addressedToUs := pkt.To == l.myNode.Load()

	var toNode *uint32
	if addressedToUs {
		me := l.myNode.Load()
		toNode = &me
	}
	if err := l.logPacketTo(ctx, pkt, at, rssi, snr, hopCount, hopStart, "text", text, toNode); err != nil {
		return err
	}

	trimmed := strings.TrimSpace(text)
	if !addressedToUs && !bridgefabric.HasBridgeTag(trimmed) {
		l.fabric.Broadcast(bridgefabric.OutboundMessage{Channel: pkt.Channel, From: pkt.From, Text: trimmed})
	}

	mod, command, args, ok := l.reg.Resolve(trimmed, addressedToUs)
	if !ok {
		return nil
	}
	if !l.limiter.Allow(pkt.From) {
		l.logger.Warn("rate limited command", "node", fmt.Sprintf("%08x", pkt.From), "command", command)
		return nil
	}

	msgCtx := registry.MessageContext{
		From: pkt.From, To: pkt.To, Channel: pkt.Channel, AddressedToUs: addressedToUs,
		ViaMQTT: pkt.ViaMQTT, RSSI: rssi, SNR: snr, HopCount: hopCount, HopStart: hopStart,
	}
	responses, err := mod.HandleCommand(ctx, l.store, command, args, msgCtx)
	if err != nil {
		l.logger.Error("module command failed", "module", mod.Name(), "command", command, "error", err)
		return nil
	}
	l.queueResponses(responses, pkt.From)
	return nil
}

// handleBridgeInbound turns one bridge-origin message into a broadcast
// outgoing transmission. The text already carries its originating
// bridge's tag, stamped by the bridge implementation.
func (l *Loop) handleBridgeInbound(msg bridgefabric.InboundMessage) {
	l.queue.Enqueue(queue.Transmission{
		Packet: &meshproto.MeshPacket{
			From: l.myNode.Load(), To: 0, Channel: msg.Channel,
			Decoded: &meshproto.Data{PortNum: meshproto.PortTextMessage, Payload: []byte(msg.Text)},
		},
		PacketType: "text",
	})
}

// dispatchEvent runs a mesh event through every registered module and
// queues whatever responses come back, attributing DestinationSender to
// the node the event concerns.
func (l *Loop) dispatchEvent(ctx context.Context, ev registry.Event) {
	responses, errs := l.reg.DispatchEvent(ctx, l.store, ev)
	for _, err := range errs {
		l.logger.Error("module event handler failed", "error", err)
	}
	l.queueResponses(responses, ev.Node)
}

// queueResponses converts module responses into queued text
// transmissions, chunking each one at maxMessageLen and resolving
// DestinationSender against sender.
func (l *Loop) queueResponses(responses []registry.Response, sender uint32) {
	for _, resp := range responses {
		var to uint32
		switch resp.Destination {
		case registry.DestinationSender:
			to = sender
		case registry.DestinationNode:
			to = resp.NodeID
		case registry.DestinationBroadcast:
			to = 0
		}

		for _, chunk := range chunkMessage(resp.Text, maxMessageLen) {
			l.queue.Enqueue(queue.Transmission{
				Packet: &meshproto.MeshPacket{
					From: l.myNode.Load(), To: to, Channel: resp.Channel,
					Decoded: &meshproto.Data{PortNum: meshproto.PortTextMessage, Payload: []byte(chunk)},
				},
				PacketType: "text",
			})
		}
	}
}

// drainOne sends the front of the outgoing queue, if any, and logs it.
// Packet ids are assigned here rather than at enqueue time, except for
// packets (probe traceroutes) that already carry one their sender needs
// to recognize a reply against.
func (l *Loop) drainOne(ctx context.Context, client *radio.Client) {
	tx, ok := l.queue.Dequeue()
	if !ok {
		return
	}

	pkt := tx.Packet
	if pkt.ID == 0 {
		pkt.ID = rand.Uint32()
	}

	if err := client.Send(&meshproto.ToRadio{Packet: pkt}); err != nil {
		l.logger.Error("sending queued transmission", "type", tx.PacketType, "error", err)
		return
	}

	at := l.clock.Now().Unix()
	var toNode *uint32
	if pkt.To != 0 {
		to := pkt.To
		toNode = &to
	}
	var payloadText string
	if pkt.Decoded != nil && pkt.Decoded.PortNum == meshproto.PortTextMessage {
		payloadText = string(pkt.Decoded.Payload)
	}
	packetID := pkt.ID
	if err := retryStoreWrite(func() error {
		return l.store.InsertPacket(ctx, store.PacketObservation{
			Timestamp: at, FromNode: pkt.From, ToNode: toNode, Channel: pkt.Channel,
			Direction: store.DirectionOutgoing, PacketType: tx.PacketType, PayloadText: payloadText,
			MeshPacketID: &packetID,
		})
	}); err != nil {
		l.logStoreWriteErr("logging outgoing packet", err)
	}
}

// retryStoreWrite runs fn, retrying once if it fails with a transient
// store error (lock contention, I/O hiccup). Corruption and integrity
// violations are not retried; they won't succeed on a second attempt.
func retryStoreWrite(fn func() error) error {
	err := fn()
	if err != nil && store.IsTransient(err) {
		err = fn()
	}
	return err
}

// logStoreWriteErr logs a store write failure that survived retryStoreWrite.
// Corruption is escalated to Error: it won't clear on its own and the
// deployer needs to notice. Everything else (an exhausted transient retry,
// or an integrity violation from a bad input) stays at Warn.
func (l *Loop) logStoreWriteErr(msg string, err error, kv ...any) {
	if store.IsCorruption(err) {
		l.logger.Error(msg, append(kv, "error", err)...)
		return
	}
	l.logger.Warn(msg, append(kv, "error", err)...)
}

func (l *Loop) logPacket(ctx context.Context, pkt *meshproto.MeshPacket, at int64, rssi *int32, snr *float64, hopCount, hopStart *int32, packetType, payloadText string) error {
	return l.logPacketTo(ctx, pkt, at, rssi, snr, hopCount, hopStart, packetType, payloadText, nil)
}

func (l *Loop) logPacketTo(ctx context.Context, pkt *meshproto.MeshPacket, at int64, rssi *int32, snr *float64, hopCount, hopStart *int32, packetType, payloadText string, toNode *uint32) error {
	if err := retryStoreWrite(func() error {
		return l.store.InsertPacket(ctx, store.PacketObservation{
			Timestamp: at, FromNode: pkt.From, ToNode: toNode, Channel: pkt.Channel, Direction: store.DirectionIncoming,
			ViaMQTT: pkt.ViaMQTT, RSSI: rssi, SNR: snr, HopCount: hopCount, HopStart: hopStart,
			PacketType: packetType, PayloadText: payloadText,
		})
	}); err != nil {
		return fmt.Errorf("logging %s packet: %w", packetType, err)
	}
	return nil
}

func (l *Loop) upsertNode(ctx context.Context, nodeID uint32, shortName, longName string, lat, lon *float64, viaMQTT bool, at int64) {
	if err := retryStoreWrite(func() error {
		return l.store.UpsertNode(ctx, store.NodeObservation{
			NodeID: nodeID, ShortName: shortName, LongName: longName,
			Latitude: lat, Longitude: lon, ViaMQTT: viaMQTT, At: at,
		})
	}); err != nil {
		l.logStoreWriteErr("upserting node", err, "node", fmt.Sprintf("%08x", nodeID))
	}
}

func (l *Loop) upsertPosition(ctx context.Context, nodeID uint32, lat, lon float64, at int64) {
	if err := retryStoreWrite(func() error {
		return l.store.UpsertNode(ctx, store.NodeObservation{NodeID: nodeID, Latitude: &lat, Longitude: &lon, At: at})
	}); err != nil {
		l.logStoreWriteErr("updating node position", err, "node", fmt.Sprintf("%08x", nodeID))
	}
}

// rfMetadata extracts the optional signal-report fields a mesh packet
// carries. A zero RxRSSI/RxSNR means "not reported" rather than
// literally zero; hop_count is derived as hop_start - hop_limit and left
// unset if that would underflow (hop_start not yet known for this
// packet).
func rfMetadata(pkt *meshproto.MeshPacket) (rssi *int32, snr *float64, hopCount *int32, hopStart *int32) {
	if pkt.RxRSSI != 0 {
		v := pkt.RxRSSI
		rssi = &v
	}
	if pkt.RxSNR != 0 {
		v := float64(pkt.RxSNR)
		snr = &v
	}
	if pkt.HopStart >= pkt.HopLimit {
		v := int32(pkt.HopStart - pkt.HopLimit)
		hopCount = &v
	}
	if pkt.HopStart > 0 {
		v := int32(pkt.HopStart)
		hopStart = &v
	}
	return
}

// positionToDegrees converts a Position's fixed-point fields to floating
// point degrees, per the standard 1e-7 scale.
func positionToDegrees(pos *meshproto.Position) (latitude, longitude float64) {
	return float64(pos.LatitudeI) * 1e-7, float64(pos.LongitudeI) * 1e-7
}

// chunkMessage splits text into pieces no longer than maxLen bytes,
// preferring to split on newlines before falling back to a hard
// character split of any single line that alone exceeds maxLen.
func chunkMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder

	for _, line := range strings.Split(text, "\n") {
		if current.Len() > 0 && current.Len()+1+len(line) > maxLen {
			chunks = append(chunks, current.String())
			current.Reset()
		}

		if len(line) > maxLen {
			if current.Len() > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
			}
			remaining := line
			for len(remaining) > maxLen {
				chunks = append(chunks, remaining[:maxLen])
				remaining = remaining[maxLen:]
			}
			if remaining != "" {
				current.WriteString(remaining)
			}
		} else {
			if current.Len() > 0 {
				current.WriteByte('\n')
			}
			current.WriteString(line)
		}
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
