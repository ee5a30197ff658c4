// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bridgefabric wires platform bridges (Telegram, Discord, ...) to
// the event loop: a broadcast of observed mesh text out to every bridge,
// and a single-producer channel of bridge-origin text back in. Bridges
// own their external connections; this package neither retries nor
// reconnects them — it only carries messages between here and there.
package bridgefabric

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Platform identifies a bridge implementation by the tag it stamps on
// messages it originates, e.g. "[TG:alice] hello there".
type Platform string

const (
	PlatformTelegram Platform = "TG"
	PlatformDiscord  Platform = "DC"
)

// knownPlatforms is consulted for echo prevention: a mesh text packet
// whose payload already starts with one of these tags originated from a
// bridge and must not be fanned back out to bridges.
var knownPlatforms = []Platform{PlatformTelegram, PlatformDiscord}

// Tag returns the bracketed prefix a bridge stamps on its own messages.
func (p Platform) Tag() string {
	return fmt.Sprintf("[%s:", p)
}

// Direction controls which way a [bridge.<platform>] config entry relays
// text.
type Direction string

const (
	DirectionBoth       Direction = "both"
	DirectionToExternal Direction = "to_external"
	DirectionToMesh     Direction = "to_mesh"
)

// HasBridgeTag reports whether text already carries a known bridge's
// origin tag, the signal the event loop uses to skip re-fanning a
// bridge-origin mesh packet back out to bridges.
func HasBridgeTag(text string) bool {
	for _, p := range knownPlatforms {
		if strings.HasPrefix(text, p.Tag()) {
			return true
		}
	}
	return false
}

// OutboundMessage is mesh text observed by the event loop, fanned out to
// every subscribed bridge for relay to its external chat.
type OutboundMessage struct {
	Channel uint32
	From    uint32
	Text    string
}

// InboundMessage is bridge-origin text handed back to the event loop for
// transmission on the mesh. Text is expected to already carry the
// originating bridge's tag.
type InboundMessage struct {
	Platform Platform
	Channel  uint32
	Text     string
}

// Fabric is the broadcast-out, single-producer-in channel pair. The zero
// value is not usable; construct with New.
type Fabric struct {
	mu          sync.Mutex
	subscribers map[int]chan OutboundMessage
	nextID      int

	inbound chan InboundMessage
}

// New returns a Fabric whose inbound channel is buffered to
// inboundBuffer; the event loop selects on Inbound() without requiring a
// bridge to block on every send.
func New(inboundBuffer int) *Fabric {
	return &Fabric{
		subscribers: make(map[int]chan OutboundMessage),
		inbound:     make(chan InboundMessage, inboundBuffer),
	}
}

// Subscribe registers a new bridge listener and returns its channel plus
// an unsubscribe function the bridge must call when it shuts down.
func (f *Fabric) Subscribe(buffer int) (<-chan OutboundMessage, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	ch := make(chan OutboundMessage, buffer)
	f.subscribers[id] = ch

	unsubscribe := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if c, ok := f.subscribers[id]; ok {
			delete(f.subscribers, id)
			close(c)
		}
	}
	return ch, unsubscribe
}

// Broadcast fans msg out to every subscribed bridge. A bridge whose
// buffer is full drops the message rather than stalling the event loop —
// the core never blocks on a slow or stuck bridge.
func (f *Fabric) Broadcast(msg OutboundMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subscribers {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Send is called by a bridge implementation to hand bridge-origin text
// back to the event loop. It blocks until the inbound buffer has room or
// ctx is cancelled.
func (f *Fabric) Send(ctx context.Context, msg InboundMessage) error {
	select {
	case f.inbound <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Inbound is the channel the event loop selects on for bridge-origin
// text. There is exactly one consumer; Fabric only fans the producer
// side out to many bridges.
func (f *Fabric) Inbound() <-chan InboundMessage {
	return f.inbound
}
