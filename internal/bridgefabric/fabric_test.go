// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridgefabric

import (
	"context"
	"testing"
	"time"
)

func TestBroadcastFansOutToAllSubscribers(t *testing.T) {
	f := New(4)
	ch1, _ := f.Subscribe(4)
	ch2, _ := f.Subscribe(4)

	f.Broadcast(OutboundMessage{Channel: 0, From: 0xAAAA, Text: "hello"})

	select {
	case msg := <-ch1:
		if msg.Text != "hello" {
			t.Fatalf("ch1 got %q", msg.Text)
		}
	default:
		t.Fatal("ch1 did not receive broadcast")
	}
	select {
	case msg := <-ch2:
		if msg.Text != "hello" {
			t.Fatalf("ch2 got %q", msg.Text)
		}
	default:
		t.Fatal("ch2 did not receive broadcast")
	}
}

func TestBroadcastDropsWhenSubscriberBufferFull(t *testing.T) {
	f := New(4)
	ch, _ := f.Subscribe(1)

	f.Broadcast(OutboundMessage{Text: "first"})
	f.Broadcast(OutboundMessage{Text: "second"}) // dropped, buffer is full

	first := <-ch
	if first.Text != "first" {
		t.Fatalf("got %q, want %q", first.Text, "first")
	}
	select {
	case msg := <-ch:
		t.Fatalf("expected no second message, got %q", msg.Text)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	f := New(4)
	ch, unsubscribe := f.Subscribe(4)
	unsubscribe()

	_, ok := <-ch
	if ok {
		t.Fatal("expected channel to be closed after unsubscribe")
	}

	// Broadcasting after unsubscribe must not panic or deliver anywhere.
	f.Broadcast(OutboundMessage{Text: "after unsubscribe"})
}

func TestSendAndInbound(t *testing.T) {
	f := New(4)
	msg := InboundMessage{Platform: PlatformTelegram, Channel: 0, Text: "[TG:alice] hi"}

	if err := f.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case got := <-f.Inbound():
		if got.Text != msg.Text {
			t.Fatalf("got %q, want %q", got.Text, msg.Text)
		}
	default:
		t.Fatal("expected inbound message to be queued")
	}
}

func TestSendRespectsContextCancellation(t *testing.T) {
	f := New(0) // unbuffered, full immediately since nothing is draining
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	// Fill the zero-buffer channel's single send slot by having no
	// reader; Send should give up once ctx expires rather than block
	// forever.
	err := f.Send(ctx, InboundMessage{Text: "stuck"})
	if err == nil {
		t.Fatal("expected context deadline error")
	}
}

func TestHasBridgeTag(t *testing.T) {
	cases := map[string]bool{
		"[TG:alice] hello": true,
		"[DC:bob] hi":      true,
		"plain mesh text":  false,
		"":                 false,
	}
	for text, want := range cases {
		if got := HasBridgeTag(text); got != want {
			t.Fatalf("HasBridgeTag(%q) = %v, want %v", text, got, want)
		}
	}
}
