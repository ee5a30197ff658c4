// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package modules holds the concrete command modules bundled with the
// daemon: ping, uptime, and the others enumerated in the registry at
// startup. Each is a thin implementation of registry.Module.
package modules

import (
	"context"
	"fmt"

	"github.com/mesh-companion/meshbot/internal/registry"
	"github.com/mesh-companion/meshbot/internal/store"
)

// Ping replies with the sender's own signal report, read back from the
// packet that carried the command.
type Ping struct{}

func (Ping) Name() string        { return "ping" }
func (Ping) Description() string { return "Signal report" }
func (Ping) Commands() []string  { return []string{"ping"} }
func (Ping) Scope() registry.Scope { return registry.ScopeBoth }

func (Ping) HandleCommand(ctx context.Context, s *store.Store, command, args string, msg registry.MessageContext) ([]registry.Response, error) {
	rssi := int32(0)
	if msg.RSSI != nil {
		rssi = *msg.RSSI
	}
	snr := 0.0
	if msg.SNR != nil {
		snr = *msg.SNR
	}
	hopCount := int32(0)
	if msg.HopCount != nil {
		hopCount = *msg.HopCount
	}
	hopStart := int32(0)
	if msg.HopStart != nil {
		hopStart = *msg.HopStart
	}

	text := fmt.Sprintf("Pong! RSSI:%d SNR:%.1f Hops:%d/%d", rssi, snr, hopCount, hopStart)
	if msg.ViaMQTT {
		text += " (via MQTT)"
	}

	return []registry.Response{{Text: text, Destination: registry.DestinationSender, Channel: msg.Channel}}, nil
}

func (Ping) HandleEvent(ctx context.Context, s *store.Store, ev registry.Event) ([]registry.Response, error) {
	return nil, nil
}
