// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package modules

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mesh-companion/meshbot/internal/clock"
	"github.com/mesh-companion/meshbot/internal/registry"
	"github.com/mesh-companion/meshbot/internal/store"
)

// Uptime reports how long the process has been running plus a few
// headline counters pulled from the Store.
type Uptime struct {
	clock   clock.Clock
	started int64 // unix seconds
}

func NewUptime(c clock.Clock) *Uptime {
	return &Uptime{clock: c, started: c.Now().Unix()}
}

func (*Uptime) Name() string          { return "uptime" }
func (*Uptime) Description() string   { return "Bot uptime & stats" }
func (*Uptime) Commands() []string    { return []string{"uptime"} }
func (*Uptime) Scope() registry.Scope { return registry.ScopeBoth }

func (u *Uptime) HandleCommand(ctx context.Context, s *store.Store, command, args string, msg registry.MessageContext) ([]registry.Response, error) {
	msgsIn, err := s.CountByDirection(ctx, store.DirectionIncoming)
	if err != nil {
		return nil, fmt.Errorf("uptime: counting incoming messages: %w", err)
	}
	msgsOut, err := s.CountByDirection(ctx, store.DirectionOutgoing)
	if err != nil {
		return nil, fmt.Errorf("uptime: counting outgoing messages: %w", err)
	}
	overview, err := s.GetOverview(ctx)
	if err != nil {
		return nil, fmt.Errorf("uptime: reading overview: %w", err)
	}

	startTime := time.Unix(u.started, 0)
	text := fmt.Sprintf("Uptime: %s\nMessages: %d in / %d out\nNodes seen: %d",
		humanize.RelTime(startTime, u.clock.Now(), "", ""),
		msgsIn, msgsOut, overview.NodeCount)

	return []registry.Response{{Text: text, Destination: registry.DestinationSender, Channel: msg.Channel}}, nil
}

func (*Uptime) HandleEvent(ctx context.Context, s *store.Store, ev registry.Event) ([]registry.Response, error) {
	return nil, nil
}
