// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package modules

import (
	"context"
	"fmt"
	"strings"

	"github.com/mesh-companion/meshbot/internal/clock"
	"github.com/mesh-companion/meshbot/internal/registry"
	"github.com/mesh-companion/meshbot/internal/store"
)

// Welcome greets a node the first time it's discovered, and again after
// a long enough absence. It answers no commands — it only reacts to
// EventNodeDiscovered.
type Welcome struct {
	clock                 clock.Clock
	message               string
	welcomeBackMessage    string
	absenceThresholdHours int64
	whitelist             map[uint32]bool // nil means no whitelist: everyone is allowed
}

// NewWelcome builds a Welcome module. message and welcomeBackMessage use
// "{name}" as a substitution placeholder for the node's display name. A
// nil or empty whitelist admits every node.
func NewWelcome(c clock.Clock, message, welcomeBackMessage string, absenceThresholdHours int64, whitelist map[uint32]bool) *Welcome {
	if len(whitelist) == 0 {
		whitelist = nil
	}
	return &Welcome{
		clock:                 c,
		message:               message,
		welcomeBackMessage:    welcomeBackMessage,
		absenceThresholdHours: absenceThresholdHours,
		whitelist:             whitelist,
	}
}

func (*Welcome) Name() string          { return "welcome" }
func (*Welcome) Description() string   { return "New node greeting" }
func (*Welcome) Commands() []string    { return nil }
func (*Welcome) Scope() registry.Scope { return registry.ScopeDirectOnly }

func (w *Welcome) HandleCommand(ctx context.Context, s *store.Store, command, args string, msg registry.MessageContext) ([]registry.Response, error) {
	return nil, nil
}

func (w *Welcome) isAllowed(nodeID uint32) bool {
	if w.whitelist == nil {
		return true
	}
	return w.whitelist[nodeID]
}

func (w *Welcome) HandleEvent(ctx context.Context, s *store.Store, ev registry.Event) ([]registry.Response, error) {
	if ev.Kind != registry.EventNodeDiscovered {
		return nil, nil
	}
	if !w.isAllowed(ev.Node) {
		return nil, nil
	}

	displayName := "friend"
	switch {
	case ev.LongName != "":
		displayName = ev.LongName
	case ev.ShortName != "":
		displayName = ev.ShortName
	}

	isNew, err := s.IsNodeNew(ctx, ev.Node)
	if err != nil {
		return nil, fmt.Errorf("welcome: checking node novelty: %w", err)
	}
	isAbsent := false
	if !isNew {
		isAbsent, err = s.IsNodeAbsent(ctx, ev.Node, w.clock.Now().Unix(), w.absenceThresholdHours)
		if err != nil {
			return nil, fmt.Errorf("welcome: checking node absence: %w", err)
		}
	}

	// Update the node row before deciding on a message, matching the
	// ordering of the is_new/is_absent checks above.
	if err := s.UpsertNode(ctx, store.NodeObservation{
		NodeID:    ev.Node,
		ShortName: ev.ShortName,
		LongName:  ev.LongName,
		ViaMQTT:   ev.ViaMQTT,
		At:        ev.At,
	}); err != nil {
		return nil, fmt.Errorf("welcome: upserting node: %w", err)
	}

	var text string
	switch {
	case isNew:
		text = w.formatMessage(w.message, displayName)
	case isAbsent:
		text = w.formatMessage(w.welcomeBackMessage, displayName)
	default:
		return nil, nil
	}

	if err := s.MarkWelcomed(ctx, ev.Node, ev.At); err != nil {
		return nil, fmt.Errorf("welcome: marking welcomed: %w", err)
	}

	return []registry.Response{{
		Text:        text,
		Destination: registry.DestinationNode,
		NodeID:      ev.Node,
		Channel:     0,
	}}, nil
}

func (w *Welcome) formatMessage(template, name string) string {
	return strings.ReplaceAll(template, "{name}", name)
}
