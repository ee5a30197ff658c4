// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package modules

import (
	"context"

	"github.com/mesh-companion/meshbot/internal/registry"
	"github.com/mesh-companion/meshbot/internal/store"
)

// Help lists every registered command. Unlike the other modules it
// needs to see the registry itself, so it's constructed after
// everything else is registered and wired in last.
type Help struct {
	registry *registry.Registry
}

func NewHelp(r *registry.Registry) *Help {
	return &Help{registry: r}
}

func (*Help) Name() string          { return "help" }
func (*Help) Description() string   { return "List commands" }
func (*Help) Commands() []string    { return []string{"help"} }
func (*Help) Scope() registry.Scope { return registry.ScopeBoth }

func (h *Help) HandleCommand(ctx context.Context, s *store.Store, command, args string, msg registry.MessageContext) ([]registry.Response, error) {
	return []registry.Response{{Text: h.registry.HelpText(), Destination: registry.DestinationSender, Channel: msg.Channel}}, nil
}

func (*Help) HandleEvent(ctx context.Context, s *store.Store, ev registry.Event) ([]registry.Response, error) {
	return nil, nil
}
