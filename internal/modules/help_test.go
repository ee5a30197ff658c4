// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package modules

import (
	"context"
	"testing"

	"github.com/mesh-companion/meshbot/internal/registry"
)

func TestHelpModuleMetadata(t *testing.T) {
	h := NewHelp(registry.New("!"))
	if h.Name() != "help" {
		t.Fatalf("Name() = %q", h.Name())
	}
	if got := h.Commands(); len(got) != 1 || got[0] != "help" {
		t.Fatalf("Commands() = %v", got)
	}
	if h.Scope() != registry.ScopeBoth {
		t.Fatalf("Scope() = %v", h.Scope())
	}
}

func TestHelpListsRegisteredModules(t *testing.T) {
	r := registry.New("!")
	r.Register(Ping{})
	h := NewHelp(r)
	r.Register(h)

	resp, err := h.HandleCommand(context.Background(), nil, "help", "", registry.MessageContext{})
	if err != nil {
		t.Fatalf("HandleCommand: %v", err)
	}
	if resp[0].Text != r.HelpText() {
		t.Fatalf("help text mismatch: %q vs %q", resp[0].Text, r.HelpText())
	}
}
