// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"testing"

	"github.com/mesh-companion/meshbot/internal/store"
)

type stubModule struct {
	name     string
	commands []string
	scope    Scope
}

func (s stubModule) Name() string        { return s.name }
func (s stubModule) Description() string { return "stub" }
func (s stubModule) Commands() []string  { return s.commands }
func (s stubModule) Scope() Scope        { return s.scope }
func (s stubModule) HandleCommand(ctx context.Context, st *store.Store, command, args string, msg MessageContext) ([]Response, error) {
	return []Response{{Text: "ok:" + command, Destination: DestinationSender}}, nil
}
func (s stubModule) HandleEvent(ctx context.Context, st *store.Store, ev Event) ([]Response, error) {
	return nil, nil
}

func TestResolveStripsPrefixAndLowercases(t *testing.T) {
	r := New("!")
	r.Register(stubModule{name: "ping", commands: []string{"ping"}, scope: ScopeBoth})

	mod, cmd, args, ok := r.Resolve("!PING extra args", true)
	if !ok {
		t.Fatal("Resolve should match a case-insensitive command")
	}
	if cmd != "ping" || args != "extra args" || mod.Name() != "ping" {
		t.Fatalf("Resolve() = mod=%v cmd=%q args=%q", mod, cmd, args)
	}
}

func TestResolveRejectsMissingPrefix(t *testing.T) {
	r := New("!")
	r.Register(stubModule{name: "ping", commands: []string{"ping"}, scope: ScopeBoth})

	_, _, _, ok := r.Resolve("ping", true)
	if ok {
		t.Fatal("Resolve should require the configured prefix")
	}
}

func TestResolveEnforcesScope(t *testing.T) {
	r := New("!")
	r.Register(stubModule{name: "secret", commands: []string{"secret"}, scope: ScopeDirectOnly})

	if _, _, _, ok := r.Resolve("!secret", false); ok {
		t.Fatal("direct-only command should be rejected on a broadcast channel")
	}
	if _, _, _, ok := r.Resolve("!secret", true); !ok {
		t.Fatal("direct-only command should be admitted when addressed to us")
	}
}

func TestResolveUnknownCommand(t *testing.T) {
	r := New("!")
	if _, _, _, ok := r.Resolve("!nope", true); ok {
		t.Fatal("Resolve should reject an unregistered command")
	}
}

func TestRegisterPanicsOnDuplicateCommand(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Register should panic on a duplicate command claim")
		}
	}()
	r := New("!")
	r.Register(stubModule{name: "a", commands: []string{"x"}, scope: ScopeBoth})
	r.Register(stubModule{name: "b", commands: []string{"x"}, scope: ScopeBoth})
}
