// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry is the Module Registry: pluggable command/event
// handlers register a name, description, and command set at startup,
// and the event loop resolves an inbound text command to exactly one
// module by stripping the command prefix, lowercasing, and matching
// scope against whether the packet was addressed to us.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mesh-companion/meshbot/internal/store"
)

// Scope controls which channel a command may be issued on.
type Scope string

const (
	ScopePublic     Scope = "public"      // broadcast channel only
	ScopeDirectOnly Scope = "direct-only" // direct message only
	ScopeBoth       Scope = "both"
)

// Destination selects where a Response is sent.
type Destination int

const (
	DestinationSender Destination = iota
	DestinationBroadcast
	DestinationNode
)

// Response is what a module hands back to the event loop to convert into
// a queued outgoing message.
type Response struct {
	Text        string
	Destination Destination
	// NodeID is only meaningful when Destination is DestinationNode.
	NodeID  uint32
	Channel uint32
}

// MessageContext is everything a module needs to know about the packet
// that triggered a command or event, beyond the command text itself.
type MessageContext struct {
	From          uint32
	To            uint32 // 0 means broadcast
	Channel       uint32
	AddressedToUs bool
	ViaMQTT       bool
	RSSI          *int32
	SNR           *float64
	HopCount      *int32
	HopStart      *int32
}

// EventKind names the mesh occurrences modules can subscribe to via
// HandleEvent.
type EventKind string

const (
	// EventNodeDiscovered fires once per node, after the startup grace
	// period, the first time (or first time since an absence) a NodeInfo
	// frame is seen for it.
	EventNodeDiscovered EventKind = "node_discovered"
	EventPositionUpdate EventKind = "position_update"
)

// Event is a non-command mesh occurrence a module may react to.
type Event struct {
	Kind      EventKind
	Node      uint32
	LongName  string
	ShortName string
	ViaMQTT   bool
	At        int64
}

// Module is the interface every command/event handler implements.
type Module interface {
	Name() string
	Description() string
	// Commands returns the bare command names this module answers to,
	// without the configured prefix.
	Commands() []string
	Scope() Scope
	HandleCommand(ctx context.Context, s *store.Store, command, args string, msg MessageContext) ([]Response, error)
	HandleEvent(ctx context.Context, s *store.Store, ev Event) ([]Response, error)
}

// Registry resolves commands to modules and enumerates them for help
// text. It is a plain value, not a global singleton — the event loop
// owns one instance and passes it down.
type Registry struct {
	prefix  string
	modules []Module
	byCmd   map[string]Module
}

// New returns an empty Registry using prefix to strip from inbound text
// before command matching (e.g. "!").
func New(prefix string) *Registry {
	return &Registry{prefix: prefix, byCmd: make(map[string]Module)}
}

// Register adds m to the registry. Panics on a duplicate command name,
// since that's a startup wiring bug, not a runtime condition.
func (r *Registry) Register(m Module) {
	r.modules = append(r.modules, m)
	for _, cmd := range m.Commands() {
		key := strings.ToLower(cmd)
		if existing, ok := r.byCmd[key]; ok {
			panic(fmt.Sprintf("registry: command %q claimed by both %q and %q", cmd, existing.Name(), m.Name()))
		}
		r.byCmd[key] = m
	}
}

// Resolve parses text for a command invocation and returns the matching
// module, the bare command name, and the remaining argument string. ok
// is false if text doesn't start with the configured prefix, names an
// unknown command, or the command's scope forbids this channel.
func (r *Registry) Resolve(text string, addressedToUs bool) (m Module, command, args string, ok bool) {
	if !strings.HasPrefix(text, r.prefix) {
		return nil, "", "", false
	}
	rest := strings.TrimPrefix(text, r.prefix)
	fields := strings.SplitN(strings.TrimSpace(rest), " ", 2)
	if fields[0] == "" {
		return nil, "", "", false
	}
	command = strings.ToLower(fields[0])
	if len(fields) > 1 {
		args = fields[1]
	}

	mod, found := r.byCmd[command]
	if !found {
		return nil, "", "", false
	}
	if !scopeAllows(mod.Scope(), addressedToUs) {
		return nil, "", "", false
	}
	return mod, command, args, true
}

func scopeAllows(scope Scope, addressedToUs bool) bool {
	switch scope {
	case ScopeDirectOnly:
		return addressedToUs
	case ScopePublic:
		return !addressedToUs
	default: // ScopeBoth
		return true
	}
}

// Modules returns every registered module, in registration order.
func (r *Registry) Modules() []Module {
	out := make([]Module, len(r.modules))
	copy(out, r.modules)
	return out
}

// HelpText renders one line per registered module: its prefixed commands
// and description, sorted by module name for stable output.
func (r *Registry) HelpText() string {
	sorted := make([]Module, len(r.modules))
	copy(sorted, r.modules)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name() < sorted[j].Name() })

	var b strings.Builder
	for _, m := range sorted {
		fmt.Fprintf(&b, "%s%s - %s\n", r.prefix, strings.Join(m.Commands(), ","), m.Description())
	}
	return b.String()
}

// DispatchEvent runs ev through every registered module's HandleEvent,
// collecting responses. A module that errors is logged by the caller and
// skipped — DispatchEvent itself just surfaces the error alongside
// whatever other modules produced.
func (r *Registry) DispatchEvent(ctx context.Context, s *store.Store, ev Event) ([]Response, []error) {
	var responses []Response
	var errs []error
	for _, m := range r.modules {
		resp, err := m.HandleEvent(ctx, s, ev)
		if err != nil {
			errs = append(errs, fmt.Errorf("module %s: %w", m.Name(), err))
			continue
		}
		responses = append(responses, resp...)
	}
	return responses, errs
}
