// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package modules

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mesh-companion/meshbot/internal/registry"
	"github.com/mesh-companion/meshbot/internal/store"
)

// maxNodeListCount caps how many rows the nodes command will ever list,
// regardless of the requested count argument.
const maxNodeListCount = 20

// defaultNodeListCount is used when the command carries no argument.
const defaultNodeListCount = 5

// NodeInfo lists the most recently seen mesh nodes.
type NodeInfo struct{}

func NewNodeInfo() *NodeInfo { return &NodeInfo{} }

func (*NodeInfo) Name() string          { return "nodes" }
func (*NodeInfo) Description() string   { return "Mesh node listing" }
func (*NodeInfo) Commands() []string    { return []string{"nodes"} }
func (*NodeInfo) Scope() registry.Scope { return registry.ScopeBoth }

func (n *NodeInfo) HandleCommand(ctx context.Context, s *store.Store, command, args string, msg registry.MessageContext) ([]registry.Response, error) {
	count := defaultNodeListCount
	if parsed, err := strconv.Atoi(strings.TrimSpace(args)); err == nil && parsed > 0 {
		count = parsed
	}
	if count > maxNodeListCount {
		count = maxNodeListCount
	}

	overview, err := s.GetOverview(ctx)
	if err != nil {
		return nil, fmt.Errorf("nodes: reading overview: %w", err)
	}
	nodes, err := s.RecentNodesWithLastHop(ctx, count)
	if err != nil {
		return nil, fmt.Errorf("nodes: listing nodes: %w", err)
	}

	lines := []string{fmt.Sprintf("Nodes seen: %d", overview.NodeCount)}
	for _, node := range nodes {
		name := "unknown"
		switch {
		case node.LongName != "":
			name = node.LongName
		case node.ShortName != "":
			name = node.ShortName
		}
		ago := humanize.Time(time.Unix(node.LastSeen, 0))
		hops := ""
		if node.LastHop != nil {
			hops = fmt.Sprintf(" | hops %d", *node.LastHop)
		}
		lines = append(lines, fmt.Sprintf("!%08x %s (%s)%s", node.NodeID, name, ago, hops))
	}

	if int64(len(nodes)) < overview.NodeCount {
		lines = append(lines, fmt.Sprintf("...and %d more", overview.NodeCount-int64(len(nodes))))
	}

	return []registry.Response{{Text: strings.Join(lines, "\n"), Destination: registry.DestinationSender, Channel: msg.Channel}}, nil
}

func (*NodeInfo) HandleEvent(ctx context.Context, s *store.Store, ev registry.Event) ([]registry.Response, error) {
	return nil, nil
}
