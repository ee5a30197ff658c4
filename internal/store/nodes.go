// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Node is a row from the nodes table: everything known about one mesh
// participant.
type Node struct {
	NodeID       uint32
	ShortName    string
	LongName     string
	FirstSeen    int64
	LastSeen     int64
	LastWelcomed *int64
	Latitude     *float64
	Longitude    *float64
	ViaMQTT      bool
}

// NodeObservation is what the event loop hands to UpsertNode after
// classifying an inbound packet. Zero-value ShortName/LongName mean "not
// carried by this packet" and must not overwrite existing names; a nil
// Position means "not carried" and must not clear an existing position.
type NodeObservation struct {
	NodeID    uint32
	ShortName string
	LongName  string
	Latitude  *float64
	Longitude *float64
	ViaMQTT   bool
	At        int64
}

// UpsertNode records a sighting of a node. On first sight, first_seen and
// last_seen are both set to At. On subsequent sightings, last_seen
// advances to At (the invariant first_seen <= last_seen holds as long as
// callers pass a monotonically reasonable At, which the event loop
// guarantees by using the packet's arrival time from the same Clock as
// everything else). Names are only overwritten when the observation
// carries a non-empty value; position is only overwritten when the
// observation carries one.
func (s *Store) UpsertNode(ctx context.Context, obs NodeObservation) error {
	return s.withWrite(ctx, "UpsertNode", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			INSERT INTO nodes (node_id, short_name, long_name, first_seen, last_seen, latitude, longitude, via_mqtt)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(node_id) DO UPDATE SET
				short_name = CASE WHEN excluded.short_name != '' THEN excluded.short_name ELSE short_name END,
				long_name  = CASE WHEN excluded.long_name  != '' THEN excluded.long_name  ELSE long_name  END,
				last_seen  = excluded.last_seen,
				latitude   = COALESCE(excluded.latitude, latitude),
				longitude  = COALESCE(excluded.longitude, longitude),
				via_mqtt   = excluded.via_mqtt
		`, &sqlitex.ExecOptions{
			Args: []interface{}{
				int64(obs.NodeID), obs.ShortName, obs.LongName, obs.At, obs.At,
				nullFloat(obs.Latitude), nullFloat(obs.Longitude), boolToInt(obs.ViaMQTT),
			},
		})
	})
}

// MarkWelcomed sets last_welcomed to at for nodeID. The welcome module
// uses this to enforce a one-time greeting.
func (s *Store) MarkWelcomed(ctx context.Context, nodeID uint32, at int64) error {
	return s.withWrite(ctx, "MarkWelcomed", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`UPDATE nodes SET last_welcomed = ? WHERE node_id = ?`,
			&sqlitex.ExecOptions{Args: []interface{}{at, int64(nodeID)}})
	})
}

// GetNode returns the node row for nodeID, or (nil, nil) if unknown.
func (s *Store) GetNode(ctx context.Context, nodeID uint32) (*Node, error) {
	var node *Node
	err := s.withConn(ctx, "GetNode", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT node_id, short_name, long_name, first_seen, last_seen, last_welcomed, latitude, longitude, via_mqtt
			 FROM nodes WHERE node_id = ?`,
			&sqlitex.ExecOptions{
				Args: []interface{}{int64(nodeID)},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					node = scanNode(stmt)
					return nil
				},
			})
	})
	return node, err
}

// ListNodes returns every known node, most recently seen first.
func (s *Store) ListNodes(ctx context.Context) ([]*Node, error) {
	var nodes []*Node
	err := s.withConn(ctx, "ListNodes", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT node_id, short_name, long_name, first_seen, last_seen, last_welcomed, latitude, longitude, via_mqtt
			 FROM nodes ORDER BY last_seen DESC`,
			&sqlitex.ExecOptions{
				ResultFunc: func(stmt *sqlite.Stmt) error {
					nodes = append(nodes, scanNode(stmt))
					return nil
				},
			})
	})
	return nodes, err
}

// IsNodeNew reports whether nodeID has no row in the nodes table yet.
// The welcome module calls this before UpsertNode so the answer reflects
// state prior to the sighting that triggered the check.
func (s *Store) IsNodeNew(ctx context.Context, nodeID uint32) (bool, error) {
	node, err := s.GetNode(ctx, nodeID)
	if err != nil {
		return false, err
	}
	return node == nil, nil
}

// IsNodeAbsent reports whether nodeID was last seen more than
// thresholdHours ago. Call it only for nodes that already have a row —
// a never-seen node is "new", not "absent".
func (s *Store) IsNodeAbsent(ctx context.Context, nodeID uint32, now int64, thresholdHours int64) (bool, error) {
	node, err := s.GetNode(ctx, nodeID)
	if err != nil {
		return false, err
	}
	if node == nil {
		return false, nil
	}
	return node.LastSeen < now-thresholdHours*3600, nil
}

// FindNodeByName resolves a mail recipient reference. It first tries
// name as a node ID — "!hhhhhhhh", bare 8-digit hex, or decimal — and
// accepts that parse only if a node with that ID actually exists;
// otherwise it falls back to a case-insensitive match on short_name or
// long_name. Returns (nil, nil) if nothing matches.
func (s *Store) FindNodeByName(ctx context.Context, name string) (*uint32, error) {
	if id, ok := parseNodeRef(name); ok {
		node, err := s.GetNode(ctx, id)
		if err != nil {
			return nil, err
		}
		if node != nil {
			return &id, nil
		}
	}

	var found *uint32
	err := s.withConn(ctx, "FindNodeByName", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT node_id FROM nodes
			 WHERE short_name = ?1 COLLATE NOCASE OR long_name = ?1 COLLATE NOCASE
			 LIMIT 1`,
			&sqlitex.ExecOptions{
				Args: []interface{}{name},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					v := uint32(stmt.ColumnInt64(0))
					found = &v
					return nil
				},
			})
	})
	return found, err
}

// parseNodeRef parses a node reference in "!hhhhhhhh", bare 8-digit hex,
// or decimal form.
func parseNodeRef(s string) (uint32, bool) {
	s = strings.TrimSpace(s)
	if hex, ok := strings.CutPrefix(s, "!"); ok {
		v, err := strconv.ParseUint(hex, 16, 32)
		return uint32(v), err == nil
	}
	if len(s) == 8 && isAllHex(s) {
		v, err := strconv.ParseUint(s, 16, 32)
		return uint32(v), err == nil
	}
	v, err := strconv.ParseUint(s, 10, 32)
	return uint32(v), err == nil
}

func isAllHex(s string) bool {
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}
	return true
}

// NodeName returns the best display name for nodeID: long_name if set,
// else short_name, else a "!hhhhhhhh" hex label. Used for rendering
// mail sender/recipient names.
func (s *Store) NodeName(ctx context.Context, nodeID uint32) (string, error) {
	node, err := s.GetNode(ctx, nodeID)
	if err != nil {
		return "", err
	}
	if node == nil {
		return fmt.Sprintf("!%08x", nodeID), nil
	}
	if node.LongName != "" {
		return node.LongName, nil
	}
	if node.ShortName != "" {
		return node.ShortName, nil
	}
	return fmt.Sprintf("!%08x", nodeID), nil
}

// NodeWithLastHop is one row of RecentNodesWithLastHop: a node plus the
// hop_count of the most recent packet it was seen on, if any.
type NodeWithLastHop struct {
	NodeID    uint32
	ShortName string
	LongName  string
	LastSeen  int64
	LastHop   *int32
}

// RecentNodesWithLastHop returns the limit most-recently-seen nodes,
// each annotated with the hop_count of its latest packet, for the nodes
// command listing.
func (s *Store) RecentNodesWithLastHop(ctx context.Context, limit int) ([]NodeWithLastHop, error) {
	var out []NodeWithLastHop
	err := s.withConn(ctx, "RecentNodesWithLastHop", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT n.node_id, n.short_name, n.long_name, n.last_seen,
			       (SELECT p.hop_count FROM packets p
			        WHERE p.from_node = n.node_id AND p.hop_count IS NOT NULL
			        ORDER BY p.id DESC LIMIT 1) AS last_hop
			FROM nodes n ORDER BY n.last_seen DESC LIMIT ?
		`, &sqlitex.ExecOptions{
			Args: []interface{}{limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				row := NodeWithLastHop{
					NodeID:    uint32(stmt.ColumnInt64(0)),
					ShortName: stmt.ColumnText(1),
					LongName:  stmt.ColumnText(2),
					LastSeen:  stmt.ColumnInt64(3),
				}
				if stmt.ColumnType(4) != sqlite.TypeNull {
					v := int32(stmt.ColumnInt64(4))
					row.LastHop = &v
				}
				out = append(out, row)
				return nil
			},
		})
	})
	return out, err
}

func scanNode(stmt *sqlite.Stmt) *Node {
	n := &Node{
		NodeID:    uint32(stmt.ColumnInt64(0)),
		ShortName: stmt.ColumnText(1),
		LongName:  stmt.ColumnText(2),
		FirstSeen: stmt.ColumnInt64(3),
		LastSeen:  stmt.ColumnInt64(4),
		ViaMQTT:   stmt.ColumnInt(8) != 0,
	}
	if stmt.ColumnType(5) != sqlite.TypeNull {
		v := stmt.ColumnInt64(5)
		n.LastWelcomed = &v
	}
	if stmt.ColumnType(6) != sqlite.TypeNull {
		v := stmt.ColumnFloat(6)
		n.Latitude = &v
	}
	if stmt.ColumnType(7) != sqlite.TypeNull {
		v := stmt.ColumnFloat(7)
		n.Longitude = &v
	}
	return n
}

func nullFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
