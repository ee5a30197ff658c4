// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// NodePosition is one row of the dashboard's map view: a node that has
// ever reported a position.
type NodePosition struct {
	NodeID    uint32
	ShortName string
	LongName  string
	Latitude  float64
	Longitude float64
	LastSeen  int64
	ViaMQTT   bool
}

// Positions returns every node that has a recorded latitude/longitude,
// for the dashboard's map endpoint.
func (s *Store) Positions(ctx context.Context) ([]NodePosition, error) {
	var out []NodePosition
	err := s.withConn(ctx, "Positions", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT node_id, short_name, long_name, latitude, longitude, last_seen, via_mqtt
			FROM nodes WHERE latitude IS NOT NULL AND longitude IS NOT NULL
			ORDER BY last_seen DESC
		`, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				out = append(out, NodePosition{
					NodeID:    uint32(stmt.ColumnInt64(0)),
					ShortName: stmt.ColumnText(1),
					LongName:  stmt.ColumnText(2),
					Latitude:  stmt.ColumnFloat(3),
					Longitude: stmt.ColumnFloat(4),
					LastSeen:  stmt.ColumnInt64(5),
					ViaMQTT:   stmt.ColumnInt(6) != 0,
				})
				return nil
			},
		})
	})
	return out, err
}

// HopsToMeRow is one aggregated source in the dashboard's "hops to me"
// view: how many hops traceroutes addressed to the companion's own node
// took, grouped by who sent them.
type HopsToMeRow struct {
	SourceNode uint32
	Samples    int64
	LastHops   *int32
	MinHops    *int32
	MaxHops    *int32
	RFCount    int64
	MQTTCount  int64
}

// HopsToMe aggregates incoming traceroute packets addressed to target
// over the trailing hoursBack hours (0 means all history), grouped by
// sender, most recently active first.
func (s *Store) HopsToMe(ctx context.Context, target uint32, now, hoursBack int64, filter MQTTFilter) ([]HopsToMeRow, error) {
	var since int64
	if hoursBack > 0 {
		since = now - hoursBack*3600
	}
	where := "direction = 'incoming' AND packet_type = 'traceroute' AND to_node = ? AND timestamp >= ?"
	args := []interface{}{int64(target), since}
	if clause, ok := filter.clause(); ok {
		where += " AND " + clause
	}

	var out []HopsToMeRow
	err := s.withConn(ctx, "HopsToMe", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT from_node,
			       COUNT(*),
			       MIN(hop_count),
			       MAX(hop_count),
			       SUM(CASE WHEN via_mqtt = 0 THEN 1 ELSE 0 END),
			       SUM(CASE WHEN via_mqtt = 1 THEN 1 ELSE 0 END)
			FROM packets WHERE `+where+`
			GROUP BY from_node ORDER BY MAX(timestamp) DESC
		`, &sqlitex.ExecOptions{
			Args: args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				row := HopsToMeRow{
					SourceNode: uint32(stmt.ColumnInt64(0)),
					Samples:    stmt.ColumnInt64(1),
					RFCount:    stmt.ColumnInt64(4),
					MQTTCount:  stmt.ColumnInt64(5),
				}
				if stmt.ColumnType(2) != sqlite.TypeNull {
					v := int32(stmt.ColumnInt64(2))
					row.MinHops = &v
				}
				if stmt.ColumnType(3) != sqlite.TypeNull {
					v := int32(stmt.ColumnInt64(3))
					row.MaxHops = &v
				}
				out = append(out, row)
				return nil
			},
		})
	})
	if err != nil {
		return nil, err
	}

	// LastHops needs the most recent single sample per sender, not an
	// aggregate — a second pass keyed by the already-known senders is
	// simpler than a window function here since the sender set is small.
	for i := range out {
		lastHops, err := s.lastHopCount(ctx, out[i].SourceNode, target, since)
		if err != nil {
			return nil, err
		}
		out[i].LastHops = lastHops
	}
	return out, nil
}

func (s *Store) lastHopCount(ctx context.Context, from, to uint32, since int64) (*int32, error) {
	var hops *int32
	err := s.withConn(ctx, "lastHopCount", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT hop_count FROM packets
			WHERE direction = 'incoming' AND packet_type = 'traceroute'
			  AND from_node = ? AND to_node = ? AND timestamp >= ? AND hop_count IS NOT NULL
			ORDER BY id DESC LIMIT 1
		`, &sqlitex.ExecOptions{
			Args: []interface{}{int64(from), int64(to), since},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				v := int32(stmt.ColumnInt64(0))
				hops = &v
				return nil
			},
		})
	})
	return hops, err
}
