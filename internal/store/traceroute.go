// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// SessionStatus is the traceroute session lifecycle state. It only ever
// moves forward: observed -> partial -> complete.
type SessionStatus string

const (
	StatusObserved SessionStatus = "observed"
	StatusPartial  SessionStatus = "partial"
	StatusComplete SessionStatus = "complete"
)

// rank gives status a total order so callers can compare without
// hardcoding the promotion sequence twice.
func (s SessionStatus) rank() int {
	switch s {
	case StatusObserved:
		return 0
	case StatusPartial:
		return 1
	case StatusComplete:
		return 2
	default:
		return -1
	}
}

// TracerouteSession is a row from traceroute_sessions. The correlator
// (internal/correlate) owns keying and promotion rules; Store just
// persists whatever the correlator decides.
type TracerouteSession struct {
	ID               int64
	TraceKey         string
	SrcNode          uint32
	DstNode          *uint32
	FirstSeen        int64
	LastSeen         int64
	ViaMQTT          bool
	RequestHopCount  *int32
	RequestHopStart  *int32
	ResponseHopCount *int32
	ResponseHopStart *int32
	Status           SessionStatus
	SampleCount      int64
	RequestPacketID  *uint32
	ResponsePacketID *uint32
}

// TracerouteHop is a row from traceroute_session_hops.
type TracerouteHop struct {
	SessionID  int64
	Direction  string // "request" or "response"
	HopIndex   int
	NodeID     uint32
	ObservedAt int64
	PacketID   *uint32
	SourceKind string // route | route_back | routing_route | routing_route_back
}

// GetSessionByTraceKey returns the session for key, or (nil, nil) if none
// exists yet.
func (s *Store) GetSessionByTraceKey(ctx context.Context, key string) (*TracerouteSession, error) {
	var sess *TracerouteSession
	err := s.withConn(ctx, "GetSessionByTraceKey", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, sessionSelectSQL+` WHERE trace_key = ?`, &sqlitex.ExecOptions{
			Args: []interface{}{key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				sess = scanSession(stmt)
				return nil
			},
		})
	})
	return sess, err
}

// GetSession returns the session by row id.
func (s *Store) GetSession(ctx context.Context, id int64) (*TracerouteSession, error) {
	var sess *TracerouteSession
	err := s.withConn(ctx, "GetSession", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, sessionSelectSQL+` WHERE id = ?`, &sqlitex.ExecOptions{
			Args: []interface{}{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				sess = scanSession(stmt)
				return nil
			},
		})
	})
	return sess, err
}

// CreateSession inserts a brand-new session, typically at StatusObserved,
// and returns its row id.
func (s *Store) CreateSession(ctx context.Context, sess TracerouteSession) (int64, error) {
	var id int64
	err := s.withWrite(ctx, "CreateSession", func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, `
			INSERT INTO traceroute_sessions
				(trace_key, src_node, dst_node, first_seen, last_seen, via_mqtt,
				 request_hop_count, request_hop_start, response_hop_count, response_hop_start,
				 status, sample_count, request_packet_id, response_packet_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, &sqlitex.ExecOptions{
			Args: []interface{}{
				sess.TraceKey, int64(sess.SrcNode), nullUint32(sess.DstNode), sess.FirstSeen, sess.LastSeen,
				boolToInt(sess.ViaMQTT), nullInt32(sess.RequestHopCount), nullInt32(sess.RequestHopStart),
				nullInt32(sess.ResponseHopCount), nullInt32(sess.ResponseHopStart), string(sess.Status),
				sess.SampleCount, nullUint32(sess.RequestPacketID), nullUint32(sess.ResponsePacketID),
			},
		})
		if err != nil {
			return err
		}
		id = conn.LastInsertRowID()
		return nil
	})
	return id, err
}

// SessionUpdate carries the fields UpdateSession should write. Pointer
// fields left nil are left unchanged; Status and LastSeen are always
// applied since every update touches them.
type SessionUpdate struct {
	LastSeen         int64
	Status           SessionStatus
	SampleCountDelta int64
	RequestHopCount  *int32
	RequestHopStart  *int32
	ResponseHopCount *int32
	ResponseHopStart *int32
	ResponsePacketID *uint32
}

// UpdateSession applies u to the session at id. The caller (the
// correlator) is responsible for ensuring Status never regresses — this
// method writes whatever it's told.
func (s *Store) UpdateSession(ctx context.Context, id int64, u SessionUpdate) error {
	return s.withWrite(ctx, "UpdateSession", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			UPDATE traceroute_sessions SET
				last_seen = ?,
				status = ?,
				sample_count = sample_count + ?,
				request_hop_count = COALESCE(?, request_hop_count),
				request_hop_start = COALESCE(?, request_hop_start),
				response_hop_count = COALESCE(?, response_hop_count),
				response_hop_start = COALESCE(?, response_hop_start),
				response_packet_id = COALESCE(?, response_packet_id)
			WHERE id = ?
		`, &sqlitex.ExecOptions{
			Args: []interface{}{
				u.LastSeen, string(u.Status), u.SampleCountDelta,
				nullInt32(u.RequestHopCount), nullInt32(u.RequestHopStart),
				nullInt32(u.ResponseHopCount), nullInt32(u.ResponseHopStart),
				nullUint32(u.ResponsePacketID), id,
			},
		})
	})
}

// InsertHop inserts one hop row. Idempotent: a duplicate
// (session_id, direction, hop_index, node_id) is silently ignored, per
// the merge-idempotency invariant.
func (s *Store) InsertHop(ctx context.Context, h TracerouteHop) error {
	return s.withWrite(ctx, "InsertHop", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			INSERT OR IGNORE INTO traceroute_session_hops
				(session_id, direction, hop_index, node_id, observed_at, packet_id, source_kind)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, &sqlitex.ExecOptions{
			Args: []interface{}{
				h.SessionID, h.Direction, h.HopIndex, int64(h.NodeID), h.ObservedAt,
				nullUint32(h.PacketID), h.SourceKind,
			},
		})
	})
}

// ListHops returns every hop for a session, ordered by direction then
// hop_index.
func (s *Store) ListHops(ctx context.Context, sessionID int64) ([]TracerouteHop, error) {
	var hops []TracerouteHop
	err := s.withConn(ctx, "ListHops", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT session_id, direction, hop_index, node_id, observed_at, packet_id, source_kind
			FROM traceroute_session_hops
			WHERE session_id = ?
			ORDER BY direction, hop_index ASC
		`, &sqlitex.ExecOptions{
			Args: []interface{}{sessionID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				h := TracerouteHop{
					SessionID:  stmt.ColumnInt64(0),
					Direction:  stmt.ColumnText(1),
					HopIndex:   stmt.ColumnInt(2),
					NodeID:     uint32(stmt.ColumnInt64(3)),
					ObservedAt: stmt.ColumnInt64(4),
					SourceKind: stmt.ColumnText(6),
				}
				if stmt.ColumnType(5) != sqlite.TypeNull {
					v := uint32(stmt.ColumnInt64(5))
					h.PacketID = &v
				}
				hops = append(hops, h)
				return nil
			},
		})
	})
	return hops, err
}

// RecentSessions returns the most recently updated sessions, for the
// dashboard's traceroute views. limit <= 0 means no limit.
func (s *Store) RecentSessions(ctx context.Context, limit int) ([]*TracerouteSession, error) {
	query := sessionSelectSQL + ` ORDER BY last_seen DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	var out []*TracerouteSession
	err := s.withConn(ctx, "RecentSessions", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
			Args: args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				out = append(out, scanSession(stmt))
				return nil
			},
		})
	})
	return out, err
}

const sessionSelectSQL = `
	SELECT id, trace_key, src_node, dst_node, first_seen, last_seen, via_mqtt,
	       request_hop_count, request_hop_start, response_hop_count, response_hop_start,
	       status, sample_count, request_packet_id, response_packet_id
	FROM traceroute_sessions`

// CandidateNodesForProbe returns up to limit node ids, most-recently-seen
// first, that were last seen over RF (not MQTT) within recentSeenWithinSecs
// of now and have never logged an inbound RF packet carrying hop metadata —
// the probe scheduler's "lacks any stored RF hop sample" rule. A node can
// satisfy this from any RF packet type, not just a completed traceroute, so
// the check runs against packets rather than traceroute_session_hops.
// excludeNode is the companion's own node id.
func (s *Store) CandidateNodesForProbe(ctx context.Context, now, recentSeenWithinSecs int64, excludeNode uint32, limit int) ([]uint32, error) {
	var out []uint32
	err := s.withConn(ctx, "CandidateNodesForProbe", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT n.node_id FROM nodes n
			WHERE n.via_mqtt = 0
			  AND n.node_id != ?
			  AND n.last_seen >= ?
			  AND NOT EXISTS (
			      SELECT 1 FROM packets p
			      WHERE p.from_node = n.node_id
			        AND p.direction = ?
			        AND p.via_mqtt = 0
			        AND p.hop_count IS NOT NULL
			  )
			ORDER BY n.last_seen DESC
			LIMIT ?
		`, &sqlitex.ExecOptions{
			Args: []interface{}{int64(excludeNode), now - recentSeenWithinSecs, string(DirectionIncoming), limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				out = append(out, uint32(stmt.ColumnInt64(0)))
				return nil
			},
		})
	})
	return out, err
}

func scanSession(stmt *sqlite.Stmt) *TracerouteSession {
	sess := &TracerouteSession{
		ID:          stmt.ColumnInt64(0),
		TraceKey:    stmt.ColumnText(1),
		SrcNode:     uint32(stmt.ColumnInt64(2)),
		FirstSeen:   stmt.ColumnInt64(4),
		LastSeen:    stmt.ColumnInt64(5),
		ViaMQTT:     stmt.ColumnInt(6) != 0,
		Status:      SessionStatus(stmt.ColumnText(11)),
		SampleCount: stmt.ColumnInt64(12),
	}
	if stmt.ColumnType(3) != sqlite.TypeNull {
		v := uint32(stmt.ColumnInt64(3))
		sess.DstNode = &v
	}
	if stmt.ColumnType(7) != sqlite.TypeNull {
		v := int32(stmt.ColumnInt64(7))
		sess.RequestHopCount = &v
	}
	if stmt.ColumnType(8) != sqlite.TypeNull {
		v := int32(stmt.ColumnInt64(8))
		sess.RequestHopStart = &v
	}
	if stmt.ColumnType(9) != sqlite.TypeNull {
		v := int32(stmt.ColumnInt64(9))
		sess.ResponseHopCount = &v
	}
	if stmt.ColumnType(10) != sqlite.TypeNull {
		v := int32(stmt.ColumnInt64(10))
		sess.ResponseHopStart = &v
	}
	if stmt.ColumnType(13) != sqlite.TypeNull {
		v := uint32(stmt.ColumnInt64(13))
		sess.RequestPacketID = &v
	}
	if stmt.ColumnType(14) != sqlite.TypeNull {
		v := uint32(stmt.ColumnInt64(14))
		sess.ResponsePacketID = &v
	}
	return sess
}
