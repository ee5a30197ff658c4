// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Direction distinguishes packets we originated from packets observed
// passing through the mesh.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
)

// PacketObservation is one row to insert into packets. Insertion is
// unconditional — there is no dedup key, since two packets can
// legitimately share every visible field (same sender, same text,
// retransmitted).
type PacketObservation struct {
	Timestamp    int64
	FromNode     uint32
	ToNode       *uint32
	Channel      uint32
	Direction    Direction
	ViaMQTT      bool
	RSSI         *int32
	SNR          *float64
	HopCount     *int32
	HopStart     *int32
	PacketType   string
	PayloadText  string
	MeshPacketID *uint32
}

// InsertPacket appends one packet observation.
func (s *Store) InsertPacket(ctx context.Context, p PacketObservation) error {
	return s.withWrite(ctx, "InsertPacket", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			INSERT INTO packets (timestamp, from_node, to_node, channel, direction, via_mqtt, rssi, snr, hop_count, hop_start, packet_type, payload_text, mesh_packet_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, &sqlitex.ExecOptions{
			Args: []interface{}{
				p.Timestamp, int64(p.FromNode), nullUint32(p.ToNode), int64(p.Channel),
				string(p.Direction), boolToInt(p.ViaMQTT), nullInt32(p.RSSI), nullFloat(p.SNR),
				nullInt32(p.HopCount), nullInt32(p.HopStart), p.PacketType, p.PayloadText,
				nullUint32(p.MeshPacketID),
			},
		})
	})
}

// CountByDirection returns how many packets have been logged incoming
// vs. outgoing, used by the uptime module's summary line.
func (s *Store) CountByDirection(ctx context.Context, dir Direction) (int64, error) {
	var count int64
	err := s.withConn(ctx, "CountByDirection", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `SELECT COUNT(*) FROM packets WHERE direction = ?`, &sqlitex.ExecOptions{
			Args: []interface{}{string(dir)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				count = stmt.ColumnInt64(0)
				return nil
			},
		})
	})
	return count, err
}

// CountByType is one bucket of the packet-type distribution: how many
// packets of Type arrived in [BucketStart, BucketStart+bucket width).
type CountByType struct {
	BucketStart int64
	PacketType  string
	Count       int64
}

// hourlyBucketThreshold: windows no longer than this use hourly buckets;
// longer windows use daily buckets, keeping the response size bounded.
const hourlyBucketThreshold = 48 * 3600

// PacketTypeDistribution buckets packet counts by type over the last
// hoursBack hours (0 means all history). Bucket width is hourly for
// windows of 48 hours or less, daily otherwise.
func (s *Store) PacketTypeDistribution(ctx context.Context, now int64, hoursBack int64) ([]CountByType, error) {
	var since int64 = 0
	if hoursBack > 0 {
		since = now - hoursBack*3600
	}
	bucketWidth := int64(3600)
	if hoursBack == 0 || hoursBack*3600 > hourlyBucketThreshold {
		bucketWidth = 86400
	}

	var rows []CountByType
	err := s.withConn(ctx, "PacketTypeDistribution", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT (timestamp / ?) * ? AS bucket, packet_type, COUNT(*)
			FROM packets
			WHERE timestamp >= ?
			GROUP BY bucket, packet_type
			ORDER BY bucket ASC
		`, &sqlitex.ExecOptions{
			Args: []interface{}{bucketWidth, bucketWidth, since},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				rows = append(rows, CountByType{
					BucketStart: stmt.ColumnInt64(0),
					PacketType:  stmt.ColumnText(1),
					Count:       stmt.ColumnInt64(2),
				})
				return nil
			},
		})
	})
	return rows, err
}

// RecentPackets returns the most recent limit packets, newest first.
// Used by the dashboard's activity feed.
func (s *Store) RecentPackets(ctx context.Context, limit int) ([]PacketObservation, error) {
	var out []PacketObservation
	err := s.withConn(ctx, "RecentPackets", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT timestamp, from_node, to_node, channel, direction, via_mqtt, rssi, snr, hop_count, hop_start, packet_type, payload_text, mesh_packet_id
			FROM packets ORDER BY id DESC LIMIT ?
		`, &sqlitex.ExecOptions{
			Args: []interface{}{limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				out = append(out, scanPacket(stmt))
				return nil
			},
		})
	})
	return out, err
}

func scanPacket(stmt *sqlite.Stmt) PacketObservation {
	p := PacketObservation{
		Timestamp:  stmt.ColumnInt64(0),
		FromNode:   uint32(stmt.ColumnInt64(1)),
		Channel:    uint32(stmt.ColumnInt64(3)),
		Direction:  Direction(stmt.ColumnText(4)),
		ViaMQTT:    stmt.ColumnInt(5) != 0,
		PacketType: stmt.ColumnText(10),
		PayloadText: stmt.ColumnText(11),
	}
	if stmt.ColumnType(2) != sqlite.TypeNull {
		v := uint32(stmt.ColumnInt64(2))
		p.ToNode = &v
	}
	if stmt.ColumnType(6) != sqlite.TypeNull {
		v := int32(stmt.ColumnInt64(6))
		p.RSSI = &v
	}
	if stmt.ColumnType(7) != sqlite.TypeNull {
		v := stmt.ColumnFloat(7)
		p.SNR = &v
	}
	if stmt.ColumnType(8) != sqlite.TypeNull {
		v := int32(stmt.ColumnInt64(8))
		p.HopCount = &v
	}
	if stmt.ColumnType(9) != sqlite.TypeNull {
		v := int32(stmt.ColumnInt64(9))
		p.HopStart = &v
	}
	if stmt.ColumnType(12) != sqlite.TypeNull {
		v := uint32(stmt.ColumnInt64(12))
		p.MeshPacketID = &v
	}
	return p
}

func nullUint32(v *uint32) interface{} {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func nullInt32(v *int32) interface{} {
	if v == nil {
		return nil
	}
	return int64(*v)
}
