// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// MQTTFilter narrows a list query to local-RF-only, MQTT-relayed-only, or
// both, matching the `mqtt` query parameter of the dashboard endpoints
// that take one.
type MQTTFilter string

const (
	MQTTAll   MQTTFilter = "all"
	MQTTLocal MQTTFilter = "local"
	MQTTOnly  MQTTFilter = "mqtt_only"
)

func (f MQTTFilter) clause() (string, bool) {
	switch f {
	case MQTTLocal:
		return "via_mqtt = 0", true
	case MQTTOnly:
		return "via_mqtt = 1", true
	default:
		return "", false
	}
}

// Overview is the dashboard's top-line summary.
type Overview struct {
	NodeCount            int64
	PacketCount          int64
	TracerouteSessions   int64
	CompleteTraceroutes  int64
	UnreadMailCount      int64
	OldestPacketAt       *int64
	NewestPacketAt       *int64
}

// GetOverview returns headline counts across the whole database.
func (s *Store) GetOverview(ctx context.Context) (Overview, error) {
	var o Overview
	err := s.withConn(ctx, "GetOverview", func(conn *sqlite.Conn) error {
		if err := scanOne(conn, `SELECT COUNT(*) FROM nodes`, &o.NodeCount); err != nil {
			return err
		}
		if err := scanOne(conn, `SELECT COUNT(*) FROM packets`, &o.PacketCount); err != nil {
			return err
		}
		if err := scanOne(conn, `SELECT COUNT(*) FROM traceroute_sessions`, &o.TracerouteSessions); err != nil {
			return err
		}
		if err := scanOne(conn, `SELECT COUNT(*) FROM traceroute_sessions WHERE status = 'complete'`, &o.CompleteTraceroutes); err != nil {
			return err
		}
		if err := scanOne(conn, `SELECT COUNT(*) FROM mail WHERE read = 0`, &o.UnreadMailCount); err != nil {
			return err
		}
		return sqlitex.Execute(conn, `SELECT MIN(timestamp), MAX(timestamp) FROM packets`, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				if stmt.ColumnType(0) != sqlite.TypeNull {
					v := stmt.ColumnInt64(0)
					o.OldestPacketAt = &v
				}
				if stmt.ColumnType(1) != sqlite.TypeNull {
					v := stmt.ColumnInt64(1)
					o.NewestPacketAt = &v
				}
				return nil
			},
		})
	})
	return o, err
}

func scanOne(conn *sqlite.Conn, query string, dst *int64) error {
	return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			*dst = stmt.ColumnInt64(0)
			return nil
		},
	})
}

// Throughput buckets total packet counts over hoursBack hours (0 = all
// history), same bucketing rule as PacketTypeDistribution.
func (s *Store) Throughput(ctx context.Context, now, hoursBack int64, filter MQTTFilter) ([]CountByType, error) {
	return s.bucketedCount(ctx, "Throughput", now, hoursBack, filter, "")
}

// PacketThroughput is Throughput narrowed to one packet type ("" means all
// types, equivalent to Throughput).
func (s *Store) PacketThroughput(ctx context.Context, now, hoursBack int64, filter MQTTFilter, packetType string) ([]CountByType, error) {
	return s.bucketedCount(ctx, "PacketThroughput", now, hoursBack, filter, packetType)
}

func (s *Store) bucketedCount(ctx context.Context, operation string, now, hoursBack int64, filter MQTTFilter, packetType string) ([]CountByType, error) {
	var since int64
	if hoursBack > 0 {
		since = now - hoursBack*3600
	}
	bucketWidth := int64(3600)
	if hoursBack == 0 || hoursBack*3600 > hourlyBucketThreshold {
		bucketWidth = 86400
	}

	where := "timestamp >= ?"
	args := []interface{}{bucketWidth, bucketWidth, since}
	if clause, ok := filter.clause(); ok {
		where += " AND " + clause
	}
	if packetType != "" {
		where += " AND packet_type = ?"
		args = append(args, packetType)
	}

	query := fmt.Sprintf(`
		SELECT (timestamp / ?) * ? AS bucket, packet_type, COUNT(*)
		FROM packets WHERE %s GROUP BY bucket, packet_type ORDER BY bucket ASC
	`, where)

	var rows []CountByType
	err := s.withConn(ctx, operation, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
			Args: args,
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

// LabeledCount is one bar of a distribution histogram: an integer bucket
// (e.g. an RSSI band) and how many observations fell into it.
type LabeledCount struct {
	Label string
	Count int64
}

// RSSIDistribution buckets packets by RSSI into 10 dBm-wide bands.
func (s *Store) RSSIDistribution(ctx context.Context, now, hoursBack int64, filter MQTTFilter) ([]LabeledCount, error) {
	return s.numericDistribution(ctx, "RSSIDistribution", "rssi", 10, now, hoursBack, filter)
}

// SNRDistribution buckets packets by SNR into 1 dB-wide bands (SNR is
// stored as a float; bucketing truncates toward zero, so -2.5 falls in
// band -2).
func (s *Store) SNRDistribution(ctx context.Context, now, hoursBack int64, filter MQTTFilter) ([]LabeledCount, error) {
	return s.numericDistribution(ctx, "SNRDistribution", "CAST(snr AS INTEGER)", 1, now, hoursBack, filter)
}

// HopsDistribution buckets packets by hop_count, one bucket per hop.
func (s *Store) HopsDistribution(ctx context.Context, now, hoursBack int64, filter MQTTFilter) ([]LabeledCount, error) {
	return s.numericDistribution(ctx, "HopsDistribution", "hop_count", 1, now, hoursBack, filter)
}

func (s *Store) numericDistribution(ctx context.Context, operation, column string, bandWidth int, now, hoursBack int64, filter MQTTFilter) ([]LabeledCount, error) {
	var since int64
	if hoursBack > 0 {
		since = now - hoursBack*3600
	}
	where := fmt.Sprintf("timestamp >= ? AND %s IS NOT NULL", column)
	args := []interface{}{bandWidth, bandWidth, since}
	if clause, ok := filter.clause(); ok {
		where += " AND " + clause
	}
	query := fmt.Sprintf(`
		SELECT (%s / ?) * ? AS band, COUNT(*)
		FROM packets WHERE %s GROUP BY band ORDER BY band ASC
	`, column, where)

	var rows []LabeledCount
	err := s.withConn(ctx, operation, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
			Args: args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				rows = append(rows, LabeledCount{
					Label: fmt.Sprintf("%d", stmt.ColumnInt64(0)),
					Count: stmt.ColumnInt64(1),
				})
				return nil
			},
		})
	})
	return rows, err
}

// TracerouteRequesters lists src_node values that have initiated (`req:`
// or `in:`) sessions, most active first.
func (s *Store) TracerouteRequesters(ctx context.Context, filter MQTTFilter, hoursBack int64, now int64) ([]LabeledCount, error) {
	return s.tracerouteGroupCount(ctx, "TracerouteRequesters", "src_node", filter, hoursBack, now)
}

// TracerouteDestinations lists dst_node values, most targeted first.
func (s *Store) TracerouteDestinations(ctx context.Context, filter MQTTFilter, hoursBack int64, now int64) ([]LabeledCount, error) {
	return s.tracerouteGroupCount(ctx, "TracerouteDestinations", "dst_node", filter, hoursBack, now)
}

func (s *Store) tracerouteGroupCount(ctx context.Context, operation, column string, filter MQTTFilter, hoursBack, now int64) ([]LabeledCount, error) {
	var since int64
	if hoursBack > 0 {
		since = now - hoursBack*3600
	}
	where := fmt.Sprintf("last_seen >= ? AND %s IS NOT NULL", column)
	args := []interface{}{since}
	if clause, ok := filter.clause(); ok {
		where += " AND " + clause
	}
	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) FROM traceroute_sessions WHERE %s GROUP BY %s ORDER BY COUNT(*) DESC
	`, column, where, column)

	var rows []LabeledCount
	err := s.withConn(ctx, operation, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
			Args: args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				rows = append(rows, LabeledCount{
					Label: fmt.Sprintf("%d", stmt.ColumnInt64(0)),
					Count: stmt.ColumnInt64(1),
				})
				return nil
			},
		})
	})
	return rows, err
}

// TracerouteEvents returns the sessions most recently updated, for the
// dashboard's live event list. It's RecentSessions under a different name
// matching the collaborator contract's endpoint list; kept distinct so
// the two call sites can diverge later without renaming callers.
func (s *Store) TracerouteEvents(ctx context.Context, limit int) ([]*TracerouteSession, error) {
	return s.RecentSessions(ctx, limit)
}
