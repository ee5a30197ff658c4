// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// schemaVersion is bumped whenever migrate adds a column or table. It's
// tracked via PRAGMA user_version rather than a migrations table, since
// every change so far is additive and can be expressed as a single
// idempotent ALTER/CREATE pass gated on the stored version.
const schemaVersion = 1

const baseSchema = `
CREATE TABLE IF NOT EXISTS nodes (
	node_id       INTEGER PRIMARY KEY,
	short_name    TEXT NOT NULL DEFAULT '',
	long_name     TEXT NOT NULL DEFAULT '',
	first_seen    INTEGER NOT NULL,
	last_seen     INTEGER NOT NULL,
	last_welcomed INTEGER,
	latitude      REAL,
	longitude     REAL,
	via_mqtt      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS packets (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp      INTEGER NOT NULL,
	from_node      INTEGER NOT NULL,
	to_node        INTEGER,
	channel        INTEGER NOT NULL DEFAULT 0,
	direction      TEXT NOT NULL,
	via_mqtt       INTEGER NOT NULL DEFAULT 0,
	rssi           INTEGER,
	snr            REAL,
	hop_count      INTEGER,
	hop_start      INTEGER,
	packet_type    TEXT NOT NULL,
	payload_text   TEXT,
	mesh_packet_id INTEGER
);
CREATE INDEX IF NOT EXISTS idx_packets_timestamp ON packets(timestamp);
CREATE INDEX IF NOT EXISTS idx_packets_from_node ON packets(from_node);
CREATE INDEX IF NOT EXISTS idx_packets_type ON packets(packet_type);

CREATE TABLE IF NOT EXISTS mail (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp INTEGER NOT NULL,
	from_node INTEGER NOT NULL,
	to_node   INTEGER NOT NULL,
	body      TEXT NOT NULL,
	read      INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_mail_to_node ON mail(to_node, read);

CREATE TABLE IF NOT EXISTS traceroute_sessions (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	trace_key           TEXT NOT NULL UNIQUE,
	src_node            INTEGER NOT NULL,
	dst_node            INTEGER,
	first_seen          INTEGER NOT NULL,
	last_seen           INTEGER NOT NULL,
	via_mqtt            INTEGER NOT NULL DEFAULT 0,
	request_hop_count   INTEGER,
	request_hop_start   INTEGER,
	response_hop_count  INTEGER,
	response_hop_start  INTEGER,
	status              TEXT NOT NULL,
	sample_count        INTEGER NOT NULL DEFAULT 0,
	request_packet_id   INTEGER,
	response_packet_id  INTEGER
);
CREATE INDEX IF NOT EXISTS idx_traceroute_sessions_src ON traceroute_sessions(src_node);
CREATE INDEX IF NOT EXISTS idx_traceroute_sessions_last_seen ON traceroute_sessions(last_seen);

CREATE TABLE IF NOT EXISTS traceroute_session_hops (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  INTEGER NOT NULL REFERENCES traceroute_sessions(id),
	direction   TEXT NOT NULL,
	hop_index   INTEGER NOT NULL,
	node_id     INTEGER NOT NULL,
	observed_at INTEGER NOT NULL,
	packet_id   INTEGER,
	source_kind TEXT NOT NULL,
	UNIQUE(session_id, direction, hop_index, node_id)
);
`

// migrate applies the base schema and any additive column backfills gated
// on PRAGMA user_version. It's safe to call on every Open — CREATE TABLE
// IF NOT EXISTS and the version gate make every step idempotent.
func migrate(conn *sqlite.Conn) error {
	if err := sqlitex.ExecuteScript(conn, baseSchema, nil); err != nil {
		return fmt.Errorf("applying base schema: %w", err)
	}

	var current int64
	err := sqlitex.Execute(conn, "PRAGMA user_version", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			current = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	// Future migrations add numbered steps here, each gated on
	// `current < N`, backfilling new columns only when their value is
	// deterministically derivable from existing rows. Schema version 1
	// is the base schema above; there is nothing to backfill yet.

	if current != schemaVersion {
		if err := sqlitex.ExecuteTransient(conn, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion), nil); err != nil {
			return fmt.Errorf("writing schema version: %w", err)
		}
	}
	return nil
}
