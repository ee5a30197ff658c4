// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// MailMessage is a store-and-forward message left for a node that was
// offline when it was sent.
type MailMessage struct {
	ID        int64
	Timestamp int64
	FromNode  uint32
	ToNode    uint32
	Body      string
	Read      bool
}

// LeaveMail records a message for toNode.
func (s *Store) LeaveMail(ctx context.Context, fromNode, toNode uint32, body string, at int64) error {
	return s.withWrite(ctx, "LeaveMail", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`INSERT INTO mail (timestamp, from_node, to_node, body, read) VALUES (?, ?, ?, ?, 0)`,
			&sqlitex.ExecOptions{Args: []interface{}{at, int64(fromNode), int64(toNode), body}})
	})
}

// UnreadMailFor returns toNode's unread mail, oldest first.
func (s *Store) UnreadMailFor(ctx context.Context, toNode uint32) ([]MailMessage, error) {
	var out []MailMessage
	err := s.withConn(ctx, "UnreadMailFor", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT id, timestamp, from_node, to_node, body, read FROM mail WHERE to_node = ? AND read = 0 ORDER BY timestamp ASC`,
			&sqlitex.ExecOptions{
				Args: []interface{}{int64(toNode)},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					out = append(out, scanMail(stmt))
					return nil
				},
			})
	})
	return out, err
}

// MarkMailRead flags a mail row as delivered. It is not deleted, so the
// dashboard can still show delivery history.
func (s *Store) MarkMailRead(ctx context.Context, id int64) error {
	return s.withWrite(ctx, "MarkMailRead", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `UPDATE mail SET read = 1 WHERE id = ?`,
			&sqlitex.ExecOptions{Args: []interface{}{id}})
	})
}

// DeleteMail removes a mail row outright, whoever it is addressed to;
// DeleteMailOwned is the owner-checked variant.
func (s *Store) DeleteMail(ctx context.Context, id int64) error {
	return s.withWrite(ctx, "DeleteMail", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `DELETE FROM mail WHERE id = ?`,
			&sqlitex.ExecOptions{Args: []interface{}{id}})
	})
}

// CountUnreadMail returns how many unread messages are waiting for
// toNode.
func (s *Store) CountUnreadMail(ctx context.Context, toNode uint32) (int64, error) {
	var count int64
	err := s.withConn(ctx, "CountUnreadMail", func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `SELECT COUNT(*) FROM mail WHERE to_node = ? AND read = 0`,
			&sqlitex.ExecOptions{
				Args: []interface{}{int64(toNode)},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					count = stmt.ColumnInt64(0)
					return nil
				},
			})
	})
	return count, err
}

// DeleteMailOwned deletes mail id only if it belongs to ownerNode,
// reporting whether a row was actually removed.
func (s *Store) DeleteMailOwned(ctx context.Context, id int64, ownerNode uint32) (bool, error) {
	var removed bool
	err := s.withWrite(ctx, "DeleteMailOwned", func(conn *sqlite.Conn) error {
		if err := sqlitex.Execute(conn, `DELETE FROM mail WHERE id = ? AND to_node = ?`,
			&sqlitex.ExecOptions{Args: []interface{}{id, int64(ownerNode)}}); err != nil {
			return err
		}
		removed = conn.Changes() > 0
		return nil
	})
	return removed, err
}

func scanMail(stmt *sqlite.Stmt) MailMessage {
	return MailMessage{
		ID:        stmt.ColumnInt64(0),
		Timestamp: stmt.ColumnInt64(1),
		FromNode:  uint32(stmt.ColumnInt64(2)),
		ToNode:    uint32(stmt.ColumnInt64(3)),
		Body:      stmt.ColumnText(4),
		Read:      stmt.ColumnInt(5) != 0,
	}
}
