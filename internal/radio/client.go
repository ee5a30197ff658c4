// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package radio

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/mesh-companion/meshbot/internal/meshproto"
)

// Dialer opens the TCP connection to the attached node. Production code
// uses TCPDialer; tests substitute an in-memory pipe.
type Dialer interface {
	DialContext(ctx context.Context, address string) (net.Conn, error)
}

// TCPDialer dials a plain TCP address, e.g. "192.168.1.50:4403" — the
// Meshtastic client API port on the attached node.
type TCPDialer struct {
	// Timeout bounds the dial itself. Zero means only the context
	// deadline applies.
	Timeout time.Duration
}

func (d TCPDialer) DialContext(ctx context.Context, address string) (net.Conn, error) {
	return (&net.Dialer{Timeout: d.Timeout}).DialContext(ctx, "tcp", address)
}

// Client owns one TCP connection to the attached node: framed decode of
// inbound FromRadio frames and framed encode of outbound ToRadio frames.
// It never crashes on a malformed frame — decode failures are returned to
// the caller as diagnostics so the event loop can log and continue.
//
// Client is not safe for concurrent Send and Recv from multiple goroutines
// beyond the one reader / one writer pattern the event loop uses: one
// goroutine calls Recv in a loop, others call Send.
type Client struct {
	logger *slog.Logger

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
}

// NewClient returns a Client with no active connection. Call Connect before
// Recv or Send.
func NewClient(logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{logger: logger}
}

// Connect dials address and wants a config-complete handshake is not
// performed here — the caller drives that by reading FromRadio frames until
// MyInfo arrives, per the event loop's reconnect sequence.
func (c *Client) Connect(ctx context.Context, dialer Dialer, address string) error {
	conn, err := dialer.DialContext(ctx, address)
	if err != nil {
		return fmt.Errorf("radio: dialing %s: %w", address, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.reader = bufio.NewReaderSize(conn, 4096)
	c.mu.Unlock()

	c.logger.Info("radio connected", "address", address)
	return nil
}

// Close closes the underlying connection, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.reader = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Recv blocks until one FromRadio frame is available. It returns
// (frame, nil, nil) on success, (nil, diagnostic, nil) when a frame was
// read but failed to decode (the caller should log and keep reading), and
// (nil, nil, err) when the connection itself is unusable — err is
// radio_disconnected territory.
func (c *Client) Recv() (*meshproto.FromRadio, error, error) {
	c.mu.Lock()
	reader := c.reader
	c.mu.Unlock()
	if reader == nil {
		return nil, nil, fmt.Errorf("radio: not connected")
	}

	raw, err := readFrame(reader)
	if err != nil {
		return nil, nil, fmt.Errorf("radio: disconnected: %w", err)
	}

	frame, decodeErr := meshproto.DecodeFromRadio(raw)
	if decodeErr != nil {
		return nil, fmt.Errorf("radio: decoding frame (%d bytes): %w", len(raw), decodeErr), nil
	}
	return frame, nil, nil
}

// Send frames and writes a ToRadio envelope. The caller assigns pkt.ID
// before calling Send; Send does not generate packet IDs.
func (c *Client) Send(toRadio *meshproto.ToRadio) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("radio: not connected")
	}

	encoded := meshproto.EncodeToRadio(toRadio)
	if err := writeFrame(conn, encoded); err != nil {
		return fmt.Errorf("radio: disconnected: %w", err)
	}
	return nil
}
