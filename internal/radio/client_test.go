// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package radio

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/mesh-companion/meshbot/internal/meshproto"
)

type pipeDialer struct {
	conn net.Conn
}

func (d pipeDialer) DialContext(ctx context.Context, address string) (net.Conn, error) {
	return d.conn, nil
}

func TestClientRecvRoundTrip(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	defer serverSide.Close()

	c := NewClient(nil)
	if err := c.Connect(context.Background(), pipeDialer{conn: clientSide}, "ignored"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	frame := &meshproto.FromRadio{MyInfo: &meshproto.MyInfo{MyNodeNum: 0xAAAA}}
	encoded := meshproto.EncodeFromRadio(frame)

	go func() {
		_ = writeFrame(serverSide, encoded)
	}()

	got, diag, err := c.Recv()
	if err != nil {
		t.Fatalf("Recv returned connection error: %v", err)
	}
	if diag != nil {
		t.Fatalf("Recv returned decode diagnostic: %v", diag)
	}
	if got.MyInfo == nil || got.MyInfo.MyNodeNum != 0xAAAA {
		t.Fatalf("Recv() = %+v, want MyNodeNum 0xAAAA", got)
	}
}

func TestClientRecvDecodeFailureDoesNotKillConnection(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	defer serverSide.Close()

	c := NewClient(nil)
	if err := c.Connect(context.Background(), pipeDialer{conn: clientSide}, "ignored"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	// A field with a wire type that consumeUint32 doesn't accept:
	// field 3 (my_info) tagged as Fixed32Type instead of BytesType.
	malformed := []byte{0x1d, 0x01, 0x02, 0x03, 0x04}

	go func() {
		_ = writeFrame(serverSide, malformed)
		valid := meshproto.EncodeFromRadio(&meshproto.FromRadio{MyInfo: &meshproto.MyInfo{MyNodeNum: 7}})
		_ = writeFrame(serverSide, valid)
	}()

	_, diag, err := c.Recv()
	if err != nil {
		t.Fatalf("Recv returned connection error on malformed frame: %v", err)
	}
	if diag == nil {
		t.Fatal("Recv should report a decode diagnostic for a malformed frame")
	}

	got, diag2, err := c.Recv()
	if err != nil || diag2 != nil {
		t.Fatalf("second Recv failed: err=%v diag=%v", err, diag2)
	}
	if got.MyInfo.MyNodeNum != 7 {
		t.Fatalf("second Recv() = %+v, want MyNodeNum 7", got)
	}
}

func TestClientSendWritesFrame(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	defer serverSide.Close()
	defer clientSide.Close()

	c := NewClient(nil)
	if err := c.Connect(context.Background(), pipeDialer{conn: clientSide}, "ignored"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	toRadio := &meshproto.ToRadio{Packet: &meshproto.MeshPacket{From: 1, To: 2, ID: 99}}

	done := make(chan error, 1)
	go func() { done <- c.Send(toRadio) }()

	raw, err := readFrame(bufio.NewReader(serverSide))
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Send: %v", err)
	}

	decoded, err := meshproto.DecodeToRadio(raw)
	if err != nil {
		t.Fatalf("DecodeToRadio: %v", err)
	}
	if decoded.Packet.ID != 99 {
		t.Fatalf("decoded packet ID = %d, want 99", decoded.Packet.ID)
	}
}

func TestSyncPreambleSkipsNoise(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0xff, 0x94, 0x01}) // noise, then a false-start 0x94 not followed by 0xc3
	if err := writeFrame(&buf, []byte("hello")); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}

	r := bufio.NewReader(&buf)
	got, err := readFrame(r)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("readFrame() = %q, want %q", got, "hello")
	}
}

func TestTCPDialerRespectsTimeout(t *testing.T) {
	d := TCPDialer{Timeout: 10 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	// 192.0.2.0/24 is reserved (TEST-NET-1) and never routes, so the dial
	// blocks until the timeout fires rather than failing fast.
	_, err := d.DialContext(ctx, "192.0.2.1:4403")
	if err == nil {
		t.Fatal("expected dial to a non-routable address to fail")
	}
}
