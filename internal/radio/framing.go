// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package radio adapts the Meshtastic client TCP API: a byte stream carrying
// length-delimited FromRadio/ToRadio protobuf frames behind a two-byte magic
// preamble. It owns only the wire framing and decode; packet classification
// and dispatch belong to the event loop.
package radio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Preamble bytes the device prefixes every frame with. Anything else on the
// wire is either noise from a device still booting or a stream that has
// lost frame sync; the reader resyncs by scanning for this pair.
const (
	preambleByte1 = 0x94
	preambleByte2 = 0xc3
)

// maxFrameSize bounds a single frame. The device's own serial/TCP API caps
// frames well under this; it exists to stop a desynced stream from reading
// unbounded "length" as a giant allocation request.
const maxFrameSize = 1 << 16

// readFrame reads one length-delimited frame from r, resyncing past any
// stray bytes that precede a valid preamble. Returns io.EOF (unwrapped) when
// the stream closes cleanly between frames.
func readFrame(r *bufio.Reader) ([]byte, error) {
	if err := syncPreamble(r); err != nil {
		return nil, err
	}

	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("radio: reading frame length: %w", err)
	}
	length := binary.BigEndian.Uint16(lenBuf[:])
	if int(length) > maxFrameSize {
		return nil, fmt.Errorf("radio: frame length %d exceeds max %d", length, maxFrameSize)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("radio: reading frame payload: %w", err)
	}
	return payload, nil
}

// syncPreamble consumes bytes until it has positioned the reader right after
// a preambleByte1, preambleByte2 pair, or returns the underlying read error
// (including io.EOF) if the stream ends first.
func syncPreamble(r *bufio.Reader) error {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		if b != preambleByte1 {
			continue
		}
		b2, err := r.ReadByte()
		if err != nil {
			return err
		}
		if b2 == preambleByte2 {
			return nil
		}
		// Not a real preamble; b2 might itself start one, so don't
		// discard it — let the outer loop re-examine it as a fresh
		// candidate for preambleByte1.
		if b2 == preambleByte1 {
			if err := r.UnreadByte(); err != nil {
				return err
			}
		}
	}
}

// writeFrame writes one length-delimited frame to w.
func writeFrame(w io.Writer, payload []byte) error {
	if len(payload) > maxFrameSize {
		return fmt.Errorf("radio: frame payload %d bytes exceeds max %d", len(payload), maxFrameSize)
	}
	header := [4]byte{preambleByte1, preambleByte2}
	binary.BigEndian.PutUint16(header[2:], uint16(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("radio: writing frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("radio: writing frame payload: %w", err)
	}
	return nil
}
