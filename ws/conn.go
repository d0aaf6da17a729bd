// Package ws implements the server side of the websocket wire protocol:
// the upgrade handshake plus unfragmented text and close frames. It knows
// nothing about the game; payloads are opaque UTF-8 text.
package ws

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"unicode/utf8"
)

const (
	opcodeContinuation = 0x0
	opcodeText         = 0x1
	opcodeClose        = 0x8

	finBit  = 0x80
	maskBit = 0x80

	// Payloads above this are unrecoverable: the frame cannot be skipped
	// without reading it, and reading it is not worth doing.
	maxPayloadBytes = 1 << 20
)

// ErrNoMessage reports a frame that carried no usable text message
// (unknown opcode, fragmented frame, invalid UTF-8). The frame has been
// consumed and the connection is still usable.
var ErrNoMessage = errors.New("ws: no message")

var errFrameTooLarge = errors.New("ws: frame exceeds size limit")

// Conn is one upgraded websocket connection. Reads must stay on a single
// goroutine; writes are serialized internally so broadcasts and direct
// replies can share the connection.
type Conn struct {
	raw net.Conn
	br  *bufio.Reader

	wmu sync.Mutex
	bw  *bufio.Writer
}

// NewConn wraps an already-upgraded network connection. brw may be nil,
// in which case fresh buffers are allocated (used by tests).
func NewConn(raw net.Conn, brw *bufio.ReadWriter) *Conn {
	c := &Conn{raw: raw}
	if brw != nil {
		c.br = brw.Reader
		c.bw = brw.Writer
	} else {
		c.br = bufio.NewReader(raw)
		c.bw = bufio.NewWriter(raw)
	}
	return c
}

// ReadMessage blocks for the next frame and returns its text payload.
// A close frame or a dead stream returns io.EOF (or the underlying
// error); frames that decode but carry no text return ErrNoMessage.
func (c *Conn) ReadMessage() (string, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(c.br, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return "", io.EOF
		}
		return "", err
	}

	fin := hdr[0]&finBit != 0
	opcode := hdr[0] & 0x0f
	masked := hdr[1]&maskBit != 0
	length := uint64(hdr[1] & 0x7f)

	switch length {
	case 126:
		var ext [2]byte
		if _, err := io.ReadFull(c.br, ext[:]); err != nil {
			return "", err
		}
		length = uint64(binary.BigEndian.Uint16(ext[:]))
	case 127:
		var ext [8]byte
		if _, err := io.ReadFull(c.br, ext[:]); err != nil {
			return "", err
		}
		length = binary.BigEndian.Uint64(ext[:])
	}
	if length > maxPayloadBytes {
		return "", errFrameTooLarge
	}

	var mask [4]byte
	if masked {
		if _, err := io.ReadFull(c.br, mask[:]); err != nil {
			return "", err
		}
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(c.br, payload); err != nil {
		return "", err
	}
	if masked {
		for i := range payload {
			payload[i] ^= mask[i%4]
		}
	}

	if opcode == opcodeClose {
		return "", io.EOF
	}
	// Fragmented messages are a protocol error here; the frame has been
	// consumed, so the stream stays in sync.
	if !fin || opcode != opcodeText {
		return "", ErrNoMessage
	}
	if !utf8.Valid(payload) {
		return "", ErrNoMessage
	}
	return string(payload), nil
}

// WriteMessage sends one unmasked final text frame.
func (c *Conn) WriteMessage(payload []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.writeFrame(opcodeText, payload)
}

// WriteClose sends an empty close frame, best effort.
func (c *Conn) WriteClose() error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.writeFrame(opcodeClose, nil)
}

func (c *Conn) writeFrame(opcode byte, payload []byte) error {
	length := len(payload)
	hdr := make([]byte, 2, 10)
	hdr[0] = finBit | opcode
	switch {
	case length <= 125:
		hdr[1] = byte(length)
	case length <= 0xffff:
		hdr[1] = 126
		hdr = binary.BigEndian.AppendUint16(hdr, uint16(length))
	default:
		hdr[1] = 127
		hdr = binary.BigEndian.AppendUint64(hdr, uint64(length))
	}
	if _, err := c.bw.Write(hdr); err != nil {
		return err
	}
	if _, err := c.bw.Write(payload); err != nil {
		return err
	}
	return c.bw.Flush()
}

// Close tears down the underlying connection.
func (c *Conn) Close() error {
	return c.raw.Close()
}
