// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package stream provides host byte stream endpoints that are not tied to
// a physical link.
package stream

import (
	"errors"
	"fmt"
	"io"

	iec "github.com/ZaparooProject/go-iec"
)

// ErrEmpty is returned by Receive when a Buffer has no bytes left.
var ErrEmpty = errors.New("stream: no bytes left")

// Transfer records one Begin/End bracket.
type Transfer struct {
	Len    int
	Dir    iec.Direction
	Closed bool
}

// Buffer is an in-memory endpoint. Receive consumes Source in order and
// Send appends to Sink.
type Buffer struct {
	// SendErr, when set, is returned by Send once SendFailAt bytes have
	// been delivered.
	SendErr error
	// ReceiveErr, when set, is returned by Receive once ReceiveFailAt bytes
	// have been consumed.
	ReceiveErr error

	Source []byte
	Sink   []byte

	Transfers []Transfer

	SendFailAt    int
	ReceiveFailAt int

	pos int
}

// NewBuffer returns a Buffer that will feed src to raw writes.
func NewBuffer(src ...byte) *Buffer {
	return &Buffer{Source: append([]byte{}, src...)}
}

// Begin implements iec.Endpoint.
func (b *Buffer) Begin(n int, dir iec.Direction) {
	b.Transfers = append(b.Transfers, Transfer{Len: n, Dir: dir})
}

// End implements iec.Endpoint.
func (b *Buffer) End() {
	if len(b.Transfers) > 0 {
		b.Transfers[len(b.Transfers)-1].Closed = true
	}
}

// Send implements iec.Endpoint.
func (b *Buffer) Send(v byte) error {
	if b.SendErr != nil && len(b.Sink) >= b.SendFailAt {
		return b.SendErr
	}
	b.Sink = append(b.Sink, v)
	return nil
}

// Receive implements iec.Endpoint.
func (b *Buffer) Receive() (byte, error) {
	if b.ReceiveErr != nil && b.pos >= b.ReceiveFailAt {
		return 0, b.ReceiveErr
	}
	if b.pos >= len(b.Source) {
		return 0, ErrEmpty
	}
	v := b.Source[b.pos]
	b.pos++
	return v, nil
}

// Consumed returns how many source bytes have been taken.
func (b *Buffer) Consumed() int {
	return b.pos
}

// Rewind restarts Source from its first byte and empties Sink, so the
// same transfer can be replayed.
func (b *Buffer) Rewind() {
	b.pos = 0
	b.Sink = b.Sink[:0]
}

// Balanced reports whether every Begin was matched by an End.
func (b *Buffer) Balanced() bool {
	for _, t := range b.Transfers {
		if !t.Closed {
			return false
		}
	}
	return true
}

// IO is an endpoint over a reader and a writer, such as a pipe or a
// terminal. Bytes are moved one at a time without buffering, so a
// transfer cut short leaves nothing queued.
type IO struct {
	r   io.Reader
	w   io.Writer
	buf [1]byte
}

// NewIO returns an endpoint reading raw-write bytes from r and writing
// raw-read bytes to w. Either may be nil if that direction is unused.
func NewIO(r io.Reader, w io.Writer) *IO {
	return &IO{r: r, w: w}
}

// Begin implements iec.Endpoint.
func (*IO) Begin(int, iec.Direction) {}

// End implements iec.Endpoint. A writer with a Flush method is flushed.
func (s *IO) End() {
	if f, ok := s.w.(interface{ Flush() error }); ok {
		_ = f.Flush()
	}
}

// Send implements iec.Endpoint.
func (s *IO) Send(v byte) error {
	if s.w == nil {
		return fmt.Errorf("stream: send: %w", io.ErrClosedPipe)
	}
	s.buf[0] = v
	if _, err := s.w.Write(s.buf[:]); err != nil {
		return fmt.Errorf("stream: send: %w", err)
	}
	return nil
}

// Receive implements iec.Endpoint.
func (s *IO) Receive() (byte, error) {
	if s.r == nil {
		return 0, fmt.Errorf("stream: receive: %w", io.EOF)
	}
	if _, err := io.ReadFull(s.r, s.buf[:]); err != nil {
		return 0, fmt.Errorf("stream: receive: %w", err)
	}
	return s.buf[0], nil
}
