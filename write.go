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

package iec

import (
	"context"

	"go.uber.org/zap"
)

// WriteFlags qualifies a raw write.
type WriteFlags uint8

const (
	// WriteATN sends the bytes under ATN (command phase). No EOI is
	// signalled on the last byte.
	WriteATN WriteFlags = 1 << iota
	// WriteTalk turns the bus around after the write so the addressed
	// device can talk.
	WriteTalk
)

// RawWrite sends n bytes taken from the endpoint. It returns n on success
// and 0 with a *BusError on any failure; bytes already clocked out before
// the failure are not counted. The final byte of a non-ATN write is
// preceded by the EOI handshake.
func (b *Bus) RawWrite(ctx context.Context, n int, flags WriteFlags) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.endpoint == nil {
		return 0, ErrNoEndpoint
	}
	// Nothing would be clocked out; leave the lines alone.
	if n <= 0 {
		return 0, ErrEmptyWrite
	}

	atn := flags&WriteATN != 0
	talk := flags&WriteTalk != 0
	c := b.cancel(ctx)
	b.eoi = false

	b.logger().Debug("raw write", zap.Int("len", n), zap.Bool("atn", atn), zap.Bool("talk", talk))

	b.endpoint.Begin(n, DirOut)
	b.lines.Release(Data)
	if atn {
		b.lines.Assert(Clock | ATN)
	} else {
		b.lines.Assert(Clock)
	}

	// Any device present grabs DATA once we hold CLK.
	if !b.waitWhile(Data, Data) {
		b.lines.Release(Clock | ATN)
		b.endpoint.End()
		return 0, b.fail(OpWrite, -1, ErrNoResponse, "no devices")
	}

	if err := b.writeBytes(c, n, atn); err != nil {
		b.endpoint.End()
		b.lines.Release(Clock | ATN)
		return 0, err
	}
	b.endpoint.End()

	written := n
	var err error
	if talk {
		// Hold DATA and hand CLK to the device; it grabs CLK once it is
		// ready to talk.
		b.lines.Assert(Data)
		b.lines.Release(Clock | ATN)
		for !b.asserted(Clock) {
			if !c.ok() {
				written = 0
				err = b.fail(OpWrite, -1, ErrCancelled, "talk turnaround")
				break
			}
		}
	} else {
		b.lines.Release(ATN)
	}

	b.delay.Delay(commandSettle)

	b.logger().Debug("raw write done", zap.Int("written", written))
	return written, err
}

// writeBytes runs the per-byte handshake for all n bytes.
func (b *Bus) writeBytes(c canceller, n int, atn bool) error {
	for i := 0; i < n; i++ {
		b.delay.Delay(writeByteLead)

		// The listener must still be holding DATA.
		if !b.asserted(Data) {
			return b.fail(OpWrite, i, ErrNoResponse, "device not present")
		}

		if err := b.waitForListener(c); err != nil {
			return b.fail(OpWrite, i, err, "wait for listener")
		}

		// Without EOI, CLK must be asserted again within ~150 us or the
		// listener takes it as EOI.
		if i == n-1 && !atn {
			// Signal EOI by waiting (>200 us) until the listener pulls
			// DATA, then for it to let go.
			b.waitWhile(Data, Data)
			b.waitWhile(Data, 0)
		}
		b.lines.Assert(Clock)

		v, err := b.endpoint.Receive()
		if err != nil {
			return b.fail(OpWrite, i, streamError(err), "host receive")
		}

		if err := b.sendByte(v); err != nil {
			return b.fail(OpWrite, i, err, "send byte")
		}
		b.delay.Delay(writeByteGap)
	}
	return nil
}
