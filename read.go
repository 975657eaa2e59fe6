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

// RawRead receives up to n bytes from the current talker and delivers them
// to the endpoint. It stops early after a byte flagged with EOI.
//
// Once EOI has been seen, every following RawRead returns 0 without
// touching the bus until a RawWrite clears the latch. On any failure the
// result is 0 even if some bytes were already delivered to the endpoint.
func (b *Bus) RawRead(ctx context.Context, n int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.endpoint == nil {
		return 0, ErrNoEndpoint
	}

	b.logger().Debug("raw read", zap.Int("len", n))
	b.endpoint.Begin(n, DirIn)
	defer b.endpoint.End()

	// The previous message ended; there is nothing more to read.
	if b.eoi {
		return 0, nil
	}

	c := b.cancel(ctx)
	count := 0
	for count < n && !b.eoi {
		if err := b.waitTalkerReady(c, count); err != nil {
			return 0, err
		}

		b.lines.Release(Data)
		b.waitClockAsserted()

		// CLK still released: the talker is signalling EOI. Acknowledge
		// with a DATA pulse; the byte itself still follows.
		if !b.asserted(Clock) {
			b.eoi = true
			b.logger().Debug("eoi", zap.Int("byte", count))
			b.lines.Assert(Data)
			b.delay.Delay(eoiAckHold)
			b.lines.Release(Data)
		}

		v, ok := b.receiveByte()
		if !ok {
			return 0, b.fail(OpRead, count, ErrBitTimeout, "read io")
		}

		// Acknowledge the byte.
		b.lines.Assert(Data)

		if err := b.endpoint.Send(v); err != nil {
			return 0, b.fail(OpRead, count, streamError(err), "host send")
		}
		count++
		b.delay.Delay(readByteGap)
	}

	b.logger().Debug("raw read done", zap.Int("read", count), zap.Bool("eoi", b.eoi))
	return count, nil
}

// waitTalkerReady waits for the talker to release CLK. This is the wait
// that usually expires while a drive is busy reading a directory.
func (b *Bus) waitTalkerReady(c canceller, idx int) error {
	for polls := 0; b.asserted(Clock); polls++ {
		if !c.ok() {
			return b.fail(OpRead, idx, ErrCancelled, "wait for talker")
		}
		if polls >= talkerReadyPolls {
			return b.fail(OpRead, idx, ErrNoResponse, "talker timeout")
		}
		b.delay.Delay(talkerReadyStep)
	}
	return nil
}

// receiveByte clocks in 8 bits, LSB first, inside the interrupt guard.
// Each bit is sampled as CLK is released; DATA released reads as 1.
func (b *Bus) receiveByte() (byte, bool) {
	restore := b.guard.Disable()
	defer restore()

	if !b.waitWhile(Clock, Clock) {
		return 0, false
	}

	var v byte
	for range 8 {
		if !b.waitWhile(Clock, 0) {
			return 0, false
		}
		v >>= 1
		if !b.asserted(Data) {
			v |= 0x80
		}
		if !b.waitWhile(Clock, Clock) {
			return 0, false
		}
	}
	return v, true
}
