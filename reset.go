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

// Reset pulses RESET and waits for a drive to come back. It returns true
// once a device answers the presence check. A drive that never answers is
// logged and reported as false; it is not an error at this layer, and the
// caller decides whether to go on. Cancellation also returns false.
func (b *Bus) Reset(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.logger().Debug("reset")
	b.lines.Release(Data | ATN | Clock)

	// A glitch on RESET out about 25 ms in coincides with the drive's VIAs
	// being set up; it does not affect the hold.
	b.lines.Assert(Reset)
	b.delay.Delay(resetHold)
	b.lines.Release(Reset)

	return b.waitForFreeBus(b.cancel(ctx))
}

// waitForFreeBus repeats the presence check until it succeeds, the
// configured timeout runs out, or the host aborts.
func (b *Bus) waitForFreeBus(c canceller) bool {
	attempts := b.config.freeBusAttempts()
	for i := 0; i < attempts; i++ {
		if b.busFree() {
			return true
		}

		b.delay.Delay(freeBusPoll)
		if !c.ok() {
			b.logger().Debug("free bus wait aborted", zap.Int("attempts", i+1))
			return false
		}
	}
	b.logger().Warn("no device answered after reset",
		zap.Duration("timeout", b.config.FreeBusTimeout),
		zap.Int("attempts", attempts))
	return false
}

// BusFree runs the presence handshake once: DATA must be released and
// stable, a device must grab DATA when ATN is asserted, and let it go
// again when ATN is released.
func (b *Bus) BusFree() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.busFree()
}

func (b *Bus) busFree() bool {
	b.lines.Release(AllLines)
	b.delay.Delay(freeBusRelease)

	// DATA held means a drive is not ready yet.
	if b.asserted(Data) {
		return false
	}

	b.delay.Delay(freeBusDebounce)
	if b.asserted(Data) {
		return false
	}

	// Drives usually react to ATN almost immediately.
	b.lines.Assert(ATN)
	b.delay.Delay(freeBusATNHold)

	if !b.asserted(Data) {
		b.lines.Release(ATN)
		return false
	}

	// A 1541 pulls DATA once more for about 60 us, 150-500 us after ATN is
	// released; 100 us samples before that pulse.
	b.lines.Release(ATN)
	b.delay.Delay(freeBusATNDrop)

	return !b.asserted(Data)
}
