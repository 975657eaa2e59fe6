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

// waitWhile polls for up to 2 ms while the masked raw levels equal state.
// It returns true once they differ. Passing state == mask waits for the
// lines to be asserted; state == 0 waits for them to be released.
func (b *Bus) waitWhile(mask, state Mask) bool {
	for count := shortWaitPolls; b.lines.Sample()&mask == state && count > 0; count-- {
		b.delay.Delay(shortWaitStep)
	}
	return b.lines.Sample()&mask != state
}

// waitClockAsserted gives the talker up to 400 us to pull CLK. A talker
// that keeps CLK released past this window is signalling EOI.
func (b *Bus) waitClockAsserted() {
	for count := eoiWaitPolls; !b.asserted(Clock) && count > 0; count-- {
		b.delay.Delay(eoiWaitStep)
	}
}

// sendByte clocks one byte out LSB first. DATA is inverted: a 0 bit is
// sent by asserting DATA while CLK is released. Hold time had no visible
// effect on a 1541; it still worked at 15 us.
func (b *Bus) sendByte(v byte) error {
	for range 8 {
		b.delay.Delay(sendSetup)

		if v&1 == 0 {
			b.lines.Assert(Data)
		}

		b.lines.Release(Clock)
		b.delay.Delay(sendHold)

		b.lines.AssertRelease(Clock, Data)
		v >>= 1
	}

	// The listener acknowledges the frame by pulling DATA, typically
	// 70-80 us after the last bit.
	if !b.waitWhile(Data, Data) {
		b.logger().Debug("send byte nak")
		return ErrAckTimeout
	}
	return nil
}

// waitForListener releases CLK to announce the talker is ready, then waits
// for every listener to release DATA. There is no timeout: the hold-off
// (Th) is unbounded for slow equipment such as printers. A 1541 answers in
// about 670 us after OPEN and 65 us between bytes.
func (b *Bus) waitForListener(c canceller) error {
	b.lines.Release(Clock)

	for b.asserted(Data) {
		if !c.ok() {
			return ErrCancelled
		}
	}
	return nil
}
