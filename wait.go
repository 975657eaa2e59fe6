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

import "context"

// Wait blocks until the lines in code reach the requested logical state.
// With asserted true it waits while every line in code still reads high;
// with false, while every line still reads low. There is no timeout; it
// returns an error wrapping ErrCancelled once the context or abort source
// cancels.
func (b *Bus) Wait(ctx context.Context, code Code, asserted bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	mask := Translate(code)
	state := Mask(0)
	if asserted {
		state = mask
	}

	c := b.cancel(ctx)
	for b.lines.Sample()&mask == state {
		if !c.ok() {
			return b.fail(OpWait, -1, ErrCancelled, code.String())
		}
		b.delay.Delay(waitLinePeriod)
	}
	return nil
}

// Poll returns the logical state of DATA, CLK and ATN; a set bit means the
// line is asserted. RESET is not reported.
func (b *Bus) Poll() Code {
	b.mu.Lock()
	defer b.mu.Unlock()
	return pollCode(b.lines.Sample())
}

func pollCode(raw Mask) Code {
	var c Code
	if raw&Data == 0 {
		c |= CodeData
	}
	if raw&Clock == 0 {
		c |= CodeClock
	}
	if raw&ATN == 0 {
		c |= CodeATN
	}
	return c
}

// SetRelease asserts the lines in set and releases those in release as
// one driver step.
func (b *Bus) SetRelease(set, release Code) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines.AssertRelease(Translate(set), Translate(release))
}
