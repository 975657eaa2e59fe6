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
	"time"
)

// LineDriver drives the open-collector bus lines. Asserting pulls a line
// low; releasing lets the pull-up float it high. A line is never driven high.
// This can be implemented by GPIO pins, a bit-bang adapter or a simulator.
type LineDriver interface {
	// Assert pulls every line in m low.
	Assert(m Mask)

	// Release floats every line in m.
	Release(m Mask)

	// AssertRelease asserts set and releases release as one step.
	AssertRelease(set, release Mask)

	// Sample returns the raw line levels; a set bit is a line reading high.
	Sample() Mask

	// Asserted reports whether any line in m currently reads low.
	Asserted(m Mask) bool
}

// AbortSource is polled once per busy-wait iteration. Poll returns false
// when the host asked for the running operation to be cancelled.
type AbortSource interface {
	Poll() bool
}

// AbortFunc adapts a plain function to AbortSource.
type AbortFunc func() bool

// Poll implements AbortSource.
func (f AbortFunc) Poll() bool {
	return f()
}

// NeverAbort is an AbortSource that never cancels.
var NeverAbort AbortSource = AbortFunc(func() bool { return true })

// Direction is the direction of a stream transfer relative to the bus.
type Direction int

const (
	// DirOut carries bytes from the host to the bus (raw write).
	DirOut Direction = iota
	// DirIn carries bytes from the bus to the host (raw read).
	DirIn
)

func (d Direction) String() string {
	if d == DirIn {
		return "in"
	}
	return "out"
}

// Endpoint streams transfer bytes to and from the host one at a time.
// Begin and End bracket every raw operation.
type Endpoint interface {
	// Begin announces a transfer of n bytes in direction dir.
	Begin(n int, dir Direction)

	// End closes the current transfer.
	End()

	// Send delivers one byte read from the bus to the host.
	Send(b byte) error

	// Receive returns the next byte the host wants written to the bus.
	Receive() (byte, error)
}

// Delayer blocks for a fixed interval. Implementations must not yield
// early; every bus timing in this package depends on it.
type Delayer interface {
	Delay(d time.Duration)
}

// InterruptGuard suppresses unrelated servicing on the current execution
// context. The returned func restores it and must be called exactly once.
type InterruptGuard interface {
	Disable() (restore func())
}

type nopGuard struct{}

func (nopGuard) Disable() func() { return func() {} }

// canceller folds the context and the host abort source into one check.
type canceller struct {
	ctx   context.Context
	abort AbortSource
}

// ok reports whether the operation may keep waiting.
func (c canceller) ok() bool {
	if c.ctx.Err() != nil {
		return false
	}
	return c.abort.Poll()
}
