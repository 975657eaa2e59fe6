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

// Package iec drives the Commodore serial bus (IEC) as bus master: reset,
// presence detection, and the byte-at-a-time CLK/DATA handshake used by
// 1541-family floppy drives, implemented directly against line state.
//
// A Bus owns one physical bus. Its collaborators (line driver, delay
// primitive, host byte stream, abort source) are injected, so the same
// engine runs against GPIO pins or the simulator in internal/bussim.
package iec

import (
	"context"
	"errors"

	"github.com/ZaparooProject/go-iec/internal/syncutil"
	"go.uber.org/zap"
)

// ErrNoEndpoint is returned by raw operations on a Bus built without an
// Endpoint.
var ErrNoEndpoint = errors.New("no host endpoint configured")

// ErrEmptyWrite is returned by RawWrite when asked for fewer than one byte.
var ErrEmptyWrite = errors.New("raw write needs at least one byte")

// Bus is a session on one serial bus. Raw operations are serialized by an
// internal lock; the EOI latch carries the end-of-message state from one
// RawRead to the next until a RawWrite clears it.
type Bus struct {
	lines    LineDriver
	delay    Delayer
	endpoint Endpoint
	abort    AbortSource
	guard    InterruptGuard
	config   *Config
	log      *zap.Logger
	trace    *TraceBuffer
	mu       syncutil.Mutex
	eoi      bool
}

// Option configures a Bus.
type Option func(*Bus)

// WithEndpoint sets the host byte stream used by raw transfers.
func WithEndpoint(ep Endpoint) Option {
	return func(b *Bus) {
		b.endpoint = ep
	}
}

// WithAbort sets the host abort source polled by every wait loop.
func WithAbort(src AbortSource) Option {
	return func(b *Bus) {
		if src != nil {
			b.abort = src
		}
	}
}

// WithDelayer replaces the spin delay. Tests pass the simulator clock.
func WithDelayer(d Delayer) Option {
	return func(b *Bus) {
		if d != nil {
			b.delay = d
		}
	}
}

// WithGuard sets the interrupt guard held around each byte received.
func WithGuard(g InterruptGuard) Option {
	return func(b *Bus) {
		if g != nil {
			b.guard = g
		}
	}
}

// WithConfig sets the engine configuration.
func WithConfig(cfg *Config) Option {
	return func(b *Bus) {
		if cfg != nil {
			b.config = cfg
		}
	}
}

// WithLogger sets a logger for this bus instead of the package logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bus) {
		b.log = l
	}
}

// WithTrace keeps the last n line changes and attaches them to every
// BusError.
func WithTrace(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.trace = NewTraceBuffer(n)
		}
	}
}

// New creates a Bus on the given line driver. Lines are not touched until
// Init or Reset is called.
func New(lines LineDriver, opts ...Option) *Bus {
	b := &Bus{
		lines:  lines,
		delay:  SpinDelayer{},
		abort:  NeverAbort,
		guard:  nopGuard{},
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.trace == nil && b.config.TraceSize > 0 {
		b.trace = NewTraceBuffer(b.config.TraceSize)
	}
	if b.trace != nil {
		b.lines = &tracingDriver{LineDriver: lines, buf: b.trace}
	}
	return b
}

// logger returns the bus logger, falling back to the package logger.
func (b *Bus) logger() *zap.Logger {
	if b.log != nil {
		return b.log
	}
	return Logger()
}

// Init releases every line and lets the bus settle.
func (b *Bus) Init() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.logger().Debug("init")
	b.lines.Release(AllLines)
	b.delay.Delay(initSettle)
}

// EOI reports whether the last RawRead ended on an end-of-message byte.
func (b *Bus) EOI() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.eoi
}

// Trace returns the recorded line changes, or nil when tracing is off.
func (b *Bus) Trace() []TraceEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.trace == nil {
		return nil
	}
	return b.trace.Entries()
}

// cancel builds the per-call abort check.
func (b *Bus) cancel(ctx context.Context) canceller {
	return canceller{ctx: ctx, abort: b.abort}
}

// fail builds a BusError, logs it and snapshots the line trace.
func (b *Bus) fail(op string, idx int, err error, detail string) *BusError {
	be := NewBusError(op, idx, err, detail)
	if b.trace != nil {
		b.trace.Note(be.Error())
		be.Trace = b.trace.Entries()
	}
	b.logger().Debug("bus operation failed",
		zap.String("op", op),
		zap.Int("byte", idx),
		zap.String("detail", detail),
		zap.Error(err))
	return be
}

// asserted reports whether any line in m reads low.
func (b *Bus) asserted(m Mask) bool {
	return b.lines.Asserted(m)
}
