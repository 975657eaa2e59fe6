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
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// Line Trace Logging
// =============================================================================
// When tracing is enabled every assert/release is recorded in a small ring
// and a copy is attached to each BusError, so a consumer can see the line
// activity that led to a failure without enabling debug logging.

// TraceAction is the kind of line change recorded.
type TraceAction string

const (
	// TraceAssert records lines pulled low by the engine
	TraceAssert TraceAction = "assert"
	// TraceRelease records lines released by the engine
	TraceRelease TraceAction = "release"
	// TraceNote records a protocol event such as a timeout
	TraceNote TraceAction = "note"
)

// TraceEntry is one recorded line change.
type TraceEntry struct {
	Timestamp time.Time
	Action    TraceAction
	Note      string
	Lines     Mask
	// Levels is the sampled line state right after the change.
	Levels Mask
}

// String formats a trace entry for display
func (e TraceEntry) String() string {
	ts := e.Timestamp.Format("15:04:05.000000")
	if e.Action == TraceNote {
		return fmt.Sprintf("[%s] %s", ts, e.Note)
	}
	return fmt.Sprintf("[%s] %-7s %-14s low=%s", ts, e.Action, e.Lines, lowLines(e.Levels))
}

// lowLines lists the lines reading low in a sampled mask.
func lowLines(levels Mask) Mask {
	return ^levels & (AllLines | SRQ)
}

func formatTrace(op string, entries []TraceEntry) string {
	if len(entries) == 0 {
		return fmt.Sprintf("[%s] (no trace data)", op)
	}

	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "[%s] Line trace (%d entries):\n", op, len(entries))
	for _, entry := range entries {
		_, _ = sb.WriteString("  ")
		_, _ = sb.WriteString(entry.String())
		_, _ = sb.WriteString("\n")
	}
	return sb.String()
}

// TraceBuffer is a fixed-size ring of line changes, oldest evicted first.
type TraceBuffer struct {
	entries []TraceEntry
	maxSize int
}

// NewTraceBuffer creates a trace buffer holding up to maxSize entries.
func NewTraceBuffer(maxSize int) *TraceBuffer {
	if maxSize <= 0 {
		maxSize = 64
	}
	return &TraceBuffer{
		entries: make([]TraceEntry, 0, maxSize),
		maxSize: maxSize,
	}
}

// Record adds a line change.
func (tb *TraceBuffer) Record(action TraceAction, lines, levels Mask) {
	tb.add(TraceEntry{Action: action, Lines: lines, Levels: levels, Timestamp: time.Now()})
}

// Note adds a free-form protocol event.
func (tb *TraceBuffer) Note(note string) {
	tb.add(TraceEntry{Action: TraceNote, Note: note, Timestamp: time.Now()})
}

func (tb *TraceBuffer) add(entry TraceEntry) {
	if len(tb.entries) >= tb.maxSize {
		copy(tb.entries, tb.entries[1:])
		tb.entries[len(tb.entries)-1] = entry
		return
	}
	tb.entries = append(tb.entries, entry)
}

// Entries returns a copy of the recorded entries.
func (tb *TraceBuffer) Entries() []TraceEntry {
	out := make([]TraceEntry, len(tb.entries))
	copy(out, tb.entries)
	return out
}

// Clear resets the trace buffer
func (tb *TraceBuffer) Clear() {
	tb.entries = tb.entries[:0]
}

// tracingDriver records every line change the engine makes.
type tracingDriver struct {
	LineDriver
	buf *TraceBuffer
}

func (t *tracingDriver) Assert(m Mask) {
	t.LineDriver.Assert(m)
	t.buf.Record(TraceAssert, m, t.LineDriver.Sample())
}

func (t *tracingDriver) Release(m Mask) {
	t.LineDriver.Release(m)
	t.buf.Record(TraceRelease, m, t.LineDriver.Sample())
}

func (t *tracingDriver) AssertRelease(set, release Mask) {
	t.LineDriver.AssertRelease(set, release)
	levels := t.LineDriver.Sample()
	t.buf.Record(TraceAssert, set, levels)
	t.buf.Record(TraceRelease, release, levels)
}
