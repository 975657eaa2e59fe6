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

package bussim

import (
	"testing"
	"time"

	iec "github.com/ZaparooProject/go-iec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSim_WiredAND(t *testing.T) {
	t.Parallel()

	s := New(Stuck(iec.Data))
	s.Assert(iec.Clock)

	assert.True(t, s.Asserted(iec.Data))
	assert.True(t, s.Asserted(iec.Clock))
	assert.False(t, s.Asserted(iec.ATN))
	assert.Equal(t, iec.ATN|iec.Reset|iec.SRQ, s.Sample())

	// Releasing our side does not release a line someone else holds.
	s.Release(iec.Data | iec.Clock)
	assert.True(t, s.Asserted(iec.Data))
	assert.Equal(t, iec.Mask(0), s.HostDrive())
}

func TestSim_SamplingAdvancesClock(t *testing.T) {
	t.Parallel()

	s := New()
	for range 10 {
		s.Sample()
	}
	assert.Equal(t, 10*Tick, s.Now())
	assert.Equal(t, 10, s.Polls())

	s.Delay(75 * time.Microsecond)
	assert.Equal(t, 85*time.Microsecond, s.Now())

	s.Delay(0)
	assert.Equal(t, 86*time.Microsecond, s.Now(), "sub-tick delays take a tick")
}

func TestSim_EdgesAndClockedData(t *testing.T) {
	t.Parallel()

	s := New()
	s.Assert(iec.Clock)
	s.Assert(iec.Data)
	s.Release(iec.Clock)
	s.AssertRelease(iec.Clock, iec.Data)
	s.Release(iec.Clock)
	s.Release(iec.Clock) // no change, no edge

	edges := s.Edges()
	require.Len(t, edges, 5)
	assert.Equal(t, iec.Clock|iec.Data, edges[1].Asserted)
	assert.Equal(t, iec.Data, edges[2].Asserted)
	assert.Equal(t, iec.Clock, edges[3].Asserted)
	assert.Equal(t, []bool{true, false}, s.ClockedData())

	s.ClearLog()
	assert.Empty(t, s.Edges())
	assert.Empty(t, s.ClockedData())
}

func TestSim_Guard(t *testing.T) {
	t.Parallel()

	s := New()
	restore := s.Disable()
	assert.Equal(t, 1, s.GuardDepth())
	restore()
	restore()
	assert.Zero(t, s.GuardDepth())
	assert.Equal(t, 1, s.GuardCount())
}

func TestSim_CancelAt(t *testing.T) {
	t.Parallel()

	s := New()
	abort := s.CancelAt(50 * time.Microsecond)
	assert.True(t, abort.Poll())
	s.Advance(50 * time.Microsecond)
	assert.False(t, abort.Poll())
}

func TestCancelAfterPolls(t *testing.T) {
	t.Parallel()

	abort := CancelAfterPolls(3)
	assert.True(t, abort.Poll())
	assert.True(t, abort.Poll())
	assert.False(t, abort.Poll())
}

func TestPulse(t *testing.T) {
	t.Parallel()

	p := &Pulse{Lines: iec.ATN, From: 10 * time.Microsecond, Until: 20 * time.Microsecond}
	s := New(p)

	s.Advance(9 * time.Microsecond)
	assert.False(t, s.Low()&iec.ATN != 0)
	s.Advance(Tick)
	assert.True(t, s.Low()&iec.ATN != 0)
	s.Advance(10 * time.Microsecond)
	assert.False(t, s.Low()&iec.ATN != 0)
}

func TestDrive_AnswersATN(t *testing.T) {
	t.Parallel()

	d := NewDrive()
	s := New(d)

	s.Assert(iec.ATN)
	s.Advance(d.AckLatency + Tick)
	assert.Equal(t, "hold", d.State())
	assert.True(t, s.Low()&iec.Data != 0)

	// Released without a frame: unaddressed, back to idle after hold-off.
	s.Release(iec.ATN)
	s.Advance(d.HoldOff + Tick)
	assert.Equal(t, "idle", d.State())
	assert.Zero(t, s.Low())
}

func TestDrive_HoldsDataWhileATN(t *testing.T) {
	t.Parallel()

	d := NewDrive()
	s := New(d)

	// No CLK from the master: DATA stays held for as long as ATN is.
	s.Assert(iec.ATN)
	s.Advance(10 * d.HoldOff)
	assert.Equal(t, "hold", d.State())
	assert.True(t, s.Low()&iec.Data != 0)

	s.Release(iec.ATN)
	s.Advance(d.HoldOff + Tick)
	assert.Equal(t, "idle", d.State())
	assert.Zero(t, s.Low())
}

func TestDrive_ResetRecovery(t *testing.T) {
	t.Parallel()

	d := NewDrive()
	d.ResetRecovery = time.Millisecond
	s := New(d)

	s.Assert(iec.Reset)
	s.Advance(10 * Tick)
	assert.Equal(t, "reset", d.State())
	s.Release(iec.Reset)
	s.Advance(Tick)
	assert.Equal(t, "busy", d.State())
	assert.True(t, s.Low()&iec.Data != 0)

	s.Advance(time.Millisecond)
	assert.Equal(t, "idle", d.State())
	assert.Equal(t, 1, d.Resets)
}
