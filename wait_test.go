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

package iec_test

import (
	"context"
	"testing"
	"time"

	iec "github.com/ZaparooProject/go-iec"
	"github.com/ZaparooProject/go-iec/internal/bussim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWait_UntilAssertedThenReleased(t *testing.T) {
	t.Parallel()

	pulse := &bussim.Pulse{Lines: iec.Clock, From: 300 * time.Microsecond, Until: 700 * time.Microsecond}
	h := newHarness(t, devices(pulse))

	require.NoError(t, h.bus.Wait(context.Background(), iec.CodeClock, true))
	assert.GreaterOrEqual(t, h.sim.Now(), 300*time.Microsecond)
	assert.Less(t, h.sim.Now(), 320*time.Microsecond)

	require.NoError(t, h.bus.Wait(context.Background(), iec.CodeClock, false))
	assert.GreaterOrEqual(t, h.sim.Now(), 700*time.Microsecond)
	assert.Less(t, h.sim.Now(), 720*time.Microsecond)
}

func TestWait_AlreadyInState(t *testing.T) {
	t.Parallel()

	h := newHarness(t, devices(bussim.Stuck(iec.ATN)))
	require.NoError(t, h.bus.Wait(context.Background(), iec.CodeATN, true))
	assert.Equal(t, 1, h.sim.Polls())
}

func TestWait_NoTimeoutOnlyCancel(t *testing.T) {
	t.Parallel()

	sim := bussim.New()
	bus := iec.New(sim, iec.WithDelayer(sim), iec.WithAbort(sim.CancelAt(50*time.Millisecond)))

	err := bus.Wait(context.Background(), iec.CodeATN, true)
	require.ErrorIs(t, err, iec.ErrCancelled)
	assert.Equal(t, iec.OpWait, iec.GetBusError(err).Op)
	assert.GreaterOrEqual(t, sim.Now(), 50*time.Millisecond)
}

func TestWait_ContextCancelled(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.bus.Wait(ctx, iec.CodeData, true)
	require.ErrorIs(t, err, iec.ErrCancelled)
}

func TestPoll(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		held  iec.Mask
		want  iec.Code
		drive iec.Code
	}{
		{name: "idle", want: 0},
		{name: "data", held: iec.Data, want: iec.CodeData},
		{name: "clock and atn", held: iec.Clock | iec.ATN, want: iec.CodeClock | iec.CodeATN},
		{name: "reset not reported", held: iec.Reset | iec.Data, want: iec.CodeData},
		{name: "srq not reported", held: iec.SRQ, want: 0},
		{name: "own drive", drive: iec.CodeClock, want: iec.CodeClock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, devices(bussim.Stuck(tt.held)))
			h.bus.SetRelease(tt.drive, 0)
			assert.Equal(t, tt.want, h.bus.Poll())
		})
	}
}

func TestSetRelease(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)

	h.bus.SetRelease(iec.CodeClock|iec.CodeATN, 0)
	assert.Equal(t, iec.Clock|iec.ATN, h.sim.HostDrive())

	h.bus.SetRelease(iec.CodeData, iec.CodeATN)
	assert.Equal(t, iec.Clock|iec.Data, h.sim.HostDrive())

	h.bus.SetRelease(iec.CodeReset, iec.CodeClock|iec.CodeData)
	assert.Equal(t, iec.Reset, h.sim.HostDrive())

	// Out-of-range bits are ignored.
	h.bus.SetRelease(0, 0xf0|iec.CodeReset)
	assert.Equal(t, iec.Mask(0), h.sim.HostDrive())
}
