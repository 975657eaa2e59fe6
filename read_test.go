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
	"errors"
	"testing"
	"time"

	iec "github.com/ZaparooProject/go-iec"
	"github.com/ZaparooProject/go-iec/internal/bussim"
	"github.com/ZaparooProject/go-iec/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawRead_AfterTalkTurnaround(t *testing.T) {
	t.Parallel()

	drive := bussim.NewTalker('O', 'K')
	h := newHarness(t, devices(drive))
	h.buf.Source = []byte{0x48, 0x6f}

	// TALK 8, secondary 15.
	n, err := h.bus.RawWrite(context.Background(), 2, iec.WriteATN|iec.WriteTalk)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	assert.Equal(t, []byte{0x48, 0x6f}, drive.Received)

	n, err = h.bus.RawRead(context.Background(), 16)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "stops at the EOI byte")
	assert.Equal(t, []byte("OK"), h.buf.Sink)
	assert.True(t, h.bus.EOI())
	assert.Equal(t, 2, drive.Sent)
}

func TestRawRead_EOILatch(t *testing.T) {
	t.Parallel()

	drive := bussim.NewDrive()
	drive.StartTalking(0x42)
	h := newHarness(t, devices(drive))

	n, err := h.bus.RawRead(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "EOI byte is still delivered")
	assert.Equal(t, []byte{0x42}, h.buf.Sink)
	require.True(t, h.bus.EOI())

	polls := h.sim.Polls()
	edges := len(h.sim.Edges())

	n, err = h.bus.RawRead(context.Background(), 8)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, polls, h.sim.Polls(), "latched read must not sample the bus")
	assert.Len(t, h.sim.Edges(), edges, "latched read must not drive the bus")
	assert.Len(t, h.buf.Transfers, 2)
	assert.True(t, h.buf.Balanced())
}

func TestRawRead_ShortReadKeepsTalker(t *testing.T) {
	t.Parallel()

	drive := bussim.NewDrive()
	drive.StartTalking(1, 2, 3)
	h := newHarness(t, devices(drive))

	n, err := h.bus.RawRead(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, h.bus.EOI())

	n, err = h.bus.RawRead(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, h.bus.EOI())
	assert.Equal(t, []byte{1, 2, 3}, h.buf.Sink)
}

func TestRawRead_BitValues(t *testing.T) {
	t.Parallel()

	msg := []byte{0x00, 0xff, 0xfe, 0x01, 0xa5, 0x5a}
	drive := bussim.NewDrive()
	drive.StartTalking(msg...)
	h := newHarness(t, devices(drive))

	n, err := h.bus.RawRead(context.Background(), len(msg))
	require.NoError(t, err)
	assert.Equal(t, len(msg), n)
	assert.Equal(t, msg, h.buf.Sink)
	assert.Equal(t, len(msg), h.sim.GuardCount())
	assert.Zero(t, h.sim.GuardDepth())
}

func TestRawRead_CancelledWaitingForTalker(t *testing.T) {
	t.Parallel()

	drive := bussim.NewDrive()
	drive.TalkDelay = time.Hour
	drive.StartTalking(0x42)

	sim := bussim.New(drive)
	buf := stream.NewBuffer()
	bus := iec.New(sim,
		iec.WithDelayer(sim),
		iec.WithGuard(sim),
		iec.WithEndpoint(buf),
		iec.WithAbort(sim.CancelAt(time.Millisecond)))

	n, err := bus.RawRead(context.Background(), 1)
	assert.Zero(t, n)
	require.ErrorIs(t, err, iec.ErrCancelled)
	assert.Equal(t, iec.OpRead, iec.GetBusError(err).Op)
	assert.Empty(t, buf.Sink)
	assert.Zero(t, sim.GuardCount(), "no byte window was entered")
	assert.True(t, buf.Balanced())
}

func TestRawRead_ContextCancelled(t *testing.T) {
	t.Parallel()

	drive := bussim.NewDrive()
	drive.StartTalking(0x42)
	h := newHarness(t, devices(drive))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := h.bus.RawRead(ctx, 1)
	assert.Zero(t, n)
	require.ErrorIs(t, err, iec.ErrCancelled)
	assert.False(t, iec.IsRetryable(err))
}

func TestRawRead_TalkerTimeout(t *testing.T) {
	t.Parallel()

	drive := bussim.NewDrive()
	drive.TalkDelay = time.Hour
	drive.StartTalking(0x42)
	h := newHarness(t, devices(drive))

	n, err := h.bus.RawRead(context.Background(), 1)
	assert.Zero(t, n)
	require.ErrorIs(t, err, iec.ErrNoResponse)
	assert.True(t, iec.IsRetryable(err))
	// 50000 polls of 20 us.
	assert.GreaterOrEqual(t, h.sim.Now(), time.Second)
}

func TestRawRead_BitStallDiscardsCount(t *testing.T) {
	t.Parallel()

	drive := bussim.NewDrive()
	drive.StallByte = 1
	drive.StallBit = 3
	drive.StartTalking(0x11, 0x22)
	h := newHarness(t, devices(drive))

	n, err := h.bus.RawRead(context.Background(), 2)
	assert.Zero(t, n, "bytes delivered before the failure are not counted")
	require.ErrorIs(t, err, iec.ErrBitTimeout)
	assert.Equal(t, 1, iec.GetBusError(err).Byte)

	// The first byte already reached the host.
	assert.Equal(t, []byte{0x11}, h.buf.Sink)
	assert.Equal(t, 2, h.sim.GuardCount())
	assert.Zero(t, h.sim.GuardDepth(), "guard restored on the failure path")
	assert.True(t, h.buf.Balanced())
}

func TestRawRead_HostSendFails(t *testing.T) {
	t.Parallel()

	drive := bussim.NewDrive()
	drive.StartTalking(0x11, 0x22)
	h := newHarness(t, devices(drive))
	h.buf.SendErr = errors.New("host gone")
	h.buf.SendFailAt = 1

	n, err := h.bus.RawRead(context.Background(), 2)
	assert.Zero(t, n)
	require.ErrorIs(t, err, iec.ErrStream)
	assert.True(t, iec.IsFatal(err))
	assert.Equal(t, []byte{0x11}, h.buf.Sink)
}

func TestRawRead_HostCancelViaStream(t *testing.T) {
	t.Parallel()

	drive := bussim.NewDrive()
	drive.StartTalking(0x11, 0x22)
	h := newHarness(t, devices(drive))
	h.buf.SendErr = iec.ErrCancelled
	h.buf.SendFailAt = 0

	n, err := h.bus.RawRead(context.Background(), 2)
	assert.Zero(t, n)
	require.ErrorIs(t, err, iec.ErrCancelled)
	assert.NotErrorIs(t, err, iec.ErrStream)
}
