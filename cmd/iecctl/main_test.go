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

package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	iec "github.com/ZaparooProject/go-iec"
	"github.com/ZaparooProject/go-iec/internal/bussim"
	"github.com/ZaparooProject/go-iec/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testSession struct {
	*session
	sim *bussim.Sim
	out *bytes.Buffer
}

func newTestSession(t *testing.T, devices ...bussim.Device) *testSession {
	t.Helper()
	sim := bussim.New(devices...)
	buf := stream.NewBuffer()
	cfg := iec.DefaultConfig()
	cfg.FreeBusTimeout = 2 * time.Millisecond
	bus := iec.New(sim,
		iec.WithDelayer(sim),
		iec.WithGuard(sim),
		iec.WithEndpoint(buf),
		iec.WithConfig(cfg),
	)
	out := &bytes.Buffer{}
	return &testSession{session: newSession(bus, buf, out), sim: sim, out: out}
}

func TestExec_Reset(t *testing.T) {
	t.Parallel()

	drive := bussim.NewDrive()
	s := newTestSession(t, drive)
	require.NoError(t, s.exec(context.Background(), []string{"reset"}))
	assert.Equal(t, "bus free\n", s.out.String())
	assert.Equal(t, 1, drive.Resets)
}

func TestExec_ResetNoDevice(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	err := s.exec(context.Background(), []string{"reset"})
	require.ErrorIs(t, err, errNoDevice)
	assert.Empty(t, s.out.String())
}

func TestExec_ResetCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newTestSession(t)
	err := s.exec(ctx, []string{"reset"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestExec_WriteATN(t *testing.T) {
	t.Parallel()

	drive := bussim.NewDrive()
	s := newTestSession(t, drive)
	require.NoError(t, s.exec(context.Background(), []string{"write", "-atn", "0x28", "f0"}))
	assert.Equal(t, "wrote 2 bytes\n", s.out.String())
	assert.Equal(t, []byte{0x28, 0xf0}, drive.Received)
	assert.Empty(t, drive.EOIs)
}

func TestExec_WriteSignalsEOI(t *testing.T) {
	t.Parallel()

	drive := bussim.NewDrive()
	s := newTestSession(t, drive)
	require.NoError(t, s.exec(context.Background(), []string{"write", "4d2d52"}))
	assert.Equal(t, []byte("M-R"), drive.Received)
	assert.Equal(t, []int{2}, drive.EOIs)
}

func TestExec_WriteRetriesTransientErrors(t *testing.T) {
	t.Parallel()

	s := newTestSession(t)
	s.retry = &iec.RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        time.Millisecond,
		BackoffMultiplier: 1,
	}

	err := s.exec(context.Background(), []string{"write", "01"})
	require.ErrorIs(t, err, iec.ErrNoResponse)
	assert.Len(t, s.buf.Transfers, 3, "one transfer per attempt")
	assert.True(t, s.buf.Balanced())
}

func TestExec_ReadAfterTalk(t *testing.T) {
	t.Parallel()

	drive := bussim.NewTalker('O', 'K')
	s := newTestSession(t, drive)
	ctx := context.Background()

	require.NoError(t, s.exec(ctx, []string{"write", "-atn", "-talk", "48", "6f"}))
	s.out.Reset()

	require.NoError(t, s.exec(ctx, []string{"read", "16"}))
	assert.Equal(t, "read 2 bytes: 4f 4b (eoi)\n", s.out.String())

	// The latch answers the next read without touching the bus.
	s.out.Reset()
	require.NoError(t, s.exec(ctx, []string{"read", "16"}))
	assert.Equal(t, "read 0 bytes (eoi)\n", s.out.String())
}

func TestExec_Poll(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, bussim.Stuck(iec.ATN))
	require.NoError(t, s.exec(context.Background(), []string{"poll"}))
	assert.Equal(t, "DATA  released\nCLK   released\nATN   asserted\n", s.out.String())
}

func TestExec_Wait(t *testing.T) {
	t.Parallel()

	pulse := &bussim.Pulse{Lines: iec.Clock, From: 300 * time.Microsecond, Until: 700 * time.Microsecond}
	s := newTestSession(t, pulse)
	ctx := context.Background()

	require.NoError(t, s.exec(ctx, []string{"wait", "clk", "1"}))
	assert.GreaterOrEqual(t, s.sim.Now(), 300*time.Microsecond)
	require.NoError(t, s.exec(ctx, []string{"wait", "clock", "released"}))
	assert.GreaterOrEqual(t, s.sim.Now(), 700*time.Microsecond)
	assert.Equal(t, "CLK asserted\nCLK released\n", s.out.String())
}

func TestExec_UsageErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{name: "empty", args: nil},
		{name: "unknown command", args: []string{"format"}},
		{name: "write without data", args: []string{"write", "-atn"}},
		{name: "write bad hex", args: []string{"write", "zz"}},
		{name: "write bad flag", args: []string{"write", "-eoi", "01"}},
		{name: "read without count", args: []string{"read"}},
		{name: "read zero", args: []string{"read", "0"}},
		{name: "wait unknown line", args: []string{"wait", "srq", "1"}},
		{name: "wait bad state", args: []string{"wait", "atn", "maybe"}},
		{name: "wait missing state", args: []string{"wait", "atn"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newTestSession(t)
			require.ErrorIs(t, s.exec(context.Background(), tt.args), errUsage)
		})
	}
}

func TestParseHex(t *testing.T) {
	t.Parallel()

	got, err := parseHex([]string{"0x28", "F", "4d2d52"})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x28, 0x0f, 0x4d, 0x2d, 0x52}, got)

	_, err = parseHex([]string{"0x"})
	require.ErrorIs(t, err, errUsage)
}

func TestParseState(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"1", "asserted", "LOW"} {
		v, err := parseState(s)
		require.NoError(t, err)
		assert.True(t, v, s)
	}
	for _, s := range []string{"0", "released", "high"} {
		v, err := parseState(s)
		require.NoError(t, err)
		assert.False(t, v, s)
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestSession_CloseInReverseOrder(t *testing.T) {
	t.Parallel()

	var order []int
	s := newTestSession(t)
	s.closers = append(s.closers,
		closerFunc(func() error { order = append(order, 1); return nil }),
		closerFunc(func() error { order = append(order, 2); return errNoDevice }),
	)
	require.ErrorIs(t, s.Close(), errNoDevice)
	assert.Equal(t, []int{2, 1}, order)
}
