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

// Package bussim provides a line-level simulator of the serial bus for
// tests.
//
// A Sim is the bus master's view of the wire: it implements iec.LineDriver,
// iec.Delayer and iec.InterruptGuard, so a Bus can run against it
// unchanged. Time is virtual and advances in 1 us ticks; every delay and
// every line sample moves the clock, so busy-wait loops without a delay
// still make progress. Devices attached to the sim are stepped on every
// tick and see the wired-AND state of all other participants: a line reads
// low when anyone pulls it.
package bussim

import (
	"time"

	iec "github.com/ZaparooProject/go-iec"
)

// Tick is the simulator's time resolution.
const Tick = time.Microsecond

// pollCost is the time a line sample takes on the simulated master.
const pollCost = Tick

// allLines is every physical line the simulator models.
const allLines = iec.AllLines | iec.SRQ

// Device is a bus participant.
type Device interface {
	// Step advances the device to now. others holds the lines pulled low by
	// every other participant, the master included.
	Step(now time.Duration, others iec.Mask)
	// Drive returns the lines the device currently pulls low.
	Drive() iec.Mask
}

// Edge is a change of the lines driven by the master.
type Edge struct {
	At time.Duration
	// Asserted is the master's drive after the change.
	Asserted iec.Mask
}

// Sim is a simulated bus with a virtual clock.
type Sim struct {
	devices []Device
	edges   []Edge
	clocked []bool
	now     time.Duration
	host    iec.Mask
	polls   int
	guards  int
	depth   int
}

// New creates a simulator with the given devices attached.
func New(devices ...Device) *Sim {
	return &Sim{devices: devices}
}

// Attach adds a device to the bus.
func (s *Sim) Attach(d Device) {
	s.devices = append(s.devices, d)
}

// Now returns the virtual time.
func (s *Sim) Now() time.Duration {
	return s.now
}

// Advance moves the clock forward by d, stepping every device each tick.
func (s *Sim) Advance(d time.Duration) {
	for end := s.now + d; s.now < end; {
		s.now += Tick
		s.step()
	}
}

func (s *Sim) step() {
	for i, d := range s.devices {
		d.Step(s.now, s.lowExcept(i))
	}
}

// lowExcept returns the lines pulled low by everyone but device skip.
// skip < 0 includes every device.
func (s *Sim) lowExcept(skip int) iec.Mask {
	low := s.host
	for i, d := range s.devices {
		if i != skip {
			low |= d.Drive()
		}
	}
	return low
}

// Low returns the lines currently pulled low by anyone.
func (s *Sim) Low() iec.Mask {
	return s.lowExcept(-1)
}

// HostDrive returns the lines the master is pulling low.
func (s *Sim) HostDrive() iec.Mask {
	return s.host
}

func (s *Sim) setHost(m iec.Mask) {
	if m == s.host {
		return
	}
	// A 1 bit is clocked when the master releases CLK with DATA released.
	if s.host&iec.Clock != 0 && m&iec.Clock == 0 {
		s.clocked = append(s.clocked, m&iec.Data != 0)
	}
	s.host = m
	s.edges = append(s.edges, Edge{At: s.now, Asserted: m})
}

// Assert implements iec.LineDriver.
func (s *Sim) Assert(m iec.Mask) {
	s.setHost(s.host | m)
}

// Release implements iec.LineDriver.
func (s *Sim) Release(m iec.Mask) {
	s.setHost(s.host &^ m)
}

// AssertRelease implements iec.LineDriver.
func (s *Sim) AssertRelease(set, release iec.Mask) {
	s.setHost((s.host | set) &^ release)
}

// Sample implements iec.LineDriver. Sampling costs one tick.
func (s *Sim) Sample() iec.Mask {
	s.polls++
	s.Advance(pollCost)
	return ^s.Low() & allLines
}

// Asserted implements iec.LineDriver. Sampling costs one tick.
func (s *Sim) Asserted(m iec.Mask) bool {
	s.polls++
	s.Advance(pollCost)
	return s.Low()&m != 0
}

// Delay implements iec.Delayer on the virtual clock. Intervals shorter than
// a tick take one tick.
func (s *Sim) Delay(d time.Duration) {
	if d < Tick {
		d = Tick
	}
	s.Advance(d)
}

// Disable implements iec.InterruptGuard and counts guarded windows.
func (s *Sim) Disable() func() {
	s.guards++
	s.depth++
	restored := false
	return func() {
		if !restored {
			restored = true
			s.depth--
		}
	}
}

// GuardCount returns how many guarded windows were entered.
func (s *Sim) GuardCount() int {
	return s.guards
}

// GuardDepth returns the number of guarded windows not yet restored.
func (s *Sim) GuardDepth() int {
	return s.depth
}

// Polls returns how many times the master sampled the lines.
func (s *Sim) Polls() int {
	return s.polls
}

// Edges returns every change of the master's drive, oldest first.
func (s *Sim) Edges() []Edge {
	out := make([]Edge, len(s.edges))
	copy(out, s.edges)
	return out
}

// ClockedData returns, for every CLK release by the master, whether the
// master was holding DATA low at that moment.
func (s *Sim) ClockedData() []bool {
	out := make([]bool, len(s.clocked))
	copy(out, s.clocked)
	return out
}

// ClearLog forgets recorded edges and clocked bits.
func (s *Sim) ClearLog() {
	s.edges = s.edges[:0]
	s.clocked = s.clocked[:0]
}

// CancelAt returns an abort source that cancels once the virtual clock
// reaches t.
func (s *Sim) CancelAt(t time.Duration) iec.AbortSource {
	return iec.AbortFunc(func() bool {
		return s.now < t
	})
}

// CancelAfterPolls returns an abort source that cancels on its n-th poll.
func CancelAfterPolls(n int) iec.AbortSource {
	calls := 0
	return iec.AbortFunc(func() bool {
		calls++
		return calls < n
	})
}

// Stuck is a device that holds lines low forever, e.g. a drive wedged with
// DATA asserted.
type Stuck iec.Mask

// Step implements Device.
func (Stuck) Step(time.Duration, iec.Mask) {}

// Drive implements Device.
func (s Stuck) Drive() iec.Mask {
	return iec.Mask(s)
}
