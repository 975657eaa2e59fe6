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

// Package gpio drives the serial bus lines from GPIO pins
package gpio

import (
	"errors"
	"fmt"

	iec "github.com/ZaparooProject/go-iec"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// ErrPinNotFound is returned by Open when a pin name does not resolve.
var ErrPinNotFound = errors.New("gpio pin not found")

// PinNames names the pin wired to each bus line. The wiring must keep the
// lines open-drain and non-inverting.
type PinNames struct {
	Data  string
	Clock string
	ATN   string
	Reset string
	// SRQ is optional; it is only ever sampled.
	SRQ string
}

// DefaultPinNames returns the wiring used by the reference adapter on a
// Raspberry Pi header
func DefaultPinNames() PinNames {
	return PinNames{
		Data:  "GPIO17",
		Clock: "GPIO27",
		ATN:   "GPIO22",
		Reset: "GPIO23",
		SRQ:   "GPIO24",
	}
}

type line struct {
	io   gpio.PinIO
	mask iec.Mask
}

// Lines implements iec.LineDriver over GPIO pins. Asserting a line drives
// its pin low; releasing turns the pin into a pulled-up input, so the pin
// is never driven high. Pin errors cannot be returned through the driver
// interface; the first one is kept and reported by Err.
type Lines struct {
	err   error
	lines []line
}

// New builds a driver from already opened pins. srq may be nil.
func New(data, clock, atn, reset, srq gpio.PinIO) *Lines {
	l := &Lines{lines: []line{
		{io: data, mask: iec.Data},
		{io: clock, mask: iec.Clock},
		{io: atn, mask: iec.ATN},
		{io: reset, mask: iec.Reset},
	}}
	if srq != nil {
		l.lines = append(l.lines, line{io: srq, mask: iec.SRQ})
	}
	return l
}

// Open initializes the periph host drivers, resolves the pins by name and
// releases every line.
func Open(names PinNames) (*Lines, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	lookup := func(name string) (gpio.PinIO, error) {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("%w: %s", ErrPinNotFound, name)
		}
		return p, nil
	}

	var pins [4]gpio.PinIO
	for i, name := range []string{names.Data, names.Clock, names.ATN, names.Reset} {
		p, err := lookup(name)
		if err != nil {
			return nil, err
		}
		pins[i] = p
	}
	var srq gpio.PinIO
	if names.SRQ != "" {
		p, err := lookup(names.SRQ)
		if err != nil {
			return nil, err
		}
		srq = p
	}

	l := New(pins[0], pins[1], pins[2], pins[3], srq)
	l.Release(iec.AllLines | iec.SRQ)
	if err := l.Err(); err != nil {
		return nil, err
	}
	iec.Logger().Debug("gpio lines open",
		zap.String("data", names.Data),
		zap.String("clock", names.Clock),
		zap.String("atn", names.ATN),
		zap.String("reset", names.Reset),
		zap.String("srq", names.SRQ))
	return l, nil
}

func (l *Lines) keep(err error, p gpio.PinIO) {
	if err != nil && l.err == nil {
		l.err = fmt.Errorf("pin %s: %w", p.Name(), err)
	}
}

// Assert implements iec.LineDriver.
func (l *Lines) Assert(m iec.Mask) {
	for _, ln := range l.lines {
		if m&ln.mask != 0 && ln.mask != iec.SRQ {
			l.keep(ln.io.Out(gpio.Low), ln.io)
		}
	}
}

// Release implements iec.LineDriver.
func (l *Lines) Release(m iec.Mask) {
	for _, ln := range l.lines {
		if m&ln.mask != 0 {
			l.keep(ln.io.In(gpio.PullUp, gpio.NoEdge), ln.io)
		}
	}
}

// AssertRelease implements iec.LineDriver. A line named in both masks
// ends up released.
func (l *Lines) AssertRelease(set, release iec.Mask) {
	l.Assert(set &^ release)
	l.Release(release)
}

// Sample implements iec.LineDriver. An unwired SRQ reads released.
func (l *Lines) Sample() iec.Mask {
	var m iec.Mask
	for _, ln := range l.lines {
		if ln.io.Read() == gpio.High {
			m |= ln.mask
		}
	}
	if len(l.lines) == 4 {
		m |= iec.SRQ
	}
	return m
}

// Asserted implements iec.LineDriver.
func (l *Lines) Asserted(m iec.Mask) bool {
	for _, ln := range l.lines {
		if m&ln.mask != 0 && ln.io.Read() == gpio.Low {
			return true
		}
	}
	return false
}

// Err returns the first pin error seen, if any.
func (l *Lines) Err() error {
	return l.err
}

// Close releases every line and halts the pins.
func (l *Lines) Close() error {
	l.Release(iec.AllLines | iec.SRQ)
	for _, ln := range l.lines {
		l.keep(ln.io.Halt(), ln.io)
	}
	return l.err
}
