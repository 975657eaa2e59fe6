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

// Package serial carries the host byte stream over a serial port, such as
// the USB CDC-ACM link of an adapter.
package serial

import (
	"errors"
	"fmt"
	"io"
	"time"

	iec "github.com/ZaparooProject/go-iec"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

// ErrTimeout is returned by Receive when no byte arrives within the read
// timeout.
var ErrTimeout = errors.New("serial read timeout")

const (
	// DefaultBaudRate is ignored by CDC-ACM links but required by UARTs.
	DefaultBaudRate = 115200
	// DefaultReadTimeout bounds a single Receive.
	DefaultReadTimeout = 1 * time.Second
)

// Endpoint implements iec.Endpoint over a serial port. Bytes are moved
// one per call; a transfer cut short by the bus leaves nothing half-sent.
type Endpoint struct {
	port     serial.Port
	portName string
	dir      iec.Direction
	buf      [1]byte
}

// Open opens portName and returns an endpoint on it.
func Open(portName string, baud int, timeout time.Duration) (*Endpoint, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set serial read timeout: %w", err)
	}

	iec.Logger().Debug("serial endpoint open",
		zap.String("port", portName),
		zap.Int("baud", baud),
		zap.Duration("timeout", timeout))
	return NewEndpoint(port, portName), nil
}

// NewEndpoint wraps an already open port.
func NewEndpoint(port serial.Port, portName string) *Endpoint {
	return &Endpoint{port: port, portName: portName}
}

// Begin implements iec.Endpoint.
func (e *Endpoint) Begin(n int, dir iec.Direction) {
	e.dir = dir
	iec.Logger().Debug("serial transfer",
		zap.String("port", e.portName),
		zap.Int("len", n),
		zap.Stringer("dir", dir))
}

// End implements iec.Endpoint. After a read, bytes already written to the
// port are drained to the host.
func (e *Endpoint) End() {
	if e.dir != iec.DirIn {
		return
	}
	if err := e.port.Drain(); err != nil {
		iec.Logger().Debug("serial drain failed", zap.Error(err))
	}
}

// Send implements iec.Endpoint.
func (e *Endpoint) Send(v byte) error {
	e.buf[0] = v
	n, err := e.port.Write(e.buf[:])
	if err != nil {
		return fmt.Errorf("serial write: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("serial write: %w", io.ErrShortWrite)
	}
	return nil
}

// Receive implements iec.Endpoint. The port returns no data once its read
// timeout expires.
func (e *Endpoint) Receive() (byte, error) {
	n, err := e.port.Read(e.buf[:])
	if err != nil {
		return 0, fmt.Errorf("serial read: %w", err)
	}
	if n == 0 {
		return 0, ErrTimeout
	}
	return e.buf[0], nil
}

// Close closes the port.
func (e *Endpoint) Close() error {
	if err := e.port.Close(); err != nil {
		return fmt.Errorf("failed to close serial port %s: %w", e.portName, err)
	}
	return nil
}
