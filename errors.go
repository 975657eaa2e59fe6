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
	"errors"
	"fmt"
	"io"
)

// Error categories for bus operations. Every failure returned by a raw
// operation wraps exactly one of these.
var (
	// Line-level timeouts - potentially retryable
	ErrNoResponse = errors.New("no device responded")
	ErrAckTimeout = errors.New("byte not acknowledged")
	ErrBitTimeout = errors.New("bit clock timeout")

	// Host side - not retryable
	ErrCancelled = errors.New("operation cancelled")
	ErrStream    = errors.New("host stream failed")
)

// Operation names used in BusError.Op.
const (
	OpWrite = "write"
	OpRead  = "read"
	OpWait  = "wait"
)

// BusError wraps a bus failure with the operation and byte position it
// happened at. Byte is -1 when the failure precedes the first byte.
type BusError struct {
	Err    error
	Op     string
	Detail string
	Trace  []TraceEntry
	Byte   int
}

func (e *BusError) Error() string {
	msg := e.Op
	if e.Byte >= 0 {
		msg += fmt.Sprintf(" byte %d", e.Byte)
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %v", msg, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *BusError) Unwrap() error {
	return e.Err
}

// FormatTrace returns the recorded line activity leading up to the error.
func (e *BusError) FormatTrace() string {
	return formatTrace(e.Op, e.Trace)
}

// NewBusError creates a BusError for op at byte index idx.
func NewBusError(op string, idx int, err error, detail string) *BusError {
	return &BusError{
		Op:     op,
		Byte:   idx,
		Err:    err,
		Detail: detail,
	}
}

// streamError maps an endpoint failure onto the error taxonomy. Endpoints
// signal a host abort by returning an error that wraps ErrCancelled.
func streamError(err error) error {
	if errors.Is(err, ErrCancelled) {
		return ErrCancelled
	}
	return fmt.Errorf("%w: %w", ErrStream, err)
}

// IsRetryable returns true if repeating the operation may succeed. Line
// timeouts are retryable; cancellations and host stream failures are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrCancelled),
		errors.Is(err, ErrStream):
		return false
	case errors.Is(err, ErrNoResponse),
		errors.Is(err, ErrAckTimeout),
		errors.Is(err, ErrBitTimeout):
		return true
	default:
		return false
	}
}

// IsFatal returns true if the host side of the link is gone and further
// operations cannot succeed.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, ErrStream)
}

// GetBusError extracts the BusError from err, returning nil if not present.
func GetBusError(err error) *BusError {
	var be *BusError
	if errors.As(err, &be) {
		return be
	}
	return nil
}
