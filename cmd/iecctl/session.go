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
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	iec "github.com/ZaparooProject/go-iec"
	"github.com/ZaparooProject/go-iec/stream"
)

var (
	errUsage    = errors.New("invalid usage")
	errNoDevice = errors.New("no device answered after reset")
)

// session runs commands against one open bus.
type session struct {
	bus   *iec.Bus
	retry *iec.RetryConfig
	out   io.Writer
	// buf is the host stream when no serial port is used; nil otherwise.
	buf     *stream.Buffer
	closers []io.Closer
}

func newSession(bus *iec.Bus, buf *stream.Buffer, out io.Writer) *session {
	retry := iec.DefaultRetryConfig()
	retry.MaxAttempts = 1
	return &session{bus: bus, buf: buf, out: out, retry: retry}
}

// Close releases the lines and closes the host stream.
func (s *session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *session) exec(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	iec.Debugf("command %s %v", cmd, rest)

	switch cmd {
	case "reset":
		return s.reset(ctx)
	case "write":
		return s.write(ctx, rest)
	case "read":
		return s.read(ctx, rest)
	case "poll":
		return s.poll()
	case "wait":
		return s.wait(ctx, rest)
	case "monitor":
		return runMonitor(ctx, s.bus)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func (s *session) reset(ctx context.Context) error {
	if !s.bus.Reset(ctx) {
		if err := ctx.Err(); err != nil {
			return err
		}
		return errNoDevice
	}
	_, _ = fmt.Fprintln(s.out, "bus free")
	return nil
}

func (s *session) write(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("write", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	atn := fs.Bool("atn", false, "send under ATN")
	talk := fs.Bool("talk", false, "turn the bus around for a talker")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	var flags iec.WriteFlags
	if *atn {
		flags |= iec.WriteATN
	}
	if *talk {
		flags |= iec.WriteTalk
	}

	// A serial stream cannot be replayed, so it gets a single attempt.
	if s.buf == nil {
		n, err := countArg(fs.Args())
		if err != nil {
			return err
		}
		written, err := s.bus.RawWrite(ctx, n, flags)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(s.out, "wrote %d bytes\n", written)
		return nil
	}

	data, err := parseHex(fs.Args())
	if err != nil {
		return err
	}
	s.buf.Source = data

	var written int
	err = iec.Retry(ctx, s.retry, func() error {
		s.buf.Rewind()
		var werr error
		written, werr = s.bus.RawWrite(ctx, len(data), flags)
		return werr
	})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(s.out, "wrote %d bytes\n", written)
	return nil
}

func (s *session) read(ctx context.Context, args []string) error {
	n, err := countArg(args)
	if err != nil {
		return err
	}

	if s.buf == nil {
		got, err := s.bus.RawRead(ctx, n)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(s.out, "read %d bytes%s\n", got, eoiSuffix(s.bus.EOI()))
		return nil
	}

	var got int
	err = iec.Retry(ctx, s.retry, func() error {
		s.buf.Rewind()
		var rerr error
		got, rerr = s.bus.RawRead(ctx, n)
		return rerr
	})
	if err != nil {
		return err
	}
	if got == 0 {
		_, _ = fmt.Fprintf(s.out, "read 0 bytes%s\n", eoiSuffix(s.bus.EOI()))
		return nil
	}
	_, _ = fmt.Fprintf(s.out, "read %d bytes: % x%s\n", got, s.buf.Sink, eoiSuffix(s.bus.EOI()))
	return nil
}

func eoiSuffix(eoi bool) string {
	if eoi {
		return " (eoi)"
	}
	return ""
}

func (s *session) poll() error {
	code := s.bus.Poll()
	for _, l := range polledLines {
		_, _ = fmt.Fprintf(s.out, "%-5s %s\n", l.name, lineState(code&l.code != 0))
	}
	return nil
}

func (s *session) wait(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: wait takes LINE and STATE", errUsage)
	}
	code, ok := iec.ParseLine(args[0])
	if !ok {
		return fmt.Errorf("%w: unknown line %q", errUsage, args[0])
	}
	asserted, err := parseState(args[1])
	if err != nil {
		return err
	}

	if err := s.bus.Wait(ctx, code, asserted); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(s.out, "%s %s\n", code, lineState(asserted))
	return nil
}

// polledLines are the lines Poll reports, in display order.
var polledLines = []struct {
	name string
	code iec.Code
}{
	{"DATA", iec.CodeData},
	{"CLK", iec.CodeClock},
	{"ATN", iec.CodeATN},
}

func lineState(asserted bool) string {
	if asserted {
		return "asserted"
	}
	return "released"
}

func parseState(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "asserted", "low":
		return true, nil
	case "0", "released", "high":
		return false, nil
	default:
		return false, fmt.Errorf("%w: unknown line state %q", errUsage, s)
	}
}

func countArg(args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%w: expected one byte count", errUsage)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: invalid byte count %q", errUsage, args[0])
	}
	return n, nil
}

// parseHex decodes arguments such as "0x28", "6f" or "4d2d52". Odd-length
// arguments get a leading zero.
func parseHex(args []string) ([]byte, error) {
	var out []byte
	for _, a := range args {
		h := strings.TrimPrefix(strings.ToLower(a), "0x")
		if len(h)%2 == 1 {
			h = "0" + h
		}
		b, err := hex.DecodeString(h)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid hex %q", errUsage, a)
		}
		out = append(out, b...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: nothing to write", errUsage)
	}
	return out, nil
}
