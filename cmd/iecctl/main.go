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

// Command iecctl drives a Commodore serial bus wired to GPIO pins.
//
// Usage:
//
//	iecctl [flags] reset
//	iecctl [flags] write [-atn] [-talk] HEX...
//	iecctl [flags] read N
//	iecctl [flags] poll
//	iecctl [flags] wait LINE STATE
//	iecctl [flags] monitor
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	iec "github.com/ZaparooProject/go-iec"
	"github.com/ZaparooProject/go-iec/stream"
	"github.com/ZaparooProject/go-iec/transport/gpio"
	"github.com/ZaparooProject/go-iec/transport/serial"
)

type config struct {
	pins    gpio.PinNames
	port    string
	logDir  string
	baud    int
	retries int
	trace   int
	timeout time.Duration
	debug   bool
}

// Package-level flag variables
var (
	flagData    string
	flagClock   string
	flagATN     string
	flagReset   string
	flagSRQ     string
	flagPort    string
	flagLogDir  string
	flagBaud    int
	flagRetries int
	flagTrace   int
	flagTimeout time.Duration
	flagDebug   bool
)

func init() {
	pins := gpio.DefaultPinNames()
	flag.StringVar(&flagData, "data", pins.Data, "GPIO pin wired to DATA")
	flag.StringVar(&flagClock, "clock", pins.Clock, "GPIO pin wired to CLK")
	flag.StringVar(&flagATN, "atn", pins.ATN, "GPIO pin wired to ATN")
	flag.StringVar(&flagReset, "reset", pins.Reset, "GPIO pin wired to RESET")
	flag.StringVar(&flagSRQ, "srq", pins.SRQ, "GPIO pin wired to SRQ (empty if not connected)")
	flag.StringVar(&flagPort, "port", "", "Serial port carrying the host byte stream (hex arguments if empty)")
	flag.IntVar(&flagBaud, "baud", serial.DefaultBaudRate, "Serial port baud rate")
	flag.DurationVar(&flagTimeout, "timeout", 0, "Deadline for the whole command (0 waits forever)")
	flag.IntVar(&flagRetries, "retries", 1, "Attempts for write and read on transient bus errors")
	flag.IntVar(&flagTrace, "trace", 0, "Keep the last N line changes and print them on failure")
	flag.BoolVar(&flagDebug, "debug", false, "Enable debug output")
	flag.StringVar(&flagLogDir, "log", "", "Directory for a debug session log (disabled if empty)")
}

func parseConfig() *config {
	cfg := &config{
		pins: gpio.PinNames{
			Data:  flagData,
			Clock: flagClock,
			ATN:   flagATN,
			Reset: flagReset,
			SRQ:   flagSRQ,
		},
		port:    flagPort,
		baud:    flagBaud,
		timeout: flagTimeout,
		retries: flagRetries,
		trace:   flagTrace,
		debug:   flagDebug,
		logDir:  flagLogDir,
	}

	if cfg.debug {
		iec.SetDebugEnabled(true)
	}

	return cfg
}

// openSession opens the GPIO lines and the host stream described by cfg.
func openSession(cfg *config, out io.Writer) (*session, error) {
	lines, err := gpio.Open(cfg.pins)
	if err != nil {
		return nil, fmt.Errorf("failed to open bus lines: %w", err)
	}

	var (
		ep  iec.Endpoint
		buf *stream.Buffer
	)
	closers := []io.Closer{lines}
	if cfg.port != "" {
		port, err := serial.Open(cfg.port, cfg.baud, serial.DefaultReadTimeout)
		if err != nil {
			_ = lines.Close()
			return nil, err
		}
		ep = port
		closers = append(closers, port)
	} else {
		buf = stream.NewBuffer()
		ep = buf
	}

	bus := iec.New(lines,
		iec.WithEndpoint(ep),
		iec.WithDelayer(iec.SleepDelayer{}),
		iec.WithGuard(iec.NoPreemptGuard{}),
		iec.WithTrace(cfg.trace),
	)
	bus.Init()

	s := newSession(bus, buf, out)
	s.retry.MaxAttempts = cfg.retries
	s.closers = closers
	return s, nil
}

func run(ctx context.Context, cfg *config, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	if cfg.logDir != "" {
		path, err := iec.InitSessionLog(cfg.logDir)
		if err != nil {
			return fmt.Errorf("failed to start session log: %w", err)
		}
		defer func() { _ = iec.CloseSessionLog() }()
		iec.Debugf("session log at %s", path)
	}

	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	s, err := openSession(cfg, os.Stdout)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close bus: %v\n", err)
		}
	}()

	err = s.exec(ctx, args)
	if be := iec.GetBusError(err); be != nil && cfg.trace > 0 {
		_, _ = fmt.Fprintln(os.Stderr, be.FormatTrace())
	}
	return err
}

func main() {
	flag.Usage = usage
	flag.Parse()
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	cfg := parseConfig()

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		_, _ = fmt.Print("\nShutting down gracefully...\n")
		cancel()
	}()

	if err := run(ctx, cfg, flag.Args()); err != nil {
		if errors.Is(err, context.Canceled) || (errors.Is(err, iec.ErrCancelled) && ctx.Err() != nil) {
			// User requested shutdown, exit cleanly
			return 0
		}
		if errors.Is(err, errUsage) {
			flag.Usage()
			return 2
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func usage() {
	_, _ = fmt.Fprintf(flag.CommandLine.Output(), `Usage: iecctl [flags] COMMAND [ARGS]

Commands:
  reset                     reset the bus and wait for a drive to answer
  write [-atn] [-talk] HEX  raw write; with -port the argument is a byte count
  read N                    raw read of up to N bytes
  poll                      print the asserted lines
  wait LINE STATE           block until LINE (data|clk|atn|reset) is STATE (1 asserted, 0 released)
  monitor                   live view of the bus lines

Flags:
`)
	flag.PrintDefaults()
}
