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

import "time"

// Config holds the tunable parts of the engine. Everything else is a fixed
// protocol timing, see timing.go.
type Config struct {
	// FreeBusTimeout bounds how long Reset waits for a drive to answer
	// after RESET is released. A 1541 takes about 1.2 s. Default: 1.5 s
	FreeBusTimeout time.Duration

	// TraceSize is the number of line changes kept for BusError traces.
	// 0 disables tracing.
	TraceSize int
}

// DefaultConfig returns the default engine configuration
func DefaultConfig() *Config {
	return &Config{
		FreeBusTimeout: 1500 * time.Millisecond,
	}
}

// freeBusAttempts converts the timeout into bus-free detection attempts,
// one per poll step.
func (c *Config) freeBusAttempts() int {
	n := int(c.FreeBusTimeout / freeBusPoll)
	if n < 1 {
		return 1
	}
	return n
}
