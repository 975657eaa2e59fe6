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

//go:build linux

package iec

import (
	"time"

	"golang.org/x/sys/unix"
)

// rawClock is decided once so a delay never mixes readings from two
// clocks.
var rawClock = probeRawClock()

var epoch = time.Now()

func probeRawClock() bool {
	var ts unix.Timespec
	return unix.ClockGettime(unix.CLOCK_MONOTONIC_RAW, &ts) == nil
}

// monotonicNanos reads CLOCK_MONOTONIC_RAW, which NTP never slews, so a
// 20 us hold stays 20 us while the clock is being disciplined. Without it
// the monotonic reading carried by time.Time is used.
func monotonicNanos() int64 {
	if !rawClock {
		return int64(time.Since(epoch))
	}
	var ts unix.Timespec
	_ = unix.ClockGettime(unix.CLOCK_MONOTONIC_RAW, &ts)
	return ts.Nano()
}
