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

// SpinDelayer busy-waits on a monotonic clock. time.Sleep cannot be used
// for bus timing: the scheduler rounds anything under a millisecond up to
// its timer slack.
type SpinDelayer struct{}

// Delay implements Delayer.
func (SpinDelayer) Delay(d time.Duration) {
	if d <= 0 {
		return
	}
	deadline := monotonicNanos() + int64(d)
	for monotonicNanos() < deadline { //nolint:revive // busy wait
	}
}

// SleepDelayer sleeps for intervals of a millisecond or more and spins for
// shorter ones. Useful where burning a core through the 30 ms reset hold
// is not acceptable.
type SleepDelayer struct{}

// Delay implements Delayer.
func (SleepDelayer) Delay(d time.Duration) {
	if d >= time.Millisecond {
		time.Sleep(d)
		return
	}
	SpinDelayer{}.Delay(d)
}
