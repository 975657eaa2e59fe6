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
	"runtime"
	"runtime/debug"
)

// NoPreemptGuard keeps the calling goroutine on its OS thread and holds off
// garbage collection for the guarded window. On a host these are the only
// pauses under the process's control that are long enough to break a
// bit clock measured in microseconds.
type NoPreemptGuard struct{}

// Disable implements InterruptGuard.
func (NoPreemptGuard) Disable() func() {
	runtime.LockOSThread()
	prev := debug.SetGCPercent(-1)
	return func() {
		debug.SetGCPercent(prev)
		runtime.UnlockOSThread()
	}
}
