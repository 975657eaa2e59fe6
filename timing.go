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

// Bus protocol timing. These were measured against real 1541/1571 drives
// and are part of the wire contract; do not change them.
const (
	// Settle after releasing every line at init.
	initSettle = 100 * time.Microsecond

	// RESET hold time. 20 ms leaves the drive half reset (motor does not
	// spin); the drive grabs DATA about 25 ms after RESET goes active.
	resetHold = 30 * time.Millisecond

	// Free-bus detection. DATA must read released twice 50 us apart; drives
	// were seen to glitch when DATA was stable for less than 38 us.
	freeBusRelease  = 50 * time.Microsecond
	freeBusDebounce = 50 * time.Microsecond
	freeBusATNHold  = 100 * time.Microsecond
	freeBusATNDrop  = 100 * time.Microsecond
	freeBusPoll     = 100 * time.Microsecond

	// Bounded 2 ms wait: 200 polls, 10 us apart.
	shortWaitPolls = 200
	shortWaitStep  = 10 * time.Microsecond

	// EOI detection window on read: 200 polls, 2 us apart (400 us).
	eoiWaitPolls = 200
	eoiWaitStep  = 2 * time.Microsecond

	// Send timing. The protocol minimum for setup (Ts) is 20 us and the typical
	// 70 us is still too short for a 1541; 72 us works, 75 leaves margin.
	// The 1541 itself uses about 120 us Ts and 70 us Tv.
	sendSetup = 75 * time.Microsecond
	sendHold  = 20 * time.Microsecond

	// Raw write gaps.
	writeByteLead  = 50 * time.Microsecond
	writeByteGap   = 100 * time.Microsecond
	commandSettle  = 100 * time.Microsecond
	waitLinePeriod = 10 * time.Microsecond

	// Raw read. The talker gets 50000 x 20 us (1 s) to release CLK; this
	// commonly expires while a drive reads a directory.
	talkerReadyPolls = 50000
	talkerReadyStep  = 20 * time.Microsecond
	eoiAckHold       = 70 * time.Microsecond
	readByteGap      = 50 * time.Microsecond
)
