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

package bussim

import (
	"time"

	iec "github.com/ZaparooProject/go-iec"
)

// staleTimeout returns a listener to idle when the bus goes quiet after an
// EOI acknowledgement that was not followed by a byte.
const staleTimeout = time.Millisecond

// talkReadySettle is how long a talker keeps CLK released before sending
// when the listener did not hold DATA while it was getting ready.
const talkReadySettle = 100 * time.Microsecond

type state int

const (
	stIdle state = iota
	stReset
	stBusy
	stAttention
	stHold
	stHoldOff
	stReady
	stEOIPulse
	stEOIDone
	stBits
	stFrameEnd
	stFrameAck
	stNak
	stTurnaround
	stTalkIdle
	stTalkReady
	stTalkEOI
	stTalkEOIAck
	stTalkStart
	stTalkSetup
	stTalkValid
	stTalkAck
	stTalkGap
	stStalled
	stDone
)

var stateNames = [...]string{
	"idle", "reset", "busy", "attention", "hold", "hold-off", "ready",
	"eoi-pulse", "eoi-done", "bits", "frame-end", "frame-ack", "nak",
	"turnaround", "talk-idle", "talk-ready", "talk-eoi", "talk-eoi-ack",
	"talk-start", "talk-setup", "talk-valid", "talk-ack", "talk-gap",
	"stalled", "done",
}

func (s state) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Drive models a 1541-style device on the bus.
//
// As a listener it:
//   - grabs DATA when ATN is asserted, or when CLK is pulled while idle
//   - releases DATA HoldOff after the talker releases CLK
//   - acknowledges EOI with an EOIPulse when CLK stays released past
//     EOITimeout
//   - samples a bit on every CLK release (DATA released = 1), LSB first
//   - acknowledges each frame FrameAck after the last bit, unless NakAt
//     names the frame
//
// After a write that ends with the master holding DATA while ATN and CLK
// are released, it turns the bus around and talks the Talk bytes, flagging
// the last one with EOI. A RESET pulse forces it idle; with ResetRecovery set
// it then holds DATA for that long, the way a drive does while it boots.
type Drive struct {
	AckLatency     time.Duration
	HoldOff        time.Duration
	FrameAck       time.Duration
	EOITimeout     time.Duration
	EOIPulse       time.Duration
	ReleaseLatency time.Duration
	ResetRecovery  time.Duration
	TalkDelay      time.Duration
	BitSetup       time.Duration
	BitValid       time.Duration
	TalkGap        time.Duration

	// NakAt withholds the acknowledgement of the frame with this index
	// (counted over Received). -1 disables it.
	NakAt int
	// StallByte and StallBit freeze the talker with CLK asserted before
	// sending that bit. StallByte -1 disables it.
	StallByte int
	StallBit  int

	// Talk is the message sent after a turnaround. nil makes the drive a
	// pure listener that never takes CLK.
	Talk []byte

	// Received holds every acknowledged frame.
	Received []byte
	// EOIs lists the indexes in Received of frames preceded by an EOI
	// acknowledgement.
	EOIs []int
	// Resets counts RESET pulses seen.
	Resets int
	// Sent counts talked bytes acknowledged by the master.
	Sent int

	state       state
	since       time.Duration
	now         time.Duration
	drive       iec.Mask
	prev        iec.Mask
	shift       byte
	bits        int
	talkIdx     int
	eoiPending  bool
	// unaddressed is set while the drive holds DATA only because ATN was
	// asserted and no frame has followed.
	unaddressed bool
}

// NewDrive returns a listener with timings close to a real 1541.
func NewDrive() *Drive {
	return &Drive{
		AckLatency:     20 * time.Microsecond,
		HoldOff:        60 * time.Microsecond,
		FrameAck:       70 * time.Microsecond,
		EOITimeout:     200 * time.Microsecond,
		EOIPulse:       60 * time.Microsecond,
		ReleaseLatency: 20 * time.Microsecond,
		TalkDelay:      80 * time.Microsecond,
		BitSetup:       60 * time.Microsecond,
		BitValid:       60 * time.Microsecond,
		TalkGap:        100 * time.Microsecond,
		NakAt:          -1,
		StallByte:      -1,
	}
}

// NewTalker returns a drive that talks msg after a turnaround.
func NewTalker(msg ...byte) *Drive {
	d := NewDrive()
	d.Talk = append([]byte{}, msg...)
	return d
}

// StartTalking makes the drive the current talker without a turnaround,
// holding CLK as a device does right after one.
func (d *Drive) StartTalking(msg ...byte) {
	d.Talk = append([]byte{}, msg...)
	d.talkIdx = 0
	d.drive = iec.Clock
	d.enter(stTalkIdle)
}

// State names the drive's protocol state.
func (d *Drive) State() string {
	return d.state.String()
}

// Drive implements Device.
func (d *Drive) Drive() iec.Mask {
	return d.drive
}

func (d *Drive) enter(s state) {
	d.state = s
	d.since = d.now
}

// Step implements Device.
func (d *Drive) Step(now time.Duration, others iec.Mask) {
	d.now = now
	defer func() { d.prev = others }()

	if others&iec.Reset != 0 {
		if d.state != stReset {
			d.Resets++
			d.drive = 0
			d.eoiPending = false
			d.enter(stReset)
		}
		return
	}
	if d.state == stReset {
		if d.ResetRecovery > 0 {
			d.drive = iec.Data
			d.enter(stBusy)
		} else {
			d.enter(stIdle)
		}
		return
	}

	atnEdge := others&iec.ATN != 0 && d.prev&iec.ATN == 0
	if atnEdge && d.state != stBusy {
		d.drive = 0
		d.eoiPending = false
		d.unaddressed = true
		d.enter(stAttention)
		return
	}

	if d.state >= stTurnaround {
		d.talk(now-d.since, others)
	} else {
		d.listen(now-d.since, others)
	}
}

// listen advances the listener states.
func (d *Drive) listen(elapsed time.Duration, others iec.Mask) {
	clk := others&iec.Clock != 0
	data := others&iec.Data != 0

	switch d.state {
	case stBusy:
		if elapsed >= d.ResetRecovery {
			d.drive = 0
			d.enter(stIdle)
		}
	case stIdle:
		if clk {
			d.enter(stAttention)
		}
	case stAttention:
		if elapsed >= d.AckLatency {
			d.drive = iec.Data
			d.enter(stHold)
		}
	case stHold:
		if clk {
			d.unaddressed = false
		}
		switch {
		case !clk && others&iec.ATN == 0 && data && d.Talk != nil:
			d.enter(stTurnaround)
		case d.unaddressed && others&iec.ATN != 0:
			// ATN without the master taking CLK: keep answering until
			// ATN goes away.
		case !clk && !data:
			d.enter(stHoldOff)
		}
	case stHoldOff:
		switch {
		case clk:
			d.enter(stHold)
		case elapsed >= d.HoldOff:
			d.drive = 0
			if d.unaddressed && others&iec.ATN == 0 {
				d.unaddressed = false
				d.enter(stIdle)
				return
			}
			d.enter(stReady)
		}
	case stReady:
		switch {
		case clk:
			d.startFrame()
		case elapsed >= d.EOITimeout:
			d.drive = iec.Data
			d.eoiPending = true
			d.enter(stEOIPulse)
		}
	case stEOIPulse:
		if elapsed >= d.EOIPulse {
			d.drive = 0
			d.enter(stEOIDone)
		}
	case stEOIDone:
		switch {
		case clk:
			d.startFrame()
		case others == 0 && elapsed >= staleTimeout:
			d.eoiPending = false
			d.enter(stIdle)
		}
	case stBits:
		if d.prev&iec.Clock != 0 && !clk {
			d.shift >>= 1
			if !data {
				d.shift |= 0x80
			}
			d.bits++
			if d.bits == 8 {
				d.enter(stFrameEnd)
			}
		}
	case stFrameEnd:
		if clk {
			d.enter(stFrameAck)
		}
	case stFrameAck:
		if elapsed < d.FrameAck {
			return
		}
		if len(d.Received) == d.NakAt {
			d.eoiPending = false
			d.enter(stNak)
			return
		}
		if d.eoiPending {
			d.EOIs = append(d.EOIs, len(d.Received))
			d.eoiPending = false
		}
		d.Received = append(d.Received, d.shift)
		d.drive = iec.Data
		d.enter(stHold)
	case stNak:
		if others == 0 {
			d.enter(stIdle)
		}
	}
}

func (d *Drive) startFrame() {
	d.unaddressed = false
	d.shift = 0
	d.bits = 0
	d.enter(stBits)
}

// talk advances the talker states.
func (d *Drive) talk(elapsed time.Duration, others iec.Mask) {
	data := others&iec.Data != 0

	switch d.state {
	case stTurnaround:
		if elapsed >= d.ReleaseLatency {
			d.drive = iec.Clock
			d.talkIdx = 0
			d.enter(stTalkIdle)
		}
	case stTalkIdle:
		switch {
		case d.talkIdx >= len(d.Talk):
			d.enter(stDone)
		case elapsed >= d.TalkDelay:
			d.drive = 0
			d.enter(stTalkReady)
		}
	case stTalkReady:
		if data {
			return
		}
		// Nobody was holding DATA: give the master time to notice CLK.
		if d.prev&iec.Data == 0 && elapsed < talkReadySettle {
			return
		}
		if d.talkIdx == len(d.Talk)-1 {
			d.enter(stTalkEOI)
		} else {
			d.enter(stTalkStart)
		}
	case stTalkEOI:
		if data {
			d.enter(stTalkEOIAck)
		}
	case stTalkEOIAck:
		if !data {
			d.enter(stTalkStart)
		}
	case stTalkStart:
		if elapsed >= d.ReleaseLatency {
			d.shift = d.Talk[d.talkIdx]
			d.bits = 0
			d.setupBit()
		}
	case stTalkSetup:
		if elapsed >= d.BitSetup {
			d.drive &^= iec.Clock
			d.enter(stTalkValid)
		}
	case stTalkValid:
		if elapsed < d.BitValid {
			return
		}
		d.shift >>= 1
		d.bits++
		if d.bits == 8 {
			d.drive = iec.Clock
			d.enter(stTalkAck)
			return
		}
		d.setupBit()
	case stTalkAck:
		if !data {
			return
		}
		d.Sent++
		d.talkIdx++
		if d.talkIdx >= len(d.Talk) {
			d.enter(stDone)
		} else {
			d.enter(stTalkGap)
		}
	case stTalkGap:
		if elapsed >= d.TalkGap {
			d.drive = 0
			d.enter(stTalkReady)
		}
	case stDone:
		if elapsed >= d.ReleaseLatency {
			d.drive = 0
			d.enter(stIdle)
		}
	}
}

// setupBit pulls CLK and puts the next bit on DATA; a 0 bit asserts DATA.
func (d *Drive) setupBit() {
	if d.talkIdx == d.StallByte && d.bits == d.StallBit {
		d.drive = iec.Clock
		d.enter(stStalled)
		return
	}
	d.drive = iec.Clock
	if d.shift&1 == 0 {
		d.drive |= iec.Data
	}
	d.enter(stTalkSetup)
}

// Pulse pulls Lines low from From until Until.
type Pulse struct {
	Lines iec.Mask
	From  time.Duration
	Until time.Duration
	on    bool
}

// Step implements Device.
func (p *Pulse) Step(now time.Duration, _ iec.Mask) {
	p.on = now >= p.From && now < p.Until
}

// Drive implements Device.
func (p *Pulse) Drive() iec.Mask {
	if p.on {
		return p.Lines
	}
	return 0
}
