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

import "strings"

// Mask is a set of physical bus lines. When returned by LineDriver.Sample a
// set bit means the line reads high (released).
type Mask uint8

// Physical line masks. Bit positions follow the reference adapter board.
const (
	Data  Mask = 1 << 2
	Clock Mask = 1 << 3
	ATN   Mask = 1 << 4
	SRQ   Mask = 1 << 5 // burst transfers only, never touched by Bus
	Reset Mask = 1 << 6

	// AllLines covers every line the engine drives.
	AllLines = Data | Clock | ATN | Reset
)

// String returns the line names in the mask, e.g. "DATA|ATN".
func (m Mask) String() string {
	if m == 0 {
		return "none"
	}
	names := make([]string, 0, 5)
	for _, l := range []struct {
		name string
		mask Mask
	}{
		{"DATA", Data}, {"CLK", Clock}, {"ATN", ATN}, {"SRQ", SRQ}, {"RESET", Reset},
	} {
		if m&l.mask != 0 {
			names = append(names, l.name)
		}
	}
	return strings.Join(names, "|")
}

// Code is a logical line combination as used by host software. Callers
// above the engine address lines by Code and never see physical masks.
type Code uint8

// Logical line codes.
const (
	CodeData  Code = 0x01
	CodeClock Code = 0x02
	CodeATN   Code = 0x04
	CodeReset Code = 0x08

	// codeBits covers every valid logical code.
	codeBits Code = 0x0f
)

// codeToMask maps each of the 16 logical codes to its physical mask. It is
// read-only.
var codeToMask = [16]Mask{
	0,
	Data,
	Clock,
	Data | Clock,
	ATN,
	Data | ATN,
	Clock | ATN,
	Data | Clock | ATN,
	Reset,
	Data | Reset,
	Clock | Reset,
	Data | Clock | Reset,
	ATN | Reset,
	Data | ATN | Reset,
	Clock | ATN | Reset,
	Data | Clock | ATN | Reset,
}

// Translate returns the physical mask for a logical code. Bits above the
// four defined lines are ignored.
func Translate(c Code) Mask {
	return codeToMask[c&codeBits]
}

// CodeOf is the inverse of Translate. Lines without a logical code (SRQ)
// are dropped.
func CodeOf(m Mask) Code {
	var c Code
	if m&Data != 0 {
		c |= CodeData
	}
	if m&Clock != 0 {
		c |= CodeClock
	}
	if m&ATN != 0 {
		c |= CodeATN
	}
	if m&Reset != 0 {
		c |= CodeReset
	}
	return c
}

// String returns the line names in the code.
func (c Code) String() string {
	return Translate(c).String()
}

// ParseLine resolves a line name ("data", "clk", "atn", "reset") to its
// logical code.
func ParseLine(name string) (Code, bool) {
	switch strings.ToLower(name) {
	case "data":
		return CodeData, true
	case "clk", "clock":
		return CodeClock, true
	case "atn":
		return CodeATN, true
	case "reset", "rst":
		return CodeReset, true
	default:
		return 0, false
	}
}
