// go-meshbridge
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-meshbridge.
//
// go-meshbridge is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-meshbridge is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-meshbridge; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package frame

import "encoding/binary"

// State is the position of the parser within a frame.
type State int

const (
	StateAwaitMagicHi State = iota
	StateAwaitMagicLo
	StateLenHi
	StateLenLo
	StatePayload // payload and trailing checksum
)

func (s State) String() string {
	switch s {
	case StateAwaitMagicHi:
		return "await_magic_hi"
	case StateAwaitMagicLo:
		return "await_magic_lo"
	case StateLenHi:
		return "len_hi"
	case StateLenLo:
		return "len_lo"
	case StatePayload:
		return "payload"
	default:
		return "unknown"
	}
}

// Result is returned by Feed for every byte.
//
// Complete is false while a frame is still being assembled. A complete frame with
// a valid checksum has OK set and Length equal to the payload length. A complete
// frame whose checksum did not match reports Complete with OK unset and Length 0.
type Result struct {
	Length   int
	Complete bool
	OK       bool
}

// Failed reports a structurally complete frame that failed its checksum.
func (r Result) Failed() bool {
	return r.Complete && !r.OK
}

// Stats counts parser outcomes since creation.
type Stats struct {
	Frames           uint64
	ChecksumFailures uint64
	BadMagic         uint64
	Oversize         uint64
	Overflows        uint64
}

// Resyncs returns the number of framing errors that forced a reset.
func (s Stats) Resyncs() uint64 {
	return s.BadMagic + s.Oversize + s.Overflows
}

// Parser recovers frames from a byte stream one byte at a time. Its memory use is
// fixed at MaxFrameSize regardless of input. A Parser is not safe for concurrent use.
type Parser struct {
	stats    Stats
	pos      int
	expected int
	lastLen  int
	lastCalc uint16
	lastRecv uint16
	state    State
	buf      [MaxFrameSize]byte
}

// NewParser returns a parser waiting for the first magic byte.
func NewParser() *Parser {
	return &Parser{}
}

// Feed consumes one byte.
func (p *Parser) Feed(b byte) Result {
	switch p.state {
	case StateAwaitMagicHi:
		if b == MagicHi {
			p.buf[0] = b
			p.pos = 1
			p.state = StateAwaitMagicLo
		}
		return Result{}

	case StateAwaitMagicLo:
		if b != MagicLo {
			// a second high byte is not taken as a new frame start
			p.stats.BadMagic++
			p.Reset()
			return Result{}
		}
		p.buf[1] = b
		p.pos = 2
		p.state = StateLenHi
		return Result{}

	case StateLenHi:
		p.buf[2] = b
		p.pos = 3
		p.state = StateLenLo
		return Result{}

	case StateLenLo:
		p.buf[3] = b
		p.pos = HeaderSize
		p.expected = int(binary.BigEndian.Uint16(p.buf[2:4]))
		if p.expected > MaxWireLen {
			p.stats.Oversize++
			p.Reset()
			return Result{}
		}
		p.state = StatePayload
		return Result{}

	case StatePayload:
		if p.pos >= len(p.buf) {
			p.stats.Overflows++
			p.Reset()
			return Result{}
		}
		p.buf[p.pos] = b
		p.pos++
		if p.pos == HeaderSize+p.expected+ChecksumSize {
			return p.complete()
		}
		return Result{}
	}

	p.Reset()
	return Result{}
}

// complete validates the assembled frame and resets for the next one.
func (p *Parser) complete() Result {
	n := p.expected
	payload := p.buf[HeaderSize : HeaderSize+n]
	p.lastRecv = binary.BigEndian.Uint16(p.buf[HeaderSize+n:])
	p.lastCalc = Fletcher16(payload)
	p.Reset()

	if p.lastCalc != p.lastRecv {
		p.stats.ChecksumFailures++
		p.lastLen = 0
		return Result{Complete: true}
	}
	p.stats.Frames++
	p.lastLen = n
	return Result{Complete: true, OK: true, Length: n}
}

// Payload returns the payload of the last successfully completed frame. The slice
// aliases the parser buffer and is valid until the next call to Feed.
func (p *Parser) Payload() []byte {
	return p.buf[HeaderSize : HeaderSize+p.lastLen]
}

// LastChecksum returns the calculated and received checksums of the last
// completed frame.
func (p *Parser) LastChecksum() (calculated, received uint16) {
	return p.lastCalc, p.lastRecv
}

// Reset discards any partially assembled frame.
func (p *Parser) Reset() {
	p.pos = 0
	p.expected = 0
	p.state = StateAwaitMagicHi
}

// State returns the current parser state.
func (p *Parser) State() State {
	return p.state
}

// Buffered returns the number of bytes of the frame in progress.
func (p *Parser) Buffered() int {
	return p.pos
}

// Stats returns the parser counters.
func (p *Parser) Stats() Stats {
	return p.stats
}
