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

package testing

import (
	"bytes"

	"github.com/ZaparooProject/go-meshbridge/internal/frame"
	"github.com/ZaparooProject/go-meshbridge/link"
	"github.com/ZaparooProject/go-meshbridge/packet"
)

// Default addresses used by test fixtures.
var (
	TestResponderAddress = link.Address{0x02, 0, 0, 0, 0, 0x01}
	TestInitiatorAddress = link.Address{0x02, 0, 0, 0, 0, 0x02}
)

// BuildFrame frames payload and panics if it is too large. Use it for fixtures
// known to fit.
func BuildFrame(payload []byte) []byte {
	out, err := frame.Encode(payload)
	if err != nil {
		panic(err)
	}
	return out
}

// BuildPacketFrame serializes p and frames it.
func BuildPacketFrame(p *packet.Packet) []byte {
	return BuildFrame(p.Serialize())
}

// BuildScenarioFrame returns the 16-byte frame carrying ten 0xAA bytes.
func BuildScenarioFrame() []byte {
	return BuildFrame(bytes.Repeat([]byte{0xAA}, 10))
}

// CorruptChecksum returns a copy of frm with its checksum inverted.
func CorruptChecksum(frm []byte) []byte {
	out := append([]byte(nil), frm...)
	out[len(out)-1] ^= 0xFF
	out[len(out)-2] ^= 0xFF
	return out
}

// NewTextPacket returns a flood text packet carrying body.
func NewTextPacket(body string) *packet.Packet {
	p := &packet.Packet{Payload: []byte(body)}
	p.SetHeader(packet.RouteFlood, packet.PayloadTextMsg, 0)
	return p
}

// NewOversizePacket returns a packet whose serialization is one byte longer
// than a frame can carry.
func NewOversizePacket() *packet.Packet {
	p := &packet.Packet{
		PathLen: packet.MaxPathSize,
		Path:    bytes.Repeat([]byte{0x11}, packet.MaxPathSize),
		Payload: bytes.Repeat([]byte{0x22}, packet.MaxPayloadSize+1),
	}
	p.SetHeader(packet.RouteTransportFlood, packet.PayloadRawCustom, 0)
	return p
}
