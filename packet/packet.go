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

// Package packet implements the mesh packet wire format carried inside bridge frames.
//
// Layout on the wire:
//
//	HEADER(1) | [TRANSPORT_CODES(4)] | PATH_LEN(1) | PATH(PATH_LEN) | PAYLOAD(...)
//
// Transport codes are only present for the transport route types.
package packet

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
)

// Size limits of a mesh packet.
const (
	MaxPathSize    = 64
	MaxPayloadSize = 184
	HashSize       = 8

	// MaxWireLen is the largest serialized packet: header + transport codes +
	// path length + path + payload.
	MaxWireLen = 1 + 4 + 1 + MaxPathSize + MaxPayloadSize
)

// Header bit layout.
const (
	routeMask   = 0x03
	typeShift   = 2
	typeMask    = 0x0F
	verShift    = 6
	verMask     = 0x03
	headerBytes = 1
	codesBytes  = 4
)

// RouteType is the low two bits of the header.
type RouteType byte

const (
	RouteTransportFlood  RouteType = 0x00
	RouteFlood           RouteType = 0x01
	RouteDirect          RouteType = 0x02
	RouteTransportDirect RouteType = 0x03
)

// PayloadType is bits 2..5 of the header.
type PayloadType byte

const (
	PayloadReq       PayloadType = 0x00
	PayloadResponse  PayloadType = 0x01
	PayloadTextMsg   PayloadType = 0x02
	PayloadAck       PayloadType = 0x03
	PayloadAdvert    PayloadType = 0x04
	PayloadGroupText PayloadType = 0x05
	PayloadGroupData PayloadType = 0x06
	PayloadAnonReq   PayloadType = 0x07
	PayloadPath      PayloadType = 0x08
	PayloadTrace     PayloadType = 0x09
	PayloadMultipart PayloadType = 0x0A
	PayloadRawCustom PayloadType = 0x0F
)

// Decode errors
var (
	ErrTruncated       = errors.New("packet truncated")
	ErrPathTooLong     = errors.New("path exceeds maximum size")
	ErrPayloadTooLarge = errors.New("payload exceeds maximum size")
	ErrEmpty           = errors.New("empty packet")
)

// Packet is one mesh packet.
type Packet struct {
	Path           []byte
	Payload        []byte
	TransportCodes [2]uint16
	Header         byte
	PathLen        byte
}

// RouteType returns the route type encoded in the header.
func (p *Packet) RouteType() RouteType {
	return RouteType(p.Header & routeMask)
}

// PayloadType returns the payload type encoded in the header.
func (p *Packet) PayloadType() PayloadType {
	return PayloadType((p.Header >> typeShift) & typeMask)
}

// PayloadVersion returns the payload version encoded in the header.
func (p *Packet) PayloadVersion() byte {
	return (p.Header >> verShift) & verMask
}

// HasTransportCodes reports whether the route type carries transport codes.
func (p *Packet) HasTransportCodes() bool {
	rt := p.RouteType()
	return rt == RouteTransportFlood || rt == RouteTransportDirect
}

// IsFlood reports whether the packet is flood routed.
func (p *Packet) IsFlood() bool {
	rt := p.RouteType()
	return rt == RouteFlood || rt == RouteTransportFlood
}

// SetHeader composes the header byte.
func (p *Packet) SetHeader(route RouteType, payload PayloadType, version byte) {
	p.Header = byte(route)&routeMask | (byte(payload)&typeMask)<<typeShift | (version&verMask)<<verShift
}

// WireLen returns the serialized size of the packet.
func (p *Packet) WireLen() int {
	n := headerBytes + 1 + int(p.PathLen) + len(p.Payload)
	if p.HasTransportCodes() {
		n += codesBytes
	}
	return n
}

// WriteTo serializes the packet into buf and returns the number of bytes written.
// buf must hold at least WireLen bytes.
func (p *Packet) WriteTo(buf []byte) int {
	i := 0
	buf[i] = p.Header
	i++
	if p.HasTransportCodes() {
		binary.LittleEndian.PutUint16(buf[i:], p.TransportCodes[0])
		binary.LittleEndian.PutUint16(buf[i+2:], p.TransportCodes[1])
		i += codesBytes
	}
	buf[i] = p.PathLen
	i++
	path := buf[i : i+int(p.PathLen)]
	clear(path[copy(path, p.Path):])
	i += int(p.PathLen)
	i += copy(buf[i:], p.Payload)
	return i
}

// Serialize returns a freshly allocated wire encoding of the packet.
func (p *Packet) Serialize() []byte {
	buf := make([]byte, p.WireLen())
	n := p.WriteTo(buf)
	return buf[:n]
}

// ReadFrom parses data into p, reusing p's buffers where possible.
func (p *Packet) ReadFrom(data []byte) error {
	if len(data) == 0 {
		return ErrEmpty
	}
	i := 0
	p.Header = data[i]
	i++
	if p.HasTransportCodes() {
		if len(data) < i+codesBytes {
			return fmt.Errorf("transport codes: %w", ErrTruncated)
		}
		p.TransportCodes[0] = binary.LittleEndian.Uint16(data[i:])
		p.TransportCodes[1] = binary.LittleEndian.Uint16(data[i+2:])
		i += codesBytes
	} else {
		p.TransportCodes = [2]uint16{}
	}
	if len(data) < i+1 {
		return fmt.Errorf("path length: %w", ErrTruncated)
	}
	p.PathLen = data[i]
	i++
	if int(p.PathLen) > MaxPathSize {
		return fmt.Errorf("%w: %d", ErrPathTooLong, p.PathLen)
	}
	if len(data) < i+int(p.PathLen) {
		return fmt.Errorf("path: %w", ErrTruncated)
	}
	p.Path = append(p.Path[:0], data[i:i+int(p.PathLen)]...)
	i += int(p.PathLen)

	payloadLen := len(data) - i
	if payloadLen > MaxPayloadSize {
		return fmt.Errorf("%w: %d", ErrPayloadTooLarge, payloadLen)
	}
	p.Payload = append(p.Payload[:0], data[i:]...)
	return nil
}

// Deserialize parses a packet from its wire encoding.
func Deserialize(data []byte) (*Packet, error) {
	p := &Packet{}
	if err := p.ReadFrom(data); err != nil {
		return nil, err
	}
	return p, nil
}

// Hash returns the packet fingerprint used for duplicate suppression. It covers the
// payload type and payload, plus the path length for TRACE packets whose path grows
// per hop.
func (p *Packet) Hash() [HashSize]byte {
	h := sha256.New()
	_, _ = h.Write([]byte{byte(p.PayloadType())})
	if p.PayloadType() == PayloadTrace {
		_, _ = h.Write([]byte{p.PathLen})
	}
	_, _ = h.Write(p.Payload)

	var out [HashSize]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Reset clears the packet while keeping its buffers.
func (p *Packet) Reset() {
	p.Header = 0
	p.PathLen = 0
	p.TransportCodes = [2]uint16{}
	p.Path = p.Path[:0]
	p.Payload = p.Payload[:0]
}

// Clone returns a deep copy.
func (p *Packet) Clone() *Packet {
	c := *p
	c.Path = append([]byte(nil), p.Path...)
	c.Payload = append([]byte(nil), p.Payload...)
	return &c
}
