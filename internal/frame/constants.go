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

// Package frame provides the bridge frame codec: encoding of mesh packets into
// magic-delimited, checksummed frames and byte-at-a-time recovery of frames from
// an unstructured stream.
//
// Wire layout, all multi-byte fields big-endian:
//
//	MAGIC_HI | MAGIC_LO | LEN_HI | LEN_LO | PAYLOAD(LEN) | CRC_HI | CRC_LO
//
// CRC is Fletcher-16 over PAYLOAD only.
package frame

import "github.com/ZaparooProject/go-meshbridge/packet"

// Frame markers
const (
	Magic   uint16 = 0xC03E
	MagicHi byte   = byte(Magic >> 8)
	MagicLo byte   = byte(Magic & 0xFF)
)

// Field sizes
const (
	MagicSize    = 2
	LengthSize   = 2
	ChecksumSize = 2
	HeaderSize   = MagicSize + LengthSize
	Overhead     = HeaderSize + ChecksumSize
)

// Frame size limits
const (
	// MaxWireLen is the largest payload a frame may carry: one serialized mesh
	// packet (header + transport codes + path length + path + payload).
	MaxWireLen = packet.MaxWireLen

	// MaxFrameSize is the parser buffer capacity.
	MaxFrameSize = MaxWireLen + Overhead
)

// MaxWireLen must fit in one byte's range even though LEN is two bytes wide.
var _ [255 - MaxWireLen]struct{}
