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

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrPayloadTooLarge is returned when a payload exceeds MaxWireLen.
var ErrPayloadTooLarge = errors.New("frame: payload exceeds max wire length")

// Encode wraps payload in a frame. The result is len(payload)+Overhead bytes.
func Encode(payload []byte) ([]byte, error) {
	return AppendFrame(make([]byte, 0, len(payload)+Overhead), payload)
}

// AppendFrame appends the frame for payload to dst. Nothing is appended on error.
func AppendFrame(dst, payload []byte) ([]byte, error) {
	if len(payload) > MaxWireLen {
		return dst, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(payload), MaxWireLen)
	}

	dst = append(dst, MagicHi, MagicLo)
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(payload)))
	dst = append(dst, payload...)
	dst = binary.BigEndian.AppendUint16(dst, Fletcher16(payload))
	return dst, nil
}
