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

package link

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Role selects which side of the backhaul this bridge plays.
type Role int32

const (
	// RoleResponder advertises and accepts one inbound connection.
	RoleResponder Role = iota
	// RoleInitiator scans for a responder and connects to it.
	RoleInitiator
)

func (r Role) String() string {
	switch r {
	case RoleResponder:
		return "responder"
	case RoleInitiator:
		return "initiator"
	default:
		return "unknown"
	}
}

// ErrInvalidRole is returned by ParseRole for unrecognised names.
var ErrInvalidRole = errors.New("invalid link role")

// ParseRole accepts the role names plus the radio terms "peripheral" and
// "central" and the numeric forms "0" and "1".
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "responder", "peripheral", "0":
		return RoleResponder, nil
	case "initiator", "central", "1":
		return RoleInitiator, nil
	default:
		return RoleResponder, fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

// State is the link lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateDiscovering
	StateConnecting
	StateReady
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDiscovering:
		return "discovering"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// AddressLen is the length of a link-layer address.
const AddressLen = 6

// Address is a link-layer (MAC) address. The zero value means "any peer".
type Address [AddressLen]byte

// ErrInvalidAddress is returned by ParseAddress.
var ErrInvalidAddress = errors.New("invalid address")

// ParseAddress parses "AA:BB:CC:DD:EE:FF", "AA-BB-..." or twelve bare hex digits.
// An empty string yields the zero address.
func ParseAddress(s string) (Address, error) {
	var a Address
	s = strings.TrimSpace(s)
	if s == "" {
		return a, nil
	}
	clean := strings.NewReplacer(":", "", "-", "").Replace(s)
	if len(clean) != AddressLen*2 {
		return a, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	if _, err := hex.Decode(a[:], []byte(clean)); err != nil {
		return Address{}, fmt.Errorf("%w: %q: %w", ErrInvalidAddress, s, err)
	}
	return a, nil
}

// IsZero reports whether a is unset.
func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) String() string {
	const digits = "0123456789ABCDEF"
	buf := make([]byte, 0, AddressLen*3-1)
	for i, b := range a {
		if i > 0 {
			buf = append(buf, ':')
		}
		buf = append(buf, digits[b>>4], digits[b&0x0F])
	}
	return string(buf)
}

// Candidate is a discovered peer.
type Candidate struct {
	Name     string
	Services []string
	RSSI     int
	Address  Address
}

// Offers reports whether the candidate advertises service. A candidate that
// lists no services is assumed to have been filtered by the radio already.
func (c Candidate) Offers(service string) bool {
	if len(c.Services) == 0 {
		return true
	}
	for _, s := range c.Services {
		if strings.EqualFold(s, service) {
			return true
		}
	}
	return false
}
