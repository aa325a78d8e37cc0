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

package meshbridge

import (
	"time"

	"github.com/ZaparooProject/go-meshbridge/link"
	"github.com/ZaparooProject/go-meshbridge/packet"
)

// Radio is the backhaul transport. It can be implemented by BLE stacks, serial
// links or test doubles.
type Radio = link.Radio

// Stream is the byte pipe of a connected radio.
type Stream = link.Stream

// RadioType names a Radio implementation.
type RadioType = link.RadioType

// Optional radio capabilities, discovered by type assertion.
type (
	TxPowerSetter     = link.TxPowerSetter
	AddressReporter   = link.AddressReporter
	ServiceDiscoverer = link.ServiceDiscoverer
	CapabilityChecker = link.CapabilityChecker
)

// MeshStack is the mesh node the bridge feeds received packets into.
type MeshStack interface {
	// QueueInbound schedules p for processing after delay. The stack takes
	// ownership of p and returns it to the bridge's packet pool when done.
	QueueInbound(p *packet.Packet, delay time.Duration)
}

// SeenTable answers whether a packet has already passed through the node. A
// packet not yet present is recorded by the call.
type SeenTable interface {
	HasSeen(p *packet.Packet) bool
}

// DefaultInboundDelay is how long received packets wait before the mesh stack
// processes them.
const DefaultInboundDelay = 500 * time.Millisecond

// Config is the bridge configuration read on Begin and Reconfigure.
type Config struct {
	Link         link.Settings
	InboundDelay time.Duration
	Enabled      bool
}

// DefaultConfig returns an enabled responder with firmware defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		InboundDelay: DefaultInboundDelay,
		Link:         link.DefaultSettings(),
	}
}

// ConfigProvider supplies the bridge configuration.
type ConfigProvider interface {
	BridgeConfig() (Config, error)
}

// StaticConfig is a ConfigProvider that always returns itself.
type StaticConfig Config

// BridgeConfig implements ConfigProvider.
func (c StaticConfig) BridgeConfig() (Config, error) {
	return Config(c), nil
}
