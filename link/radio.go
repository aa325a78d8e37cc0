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

// Stream is the byte pipe of one connected role.
type Stream interface {
	// Write queues b for transmission and returns the number of bytes accepted.
	// Completion is not awaited.
	Write(b []byte) (int, error)

	// Available returns the number of bytes that can be read without blocking.
	Available() int

	// ReadByte returns the next buffered byte.
	ReadByte() (byte, error)
}

// RadioType names a Radio implementation.
type RadioType string

const (
	RadioBLE    RadioType = "ble"
	RadioSerial RadioType = "serial"
	RadioMock   RadioType = "mock"
)

// AdvertisingParams configures the responder role.
type AdvertisingParams struct {
	Name        string
	ServiceUUID string
	MinInterval uint16 // 0.625 ms units
	MaxInterval uint16 // 0.625 ms units
}

// ScanParams configures the initiator role.
type ScanParams struct {
	ServiceUUID string
	Interval    uint16 // 0.625 ms units
	Window      uint16 // 0.625 ms units
	Peer        Address
}

// Radio is the short-range transport underneath the link. Implementations report
// asynchronous outcomes by posting Events to the queue handed to Begin.
type Radio interface {
	// Begin initialises the radio once. events stays valid for the radio's life.
	Begin(name string, events *EventQueue) error

	StartAdvertising(params AdvertisingParams) error
	StartScanning(params ScanParams) error

	// StopAll stops advertising and scanning.
	StopAll() error

	// Connect starts a connection to c. The outcome arrives as EventConnected or
	// EventConnectFailed.
	Connect(c Candidate) error

	// Disconnect drops the current connection, if any.
	Disconnect() error

	// Stream returns the byte stream used while connected in role.
	Stream(role Role) Stream

	Type() RadioType
}

// TxPowerSetter is implemented by radios with adjustable transmit power.
type TxPowerSetter interface {
	SetTxPower(dbm int) error
}

// AddressReporter is implemented by radios that can report their own address.
type AddressReporter interface {
	LocalAddress() (string, error)
}

// ServiceDiscoverer is implemented by radios that must confirm the bridge
// service on a peer after connecting as initiator. The outcome arrives as
// EventServiceReady or EventServiceFailed.
type ServiceDiscoverer interface {
	DiscoverService(id ServiceIdentity) error
}

// Capability is a feature a radio may lack.
type Capability string

const (
	CapabilityResponder Capability = "responder"
	CapabilityInitiator Capability = "initiator"
)

// CapabilityChecker is implemented by radios that support only some features.
// Radios that do not implement it are assumed to support everything.
type CapabilityChecker interface {
	HasCapability(c Capability) bool
}

// Supports reports whether radio can play role.
func Supports(radio Radio, role Role) bool {
	checker, ok := radio.(CapabilityChecker)
	if !ok {
		return true
	}
	if role == RoleInitiator {
		return checker.HasCapability(CapabilityInitiator)
	}
	return checker.HasCapability(CapabilityResponder)
}
