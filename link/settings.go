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

// Transmit power bounds in dBm.
const (
	MinTxPower     = -40
	MaxTxPower     = 8
	DefaultTxPower = 4
)

// Interval defaults in 0.625 ms units.
const (
	DefaultAdvMinInterval uint16 = 8000  // 5 s
	DefaultAdvMaxInterval uint16 = 16000 // 10 s
	DefaultScanInterval   uint16 = 4800  // 3 s
	DefaultScanWindow     uint16 = 4800  // 3 s
)

// Nordic UART Service identity used by default.
const (
	DefaultServiceUUID = "6E400001-B5A3-F393-E0A9-E50E24DCCA9E"
	DefaultRXCharUUID  = "6E400002-B5A3-F393-E0A9-E50E24DCCA9E"
	DefaultTXCharUUID  = "6E400003-B5A3-F393-E0A9-E50E24DCCA9E"
)

// DefaultName is the advertised name when none is configured.
const DefaultName = "MeshBridge"

// ServiceIdentity names the bridge service and its two characteristics.
type ServiceIdentity struct {
	Service string
	RX      string
	TX      string
}

// Settings is the link configuration applied by Manager.Start.
type Settings struct {
	Name           string
	Service        ServiceIdentity
	TxPower        int
	Role           Role
	AdvMinInterval uint16
	AdvMaxInterval uint16
	ScanInterval   uint16
	ScanWindow     uint16
	Peer           Address
}

// DefaultSettings returns a responder configuration with firmware defaults.
func DefaultSettings() Settings {
	return Settings{
		Name: DefaultName,
		Role: RoleResponder,
		Service: ServiceIdentity{
			Service: DefaultServiceUUID,
			RX:      DefaultRXCharUUID,
			TX:      DefaultTXCharUUID,
		},
		TxPower:        DefaultTxPower,
		AdvMinInterval: DefaultAdvMinInterval,
		AdvMaxInterval: DefaultAdvMaxInterval,
		ScanInterval:   DefaultScanInterval,
		ScanWindow:     DefaultScanWindow,
	}
}

// ClampTxPower limits dbm to the legal range.
func ClampTxPower(dbm int) int {
	return min(max(dbm, MinTxPower), MaxTxPower)
}

// Normalize fills unset fields with defaults and clamps values to legal ranges.
func (s Settings) Normalize() Settings {
	def := DefaultSettings()
	if s.Name == "" {
		s.Name = def.Name
	}
	if s.Service.Service == "" {
		s.Service.Service = def.Service.Service
	}
	if s.Service.RX == "" {
		s.Service.RX = def.Service.RX
	}
	if s.Service.TX == "" {
		s.Service.TX = def.Service.TX
	}
	if s.Role != RoleInitiator {
		s.Role = RoleResponder
	}
	s.TxPower = ClampTxPower(s.TxPower)

	if s.AdvMinInterval == 0 {
		s.AdvMinInterval = def.AdvMinInterval
	}
	if s.AdvMaxInterval == 0 {
		s.AdvMaxInterval = def.AdvMaxInterval
	}
	if s.AdvMaxInterval < s.AdvMinInterval {
		s.AdvMaxInterval = s.AdvMinInterval
	}
	if s.ScanInterval == 0 {
		s.ScanInterval = def.ScanInterval
	}
	if s.ScanWindow == 0 {
		s.ScanWindow = def.ScanWindow
	}
	if s.ScanWindow > s.ScanInterval {
		s.ScanWindow = s.ScanInterval
	}
	return s
}

// AdvertisingParams derives the responder parameters.
func (s Settings) AdvertisingParams() AdvertisingParams {
	return AdvertisingParams{
		Name:        s.Name,
		ServiceUUID: s.Service.Service,
		MinInterval: s.AdvMinInterval,
		MaxInterval: s.AdvMaxInterval,
	}
}

// ScanParams derives the initiator parameters.
func (s Settings) ScanParams() ScanParams {
	return ScanParams{
		ServiceUUID: s.Service.Service,
		Interval:    s.ScanInterval,
		Window:      s.ScanWindow,
		Peer:        s.Peer,
	}
}
