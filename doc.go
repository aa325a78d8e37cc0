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

/*
Package meshbridge relays mesh radio packets over a point-to-point backhaul link,
such as a BLE connection between two nodes or a serial cable between two repeaters.

Packets the local mesh stack transmits are serialized, wrapped in a checksummed
frame and written to the backhaul. Frames arriving from the backhaul are recovered
byte by byte, validated, rebuilt into packets and handed to the mesh stack after a
short delay. A shared seen-packet table keeps a packet from crossing the backhaul
twice.

Features:
  - Magic-delimited frames with Fletcher-16 integrity and automatic resynchronization
  - Responder (advertising) and initiator (scanning) link roles
  - Self-healing connection lifecycle with peer filtering
  - Optional radio capabilities discovered at runtime
  - Counters, status summary and frame observers

Basic Usage:

	import (
	    "github.com/ZaparooProject/go-meshbridge"
	    "github.com/ZaparooProject/go-meshbridge/transport/uart"
	)

	radio := uart.New("/dev/ttyUSB0", uart.WithBaudRate(115200))
	defer radio.Close()

	bridge, err := meshbridge.New(stack, radio, meshbridge.StaticConfig(meshbridge.DefaultConfig()))
	if err != nil {
	    log.Fatal(err)
	}
	if err := bridge.Begin(); err != nil {
	    log.Fatal(err)
	}

	for {
	    bridge.Loop()
	    time.Sleep(10 * time.Millisecond)
	}

The mesh stack calls OnPacketTransmitted after each packet it sends over the air.
The meshbridge command in cmd/meshbridge runs bridges on serial ports with an
in-process repeater standing in for the mesh stack.

Frame Format:

	C0 3E | LEN_HI LEN_LO | PAYLOAD | CRC_HI CRC_LO

LEN is at most 254, the largest serialized mesh packet. CRC covers PAYLOAD only.

Error Handling:

Nothing in the bridge is fatal. Corrupt frames are counted and skipped, link
failures return the link to discovery. Errors returned by Transmit can be inspected:

	if meshbridge.GetErrorType(err) == meshbridge.ErrorTypeOversize {
	    // packet cannot be bridged
	}

Thread Safety:

Loop, OnPacketTransmitted and OnPacketReceived are meant to be called from the
mesh stack's poll loop. Enable, Disable, Reconfigure, Status and Metrics may be
called from any goroutine.
*/
package meshbridge
