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
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/ZaparooProject/go-meshbridge/internal/frame"
)

// Metrics is a snapshot of bridge counters.
type Metrics struct {
	FramesTx         uint64
	FramesRx         uint64
	BytesTx          uint64
	BytesRx          uint64
	Dropped          uint64
	Suppressed       uint64
	Oversize         uint64
	Duplicates       uint64
	Inbound          uint64
	ChecksumFailures uint64
	DecodeErrors     uint64
	PoolExhausted    uint64
	Resyncs          uint64
	LinkUps          uint64
	LinkDowns        uint64
	ConnectFailures  uint64
}

type counters struct {
	framesTx         atomic.Uint64
	framesRx         atomic.Uint64
	bytesTx          atomic.Uint64
	bytesRx          atomic.Uint64
	dropped          atomic.Uint64
	suppressed       atomic.Uint64
	oversize         atomic.Uint64
	duplicates       atomic.Uint64
	inbound          atomic.Uint64
	checksumFailures atomic.Uint64
	decodeErrors     atomic.Uint64
	poolExhausted    atomic.Uint64
	resyncs          atomic.Uint64
}

// storeParser mirrors the parser's own counters so they can be read without
// touching the parser from another goroutine.
func (c *counters) storeParser(s frame.Stats) {
	c.resyncs.Store(s.Resyncs())
}

// Metrics returns the current counter values.
func (b *Bridge) Metrics() Metrics {
	c := &b.counters
	ls := b.link.Stats()
	return Metrics{
		FramesTx:         c.framesTx.Load(),
		FramesRx:         c.framesRx.Load(),
		BytesTx:          c.bytesTx.Load(),
		BytesRx:          c.bytesRx.Load(),
		Dropped:          c.dropped.Load(),
		Suppressed:       c.suppressed.Load(),
		Oversize:         c.oversize.Load(),
		Duplicates:       c.duplicates.Load(),
		Inbound:          c.inbound.Load(),
		ChecksumFailures: c.checksumFailures.Load(),
		DecodeErrors:     c.decodeErrors.Load(),
		PoolExhausted:    c.poolExhausted.Load(),
		Resyncs:          c.resyncs.Load(),
		LinkUps:          ls.LinkUps,
		LinkDowns:        ls.LinkDowns,
		ConnectFailures:  ls.ConnectFailures,
	}
}

// LocalAddress returns the local radio address. It returns ErrRadioNotSupported
// when the radio cannot report one.
func (b *Bridge) LocalAddress() (string, error) {
	reporter, ok := b.radio.(AddressReporter)
	if !ok {
		return "", NewBridgeError("local address", b.port, ErrRadioNotSupported, ErrorTypeConfig)
	}
	addr, err := reporter.LocalAddress()
	if err != nil {
		return "", NewBridgeError("local address", b.port, err, ErrorTypeLink)
	}
	return addr, nil
}

// Address returns the local radio address, or "not supported" when the radio
// cannot report one.
func (b *Bridge) Address() string {
	addr, err := b.LocalAddress()
	if err != nil {
		debugf("bridge: %v", err)
		return "not supported"
	}
	return addr
}

// Status returns a one-line summary of the bridge.
func (b *Bridge) Status() string {
	if !b.enabled.Load() {
		return "bridge: disabled"
	}

	cfg := b.Config()
	m := b.Metrics()

	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "bridge: %s %s", b.link.Role(), b.link.State())
	if b.link.Connected() {
		if peer := b.link.Peer(); !peer.IsZero() {
			_, _ = fmt.Fprintf(&sb, " peer=%s", peer)
		}
	}
	_, _ = fmt.Fprintf(&sb, " tx_power=%d sent=%d recv=%d dropped=%d crc_errors=%d",
		cfg.Link.TxPower, m.FramesTx, m.FramesRx, m.Dropped, m.ChecksumFailures)
	return sb.String()
}
