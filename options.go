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
	"errors"
	"time"

	"github.com/ZaparooProject/go-meshbridge/link"
	"github.com/ZaparooProject/go-meshbridge/packet"
)

// Option is a functional option for configuring a Bridge
type Option func(*Bridge) error

// WithSeenTable shares a duplicate table with the mesh stack.
func WithSeenTable(table SeenTable) Option {
	return func(b *Bridge) error {
		if table == nil {
			return errors.New("nil seen table")
		}
		b.seen = table
		return nil
	}
}

// WithPacketPool shares a packet pool with the mesh stack.
func WithPacketPool(pool *packet.Pool) Option {
	return func(b *Bridge) error {
		if pool == nil {
			return errors.New("nil packet pool")
		}
		b.pool = pool
		return nil
	}
}

// WithInboundDelay overrides the configured inbound scheduling delay.
func WithInboundDelay(d time.Duration) Option {
	return func(b *Bridge) error {
		if d < 0 {
			return errors.New("negative inbound delay")
		}
		b.delayOverride = &d
		return nil
	}
}

// WithEventQueue sets how many link discovery results may be pending.
func WithEventQueue(n int) Option {
	return func(b *Bridge) error {
		b.linkOpts = append(b.linkOpts, link.WithEventQueue(n))
		return nil
	}
}

// WithPort labels errors and log lines with the backhaul's device name.
func WithPort(port string) Option {
	return func(b *Bridge) error {
		b.port = port
		return nil
	}
}

// WithFrameObserver registers o to see every frame sent or received.
func WithFrameObserver(o FrameObserver) Option {
	return func(b *Bridge) error {
		b.observers = append(b.observers, o)
		return nil
	}
}
