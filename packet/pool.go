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

package packet

import (
	"sync"
	"sync/atomic"
)

// DefaultPoolSize matches the packet pool of a typical repeater build.
const DefaultPoolSize = 32

// Pool hands out packets under an acquire/release contract. At most Size packets
// are outstanding at a time; Acquire returns nil once the pool is exhausted.
type Pool struct {
	free        sync.Pool
	size        int64
	outstanding atomic.Int64
}

// NewPool creates a pool allowing size outstanding packets.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	return &Pool{
		size: int64(size),
		free: sync.Pool{New: func() any {
			return &Packet{
				Path:    make([]byte, 0, MaxPathSize),
				Payload: make([]byte, 0, MaxPayloadSize),
			}
		}},
	}
}

// Acquire returns an empty packet, or nil if the pool is exhausted.
func (p *Pool) Acquire() *Packet {
	for {
		n := p.outstanding.Load()
		if n >= p.size {
			return nil
		}
		if p.outstanding.CompareAndSwap(n, n+1) {
			break
		}
	}
	pkt, _ := p.free.Get().(*Packet)
	pkt.Reset()
	return pkt
}

// Release returns a packet to the pool. Releasing nil is a no-op.
func (p *Pool) Release(pkt *Packet) {
	if pkt == nil {
		return
	}
	if p.outstanding.Add(-1) < 0 {
		p.outstanding.Store(0)
	}
	p.free.Put(pkt)
}

// Outstanding returns the number of acquired, unreleased packets.
func (p *Pool) Outstanding() int {
	return int(p.outstanding.Load())
}

// Size returns the pool capacity.
func (p *Pool) Size() int {
	return int(p.size)
}
