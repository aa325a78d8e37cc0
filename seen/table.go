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

// Package seen implements the duplicate-suppression table used to keep bridged
// packets from looping between the mesh radio and the backhaul.
package seen

import (
	"sync"
	"time"

	"github.com/ZaparooProject/go-meshbridge/packet"
)

// DefaultCapacity is the number of fingerprints remembered when no capacity is set.
const DefaultCapacity = 128

// Key is a packet fingerprint.
type Key = [packet.HashSize]byte

// Option configures a Table.
type Option func(*Table)

// WithCapacity sets how many fingerprints are kept before the oldest is evicted.
func WithCapacity(n int) Option {
	return func(t *Table) {
		if n > 0 {
			t.capacity = n
		}
	}
}

// WithTTL makes entries expire after d. Zero disables expiry.
func WithTTL(d time.Duration) Option {
	return func(t *Table) {
		t.ttl = d
	}
}

type entry struct {
	at   time.Time
	key  Key
	used bool
}

// Table is a bounded, concurrency-safe set of packet fingerprints. Entries are
// evicted oldest first once capacity is reached, or when they outlive the TTL.
type Table struct {
	now      func() time.Time
	index    map[Key]int
	ring     []entry
	ttl      time.Duration
	capacity int
	next     int
	mu       sync.Mutex
}

// New creates a table.
func New(opts ...Option) *Table {
	t := &Table{
		capacity: DefaultCapacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.ring = make([]entry, t.capacity)
	t.index = make(map[Key]int, t.capacity)
	return t
}

// HasSeen reports whether p was already recorded. A packet not yet present is
// recorded, so the first call for a packet returns false and later calls true.
func (t *Table) HasSeen(p *packet.Packet) bool {
	if p == nil {
		return false
	}
	return t.HasSeenKey(p.Hash())
}

// HasSeenKey is HasSeen for a precomputed fingerprint.
func (t *Table) HasSeenKey(key Key) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.lookup(key) {
		return true
	}
	t.insert(key)
	return false
}

// Contains reports whether p is present without recording it.
func (t *Table) Contains(p *packet.Packet) bool {
	if p == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lookup(p.Hash())
}

// Record adds p to the table, refreshing it if already present.
func (t *Table) Record(p *packet.Packet) {
	if p == nil {
		return
	}
	key := p.Hash()

	t.mu.Lock()
	defer t.mu.Unlock()

	if slot, ok := t.index[key]; ok {
		t.ring[slot].at = t.now()
		return
	}
	t.insert(key)
}

// Clear forgets every entry.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	clear(t.ring)
	clear(t.index)
	t.next = 0
}

// Len returns the number of live entries.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for key := range t.index {
		if t.lookup(key) {
			n++
		}
	}
	return n
}

// Capacity returns the maximum number of entries.
func (t *Table) Capacity() int {
	return t.capacity
}

func (t *Table) lookup(key Key) bool {
	slot, ok := t.index[key]
	if !ok {
		return false
	}
	if t.ttl > 0 && t.now().Sub(t.ring[slot].at) > t.ttl {
		return false
	}
	return true
}

// insert must be called with mu held.
func (t *Table) insert(key Key) {
	if slot, ok := t.index[key]; ok {
		// expired entry, reuse its slot
		t.ring[slot].at = t.now()
		return
	}

	slot := t.next
	if old := t.ring[slot]; old.used {
		delete(t.index, old.key)
	}
	t.ring[slot] = entry{key: key, at: t.now(), used: true}
	t.index[key] = slot
	t.next = (t.next + 1) % t.capacity
}
