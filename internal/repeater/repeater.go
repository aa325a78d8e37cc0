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

// Package repeater is a minimal in-process mesh stack. It takes packets bridges
// hand to it and, once their inbound delay expires, floods them back out through
// every registered bridge. Bridges recognise packets they already carried, so a
// packet received on one backhaul leaves only through the others.
package repeater

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-meshbridge/internal/logging"
	"github.com/ZaparooProject/go-meshbridge/packet"
)

// Transmitter is notified of every packet the repeater sends.
type Transmitter interface {
	OnPacketTransmitted(p *packet.Packet)
}

// Stats counts repeater outcomes.
type Stats struct {
	Queued    uint64
	Forwarded uint64
	Consumed  uint64
	Pending   int
}

type pending struct {
	due time.Time
	pkt *packet.Packet
	seq uint64
}

// Repeater implements meshbridge.MeshStack.
type Repeater struct {
	pool      *packet.Pool
	now       func() time.Time
	targets   []Transmitter
	queue     []pending
	seq       uint64
	queued    atomic.Uint64
	forwarded atomic.Uint64
	consumed  atomic.Uint64
	mu        sync.Mutex
}

// New creates a repeater whose packets are released to pool. Bridges feeding the
// repeater must draw from the same pool.
func New(pool *packet.Pool) *Repeater {
	if pool == nil {
		pool = packet.NewPool(packet.DefaultPoolSize)
	}
	return &Repeater{pool: pool, now: time.Now}
}

// Pool returns the shared packet pool.
func (r *Repeater) Pool() *packet.Pool {
	return r.pool
}

// AddTransmitter registers t to receive flooded packets.
func (r *Repeater) AddTransmitter(t Transmitter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets = append(r.targets, t)
}

// QueueInbound implements meshbridge.MeshStack. The repeater owns p until it is
// released after processing.
func (r *Repeater) QueueInbound(p *packet.Packet, delay time.Duration) {
	if p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	r.queue = append(r.queue, pending{due: r.now().Add(delay), pkt: p, seq: r.seq})
	sort.Slice(r.queue, func(i, j int) bool {
		if r.queue[i].due.Equal(r.queue[j].due) {
			return r.queue[i].seq < r.queue[j].seq
		}
		return r.queue[i].due.Before(r.queue[j].due)
	})
	r.queued.Add(1)
}

// Poll processes every packet due at now and returns how many were handled.
func (r *Repeater) Poll(now time.Time) int {
	r.mu.Lock()
	n := 0
	for n < len(r.queue) && !r.queue[n].due.After(now) {
		n++
	}
	due := append([]pending(nil), r.queue[:n]...)
	r.queue = r.queue[n:]
	targets := append([]Transmitter(nil), r.targets...)
	r.mu.Unlock()

	for _, d := range due {
		r.process(d.pkt, targets)
	}
	return len(due)
}

func (r *Repeater) process(p *packet.Packet, targets []Transmitter) {
	defer r.pool.Release(p)

	if !p.IsFlood() {
		// direct routing is the mesh stack's business
		r.consumed.Add(1)
		logging.Debugf("repeater: consumed %s packet", describe(p))
		return
	}
	for _, t := range targets {
		t.OnPacketTransmitted(p)
	}
	r.forwarded.Add(1)
	logging.Debugf("repeater: flooded %s packet to %d bridges", describe(p), len(targets))
}

// Run polls every interval until ctx is done.
func (r *Repeater) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Poll(r.now())
		}
	}
}

// Stats returns a snapshot of the counters.
func (r *Repeater) Stats() Stats {
	r.mu.Lock()
	pendingCount := len(r.queue)
	r.mu.Unlock()
	return Stats{
		Queued:    r.queued.Load(),
		Forwarded: r.forwarded.Load(),
		Consumed:  r.consumed.Load(),
		Pending:   pendingCount,
	}
}

func describe(p *packet.Packet) string {
	switch p.PayloadType() {
	case packet.PayloadTextMsg:
		return "text"
	case packet.PayloadAdvert:
		return "advert"
	case packet.PayloadAck:
		return "ack"
	case packet.PayloadTrace:
		return "trace"
	default:
		return "data"
	}
}
