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
	"sync"
	"sync/atomic"
)

// EventKind identifies an asynchronous radio notification.
type EventKind int

const (
	EventConnected EventKind = iota + 1
	EventDisconnected
	EventDiscovered
	EventConnectFailed
	EventServiceReady
	EventServiceFailed
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventDiscovered:
		return "discovered"
	case EventConnectFailed:
		return "connect_failed"
	case EventServiceReady:
		return "service_ready"
	case EventServiceFailed:
		return "service_failed"
	default:
		return "unknown"
	}
}

// Event is posted by a Radio from whatever context its callbacks run in and
// consumed by Manager.Process on the poll loop.
type Event struct {
	Candidate Candidate // EventDiscovered, and the peer for EventConnected
	Reason    int       // EventDisconnected
	Kind      EventKind
}

// DefaultEventQueue is how many discovery results a Manager holds before new
// ones are dropped.
const DefaultEventQueue = 32

// EventQueue carries radio notifications to a Manager. Post never blocks and is
// safe from any goroutine. Only EventDiscovered is subject to the limit; every
// other kind changes what the radio is doing and is always queued.
type EventQueue struct {
	pending []Event
	limit   int
	dropped atomic.Uint64
	mu      sync.Mutex
}

// NewEventQueue returns a queue holding at most limit discovery results.
func NewEventQueue(limit int) *EventQueue {
	if limit <= 0 {
		limit = DefaultEventQueue
	}
	return &EventQueue{limit: limit, pending: make([]Event, 0, limit)}
}

// Post queues ev. It returns false when ev was a discovery result dropped
// because the queue is at its limit, or when q is nil.
func (q *EventQueue) Post(ev Event) bool {
	if q == nil {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if ev.Kind == EventDiscovered && len(q.pending) >= q.limit {
		q.dropped.Add(1)
		return false
	}
	q.pending = append(q.pending, ev)
	return true
}

// Len returns the number of queued events.
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Dropped returns how many discovery results were discarded.
func (q *EventQueue) Dropped() uint64 {
	return q.dropped.Load()
}

// swap hands back the queued events and continues queueing into spare.
func (q *EventQueue) swap(spare []Event) []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = spare[:0]
	return out
}

func (q *EventQueue) clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = q.pending[:0]
}
