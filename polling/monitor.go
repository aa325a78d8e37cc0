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

package polling

import (
	"sync"

	"github.com/ZaparooProject/go-meshbridge/link"
)

// LinkSource is the part of link.Manager the monitor samples.
type LinkSource interface {
	State() link.State
	Ready() bool
	Peer() link.Address
}

// Monitor turns sampled link state into callbacks. Callbacks run on the
// goroutine that calls Check, or on a timer goroutine when LinkDownGrace is set,
// and never under the monitor's lock.
type Monitor struct {
	source        LinkSource
	config        *Config
	OnLinkUp      func(peer link.Address)
	OnLinkDown    func()
	OnStateChange func(from, to link.State)
	status        LinkStatus
	mu            sync.Mutex
}

// NewMonitor creates a monitor for source.
func NewMonitor(source LinkSource, config *Config) *Monitor {
	if config == nil {
		config = DefaultConfig()
	}
	return &Monitor{
		source: source,
		config: config,
		status: LinkStatus{State: link.StateIdle},
	}
}

// Check samples the source once and fires any callbacks the change implies.
func (m *Monitor) Check() {
	state := m.source.State()
	ready := m.source.Ready()
	peer := m.source.Peer()

	var fire []func()

	m.mu.Lock()
	if prev := m.status.State; prev != state {
		m.status.State = state
		if m.OnStateChange != nil {
			cb := m.OnStateChange
			fire = append(fire, func() { cb(prev, state) })
		}
	}

	switch {
	case ready && m.status.Phase != PhaseUp:
		// a link that recovers inside the grace period was never reported down
		wasLosing := m.status.Phase == PhaseLosing
		m.status.TransitionToUp(peer)
		if !wasLosing && m.OnLinkUp != nil {
			cb := m.OnLinkUp
			fire = append(fire, func() { cb(peer) })
		}
	case !ready && m.status.Phase == PhaseUp:
		if m.config.LinkDownGrace > 0 {
			m.status.TransitionToLosing(m.config.LinkDownGrace, m.graceExpired)
		} else {
			m.status.TransitionToDown()
			if m.OnLinkDown != nil {
				fire = append(fire, m.OnLinkDown)
			}
		}
	}
	m.mu.Unlock()

	for _, f := range fire {
		f()
	}
}

func (m *Monitor) graceExpired(gen uint64) {
	m.mu.Lock()
	if m.status.Phase != PhaseLosing || m.status.generation != gen {
		m.mu.Unlock()
		return
	}
	m.status.TransitionToDown()
	cb := m.OnLinkDown
	m.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// Status returns a copy of the tracked status.
func (m *Monitor) Status() LinkStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// IsUp reports whether the link is up as far as callbacks are concerned.
func (m *Monitor) IsUp() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status.IsUp()
}

// Close stops a pending down timer without firing it.
func (m *Monitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	safeTimerStop(m.status.DownTimer)
	m.status.DownTimer = nil
	if m.status.Phase == PhaseLosing {
		m.status.Phase = PhaseDown
	}
}
