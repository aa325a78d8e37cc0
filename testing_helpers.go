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
	"sync"
	"time"

	"github.com/ZaparooProject/go-meshbridge/packet"
)

// QueuedPacket is one QueueInbound call recorded by MockMesh.
type QueuedPacket struct {
	Packet *packet.Packet
	Delay  time.Duration
}

// MockMesh is a MeshStack that records queued packets. When Pool is set each
// packet is cloned and the original released, as a stack would after processing.
type MockMesh struct {
	Pool   *packet.Pool
	queued []QueuedPacket
	mu     sync.Mutex
}

// NewMockMesh creates a mesh stack that releases queued packets to pool.
func NewMockMesh(pool *packet.Pool) *MockMesh {
	return &MockMesh{Pool: pool}
}

// QueueInbound implements MeshStack.
func (m *MockMesh) QueueInbound(p *packet.Packet, delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Pool != nil {
		clone := p.Clone()
		m.Pool.Release(p)
		p = clone
	}
	m.queued = append(m.queued, QueuedPacket{Packet: p, Delay: delay})
}

// Queued returns a copy of the recorded calls.
func (m *MockMesh) Queued() []QueuedPacket {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]QueuedPacket(nil), m.queued...)
}

// Reset forgets recorded calls.
func (m *MockMesh) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queued = nil
}

// MockConfigProvider is a ConfigProvider whose result can be changed between
// calls to Begin and Reconfigure.
type MockConfigProvider struct {
	err   error
	cfg   Config
	calls int
	mu    sync.Mutex
}

// NewMockConfigProvider returns a provider serving cfg.
func NewMockConfigProvider(cfg Config) *MockConfigProvider {
	return &MockConfigProvider{cfg: cfg}
}

// BridgeConfig implements ConfigProvider.
func (m *MockConfigProvider) BridgeConfig() (Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return Config{}, m.err
	}
	return m.cfg, nil
}

// Set replaces the served configuration.
func (m *MockConfigProvider) Set(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
	m.err = nil
}

// SetError makes subsequent calls fail with err.
func (m *MockConfigProvider) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times the configuration was read.
func (m *MockConfigProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// FrameRecorder is a FrameObserver that keeps a copy of every event.
type FrameRecorder struct {
	events []FrameEvent
	mu     sync.Mutex
}

// ObserveFrame implements FrameObserver.
func (r *FrameRecorder) ObserveFrame(ev FrameEvent) {
	ev.Payload = append([]byte(nil), ev.Payload...)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns the recorded events.
func (r *FrameRecorder) Events() []FrameEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]FrameEvent(nil), r.events...)
}
