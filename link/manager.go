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

// Package link manages the lifecycle of the backhaul connection for both roles:
// discovery (advertising or scanning), connection, service confirmation and
// recovery after a disconnect.
package link

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ZaparooProject/go-meshbridge/internal/logging"
)

// Manager errors
var (
	ErrNilRadio         = errors.New("link: nil radio")
	ErrAlreadyStarted   = errors.New("link: already started")
	ErrRoleNotSupported = errors.New("link: role not supported by radio")
	ErrDiscoveryFailed  = errors.New("link: failed to start discovery")
	ErrRadioInitFailed  = errors.New("link: radio initialisation failed")
)

// Stats counts link lifecycle outcomes.
type Stats struct {
	LinkUps         uint64
	LinkDowns       uint64
	ConnectFailures uint64
	ServiceFailures uint64
	Events          uint64
	DroppedEvents   uint64
}

// Option configures a Manager.
type Option func(*Manager)

// WithEventQueue sets how many discovery results may wait for Process.
func WithEventQueue(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.queue = n
		}
	}
}

// WithLinkUpHandler registers fn to run when the link becomes ready. The same
// restriction as WithLinkDownHandler applies.
func WithLinkUpHandler(fn func()) Option {
	return func(m *Manager) {
		m.onUp = fn
	}
}

// WithLinkDownHandler registers fn to run when a connection is lost or torn
// down. Callers use it to discard partially received frames. fn runs with the
// manager's lock held and must not call back into the Manager.
func WithLinkDownHandler(fn func()) Option {
	return func(m *Manager) {
		m.onDown = fn
	}
}

// Manager drives one Radio through the link state machine. Radio callbacks post
// Events to the queue returned by Events; Process applies them on the caller's
// poll loop. The flags read by State, Connected and Ready are atomic and may be
// read from any goroutine.
type Manager struct {
	radio    Radio
	events   *EventQueue
	spare    []Event
	onUp     func()
	onDown   func()
	settings Settings
	peer     atomic.Value // Address

	linkUps         atomic.Uint64
	linkDowns       atomic.Uint64
	connectFailures atomic.Uint64
	serviceFailures atomic.Uint64
	handled         atomic.Uint64

	queue     int
	state     atomic.Int32
	role      atomic.Int32
	mu        sync.Mutex
	connected atomic.Bool
	ready     atomic.Bool
	begun     bool
}

// New creates a manager for radio. The radio is not touched until Start.
func New(radio Radio, opts ...Option) (*Manager, error) {
	if radio == nil {
		return nil, ErrNilRadio
	}
	m := &Manager{
		radio:    radio,
		queue:    DefaultEventQueue,
		settings: DefaultSettings(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.events = NewEventQueue(m.queue)
	m.peer.Store(Address{})
	return m, nil
}

// Events returns the handle radio callbacks post to.
func (m *Manager) Events() *EventQueue {
	return m.events
}

// Start applies settings and enters discovery: advertising for a responder,
// scanning for an initiator.
func (m *Manager) Start(settings Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.State() != StateIdle {
		return ErrAlreadyStarted
	}

	settings = settings.Normalize()
	if !Supports(m.radio, settings.Role) {
		return fmt.Errorf("%w: %s on %s", ErrRoleNotSupported, settings.Role, m.radio.Type())
	}
	m.settings = settings
	m.role.Store(int32(settings.Role))

	if !m.begun {
		if err := m.radio.Begin(settings.Name, m.events); err != nil {
			return fmt.Errorf("%w: %w", ErrRadioInitFailed, err)
		}
		m.begun = true
	}

	if setter, ok := m.radio.(TxPowerSetter); ok {
		if err := setter.SetTxPower(settings.TxPower); err != nil {
			logging.Logger().WithError(err).Warnf("link: tx power %d dBm not applied", settings.TxPower)
		}
	}

	if err := m.startDiscovery(); err != nil {
		m.setState(StateIdle)
		return err
	}
	logging.Debugf("link: started as %s", settings.Role)
	return nil
}

// Stop halts discovery, drops any connection and returns to idle. Events still
// queued are discarded.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stop()
}

func (m *Manager) stop() error {
	if m.State() == StateIdle && !m.connected.Load() {
		m.drain()
		return nil
	}

	var errs []error
	if err := m.radio.StopAll(); err != nil {
		errs = append(errs, fmt.Errorf("stop discovery: %w", err))
	}
	wasConnected := m.connected.Load()
	if wasConnected {
		if err := m.radio.Disconnect(); err != nil {
			errs = append(errs, fmt.Errorf("disconnect: %w", err))
		}
	}
	m.connected.Store(false)
	m.ready.Store(false)
	m.peer.Store(Address{})
	m.setState(StateIdle)
	m.drain()

	if wasConnected {
		m.linkDowns.Add(1)
		if m.onDown != nil {
			m.onDown()
		}
	}
	return errors.Join(errs...)
}

// Restart tears the link down and starts it again with settings.
func (m *Manager) Restart(settings Settings) error {
	m.mu.Lock()
	if err := m.stop(); err != nil {
		logging.Logger().WithError(err).Warn("link: teardown incomplete")
	}
	m.mu.Unlock()
	return m.Start(settings)
}

// Process applies every queued event without blocking and returns how many were
// handled.
func (m *Manager) Process() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for {
		// handle may make the radio post more events; keep going until none are left
		batch := m.events.swap(m.spare)
		if len(batch) == 0 {
			m.spare = batch
			return n
		}
		for _, ev := range batch {
			m.handle(ev)
			n++
		}
		m.spare = batch
	}
}

func (m *Manager) handle(ev Event) {
	m.handled.Add(1)
	state := m.State()
	if state == StateIdle {
		logging.Debugf("link: ignoring %s while idle", ev.Kind)
		return
	}

	switch ev.Kind {
	case EventDiscovered:
		m.onDiscovered(state, ev.Candidate)
	case EventConnectFailed:
		if state == StateConnecting && !m.connected.Load() {
			m.connectFailures.Add(1)
			m.peer.Store(Address{})
			m.restartDiscovery()
		}
	case EventConnected:
		m.onConnected(ev.Candidate)
	case EventServiceReady:
		if m.connected.Load() && state == StateConnecting {
			m.markReady()
		}
	case EventServiceFailed:
		if m.connected.Load() {
			m.serviceFailures.Add(1)
			logging.Logger().Warn("link: peer does not offer the bridge service, disconnecting")
			if err := m.radio.Disconnect(); err != nil {
				logging.Debugf("link: disconnect failed: %v", err)
			}
			m.lost()
		}
	case EventDisconnected:
		if m.connected.Load() || state != StateDiscovering {
			logging.Logger().WithField("reason", ev.Reason).Info("link: disconnected")
			m.lost()
		}
	}
}

func (m *Manager) onDiscovered(state State, c Candidate) {
	if m.Role() != RoleInitiator || state != StateDiscovering {
		return
	}
	if !m.settings.Peer.IsZero() && c.Address != m.settings.Peer {
		return
	}
	if !c.Offers(m.settings.Service.Service) {
		return
	}

	logging.Debugf("link: connecting to %s (%s)", c.Address, c.Name)
	if err := m.radio.StopAll(); err != nil {
		logging.Debugf("link: stop scan before connect: %v", err)
	}
	m.peer.Store(c.Address)
	m.setState(StateConnecting)
	if err := m.radio.Connect(c); err != nil {
		m.connectFailures.Add(1)
		logging.Logger().WithError(err).Warnf("link: connect to %s failed", c.Address)
		m.peer.Store(Address{})
		m.restartDiscovery()
	}
}

func (m *Manager) onConnected(c Candidate) {
	if m.connected.Load() {
		return
	}
	m.connected.Store(true)
	if !c.Address.IsZero() {
		m.peer.Store(c.Address)
	}

	if m.Role() == RoleResponder {
		m.markReady()
		return
	}

	m.setState(StateConnecting)
	discoverer, ok := m.radio.(ServiceDiscoverer)
	if !ok {
		m.markReady()
		return
	}
	if err := discoverer.DiscoverService(m.settings.Service); err != nil {
		m.serviceFailures.Add(1)
		logging.Logger().WithError(err).Warn("link: service discovery failed")
		if err := m.radio.Disconnect(); err != nil {
			logging.Debugf("link: disconnect failed: %v", err)
		}
		m.lost()
	}
}

func (m *Manager) markReady() {
	m.ready.Store(true)
	m.setState(StateReady)
	m.linkUps.Add(1)
	logging.Logger().WithField("peer", m.Peer().String()).Infof("link: ready as %s", m.Role())
	if m.onUp != nil {
		m.onUp()
	}
}

// lost clears connection state and resumes discovery.
func (m *Manager) lost() {
	wasConnected := m.connected.Load()
	m.connected.Store(false)
	m.ready.Store(false)
	m.peer.Store(Address{})
	if wasConnected {
		m.linkDowns.Add(1)
		if m.onDown != nil {
			m.onDown()
		}
	}
	m.restartDiscovery()
}

func (m *Manager) restartDiscovery() {
	if err := m.startDiscovery(); err != nil {
		// discovery stays the target state; the next Restart or event retries
		logging.Logger().WithError(err).Error("link: failed to resume discovery")
	}
}

func (m *Manager) startDiscovery() error {
	m.setState(StateDiscovering)
	var err error
	if m.Role() == RoleInitiator {
		err = m.radio.StartScanning(m.settings.ScanParams())
	} else {
		err = m.radio.StartAdvertising(m.settings.AdvertisingParams())
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDiscoveryFailed, err)
	}
	return nil
}

func (m *Manager) drain() {
	m.events.clear()
}

func (m *Manager) setState(s State) {
	m.state.Store(int32(s))
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Role returns the configured role.
func (m *Manager) Role() Role {
	return Role(m.role.Load())
}

// Connected reports raw connectivity.
func (m *Manager) Connected() bool {
	return m.connected.Load()
}

// Ready reports whether frames may flow. Ready implies Connected.
func (m *Manager) Ready() bool {
	return m.ready.Load() && m.connected.Load()
}

// Peer returns the address of the connected or connecting peer.
func (m *Manager) Peer() Address {
	a, _ := m.peer.Load().(Address)
	return a
}

// Settings returns the settings last passed to Start, normalised.
func (m *Manager) Settings() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

// Stream returns the active role's stream, or nil when the link is not ready.
func (m *Manager) Stream() Stream {
	if !m.Ready() {
		return nil
	}
	return m.radio.Stream(m.Role())
}

// Radio returns the underlying radio.
func (m *Manager) Radio() Radio {
	return m.radio
}

// Stats returns a snapshot of the lifecycle counters.
func (m *Manager) Stats() Stats {
	return Stats{
		LinkUps:         m.linkUps.Load(),
		LinkDowns:       m.linkDowns.Load(),
		ConnectFailures: m.connectFailures.Load(),
		ServiceFailures: m.serviceFailures.Load(),
		Events:          m.handled.Load(),
		DroppedEvents:   m.events.Dropped(),
	}
}
