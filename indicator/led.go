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

// Package indicator drives a GPIO status LED from the link state: off while
// idle, blinking while looking for a peer, solid while frames can flow.
package indicator

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/ZaparooProject/go-meshbridge/internal/logging"
	"github.com/ZaparooProject/go-meshbridge/link"
	"github.com/ZaparooProject/go-meshbridge/polling"
)

// DefaultBlinkInterval is the half period of the discovery blink.
const DefaultBlinkInterval = 250 * time.Millisecond

// ErrPinNotFound is returned by Open for unknown pin names.
var ErrPinNotFound = errors.New("gpio pin not found")

// Pattern is what the LED shows.
type Pattern int

const (
	Off Pattern = iota
	Blink
	Solid
)

func (p Pattern) String() string {
	switch p {
	case Off:
		return "off"
	case Blink:
		return "blink"
	case Solid:
		return "solid"
	default:
		return "unknown"
	}
}

// ForState maps a link state to a pattern.
func ForState(s link.State) Pattern {
	switch s {
	case link.StateReady:
		return Solid
	case link.StateDiscovering, link.StateConnecting:
		return Blink
	default:
		return Off
	}
}

// Option configures an LED.
type Option func(*LED)

// WithBlinkInterval sets the blink half period.
func WithBlinkInterval(d time.Duration) Option {
	return func(l *LED) {
		if d > 0 {
			l.blink = d
		}
	}
}

// LED is a status LED on one output pin.
type LED struct {
	pin       gpio.PinOut
	updates   chan struct{}
	quit      chan struct{}
	done      chan struct{}
	blink     time.Duration
	pattern   Pattern
	closeOnce sync.Once
	mu        sync.Mutex
	activeLow bool
	on        bool
}

// Open initialises the periph host drivers and returns an LED on the named pin,
// e.g. "GPIO17".
func Open(pinName string, activeLow bool, opts ...Option) (*LED, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}
	p := gpioreg.ByName(pinName)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrPinNotFound, pinName)
	}
	return New(p, activeLow, opts...), nil
}

// New drives pin. The LED starts off.
func New(pin gpio.PinOut, activeLow bool, opts ...Option) *LED {
	l := &LED{
		pin:       pin,
		activeLow: activeLow,
		blink:     DefaultBlinkInterval,
		updates:   make(chan struct{}, 1),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.write(false)
	go l.loop()
	return l
}

// Set changes the pattern.
func (l *LED) Set(p Pattern) {
	l.mu.Lock()
	l.pattern = p
	l.mu.Unlock()
	select {
	case l.updates <- struct{}{}:
	default:
	}
}

// Pattern returns the current pattern.
func (l *LED) Pattern() Pattern {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pattern
}

// Attach follows m's state changes, keeping any callback already installed.
// Call it before the monitor starts checking.
func (l *LED) Attach(m *polling.Monitor) {
	prev := m.OnStateChange
	m.OnStateChange = func(from, to link.State) {
		if prev != nil {
			prev(from, to)
		}
		l.Set(ForState(to))
	}
}

func (l *LED) loop() {
	defer close(l.done)

	var (
		ticker *time.Ticker
		tick   <-chan time.Time
	)
	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
		}
	}
	defer stopTicker()

	for {
		select {
		case <-l.quit:
			l.write(false)
			return
		case <-l.updates:
			stopTicker()
			switch l.Pattern() {
			case Solid:
				l.write(true)
			case Blink:
				l.write(true)
				ticker = time.NewTicker(l.blink)
				tick = ticker.C
			default:
				l.write(false)
			}
		case <-tick:
			l.write(!l.on)
		}
	}
}

func (l *LED) write(on bool) {
	l.on = on
	level := gpio.Level(on != l.activeLow)
	if err := l.pin.Out(level); err != nil {
		logging.Debugf("indicator: %s out %s: %v", l.pin.Name(), level, err)
	}
}

// Close turns the LED off and releases the pin.
func (l *LED) Close() error {
	l.closeOnce.Do(func() { close(l.quit) })
	<-l.done
	if err := l.pin.Halt(); err != nil {
		return fmt.Errorf("indicator: halt %s: %w", l.pin.Name(), err)
	}
	return nil
}
