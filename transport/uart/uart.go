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

// Package uart provides a wired serial backhaul that implements link.Radio.
// A serial line has exactly one peer, so opening the port stands in for both
// advertising and scanning, and a port error is reported as a disconnect.
package uart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/ZaparooProject/go-meshbridge/internal/logging"
	"github.com/ZaparooProject/go-meshbridge/internal/transport"
	"github.com/ZaparooProject/go-meshbridge/link"
)

const (
	// DefaultBaudRate matches the bridge firmware's serial backhaul.
	DefaultBaudRate = 115200

	readTimeout  = 50 * time.Millisecond
	readChunk    = 256
	maxBuffered  = 4096
	reopenBase   = 250 * time.Millisecond
	reopenMax    = 5 * time.Second
	reasonPortIO = 1
)

// ErrPortClosed is returned by stream writes while no port is open.
var ErrPortClosed = errors.New("serial port closed")

// Opener opens a serial port. serial.Open is the default.
type Opener func(name string, mode *serial.Mode) (serial.Port, error)

// Option configures a Transport.
type Option func(*Transport)

// WithOpener replaces serial.Open.
func WithOpener(open Opener) Option {
	return func(t *Transport) {
		t.open = open
	}
}

// WithBaudRate sets the line speed.
func WithBaudRate(baud int) Option {
	return func(t *Transport) {
		if baud > 0 {
			t.mode.BaudRate = baud
		}
	}
}

// WithReopenBackoff sets the delays between attempts to reopen a lost port.
func WithReopenBackoff(initial, limit time.Duration) Option {
	return func(t *Transport) {
		t.reopenBase = initial
		t.reopenMax = limit
	}
}

// Transport is a link.Radio over a serial port.
type Transport struct {
	port       serial.Port
	open       Opener
	events     *link.EventQueue
	reopenCtx  context.Context
	cancel     context.CancelFunc
	mode       *serial.Mode
	stream     *Stream
	readerDone chan struct{}
	portName   string
	name       string
	peer       link.Address
	reopenBase time.Duration
	reopenMax  time.Duration
	mu         sync.Mutex
	pending    link.EventKind
}

// New creates a transport for portName. The port is opened when the link
// manager starts discovery.
func New(portName string, opts ...Option) *Transport {
	t := &Transport{
		portName: portName,
		open:     serial.Open,
		mode: &serial.Mode{
			BaudRate: DefaultBaudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		},
		reopenBase: reopenBase,
		reopenMax:  reopenMax,
	}
	t.stream = &Stream{t: t}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// PortName returns the device path.
func (t *Transport) PortName() string {
	return t.portName
}

// Begin implements link.Radio.
func (t *Transport) Begin(name string, events *link.EventQueue) error {
	if events == nil {
		return errors.New("uart: nil event queue")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.name = name
	t.events = events
	return nil
}

// StartAdvertising implements link.Radio. The responder is connected as soon as
// the port is open.
func (t *Transport) StartAdvertising(link.AdvertisingParams) error {
	return t.startOpen(link.EventConnected, link.Address{})
}

// StartScanning implements link.Radio. The open port is reported as the only
// discovered candidate, carrying the configured peer so a peer filter matches.
func (t *Transport) StartScanning(params link.ScanParams) error {
	return t.startOpen(link.EventDiscovered, params.Peer)
}

func (t *Transport) startOpen(kind link.EventKind, peer link.Address) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.events == nil {
		return errors.New("uart: Begin not called")
	}
	t.pending = kind
	t.peer = peer

	if t.port != nil {
		t.postLocked(kind)
		return nil
	}
	if t.cancel != nil {
		// an open attempt is already running and will post the new kind
		return nil
	}

	port, err := t.open(t.portName, t.mode)
	if err == nil {
		t.attachLocked(port)
		t.postLocked(kind)
		return nil
	}
	logging.Logger().WithError(err).Warnf("uart: %s not available, retrying", t.portName)

	ctx, cancel := context.WithCancel(context.Background())
	t.reopenCtx = ctx
	t.cancel = cancel
	go t.reopen(ctx)
	return nil
}

func (t *Transport) reopen(ctx context.Context) {
	port, err := transport.WithRetry(ctx, transport.RetryConfig{
		Description:       "open " + t.portName,
		MaxRetries:        -1,
		InitialBackoff:    t.reopenBase,
		MaxBackoff:        t.reopenMax,
		BackoffMultiplier: 2,
		OnRetry: func(attempt int, delay time.Duration) error {
			logging.Debugf("uart: %s open attempt %d failed, next in %s", t.portName, attempt, delay)
			return nil
		},
	}, func() (serial.Port, bool, error) {
		p, err := t.open(t.portName, t.mode)
		if err != nil {
			return nil, true, nil
		}
		return p, false, nil
	})

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.reopenCtx != ctx {
		// superseded by StopAll and a newer attempt
		if err == nil {
			_ = port.Close()
		}
		return
	}
	t.reopenCtx = nil
	t.cancel = nil
	if err != nil {
		return
	}
	logging.Logger().Infof("uart: %s opened", t.portName)
	t.attachLocked(port)
	t.postLocked(t.pending)
}

func (t *Transport) attachLocked(port serial.Port) {
	if err := port.SetReadTimeout(readTimeout); err != nil {
		logging.Debugf("uart: set read timeout: %v", err)
	}
	t.port = port
	t.stream.reset()
	done := make(chan struct{})
	t.readerDone = done
	go t.readLoop(port, done)
}

func (t *Transport) postLocked(kind link.EventKind) {
	ev := link.Event{Kind: kind, Candidate: link.Candidate{Name: t.portName, Address: t.peer}}
	if !t.events.Post(ev) {
		logging.Logger().Warnf("uart: event queue full, %s dropped", kind)
	}
}

func (t *Transport) readLoop(port serial.Port, done chan struct{}) {
	defer close(done)
	buf := make([]byte, readChunk)
	for {
		n, err := port.Read(buf)
		if n > 0 {
			t.stream.push(buf[:n])
		}
		if err != nil {
			t.portFailed(port, err)
			return
		}
	}
}

// portFailed drops port if it is still current and reports the disconnect.
func (t *Transport) portFailed(port serial.Port, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port != port {
		return
	}
	logging.Logger().WithError(err).Warnf("uart: %s lost", t.portName)
	_ = port.Close()
	t.port = nil
	t.events.Post(link.Event{Kind: link.EventDisconnected, Reason: reasonPortIO})
}

// StopAll implements link.Radio. It cancels a pending reopen; an open port
// stays open because the initiator stops scanning right before connecting.
func (t *Transport) StopAll() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
		t.reopenCtx = nil
	}
	return nil
}

// Connect implements link.Radio.
func (t *Transport) Connect(c link.Candidate) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return fmt.Errorf("uart: connect %s: %w", t.portName, ErrPortClosed)
	}
	t.events.Post(link.Event{Kind: link.EventConnected, Candidate: c})
	return nil
}

// Disconnect implements link.Radio by closing the port.
func (t *Transport) Disconnect() error {
	t.mu.Lock()
	port := t.port
	done := t.readerDone
	t.port = nil
	t.mu.Unlock()

	if port == nil {
		return nil
	}
	err := port.Close()
	if done != nil {
		<-done
	}
	t.stream.reset()
	if err != nil {
		return fmt.Errorf("uart: close %s: %w", t.portName, err)
	}
	return nil
}

// Close stops any reopen attempt and closes the port.
func (t *Transport) Close() error {
	_ = t.StopAll()
	return t.Disconnect()
}

// Stream implements link.Radio. Both roles share the one serial stream.
func (t *Transport) Stream(link.Role) link.Stream {
	return t.stream
}

// Type implements link.Radio.
func (*Transport) Type() link.RadioType {
	return link.RadioSerial
}

// LocalAddress implements link.AddressReporter with the device path.
func (t *Transport) LocalAddress() (string, error) {
	return t.portName, nil
}

// IsConnected reports whether the port is open.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port != nil
}

func (t *Transport) currentPort() serial.Port {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port
}

// Stream buffers bytes read from the port for the bridge's non-blocking reads.
type Stream struct {
	t   *Transport
	buf []byte
	mu  sync.Mutex
}

func (s *Stream) push(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = append(s.buf, b...)
	if over := len(s.buf) - maxBuffered; over > 0 {
		// the bridge fell behind; the parser resyncs on the next magic
		s.buf = append(s.buf[:0], s.buf[over:]...)
	}
}

func (s *Stream) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = s.buf[:0]
}

// Write implements link.Stream.
func (s *Stream) Write(b []byte) (int, error) {
	port := s.t.currentPort()
	if port == nil {
		return 0, ErrPortClosed
	}
	n, err := port.Write(b)
	if err != nil {
		return n, fmt.Errorf("uart: write: %w", err)
	}
	return n, nil
}

// Available implements link.Stream.
func (s *Stream) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// ReadByte implements link.Stream.
func (s *Stream) ReadByte() (byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) == 0 {
		return 0, errors.New("uart: no buffered data")
	}
	b := s.buf[0]
	s.buf = s.buf[1:]
	return b, nil
}
