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
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-meshbridge/internal/frame"
	"github.com/ZaparooProject/go-meshbridge/link"
	"github.com/ZaparooProject/go-meshbridge/packet"
	"github.com/ZaparooProject/go-meshbridge/seen"
)

// Direction of a frame relative to this node.
type Direction int

const (
	DirectionRx Direction = iota
	DirectionTx
)

func (d Direction) String() string {
	if d == DirectionTx {
		return "tx"
	}
	return "rx"
}

// FrameEvent describes one frame crossing the backhaul. Payload aliases an
// internal buffer and is only valid during the observer call.
type FrameEvent struct {
	At         time.Time
	Port       string
	Payload    []byte
	Direction  Direction
	Calculated uint16
	Received   uint16
	OK         bool
}

// FrameObserver is notified of every frame sent, received or rejected.
type FrameObserver interface {
	ObserveFrame(ev FrameEvent)
}

// FrameObserverFunc adapts a function to FrameObserver.
type FrameObserverFunc func(ev FrameEvent)

// ObserveFrame implements FrameObserver.
func (f FrameObserverFunc) ObserveFrame(ev FrameEvent) {
	f(ev)
}

// Bridge relays mesh packets over a backhaul radio. Loop and the packet hooks
// are expected to run on the mesh stack's poll goroutine; Enable, Disable,
// Reconfigure and the read-only accessors may be called from any goroutine.
type Bridge struct {
	mesh          MeshStack
	provider      ConfigProvider
	radio         Radio
	link          *link.Manager
	seen          SeenTable
	pool          *packet.Pool
	parser        *frame.Parser
	delayOverride *time.Duration
	observers     []FrameObserver
	linkOpts      []link.Option
	port          string
	cfg           Config
	counters      counters
	txBuf         [frame.MaxFrameSize]byte
	wireBuf       [frame.MaxWireLen]byte
	cfgMu         sync.RWMutex
	txMu          sync.Mutex
	rxMu          sync.Mutex
	enabled       atomic.Bool
	parserStale   atomic.Bool
	begun         atomic.Bool
}

// New creates a bridge between mesh and radio. Configuration is read from
// provider by Begin.
func New(mesh MeshStack, radio Radio, provider ConfigProvider, opts ...Option) (*Bridge, error) {
	if mesh == nil || radio == nil || provider == nil {
		return nil, ErrNilCollaborator
	}

	b := &Bridge{
		mesh:     mesh,
		radio:    radio,
		provider: provider,
		parser:   frame.NewParser(),
		cfg:      DefaultConfig(),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	if b.seen == nil {
		b.seen = seen.New()
	}
	if b.pool == nil {
		b.pool = packet.NewPool(packet.DefaultPoolSize)
	}

	linkOpts := append([]link.Option{
		link.WithLinkUpHandler(b.onLinkUp),
		link.WithLinkDownHandler(b.onLinkDown),
	}, b.linkOpts...)
	manager, err := link.New(radio, linkOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create link manager: %w", err)
	}
	b.link = manager
	return b, nil
}

// Begin reads the configuration and starts the link if the bridge is enabled.
func (b *Bridge) Begin() error {
	if !b.begun.CompareAndSwap(false, true) {
		return ErrAlreadyBegun
	}
	cfg, err := b.loadConfig()
	if err != nil {
		b.begun.Store(false)
		return err
	}
	if !cfg.Enabled {
		logger().WithField("port", b.port).Info("bridge: disabled by configuration")
		return nil
	}
	return b.Enable()
}

func (b *Bridge) loadConfig() (Config, error) {
	cfg, err := b.provider.BridgeConfig()
	if err != nil {
		return Config{}, NewBridgeError("load config", b.port, err, ErrorTypeConfig)
	}
	cfg.Link = cfg.Link.Normalize()
	if cfg.InboundDelay < 0 {
		cfg.InboundDelay = DefaultInboundDelay
	}
	if b.delayOverride != nil {
		cfg.InboundDelay = *b.delayOverride
	}

	b.cfgMu.Lock()
	b.cfg = cfg
	b.cfgMu.Unlock()
	return cfg, nil
}

// Config returns the configuration in effect.
func (b *Bridge) Config() Config {
	b.cfgMu.RLock()
	defer b.cfgMu.RUnlock()
	return b.cfg
}

// Enable starts the link with the current configuration.
func (b *Bridge) Enable() error {
	if b.enabled.Swap(true) {
		return nil
	}
	b.parserStale.Store(true)
	if err := b.link.Start(b.Config().Link); err != nil {
		b.enabled.Store(false)
		return NewBridgeError("enable", b.port, err, GetErrorType(err))
	}
	logger().WithField("port", b.port).Infof("bridge: enabled as %s", b.link.Role())
	return nil
}

// Disable stops the link. Loop and the packet hooks become no-ops.
func (b *Bridge) Disable() error {
	if !b.enabled.Swap(false) {
		return nil
	}
	b.parserStale.Store(true)
	if err := b.link.Stop(); err != nil {
		return NewBridgeError("disable", b.port, err, ErrorTypeLink)
	}
	logger().WithField("port", b.port).Info("bridge: disabled")
	return nil
}

// Enabled reports whether the bridge is forwarding.
func (b *Bridge) Enabled() bool {
	return b.enabled.Load()
}

// Reconfigure re-reads the configuration, tears the link down and starts it
// again. In-flight frame state is discarded.
func (b *Bridge) Reconfigure() error {
	cfg, err := b.loadConfig()
	if err != nil {
		return err
	}
	b.parserStale.Store(true)

	if !cfg.Enabled {
		return b.Disable()
	}
	if !b.enabled.Load() {
		return b.Enable()
	}
	if err := b.link.Restart(cfg.Link); err != nil {
		return NewBridgeError("reconfigure", b.port, err, GetErrorType(err))
	}
	logger().WithField("port", b.port).Infof("bridge: reconfigured as %s", cfg.Link.Role)
	return nil
}

func (b *Bridge) onLinkUp() {
	b.parserStale.Store(true)
}

func (b *Bridge) onLinkDown() {
	b.parserStale.Store(true)
}

// Loop runs one poll cycle: pending link events are applied, then every byte
// available on the ready stream is fed to the frame parser. Each completed
// frame is handled before the next byte is read.
func (b *Bridge) Loop() {
	if !b.enabled.Load() {
		return
	}
	b.link.Process()

	b.rxMu.Lock()
	defer b.rxMu.Unlock()

	if b.parserStale.Swap(false) {
		if b.parser.Buffered() > 0 {
			debugf("bridge: discarding %d bytes of a partial frame", b.parser.Buffered())
		}
		b.parser.Reset()
	}

	stream := b.link.Stream()
	if stream == nil {
		return
	}

	for stream.Available() > 0 {
		c, err := stream.ReadByte()
		if err != nil {
			debugf("bridge: read failed: %v", err)
			break
		}
		b.counters.bytesRx.Add(1)
		if r := b.parser.Feed(c); r.Complete {
			b.handleFrame(r)
		}
	}
	b.counters.storeParser(b.parser.Stats())
}

// handleFrame must be called with rxMu held.
func (b *Bridge) handleFrame(r frame.Result) {
	calc, recv := b.parser.LastChecksum()
	if !r.OK {
		b.counters.checksumFailures.Add(1)
		logger().WithField("port", b.port).Warnf(
			"bridge: dropping frame, checksum calculated %#04x received %#04x", calc, recv)
		b.notify(FrameEvent{Direction: DirectionRx, Calculated: calc, Received: recv})
		return
	}

	payload := b.parser.Payload()
	b.counters.framesRx.Add(1)
	b.notify(FrameEvent{Direction: DirectionRx, Payload: payload, Calculated: calc, Received: recv, OK: true})

	pkt := b.pool.Acquire()
	if pkt == nil {
		b.counters.poolExhausted.Add(1)
		logger().WithField("port", b.port).Warnf("bridge: %v, dropping frame",
			NewBridgeError("receive", b.port, ErrPoolExhausted, ErrorTypeResource))
		return
	}
	if err := pkt.ReadFrom(payload); err != nil {
		b.counters.decodeErrors.Add(1)
		debugf("bridge: %v", NewBridgeError("decode", b.port, fmt.Errorf("%w: %w", ErrDecodeFailed, err),
			ErrorTypeDecode))
		b.pool.Release(pkt)
		return
	}
	b.OnPacketReceived(pkt)
}

// OnPacketReceived applies received-packet handling to p: duplicates are
// released, new packets are queued into the mesh stack.
func (b *Bridge) OnPacketReceived(p *packet.Packet) {
	if p == nil {
		return
	}
	if b.seen.HasSeen(p) {
		b.counters.duplicates.Add(1)
		b.pool.Release(p)
		return
	}
	b.counters.inbound.Add(1)
	b.mesh.QueueInbound(p, b.Config().InboundDelay)
}

// OnPacketTransmitted is called by the mesh stack after it sends p over the mesh
// radio. Packets already seen are not bridged. Failures are counted and logged.
func (b *Bridge) OnPacketTransmitted(p *packet.Packet) {
	if err := b.Transmit(p); err != nil {
		if errors.Is(err, ErrBridgeDisabled) {
			return
		}
		switch GetErrorType(err) {
		case ErrorTypeOversize:
			logger().WithField("port", b.port).Errorf("bridge: %v", err)
		default:
			debugf("bridge: %v", err)
		}
	}
}

// Transmit frames p and writes it to the ready stream. It returns nil without
// writing when p is nil or was already seen, and ErrBridgeDisabled while the
// bridge is disabled. A missing or unready link drops the frame and returns
// ErrNotReady. Dropped frames are reported as not retryable.
func (b *Bridge) Transmit(p *packet.Packet) error {
	if p == nil {
		return nil
	}
	if !b.enabled.Load() {
		return ErrBridgeDisabled
	}
	if b.seen.HasSeen(p) {
		b.counters.suppressed.Add(1)
		return nil
	}

	if n := p.WireLen(); n > frame.MaxWireLen {
		b.counters.oversize.Add(1)
		return NewBridgeError("transmit", b.port,
			fmt.Errorf("%w: %d > %d", ErrPacketTooLarge, n, frame.MaxWireLen), ErrorTypeOversize)
	}

	b.txMu.Lock()
	defer b.txMu.Unlock()

	wire := b.wireBuf[:p.WriteTo(b.wireBuf[:])]
	frm, err := frame.AppendFrame(b.txBuf[:0], wire)
	if err != nil {
		b.counters.oversize.Add(1)
		return NewBridgeError("transmit", b.port, err, ErrorTypeOversize)
	}

	stream := b.link.Stream()
	if stream == nil {
		b.counters.dropped.Add(1)
		return newDropError("transmit", b.port, ErrNotReady)
	}

	written, err := stream.Write(frm)
	if written > 0 {
		b.counters.bytesTx.Add(uint64(written))
	}
	if err != nil {
		b.counters.dropped.Add(1)
		return newDropError("transmit", b.port, err)
	}
	if written < len(frm) {
		b.counters.dropped.Add(1)
		return newDropError("transmit", b.port,
			fmt.Errorf("%w: %d of %d bytes", ErrShortWrite, written, len(frm)))
	}

	b.counters.framesTx.Add(1)
	b.notify(FrameEvent{Direction: DirectionTx, Payload: wire, OK: true,
		Calculated: frame.Fletcher16(wire), Received: frame.Fletcher16(wire)})
	return nil
}

func (b *Bridge) notify(ev FrameEvent) {
	if len(b.observers) == 0 {
		return
	}
	ev.At = time.Now()
	ev.Port = b.port
	for _, o := range b.observers {
		o.ObserveFrame(ev)
	}
}

// Link returns the link manager.
func (b *Bridge) Link() *link.Manager {
	return b.link
}

// Pool returns the packet pool inbound packets are drawn from.
func (b *Bridge) Pool() *packet.Pool {
	return b.pool
}

// Port returns the label set with WithPort.
func (b *Bridge) Port() string {
	return b.port
}
