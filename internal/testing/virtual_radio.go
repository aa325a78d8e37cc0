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

package testing

import (
	"errors"
	"sync"

	"github.com/ZaparooProject/go-meshbridge/link"
)

// ErrRadioDown is returned by a VirtualRadio configured to fail.
var ErrRadioDown = errors.New("virtual radio: operation failed")

// VirtualStream is an in-memory link.Stream. Bytes fed with Inject are read back
// through ReadByte; bytes written are captured and, when the stream is joined
// to a peer, injected into the peer.
type VirtualStream struct {
	peer    *VirtualStream
	rx      []byte
	written []byte
	limit   int
	mu      sync.Mutex
	closed  bool
}

// NewVirtualStream creates an open stream.
func NewVirtualStream() *VirtualStream {
	return &VirtualStream{limit: -1}
}

// Write captures b and forwards it to the joined peer.
func (s *VirtualStream) Write(b []byte) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, nil
	}
	n := len(b)
	if s.limit >= 0 && n > s.limit {
		n = s.limit
	}
	s.written = append(s.written, b[:n]...)
	peer := s.peer
	s.mu.Unlock()

	if peer != nil {
		peer.Inject(b[:n])
	}
	return n, nil
}

// Available returns the number of unread bytes.
func (s *VirtualStream) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rx)
}

// ReadByte pops the next unread byte.
func (s *VirtualStream) ReadByte() (byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rx) == 0 {
		return 0, errors.New("virtual stream: no data")
	}
	b := s.rx[0]
	s.rx = s.rx[1:]
	return b, nil
}

// Inject appends b to the unread bytes.
func (s *VirtualStream) Inject(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.rx = append(s.rx, b...)
}

// Written returns a copy of everything written so far.
func (s *VirtualStream) Written() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.written...)
}

// ResetWritten clears the write capture.
func (s *VirtualStream) ResetWritten() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written = nil
}

// SetWriteLimit caps how many bytes one Write accepts. Negative means unlimited.
func (s *VirtualStream) SetWriteLimit(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limit = n
}

// Sever drops unread bytes and makes the stream discard further traffic until
// Restore is called.
func (s *VirtualStream) Sever() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.rx = nil
}

// Restore reopens a severed stream.
func (s *VirtualStream) Restore() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = false
}

// VirtualRadio is a scriptable link.Radio. It implements every optional
// capability; tests drive asynchronous outcomes with the Simulate methods.
type VirtualRadio struct {
	events      *link.EventQueue
	stream      *VirtualStream
	peer        *VirtualRadio
	failures    map[string]error
	address     link.Address
	calls       []string
	advertising link.AdvertisingParams
	scanning    link.ScanParams
	name        string
	txPower     int
	mu          sync.Mutex
	noInitiator bool
	// AutoService makes DiscoverService report success immediately.
	AutoService bool
}

// NewVirtualRadio creates a radio with the given local address.
func NewVirtualRadio(address link.Address) *VirtualRadio {
	return &VirtualRadio{
		address:     address,
		stream:      NewVirtualStream(),
		failures:    make(map[string]error),
		AutoService: true,
	}
}

// NewVirtualPair returns two radios whose streams are joined back to back.
// Connecting either side reports EventConnected on both.
func NewVirtualPair() (responder, initiator *VirtualRadio) {
	responder = NewVirtualRadio(TestResponderAddress)
	initiator = NewVirtualRadio(TestInitiatorAddress)
	responder.peer = initiator
	initiator.peer = responder
	responder.stream.peer = initiator.stream
	initiator.stream.peer = responder.stream
	return responder, initiator
}

func (r *VirtualRadio) record(call string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
	return r.failures[call]
}

// FailOn makes the named method return err. A nil err clears the failure.
func (r *VirtualRadio) FailOn(method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.failures, method)
		return
	}
	r.failures[method] = err
}

// DisableInitiator makes HasCapability deny the initiator role.
func (r *VirtualRadio) DisableInitiator() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.noInitiator = true
}

// CallLog returns a copy of the recorded method calls.
func (r *VirtualRadio) CallLog() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// CountCalls returns how many times method was called.
func (r *VirtualRadio) CountCalls(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == method {
			n++
		}
	}
	return n
}

func (r *VirtualRadio) Begin(name string, events *link.EventQueue) error {
	if err := r.record("Begin"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.name = name
	r.events = events
	return nil
}

func (r *VirtualRadio) StartAdvertising(params link.AdvertisingParams) error {
	if err := r.record("StartAdvertising"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advertising = params
	return nil
}

func (r *VirtualRadio) StartScanning(params link.ScanParams) error {
	if err := r.record("StartScanning"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scanning = params
	return nil
}

func (r *VirtualRadio) StopAll() error {
	return r.record("StopAll")
}

// Connect reports EventConnected on both ends of a pair, or on this radio alone
// when unpaired.
func (r *VirtualRadio) Connect(c link.Candidate) error {
	if err := r.record("Connect"); err != nil {
		return err
	}
	r.stream.Restore()
	r.SimulateConnected(c)
	if peer := r.peer; peer != nil {
		peer.stream.Restore()
		peer.SimulateConnected(link.Candidate{Address: r.address, Name: r.Name()})
	}
	return nil
}

// Disconnect severs the streams and reports EventDisconnected to the peer.
func (r *VirtualRadio) Disconnect() error {
	if err := r.record("Disconnect"); err != nil {
		return err
	}
	r.stream.Sever()
	if peer := r.peer; peer != nil {
		peer.stream.Sever()
		peer.SimulateDisconnected(0x13)
	}
	return nil
}

func (r *VirtualRadio) Stream(link.Role) link.Stream {
	return r.stream
}

func (*VirtualRadio) Type() link.RadioType {
	return link.RadioMock
}

func (r *VirtualRadio) SetTxPower(dbm int) error {
	if err := r.record("SetTxPower"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txPower = dbm
	return nil
}

func (r *VirtualRadio) LocalAddress() (string, error) {
	if err := r.record("LocalAddress"); err != nil {
		return "", err
	}
	return r.address.String(), nil
}

func (r *VirtualRadio) DiscoverService(link.ServiceIdentity) error {
	if err := r.record("DiscoverService"); err != nil {
		return err
	}
	r.mu.Lock()
	auto := r.AutoService
	r.mu.Unlock()
	if auto {
		r.post(link.Event{Kind: link.EventServiceReady})
	}
	return nil
}

func (r *VirtualRadio) HasCapability(c link.Capability) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c == link.CapabilityInitiator {
		return !r.noInitiator
	}
	return true
}

// VirtualStream returns the radio's stream for direct injection.
func (r *VirtualRadio) VirtualStream() *VirtualStream {
	return r.stream
}

// Name returns the name passed to Begin.
func (r *VirtualRadio) Name() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.name
}

// TxPower returns the last applied transmit power.
func (r *VirtualRadio) TxPower() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.txPower
}

// Advertising returns the last advertising parameters.
func (r *VirtualRadio) Advertising() link.AdvertisingParams {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.advertising
}

// Scanning returns the last scan parameters.
func (r *VirtualRadio) Scanning() link.ScanParams {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scanning
}

// Address returns the radio's local address.
func (r *VirtualRadio) Address() link.Address {
	return r.address
}

func (r *VirtualRadio) post(ev link.Event) bool {
	r.mu.Lock()
	events := r.events
	r.mu.Unlock()
	return events.Post(ev)
}

// SimulateDiscovered reports a scan result.
func (r *VirtualRadio) SimulateDiscovered(c link.Candidate) bool {
	return r.post(link.Event{Kind: link.EventDiscovered, Candidate: c})
}

// SimulateConnected reports an established connection.
func (r *VirtualRadio) SimulateConnected(c link.Candidate) bool {
	return r.post(link.Event{Kind: link.EventConnected, Candidate: c})
}

// SimulateDisconnected reports a lost connection.
func (r *VirtualRadio) SimulateDisconnected(reason int) bool {
	return r.post(link.Event{Kind: link.EventDisconnected, Reason: reason})
}

// SimulateConnectFailed reports a failed connection attempt.
func (r *VirtualRadio) SimulateConnectFailed() bool {
	return r.post(link.Event{Kind: link.EventConnectFailed})
}

// SimulateServiceFailed reports that the peer lacks the bridge service.
func (r *VirtualRadio) SimulateServiceFailed() bool {
	return r.post(link.Event{Kind: link.EventServiceFailed})
}
