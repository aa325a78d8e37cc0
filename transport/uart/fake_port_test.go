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

package uart

import (
	"errors"
	"sync"
	"time"

	"go.bug.st/serial"
)

var errFakeClosed = errors.New("fake port closed")

// fakePort is an in-memory serial.Port.
type fakePort struct {
	readErr error
	notify  chan struct{}
	rx      []byte
	tx      []byte
	timeout time.Duration
	mu      sync.Mutex
	closed  bool
}

func newFakePort() *fakePort {
	return &fakePort{notify: make(chan struct{}, 1), timeout: serial.NoTimeout}
}

func (p *fakePort) wake() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// inject queues bytes for the reader.
func (p *fakePort) inject(b []byte) {
	p.mu.Lock()
	p.rx = append(p.rx, b...)
	p.mu.Unlock()
	p.wake()
}

// fail makes the next Read return err.
func (p *fakePort) fail(err error) {
	p.mu.Lock()
	p.readErr = err
	p.mu.Unlock()
	p.wake()
}

func (p *fakePort) written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.tx...)
}

func (p *fakePort) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakePort) Read(b []byte) (int, error) {
	for {
		p.mu.Lock()
		switch {
		case p.closed:
			p.mu.Unlock()
			return 0, errFakeClosed
		case p.readErr != nil:
			err := p.readErr
			p.mu.Unlock()
			return 0, err
		case len(p.rx) > 0:
			n := copy(b, p.rx)
			p.rx = p.rx[n:]
			p.mu.Unlock()
			return n, nil
		}
		timeout := p.timeout
		p.mu.Unlock()

		if timeout < 0 {
			<-p.notify
			continue
		}
		select {
		case <-p.notify:
		case <-time.After(timeout):
			return 0, nil
		}
	}
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, errFakeClosed
	}
	p.tx = append(p.tx, b...)
	return len(b), nil
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	p.timeout = t
	p.mu.Unlock()
	return nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wake()
	return nil
}

func (*fakePort) SetMode(*serial.Mode) error                           { return nil }
func (*fakePort) Drain() error                                         { return nil }
func (*fakePort) ResetInputBuffer() error                              { return nil }
func (*fakePort) ResetOutputBuffer() error                             { return nil }
func (*fakePort) SetDTR(bool) error                                    { return nil }
func (*fakePort) SetRTS(bool) error                                    { return nil }
func (*fakePort) GetModemStatusBits() (*serial.ModemStatusBits, error) { return &serial.ModemStatusBits{}, nil }
func (*fakePort) Break(time.Duration) error                            { return nil }

// fakeOpener hands out fake ports, failing the first failures calls.
type fakeOpener struct {
	ports    []*fakePort
	modes    []serial.Mode
	failures int
	calls    int
	mu       sync.Mutex
}

func (o *fakeOpener) open(_ string, mode *serial.Mode) (serial.Port, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	o.modes = append(o.modes, *mode)
	if o.failures > 0 {
		o.failures--
		return nil, errors.New("no such device")
	}
	p := newFakePort()
	o.ports = append(o.ports, p)
	return p, nil
}

func (o *fakeOpener) last() *fakePort {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.ports) == 0 {
		return nil
	}
	return o.ports[len(o.ports)-1]
}

func (o *fakeOpener) opened() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.ports)
}
