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
	"testing"

	testutil "github.com/ZaparooProject/go-meshbridge/internal/testing"
	"github.com/ZaparooProject/go-meshbridge/link"
	"github.com/ZaparooProject/go-meshbridge/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bridgeFixture struct {
	bridge   *Bridge
	radio    *testutil.VirtualRadio
	mesh     *MockMesh
	pool     *packet.Pool
	recorder *FrameRecorder
}

func newFixture(t *testing.T, role link.Role, opts ...Option) *bridgeFixture {
	t.Helper()
	pool := packet.NewPool(4)
	f := &bridgeFixture{
		radio:    testutil.NewVirtualRadio(testutil.TestResponderAddress),
		mesh:     NewMockMesh(pool),
		pool:     pool,
		recorder: &FrameRecorder{},
	}
	cfg := DefaultConfig()
	cfg.Link.Role = role

	opts = append([]Option{WithPacketPool(pool), WithFrameObserver(f.recorder), WithPort("test0")}, opts...)
	b, err := New(f.mesh, f.radio, StaticConfig(cfg), opts...)
	require.NoError(t, err)
	require.NoError(t, b.Begin())
	f.bridge = b
	return f
}

func (f *bridgeFixture) connect(t *testing.T) {
	t.Helper()
	f.radio.SimulateConnected(link.Candidate{Address: testutil.TestInitiatorAddress})
	f.bridge.Loop()
	require.True(t, f.bridge.Link().Ready())
}

func (f *bridgeFixture) receive(data []byte) {
	f.radio.VirtualStream().Inject(data)
	f.bridge.Loop()
}

// bareRadio hides the optional capabilities of the wrapped radio.
type bareRadio struct {
	link.Radio
}

func TestNewRejectsNilCollaborators(t *testing.T) {
	t.Parallel()
	radio := testutil.NewVirtualRadio(testutil.TestResponderAddress)
	mesh := NewMockMesh(nil)
	provider := StaticConfig(DefaultConfig())

	_, err := New(nil, radio, provider)
	require.ErrorIs(t, err, ErrNilCollaborator)
	_, err = New(mesh, nil, provider)
	require.ErrorIs(t, err, ErrNilCollaborator)
	_, err = New(mesh, radio, nil)
	require.ErrorIs(t, err, ErrNilCollaborator)
}

func TestNewRejectsBadOptions(t *testing.T) {
	t.Parallel()
	radio := testutil.NewVirtualRadio(testutil.TestResponderAddress)
	provider := StaticConfig(DefaultConfig())

	_, err := New(NewMockMesh(nil), radio, provider, WithPacketPool(nil))
	require.Error(t, err)
	_, err = New(NewMockMesh(nil), radio, provider, WithInboundDelay(-1))
	require.Error(t, err)
}

func TestBeginTwice(t *testing.T) {
	t.Parallel()
	f := newFixture(t, link.RoleResponder)
	require.ErrorIs(t, f.bridge.Begin(), ErrAlreadyBegun)
}

func TestBeginStartsDiscovery(t *testing.T) {
	t.Parallel()
	f := newFixture(t, link.RoleResponder)

	assert.True(t, f.bridge.Enabled())
	assert.Equal(t, link.StateDiscovering, f.bridge.Link().State())
	assert.Equal(t, 1, f.radio.CountCalls("StartAdvertising"))
	assert.Equal(t, link.DefaultTxPower, f.radio.TxPower())
	assert.Equal(t, link.DefaultName, f.radio.Name())
}

func TestBeginDisabled(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Enabled = false
	radio := testutil.NewVirtualRadio(testutil.TestResponderAddress)
	b, err := New(NewMockMesh(nil), radio, StaticConfig(cfg))
	require.NoError(t, err)
	require.NoError(t, b.Begin())

	assert.False(t, b.Enabled())
	assert.Equal(t, link.StateIdle, b.Link().State())
	assert.Zero(t, radio.CountCalls("Begin"))
	assert.Equal(t, "bridge: disabled", b.Status())

	err = b.Transmit(testutil.NewTextPacket("ignored"))
	require.ErrorIs(t, err, ErrBridgeDisabled)
	assert.Equal(t, ErrorTypeConfig, GetErrorType(err))
	assert.False(t, IsRetryable(err))

	b.OnPacketTransmitted(testutil.NewTextPacket("ignored"))
	b.Loop()
	assert.Equal(t, Metrics{}, b.Metrics())
	assert.Empty(t, radio.VirtualStream().Written())
}

func TestBeginConfigError(t *testing.T) {
	t.Parallel()
	provider := NewMockConfigProvider(DefaultConfig())
	provider.SetError(errors.New("disk on fire"))
	b, err := New(NewMockMesh(nil), testutil.NewVirtualRadio(testutil.TestResponderAddress), provider)
	require.NoError(t, err)

	err = b.Begin()
	require.Error(t, err)
	assert.Equal(t, ErrorTypeConfig, GetErrorType(err))

	provider.Set(DefaultConfig())
	require.NoError(t, b.Begin(), "a failed Begin may be retried")
}

func TestResponderReceivesScenarioFrame(t *testing.T) {
	t.Parallel()
	f := newFixture(t, link.RoleResponder)
	f.connect(t)

	frm := testutil.BuildScenarioFrame()
	require.Len(t, frm, 16)

	f.receive(frm[:15])
	assert.Empty(t, f.recorder.Events(), "frame must not complete before its last byte")

	f.receive(frm[15:])
	events := f.recorder.Events()
	require.Len(t, events, 1)
	assert.True(t, events[0].OK)
	assert.Equal(t, DirectionRx, events[0].Direction)
	assert.Len(t, events[0].Payload, 10)
	assert.Equal(t, "test0", events[0].Port)

	// ten 0xAA bytes do not form a valid packet: path length 170
	m := f.bridge.Metrics()
	assert.Equal(t, uint64(1), m.FramesRx)
	assert.Equal(t, uint64(1), m.DecodeErrors)
	assert.Equal(t, uint64(16), m.BytesRx)
	assert.Empty(t, f.mesh.Queued())
	assert.Zero(t, f.pool.Outstanding(), "undecodable packet must be released")
}

func TestReceivedPacketIsQueued(t *testing.T) {
	t.Parallel()
	f := newFixture(t, link.RoleResponder)
	f.connect(t)

	f.receive(testutil.BuildPacketFrame(testutil.NewTextPacket("hello")))

	queued := f.mesh.Queued()
	require.Len(t, queued, 1)
	assert.Equal(t, []byte("hello"), queued[0].Packet.Payload)
	assert.Equal(t, DefaultInboundDelay, queued[0].Delay)
	assert.Equal(t, uint64(1), f.bridge.Metrics().Inbound)
	assert.Zero(t, f.pool.Outstanding())
}

func TestInboundDelayOverride(t *testing.T) {
	t.Parallel()
	f := newFixture(t, link.RoleResponder, WithInboundDelay(0))
	f.connect(t)

	f.receive(testutil.BuildPacketFrame(testutil.NewTextPacket("now")))

	queued := f.mesh.Queued()
	require.Len(t, queued, 1)
	assert.Zero(t, queued[0].Delay)
}

func TestDuplicateReceiveIsDropped(t *testing.T) {
	t.Parallel()
	f := newFixture(t, link.RoleResponder)
	f.connect(t)

	frm := testutil.BuildPacketFrame(testutil.NewTextPacket("twice"))
	f.receive(append(append([]byte(nil), frm...), frm...))

	assert.Len(t, f.mesh.Queued(), 1)
	assert.Equal(t, uint64(1), f.bridge.Metrics().Duplicates)
	assert.Zero(t, f.pool.Outstanding())
}

func TestChecksumFailureIsCountedAndSkipped(t *testing.T) {
	t.Parallel()
	f := newFixture(t, link.RoleResponder)
	f.connect(t)

	good := testutil.BuildPacketFrame(testutil.NewTextPacket("after"))
	bad := testutil.CorruptChecksum(testutil.BuildPacketFrame(testutil.NewTextPacket("before")))
	f.receive(append(bad, good...))

	m := f.bridge.Metrics()
	assert.Equal(t, uint64(1), m.ChecksumFailures)
	assert.Equal(t, uint64(1), m.FramesRx)

	queued := f.mesh.Queued()
	require.Len(t, queued, 1)
	assert.Equal(t, []byte("after"), queued[0].Packet.Payload)

	events := f.recorder.Events()
	require.Len(t, events, 2)
	assert.False(t, events[0].OK)
	assert.NotEqual(t, events[0].Calculated, events[0].Received)
	assert.True(t, events[1].OK)
}

func TestLineNoiseIsCountedAsResync(t *testing.T) {
	t.Parallel()
	f := newFixture(t, link.RoleResponder)
	f.connect(t)

	noise := []byte{0xC0, 0x00, 0xC0, 0x3E, 0x01, 0x00}
	f.receive(append(noise, testutil.BuildPacketFrame(testutil.NewTextPacket("ok"))...))

	m := f.bridge.Metrics()
	assert.Equal(t, uint64(2), m.Resyncs)
	assert.Len(t, f.mesh.Queued(), 1)
}

func TestPoolExhaustionDropsFrame(t *testing.T) {
	t.Parallel()
	pool := packet.NewPool(1)
	radio := testutil.NewVirtualRadio(testutil.TestResponderAddress)
	mesh := NewMockMesh(nil) // holds on to every packet
	b, err := New(mesh, radio, StaticConfig(DefaultConfig()), WithPacketPool(pool))
	require.NoError(t, err)
	require.NoError(t, b.Begin())
	radio.SimulateConnected(link.Candidate{})
	b.Loop()

	radio.VirtualStream().Inject(testutil.BuildPacketFrame(testutil.NewTextPacket("one")))
	radio.VirtualStream().Inject(testutil.BuildPacketFrame(testutil.NewTextPacket("two")))
	b.Loop()

	assert.Len(t, mesh.Queued(), 1)
	assert.Equal(t, uint64(1), b.Metrics().PoolExhausted)
}

func TestTransmitWritesFrame(t *testing.T) {
	t.Parallel()
	f := newFixture(t, link.RoleResponder)
	f.connect(t)

	p := testutil.NewTextPacket("out")
	require.NoError(t, f.bridge.Transmit(p))

	want := testutil.BuildPacketFrame(p)
	assert.Equal(t, want, f.radio.VirtualStream().Written())

	m := f.bridge.Metrics()
	assert.Equal(t, uint64(1), m.FramesTx)
	assert.Equal(t, uint64(len(want)), m.BytesTx)

	events := f.recorder.Events()
	require.Len(t, events, 1)
	assert.Equal(t, DirectionTx, events[0].Direction)
	assert.Equal(t, p.Serialize(), events[0].Payload)
}

func TestTransmitSuppressesLoops(t *testing.T) {
	t.Parallel()
	f := newFixture(t, link.RoleResponder)
	f.connect(t)

	f.receive(testutil.BuildPacketFrame(testutil.NewTextPacket("echo")))
	queued := f.mesh.Queued()
	require.Len(t, queued, 1)

	// the mesh stack rebroadcasts what it received
	f.bridge.OnPacketTransmitted(queued[0].Packet)

	assert.Empty(t, f.radio.VirtualStream().Written())
	assert.Equal(t, uint64(1), f.bridge.Metrics().Suppressed)
}

func TestTransmitSamePacketOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t, link.RoleResponder)
	f.connect(t)

	p := testutil.NewTextPacket("once")
	require.NoError(t, f.bridge.Transmit(p))
	require.NoError(t, f.bridge.Transmit(p))

	assert.Equal(t, testutil.BuildPacketFrame(p), f.radio.VirtualStream().Written())
}

func TestTransmitOversize(t *testing.T) {
	t.Parallel()
	f := newFixture(t, link.RoleResponder)
	f.connect(t)

	p := testutil.NewOversizePacket()
	require.Equal(t, packet.MaxWireLen+1, p.WireLen())

	err := f.bridge.Transmit(p)
	require.ErrorIs(t, err, ErrPacketTooLarge)
	assert.Equal(t, ErrorTypeOversize, GetErrorType(err))
	assert.False(t, IsRetryable(err))
	assert.Empty(t, f.radio.VirtualStream().Written())
	assert.Equal(t, uint64(1), f.bridge.Metrics().Oversize)

	f.bridge.OnPacketTransmitted(testutil.NewOversizePacket())
	assert.Empty(t, f.radio.VirtualStream().Written())
}

func TestTransmitWithoutLink(t *testing.T) {
	t.Parallel()
	f := newFixture(t, link.RoleResponder)

	err := f.bridge.Transmit(testutil.NewTextPacket("nobody"))
	require.ErrorIs(t, err, ErrNotReady)
	assert.Equal(t, ErrorTypeLink, GetErrorType(err))
	assert.False(t, IsRetryable(err), "a dropped frame is not retried")
	assert.Empty(t, f.radio.VirtualStream().Written())
	assert.Equal(t, uint64(1), f.bridge.Metrics().Dropped)
}

func TestTransmitShortWrite(t *testing.T) {
	t.Parallel()
	f := newFixture(t, link.RoleResponder)
	f.connect(t)
	f.radio.VirtualStream().SetWriteLimit(3)

	err := f.bridge.Transmit(testutil.NewTextPacket("truncated"))
	require.ErrorIs(t, err, ErrShortWrite)
	assert.False(t, IsRetryable(err))

	m := f.bridge.Metrics()
	assert.Equal(t, uint64(1), m.Dropped)
	assert.Equal(t, uint64(3), m.BytesTx)
	assert.Zero(t, m.FramesTx)
}

func TestTransmitNil(t *testing.T) {
	t.Parallel()
	f := newFixture(t, link.RoleResponder)
	f.connect(t)
	require.NoError(t, f.bridge.Transmit(nil))
	f.bridge.OnPacketReceived(nil)
	assert.Equal(t, uint64(0), f.bridge.Metrics().FramesTx)
}

func TestInitiatorDisconnectMidFrame(t *testing.T) {
	t.Parallel()
	f := newFixture(t, link.RoleInitiator)
	assert.Equal(t, 1, f.radio.CountCalls("StartScanning"))

	f.radio.SimulateDiscovered(link.Candidate{Address: testutil.TestInitiatorAddress})
	f.bridge.Loop()
	require.True(t, f.bridge.Link().Ready())

	frm := testutil.BuildPacketFrame(testutil.NewTextPacket("split"))
	f.receive(frm[:5])
	assert.Equal(t, 5, f.bridge.parser.Buffered())

	f.radio.SimulateDisconnected(0x08)
	f.bridge.Loop()
	assert.Equal(t, link.StateDiscovering, f.bridge.Link().State())
	assert.Zero(t, f.bridge.parser.Buffered(), "partial frame must be discarded on disconnect")
	assert.Equal(t, 2, f.radio.CountCalls("StartScanning"))

	f.radio.SimulateDiscovered(link.Candidate{Address: testutil.TestInitiatorAddress})
	f.bridge.Loop()
	require.True(t, f.bridge.Link().Ready())

	f.receive(frm)
	queued := f.mesh.Queued()
	require.Len(t, queued, 1)
	assert.Equal(t, []byte("split"), queued[0].Packet.Payload)

	m := f.bridge.Metrics()
	assert.Equal(t, uint64(2), m.LinkUps)
	assert.Equal(t, uint64(1), m.LinkDowns)
}

func TestEnableDisable(t *testing.T) {
	t.Parallel()
	f := newFixture(t, link.RoleResponder)
	f.connect(t)

	require.NoError(t, f.bridge.Disable())
	assert.False(t, f.bridge.Enabled())
	assert.Equal(t, link.StateIdle, f.bridge.Link().State())
	assert.Equal(t, 1, f.radio.CountCalls("Disconnect"))
	require.NoError(t, f.bridge.Disable(), "disabling twice is harmless")

	require.NoError(t, f.bridge.Enable())
	assert.True(t, f.bridge.Enabled())
	assert.Equal(t, link.StateDiscovering, f.bridge.Link().State())
	assert.Equal(t, 1, f.radio.CountCalls("Begin"), "radio is initialised once")
	require.NoError(t, f.bridge.Enable())
}

func TestEnableFailure(t *testing.T) {
	t.Parallel()
	radio := testutil.NewVirtualRadio(testutil.TestResponderAddress)
	radio.FailOn("StartAdvertising", testutil.ErrRadioDown)
	b, err := New(NewMockMesh(nil), radio, StaticConfig(DefaultConfig()))
	require.NoError(t, err)

	err = b.Begin()
	require.ErrorIs(t, err, link.ErrDiscoveryFailed)
	assert.Equal(t, ErrorTypeLink, GetErrorType(err))
	assert.False(t, b.Enabled())
}

func TestReconfigureSwitchesRole(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	provider := NewMockConfigProvider(cfg)
	radio := testutil.NewVirtualRadio(testutil.TestResponderAddress)
	b, err := New(NewMockMesh(nil), radio, provider)
	require.NoError(t, err)
	require.NoError(t, b.Begin())
	radio.SimulateConnected(link.Candidate{Address: testutil.TestInitiatorAddress})
	b.Loop()

	radio.VirtualStream().Inject(testutil.BuildScenarioFrame()[:5])
	b.Loop()
	require.Equal(t, 5, b.parser.Buffered())

	cfg.Link.Role = link.RoleInitiator
	cfg.Link.TxPower = 100
	provider.Set(cfg)
	require.NoError(t, b.Reconfigure())

	assert.Equal(t, link.RoleInitiator, b.Link().Role())
	assert.Equal(t, link.StateDiscovering, b.Link().State())
	assert.Equal(t, 1, radio.CountCalls("StartScanning"))
	assert.Equal(t, link.MaxTxPower, radio.TxPower())
	assert.Equal(t, link.MaxTxPower, b.Config().Link.TxPower)
	assert.Equal(t, 2, provider.Calls())

	b.Loop()
	assert.Zero(t, b.parser.Buffered())
}

func TestReconfigureEnableAndDisable(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Enabled = false
	provider := NewMockConfigProvider(cfg)
	b, err := New(NewMockMesh(nil), testutil.NewVirtualRadio(testutil.TestResponderAddress), provider)
	require.NoError(t, err)
	require.NoError(t, b.Begin())
	require.False(t, b.Enabled())

	cfg.Enabled = true
	provider.Set(cfg)
	require.NoError(t, b.Reconfigure())
	assert.True(t, b.Enabled())

	cfg.Enabled = false
	provider.Set(cfg)
	require.NoError(t, b.Reconfigure())
	assert.False(t, b.Enabled())
	assert.Equal(t, link.StateIdle, b.Link().State())

	provider.SetError(errors.New("gone"))
	err = b.Reconfigure()
	assert.Equal(t, ErrorTypeConfig, GetErrorType(err))
}

func TestStatusAndAddress(t *testing.T) {
	t.Parallel()
	f := newFixture(t, link.RoleResponder)
	assert.Contains(t, f.bridge.Status(), "responder discovering")

	f.connect(t)
	require.NoError(t, f.bridge.Transmit(testutil.NewTextPacket("x")))

	status := f.bridge.Status()
	assert.Contains(t, status, "responder ready")
	assert.Contains(t, status, "peer="+testutil.TestInitiatorAddress.String())
	assert.Contains(t, status, "tx_power=4")
	assert.Contains(t, status, "sent=1")

	assert.Equal(t, testutil.TestResponderAddress.String(), f.bridge.Address())
}

func TestAddressNotSupported(t *testing.T) {
	t.Parallel()
	radio := bareRadio{testutil.NewVirtualRadio(testutil.TestResponderAddress)}
	b, err := New(NewMockMesh(nil), radio, StaticConfig(DefaultConfig()))
	require.NoError(t, err)
	assert.Equal(t, "not supported", b.Address())
	_, err = b.LocalAddress()
	require.ErrorIs(t, err, ErrRadioNotSupported)
	assert.Equal(t, ErrorTypeConfig, GetErrorType(err))

	failing := testutil.NewVirtualRadio(testutil.TestResponderAddress)
	failing.FailOn("LocalAddress", testutil.ErrRadioDown)
	b, err = New(NewMockMesh(nil), failing, StaticConfig(DefaultConfig()))
	require.NoError(t, err)
	assert.Equal(t, "not supported", b.Address())
	_, err = b.LocalAddress()
	require.ErrorIs(t, err, testutil.ErrRadioDown)
	assert.NotErrorIs(t, err, ErrRadioNotSupported)
}

func TestVirtualPairEndToEnd(t *testing.T) {
	t.Parallel()
	respRadio, initRadio := testutil.NewVirtualPair()

	respCfg := DefaultConfig()
	initCfg := DefaultConfig()
	initCfg.Link.Role = link.RoleInitiator
	initCfg.Link.Peer = testutil.TestResponderAddress

	respMesh := NewMockMesh(nil)
	initMesh := NewMockMesh(nil)
	responder, err := New(respMesh, respRadio, StaticConfig(respCfg))
	require.NoError(t, err)
	initiator, err := New(initMesh, initRadio, StaticConfig(initCfg))
	require.NoError(t, err)
	require.NoError(t, responder.Begin())
	require.NoError(t, initiator.Begin())

	initRadio.SimulateDiscovered(link.Candidate{Address: testutil.TestResponderAddress, Name: "resp"})
	initiator.Loop()
	responder.Loop()
	require.True(t, initiator.Link().Ready())
	require.True(t, responder.Link().Ready())

	p := testutil.NewTextPacket("across")
	require.NoError(t, responder.Transmit(p))
	initiator.Loop()

	queued := initMesh.Queued()
	require.Len(t, queued, 1)
	assert.Equal(t, p.Serialize(), queued[0].Packet.Serialize())

	// the initiator's mesh rebroadcast must not come back over the backhaul
	initiator.OnPacketTransmitted(queued[0].Packet)
	responder.Loop()
	assert.Empty(t, respMesh.Queued())
	assert.Equal(t, uint64(1), initiator.Metrics().Suppressed)
}
