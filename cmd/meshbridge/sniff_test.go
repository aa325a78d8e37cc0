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

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-meshbridge"
	testutil "github.com/ZaparooProject/go-meshbridge/internal/testing"
)

func collectFrames(port string) (*sniffer, *[]meshbridge.FrameEvent) {
	var events []meshbridge.FrameEvent
	s := newSniffer(port, func(ev meshbridge.FrameEvent) {
		ev.Payload = append([]byte(nil), ev.Payload...)
		events = append(events, ev)
	})
	s.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 6e6, time.UTC) }
	return s, &events
}

func TestSnifferDecodesFramesAcrossReads(t *testing.T) {
	t.Parallel()
	s, events := collectFrames("/dev/ttyUSB0")

	stream := append([]byte{0x00, 0x11}, testutil.BuildFrame([]byte{1, 2, 3})...)
	stream = append(stream, testutil.BuildScenarioFrame()...)
	s.feed(stream[:5])
	s.feed(stream[5:])

	require.Len(t, *events, 2)
	first := (*events)[0]
	assert.True(t, first.OK)
	assert.Equal(t, []byte{1, 2, 3}, first.Payload)
	assert.Equal(t, "/dev/ttyUSB0", first.Port)
	assert.Equal(t, meshbridge.DirectionRx, first.Direction)
	assert.Len(t, (*events)[1].Payload, 10)
}

func TestSnifferReportsChecksumMismatch(t *testing.T) {
	t.Parallel()
	s, events := collectFrames("")

	f := testutil.BuildFrame([]byte{0x10, 0x20})
	f[len(f)-1] ^= 0xFF
	s.feed(f)

	require.Len(t, *events, 1)
	ev := (*events)[0]
	assert.False(t, ev.OK)
	assert.Empty(t, ev.Payload)
	assert.NotEqual(t, ev.Calculated, ev.Received)
	assert.Contains(t, formatFrame(ev), "checksum mismatch")
}

type errAfterReader struct {
	r   io.Reader
	err error
}

func (e *errAfterReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if errors.Is(err, io.EOF) {
		return n, e.err
	}
	return n, err
}

func TestSnifferRun(t *testing.T) {
	t.Parallel()

	t.Run("stops at EOF", func(t *testing.T) {
		t.Parallel()
		s, events := collectFrames("")
		err := s.run(context.Background(), bytes.NewReader(testutil.BuildScenarioFrame()))
		require.NoError(t, err)
		assert.Len(t, *events, 1)
	})

	t.Run("returns read errors", func(t *testing.T) {
		t.Parallel()
		s, _ := collectFrames("")
		boom := errors.New("device unplugged")
		err := s.run(context.Background(), &errAfterReader{r: bytes.NewReader(nil), err: boom})
		require.ErrorIs(t, err, boom)
	})

	t.Run("stops when cancelled", func(t *testing.T) {
		t.Parallel()
		s, events := collectFrames("")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.NoError(t, s.run(ctx, bytes.NewReader(testutil.BuildScenarioFrame())))
		assert.Empty(t, *events)
	})
}

func TestFormatFrame(t *testing.T) {
	t.Parallel()
	at := time.Date(2025, 1, 2, 3, 4, 5, 6e6, time.UTC)

	text := testutil.NewTextPacket("hi").Serialize()
	line := formatFrame(meshbridge.FrameEvent{At: at, Payload: text, OK: true})
	parts := strings.Split(line, " | ")
	require.Len(t, parts, 4)
	assert.Equal(t, "03:04:05.006", parts[0])
	assert.Equal(t, "  4", parts[1])
	assert.Equal(t, hexGroups(text), parts[2])
	assert.Equal(t, "flood text path=0 body=2", parts[3])

	empty := formatFrame(meshbridge.FrameEvent{At: at, OK: true})
	assert.Equal(t, "03:04:05.006 |   0 | -", empty)
}

func TestHexGroups(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "-", hexGroups(nil))
	assert.Equal(t, "C0 3E 00 0A", hexGroups([]byte{0xC0, 0x3E, 0x00, 0x0A}))
}
