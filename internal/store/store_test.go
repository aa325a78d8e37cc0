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

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-meshbridge"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "frames.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(db))
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)
	require.NoError(t, Migrate(db))
}

func TestFrameLogRecordsFrames(t *testing.T) {
	t.Parallel()
	log := NewFrameLog(openTestDB(t))
	ctx := context.Background()
	at := time.UnixMilli(1_700_000_000_123)

	log.ObserveFrame(meshbridge.FrameEvent{
		At:         at,
		Port:       "ttyUSB0",
		Payload:    []byte{0x01, 0x02, 0x03},
		Direction:  meshbridge.DirectionRx,
		Calculated: 0x0A06,
		Received:   0x0A06,
		OK:         true,
	})
	log.ObserveFrame(meshbridge.FrameEvent{
		At:         at.Add(time.Second),
		Port:       "ttyUSB0",
		Direction:  meshbridge.DirectionRx,
		Calculated: 0x1234,
		Received:   0xFFFF,
	})
	require.NoError(t, log.Insert(ctx, meshbridge.FrameEvent{
		Port:      "ttyUSB1",
		Payload:   []byte{0xAA},
		Direction: meshbridge.DirectionTx,
		OK:        true,
	}))

	total, failed, err := log.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, int64(1), failed)

	recent, err := log.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	assert.Equal(t, "tx", recent[0].Direction)
	assert.Equal(t, "ttyUSB1", recent[0].Port)
	assert.False(t, recent[0].ObservedAt.IsZero())

	bad := recent[1]
	assert.False(t, bad.OK)
	assert.Equal(t, uint16(0x1234), bad.Calculated)
	assert.Equal(t, uint16(0xFFFF), bad.Received)
	assert.Zero(t, bad.Length)
	assert.Equal(t, at.Add(time.Second).UnixMilli(), bad.ObservedAt.UnixMilli())

	all, err := log.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, all[2].Payload)
	assert.Equal(t, 3, all[2].Length)
	assert.True(t, all[2].OK)
}

func TestFrameLogAsBridgeObserver(t *testing.T) {
	t.Parallel()
	var _ meshbridge.FrameObserver = (*FrameLog)(nil)
}
