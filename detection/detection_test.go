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

package detection

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDetector struct {
	err     error
	name    string
	devices []DeviceInfo
}

func (s *stubDetector) Transport() string { return s.name }

func (s *stubDetector) Detect(context.Context, *Options) ([]DeviceInfo, error) {
	return s.devices, s.err
}

func withDetectors(t *testing.T, ds ...Detector) {
	t.Helper()
	registryMu.Lock()
	saved := detectors
	detectors = map[string]Detector{}
	registryMu.Unlock()
	for _, d := range ds {
		RegisterDetector(d)
	}
	t.Cleanup(func() {
		registryMu.Lock()
		detectors = saved
		registryMu.Unlock()
	})
}

//nolint:paralleltest // replaces the detector registry
func TestDetectAll(t *testing.T) {
	withDetectors(t,
		&stubDetector{name: "b", devices: []DeviceInfo{{Path: "/dev/b", Transport: "b"}}},
		&stubDetector{name: "a", devices: []DeviceInfo{{Path: "/dev/a", Transport: "a"}}},
		&stubDetector{name: "c", err: ErrUnsupportedPlatform},
	)

	assert.Equal(t, []string{"a", "b", "c"}, Detectors())
	devices, err := DetectAll(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "/dev/a", devices[0].Path)
	assert.Equal(t, "/dev/b", devices[1].Path)
}

//nolint:paralleltest // replaces the detector registry
func TestDetectAllErrors(t *testing.T) {
	boom := errors.New("boom")
	withDetectors(t, &stubDetector{name: "x", err: boom})

	_, err := DetectAll(context.Background(), nil)
	require.ErrorIs(t, err, boom)

	withDetectors(t, &stubDetector{name: "y"}, &stubDetector{name: "z", err: ErrUnsupportedPlatform})
	_, err = DetectAll(context.Background(), nil)
	require.ErrorIs(t, err, ErrNoDevicesFound)
}

func TestModeString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "passive", Passive.String())
	assert.Equal(t, "listen", Listen.String())
	assert.Equal(t, "unknown", Mode(7).String())
}

func TestDeviceInfoString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "COM3 (uart)", DeviceInfo{Path: "COM3", Transport: "uart"}.String())
}
