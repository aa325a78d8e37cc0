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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPathIgnored(t *testing.T) {
	t.Parallel()

	for _, tt := range getPathIgnoredTests() {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			result := IsPathIgnored(tt.devicePath, tt.ignorePaths)
			if result != tt.expected {
				t.Errorf("IsPathIgnored(%q, %v) = %v, want %v",
					tt.devicePath, tt.ignorePaths, result, tt.expected)
			}
		})
	}
}

type pathIgnoredTest struct {
	name        string
	devicePath  string
	ignorePaths []string
	expected    bool
}

func getPathIgnoredTests() []pathIgnoredTest {
	return []pathIgnoredTest{
		{name: "empty ignore list", devicePath: "/dev/ttyUSB0", ignorePaths: []string{}},
		{name: "empty device path", devicePath: "", ignorePaths: []string{"/dev/ttyUSB0"}},
		{name: "exact unix path", devicePath: "/dev/ttyACM0", ignorePaths: []string{"/dev/ttyACM0"}, expected: true},
		{name: "windows path any case", devicePath: "com3", ignorePaths: []string{"COM3"}, expected: true},
		{
			name:        "by-id symlink",
			devicePath:  "/dev/serial/by-id/usb-1a86_USB_Serial-if00-port0",
			ignorePaths: []string{"/dev/serial/by-id/usb-1a86_USB_Serial-if00-port0"},
			expected:    true,
		},
		{name: "relative components", devicePath: "/dev/../dev/ttyUSB0", ignorePaths: []string{"/dev/ttyUSB0"}, expected: true},
		{name: "blank entries skipped", devicePath: "/dev/ttyUSB0", ignorePaths: []string{"", "/dev/ttyUSB0"}, expected: true},
		{name: "no match", devicePath: "/dev/ttyUSB1", ignorePaths: []string{"/dev/ttyUSB0", "COM2"}},
	}
}

func getParseVIDPIDTestCases() []struct {
	name       string
	descriptor string
	want       string
} {
	return []struct {
		name       string
		descriptor string
		want       string
	}{
		{name: "labelled", descriptor: "VID:1a86 PID:7523", want: "1A86:7523"},
		{name: "vendor product", descriptor: "vendor=10c4 product=ea60", want: "10C4:EA60"},
		{name: "equals form", descriptor: "usb vid=0403 pid=6001 serial=A1", want: "0403:6001"},
		{name: "bare pair", descriptor: "2e8a:000a", want: "2E8A:000A"},
		{name: "missing pid", descriptor: "VID:1A86", want: ""},
		{name: "not hex", descriptor: "COM3:XYZ", want: ""},
		{name: "empty", descriptor: "", want: ""},
	}
}

func TestParseVIDPID(t *testing.T) {
	t.Parallel()
	for _, tt := range getParseVIDPIDTestCases() {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseVIDPID(tt.descriptor))
		})
	}
}

func TestIsBlocked(t *testing.T) {
	t.Parallel()
	assert.True(t, IsBlocked("1d50:6089", DefaultBlocklist()))
	assert.True(t, IsBlocked(" 0403:6010 ", DefaultBlocklist()))
	assert.False(t, IsBlocked("1A86:7523", DefaultBlocklist()))
	assert.False(t, IsBlocked("", []string{""}))
}

func TestOptionsAllows(t *testing.T) {
	t.Parallel()
	opts := DefaultOptions()
	opts.IgnorePaths = []string{"/dev/ttyUSB9"}

	assert.True(t, opts.Allows(DeviceInfo{Path: "/dev/ttyUSB0", VIDPID: "1A86:7523"}))
	assert.False(t, opts.Allows(DeviceInfo{Path: "/dev/ttyUSB9", VIDPID: "1A86:7523"}))
	assert.False(t, opts.Allows(DeviceInfo{Path: "/dev/ttyACM0", VIDPID: "1D50:6089"}))
	assert.False(t, opts.Allows(DeviceInfo{Path: "/dev/ttyS0"}))

	opts.IncludeNonUSB = true
	assert.True(t, opts.Allows(DeviceInfo{Path: "/dev/ttyS0"}))
}

func TestOptionsWithIgnorePaths(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	if opts.IgnorePaths != nil {
		t.Errorf("DefaultOptions().IgnorePaths should be nil, got %v", opts.IgnorePaths)
	}
	if opts.Mode != Passive {
		t.Errorf("DefaultOptions().Mode = %v, want passive", opts.Mode)
	}
}
