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

package logging

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		input   string
		want    logrus.Level
		wantErr bool
	}{
		{name: "empty defaults to info", input: "", want: logrus.InfoLevel},
		{name: "debug", input: "debug", want: logrus.DebugLevel},
		{name: "upper case", input: "WARN", want: logrus.WarnLevel},
		{name: "error", input: "error", want: logrus.ErrorLevel},
		{name: "unknown", input: "loud", want: logrus.InfoLevel, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseLevel(tt.input)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

//nolint:paralleltest // mutates the shared logger
func TestSetupWritesConsoleAndFile(t *testing.T) {
	prev := Logger()
	t.Cleanup(func() { SetLogger(prev) })

	path := filepath.Join(t.TempDir(), "bridge.log")
	cfg := DefaultConfig()
	cfg.Format = "json"
	cfg.File.Enabled = true
	cfg.File.Path = path

	var sink fileSink
	t.Cleanup(func() { _ = sink.swap(nil) })

	var console bytes.Buffer
	l, err := setup(cfg, &console, &sink)
	require.NoError(t, err)
	assert.Same(t, l, Logger())

	Logger().WithField("port", "/dev/ttyUSB0").Info("link ready")

	assert.Contains(t, console.String(), `"msg":"link ready"`)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"port":"/dev/ttyUSB0"`)
}

func TestSetupRejectsBadConfig(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "bad level", cfg: Config{Level: "chatty"}},
		{name: "bad format", cfg: Config{Level: "info", Format: "xml"}},
		{name: "file without path", cfg: Config{File: FileConfig{Enabled: true}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var sink fileSink
			_, err := setup(tt.cfg, &bytes.Buffer{}, &sink)
			assert.Error(t, err)
		})
	}
}

//nolint:paralleltest // mutates the shared logger
func TestSetupClosesReplacedFile(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("open file handles are read from /proc")
	}
	prev := Logger()
	t.Cleanup(func() { SetLogger(prev) })

	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	first := filepath.Join(dir, "first.log")
	second := filepath.Join(dir, "second.log")

	var sink fileSink
	t.Cleanup(func() { _ = sink.swap(nil) })

	cfg := DefaultConfig()
	cfg.File.Enabled = true
	cfg.File.Path = first
	old, err := setup(cfg, io.Discard, &sink)
	require.NoError(t, err)
	old.Info("before reload")
	assert.Equal(t, 1, openHandles(t, first))

	// SIGHUP reloads rebuild the logger every time.
	cfg.File.Path = second
	for range 3 {
		_, err = setup(cfg, io.Discard, &sink)
		require.NoError(t, err)
		Logger().Info("after reload")
	}
	assert.Zero(t, openHandles(t, first))
	assert.Equal(t, 1, openHandles(t, second))

	old.Info("from a stale logger")
	assert.Zero(t, openHandles(t, first), "stale loggers must not reopen the replaced file")
	data, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Contains(t, string(data), "from a stale logger")

	cfg.File.Enabled = false
	_, err = setup(cfg, io.Discard, &sink)
	require.NoError(t, err)
	assert.Zero(t, openHandles(t, second))
}

func TestCloseWithoutFile(t *testing.T) {
	t.Parallel()
	var sink fileSink
	require.NoError(t, sink.swap(nil))
	n, err := sink.Write([]byte("dropped"))
	require.NoError(t, err)
	assert.Equal(t, len("dropped"), n)
}

func openHandles(t *testing.T, path string) int {
	t.Helper()
	entries, err := os.ReadDir("/proc/self/fd")
	require.NoError(t, err)
	n := 0
	for _, e := range entries {
		target, err := os.Readlink(filepath.Join("/proc/self/fd", e.Name()))
		if err == nil && target == path {
			n++
		}
	}
	return n
}

//nolint:paralleltest // mutates the shared logger
func TestDebugGate(t *testing.T) {
	prev := Logger()
	t.Cleanup(func() {
		SetDebugEnabled(false)
		SetLogger(prev)
	})

	var out bytes.Buffer
	l := logrus.New()
	l.SetOutput(&out)
	SetLogger(l)

	Debugf("hidden %d", 1)
	assert.Empty(t, out.String())

	SetDebugEnabled(true)
	assert.True(t, DebugEnabled())
	Debugf("shown %d", 2)
	assert.Contains(t, out.String(), "shown 2")

	SetDebugEnabled(false)
	out.Reset()
	Debugf("hidden again")
	assert.Empty(t, out.String())
}
