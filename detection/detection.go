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

// Package detection finds serial adapters that may carry a bridge backhaul.
// Transport-specific detectors register themselves on import.
package detection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	// ErrUnsupportedPlatform is returned by detectors that cannot run here.
	ErrUnsupportedPlatform = errors.New("detection not supported on this platform")
	// ErrNoDevicesFound is returned by DetectAll when every detector came back empty.
	ErrNoDevicesFound = errors.New("no devices found")
)

// Mode selects how intrusive detection may be.
type Mode int

const (
	// Passive only enumerates ports. Nothing is opened.
	Passive Mode = iota
	// Listen opens each candidate briefly and watches for a bridge frame.
	Listen
)

func (m Mode) String() string {
	switch m {
	case Passive:
		return "passive"
	case Listen:
		return "listen"
	default:
		return "unknown"
	}
}

// Options controls detection.
type Options struct {
	Blocklist   []string
	IgnorePaths []string
	// ListenWindow bounds how long Listen mode watches each port.
	ListenWindow time.Duration
	Timeout      time.Duration
	Mode         Mode
	// IncludeNonUSB keeps built-in UARTs that report no USB identity.
	IncludeNonUSB bool
}

// DefaultOptions returns passive detection over USB adapters.
func DefaultOptions() Options {
	return Options{
		Mode:         Passive,
		Blocklist:    DefaultBlocklist(),
		ListenWindow: 1500 * time.Millisecond,
		Timeout:      5 * time.Second,
	}
}

// DeviceInfo describes one candidate port.
type DeviceInfo struct {
	Metadata     map[string]string
	Transport    string
	Path         string
	Name         string
	VIDPID       string
	Manufacturer string
	Product      string
	SerialNumber string
	// Confirmed is set in Listen mode when a valid bridge frame was seen.
	Confirmed bool
}

func (d DeviceInfo) String() string {
	if d.VIDPID == "" {
		return fmt.Sprintf("%s (%s)", d.Path, d.Transport)
	}
	return fmt.Sprintf("%s (%s %s)", d.Path, d.Transport, d.VIDPID)
}

// Detector finds devices for one transport.
type Detector interface {
	Transport() string
	Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error)
}

var (
	registryMu sync.RWMutex
	detectors  = map[string]Detector{}
)

// RegisterDetector makes d available to DetectAll, replacing any detector for
// the same transport.
func RegisterDetector(d Detector) {
	registryMu.Lock()
	defer registryMu.Unlock()
	detectors[d.Transport()] = d
}

// Detectors returns the registered transports in name order.
func Detectors() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(detectors))
	for name := range detectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DetectAll runs every registered detector. Detector errors are returned only
// when no devices were found at all.
func DetectAll(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	if opts == nil {
		o := DefaultOptions()
		opts = &o
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var (
		devices []DeviceInfo
		errs    []error
	)
	for _, name := range Detectors() {
		registryMu.RLock()
		d := detectors[name]
		registryMu.RUnlock()

		found, err := d.Detect(ctx, opts)
		if err != nil {
			if !errors.Is(err, ErrUnsupportedPlatform) {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
			continue
		}
		devices = append(devices, found...)
	}

	if len(devices) == 0 {
		if len(errs) > 0 {
			return nil, errors.Join(errs...)
		}
		return nil, ErrNoDevicesFound
	}
	return devices, nil
}
