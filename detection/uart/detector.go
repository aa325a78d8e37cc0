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

// Package uart detects USB serial adapters. Importing it registers the
// detector with the detection package.
package uart

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/ZaparooProject/go-meshbridge/detection"
	"github.com/ZaparooProject/go-meshbridge/internal/frame"
	"github.com/ZaparooProject/go-meshbridge/internal/logging"
)

// ListenBaud is the line speed used when listening for bridge frames.
const ListenBaud = 115200

type serialPort struct {
	Path         string
	Name         string
	VIDPID       string
	Manufacturer string
	Product      string
	SerialNumber string
	Accessible   bool
}

// replaced in tests
var (
	listPorts = getSerialPorts
	openPort  = func(path string) (serial.Port, error) {
		return serial.Open(path, &serial.Mode{BaudRate: ListenBaud, DataBits: 8})
	}
)

type detector struct{}

// New creates a serial detector.
func New() detection.Detector {
	return &detector{}
}

func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return "uart"
}

// Detect lists serial ports that pass opts. In Listen mode each accessible
// port is opened for opts.ListenWindow and marked confirmed when a frame with
// a valid checksum arrives.
func (*detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	ports, err := listPorts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}

	devices := make([]detection.DeviceInfo, 0, len(ports))
	for _, p := range ports {
		info := detection.DeviceInfo{
			Transport:    "uart",
			Path:         p.Path,
			Name:         p.Name,
			VIDPID:       p.VIDPID,
			Manufacturer: p.Manufacturer,
			Product:      p.Product,
			SerialNumber: p.SerialNumber,
			Metadata:     map[string]string{},
		}
		if !opts.Allows(info) {
			continue
		}
		if !p.Accessible {
			info.Metadata["access"] = "denied"
		} else if opts.Mode == detection.Listen {
			frames, err := listen(ctx, p.Path, opts.ListenWindow)
			if err != nil {
				info.Metadata["error"] = err.Error()
			}
			info.Metadata["frames"] = strconv.Itoa(frames)
			info.Confirmed = frames > 0
		}
		devices = append(devices, info)
	}

	sort.Slice(devices, func(i, j int) bool { return devices[i].Path < devices[j].Path })
	return devices, nil
}

func getSerialPorts(_ context.Context) ([]serialPort, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by Detect
	}
	ports := make([]serialPort, 0, len(details))
	for _, d := range details {
		if d.Name == "" {
			continue
		}
		p := serialPort{
			Path:         d.Name,
			Name:         d.Product,
			SerialNumber: d.SerialNumber,
			Accessible:   accessible(d.Name),
		}
		if d.IsUSB {
			p.VIDPID = detection.ParseVIDPID(d.VID + ":" + d.PID)
			p.Product = d.Product
		}
		ports = append(ports, p)
	}
	return ports, nil
}

// listen counts valid frames seen on path within window.
func listen(ctx context.Context, path string, window time.Duration) (int, error) {
	port, err := openPort(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = port.Close() }()
	if err := port.SetReadTimeout(50 * time.Millisecond); err != nil {
		logging.Debugf("detection: %s read timeout: %v", path, err)
	}

	parser := frame.NewParser()
	deadline := time.Now().Add(window)
	buf := make([]byte, 256)
	frames := 0
	for time.Now().Before(deadline) && ctx.Err() == nil {
		n, err := port.Read(buf)
		for _, b := range buf[:n] {
			if r := parser.Feed(b); r.Complete && r.OK {
				frames++
			}
		}
		if err != nil {
			return frames, fmt.Errorf("read %s: %w", path, err)
		}
	}
	return frames, nil
}
