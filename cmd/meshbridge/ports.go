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
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ZaparooProject/go-meshbridge/detection"
)

var (
	portsListen        bool
	portsIncludeNonUSB bool
	portsBlock         []string
	portsIgnore        []string
	portsWindow        time.Duration
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial adapters that could carry a backhaul",
	Long: `Enumerate serial ports. With --listen each port is opened briefly and
watched for valid bridge frames; ports that carried one are marked confirmed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return fail(listPorts(cmd.Context()))
	},
}

func init() {
	portsCmd.Flags().BoolVar(&portsListen, "listen", false, "open each port and look for bridge frames")
	portsCmd.Flags().BoolVar(&portsIncludeNonUSB, "include-non-usb", false, "also list built-in UARTs")
	portsCmd.Flags().StringSliceVar(&portsBlock, "block", nil, "additional VID:PID to skip (repeatable)")
	portsCmd.Flags().StringSliceVar(&portsIgnore, "ignore", nil, "port path to skip (repeatable)")
	portsCmd.Flags().DurationVar(&portsWindow, "window", 0, "how long --listen watches each port")
}

func detectionOptions() (detection.Options, error) {
	opts := detection.DefaultOptions()
	opts.IncludeNonUSB = portsIncludeNonUSB
	opts.IgnorePaths = portsIgnore
	if portsListen {
		opts.Mode = detection.Listen
	}
	if portsWindow > 0 {
		opts.ListenWindow = portsWindow
	}
	for _, b := range portsBlock {
		vidpid := detection.ParseVIDPID(b)
		if vidpid == "" {
			return opts, fmt.Errorf("invalid VID:PID %q", b)
		}
		opts.Blocklist = append(opts.Blocklist, vidpid)
	}
	return opts, nil
}

func listPorts(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	opts, err := detectionOptions()
	if err != nil {
		return err
	}
	if opts.Mode == detection.Listen {
		pterm.Info.Printfln("listening on each port for %s", opts.ListenWindow)
	}

	devices, err := detection.DetectAll(ctx, &opts)
	if errors.Is(err, detection.ErrNoDevicesFound) {
		pterm.Warning.Println("no serial adapters found")
		return nil
	}
	if err != nil {
		return err
	}
	return pterm.DefaultTable.WithHasHeader().WithData(portsTable(devices, opts.Mode)).Render()
}

func portsTable(devices []detection.DeviceInfo, mode detection.Mode) pterm.TableData {
	data := pterm.TableData{{"Port", "VID:PID", "Product", "Serial", "Status"}}
	for _, d := range devices {
		data = append(data, []string{
			d.Path,
			orDash(d.VIDPID),
			orDash(strings.TrimSpace(d.Manufacturer + " " + d.Product)),
			orDash(d.SerialNumber),
			deviceStatus(d, mode),
		})
	}
	return data
}

func deviceStatus(d detection.DeviceInfo, mode detection.Mode) string {
	if d.Metadata["access"] == "denied" {
		return "no access"
	}
	if mode != detection.Listen {
		return "-"
	}
	if d.Confirmed {
		return fmt.Sprintf("confirmed (%s frames)", d.Metadata["frames"])
	}
	return "silent"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
