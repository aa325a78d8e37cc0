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
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ZaparooProject/go-meshbridge"
)

var (
	// Global flags
	configFile string
	debug      bool
)

// version is set at build time.
var version = "dev"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "meshbridge",
	Short: "Mesh packet backhaul bridge",
	Long: `meshbridge joins mesh radio segments over a point-to-point backhaul.

Packets are framed with a magic header, a length and a Fletcher-16 checksum,
deduplicated against a seen-packet table and re-queued into the local mesh
stack after a short delay.

Commands:
  run      start bridges on the configured serial ports
  sniff    decode frames on a port without bridging
  ports    list serial adapters that could carry a backhaul
  config   show or change the configuration file`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		if debug {
			meshbridge.SetDebugEnabled(true)
			pterm.EnableDebugMessages()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", defaultConfigPath(),
		"config file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sniffCmd)
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(configCmd)

	rootCmd.SetErr(os.Stderr)
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w\n\n%s", err, cmd.UsageString())
	})
}

func defaultConfigPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir + "/meshbridge/config.yaml"
	}
	return "meshbridge.yaml"
}

// fail prints err the way every command reports errors.
func fail(err error) error {
	if err != nil {
		pterm.Error.Println(err)
	}
	return err
}
