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
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ZaparooProject/go-meshbridge/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change the configuration file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long:  "Print the configuration after defaults and MESHBRIDGE_* environment overrides are applied.",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		prefs, err := config.Load(configFile)
		if err != nil {
			return fail(err)
		}
		out, err := yaml.Marshal(prefs)
		if err != nil {
			return fail(fmt.Errorf("failed to marshal config: %w", err))
		}
		pterm.Println(string(out))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if _, err := os.Stat(configFile); err == nil && !configForce {
			return fail(fmt.Errorf("%s already exists, use --force to overwrite", configFile))
		} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fail(err)
		}
		if err := config.Save(configFile, config.Default()); err != nil {
			return fail(err)
		}
		pterm.Success.Printfln("wrote %s", configFile)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one configuration value",
	Long: `Change one value in the configuration file. Keys use dotted form, for
example bridge.role or serial.baud. A running bridge picks up the change on
SIGHUP.`,
	Args: cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		cfgStore := config.NewStore(configFile)
		err := cfgStore.Update(func(p *config.Prefs) error {
			return config.Set(p, args[0], args[1])
		})
		if err != nil {
			return fail(err)
		}
		pterm.Success.Printfln("%s = %s", args[0], args[1])
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List settable configuration keys",
	Args:  cobra.NoArgs,
	Run: func(*cobra.Command, []string) {
		for _, k := range config.Keys() {
			pterm.Println(k)
		}
	},
}

func init() {
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "overwrite an existing file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configKeysCmd)
}
