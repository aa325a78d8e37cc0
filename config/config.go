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

// Package config handles bridge preferences: loading with viper, saving as YAML
// and conversion into the bridge configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ZaparooProject/go-meshbridge"
	"github.com/ZaparooProject/go-meshbridge/internal/logging"
	"github.com/ZaparooProject/go-meshbridge/link"
)

// EnvPrefix prefixes environment overrides, e.g. MESHBRIDGE_BRIDGE_ROLE.
const EnvPrefix = "MESHBRIDGE"

// Defaults that are not owned by the link package.
const (
	DefaultBaud         = 115200
	DefaultPollInterval = 10 * time.Millisecond
	DefaultMetricsPath  = "/metrics"
)

// ErrUnknownKey is returned by Set for keys that do not exist.
var ErrUnknownKey = errors.New("unknown configuration key")

// BridgePrefs are the persisted bridge settings.
type BridgePrefs struct {
	Role           string        `mapstructure:"role" yaml:"role"`
	Name           string        `mapstructure:"name" yaml:"name"`
	Peer           string        `mapstructure:"peer" yaml:"peer"`
	ServiceUUID    string        `mapstructure:"service_uuid" yaml:"service_uuid"`
	RXCharUUID     string        `mapstructure:"rx_char_uuid" yaml:"rx_char_uuid"`
	TXCharUUID     string        `mapstructure:"tx_char_uuid" yaml:"tx_char_uuid"`
	InboundDelay   time.Duration `mapstructure:"inbound_delay" yaml:"inbound_delay"`
	TxPower        int           `mapstructure:"tx_power" yaml:"tx_power"`
	AdvMinInterval uint16        `mapstructure:"adv_min_interval" yaml:"adv_min_interval"`
	AdvMaxInterval uint16        `mapstructure:"adv_max_interval" yaml:"adv_max_interval"`
	ScanInterval   uint16        `mapstructure:"scan_interval" yaml:"scan_interval"`
	ScanWindow     uint16        `mapstructure:"scan_window" yaml:"scan_window"`
	Enabled        bool          `mapstructure:"enabled" yaml:"enabled"`
}

// SerialPrefs configures wired backhauls.
type SerialPrefs struct {
	Ports []string `mapstructure:"ports" yaml:"ports"`
	Baud  int      `mapstructure:"baud" yaml:"baud"`
}

// MetricsPrefs configures the Prometheus endpoint.
type MetricsPrefs struct {
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
}

// IndicatorPrefs configures the link status LED.
type IndicatorPrefs struct {
	Pin       string `mapstructure:"pin" yaml:"pin"`
	ActiveLow bool   `mapstructure:"active_low" yaml:"active_low"`
}

// Prefs is the complete configuration file.
type Prefs struct {
	Log          logging.Config `mapstructure:"log" yaml:"log"`
	Bridge       BridgePrefs    `mapstructure:"bridge" yaml:"bridge"`
	Serial       SerialPrefs    `mapstructure:"serial" yaml:"serial"`
	Metrics      MetricsPrefs   `mapstructure:"metrics" yaml:"metrics"`
	Indicator    IndicatorPrefs `mapstructure:"indicator" yaml:"indicator"`
	PollInterval time.Duration  `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// Default returns the preferences a fresh install starts with.
func Default() *Prefs {
	return &Prefs{
		Log: logging.DefaultConfig(),
		Bridge: BridgePrefs{
			Enabled:        true,
			Role:           link.RoleResponder.String(),
			Name:           link.DefaultName,
			ServiceUUID:    link.DefaultServiceUUID,
			RXCharUUID:     link.DefaultRXCharUUID,
			TXCharUUID:     link.DefaultTXCharUUID,
			TxPower:        link.DefaultTxPower,
			AdvMinInterval: link.DefaultAdvMinInterval,
			AdvMaxInterval: link.DefaultAdvMaxInterval,
			ScanInterval:   link.DefaultScanInterval,
			ScanWindow:     link.DefaultScanWindow,
			InboundDelay:   meshbridge.DefaultInboundDelay,
		},
		Serial: SerialPrefs{
			Ports: []string{},
			Baud:  DefaultBaud,
		},
		Metrics: MetricsPrefs{
			Listen: ":9464",
			Path:   DefaultMetricsPath,
		},
		PollInterval: DefaultPollInterval,
	}
}

// Load reads preferences from path. A missing file yields the defaults.
// Environment variables with the MESHBRIDGE_ prefix override file values.
func Load(path string) (*Prefs, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if _, err := os.Stat(path); err == nil {
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	prefs := &Prefs{}
	if err := v.Unmarshal(prefs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	prefs.Normalize()
	if err := prefs.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return prefs, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// setDefaults registers every key so environment overrides apply to all of them.
func setDefaults(v *viper.Viper) {
	def := Default()

	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("log.file.enabled", def.Log.File.Enabled)
	v.SetDefault("log.file.path", def.Log.File.Path)
	v.SetDefault("log.file.max_size_mb", def.Log.File.MaxSizeMB)
	v.SetDefault("log.file.max_backups", def.Log.File.MaxBackups)
	v.SetDefault("log.file.max_age_days", def.Log.File.MaxAgeDays)
	v.SetDefault("log.file.compress", def.Log.File.Compress)

	v.SetDefault("bridge.enabled", def.Bridge.Enabled)
	v.SetDefault("bridge.role", def.Bridge.Role)
	v.SetDefault("bridge.name", def.Bridge.Name)
	v.SetDefault("bridge.peer", def.Bridge.Peer)
	v.SetDefault("bridge.service_uuid", def.Bridge.ServiceUUID)
	v.SetDefault("bridge.rx_char_uuid", def.Bridge.RXCharUUID)
	v.SetDefault("bridge.tx_char_uuid", def.Bridge.TXCharUUID)
	v.SetDefault("bridge.tx_power", def.Bridge.TxPower)
	v.SetDefault("bridge.adv_min_interval", def.Bridge.AdvMinInterval)
	v.SetDefault("bridge.adv_max_interval", def.Bridge.AdvMaxInterval)
	v.SetDefault("bridge.scan_interval", def.Bridge.ScanInterval)
	v.SetDefault("bridge.scan_window", def.Bridge.ScanWindow)
	v.SetDefault("bridge.inbound_delay", def.Bridge.InboundDelay)

	v.SetDefault("serial.ports", def.Serial.Ports)
	v.SetDefault("serial.baud", def.Serial.Baud)

	v.SetDefault("metrics.enabled", def.Metrics.Enabled)
	v.SetDefault("metrics.listen", def.Metrics.Listen)
	v.SetDefault("metrics.path", def.Metrics.Path)

	v.SetDefault("indicator.pin", def.Indicator.Pin)
	v.SetDefault("indicator.active_low", def.Indicator.ActiveLow)

	v.SetDefault("poll_interval", def.PollInterval)
}

// Save writes prefs to path as YAML, creating parent directories.
func Save(path string, prefs *Prefs) error {
	out, err := yaml.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace config file: %w", err)
	}
	return nil
}

// Normalize fills unset values with defaults and clamps ranges the firmware
// also clamps.
func (p *Prefs) Normalize() {
	def := Default()
	b := &p.Bridge

	b.Role = strings.ToLower(strings.TrimSpace(b.Role))
	if b.Role == "" {
		b.Role = def.Bridge.Role
	}
	if b.Name == "" {
		b.Name = def.Bridge.Name
	}
	if b.ServiceUUID == "" {
		b.ServiceUUID = def.Bridge.ServiceUUID
	}
	if b.RXCharUUID == "" {
		b.RXCharUUID = def.Bridge.RXCharUUID
	}
	if b.TXCharUUID == "" {
		b.TXCharUUID = def.Bridge.TXCharUUID
	}
	b.TxPower = link.ClampTxPower(b.TxPower)
	if b.AdvMinInterval == 0 {
		b.AdvMinInterval = def.Bridge.AdvMinInterval
	}
	if b.AdvMaxInterval == 0 {
		b.AdvMaxInterval = def.Bridge.AdvMaxInterval
	}
	if b.AdvMaxInterval < b.AdvMinInterval {
		b.AdvMaxInterval = b.AdvMinInterval
	}
	if b.ScanInterval == 0 {
		b.ScanInterval = def.Bridge.ScanInterval
	}
	if b.ScanWindow == 0 {
		b.ScanWindow = def.Bridge.ScanWindow
	}
	if b.ScanWindow > b.ScanInterval {
		b.ScanWindow = b.ScanInterval
	}
	if b.InboundDelay < 0 {
		b.InboundDelay = def.Bridge.InboundDelay
	}

	if p.Serial.Ports == nil {
		p.Serial.Ports = []string{}
	}
	if p.Serial.Baud <= 0 {
		p.Serial.Baud = def.Serial.Baud
	}
	if p.Metrics.Path == "" {
		p.Metrics.Path = def.Metrics.Path
	}
	if p.PollInterval <= 0 {
		p.PollInterval = def.PollInterval
	}
	if p.Log.Level == "" {
		p.Log.Level = def.Log.Level
	}
	if p.Log.Format == "" {
		p.Log.Format = def.Log.Format
	}
}

// Validate reports every value that cannot be used.
func (p *Prefs) Validate() error {
	var errs []error
	if _, err := link.ParseRole(p.Bridge.Role); err != nil {
		errs = append(errs, fmt.Errorf("bridge.role: %w", err))
	}
	if _, err := link.ParseAddress(p.Bridge.Peer); err != nil {
		errs = append(errs, fmt.Errorf("bridge.peer: %w", err))
	}
	if !slices.Contains([]string{"trace", "debug", "info", "warn", "warning", "error"},
		strings.ToLower(p.Log.Level)) {
		errs = append(errs, fmt.Errorf("log.level: invalid level %q", p.Log.Level))
	}
	if f := strings.ToLower(p.Log.Format); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("log.format: %q must be json or text", p.Log.Format))
	}
	if p.Log.File.Enabled && p.Log.File.Path == "" {
		errs = append(errs, errors.New("log.file.path is required when log.file.enabled=true"))
	}
	if p.Metrics.Enabled && p.Metrics.Listen == "" {
		errs = append(errs, errors.New("metrics.listen is required when metrics.enabled=true"))
	}
	return errors.Join(errs...)
}

// LinkSettings converts the bridge preferences into link settings.
func (p *Prefs) LinkSettings() (link.Settings, error) {
	role, err := link.ParseRole(p.Bridge.Role)
	if err != nil {
		return link.Settings{}, err
	}
	peer, err := link.ParseAddress(p.Bridge.Peer)
	if err != nil {
		return link.Settings{}, err
	}
	s := link.Settings{
		Name: p.Bridge.Name,
		Role: role,
		Peer: peer,
		Service: link.ServiceIdentity{
			Service: p.Bridge.ServiceUUID,
			RX:      p.Bridge.RXCharUUID,
			TX:      p.Bridge.TXCharUUID,
		},
		TxPower:        p.Bridge.TxPower,
		AdvMinInterval: p.Bridge.AdvMinInterval,
		AdvMaxInterval: p.Bridge.AdvMaxInterval,
		ScanInterval:   p.Bridge.ScanInterval,
		ScanWindow:     p.Bridge.ScanWindow,
	}
	return s.Normalize(), nil
}

// ToBridgeConfig converts the preferences into the bridge configuration.
func (p *Prefs) ToBridgeConfig() (meshbridge.Config, error) {
	settings, err := p.LinkSettings()
	if err != nil {
		return meshbridge.Config{}, err
	}
	return meshbridge.Config{
		Enabled:      p.Bridge.Enabled,
		InboundDelay: p.Bridge.InboundDelay,
		Link:         settings,
	}, nil
}

// Keys returns every settable key in dotted form.
func Keys() []string {
	v := newViper()
	keys := v.AllKeys()
	slices.Sort(keys)
	return keys
}

// Set assigns value to the dotted key, converting it to the field's type. The
// result is normalised and validated before p is modified.
func Set(p *Prefs, key, value string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	if !slices.Contains(Keys(), key) {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	raw, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	var current map[string]any
	if err := yaml.Unmarshal(raw, &current); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}

	v := viper.New()
	if err := v.MergeConfigMap(current); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	v.Set(key, value)

	updated := &Prefs{}
	if err := v.Unmarshal(updated); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	updated.Normalize()
	if err := updated.Validate(); err != nil {
		return err
	}
	*p = *updated
	return nil
}
