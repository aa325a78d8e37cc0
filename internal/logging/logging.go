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

// Package logging holds the logger shared by the bridge packages and builds the
// application logger for the command line tools.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	current      atomic.Pointer[logrus.Logger]
	debugEnabled atomic.Bool
	files        fileSink
)

func init() {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	current.Store(l)
}

// Logger returns the shared logger.
func Logger() *logrus.Logger {
	return current.Load()
}

// SetLogger replaces the shared logger. A nil logger is ignored.
func SetLogger(l *logrus.Logger) {
	if l == nil {
		return
	}
	if debugEnabled.Load() {
		l.SetLevel(logrus.DebugLevel)
	}
	current.Store(l)
}

// SetDebugEnabled toggles debug output.
func SetDebugEnabled(enabled bool) {
	debugEnabled.Store(enabled)
	if enabled {
		Logger().SetLevel(logrus.DebugLevel)
	} else if Logger().IsLevelEnabled(logrus.DebugLevel) {
		Logger().SetLevel(logrus.InfoLevel)
	}
}

// DebugEnabled reports whether debug output is on.
func DebugEnabled() bool {
	return debugEnabled.Load()
}

// Debugf logs at debug level when debug output is enabled.
func Debugf(format string, args ...any) {
	if !debugEnabled.Load() {
		return
	}
	Logger().Debugf(format, args...)
}

// FileConfig configures the rotating log file.
type FileConfig struct {
	Path       string `mapstructure:"path" yaml:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// Config configures the application logger.
type Config struct {
	Level  string     `mapstructure:"level" yaml:"level"`
	Format string     `mapstructure:"format" yaml:"format"`
	File   FileConfig `mapstructure:"file" yaml:"file"`
}

// DefaultConfig logs text at info level to stderr only.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "text",
		File: FileConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Setup builds a logger from cfg and installs it as the shared logger. A
// rotating file opened by an earlier Setup is closed once it is replaced.
func Setup(cfg Config) (*logrus.Logger, error) {
	return setup(cfg, os.Stderr, &files)
}

// Close closes the rotating log file, if any. Later writes go to the console only.
func Close() error {
	return files.swap(nil)
}

func setup(cfg Config, console io.Writer, sink *fileSink) (*logrus.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var formatter logrus.Formatter
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		formatter = &logrus.TextFormatter{FullTimestamp: true}
	case "json":
		formatter = &logrus.JSONFormatter{}
	default:
		return nil, fmt.Errorf("unsupported log format: %s (must be json or text)", cfg.Format)
	}

	var out *lumberjack.Logger
	if cfg.File.Enabled {
		out, err = createFileWriter(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("failed to create file output: %w", err)
		}
	}

	l := logrus.New()
	l.SetOutput(io.MultiWriter(console, sink))
	l.SetLevel(level)
	l.SetFormatter(formatter)

	SetLogger(l)
	if err := sink.swap(out); err != nil {
		l.WithError(err).Warn("closing previous log file")
	}
	return l, nil
}

// fileSink forwards to the active rotating file. Loggers built before a reload
// share it, so they follow the new file instead of reopening the old one.
type fileSink struct {
	out *lumberjack.Logger
	mu  sync.Mutex
}

func (s *fileSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.out == nil {
		return len(p), nil
	}
	return s.out.Write(p)
}

// swap installs out and closes the file it replaces.
func (s *fileSink) swap(out *lumberjack.Logger) error {
	s.mu.Lock()
	prev := s.out
	s.out = out
	s.mu.Unlock()
	if prev == nil || prev == out {
		return nil
	}
	if err := prev.Close(); err != nil {
		return fmt.Errorf("close %s: %w", prev.Filename, err)
	}
	return nil
}

func parseLevel(s string) (logrus.Level, error) {
	if s == "" {
		return logrus.InfoLevel, nil
	}
	level, err := logrus.ParseLevel(strings.ToLower(s))
	if err != nil {
		return logrus.InfoLevel, fmt.Errorf("unknown level %q: %w", s, err)
	}
	return level, nil
}

func createFileWriter(fc FileConfig) (*lumberjack.Logger, error) {
	if fc.Path == "" {
		return nil, fmt.Errorf("file output requires 'path' field")
	}
	return &lumberjack.Logger{
		Filename:   fc.Path,
		MaxSize:    fc.MaxSizeMB,
		MaxBackups: fc.MaxBackups,
		MaxAge:     fc.MaxAgeDays,
		Compress:   fc.Compress,
	}, nil
}
