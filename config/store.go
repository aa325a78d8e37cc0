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

package config

import (
	"fmt"
	"sync"

	"github.com/ZaparooProject/go-meshbridge"
)

// Store is a path-backed preference store. It implements
// meshbridge.ConfigProvider, re-reading the file on every call so that
// Reconfigure picks up edits.
type Store struct {
	last *Prefs
	path string
	mu   sync.Mutex
}

// NewStore returns a store for the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Load reads the file.
func (s *Store) Load() (*Prefs, error) {
	prefs, err := Load(s.path)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.last = prefs
	s.mu.Unlock()
	return prefs, nil
}

// Last returns the preferences from the most recent successful Load, or the
// defaults if nothing was loaded yet.
func (s *Store) Last() *Prefs {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Default()
	}
	cp := *s.last
	return &cp
}

// Save validates prefs and writes them.
func (s *Store) Save(prefs *Prefs) error {
	prefs.Normalize()
	if err := prefs.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if err := Save(s.path, prefs); err != nil {
		return err
	}
	s.mu.Lock()
	s.last = prefs
	s.mu.Unlock()
	return nil
}

// Update loads the file, applies fn and saves the result.
func (s *Store) Update(fn func(*Prefs) error) error {
	prefs, err := s.Load()
	if err != nil {
		return err
	}
	if err := fn(prefs); err != nil {
		return err
	}
	return s.Save(prefs)
}

// BridgeConfig implements meshbridge.ConfigProvider.
func (s *Store) BridgeConfig() (meshbridge.Config, error) {
	prefs, err := s.Load()
	if err != nil {
		return meshbridge.Config{}, err
	}
	return prefs.ToBridgeConfig()
}
