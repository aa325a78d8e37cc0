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

package polling

import "time"

// Config holds timing for the poll loop and the link monitor.
type Config struct {
	// PollInterval is how often the bridge loop runs while the link is busy.
	PollInterval time.Duration
	// IdleInterval is the slower interval used once the link has been down for
	// IdleAfter. Zero disables adaptive polling.
	IdleInterval time.Duration
	IdleAfter    time.Duration
	// LinkDownGrace delays OnLinkDown so a link that comes straight back up
	// does not flap. Zero reports the loss immediately.
	LinkDownGrace time.Duration
}

// DefaultConfig returns the defaults used by the CLI.
func DefaultConfig() *Config {
	return &Config{
		PollInterval:  10 * time.Millisecond,
		IdleInterval:  100 * time.Millisecond,
		IdleAfter:     5 * time.Second,
		LinkDownGrace: 0,
	}
}

func (c *Config) pollInterval() time.Duration {
	if c == nil || c.PollInterval <= 0 {
		return DefaultConfig().PollInterval
	}
	return c.PollInterval
}
