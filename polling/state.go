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

import (
	"time"

	"github.com/ZaparooProject/go-meshbridge/link"
)

// LinkPhase is the monitor's view of the link, which lags the manager's state
// by the down grace period.
type LinkPhase int

const (
	PhaseDown LinkPhase = iota
	PhaseUp
	// PhaseLosing means the link dropped but OnLinkDown has not fired yet.
	PhaseLosing
)

func (p LinkPhase) String() string {
	switch p {
	case PhaseDown:
		return "down"
	case PhaseUp:
		return "up"
	case PhaseLosing:
		return "losing"
	default:
		return "unknown"
	}
}

// LinkStatus tracks the link as reported to callbacks.
type LinkStatus struct {
	Since     time.Time
	DownTimer *time.Timer
	State     link.State
	Phase     LinkPhase
	Peer      link.Address
	// generation invalidates a down timer that fired after the link recovered.
	generation uint64
}

// safeTimerStop stops a timer and drains its channel if it already fired.
func safeTimerStop(timer *time.Timer) {
	if timer != nil {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}
}

// TransitionToUp marks the link usable with peer.
func (ls *LinkStatus) TransitionToUp(peer link.Address) {
	ls.generation++
	safeTimerStop(ls.DownTimer)
	ls.DownTimer = nil
	ls.Phase = PhaseUp
	ls.Peer = peer
	ls.Since = time.Now()
}

// TransitionToLosing starts the grace timer. callback receives the generation
// it was armed for.
func (ls *LinkStatus) TransitionToLosing(grace time.Duration, callback func(gen uint64)) {
	ls.generation++
	gen := ls.generation
	safeTimerStop(ls.DownTimer)
	ls.Phase = PhaseLosing
	ls.DownTimer = time.AfterFunc(grace, func() { callback(gen) })
}

// TransitionToDown resets to the down phase.
func (ls *LinkStatus) TransitionToDown() {
	ls.generation++
	safeTimerStop(ls.DownTimer)
	ls.DownTimer = nil
	ls.Phase = PhaseDown
	ls.Peer = link.Address{}
	ls.Since = time.Now()
}

// IsUp reports whether callbacks consider the link up. A losing link still
// counts as up until the grace period ends.
func (ls *LinkStatus) IsUp() bool {
	return ls.Phase == PhaseUp || ls.Phase == PhaseLosing
}
