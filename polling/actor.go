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
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Looper is one non-blocking bridge service pass. *meshbridge.Bridge satisfies it.
type Looper interface {
	Loop()
}

// ErrActorRunning is returned by Start on an actor that is already running.
var ErrActorRunning = errors.New("actor already running")

// ErrActorStopped is returned by Start after Stop.
var ErrActorStopped = errors.New("actor stopped")

// ActorMetrics tracks operational metrics for an Actor.
type ActorMetrics struct {
	PollCycles      int64         // Total number of loop passes
	SkippedCycles   int64         // Ticks skipped while paused
	LastPollLatency time.Duration // Duration of the last loop pass
}

// Actor runs a Looper on a ticker goroutine and feeds a Monitor after each pass.
type Actor struct {
	target   Looper
	monitor  *Monitor
	config   *Config
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	running  atomic.Bool
	stopped  atomic.Bool
	isPaused atomic.Bool
	// Atomic counters for metrics
	pollCycles      int64
	skippedCycles   int64
	lastPollLatency int64 // in nanoseconds
	// Adaptive polling state
	currentInterval int64 // in nanoseconds
	lastActive      int64 // Timestamp the link was last seen up
}

// NewActor creates an actor for target. monitor may be nil.
func NewActor(target Looper, monitor *Monitor, config *Config) *Actor {
	if config == nil {
		config = DefaultConfig()
	}
	return &Actor{
		target:          target,
		monitor:         monitor,
		config:          config,
		stopChan:        make(chan struct{}),
		done:            make(chan struct{}),
		currentInterval: config.pollInterval().Nanoseconds(),
		lastActive:      time.Now().UnixNano(),
	}
}

// Start launches the poll goroutine. It returns once the goroutine is running;
// the loop ends when ctx is done or Stop is called.
func (a *Actor) Start(ctx context.Context) error {
	if a.stopped.Load() {
		return ErrActorStopped
	}
	if !a.running.CompareAndSwap(false, true) {
		return ErrActorRunning
	}
	go a.pollLoop(ctx)
	return nil
}

func (a *Actor) pollLoop(ctx context.Context) {
	defer close(a.done)

	ticker := time.NewTicker(a.config.pollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stopChan:
			return
		case <-ticker.C:
			a.pollOnce()
			ticker.Reset(time.Duration(atomic.LoadInt64(&a.currentInterval)))
		}
	}
}

func (a *Actor) pollOnce() {
	if a.isPaused.Load() {
		atomic.AddInt64(&a.skippedCycles, 1)
		return
	}

	start := time.Now()
	a.target.Loop()
	if a.monitor != nil {
		a.monitor.Check()
	}
	atomic.AddInt64(&a.pollCycles, 1)
	atomic.StoreInt64(&a.lastPollLatency, time.Since(start).Nanoseconds())

	a.adjustPollInterval(start)
}

// adjustPollInterval slows the loop down once the link has been down for
// IdleAfter. Without a monitor the interval never changes.
func (a *Actor) adjustPollInterval(now time.Time) {
	base := a.config.pollInterval()
	if a.monitor == nil || a.config.IdleInterval <= base {
		atomic.StoreInt64(&a.currentInterval, base.Nanoseconds())
		return
	}
	if a.monitor.IsUp() {
		atomic.StoreInt64(&a.lastActive, now.UnixNano())
		atomic.StoreInt64(&a.currentInterval, base.Nanoseconds())
		return
	}
	idleFor := time.Duration(now.UnixNano() - atomic.LoadInt64(&a.lastActive))
	if idleFor >= a.config.IdleAfter {
		atomic.StoreInt64(&a.currentInterval, a.config.IdleInterval.Nanoseconds())
	}
}

// Stop ends the poll goroutine and waits for it, or for ctx.
func (a *Actor) Stop(ctx context.Context) error {
	a.stopped.Store(true)
	a.stopOnce.Do(func() { close(a.stopChan) })
	if !a.running.Load() {
		return nil
	}
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pause suspends loop passes without stopping the goroutine.
func (a *Actor) Pause() {
	a.isPaused.Store(true)
}

// Resume continues after Pause.
func (a *Actor) Resume() {
	a.isPaused.Store(false)
}

// IsPaused reports whether the actor is paused.
func (a *Actor) IsPaused() bool {
	return a.isPaused.Load()
}

// GetMetrics returns current operational metrics
func (a *Actor) GetMetrics() ActorMetrics {
	return ActorMetrics{
		PollCycles:      atomic.LoadInt64(&a.pollCycles),
		SkippedCycles:   atomic.LoadInt64(&a.skippedCycles),
		LastPollLatency: time.Duration(atomic.LoadInt64(&a.lastPollLatency)),
	}
}

// GetCurrentPollInterval returns the current adaptive polling interval
func (a *Actor) GetCurrentPollInterval() time.Duration {
	return time.Duration(atomic.LoadInt64(&a.currentInterval))
}
