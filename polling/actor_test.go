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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-meshbridge/link"
)

type countingLooper struct {
	calls atomic.Int64
}

func (c *countingLooper) Loop() { c.calls.Add(1) }

func TestActor_RunsLoop(t *testing.T) {
	t.Parallel()
	target := &countingLooper{}
	actor := NewActor(target, nil, &Config{PollInterval: time.Millisecond})

	require.NoError(t, actor.Start(context.Background()))
	require.Eventually(t, func() bool { return target.calls.Load() >= 3 }, time.Second, time.Millisecond)
	require.NoError(t, actor.Stop(context.Background()))

	metrics := actor.GetMetrics()
	assert.GreaterOrEqual(t, metrics.PollCycles, int64(3))
	assert.Equal(t, time.Millisecond, actor.GetCurrentPollInterval())

	calls := target.calls.Load()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, calls, target.calls.Load(), "no passes after Stop")
}

func TestActor_StartErrors(t *testing.T) {
	t.Parallel()
	actor := NewActor(&countingLooper{}, nil, nil)

	require.NoError(t, actor.Start(context.Background()))
	require.ErrorIs(t, actor.Start(context.Background()), ErrActorRunning)
	require.NoError(t, actor.Stop(context.Background()))
	require.ErrorIs(t, actor.Start(context.Background()), ErrActorStopped)
}

func TestActor_StopBeforeStart(t *testing.T) {
	t.Parallel()
	actor := NewActor(&countingLooper{}, nil, nil)
	require.NoError(t, actor.Stop(context.Background()))
	require.NoError(t, actor.Stop(context.Background()))
}

func TestActor_StopsWithContext(t *testing.T) {
	t.Parallel()
	actor := NewActor(&countingLooper{}, nil, &Config{PollInterval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, actor.Start(ctx))
	cancel()

	select {
	case <-actor.done:
	case <-time.After(time.Second):
		t.Fatal("poll loop did not exit on cancel")
	}
}

func TestActor_PauseResume(t *testing.T) {
	t.Parallel()

	t.Run("InitiallyNotPaused", func(t *testing.T) {
		t.Parallel()
		actor := NewActor(&countingLooper{}, nil, nil)
		assert.False(t, actor.IsPaused())
	})

	t.Run("PauseOperation", func(t *testing.T) {
		t.Parallel()
		actor := NewActor(&countingLooper{}, nil, nil)
		actor.Pause()
		assert.True(t, actor.IsPaused())

		// Pausing again should be idempotent
		actor.Pause()
		assert.True(t, actor.IsPaused())
	})

	t.Run("ResumeOperation", func(t *testing.T) {
		t.Parallel()
		actor := NewActor(&countingLooper{}, nil, nil)
		actor.Pause()
		actor.Resume()
		assert.False(t, actor.IsPaused())

		actor.Resume()
		assert.False(t, actor.IsPaused())
	})

	t.Run("PausedActorSkipsLoop", func(t *testing.T) {
		t.Parallel()
		target := &countingLooper{}
		actor := NewActor(target, nil, &Config{PollInterval: time.Millisecond})
		actor.Pause()
		require.NoError(t, actor.Start(context.Background()))
		t.Cleanup(func() { _ = actor.Stop(context.Background()) })

		require.Eventually(t, func() bool { return actor.GetMetrics().SkippedCycles >= 2 },
			time.Second, time.Millisecond)
		assert.Zero(t, target.calls.Load())

		actor.Resume()
		require.Eventually(t, func() bool { return target.calls.Load() > 0 }, time.Second, time.Millisecond)
	})
}

func TestActor_ConcurrentPauseResume(t *testing.T) {
	t.Parallel()
	actor := NewActor(&countingLooper{}, nil, &Config{PollInterval: time.Millisecond})
	require.NoError(t, actor.Start(context.Background()))
	t.Cleanup(func() { _ = actor.Stop(context.Background()) })

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				actor.Pause()
				time.Sleep(time.Microsecond)
				actor.Resume()
			}
		}()
	}
	wg.Wait()

	assert.False(t, actor.IsPaused())
}

func TestActor_AdaptiveInterval(t *testing.T) {
	t.Parallel()
	src := &fakeLink{}
	config := &Config{
		PollInterval: time.Millisecond,
		IdleInterval: 5 * time.Millisecond,
		IdleAfter:    0,
	}
	monitor := NewMonitor(src, config)
	actor := NewActor(&countingLooper{}, monitor, config)

	now := time.Now()
	actor.pollOnce()
	assert.Equal(t, 5*time.Millisecond, actor.GetCurrentPollInterval(), "down link slows the loop")

	src.set(link.StateReady)
	actor.pollOnce()
	assert.Equal(t, time.Millisecond, actor.GetCurrentPollInterval())
	assert.True(t, monitor.IsUp())

	config.IdleAfter = time.Hour
	src.set(link.StateIdle)
	monitor.Check()
	actor.adjustPollInterval(now.Add(time.Minute))
	assert.Equal(t, time.Millisecond, actor.GetCurrentPollInterval(), "still inside IdleAfter")
}
