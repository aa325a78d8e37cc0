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

// Package transport provides internal transport utilities
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRetriesExhausted is returned when every attempt asked to be retried.
var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryOperation represents a function that can be retried
// Returns: data, shouldRetry, error
// - data: the result if successful
// - shouldRetry: true if the operation should be retried
// - error: any permanent error that should stop retries
type RetryOperation[T any] func() (T, bool, error)

// RetryConfig configures retry behavior
type RetryConfig struct {
	// OnRetry runs before each wait. A non-nil error stops retrying.
	OnRetry     func(attempt int, delay time.Duration) error
	Description string
	// MaxRetries below zero retries until the context ends.
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// ExponentialBackoff returns initial*multiplier^attempt capped at maxDuration.
// Out of range inputs are clamped rather than rejected.
func ExponentialBackoff(attempt int, initial, maxDuration time.Duration, multiplier float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if initial <= 0 {
		return 0
	}
	if multiplier < 1 {
		multiplier = 1
	}
	d := float64(initial)
	for i := 0; i < attempt; i++ {
		d *= multiplier
		if maxDuration > 0 && d >= float64(maxDuration) {
			return maxDuration
		}
	}
	if maxDuration > 0 && d > float64(maxDuration) {
		return maxDuration
	}
	return time.Duration(d)
}

// WithRetry executes an operation with retry logic, waiting between attempts
// with exponential backoff. It stops early when ctx is done.
func WithRetry[T any](ctx context.Context, config RetryConfig, operation RetryOperation[T]) (T, error) {
	var zero T

	for attempt := 0; config.MaxRetries < 0 || attempt <= config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, shouldRetry, err := operation()
		if err != nil {
			return zero, err
		}
		if !shouldRetry {
			return result, nil
		}

		// If we should retry but we're at max attempts, break
		if config.MaxRetries >= 0 && attempt >= config.MaxRetries {
			break
		}

		delay := ExponentialBackoff(attempt, config.InitialBackoff, config.MaxBackoff, config.BackoffMultiplier)
		if config.OnRetry != nil {
			if err := config.OnRetry(attempt+1, delay); err != nil {
				return zero, err
			}
		}
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	return zero, fmt.Errorf("%s: %w", config.Description, ErrRetriesExhausted)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
