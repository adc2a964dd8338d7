/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package llm

import (
	"context"
	"time"

	"github.com/loqalabs/loqa-analyst/internal/logging"
	"go.uber.org/zap"
)

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// ContextSleep is the production SleepFunc
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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

// RetryOptions configures RetryGenerator
type RetryOptions struct {
	Provider    string
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	Timeout     time.Duration // Per attempt; zero means no extra deadline
	Sleep       SleepFunc
	Observer    Observer
}

// RetryGenerator retries rate-limited calls with exponential backoff.
// Every other failure is returned immediately.
type RetryGenerator struct {
	next Generator
	opts RetryOptions
}

// NewRetryGenerator wraps next with the rate-limit retry policy
func NewRetryGenerator(next Generator, opts RetryOptions) *RetryGenerator {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.Sleep == nil {
		opts.Sleep = ContextSleep
	}
	return &RetryGenerator{next: next, opts: opts}
}

// Generate calls the wrapped generator until it succeeds, fails with a
// non rate-limit error, or runs out of attempts.
func (r *RetryGenerator) Generate(ctx context.Context, req Request) (string, error) {
	for attempt := 1; ; attempt++ {
		reply, err := r.attempt(ctx, req)
		if err == nil {
			return reply, nil
		}
		if !IsRateLimit(err) || attempt >= r.opts.MaxAttempts {
			return "", err
		}

		wait := r.Backoff(attempt)
		logging.LogWarn("⏳ Rate limited, backing off",
			zap.String("component", "llm"),
			zap.String("provider", r.opts.Provider),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.opts.MaxAttempts),
			zap.Duration("wait", wait),
		)
		if r.opts.Observer != nil {
			r.opts.Observer.ObserveRateLimitRetry(r.opts.Provider)
		}
		if err := r.opts.Sleep(ctx, wait); err != nil {
			return "", err
		}
	}
}

func (r *RetryGenerator) attempt(ctx context.Context, req Request) (string, error) {
	if r.opts.Timeout <= 0 {
		return r.next.Generate(ctx, req)
	}
	callCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()
	return r.next.Generate(callCtx, req)
}

// Backoff returns the wait after the given failed attempt (1-based)
func (r *RetryGenerator) Backoff(attempt int) time.Duration {
	wait := r.opts.BackoffBase
	for i := 1; i < attempt; i++ {
		wait *= 2
		if r.opts.BackoffMax > 0 && wait >= r.opts.BackoffMax {
			return r.opts.BackoffMax
		}
	}
	if r.opts.BackoffMax > 0 && wait > r.opts.BackoffMax {
		return r.opts.BackoffMax
	}
	return wait
}
