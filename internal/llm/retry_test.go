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
	"sync"
	"testing"
	"time"

	"github.com/loqalabs/loqa-analyst/internal/config"
)

// recordingSleeper captures waits instead of sleeping
type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return ctx.Err()
}

type countingObserver struct {
	mu       sync.Mutex
	requests map[string]int
	retries  int
}

func (o *countingObserver) ObserveLLMRequest(provider, outcome string, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.requests == nil {
		o.requests = make(map[string]int)
	}
	o.requests[outcome]++
}

func (o *countingObserver) ObserveRateLimitRetry(provider string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.retries++
}

func TestRetryGenerator_RateLimitThenSuccess(t *testing.T) {
	mock := CreateScriptedGenerator(
		MockResult{Err: NewMockServiceError("sarvam", KindRateLimit)},
		MockResult{Err: NewMockServiceError("sarvam", KindRateLimit)},
		MockResult{Reply: "Intent: bill inquiry"},
	)
	sleeper := &recordingSleeper{}
	observer := &countingObserver{}

	retry := NewRetryGenerator(mock, RetryOptions{
		Provider:    "sarvam",
		MaxAttempts: 4,
		BackoffBase: time.Second,
		BackoffMax:  30 * time.Second,
		Sleep:       sleeper.Sleep,
		Observer:    observer,
	})

	reply, err := retry.Generate(context.Background(), Request{Prompt: "x"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if reply != "Intent: bill inquiry" {
		t.Errorf("Generate() = %q, want third reply", reply)
	}
	if mock.CallCount() != 3 {
		t.Errorf("CallCount() = %d, want 3", mock.CallCount())
	}
	if len(sleeper.waits) != 2 {
		t.Fatalf("expected 2 backoff waits, got %d", len(sleeper.waits))
	}
	if sleeper.waits[0] != time.Second || sleeper.waits[1] != 2*time.Second {
		t.Errorf("waits = %v, want [1s 2s]", sleeper.waits)
	}
	if observer.retries != 2 {
		t.Errorf("observer saw %d retries, want 2", observer.retries)
	}
}

func TestRetryGenerator_ExhaustsAttempts(t *testing.T) {
	mock := CreateErrorGenerator(KindRateLimit)
	sleeper := &recordingSleeper{}

	retry := NewRetryGenerator(mock, RetryOptions{MaxAttempts: 3, BackoffBase: time.Second, Sleep: sleeper.Sleep})

	_, err := retry.Generate(context.Background(), Request{Prompt: "x"})
	if !IsRateLimit(err) {
		t.Fatalf("Generate() error = %v, want rate limit", err)
	}
	if mock.CallCount() != 3 {
		t.Errorf("CallCount() = %d, want 3", mock.CallCount())
	}
	if len(sleeper.waits) != 2 {
		t.Errorf("expected 2 waits between 3 attempts, got %d", len(sleeper.waits))
	}
}

func TestRetryGenerator_OtherErrorsAreNotRetried(t *testing.T) {
	for _, kind := range []ErrorKind{KindAuth, KindServer, KindNetwork, KindModelNotFound} {
		t.Run(string(kind), func(t *testing.T) {
			mock := CreateErrorGenerator(kind)
			sleeper := &recordingSleeper{}
			retry := NewRetryGenerator(mock, RetryOptions{MaxAttempts: 5, Sleep: sleeper.Sleep})

			if _, err := retry.Generate(context.Background(), Request{}); KindOf(err) != kind {
				t.Errorf("error kind = %q, want %q", KindOf(err), kind)
			}
			if mock.CallCount() != 1 || len(sleeper.waits) != 0 {
				t.Errorf("calls = %d, waits = %d, want 1 and 0", mock.CallCount(), len(sleeper.waits))
			}
		})
	}
}

func TestRetryGenerator_CancelledDuringBackoff(t *testing.T) {
	mock := CreateErrorGenerator(KindRateLimit)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	retry := NewRetryGenerator(mock, RetryOptions{MaxAttempts: 5, BackoffBase: time.Hour})
	if _, err := retry.Generate(ctx, Request{}); err != context.Canceled {
		t.Errorf("Generate() error = %v, want context.Canceled", err)
	}
	if mock.CallCount() != 1 {
		t.Errorf("CallCount() = %d, want 1", mock.CallCount())
	}
}

func TestRetryGenerator_Backoff(t *testing.T) {
	retry := NewRetryGenerator(nil, RetryOptions{BackoffBase: time.Second, BackoffMax: 5 * time.Second})
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := retry.Backoff(i + 1); got != w {
			t.Errorf("Backoff(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestFallbackGenerator(t *testing.T) {
	attempts := ParseAttempts("phi3:mini", "phi3:mini@cpu, tinyllama@CPU")
	if len(attempts) != 3 {
		t.Fatalf("ParseAttempts() = %v, want 3 entries", attempts)
	}
	if attempts[2] != (Attempt{Model: "tinyllama", Device: DeviceCPU}) {
		t.Errorf("attempts[2] = %+v", attempts[2])
	}

	t.Run("advances on server errors", func(t *testing.T) {
		mock := &MockGenerator{GenerateFunc: func(ctx context.Context, req Request) (string, error) {
			if req.Model == "tinyllama" {
				return "ok from " + req.Model, nil
			}
			return "", NewMockServiceError("ollama", KindServer)
		}}

		reply, err := NewFallbackGenerator(mock, "ollama", attempts).Generate(context.Background(), Request{})
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if reply != "ok from tinyllama" {
			t.Errorf("Generate() = %q", reply)
		}

		calls := mock.Calls()
		if len(calls) != 3 {
			t.Fatalf("expected 3 calls, got %d", len(calls))
		}
		if calls[0].Device != "" || calls[1].Device != DeviceCPU {
			t.Errorf("devices = %q, %q; want default then cpu", calls[0].Device, calls[1].Device)
		}
	})

	t.Run("stops on rate limit", func(t *testing.T) {
		mock := CreateErrorGenerator(KindRateLimit)
		_, err := NewFallbackGenerator(mock, "ollama", attempts).Generate(context.Background(), Request{})
		if !IsRateLimit(err) {
			t.Errorf("Generate() error = %v, want rate limit", err)
		}
		if mock.CallCount() != 1 {
			t.Errorf("CallCount() = %d, want 1", mock.CallCount())
		}
	})

	t.Run("returns last error when all fail", func(t *testing.T) {
		mock := CreateErrorGenerator(KindModelNotFound)
		_, err := NewFallbackGenerator(mock, "ollama", attempts).Generate(context.Background(), Request{})
		if KindOf(err) != KindModelNotFound {
			t.Errorf("Generate() error = %v", err)
		}
		if mock.CallCount() != 3 {
			t.Errorf("CallCount() = %d, want 3", mock.CallCount())
		}
	})
}

func TestCompose(t *testing.T) {
	mock := CreateScriptedGenerator(
		MockResult{Err: NewMockServiceError("ollama", KindServer)},
		MockResult{Reply: "fine"},
	)
	observer := &countingObserver{}

	generator := Compose(mock, "ollama", config.LLMConfig{
		Model:       "phi3:mini",
		Fallbacks:   "tinyllama@cpu",
		MaxAttempts: 2,
		Timeout:     time.Second,
	}, observer)

	reply, err := generator.Generate(context.Background(), Request{Prompt: "x"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if reply != "fine" {
		t.Errorf("Generate() = %q", reply)
	}
	if observer.requests["server"] != 1 || observer.requests["success"] != 1 {
		t.Errorf("observed outcomes = %v", observer.requests)
	}
}
