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
	"fmt"
	"net/http"
	"time"

	"github.com/loqalabs/loqa-analyst/internal/config"
	"github.com/loqalabs/loqa-analyst/internal/logging"
	"go.uber.org/zap"
)

// Observer receives per-call measurements. internal/metrics implements it.
type Observer interface {
	ObserveLLMRequest(provider, outcome string, elapsed time.Duration)
	ObserveRateLimitRetry(provider string)
}

// instrumentedGenerator logs and measures every backend call
type instrumentedGenerator struct {
	next     Generator
	provider string
	observer Observer
}

func (g *instrumentedGenerator) Generate(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	reply, err := g.next.Generate(ctx, req)
	elapsed := time.Since(start)

	outcome := "success"
	if err != nil {
		outcome = string(KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}

	logging.LogLLMCall(g.provider, req.Model, outcome,
		zap.String("device", req.Device),
		zap.Int("max_tokens", req.MaxTokens),
		zap.Duration("elapsed", elapsed),
	)
	if g.observer != nil {
		g.observer.ObserveLLMRequest(g.provider, outcome, elapsed)
	}
	return reply, err
}

// NewBackend builds the raw client for the configured provider. Callers may
// check it for Pinger before wrapping it with Compose.
func NewBackend(cfg config.LLMConfig) (Generator, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		return NewOllamaClient(cfg.OllamaURL, cfg.Model, &http.Client{Timeout: cfg.Timeout})
	case config.ProviderSarvam:
		return NewSarvamClient(cfg.SarvamURL, cfg.APIKey, cfg.Model, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
}

// NewGenerator builds the configured backend wrapped, outermost first, in
// rate-limit retry, the model fallback chain, and instrumentation.
func NewGenerator(cfg config.LLMConfig, observer Observer) (Generator, error) {
	client, err := NewBackend(cfg)
	if err != nil {
		return nil, err
	}
	return Compose(client, cfg.Provider, cfg, observer), nil
}

// Compose wraps an existing backend with the standard call policy
func Compose(client Generator, provider string, cfg config.LLMConfig, observer Observer) Generator {
	instrumented := &instrumentedGenerator{next: client, provider: provider, observer: observer}
	fallback := NewFallbackGenerator(instrumented, provider, ParseAttempts(cfg.Model, cfg.Fallbacks))
	return NewRetryGenerator(fallback, RetryOptions{
		Provider:    provider,
		MaxAttempts: cfg.MaxAttempts,
		BackoffBase: cfg.BackoffBase,
		BackoffMax:  cfg.BackoffMax,
		Timeout:     cfg.Timeout,
		Observer:    observer,
	})
}
