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
	"errors"
	"strings"

	"github.com/loqalabs/loqa-analyst/internal/logging"
	"go.uber.org/zap"
)

// Attempt is one {model, device} configuration in a fallback chain
type Attempt struct {
	Model  string
	Device string
}

func (a Attempt) String() string {
	if a.Device == "" {
		return a.Model
	}
	return a.Model + "@" + a.Device
}

// ParseAttempts builds the chain: primary on the default device first, then
// each comma separated "model@device" entry of chain in order.
func ParseAttempts(primary, chain string) []Attempt {
	attempts := []Attempt{{Model: primary}}
	for _, entry := range strings.Split(chain, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		model, device, _ := strings.Cut(entry, "@")
		if model == "" {
			model = primary
		}
		attempts = append(attempts, Attempt{Model: model, Device: strings.ToLower(device)})
	}
	return attempts
}

// FallbackGenerator walks an ordered list of configurations. It moves to the
// next one only when the backend failed or lacks the model; auth, rate-limit
// and network failures end the walk.
type FallbackGenerator struct {
	next     Generator
	provider string
	attempts []Attempt
}

// NewFallbackGenerator wraps next with the given chain
func NewFallbackGenerator(next Generator, provider string, attempts []Attempt) *FallbackGenerator {
	return &FallbackGenerator{next: next, provider: provider, attempts: attempts}
}

// Generate tries each configuration in turn
func (f *FallbackGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if len(f.attempts) == 0 {
		return f.next.Generate(ctx, req)
	}

	var lastErr error
	for i, attempt := range f.attempts {
		current := req
		current.Model = attempt.Model
		current.Device = attempt.Device

		reply, err := f.next.Generate(ctx, current)
		if err == nil {
			if i > 0 {
				logging.Sugar.Infow("🔁 Fallback configuration succeeded",
					"provider", f.provider,
					"attempt", attempt.String(),
					"position", i+1,
				)
			}
			return reply, nil
		}

		lastErr = err
		logging.LogWarn("LLM configuration failed",
			zap.String("component", "llm"),
			zap.String("provider", f.provider),
			zap.String("attempt", attempt.String()),
			zap.Int("position", i+1),
			zap.Int("of", len(f.attempts)),
			zap.String("kind", string(KindOf(err))),
			zap.Error(err),
		)

		if !shouldFallBack(err) {
			return "", err
		}
	}
	return "", lastErr
}

func shouldFallBack(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch KindOf(err) {
	case KindServer, KindModelNotFound:
		return true
	}
	return false
}
