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

package intent

import (
	"context"
	"strings"
	"time"

	"github.com/loqalabs/loqa-analyst/internal/llm"
	"github.com/loqalabs/loqa-analyst/internal/logging"
	"github.com/loqalabs/loqa-analyst/internal/security"
	"go.uber.org/zap"
)

// Result is the outcome of one intent analysis
type Result struct {
	Intent         string        `json:"intent"`
	Raw            string        `json:"raw,omitempty"`
	Failed         bool          `json:"failed,omitempty"`
	ProcessingTime time.Duration `json:"processing_time"`
}

// Options tunes the intent request
type Options struct {
	MaxTokens   int
	Temperature float32
}

// DefaultOptions keeps replies short and stable
func DefaultOptions() Options {
	return Options{MaxTokens: 20, Temperature: 0.2}
}

// Analyzer asks the language model for an intent label. It is the error
// boundary for the intent stage: callers never see a backend failure.
type Analyzer struct {
	generator llm.Generator
	opts      Options
}

// NewAnalyzer creates an analyzer over generator
func NewAnalyzer(generator llm.Generator, opts Options) *Analyzer {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultOptions().MaxTokens
	}
	return &Analyzer{generator: generator, opts: opts}
}

// Analyze returns an empty intent for blank text without calling the model,
// Unknown when the model call fails, and the normalized reply otherwise.
func (a *Analyzer) Analyze(ctx context.Context, text string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{}
	}

	start := time.Now()
	raw, err := a.generator.Generate(ctx, llm.Request{
		Prompt:       IntentPrompt(text),
		SystemPrompt: IntentSystemPrompt,
		MaxTokens:    a.opts.MaxTokens,
		Temperature:  a.opts.Temperature,
	})
	if err != nil {
		logging.LogWarn("❌ Intent analysis failed",
			zap.String("component", "intent"),
			zap.String("kind", string(llm.KindOf(err))),
			zap.String("error", security.TruncateForLog(err.Error(), 100)),
		)
		return Result{Intent: Unknown, Failed: true, ProcessingTime: time.Since(start)}
	}

	result := Result{
		Intent:         NormalizeIntent(raw),
		Raw:            raw,
		ProcessingTime: time.Since(start),
	}
	logging.Sugar.Debugw("Intent resolved",
		"intent", result.Intent,
		"raw", security.SanitizeLogInput(raw),
		"processing_time", result.ProcessingTime,
	)
	return result
}
