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

package processor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/loqalabs/loqa-analyst/internal/events"
	"github.com/loqalabs/loqa-analyst/internal/intent"
	"github.com/loqalabs/loqa-analyst/internal/language"
	"github.com/loqalabs/loqa-analyst/internal/llm"
	"github.com/loqalabs/loqa-analyst/internal/logging"
	"go.uber.org/zap"
)

// Options tunes the summary request
type Options struct {
	SummaryMaxTokens   int
	SummaryTemperature float32
}

// DefaultOptions returns the summary tuning used by the batch tools
func DefaultOptions() Options {
	return Options{SummaryMaxTokens: 100, SummaryTemperature: 0.3}
}

// Processor turns one transcript into an AnalysisResult: detect language,
// request a summary, then request an intent.
type Processor struct {
	generator llm.Generator
	analyzer  *intent.Analyzer
	opts      Options
}

// NewProcessor creates a processor. The summary request goes to generator;
// the intent stage goes through analyzer.
func NewProcessor(generator llm.Generator, analyzer *intent.Analyzer, opts Options) *Processor {
	if opts.SummaryMaxTokens <= 0 {
		opts.SummaryMaxTokens = DefaultOptions().SummaryMaxTokens
	}
	return &Processor{
		generator: generator,
		analyzer:  analyzer,
		opts:      opts,
	}
}

// Process analyzes text. Blank text yields a nil result and nil error, which
// callers count as skipped. A failed summary request is returned as an error;
// the intent stage never fails.
func (p *Processor) Process(ctx context.Context, text, audioName string, fallback language.Tag) (*events.AnalysisResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	start := time.Now()
	lang := language.Classify(text, fallback)

	reply, err := p.generator.Generate(ctx, llm.Request{
		Prompt:       intent.SummaryPrompt(text),
		SystemPrompt: intent.SummarySystemPrompt,
		MaxTokens:    p.opts.SummaryMaxTokens,
		Temperature:  p.opts.SummaryTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("summary request failed: %w", err)
	}
	summary := intent.NormalizeSummary(reply)

	analysis := p.analyzer.Analyze(ctx, text)

	result := &events.AnalysisResult{
		AudioName:  audioName,
		Transcript: text,
		Summary:    summary,
		Intent:     intent.CapTokens(analysis.Intent, intent.MaxTokens),
		Language:   lang.String(),
	}

	logging.Logger.Debug("Transcript analyzed",
		zap.String("component", "processor"),
		zap.String("audio_name", audioName),
		zap.String("language", result.Language),
		zap.String("intent", result.Intent),
		zap.Bool("intent_failed", analysis.Failed),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}
