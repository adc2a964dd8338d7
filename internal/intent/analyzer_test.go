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
	"testing"
	"time"

	"github.com/loqalabs/loqa-analyst/internal/llm"
)

func TestAnalyzer_EmptyTextSkipsModel(t *testing.T) {
	mock := llm.CreateStaticGenerator("Intent: power cut")
	analyzer := NewAnalyzer(mock, DefaultOptions())

	for _, text := range []string{"", "   ", "\n\t"} {
		result := analyzer.Analyze(context.Background(), text)
		if result.Intent != "" {
			t.Errorf("Analyze(%q).Intent = %q, want empty", text, result.Intent)
		}
	}
	if mock.CallCount() != 0 {
		t.Errorf("model was called %d times for blank text", mock.CallCount())
	}
}

func TestAnalyzer_NormalizesReply(t *testing.T) {
	mock := llm.CreateStaticGenerator("Intent: power cut issue.")
	analyzer := NewAnalyzer(mock, DefaultOptions())

	result := analyzer.Analyze(context.Background(), "Hi Tech City mein subah se current nahi hai")
	if result.Intent != "power cut issue" {
		t.Errorf("Intent = %q, want %q", result.Intent, "power cut issue")
	}
	if result.Failed {
		t.Error("Failed should be false on success")
	}

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0].MaxTokens != 20 || calls[0].Temperature != 0.2 {
		t.Errorf("request tuning = %d tokens at %.1f, want 20 at 0.2", calls[0].MaxTokens, calls[0].Temperature)
	}
	if calls[0].SystemPrompt != IntentSystemPrompt {
		t.Error("request should carry the intent system prompt")
	}
	if !strings.Contains(calls[0].Prompt, "current nahi hai") {
		t.Error("request prompt should embed the transcript")
	}
}

func TestAnalyzer_ServiceErrorBecomesUnknown(t *testing.T) {
	for _, kind := range []llm.ErrorKind{llm.KindAuth, llm.KindNetwork, llm.KindRateLimit, llm.KindServer} {
		t.Run(string(kind), func(t *testing.T) {
			analyzer := NewAnalyzer(llm.CreateErrorGenerator(kind), DefaultOptions())
			result := analyzer.Analyze(context.Background(), "bill zyada aaya hai")
			if result.Intent != Unknown || !result.Failed {
				t.Errorf("Analyze() = %+v, want unknown and failed", result)
			}
		})
	}
}

func TestAnalyzer_RateLimitRetriedThroughGenerator(t *testing.T) {
	mock := llm.CreateScriptedGenerator(
		llm.MockResult{Err: llm.NewMockServiceError("sarvam", llm.KindRateLimit)},
		llm.MockResult{Err: llm.NewMockServiceError("sarvam", llm.KindRateLimit)},
		llm.MockResult{Reply: "\"Bill Inquiry.\""},
	)

	waits := 0
	generator := llm.NewRetryGenerator(mock, llm.RetryOptions{
		MaxAttempts: 4,
		BackoffBase: time.Second,
		Sleep: func(ctx context.Context, d time.Duration) error {
			waits++
			return nil
		},
	})

	result := NewAnalyzer(generator, DefaultOptions()).Analyze(context.Background(), "mera bill galat aaya hai")
	if result.Intent != "bill inquiry" {
		t.Errorf("Intent = %q, want the third reply normalized", result.Intent)
	}
	if waits != 2 {
		t.Errorf("backoff waits = %d, want 2", waits)
	}
	if mock.CallCount() != 3 {
		t.Errorf("CallCount() = %d, want 3", mock.CallCount())
	}
}
