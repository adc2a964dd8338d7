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

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/loqalabs/loqa-analyst/internal/events"
	"github.com/loqalabs/loqa-analyst/internal/language"
	"github.com/loqalabs/loqa-analyst/internal/llm"
	"github.com/loqalabs/loqa-analyst/internal/logging"
	"github.com/loqalabs/loqa-analyst/internal/security"
	"go.uber.org/zap"
)

// maxAnalyzeBody caps the request body of POST /api/intent/analyze
const maxAnalyzeBody = 64 << 10

// Processor analyzes one transcript
type Processor interface {
	Process(ctx context.Context, text, audioName string, fallback language.Tag) (*events.AnalysisResult, error)
}

// AnalyzeHandler runs ad-hoc transcripts through the analysis pipeline
type AnalyzeHandler struct {
	processor Processor
	fallback  language.Tag
}

// NewAnalyzeHandler creates a new analyze handler
func NewAnalyzeHandler(processor Processor, fallback language.Tag) *AnalyzeHandler {
	return &AnalyzeHandler{processor: processor, fallback: fallback}
}

// AnalyzeRequest is the body of POST /api/intent/analyze
type AnalyzeRequest struct {
	Text      string `json:"text"`
	AudioName string `json:"audio_name,omitempty"`
	Language  string `json:"language,omitempty"`
}

// HandleAnalyze handles POST /api/intent/analyze
func (h *AnalyzeHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req AnalyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAnalyzeBody)).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	fallback := h.fallback
	if req.Language != "" {
		tag, err := language.Parse(req.Language)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fallback = tag
	}

	start := time.Now()
	result, err := h.processor.Process(r.Context(), req.Text, req.AudioName, fallback)
	if err != nil {
		status := http.StatusBadGateway
		if llm.IsRateLimit(err) {
			status = http.StatusTooManyRequests
		}
		logging.LogWarn("Ad-hoc analysis failed",
			zap.String("component", "api"),
			zap.String("error", security.TruncateForLog(err.Error(), 100)),
		)
		http.Error(w, "Language model request failed", status)
		return
	}

	logging.Sugar.Infow("Transcript analyzed via API",
		"intent", result.Intent,
		"language", result.Language,
		"elapsed", time.Since(start),
	)
	writeJSON(w, http.StatusOK, result)
}
