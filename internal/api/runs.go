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
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/loqalabs/loqa-analyst/internal/events"
	"github.com/loqalabs/loqa-analyst/internal/logging"
	"github.com/loqalabs/loqa-analyst/internal/security"
	"github.com/loqalabs/loqa-analyst/internal/storage"
	"go.uber.org/zap"
)

// RunsHandler handles HTTP requests for batch runs
type RunsHandler struct {
	store *storage.RunsStore
}

// NewRunsHandler creates a new runs handler
func NewRunsHandler(store *storage.RunsStore) *RunsHandler {
	return &RunsHandler{store: store}
}

// ListRunsResponse represents the response for listing runs
type ListRunsResponse struct {
	Runs       []*events.BatchRun `json:"runs"`
	Total      int64              `json:"total"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
	TotalPages int                `json:"total_pages"`
}

// RunDetailResponse is one run with its row outcomes
type RunDetailResponse struct {
	Run      *events.BatchRun        `json:"run"`
	Outcomes []storage.OutcomeRecord `json:"outcomes"`
}

// HandleRuns handles GET /api/runs
func (h *RunsHandler) HandleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	page := parseIntParam(query.Get("page"), 1)
	pageSize := parseIntParam(query.Get("page_size"), 20)
	if pageSize > 100 {
		pageSize = 100
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if page < 1 {
		page = 1
	}

	total, err := h.store.CountRuns()
	if err != nil {
		logging.LogError(err, "Failed to count batch runs")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	runs, err := h.store.ListRuns(pageSize, (page-1)*pageSize)
	if err != nil {
		logging.LogError(err, "Failed to list batch runs")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []*events.BatchRun{}
	}

	response := ListRunsResponse{
		Runs:       runs,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int((total + int64(pageSize) - 1) / int64(pageSize)),
	}

	logging.Sugar.Debugw("Runs API request",
		"endpoint", "list",
		"page", page,
		"page_size", pageSize,
		"total_results", total,
	)

	writeJSON(w, http.StatusOK, response)
}

// HandleRunByID handles GET /api/runs/{id}
func (h *RunsHandler) HandleRunByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	runID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/runs/"), "/")
	if runID == "" {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return
	}
	if err := security.ValidateRunID(runID); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	run, err := h.store.GetRun(runID)
	if err != nil {
		if errors.Is(err, storage.ErrRunNotFound) {
			http.Error(w, "Run not found", http.StatusNotFound)
			return
		}
		logging.LogError(err, "Failed to get batch run", zap.String("run_id", runID))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	outcomes, err := h.store.ListOutcomes(runID)
	if err != nil {
		logging.LogError(err, "Failed to list row outcomes", zap.String("run_id", runID))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if outcomes == nil {
		outcomes = []storage.OutcomeRecord{}
	}

	writeJSON(w, http.StatusOK, RunDetailResponse{Run: run, Outcomes: outcomes})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.LogError(err, "Failed to encode response")
	}
}

// parseIntParam parses integer parameter with default value
func parseIntParam(param string, defaultValue int) int {
	if param == "" {
		return defaultValue
	}
	if value, err := strconv.Atoi(param); err == nil {
		return value
	}
	return defaultValue
}
