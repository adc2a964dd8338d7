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

package events

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TranscriptRecord is one row read from the source workbook
type TranscriptRecord struct {
	RowIndex  int    `json:"row_index"`
	AudioName string `json:"audio_name,omitempty"`
	Text      string `json:"text"`
}

// IsEmpty reports whether the record has no transcript to analyze
func (r TranscriptRecord) IsEmpty() bool {
	return strings.TrimSpace(r.Text) == ""
}

// AnalysisResult is the derived summary and intent for one transcript
type AnalysisResult struct {
	AudioName  string `json:"audio_name"`
	Transcript string `json:"transcript"`
	Summary    string `json:"summary"`
	Intent     string `json:"intent"`
	Language   string `json:"language"`
}

// Columns returns the positional workbook row: audio name, transcript,
// summary, intent.
func (a AnalysisResult) Columns() []string {
	return []string{a.AudioName, a.Transcript, a.Summary, a.Intent}
}

// RowStatus is the accounting class of one source row
type RowStatus string

const (
	StatusProcessed RowStatus = "processed"
	StatusFailed    RowStatus = "failed"
	StatusSkipped   RowStatus = "skipped"
)

// RowOutcome is the typed result of handling one source row
type RowOutcome struct {
	RowIndex  int             `json:"row_index"`
	AudioName string          `json:"audio_name,omitempty"`
	Status    RowStatus       `json:"status"`
	Result    *AnalysisResult `json:"result,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Duration  time.Duration   `json:"duration"`
}

// Processed builds a successful outcome
func Processed(record TranscriptRecord, result *AnalysisResult, duration time.Duration) RowOutcome {
	return RowOutcome{
		RowIndex:  record.RowIndex,
		AudioName: record.AudioName,
		Status:    StatusProcessed,
		Result:    result,
		Duration:  duration,
	}
}

// Failed builds a failed outcome carrying the reason
func Failed(record TranscriptRecord, reason string, duration time.Duration) RowOutcome {
	return RowOutcome{
		RowIndex:  record.RowIndex,
		AudioName: record.AudioName,
		Status:    StatusFailed,
		Reason:    reason,
		Duration:  duration,
	}
}

// Skipped builds an outcome for a row without transcript
func Skipped(record TranscriptRecord) RowOutcome {
	return RowOutcome{
		RowIndex:  record.RowIndex,
		AudioName: record.AudioName,
		Status:    StatusSkipped,
		Reason:    "empty transcript",
	}
}

// RunSummary holds the end-of-run counters
type RunSummary struct {
	RunID     string        `json:"run_id"`
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Add counts one outcome
func (s *RunSummary) Add(outcome RowOutcome) {
	switch outcome.Status {
	case StatusProcessed:
		s.Processed++
	case StatusFailed:
		s.Failed++
	case StatusSkipped:
		s.Skipped++
	}
}

// Total is the number of rows accounted for
func (s RunSummary) Total() int {
	return s.Processed + s.Failed + s.Skipped
}

// Throughput returns processed rows per minute
func (s RunSummary) Throughput() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Processed) / s.Elapsed.Minutes()
}

func (s RunSummary) String() string {
	return fmt.Sprintf("RunSummary{RunID: %s, Processed: %d, Failed: %d, Skipped: %d, Elapsed: %s}",
		s.RunID, s.Processed, s.Failed, s.Skipped, s.Elapsed.Round(time.Millisecond))
}

// Run states stored in the ledger
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunAborted   = "aborted"
)

// BatchRun is one invocation of the batch runner as stored in the ledger
type BatchRun struct {
	ID         string     `json:"id" db:"id"`
	SourcePath string     `json:"source_path" db:"source_path"`
	OutputPath string     `json:"output_path" db:"output_path"`
	Mode       string     `json:"mode" db:"mode"`
	StartRow   int        `json:"start_row" db:"start_row"`
	RowLimit   int        `json:"row_limit" db:"row_limit"`
	Status     string     `json:"status" db:"status"`
	Processed  int        `json:"processed" db:"processed"`
	Failed     int        `json:"failed" db:"failed"`
	Skipped    int        `json:"skipped" db:"skipped"`
	StartedAt  time.Time  `json:"started_at" db:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" db:"finished_at"`
	Error      string     `json:"error,omitempty" db:"error"`
}

// NewBatchRun creates a running BatchRun with a fresh ID
func NewBatchRun(sourcePath, outputPath, mode string, startRow, rowLimit int) *BatchRun {
	return &BatchRun{
		ID:         uuid.NewString(),
		SourcePath: sourcePath,
		OutputPath: outputPath,
		Mode:       mode,
		StartRow:   startRow,
		RowLimit:   rowLimit,
		Status:     RunRunning,
		StartedAt:  time.Now().UTC(),
	}
}

// IsValid performs basic validation before the run is stored
func (r *BatchRun) IsValid() error {
	if r.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	if r.SourcePath == "" {
		return fmt.Errorf("source path is required")
	}
	if r.StartedAt.IsZero() {
		return fmt.Errorf("start time is required")
	}
	return nil
}

// RowOutcomeEvent is published on the row subject after each outcome
type RowOutcomeEvent struct {
	UUID      string    `json:"uuid"`
	RunID     string    `json:"run_id"`
	RowIndex  int       `json:"row_index"`
	AudioName string    `json:"audio_name,omitempty"`
	Status    RowStatus `json:"status"`
	Intent    string    `json:"intent,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	Language  string    `json:"language,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRowOutcomeEvent converts an outcome into its published form
func NewRowOutcomeEvent(runID string, outcome RowOutcome) *RowOutcomeEvent {
	event := &RowOutcomeEvent{
		UUID:      uuid.NewString(),
		RunID:     runID,
		RowIndex:  outcome.RowIndex,
		AudioName: outcome.AudioName,
		Status:    outcome.Status,
		Reason:    outcome.Reason,
		Timestamp: time.Now().UTC(),
	}
	if outcome.Result != nil {
		event.Intent = outcome.Result.Intent
		event.Summary = outcome.Result.Summary
		event.Language = outcome.Result.Language
	}
	return event
}

// RunSummaryEvent is published on the run subject when a run ends
type RunSummaryEvent struct {
	UUID string `json:"uuid"`
	RunSummary
	Status    string    `json:"status"`
	ElapsedMS int64     `json:"elapsed_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRunSummaryEvent converts a summary into its published form
func NewRunSummaryEvent(summary RunSummary, status string) *RunSummaryEvent {
	return &RunSummaryEvent{
		UUID:       uuid.NewString(),
		RunSummary: summary,
		Status:     status,
		ElapsedMS:  summary.Elapsed.Milliseconds(),
		Timestamp:  time.Now().UTC(),
	}
}
