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
	"encoding/json"
	"testing"
	"time"
)

func TestRunSummary_Add(t *testing.T) {
	record := TranscriptRecord{RowIndex: 2, AudioName: "call_1.wav", Text: "x"}
	var summary RunSummary

	summary.Add(Processed(record, &AnalysisResult{Intent: "power cut"}, time.Second))
	summary.Add(Processed(record, &AnalysisResult{Intent: "bill inquiry"}, time.Second))
	summary.Add(Failed(record, "rate limited", time.Second))
	summary.Add(Skipped(record))

	if summary.Processed != 2 || summary.Failed != 1 || summary.Skipped != 1 {
		t.Errorf("summary = %+v, want 2/1/1", summary)
	}
	if summary.Total() != 4 {
		t.Errorf("Total() = %d, want 4", summary.Total())
	}

	summary.Elapsed = 30 * time.Second
	if got := summary.Throughput(); got != 4 {
		t.Errorf("Throughput() = %f rows/min, want 4", got)
	}
}

func TestTranscriptRecord_IsEmpty(t *testing.T) {
	if !(TranscriptRecord{Text: " \t\n"}).IsEmpty() {
		t.Error("whitespace transcript should be empty")
	}
	if (TranscriptRecord{Text: "current nahi hai"}).IsEmpty() {
		t.Error("non-blank transcript should not be empty")
	}
}

func TestAnalysisResult_Columns(t *testing.T) {
	result := AnalysisResult{AudioName: "a.wav", Transcript: "t", Summary: "s", Intent: "i", Language: "hindi"}
	columns := result.Columns()
	want := []string{"a.wav", "t", "s", "i"}
	if len(columns) != len(want) {
		t.Fatalf("Columns() = %v", columns)
	}
	for i := range want {
		if columns[i] != want[i] {
			t.Errorf("Columns()[%d] = %q, want %q", i, columns[i], want[i])
		}
	}
}

func TestNewRowOutcomeEvent(t *testing.T) {
	outcome := Processed(
		TranscriptRecord{RowIndex: 5, AudioName: "call_5.wav"},
		&AnalysisResult{Intent: "power cut issue", Summary: "no power since morning", Language: "hindi"},
		time.Second,
	)

	event := NewRowOutcomeEvent("run-1", outcome)
	if event.UUID == "" || event.RunID != "run-1" || event.RowIndex != 5 {
		t.Errorf("unexpected event identity: %+v", event)
	}
	if event.Intent != "power cut issue" || event.Language != "hindi" {
		t.Errorf("result fields not copied: %+v", event)
	}

	failed := NewRowOutcomeEvent("run-1", Failed(TranscriptRecord{RowIndex: 6}, "boom", 0))
	if failed.Intent != "" || failed.Reason != "boom" {
		t.Errorf("failed event = %+v", failed)
	}
}

func TestRunSummaryEvent_JSON(t *testing.T) {
	event := NewRunSummaryEvent(RunSummary{RunID: "run-1", Processed: 3, Failed: 1, Skipped: 1, Elapsed: 1500 * time.Millisecond}, RunCompleted)

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded["processed"] != float64(3) || decoded["run_id"] != "run-1" {
		t.Errorf("summary fields should be flattened: %s", data)
	}
	if decoded["elapsed_ms"] != float64(1500) {
		t.Errorf("elapsed_ms = %v, want 1500", decoded["elapsed_ms"])
	}
}

func TestBatchRun_IsValid(t *testing.T) {
	run := NewBatchRun("source.xlsx", "out.xlsx", "sequential", 2, 20)
	if err := run.IsValid(); err != nil {
		t.Errorf("IsValid() = %v, want nil", err)
	}
	if run.Status != RunRunning {
		t.Errorf("Status = %q, want %q", run.Status, RunRunning)
	}

	run.SourcePath = ""
	if err := run.IsValid(); err == nil {
		t.Error("IsValid() expected error for missing source path")
	}
}
