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

package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/loqalabs/loqa-analyst/internal/events"
	"github.com/loqalabs/loqa-analyst/internal/logging"
	"go.uber.org/zap"
)

// ErrRunNotFound is returned when no run matches the requested ID
var ErrRunNotFound = errors.New("batch run not found")

// OutcomeRecord is a stored row outcome
type OutcomeRecord struct {
	RunID      string           `json:"run_id"`
	RowIndex   int              `json:"row_index"`
	AudioName  string           `json:"audio_name,omitempty"`
	Status     events.RowStatus `json:"status"`
	Intent     string           `json:"intent,omitempty"`
	Reason     string           `json:"reason,omitempty"`
	DurationMS int64            `json:"duration_ms"`
	RecordedAt time.Time        `json:"recorded_at"`
}

// RunsStore keeps batch runs and per-row outcomes in the ledger
type RunsStore struct {
	db *Database
}

// NewRunsStore creates a new runs store
func NewRunsStore(db *Database) *RunsStore {
	return &RunsStore{db: db}
}

// StartRun stores a new running batch run
func (s *RunsStore) StartRun(run *events.BatchRun) error {
	if err := run.IsValid(); err != nil {
		return fmt.Errorf("invalid batch run: %w", err)
	}

	query := `
		INSERT INTO batch_runs (
			id, source_path, output_path, mode, start_row, row_limit,
			status, processed, failed, skipped, started_at, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0, 0, ?, '')`

	_, err := s.db.DB().Exec(query,
		run.ID, ledgerPath(run.SourcePath), ledgerPath(run.OutputPath), run.Mode, run.StartRow, run.RowLimit,
		run.Status, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to insert batch run: %w", ErrStoreUnavailable, err)
	}

	logging.LogStoreOperation("start_run", s.db.GetPath(), zap.String("run_id", run.ID))
	return nil
}

// FinishRun records the final counters and status of a run
func (s *RunsStore) FinishRun(runID, status string, summary events.RunSummary, runErr error) error {
	errText := ""
	if runErr != nil {
		errText = runErr.Error()
	}

	result, err := s.db.DB().Exec(`
		UPDATE batch_runs
		SET status = ?, processed = ?, failed = ?, skipped = ?, finished_at = ?, error = ?
		WHERE id = ?`,
		status, summary.Processed, summary.Failed, summary.Skipped, time.Now().UTC(), errText, runID,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to finish batch run: %w", ErrStoreUnavailable, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	logging.LogStoreOperation("finish_run", s.db.GetPath(),
		zap.String("run_id", runID),
		zap.String("status", status),
	)
	return nil
}

// RecordOutcome stores the outcome of one source row. Re-recording the same
// row within a run replaces the earlier outcome.
func (s *RunsStore) RecordOutcome(runID string, outcome events.RowOutcome) error {
	intent := ""
	if outcome.Result != nil {
		intent = outcome.Result.Intent
	}

	_, err := s.db.DB().Exec(`
		INSERT OR REPLACE INTO row_outcomes (
			run_id, row_index, audio_name, status, intent, reason, duration_ms, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, outcome.RowIndex, outcome.AudioName, string(outcome.Status), intent,
		outcome.Reason, outcome.Duration.Milliseconds(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to record row outcome: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// CompletedRows returns the source rows already processed into outputPath
// by any earlier run over sourcePath.
func (s *RunsStore) CompletedRows(sourcePath, outputPath string) (map[int]bool, error) {
	rows, err := s.db.DB().Query(`
		SELECT DISTINCT o.row_index
		FROM row_outcomes o
		JOIN batch_runs r ON r.id = o.run_id
		WHERE r.source_path = ? AND r.output_path = ? AND o.status = ?`,
		ledgerPath(sourcePath), ledgerPath(outputPath), string(events.StatusProcessed),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query completed rows: %w", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	completed := make(map[int]bool)
	for rows.Next() {
		var rowIndex int
		if err := rows.Scan(&rowIndex); err != nil {
			return nil, fmt.Errorf("failed to scan completed row: %w", err)
		}
		completed[rowIndex] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating completed rows: %w", err)
	}
	return completed, nil
}

// ledgerPath is the form workbook paths are stored and matched in, so that
// "./in.xlsx" and "in.xlsx" name the same source
func ledgerPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// GetRun retrieves a run by ID
func (s *RunsStore) GetRun(runID string) (*events.BatchRun, error) {
	row := s.db.DB().QueryRow(runColumns+` FROM batch_runs WHERE id = ?`, runID)
	return scanRun(row)
}

// ListRuns returns the most recent runs first
func (s *RunsStore) ListRuns(limit, offset int) ([]*events.BatchRun, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.DB().Query(runColumns+` FROM batch_runs ORDER BY started_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query batch runs: %w", err)
	}
	defer rows.Close()

	var runs []*events.BatchRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating batch runs: %w", err)
	}
	return runs, nil
}

// CountRuns returns the number of stored runs
func (s *RunsStore) CountRuns() (int64, error) {
	var count int64
	if err := s.db.DB().QueryRow(`SELECT COUNT(*) FROM batch_runs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count batch runs: %w", err)
	}
	return count, nil
}

// ListOutcomes returns the stored outcomes of one run in source order
func (s *RunsStore) ListOutcomes(runID string) ([]OutcomeRecord, error) {
	rows, err := s.db.DB().Query(`
		SELECT run_id, row_index, audio_name, status, intent, reason, duration_ms, recorded_at
		FROM row_outcomes
		WHERE run_id = ?
		ORDER BY row_index ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query row outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []OutcomeRecord
	for rows.Next() {
		var (
			record OutcomeRecord
			status string
		)
		if err := rows.Scan(&record.RunID, &record.RowIndex, &record.AudioName, &status,
			&record.Intent, &record.Reason, &record.DurationMS, &record.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row outcome: %w", err)
		}
		record.Status = events.RowStatus(status)
		outcomes = append(outcomes, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating row outcomes: %w", err)
	}
	return outcomes, nil
}

const runColumns = `
	SELECT id, source_path, output_path, mode, start_row, row_limit,
		   status, processed, failed, skipped, started_at, finished_at, error`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*events.BatchRun, error) {
	var (
		run      events.BatchRun
		finished sql.NullTime
	)

	err := row.Scan(
		&run.ID, &run.SourcePath, &run.OutputPath, &run.Mode, &run.StartRow, &run.RowLimit,
		&run.Status, &run.Processed, &run.Failed, &run.Skipped, &run.StartedAt, &finished, &run.Error,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}

	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	return &run, nil
}
