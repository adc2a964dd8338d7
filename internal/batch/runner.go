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

// Package batch drives transcript analysis over a source workbook and
// appends one output row per processed transcript.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/loqalabs/loqa-analyst/internal/config"
	"github.com/loqalabs/loqa-analyst/internal/events"
	"github.com/loqalabs/loqa-analyst/internal/language"
	"github.com/loqalabs/loqa-analyst/internal/llm"
	"github.com/loqalabs/loqa-analyst/internal/logging"
	"github.com/loqalabs/loqa-analyst/internal/security"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Processor analyzes one transcript
type Processor interface {
	Process(ctx context.Context, text, audioName string, fallback language.Tag) (*events.AnalysisResult, error)
}

// Source yields transcript records
type Source interface {
	Path() string
	ReadRows(startRow, limit int) ([]events.TranscriptRecord, error)
}

// Sink is the append-only output store
type Sink interface {
	Path() string
	EnsureInitialized() error
	Append(result events.AnalysisResult) (int, error)
}

// Ledger records runs and row outcomes
type Ledger interface {
	StartRun(run *events.BatchRun) error
	RecordOutcome(runID string, outcome events.RowOutcome) error
	FinishRun(runID, status string, summary events.RunSummary, runErr error) error
	CompletedRows(sourcePath, outputPath string) (map[int]bool, error)
}

// Publisher announces outcomes to other services
type Publisher interface {
	PublishRowOutcome(runID string, outcome events.RowOutcome) error
	PublishRunSummary(summary events.RunSummary, status string) error
}

// Recorder receives batch measurements
type Recorder interface {
	ObserveRow(status string, elapsed time.Duration)
	ObserveAppend(elapsed time.Duration)
	ObserveRun(status string)
}

// Options controls scheduling and pacing
type Options struct {
	Mode            string
	Workers         int
	BatchSize       int
	RowDelay        time.Duration
	WorkerDelay     time.Duration
	BatchPause      time.Duration
	DefaultLanguage language.Tag
	Sleep           llm.SleepFunc
}

// OptionsFromConfig maps the batch configuration onto runner options
func OptionsFromConfig(cfg config.BatchConfig) (Options, error) {
	lang, err := language.Parse(cfg.DefaultLanguage)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Mode:            cfg.Mode,
		Workers:         cfg.Workers,
		BatchSize:       cfg.BatchSize,
		RowDelay:        cfg.RowDelay,
		WorkerDelay:     cfg.WorkerDelay,
		BatchPause:      cfg.BatchPause,
		DefaultLanguage: lang,
	}, nil
}

// Runner schedules rows through a Processor and commits results to a Sink.
// Workers only compute results; every Append happens on the goroutine that
// called Run.
type Runner struct {
	processor Processor
	sink      Sink
	ledger    Ledger
	publisher Publisher
	recorder  Recorder
	opts      Options
}

// NewRunner creates a runner
func NewRunner(processor Processor, sink Sink, opts Options) (*Runner, error) {
	switch opts.Mode {
	case "":
		opts.Mode = config.ModeSequential
	case config.ModeSequential, config.ModeConcurrent, config.ModeBatched:
	default:
		return nil, fmt.Errorf("unknown batch mode %q", opts.Mode)
	}
	if opts.Workers <= 0 {
		opts.Workers = 3
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 5
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = language.Hindi
	}
	if opts.Sleep == nil {
		opts.Sleep = llm.ContextSleep
	}

	return &Runner{
		processor: processor,
		sink:      sink,
		recorder:  nopRecorder{},
		opts:      opts,
	}, nil
}

// SetLedger enables run bookkeeping and completed-row skipping
func (r *Runner) SetLedger(ledger Ledger) {
	r.ledger = ledger
}

// SetPublisher enables outcome publishing
func (r *Runner) SetPublisher(publisher Publisher) {
	r.publisher = publisher
}

// SetRecorder enables batch metrics
func (r *Runner) SetRecorder(recorder Recorder) {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	r.recorder = recorder
}

// Mode returns the scheduling policy in use
func (r *Runner) Mode() string {
	return r.opts.Mode
}

// processedRow is a worker's result before it is committed
type processedRow struct {
	record  events.TranscriptRecord
	result  *events.AnalysisResult
	err     error
	elapsed time.Duration
}

// runState is owned by the goroutine that called Run
type runState struct {
	run     *events.BatchRun
	summary events.RunSummary
}

// Run processes up to limit rows starting at sheet row startRow. Rows the
// ledger already marks as processed for this source and output are left
// out. Row failures are counted and never stop the run; a failure to
// persist stops it and is returned with the counts gathered so far.
func (r *Runner) Run(ctx context.Context, source Source, startRow, limit int) (events.RunSummary, error) {
	start := time.Now()

	if err := r.sink.EnsureInitialized(); err != nil {
		return events.RunSummary{}, err
	}

	records, err := r.pending(source, startRow, limit)
	if err != nil {
		return events.RunSummary{}, err
	}

	state := &runState{run: events.NewBatchRun(source.Path(), r.sink.Path(), r.opts.Mode, startRow, limit)}
	state.summary.RunID = state.run.ID
	if r.ledger != nil {
		if err := r.ledger.StartRun(state.run); err != nil {
			return events.RunSummary{}, err
		}
	}

	logging.Sugar.Infow("🚀 Starting batch run",
		"run_id", state.run.ID,
		"mode", r.opts.Mode,
		"source", security.SanitizeLogInput(source.Path()),
		"output", security.SanitizeLogInput(r.sink.Path()),
		"rows", len(records),
		"start_row", startRow,
	)

	switch r.opts.Mode {
	case config.ModeConcurrent:
		err = r.runConcurrent(ctx, state, records)
	case config.ModeBatched:
		err = r.runBatched(ctx, state, records)
	default:
		err = r.runSequential(ctx, state, records)
	}

	state.summary.Elapsed = time.Since(start)
	r.finish(state, err)
	return state.summary, err
}

// pending reads the rows this run is responsible for
func (r *Runner) pending(source Source, startRow, limit int) ([]events.TranscriptRecord, error) {
	if r.ledger == nil {
		return source.ReadRows(startRow, limit)
	}

	completed, err := r.ledger.CompletedRows(source.Path(), r.sink.Path())
	if err != nil {
		return nil, err
	}
	rows, err := source.ReadRows(startRow, 0)
	if err != nil {
		return nil, err
	}

	records := make([]events.TranscriptRecord, 0, len(rows))
	for _, record := range rows {
		if completed[record.RowIndex] {
			continue
		}
		if limit > 0 && len(records) >= limit {
			break
		}
		records = append(records, record)
	}

	if skipped := len(completed); skipped > 0 {
		logging.Sugar.Infof("⏭️  %d rows already processed into %s", skipped, security.SanitizeLogInput(r.sink.Path()))
	}
	return records, nil
}

func (r *Runner) runSequential(ctx context.Context, state *runState, records []events.TranscriptRecord) error {
	first := true
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if record.IsEmpty() {
			if err := r.record(state, events.Skipped(record)); err != nil {
				return err
			}
			continue
		}

		if !first && r.opts.RowDelay > 0 {
			if err := r.opts.Sleep(ctx, r.opts.RowDelay); err != nil {
				return err
			}
		}
		first = false

		if err := r.commit(state, r.process(ctx, record)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runConcurrent(ctx context.Context, state *runState, records []events.TranscriptRecord) error {
	work, err := r.skipEmpty(state, records)
	if err != nil {
		return err
	}
	return r.runPool(ctx, state, work, r.opts.Workers, 0)
}

func (r *Runner) runBatched(ctx context.Context, state *runState, records []events.TranscriptRecord) error {
	work, err := r.skipEmpty(state, records)
	if err != nil {
		return err
	}

	total := (len(work) + r.opts.BatchSize - 1) / r.opts.BatchSize
	for i := 0; i < len(work); i += r.opts.BatchSize {
		batch := work[i:min(i+r.opts.BatchSize, len(work))]
		current := i/r.opts.BatchSize + 1

		logging.Logger.Info("📦 Starting batch",
			zap.String("component", "batch"),
			zap.String("run_id", state.run.ID),
			zap.Int("batch", current),
			zap.Int("batches", total),
			zap.Int("rows", len(batch)),
		)
		if err := r.runPool(ctx, state, batch, len(batch), r.opts.WorkerDelay); err != nil {
			return err
		}

		if current < total && r.opts.BatchPause > 0 {
			if err := r.opts.Sleep(ctx, r.opts.BatchPause); err != nil {
				return err
			}
		}
	}
	return nil
}

// skipEmpty records empty transcripts as skipped and returns the rest
func (r *Runner) skipEmpty(state *runState, records []events.TranscriptRecord) ([]events.TranscriptRecord, error) {
	work := make([]events.TranscriptRecord, 0, len(records))
	for _, record := range records {
		if record.IsEmpty() {
			if err := r.record(state, events.Skipped(record)); err != nil {
				return nil, err
			}
			continue
		}
		work = append(work, record)
	}
	return work, nil
}

// runPool analyzes records on at most workers goroutines and commits each
// result here, in completion order.
func (r *Runner) runPool(ctx context.Context, state *runState, records []events.TranscriptRecord, workers int, delay time.Duration) error {
	poolCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan processedRow)
	var g errgroup.Group
	g.SetLimit(workers)

	go func() {
		for _, record := range records {
			if poolCtx.Err() != nil {
				break
			}
			g.Go(func() error {
				if delay > 0 {
					if err := r.opts.Sleep(poolCtx, delay); err != nil {
						results <- processedRow{record: record, err: err}
						return nil
					}
				}
				results <- r.process(poolCtx, record)
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	var abortErr error
	for row := range results {
		if abortErr != nil {
			continue
		}
		if err := r.commit(state, row); err != nil {
			abortErr = err
			cancel()
		}
	}
	if abortErr != nil {
		return abortErr
	}
	return ctx.Err()
}

func (r *Runner) process(ctx context.Context, record events.TranscriptRecord) processedRow {
	start := time.Now()
	result, err := r.processor.Process(ctx, record.Text, record.AudioName, r.opts.DefaultLanguage)
	return processedRow{
		record:  record,
		result:  result,
		err:     err,
		elapsed: time.Since(start),
	}
}

// commit turns a worker result into an outcome, appending successful
// analyses to the sink. Only persistence failures are returned.
func (r *Runner) commit(state *runState, row processedRow) error {
	switch {
	case row.err != nil:
		return r.record(state, events.Failed(row.record, failureReason(row.err), row.elapsed))
	case row.result == nil:
		return r.record(state, events.Failed(row.record, "no analysis result", row.elapsed))
	}

	appendStart := time.Now()
	if _, err := r.sink.Append(*row.result); err != nil {
		if recordErr := r.record(state, events.Failed(row.record, failureReason(err), row.elapsed)); recordErr != nil {
			logging.LogError(recordErr, "Failed to record outcome after append failure", zap.Int("row", row.record.RowIndex))
		}
		return fmt.Errorf("row %d: %w", row.record.RowIndex, err)
	}
	r.recorder.ObserveAppend(time.Since(appendStart))

	return r.record(state, events.Processed(row.record, row.result, row.elapsed))
}

// record accounts for one outcome
func (r *Runner) record(state *runState, outcome events.RowOutcome) error {
	state.summary.Add(outcome)

	fields := []zap.Field{
		zap.String("audio_name", outcome.AudioName),
		zap.Duration("elapsed", outcome.Duration),
		zap.Int("done", state.summary.Total()),
	}
	if outcome.Reason != "" {
		fields = append(fields, zap.String("reason", security.TruncateForLog(outcome.Reason, 50)))
	}
	if outcome.Result != nil {
		fields = append(fields, zap.String("intent", outcome.Result.Intent))
	}
	logging.LogRowOutcome(state.run.ID, outcome.RowIndex, string(outcome.Status), fields...)
	r.recorder.ObserveRow(string(outcome.Status), outcome.Duration)

	if r.publisher != nil {
		if err := r.publisher.PublishRowOutcome(state.run.ID, outcome); err != nil {
			logging.LogWarn("Failed to publish row outcome",
				zap.String("run_id", state.run.ID),
				zap.Int("row", outcome.RowIndex),
				zap.Error(err),
			)
		}
	}

	if r.ledger != nil {
		return r.ledger.RecordOutcome(state.run.ID, outcome)
	}
	return nil
}

func (r *Runner) finish(state *runState, runErr error) {
	status := events.RunCompleted
	if runErr != nil {
		status = events.RunAborted
		logging.LogError(runErr, "❌ Batch run aborted", zap.String("run_id", state.run.ID))
	}

	if r.ledger != nil {
		if err := r.ledger.FinishRun(state.run.ID, status, state.summary, runErr); err != nil {
			logging.LogError(err, "Failed to finish run in ledger", zap.String("run_id", state.run.ID))
		}
	}
	if r.publisher != nil {
		if err := r.publisher.PublishRunSummary(state.summary, status); err != nil {
			logging.LogWarn("Failed to publish run summary", zap.String("run_id", state.run.ID), zap.Error(err))
		}
	}
	r.recorder.ObserveRun(status)

	logging.LogBatchSummary(state.run.ID,
		zap.String("status", status),
		zap.Int("processed", state.summary.Processed),
		zap.Int("failed", state.summary.Failed),
		zap.Int("skipped", state.summary.Skipped),
		zap.Duration("elapsed", state.summary.Elapsed),
		zap.Float64("rows_per_minute", state.summary.Throughput()),
	)
}

func failureReason(err error) string {
	return security.TruncateForLog(err.Error(), 100)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRow(string, time.Duration) {}
func (nopRecorder) ObserveAppend(time.Duration)      {}
func (nopRecorder) ObserveRun(string)                {}
