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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/loqalabs/loqa-analyst/internal/app"
	"github.com/loqalabs/loqa-analyst/internal/batch"
	"github.com/loqalabs/loqa-analyst/internal/config"
	"github.com/loqalabs/loqa-analyst/internal/events"
	"github.com/loqalabs/loqa-analyst/internal/language"
	"github.com/loqalabs/loqa-analyst/internal/logging"
	"github.com/loqalabs/loqa-analyst/internal/resume"
	"github.com/loqalabs/loqa-analyst/internal/security"
	"github.com/loqalabs/loqa-analyst/internal/storage"
	"go.uber.org/zap"
)

type options struct {
	source    string
	text      string
	file      string
	audioName string
	output    string
	mode      string
	lang      string
	limit     int
	start     int
	workers   int
	batchSize int
	serve     bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("loqa-analyst", flag.ContinueOnError)
	fs.StringVar(&opts.source, "source", "", "source workbook (column A audio name, column B transcript)")
	fs.StringVar(&opts.text, "text", "", "analyze a single transcript")
	fs.StringVar(&opts.audioName, "audio", "", "audio name stored with -text")
	fs.StringVar(&opts.file, "file", "", "text file with one transcript per line")
	fs.StringVar(&opts.output, "output", "", "output workbook (default ANALYST_OUTPUT)")
	fs.StringVar(&opts.mode, "mode", "", "sequential, concurrent or batched (default BATCH_MODE)")
	fs.StringVar(&opts.lang, "language", "", "fallback language: hindi, english, urdu or telugu")
	fs.IntVar(&opts.limit, "limit", -1, "rows to process, 0 for all (default BATCH_LIMIT)")
	fs.IntVar(&opts.start, "start", 0, "first source row; 0 resumes automatically")
	fs.IntVar(&opts.workers, "workers", 0, "concurrent workers")
	fs.IntVar(&opts.batchSize, "batch-size", 0, "rows per batch in batched mode")
	fs.BoolVar(&opts.serve, "serve", false, "run only the status server until interrupted")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	if opts.lang != "" && !languageFlagValid(opts.lang) {
		return opts, fmt.Errorf("unsupported language %q", opts.lang)
	}

	// Positional form: loqa-analyst [source_file] [row_limit]
	rest := fs.Args()
	if opts.source == "" && len(rest) > 0 {
		opts.source = rest[0]
	}
	if len(rest) > 1 {
		n, err := strconv.Atoi(rest[1])
		if err != nil || n < 0 {
			return opts, fmt.Errorf("invalid row limit %q", rest[1])
		}
		opts.limit = n
	}
	return opts, nil
}

// apply overrides configuration with explicitly set flags
func (o options) apply(cfg *config.Config) {
	if o.output != "" {
		cfg.Store.OutputPath = o.output
	}
	if o.mode != "" {
		cfg.Batch.Mode = o.mode
	}
	if o.lang != "" {
		cfg.Batch.DefaultLanguage = o.lang
	}
	if o.limit >= 0 {
		cfg.Batch.Limit = o.limit
	}
	if o.workers > 0 {
		cfg.Batch.Workers = o.workers
	}
	if o.batchSize > 0 {
		cfg.Batch.BatchSize = o.batchSize
	}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	cfg, err := app.LoadEnvironment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		return 1
	}
	defer logging.Close()

	opts.apply(cfg)
	if opts.source == "" && opts.text == "" && opts.file == "" && !opts.serve {
		fmt.Fprintln(os.Stderr, "usage: loqa-analyst -source <workbook> [-limit n] | -text <transcript> | -file <lines.txt> | -serve")
		return 2
	}

	if err := cfg.ValidateCredentials(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		return 1
	}
	if err := validateInputs(opts, cfg.Store.OutputPath); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		return 1
	}

	pipeline, err := app.NewPipeline(cfg)
	if err != nil {
		logging.LogError(err, "Failed to build analysis pipeline")
		return 1
	}

	ledger, err := app.OpenLedger(cfg.Store)
	if err != nil {
		logging.LogError(err, "Failed to open run ledger")
		return 1
	}
	defer ledger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if srv := app.NewStatusServer(cfg.Server, pipeline, ledger); srv != nil {
		go func() {
			if err := srv.Start(); err != nil {
				logging.LogError(err, "Status server stopped")
			}
		}()
		defer srv.Stop()
	}

	if opts.serve {
		logging.Sugar.Info("📡 Serving until interrupted")
		<-ctx.Done()
		return 0
	}

	sink := storage.NewOutputStore(cfg.Store.OutputPath)
	if opts.text != "" {
		return analyzeText(ctx, pipeline, sink, opts.text, opts.audioName)
	}

	runnerOpts, err := batch.OptionsFromConfig(cfg.Batch)
	if err != nil {
		logging.LogError(err, "Invalid batch configuration")
		return 1
	}

	var source batch.Source = storage.NewSourceReader(opts.source)
	firstRow := storage.FirstDataRow
	if opts.file != "" {
		// Lines are analyzed in order with no pacing beyond the model retry policy
		runnerOpts.Mode = config.ModeSequential
		runnerOpts.RowDelay = 0
		source = storage.NewLineSource(opts.file)
		firstRow = 1
	}

	startRow, err := chooseStartRow(opts.start, firstRow, opts.file == "" && ledger == nil, runnerOpts.Mode, sink)
	if err != nil {
		logging.LogError(err, "Failed to locate resume row")
		return 1
	}

	runner, err := batch.NewRunner(pipeline.Processor, sink, runnerOpts)
	if err != nil {
		logging.LogError(err, "Failed to create batch runner")
		return 1
	}
	runner.SetRecorder(pipeline.Metrics)
	if ledger != nil {
		runner.SetLedger(ledger.Runs)
	} else if runnerOpts.Mode != config.ModeSequential {
		logging.LogWarn("No run ledger configured; a rerun of this mode may reprocess rows",
			zap.String("mode", runnerOpts.Mode))
	}
	if publisher := app.ConnectNATS(cfg.NATS, pipeline.Metrics); publisher != nil {
		runner.SetPublisher(publisher)
		defer publisher.Close()
	}

	summary, err := runner.Run(ctx, source, startRow, cfg.Batch.Limit)
	printSummary(summary, sink.Path())
	if err != nil {
		logging.LogError(err, "Batch run aborted", zap.String("run_id", summary.RunID))
		return 1
	}
	return 0
}

// validateInputs rejects missing sources and non-workbook paths before any
// work begins
func validateInputs(opts options, outputPath string) error {
	if opts.serve {
		return nil
	}
	if err := security.ValidateWorkbookPath(outputPath); err != nil {
		return fmt.Errorf("output %q: %w", outputPath, err)
	}
	if opts.source != "" {
		if err := security.ValidateWorkbookPath(opts.source); err != nil {
			return fmt.Errorf("source %q: %w", opts.source, err)
		}
	}
	for _, path := range []string{opts.source, opts.file} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("source not found: %s", path)
		}
	}
	return nil
}

// chooseStartRow returns the first source row of a run. An explicit start
// wins. With a ledger the run starts at firstRow and the ledger skips rows
// already processed; output row counting only applies to sequential
// workbook runs without one.
func chooseStartRow(explicit, firstRow int, countOutput bool, mode string, output resume.RowCounter) (int, error) {
	if explicit > 0 {
		return explicit, nil
	}
	if countOutput && mode == config.ModeSequential {
		return resume.NextRow(output)
	}
	return firstRow, nil
}

func analyzeText(ctx context.Context, pipeline *app.Pipeline, sink *storage.OutputStore, text, audioName string) int {
	result, err := pipeline.Processor.Process(ctx, text, audioName, pipeline.Language)
	if err != nil {
		logging.LogError(err, "Analysis failed")
		return 1
	}
	if result == nil {
		fmt.Fprintln(os.Stderr, "nothing to analyze: transcript is empty")
		return 1
	}

	row, err := sink.Append(*result)
	if err != nil {
		logging.LogError(err, "Failed to save result")
		return 1
	}

	fmt.Printf("Language: %s\n", result.Language)
	fmt.Printf("Summary:  %s\n", result.Summary)
	fmt.Printf("Intent:   %s\n", result.Intent)
	fmt.Printf("Saved to %s (row %d)\n", security.SanitizeLogInput(sink.Path()), row)
	return 0
}

func printSummary(summary events.RunSummary, output string) {
	fmt.Println("============================================================")
	fmt.Printf("Processed: %d\n", summary.Processed)
	fmt.Printf("Failed:    %d\n", summary.Failed)
	fmt.Printf("Skipped:   %d\n", summary.Skipped)
	fmt.Printf("Elapsed:   %s\n", summary.Elapsed.Round(time.Millisecond))
	if rate := summary.Throughput(); rate > 0 {
		fmt.Printf("Rate:      %.1f rows/min\n", rate)
	}
	fmt.Printf("Output:    %s\n", output)
	fmt.Println("============================================================")
}

// languageFlagValid reports whether name is a supported language tag
func languageFlagValid(name string) bool {
	_, err := language.Parse(name)
	return err == nil
}
