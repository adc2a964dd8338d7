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
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/loqalabs/loqa-analyst/internal/api"
	"github.com/loqalabs/loqa-analyst/internal/config"
	"github.com/loqalabs/loqa-analyst/internal/events"
	"github.com/loqalabs/loqa-analyst/internal/messaging"
	"github.com/loqalabs/loqa-analyst/internal/resume"
	"github.com/loqalabs/loqa-analyst/internal/storage"
)

const (
	defaultSource    = "Transcript-24-11-2025.xlsx"
	defaultServerURL = "http://localhost:8090"
)

// ProgressCLI reports on batch progress from the workbooks, the status
// server and the outcome stream.
type ProgressCLI struct {
	serverURL string
	format    string
	client    *http.Client
	out       io.Writer
}

func main() {
	_ = godotenv.Load()

	var (
		serverURL = flag.String("server", defaultServerURL, "URL of the analyst status server")
		action    = flag.String("action", "check", "Action to perform: check, runs, run, watch")
		runID     = flag.String("run", "", "Run ID for the run action")
		limit     = flag.Int("limit", 20, "Runs to list")
		format    = flag.String("format", "table", "Output format: table, json")
	)
	flag.Parse()

	cli := &ProgressCLI{
		serverURL: *serverURL,
		format:    *format,
		client:    &http.Client{Timeout: 10 * time.Second},
		out:       os.Stdout,
	}

	var err error
	switch *action {
	case "check":
		source := defaultSource
		output := "IntentOfthetranscribetext.xlsx"
		if v := os.Getenv("ANALYST_OUTPUT"); v != "" {
			output = v
		}
		if flag.NArg() > 0 {
			source = flag.Arg(0)
		}
		if flag.NArg() > 1 {
			output = flag.Arg(1)
		}
		err = cli.check(source, output)
	case "runs":
		err = cli.listRuns(*limit)
	case "run":
		if *runID == "" {
			fmt.Fprintf(os.Stderr, "Error: run ID required for run action\n")
			os.Exit(1)
		}
		err = cli.getRun(*runID)
	case "watch":
		err = cli.watch()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown action %s\n", *action)
		fmt.Fprintf(os.Stderr, "Valid actions: check, runs, run, watch\n")
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (c *ProgressCLI) check(sourcePath, outputPath string) error {
	progress, err := resume.Check(storage.NewSourceReader(sourcePath), storage.NewOutputStore(outputPath))
	if err != nil {
		return err
	}
	if c.format == "json" {
		return c.encode(progress)
	}
	progress.Render(c.out, sourcePath, outputPath)
	return nil
}

func (c *ProgressCLI) fetch(path string, target interface{}) error {
	resp, err := c.client.Get(c.serverURL + path)
	if err != nil {
		return fmt.Errorf("failed to connect to status server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("not found: %s", path)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *ProgressCLI) listRuns(limit int) error {
	var result api.ListRunsResponse
	if err := c.fetch(fmt.Sprintf("/api/runs?page_size=%d", limit), &result); err != nil {
		return err
	}

	if c.format == "json" {
		return c.encode(result.Runs)
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODE\tSTATUS\tPROCESSED\tFAILED\tSKIPPED\tSTARTED")
	fmt.Fprintln(w, "--\t----\t------\t---------\t------\t-------\t-------")
	for _, run := range result.Runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			run.ID,
			run.Mode,
			run.Status,
			run.Processed,
			run.Failed,
			run.Skipped,
			run.StartedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("error flushing output: %w", err)
	}
	fmt.Fprintf(c.out, "\nTotal: %d runs\n", result.Total)
	return nil
}

func (c *ProgressCLI) getRun(runID string) error {
	var detail api.RunDetailResponse
	if err := c.fetch("/api/runs/"+runID, &detail); err != nil {
		return err
	}

	if c.format == "json" {
		return c.encode(detail)
	}

	run := detail.Run
	fmt.Fprintf(c.out, "Run Information:\n")
	fmt.Fprintf(c.out, "  ID:        %s\n", run.ID)
	fmt.Fprintf(c.out, "  Source:    %s\n", run.SourcePath)
	fmt.Fprintf(c.out, "  Output:    %s\n", run.OutputPath)
	fmt.Fprintf(c.out, "  Mode:      %s\n", run.Mode)
	fmt.Fprintf(c.out, "  Status:    %s\n", run.Status)
	fmt.Fprintf(c.out, "  Started:   %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	if run.FinishedAt != nil {
		fmt.Fprintf(c.out, "  Finished:  %s\n", run.FinishedAt.Local().Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(c.out, "  Counts:    %d processed, %d failed, %d skipped\n", run.Processed, run.Failed, run.Skipped)
	if run.Error != "" {
		fmt.Fprintf(c.out, "  Error:     %s\n", run.Error)
	}

	if len(detail.Outcomes) == 0 {
		return nil
	}
	fmt.Fprintf(c.out, "\nRows:\n")
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROW\tAUDIO\tSTATUS\tINTENT\tREASON")
	for _, outcome := range detail.Outcomes {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			outcome.RowIndex, outcome.AudioName, outcome.Status, outcome.Intent, outcome.Reason)
	}
	return w.Flush()
}

func (c *ProgressCLI) watch() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.NATS.URL == "" {
		return fmt.Errorf("NATS_URL is not set")
	}

	service := messaging.NewNATSService(cfg.NATS)
	if err := service.Connect(); err != nil {
		return err
	}
	defer service.Close()

	rows, err := service.SubscribeToRowOutcomes(func(event *events.RowOutcomeEvent) {
		c.printRowEvent(event)
	})
	if err != nil {
		return err
	}
	defer rows.Unsubscribe()

	runs, err := service.SubscribeToRunSummaries(func(event *events.RunSummaryEvent) {
		fmt.Fprintf(c.out, "run %s %s: %d processed, %d failed, %d skipped in %dms\n",
			event.RunID, event.Status, event.Processed, event.Failed, event.Skipped, event.ElapsedMS)
	})
	if err != nil {
		return err
	}
	defer runs.Unsubscribe()

	fmt.Fprintf(c.out, "Watching %s.* (Ctrl+C to stop)\n", cfg.NATS.SubjectPrefix)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	return nil
}

func (c *ProgressCLI) printRowEvent(event *events.RowOutcomeEvent) {
	detail := event.Intent
	if event.Status != events.StatusProcessed {
		detail = event.Reason
	}
	fmt.Fprintf(c.out, "[%s] row %d %-9s %s %s\n",
		event.Timestamp.Local().Format("15:04:05"), event.RowIndex, event.Status, event.AudioName, detail)
}

func (c *ProgressCLI) encode(v interface{}) error {
	encoder := json.NewEncoder(c.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
