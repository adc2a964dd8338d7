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

package resume

import (
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	// BarWidth is the number of cells in the rendered progress bar
	BarWidth = 40

	// EstimatePerRow is the conservative per-row duration used for the ETA
	EstimatePerRow = 3 * time.Second
)

// SourceCounter is the part of the source workbook the report reads
type SourceCounter interface {
	TotalRows() (int, error)
}

// Progress compares the source workbook with the output workbook
type Progress struct {
	Total        int
	Processed    int
	Remaining    int
	OutputExists bool
}

// Check builds a progress report. A missing output counts as nothing processed.
func Check(source SourceCounter, output RowCounter) (Progress, error) {
	total, err := source.TotalRows()
	if err != nil {
		return Progress{}, err
	}

	progress := Progress{Total: total, OutputExists: output.Exists()}
	if progress.OutputExists {
		if progress.Processed, err = output.RowCount(); err != nil {
			return Progress{}, err
		}
	}

	progress.Remaining = total - progress.Processed
	if progress.Remaining < 0 {
		progress.Remaining = 0
	}
	return progress, nil
}

// Percent returns the processed share of the source in [0, 100]
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	pct := float64(p.Processed) / float64(p.Total) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// Bar renders a fixed-width text bar
func (p Progress) Bar(width int) string {
	filled := int(float64(width) * p.Percent() / 100)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// ETA estimates the time left at perRow per remaining row
func (p Progress) ETA(perRow time.Duration) time.Duration {
	return time.Duration(p.Remaining) * perRow
}

// Done reports whether every source row has an output row
func (p Progress) Done() bool {
	return p.Remaining == 0
}

// Render writes the human-readable report
func (p Progress) Render(w io.Writer, sourcePath, outputPath string) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "PROCESSING PROGRESS CHECK")
	fmt.Fprintln(w, rule)

	fmt.Fprintf(w, "\n📖 Source: %s\n", sourcePath)
	fmt.Fprintf(w, "   Total rows: %d\n", p.Total)

	fmt.Fprintf(w, "\n💾 Output: %s\n", outputPath)
	if !p.OutputExists {
		fmt.Fprintln(w, "   Status: not created yet")
	}
	fmt.Fprintf(w, "   Processed: %d rows\n", p.Processed)
	fmt.Fprintf(w, "   Remaining: %d rows\n", p.Remaining)

	fmt.Fprintf(w, "\n📊 Progress: %.1f%%\n", p.Percent())
	fmt.Fprintf(w, "   [%s] %d/%d\n", p.Bar(BarWidth), p.Processed, p.Total)

	if p.Processed > 0 && !p.Done() {
		fmt.Fprintf(w, "\n⏱️  Estimated time remaining: ~%s\n", formatETA(p.ETA(EstimatePerRow)))
	}

	fmt.Fprintln(w, "\n"+rule)
	if p.Done() {
		fmt.Fprintln(w, "✅ All rows processed!")
	} else {
		fmt.Fprintln(w, "📋 To continue processing:")
		fmt.Fprintf(w, "   loqa-analyst -source %s -limit %d\n", sourcePath, min(100, p.Remaining))
	}
	fmt.Fprintln(w, rule)
}

func formatETA(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
