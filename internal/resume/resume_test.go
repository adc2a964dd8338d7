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
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/loqalabs/loqa-analyst/internal/events"
	"github.com/loqalabs/loqa-analyst/internal/storage"
)

type fakeCounter struct {
	exists bool
	rows   int
	err    error
}

func (f fakeCounter) Exists() bool           { return f.exists }
func (f fakeCounter) RowCount() (int, error) { return f.rows, f.err }
func (f fakeCounter) TotalRows() (int, error) {
	return f.rows, f.err
}

func TestNextRow_Store(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	store := storage.NewOutputStore(path)

	next, err := NextRow(store)
	if err != nil || next != 2 {
		t.Fatalf("NextRow() on missing store = %d, %v; want 2", next, err)
	}

	if err := store.EnsureInitialized(); err != nil {
		t.Fatalf("EnsureInitialized() error = %v", err)
	}
	if next, _ := NextRow(store); next != 2 {
		t.Errorf("NextRow() on header-only store = %d, want 2", next)
	}

	for i := 0; i < 4; i++ {
		if _, err := store.Append(events.AnalysisResult{Transcript: "t", Intent: "unknown"}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	if next, _ := NextRow(store); next != 6 {
		t.Errorf("NextRow() after 4 appends = %d, want 6", next)
	}
}

func TestNextRow_ReadFailure(t *testing.T) {
	_, err := NextRow(fakeCounter{exists: true, err: storage.ErrStoreUnavailable})
	if !errors.Is(err, storage.ErrStoreUnavailable) {
		t.Errorf("NextRow() error = %v, want ErrStoreUnavailable", err)
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name          string
		output        fakeCounter
		wantProcessed int
		wantRemaining int
		wantPercent   float64
	}{
		{"missing output", fakeCounter{}, 0, 120, 0},
		{"partial", fakeCounter{exists: true, rows: 30}, 30, 90, 25},
		{"complete", fakeCounter{exists: true, rows: 120}, 120, 0, 100},
		{"over-complete", fakeCounter{exists: true, rows: 130}, 130, 0, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			progress, err := Check(fakeCounter{rows: 120}, tt.output)
			if err != nil {
				t.Fatalf("Check() error = %v", err)
			}
			if progress.Processed != tt.wantProcessed || progress.Remaining != tt.wantRemaining {
				t.Errorf("Check() = %+v", progress)
			}
			if progress.Percent() != tt.wantPercent {
				t.Errorf("Percent() = %.1f, want %.1f", progress.Percent(), tt.wantPercent)
			}
			if got := len([]rune(progress.Bar(BarWidth))); got != BarWidth {
				t.Errorf("Bar() has %d cells, want %d", got, BarWidth)
			}
		})
	}
}

func TestProgress_ETAAndRender(t *testing.T) {
	progress := Progress{Total: 1300, Processed: 100, Remaining: 1200, OutputExists: true}
	if eta := progress.ETA(EstimatePerRow); eta != time.Hour {
		t.Errorf("ETA() = %s, want 1h", eta)
	}

	var out strings.Builder
	progress.Render(&out, "source.xlsx", "out.xlsx")
	report := out.String()
	for _, want := range []string{"Total rows: 1300", "Remaining: 1200 rows", "~1h 0m", "-limit 100"} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
}
