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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/loqalabs/loqa-analyst/internal/events"
	"github.com/xuri/excelize/v2"
)

func readAllRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(f.GetActiveSheetIndex()))
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	return rows
}

func TestOutputStore_EnsureInitializedIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	store := NewOutputStore(path)

	for i := 0; i < 2; i++ {
		if err := store.EnsureInitialized(); err != nil {
			t.Fatalf("EnsureInitialized() call %d error = %v", i+1, err)
		}
	}

	rows := readAllRows(t, path)
	if len(rows) != 1 {
		t.Fatalf("expected exactly one header row, got %d rows", len(rows))
	}
	for i, title := range OutputHeader {
		if rows[0][i] != title {
			t.Errorf("header[%d] = %q, want %q", i, rows[0][i], title)
		}
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer f.Close()
	if f.GetSheetName(0) != outputSheet {
		t.Errorf("sheet = %q, want %q", f.GetSheetName(0), outputSheet)
	}
}

func TestOutputStore_HeaderWrittenIntoBlankWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blank.xlsx")
	f := excelize.NewFile()
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs() error = %v", err)
	}
	f.Close()

	store := NewOutputStore(path)
	if err := store.EnsureInitialized(); err != nil {
		t.Fatalf("EnsureInitialized() error = %v", err)
	}

	rows := readAllRows(t, path)
	if len(rows) != 1 || rows[0][0] != "Audio Name" {
		t.Errorf("rows = %v, want header only", rows)
	}
}

func TestOutputStore_AppendAndRowCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	store := NewOutputStore(path)

	count, err := store.RowCount()
	if err != nil || count != 0 {
		t.Fatalf("RowCount() on missing store = %d, %v; want 0, nil", count, err)
	}

	if err := store.EnsureInitialized(); err != nil {
		t.Fatalf("EnsureInitialized() error = %v", err)
	}
	if count, _ := store.RowCount(); count != 0 {
		t.Fatalf("RowCount() on fresh store = %d, want 0", count)
	}

	for i := 1; i <= 3; i++ {
		row, err := store.Append(events.AnalysisResult{
			AudioName:  fmt.Sprintf("call_%d.wav", i),
			Transcript: "current nahi hai",
			Summary:    "complain for unavailability of current",
			Intent:     "power cut",
		})
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		if row != i+1 {
			t.Errorf("Append() wrote row %d, want %d", row, i+1)
		}
	}

	count, err = store.RowCount()
	if err != nil || count != 3 {
		t.Errorf("RowCount() = %d, %v; want 3", count, err)
	}

	rows := readAllRows(t, path)
	if rows[3][0] != "call_3.wav" || rows[3][3] != "power cut" {
		t.Errorf("last row = %v", rows[3])
	}
}

func TestOutputStore_AppendCreatesMissingStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lazy.xlsx")
	store := NewOutputStore(path)

	if _, err := store.Append(events.AnalysisResult{Transcript: "x", Intent: "unknown"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	rows := readAllRows(t, path)
	if len(rows) != 2 || rows[0][0] != "Audio Name" {
		t.Errorf("rows = %v, want header plus one row", rows)
	}
}

func TestOutputStore_ConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	store := NewOutputStore(path)
	if err := store.EnsureInitialized(); err != nil {
		t.Fatalf("EnsureInitialized() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := store.Append(events.AnalysisResult{AudioName: fmt.Sprintf("call_%d.wav", i), Transcript: "t"}); err != nil {
				t.Errorf("Append(%d) error = %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	rows := readAllRows(t, path)
	if len(rows) != 11 {
		t.Fatalf("expected header plus 10 rows, got %d", len(rows))
	}
	seen := make(map[string]bool)
	for _, row := range rows[1:] {
		if seen[row[0]] {
			t.Errorf("duplicate row %q", row[0])
		}
		seen[row[0]] = true
	}
	if len(seen) != 10 {
		t.Errorf("expected 10 distinct rows, got %d", len(seen))
	}
}

func TestOutputStore_CorruptedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.xlsx")
	if err := os.WriteFile(path, []byte("not a zip archive"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	store := NewOutputStore(path)
	if _, err := store.RowCount(); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("RowCount() error = %v, want ErrStoreUnavailable", err)
	}
	if _, err := store.Append(events.AnalysisResult{Transcript: "x"}); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Append() error = %v, want ErrStoreUnavailable", err)
	}
}
