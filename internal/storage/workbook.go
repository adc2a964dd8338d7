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
	"strings"
	"sync"
	"time"

	"github.com/loqalabs/loqa-analyst/internal/events"
	"github.com/loqalabs/loqa-analyst/internal/logging"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ErrStoreUnavailable wraps every failure to read or write persistent state.
// The batch runner aborts when it sees one.
var ErrStoreUnavailable = errors.New("store unavailable")

// OutputHeader is the fixed first row of the output workbook
var OutputHeader = []string{"Audio Name", "Transcribe", "Summary", "Intent"}

const outputSheet = "Transcriptions"

var outputColumnWidths = map[string]float64{"A": 40, "B": 50, "C": 50, "D": 30}

// OutputStore is the append-only output workbook. Appends are serialized by
// an internal lock; the store assumes one process writes a given file.
type OutputStore struct {
	path string
	mu   sync.Mutex
}

// NewOutputStore creates a store for the workbook at path
func NewOutputStore(path string) *OutputStore {
	return &OutputStore{path: path}
}

// Path returns the workbook path
func (s *OutputStore) Path() string {
	return s.path
}

// Exists reports whether the workbook file is present
func (s *OutputStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// EnsureInitialized writes the header when the workbook is missing or its
// first row is empty. Calling it repeatedly never duplicates the header.
func (s *OutputStore) EnsureInitialized() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureInitializedLocked()
}

func (s *OutputStore) ensureInitializedLocked() error {
	if !s.Exists() {
		return s.create()
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrStoreUnavailable, s.path, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", ErrStoreUnavailable, s.path, err)
	}
	if len(rows) > 0 && !isBlankRow(rows[0]) {
		return nil
	}

	if err := writeHeader(f, sheet); err != nil {
		return err
	}
	if err := f.Save(); err != nil {
		return fmt.Errorf("%w: save %s: %w", ErrStoreUnavailable, s.path, err)
	}
	logging.LogStoreOperation("write_header", s.path)
	return nil
}

func (s *OutputStore) create() error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), outputSheet); err != nil {
		return fmt.Errorf("%w: rename sheet: %w", ErrStoreUnavailable, err)
	}
	if err := writeHeader(f, outputSheet); err != nil {
		return err
	}
	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrStoreUnavailable, s.path, err)
	}

	logging.Sugar.Infof("📄 Created output workbook: %s", s.path)
	return nil
}

func writeHeader(f *excelize.File, sheet string) error {
	header := make([]interface{}, len(OutputHeader))
	for i, title := range OutputHeader {
		header[i] = title
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("%w: write header: %w", ErrStoreUnavailable, err)
	}

	style, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF", Size: 12},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"366092"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("%w: header style: %w", ErrStoreUnavailable, err)
	}
	if err := f.SetCellStyle(sheet, "A1", "D1", style); err != nil {
		return fmt.Errorf("%w: apply header style: %w", ErrStoreUnavailable, err)
	}

	for column, width := range outputColumnWidths {
		if err := f.SetColWidth(sheet, column, column, width); err != nil {
			return fmt.Errorf("%w: column width: %w", ErrStoreUnavailable, err)
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("%w: freeze header: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// Append writes result into the first free row and saves the workbook. It
// returns the sheet row that was written.
func (s *OutputStore) Append(result events.AnalysisResult) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	if err := s.ensureInitializedLocked(); err != nil {
		return 0, err
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return 0, fmt.Errorf("%w: open %s: %w", ErrStoreUnavailable, s.path, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet)
	if err != nil {
		return 0, fmt.Errorf("%w: read %s: %w", ErrStoreUnavailable, s.path, err)
	}
	next := len(rows) + 1

	columns := result.Columns()
	values := make([]interface{}, len(columns))
	for i, value := range columns {
		values[i] = value
	}

	cell, err := excelize.CoordinatesToCellName(1, next)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return 0, fmt.Errorf("%w: write row %d: %w", ErrStoreUnavailable, next, err)
	}

	style, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return 0, fmt.Errorf("%w: row style: %w", ErrStoreUnavailable, err)
	}
	last, err := excelize.CoordinatesToCellName(len(values), next)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if err := f.SetCellStyle(sheet, cell, last, style); err != nil {
		return 0, fmt.Errorf("%w: apply row style: %w", ErrStoreUnavailable, err)
	}

	if err := f.Save(); err != nil {
		return 0, fmt.Errorf("%w: save %s: %w", ErrStoreUnavailable, s.path, err)
	}

	logging.LogStoreOperation("append", s.path,
		zap.Int("row", next),
		zap.Duration("elapsed", time.Since(start)),
	)
	return next, nil
}

// RowCount returns the number of data rows, excluding the header. A missing
// workbook has zero rows.
func (s *OutputStore) RowCount() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Exists() {
		return 0, nil
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return 0, fmt.Errorf("%w: open %s: %w", ErrStoreUnavailable, s.path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(f.GetActiveSheetIndex()))
	if err != nil {
		return 0, fmt.Errorf("%w: read %s: %w", ErrStoreUnavailable, s.path, err)
	}
	if len(rows) <= 1 {
		return 0, nil
	}
	return len(rows) - 1, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
