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

	"github.com/loqalabs/loqa-analyst/internal/events"
	"github.com/loqalabs/loqa-analyst/internal/logging"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ErrSourceNotFound is returned when the input workbook does not exist
var ErrSourceNotFound = errors.New("source workbook not found")

// FirstDataRow is the sheet row right below the header
const FirstDataRow = 2

// SourceReader reads transcripts from the input workbook: row 1 is a header,
// column A holds the audio name and column B the transcript.
type SourceReader struct {
	path string
}

// NewSourceReader creates a reader for the workbook at path
func NewSourceReader(path string) *SourceReader {
	return &SourceReader{path: path}
}

// Path returns the workbook path
func (r *SourceReader) Path() string {
	return r.path
}

func (r *SourceReader) rows() ([][]string, error) {
	if _, err := os.Stat(r.path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, r.path)
		}
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	f, err := excelize.OpenFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrStoreUnavailable, r.path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(f.GetActiveSheetIndex()))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrStoreUnavailable, r.path, err)
	}
	return rows, nil
}

// TotalRows returns the number of data rows below the header
func (r *SourceReader) TotalRows() (int, error) {
	rows, err := r.rows()
	if err != nil {
		return 0, err
	}
	if len(rows) <= 1 {
		return 0, nil
	}
	return len(rows) - 1, nil
}

// ReadRows returns up to limit records starting at sheet row startRow.
// Rows with an empty transcript are returned too; callers classify them.
func (r *SourceReader) ReadRows(startRow, limit int) ([]events.TranscriptRecord, error) {
	if startRow < FirstDataRow {
		startRow = FirstDataRow
	}

	rows, err := r.rows()
	if err != nil {
		return nil, err
	}

	var records []events.TranscriptRecord
	for sheetRow := startRow; sheetRow <= len(rows); sheetRow++ {
		if limit > 0 && len(records) >= limit {
			break
		}
		records = append(records, recordFromRow(sheetRow, rows[sheetRow-1]))
	}

	logging.LogStoreOperation("read_source", r.path,
		zap.Int("start_row", startRow),
		zap.Int("records", len(records)),
	)
	return records, nil
}

func recordFromRow(sheetRow int, cells []string) events.TranscriptRecord {
	record := events.TranscriptRecord{RowIndex: sheetRow}
	if len(cells) > 0 {
		record.AudioName = strings.TrimSpace(cells[0])
	}
	if len(cells) > 1 {
		record.Text = strings.TrimSpace(cells[1])
	}
	return record
}
