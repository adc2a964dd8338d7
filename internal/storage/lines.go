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
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/loqalabs/loqa-analyst/internal/events"
	"github.com/loqalabs/loqa-analyst/internal/logging"
	"go.uber.org/zap"
)

// LineSource reads one transcript per line from a UTF-8 text file. Row
// indexes are 1-based line numbers; blank lines are returned as empty records.
type LineSource struct {
	path string
}

// NewLineSource creates a source for the text file at path
func NewLineSource(path string) *LineSource {
	return &LineSource{path: path}
}

// Path returns the file path
func (s *LineSource) Path() string {
	return s.path
}

// ReadRows returns up to limit lines starting at line startRow
func (s *LineSource) ReadRows(startRow, limit int) ([]events.TranscriptRecord, error) {
	if startRow < 1 {
		startRow = 1
	}

	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, s.path)
		}
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	defer f.Close()

	var records []events.TranscriptRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for line := 1; scanner.Scan(); line++ {
		if line < startRow {
			continue
		}
		if limit > 0 && len(records) >= limit {
			break
		}
		text := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		records = append(records, events.TranscriptRecord{RowIndex: line, Text: text})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrStoreUnavailable, s.path, err)
	}

	logging.LogStoreOperation("read_lines", s.path,
		zap.Int("start_row", startRow),
		zap.Int("records", len(records)),
	)
	return records, nil
}
