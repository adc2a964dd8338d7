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
	"os"
	"path/filepath"
	"testing"
)

func TestLineSource_ReadRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "texts.txt")
	content := "\ufeffcurrent nahi hai\n\n  bill zyada aaya  \nmeter kharab hai\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	source := NewLineSource(path)
	records, err := source.ReadRows(0, 0)
	if err != nil {
		t.Fatalf("ReadRows() error = %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("got %d records, want 4", len(records))
	}
	if records[0].Text != "current nahi hai" || records[0].RowIndex != 1 {
		t.Errorf("first record = %+v", records[0])
	}
	if !records[1].IsEmpty() {
		t.Errorf("blank line should be an empty record: %+v", records[1])
	}
	if records[2].Text != "bill zyada aaya" {
		t.Errorf("third record not trimmed: %q", records[2].Text)
	}

	records, err = source.ReadRows(3, 1)
	if err != nil {
		t.Fatalf("ReadRows(3, 1) error = %v", err)
	}
	if len(records) != 1 || records[0].RowIndex != 3 {
		t.Errorf("ReadRows(3, 1) = %+v", records)
	}
}

func TestLineSource_Missing(t *testing.T) {
	_, err := NewLineSource(filepath.Join(t.TempDir(), "nope.txt")).ReadRows(1, 0)
	if !errors.Is(err, ErrSourceNotFound) {
		t.Errorf("error = %v, want ErrSourceNotFound", err)
	}
}
