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
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

// writeSourceWorkbook creates an input workbook with a header and the given rows
func writeSourceWorkbook(t *testing.T, rows [][]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.xlsx")

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	all := append([][]string{{"Audio Name", "Transcribe"}}, rows...)
	for i, row := range all {
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			t.Fatalf("SetSheetRow() error = %v", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs() error = %v", err)
	}
	return path
}

func TestSourceReader_ReadRows(t *testing.T) {
	path := writeSourceWorkbook(t, [][]string{
		{"call_1.wav", "Hi Tech City mein subah se current nahi hai"},
		{"call_2.wav", "  bill zyada aaya hai  "},
		{"call_3.wav", ""},
		{"", "naya connection chahiye"},
	})
	reader := NewSourceReader(path)

	total, err := reader.TotalRows()
	if err != nil || total != 4 {
		t.Fatalf("TotalRows() = %d, %v; want 4", total, err)
	}

	records, err := reader.ReadRows(FirstDataRow, 10)
	if err != nil {
		t.Fatalf("ReadRows() error = %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("ReadRows() returned %d records, want 4", len(records))
	}
	if records[0].RowIndex != 2 || records[0].AudioName != "call_1.wav" {
		t.Errorf("records[0] = %+v", records[0])
	}
	if records[1].Text != "bill zyada aaya hai" {
		t.Errorf("records[1].Text = %q, want trimmed text", records[1].Text)
	}
	if !records[2].IsEmpty() {
		t.Errorf("records[2] should be empty: %+v", records[2])
	}
	if records[3].AudioName != "" || records[3].RowIndex != 5 {
		t.Errorf("records[3] = %+v", records[3])
	}
}

func TestSourceReader_StartAndLimit(t *testing.T) {
	path := writeSourceWorkbook(t, [][]string{
		{"a.wav", "one"}, {"b.wav", "two"}, {"c.wav", "three"}, {"d.wav", "four"},
	})
	reader := NewSourceReader(path)

	records, err := reader.ReadRows(3, 2)
	if err != nil {
		t.Fatalf("ReadRows() error = %v", err)
	}
	if len(records) != 2 || records[0].Text != "two" || records[1].Text != "three" {
		t.Errorf("ReadRows(3, 2) = %+v", records)
	}

	records, err = reader.ReadRows(1, 0)
	if err != nil {
		t.Fatalf("ReadRows() error = %v", err)
	}
	if len(records) != 4 || records[0].RowIndex != FirstDataRow {
		t.Errorf("ReadRows(1, 0) should clamp to the first data row and read all: %+v", records)
	}

	records, err = reader.ReadRows(50, 5)
	if err != nil || len(records) != 0 {
		t.Errorf("ReadRows past the end = %v, %v; want none", records, err)
	}
}

func TestSourceReader_Missing(t *testing.T) {
	reader := NewSourceReader(filepath.Join(t.TempDir(), "nope.xlsx"))
	if _, err := reader.ReadRows(FirstDataRow, 5); !errors.Is(err, ErrSourceNotFound) {
		t.Errorf("ReadRows() error = %v, want ErrSourceNotFound", err)
	}
}
