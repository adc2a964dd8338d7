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

// Package resume works out where a sequential batch run should continue and
// how far a source workbook has been processed.
package resume

import (
	"fmt"

	"github.com/loqalabs/loqa-analyst/internal/logging"
	"github.com/loqalabs/loqa-analyst/internal/storage"
	"go.uber.org/zap"
)

// RowCounter is the part of the output store the locator reads
type RowCounter interface {
	Exists() bool
	RowCount() (int, error)
}

// NextRow returns the first source row not yet reflected in the output
// store: the data row count plus the header plus one. A missing store starts
// at the first data row. Read failures are returned, never guessed around.
//
// The result is only meaningful for outputs written in source order, that is
// by sequential runs. Concurrent runs resume from the ledger instead.
func NextRow(store RowCounter) (int, error) {
	if !store.Exists() {
		return storage.FirstDataRow, nil
	}

	count, err := store.RowCount()
	if err != nil {
		return 0, fmt.Errorf("failed to locate resume row: %w", err)
	}

	next := count + storage.FirstDataRow
	logging.Logger.Info("📍 Resume point located",
		zap.String("component", "resume"),
		zap.Int("processed_rows", count),
		zap.Int("next_row", next),
	)
	return next, nil
}
