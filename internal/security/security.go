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

package security

import (
	"errors"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

var (
	// ErrInvalidRunID is returned when a run ID is not a canonical UUID
	ErrInvalidRunID = errors.New("invalid run ID")

	// ErrInvalidWorkbookPath is returned for paths that cannot name a workbook
	ErrInvalidWorkbookPath = errors.New("invalid workbook path")
)

// SanitizeLogInput removes newline characters to prevent log injection attacks
// This function should be used for all user-controlled data before logging
func SanitizeLogInput(input string) string {
	sanitized := strings.ReplaceAll(input, "\n", "")
	sanitized = strings.ReplaceAll(sanitized, "\r", "")
	return sanitized
}

// TruncateForLog sanitizes input and cuts it to at most maxRunes runes,
// marking the cut with "...".
func TruncateForLog(input string, maxRunes int) string {
	sanitized := SanitizeLogInput(input)
	if maxRunes <= 0 || utf8.RuneCountInString(sanitized) <= maxRunes {
		return sanitized
	}
	runes := []rune(sanitized)
	return string(runes[:maxRunes]) + "..."
}

// ValidateRunID ensures a run ID taken from a URL is a canonical UUID
func ValidateRunID(runID string) error {
	if len(runID) != 36 {
		return ErrInvalidRunID
	}
	if _, err := uuid.Parse(runID); err != nil {
		return ErrInvalidRunID
	}
	return nil
}

// ValidateWorkbookPath checks that path names an .xlsx file
func ValidateWorkbookPath(path string) error {
	if strings.TrimSpace(path) == "" || strings.ContainsRune(path, 0) {
		return ErrInvalidWorkbookPath
	}
	if !strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return ErrInvalidWorkbookPath
	}
	return nil
}
