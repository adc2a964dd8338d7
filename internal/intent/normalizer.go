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

package intent

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	// Unknown is the label used when nothing usable survives normalization
	Unknown = "unknown"

	// MaxTokens is the widest intent label the output workbook accepts
	MaxTokens = 3
)

var (
	// Longest alternatives first so "intent is" wins over "intent"
	labelPrefixPattern = regexp.MustCompile(`(?i)^(?:the intent is|user intent is|user intent|intent is|intent)\b[:\s]*`)

	trailingPunctuationPattern = regexp.MustCompile(`[.,;:!?]+$`)
)

// NormalizeIntent reduces a free-text model reply to a lower-case label of at
// most MaxTokens words. It never fails; unusable input yields Unknown.
func NormalizeIntent(raw string) string {
	text := strings.TrimSpace(raw)
	text = strings.TrimSpace(labelPrefixPattern.ReplaceAllString(text, ""))
	text = strings.TrimSpace(strings.Trim(text, `"'`))
	text = trailingPunctuationPattern.ReplaceAllString(text, "")

	tokens := make([]string, 0, MaxTokens)
	for _, field := range strings.Fields(text) {
		token := cleanToken(field)
		if token == "" {
			continue
		}
		tokens = append(tokens, token)
		if len(tokens) == MaxTokens {
			break
		}
	}

	if len(tokens) == 0 {
		return Unknown
	}
	return strings.Join(tokens, " ")
}

// cleanToken keeps letters, digits, combining marks and inner hyphens
func cleanToken(field string) string {
	var b strings.Builder
	for _, r := range field {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) || r == '-' {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return strings.Trim(b.String(), "-")
}

// CapTokens keeps the first n whitespace separated words of label
func CapTokens(label string, n int) string {
	fields := strings.Fields(label)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}

// NormalizeSummary trims a summary reply and the quotes models wrap it in
func NormalizeSummary(raw string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), `"'`))
}
