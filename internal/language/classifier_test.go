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

package language

import (
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		name     string
		text     string
		fallback Tag
		expected Tag
	}{
		{
			name:     "devanagari",
			text:     "बिजली कब आएगी",
			fallback: English,
			expected: Hindi,
		},
		{
			name:     "urdu_script",
			text:     "بجلی کب آئے گی",
			fallback: Hindi,
			expected: Urdu,
		},
		{
			name:     "telugu_script",
			text:     "కరెంట్ ఎప్పుడు వస్తుంది",
			fallback: Hindi,
			expected: Telugu,
		},
		{
			name:     "transliterated_hindi_reads_as_latin",
			text:     "Hi Tech City mein subah se current nahi hai",
			fallback: Hindi,
			expected: English,
		},
		{
			name:     "empty_text_uses_fallback",
			text:     "",
			fallback: Telugu,
			expected: Telugu,
		},
		{
			name:     "symbols_only_use_fallback",
			text:     "?!... ---",
			fallback: Urdu,
			expected: Urdu,
		},
		{
			name:     "digits_only_use_fallback",
			text:     "9876543210",
			fallback: Hindi,
			expected: Hindi,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.text, tc.fallback)
			if got != tc.expected {
				t.Errorf("Classify(%q, %s) = %s, want %s", tc.text, tc.fallback, got, tc.expected)
			}
		})
	}
}

func TestClassifyBelowThresholdReturnsFallback(t *testing.T) {
	// one Latin letter against ten digits: ratio 1/11 is under MinRatio
	text := "a" + strings.Repeat("1", 10)

	ratios := Ratios(text)
	if ratios[English] > MinRatio {
		t.Fatalf("English ratio = %f, expected at most %f", ratios[English], MinRatio)
	}

	for _, fallback := range All {
		if got := Classify(text, fallback); got != fallback {
			t.Errorf("Classify(%q, %s) = %s, want fallback", text, fallback, got)
		}
	}
}

func TestClassifyExactlyAtThresholdReturnsFallback(t *testing.T) {
	// one Latin letter against nine digits: ratio is exactly 0.10
	text := "a" + strings.Repeat("1", 9)
	if got := Classify(text, Telugu); got != Telugu {
		t.Errorf("Classify at threshold = %s, want %s", got, Telugu)
	}
}

func TestClassifyTieGoesToEarlierTag(t *testing.T) {
	// equal counts of Devanagari and Latin letters
	text := "कख ab"
	if got := Classify(text, Urdu); got != Hindi {
		t.Errorf("Classify(%q) = %s, want %s", text, got, Hindi)
	}
}

func TestRatios(t *testing.T) {
	ratios := Ratios("ab12")
	if ratios[English] != 0.5 {
		t.Errorf("English ratio = %f, want 0.5", ratios[English])
	}
	if ratios[Hindi] != 0 {
		t.Errorf("Hindi ratio = %f, want 0", ratios[Hindi])
	}

	if got := Ratios("   "); len(got) != 0 {
		t.Errorf("Ratios of blank text = %v, want empty", got)
	}
}

func TestParse(t *testing.T) {
	tag, err := Parse(" Hindi ")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if tag != Hindi {
		t.Errorf("Parse() = %s, want %s", tag, Hindi)
	}

	if _, err := Parse("klingon"); err == nil {
		t.Error("Parse() expected error for unsupported language")
	}
}
