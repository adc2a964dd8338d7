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
	"strings"
	"testing"
	"unicode"
)

func TestNormalizeIntent(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{"Plain label", "power cut", "power cut"},
		{"Intent prefix with colon", "Intent: power cut issue.", "power cut issue"},
		{"Intent prefix without colon", "intent power cut", "power cut"},
		{"The intent is", "The intent is bill inquiry", "bill inquiry"},
		{"Intent is", "Intent is: payment issue!", "payment issue"},
		{"User intent", "USER INTENT: connection request", "connection request"},
		{"Double quotes", `"service request"`, "service request"},
		{"Single quotes", "'complaint'", "complaint"},
		{"Trailing punctuation run", "bill inquiry?!...", "bill inquiry"},
		{"Capped to three words", "complain about the power cut in sector five", "complain about the"},
		{"Hyphen kept inside word", "power-cut issue", "power-cut issue"},
		{"Inner punctuation removed", "bill, inquiry (urgent)", "bill inquiry urgent"},
		{"Lower-cased", "POWER Cut", "power cut"},
		{"Surrounding whitespace", "  \n power cut \t ", "power cut"},
		{"Empty reply", "", Unknown},
		{"Whitespace only", "   \n\t", Unknown},
		{"Label only", "Intent:", Unknown},
		{"Punctuation only", `"...!?"`, Unknown},
		{"Lonely hyphens", "- -- ---", Unknown},
		{"Devanagari kept", "बिजली कटौती", "बिजली कटौती"},
		{"Word starting with intent", "intentional damage", "intentional damage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeIntent(tt.raw); got != tt.expected {
				t.Errorf("NormalizeIntent(%q) = %q, want %q", tt.raw, got, tt.expected)
			}
		})
	}
}

func TestNormalizeIntent_Properties(t *testing.T) {
	inputs := []string{
		"Intent: Power Cut Issue In My Area Since Morning.",
		`The intent is "Complaint; about billing!"`,
		"¿¡ intent !?",
		"a, b, c, d, e",
		"--power-- --cut--",
		"user_intent: bill",
		strings.Repeat("word ", 50),
		"\"\"\"''",
	}

	for _, raw := range inputs {
		got := NormalizeIntent(raw)
		tokens := strings.Fields(got)

		if len(tokens) > MaxTokens {
			t.Errorf("NormalizeIntent(%q) = %q has %d tokens", raw, got, len(tokens))
		}
		if got != strings.ToLower(got) {
			t.Errorf("NormalizeIntent(%q) = %q is not lower-case", raw, got)
		}
		for _, token := range tokens {
			first, last := []rune(token)[0], []rune(token)[len([]rune(token))-1]
			if unicode.IsPunct(first) || unicode.IsPunct(last) {
				t.Errorf("NormalizeIntent(%q) token %q has punctuation at a boundary", raw, token)
			}
		}
		if got == "" {
			t.Errorf("NormalizeIntent(%q) returned empty string", raw)
		}
	}
}

func TestCapTokens(t *testing.T) {
	if got := CapTokens("one two three four", 3); got != "one two three" {
		t.Errorf("CapTokens() = %q", got)
	}
	if got := CapTokens("  one   two ", 3); got != "one two" {
		t.Errorf("CapTokens() = %q", got)
	}
	if got := CapTokens("", 3); got != "" {
		t.Errorf("CapTokens() = %q", got)
	}
}

func TestNormalizeSummary(t *testing.T) {
	tests := map[string]string{
		`  "complain for unavailability of current"  `: "complain for unavailability of current",
		"'no power since morning'":                     "no power since morning",
		"plain sentence.":                              "plain sentence.",
		"":                                             "",
	}
	for raw, want := range tests {
		if got := NormalizeSummary(raw); got != want {
			t.Errorf("NormalizeSummary(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestPrompts(t *testing.T) {
	text := "Hi Tech City mein subah se current nahi hai"
	if !strings.Contains(IntentPrompt(text), "Text: "+text) {
		t.Error("IntentPrompt() should embed the transcript")
	}
	if !strings.Contains(SummaryPrompt(text), text) {
		t.Error("SummaryPrompt() should embed the transcript")
	}
	if !strings.Contains(IntentSystemPrompt, "2-3 words in English") {
		t.Error("IntentSystemPrompt should ask for 2-3 English words")
	}
}
