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

// Package language guesses the script-level language of a transcript.
package language

import (
	"fmt"
	"strings"
	"unicode"
)

// Tag identifies one of the supported transcript languages
type Tag string

const (
	Hindi   Tag = "hindi"
	English Tag = "english"
	Urdu    Tag = "urdu"
	Telugu  Tag = "telugu"
)

// MinRatio is the share of alphanumeric characters a script must exceed
// before the classifier trusts it over the caller's default.
const MinRatio = 0.10

// All lists the supported tags in scoring order. Ties go to the earlier tag.
var All = []Tag{Hindi, English, Urdu, Telugu}

// Parse converts a user supplied language name into a Tag
func Parse(name string) (Tag, error) {
	candidate := Tag(strings.ToLower(strings.TrimSpace(name)))
	for _, tag := range All {
		if tag == candidate {
			return tag, nil
		}
	}
	return "", fmt.Errorf("unsupported language %q (want one of hindi, english, urdu, telugu)", name)
}

// String implements fmt.Stringer
func (t Tag) String() string {
	return string(t)
}

// inScript reports whether r belongs to the script associated with tag
func inScript(tag Tag, r rune) bool {
	switch tag {
	case Hindi:
		return r >= 0x0900 && r <= 0x097F
	case Urdu:
		return r >= 0x0600 && r <= 0x06FF
	case Telugu:
		return r >= 0x0C00 && r <= 0x0C7F
	case English:
		return r < unicode.MaxASCII && unicode.IsLetter(r)
	}
	return false
}

// Ratios returns, for every supported tag, the number of characters in that
// tag's script divided by the number of alphanumeric characters in text.
// A text without alphanumeric characters yields an empty map.
func Ratios(text string) map[Tag]float64 {
	counts := make(map[Tag]int, len(All))
	alnum := 0

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			alnum++
		}
		for _, tag := range All {
			if inScript(tag, r) {
				counts[tag]++
			}
		}
	}

	ratios := make(map[Tag]float64, len(All))
	if alnum == 0 {
		return ratios
	}
	for _, tag := range All {
		ratios[tag] = float64(counts[tag]) / float64(alnum)
	}
	return ratios
}

// Classify picks the tag whose script dominates text. When the best ratio
// does not exceed MinRatio, or text has no alphanumeric characters, the
// supplied fallback is returned unchanged.
func Classify(text string, fallback Tag) Tag {
	ratios := Ratios(text)
	if len(ratios) == 0 {
		return fallback
	}

	best := fallback
	bestRatio := -1.0
	for _, tag := range All {
		if ratios[tag] > bestRatio {
			best = tag
			bestRatio = ratios[tag]
		}
	}

	if bestRatio <= MinRatio {
		return fallback
	}
	return best
}
