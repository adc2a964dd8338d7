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

package agent

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const sectionRule = "============================================================"

// WriteTranscript renders a turn as a plain-text report
func WriteTranscript(w io.Writer, turn TurnResult, audioName string) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Audio File: %s\n", audioName)
	fmt.Fprintf(&b, "Language: %s\n", turn.Language)
	fmt.Fprintf(&b, "Date: %s\n\n", turn.At.Format("2006-01-02 15:04:05"))

	section(&b, "TRANSCRIPTION", turn.Transcript)
	if turn.Analysis != nil {
		section(&b, "ANALYSIS", fmt.Sprintf("Summary: %s\nIntent: %s", turn.Analysis.Summary, turn.Analysis.Intent))
	}
	if turn.Reply != "" {
		section(&b, "AI RESPONSE", turn.Reply)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func section(b *strings.Builder, title, body string) {
	fmt.Fprintf(b, "%s\n%s\n%s\n%s\n\n", sectionRule, title, sectionRule, body)
}

// SaveTranscript writes the turn report into dir and returns the file path
func SaveTranscript(dir string, turn TurnResult, audioName string) (string, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create transcript directory: %w", err)
	}

	name := fmt.Sprintf("transcript_%s.txt", turn.At.Format("20060102_150405"))
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create transcript: %w", err)
	}
	defer f.Close()

	if err := WriteTranscript(f, turn, audioName); err != nil {
		return "", fmt.Errorf("failed to write transcript: %w", err)
	}
	return path, nil
}
