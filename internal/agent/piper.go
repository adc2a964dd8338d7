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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/loqalabs/loqa-analyst/internal/config"
	"github.com/loqalabs/loqa-analyst/internal/language"
	"github.com/loqalabs/loqa-analyst/internal/logging"
	"go.uber.org/zap"
)

// Player receives synthesized WAV audio
type Player interface {
	Play(ctx context.Context, wav []byte) error
}

var defaultVoices = map[language.Tag]string{
	language.Hindi:   "hi_IN-arya-medium",
	language.Telugu:  "te_IN-maya-medium",
	language.English: "en_US-lessac-medium",
}

type piperRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

// PiperSpeaker synthesizes speech through a Piper HTTP server
type PiperSpeaker struct {
	baseURL   string
	voice     string
	client    *http.Client
	player    Player
	semaphore chan struct{}
}

// NewPiperSpeaker creates a speaker for the already resolved cfg.PiperURL
func NewPiperSpeaker(cfg config.AgentConfig, player Player) (*PiperSpeaker, error) {
	if cfg.PiperURL == "" {
		return nil, fmt.Errorf("Piper URL cannot be empty")
	}
	if player == nil {
		return nil, fmt.Errorf("player cannot be nil")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	speaker := &PiperSpeaker{
		baseURL:   strings.TrimSuffix(cfg.PiperURL, "/"),
		voice:     cfg.Voice,
		client:    &http.Client{Timeout: timeout},
		player:    player,
		semaphore: make(chan struct{}, 1),
	}

	logging.Sugar.Infow("🔊 Piper speaker initialized",
		"url", speaker.baseURL,
		"voice", cfg.Voice,
	)
	return speaker, nil
}

// VoiceFor returns the configured voice, or the default voice for lang
func (p *PiperSpeaker) VoiceFor(lang language.Tag) string {
	if p.voice != "" {
		return p.voice
	}
	return defaultVoices[lang]
}

// Speak synthesizes text and hands the audio to the player
func (p *PiperSpeaker) Speak(ctx context.Context, text string, lang language.Tag) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("text cannot be empty")
	}

	// Utterances are played one at a time
	select {
	case p.semaphore <- struct{}{}:
		defer func() { <-p.semaphore }()
	case <-ctx.Done():
		return ctx.Err()
	}

	voice := p.VoiceFor(lang)
	body, err := json.Marshal(piperRequest{Text: text, Voice: voice})
	if err != nil {
		return fmt.Errorf("failed to marshal Piper request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		logging.LogError(err, "Piper request failed", zap.String("voice", voice))
		return fmt.Errorf("Piper HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		logging.LogWarn("Piper synthesis rejected",
			zap.Int("status_code", resp.StatusCode),
			zap.String("response_body", string(respBody)),
		)
		return fmt.Errorf("Piper request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read Piper audio: %w", err)
	}

	logging.Logger.Debug("speech synthesized",
		zap.String("voice", voice),
		zap.Int("text_length", len(text)),
		zap.Int("audio_bytes", len(wav)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return p.player.Play(ctx, wav)
}

// PiperReachable returns a reachability check for config.ResolveCandidate
func PiperReachable(timeout time.Duration) func(string) bool {
	client := &http.Client{Timeout: timeout}
	return func(candidate string) bool {
		resp, err := client.Get(strings.TrimSuffix(candidate, "/") + "/")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode < http.StatusInternalServerError
	}
}

// DirPlayer writes each utterance to a numbered WAV file in Dir
type DirPlayer struct {
	Dir   string
	count atomic.Int64
}

// Play saves wav as the next file in the directory
func (d *DirPlayer) Play(_ context.Context, wav []byte) error {
	if err := os.MkdirAll(d.Dir, 0750); err != nil {
		return fmt.Errorf("failed to create audio directory: %w", err)
	}
	n := d.count.Add(1)
	path := filepath.Join(d.Dir, fmt.Sprintf("utterance_%03d.wav", n))
	if err := os.WriteFile(path, wav, 0600); err != nil {
		return fmt.Errorf("failed to write audio: %w", err)
	}
	return nil
}

// DiscardPlayer drops synthesized audio
type DiscardPlayer struct{}

// Play does nothing
func (DiscardPlayer) Play(context.Context, []byte) error { return nil }
