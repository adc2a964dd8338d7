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
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/loqalabs/loqa-analyst/internal/events"
	"github.com/loqalabs/loqa-analyst/internal/language"
	"github.com/loqalabs/loqa-analyst/internal/llm"
	"github.com/loqalabs/loqa-analyst/internal/logging"
	"github.com/loqalabs/loqa-analyst/internal/security"
	"go.uber.org/zap"
)

const (
	replyMaxTokens   = 256
	replyTemperature = 0.4

	// SpeechPause separates the echoed input from the spoken reply
	SpeechPause = 500 * time.Millisecond
)

// ErrNoSpeech is returned when a recording transcribes to nothing
var ErrNoSpeech = errors.New("no speech detected")

// Recorder captures one utterance from the user
type Recorder interface {
	Record(ctx context.Context) ([]byte, error)
}

// Transcriber turns recorded audio into text in the given language
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, lang language.Tag) (string, error)
}

// Speaker renders text as speech in the given language
type Speaker interface {
	Speak(ctx context.Context, text string, lang language.Tag) error
}

// Processor analyzes a transcript
type Processor interface {
	Process(ctx context.Context, text, audioName string, fallback language.Tag) (*events.AnalysisResult, error)
}

// TurnResult is everything one conversational turn produced. Language is the
// active language for the next turn.
type TurnResult struct {
	Transcript string
	Analysis   *events.AnalysisResult
	Reply      string
	Language   language.Tag
	At         time.Time
}

var systemPrompts = map[language.Tag]string{
	language.Hindi:   "आप एक बुद्धिमान और सहायक AI सहायक हैं। उपयोगकर्ता के प्रश्नों का स्पष्ट, संक्षिप्त और उपयोगी उत्तर दें। हमेशा सही और प्रासंगिक जानकारी प्रदान करें।",
	language.English: "You are an intelligent and helpful AI assistant. Provide clear, concise, and useful responses to user questions. Always give accurate and relevant information.",
	language.Urdu:    "آپ ایک ذہین اور مددگار AI معاون ہیں۔ صارف کے سوالات کا واضح، مختصر اور مفید جواب دیں۔ ہمیشہ درست اور متعلقہ معلومات فراہم کریں۔",
	language.Telugu:  "మీరు ఒక తెలివైన మరియు సహాయక AI సహాయకుడు. వినియోగదారు ప్రశ్నలకు స్పష్టమైన, సంక్షిప్తమైన మరియు ఉపయోగకరమైన సమాధానాలు ఇవ్వండి. ఎల్లప్పుడూ ఖచ్చితమైన మరియు సంబంధిత సమాచారాన్ని అందించండి.",
}

type spokenPrefixes struct {
	input string
	reply string
}

var prefixes = map[language.Tag]spokenPrefixes{
	language.Hindi:  {input: "आपने कहा: ", reply: "AI ने उत्तर दिया: "},
	language.Telugu: {input: "మీరు చెప్పారు: ", reply: "AI సమాధానం: "},
	language.Urdu:   {input: "آپ نے کہا: ", reply: "AI کا جواب: "},
}

// SystemPrompt returns the assistant instruction for lang, falling back to English
func SystemPrompt(lang language.Tag) string {
	if prompt, ok := systemPrompts[lang]; ok {
		return prompt
	}
	return systemPrompts[language.English]
}

// InputPrefix is spoken before echoing the user's words back
func InputPrefix(lang language.Tag) string {
	if p, ok := prefixes[lang]; ok {
		return p.input
	}
	return "You said: "
}

// ReplyPrefix is spoken before the assistant reply
func ReplyPrefix(lang language.Tag) string {
	if p, ok := prefixes[lang]; ok {
		return p.reply
	}
	return "AI replied: "
}

// Agent runs the record, transcribe, analyze, reply and speak pipeline. It
// holds no conversational state; the active language is threaded through
// RunTurn by the caller.
type Agent struct {
	recorder    Recorder
	transcriber Transcriber
	processor   Processor
	generator   llm.Generator
	speaker     Speaker
	sleep       llm.SleepFunc
}

// New creates an agent. recorder and transcriber may be nil for text-only use.
func New(recorder Recorder, transcriber Transcriber, processor Processor, generator llm.Generator, speaker Speaker) *Agent {
	return &Agent{
		recorder:    recorder,
		transcriber: transcriber,
		processor:   processor,
		generator:   generator,
		speaker:     speaker,
		sleep:       llm.ContextSleep,
	}
}

// SetSleep replaces the pause between spoken utterances
func (a *Agent) SetSleep(sleep llm.SleepFunc) {
	a.sleep = sleep
}

// RunTurn records and transcribes one utterance, then answers it
func (a *Agent) RunTurn(ctx context.Context, active language.Tag) (TurnResult, error) {
	if a.recorder == nil || a.transcriber == nil {
		return TurnResult{Language: active}, errors.New("agent has no audio input configured")
	}

	audio, err := a.recorder.Record(ctx)
	if err != nil {
		return TurnResult{Language: active}, fmt.Errorf("recording failed: %w", err)
	}

	text, err := a.transcriber.Transcribe(ctx, audio, active)
	if err != nil {
		return TurnResult{Language: active}, fmt.Errorf("transcription failed: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return TurnResult{Language: active}, ErrNoSpeech
	}

	return a.RespondText(ctx, text, active)
}

// RespondText analyzes text, generates a reply in the detected language and
// speaks both. The returned Language is the one detected in text.
func (a *Agent) RespondText(ctx context.Context, text string, active language.Tag) (TurnResult, error) {
	turn := TurnResult{
		Transcript: strings.TrimSpace(text),
		Language:   active,
		At:         time.Now(),
	}
	if turn.Transcript == "" {
		return turn, ErrNoSpeech
	}

	turn.Language = language.Classify(turn.Transcript, active)

	analysis, err := a.processor.Process(ctx, turn.Transcript, "", active)
	if err != nil {
		logging.LogWarn("turn analysis failed",
			zap.String("language", turn.Language.String()),
			zap.Error(err),
		)
	} else {
		turn.Analysis = analysis
	}

	if turn.Language != active {
		logging.Sugar.Infof("🌐 Active language changed: %s -> %s", active, turn.Language)
	}

	reply, err := a.generator.Generate(ctx, llm.Request{
		Prompt:       turn.Transcript,
		SystemPrompt: SystemPrompt(turn.Language),
		MaxTokens:    replyMaxTokens,
		Temperature:  replyTemperature,
	})
	if err != nil {
		return turn, fmt.Errorf("reply generation failed: %w", err)
	}
	turn.Reply = strings.TrimSpace(reply)

	logging.Sugar.Infow("💬 Turn answered",
		"language", turn.Language.String(),
		"transcript", security.TruncateForLog(security.SanitizeLogInput(turn.Transcript), 80),
		"reply_length", len(turn.Reply),
	)

	if a.speaker == nil {
		return turn, nil
	}
	if err := a.speaker.Speak(ctx, InputPrefix(turn.Language)+turn.Transcript, turn.Language); err != nil {
		return turn, fmt.Errorf("speaking transcript failed: %w", err)
	}
	if err := a.sleep(ctx, SpeechPause); err != nil {
		return turn, err
	}
	if err := a.speaker.Speak(ctx, ReplyPrefix(turn.Language)+turn.Reply, turn.Language); err != nil {
		return turn, fmt.Errorf("speaking reply failed: %w", err)
	}
	return turn, nil
}
