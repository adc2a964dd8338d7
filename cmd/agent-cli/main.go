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

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/loqalabs/loqa-analyst/internal/agent"
	"github.com/loqalabs/loqa-analyst/internal/app"
	"github.com/loqalabs/loqa-analyst/internal/config"
	"github.com/loqalabs/loqa-analyst/internal/language"
	"github.com/loqalabs/loqa-analyst/internal/logging"
	"go.uber.org/zap"
)

func main() {
	var (
		lang        = flag.String("language", "", "starting language (default ANALYST_LANGUAGE)")
		audioDir    = flag.String("audio-dir", "", "write synthesized speech to this directory")
		transcripts = flag.String("transcripts", "", "save a transcript file per turn in this directory")
		mute        = flag.Bool("mute", false, "do not synthesize speech")
	)
	flag.Parse()

	cfg, err := app.LoadEnvironment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
	defer logging.Close()

	if *lang != "" {
		cfg.Batch.DefaultLanguage = *lang
	}
	if err := cfg.ValidateCredentials(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}

	pipeline, err := app.NewPipeline(cfg)
	if err != nil {
		logging.LogError(err, "Failed to build analysis pipeline")
		os.Exit(1)
	}

	var speaker agent.Speaker
	if !*mute {
		speaker = newSpeaker(cfg.Agent, *audioDir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session := &session{
		agent:       agent.New(nil, nil, pipeline.Processor, pipeline.Generator, speaker),
		active:      pipeline.Language,
		transcripts: *transcripts,
		out:         os.Stdout,
	}
	if err := session.run(ctx, os.Stdin); err != nil && !errors.Is(err, context.Canceled) {
		logging.LogError(err, "Agent session ended with error")
		os.Exit(1)
	}
}

// newSpeaker resolves the Piper endpoint once. Without a reachable endpoint
// the session continues silently.
func newSpeaker(cfg config.AgentConfig, audioDir string) agent.Speaker {
	url, err := config.ResolveCandidate(cfg.PiperCandidates, agent.PiperReachable(2*time.Second))
	if err != nil {
		logging.LogWarn("No Piper endpoint reachable, replies will not be spoken",
			zap.Strings("candidates", cfg.PiperCandidates))
		return nil
	}
	cfg.PiperURL = url

	var player agent.Player = agent.DiscardPlayer{}
	if audioDir != "" {
		player = &agent.DirPlayer{Dir: audioDir}
	}

	speaker, err := agent.NewPiperSpeaker(cfg, player)
	if err != nil {
		logging.LogWarn("Piper speaker unavailable", zap.Error(err))
		return nil
	}
	return speaker
}

type session struct {
	agent       *agent.Agent
	active      language.Tag
	transcripts string
	out         io.Writer
}

func (s *session) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(s.out, "============================================================")
	fmt.Fprintln(s.out, "Loqa Analyst Agent")
	fmt.Fprintf(s.out, "Language: %s. Type 'quit' to exit.\n", s.active)
	fmt.Fprintln(s.out, "============================================================")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, "\n> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "quit", "exit", "q":
			fmt.Fprintln(s.out, "Goodbye!")
			return nil
		}

		s.turn(ctx, line)
	}
}

func (s *session) turn(ctx context.Context, line string) {
	turn, err := s.agent.RespondText(ctx, line, s.active)
	s.active = turn.Language
	if err != nil {
		fmt.Fprintf(s.out, "⚠️  %v\n", err)
		if turn.Reply == "" {
			return
		}
	}

	if turn.Analysis != nil {
		fmt.Fprintf(s.out, "Summary: %s\nIntent:  %s\n", turn.Analysis.Summary, turn.Analysis.Intent)
	}
	fmt.Fprintf(s.out, "[%s] %s\n", turn.Language, turn.Reply)

	if s.transcripts != "" {
		path, err := agent.SaveTranscript(s.transcripts, turn, "")
		if err != nil {
			logging.LogWarn("Failed to save transcript", zap.Error(err))
			return
		}
		logging.Sugar.Debugf("Transcript saved: %s", path)
	}
}
