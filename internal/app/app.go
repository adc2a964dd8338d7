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

// Package app assembles the components shared by the analyst binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/loqalabs/loqa-analyst/internal/api"
	"github.com/loqalabs/loqa-analyst/internal/config"
	"github.com/loqalabs/loqa-analyst/internal/intent"
	"github.com/loqalabs/loqa-analyst/internal/language"
	"github.com/loqalabs/loqa-analyst/internal/llm"
	"github.com/loqalabs/loqa-analyst/internal/logging"
	"github.com/loqalabs/loqa-analyst/internal/messaging"
	"github.com/loqalabs/loqa-analyst/internal/metrics"
	"github.com/loqalabs/loqa-analyst/internal/processor"
	"github.com/loqalabs/loqa-analyst/internal/server"
	"github.com/loqalabs/loqa-analyst/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// LoadEnvironment loads .env files, the configuration and the global logger.
// With no envFiles it reads ./.env when present.
func LoadEnvironment(envFiles ...string) (*config.Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if err := logging.InitializeWithConfig(logging.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	return cfg, nil
}

// Pipeline is the analysis stack: model client, analyzer and processor,
// instrumented into a private registry.
type Pipeline struct {
	Backend   llm.Generator
	Generator llm.Generator
	Analyzer  *intent.Analyzer
	Processor *processor.Processor
	Metrics   *metrics.Metrics
	Registry  *prometheus.Registry
	Language  language.Tag
}

// NewPipeline builds the analysis stack for cfg
func NewPipeline(cfg *config.Config) (*Pipeline, error) {
	lang, err := language.Parse(cfg.Batch.DefaultLanguage)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	backend, err := llm.NewBackend(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM backend: %w", err)
	}
	return assemble(cfg, backend, m, registry, lang), nil
}

func assemble(cfg *config.Config, backend llm.Generator, m *metrics.Metrics, registry *prometheus.Registry, lang language.Tag) *Pipeline {
	generator := llm.Compose(backend, cfg.LLM.Provider, cfg.LLM, m)
	analyzer := intent.NewAnalyzer(generator, intent.Options{
		MaxTokens:   cfg.LLM.IntentMaxTokens,
		Temperature: cfg.LLM.IntentTemperature,
	})
	proc := processor.NewProcessor(generator, analyzer, processor.Options{
		SummaryMaxTokens:   cfg.LLM.SummaryMaxTokens,
		SummaryTemperature: cfg.LLM.SummaryTemperature,
	})

	logging.Sugar.Infow("🧠 Analysis pipeline ready",
		"provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
		"fallbacks", cfg.LLM.Fallbacks,
		"language", lang.String(),
	)

	return &Pipeline{
		Backend:   backend,
		Generator: generator,
		Analyzer:  analyzer,
		Processor: proc,
		Metrics:   m,
		Registry:  registry,
		Language:  lang,
	}
}

// Ledger is an open run ledger
type Ledger struct {
	DB   *storage.Database
	Runs *storage.RunsStore
}

// OpenLedger opens the run ledger, or returns nil when no path is configured
func OpenLedger(cfg config.StoreConfig) (*Ledger, error) {
	if cfg.LedgerPath == "" {
		return nil, nil
	}
	db, err := storage.NewDatabase(storage.DatabaseConfig{Path: cfg.LedgerPath})
	if err != nil {
		return nil, err
	}
	return &Ledger{DB: db, Runs: storage.NewRunsStore(db)}, nil
}

// Close closes the ledger database
func (l *Ledger) Close() {
	if l == nil {
		return
	}
	if err := l.DB.Close(); err != nil {
		logging.LogError(err, "Failed to close run ledger")
	}
}

// ConnectNATS connects the outcome publisher. It returns nil when NATS is
// not configured or unreachable; publishing is optional.
func ConnectNATS(cfg config.NATSConfig, recorder messaging.PublishRecorder) *messaging.NATSService {
	if cfg.URL == "" {
		return nil
	}
	service := messaging.NewNATSService(cfg)
	if recorder != nil {
		service.SetRecorder(recorder)
	}
	if err := service.Connect(); err != nil {
		logging.LogWarn("NATS unavailable, outcomes will not be published", zap.Error(err))
		return nil
	}
	return service
}

// NewStatusServer builds the status server, or returns nil when no address
// is configured.
func NewStatusServer(cfg config.ServerConfig, pipeline *Pipeline, ledger *Ledger) *server.Server {
	if cfg.Addr == "" {
		return nil
	}

	deps := server.Dependencies{
		Analyze:  api.NewAnalyzeHandler(pipeline.Processor, pipeline.Language),
		Gatherer: pipeline.Registry,
		Checks:   map[string]server.HealthCheck{},
	}
	if ledger != nil {
		deps.Runs = api.NewRunsHandler(ledger.Runs)
		deps.Checks["ledger"] = func(ctx context.Context) error {
			return ledger.DB.DB().PingContext(ctx)
		}
	}
	if pinger, ok := pipeline.Backend.(llm.Pinger); ok {
		deps.Checks["llm"] = pinger.Ping
	}
	return server.New(cfg, deps)
}
