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

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/loqalabs/loqa-analyst/internal/api"
	"github.com/loqalabs/loqa-analyst/internal/config"
	"github.com/loqalabs/loqa-analyst/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthCheck reports whether one dependency is usable
type HealthCheck func(ctx context.Context) error

// Dependencies are the components the status server exposes. Nil members
// leave their routes unregistered.
type Dependencies struct {
	Runs     *api.RunsHandler
	Analyze  *api.AnalyzeHandler
	Gatherer prometheus.Gatherer
	Checks   map[string]HealthCheck
}

// Server is the optional status, metrics and runs API of the analyst
type Server struct {
	cfg    config.ServerConfig
	deps   Dependencies
	mux    *http.ServeMux
	server *http.Server
}

// New creates a new status server
func New(cfg config.ServerConfig, deps Dependencies) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mux:  http.NewServeMux(),
	}

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.routes()
	return s
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves until Stop is called
func (s *Server) Start() error {
	logging.Sugar.Infow("🚀 Status server starting", "addr", s.cfg.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	logging.Sugar.Infow("🛑 Shutting down status server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// routes sets up HTTP routing
func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.handleHealth)

	if s.deps.Gatherer != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}
	if s.deps.Runs != nil {
		s.mux.HandleFunc("/api/runs", s.deps.Runs.HandleRuns)
		s.mux.HandleFunc("/api/runs/", s.deps.Runs.HandleRunByID)
	}
	if s.deps.Analyze != nil {
		s.mux.HandleFunc("/api/intent/analyze", s.deps.Analyze.HandleAnalyze)
	}

	logging.Sugar.Infow("🌐 HTTP routes configured",
		"metrics", s.deps.Gatherer != nil,
		"runs_api", s.deps.Runs != nil,
		"analyze_api", s.deps.Analyze != nil,
	)
}

// handleHealth runs every registered check concurrently
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(s.deps.Checks))
	for name := range s.deps.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		services = make(map[string]string, len(names))
	)
	for _, name := range names {
		wg.Add(1)
		go func(name string, check HealthCheck) {
			defer wg.Done()
			state := "ok"
			if err := check(ctx); err != nil {
				state = err.Error()
			}
			mu.Lock()
			services[name] = state
			mu.Unlock()
		}(name, s.deps.Checks[name])
	}
	wg.Wait()

	status := "ok"
	code := http.StatusOK
	for _, name := range names {
		if services[name] != "ok" {
			status = "degraded"
			code = http.StatusServiceUnavailable
			logging.Sugar.Warnw("Health check failed", "service", name, "error", services[name])
		}
	}

	health := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"services":  services,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(health); err != nil {
		logging.Sugar.Errorw("Failed to write health response", "error", err)
	}
}
