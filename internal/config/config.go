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

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Supported LLM providers
const (
	ProviderSarvam = "sarvam"
	ProviderOllama = "ollama"
)

// Supported batch modes
const (
	ModeSequential = "sequential"
	ModeConcurrent = "concurrent"
	ModeBatched    = "batched"
)

// ErrMissingCredential is returned when the selected provider needs a secret that is not set
var ErrMissingCredential = errors.New("missing LLM credential")

// Config holds all configuration for the Loqa analyst
type Config struct {
	LLM     LLMConfig
	Batch   BatchConfig
	Store   StoreConfig
	Logging LoggingConfig
	NATS    NATSConfig
	Server  ServerConfig
	Agent   AgentConfig
}

// LLMConfig holds language-model service configuration
type LLMConfig struct {
	Provider    string        // "sarvam" or "ollama"
	APIKey      string        // Sarvam subscription key
	SarvamURL   string        // OpenAI-compatible Sarvam endpoint
	OllamaURL   string        // Ollama REST endpoint
	Model       string        // Primary model name
	Fallbacks   string        // Ordered "model@device" list tried after the primary model
	Timeout     time.Duration // Per-request timeout
	MaxAttempts int           // Attempts per request when rate limited
	BackoffBase time.Duration // First rate-limit backoff
	BackoffMax  time.Duration // Backoff ceiling

	SummaryMaxTokens   int
	SummaryTemperature float32
	IntentMaxTokens    int
	IntentTemperature  float32
}

// BatchConfig holds batch runner configuration
type BatchConfig struct {
	Mode            string        // sequential, concurrent or batched
	Limit           int           // Rows to read from the source workbook
	Workers         int           // Worker pool size for the concurrent mode
	BatchSize       int           // Rows per batch for the batched mode
	RowDelay        time.Duration // Sequential pause between rows
	WorkerDelay     time.Duration // Batched per-row pause inside each worker
	BatchPause      time.Duration // Batched pause between batches
	DefaultLanguage string        // Language assumed when detection is inconclusive
}

// StoreConfig holds persistence configuration
type StoreConfig struct {
	OutputPath string // Output workbook
	LedgerPath string // SQLite run ledger
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// NATSConfig holds optional NATS messaging configuration
type NATSConfig struct {
	URL           string // Empty disables publishing
	SubjectPrefix string
	MaxReconnect  int
	ReconnectWait time.Duration
}

// ServerConfig holds the optional status/metrics server configuration
type ServerConfig struct {
	Addr         string // Empty disables the server
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AgentConfig holds interactive agent configuration
type AgentConfig struct {
	PiperCandidates []string // Ranked Piper endpoints, first reachable wins
	PiperURL        string   // Resolved once at startup
	Voice           string
	Timeout         time.Duration
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	config := &Config{
		LLM: LLMConfig{
			Provider:           strings.ToLower(getEnvString("LLM_PROVIDER", ProviderSarvam)),
			APIKey:             strings.TrimSpace(getEnvString("SARVAM_API_KEY", "")),
			SarvamURL:          getEnvString("SARVAM_URL", "https://api.sarvam.ai/v1/"),
			OllamaURL:          getEnvString("OLLAMA_URL", "http://localhost:11434"),
			Model:              getEnvString("LLM_MODEL", "sarvam-m"),
			Fallbacks:          getEnvString("LLM_FALLBACK_MODELS", ""),
			Timeout:            getEnvDuration("LLM_TIMEOUT", 30*time.Second),
			MaxAttempts:        getEnvInt("LLM_MAX_ATTEMPTS", 4),
			BackoffBase:        getEnvDuration("LLM_BACKOFF_BASE", 1*time.Second),
			BackoffMax:         getEnvDuration("LLM_BACKOFF_MAX", 30*time.Second),
			SummaryMaxTokens:   getEnvInt("LLM_SUMMARY_MAX_TOKENS", 100),
			SummaryTemperature: getEnvFloat32("LLM_SUMMARY_TEMPERATURE", 0.3),
			IntentMaxTokens:    getEnvInt("LLM_INTENT_MAX_TOKENS", 20),
			IntentTemperature:  getEnvFloat32("LLM_INTENT_TEMPERATURE", 0.2),
		},
		Batch: BatchConfig{
			Mode:            strings.ToLower(getEnvString("BATCH_MODE", ModeSequential)),
			Limit:           getEnvInt("BATCH_LIMIT", 20),
			Workers:         getEnvInt("BATCH_WORKERS", 3),
			BatchSize:       getEnvInt("BATCH_SIZE", 5),
			RowDelay:        getEnvDuration("BATCH_ROW_DELAY", 2*time.Second),
			WorkerDelay:     getEnvDuration("BATCH_WORKER_DELAY", 1500*time.Millisecond),
			BatchPause:      getEnvDuration("BATCH_PAUSE", 3*time.Second),
			DefaultLanguage: strings.ToLower(getEnvString("ANALYST_LANGUAGE", "hindi")),
		},
		Store: StoreConfig{
			OutputPath: getEnvString("ANALYST_OUTPUT", "IntentOfthetranscribetext.xlsx"),
			LedgerPath: getEnvString("ANALYST_LEDGER_PATH", "./data/loqa-analyst.db"),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "console"),
		},
		NATS: NATSConfig{
			URL:           getEnvString("NATS_URL", ""),
			SubjectPrefix: getEnvString("NATS_SUBJECT_PREFIX", "loqa.analyst"),
			MaxReconnect:  getEnvInt("NATS_MAX_RECONNECT", 10),
			ReconnectWait: getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		},
		Server: ServerConfig{
			Addr:         getEnvString("ANALYST_STATUS_ADDR", ""),
			ReadTimeout:  getEnvDuration("ANALYST_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("ANALYST_WRITE_TIMEOUT", 30*time.Second),
		},
		Agent: AgentConfig{
			PiperCandidates: getEnvList("PIPER_URLS", []string{"http://localhost:5000", "http://tts:5000"}),
			Voice:           getEnvString("PIPER_VOICE", ""),
			Timeout:         getEnvDuration("PIPER_TIMEOUT", 30*time.Second),
		},
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// validate checks if the configuration is valid
func (c *Config) validate() error {
	switch c.LLM.Provider {
	case ProviderSarvam, ProviderOllama:
	default:
		return fmt.Errorf("unsupported LLM provider: %q", c.LLM.Provider)
	}

	if c.LLM.Model == "" {
		return fmt.Errorf("LLM model must be provided")
	}

	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("LLM timeout must be positive: %v", c.LLM.Timeout)
	}

	if c.LLM.MaxAttempts <= 0 {
		return fmt.Errorf("LLM max attempts must be positive: %d", c.LLM.MaxAttempts)
	}

	if c.LLM.BackoffBase < 0 || c.LLM.BackoffMax < c.LLM.BackoffBase {
		return fmt.Errorf("invalid LLM backoff window: base %v, max %v", c.LLM.BackoffBase, c.LLM.BackoffMax)
	}

	switch c.Batch.Mode {
	case ModeSequential, ModeConcurrent, ModeBatched:
	default:
		return fmt.Errorf("unsupported batch mode: %q", c.Batch.Mode)
	}

	if c.Batch.Limit <= 0 {
		return fmt.Errorf("batch limit must be positive: %d", c.Batch.Limit)
	}

	if c.Batch.Workers <= 0 {
		return fmt.Errorf("batch workers must be positive: %d", c.Batch.Workers)
	}

	if c.Batch.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive: %d", c.Batch.BatchSize)
	}

	if c.Batch.RowDelay < 0 || c.Batch.WorkerDelay < 0 || c.Batch.BatchPause < 0 {
		return fmt.Errorf("batch delays must not be negative")
	}

	switch c.Batch.DefaultLanguage {
	case "hindi", "english", "urdu", "telugu":
	default:
		return fmt.Errorf("unsupported default language: %q", c.Batch.DefaultLanguage)
	}

	if c.Store.OutputPath == "" {
		return fmt.Errorf("output workbook path must be provided")
	}

	return nil
}

// ValidateCredentials reports whether the selected provider has the secret it
// needs. Batch entry points call it before any work begins.
func (c *Config) ValidateCredentials() error {
	if c.LLM.Provider == ProviderSarvam && c.LLM.APIKey == "" {
		return fmt.Errorf("%w: SARVAM_API_KEY is not set", ErrMissingCredential)
	}
	return nil
}

// ResolveCandidate returns the first candidate accepted by reachable. It is meant
// to run once at startup so components receive a single resolved value.
func ResolveCandidate(candidates []string, reachable func(string) bool) (string, error) {
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if reachable(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("none of %d candidates is available", len(candidates))
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatValue)
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
