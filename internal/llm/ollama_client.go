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

package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/jmorganca/ollama/api"
)

const providerOllama = "ollama"

// OllamaClient talks to a local Ollama server through its chat endpoint
type OllamaClient struct {
	client  *api.Client
	baseURL string
	model   string
}

// NewOllamaClient creates a client for the Ollama server at baseURL
func NewOllamaClient(baseURL, model string, httpClient *http.Client) (*OllamaClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("Ollama URL cannot be empty")
	}
	parsed, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL %q: %w", baseURL, err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &OllamaClient{
		client:  api.NewClient(parsed, httpClient),
		baseURL: parsed.String(),
		model:   model,
	}, nil
}

// Generate sends one non-streaming chat request and returns the reply text
func (c *OllamaClient) Generate(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	messages := make([]api.Message, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, api.Message{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, api.Message{Role: "user", Content: req.Prompt})

	options := map[string]interface{}{
		"temperature": req.Temperature,
		"num_predict": req.MaxTokens,
		"top_k":       20,
		"top_p":       0.9,
	}
	if req.Device == DeviceCPU {
		options["num_gpu"] = 0
	}

	stream := false
	var reply strings.Builder
	err := c.client.Chat(ctx, &api.ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   &stream,
		Options:  options,
	}, func(resp api.ChatResponse) error {
		reply.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", c.classify(ctx, err)
	}

	text := strings.TrimSpace(reply.String())
	if text == "" {
		return "", &ServiceError{Kind: KindBadResponse, Provider: providerOllama, Err: errors.New("empty reply")}
	}
	return text, nil
}

// Ping checks that the Ollama server answers
func (c *OllamaClient) Ping(ctx context.Context) error {
	if err := c.client.Heartbeat(ctx); err != nil {
		return c.classify(ctx, err)
	}
	return nil
}

func (c *OllamaClient) classify(ctx context.Context, err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return &ServiceError{
			Kind:       kindForStatus(statusErr.StatusCode),
			Provider:   providerOllama,
			StatusCode: statusErr.StatusCode,
			Err:        err,
		}
	}

	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return classifyTransportError(providerOllama, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return classifyTransportError(providerOllama, err)
	}

	// Ollama reports some failures as a bare {"error": "..."} body
	if strings.Contains(strings.ToLower(err.Error()), "not found") {
		return &ServiceError{Kind: KindModelNotFound, Provider: providerOllama, Err: err}
	}
	return &ServiceError{Kind: KindServer, Provider: providerOllama, Err: err}
}
