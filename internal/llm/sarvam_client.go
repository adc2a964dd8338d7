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
	"net/url"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const providerSarvam = "sarvam"

// SarvamClient calls the Sarvam AI chat completions API, which follows the
// OpenAI wire format.
type SarvamClient struct {
	client openai.Client
	model  string
}

// NewSarvamClient creates a client for baseURL authenticated with apiKey.
// SDK level retries are disabled; RetryGenerator owns the retry policy.
func NewSarvamClient(baseURL, apiKey, model string, timeout time.Duration) (*SarvamClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Sarvam API key cannot be empty")
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	opts := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
		option.WithHeader("api-subscription-key", apiKey),
		option.WithMaxRetries(0),
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}

	return &SarvamClient{
		client: openai.NewClient(opts...),
		model:  model,
	}, nil
}

// Generate sends one chat completion request and returns the first choice
func (c *SarvamClient) Generate(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:       model,
		Messages:    messages,
		Temperature: openai.Float(float64(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", c.classify(err)
	}
	if len(completion.Choices) == 0 {
		return "", &ServiceError{Kind: KindBadResponse, Provider: providerSarvam, Err: errors.New("no choices in completion")}
	}

	text := strings.TrimSpace(stripReasoning(completion.Choices[0].Message.Content))
	if text == "" {
		return "", &ServiceError{Kind: KindBadResponse, Provider: providerSarvam, Err: errors.New("empty reply")}
	}
	return text, nil
}

func (c *SarvamClient) classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &ServiceError{
			Kind:       kindForStatus(apiErr.StatusCode),
			Provider:   providerSarvam,
			StatusCode: apiErr.StatusCode,
			Err:        err,
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return classifyTransportError(providerSarvam, err)
	}
	return &ServiceError{Kind: KindServer, Provider: providerSarvam, Err: err}
}

// stripReasoning drops a leading <think>...</think> block that reasoning
// models prepend to their answer.
func stripReasoning(content string) string {
	const closeTag = "</think>"
	if !strings.HasPrefix(strings.TrimSpace(content), "<think>") {
		return content
	}
	if idx := strings.Index(content, closeTag); idx >= 0 {
		return content[idx+len(closeTag):]
	}
	return ""
}
