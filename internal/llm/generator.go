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
)

// DeviceCPU forces a backend to run inference without a GPU
const DeviceCPU = "cpu"

// Request is a single prompt/response exchange with a language model
type Request struct {
	Prompt       string
	SystemPrompt string
	MaxTokens    int
	Temperature  float32
	Model        string // Overrides the backend default when set
	Device       string // Empty lets the backend decide
}

// Generator is the narrow contract every language-model backend satisfies
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Pinger is implemented by backends that can report reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// ErrorKind classifies a ServiceError
type ErrorKind string

const (
	KindNetwork       ErrorKind = "network"
	KindAuth          ErrorKind = "auth"
	KindRateLimit     ErrorKind = "rate_limit"
	KindModelNotFound ErrorKind = "model_not_found"
	KindServer        ErrorKind = "server"
	KindBadResponse   ErrorKind = "bad_response"
)

// ServiceError is returned by every Generator when the backend call fails
type ServiceError struct {
	Kind       ErrorKind
	Provider   string
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s error (status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// KindOf returns the ServiceError kind wrapped in err, or "" when err is not one
func KindOf(err error) ErrorKind {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Kind
	}
	return ""
}

// IsRateLimit reports whether err signals the backend is over capacity
func IsRateLimit(err error) bool {
	return KindOf(err) == KindRateLimit
}

// kindForStatus maps an HTTP status code to an error kind
func kindForStatus(statusCode int) ErrorKind {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return KindRateLimit
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return KindAuth
	case statusCode == http.StatusNotFound:
		return KindModelNotFound
	case statusCode >= http.StatusInternalServerError:
		return KindServer
	default:
		return KindBadResponse
	}
}

// classifyTransportError wraps failures that never produced an HTTP status
func classifyTransportError(provider string, err error) *ServiceError {
	return &ServiceError{Kind: KindNetwork, Provider: provider, Err: err}
}
