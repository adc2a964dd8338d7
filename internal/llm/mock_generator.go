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
	"fmt"
	"net/http"
	"sync"
)

// MockGenerator implements Generator for testing
type MockGenerator struct {
	GenerateFunc func(ctx context.Context, req Request) (string, error)

	mu    sync.Mutex
	calls []Request
}

// Generate records the request and delegates to GenerateFunc
func (m *MockGenerator) Generate(ctx context.Context, req Request) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return "", fmt.Errorf("no mock function provided")
}

// Calls returns a copy of every request seen so far
func (m *MockGenerator) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]Request, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// CallCount returns the number of Generate calls
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// MockResult is one scripted reply
type MockResult struct {
	Reply string
	Err   error
}

// CreateStaticGenerator returns reply for every request
func CreateStaticGenerator(reply string) *MockGenerator {
	return &MockGenerator{
		GenerateFunc: func(ctx context.Context, req Request) (string, error) {
			return reply, nil
		},
	}
}

// CreateScriptedGenerator replays results in order and repeats the last one
// once the script is exhausted.
func CreateScriptedGenerator(results ...MockResult) *MockGenerator {
	var (
		mu   sync.Mutex
		next int
	)
	return &MockGenerator{
		GenerateFunc: func(ctx context.Context, req Request) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			if len(results) == 0 {
				return "", fmt.Errorf("empty script")
			}
			result := results[next]
			if next < len(results)-1 {
				next++
			}
			return result.Reply, result.Err
		},
	}
}

// CreateErrorGenerator fails every request with a ServiceError of the given kind
func CreateErrorGenerator(kind ErrorKind) *MockGenerator {
	return &MockGenerator{
		GenerateFunc: func(ctx context.Context, req Request) (string, error) {
			return "", NewMockServiceError("mock", kind)
		},
	}
}

// NewMockServiceError builds a ServiceError shaped like a real backend failure
func NewMockServiceError(provider string, kind ErrorKind) *ServiceError {
	status := 0
	switch kind {
	case KindRateLimit:
		status = http.StatusTooManyRequests
	case KindAuth:
		status = http.StatusUnauthorized
	case KindModelNotFound:
		status = http.StatusNotFound
	case KindServer:
		status = http.StatusInternalServerError
	}
	return &ServiceError{Kind: kind, Provider: provider, StatusCode: status, Err: fmt.Errorf("mock %s", kind)}
}
