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

// Package metrics provides Prometheus metrics for the analyst.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "loqa_analyst"

// Metrics holds all Prometheus metrics for the analyst
type Metrics struct {
	// Row metrics
	RowsTotal   *prometheus.CounterVec
	RowDuration prometheus.Histogram

	// Run metrics
	RunsTotal *prometheus.CounterVec

	// LLM metrics
	LLMRequests      *prometheus.CounterVec
	LLMLatency       *prometheus.HistogramVec
	RateLimitRetries *prometheus.CounterVec

	// Store metrics
	AppendLatency prometheus.Histogram

	// Messaging metrics
	PublishTotal *prometheus.CounterVec
}

// New creates all metrics and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RowsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Source rows handled, by outcome status",
		}, []string{"status"}),
		RowDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "row_duration_seconds",
			Help:      "Time spent analyzing one source row",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		}),

		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Batch runs finished, by final status",
		}, []string{"status"}),

		LLMRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Language model requests, by provider and outcome",
		}, []string{"provider", "outcome"}),
		LLMLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Language model request latency",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"provider"}),
		RateLimitRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_rate_limit_retries_total",
			Help:      "Requests retried after a rate-limit response",
		}, []string{"provider"}),

		AppendLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workbook_append_duration_seconds",
			Help:      "Time spent appending one row to the output workbook",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),

		PublishTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nats_publish_total",
			Help:      "Outcome events published to NATS, by subject and result",
		}, []string{"subject", "result"}),
	}
}

// ObserveLLMRequest records one backend call
func (m *Metrics) ObserveLLMRequest(provider, outcome string, elapsed time.Duration) {
	m.LLMRequests.WithLabelValues(provider, outcome).Inc()
	m.LLMLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// ObserveRateLimitRetry records one backoff after a rate-limit response
func (m *Metrics) ObserveRateLimitRetry(provider string) {
	m.RateLimitRetries.WithLabelValues(provider).Inc()
}

// ObserveRow records one row outcome
func (m *Metrics) ObserveRow(status string, elapsed time.Duration) {
	m.RowsTotal.WithLabelValues(status).Inc()
	if elapsed > 0 {
		m.RowDuration.Observe(elapsed.Seconds())
	}
}

// ObserveAppend records one workbook append
func (m *Metrics) ObserveAppend(elapsed time.Duration) {
	m.AppendLatency.Observe(elapsed.Seconds())
}

// ObserveRun records a finished run
func (m *Metrics) ObserveRun(status string) {
	m.RunsTotal.WithLabelValues(status).Inc()
}

// ObservePublish records one NATS publish attempt
func (m *Metrics) ObservePublish(subject string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.PublishTotal.WithLabelValues(subject, result).Inc()
}
