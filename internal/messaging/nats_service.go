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

package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/loqalabs/loqa-analyst/internal/config"
	"github.com/loqalabs/loqa-analyst/internal/events"
	"github.com/loqalabs/loqa-analyst/internal/logging"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Subject suffixes appended to the configured prefix
const (
	SubjectRows = "rows"
	SubjectRuns = "runs"
)

// ErrNotConnected is returned when publishing before Connect
var ErrNotConnected = errors.New("NATS connection not established")

// publishConn is the part of *nats.Conn used for publishing
type publishConn interface {
	Publish(subject string, data []byte) error
}

// PublishRecorder receives one observation per publish attempt
type PublishRecorder interface {
	ObservePublish(subject string, err error)
}

// NATSService publishes analysis outcomes for other Loqa services
type NATSService struct {
	conn     *nats.Conn
	pub      publishConn
	cfg      config.NATSConfig
	recorder PublishRecorder
}

// NewNATSService creates a new NATS service instance
func NewNATSService(cfg config.NATSConfig) *NATSService {
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "loqa.analyst"
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	return &NATSService{cfg: cfg}
}

// SetRecorder enables publish metrics
func (ns *NATSService) SetRecorder(recorder PublishRecorder) {
	ns.recorder = recorder
}

// Subject returns the full subject for suffix
func (ns *NATSService) Subject(suffix string) string {
	return ns.cfg.SubjectPrefix + "." + suffix
}

// Connect establishes connection to NATS server
func (ns *NATSService) Connect() error {
	logging.Sugar.Infof("🔌 Connecting to NATS at %s", ns.cfg.URL)

	opts := []nats.Option{
		nats.Name("loqa-analyst"),
		nats.ReconnectWait(ns.cfg.ReconnectWait),
		nats.MaxReconnects(ns.cfg.MaxReconnect),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logging.LogWarn("⚠️  NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Sugar.Infof("🔄 NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logging.Sugar.Info("🔌 NATS connection closed")
		}),
	}

	conn, err := nats.Connect(ns.cfg.URL, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	ns.conn = conn
	ns.pub = conn
	logging.Sugar.Infof("✅ Connected to NATS server at %s", conn.ConnectedUrl())
	return nil
}

// PublishRowOutcome publishes the outcome of one source row
func (ns *NATSService) PublishRowOutcome(runID string, outcome events.RowOutcome) error {
	return ns.publish(ns.Subject(SubjectRows), events.NewRowOutcomeEvent(runID, outcome))
}

// PublishRunSummary publishes the end-of-run counters
func (ns *NATSService) PublishRunSummary(summary events.RunSummary, status string) error {
	return ns.publish(ns.Subject(SubjectRuns), events.NewRunSummaryEvent(summary, status))
}

func (ns *NATSService) publish(subject string, event interface{}) error {
	err := ns.send(subject, event)
	if ns.recorder != nil {
		ns.recorder.ObservePublish(subject, err)
	}
	if err == nil {
		logging.LogNATSEvent(subject, "published")
	}
	return err
}

func (ns *NATSService) send(subject string, event interface{}) error {
	if ns.pub == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event for %s: %w", subject, err)
	}

	if err := ns.pub.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// SubscribeToRowOutcomes delivers every published row outcome to handler
func (ns *NATSService) SubscribeToRowOutcomes(handler func(*events.RowOutcomeEvent)) (*nats.Subscription, error) {
	if ns.conn == nil {
		return nil, ErrNotConnected
	}

	subject := ns.Subject(SubjectRows)
	return ns.conn.Subscribe(subject, func(msg *nats.Msg) {
		var event events.RowOutcomeEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			logging.LogError(err, "❌ Error unmarshaling row outcome", zap.String("subject", subject))
			return
		}
		logging.LogNATSEvent(subject, "received", zap.String("run_id", event.RunID), zap.Int("row", event.RowIndex))
		handler(&event)
	})
}

// SubscribeToRunSummaries delivers every published run summary to handler
func (ns *NATSService) SubscribeToRunSummaries(handler func(*events.RunSummaryEvent)) (*nats.Subscription, error) {
	if ns.conn == nil {
		return nil, ErrNotConnected
	}

	subject := ns.Subject(SubjectRuns)
	return ns.conn.Subscribe(subject, func(msg *nats.Msg) {
		var event events.RunSummaryEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			logging.LogError(err, "❌ Error unmarshaling run summary", zap.String("subject", subject))
			return
		}
		handler(&event)
	})
}

// Close drains and closes the NATS connection
func (ns *NATSService) Close() {
	if ns.conn != nil {
		if err := ns.conn.Drain(); err != nil {
			ns.conn.Close()
		}
		ns.conn = nil
		ns.pub = nil
	}
}

// IsConnected returns true if connected to NATS
func (ns *NATSService) IsConnected() bool {
	return ns.conn != nil && ns.conn.IsConnected()
}

// GetStats returns connection statistics
func (ns *NATSService) GetStats() nats.Statistics {
	if ns.conn != nil {
		return ns.conn.Stats()
	}
	return nats.Statistics{}
}
