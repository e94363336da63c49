// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/telekom/deploy-auditlog/pkg/metrics"
)

// Publisher serializes records and hands them to a sink. It never returns
// errors: failing records are logged, counted and dropped.
type Publisher struct {
	sink    Sink
	marshal func(v interface{}) ([]byte, error)
	newID   func() string
	logger  *zap.Logger
}

// NewPublisher creates a Publisher writing to sink.
func NewPublisher(sink Sink, logger *zap.Logger) *Publisher {
	return &Publisher{
		sink:    sink,
		marshal: json.Marshal,
		newID:   uuid.NewString,
		logger:  logger.Named("publisher"),
	}
}

// Publish sends one record.
func (p *Publisher) Publish(ctx context.Context, rec Record) {
	value, err := p.marshal(rec)
	if err != nil {
		metrics.RecordsDropped.WithLabelValues("serialization").Inc()
		p.logger.Error("failed to serialize audit record, dropping",
			zap.String("event", string(rec.Event)),
			zap.String("message", rec.Message),
			zap.Error(err))
		return
	}

	msg := Message{
		ID:    p.newID(),
		Event: rec.Event,
		Value: value,
	}
	if err := p.sink.Write(ctx, msg); err != nil {
		metrics.RecordsDropped.WithLabelValues("transport").Inc()
		p.logger.Debug("audit record not delivered",
			zap.String("record_id", msg.ID),
			zap.String("event", string(rec.Event)),
			zap.String("sink", p.sink.Name()),
			zap.String("error", err.Error()))
		return
	}
	metrics.RecordsPublished.WithLabelValues(string(rec.Event)).Inc()
}

// PublishAll sends records in order.
func (p *Publisher) PublishAll(ctx context.Context, records []Record) {
	for _, rec := range records {
		p.Publish(ctx, rec)
	}
}

// Close closes the sink.
func (p *Publisher) Close() error {
	return p.sink.Close()
}
