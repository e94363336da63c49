/*
Copyright 2024.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/telekom/deploy-auditlog/pkg/metrics"
)

// Kafka message header keys.
const (
	HeaderRecordID    = "record-id"
	HeaderEvent       = "event"
	HeaderContentType = "content-type"
)

// unhealthyWindow is how long a delivery failure keeps the sink unhealthy
// when nothing has been delivered since.
const unhealthyWindow = time.Minute

// ErrSinkClosed is returned by writes after Close.
var ErrSinkClosed = errors.New("kafka sink is closed")

// KafkaSinkConfig configures a KafkaSink.
type KafkaSinkConfig struct {
	// Name labels the sink in metrics. Default: "kafka"
	Name string

	Brokers []string
	Topic   string

	TLS  *KafkaTLSConfig
	SASL *KafkaSASLConfig

	// BatchSize is the number of messages to batch before flushing.
	// Default: 100
	BatchSize int

	// BatchTimeout is the maximum time to wait before flushing a batch.
	// Default: 1 second
	BatchTimeout time.Duration

	// WriteTimeout bounds a single produce request.
	// Default: 10 seconds
	WriteTimeout time.Duration

	// RequiredAcks is -1 for all replicas or 1 for the leader only.
	// Default: -1
	RequiredAcks int

	// Async makes Write return once the record is queued. Delivery results
	// arrive through the writer's completion callback.
	Async bool

	// CompressionCodec is none, gzip, snappy, lz4 or zstd.
	// Default: snappy
	CompressionCodec string
}

func (c KafkaSinkConfig) withDefaults() KafkaSinkConfig {
	if c.Name == "" {
		c.Name = "kafka"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.RequiredAcks == 0 {
		c.RequiredAcks = -1
	}
	return c
}

// messageWriter is the part of kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// deliveryState tracks whether the brokers accepted the most recent batch.
type deliveryState struct {
	mu        sync.Mutex
	healthy   bool
	lastErr   error
	lastErrAt time.Time
	delivered int64
	failed    int64
}

// record stores a delivery outcome and reports whether health flipped.
func (d *deliveryState) record(n int, err error, at time.Time) (changed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.failed += int64(n)
		d.lastErr, d.lastErrAt = err, at
		changed = d.healthy
		d.healthy = false
		return changed
	}
	d.delivered += int64(n)
	changed = !d.healthy
	d.healthy = true
	return changed
}

func (d *deliveryState) check(now time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.healthy || d.lastErr == nil || now.Sub(d.lastErrAt) >= unhealthyWindow {
		return nil
	}
	return fmt.Errorf("kafka sink unhealthy: %w (at %s)", d.lastErr, d.lastErrAt.Format(time.RFC3339))
}

// KafkaSink publishes audit records to a single Kafka topic.
type KafkaSink struct {
	name   string
	topic  string
	async  bool
	writer messageWriter
	logger *zap.Logger
	now    func() time.Time
	state  deliveryState

	mu     sync.RWMutex
	closed bool
}

// NewKafkaSink creates a KafkaSink. Brokers are contacted lazily on the first
// write.
func NewKafkaSink(cfg KafkaSinkConfig, logger *zap.Logger) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one Kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	cfg = cfg.withDefaults()

	transport, err := newKafkaTransport(cfg.TLS, cfg.SASL)
	if err != nil {
		logger.Error("failed to build Kafka transport",
			zap.Strings("brokers", cfg.Brokers),
			zap.Error(err))
		return nil, err
	}

	compression, known := compressionCodec(cfg.CompressionCodec)
	if !known {
		logger.Warn("unknown compression codec, defaulting to snappy",
			zap.String("codec", cfg.CompressionCodec))
	}

	sink := newKafkaSink(cfg, nil, logger)
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Async:        cfg.Async,
		Compression:  compression,
		Transport:    transport,
	}
	if cfg.Async {
		w.Completion = sink.onCompletion
	}
	sink.writer = w

	logger.Info("Kafka audit sink created",
		zap.String("name", cfg.Name),
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic),
		zap.Bool("async", cfg.Async),
		zap.Bool("tls_enabled", transport.TLS != nil),
		zap.Bool("sasl_enabled", transport.SASL != nil))
	return sink, nil
}

// newKafkaSink assembles a sink around a writer. The sink starts healthy.
func newKafkaSink(cfg KafkaSinkConfig, w messageWriter, logger *zap.Logger) *KafkaSink {
	s := &KafkaSink{
		name:   cfg.Name,
		topic:  cfg.Topic,
		async:  cfg.Async,
		writer: w,
		logger: logger.Named("kafka-audit"),
		now:    time.Now,
	}
	s.state.healthy = true
	metrics.AuditSinkConnected.WithLabelValues(s.name).Set(1)
	return s
}

// kafkaMessage converts a Message into a keyless Kafka message. Records of
// one deployment have no ordering requirement across partitions.
func kafkaMessage(msg Message) kafka.Message {
	headers := []kafka.Header{
		{Key: HeaderEvent, Value: []byte(msg.Event)},
		{Key: HeaderContentType, Value: []byte("application/json")},
	}
	if msg.ID != "" {
		headers = append(headers, kafka.Header{Key: HeaderRecordID, Value: []byte(msg.ID)})
	}
	return kafka.Message{Value: msg.Value, Headers: headers}
}

// Write sends a record to Kafka. In async mode it returns once the record is
// queued; delivery errors then surface through logs and metrics only.
func (s *KafkaSink) Write(ctx context.Context, msg Message) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		metrics.AuditSinkErrors.WithLabelValues(s.name, errTypeClosed).Inc()
		return ErrSinkClosed
	}

	inFlight := metrics.AuditKafkaMessagesInFlight.WithLabelValues(s.name)
	inFlight.Inc()
	start := s.now()
	err := s.writer.WriteMessages(ctx, kafkaMessage(msg))
	if err != nil || !s.async {
		inFlight.Dec()
		metrics.AuditSinkLatency.WithLabelValues(s.name).Observe(s.now().Sub(start).Seconds())
	}
	if err != nil {
		errorType := s.fail(1, err,
			zap.String("record_id", msg.ID),
			zap.String("event", string(msg.Event)))
		return fmt.Errorf("failed to write to Kafka (%s): %w", errorType, err)
	}
	if !s.async {
		s.succeed(1)
	}
	return nil
}

// onCompletion receives delivery results of async batches.
func (s *KafkaSink) onCompletion(messages []kafka.Message, err error) {
	metrics.AuditKafkaMessagesInFlight.WithLabelValues(s.name).Sub(float64(len(messages)))
	if err != nil {
		s.fail(len(messages), err, zap.Int("batch_size", len(messages)))
		return
	}
	s.succeed(len(messages))
}

func (s *KafkaSink) fail(n int, err error, extra ...zap.Field) string {
	errorType := kafkaErrorType(err)
	metrics.AuditSinkErrors.WithLabelValues(s.name, errorType).Inc()
	if s.state.record(n, err, s.now()) {
		metrics.AuditSinkConnected.WithLabelValues(s.name).Set(0)
	}

	fields := append([]zap.Field{
		zap.String("error_type", errorType),
		zap.String("topic", s.topic),
		zap.Error(err),
	}, extra...)
	switch errorType {
	case errTypeNetwork, errTypeDNS, errTypeTimeout, errTypeBroker:
		s.logger.Warn("Kafka temporarily unavailable, audit record dropped", fields...)
	case errTypeAuth, errTypeAuthorization, errTypeTLS:
		s.logger.Error("Kafka rejected the connection, audit record dropped", fields...)
	default:
		s.logger.Error("failed to write audit record to Kafka", fields...)
	}
	return errorType
}

func (s *KafkaSink) succeed(n int) {
	if s.state.record(n, nil, s.now()) {
		metrics.AuditSinkConnected.WithLabelValues(s.name).Set(1)
		s.logger.Info("Kafka delivery restored", zap.String("topic", s.topic))
	}
}

// Close flushes pending async batches and closes the writer. Further calls
// are no-ops.
func (s *KafkaSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	metrics.AuditSinkConnected.WithLabelValues(s.name).Set(0)

	err := s.writer.Close()
	delivered, failed := s.Delivered()
	s.logger.Info("Kafka audit sink closed",
		zap.String("topic", s.topic),
		zap.Int64("delivered", delivered),
		zap.Int64("failed", failed))
	if err != nil {
		return fmt.Errorf("failed to close Kafka writer: %w", err)
	}
	return nil
}

// Name returns the sink identifier.
func (s *KafkaSink) Name() string {
	return s.name
}

// Delivered returns how many records the brokers accepted and rejected.
func (s *KafkaSink) Delivered() (delivered, failed int64) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	return s.state.delivered, s.state.failed
}

// HealthCheck fails when the sink is closed, or when the last delivery failed
// within the past minute. It never sends a message.
func (s *KafkaSink) HealthCheck() error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrSinkClosed
	}
	return s.state.check(s.now())
}
