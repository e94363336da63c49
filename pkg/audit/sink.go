/*
Copyright 2026.

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

	"go.uber.org/zap"
)

// Sink is a destination for serialized audit records. Implementations must be
// safe for concurrent Write calls.
type Sink interface {
	Write(ctx context.Context, msg Message) error
	Close() error
	Name() string
}

// LogSink mirrors every record to the debug log as "=> KAFKA[topic] : payload".
type LogSink struct {
	topic  string
	logger *zap.Logger
}

// NewLogSink creates a LogSink. The topic only labels the log line.
func NewLogSink(topic string, logger *zap.Logger) *LogSink {
	return &LogSink{topic: topic, logger: logger.Named("audit")}
}

func (s *LogSink) Write(_ context.Context, msg Message) error {
	if ce := s.logger.Check(zap.DebugLevel, ""); ce != nil {
		ce.Message = fmt.Sprintf("=> KAFKA[%s] : %s", s.topic, msg.Value)
		ce.Write(zap.String("record_id", msg.ID), zap.String("event", string(msg.Event)))
	}
	return nil
}

func (s *LogSink) Close() error { return nil }

func (s *LogSink) Name() string { return "log" }

// MultiSink fans a record out to several sinks in order. A failing sink does
// not keep the record from the others.
type MultiSink struct {
	sinks  []Sink
	logger *zap.Logger
}

func NewMultiSink(sinks []Sink, logger *zap.Logger) *MultiSink {
	return &MultiSink{sinks: sinks, logger: logger}
}

// Write returns the joined errors of every failing sink, each prefixed with
// the sink name.
func (s *MultiSink) Write(ctx context.Context, msg Message) error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Write(ctx, msg); err != nil {
			// String form keeps transient broker errors free of stack traces.
			s.logger.Warn("audit sink write failed",
				zap.String("sink", sink.Name()),
				zap.String("record_id", msg.ID),
				zap.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink, even after a failure.
func (s *MultiSink) Close() error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (s *MultiSink) Name() string { return "multi" }

// Sinks returns the wrapped sinks in write order.
func (s *MultiSink) Sinks() []Sink {
	return s.sinks
}
