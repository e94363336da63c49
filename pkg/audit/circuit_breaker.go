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
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/deploy-auditlog/pkg/metrics"
)

// CircuitState represents the current state of a circuit breaker.
type CircuitState int32

const (
	// CircuitClosed lets writes through.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects writes until OpenTimeout elapsed.
	CircuitOpen
	// CircuitHalfOpen lets a single probe write through.
	CircuitHalfOpen
)

// String returns the string representation of the circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures a CircuitBreakerSink.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// circuit. Zero or less disables the breaker.
	FailureThreshold int

	// OpenTimeout is how long the circuit stays open before a probe is allowed.
	// Default: 30s
	OpenTimeout time.Duration
}

// ErrCircuitOpen is returned when the circuit breaker rejects a write.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerSink stops hammering an unreachable sink. Records written
// while the circuit is open are dropped.
type CircuitBreakerSink struct {
	sink   Sink
	cfg    CircuitBreakerConfig
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	state    CircuitState
	failures int
	openedAt time.Time
	probing  bool
}

// NewCircuitBreakerSink wraps sink with a circuit breaker.
func NewCircuitBreakerSink(sink Sink, cfg CircuitBreakerConfig, logger *zap.Logger) *CircuitBreakerSink {
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	logger.Info("circuit breaker created",
		zap.String("sink", sink.Name()),
		zap.Int("failure_threshold", cfg.FailureThreshold),
		zap.Duration("open_timeout", cfg.OpenTimeout))
	metrics.AuditSinkBreakerState.WithLabelValues(sink.Name()).Set(float64(CircuitClosed))

	return &CircuitBreakerSink{
		sink:   sink,
		cfg:    cfg,
		logger: logger.Named("circuit-breaker").With(zap.String("sink", sink.Name())),
		now:    time.Now,
	}
}

// Write forwards the message unless the circuit is open.
func (s *CircuitBreakerSink) Write(ctx context.Context, msg Message) error {
	if s.cfg.FailureThreshold <= 0 {
		return s.sink.Write(ctx, msg)
	}
	if !s.allow() {
		metrics.AuditSinkBreakerRejections.WithLabelValues(s.sink.Name()).Inc()
		return ErrCircuitOpen
	}

	err := s.sink.Write(ctx, msg)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.probing = false
	if err != nil {
		s.failures++
		if s.state == CircuitHalfOpen || s.failures >= s.cfg.FailureThreshold {
			s.transition(CircuitOpen)
		}
		return err
	}
	s.failures = 0
	if s.state != CircuitClosed {
		s.transition(CircuitClosed)
	}
	return nil
}

func (s *CircuitBreakerSink) allow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case CircuitOpen:
		if s.now().Sub(s.openedAt) < s.cfg.OpenTimeout {
			return false
		}
		s.transition(CircuitHalfOpen)
		s.probing = true
		return true
	case CircuitHalfOpen:
		if s.probing {
			return false
		}
		s.probing = true
		return true
	default:
		return true
	}
}

// transition must be called with mu held.
func (s *CircuitBreakerSink) transition(to CircuitState) {
	from := s.state
	s.state = to
	s.failures = 0
	if to == CircuitOpen {
		s.openedAt = s.now()
	}
	metrics.AuditSinkBreakerState.WithLabelValues(s.sink.Name()).Set(float64(to))
	s.logger.Info("circuit breaker state changed",
		zap.String("from", from.String()),
		zap.String("to", to.String()))
}

// State returns the current circuit state.
func (s *CircuitBreakerSink) State() CircuitState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close closes the underlying sink.
func (s *CircuitBreakerSink) Close() error {
	s.logger.Info("closing circuit breaker sink", zap.String("state", s.State().String()))
	return s.sink.Close()
}

// Name returns the wrapped sink's name.
func (s *CircuitBreakerSink) Name() string {
	return s.sink.Name()
}

// Unwrap returns the wrapped sink.
func (s *CircuitBreakerSink) Unwrap() Sink {
	return s.sink
}
