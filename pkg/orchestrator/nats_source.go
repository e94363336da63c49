// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/telekom/deploy-auditlog/pkg/metrics"
	"github.com/telekom/deploy-auditlog/pkg/telemetry"
)

// NATSSourceConfig configures a NATSSource.
type NATSSourceConfig struct {
	// URL is the NATS server URL (comma separated for a cluster).
	URL string

	// Subject carries the JSON encoded lifecycle events.
	Subject string

	// QueueGroup load-balances events across replicas when set.
	QueueGroup string

	// Name is the connection name reported to the server.
	// Default: "deploy-auditlog"
	Name string

	// ReconnectWait is the delay between reconnect attempts.
	// Default: 2 seconds
	ReconnectWait time.Duration
}

// NATSSource bridges lifecycle events published on NATS into a Dispatcher.
type NATSSource struct {
	cfg        NATSSourceConfig
	conn       *nats.Conn
	sub        *nats.Subscription
	dispatcher *Dispatcher
	logger     *zap.Logger

	mu  sync.Mutex
	ctx context.Context
}

// NewNATSSource connects to NATS. Call Start to begin consuming.
func NewNATSSource(cfg NATSSourceConfig, dispatcher *Dispatcher, logger *zap.Logger) (*NATSSource, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("NATS URL is required")
	}
	if cfg.Subject == "" {
		return nil, fmt.Errorf("NATS subject is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if cfg.Name == "" {
		cfg.Name = "deploy-auditlog"
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}

	s := &NATSSource{
		cfg:        cfg,
		dispatcher: dispatcher,
		logger:     logger.Named("nats-source"),
		ctx:        context.Background(),
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				s.logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			s.logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	s.conn = conn

	s.logger.Info("Connected to NATS",
		zap.String("url", conn.ConnectedUrl()),
		zap.String("subject", cfg.Subject),
		zap.String("queue_group", cfg.QueueGroup))
	return s, nil
}

// Start subscribes to the configured subject. Events are dispatched with ctx.
func (s *NATSSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		return fmt.Errorf("NATS source already started")
	}
	s.ctx = ctx

	var (
		sub *nats.Subscription
		err error
	)
	if s.cfg.QueueGroup != "" {
		sub, err = s.conn.QueueSubscribe(s.cfg.Subject, s.cfg.QueueGroup, s.handleMsg)
	} else {
		sub, err = s.conn.Subscribe(s.cfg.Subject, s.handleMsg)
	}
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.cfg.Subject, err)
	}
	s.sub = sub
	return nil
}

func (s *NATSSource) handleMsg(msg *nats.Msg) {
	event, err := DecodeEvent(msg.Data)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, ErrUnsupportedEvent) {
			reason = "unsupported"
		}
		metrics.EventsUndecodable.WithLabelValues(reason).Inc()
		s.logger.Debug("skipping undecodable event",
			zap.String("subject", msg.Subject),
			zap.String("reason", reason),
			zap.Error(err))
		return
	}

	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	s.dispatcher.Dispatch(telemetry.ExtractHeaders(ctx, msg.Header), event)
}

// Close unsubscribes and drains the connection.
func (s *NATSSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sub != nil {
		if err := s.sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			s.logger.Warn("failed to unsubscribe", zap.Error(err))
		}
		s.sub = nil
	}
	if s.conn == nil {
		return nil
	}
	if err := s.conn.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	s.logger.Info("NATS source closed")
	return nil
}
