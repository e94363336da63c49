// SPDX-FileCopyrightText: 2024 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RetryConfig defines the configuration for retry operations
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (0 means no retries)
	MaxRetries int
	// InitialBackoff is the initial backoff duration before the first retry
	InitialBackoff time.Duration
	// MaxBackoff is the maximum backoff duration between retries
	MaxBackoff time.Duration
	// BackoffMultiplier is the factor by which backoff is multiplied after each retry
	BackoffMultiplier float64
}

// DefaultRetryConfig returns a sensible default retry configuration for
// orchestrator lookups
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Retry calls fn until it succeeds, returns an error retryable rejects, or
// the retries are exhausted. The last error is returned.
func Retry(ctx context.Context, config RetryConfig, retryable func(error) bool, fn func(context.Context) error) error {
	backoff := config.InitialBackoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	multiplier := config.BackoffMultiplier
	if multiplier < 1 {
		multiplier = 1
	}

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= config.MaxRetries || !retryable(err) {
			return err
		}

		zap.S().Debugw("Call failed, retrying",
			"attempt", attempt+1,
			"maxRetries", config.MaxRetries,
			"backoff", backoff.String(),
			"error", err,
		)

		select {
		case <-ctx.Done():
			return err
		case <-time.After(backoff):
		}

		backoff = time.Duration(float64(backoff) * multiplier)
		if config.MaxBackoff > 0 && backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}
}
