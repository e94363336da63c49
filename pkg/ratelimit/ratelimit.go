package ratelimit

import (
	"context"
	"math"

	"golang.org/x/time/rate"
)

// Config holds rate limiter configuration
type Config struct {
	// Rate is the number of requests allowed per second. Zero or less
	// disables limiting.
	Rate float64 `yaml:"rate"`
	// Burst is the maximum number of requests allowed in a burst.
	// Defaults to the rate rounded up.
	Burst int `yaml:"burst"`
}

// DefaultOrchestratorConfig returns a limit suited to a single orchestrator
// instance: 50 req/s, burst of 100
func DefaultOrchestratorConfig() Config {
	return Config{
		Rate:  50,
		Burst: 100,
	}
}

// Enabled reports whether the config limits anything.
func (c Config) Enabled() bool {
	return c.Rate > 0
}

// Limiter is a shared token bucket. A nil Limiter never blocks.
type Limiter struct {
	limiter *rate.Limiter
	config  Config
}

// New creates a limiter, or returns nil when cfg is disabled.
func New(cfg Config) *Limiter {
	if !cfg.Enabled() {
		return nil
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(math.Ceil(cfg.Rate))
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
		config:  cfg,
	}
}

// Wait blocks until a request may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}

// Allow reports whether a request may proceed now, consuming a token if so.
func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}
	return l.limiter.Allow()
}

// Config returns the effective configuration.
func (l *Limiter) Config() Config {
	if l == nil {
		return Config{}
	}
	return l.config
}
