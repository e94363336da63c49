// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/telekom/deploy-auditlog/pkg/metrics"
	"github.com/telekom/deploy-auditlog/pkg/ratelimit"
	"github.com/telekom/deploy-auditlog/pkg/telemetry"
	"github.com/telekom/deploy-auditlog/pkg/utils"
)

// ClientConfig configures the orchestrator REST client.
type ClientConfig struct {
	// BaseURL is the orchestrator REST API root, e.g. https://a4c:8088/rest/v1.
	BaseURL string

	// Token is sent as a bearer token when set.
	Token string

	// Timeout bounds every request.
	// Default: 10 seconds
	Timeout time.Duration

	// InsecureSkipVerify skips server certificate verification.
	// WARNING: Only use for testing.
	InsecureSkipVerify bool

	// RateLimit throttles requests shared across all stores. Disabled when
	// the rate is zero.
	RateLimit ratelimit.Config

	// Retry retries transport failures and 5xx responses. Zero MaxRetries
	// sends every request once.
	Retry utils.RetryConfig
}

// Client talks to the orchestrator REST API. It implements DeploymentStore,
// TopologyStore, MetaPropertyStore and TypeContextProvider.
type Client struct {
	http    *resty.Client
	limiter *ratelimit.Limiter
	retry   utils.RetryConfig
	logger  *zap.Logger
}

var (
	_ DeploymentStore     = (*Client)(nil)
	_ TopologyStore       = (*Client)(nil)
	_ MetaPropertyStore   = (*Client)(nil)
	_ TypeContextProvider = (*Client)(nil)
)

// NewClient creates a Client.
func NewClient(cfg ClientConfig, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("orchestrator base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid orchestrator base URL %q: %w", cfg.BaseURL, err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		httpClient.SetAuthToken(cfg.Token)
	}
	if cfg.InsecureSkipVerify {
		httpClient.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec // Configurable for testing
	}

	logger.Info("Orchestrator client created",
		zap.String("baseURL", cfg.BaseURL),
		zap.Duration("timeout", timeout),
		zap.Bool("auth", cfg.Token != ""),
		zap.Float64("rate_limit", cfg.RateLimit.Rate),
		zap.Int("max_retries", cfg.Retry.MaxRetries))

	return &Client{
		http:    httpClient,
		limiter: ratelimit.New(cfg.RateLimit),
		retry:   cfg.Retry,
		logger:  logger.Named("orchestrator-client"),
	}, nil
}

// Deployment fetches a deployment.
func (c *Client) Deployment(ctx context.Context, id string) (*Deployment, error) {
	var out Deployment
	if err := c.get(ctx, "/deployments/{id}", map[string]string{"id": id}, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UnprocessedTopology fetches the topology as declared by the application author.
func (c *Client) UnprocessedTopology(ctx context.Context, deploymentID string) (*Topology, error) {
	return c.topology(ctx, "/deployments/{id}/topology/unprocessed", deploymentID)
}

// RuntimeTopology fetches the topology as processed by the orchestrator.
func (c *Client) RuntimeTopology(ctx context.Context, deploymentID string) (*Topology, error) {
	return c.topology(ctx, "/deployments/{id}/topology/runtime", deploymentID)
}

func (c *Client) topology(ctx context.Context, path, deploymentID string) (*Topology, error) {
	out := &Topology{}
	if err := c.get(ctx, path, map[string]string{"id": deploymentID}, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// MetaPropertyKeyByName resolves a meta-property name into its id.
func (c *Client) MetaPropertyKeyByName(ctx context.Context, name string, target MetaPropertyTarget) (string, error) {
	var out struct {
		Key string `json:"key"`
	}
	query := url.Values{}
	query.Set("name", name)
	query.Set("target", string(target))
	if err := c.get(ctx, "/metaproperties/keys", nil, query, &out); err != nil {
		return "", err
	}
	if out.Key == "" {
		return "", fmt.Errorf("meta-property %q: %w", name, ErrNotFound)
	}
	return out.Key, nil
}

// AcquireTypeContext opens a type lookup scope bound to the given archives.
// Node types are cached until Release.
func (c *Client) AcquireTypeContext(_ context.Context, dependencies []CSARDependency) (TypeContext, error) {
	return &restTypeContext{
		client:       c,
		dependencies: dependencies,
		cache:        make(map[string]*NodeType),
	}, nil
}

type restTypeContext struct {
	client       *Client
	dependencies []CSARDependency
	cache        map[string]*NodeType
	released     bool
}

func (tc *restTypeContext) NodeType(ctx context.Context, typeName string) (*NodeType, error) {
	if tc.released {
		return nil, fmt.Errorf("type context already released")
	}
	if nt, ok := tc.cache[typeName]; ok {
		return nt, nil
	}

	query := url.Values{}
	for _, dep := range tc.dependencies {
		query.Add("dependency", dep.String())
	}
	var out NodeType
	if err := tc.client.get(ctx, "/types/nodes/{name}", map[string]string{"name": typeName}, query, &out); err != nil {
		return nil, fmt.Errorf("node type %q: %w", typeName, err)
	}
	if out.ElementID == "" {
		out.ElementID = typeName
	}
	tc.cache[typeName] = &out
	return &out, nil
}

func (tc *restTypeContext) Release() {
	tc.released = true
	tc.cache = nil
}

// statusError is a non-404 error response.
type statusError struct {
	path string
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("request %s returned error status: %d", e.path, e.code)
}

// transportError wraps a failure to get any response.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// retryable reports whether a failed request may succeed when sent again.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= http.StatusInternalServerError
	}
	var te *transportError
	return errors.As(err, &te)
}

func (c *Client) get(ctx context.Context, path string, pathParams map[string]string, query url.Values, out interface{}) (err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "orchestrator.get")
	span.SetAttributes(attribute.String("http.route", path))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	attempts := 0
	err = utils.Retry(ctx, c.retry, retryable, func(ctx context.Context) error {
		attempts++
		return c.send(ctx, path, pathParams, query, out)
	})
	span.SetAttributes(attribute.Int("http.attempts", attempts))
	return err
}

func (c *Client) send(ctx context.Context, path string, pathParams map[string]string, query url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		metrics.OrchestratorRequestErrors.WithLabelValues(path, "rate_limited").Inc()
		return fmt.Errorf("request %s not sent: %w", path, err)
	}

	start := time.Now()
	req := c.http.R().
		SetContext(ctx).
		ForceContentType("application/json").
		SetResult(out)
	if pathParams != nil {
		req.SetPathParams(pathParams)
	}
	if query != nil {
		req.SetQueryParamsFromValues(query)
	}

	resp, err := req.Get(path)
	metrics.OrchestratorRequestLatency.WithLabelValues(path).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.OrchestratorRequestErrors.WithLabelValues(path, "transport").Inc()
		c.logger.Debug("orchestrator request failed",
			zap.String("path", path),
			zap.Any("params", pathParams),
			zap.Error(err))
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("request %s timed out: %w", path, err)
		}
		return fmt.Errorf("request %s failed: %w", path, &transportError{err: err})
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		metrics.OrchestratorRequestErrors.WithLabelValues(path, "not_found").Inc()
		return fmt.Errorf("request %s: %w", path, ErrNotFound)
	case resp.IsError():
		metrics.OrchestratorRequestErrors.WithLabelValues(path, "status").Inc()
		c.logger.Debug("orchestrator returned error",
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode()))
		return &statusError{path: path, code: resp.StatusCode()}
	}
	return nil
}
