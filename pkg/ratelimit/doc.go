// Package ratelimit throttles outgoing requests with a token bucket so that
// bursts of lifecycle events do not flood the orchestrator API.
package ratelimit
