// Package utils provides shared helpers, currently retry with exponential
// backoff for calls to external services.
package utils
