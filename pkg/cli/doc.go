// Package cli defines the command-line flags of the deploy-auditlog binary
// and their environment variable fallbacks.
package cli
