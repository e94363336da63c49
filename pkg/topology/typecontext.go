// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package topology

import (
	"context"
	"fmt"

	"github.com/telekom/deploy-auditlog/pkg/orchestrator"
)

// WithTypeContext acquires a type context for the given archives, runs fn and
// releases the context on every exit path, including panics in fn.
func WithTypeContext(
	ctx context.Context,
	provider orchestrator.TypeContextProvider,
	dependencies []orchestrator.CSARDependency,
	fn func(types orchestrator.TypeResolver) error,
) error {
	if provider == nil {
		return fmt.Errorf("no type context provider")
	}
	tc, err := provider.AcquireTypeContext(ctx, dependencies)
	if err != nil {
		return fmt.Errorf("failed to acquire type context: %w", err)
	}
	defer tc.Release()

	return fn(tc)
}
