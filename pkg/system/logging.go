// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package system

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds the process logger: development encoding with debug level
// when debug is set, production JSON otherwise.
func NewLogger(debug bool) (*zap.Logger, error) {
	var (
		zlog *zap.Logger
		err  error
	)
	if debug {
		zlog, err = zap.NewDevelopment()
	} else {
		zlog, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	return zlog, nil
}
