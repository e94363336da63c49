// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/telekom/deploy-auditlog/pkg/metrics"
)

// Dispatcher is an in-process EventSource. Dispatch delivers an event to every
// subscribed listener synchronously, in subscription order.
type Dispatcher struct {
	mu        sync.RWMutex
	listeners []Listener
	logger    *zap.Logger
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{logger: logger.Named("dispatcher")}
}

// Subscribe registers a listener. Subscribing twice is a no-op.
func (d *Dispatcher) Subscribe(listener Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, l := range d.listeners {
		if l == listener {
			return
		}
	}
	d.listeners = append(d.listeners, listener)
	d.logger.Debug("listener subscribed", zap.Int("listeners", len(d.listeners)))
}

// Unsubscribe removes a listener.
func (d *Dispatcher) Unsubscribe(listener Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, l := range d.listeners {
		if l == listener {
			d.listeners = append(d.listeners[:i:i], d.listeners[i+1:]...)
			d.logger.Debug("listener unsubscribed", zap.Int("listeners", len(d.listeners)))
			return
		}
	}
}

// Len returns the number of subscribed listeners.
func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.listeners)
}

// Dispatch delivers the event to the listeners that can handle it.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) {
	d.mu.RLock()
	listeners := make([]Listener, len(d.listeners))
	copy(listeners, d.listeners)
	d.mu.RUnlock()

	metrics.EventsReceived.WithLabelValues(VariantName(event)).Inc()

	for _, l := range listeners {
		if l.CanHandle(event) {
			l.EventHappened(ctx, event)
		}
	}
}
