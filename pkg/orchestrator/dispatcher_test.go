// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/telekom/deploy-auditlog/pkg/metrics"
)

type recordingListener struct {
	name   string
	accept func(Event) bool
	log    *[]string
	events []Event
	ctxs   []context.Context
}

func (l *recordingListener) CanHandle(e Event) bool {
	return l.accept == nil || l.accept(e)
}

func (l *recordingListener) EventHappened(ctx context.Context, e Event) {
	l.events = append(l.events, e)
	l.ctxs = append(l.ctxs, ctx)
	if l.log != nil {
		*l.log = append(*l.log, l.name)
	}
}

func TestDispatcher_DeliversInSubscriptionOrder(t *testing.T) {
	d := NewDispatcher(zaptest.NewLogger(t))
	var order []string
	first := &recordingListener{name: "first", log: &order}
	second := &recordingListener{name: "second", log: &order}

	d.Subscribe(first)
	d.Subscribe(second)
	d.Subscribe(first)
	assert.Equal(t, 2, d.Len(), "subscribing twice is a no-op")

	ev := &DeploymentStatusEvent{EventMeta: EventMeta{DeploymentID: "d1"}, Status: StatusDeployed}
	d.Dispatch(context.Background(), ev)

	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, []Event{ev}, first.events)
}

func TestDispatcher_SkipsListenersThatCannotHandle(t *testing.T) {
	d := NewDispatcher(zaptest.NewLogger(t))
	statusOnly := &recordingListener{accept: func(e Event) bool {
		_, ok := e.(*DeploymentStatusEvent)
		return ok
	}}
	d.Subscribe(statusOnly)

	d.Dispatch(context.Background(), &WorkflowStartedEvent{})
	d.Dispatch(context.Background(), &DeploymentStatusEvent{})

	assert.Len(t, statusOnly.events, 1)
}

func TestDispatcher_Unsubscribe(t *testing.T) {
	d := NewDispatcher(zaptest.NewLogger(t))
	a := &recordingListener{}
	b := &recordingListener{}
	d.Subscribe(a)
	d.Subscribe(b)

	d.Unsubscribe(a)
	d.Unsubscribe(a)
	assert.Equal(t, 1, d.Len())

	d.Dispatch(context.Background(), &WorkflowStartedEvent{})
	assert.Empty(t, a.events)
	assert.Len(t, b.events, 1)
}

func TestDispatcher_CountsReceivedEvents(t *testing.T) {
	d := NewDispatcher(zaptest.NewLogger(t))
	counter := metrics.EventsReceived.WithLabelValues(TypeWorkflowStepStarted)
	before := testutil.ToFloat64(counter)

	d.Dispatch(context.Background(), &WorkflowStepStartedEvent{})
	d.Dispatch(context.Background(), &WorkflowStepStartedEvent{})

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}
