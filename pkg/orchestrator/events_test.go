// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	install := "install"

	tests := []struct {
		name     string
		payload  string
		expected Event
	}{
		{
			name:    "deployment status",
			payload: `{"type":"deploymentStatus","deploymentId":"d1","date":1709287200000,"deploymentStatus":"DEPLOYED"}`,
			expected: &DeploymentStatusEvent{
				EventMeta: EventMeta{DeploymentID: "d1", Date: 1709287200000},
				Status:    StatusDeployed,
			},
		},
		{
			name:    "workflow started",
			payload: `{"type":"workflowStarted","deploymentId":"d1","date":1,"workflowName":"install"}`,
			expected: &WorkflowStartedEvent{
				EventMeta:    EventMeta{DeploymentID: "d1", Date: 1},
				WorkflowName: &install,
			},
		},
		{
			name:    "workflow started without name",
			payload: `{"type":"workflowStarted","deploymentId":"d1","date":1}`,
			expected: &WorkflowStartedEvent{
				EventMeta: EventMeta{DeploymentID: "d1", Date: 1},
			},
		},
		{
			name:    "workflow step started",
			payload: `{"type":"workflowStepStarted","deploymentId":"d2","date":2,"nodeId":"job1","operationName":"tosca.interfaces.node.lifecycle.runnable.submit"}`,
			expected: &WorkflowStepStartedEvent{
				EventMeta:     EventMeta{DeploymentID: "d2", Date: 2},
				NodeID:        "job1",
				OperationName: "tosca.interfaces.node.lifecycle.runnable.submit",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := DecodeEvent([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, event)
		})
	}
}

func TestDecodeEvent_Errors(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		unsupported bool
	}{
		{name: "unknown type", payload: `{"type":"paasMessage","deploymentId":"d1"}`, unsupported: true},
		{name: "missing type", payload: `{"deploymentId":"d1"}`, unsupported: true},
		{name: "not json", payload: `deployed!`},
		{name: "wrong field type", payload: `{"type":"deploymentStatus","date":"yesterday"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := DecodeEvent([]byte(tt.payload))
			require.Error(t, err)
			assert.Nil(t, event)
			assert.Equal(t, tt.unsupported, errors.Is(err, ErrUnsupportedEvent))
		})
	}
}

func TestVariantName(t *testing.T) {
	assert.Equal(t, TypeDeploymentStatus, VariantName(&DeploymentStatusEvent{}))
	assert.Equal(t, TypeWorkflowStarted, VariantName(&WorkflowStartedEvent{}))
	assert.Equal(t, TypeWorkflowStepStarted, VariantName(&WorkflowStepStartedEvent{}))
	assert.Equal(t, "unknown", VariantName(nil))
}

func TestMetaOf(t *testing.T) {
	ev := &WorkflowStepStartedEvent{EventMeta: EventMeta{DeploymentID: "d1", Date: 42}}
	assert.Equal(t, EventMeta{DeploymentID: "d1", Date: 42}, MetaOf(ev))
	assert.Equal(t, EventMeta{}, MetaOf(nil))
}

func TestEventMeta_Time(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	m := EventMeta{Date: 1709287200123}

	utc := m.Time(time.UTC)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 123000000, time.UTC), utc)

	local := m.Time(paris)
	assert.True(t, local.Equal(utc))
	assert.Equal(t, 11, local.Hour())

	assert.Equal(t, time.Local, m.Time(nil).Location())
}
