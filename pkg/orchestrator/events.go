// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DeploymentStatus is the status reported by a deployment status event.
type DeploymentStatus string

const (
	StatusDeployed               DeploymentStatus = "DEPLOYED"
	StatusFailure                DeploymentStatus = "FAILURE"
	StatusUndeployed             DeploymentStatus = "UNDEPLOYED"
	StatusDeploymentInProgress   DeploymentStatus = "DEPLOYMENT_IN_PROGRESS"
	StatusUndeploymentInProgress DeploymentStatus = "UNDEPLOYMENT_IN_PROGRESS"
	StatusWarning                DeploymentStatus = "WARNING"
	StatusInitDeployment         DeploymentStatus = "INIT_DEPLOYMENT"
	StatusUpdateInProgress       DeploymentStatus = "UPDATE_IN_PROGRESS"
	StatusUpdated                DeploymentStatus = "UPDATED"
	StatusUpdateFailure          DeploymentStatus = "UPDATE_FAILURE"
	StatusUnknown                DeploymentStatus = "UNKNOWN"
)

// Envelope type discriminators used on the wire.
const (
	TypeDeploymentStatus    = "deploymentStatus"
	TypeWorkflowStarted     = "workflowStarted"
	TypeWorkflowStepStarted = "workflowStepStarted"
)

// ErrUnsupportedEvent is returned by DecodeEvent for envelopes whose type is
// not one of the consumed lifecycle events.
var ErrUnsupportedEvent = errors.New("unsupported lifecycle event")

// Event is a lifecycle event emitted by the orchestrator. The set of
// implementations is closed: *DeploymentStatusEvent, *WorkflowStartedEvent
// and *WorkflowStepStartedEvent.
type Event interface {
	meta() EventMeta
}

// EventMeta carries the fields shared by every lifecycle event.
type EventMeta struct {
	// DeploymentID identifies the deployment the event belongs to.
	DeploymentID string `json:"deploymentId"`

	// Date is the event time in epoch milliseconds.
	Date int64 `json:"date"`
}

func (m EventMeta) meta() EventMeta { return m }

// Time converts Date into a time.Time in the given location.
func (m EventMeta) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(m.Date).In(loc)
}

// MetaOf returns the shared fields of an event.
func MetaOf(e Event) EventMeta {
	if e == nil {
		return EventMeta{}
	}
	return e.meta()
}

// DeploymentStatusEvent reports a deployment status change.
type DeploymentStatusEvent struct {
	EventMeta
	Status DeploymentStatus `json:"deploymentStatus"`
}

// WorkflowStartedEvent reports the start of a workflow such as install.
// WorkflowName is nil when the orchestrator did not name the workflow.
type WorkflowStartedEvent struct {
	EventMeta
	WorkflowName *string `json:"workflowName"`
}

// WorkflowStepStartedEvent reports the start of one workflow step on a node.
type WorkflowStepStartedEvent struct {
	EventMeta
	NodeID        string `json:"nodeId"`
	OperationName string `json:"operationName"`
}

// VariantName returns the wire discriminator of an event, or "unknown".
func VariantName(e Event) string {
	switch e.(type) {
	case *DeploymentStatusEvent:
		return TypeDeploymentStatus
	case *WorkflowStartedEvent:
		return TypeWorkflowStarted
	case *WorkflowStepStartedEvent:
		return TypeWorkflowStepStarted
	default:
		return "unknown"
	}
}

// DecodeEvent decodes a JSON envelope of the form {"type": "...", ...fields}
// into the matching Event variant.
func DecodeEvent(data []byte) (Event, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode event envelope: %w", err)
	}

	var event Event
	switch envelope.Type {
	case TypeDeploymentStatus:
		event = &DeploymentStatusEvent{}
	case TypeWorkflowStarted:
		event = &WorkflowStartedEvent{}
	case TypeWorkflowStepStarted:
		event = &WorkflowStepStartedEvent{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEvent, envelope.Type)
	}

	if err := json.Unmarshal(data, event); err != nil {
		return nil, fmt.Errorf("failed to decode %s event: %w", envelope.Type, err)
	}
	return event, nil
}
