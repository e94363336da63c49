// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"errors"
)

// ErrNotFound is returned by the stores when the requested object is unknown.
var ErrNotFound = errors.New("not found")

// Listener receives lifecycle events from an EventSource.
type Listener interface {
	// CanHandle reports whether the listener wants the event.
	CanHandle(event Event) bool

	// EventHappened is called synchronously by the dispatcher. It must not
	// panic or block other listeners indefinitely.
	EventHappened(ctx context.Context, event Event)
}

// EventSource is the orchestrator's event bus.
type EventSource interface {
	Subscribe(listener Listener)
	Unsubscribe(listener Listener)
}

// DeploymentStore fetches deployments by id.
type DeploymentStore interface {
	Deployment(ctx context.Context, id string) (*Deployment, error)
}

// TopologyStore fetches the declared and the runtime topology of a deployment.
type TopologyStore interface {
	// UnprocessedTopology returns the topology as declared by its author.
	UnprocessedTopology(ctx context.Context, deploymentID string) (*Topology, error)

	// RuntimeTopology returns the topology after orchestration modifiers ran.
	RuntimeTopology(ctx context.Context, deploymentID string) (*Topology, error)
}

// MetaPropertyTarget is the kind of element a meta-property applies to.
type MetaPropertyTarget string

const (
	MetaPropertyTargetComponent   MetaPropertyTarget = "component"
	MetaPropertyTargetApplication MetaPropertyTarget = "application"
	MetaPropertyTargetLocation    MetaPropertyTarget = "location"
)

// MetaPropertyStore resolves meta-property names into their ids.
type MetaPropertyStore interface {
	MetaPropertyKeyByName(ctx context.Context, name string, target MetaPropertyTarget) (string, error)
}

// TypeResolver looks node types up by name.
type TypeResolver interface {
	NodeType(ctx context.Context, typeName string) (*NodeType, error)
}

// TypeContext is a TypeResolver scoped to a set of archive dependencies. It
// is not re-entrant and must be released before the event handler returns.
type TypeContext interface {
	TypeResolver
	Release()
}

// TypeContextProvider acquires type contexts.
type TypeContextProvider interface {
	AcquireTypeContext(ctx context.Context, dependencies []CSARDependency) (TypeContext, error)
}
