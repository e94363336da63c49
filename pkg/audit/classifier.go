// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/deploy-auditlog/pkg/metrics"
	"github.com/telekom/deploy-auditlog/pkg/orchestrator"
	"github.com/telekom/deploy-auditlog/pkg/topology"
)

// Defaults for job submission detection.
const (
	DefaultSubmitOperation = "tosca.interfaces.node.lifecycle.runnable.submit"
	DefaultJobType         = "org.alien4cloud.nodes.Job"
)

// Workflow names that open a deployment or an undeployment.
const (
	WorkflowInstall   = "install"
	WorkflowUninstall = "uninstall"
)

// ClassifierConfig selects which events produce records.
type ClassifierConfig struct {
	// ModuleTagName is the name of the meta-property marking module types.
	// Empty disables per-module records.
	ModuleTagName string `yaml:"moduleTagName"`

	// ModuleTagValue is the meta-property value a module type must carry.
	ModuleTagValue string `yaml:"moduleTagValue"`

	// SubmitOperation is the workflow step operation reported as JOB_SUBMIT.
	SubmitOperation string `yaml:"submitOperation"`

	// JobType is the type job nodes derive from.
	JobType string `yaml:"jobType"`
}

// WithDefaults fills the job detection fields.
func (c ClassifierConfig) WithDefaults() ClassifierConfig {
	if c.SubmitOperation == "" {
		c.SubmitOperation = DefaultSubmitOperation
	}
	if c.JobType == "" {
		c.JobType = DefaultJobType
	}
	return c
}

// Stores are the orchestrator collaborators the classifier reads from.
type Stores struct {
	Deployments    orchestrator.DeploymentStore
	Topologies     orchestrator.TopologyStore
	MetaProperties orchestrator.MetaPropertyStore
	Types          orchestrator.TypeContextProvider
}

// Classifier turns lifecycle events into audit records. It holds no per-event
// state and is safe for concurrent use.
type Classifier struct {
	cfg       ClassifierConfig
	stores    Stores
	resolver  *topology.Resolver
	assembler *Assembler
	logger    *zap.Logger
}

// NewClassifier creates a Classifier.
func NewClassifier(cfg ClassifierConfig, stores Stores, resolver *topology.Resolver, assembler *Assembler, logger *zap.Logger) *Classifier {
	return &Classifier{
		cfg:       cfg.WithDefaults(),
		stores:    stores,
		resolver:  resolver,
		assembler: assembler,
		logger:    logger.Named("classifier"),
	}
}

// Classify returns the records an event produces, in publish order. Lookup
// failures drop the affected records and are never returned.
func (c *Classifier) Classify(ctx context.Context, event orchestrator.Event) []Record {
	switch e := event.(type) {
	case *orchestrator.DeploymentStatusEvent:
		return c.classifyDeploymentStatus(ctx, e)
	case *orchestrator.WorkflowStartedEvent:
		return c.classifyWorkflowStarted(ctx, e)
	case *orchestrator.WorkflowStepStartedEvent:
		return c.classifyWorkflowStepStarted(ctx, e)
	default:
		c.logger.Debug("ignoring unsupported event", zap.String("type", fmt.Sprintf("%T", event)))
		return nil
	}
}

// StatusKind maps a deployment status to the kind of its application record.
func StatusKind(status orchestrator.DeploymentStatus) (Kind, bool) {
	switch status {
	case orchestrator.StatusDeployed:
		return KindDeploySuccess, true
	case orchestrator.StatusFailure:
		return KindDeployError, true
	case orchestrator.StatusUndeployed:
		return KindUndeploySuccess, true
	default:
		return "", false
	}
}

// WorkflowKind maps a started workflow to a kind. Unnamed workflows map to nothing.
func WorkflowKind(name *string) (Kind, bool) {
	if name == nil {
		return "", false
	}
	switch *name {
	case WorkflowInstall:
		return KindDeployBegin, true
	case WorkflowUninstall:
		return KindUndeployBegin, true
	default:
		return "", false
	}
}

// fansOut reports whether a kind also produces per-module records.
// Undeployment is excluded: modules are torn down before the status arrives.
func fansOut(kind Kind) bool {
	return kind == KindDeploySuccess || kind == KindDeployError
}

func phase(kind Kind) string {
	switch kind {
	case KindUndeployBegin, KindUndeploySuccess:
		return "Undeploys"
	default:
		return "Deploys"
	}
}

func (c *Classifier) classifyDeploymentStatus(ctx context.Context, e *orchestrator.DeploymentStatusEvent) []Record {
	kind, ok := StatusKind(e.Status)
	if !ok {
		return nil
	}
	deployment := c.deployment(ctx, e.DeploymentID)
	if deployment == nil {
		return nil
	}

	ts := e.Time(c.assembler.Location())
	records := []Record{c.applicationRecord(ts, deployment, kind)}
	if !fansOut(kind) {
		return records
	}
	return append(records, c.moduleRecords(ctx, ts, deployment, kind)...)
}

func (c *Classifier) classifyWorkflowStarted(ctx context.Context, e *orchestrator.WorkflowStartedEvent) []Record {
	kind, ok := WorkflowKind(e.WorkflowName)
	if !ok {
		return nil
	}
	deployment := c.deployment(ctx, e.DeploymentID)
	if deployment == nil {
		return nil
	}
	return []Record{c.applicationRecord(e.Time(c.assembler.Location()), deployment, kind)}
}

func (c *Classifier) classifyWorkflowStepStarted(ctx context.Context, e *orchestrator.WorkflowStepStartedEvent) []Record {
	if e.OperationName != c.cfg.SubmitOperation {
		return nil
	}
	deployment := c.deployment(ctx, e.DeploymentID)
	if deployment == nil {
		return nil
	}
	declared := c.unprocessedTopology(ctx, deployment.ID)
	if declared == nil {
		return nil
	}
	node, ok := declared.NodeTemplate(e.NodeID)
	if !ok {
		metrics.LookupMisses.WithLabelValues("node").Inc()
		c.logger.Warn("submitted node not found in topology",
			zap.String("deployment", deployment.ID),
			zap.String("node", e.NodeID))
		return nil
	}

	var isJob bool
	err := topology.WithTypeContext(ctx, c.stores.Types, declared.Dependencies, func(types orchestrator.TypeResolver) error {
		nodeType, err := types.NodeType(ctx, node.Type)
		if err != nil {
			return err
		}
		isJob = nodeType.DerivesFrom(c.cfg.JobType)
		return nil
	})
	if err != nil {
		metrics.LookupMisses.WithLabelValues("type").Inc()
		c.logger.Warn("failed to resolve submitted node type",
			zap.String("deployment", deployment.ID),
			zap.String("node", e.NodeID),
			zap.String("type", node.Type),
			zap.Error(err))
		return nil
	}

	c.logger.Debug("workflow step started",
		zap.String("deployment", deployment.ID),
		zap.String("node", e.NodeID),
		zap.Bool("job", isJob))
	if !isJob {
		return nil
	}
	return []Record{c.assembler.Assemble(
		e.Time(c.assembler.Location()),
		deployment,
		BuildIdentifier(deployment, nil, nil),
		KindJobSubmit,
		fmt.Sprintf("Job started on application %s / node %s", deployment.SourceName, e.NodeID),
	)}
}

func (c *Classifier) applicationRecord(ts time.Time, deployment *orchestrator.Deployment, kind Kind) Record {
	return c.assembler.Assemble(ts, deployment,
		BuildIdentifier(deployment, nil, nil),
		kind,
		fmt.Sprintf("%s the application %s", phase(kind), deployment.SourceName))
}

func (c *Classifier) moduleRecords(ctx context.Context, ts time.Time, deployment *orchestrator.Deployment, kind Kind) []Record {
	if c.cfg.ModuleTagName == "" {
		return nil
	}
	tagKey, err := c.stores.MetaProperties.MetaPropertyKeyByName(ctx, c.cfg.ModuleTagName, orchestrator.MetaPropertyTargetComponent)
	if err != nil || tagKey == "" {
		if err != nil && !errors.Is(err, orchestrator.ErrNotFound) {
			c.logger.Warn("failed to resolve module meta-property",
				zap.String("name", c.cfg.ModuleTagName),
				zap.Error(err))
		}
		return nil
	}

	declared := c.unprocessedTopology(ctx, deployment.ID)
	if declared == nil {
		return nil
	}
	runtime, err := c.stores.Topologies.RuntimeTopology(ctx, deployment.ID)
	if err != nil || runtime == nil {
		metrics.LookupMisses.WithLabelValues("topology").Inc()
		c.logger.Warn("runtime topology not found, skipping modules",
			zap.String("deployment", deployment.ID),
			zap.Error(err))
		return nil
	}

	var modules []topology.Module
	err = topology.WithTypeContext(ctx, c.stores.Types, declared.Dependencies, func(types orchestrator.TypeResolver) error {
		modules = c.resolver.ResolveModules(ctx, types, declared, runtime, tagKey, c.cfg.ModuleTagValue)
		return nil
	})
	if err != nil {
		metrics.LookupMisses.WithLabelValues("type").Inc()
		c.logger.Warn("failed to resolve modules",
			zap.String("deployment", deployment.ID),
			zap.Error(err))
		return nil
	}

	records := make([]Record, 0, len(modules))
	for _, m := range modules {
		var ec *topology.ExecutionContext
		if !m.Context.IsZero() {
			ec = &m.Context
		}
		records = append(records, c.assembler.Assemble(ts, deployment,
			BuildIdentifier(deployment, m.Node, ec),
			ModuleKind(kind),
			fmt.Sprintf("%s the module %s", phase(kind), m.Node.Name)))
	}
	return records
}

func (c *Classifier) deployment(ctx context.Context, id string) *orchestrator.Deployment {
	deployment, err := c.stores.Deployments.Deployment(ctx, id)
	if err != nil || deployment == nil {
		metrics.LookupMisses.WithLabelValues("deployment").Inc()
		c.logger.Warn("deployment not found, dropping event",
			zap.String("deployment", id),
			zap.Error(err))
		return nil
	}
	return deployment
}

func (c *Classifier) unprocessedTopology(ctx context.Context, deploymentID string) *orchestrator.Topology {
	topo, err := c.stores.Topologies.UnprocessedTopology(ctx, deploymentID)
	if err != nil || topo == nil {
		metrics.LookupMisses.WithLabelValues("topology").Inc()
		c.logger.Warn("unprocessed topology not found",
			zap.String("deployment", deploymentID),
			zap.Error(err))
		return nil
	}
	return topo
}
