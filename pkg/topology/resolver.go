// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package topology

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/telekom/deploy-auditlog/pkg/orchestrator"
)

// ExecutionContext is where a module runs. Empty fields were not resolved.
type ExecutionContext struct {
	KubeDeployment string
	KubeNamespace  string
	Executor       string
}

// IsZero reports whether nothing was resolved, as in plain mode.
func (e ExecutionContext) IsZero() bool {
	return e == ExecutionContext{}
}

// Module is a node template flagged as a module, with its execution context.
type Module struct {
	Node    *orchestrator.NodeTemplate
	Context ExecutionContext
}

// Resolver finds module nodes and their execution context.
type Resolver struct {
	cfg    Config
	logger *zap.Logger
}

// NewResolver creates a Resolver. Empty config fields fall back to defaults.
func NewResolver(cfg Config, logger *zap.Logger) *Resolver {
	return &Resolver{
		cfg:    cfg.WithDefaults(),
		logger: logger.Named("topology-resolver"),
	}
}

// Config returns the effective configuration.
func (r *Resolver) Config() Config {
	return r.cfg
}

// ResolveModules returns one entry per node of the declared topology whose
// type carries tagKey with value tagValue, in node order. It never fails:
// unresolvable types skip the node, missing relationships or resources only
// narrow the execution context.
func (r *Resolver) ResolveModules(
	ctx context.Context,
	types orchestrator.TypeResolver,
	declared, runtime *orchestrator.Topology,
	tagKey, tagValue string,
) []Module {
	containerAware := len(r.NodesOfType(ctx, types, declared, r.cfg.ContainerType)) > 0
	r.logger.Debug("resolving modules",
		zap.String("topology", topologyID(declared)),
		zap.Bool("container_aware", containerAware))

	var modules []Module
	for _, node := range declared.NodeTemplates() {
		nodeType, err := types.NodeType(ctx, node.Type)
		if err != nil {
			r.logger.Warn("skipping node with unresolvable type",
				zap.String("node", node.ID),
				zap.String("type", node.Type),
				zap.Error(err))
			continue
		}
		if !IsModule(nodeType, tagKey, tagValue) {
			continue
		}

		module := Module{Node: node}
		if containerAware {
			module.Context = r.executionContext(node, runtime)
		}
		modules = append(modules, module)
	}
	return modules
}

func (r *Resolver) executionContext(node *orchestrator.NodeTemplate, runtime *orchestrator.Topology) ExecutionContext {
	ec := ExecutionContext{Executor: r.cfg.Executor}

	host, ok := HostedOnTarget(node, r.cfg.HostedOnRelationship)
	if !ok {
		return ec
	}

	ec.KubeDeployment, _ = r.runtimeResourceID(runtime, r.cfg.DeploymentResourceType, host)
	ec.KubeNamespace, _ = r.runtimeResourceID(runtime, r.cfg.NamespaceResourceType, "")
	return ec
}

// runtimeResourceID scans the runtime topology for nodes of typeName whose
// name starts with namePrefix. The last match decides, even when it carries
// no resource id.
func (r *Resolver) runtimeResourceID(runtime *orchestrator.Topology, typeName, namePrefix string) (string, bool) {
	var (
		id    string
		found bool
	)
	for _, node := range runtime.NodeTemplates() {
		if node.Type != typeName || !strings.HasPrefix(node.Name, namePrefix) {
			continue
		}
		id, found = node.ScalarProperty(r.cfg.ResourceIDProperty)
	}
	return id, found
}

// NodesOfType returns the nodes whose type is typeName or derives from it.
// Nodes with unresolvable types are skipped.
func (r *Resolver) NodesOfType(
	ctx context.Context,
	types orchestrator.TypeResolver,
	topo *orchestrator.Topology,
	typeName string,
) []*orchestrator.NodeTemplate {
	var nodes []*orchestrator.NodeTemplate
	for _, node := range topo.NodeTemplates() {
		if node.Type == typeName {
			nodes = append(nodes, node)
			continue
		}
		nodeType, err := types.NodeType(ctx, node.Type)
		if err != nil {
			r.logger.Debug("type lookup failed", zap.String("type", node.Type), zap.Error(err))
			continue
		}
		if nodeType.IsOfType(typeName) {
			nodes = append(nodes, node)
		}
	}
	return nodes
}

// HostedOnTarget returns the target of the node's last relationship of type
// relType, following declaration order.
func HostedOnTarget(node *orchestrator.NodeTemplate, relType string) (string, bool) {
	var (
		target string
		found  bool
	)
	for _, rel := range node.Relationships {
		if rel.Type == relType {
			target, found = rel.Target, true
		}
	}
	return target, found
}

// IsModule reports whether the node type carries the module tag.
func IsModule(nodeType *orchestrator.NodeType, tagKey, tagValue string) bool {
	if nodeType == nil || nodeType.MetaProperties == nil {
		return false
	}
	v, ok := nodeType.MetaProperties[tagKey]
	return ok && v == tagValue
}

func topologyID(t *orchestrator.Topology) string {
	if t == nil {
		return ""
	}
	return t.ID
}
