// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package topology

// Default type and relationship names, as declared by the Kubernetes modifier
// of the orchestrator.
const (
	DefaultContainerType          = "org.alien4cloud.kubernetes.api.types.KubeContainer"
	DefaultHostedOnRelationship   = "tosca.relationships.HostedOn"
	DefaultDeploymentResourceType = "org.alien4cloud.kubernetes.api.types.DeploymentResource"
	DefaultNamespaceResourceType  = "org.alien4cloud.kubernetes.api.types.SimpleResource"
	DefaultResourceIDProperty     = "resource_id"
	DefaultExecutor               = "Kubernetes"
)

// Config names the types the resolver matches on.
type Config struct {
	// ContainerType switches the resolver into container-aware mode when any
	// node of the declared topology is of this type or derives from it.
	ContainerType string `yaml:"containerType"`

	// HostedOnRelationship is the relationship type linking a module to its host.
	HostedOnRelationship string `yaml:"hostedOnRelationship"`

	// DeploymentResourceType is the runtime node type carrying the deployment name.
	DeploymentResourceType string `yaml:"deploymentResourceType"`

	// NamespaceResourceType is the runtime node type carrying the namespace.
	NamespaceResourceType string `yaml:"namespaceResourceType"`

	// ResourceIDProperty is the runtime property holding the resource name.
	ResourceIDProperty string `yaml:"resourceIdProperty"`

	// Executor is reported for every module in container-aware mode.
	Executor string `yaml:"executor"`
}

// DefaultConfig returns the Kubernetes modifier's type names.
func DefaultConfig() Config {
	return Config{
		ContainerType:          DefaultContainerType,
		HostedOnRelationship:   DefaultHostedOnRelationship,
		DeploymentResourceType: DefaultDeploymentResourceType,
		NamespaceResourceType:  DefaultNamespaceResourceType,
		ResourceIDProperty:     DefaultResourceIDProperty,
		Executor:               DefaultExecutor,
	}
}

// WithDefaults fills empty fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ContainerType == "" {
		c.ContainerType = def.ContainerType
	}
	if c.HostedOnRelationship == "" {
		c.HostedOnRelationship = def.HostedOnRelationship
	}
	if c.DeploymentResourceType == "" {
		c.DeploymentResourceType = def.DeploymentResourceType
	}
	if c.NamespaceResourceType == "" {
		c.NamespaceResourceType = def.NamespaceResourceType
	}
	if c.ResourceIDProperty == "" {
		c.ResourceIDProperty = def.ResourceIDProperty
	}
	if c.Executor == "" {
		c.Executor = def.Executor
	}
	return c
}
