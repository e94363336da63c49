// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"github.com/telekom/deploy-auditlog/pkg/orchestrator"
	"github.com/telekom/deploy-auditlog/pkg/topology"
)

// BuildIdentifier builds the identifier of an application or, when node is
// set, of one of its modules. Execution context fields are appended in fixed
// order when present.
func BuildIdentifier(deployment *orchestrator.Deployment, node *orchestrator.NodeTemplate, ec *topology.ExecutionContext) Identifier {
	id := Identifier{{Label: LabelApplication, Value: deployment.ID}}
	if node == nil {
		return id
	}
	id = append(id, IDElement{Label: LabelName, Value: node.Name})
	if ec == nil {
		return id
	}
	if ec.KubeDeployment != "" {
		id = append(id, IDElement{Label: LabelKubeDeployment, Value: ec.KubeDeployment})
	}
	if ec.KubeNamespace != "" {
		id = append(id, IDElement{Label: LabelKubeNamespace, Value: ec.KubeNamespace})
	}
	if ec.Executor != "" {
		id = append(id, IDElement{Label: LabelExecutor, Value: ec.Executor})
	}
	return id
}
