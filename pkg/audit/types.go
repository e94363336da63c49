// SPDX-FileCopyrightText: 2024 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind is the event field of an audit record.
type Kind string

const (
	KindDeployBegin     Kind = "DEPLOY_BEGIN"
	KindUndeployBegin   Kind = "UNDEPLOY_BEGIN"
	KindDeploySuccess   Kind = "DEPLOY_SUCCESS"
	KindDeployError     Kind = "DEPLOY_ERROR"
	KindUndeploySuccess Kind = "UNDEPLOY_SUCCESS"
	KindJobSubmit       Kind = "JOB_SUBMIT"
)

// ModulePrefix prefixes the kind of per-module records.
const ModulePrefix = "MODULE_"

// ModuleKind returns the per-module variant of an application-level kind.
func ModuleKind(k Kind) Kind {
	return Kind(ModulePrefix + string(k))
}

// Identifier labels.
const (
	LabelApplication    = "id_app"
	LabelName           = "name"
	LabelKubeDeployment = "KubeDeployment"
	LabelKubeNamespace  = "KubeNamespace"
	LabelExecutor       = "executor"
)

// IDElement is one label/value pair of an Identifier.
type IDElement struct {
	Label string
	Value string
}

// Identifier is the ordered, hierarchical id of an audit record's subject.
// It serializes as an array of single-entry objects: [{"id_app":"d1"},...].
type Identifier []IDElement

// MarshalJSON renders the identifier positionally.
func (id Identifier) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, el := range id {
		if i > 0 {
			buf.WriteByte(',')
		}
		label, err := json.Marshal(el.Label)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(el.Value)
		if err != nil {
			return nil, err
		}
		buf.WriteByte('{')
		buf.Write(label)
		buf.WriteByte(':')
		buf.Write(value)
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the positional form back.
func (id *Identifier) UnmarshalJSON(data []byte) error {
	var raw []map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Identifier, 0, len(raw))
	for i, entry := range raw {
		if len(entry) != 1 {
			return fmt.Errorf("identifier element %d must have exactly one entry, got %d", i, len(entry))
		}
		for label, value := range entry {
			out = append(out, IDElement{Label: label, Value: value})
		}
	}
	*id = out
	return nil
}

// Get returns the value of the first element with the label.
func (id Identifier) Get(label string) (string, bool) {
	for _, el := range id {
		if el.Label == label {
			return el.Value, true
		}
	}
	return "", false
}

// Labels returns the labels in order.
func (id Identifier) Labels() []string {
	labels := make([]string, len(id))
	for i, el := range id {
		labels[i] = el.Label
	}
	return labels
}

// Record is one audit record. Field order is the wire order.
type Record struct {
	Timestamp    string     `json:"timestamp"`
	Hostname     string     `json:"hostname"`
	User         string     `json:"user"`
	Source       string     `json:"source"`
	Domaine      string     `json:"domaine"`
	Composant    string     `json:"composant"`
	Site         string     `json:"site"`
	Processus    string     `json:"processus"`
	IDsTechnique Identifier `json:"ids_technique"`
	Event        Kind       `json:"event"`
	Message      string     `json:"message"`
}

// Message is a serialized record handed to a Sink.
type Message struct {
	// ID correlates the message across sinks; it is not part of the record.
	ID string

	// Event is the record's kind.
	Event Kind

	// Value is the serialized record.
	Value []byte
}
