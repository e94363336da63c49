// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Deployment is one instance of an application deployed on a location.
type Deployment struct {
	ID               string `json:"id"`
	SourceName       string `json:"sourceName"`
	DeployerUsername string `json:"deployerUsername"`
}

// CSARDependency names an archive whose types a topology relies on.
type CSARDependency struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// String renders the dependency as name:version.
func (d CSARDependency) String() string {
	return d.Name + ":" + d.Version
}

// NodeType is the resolved type of a node template.
type NodeType struct {
	ElementID      string            `json:"elementId"`
	DerivedFrom    []string          `json:"derivedFrom"`
	MetaProperties map[string]string `json:"metaProperties"`
}

// DerivesFrom reports whether typeName appears in the derived-from chain.
func (t *NodeType) DerivesFrom(typeName string) bool {
	if t == nil {
		return false
	}
	for _, parent := range t.DerivedFrom {
		if parent == typeName {
			return true
		}
	}
	return false
}

// IsOfType reports whether the type is typeName or derives from it.
func (t *NodeType) IsOfType(typeName string) bool {
	if t == nil {
		return false
	}
	return t.ElementID == typeName || t.DerivesFrom(typeName)
}

// Relationship is an outgoing edge of a node template.
type Relationship struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Target string `json:"target"`
}

// PropertyValue is a node template property. Only scalar values are
// interpreted; complex values decode but report no scalar.
type PropertyValue struct {
	value  string
	scalar bool
}

// ScalarValue builds a scalar property value.
func ScalarValue(v string) PropertyValue {
	return PropertyValue{value: v, scalar: true}
}

// Scalar returns the scalar value and whether the property holds one.
func (p PropertyValue) Scalar() (string, bool) {
	return p.value, p.scalar
}

// UnmarshalJSON accepts a bare scalar or an object wrapping it under "value".
func (p *PropertyValue) UnmarshalJSON(data []byte) error {
	var raw interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	*p = PropertyValue{}
	if obj, ok := raw.(map[string]interface{}); ok {
		raw, ok = obj["value"]
		if !ok {
			return nil
		}
	}
	p.value, p.scalar = scalarString(raw)
	return nil
}

func scalarString(v interface{}) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return "", false
	}
}

// NodeTemplate is a node of a topology graph.
type NodeTemplate struct {
	// ID is the key of the node within its topology.
	ID string `json:"-"`

	Name       string                   `json:"name"`
	Type       string                   `json:"type"`
	Properties map[string]PropertyValue `json:"properties"`

	// Relationships keeps the declaration order of the outgoing edges.
	Relationships []Relationship `json:"-"`
}

// ScalarProperty returns a scalar property value.
func (n *NodeTemplate) ScalarProperty(name string) (string, bool) {
	if n == nil || n.Properties == nil {
		return "", false
	}
	prop, ok := n.Properties[name]
	if !ok {
		return "", false
	}
	return prop.Scalar()
}

// UnmarshalJSON decodes a node template, keeping relationship order.
func (n *NodeTemplate) UnmarshalJSON(data []byte) error {
	type plain NodeTemplate
	var aux struct {
		*plain
		Relationships json.RawMessage `json:"relationships"`
	}
	aux.plain = (*plain)(n)
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	n.Relationships = nil
	return decodeOrderedObject(aux.Relationships, func(key string, value json.RawMessage) error {
		var rel Relationship
		if err := json.Unmarshal(value, &rel); err != nil {
			return fmt.Errorf("relationship %q: %w", key, err)
		}
		if rel.Name == "" {
			rel.Name = key
		}
		n.Relationships = append(n.Relationships, rel)
		return nil
	})
}

// Topology is a directed graph of node templates. Node templates keep their
// insertion order; ids are unique.
type Topology struct {
	ID           string           `json:"id"`
	Dependencies []CSARDependency `json:"dependencies"`

	nodes []*NodeTemplate
	index map[string]int
}

// NewTopology builds a topology from node templates in the given order.
func NewTopology(id string, dependencies []CSARDependency, nodes ...*NodeTemplate) *Topology {
	t := &Topology{ID: id, Dependencies: dependencies}
	for _, node := range nodes {
		t.Add(node)
	}
	return t
}

// Add appends a node template. A node with an existing id replaces the
// previous one in place.
func (t *Topology) Add(node *NodeTemplate) {
	if node == nil {
		return
	}
	if node.Name == "" {
		node.Name = node.ID
	}
	if t.index == nil {
		t.index = make(map[string]int)
	}
	if i, ok := t.index[node.ID]; ok {
		t.nodes[i] = node
		return
	}
	t.index[node.ID] = len(t.nodes)
	t.nodes = append(t.nodes, node)
}

// NodeTemplates returns the node templates in insertion order.
func (t *Topology) NodeTemplates() []*NodeTemplate {
	if t == nil {
		return nil
	}
	return t.nodes
}

// NodeTemplate looks a node template up by id.
func (t *Topology) NodeTemplate(id string) (*NodeTemplate, bool) {
	if t == nil || t.index == nil {
		return nil, false
	}
	i, ok := t.index[id]
	if !ok {
		return nil, false
	}
	return t.nodes[i], true
}

// UnmarshalJSON decodes a topology, keeping the order of the nodeTemplates
// object keys.
func (t *Topology) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID            string           `json:"id"`
		Dependencies  []CSARDependency `json:"dependencies"`
		NodeTemplates json.RawMessage  `json:"nodeTemplates"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*t = Topology{ID: aux.ID, Dependencies: aux.Dependencies}
	return decodeOrderedObject(aux.NodeTemplates, func(key string, value json.RawMessage) error {
		node := &NodeTemplate{}
		if err := json.Unmarshal(value, node); err != nil {
			return fmt.Errorf("node template %q: %w", key, err)
		}
		node.ID = key
		t.Add(node)
		return nil
	})
}

// decodeOrderedObject walks a JSON object calling fn for every member in
// document order. Empty input and null are accepted.
func decodeOrderedObject(raw json.RawMessage, fn func(key string, value json.RawMessage) error) error {
	if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return err
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}

	_, err = dec.Token()
	return err
}
