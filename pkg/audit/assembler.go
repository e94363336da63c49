// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"fmt"
	"os"
	"time"

	"github.com/telekom/deploy-auditlog/pkg/orchestrator"
)

// Default record metadata.
const (
	DefaultDomain       = "Socle/Service applicatif"
	DefaultComponent    = "A4C"
	DefaultProcess      = "go"
	DefaultSourceFormat = "Log Audit Deploiement %s"

	// UnknownHostname is reported when the host name cannot be resolved.
	UnknownHostname = "N/A"
)

// Metadata holds the fixed fields of every record.
type Metadata struct {
	Site      string `yaml:"site"`
	Domain    string `yaml:"domain"`
	Component string `yaml:"component"`
	Process   string `yaml:"process"`

	// SourceFormat is a fmt format receiving the deployment's source name.
	SourceFormat string `yaml:"sourceFormat"`
}

// WithDefaults fills empty fields except Site.
func (m Metadata) WithDefaults() Metadata {
	if m.Domain == "" {
		m.Domain = DefaultDomain
	}
	if m.Component == "" {
		m.Component = DefaultComponent
	}
	if m.Process == "" {
		m.Process = DefaultProcess
	}
	if m.SourceFormat == "" {
		m.SourceFormat = DefaultSourceFormat
	}
	return m
}

// ResolveHostname returns the local host name or UnknownHostname.
func ResolveHostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return UnknownHostname
	}
	return name
}

// Assembler fills records from a static metadata snapshot.
type Assembler struct {
	meta     Metadata
	hostname string
	location *time.Location
}

// NewAssembler creates an Assembler. hostname is resolved by the caller once
// per process; an empty value becomes UnknownHostname. A nil location means
// local time.
func NewAssembler(meta Metadata, hostname string, location *time.Location) *Assembler {
	meta = meta.WithDefaults()
	if hostname == "" {
		hostname = UnknownHostname
	}
	if location == nil {
		location = time.Local
	}
	return &Assembler{
		meta:     meta,
		hostname: hostname,
		location: location,
	}
}

// Hostname returns the cached host name.
func (a *Assembler) Hostname() string {
	return a.hostname
}

// Location returns the time zone timestamps are rendered in.
func (a *Assembler) Location() *time.Location {
	return a.location
}

// Assemble builds a record.
func (a *Assembler) Assemble(ts time.Time, deployment *orchestrator.Deployment, id Identifier, kind Kind, message string) Record {
	return Record{
		Timestamp:    ts.In(a.location).Format(time.RFC3339Nano),
		Hostname:     a.hostname,
		User:         deployment.DeployerUsername,
		Source:       fmt.Sprintf(a.meta.SourceFormat, deployment.SourceName),
		Domaine:      a.meta.Domain,
		Composant:    a.meta.Component,
		Site:         a.meta.Site,
		Processus:    a.meta.Process,
		IDsTechnique: id,
		Event:        kind,
		Message:      message,
	}
}
