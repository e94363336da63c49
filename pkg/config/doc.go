// Package config loads the YAML configuration file and maps it onto the
// settings of the audit subsystem, the orchestrator client and the NATS
// event source.
package config
