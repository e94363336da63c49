// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
)

// KafkaTLSConfig holds PEM material for the broker connection.
type KafkaTLSConfig struct {
	Enabled bool

	// CACert verifies the brokers. Empty uses the system pool.
	CACert []byte

	// ClientCert and ClientKey enable mutual TLS when both are set.
	ClientCert []byte
	ClientKey  []byte

	// InsecureSkipVerify skips server certificate verification.
	// WARNING: Only use for testing.
	InsecureSkipVerify bool
}

// KafkaSASLConfig holds SASL credentials.
type KafkaSASLConfig struct {
	// Mechanism is PLAIN, SCRAM-SHA-256 or SCRAM-SHA-512.
	Mechanism string
	Username  string
	Password  string
}

// newKafkaTransport builds the writer transport. Nil TLS or SASL sections
// leave the connection plain.
func newKafkaTransport(tlsCfg *KafkaTLSConfig, saslCfg *KafkaSASLConfig) (*kafka.Transport, error) {
	transport := &kafka.Transport{}
	if tlsCfg != nil && tlsCfg.Enabled {
		c, err := tlsCfg.build()
		if err != nil {
			return nil, fmt.Errorf("failed to build TLS config: %w", err)
		}
		transport.TLS = c
	}
	if saslCfg != nil && saslCfg.Mechanism != "" {
		m, err := saslCfg.mechanism()
		if err != nil {
			return nil, fmt.Errorf("failed to build SASL mechanism: %w", err)
		}
		transport.SASL = m
	}
	return transport, nil
}

func (c *KafkaTLSConfig) build() (*tls.Config, error) {
	out := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: c.InsecureSkipVerify, //nolint:gosec // Configurable for testing
	}
	if len(c.CACert) > 0 {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(c.CACert) {
			return nil, errors.New("failed to parse CA certificate")
		}
		out.RootCAs = pool
	}
	if len(c.ClientCert) > 0 && len(c.ClientKey) > 0 {
		pair, err := tls.X509KeyPair(c.ClientCert, c.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		out.Certificates = []tls.Certificate{pair}
	}
	return out, nil
}

func (c *KafkaSASLConfig) mechanism() (sasl.Mechanism, error) {
	var algo scram.Algorithm
	switch strings.ToUpper(c.Mechanism) {
	case "PLAIN":
		return plain.Mechanism{Username: c.Username, Password: c.Password}, nil
	case "SCRAM-SHA-256":
		algo = scram.SHA256
	case "SCRAM-SHA-512":
		algo = scram.SHA512
	default:
		return nil, fmt.Errorf("unsupported SASL mechanism: %s", c.Mechanism)
	}
	m, err := scram.Mechanism(algo, c.Username, c.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s mechanism: %w", c.Mechanism, err)
	}
	return m, nil
}

// compressionCodec maps a codec name to kafka-go. Unknown names fall back to
// snappy and report false.
func compressionCodec(name string) (kafka.Compression, bool) {
	switch strings.ToLower(name) {
	case "none":
		return 0, true
	case "gzip":
		return kafka.Gzip, true
	case "lz4":
		return kafka.Lz4, true
	case "zstd":
		return kafka.Zstd, true
	case "snappy", "":
		return kafka.Snappy, true
	default:
		return kafka.Snappy, false
	}
}

// Error types reported in the sink error metric.
const (
	errTypeTimeout       = "timeout"
	errTypeCancelled     = "cancelled"
	errTypeDNS           = "dns"
	errTypeNetwork       = "network"
	errTypeTLS           = "tls"
	errTypeAuth          = "auth"
	errTypeAuthorization = "authorization"
	errTypeTopic         = "topic"
	errTypeRecord        = "record"
	errTypeBroker        = "broker"
	errTypeClosed        = "closed"
	errTypeOther         = "other"
)

// kafkaErrorType buckets a delivery failure for metrics and log level.
func kafkaErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return errTypeTimeout
	case errors.Is(err, context.Canceled):
		return errTypeCancelled
	}

	// A batch fails as a whole; the first non-nil entry is representative.
	var batch kafka.WriteErrors
	if errors.As(err, &batch) {
		for _, e := range batch {
			if e != nil {
				return kafkaErrorType(e)
			}
		}
	}

	var kerr kafka.Error
	if errors.As(err, &kerr) {
		return brokerErrorType(kerr)
	}

	var verifyErr *tls.CertificateVerificationError
	var authorityErr x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	if errors.As(err, &verifyErr) || errors.As(err, &authorityErr) || errors.As(err, &hostErr) {
		return errTypeTLS
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return errTypeDNS
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return errTypeTimeout
		}
		return errTypeNetwork
	}
	return errTypeOther
}

func brokerErrorType(kerr kafka.Error) string {
	switch kerr {
	case kafka.SASLAuthenticationFailed, kafka.UnsupportedSASLMechanism, kafka.IllegalSASLState:
		return errTypeAuth
	case kafka.TopicAuthorizationFailed, kafka.ClusterAuthorizationFailed:
		return errTypeAuthorization
	case kafka.UnknownTopicOrPartition, kafka.InvalidTopic:
		return errTypeTopic
	case kafka.MessageSizeTooLarge, kafka.InvalidMessage, kafka.InvalidMessageSize:
		return errTypeRecord
	}
	if kerr.Timeout() {
		return errTypeTimeout
	}
	return errTypeBroker
}
