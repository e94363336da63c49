package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telekom/deploy-auditlog/pkg/audit"
	"github.com/telekom/deploy-auditlog/pkg/config"
	"github.com/telekom/deploy-auditlog/pkg/topology"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const fullConfig = `
kafka:
  bootstrapServers: ["kafka-1:9093", "kafka-2:9093"]
  topic: deploy-audit
  async: false
  compression: zstd
  batchSize: 10
  batchTimeout: 500ms
  writeTimeout: 5s
  requiredAcks: 1
  sasl:
    mechanism: SCRAM-SHA-512
    username: auditor
    password: s3cret
  circuitBreaker:
    failureThreshold: 5
    openTimeout: 1m
audit:
  site: paris-1
  moduleTagName: module
  moduleTagValue: "true"
  timeZone: Europe/Paris
  hostname: a4c-prod-1
  topology:
    executor: OpenShift
orchestrator:
  baseURL: https://a4c.example.com/rest/v1
  token: abc
  timeout: 3s
  rateLimit:
    rate: 20
    burst: 40
  retry:
    maxRetries: 4
    initialBackoff: 50ms
events:
  natsURL: nats://nats:4222
  queueGroup: auditlog
metrics:
  listenAddress: ":9100"
tracing:
  enabled: true
  exporter: otlp
  endpoint: otel-collector:4317
  insecure: true
`

func TestLoad(t *testing.T) {
	tests := []struct {
		name          string
		configContent string
		expectError   bool
		check         func(t *testing.T, cfg config.Config)
	}{
		{
			name:          "full config",
			configContent: fullConfig,
			check: func(t *testing.T, cfg config.Config) {
				assert.Equal(t, []string{"kafka-1:9093", "kafka-2:9093"}, cfg.Kafka.BootstrapServers)
				require.NotNil(t, cfg.Kafka.Async)
				assert.False(t, *cfg.Kafka.Async)
				assert.Equal(t, "paris-1", cfg.Audit.Site)
				assert.Equal(t, "a4c.events", cfg.Events.Subject, "subject defaults")
				assert.Equal(t, ":9100", cfg.Metrics.ListenAddress)
				assert.Equal(t, "OpenShift", cfg.Audit.Topology.Executor)
				assert.Equal(t, topology.DefaultContainerType, cfg.Audit.Topology.ContainerType)
				assert.True(t, cfg.AuditEnabled())
			},
		},
		{
			name: "minimal config",
			configContent: `
orchestrator:
  baseURL: http://localhost:8088/rest/v1
`,
			check: func(t *testing.T, cfg config.Config) {
				require.NotNil(t, cfg.Kafka.Async)
				assert.True(t, *cfg.Kafka.Async, "async defaults to true")
				assert.Equal(t, ":8081", cfg.Metrics.ListenAddress)
				assert.False(t, cfg.AuditEnabled())
			},
		},
		{
			name:          "invalid YAML",
			configContent: `invalid: yaml: content [`,
			expectError:   true,
		},
		{
			name: "unknown field",
			configContent: `
kafka:
  brokers: ["kafka:9092"]
`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Load(writeFile(t, "config.yaml", tt.configContent))
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := config.Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestLoadDefaultPath(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	_, err = config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.DefaultPath)
}

func TestAuditEnabled(t *testing.T) {
	complete := config.Config{
		Kafka: config.Kafka{BootstrapServers: []string{"kafka:9092"}, Topic: "audit"},
		Audit: config.Audit{Site: "site1"},
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   bool
	}{
		{"complete", func(*config.Config) {}, true},
		{"missing bootstrap servers", func(c *config.Config) { c.Kafka.BootstrapServers = nil }, false},
		{"missing site", func(c *config.Config) { c.Audit.Site = "" }, false},
		{"missing topic", func(c *config.Config) { c.Kafka.Topic = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := complete
			tt.mutate(&cfg)
			assert.Equal(t, tt.want, cfg.AuditEnabled())

			ac, err := cfg.AuditConfig()
			require.NoError(t, err)
			assert.Equal(t, tt.want, ac.Enabled())
		})
	}
}

func TestAuditConfig(t *testing.T) {
	cfg, err := config.Load(writeFile(t, "config.yaml", fullConfig))
	require.NoError(t, err)

	ac, err := cfg.AuditConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"kafka-1:9093", "kafka-2:9093"}, ac.Kafka.Brokers)
	assert.Equal(t, "deploy-audit", ac.Kafka.Topic)
	assert.False(t, ac.Kafka.Async)
	assert.Equal(t, "zstd", ac.Kafka.CompressionCodec)
	assert.Equal(t, 10, ac.Kafka.BatchSize)
	assert.Equal(t, 500*time.Millisecond, ac.Kafka.BatchTimeout)
	assert.Equal(t, 5*time.Second, ac.Kafka.WriteTimeout)
	assert.Equal(t, 1, ac.Kafka.RequiredAcks)
	assert.Nil(t, ac.Kafka.TLS)
	assert.Equal(t, &audit.KafkaSASLConfig{Mechanism: "SCRAM-SHA-512", Username: "auditor", Password: "s3cret"}, ac.Kafka.SASL)

	assert.Equal(t, audit.CircuitBreakerConfig{FailureThreshold: 5, OpenTimeout: time.Minute}, ac.CircuitBreaker)
	assert.Equal(t, "paris-1", ac.Metadata.Site)
	assert.Equal(t, "module", ac.Classifier.ModuleTagName)
	assert.Equal(t, "true", ac.Classifier.ModuleTagValue)
	assert.Equal(t, "a4c-prod-1", ac.Hostname)
	require.NotNil(t, ac.Location)
	assert.Equal(t, "Europe/Paris", ac.Location.String())
	assert.Equal(t, "OpenShift", ac.Topology.Executor)
}

func TestAuditConfig_LocalTimeByDefault(t *testing.T) {
	ac, err := config.Config{}.Defaults().AuditConfig()
	require.NoError(t, err)
	assert.Nil(t, ac.Location)
	assert.True(t, ac.Kafka.Async)
}

func TestAuditConfig_Errors(t *testing.T) {
	tests := []struct {
		name   string
		cfg    config.Config
		errMsg string
	}{
		{
			name:   "bad batch timeout",
			cfg:    config.Config{Kafka: config.Kafka{BatchTimeout: "soon"}},
			errMsg: "kafka.batchTimeout",
		},
		{
			name:   "negative write timeout",
			cfg:    config.Config{Kafka: config.Kafka{WriteTimeout: "-1s"}},
			errMsg: "kafka.writeTimeout",
		},
		{
			name:   "unknown time zone",
			cfg:    config.Config{Audit: config.Audit{TimeZone: "Mars/Olympus_Mons"}},
			errMsg: "audit.timeZone",
		},
		{
			name:   "missing CA file",
			cfg:    config.Config{Kafka: config.Kafka{TLS: config.KafkaTLS{Enabled: true, CAFile: "/nonexistent/ca.pem"}}},
			errMsg: "kafka.tls.caFile",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.AuditConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestAuditConfig_TLSFiles(t *testing.T) {
	ca := writeFile(t, "ca.pem", "ca-data")
	cert := writeFile(t, "cert.pem", "cert-data")
	key := writeFile(t, "key.pem", "key-data")

	cfg := config.Config{Kafka: config.Kafka{TLS: config.KafkaTLS{
		Enabled:  true,
		CAFile:   ca,
		CertFile: cert,
		KeyFile:  key,
	}}}
	ac, err := cfg.AuditConfig()
	require.NoError(t, err)
	require.NotNil(t, ac.Kafka.TLS)
	assert.True(t, ac.Kafka.TLS.Enabled)
	assert.Equal(t, []byte("ca-data"), ac.Kafka.TLS.CACert)
	assert.Equal(t, []byte("cert-data"), ac.Kafka.TLS.ClientCert)
	assert.Equal(t, []byte("key-data"), ac.Kafka.TLS.ClientKey)

	cfg.Kafka.TLS.KeyFile = ""
	_, err = cfg.AuditConfig()
	assert.Error(t, err, "a client certificate needs its key")
}

func TestClientConfig(t *testing.T) {
	cfg, err := config.Load(writeFile(t, "config.yaml", fullConfig))
	require.NoError(t, err)

	cc, err := cfg.ClientConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://a4c.example.com/rest/v1", cc.BaseURL)
	assert.Equal(t, "abc", cc.Token)
	assert.Equal(t, 3*time.Second, cc.Timeout)
	assert.Equal(t, 20.0, cc.RateLimit.Rate)
	assert.Equal(t, 40, cc.RateLimit.Burst)
	assert.Equal(t, 4, cc.Retry.MaxRetries)
	assert.Equal(t, 50*time.Millisecond, cc.Retry.InitialBackoff)
	assert.Equal(t, 2*time.Second, cc.Retry.MaxBackoff)
	assert.Equal(t, 2.0, cc.Retry.BackoffMultiplier)

	_, err = config.Config{Orchestrator: config.Orchestrator{Timeout: "forever"}}.ClientConfig()
	assert.Error(t, err)
}

func TestClientConfig_Retry(t *testing.T) {
	tests := []struct {
		name    string
		retry   *config.Retry
		want    int
		wantErr bool
	}{
		{name: "absent disables retries", retry: nil, want: 0},
		{name: "explicit retries", retry: &config.Retry{MaxRetries: 2}, want: 2},
		{name: "bad initial backoff", retry: &config.Retry{MaxRetries: 2, InitialBackoff: "soon"}, wantErr: true},
		{name: "negative max backoff", retry: &config.Retry{MaxRetries: 2, MaxBackoff: "-1s"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cc, err := config.Config{Orchestrator: config.Orchestrator{Retry: tt.retry}}.ClientConfig()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cc.Retry.MaxRetries)
		})
	}
}

func TestNATSSourceConfig(t *testing.T) {
	cfg, err := config.Load(writeFile(t, "config.yaml", fullConfig))
	require.NoError(t, err)

	nc := cfg.NATSSourceConfig()
	assert.Equal(t, "nats://nats:4222", nc.URL)
	assert.Equal(t, "a4c.events", nc.Subject)
	assert.Equal(t, "auditlog", nc.QueueGroup)
}

func TestTelemetryOptions(t *testing.T) {
	cfg, err := config.Load(writeFile(t, "config.yaml", fullConfig))
	require.NoError(t, err)

	opts := cfg.TelemetryOptions("1.2.0", nil)
	assert.True(t, opts.Enabled)
	assert.Equal(t, "otlp", opts.Exporter)
	assert.Equal(t, "otel-collector:4317", opts.Endpoint)
	assert.True(t, opts.Insecure)
	assert.Equal(t, 1.0, opts.SamplingRate, "sampling rate defaults to everything")
	assert.Equal(t, "1.2.0", opts.ServiceVersion)

	disabled := config.Config{}.Defaults().TelemetryOptions("dev", nil)
	assert.False(t, disabled.Enabled)
	assert.Zero(t, disabled.SamplingRate)
}
