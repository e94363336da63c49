package config

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"github.com/telekom/deploy-auditlog/pkg/audit"
	"github.com/telekom/deploy-auditlog/pkg/orchestrator"
	"github.com/telekom/deploy-auditlog/pkg/ratelimit"
	"github.com/telekom/deploy-auditlog/pkg/telemetry"
	"github.com/telekom/deploy-auditlog/pkg/topology"
	"github.com/telekom/deploy-auditlog/pkg/utils"
)

// DefaultPath is read when no config path is given.
const DefaultPath = "./config.yaml"

// KafkaTLS points at PEM files on disk.
type KafkaTLS struct {
	Enabled            bool   `yaml:"enabled"`
	CAFile             string `yaml:"caFile"`
	CertFile           string `yaml:"certFile"`
	KeyFile            string `yaml:"keyFile"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
}

type KafkaSASL struct {
	Mechanism string `yaml:"mechanism"` // PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
}

type CircuitBreaker struct {
	// FailureThreshold opens the circuit after that many consecutive write
	// failures. Zero disables the breaker.
	FailureThreshold int    `yaml:"failureThreshold"`
	OpenTimeout      string `yaml:"openTimeout"`
}

type Kafka struct {
	BootstrapServers []string   `yaml:"bootstrapServers"`
	Topic            string     `yaml:"topic"`
	TLS              KafkaTLS   `yaml:"tls"`
	SASL             *KafkaSASL `yaml:"sasl"`
	// Async defaults to true when omitted.
	Async          *bool          `yaml:"async"`
	Compression    string         `yaml:"compression"`
	BatchSize      int            `yaml:"batchSize"`
	BatchTimeout   string         `yaml:"batchTimeout"`
	WriteTimeout   string         `yaml:"writeTimeout"`
	RequiredAcks   int            `yaml:"requiredAcks"`
	CircuitBreaker CircuitBreaker `yaml:"circuitBreaker"`
}

type Audit struct {
	Site           string `yaml:"site"`
	ModuleTagName  string `yaml:"moduleTagName"`
	ModuleTagValue string `yaml:"moduleTagValue"`
	Domain         string `yaml:"domain"`
	Component      string `yaml:"component"`
	Process        string `yaml:"process"`
	SourceFormat   string `yaml:"sourceFormat"`
	// TimeZone is an IANA zone name for record timestamps, e.g. "Europe/Paris".
	// Empty means the local zone.
	TimeZone string `yaml:"timeZone"`
	// Hostname overrides os.Hostname.
	Hostname        string          `yaml:"hostname"`
	SubmitOperation string          `yaml:"submitOperation"`
	JobType         string          `yaml:"jobType"`
	Topology        topology.Config `yaml:"topology"`
}

type Orchestrator struct {
	BaseURL            string `yaml:"baseURL"`
	Token              string `yaml:"token"`
	Timeout            string `yaml:"timeout"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
	// RateLimit caps requests per second sent to the orchestrator.
	RateLimit ratelimit.Config `yaml:"rateLimit"`
	// Retry resends requests that failed with a transport error or 5xx.
	Retry *Retry `yaml:"retry"`
}

// Retry is the backoff of orchestrator requests. Durations use
// time.ParseDuration syntax.
type Retry struct {
	MaxRetries        int     `yaml:"maxRetries"`
	InitialBackoff    string  `yaml:"initialBackoff"`
	MaxBackoff        string  `yaml:"maxBackoff"`
	BackoffMultiplier float64 `yaml:"backoffMultiplier"`
}

func (r *Retry) build() (utils.RetryConfig, error) {
	if r == nil {
		return utils.RetryConfig{}, nil
	}
	cfg := utils.DefaultRetryConfig()
	cfg.MaxRetries = r.MaxRetries
	if r.BackoffMultiplier > 0 {
		cfg.BackoffMultiplier = r.BackoffMultiplier
	}
	initial, err := parseDuration("orchestrator.retry.initialBackoff", r.InitialBackoff)
	if err != nil {
		return utils.RetryConfig{}, err
	}
	if initial > 0 {
		cfg.InitialBackoff = initial
	}
	maxBackoff, err := parseDuration("orchestrator.retry.maxBackoff", r.MaxBackoff)
	if err != nil {
		return utils.RetryConfig{}, err
	}
	if maxBackoff > 0 {
		cfg.MaxBackoff = maxBackoff
	}
	return cfg, nil
}

type Events struct {
	NATSURL    string `yaml:"natsURL"`
	Subject    string `yaml:"subject"`
	QueueGroup string `yaml:"queueGroup"`
}

type Tracing struct {
	Enabled bool `yaml:"enabled"`
	// Exporter is otlp, stdout or none.
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	Insecure     bool    `yaml:"insecure"`
	SamplingRate float64 `yaml:"samplingRate"`
}

type Metrics struct {
	ListenAddress string `yaml:"listenAddress"`
}

type Config struct {
	Kafka        Kafka        `yaml:"kafka"`
	Audit        Audit        `yaml:"audit"`
	Orchestrator Orchestrator `yaml:"orchestrator"`
	Events       Events       `yaml:"events"`
	Metrics      Metrics      `yaml:"metrics"`
	Tracing      Tracing      `yaml:"tracing"`
}

// Load loads the configuration from a file path.
// If configPath is empty, defaults to DefaultPath.
func Load(configPath ...string) (Config, error) {
	path := DefaultPath
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	var config Config

	content, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("trying to open config file %s: %w", path, err)
	}

	if err := yaml.UnmarshalStrict(content, &config); err != nil {
		return config, fmt.Errorf("error unmarshaling YAML %s: %w", path, err)
	}
	return config.Defaults(), nil
}

// Defaults fills the optional settings that have a non-zero default.
func (c Config) Defaults() Config {
	if c.Kafka.Async == nil {
		async := true
		c.Kafka.Async = &async
	}
	if c.Events.Subject == "" {
		c.Events.Subject = "a4c.events"
	}
	if c.Metrics.ListenAddress == "" {
		c.Metrics.ListenAddress = ":8081"
	}
	if c.Tracing.Enabled && c.Tracing.SamplingRate == 0 {
		c.Tracing.SamplingRate = 1.0
	}
	c.Audit.Topology = c.Audit.Topology.WithDefaults()
	return c
}

// AuditEnabled reports whether the bootstrap servers, site and topic needed
// to publish records are all set.
func (c Config) AuditEnabled() bool {
	return len(c.Kafka.BootstrapServers) > 0 && c.Audit.Site != "" && c.Kafka.Topic != ""
}

// AuditConfig builds the audit subsystem settings. TLS material is read from
// disk and the time zone is loaded here so that errors surface at startup.
func (c Config) AuditConfig() (audit.Config, error) {
	batchTimeout, err := parseDuration("kafka.batchTimeout", c.Kafka.BatchTimeout)
	if err != nil {
		return audit.Config{}, err
	}
	writeTimeout, err := parseDuration("kafka.writeTimeout", c.Kafka.WriteTimeout)
	if err != nil {
		return audit.Config{}, err
	}
	openTimeout, err := parseDuration("kafka.circuitBreaker.openTimeout", c.Kafka.CircuitBreaker.OpenTimeout)
	if err != nil {
		return audit.Config{}, err
	}

	tlsConfig, err := c.Kafka.TLS.load()
	if err != nil {
		return audit.Config{}, err
	}

	var location *time.Location
	if c.Audit.TimeZone != "" {
		location, err = time.LoadLocation(c.Audit.TimeZone)
		if err != nil {
			return audit.Config{}, fmt.Errorf("audit.timeZone %q: %w", c.Audit.TimeZone, err)
		}
	}

	var sasl *audit.KafkaSASLConfig
	if c.Kafka.SASL != nil {
		sasl = &audit.KafkaSASLConfig{
			Mechanism: c.Kafka.SASL.Mechanism,
			Username:  c.Kafka.SASL.Username,
			Password:  c.Kafka.SASL.Password,
		}
	}

	return audit.Config{
		Kafka: audit.KafkaSinkConfig{
			Brokers:          c.Kafka.BootstrapServers,
			Topic:            c.Kafka.Topic,
			TLS:              tlsConfig,
			SASL:             sasl,
			BatchSize:        c.Kafka.BatchSize,
			BatchTimeout:     batchTimeout,
			WriteTimeout:     writeTimeout,
			RequiredAcks:     c.Kafka.RequiredAcks,
			Async:            c.Kafka.Async == nil || *c.Kafka.Async,
			CompressionCodec: c.Kafka.Compression,
		},
		CircuitBreaker: audit.CircuitBreakerConfig{
			FailureThreshold: c.Kafka.CircuitBreaker.FailureThreshold,
			OpenTimeout:      openTimeout,
		},
		Metadata: audit.Metadata{
			Site:         c.Audit.Site,
			Domain:       c.Audit.Domain,
			Component:    c.Audit.Component,
			Process:      c.Audit.Process,
			SourceFormat: c.Audit.SourceFormat,
		},
		Classifier: audit.ClassifierConfig{
			ModuleTagName:   c.Audit.ModuleTagName,
			ModuleTagValue:  c.Audit.ModuleTagValue,
			SubmitOperation: c.Audit.SubmitOperation,
			JobType:         c.Audit.JobType,
		},
		Topology: c.Audit.Topology.WithDefaults(),
		Hostname: c.Audit.Hostname,
		Location: location,
	}, nil
}

// ClientConfig builds the orchestrator REST client settings.
func (c Config) ClientConfig() (orchestrator.ClientConfig, error) {
	timeout, err := parseDuration("orchestrator.timeout", c.Orchestrator.Timeout)
	if err != nil {
		return orchestrator.ClientConfig{}, err
	}
	retry, err := c.Orchestrator.Retry.build()
	if err != nil {
		return orchestrator.ClientConfig{}, err
	}
	return orchestrator.ClientConfig{
		BaseURL:            c.Orchestrator.BaseURL,
		Token:              c.Orchestrator.Token,
		Timeout:            timeout,
		InsecureSkipVerify: c.Orchestrator.InsecureSkipVerify,
		RateLimit:          c.Orchestrator.RateLimit,
		Retry:              retry,
	}, nil
}

// NATSSourceConfig builds the event source settings.
func (c Config) NATSSourceConfig() orchestrator.NATSSourceConfig {
	return orchestrator.NATSSourceConfig{
		URL:        c.Events.NATSURL,
		Subject:    c.Events.Subject,
		QueueGroup: c.Events.QueueGroup,
	}
}

// TelemetryOptions builds the tracing settings.
func (c Config) TelemetryOptions(serviceVersion string, log *zap.SugaredLogger) telemetry.Options {
	return telemetry.Options{
		Enabled:        c.Tracing.Enabled,
		ServiceVersion: serviceVersion,
		Exporter:       c.Tracing.Exporter,
		Endpoint:       c.Tracing.Endpoint,
		Insecure:       c.Tracing.Insecure,
		SamplingRate:   c.Tracing.SamplingRate,
		Logger:         log,
	}
}

func (t KafkaTLS) load() (*audit.KafkaTLSConfig, error) {
	if !t.Enabled {
		return nil, nil
	}
	out := &audit.KafkaTLSConfig{Enabled: true, InsecureSkipVerify: t.InsecureSkipVerify}

	var err error
	if out.CACert, err = readOptional("kafka.tls.caFile", t.CAFile); err != nil {
		return nil, err
	}
	if out.ClientCert, err = readOptional("kafka.tls.certFile", t.CertFile); err != nil {
		return nil, err
	}
	if out.ClientKey, err = readOptional("kafka.tls.keyFile", t.KeyFile); err != nil {
		return nil, err
	}
	if (out.ClientCert == nil) != (out.ClientKey == nil) {
		return nil, fmt.Errorf("kafka.tls: certFile and keyFile must be set together")
	}
	return out, nil
}

func readOptional(field, path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return data, nil
}

// parseDuration parses an optional duration. Empty yields zero, which the
// consumers replace with their own default.
func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", field, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s %q: must not be negative", field, value)
	}
	return d, nil
}
