package cli

import (
	"os"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

type Config struct {
	// Application flags
	Debug bool

	// Configuration flags
	ConfigPath string

	// MetricsAddr overrides metrics.listenAddress from the config file when set.
	MetricsAddr string
}

// BindFlags registers the flags on fs. Defaults come from the environment.
// The pattern: fs.XxxVar(&variable, "flag-name", defaultValueOrEnvValue, "help text")
func BindFlags(fs *pflag.FlagSet) *Config {
	config := &Config{}
	fs.BoolVar(&config.Debug, "debug", getEnvBool("AUDITLOG_DEBUG", false),
		"Enable debug level logging, including every published record")
	fs.StringVar(&config.ConfigPath, "config-path", getEnvString("AUDITLOG_CONFIG_PATH", "./config.yaml"),
		"Path to the deploy-auditlog configuration file")
	fs.StringVar(&config.MetricsAddr, "metrics-bind-address", getEnvString("METRICS_BIND_ADDRESS", ""),
		"The address the metrics and health endpoints bind to. Overrides metrics.listenAddress")
	return config
}

func (c *Config) Print(log *zap.SugaredLogger) {
	log.Infow("CLI Configuration",
		"debug", c.Debug,
		"config_path", c.ConfigPath,
		"metrics_bind_address", c.MetricsAddr,
	)
}

// getEnvString returns the value of an environment variable, or the provided default if not set.
func getEnvString(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvBool returns the value of an environment variable as a bool, or the provided default if not set.
// Valid true values are "true", "1", "yes" (case-insensitive).
func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(val) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultVal
}
