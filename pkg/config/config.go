package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Defaults, matching the behavior of an unconfigured aggregator.
const (
	defaultThreshold        = 100
	defaultMaxInterval      = 10 * time.Second
	defaultPollInterval     = 10 * time.Millisecond
	defaultMonitorInterval  = time.Second
	defaultSilenceThreshold = 60 * time.Second
	defaultSubmitTimeout    = 5 * time.Second
	defaultShutdownTimeout  = 30 * time.Second
	defaultAdminPort        = 8090
	defaultDeadLetterDir    = "./failed_batches"
	defaultDeadLetterMax    = 64 * 1024 * 1024 // 64 MiB
	defaultSQLDriver        = "mysql"
)

// Addr returns the HTTP server address as host:port.
func (c *Config) Addr() string {
	addr := c.Admin.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	port := c.Admin.Port
	if port == 0 {
		port = defaultAdminPort
	}
	return fmt.Sprintf("%s:%d", addr, port)
}

// AdminEnabled reports whether the HTTP listener should run. It defaults
// to on.
func (c *Config) AdminEnabled() bool {
	return c.Admin.Enabled == nil || *c.Admin.Enabled
}

// LoadConfigFile reads and parses a config file.
func LoadConfigFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "config file not found: %s", path)
		}
		return nil, err
	}
	return Parse(b)
}

// Parse decodes YAML config bytes. Unknown keys are rejected.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	// an empty document decodes to the zero config
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "parse config")
	}
	return &cfg, nil
}

// ResolveConfigPath returns the config file path, preferring flag, then env.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("AUTOBULK_CONFIG"); p != "" {
		return p
	}
	return flagPath
}

// TargetByName returns the named target config.
func (c *Config) TargetByName(name string) (TargetConfig, bool) {
	for _, t := range c.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return TargetConfig{}, false
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// EffectiveThreshold is the target's threshold or the default.
func (c *Config) EffectiveThreshold(t TargetConfig) int {
	if t.Threshold > 0 {
		return t.Threshold
	}
	return c.Defaults.Threshold
}

// EffectiveMaxInterval is the target's max interval or the default.
func (c *Config) EffectiveMaxInterval(t TargetConfig) time.Duration {
	if t.MaxInterval > 0 {
		return t.MaxInterval.Duration()
	}
	return c.Defaults.MaxInterval.Duration()
}

// EffectiveLogBatches is the target's batch logging flag or the default.
func (c *Config) EffectiveLogBatches(t TargetConfig) bool {
	return boolOr(t.LogBatches, boolOr(c.Defaults.LogBatches, true))
}
