package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration as read from YAML, env and flags.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Admin      AdminConfig      `yaml:"admin"`
	Defaults   DefaultsConfig   `yaml:"defaults"`
	DeadLetter DeadLetterConfig `yaml:"dead_letter"`
	// FlushCron forces a drain of every aggregator on each tick when set.
	FlushCron       string         `yaml:"flush_cron"`
	ShutdownTimeout Duration       `yaml:"shutdown_timeout"`
	Targets         []TargetConfig `yaml:"targets"`
}

// LoggingConfig selects the log level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// AdminConfig holds the intake/admin HTTP listener settings.
type AdminConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
	// SubmitTimeout bounds how long an intake request waits on a full queue.
	SubmitTimeout Duration `yaml:"submit_timeout"`
	// APIKeys gate the listener; with none configured it is open.
	APIKeys struct {
		Producer []string `yaml:"producer"`
		Admin    []string `yaml:"admin"`
	} `yaml:"api_keys"`
	IPWhitelist []string `yaml:"ip_whitelist"`
	RateLimit   struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
}

// DefaultsConfig is the aggregation policy for targets that do not
// override it.
type DefaultsConfig struct {
	Threshold        int      `yaml:"threshold"`
	MaxInterval      Duration `yaml:"max_interval"`
	PollInterval     Duration `yaml:"poll_interval"`
	MonitorInterval  Duration `yaml:"monitor_interval"`
	SilenceThreshold Duration `yaml:"silence_threshold"`
	LogBatches       *bool    `yaml:"log_batches"`
}

// DeadLetterConfig controls capture of batches whose flush failed.
type DeadLetterConfig struct {
	Enabled     bool      `yaml:"enabled"`
	Dir         string    `yaml:"dir"`
	MaxFileSize SizeBytes `yaml:"max_file_size"`
}

// TargetConfig describes one backend resource writes are aggregated for.
type TargetConfig struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
	// Conn is the URL, DSN or path used to reach the backend.
	Conn string `yaml:"conn"`
	// ConnID overrides the connection part of the target identity; targets
	// that reach the same server through different DSNs should share one.
	ConnID    string `yaml:"conn_id"`
	Resource  string `yaml:"resource"`
	Database  string `yaml:"database"`
	Driver    string `yaml:"driver"`
	Statement string `yaml:"statement"`
	Sync      bool   `yaml:"sync"`

	Threshold   int      `yaml:"threshold"`
	MaxInterval Duration `yaml:"max_interval"`
	LogBatches  *bool    `yaml:"log_batches"`
}

// SizeBytes accepts "64MB" style sizes or a plain byte count.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*s = 0
		return nil
	}
	v, err := parseSizeBytes(node.Value)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func parseSizeBytes(raw string) (SizeBytes, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		return SizeBytes(v), nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return SizeBytes(i), nil
	}
	return 0, errors.Newf("invalid size value: %q", raw)
}

func (s SizeBytes) Int64() int64 { return int64(s) }

func (s SizeBytes) String() string { return humanize.Bytes(uint64(s)) }

// Duration accepts Go duration strings ("250ms") or a bare number of seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = Duration(0)
		return nil
	}
	v, err := parseDuration(node.Value)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func parseDuration(raw string) (Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		return Duration(td), nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return Duration(time.Duration(f * float64(time.Second))), nil
	}
	return 0, errors.Newf("invalid duration value: %q", raw)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }
