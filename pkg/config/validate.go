package config

import (
	"slices"
	"strings"

	"autobulk/pkg/executor"
	"autobulk/pkg/schedule"

	"github.com/cockroachdb/errors"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

var sqlDrivers = []string{"mysql", "sqlite3"}

// Validate applies defaults and fails fast on invalid values. Non-positive
// thresholds and intervals are rejected, never clamped.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return errors.Wrapf(ErrInvalidConfig, format, args...)
	}

	d := &c.Defaults
	if d.Threshold == 0 {
		d.Threshold = defaultThreshold
	}
	if d.MaxInterval == 0 {
		d.MaxInterval = Duration(defaultMaxInterval)
	}
	if d.PollInterval == 0 {
		d.PollInterval = Duration(defaultPollInterval)
	}
	if d.MonitorInterval == 0 {
		d.MonitorInterval = Duration(defaultMonitorInterval)
	}
	if d.SilenceThreshold == 0 {
		d.SilenceThreshold = Duration(defaultSilenceThreshold)
	}
	if d.Threshold < 0 {
		return invalid("defaults.threshold must be > 0, got %d", d.Threshold)
	}
	for name, v := range map[string]Duration{
		"defaults.max_interval":      d.MaxInterval,
		"defaults.poll_interval":     d.PollInterval,
		"defaults.monitor_interval":  d.MonitorInterval,
		"defaults.silence_threshold": d.SilenceThreshold,
	} {
		if v < 0 {
			return invalid("%s must be > 0, got %s", name, v)
		}
	}

	if c.Admin.SubmitTimeout == 0 {
		c.Admin.SubmitTimeout = Duration(defaultSubmitTimeout)
	}
	if c.Admin.SubmitTimeout < 0 {
		return invalid("admin.submit_timeout must be > 0")
	}
	if c.Admin.Port < 0 || c.Admin.Port > 65535 {
		return invalid("admin.port out of range: %d", c.Admin.Port)
	}
	// rate limiting defaults
	if c.Admin.RateLimit.RPS <= 0 {
		c.Admin.RateLimit.RPS = 1000
	}
	if c.Admin.RateLimit.Burst <= 0 {
		c.Admin.RateLimit.Burst = 1000
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = Duration(defaultShutdownTimeout)
	}
	if c.ShutdownTimeout < 0 {
		return invalid("shutdown_timeout must be > 0")
	}

	if c.DeadLetter.Enabled {
		if c.DeadLetter.Dir == "" {
			c.DeadLetter.Dir = defaultDeadLetterDir
		}
		if c.DeadLetter.MaxFileSize == 0 {
			c.DeadLetter.MaxFileSize = SizeBytes(defaultDeadLetterMax)
		}
	}

	if c.FlushCron != "" {
		if err := schedule.Validate(c.FlushCron); err != nil {
			return invalid("flush_cron: %v", err)
		}
	}

	seen := make(map[string]bool, len(c.Targets))
	for i := range c.Targets {
		t := &c.Targets[i]
		if err := t.validate(); err != nil {
			return errors.Wrapf(err, "targets[%d]", i)
		}
		if seen[t.Name] {
			return invalid("targets[%d]: duplicate target name %q", i, t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}

func (t *TargetConfig) validate() error {
	invalid := func(format string, args ...any) error {
		return errors.Wrapf(ErrInvalidConfig, format, args...)
	}
	if t.Name == "" {
		return invalid("name is required")
	}
	if strings.ContainsAny(t.Name, "/ ") {
		return invalid("target name %q must not contain '/' or spaces", t.Name)
	}
	t.Kind = strings.ToLower(strings.TrimSpace(t.Kind))
	if !slices.Contains(executor.Kinds, t.Kind) {
		return invalid("target %s: unknown kind %q (want one of %s)", t.Name, t.Kind, strings.Join(executor.Kinds, ", "))
	}
	if t.Conn == "" {
		return invalid("target %s: conn is required", t.Name)
	}
	if t.Threshold < 0 {
		return invalid("target %s: threshold must be > 0, got %d", t.Name, t.Threshold)
	}
	if t.MaxInterval < 0 {
		return invalid("target %s: max_interval must be > 0", t.Name)
	}

	switch t.Kind {
	case executor.KindMongo:
		if t.Database == "" || t.Resource == "" {
			return invalid("target %s: mongo needs database and resource (collection)", t.Name)
		}
	case executor.KindElastic:
		if t.Resource == "" {
			return invalid("target %s: elastic needs resource (index)", t.Name)
		}
	case executor.KindSQL:
		if t.Driver == "" {
			t.Driver = defaultSQLDriver
		}
		if !slices.Contains(sqlDrivers, t.Driver) {
			return invalid("target %s: unsupported sql driver %q", t.Name, t.Driver)
		}
		fallthrough
	case executor.KindPgx:
		if t.Statement == "" {
			return invalid("target %s: statement is required", t.Name)
		}
		if t.Resource == "" {
			t.Resource = t.Statement
		}
	case executor.KindRedis, executor.KindPebble:
		if t.Resource == "" {
			t.Resource = t.Name
		}
	}
	return nil
}
