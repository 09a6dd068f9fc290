package config

import (
	"flag"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// holds parsed command-line flag values and which were set
type Flags struct {
	Addr     string
	Config   string
	LogLevel string
	Validate bool
	Set      map[string]bool
}

// ParseConfigFlags parses args (usually os.Args[1:]).
func ParseConfigFlags(args []string) (Flags, error) {
	fs := flag.NewFlagSet("autobulk", flag.ContinueOnError)
	addrPtr := fs.String("addr", "", "admin/intake HTTP listen address (host:port)")
	cfgPtr := fs.String("config", "./autobulk.yaml", "path to config file")
	levelPtr := fs.String("log-level", "", "log level: debug, info, warn, error")
	validatePtr := fs.Bool("validate", false, "validate the config and exit")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}

	// record which flags were set explicitly
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })

	return Flags{
		Addr:     *addrPtr,
		Config:   *cfgPtr,
		LogLevel: *levelPtr,
		Validate: *validatePtr,
		Set:      setFlags,
	}, nil
}

// Load builds the effective config: the file (if present), then AUTOBULK_*
// environment overrides, then explicit flags, then defaults and validation.
// A missing file is only an error when -config was passed.
func Load(flags Flags, getenv func(string) string) (*Config, string, error) {
	path := ResolveConfigPath(flags.Config, flags.Set["config"])
	cfg, err := LoadConfigFile(path)
	source := "config"
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist) && !flags.Set["config"]:
		cfg, source = &Config{}, "env"
	default:
		return nil, "", err
	}

	used, err := ApplyEnv(cfg, getenv)
	if err != nil {
		return nil, "", err
	}
	if used && source == "config" {
		source = "config+env"
	}

	if flags.Set["addr"] {
		if err := setAddr(&cfg.Admin, flags.Addr); err != nil {
			return nil, "", errors.Wrap(err, "-addr")
		}
	}
	if flags.Set["log-level"] {
		cfg.Logging.Level = flags.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, source, nil
}

// ApplyEnv overlays AUTOBULK_* variables onto cfg and reports whether any
// were set. Malformed values are errors rather than silently ignored.
func ApplyEnv(cfg *Config, getenv func(string) string) (bool, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	used := false
	env := func(name string) string {
		v := strings.TrimSpace(getenv("AUTOBULK_" + name))
		if v != "" {
			used = true
		}
		return v
	}

	var errs error
	fail := func(name string, err error) {
		errs = errors.CombineErrors(errs, errors.Wrapf(err, "AUTOBULK_%s", name))
	}
	setDuration := func(name string, dst *Duration) {
		if v := env(name); v != "" {
			d, err := parseDuration(v)
			if err != nil {
				fail(name, err)
				return
			}
			*dst = d
		}
	}
	setBool := func(name string, dst **bool) {
		if v := env(name); v != "" {
			b := parseBool(v)
			*dst = &b
		}
	}

	if v := env("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := env("ADMIN_ADDR"); v != "" {
		if err := setAddr(&cfg.Admin, v); err != nil {
			fail("ADMIN_ADDR", err)
		}
	} else {
		if v := env("ADMIN_ADDRESS"); v != "" {
			cfg.Admin.Address = v
		}
		if v := env("ADMIN_PORT"); v != "" {
			p, err := strconv.Atoi(v)
			if err != nil {
				fail("ADMIN_PORT", err)
			} else {
				cfg.Admin.Port = p
			}
		}
	}
	setBool("ADMIN_ENABLED", &cfg.Admin.Enabled)
	setDuration("SUBMIT_TIMEOUT", &cfg.Admin.SubmitTimeout)
	if v := env("API_PRODUCER_KEYS"); v != "" {
		cfg.Admin.APIKeys.Producer = parseList(v)
	}
	if v := env("API_ADMIN_KEYS"); v != "" {
		cfg.Admin.APIKeys.Admin = parseList(v)
	}
	if v := env("IP_WHITELIST"); v != "" {
		cfg.Admin.IPWhitelist = parseList(v)
	}
	if v := env("RATE_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			fail("RATE_RPS", err)
		} else {
			cfg.Admin.RateLimit.RPS = f
		}
	}
	if v := env("RATE_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fail("RATE_BURST", err)
		} else {
			cfg.Admin.RateLimit.Burst = n
		}
	}

	if v := env("THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fail("THRESHOLD", err)
		} else {
			cfg.Defaults.Threshold = n
		}
	}
	setDuration("MAX_INTERVAL", &cfg.Defaults.MaxInterval)
	setDuration("POLL_INTERVAL", &cfg.Defaults.PollInterval)
	setDuration("MONITOR_INTERVAL", &cfg.Defaults.MonitorInterval)
	setDuration("SILENCE_THRESHOLD", &cfg.Defaults.SilenceThreshold)
	setBool("LOG_BATCHES", &cfg.Defaults.LogBatches)

	if v := env("DEAD_LETTER_ENABLED"); v != "" {
		cfg.DeadLetter.Enabled = parseBool(v)
	}
	if v := env("DEAD_LETTER_DIR"); v != "" {
		cfg.DeadLetter.Dir = v
	}
	if v := env("DEAD_LETTER_MAX_FILE_SIZE"); v != "" {
		s, err := parseSizeBytes(v)
		if err != nil {
			fail("DEAD_LETTER_MAX_FILE_SIZE", err)
		} else {
			cfg.DeadLetter.MaxFileSize = s
		}
	}

	if v := env("FLUSH_CRON"); v != "" {
		cfg.FlushCron = v
	}
	setDuration("SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)

	return used, errs
}

func parseList(v string) []string {
	var parts []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// setAddr splits host:port into the admin config; a bare host keeps the
// configured port.
func setAddr(ac *AdminConfig, v string) error {
	h, p, err := net.SplitHostPort(v)
	if err != nil {
		ac.Address = v
		return nil
	}
	ac.Address = h
	if p == "" {
		return nil
	}
	pi, err := strconv.Atoi(p)
	if err != nil {
		return errors.Wrapf(err, "invalid port in %q", v)
	}
	ac.Port = pi
	return nil
}
