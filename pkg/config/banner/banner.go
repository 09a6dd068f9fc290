package banner

import (
	"fmt"
	"io"
	"os"

	"autobulk/pkg/config"

	"github.com/dustin/go-humanize"
)

const banner = `
  __ _ _   _| |_ ___ | |__  _   _| | | __
 / _' | | | | __/ _ \| '_ \| | | | | |/ /
| (_| | |_| | || (_) | |_) | |_| | |   <
 \__,_|\__,_|\__\___/|_.__/ \__,_|_|_|\_\
`

// Print writes the startup banner with a config summary to stdout.
func Print(cfg *config.Config, source, version string) {
	Fprint(os.Stdout, cfg, source, version)
}

// Fprint writes the startup banner to w.
func Fprint(w io.Writer, cfg *config.Config, source, version string) {
	if source == "" {
		source = "flags"
	}
	fmt.Fprint(w, banner)
	fmt.Fprintln(w, "== Config =====================================================")
	if cfg.AdminEnabled() {
		fmt.Fprintf(w, "Listen:   %s\n", cfg.Addr())
	} else {
		fmt.Fprintln(w, "Listen:   disabled")
	}
	if version != "" {
		fmt.Fprintf(w, "Version:  %s\n", version)
	}
	fmt.Fprintf(w, "Config:   %s\n", source)
	fmt.Fprintf(w, "Defaults: threshold=%s max_interval=%s\n",
		humanize.Comma(int64(cfg.Defaults.Threshold)), cfg.Defaults.MaxInterval)

	fmt.Fprintln(w, "\n== Targets ====================================================")
	if len(cfg.Targets) == 0 {
		fmt.Fprintln(w, "- none configured (library use only)")
	}
	for _, t := range cfg.Targets {
		fmt.Fprintf(w, "- %-16s %-8s threshold=%d max_interval=%s\n",
			t.Name, t.Kind, cfg.EffectiveThreshold(t), cfg.EffectiveMaxInterval(t))
	}

	fmt.Fprintln(w, "\n== Safety =====================================================")
	if cfg.DeadLetter.Enabled {
		fmt.Fprintf(w, "- Dead letter: enabled (%s, rotate at %s)\n", cfg.DeadLetter.Dir, cfg.DeadLetter.MaxFileSize)
	} else {
		fmt.Fprintln(w, "- Dead letter: disabled (failed batches are logged and dropped)")
	}
	if cfg.FlushCron != "" {
		fmt.Fprintf(w, "- Forced flush: cron=%s\n", cfg.FlushCron)
	} else {
		fmt.Fprintln(w, "- Forced flush: disabled")
	}
	fmt.Fprintf(w, "- Shutdown timeout: %s\n", cfg.ShutdownTimeout)
}
