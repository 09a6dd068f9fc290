package ctl

import (
	"fmt"
	"io"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	vegeta "github.com/tsenart/vegeta/lib"
)

type benchConfig struct {
	rps      int
	duration time.Duration
	workers  uint64
	file     string
}

func newBenchCmd(o *options) *cobra.Command {
	cfg := benchConfig{}
	cmd := &cobra.Command{
		Use:   "bench TARGET",
		Short: "Load test the intake endpoint of a target",
		Long: `Replay one request body against TARGET's intake endpoint at a constant
rate and report throughput, latency percentiles and status codes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.rps <= 0 || cfg.duration <= 0 {
				return errors.New("--rps and --duration must be positive")
			}
			body, err := readBody(cfg.file, o.stdin)
			if err != nil {
				return err
			}
			key := o.apiKey
			if key == "" {
				key = o.getenv("AUTOBULK_API_KEY")
			}
			target := benchTarget(o.host, key, args[0], body)
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "attacking %s at %d req/s for %s\n", target.URL, cfg.rps, cfg.duration)

			m := runAttack(target, cfg)
			writeBenchReport(w, m)
			if m.Success < 1 {
				return errors.Newf("%.1f%% of requests failed", (1-m.Success)*100)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&cfg.rps, "rps", 100, "requests per second")
	f.DurationVar(&cfg.duration, "duration", 10*time.Second, "attack duration")
	f.Uint64Var(&cfg.workers, "workers", uint64(runtime.NumCPU()), "initial attack workers")
	f.StringVarP(&cfg.file, "file", "f", "-", "request body file, - for stdin")
	return cmd
}

func benchTarget(host, key, target string, body []byte) vegeta.Target {
	header := http.Header{"Content-Type": {"application/json"}}
	if key != "" {
		header.Set("Authorization", "Bearer "+key)
	}
	return vegeta.Target{
		Method: http.MethodPost,
		URL:    host + IntakePath(target),
		Body:   body,
		Header: header,
	}
}

func runAttack(target vegeta.Target, cfg benchConfig) *vegeta.Metrics {
	targeter := vegeta.NewStaticTargeter(target)
	rate := vegeta.Rate{Freq: cfg.rps, Per: time.Second}
	attacker := vegeta.NewAttacker(vegeta.Workers(cfg.workers))

	var m vegeta.Metrics
	for res := range attacker.Attack(targeter, rate, cfg.duration, "intake") {
		m.Add(res)
	}
	m.Close()
	return &m
}

func writeBenchReport(w io.Writer, m *vegeta.Metrics) {
	fmt.Fprintf(w, "requests:    %s (%.1f req/s sent, %.1f req/s accepted)\n",
		humanize.Comma(int64(m.Requests)), m.Rate, m.Throughput)
	fmt.Fprintf(w, "success:     %.2f%%\n", m.Success*100)
	fmt.Fprintf(w, "latency:     mean %s  p50 %s  p95 %s  p99 %s  max %s\n",
		m.Latencies.Mean, m.Latencies.P50, m.Latencies.P95, m.Latencies.P99, m.Latencies.Max)
	fmt.Fprintf(w, "bytes out:   %s\n", humanize.Bytes(m.BytesOut.Total))

	codes := make([]string, 0, len(m.StatusCodes))
	for c := range m.StatusCodes {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	fmt.Fprint(w, "status:     ")
	for _, c := range codes {
		fmt.Fprintf(w, " %s=%d", c, m.StatusCodes[c])
	}
	fmt.Fprintln(w)
	for i, e := range m.Errors {
		if i == 5 {
			fmt.Fprintf(w, "  ... %d more\n", len(m.Errors)-i)
			break
		}
		fmt.Fprintf(w, "  error: %s\n", e)
	}
}
