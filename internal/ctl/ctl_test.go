package ctl

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	vegeta "github.com/tsenart/vegeta/lib"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"autobulk/pkg/aggregator"
	"autobulk/pkg/api"
	"autobulk/pkg/executor"
)

type counter struct {
	mu  sync.Mutex
	ops int
}

func (c *counter) Flush(_ context.Context, batch []any) error {
	c.mu.Lock()
	c.ops += len(batch)
	c.mu.Unlock()
	return nil
}

func (c *counter) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ops
}

// gateway serves a one-target gateway on an in-memory listener and
// returns options wired to it.
func gateway(t *testing.T, sink *counter) *options {
	t.Helper()
	reg := aggregator.NewRegistry()
	agg, err := reg.GetOrCreate(
		aggregator.TargetIdentity{Kind: executor.KindRedis, Conn: "cache", Resource: "events"},
		sink,
		aggregator.Options{Threshold: 50, MaxInterval: time.Hour},
	)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	srv := api.New(reg, []api.Target{{Name: "events", Kind: executor.KindRedis, Aggregator: agg}})

	ln := fasthttputil.NewInmemoryListener()
	hs := &fasthttp.Server{Handler: srv.Handler()}
	go func() { _ = hs.Serve(ln) }()
	t.Cleanup(func() {
		_ = hs.Shutdown()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = reg.Shutdown(ctx)
	})

	return &options{
		dial:   func(string) (net.Conn, error) { return ln.Dial() },
		stdin:  strings.NewReader(""),
		getenv: func(string) string { return "" },
	}
}

func run(t *testing.T, o *options, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(o, "test")
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--host", "http://gateway"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestSubmitStatsFlush(t *testing.T) {
	sink := &counter{}
	o := gateway(t, sink)

	o.stdin = strings.NewReader(`[{"name":"SET","args":["a","1"]},{"name":"SET","args":["b","2"]}]`)
	out, err := run(t, o, "submit", "events", "-o", "table")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !strings.Contains(out, "accepted 2 operation(s) for events") {
		t.Fatalf("unexpected submit output %q", out)
	}

	out, err = run(t, o, "stats", "-o", "json")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	var report StatsReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode stats %q: %v", out, err)
	}
	if report.Totals.Queued != 2 || len(report.Aggregators) != 1 {
		t.Fatalf("unexpected stats %+v", report)
	}

	out, err = run(t, o, "stats", "-o", "table")
	if err != nil || !strings.Contains(out, "redis://cache/events") || !strings.Contains(out, "2/50") {
		t.Fatalf("unexpected stats table %q (%v)", out, err)
	}

	out, err = run(t, o, "flush", "--target", "events", "-o", "table")
	if err != nil || !strings.Contains(out, "flushed events") {
		t.Fatalf("unexpected flush output %q (%v)", out, err)
	}
	if sink.total() != 2 {
		t.Fatalf("expected 2 flushed ops, got %d", sink.total())
	}
}

func TestTargetsCommand(t *testing.T) {
	o := gateway(t, &counter{})
	out, err := run(t, o, "targets", "-o", "json")
	if err != nil {
		t.Fatalf("targets: %v", err)
	}
	var targets []TargetInfo
	if err := json.Unmarshal([]byte(out), &targets); err != nil {
		t.Fatalf("decode targets %q: %v", out, err)
	}
	if len(targets) != 1 || targets[0].Name != "events" || targets[0].Kind != "redis" {
		t.Fatalf("unexpected targets %+v", targets)
	}
}

func TestSubmitUnknownTarget(t *testing.T) {
	o := gateway(t, &counter{})
	o.stdin = strings.NewReader(`{"name":"PING"}`)
	_, err := run(t, o, "submit", "ghost")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != fasthttp.StatusNotFound {
		t.Fatalf("expected 404 APIError, got %v", err)
	}
}

func TestAskKeyReadsStdin(t *testing.T) {
	o := &options{stdin: strings.NewReader("s3cret\n"), getenv: func(string) string { return "" }, askKey: true}
	var buf bytes.Buffer
	cmd := newRootCmd(o, "test")
	cmd.SetErr(&buf)
	c, err := o.client(cmd)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if c.key != "s3cret" {
		t.Fatalf("expected prompted key, got %q", c.key)
	}
}

func TestBenchTargetAndReport(t *testing.T) {
	tgt := benchTarget("http://127.0.0.1:8090", "k1", "events", []byte(`{"name":"PING"}`))
	if tgt.URL != "http://127.0.0.1:8090/v1/targets/events/ops" || tgt.Header.Get("Authorization") != "Bearer k1" {
		t.Fatalf("unexpected target %+v", tgt)
	}

	var m vegeta.Metrics
	now := time.Now()
	for i := 0; i < 4; i++ {
		code := uint16(202)
		if i == 3 {
			code = 503
		}
		m.Add(&vegeta.Result{Code: code, Timestamp: now.Add(time.Duration(i) * 10 * time.Millisecond), Latency: time.Millisecond, BytesOut: 15})
	}
	m.Close()

	var out bytes.Buffer
	writeBenchReport(&out, &m)
	for _, want := range []string{"requests:    4", "success:     75.00%", "202=3", "503=1"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("report missing %q:\n%s", want, out.String())
		}
	}
}
