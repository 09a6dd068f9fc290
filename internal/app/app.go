package app

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/valyala/fasthttp"

	"autobulk/pkg/aggregator"
	"autobulk/pkg/api"
	"autobulk/pkg/config"
	"autobulk/pkg/deadletter"
	"autobulk/pkg/logger"
	"autobulk/pkg/schedule"
	"autobulk/pkg/shutdown"
)

// App owns the registry, the opened backends and the gateway listener.
// Everything it starts is torn down through its shutdown hooks, in
// reverse order of registration: listener, cron, aggregators, backends,
// dead-letter files.
type App struct {
	cfg     *config.Config
	version string

	hooks    *shutdown.Hooks
	registry *aggregator.Registry
	targets  []api.Target

	srvFast *fasthttp.Server
}

// New opens every configured target and starts its aggregator. On error
// whatever was already opened is released through the hooks.
func New(ctx context.Context, cfg *config.Config, version string) (*App, error) {
	hooks := shutdown.NewHooks()
	a := &App{
		cfg:      cfg,
		version:  version,
		hooks:    hooks,
		registry: aggregator.NewRegistry(aggregator.WithShutdownHooks(hooks)),
	}

	var dl aggregator.DeadLetter
	if cfg.DeadLetter.Enabled {
		w := deadletter.NewWriter(cfg.DeadLetter.Dir, cfg.DeadLetter.MaxFileSize.Int64())
		hooks.Register("dead letter", func(context.Context) error { return w.Close() })
		dl = w
	}

	for _, t := range cfg.Targets {
		if err := a.addTarget(ctx, t, dl); err != nil {
			_ = hooks.Run(context.Background())
			return nil, errors.Wrapf(err, "target %s", t.Name)
		}
	}

	a.logSummary()
	return a, nil
}

func (a *App) addTarget(ctx context.Context, t config.TargetConfig, dl aggregator.DeadLetter) error {
	b, err := openBackend(ctx, t)
	if err != nil {
		return err
	}
	// registered before the aggregator so it closes after the final drain
	a.hooks.Register("backend "+t.Name, b.close)

	opts := aggregator.Options{
		Threshold:        a.cfg.EffectiveThreshold(t),
		MaxInterval:      a.cfg.EffectiveMaxInterval(t),
		LogBatches:       a.cfg.EffectiveLogBatches(t),
		PollInterval:     a.cfg.Defaults.PollInterval.Duration(),
		MonitorInterval:  a.cfg.Defaults.MonitorInterval.Duration(),
		SilenceThreshold: a.cfg.Defaults.SilenceThreshold.Duration(),
		DeadLetter:       dl,
	}
	id := targetIdentity(t)
	if _, exists := a.registry.Get(id); exists {
		logger.Warn("target_shares_aggregator", "target", t.Name, "identity", id.String())
	}
	agg, err := a.registry.GetOrCreate(id, b.exec, opts)
	if err != nil {
		return err
	}
	a.targets = append(a.targets, api.Target{Name: t.Name, Kind: t.Kind, Aggregator: agg})
	logger.Info("target_ready", "target", t.Name, "identity", id.String(), "threshold", opts.Threshold, "max_interval", opts.MaxInterval)
	return nil
}

func (a *App) logSummary() {
	items := make([]string, 0, len(a.targets)+2)
	for _, t := range a.targets {
		st := t.Aggregator.Stats()
		items = append(items, fmt.Sprintf("%s: %s, batch capacity %s", t.Name, st.Kind, humanize.Comma(int64(st.Capacity))))
	}
	if a.cfg.DeadLetter.Enabled {
		items = append(items, fmt.Sprintf("dead_letter: %s (rotate at %s)", a.cfg.DeadLetter.Dir, a.cfg.DeadLetter.MaxFileSize))
	} else {
		items = append(items, "dead_letter: disabled, failed batches are dropped")
	}
	logger.LogConfigSummary("targets", items)
}

func (a *App) Registry() *aggregator.Registry { return a.registry }

// Hooks returns the shutdown hooks that tear the app down.
func (a *App) Hooks() *shutdown.Hooks { return a.hooks }

// Run starts the flush schedule and the gateway on the configured address
// and blocks until ctx is cancelled or the listener fails.
func (a *App) Run(ctx context.Context) error {
	if !a.cfg.AdminEnabled() {
		return a.Serve(ctx, nil)
	}
	ln, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return errors.Wrapf(err, "listen on %s", a.cfg.Addr())
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener. A nil listener runs without the
// gateway.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	if a.cfg.FlushCron != "" {
		cancel, err := schedule.Start(ctx, a.cfg.FlushCron, "flush_all", func(context.Context) error {
			return a.registry.FlushAll()
		})
		if err != nil {
			return err
		}
		a.hooks.Register("flush schedule", func(context.Context) error { cancel(); return nil })
	}

	var errCh <-chan error = make(chan error, 1)
	if ln != nil {
		errCh = a.startHTTP(ln)
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown runs every hook once and returns their combined error.
func (a *App) Shutdown(ctx context.Context) error {
	start := time.Now()
	err := a.hooks.Run(ctx)
	logger.Info("app_stopped", "took", time.Since(start), "error", err)
	return err
}
