package app

import (
	"context"
	"net"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/valyala/fasthttp"

	"autobulk/pkg/api"
	"autobulk/pkg/auth"
	"autobulk/pkg/logger"
)

// startHTTP serves the gateway on ln, returning a channel that delivers
// the serve error. The listener is stopped by a shutdown hook.
func (a *App) startHTTP(ln net.Listener) <-chan error {
	gw := auth.NewGateway(auth.FromConfig(a.cfg.Admin))
	srv := api.New(a.registry, a.targets,
		api.WithSubmitTimeout(a.cfg.Admin.SubmitTimeout.Duration()),
		api.WithVersion(a.version),
	)

	const (
		readBufferSize       = 64 * 1024        // 64 KiB read buffer per connection
		maxRequestBodySize   = 16 * 1024 * 1024 // intake bodies carry whole batches
		readTimeout          = 10 * time.Second
		idleTimeout          = 30 * time.Second
		maxKeepaliveDuration = 2 * time.Minute
	)
	// no write timeout: an intake request may wait up to submit_timeout on
	// a full queue before answering
	a.srvFast = &fasthttp.Server{
		Handler:              srv.Handler(gw.Middleware),
		Name:                 "autobulk",
		ReadBufferSize:       readBufferSize,
		MaxRequestBodySize:   maxRequestBodySize,
		ReadTimeout:          readTimeout,
		IdleTimeout:          idleTimeout,
		MaxKeepaliveDuration: maxKeepaliveDuration,
	}
	a.hooks.Register("http server", func(ctx context.Context) error {
		defer gw.Close()
		return a.stopHTTP(ctx)
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http_listening", "addr", ln.Addr().String())
		if err := a.srvFast.Serve(ln); err != nil {
			errCh <- errors.Wrap(err, "http server")
		}
	}()
	return errCh
}

// stopHTTP stops accepting requests and waits for in-flight ones, bounded
// by ctx.
func (a *App) stopHTTP(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- a.srvFast.Shutdown() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "http shutdown")
	}
}
