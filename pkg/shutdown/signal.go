package shutdown

import (
	"context"
	"os"
	"os/signal"
	"runtime"

	"autobulk/pkg/logger"

	"golang.org/x/sys/unix"
)

// exit is swapped in tests.
var exit = os.Exit

// SetupSignalHandler returns a context cancelled on SIGINT, SIGTERM or
// SIGPIPE. On SIGPIPE goroutine stacks are dumped first.
func SetupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, unix.SIGINT, unix.SIGTERM)
	sigpipe := make(chan os.Signal, 1)
	signal.Notify(sigpipe, unix.SIGPIPE)

	go func() {
		defer signal.Stop(sigc)
		defer signal.Stop(sigpipe)
		select {
		case s := <-sigc:
			logger.Info("signal_received", "signal", s.String(), "msg", "shutdown requested")
		case s := <-sigpipe:
			logger.Info("signal_received", "signal", s.String(), "msg", "SIGPIPE - dumping goroutine stacks")
			buf := make([]byte, 1<<20)
			n := runtime.Stack(buf, true)
			logger.Info("goroutine_stack_dump", "dump", string(buf[:n]))
		case <-ctx.Done():
			return
		}
		cancel()
	}()

	return ctx, cancel
}

// Abort logs the fatal error, runs hooks so queued operations still get
// flushed, and exits with status 1.
func Abort(ctx context.Context, hooks *Hooks, msg string, err error) {
	logger.Error("fatal", "msg", msg, "error", err)
	if hooks != nil {
		_ = hooks.Run(ctx)
	}
	logger.Sync()
	exit(1)
}
