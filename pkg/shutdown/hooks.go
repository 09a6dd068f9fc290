// Package shutdown runs registered exit hooks once, newest first, when the
// process is asked to stop.
package shutdown

import (
	"context"
	"sync"
	"time"

	"autobulk/pkg/logger"

	"github.com/cockroachdb/errors"
)

// HookFunc is a step of process shutdown.
type HookFunc func(ctx context.Context) error

type hook struct {
	name string
	fn   HookFunc
}

// Hooks is an ordered set of exit hooks. Run executes them once in reverse
// registration order.
type Hooks struct {
	mu    sync.Mutex
	hooks []hook
	ran   bool
	once  sync.Once
	err   error
}

func NewHooks() *Hooks { return &Hooks{} }

// Register adds fn under name. It returns false when Run has already been
// called, in which case fn is not recorded.
func (h *Hooks) Register(name string, fn HookFunc) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ran {
		logger.Warn("shutdown_hook_late", "hook", name)
		return false
	}
	h.hooks = append(h.hooks, hook{name: name, fn: fn})
	return true
}

func (h *Hooks) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.hooks)
}

// Run executes every hook in LIFO order. Each failure is logged before Run
// moves on; all failures are returned combined. Later calls return the
// first result.
func (h *Hooks) Run(ctx context.Context) error {
	h.once.Do(func() {
		h.mu.Lock()
		h.ran = true
		hooks := append([]hook(nil), h.hooks...)
		h.mu.Unlock()

		logger.Info("shutdown: running hooks", "count", len(hooks))
		for i := len(hooks) - 1; i >= 0; i-- {
			hk := hooks[i]
			start := time.Now()
			err := runHook(ctx, hk)
			if err != nil {
				logger.Error("shutdown_hook_failed", "hook", hk.name, "elapsed", time.Since(start), "error", err)
				h.err = errors.CombineErrors(h.err, err)
				continue
			}
			logger.Debug("shutdown_hook_done", "hook", hk.name, "elapsed", time.Since(start))
		}
		logger.Info("shutdown: hooks complete")
	})
	return h.err
}

func runHook(ctx context.Context, hk hook) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("hook %s panicked: %v", hk.name, r)
		}
	}()
	if err := hk.fn(ctx); err != nil {
		return errors.Wrapf(err, "hook %s", hk.name)
	}
	return nil
}
