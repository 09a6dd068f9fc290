// Package schedule runs a job on a cron expression until cancelled.
package schedule

import (
	"context"
	"sync"
	"time"

	"autobulk/pkg/logger"

	"github.com/adhocore/gronx"
	"github.com/cockroachdb/errors"
)

// ErrInvalidCron is returned for expressions gronx cannot parse.
var ErrInvalidCron = errors.New("invalid cron expression")

// retryDelay is how long the loop waits after gronx fails to compute the
// next tick.
var retryDelay = 30 * time.Second

// Validate reports whether expr is a usable cron expression.
func Validate(expr string) error {
	if !gronx.New().IsValid(expr) {
		return errors.Wrapf(ErrInvalidCron, "%q", expr)
	}
	return nil
}

// Job is run on every tick. Overlapping runs are skipped.
type Job func(ctx context.Context) error

// Start runs job on every tick of expr in a background goroutine. The
// returned cancel stops the loop and waits for a running job to finish.
func Start(ctx context.Context, expr, name string, job Job) (context.CancelFunc, error) {
	if err := Validate(expr); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &scheduler{expr: expr, name: name, job: job}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.loop(ctx)
	}()
	logger.Info("schedule_enabled", "job", name, "cron", expr)

	return func() {
		cancel()
		wg.Wait()
	}, nil
}

type scheduler struct {
	expr string
	name string
	job  Job

	mu      sync.Mutex
	running bool
}

func (s *scheduler) loop(ctx context.Context) {
	for {
		next, err := gronx.NextTickAfter(s.expr, time.Now(), false)
		if err != nil {
			logger.Error("schedule_nexttick_failed", "job", s.name, "cron", s.expr, "error", err)
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait <= 0 {
			s.run(ctx)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
			s.run(ctx)
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

func (s *scheduler) run(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		logger.Warn("schedule_job_skipped", "job", s.name, "reason", "previous run still active")
		return
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	start := time.Now()
	if err := s.job(ctx); err != nil {
		logger.Error("schedule_job_failed", "job", s.name, "elapsed", time.Since(start), "error", err)
		return
	}
	logger.Debug("schedule_job_done", "job", s.name, "elapsed", time.Since(start))
}
