// Package aggregator accumulates individual write operations per target and
// hands them to a backend Executor in bulk, either when a batch reaches its
// threshold or when it has waited longer than the configured interval.
//
// Failed flushes are not retried. The drained batch is logged, counted and
// optionally dead-lettered, then discarded; callers that need durability
// must submit idempotent operations and reconcile externally.
package aggregator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"autobulk/pkg/aggregator/queue"
	"autobulk/pkg/logger"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"
)

// State is the scheduler phase of an aggregator.
type State int32

const (
	StateIdle State = iota
	StateTriggered
	StateDraining
	StateFlushing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTriggered:
		return "triggered"
	case StateDraining:
		return "draining"
	case StateFlushing:
		return "flushing"
	default:
		return "unknown"
	}
}

// Trigger records why a batch was flushed.
type Trigger string

const (
	TriggerThreshold Trigger = "threshold"
	TriggerTimeout   Trigger = "timeout"
	TriggerForced    Trigger = "forced"
	TriggerShutdown  Trigger = "shutdown"
)

// Aggregator owns one queue and one executor for a single target.
type Aggregator struct {
	target TargetIdentity
	name   string
	q      *queue.TaskQueue
	exec   Executor
	opts   Options

	// one flush in flight at a time: scheduler, forced flushes and the
	// shutdown drain all take it
	flushMu sync.Mutex
	state   atomic.Int32

	lastFlush    atomic.Int64 // unix nanos
	lastActivity atomic.Int64 // unix nanos

	batches atomic.Uint64
	flushed atomic.Uint64
	failed  atomic.Uint64
	lost    atomic.Uint64

	idleLog *rate.Limiter

	stop         chan struct{}
	wg           sync.WaitGroup
	shutdownOnce sync.Once
	shutdownDone chan struct{}
	shutdownErr  error
}

func newAggregator(target TargetIdentity, exec Executor, opts Options) (*Aggregator, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if exec == nil {
		return nil, errors.Wrapf(ErrNilExecutor, "target %s", target)
	}
	if err := opts.validate(); err != nil {
		return nil, errors.Wrapf(err, "target %s", target)
	}
	opts = opts.withDefaults()

	q, err := queue.New(opts.Threshold)
	if err != nil {
		return nil, err
	}
	a := &Aggregator{
		target:       target,
		name:         target.String(),
		q:            q,
		exec:         exec,
		opts:         opts,
		idleLog:      rate.NewLimiter(rate.Every(opts.SilenceThreshold), 1),
		stop:         make(chan struct{}),
		shutdownDone: make(chan struct{}),
	}
	now := time.Now().UnixNano()
	a.lastFlush.Store(now)
	a.lastActivity.Store(now)
	return a, nil
}

// start launches the poll loop and the activity monitor.
func (a *Aggregator) start() {
	a.wg.Add(2)
	go a.pollLoop()
	go a.monitorLoop()
	logger.Debug("aggregator_started", "target", a.name, "threshold", a.opts.Threshold, "max_interval", a.opts.MaxInterval)
}

func (a *Aggregator) Target() TargetIdentity { return a.target }
func (a *Aggregator) State() State           { return State(a.state.Load()) }

// Submit enqueues op, blocking while the queue is full. It fails only when
// ctx ends or the aggregator is shutting down.
func (a *Aggregator) Submit(ctx context.Context, op any) error {
	if err := a.q.Submit(ctx, op); err != nil {
		return errors.Wrapf(err, "submit to %s", a.name)
	}
	return nil
}

// TrySubmit enqueues op without blocking and returns ErrQueueFull when the
// queue is at capacity.
func (a *Aggregator) TrySubmit(op any) error {
	if err := a.q.TrySubmit(op); err != nil {
		return errors.Wrapf(err, "submit to %s", a.name)
	}
	return nil
}

// Flush drains and flushes at most one batch now, regardless of trigger.
func (a *Aggregator) Flush() error {
	_, err := a.flushOnce(TriggerForced)
	return err
}

// Drain flushes everything currently queued in threshold-sized batches.
func (a *Aggregator) Drain() error {
	return a.drain(TriggerForced)
}

func (a *Aggregator) drain(trigger Trigger) error {
	var errs error
	for {
		n, err := a.flushOnce(trigger)
		errs = errors.CombineErrors(errs, err)
		if n < a.opts.Threshold {
			return errs
		}
	}
}

// Shutdown stops accepting operations, stops the background loops and
// flushes whatever remains queued. It is idempotent; later calls return the
// result of the first. Shutdown never returns before the final drain ends:
// if ctx expires first the overrun is logged and reported alongside the
// drain result.
func (a *Aggregator) Shutdown(ctx context.Context) error {
	a.shutdownOnce.Do(func() {
		go func() {
			defer close(a.shutdownDone)
			a.q.Close()
			close(a.stop)
			a.wg.Wait()
			a.shutdownErr = a.drain(TriggerShutdown)
			logger.Debug("aggregator_stopped", "target", a.name)
		}()
	})
	select {
	case <-a.shutdownDone:
		return a.shutdownErr
	case <-ctx.Done():
	}
	start := time.Now()
	logger.Warn("shutdown_overdue", "target", a.name, "queued", a.q.Len(), "error", ctx.Err())
	<-a.shutdownDone
	logger.Warn("shutdown_overdue_done", "target", a.name, "extra", time.Since(start))
	return errors.CombineErrors(a.shutdownErr, errors.Wrapf(ctx.Err(), "shutdown %s overran its deadline", a.name))
}

func (a *Aggregator) pollLoop() {
	defer a.wg.Done()
	ticker := time.NewTicker(a.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-a.stop:
			return
		case now := <-ticker.C:
			a.tick(now)
		}
	}
}

// tick evaluates the trigger once and keeps flushing full batches while
// the queue stays at threshold.
func (a *Aggregator) tick(now time.Time) {
	trigger, ok := a.evaluate(now)
	if !ok {
		return
	}
	for {
		_, _ = a.flushOnce(trigger)
		if a.q.Len() < a.opts.Threshold {
			return
		}
		select {
		case <-a.stop:
			return
		default:
		}
		trigger = TriggerThreshold
	}
}

func (a *Aggregator) evaluate(now time.Time) (Trigger, bool) {
	if a.q.Len() >= a.opts.Threshold {
		return TriggerThreshold, true
	}
	if now.Sub(time.Unix(0, a.lastFlush.Load())) > a.opts.MaxInterval {
		return TriggerTimeout, true
	}
	return "", false
}

// flushOnce drains up to threshold operations and runs the executor on
// them. An empty drain skips the executor but still resets lastFlush.
func (a *Aggregator) flushOnce(trigger Trigger) (int, error) {
	a.flushMu.Lock()
	defer a.flushMu.Unlock()
	defer a.state.Store(int32(StateIdle))

	a.state.Store(int32(StateTriggered))
	a.state.Store(int32(StateDraining))
	batch := a.q.DrainUpTo(a.opts.Threshold)
	queueDepth.WithLabelValues(a.name).Set(float64(a.q.Len()))
	if len(batch) == 0 {
		a.lastFlush.Store(time.Now().UnixNano())
		return 0, nil
	}
	a.lastActivity.Store(time.Now().UnixNano())

	a.state.Store(int32(StateFlushing))
	start := time.Now()
	err := a.runExecutor(batch)
	elapsed := time.Since(start)
	a.lastFlush.Store(time.Now().UnixNano())

	a.batches.Add(1)
	flushBatches.WithLabelValues(a.name, string(trigger)).Inc()
	flushDuration.WithLabelValues(a.name).Observe(elapsed.Seconds())

	if err != nil {
		a.failed.Add(1)
		a.lost.Add(uint64(len(batch)))
		flushFailures.WithLabelValues(a.name).Inc()
		lostOps.WithLabelValues(a.name).Add(float64(len(batch)))
		logger.Error("flush_failed", "target", a.name, "trigger", string(trigger), "batch_size", len(batch), "elapsed", elapsed, "error", err)
		if a.opts.DeadLetter != nil {
			if dlErr := a.opts.DeadLetter.WriteFailedBatch(a.name, batch, err); dlErr != nil {
				logger.Error("dead_letter_failed", "target", a.name, "batch_size", len(batch), "error", dlErr)
			}
		}
		return len(batch), err
	}

	a.flushed.Add(uint64(len(batch)))
	flushedOps.WithLabelValues(a.name).Add(float64(len(batch)))
	if a.opts.LogBatches {
		logger.Info("bulk_flush", "target", a.name, "trigger", string(trigger), "batch_size", len(batch), "elapsed", elapsed)
	}
	return len(batch), nil
}

// runExecutor converts executor panics into errors so the scheduler
// survives them.
func (a *Aggregator) runExecutor(batch []any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("executor panic for %s: %v", a.name, r)
		}
	}()
	if ferr := a.exec.Flush(context.Background(), batch); ferr != nil {
		return errors.Wrapf(ferr, "flush %s", a.name)
	}
	return nil
}

func (a *Aggregator) monitorLoop() {
	defer a.wg.Done()
	ticker := time.NewTicker(a.opts.MonitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-a.stop:
			return
		case now := <-ticker.C:
			a.checkActivity(now)
		}
	}
}

// checkActivity records activity when work is queued and reports long
// silences. It never affects flushing.
func (a *Aggregator) checkActivity(now time.Time) {
	depth := a.q.Len()
	queueDepth.WithLabelValues(a.name).Set(float64(depth))
	if depth > 0 {
		a.lastActivity.Store(now.UnixNano())
		return
	}
	last := time.Unix(0, a.lastActivity.Load())
	silent := now.Sub(last)
	if silent <= a.opts.SilenceThreshold || !a.idleLog.AllowN(now, 1) {
		return
	}
	logger.Info("aggregator_idle",
		"target", a.name,
		"silent_for", silent.Round(time.Second).String(),
		"last_activity", humanize.Time(last))
}
