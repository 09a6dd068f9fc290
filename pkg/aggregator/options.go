package aggregator

import (
	"time"

	"github.com/cockroachdb/errors"
)

const (
	DefaultPollInterval     = 10 * time.Millisecond
	DefaultMonitorInterval  = time.Second
	DefaultSilenceThreshold = 60 * time.Second
)

// Options configures an aggregator. Threshold and MaxInterval are
// required; the remaining fields fall back to the defaults above.
type Options struct {
	// Threshold is both the queue capacity and the batch size that
	// triggers an immediate flush.
	Threshold int
	// MaxInterval bounds how long a partial batch waits before it is
	// flushed anyway.
	MaxInterval time.Duration
	// LogBatches emits a bulk_flush line per completed batch.
	LogBatches bool

	PollInterval     time.Duration
	MonitorInterval  time.Duration
	SilenceThreshold time.Duration

	// DeadLetter, when set, receives batches whose flush failed.
	DeadLetter DeadLetter
}

// validate fails on non-positive required fields and never clamps them.
func (o Options) validate() error {
	if o.Threshold <= 0 {
		return errors.Wrapf(ErrInvalidThreshold, "got %d", o.Threshold)
	}
	if o.MaxInterval <= 0 {
		return errors.Wrapf(ErrInvalidInterval, "max interval %s", o.MaxInterval)
	}
	if o.PollInterval < 0 || o.MonitorInterval < 0 || o.SilenceThreshold < 0 {
		return errors.Wrap(ErrInvalidInterval, "poll, monitor and silence intervals must not be negative")
	}
	return nil
}

func (o Options) withDefaults() Options {
	if o.PollInterval == 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.MonitorInterval == 0 {
		o.MonitorInterval = DefaultMonitorInterval
	}
	if o.SilenceThreshold == 0 {
		o.SilenceThreshold = DefaultSilenceThreshold
	}
	return o
}

// sameAs reports whether two option sets configure identical behavior.
func (o Options) sameAs(other Options) bool {
	a, b := o.withDefaults(), other.withDefaults()
	return a.Threshold == b.Threshold &&
		a.MaxInterval == b.MaxInterval &&
		a.LogBatches == b.LogBatches &&
		a.PollInterval == b.PollInterval &&
		a.MonitorInterval == b.MonitorInterval &&
		a.SilenceThreshold == b.SilenceThreshold &&
		(a.DeadLetter == nil) == (b.DeadLetter == nil)
}
