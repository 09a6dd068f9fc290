package aggregator

import (
	"context"
	"sort"
	"sync"

	"autobulk/pkg/logger"
	"autobulk/pkg/shutdown"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
)

// Registry maps target identities to their single live Aggregator. It is
// constructed once at startup and passed to every call site.
type Registry struct {
	mu     sync.Mutex
	aggs   map[TargetIdentity]*Aggregator
	closed bool
	hooks  *shutdown.Hooks
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithShutdownHooks registers each new aggregator's Shutdown on hooks so a
// process exit drains it.
func WithShutdownHooks(hooks *shutdown.Hooks) RegistryOption {
	return func(r *Registry) { r.hooks = hooks }
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{aggs: make(map[TargetIdentity]*Aggregator)}
	for _, o := range opts {
		o(r)
	}
	return r
}

// GetOrCreate returns the aggregator for target, creating and starting it
// on first use.
//
// The first caller wins: once an aggregator exists for target, later calls
// return it unchanged and ignore exec and opts, even when they differ.
// Invalid options fail only on the call that would create the aggregator.
// Once the registry or its exit hooks have shut down, creation fails with
// ErrRegistryClosed.
func (r *Registry) GetOrCreate(target TargetIdentity, exec Executor, opts Options) (*Aggregator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if agg, ok := r.aggs[target]; ok {
		if !agg.opts.sameAs(opts) {
			logger.Debug("aggregator_options_ignored", "target", agg.name,
				"threshold", agg.opts.Threshold, "requested_threshold", opts.Threshold,
				"max_interval", agg.opts.MaxInterval, "requested_max_interval", opts.MaxInterval)
		}
		return agg, nil
	}
	if r.closed {
		return nil, errors.Wrapf(ErrRegistryClosed, "target %s", target)
	}

	agg, err := newAggregator(target, exec, opts)
	if err != nil {
		return nil, err
	}
	agg.start()
	if r.hooks != nil && !r.hooks.Register("aggregator "+agg.name, agg.Shutdown) {
		// exit hooks already ran; an aggregator started now would never drain
		r.closed = true
		_ = agg.Shutdown(context.Background())
		return nil, errors.Wrapf(ErrRegistryClosed, "target %s", target)
	}
	r.aggs[target] = agg
	return agg, nil
}

// Get returns the aggregator for target if one exists.
func (r *Registry) Get(target TargetIdentity) (*Aggregator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	agg, ok := r.aggs[target]
	return agg, ok
}

// Aggregators returns a snapshot sorted by target name.
func (r *Registry) Aggregators() []*Aggregator {
	r.mu.Lock()
	out := make([]*Aggregator, 0, len(r.aggs))
	for _, agg := range r.aggs {
		out = append(out, agg)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func (r *Registry) Stats() []Stats {
	aggs := r.Aggregators()
	out := make([]Stats, 0, len(aggs))
	for _, agg := range aggs {
		out = append(out, agg.Stats())
	}
	return out
}

// FlushAll drains every aggregator now. Failures are combined.
func (r *Registry) FlushAll() error {
	var errs error
	for _, agg := range r.Aggregators() {
		errs = errors.CombineErrors(errs, agg.Drain())
	}
	return errs
}

// Shutdown closes the registry and shuts every aggregator down
// concurrently. Later GetOrCreate calls for new targets fail with
// ErrRegistryClosed.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	aggs := r.Aggregators()
	errs := make([]error, len(aggs))
	var g errgroup.Group
	for i, agg := range aggs {
		g.Go(func() error {
			errs[i] = agg.Shutdown(ctx)
			return nil
		})
	}
	_ = g.Wait()

	var combined error
	for _, err := range errs {
		combined = errors.CombineErrors(combined, err)
	}
	return combined
}
