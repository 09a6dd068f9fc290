package aggregator

import "context"

// Executor turns one batch of operations into a single bulk call against a
// backend. Operations arrive in submission order. The aggregator never
// cancels ctx; a flush runs to completion once started.
type Executor interface {
	Flush(ctx context.Context, batch []any) error
}

// ExecutorFunc adapts a plain function to Executor.
type ExecutorFunc func(ctx context.Context, batch []any) error

// Flush calls f(ctx, batch).
func (f ExecutorFunc) Flush(ctx context.Context, batch []any) error { return f(ctx, batch) }

// DeadLetter receives batches whose flush failed. The engine does not
// retry; the sink only records what was lost.
type DeadLetter interface {
	WriteFailedBatch(target string, batch []any, cause error) error
}
