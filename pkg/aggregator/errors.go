package aggregator

import (
	"autobulk/pkg/aggregator/queue"

	"github.com/cockroachdb/errors"
)

// Construction and lifecycle errors.
var (
	ErrInvalidThreshold = errors.New("threshold must be > 0")
	ErrInvalidInterval  = errors.New("interval must be > 0")
	ErrInvalidTarget    = errors.New("invalid target identity")
	ErrNilExecutor      = errors.New("executor is required")
	ErrRegistryClosed   = errors.New("aggregator registry closed")

	// re-exported so callers need not import the queue package
	ErrQueueFull   = queue.ErrQueueFull
	ErrQueueClosed = queue.ErrQueueClosed
)
