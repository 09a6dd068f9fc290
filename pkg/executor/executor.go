// Package executor holds the backend variants of aggregator.Executor. Each
// variant turns one batch into exactly one native bulk call.
package executor

import (
	"fmt"

	"autobulk/pkg/aggregator"

	"github.com/cockroachdb/errors"
)

// Target kinds understood by Decode and the process wiring.
const (
	KindMongo   = "mongo"
	KindElastic = "elastic"
	KindRedis   = "redis"
	KindSQL     = "sql"
	KindPgx     = "pgx"
	KindPebble  = "pebble"
)

// Kinds lists every supported target kind.
var Kinds = []string{KindMongo, KindElastic, KindRedis, KindSQL, KindPgx, KindPebble}

// ErrUnexpectedOp is returned when a batch holds an operation of the wrong
// type for the executor.
var ErrUnexpectedOp = errors.New("unexpected operation type")

var (
	_ aggregator.Executor = (*Mongo)(nil)
	_ aggregator.Executor = (*Elastic)(nil)
	_ aggregator.Executor = (*Redis)(nil)
	_ aggregator.Executor = (*SQL)(nil)
	_ aggregator.Executor = (*Pgx)(nil)
	_ aggregator.Executor = (*Pebble)(nil)
)

func unexpected(i int, op any, want string) error {
	return errors.Wrapf(ErrUnexpectedOp, "op %d is %s, want %s", i, fmt.Sprintf("%T", op), want)
}

// rowArgs accepts []any row tuples and single scalars as one-column rows.
func rowArgs(i int, op any) ([]any, error) {
	switch v := op.(type) {
	case []any:
		return v, nil
	case nil:
		return nil, unexpected(i, op, "[]any row")
	default:
		return []any{v}, nil
	}
}
