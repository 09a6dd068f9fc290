package executor

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
)

// BatchSender is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Pgx queues every row on one pgx.Batch and sends it in a single round
// trip.
type Pgx struct {
	conn      BatchSender
	statement string
}

func NewPgx(conn BatchSender, statement string) *Pgx {
	return &Pgx{conn: conn, statement: statement}
}

func (p *Pgx) Flush(ctx context.Context, batch []any) error {
	b := &pgx.Batch{}
	for i, op := range batch {
		args, err := rowArgs(i, op)
		if err != nil {
			return err
		}
		b.Queue(p.statement, args...)
	}

	results := p.conn.SendBatch(ctx, b)
	var errs error
	for i := 0; i < b.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "row %d", i))
		}
	}
	if err := results.Close(); err != nil && errs == nil {
		errs = errors.Wrap(err, "close batch")
	}
	return errs
}
