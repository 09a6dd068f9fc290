package executor

import (
	"context"
	"database/sql"

	"autobulk/pkg/logger"

	"github.com/cockroachdb/errors"
)

// SQL executes one statement template against every row of a batch inside
// a single transaction. database/sql has no multi-row execute, so a batch
// costs one round trip per row but commits atomically once. Use Pgx when a
// single wire call per batch matters.
type SQL struct {
	db        *sql.DB
	statement string
}

func NewSQL(db *sql.DB, statement string) *SQL {
	return &SQL{db: db, statement: statement}
}

func (s *SQL) Flush(ctx context.Context, batch []any) (err error) {
	rows := make([][]any, 0, len(batch))
	for i, op := range batch {
		args, rerr := rowArgs(i, op)
		if rerr != nil {
			return rerr
		}
		rows = append(rows, args)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, s.statement)
	if err != nil {
		return errors.Wrap(err, "prepare")
	}
	defer stmt.Close()

	var affected int64
	for i, args := range rows {
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return errors.Wrapf(err, "exec row %d", i)
		}
		if n, err := res.RowsAffected(); err == nil {
			affected += n
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	logger.Debug("sql_multi_exec", "rows", len(rows), "affected", affected)
	return nil
}
