package executor

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeSender records batches and replays canned per-row results.
type fakeSender struct {
	sent    []*pgx.Batch
	failRow int
}

func (f *fakeSender) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	f.sent = append(f.sent, b)
	return &fakeResults{n: b.Len(), failRow: f.failRow}
}

type fakeResults struct {
	n, next, failRow int
	closed           bool
}

func (r *fakeResults) Exec() (pgconn.CommandTag, error) {
	r.next++
	if r.next > r.n {
		return pgconn.CommandTag{}, errors.New("no more results")
	}
	if r.next == r.failRow {
		return pgconn.CommandTag{}, errors.New("duplicate key value")
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (r *fakeResults) Query() (pgx.Rows, error) { return nil, errors.New("not supported") }
func (r *fakeResults) QueryRow() pgx.Row        { return nil }
func (r *fakeResults) Close() error {
	r.closed = true
	return nil
}

func TestPgxSendsOneBatch(t *testing.T) {
	sender := &fakeSender{}
	exec := NewPgx(sender, `INSERT INTO events (id, name) VALUES ($1, $2)`)

	err := exec.Flush(context.Background(), []any{
		[]any{int64(1), "a"},
		[]any{int64(2), "b"},
		[]any{int64(3), "c"},
	})
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one round trip, got %d", len(sender.sent))
	}
	b := sender.sent[0]
	if b.Len() != 3 {
		t.Fatalf("expected 3 queued rows, got %d", b.Len())
	}
	if got := b.QueuedQueries[1].Arguments; len(got) != 2 || got[1] != "b" {
		t.Fatalf("unexpected arguments %v", got)
	}
}

func TestPgxReportsRowFailures(t *testing.T) {
	sender := &fakeSender{failRow: 2}
	exec := NewPgx(sender, `INSERT INTO events (id) VALUES ($1)`)
	err := exec.Flush(context.Background(), []any{[]any{1}, []any{2}, []any{3}})
	if err == nil {
		t.Fatalf("expected row failure")
	}
}
