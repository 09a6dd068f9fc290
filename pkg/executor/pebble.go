package executor

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
)

// KV is a single write to an embedded key-value store.
type KV struct {
	Key    []byte
	Value  []byte
	Delete bool
}

// Pebble applies a batch as one atomic pebble.Batch commit.
type Pebble struct {
	db   *pebble.DB
	sync bool
}

// NewPebble commits with fsync when sync is set.
func NewPebble(db *pebble.DB, sync bool) *Pebble {
	return &Pebble{db: db, sync: sync}
}

func (p *Pebble) Flush(ctx context.Context, batch []any) error {
	b := p.db.NewBatch()
	defer b.Close()

	for i, op := range batch {
		kv, ok := op.(KV)
		if !ok {
			return unexpected(i, op, "executor.KV")
		}
		if len(kv.Key) == 0 {
			return errors.Newf("op %d: empty key", i)
		}
		var err error
		if kv.Delete {
			err = b.Delete(kv.Key, nil)
		} else {
			err = b.Set(kv.Key, kv.Value, nil)
		}
		if err != nil {
			return errors.Wrapf(err, "stage op %d", i)
		}
	}

	opts := pebble.NoSync
	if p.sync {
		opts = pebble.Sync
	}
	if err := b.Commit(opts); err != nil {
		return errors.Wrap(err, "pebble commit")
	}
	return nil
}
