package executor

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

func openMemPebble(t *testing.T) *pebble.DB {
	t.Helper()
	db, err := pebble.Open("autobulk", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func pebbleValue(t *testing.T, db *pebble.DB, key string) (string, bool) {
	t.Helper()
	v, closer, err := db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", false
	}
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	defer closer.Close()
	return string(v), true
}

func TestPebbleFlushCommitsBatch(t *testing.T) {
	db := openMemPebble(t)
	exec := NewPebble(db, true)

	err := exec.Flush(context.Background(), []any{
		KV{Key: []byte("a"), Value: []byte("1")},
		KV{Key: []byte("b"), Value: []byte("2")},
		KV{Key: []byte("a"), Value: []byte("3")},
	})
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if v, _ := pebbleValue(t, db, "a"); v != "3" {
		t.Fatalf("expected later write to win, got %q", v)
	}

	if err := exec.Flush(context.Background(), []any{KV{Key: []byte("b"), Delete: true}}); err != nil {
		t.Fatalf("flush delete: %v", err)
	}
	if _, ok := pebbleValue(t, db, "b"); ok {
		t.Fatalf("expected b deleted")
	}
}

func TestPebbleRejectsWholeBatchOnBadOp(t *testing.T) {
	db := openMemPebble(t)
	exec := NewPebble(db, false)

	err := exec.Flush(context.Background(), []any{
		KV{Key: []byte("x"), Value: []byte("1")},
		"not a kv",
	})
	if !errors.Is(err, ErrUnexpectedOp) {
		t.Fatalf("expected ErrUnexpectedOp, got %v", err)
	}
	if _, ok := pebbleValue(t, db, "x"); ok {
		t.Fatalf("uncommitted batch must not be visible")
	}
}
