package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
)

func mustNew(t *testing.T, capacity int) *TaskQueue {
	t.Helper()
	q, err := New(capacity)
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	return q
}

func TestNewRejectsNonPositiveCapacity(t *testing.T) {
	for _, c := range []int{0, -1} {
		if _, err := New(c); !errors.Is(err, ErrInvalidCapacity) {
			t.Fatalf("capacity %d: expected ErrInvalidCapacity, got %v", c, err)
		}
	}
}

func TestTrySubmitFull(t *testing.T) {
	q := mustNew(t, 2)
	if err := q.TrySubmit("a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := q.TrySubmit("b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// next should fail with ErrQueueFull
	if err := q.TrySubmit("c"); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if _, _, rejected := q.Counters(); rejected != 1 {
		t.Fatalf("expected rejected=1, got %d", rejected)
	}
}

func TestDrainUpToPreservesOrder(t *testing.T) {
	q := mustNew(t, 5)
	for i := 0; i < 5; i++ {
		if err := q.Submit(context.Background(), i); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	first := q.DrainUpTo(3)
	if len(first) != 3 {
		t.Fatalf("expected 3 items, got %d", len(first))
	}
	for i, op := range first {
		if op.(int) != i {
			t.Fatalf("item %d out of order: %v", i, op)
		}
	}
	rest := q.DrainUpTo(10)
	if len(rest) != 2 || rest[0].(int) != 3 || rest[1].(int) != 4 {
		t.Fatalf("unexpected remainder: %v", rest)
	}
	if empty := q.DrainUpTo(3); len(empty) != 0 {
		t.Fatalf("expected empty drain, got %v", empty)
	}
}

func TestSubmitBlocksUntilDrain(t *testing.T) {
	q := mustNew(t, 1)
	if err := q.Submit(context.Background(), "first"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- q.Submit(context.Background(), "second") }()

	select {
	case err := <-done:
		t.Fatalf("submit on full queue returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	if got := q.DrainUpTo(1); len(got) != 1 || got[0] != "first" {
		t.Fatalf("unexpected drain: %v", got)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("blocked submit failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("blocked submit did not resume after drain")
	}
	if got := q.DrainUpTo(1); len(got) != 1 || got[0] != "second" {
		t.Fatalf("blocked item lost: %v", got)
	}
}

func TestSubmitHonorsContext(t *testing.T) {
	q := mustNew(t, 1)
	_ = q.TrySubmit("x")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Submit(ctx, "y"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if q.Len() != 1 {
		t.Fatalf("expected len=1, got %d", q.Len())
	}
}

func TestCloseWakesBlockedSubmitters(t *testing.T) {
	q := mustNew(t, 1)
	_ = q.TrySubmit("kept")

	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() { errs <- q.Submit(context.Background(), "late") }()
	}
	time.Sleep(20 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		q.Close()
		close(closed)
	}()

	for i := 0; i < 3; i++ {
		select {
		case err := <-errs:
			if !errors.Is(err, ErrQueueClosed) {
				t.Fatalf("expected ErrQueueClosed, got %v", err)
			}
		case <-time.After(time.Second):
			t.Fatalf("blocked submitter not woken by Close")
		}
	}
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatalf("Close did not return")
	}

	if !q.Closed() {
		t.Fatalf("expected Closed() true")
	}
	if err := q.TrySubmit("after"); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed after close, got %v", err)
	}
	// queued items survive Close
	if got := q.DrainUpTo(5); len(got) != 1 || got[0] != "kept" {
		t.Fatalf("expected kept item after close, got %v", got)
	}
	q.Close()
}

func TestConcurrentSubmitAndDrainExactlyOnce(t *testing.T) {
	const producers, perProducer = 8, 250
	q := mustNew(t, 16)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				if err := q.Submit(context.Background(), fmt.Sprintf("%d-%d", p, i)); err != nil {
					t.Errorf("submit: %v", err)
					return
				}
			}
		}(p)
	}

	seen := make(map[string]int)
	deadline := time.After(5 * time.Second)
	for len(seen) < producers*perProducer {
		for _, op := range q.DrainUpTo(7) {
			seen[op.(string)]++
		}
		select {
		case <-deadline:
			t.Fatalf("timed out, got %d items", len(seen))
		default:
		}
	}
	wg.Wait()

	for k, n := range seen {
		if n != 1 {
			t.Fatalf("item %s seen %d times", k, n)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue, got %d", q.Len())
	}
}
