package deadletter

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
)

func readRecords(t *testing.T, path string) []Record {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	var out []Record
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1<<20), 1<<20)
	for sc.Scan() {
		var r Record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatalf("decode record: %v", err)
		}
		out = append(out, r)
	}
	return out
}

func TestWriteFailedBatch(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, 0)
	defer w.Close()

	batch := []any{map[string]int{"n": 1}, []any{2, "two"}, make(chan int)}
	if err := w.WriteFailedBatch("redis://cache/hits", batch, errors.New("connection refused")); err != nil {
		t.Fatalf("write: %v", err)
	}

	files, _ := filepath.Glob(filepath.Join(dir, "failed_batches_*.jsonl"))
	if len(files) != 1 {
		t.Fatalf("expected one file, got %v", files)
	}
	recs := readRecords(t, files[0])
	if len(recs) != 1 {
		t.Fatalf("expected one record, got %d", len(recs))
	}
	r := recs[0]
	if r.ID == "" || r.Target != "redis://cache/hits" || r.Size != 3 || r.Error != "connection refused" {
		t.Fatalf("unexpected record %+v", r)
	}
	if string(r.Ops[0]) != `{"n":1}` {
		t.Fatalf("unexpected op encoding %s", r.Ops[0])
	}
	// channels are not JSON; they are kept as their Go representation
	var s string
	if err := json.Unmarshal(r.Ops[2], &s); err != nil || s == "" {
		t.Fatalf("expected string fallback, got %s", r.Ops[2])
	}
}

func TestWriterRotatesBySize(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, 300)
	defer w.Close()

	for i := 0; i < 5; i++ {
		if err := w.WriteFailedBatch("sql://main/events", []any{[]any{i, "payload-payload-payload"}}, errors.New("deadlock")); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	files, _ := filepath.Glob(filepath.Join(dir, "failed_batches_*.jsonl"))
	if len(files) < 2 {
		t.Fatalf("expected rotation into several files, got %v", files)
	}
	total := 0
	for _, f := range files {
		total += len(readRecords(t, f))
	}
	if total != 5 {
		t.Fatalf("expected 5 records across files, got %d", total)
	}
}
