// Package deadletter records batches whose flush failed as JSON lines so
// operators can inspect or replay them by hand.
package deadletter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"autobulk/pkg/logger"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// Record is one failed batch.
type Record struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Target    string            `json:"target"`
	Size      int               `json:"size"`
	Error     string            `json:"error"`
	Ops       []json.RawMessage `json:"ops"`
}

// Writer appends records to a daily file under dir, starting a new
// numbered file once the current one exceeds maxBytes (0 disables
// rotation by size).
type Writer struct {
	mu       sync.Mutex
	dir      string
	maxBytes int64

	current     *os.File
	currentDate string
	currentSeq  int
	written     int64
}

func NewWriter(dir string, maxBytes int64) *Writer {
	return &Writer{dir: dir, maxBytes: maxBytes}
}

// WriteFailedBatch implements aggregator.DeadLetter.
func (w *Writer) WriteFailedBatch(target string, batch []any, cause error) error {
	rec := Record{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Target:    target,
		Size:      len(batch),
		Ops:       make([]json.RawMessage, 0, len(batch)),
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	for _, op := range batch {
		rec.Ops = append(rec.Ops, encodeOp(op))
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal failed batch")
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.rotate(time.Now(), int64(len(data))); err != nil {
		return err
	}
	n, err := w.current.Write(data)
	w.written += int64(n)
	if err != nil {
		return errors.Wrap(err, "write failed batch")
	}

	logger.Warn("failed_batch_written", "id", rec.ID, "target", target, "size", rec.Size, "file", w.current.Name())
	return nil
}

// encodeOp falls back to the Go representation for values JSON cannot
// express.
func encodeOp(op any) json.RawMessage {
	if b, err := json.Marshal(op); err == nil {
		return b
	}
	b, _ := json.Marshal(fmt.Sprintf("%+v", op))
	return b
}

// rotate opens the file the next record of size n belongs in.
func (w *Writer) rotate(now time.Time, n int64) error {
	date := now.Format("2006-01-02")
	switch {
	case w.current == nil || w.currentDate != date:
		w.currentSeq = 0
	case w.maxBytes > 0 && w.written > 0 && w.written+n > w.maxBytes:
		w.currentSeq++
	default:
		return nil
	}
	if w.current != nil {
		_ = w.current.Close()
		w.current = nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return errors.Wrap(err, "create dead-letter directory")
	}

	for {
		name := fmt.Sprintf("failed_batches_%s.jsonl", date)
		if w.currentSeq > 0 {
			name = fmt.Sprintf("failed_batches_%s.%d.jsonl", date, w.currentSeq)
		}
		path := filepath.Join(w.dir, name)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return errors.Wrap(err, "open dead-letter file")
		}
		st, err := f.Stat()
		if err != nil {
			_ = f.Close()
			return errors.Wrap(err, "stat dead-letter file")
		}
		// skip files already full from an earlier run
		if w.maxBytes > 0 && st.Size() > 0 && st.Size()+n > w.maxBytes {
			_ = f.Close()
			w.currentSeq++
			continue
		}
		w.current = f
		w.currentDate = date
		w.written = st.Size()
		return nil
	}
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return nil
	}
	err := w.current.Close()
	w.current = nil
	return err
}
