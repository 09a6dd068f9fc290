package executor

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
)

// fakeES answers _bulk requests and keeps their NDJSON lines.
type fakeES struct {
	mu       sync.Mutex
	paths    []string
	lines    []string
	response string
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.paths = append(f.paths, r.URL.Path)
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		f.lines = append(f.lines, sc.Text())
	}
	resp := f.response
	f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(resp))
}

func newFakeES(t *testing.T, response string) (*fakeES, *elasticsearch.Client) {
	t.Helper()
	f := &fakeES{response: response}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return f, client
}

func TestElasticFlushSendsNDJSON(t *testing.T) {
	f, client := newFakeES(t, `{"took":3,"errors":false,"items":[{"index":{"_id":"1","status":201}},{"delete":{"_id":"2","status":200}}]}`)
	exec := NewElastic(client, "events")

	err := exec.Flush(context.Background(), []any{
		BulkItem{Action: "index", ID: "1", Doc: map[string]any{"title": "hello"}},
		BulkItem{Action: "delete", ID: "2"},
	})
	if err != nil {
		t.Fatalf("flush: %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.paths) != 1 || f.paths[0] != "/events/_bulk" {
		t.Fatalf("expected one request to /events/_bulk, got %v", f.paths)
	}
	if len(f.lines) != 3 {
		t.Fatalf("expected action+doc+delete lines, got %q", f.lines)
	}
	var action map[string]map[string]string
	if err := json.Unmarshal([]byte(f.lines[0]), &action); err != nil {
		t.Fatalf("decode action line: %v", err)
	}
	if action["index"]["_id"] != "1" {
		t.Fatalf("unexpected action line %q", f.lines[0])
	}
	if !strings.Contains(f.lines[1], `"title":"hello"`) {
		t.Fatalf("unexpected doc line %q", f.lines[1])
	}
}

func TestElasticFlushReportsItemErrors(t *testing.T) {
	_, client := newFakeES(t, `{"took":1,"errors":true,"items":[
		{"index":{"_id":"1","status":201}},
		{"index":{"_id":"2","status":400,"error":{"type":"mapper_parsing_exception","reason":"failed to parse field [n]"}}}]}`)
	exec := NewElastic(client, "events")

	err := exec.Flush(context.Background(), []any{
		BulkItem{ID: "1", Doc: map[string]any{"n": 1}},
		BulkItem{ID: "2", Doc: map[string]any{"n": "x"}},
	})
	if err == nil {
		t.Fatalf("expected item failure")
	}
	if !strings.Contains(err.Error(), "1 of 2 items failed") || !strings.Contains(err.Error(), "mapper_parsing_exception") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestEncodeBulkValidatesItems(t *testing.T) {
	if _, err := encodeBulk([]any{BulkItem{Action: "upsert", Doc: 1}}); err == nil {
		t.Fatalf("expected unknown action error")
	}
	if _, err := encodeBulk([]any{BulkItem{Action: "index"}}); err == nil {
		t.Fatalf("expected missing document error")
	}
	if _, err := encodeBulk([]any{RedisCommand{Name: "SET"}}); err == nil {
		t.Fatalf("expected wrong type error")
	}
}
