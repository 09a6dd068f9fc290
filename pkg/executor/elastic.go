package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"autobulk/pkg/logger"

	"github.com/cockroachdb/errors"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// BulkItem is one action of an Elasticsearch bulk request. Doc is the
// source line: the document for index/create, the update body for update,
// and ignored for delete.
type BulkItem struct {
	Action string `json:"action"`
	Index  string `json:"index,omitempty"`
	ID     string `json:"id,omitempty"`
	Doc    any    `json:"doc,omitempty"`
}

// Elastic sends a batch as a single _bulk request.
type Elastic struct {
	client *elasticsearch.Client
	index  string
}

// NewElastic flushes to index unless an item names its own.
func NewElastic(client *elasticsearch.Client, index string) *Elastic {
	return &Elastic{client: client, index: index}
}

func (e *Elastic) Flush(ctx context.Context, batch []any) error {
	body, err := encodeBulk(batch)
	if err != nil {
		return err
	}
	opts := []func(*esapi.BulkRequest){e.client.Bulk.WithContext(ctx)}
	if e.index != "" {
		opts = append(opts, e.client.Bulk.WithIndex(e.index))
	}
	res, err := e.client.Bulk(bytes.NewReader(body), opts...)
	if err != nil {
		return errors.Wrap(err, "elasticsearch bulk")
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return errors.Wrap(err, "read bulk response")
	}
	if res.IsError() {
		return errors.Newf("elasticsearch bulk: %s: %s", res.Status(), bytes.TrimSpace(raw))
	}
	return checkBulkResponse(raw, len(batch))
}

// encodeBulk renders items as NDJSON: an action line followed by a source
// line for everything except delete.
func encodeBulk(batch []any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, op := range batch {
		item, ok := op.(BulkItem)
		if !ok {
			if p, isPtr := op.(*BulkItem); isPtr && p != nil {
				item, ok = *p, true
			}
		}
		if !ok {
			return nil, unexpected(i, op, "executor.BulkItem")
		}
		action := item.Action
		if action == "" {
			action = "index"
		}
		meta := map[string]string{}
		if item.Index != "" {
			meta["_index"] = item.Index
		}
		if item.ID != "" {
			meta["_id"] = item.ID
		}
		switch action {
		case "index", "create", "update", "delete":
		default:
			return nil, errors.Newf("op %d: unknown bulk action %q", i, action)
		}
		if err := enc.Encode(map[string]any{action: meta}); err != nil {
			return nil, errors.Wrapf(err, "encode action %d", i)
		}
		if action == "delete" {
			continue
		}
		if item.Doc == nil {
			return nil, errors.Newf("op %d: %s requires a document", i, action)
		}
		if err := enc.Encode(item.Doc); err != nil {
			return nil, errors.Wrapf(err, "encode document %d", i)
		}
	}
	return buf.Bytes(), nil
}

type bulkResponse struct {
	Errors bool                                `json:"errors"`
	Items  []map[string]bulkResponseItemResult `json:"items"`
}

type bulkResponseItemResult struct {
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// checkBulkResponse turns item-level failures into one error.
func checkBulkResponse(raw []byte, sent int) error {
	var br bulkResponse
	if err := json.Unmarshal(raw, &br); err != nil {
		return errors.Wrap(err, "decode bulk response")
	}
	if !br.Errors {
		logger.Debug("elastic_bulk", "items", len(br.Items))
		return nil
	}
	failed := 0
	var first string
	for _, it := range br.Items {
		for action, r := range it {
			if r.Error == nil {
				continue
			}
			failed++
			if first == "" {
				first = action + " " + r.ID + ": " + r.Error.Type + ": " + r.Error.Reason
			}
		}
	}
	return errors.Newf("elasticsearch bulk: %d of %d items failed, first: %s", failed, sent, first)
}
