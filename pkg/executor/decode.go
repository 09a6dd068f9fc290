package executor

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/cockroachdb/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrUnknownKind is returned for target kinds Decode does not support.
var ErrUnknownKind = errors.New("unknown target kind")

// DecodeBatch parses an intake body into operations for kind. The body is
// either a JSON array of operations or a single operation. For the row
// kinds (sql, pgx) a flat array is one row and an array of arrays is many.
func DecodeBatch(kind string, body []byte) ([]any, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.New("empty body")
	}
	if body[0] != '[' {
		op, err := Decode(kind, body)
		if err != nil {
			return nil, err
		}
		return []any{op}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, errors.Wrap(err, "decode operations")
	}
	if isRowKind(kind) && len(items) > 0 && !isArray(items[0]) {
		op, err := Decode(kind, body)
		if err != nil {
			return nil, err
		}
		return []any{op}, nil
	}

	ops := make([]any, 0, len(items))
	for i, raw := range items {
		op, err := Decode(kind, raw)
		if err != nil {
			return nil, errors.Wrapf(err, "operation %d", i)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// Decode parses one JSON operation into the type kind's executor accepts.
func Decode(kind string, raw json.RawMessage) (any, error) {
	switch kind {
	case KindRedis:
		var cmd RedisCommand
		if err := json.Unmarshal(raw, &cmd); err != nil {
			return nil, errors.Wrap(err, "decode redis command")
		}
		if cmd.Name == "" {
			return nil, errors.New("redis command name is required")
		}
		return cmd, nil
	case KindElastic:
		return decodeBulkItem(raw)
	case KindSQL, KindPgx:
		return decodeRow(raw)
	case KindPebble:
		return decodeKV(raw)
	case KindMongo:
		return decodeMongo(raw)
	default:
		return nil, errors.Wrapf(ErrUnknownKind, "%q", kind)
	}
}

func isRowKind(kind string) bool { return kind == KindSQL || kind == KindPgx }

func isArray(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[0] == '['
}

func decodeBulkItem(raw json.RawMessage) (BulkItem, error) {
	var in struct {
		Action string          `json:"action"`
		Index  string          `json:"index"`
		ID     string          `json:"id"`
		Doc    json.RawMessage `json:"doc"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return BulkItem{}, errors.Wrap(err, "decode bulk item")
	}
	item := BulkItem{Action: in.Action, Index: in.Index, ID: in.ID}
	if len(in.Doc) > 0 && string(in.Doc) != "null" {
		item.Doc = in.Doc
	}
	return item, nil
}

// decodeRow keeps integers as int64 so drivers bind them as integers.
func decodeRow(raw json.RawMessage) ([]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var row []any
	if err := dec.Decode(&row); err != nil {
		return nil, errors.Wrap(err, "decode row")
	}
	for i, v := range row {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if iv, err := strconv.ParseInt(string(n), 10, 64); err == nil {
			row[i] = iv
		} else if fv, err := n.Float64(); err == nil {
			row[i] = fv
		}
	}
	return row, nil
}

func decodeKV(raw json.RawMessage) (KV, error) {
	var in struct {
		Key    string  `json:"key"`
		Value  *string `json:"value"`
		Delete bool    `json:"delete"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return KV{}, errors.Wrap(err, "decode kv")
	}
	if in.Key == "" {
		return KV{}, errors.New("key is required")
	}
	kv := KV{Key: []byte(in.Key), Delete: in.Delete}
	if !in.Delete {
		if in.Value == nil {
			return KV{}, errors.Newf("value is required for key %q", in.Key)
		}
		kv.Value = []byte(*in.Value)
	}
	return kv, nil
}

// mongo intake ops: insert, update_one, update_many, replace, delete_one,
// delete_many. Documents use MongoDB extended JSON.
func decodeMongo(raw json.RawMessage) (mongo.WriteModel, error) {
	var in struct {
		Op     string          `json:"op"`
		Filter json.RawMessage `json:"filter"`
		Doc    json.RawMessage `json:"doc"`
		Update json.RawMessage `json:"update"`
		Upsert bool            `json:"upsert"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, errors.Wrap(err, "decode mongo op")
	}

	extDoc := func(field string, b json.RawMessage) (bson.D, error) {
		if len(b) == 0 {
			return nil, errors.Newf("%s: %s is required", in.Op, field)
		}
		var d bson.D
		if err := bson.UnmarshalExtJSON(b, false, &d); err != nil {
			return nil, errors.Wrapf(err, "%s: decode %s", in.Op, field)
		}
		return d, nil
	}

	switch in.Op {
	case "insert", "":
		doc, err := extDoc("doc", in.Doc)
		if err != nil {
			return nil, err
		}
		return mongo.NewInsertOneModel().SetDocument(doc), nil
	case "update_one", "update_many":
		filter, err := extDoc("filter", in.Filter)
		if err != nil {
			return nil, err
		}
		update, err := extDoc("update", in.Update)
		if err != nil {
			return nil, err
		}
		if in.Op == "update_many" {
			return mongo.NewUpdateManyModel().SetFilter(filter).SetUpdate(update).SetUpsert(in.Upsert), nil
		}
		return mongo.NewUpdateOneModel().SetFilter(filter).SetUpdate(update).SetUpsert(in.Upsert), nil
	case "replace":
		filter, err := extDoc("filter", in.Filter)
		if err != nil {
			return nil, err
		}
		doc, err := extDoc("doc", in.Doc)
		if err != nil {
			return nil, err
		}
		return mongo.NewReplaceOneModel().SetFilter(filter).SetReplacement(doc).SetUpsert(in.Upsert), nil
	case "delete_one", "delete_many":
		filter, err := extDoc("filter", in.Filter)
		if err != nil {
			return nil, err
		}
		if in.Op == "delete_many" {
			return mongo.NewDeleteManyModel().SetFilter(filter), nil
		}
		return mongo.NewDeleteOneModel().SetFilter(filter), nil
	default:
		return nil, errors.Newf("unknown mongo op %q", in.Op)
	}
}
