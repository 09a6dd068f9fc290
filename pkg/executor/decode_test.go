package executor

import (
	"testing"

	"github.com/cockroachdb/errors"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestDecodeBatch(t *testing.T) {
	cases := []struct {
		name string
		kind string
		body string
		n    int
		ok   bool
	}{
		{"redis single", KindRedis, `{"name":"SET","args":["k","v"]}`, 1, true},
		{"redis many", KindRedis, `[{"name":"SET","args":["k","v"]},{"name":"DEL","args":["k"]}]`, 2, true},
		{"redis missing name", KindRedis, `{"args":["k"]}`, 0, false},
		{"sql one row", KindSQL, `[1,"a"]`, 1, true},
		{"sql many rows", KindSQL, `[[1,"a"],[2,"b"],[3,"c"]]`, 3, true},
		{"pgx rows", KindPgx, `[[1],[2]]`, 2, true},
		{"pebble set", KindPebble, `{"key":"a","value":"1"}`, 1, true},
		{"pebble delete", KindPebble, `[{"key":"a","delete":true}]`, 1, true},
		{"pebble missing value", KindPebble, `{"key":"a"}`, 0, false},
		{"elastic", KindElastic, `[{"action":"index","id":"1","doc":{"a":1}},{"action":"delete","id":"2"}]`, 2, true},
		{"mongo insert", KindMongo, `{"op":"insert","doc":{"name":"ada"}}`, 1, true},
		{"mongo update", KindMongo, `{"op":"update_one","filter":{"_id":1},"update":{"$set":{"a":1}},"upsert":true}`, 1, true},
		{"mongo bad op", KindMongo, `{"op":"truncate"}`, 0, false},
		{"mongo missing filter", KindMongo, `{"op":"delete_one"}`, 0, false},
		{"empty", KindRedis, ``, 0, false},
		{"unknown kind", "cassandra", `{}`, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ops, err := DecodeBatch(tc.kind, []byte(tc.body))
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatalf("expected error, got %v", ops)
				}
				return
			}
			if len(ops) != tc.n {
				t.Fatalf("expected %d ops, got %d", tc.n, len(ops))
			}
		})
	}
}

func TestDecodeTypes(t *testing.T) {
	op, err := Decode(KindSQL, []byte(`[7, 2.5, "x", null, true]`))
	if err != nil {
		t.Fatalf("decode row: %v", err)
	}
	row := op.([]any)
	if _, ok := row[0].(int64); !ok {
		t.Fatalf("expected int64 for whole numbers, got %T", row[0])
	}
	if _, ok := row[1].(float64); !ok {
		t.Fatalf("expected float64, got %T", row[1])
	}

	op, err = Decode(KindMongo, []byte(`{"op":"replace","filter":{"_id":1},"doc":{"n":2}}`))
	if err != nil {
		t.Fatalf("decode mongo: %v", err)
	}
	if _, ok := op.(*mongo.ReplaceOneModel); !ok {
		t.Fatalf("expected replace model, got %T", op)
	}

	if _, err := Decode("nope", nil); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}
