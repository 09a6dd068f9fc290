package executor

import (
	"context"

	"autobulk/pkg/logger"

	"github.com/cockroachdb/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// BulkWriter is the part of *mongo.Collection the Mongo executor needs.
type BulkWriter interface {
	BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error)
}

// Mongo flushes mongo.WriteModel operations with one unordered BulkWrite,
// so one rejected document does not stop the rest.
type Mongo struct {
	coll BulkWriter
}

func NewMongo(coll BulkWriter) *Mongo { return &Mongo{coll: coll} }

func (m *Mongo) Flush(ctx context.Context, batch []any) error {
	models := make([]mongo.WriteModel, 0, len(batch))
	for i, op := range batch {
		wm, ok := op.(mongo.WriteModel)
		if !ok {
			return unexpected(i, op, "mongo.WriteModel")
		}
		models = append(models, wm)
	}
	res, err := m.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return errors.Wrap(err, "mongo bulk write")
	}
	if res != nil {
		logger.Debug("mongo_bulk_write", "inserted", res.InsertedCount, "matched", res.MatchedCount,
			"modified", res.ModifiedCount, "deleted", res.DeletedCount, "upserted", res.UpsertedCount)
	}
	return nil
}
