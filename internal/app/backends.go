package app

import (
	"context"
	"database/sql"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"autobulk/pkg/aggregator"
	"autobulk/pkg/config"
	"autobulk/pkg/executor"
)

const connectTimeout = 10 * time.Second

// backend is an opened target connection and the executor bound to it.
type backend struct {
	exec  aggregator.Executor
	close func(ctx context.Context) error
}

// openBackend connects to the store a target names and builds its executor.
func openBackend(ctx context.Context, t config.TargetConfig) (backend, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	switch t.Kind {
	case executor.KindRedis:
		opt, err := redis.ParseURL(t.Conn)
		if err != nil {
			return backend{}, errors.Wrap(err, "parse redis url")
		}
		client := redis.NewClient(opt)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return backend{}, errors.Wrap(err, "ping redis")
		}
		return backend{
			exec:  executor.NewRedis(client),
			close: func(context.Context) error { return client.Close() },
		}, nil

	case executor.KindMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(t.Conn))
		if err != nil {
			return backend{}, errors.Wrap(err, "connect mongo")
		}
		if err := client.Ping(ctx, nil); err != nil {
			_ = client.Disconnect(context.Background())
			return backend{}, errors.Wrap(err, "ping mongo")
		}
		coll := client.Database(t.Database).Collection(t.Resource)
		return backend{
			exec:  executor.NewMongo(coll),
			close: client.Disconnect,
		}, nil

	case executor.KindElastic:
		client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: splitList(t.Conn)})
		if err != nil {
			return backend{}, errors.Wrap(err, "create elasticsearch client")
		}
		return backend{
			exec:  executor.NewElastic(client, t.Resource),
			close: func(context.Context) error { return nil },
		}, nil

	case executor.KindSQL:
		db, err := sql.Open(t.Driver, t.Conn)
		if err != nil {
			return backend{}, errors.Wrapf(err, "open %s", t.Driver)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return backend{}, errors.Wrapf(err, "ping %s", t.Driver)
		}
		return backend{
			exec:  executor.NewSQL(db, t.Statement),
			close: func(context.Context) error { return db.Close() },
		}, nil

	case executor.KindPgx:
		pool, err := pgxpool.New(ctx, t.Conn)
		if err != nil {
			return backend{}, errors.Wrap(err, "create pgx pool")
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return backend{}, errors.Wrap(err, "ping postgres")
		}
		return backend{
			exec:  executor.NewPgx(pool, t.Statement),
			close: func(context.Context) error { pool.Close(); return nil },
		}, nil

	case executor.KindPebble:
		db, err := pebble.Open(t.Conn, &pebble.Options{})
		if err != nil {
			return backend{}, errors.Wrapf(err, "open pebble at %s", t.Conn)
		}
		return backend{
			exec:  executor.NewPebble(db, t.Sync),
			close: func(context.Context) error { return db.Close() },
		}, nil
	}
	return backend{}, errors.Wrapf(executor.ErrUnknownKind, "%q", t.Kind)
}

// targetIdentity derives the registry key for a target. Credentials in
// the connection string never become part of it.
func targetIdentity(t config.TargetConfig) aggregator.TargetIdentity {
	conn := t.ConnID
	if conn == "" {
		conn = redactConn(t.Conn)
	}
	resource := t.Resource
	if t.Kind == executor.KindMongo {
		resource = t.Database + "." + t.Resource
	}
	return aggregator.TargetIdentity{Kind: t.Kind, Conn: conn, Resource: resource}
}

// redactConn keeps host and path of URLs and drops anything up to the
// last '@' from DSNs such as user:pass@tcp(host)/db.
func redactConn(conn string) string {
	if u, err := url.Parse(conn); err == nil && u.Scheme != "" && u.Host != "" {
		return u.Host + u.Path
	}
	if i := strings.LastIndex(conn, "@"); i >= 0 {
		return conn[i+1:]
	}
	return conn
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
