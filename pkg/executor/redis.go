package executor

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// RedisCommand is one command replayed on a pipeline, e.g.
// {Name: "HSET", Args: ["user:1", "name", "ada"]}.
type RedisCommand struct {
	Name string `json:"name"`
	Args []any  `json:"args"`
}

// Redis replays a batch on a single pipeline and executes it once.
type Redis struct {
	client redis.Cmdable
}

func NewRedis(client redis.Cmdable) *Redis { return &Redis{client: client} }

func (r *Redis) Flush(ctx context.Context, batch []any) error {
	pipe := r.client.Pipeline()
	defer pipe.Discard()

	for i, op := range batch {
		cmd, ok := op.(RedisCommand)
		if !ok {
			return unexpected(i, op, "executor.RedisCommand")
		}
		if cmd.Name == "" {
			return errors.Newf("op %d: empty redis command", i)
		}
		args := make([]any, 0, len(cmd.Args)+1)
		args = append(args, cmd.Name)
		args = append(args, cmd.Args...)
		pipe.Do(ctx, args...)
	}

	cmds, err := pipe.Exec(ctx)
	if cerr := firstCmdErr(cmds); cerr != nil {
		return cerr
	}
	// a nil reply is a result, not a failure
	if err != nil && !errors.Is(err, redis.Nil) {
		return errors.Wrap(err, "redis pipeline")
	}
	return nil
}

func firstCmdErr(cmds []redis.Cmder) error {
	failed := 0
	var first error
	for _, c := range cmds {
		if err := c.Err(); err != nil && !errors.Is(err, redis.Nil) {
			failed++
			if first == nil {
				first = errors.Wrapf(err, "redis %s", c.Name())
			}
		}
	}
	if first != nil {
		return errors.Wrapf(first, "%d of %d pipeline commands failed", failed, len(cmds))
	}
	return nil
}
