package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/databoard/internal/logstore"
	"github.com/pscheid92/databoard/internal/platform/retry"
)

// DefaultKey is the key holding the log document.
const DefaultKey = "databoard:log"

// conflictPolicy bounds how often a cycle is re-run after another writer
// modified the key between WATCH and EXEC.
var conflictPolicy = retry.Policy{
	MaxAttempts:    10,
	InitialBackoff: 5 * time.Millisecond,
	MaxBackoff:     100 * time.Millisecond,
}

type Backend struct {
	rdb *goredis.Client
	key string
}

var _ logstore.Backend = (*Backend)(nil)

func NewBackend(rdb *goredis.Client, key string) *Backend {
	if key == "" {
		key = DefaultKey
	}
	return &Backend{rdb: rdb, key: key}
}

func (b *Backend) Name() string { return "redis" }

func (b *Backend) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

func (b *Backend) Close() error {
	return b.rdb.Close()
}

func classifyConflict(err error) retry.Action {
	if errors.Is(err, goredis.TxFailedErr) {
		return retry.Retry
	}
	return retry.Stop
}

// Update may call fn more than once when the key changes concurrently; only
// the last call's result is persisted.
func (b *Backend) Update(ctx context.Context, fn logstore.UpdateFunc) error {
	err := retry.DoVoid(ctx, conflictPolicy, classifyConflict, func() error {
		return b.rdb.Watch(ctx, func(tx *goredis.Tx) error {
			current, err := tx.Get(ctx, b.key).Bytes()
			switch {
			case errors.Is(err, goredis.Nil):
				current = nil
			case err != nil:
				return fmt.Errorf("read %s: %w", b.key, err)
			case current == nil:
				current = []byte{}
			}

			next, err := fn(current)
			if err != nil {
				return err
			}
			if next == nil {
				return nil
			}

			_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
				pipe.Set(ctx, b.key, next, 0)
				return nil
			})
			return err
		}, b.key)
	})

	var permanent *retry.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	if errors.Is(err, goredis.TxFailedErr) {
		return fmt.Errorf("%w: %w", logstore.ErrConflict, err)
	}
	return err
}
