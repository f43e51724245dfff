package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pscheid92/databoard/internal/logstore"
)

type Backend struct {
	pool *pgxpool.Pool
}

var _ logstore.Backend = (*Backend)(nil)

// NewBackend expects a pool on which RunMigrationsWithLock has completed.
func NewBackend(pool *pgxpool.Pool) *Backend {
	return &Backend{pool: pool}
}

func (b *Backend) Name() string { return "postgres" }

func (b *Backend) Ping(ctx context.Context) error {
	return b.pool.Ping(ctx)
}

func (b *Backend) Update(ctx context.Context, fn logstore.UpdateFunc) error {
	return pgx.BeginFunc(ctx, b.pool, func(tx pgx.Tx) error {
		var document *string
		err := tx.QueryRow(ctx, "SELECT document FROM board_log WHERE id = 1 FOR UPDATE").Scan(&document)
		if err != nil {
			return fmt.Errorf("lock document row: %w", err)
		}

		var current []byte
		if document != nil {
			current = []byte(*document)
		}

		next, err := fn(current)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}

		if _, err := tx.Exec(ctx,
			"UPDATE board_log SET document = $1, updated_at = now() WHERE id = 1",
			string(next),
		); err != nil {
			return fmt.Errorf("write document: %w", err)
		}
		return nil
	})
}
