// Package sqlite stores the log document in a single-row SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pscheid92/databoard/internal/logstore"
)

//go:embed schema.sql
var schema string

type Backend struct {
	db *sql.DB
}

var _ logstore.Backend = (*Backend)(nil)

// Open opens (creating if needed) the database at path and initializes the
// schema. Transactions take the write lock up front so two writers never
// interleave a read-modify-write cycle.
func Open(path string) (*Backend, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_txlock=immediate&_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Backend{db: db}, nil
}

func (b *Backend) Close() error {
	return b.db.Close()
}

func (b *Backend) Name() string { return "sqlite" }

func (b *Backend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

func (b *Backend) Update(ctx context.Context, fn logstore.UpdateFunc) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var document string
	var current []byte
	err = tx.QueryRowContext(ctx, "SELECT document FROM board_log WHERE id = 1").Scan(&document)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("read document: %w", err)
	default:
		current = []byte(document)
	}

	next, err := fn(current)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO board_log (id, document, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`,
		string(next), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("write document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
