// Package filestore keeps the log document in a single JSON file. Writes go
// to a temporary file in the same directory which is then renamed over the
// original, so readers see either the old or the new document. Every
// read-modify-write cycle holds an flock on <path>.lock, which serializes
// the server and boardctl when they share a file.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/pscheid92/databoard/internal/logstore"
)

const lockRetryDelay = 10 * time.Millisecond

type Backend struct {
	mu   sync.Mutex
	path string
	lock *flock.Flock
}

var _ logstore.Backend = (*Backend)(nil)

func New(path string) *Backend {
	return &Backend{path: path, lock: flock.New(path + ".lock")}
}

func (b *Backend) Name() string { return "file" }

func (b *Backend) Path() string { return b.path }

// LockPath is the file other processes lock to exclude this one.
func (b *Backend) LockPath() string { return b.lock.Path() }

// Ping checks that the directory holding the document exists and is a directory.
func (b *Backend) Ping(context.Context) error {
	info, err := os.Stat(filepath.Dir(b.path))
	if err != nil {
		return fmt.Errorf("stat data directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", filepath.Dir(b.path))
	}
	return nil
}

func (b *Backend) Update(ctx context.Context, fn logstore.UpdateFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	locked, err := b.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock %s: %w", b.lock.Path(), err)
	}
	if !locked {
		return fmt.Errorf("lock %s: not acquired", b.lock.Path())
	}
	defer func() { _ = b.lock.Unlock() }()

	current, err := os.ReadFile(b.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		current = nil
	case err != nil:
		return fmt.Errorf("read %s: %w", b.path, err)
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

	if err := ctx.Err(); err != nil {
		return err
	}
	return b.writeAtomic(next)
}

func (b *Backend) writeAtomic(data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(b.path), filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if err := os.Rename(tmpName, b.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", b.path, err)
	}
	return nil
}
