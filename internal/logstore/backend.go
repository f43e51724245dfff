package logstore

import (
	"context"
	"errors"
)

// ErrConflict reports that concurrent writers kept invalidating an update
// until the backend gave up.
var ErrConflict = errors.New("concurrent update conflict")

// UpdateFunc receives the stored document, or nil when nothing has been stored
// yet, and returns the document to persist. Returning nil leaves storage
// untouched.
type UpdateFunc func(current []byte) ([]byte, error)

// Backend persists the log document. Update must run fn and persist its result
// atomically: a reader never observes a partially written document.
type Backend interface {
	Update(ctx context.Context, fn UpdateFunc) error
	Ping(ctx context.Context) error
	Name() string
}
