package logstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pscheid92/databoard/internal/adapter/metrics"
	"github.com/pscheid92/databoard/internal/domain"
)

const (
	opLoad   = "load"
	opAppend = "append"
	opDelete = "delete"
	opClear  = "clear"
	opRaw    = "raw"
)

// Store implements domain.LogStore on top of a Backend.
type Store struct {
	backend Backend
	timeout time.Duration
	metrics *metrics.StoreMetrics

	mu sync.Mutex
}

var _ domain.LogStore = (*Store)(nil)

// New creates a Store. timeout bounds each operation (0 disables it) and m may
// be nil.
func New(backend Backend, timeout time.Duration, m *metrics.StoreMetrics) *Store {
	return &Store{backend: backend, timeout: timeout, metrics: m}
}

// Backend returns the name of the underlying backend.
func (s *Store) Backend() string {
	return s.backend.Name()
}

// Ping checks that the backend is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// Load returns the current log, creating an empty stored log first when
// none exists. A stored document that cannot be parsed yields an error
// wrapping domain.ErrCorruptLog; the stored document is left as is.
func (s *Store) Load(ctx context.Context) (domain.Log, error) {
	var log domain.Log
	err := s.update(ctx, opLoad, func(current []byte) ([]byte, error) {
		if current == nil {
			log = domain.Log{}
			return Encode(log)
		}
		var err error
		log, err = Decode(current)
		return nil, err
	})
	if err != nil {
		return nil, err
	}
	s.recordSize(len(log))
	return log, nil
}

// Raw returns the stored document exactly as persisted, without parsing it,
// or nil when nothing has been stored yet. It succeeds on a corrupt log.
func (s *Store) Raw(ctx context.Context) ([]byte, error) {
	var raw []byte
	err := s.update(ctx, opRaw, func(current []byte) ([]byte, error) {
		raw = current
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// Append adds entry at the tail of the log and returns the updated log.
func (s *Store) Append(ctx context.Context, entry domain.Entry) (domain.Log, error) {
	var log domain.Log
	err := s.update(ctx, opAppend, func(current []byte) ([]byte, error) {
		var err error
		if log, err = decodeCurrent(current); err != nil {
			return nil, err
		}
		log = append(log, entry)
		return Encode(log)
	})
	if err != nil {
		return nil, err
	}
	s.recordSize(len(log))
	return log, nil
}

// DeleteByTimestamp removes every entry whose timestamp equals timestamp,
// keeping the others in order. It returns the updated log and the number of
// entries removed, which may be zero.
func (s *Store) DeleteByTimestamp(ctx context.Context, timestamp int64) (domain.Log, int, error) {
	var (
		log     domain.Log
		removed int
	)
	err := s.update(ctx, opDelete, func(current []byte) ([]byte, error) {
		existing, err := decodeCurrent(current)
		if err != nil {
			return nil, err
		}
		log = make(domain.Log, 0, len(existing))
		for _, e := range existing {
			if e.Timestamp == timestamp {
				continue
			}
			log = append(log, e)
		}
		removed = len(existing) - len(log)
		return Encode(log)
	})
	if err != nil {
		return nil, 0, err
	}
	if s.metrics != nil {
		s.metrics.EntriesRemoved.Add(float64(removed))
	}
	s.recordSize(len(log))
	return log, removed, nil
}

// Clear replaces the stored log with an empty one. The previous document is
// never parsed, so Clear also recovers a corrupt store.
func (s *Store) Clear(ctx context.Context) (domain.Log, error) {
	err := s.update(ctx, opClear, func([]byte) ([]byte, error) {
		return Encode(domain.Log{})
	})
	if err != nil {
		return nil, err
	}
	s.recordSize(0)
	return domain.Log{}, nil
}

func (s *Store) recordSize(n int) {
	if s.metrics != nil {
		s.metrics.LogEntries.Set(float64(n))
	}
}

func decodeCurrent(current []byte) (domain.Log, error) {
	if current == nil {
		return domain.Log{}, nil
	}
	return Decode(current)
}

func (s *Store) update(ctx context.Context, op string, fn UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var size int
	start := time.Now()
	err := s.backend.Update(ctx, func(current []byte) ([]byte, error) {
		next, err := fn(current)
		if err != nil {
			return nil, err
		}
		size = len(next)
		return next, nil
	})
	elapsed := time.Since(start)

	if s.metrics != nil {
		s.metrics.OperationDuration.WithLabelValues(s.backend.Name(), op).Observe(elapsed.Seconds())
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.OperationFailures.WithLabelValues(s.backend.Name(), op).Inc()
		}
		return fmt.Errorf("%s log (%s backend): %w", op, s.backend.Name(), err)
	}

	slog.DebugContext(ctx, "Log store operation completed",
		"operation", op,
		"backend", s.backend.Name(),
		"bytes_written", size,
		"duration", elapsed,
	)
	return nil
}
