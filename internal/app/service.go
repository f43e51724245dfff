package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/databoard/internal/domain"
	"github.com/pscheid92/databoard/internal/logstore"
	apperrors "github.com/pscheid92/databoard/internal/platform/errors"
	"github.com/pscheid92/databoard/internal/sentiment"
)

// AttachFunc registers a connection with the hub, queueing greeting as its
// first frame.
type AttachFunc func(greeting domain.Message) error

// Service is the session coordinator.
type Service struct {
	store domain.LogStore
	hub   domain.Hub
	clock clockwork.Clock

	// mu serializes joins and mutations together with their broadcasts.
	mu sync.Mutex
}

func NewService(store domain.LogStore, hub domain.Hub, clock clockwork.Clock) *Service {
	return &Service{
		store: store,
		hub:   hub,
		clock: clock,
	}
}

// Join loads the log and attaches the connection with the full log as its
// greeting. No broadcast can slip between the load and the attach.
func (s *Service) Join(ctx context.Context, connID string, attach AttachFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	if err := attach(domain.LoadHistoryMessage(log)); err != nil {
		return fmt.Errorf("failed to attach connection: %w", err)
	}

	slog.DebugContext(ctx, "Connection joined", "conn_id", connID, "entries", len(log))
	return nil
}

// Handle decodes and applies one inbound frame. Failures are reported to the
// sending connection as operation_failed and returned to the caller.
func (s *Service) Handle(ctx context.Context, connID string, raw []byte) error {
	msg, err := decodeMessage(raw)
	if err != nil {
		return s.fail(ctx, connID, "", err)
	}

	switch msg.Event {
	case domain.EventSubmitThreshold:
		sub, err := decodeSubmission(msg.Data)
		if err != nil {
			return s.fail(ctx, connID, msg.Event, err)
		}
		_, err = s.Submit(ctx, connID, sub)
		return s.fail(ctx, connID, msg.Event, err)

	case domain.EventClearAllData:
		return s.fail(ctx, connID, msg.Event, s.ClearAll(ctx))

	case domain.EventDeleteEntry:
		ts, err := decodeTimestamp(msg.Data)
		if err != nil {
			return s.fail(ctx, connID, msg.Event, err)
		}
		_, err = s.DeleteEntry(ctx, ts)
		return s.fail(ctx, connID, msg.Event, err)

	default:
		return s.fail(ctx, connID, msg.Event, fmt.Errorf("%w: unknown event %q", domain.ErrInvalidRequest, msg.Event))
	}
}

// Submit classifies the word, appends the entry and broadcasts it to every
// connection, the sender included.
func (s *Service) Submit(ctx context.Context, connID string, sub domain.Submission) (domain.Entry, error) {
	entry := domain.Entry{
		ID:   connID,
		Word: sub.Word,
		Params: domain.Params{
			Density:    ParseFloatParam(sub.Density),
			Repetition: ParseIntParam(sub.Repetition),
			Distortion: ParseFloatParam(sub.Distortion),
		},
		Analysis: sentiment.Classify(sub.Word),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry.Timestamp = s.clock.Now().UnixMilli()
	log, err := s.store.Append(ctx, entry)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("failed to append entry: %w", err)
	}
	s.hub.Broadcast(domain.NewDataPointMessage(entry))

	slog.InfoContext(ctx, "Entry submitted",
		"conn_id", connID,
		"timestamp", entry.Timestamp,
		"category", entry.Analysis.Category,
		"entries", len(log))
	return entry, nil
}

// ClearAll empties the log and notifies every connection.
func (s *Service) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear log: %w", err)
	}
	s.hub.Broadcast(domain.DataClearedMessage())

	slog.InfoContext(ctx, "Log cleared")
	return nil
}

// DeleteEntry removes every entry with the timestamp and broadcasts the
// timestamp, whether or not anything matched.
func (s *Service) DeleteEntry(ctx context.Context, timestamp int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, removed, err := s.store.DeleteByTimestamp(ctx, timestamp)
	if err != nil {
		return 0, fmt.Errorf("failed to delete entries: %w", err)
	}
	s.hub.Broadcast(domain.EntryDeletedMessage(timestamp))

	slog.InfoContext(ctx, "Entries deleted", "timestamp", timestamp, "removed", removed)
	return removed, nil
}

// Entries returns the current log.
func (s *Service) Entries(ctx context.Context) (domain.Log, error) {
	return s.store.Load(ctx)
}

// EntriesAt returns the entries stored under timestamp.
func (s *Service) EntriesAt(ctx context.Context, timestamp int64) (domain.Log, error) {
	log, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	matches := domain.Log{}
	for _, e := range log {
		if e.Timestamp == timestamp {
			matches = append(matches, e)
		}
	}
	return matches, nil
}

// fail sends operation_failed to connID when err is non-nil and returns err.
func (s *Service) fail(ctx context.Context, connID, event string, err error) error {
	if err == nil {
		return nil
	}

	failure := Failure(event, err)
	s.hub.Send(connID, domain.OperationFailedMessage(failure))

	if failure.Type == string(apperrors.TypeValidation) {
		slog.WarnContext(ctx, "Rejected request", "conn_id", connID, "event", event, "error", err)
	} else {
		slog.ErrorContext(ctx, "Request failed", "conn_id", connID, "event", event, "error", err)
	}
	return err
}

// Failure builds the operation_failed payload for a request that failed with err.
func Failure(event string, err error) domain.OperationFailure {
	structured := structuredError(err)
	return domain.OperationFailure{
		Event: event,
		Error: structured.Message,
		Type:  string(structured.Type),
	}
}

// structuredError maps a coordinator error onto the type reported to clients.
func structuredError(err error) *apperrors.Error {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return apperrors.ValidationError(err.Error())
	case errors.Is(err, domain.ErrHubFull):
		return apperrors.ExternalError("connection limit reached", err)
	case errors.Is(err, domain.ErrCorruptLog):
		return apperrors.InternalError("stored log is corrupt", err)
	case errors.Is(err, logstore.ErrConflict):
		return apperrors.ConflictError("log changed concurrently, try again", err)
	case errors.Is(err, context.Canceled):
		return apperrors.ExternalError("request cancelled", err)
	default:
		return apperrors.AsStructuredError(err)
	}
}
