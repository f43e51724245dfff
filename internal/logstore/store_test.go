package logstore

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/databoard/internal/adapter/metrics"
	"github.com/pscheid92/databoard/internal/domain"
)

// memBackend keeps the document in memory. It holds no lock of its own so
// that concurrency tests exercise the Store's serialization.
type memBackend struct {
	doc      []byte
	writes   int
	failWith error
	deadline bool
}

func (b *memBackend) Update(ctx context.Context, fn UpdateFunc) error {
	_, b.deadline = ctx.Deadline()
	if b.failWith != nil {
		return b.failWith
	}
	var current []byte
	if b.doc != nil {
		current = append([]byte(nil), b.doc...)
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	if next != nil {
		time.Sleep(time.Microsecond)
		b.doc = next
		b.writes++
	}
	return nil
}

func (b *memBackend) Ping(context.Context) error { return b.failWith }
func (b *memBackend) Name() string               { return "memory" }

func entry(ts int64, word string) domain.Entry {
	return domain.Entry{
		ID:        "conn-" + word,
		Timestamp: ts,
		Word:      word,
		Params:    domain.Params{Density: 0.5, Repetition: 3, Distortion: 1.5},
		Analysis:  domain.Analysis{WordCount: 1, Category: domain.CategoryNeutral},
	}
}

func TestLoad_InitializesEmptyLog(t *testing.T) {
	backend := &memBackend{}
	store := New(backend, 0, nil)

	log, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, log)
	assert.NotNil(t, log)
	assert.Equal(t, "[]\n", string(backend.doc))
	assert.Equal(t, 1, backend.writes)

	_, err = store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, backend.writes, "existing document must not be rewritten on load")
}

func TestLoad_CorruptDocument(t *testing.T) {
	backend := &memBackend{doc: []byte(`{"not": "an array"`)}
	store := New(backend, 0, nil)

	_, err := store.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCorruptLog)
	assert.Equal(t, `{"not": "an array"`, string(backend.doc))
}

func TestRaw(t *testing.T) {
	t.Run("corrupt document is returned unparsed", func(t *testing.T) {
		backend := &memBackend{doc: []byte(`[{"id":`)}
		raw, err := New(backend, 0, nil).Raw(context.Background())
		require.NoError(t, err)
		assert.Equal(t, `[{"id":`, string(raw))
		assert.Zero(t, backend.writes)
	})

	t.Run("nothing stored", func(t *testing.T) {
		backend := &memBackend{}
		raw, err := New(backend, 0, nil).Raw(context.Background())
		require.NoError(t, err)
		assert.Nil(t, raw)
		assert.Nil(t, backend.doc)
	})
}

func TestAppend_AddsAtTail(t *testing.T) {
	store := New(&memBackend{}, 0, nil)
	ctx := context.Background()

	first, second := entry(1, "one"), entry(2, "two")
	_, err := store.Append(ctx, first)
	require.NoError(t, err)
	got, err := store.Append(ctx, second)
	require.NoError(t, err)

	want := domain.Log{first, second}
	assert.Empty(t, cmp.Diff(want, got))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(want, loaded))
}

func TestAppend_OnCorruptDocumentFails(t *testing.T) {
	backend := &memBackend{doc: []byte("garbage")}
	store := New(backend, 0, nil)

	_, err := store.Append(context.Background(), entry(1, "x"))
	assert.ErrorIs(t, err, domain.ErrCorruptLog)
	assert.Equal(t, "garbage", string(backend.doc))
}

func TestClear(t *testing.T) {
	tests := []struct {
		name string
		doc  []byte
	}{
		{"nothing stored", nil},
		{"populated", mustEncode(t, domain.Log{entry(1, "a"), entry(2, "b")})},
		{"corrupt", []byte("{{{")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := New(&memBackend{doc: tt.doc}, 0, nil)

			got, err := store.Clear(context.Background())
			require.NoError(t, err)
			assert.Empty(t, got)

			loaded, err := store.Load(context.Background())
			require.NoError(t, err)
			assert.Empty(t, loaded)
		})
	}
}

func TestDeleteByTimestamp(t *testing.T) {
	a, b1, c, b2 := entry(1, "a"), entry(2, "b1"), entry(3, "c"), entry(2, "b2")

	tests := []struct {
		name        string
		log         domain.Log
		timestamp   int64
		want        domain.Log
		wantRemoved int
	}{
		{"single match", domain.Log{a, c}, 1, domain.Log{c}, 1},
		{"colliding timestamps removed together", domain.Log{a, b1, c, b2}, 2, domain.Log{a, c}, 2},
		{"no match is a no-op", domain.Log{a, c}, 99, domain.Log{a, c}, 0},
		{"empty log", domain.Log{}, 1, domain.Log{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := New(&memBackend{doc: mustEncode(t, tt.log)}, 0, nil)

			got, removed, err := store.DeleteByTimestamp(context.Background(), tt.timestamp)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRemoved, removed)
			assert.Empty(t, cmp.Diff(tt.want, got))

			loaded, err := store.Load(context.Background())
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(tt.want, loaded))
		})
	}
}

func TestDeleteByTimestamp_AfterAppendAtSameMillisecond(t *testing.T) {
	store := New(&memBackend{}, 0, nil)
	ctx := context.Background()

	unrelated := entry(500, "keep")
	_, err := store.Append(ctx, unrelated)
	require.NoError(t, err)
	_, err = store.Append(ctx, entry(1000, "drop"))
	require.NoError(t, err)

	got, removed, err := store.DeleteByTimestamp(ctx, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Empty(t, cmp.Diff(domain.Log{unrelated}, got))
}

func TestRoundTrip_PreservesNonNumericParams(t *testing.T) {
	backend := &memBackend{}
	store := New(backend, 0, nil)
	ctx := context.Background()

	e := entry(7, "weird")
	e.Params = domain.Params{Density: domain.NotANumber(), Repetition: domain.NotANumber(), Distortion: -0.25}
	_, err := store.Append(ctx, e)
	require.NoError(t, err)

	assert.Contains(t, string(backend.doc), `"density": null`)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.True(t, math.IsNaN(float64(loaded[0].Params.Density)))
	assert.Empty(t, cmp.Diff(domain.Log{e}, loaded))

	again, err := Encode(loaded)
	require.NoError(t, err)
	assert.Equal(t, string(backend.doc), string(again))
}

func TestBackendFailure(t *testing.T) {
	boom := errors.New("disk full")
	reg := prometheus.NewRegistry()
	m := metrics.NewStoreMetrics(reg)
	store := New(&memBackend{failWith: boom}, 0, m)

	_, err := store.Append(context.Background(), entry(1, "x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "append log (memory backend)")
	assert.InDelta(t, 1, testutil.ToFloat64(m.OperationFailures.WithLabelValues("memory", "append")), 0)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewStoreMetrics(reg)
	store := New(&memBackend{}, 0, m)
	ctx := context.Background()

	for i := range 3 {
		_, err := store.Append(ctx, entry(int64(i), "x"))
		require.NoError(t, err)
	}
	assert.InDelta(t, 3, testutil.ToFloat64(m.LogEntries), 0)

	_, _, err := store.DeleteByTimestamp(ctx, 1)
	require.NoError(t, err)
	assert.InDelta(t, 2, testutil.ToFloat64(m.LogEntries), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.EntriesRemoved), 0)

	_, err = store.Clear(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0, testutil.ToFloat64(m.LogEntries), 0)
}

func TestTimeoutAppliedToBackend(t *testing.T) {
	backend := &memBackend{}

	_, err := New(backend, time.Second, nil).Load(context.Background())
	require.NoError(t, err)
	assert.True(t, backend.deadline)

	_, err = New(backend, 0, nil).Load(context.Background())
	require.NoError(t, err)
	assert.False(t, backend.deadline)
}

func TestConcurrentAppendsAreSerialized(t *testing.T) {
	store := New(&memBackend{}, 0, nil)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Append(ctx, entry(int64(i), "x"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, n)
}

func mustEncode(t *testing.T, log domain.Log) []byte {
	t.Helper()
	data, err := Encode(log)
	require.NoError(t, err)
	return data
}
