package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/databoard/internal/adapter/filestore"
	"github.com/pscheid92/databoard/internal/adapter/metrics"
	"github.com/pscheid92/databoard/internal/app"
	"github.com/pscheid92/databoard/internal/broadcast"
	"github.com/pscheid92/databoard/internal/domain"
	"github.com/pscheid92/databoard/internal/logstore"
)

type testBoard struct {
	url     string
	path    string
	metrics *metrics.WebSocketMetrics
}

func newTestBoard(t *testing.T, maxClients int) *testBoard {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.json")
	return startBoard(t, path, maxClients)
}

func startBoard(t *testing.T, path string, maxClients int) *testBoard {
	t.Helper()
	clock := clockwork.NewRealClock()
	m := metrics.NewWebSocketMetrics(prometheus.NewRegistry())

	store := logstore.New(filestore.New(path), time.Second, nil)
	hub := broadcast.NewHub(clock, maxClients, m)
	t.Cleanup(hub.Stop)
	svc := app.NewService(store, hub, clock)

	handler := NewHandler(svc, hub, NewCheckOrigin("http://board.example.com", false), m)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testBoard{url: "ws" + strings.TrimPrefix(srv.URL, "http"), path: path, metrics: m}
}

func (b *testBoard) dial(t *testing.T) *ws.Conn {
	t.Helper()
	conn, _, err := ws.DefaultDialer.Dial(b.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// join dials and consumes the load_history greeting.
func (b *testBoard) join(t *testing.T) (*ws.Conn, domain.Log) {
	t.Helper()
	conn := b.dial(t)
	msg := readFrame(t, conn)
	require.Equal(t, domain.EventLoadHistory, msg.Event)

	var log domain.Log
	require.NoError(t, json.Unmarshal(msg.Data, &log))
	return conn, log
}

func readFrame(t *testing.T, conn *ws.Conn) domain.InboundMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg domain.InboundMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func send(t *testing.T, conn *ws.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte(frame)))
}

func TestHandler_JoinReceivesEmptyHistory(t *testing.T) {
	board := newTestBoard(t, 10)

	_, log := board.join(t)

	assert.Empty(t, log)
}

func TestHandler_SubmitIsBroadcastToEveryone(t *testing.T) {
	board := newTestBoard(t, 10)
	alice, _ := board.join(t)
	bob, _ := board.join(t)

	send(t, alice, `{"event":"submit_threshold","data":{"word":"zzzz","density":"0.5","repetition":2,"distortion":"x"}}`)

	for _, conn := range []*ws.Conn{alice, bob} {
		msg := readFrame(t, conn)
		require.Equal(t, domain.EventNewDataPoint, msg.Event)

		var entry domain.Entry
		require.NoError(t, json.Unmarshal(msg.Data, &entry))
		assert.Equal(t, "zzzz", entry.Word)
		assert.Equal(t, domain.CategoryRepetitive, entry.Analysis.Category)
		assert.Equal(t, domain.Number(0.5), entry.Params.Density)
		assert.False(t, entry.Params.Distortion.Valid())
	}

	assert.Equal(t, float64(1), testutil.ToFloat64(board.metrics.MessagesReceived.WithLabelValues(domain.EventSubmitThreshold)))
}

func TestHandler_LateJoinerSeesHistory(t *testing.T) {
	board := newTestBoard(t, 10)
	alice, _ := board.join(t)

	send(t, alice, `{"event":"submit_threshold","data":{"word":"ok"}}`)
	readFrame(t, alice)

	_, log := board.join(t)
	require.Len(t, log, 1)
	assert.Equal(t, "ok", log[0].Word)
	assert.Equal(t, domain.CategoryNeutral, log[0].Analysis.Category)
}

func TestHandler_DeleteAndClear(t *testing.T) {
	board := newTestBoard(t, 10)
	alice, _ := board.join(t)

	send(t, alice, `{"event":"submit_threshold","data":{"word":"a"}}`)
	msg := readFrame(t, alice)
	var entry domain.Entry
	require.NoError(t, json.Unmarshal(msg.Data, &entry))

	send(t, alice, `{"event":"delete_entry","data":`+jsonInt(entry.Timestamp)+`}`)
	msg = readFrame(t, alice)
	assert.Equal(t, domain.EventEntryDeleted, msg.Event)
	assert.JSONEq(t, jsonInt(entry.Timestamp), string(msg.Data))

	send(t, alice, `{"event":"clear_all_data"}`)
	msg = readFrame(t, alice)
	assert.Equal(t, domain.EventDataCleared, msg.Event)
	assert.Empty(t, msg.Data)
}

func TestHandler_FailureGoesToSenderOnly(t *testing.T) {
	board := newTestBoard(t, 10)
	alice, _ := board.join(t)
	bob, _ := board.join(t)

	send(t, alice, `{"event":"delete_entry","data":"1000"}`)

	msg := readFrame(t, alice)
	require.Equal(t, domain.EventOperationFailed, msg.Event)
	var failure domain.OperationFailure
	require.NoError(t, json.Unmarshal(msg.Data, &failure))
	assert.Equal(t, domain.EventDeleteEntry, failure.Event)
	assert.Equal(t, "validation", failure.Type)

	// bob's next frame is the following broadcast, not the failure.
	send(t, alice, `{"event":"clear_all_data"}`)
	assert.Equal(t, domain.EventDataCleared, readFrame(t, bob).Event)
}

func TestHandler_RejectsWhenFull(t *testing.T) {
	board := newTestBoard(t, 1)
	board.join(t)

	conn := board.dial(t)
	msg := readFrame(t, conn)
	require.Equal(t, domain.EventOperationFailed, msg.Event)
	var failure domain.OperationFailure
	require.NoError(t, json.Unmarshal(msg.Data, &failure))
	assert.Equal(t, "external", failure.Type)

	_, _, err := conn.ReadMessage()
	var closeErr *ws.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, ws.CloseTryAgainLater, closeErr.Code)
}

func TestHandler_RejectsWhenLogIsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	board := startBoard(t, path, 10)

	conn := board.dial(t)
	msg := readFrame(t, conn)
	require.Equal(t, domain.EventOperationFailed, msg.Event)
	var failure domain.OperationFailure
	require.NoError(t, json.Unmarshal(msg.Data, &failure))
	assert.Equal(t, "internal", failure.Type)

	_, _, err := conn.ReadMessage()
	var closeErr *ws.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, ws.CloseInternalServerErr, closeErr.Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(board.metrics.ConnectionsRejected.WithLabelValues("join")))
}

func TestHandler_RejectsForeignOrigin(t *testing.T) {
	board := newTestBoard(t, 10)

	header := http.Header{}
	header.Set("Origin", "https://evil.example.com")
	_, resp, err := ws.DefaultDialer.Dial(board.url, header)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(board.metrics.ConnectionsRejected.WithLabelValues("upgrade")) == 1
	}, time.Second, 10*time.Millisecond)
}

func jsonInt(v int64) string {
	data, _ := json.Marshal(v)
	return string(data)
}
