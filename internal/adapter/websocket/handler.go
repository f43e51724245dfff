// Package websocket implements the /ws transport: it upgrades the request,
// joins the connection to the board and feeds inbound frames to the
// coordinator until the client goes away.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pscheid92/databoard/internal/adapter/metrics"
	"github.com/pscheid92/databoard/internal/app"
	"github.com/pscheid92/databoard/internal/domain"
	"github.com/pscheid92/databoard/internal/platform/correlation"
)

const (
	maxMessageSize = 64 * 1024
	rejectTimeout  = 5 * time.Second
)

type coordinator interface {
	Join(ctx context.Context, connID string, attach app.AttachFunc) error
	Handle(ctx context.Context, connID string, raw []byte) error
}

type connectionHub interface {
	Register(connID string, conn *websocket.Conn, greeting domain.Message) error
	Unregister(connID string)
}

// Handler serves websocket connections.
type Handler struct {
	upgrader    websocket.Upgrader
	coordinator coordinator
	hub         connectionHub
	metrics     *metrics.WebSocketMetrics
}

// NewHandler creates the transport handler. m may be nil.
func NewHandler(coord coordinator, hub connectionHub, checkOrigin func(*http.Request) bool, m *metrics.WebSocketMetrics) *Handler {
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		coordinator: coord,
		hub:         hub,
		metrics:     m,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		slog.WarnContext(r.Context(), "WebSocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		h.recordRejected("upgrade")
		return
	}

	connID := uuid.NewString()
	base := context.WithoutCancel(r.Context())

	joinCtx := correlation.WithID(base, correlation.NewID())
	err = h.coordinator.Join(joinCtx, connID, func(greeting domain.Message) error {
		return h.hub.Register(connID, conn, greeting)
	})
	if err != nil {
		slog.WarnContext(joinCtx, "Connection refused", "conn_id", connID, "error", err)
		if !errors.Is(err, domain.ErrHubFull) {
			h.recordRejected("join")
		}
		reject(conn, err)
		return
	}
	defer h.hub.Unregister(connID)

	slog.InfoContext(joinCtx, "Client connected", "conn_id", connID, "remote_addr", r.RemoteAddr)
	h.readLoop(base, conn, connID)
}

// readLoop hands every inbound frame to the coordinator until the connection
// fails or is closed. The hub owns all writes to conn.
func (h *Handler) readLoop(base context.Context, conn *websocket.Conn, connID string) {
	conn.SetReadLimit(maxMessageSize)

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				slog.InfoContext(base, "Client connection lost", "conn_id", connID, "error", err)
			} else {
				slog.DebugContext(base, "Client disconnected", "conn_id", connID)
			}
			return
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}

		ctx := correlation.WithID(base, correlation.NewID())
		h.recordReceived(data)
		// Failures are reported to the client by the coordinator.
		_ = h.coordinator.Handle(ctx, connID, data)
	}
}

// reject tells a connection that could not join why, then closes it.
func reject(conn *websocket.Conn, err error) {
	defer func() { _ = conn.Close() }()

	deadline := time.Now().Add(rejectTimeout)
	_ = conn.SetWriteDeadline(deadline)

	payload, encErr := json.Marshal(domain.OperationFailedMessage(app.Failure("", err)))
	if encErr == nil {
		_ = conn.WriteMessage(websocket.TextMessage, payload)
	}

	code, reason := websocket.CloseInternalServerErr, "could not load history"
	if errors.Is(err, domain.ErrHubFull) {
		code, reason = websocket.CloseTryAgainLater, "connection limit reached"
	}
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}

func (h *Handler) recordRejected(reason string) {
	if h.metrics != nil {
		h.metrics.ConnectionsRejected.WithLabelValues(reason).Inc()
	}
}

// recordReceived counts a frame by event name; names outside the protocol
// share one label.
func (h *Handler) recordReceived(data []byte) {
	if h.metrics == nil {
		return
	}
	var envelope struct {
		Event string `json:"event"`
	}
	event := "unknown"
	if json.Unmarshal(data, &envelope) == nil {
		switch envelope.Event {
		case domain.EventSubmitThreshold, domain.EventClearAllData, domain.EventDeleteEntry:
			event = envelope.Event
		}
	}
	h.metrics.MessagesReceived.WithLabelValues(event).Inc()
}
