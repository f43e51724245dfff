package broadcast

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/databoard/internal/adapter/metrics"
	"github.com/pscheid92/databoard/internal/domain"
)

const (
	commandTimeout  = 5 * time.Second
	stopTimeout     = 10 * time.Second
	commandCapacity = 256
)

// hubCmd is the command interface for the Hub actor.
type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type registerCmd struct {
	baseHubCmd
	connID     string
	connection *websocket.Conn
	greeting   frame
	errCh      chan error
}

type unregisterCmd struct {
	baseHubCmd
	connID string
	// connection, when set, limits removal to that exact connection.
	connection *websocket.Conn
}

type broadcastCmd struct {
	baseHubCmd
	frame frame
}

type sendCmd struct {
	baseHubCmd
	connID string
	frame  frame
}

type countCmd struct {
	baseHubCmd
	replyCh chan int
}

type stopCmd struct {
	baseHubCmd
}

// frame is an encoded outbound message plus its event name for metrics.
type frame struct {
	event string
	data  []byte
}

// Hub fans frames out to registered websocket connections.
type Hub struct {
	cmdCh       chan hubCmd
	clock       clockwork.Clock
	clients     map[string]*clientWriter
	maxClients  int
	metrics     *metrics.WebSocketMetrics
	done        chan struct{}
	stopOnce    sync.Once
	stopTimeout time.Duration
}

var _ domain.Hub = (*Hub)(nil)

// NewHub starts the hub goroutine. maxClients bounds concurrent connections.
func NewHub(clock clockwork.Clock, maxClients int, m *metrics.WebSocketMetrics) *Hub {
	h := &Hub{
		cmdCh:       make(chan hubCmd, commandCapacity),
		clock:       clock,
		clients:     make(map[string]*clientWriter),
		maxClients:  maxClients,
		metrics:     m,
		done:        make(chan struct{}),
		stopTimeout: stopTimeout,
	}
	go h.run()
	return h
}

func encode(msg domain.Message) (frame, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return frame{}, fmt.Errorf("encode %s frame: %w", msg.Event, err)
	}
	return frame{event: msg.Event, data: data}, nil
}

// enqueue hands cmd to the actor, reporting false once the hub has stopped.
func (h *Hub) enqueue(cmd hubCmd) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.cmdCh <- cmd:
		return true
	case <-h.done:
		return false
	}
}

// Register adds a connection and queues greeting as its first frame. Frames
// broadcast after Register returns are delivered after the greeting. On
// error the connection is not registered and is left open for the caller.
func (h *Hub) Register(connID string, conn *websocket.Conn, greeting domain.Message) error {
	f, err := encode(greeting)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	if !h.enqueue(registerCmd{connID: connID, connection: conn, greeting: f, errCh: errCh}) {
		return domain.ErrHubStopped
	}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-h.done:
		return domain.ErrHubStopped
	case <-timer.Chan():
		// The actor may still register the connection after we give up.
		h.enqueue(unregisterCmd{connID: connID, connection: conn})
		return fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Unregister stops the connection's writer and closes it. Unknown IDs are ignored.
func (h *Hub) Unregister(connID string) {
	h.enqueue(unregisterCmd{connID: connID})
}

// Broadcast queues msg for every registered connection.
func (h *Hub) Broadcast(msg domain.Message) {
	f, err := encode(msg)
	if err != nil {
		slog.Error("Dropping broadcast", "event", msg.Event, "error", err)
		return
	}
	h.enqueue(broadcastCmd{frame: f})
}

// Send queues msg for one connection only.
func (h *Hub) Send(connID string, msg domain.Message) {
	f, err := encode(msg)
	if err != nil {
		slog.Error("Dropping unicast", "event", msg.Event, "conn_id", connID, "error", err)
		return
	}
	h.enqueue(sendCmd{connID: connID, frame: f})
}

// ClientCount returns the number of registered connections, or -1 if the
// hub did not answer in time.
func (h *Hub) ClientCount() int {
	replyCh := make(chan int, 1)
	if !h.enqueue(countCmd{replyCh: replyCh}) {
		return 0
	}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-timer.Chan():
		slog.Warn("ClientCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Stop sends a close frame to every connection and shuts the hub down. It
// blocks until the actor has exited or the stop timeout elapses. Safe to call
// more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		select {
		case h.cmdCh <- stopCmd{}:
		case <-h.done:
			return
		}

		timeout := h.clock.NewTimer(h.stopTimeout)
		defer timeout.Stop()

		select {
		case <-h.done:
			slog.Info("Hub stopped gracefully")
		case <-timeout.Chan():
			slog.Error("Hub stop timeout exceeded", "timeout", h.stopTimeout)
		}
	})
}

func (h *Hub) run() {
	defer close(h.done)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Hub panic recovered", "panic", r)
			h.closeAllClients("internal error")
		}
	}()

	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case registerCmd:
			h.handleRegister(c)
		case unregisterCmd:
			h.handleUnregister(c)
		case broadcastCmd:
			h.handleBroadcast(c.frame)
		case sendCmd:
			h.handleSend(c)
		case countCmd:
			c.replyCh <- len(h.clients)
		case stopCmd:
			slog.Info("Hub shutting down", "clients", len(h.clients))
			h.closeAllClients("server shutting down")
			return
		default:
			slog.Warn("Hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (h *Hub) handleRegister(c registerCmd) {
	if _, exists := h.clients[c.connID]; exists {
		c.errCh <- fmt.Errorf("connection %s already registered", c.connID)
		return
	}
	if len(h.clients) >= h.maxClients {
		slog.Warn("Rejecting client: max connections reached", "conn_id", c.connID, "max_clients", h.maxClients)
		h.metrics.ConnectionsRejected.WithLabelValues("capacity").Inc()
		c.errCh <- fmt.Errorf("%w (%d)", domain.ErrHubFull, h.maxClients)
		return
	}

	cw := newClientWriter(c.connection, h.clock)
	cw.sendChannel <- c.greeting.data
	h.clients[c.connID] = cw

	h.metrics.ActiveConnections.Set(float64(len(h.clients)))
	h.metrics.MessagesSent.WithLabelValues(c.greeting.event).Inc()

	slog.Debug("Client registered", "conn_id", c.connID, "total_clients", len(h.clients))
	c.errCh <- nil
}

func (h *Hub) handleUnregister(c unregisterCmd) {
	if c.connection != nil {
		if cw, ok := h.clients[c.connID]; !ok || cw.connection != c.connection {
			return
		}
	}
	h.removeClient(c.connID)
}

func (h *Hub) handleBroadcast(f frame) {
	var slow []string
	for connID, cw := range h.clients {
		if cw.enqueue(f.data) {
			h.metrics.MessagesSent.WithLabelValues(f.event).Inc()
		} else {
			slow = append(slow, connID)
		}
	}
	for _, connID := range slow {
		h.evict(connID)
	}
}

func (h *Hub) handleSend(c sendCmd) {
	cw, ok := h.clients[c.connID]
	if !ok {
		slog.Debug("Dropping unicast for unknown connection", "conn_id", c.connID, "event", c.frame.event)
		return
	}
	if cw.enqueue(c.frame.data) {
		h.metrics.MessagesSent.WithLabelValues(c.frame.event).Inc()
		return
	}
	h.evict(c.connID)
}

func (h *Hub) evict(connID string) {
	slog.Warn("Disconnecting slow client", "conn_id", connID)
	h.metrics.SlowClientsEvicted.Inc()
	h.removeClient(connID)
}

func (h *Hub) removeClient(connID string) {
	cw, ok := h.clients[connID]
	if !ok {
		return
	}
	cw.stop()
	delete(h.clients, connID)
	h.metrics.ActiveConnections.Set(float64(len(h.clients)))
	slog.Debug("Client unregistered", "conn_id", connID, "remaining_clients", len(h.clients))
}

// closeAllClients closes every connection with a close frame carrying reason.
func (h *Hub) closeAllClients(reason string) {
	for connID, cw := range h.clients {
		cw.stopGraceful(reason)
		delete(h.clients, connID)
	}
	h.metrics.ActiveConnections.Set(0)
}
