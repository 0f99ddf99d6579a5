package stream

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Update is one poll outcome pushed to subscribers.
type Update struct {
	// Poller is the configured name of the poller.
	Poller string `json:"poller"`

	// OK reports whether the logical invocation succeeded.
	OK bool `json:"ok"`

	// Error is the failure message, empty on success.
	Error string `json:"error,omitempty"`

	// Attempt is the failing attempt number, zero on success.
	Attempt int `json:"attempt,omitempty"`

	// StatusCode is the HTTP status code, when the operation produced one.
	StatusCode int `json:"status_code,omitempty"`

	// LatencyMs is the request latency in milliseconds.
	LatencyMs int64 `json:"latency_ms,omitempty"`

	// At is when the outcome was observed.
	At time.Time `json:"at"`
}

// sendBuffer bounds the per-client outbound queue. A full buffer drops
// updates for that client instead of blocking the publisher.
const sendBuffer = 64

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer func() { _ = c.conn.Close() }()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) close() {
	close(c.send)
}

// Broadcaster fans [Update] values out to connected websocket clients.
//
// Safe for concurrent use. Publish never blocks on a slow client.
type Broadcaster struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// NewBroadcaster creates an empty [Broadcaster].
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request to a websocket and subscribes it to all
// subsequent updates. The subscription lasts until the peer disconnects
// or the broadcaster is closed.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := newClient(conn)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		c.close()
		return
	}
	b.clients[c] = struct{}{}
	b.mu.Unlock()

	b.logger.Debug("subscriber connected", "remote", conn.RemoteAddr().String())

	// read loop exists only to detect peer disconnect
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	b.remove(c)
}

// Publish sends u to every connected client. Clients whose buffers are
// full miss this update.
func (b *Broadcaster) Publish(u Update) {
	data, err := json.Marshal(u)
	if err != nil {
		b.logger.Error("marshal update", "error", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			// slow consumer, drop
		}
	}
}

// ClientCount returns the number of connected subscribers.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close disconnects every subscriber and rejects future ones. Idempotent.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for c := range b.clients {
		c.close()
	}
	b.clients = make(map[*client]struct{})
}

func (b *Broadcaster) remove(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
}
