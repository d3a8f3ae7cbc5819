package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/dmitryelj/RPi-P2000Receiver/internal/metrics"
	"github.com/dmitryelj/RPi-P2000Receiver/internal/models"
)

const (
	writeTimeout = 10 * time.Second
	readTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second

	// sendQueueSize is how many records a client may lag behind before it
	// is dropped.
	sendQueueSize = 64
)

type client struct {
	id          string
	conn        *websocket.Conn
	connectedAt time.Time
	send        chan []byte
	done        chan struct{}
	writeMu     sync.Mutex
	closeOnce   sync.Once
	closed      atomic.Bool
}

func (c *client) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(messageType, data)
}

// Hub is a WebSocket fan-out of delivered records. Each record is sent as
// one JSON text message to every connected client. Deliver only queues:
// every client has its own writer goroutine, and a client whose queue is
// full or whose write fails is dropped.
type Hub struct {
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	mu      sync.RWMutex
	clients map[*websocket.Conn]*client
	wg      sync.WaitGroup
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The feed is public, same as /api/messages.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  logger.With().Str("component", "websocket").Logger(),
		clients: make(map[*websocket.Conn]*client),
	}
}

// Name implements Sink.
func (h *Hub) Name() string { return "websocket" }

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		id:          uuid.Must(uuid.NewV7()).String(),
		conn:        conn,
		connectedAt: time.Now(),
		send:        make(chan []byte, sendQueueSize),
		done:        make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[conn] = c
	count := len(h.clients)
	h.mu.Unlock()

	metrics.WebSocketClients.Set(float64(count))
	h.logger.Info().Str("client", c.id).Str("remote", r.RemoteAddr).Msg("client connected")

	h.wg.Add(2)
	go h.readLoop(c)
	go h.writeLoop(c)
}

// writeLoop drains the client's queue until the client is removed.
func (h *Hub) writeLoop(c *client) {
	defer h.wg.Done()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			if err := c.write(websocket.TextMessage, data); err != nil {
				h.logger.Debug().Err(err).Str("client", c.id).Msg("write failed, dropping client")
				h.removeClient(c)
				return
			}
		}
	}
}

// readLoop discards client input and detects disconnects.
func (h *Hub) readLoop(c *client) {
	defer h.wg.Done()
	defer h.removeClient(c)

	_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	}
}

func (h *Hub) removeClient(c *client) {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)

		h.mu.Lock()
		delete(h.clients, c.conn)
		count := len(h.clients)
		h.mu.Unlock()

		metrics.WebSocketClients.Set(float64(count))
		h.logger.Info().
			Str("client", c.id).
			Dur("connected", time.Since(c.connectedAt)).
			Msg("client disconnected")

		_ = c.conn.Close()
	})
}

func (h *Hub) snapshot() []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	list := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		if !c.closed.Load() {
			list = append(list, c)
		}
	}
	return list
}

// Deliver implements Sink. It never blocks on a client. Having no clients
// is not an error: the record is considered broadcast.
func (h *Hub) Deliver(ctx context.Context, rec models.MessageRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	for _, c := range h.snapshot() {
		select {
		case c.send <- data:
		default:
			h.logger.Warn().Str("client", c.id).Msg("send queue full, dropping client")
			h.removeClient(c)
		}
	}
	return nil
}

// Run pings clients until ctx is cancelled, then disconnects them all.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.Close()
			return
		case <-ticker.C:
			for _, c := range h.snapshot() {
				c.writeMu.Lock()
				err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
				c.writeMu.Unlock()
				if err != nil {
					h.removeClient(c)
				}
			}
		}
	}
}

// Close disconnects every client and waits for their read loops.
func (h *Hub) Close() {
	for _, c := range h.snapshot() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		h.removeClient(c)
	}
	h.wg.Wait()
}
