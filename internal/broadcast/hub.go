// Package broadcast fans events out to connected observers. Delivery is
// best effort: a frame that does not fit in an observer's buffer is dropped
// and never replayed.
package broadcast

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/suar-net/suar-playground/internal/model"
	"go.uber.org/zap"
)

const clientBuffer = 256

// Client is one registered observer. Frames arrive on Send until the client
// is unregistered, at which point the channel is closed.
type Client struct {
	ID   string
	send chan []byte
	logs atomic.Bool
}

func (c *Client) Send() <-chan []byte {
	return c.send
}

// Subscribed reports whether the client receives request-log events.
func (c *Client) Subscribed() bool {
	return c.logs.Load()
}

type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	dropped atomic.Int64
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{clients: make(map[*Client]struct{}), logger: logger}
}

// Register adds an observer. New observers receive only registry-sync events
// until they subscribe to the request log.
func (h *Hub) Register() *Client {
	c := &Client{ID: uuid.NewString(), send: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("observer connected", zap.String("client_id", c.ID))
	return c
}

// Unregister removes c and closes its channel. It is safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.logger.Debug("observer disconnected", zap.String("client_id", c.ID))
}

// SubscribeLogs switches request-log delivery for c on or off.
func (h *Hub) SubscribeLogs(c *Client, on bool) {
	c.logs.Store(on)
}

// Publish encodes e once and offers it to every eligible observer without
// blocking.
func (h *Hub) Publish(e model.Event) {
	frame, err := json.Marshal(e)
	if err != nil {
		h.logger.Error("failed to encode event", zap.String("event", string(e.Type)), zap.Error(err))
		return
	}
	logEvent := e.IsLogEvent()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if logEvent && !c.logs.Load() {
			continue
		}
		select {
		case c.send <- frame:
		default:
			n := h.dropped.Add(1)
			h.logger.Warn("dropped event for slow observer",
				zap.String("client_id", c.ID), zap.String("event", string(e.Type)), zap.Int64("dropped_total", n))
		}
	}
}

// Len returns the number of connected observers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns the total number of frames dropped for slow observers.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Close disconnects every observer.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
	}
	h.clients = make(map[*Client]struct{})
}
