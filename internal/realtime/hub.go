// Package realtime tracks live client connections per user and pushes newly
// generated agent messages to all of them.
package realtime

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/virtualhq/agenthq/backend/internal/metrics"
	"github.com/virtualhq/agenthq/backend/internal/model/conversation"
	"github.com/virtualhq/agenthq/backend/pkg/logger"
)

// Event is the payload pushed to live connections.
type Event struct {
	Type           string               `json:"type"`
	ConversationID string               `json:"conversationId"`
	Message        conversation.Message `json:"message"`
}

// Conn is the transport a client connection must provide. gorilla/websocket's
// *websocket.Conn satisfies it.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// sendBuffer bounds per-connection queueing; a connection that falls this far
// behind is treated as dead and dropped rather than retried.
const sendBuffer = 32

// Client is one registered connection. A single writer goroutine drains send,
// which preserves event order as experienced by this connection.
type Client struct {
	hub    *Hub
	userID string
	conn   Conn
	send   chan Event
	quit   chan struct{}
	once   sync.Once
}

// Close detaches the client from the hub and closes the transport. Safe to
// call multiple times and from any goroutine. The send channel is never
// closed; a detached client's queue is simply abandoned to the collector.
func (c *Client) Close() {
	c.once.Do(func() {
		c.hub.detach(c)
		close(c.quit)
		_ = c.conn.Close()
	})
}

func (c *Client) writeLoop() {
	for {
		select {
		case evt := <-c.send:
			if err := c.conn.WriteJSON(evt); err != nil {
				c.hub.log.Debug().Err(err).Str("user", c.userID).Msg("dropping dead connection")
				c.Close()
				return
			}
			metrics.RealtimeDeliveriesTotal.Inc()
		case <-c.quit:
			return
		}
	}
}

// Hub is the per-user connection multimap.
type Hub struct {
	mu    sync.Mutex
	users map[string]map[*Client]struct{}
	log   zerolog.Logger
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		users: make(map[string]map[*Client]struct{}),
		log:   logger.Named("realtime"),
	}
}

// Register adds a connection for the user and starts its writer. The caller
// owns the returned Client and must Close it when the connection ends; Close
// also runs automatically when a write fails.
func (h *Hub) Register(userID string, conn Conn) *Client {
	c := &Client{
		hub:    h,
		userID: userID,
		conn:   conn,
		send:   make(chan Event, sendBuffer),
		quit:   make(chan struct{}),
	}

	h.mu.Lock()
	set, ok := h.users[userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.users[userID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	go c.writeLoop()
	return c
}

// Broadcast queues the event on every live connection for the user. Fire and
// forget: an empty set is a no-op and a full queue drops the connection.
func (h *Hub) Broadcast(userID string, evt Event) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.users[userID]))
	for c := range h.users[userID] {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		select {
		case c.send <- evt:
		default:
			h.log.Debug().Str("user", userID).Msg("dropping stalled connection")
			go c.Close()
		}
	}
}

// ConnectionCount reports live connections for the user. Intended for tests.
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.users[userID])
}

// detach removes the client; the last removal drops the user's entry entirely.
func (h *Hub) detach(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.users[c.userID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.users, c.userID)
	}
}
