package server

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// client is one connected viewer. Frames are queued on send and written by
// a dedicated writePump goroutine so a slow reader never blocks the
// broadcast path.
type client struct {
	conn      *websocket.Conn
	hub       *Hub
	sessionID string
	send      chan []byte
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.hub.Remove(c)
			return
		}
	}
}

// Hub fans job event frames out to every connected client.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]bool
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*client]bool)}
}

func (h *Hub) Add(conn *websocket.Conn, sessionID string) *client {
	c := &client{
		conn:      conn,
		hub:       h,
		sessionID: sessionID,
		send:      make(chan []byte, 64),
	}
	go c.writePump()

	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	return c
}

func (h *Hub) Remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast queues data on every client. Sends happen under the read lock:
// close(send) only ever runs under the write lock after the client leaves
// the map, so a queued send cannot race a close. Clients whose buffers are
// full are disconnected rather than allowed to stall the rest.
func (h *Hub) Broadcast(data []byte) {
	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Printf("server: client %s too slow, disconnecting", c.sessionID)
		h.Remove(c)
	}
}

// Push queues data on a single client, applying the same slow-client rule
// as Broadcast.
func (h *Hub) Push(c *client, data []byte) {
	dropped := false
	h.mu.RLock()
	if h.clients[c] {
		select {
		case c.send <- data:
		default:
			dropped = true
		}
	}
	h.mu.RUnlock()

	if dropped {
		log.Printf("server: client %s too slow, disconnecting", c.sessionID)
		h.Remove(c)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client. Used during worker shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*client]bool)
	h.mu.Unlock()

	for c := range clients {
		close(c.send)
	}
}
