package main

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Live notification feed. The server pushes match and friend-request events
// to connected clients; clients never send anything meaningful upstream.

// NotifyEvent is a server-sent notification
type NotifyEvent struct {
	Type string `json:"type"` // "match" | "friend_request" | "info" | "error"
	From int    `json:"from,omitempty"`
	Data any    `json:"data,omitempty"`
}

// notifyClient represents one WebSocket subscriber connection
type notifyClient struct {
	userID int
	conn   *websocket.Conn
	send   chan NotifyEvent
}

// Hub manages WebSocket client connections
type Hub struct {
	clientsByUser map[int]map[*notifyClient]bool
	mu            sync.RWMutex
}

func newHub() *Hub {
	return &Hub{
		clientsByUser: make(map[int]map[*notifyClient]bool),
	}
}

func (h *Hub) register(c *notifyClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clientsByUser[c.userID] == nil {
		h.clientsByUser[c.userID] = make(map[*notifyClient]bool)
	}
	h.clientsByUser[c.userID][c] = true
}

func (h *Hub) unregister(c *notifyClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if peers, ok := h.clientsByUser[c.userID]; ok {
		delete(peers, c)
		if len(peers) == 0 {
			delete(h.clientsByUser, c.userID)
		}
	}
}

func (h *Hub) sendToUser(userID int, evt NotifyEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if peers, ok := h.clientsByUser[userID]; ok {
		for c := range peers {
			select {
			case c.send <- evt:
			default:
				// Drop event if the client's buffer is full
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// For development: allow the Vite dev origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

// global hub
var notifyHub = newHub()

// GET /ws/notifications (upgrade)
func wsNotificationsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := getUserIDFromRequest(r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WS upgrade error for user %d: %v", userID, err)
			return
		}

		client := &notifyClient{
			userID: userID,
			conn:   conn,
			send:   make(chan NotifyEvent, 16),
		}
		notifyHub.register(client)

		// Announce connection to this client
		client.send <- NotifyEvent{Type: "info", Data: "connected"}

		// Start writer
		go notifyWriter(client)
		// Start reader (blocks)
		notifyReader(client)
	}
}

// notifyReader only services control frames; any payload from the client is
// ignored.
func notifyReader(c *notifyClient) {
	defer func() {
		notifyHub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func notifyWriter(c *notifyClient) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			// ping to keep the connection alive
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
