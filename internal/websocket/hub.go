package websocket

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Event is the envelope pushed to connected clients.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

const (
	// EventSessionRevoked tells the client its session was invalidated
	// server side and it should drop local auth state.
	EventSessionRevoked = "session_revoked"
)

// Hub tracks open connections per user and fans events out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run processes register/unregister requests. Call in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			conns, ok := h.clients[client.userID]
			if !ok {
				conns = make(map[*Client]struct{})
				h.clients[client.userID] = conns
			}
			conns[client] = struct{}{}
			h.mu.Unlock()
			log.Printf("[WebSocket] Client connected: user=%s", client.userID)

		case client := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.clients[client.userID]; ok {
				if _, ok := conns[client]; ok {
					delete(conns, client)
					client.closeSend()
					if len(conns) == 0 {
						delete(h.clients, client.userID)
					}
				}
			}
			h.mu.Unlock()
			log.Printf("[WebSocket] Client disconnected: user=%s", client.userID)
		}
	}
}

// SendToUser delivers an event to every open connection of the user.
// Connections with a full send buffer are skipped, slow consumers must
// not block the caller.
func (h *Hub) SendToUser(userID uuid.UUID, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[WebSocket] Failed to marshal event %q: %v", event.Type, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[userID] {
		select {
		case client.send <- data:
		default:
			log.Printf("[WebSocket] Send buffer full, dropping event for user=%s", userID)
		}
	}
}

// NotifySessionRevoked implements service.SessionNotifier. Connected
// clients of the user are told to discard their session.
func (h *Hub) NotifySessionRevoked(userID uuid.UUID) {
	h.SendToUser(userID, Event{Type: EventSessionRevoked})
}

// ConnectionCount reports the number of open connections for the user.
func (h *Hub) ConnectionCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}
