package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// TransitionEvent is pushed to the page driving a join session each time
// its flow changes state.
type TransitionEvent struct {
	SessionID uuid.UUID `json:"session_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Outcome   string    `json:"outcome,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	At        time.Time `json:"at"`
}

type Client struct {
	ID        string
	SessionID uuid.UUID
	Send      chan []byte
}

type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *SessionMessage
	done       chan struct{}
	mu         sync.RWMutex
}

type SessionMessage struct {
	SessionID uuid.UUID
	Event     Event
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *SessionMessage, 256),
		done:       make(chan struct{}),
	}
}

// Run dispatches registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for id, client := range h.clients {
				delete(h.clients, id)
				close(client.Send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.Send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			data, _ := json.Marshal(msg.Event)
			for _, client := range h.clients {
				if client.SessionID == msg.SessionID {
					select {
					case client.Send <- data:
					default:
						// Client buffer full, skip
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds client. After the hub stopped, client.Send is closed
// instead.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount returns the number of listeners on sessionID.
func (h *Hub) ClientCount(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, client := range h.clients {
		if client.SessionID == sessionID {
			n++
		}
	}
	return n
}

// BroadcastTransition queues ev for every listener of its session. It never
// blocks the flow; when the queue is full the event is dropped and listeners
// catch up through the state endpoint.
func (h *Hub) BroadcastTransition(ev TransitionEvent) {
	msg := &SessionMessage{
		SessionID: ev.SessionID,
		Event:     Event{Type: "transition", Data: ev},
	}
	select {
	case h.broadcast <- msg:
	default:
	}
}
