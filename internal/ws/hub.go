package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/farmlink/api/internal/events"
)

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// userEvent routes an event to a single user's room
type userEvent struct {
	UserID int64
	Event  Event
}

// Hub maintains the set of connected farmers and pushes order events to them
type Hub struct {
	// Registered clients by user ID
	rooms map[int64]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	broadcast chan *userEvent

	// done is closed when Run returns.
	done chan struct{}

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[int64]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *userEvent, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop and returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for userID, clients := range h.rooms {
				for client := range clients {
					close(client.send)
				}
				delete(h.rooms, userID)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.userID] == nil {
				h.rooms[client.userID] = make(map[*Client]bool)
			}
			h.rooms[client.userID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.userID]; ok {
				if _, exists := clients[client]; exists {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.rooms, client.userID)
					}
				}
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.Lock()
			clients := h.rooms[event.UserID]

			message, err := json.Marshal(event.Event)
			if err != nil {
				h.mu.Unlock()
				continue
			}

			for client := range clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer: drop it
					close(client.send)
					delete(h.rooms[event.UserID], client)
					if len(h.rooms[event.UserID]) == 0 {
						delete(h.rooms, event.UserID)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastToUser sends an event to every connection of one user
func (h *Hub) BroadcastToUser(userID int64, event Event) {
	h.broadcast <- &userEvent{
		UserID: userID,
		Event:  event,
	}
}

// Publish forwards an order event to the rooms of every farmer it concerns.
func (h *Hub) Publish(ctx context.Context, e events.OrderEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	for _, farmerID := range e.FarmerIDs {
		select {
		case h.broadcast <- &userEvent{UserID: farmerID, Event: Event{Type: e.Type, Payload: payload}}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
