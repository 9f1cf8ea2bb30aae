package websocket

import (
	"encoding/json"
	"log"

	"socialchat/internal/chatwire"
)

// Hub maintains the set of active clients and routes frames to them.
// One connection per user ID; a newer connection replaces the old one.
type Hub struct {
	clients map[uint]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Frames aimed at a specific user.
	deliver chan *chatwire.Delivery
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uint]*Client),
		deliver:    make(chan *chatwire.Delivery, 256),
	}
}

// Deliver hands a frame to the hub for routing. Non-blocking so callers
// (the Kafka consumer, socket readers) never stall on a busy hub.
func (h *Hub) Deliver(d *chatwire.Delivery) {
	select {
	case h.deliver <- d:
	default:
		log.Printf("warning: hub deliver channel full, dropping frame for user %d", d.TargetUserID)
	}
}

// Run starts the hub loop. All map access happens here, on one goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			if existing, ok := h.clients[client.UserID]; ok {
				// A newer connection for this user wins.
				log.Printf("user %d reconnected, replacing previous connection", client.UserID)
				close(existing.send)
			}
			h.clients[client.UserID] = client
			log.Printf("client registered: user %d", client.UserID)

		case client := <-h.unregister:
			// Only drop the client if it is still the registered one; a
			// replaced connection must not tear down its successor.
			if stored, ok := h.clients[client.UserID]; ok && stored == client {
				delete(h.clients, client.UserID)
				close(client.send)
				log.Printf("client unregistered: user %d", client.UserID)
			}

		case d := <-h.deliver:
			client, ok := h.clients[d.TargetUserID]
			if !ok {
				// User not connected to this hub instance.
				continue
			}
			payload, err := json.Marshal(d.Frame)
			if err != nil {
				log.Printf("serializing frame for user %d: %v", d.TargetUserID, err)
				continue
			}
			select {
			case client.send <- payload:
			default:
				// Send buffer full: assume the client is gone.
				log.Printf("warning: send buffer full for user %d, dropping client", d.TargetUserID)
				close(client.send)
				delete(h.clients, d.TargetUserID)
			}
		}
	}
}
