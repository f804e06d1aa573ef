package web

import (
	"context"

	"github.com/karmicapp/karmic/pkg/logger"
)

// broadcast carries a committed chat message to every subscriber of its
// request's room.
type broadcast struct {
	requestID string
	payload   []byte
}

// Hub fans chat messages out to websocket subscribers. Each request has its
// own room; clients join the room of the thread they opened. All state is
// owned by the Run loop, so the maps need no locking.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcasts chan broadcast

	rooms map[string]map[*Client]bool
	log   *logger.Logger
}

// NewHub creates a hub with no rooms. Call Run before registering clients.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewDefault("karmic")
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcasts: make(chan broadcast, 64),
		rooms:      make(map[string]map[*Client]bool),
		log:        log.WithComponent("hub"),
	}
}

// Run owns the room state until the context is cancelled. It must run in its
// own goroutine for the lifetime of the server.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			room, ok := h.rooms[client.requestID]
			if !ok {
				room = make(map[*Client]bool)
				h.rooms[client.requestID] = room
			}
			room[client] = true
			h.log.WithField("request_id", client.requestID).
				WithField("user_id", client.userID).
				Debug("client subscribed")

		case client := <-h.unregister:
			h.drop(client)

		case msg := <-h.broadcasts:
			for client := range h.rooms[msg.requestID] {
				select {
				case client.send <- msg.payload:
				default:
					// The client stopped draining its queue; cut it loose.
					h.drop(client)
				}
			}

		case <-ctx.Done():
			for _, room := range h.rooms {
				for client := range room {
					close(client.send)
				}
			}
			h.rooms = make(map[string]map[*Client]bool)
			return
		}
	}
}

// Broadcast queues a payload for every subscriber of the request's room. It
// never blocks the caller; under sustained backpressure messages are dropped
// rather than stalling the HTTP handler that posted them.
func (h *Hub) Broadcast(requestID string, payload []byte) {
	select {
	case h.broadcasts <- broadcast{requestID: requestID, payload: payload}:
	default:
		h.log.WithField("request_id", requestID).Warn("broadcast queue full, dropping message")
	}
}

func (h *Hub) drop(client *Client) {
	room, ok := h.rooms[client.requestID]
	if !ok {
		return
	}
	if _, ok := room[client]; !ok {
		return
	}
	delete(room, client)
	close(client.send)
	if len(room) == 0 {
		delete(h.rooms, client.requestID)
	}
}
