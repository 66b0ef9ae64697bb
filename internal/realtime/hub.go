// Package realtime delivers domain events to connected clients over
// WebSocket. Delivery is best effort: a slow or dead client is dropped, never
// waited on, and a failed broadcast is invisible to the publisher.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"kassa/internal/events"
	"kassa/pkg/logger"
)

// Hub routes events to subscribers. Each company has its own channel; the
// cross-company observer channel additionally receives every completed sale.
type Hub struct {
	mu        sync.RWMutex
	companies map[string]map[*Client]struct{}
	observers map[*Client]struct{}
	closed    bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		companies: make(map[string]map[*Client]struct{}),
		observers: make(map[*Client]struct{}),
	}
}

// Register subscribes a client. Observer clients join the cross-company
// channel instead of a company channel.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		c.close()
		return
	}

	if c.observer {
		h.observers[c] = struct{}{}
		return
	}

	room, ok := h.companies[c.companyID]
	if !ok {
		room = make(map[*Client]struct{})
		h.companies[c.companyID] = room
	}
	room[c] = struct{}{}
}

// Unregister removes a client and signals it to shut down.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(c)
}

// remove must be called with h.mu held.
func (h *Hub) remove(c *Client) {
	if c.observer {
		if _, ok := h.observers[c]; ok {
			delete(h.observers, c)
			c.close()
		}
		return
	}

	room, ok := h.companies[c.companyID]
	if !ok {
		return
	}
	if _, ok := room[c]; ok {
		delete(room, c)
		c.close()
	}
	if len(room) == 0 {
		delete(h.companies, c.companyID)
	}
}

// Publish implements events.Publisher. The event goes to the owning company's
// channel; completed sales also reach the observer channel.
func (h *Hub) Publish(ctx context.Context, ev events.Event) error {
	frame, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}

	var dropped []*Client
	for c := range h.companies[ev.CompanyID.String()] {
		if !c.trySend(frame) {
			dropped = append(dropped, c)
		}
	}
	if ev.Kind == events.KindSaleCompleted {
		for c := range h.observers {
			if !c.trySend(frame) {
				dropped = append(dropped, c)
			}
		}
	}

	// A full send queue means the client stopped reading. Drop it rather
	// than stall every other subscriber.
	for _, c := range dropped {
		h.remove(c)
		logger.Warn(ctx, "dropping slow websocket client",
			"user_id", c.userID,
			"company_id", c.companyID,
		)
	}

	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := len(h.observers)
	for _, room := range h.companies {
		n += len(room)
	}
	return n
}

// Shutdown disconnects every client and rejects further registrations.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for _, room := range h.companies {
		for c := range room {
			c.close()
		}
	}
	for c := range h.observers {
		c.close()
	}
	h.companies = make(map[string]map[*Client]struct{})
	h.observers = make(map[*Client]struct{})
}
