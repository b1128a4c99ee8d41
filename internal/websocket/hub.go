package websocket

import (
	"context"
	"sync"
)

// Hub maintains the set of live recognition sessions so they can be counted
// and closed together on shutdown. Hijacked connections are not closed by
// http.Server.Shutdown.
type Hub struct {
	clients  map[*Client]bool
	closed   bool
	onChange func(delta int)

	mu sync.RWMutex
}

// NewHub creates a new Hub instance. onChange, if set, is called with +1 and
// -1 as sessions start and end.
func NewHub(onChange func(delta int)) *Hub {
	if onChange == nil {
		onChange = func(int) {}
	}
	return &Hub{
		clients:  make(map[*Client]bool),
		onChange: onChange,
	}
}

// Run blocks until ctx is done, then tells every session to close.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.CloseAll()
}

// Register adds a client. It reports false once the hub has been closed.
func (h *Hub) Register(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[client] = true
	h.onChange(1)
	return true
}

// Unregister removes a client and closes its send channel
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
}

// CloseAll closes every session and refuses new ones
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for client := range h.clients {
		h.removeLocked(client)
	}
}

func (h *Hub) removeLocked(client *Client) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		h.onChange(-1)
	}
}

// deliver queues msg for client unless the session already ended. It reports
// whether the session is still live.
func (h *Hub) deliver(client *Client, msg *Message) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[client] {
		return false
	}
	select {
	case client.send <- msg:
	default:
		// Slow reader; drop the reply rather than block reading
	}
	return true
}

// TotalClients returns the number of connected clients.
func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
