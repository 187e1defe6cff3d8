package websocket

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Handler receives connection lifecycle events and inbound commands.
type Handler interface {
	Connected(ctx context.Context, c *Client)
	Disconnected(ctx context.Context, c *Client)
	HandleMessage(ctx context.Context, c *Client, msg *Message)
}

type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	handler Handler

	// Context for graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// handlers tracks in-flight connect and disconnect callbacks
	handlers sync.WaitGroup

	mu sync.RWMutex
}

func NewHub(handler Handler) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		handler:    handler,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Run owns the client set. Connect and disconnect callbacks run on their
// own goroutines so a slow one never holds up other clients; a client's
// disconnect callback still waits for its connect callback.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

			slog.Info("Client registered", "clientID", client.id, "userID", client.userID)
			h.handlers.Add(1)
			go func(c *Client) {
				defer h.handlers.Done()
				defer close(c.ready)
				h.handler.Connected(h.ctx, c)
			}(client)

		case client := <-h.unregister:
			h.remove(h.ctx, client)

		case <-h.ctx.Done():
			slog.Info("WebSocket hub shutting down")
			h.drain()
			return
		}
	}
}

// Stop closes every connection and waits for Run to return.
func (h *Hub) Stop() {
	h.cancel()
	select {
	case <-h.done:
	case <-time.After(5 * time.Second):
		slog.Warn("Timeout waiting for hub to stop")
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) registerClient(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.ctx.Done():
		return false
	case <-time.After(5 * time.Second):
		return false
	}
}

func (h *Hub) unregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
	}
}

func (h *Hub) remove(ctx context.Context, c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if !ok {
		return
	}
	c.close()
	slog.Info("Client unregistered", "clientID", c.id, "userID", c.userID)
	h.handlers.Add(1)
	go func() {
		defer h.handlers.Done()
		<-c.ready
		h.handler.Disconnected(ctx, c)
	}()
}

// drain disconnects whatever is still attached at shutdown so presence is recorded.
func (h *Hub) drain() {
	h.mu.RLock()
	remaining := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		remaining = append(remaining, c)
	}
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, c := range remaining {
		h.remove(ctx, c)
	}
	h.handlers.Wait()
}
