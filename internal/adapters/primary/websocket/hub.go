package websocket

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lorrc/repair-desk/internal/core/domain"
	"github.com/lorrc/repair-desk/internal/core/ports"
)

var (
	connectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "repairdesk_websocket_connections",
		Help: "Open websocket connections",
	})

	droppedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "repairdesk_websocket_dropped_events_total",
		Help: "Events dropped because a connection's send buffer was full",
	}, []string{"type"})
)

// Hub tracks the open connections of every desk client and delivers events
// to all connections of one client.
type Hub struct {
	// clients maps client IDs to their active connections.
	// One client can have several tabs open.
	clients map[uuid.UUID]map[*Client]bool

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	// done is closed when Run returns.
	done chan struct{}

	// mu protects the clients map
	mu sync.RWMutex

	logger *slog.Logger
}

var _ ports.EventPublisher = (*Hub)(nil)

// NewHub creates a new WebSocket hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.With("component", "websocket_hub"),
	}
}

// Run processes registrations until ctx is cancelled, then closes every
// connection's send channel.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return
		}
	}
}

// Attach registers client with a running hub. It reports false once the hub
// has stopped.
func (h *Hub) Attach(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Detach unregisters client. It never blocks on a stopped hub.
func (h *Hub) Detach(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.ClientID] == nil {
		h.clients[client.ClientID] = make(map[*Client]bool)
	}
	h.clients[client.ClientID][client] = true
	connectionsGauge.Inc()

	h.logger.Info("client registered",
		"client_id", client.ClientID,
		"total_connections", len(h.clients[client.ClientID]),
	)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.clients[client.ClientID]; ok {
		if _, exists := conns[client]; exists {
			delete(conns, client)
			connectionsGauge.Dec()
			if len(conns) == 0 {
				delete(h.clients, client.ClientID)
			}
		}
	}

	client.CloseSend()

	h.logger.Info("client unregistered", "client_id", client.ClientID)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, conns := range h.clients {
		for client := range conns {
			client.CloseSend()
			connectionsGauge.Dec()
		}
		delete(h.clients, id)
	}
}

// Publish queues event on every connection of clientID. A connection whose
// buffer is full misses the event; the next STATE_CHANGED supersedes it.
func (h *Hub) Publish(clientID uuid.UUID, event domain.Event) {
	h.mu.RLock()
	conns := make([]*Client, 0, len(h.clients[clientID]))
	for client := range h.clients[clientID] {
		conns = append(conns, client)
	}
	h.mu.RUnlock()

	for _, client := range conns {
		if !client.enqueue(event) {
			droppedEvents.WithLabelValues(string(event.Type)).Inc()
			h.logger.Warn("client send buffer full, dropping event",
				"client_id", clientID,
				"event_type", event.Type,
			)
		}
	}
}

// GetClientCount returns the total number of open connections
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, conns := range h.clients {
		count += len(conns)
	}
	return count
}

// IsClientConnected reports whether a client has any open connection
func (h *Hub) IsClientConnected(clientID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conns, ok := h.clients[clientID]
	return ok && len(conns) > 0
}
