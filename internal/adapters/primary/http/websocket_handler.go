package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	mw "github.com/lorrc/repair-desk/internal/adapters/primary/http/middleware"
	wsAdapter "github.com/lorrc/repair-desk/internal/adapters/primary/websocket"
	"github.com/lorrc/repair-desk/internal/core/domain"
	"github.com/lorrc/repair-desk/internal/core/ports"
	"github.com/lorrc/repair-desk/internal/infrastructure/logging"
)

// WebSocketConfig holds configuration for the WebSocket handler
type WebSocketConfig struct {
	AllowedOrigins  []string
	ReadBufferSize  int
	WriteBufferSize int
	// AllowAnyOrigin skips the origin check, for development.
	AllowAnyOrigin bool
}

// WebSocketHandler upgrades desk clients to a websocket that carries their
// ALERT and STATE_CHANGED events.
type WebSocketHandler struct {
	hub        *wsAdapter.Hub
	workspaces ports.WorkspaceProvider
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	hub *wsAdapter.Hub,
	workspaces ports.WorkspaceProvider,
	cfg WebSocketConfig,
	logger *slog.Logger,
) *WebSocketHandler {
	handler := &WebSocketHandler{
		hub:        hub,
		workspaces: workspaces,
		logger:     logger.With("handler", "websocket"),
	}

	handler.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     handler.makeOriginChecker(cfg),
	}

	return handler
}

func (h *WebSocketHandler) makeOriginChecker(cfg WebSocketConfig) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		if cfg.AllowAnyOrigin {
			return true
		}

		// No origin header (same-origin request or non-browser client)
		if origin == "" {
			return true
		}

		parsedOrigin, err := url.Parse(origin)
		if err != nil {
			h.logger.Warn("failed to parse websocket origin", "origin", origin, "error", err)
			return false
		}
		if parsedOrigin.Host == r.Host {
			return true
		}

		originHost := parsedOrigin.Host
		for _, allowed := range cfg.AllowedOrigins {
			// Wildcard subdomains like "*.example.com"
			if strings.HasPrefix(allowed, "*.") {
				if strings.HasSuffix(originHost, allowed[1:]) || originHost == allowed[2:] {
					return true
				}
			} else if originHost == allowed {
				return true
			}
		}

		h.logger.Warn("websocket connection rejected due to origin",
			"origin", origin,
			"remote_addr", r.RemoteAddr,
		)
		return false
	}
}

// ServeHTTP handles WebSocket connection requests
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientID, ok := mw.GetClientID(r.Context())
	if !ok {
		http.Error(w, "Missing desk client", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to upgrade websocket connection", "error", err)
		return
	}

	// The pumps run after the request returns; keep its ids on their logs.
	client := wsAdapter.NewClient(h.hub, conn, clientID, logging.LoggerFromContext(r.Context(), h.logger))
	client.OnStateRequest = func() { h.publishState(clientID) }

	if !h.hub.Attach(client) {
		_ = conn.Close()
		return
	}

	h.logger.InfoContext(r.Context(), "websocket connection established", "remote_addr", r.RemoteAddr)

	go client.WritePump()
	go client.ReadPump()

	h.publishState(clientID)
}

func (h *WebSocketHandler) publishState(clientID uuid.UUID) {
	ws := h.workspaces.Acquire(clientID)
	h.hub.Publish(clientID, domain.Event{Type: domain.EventStateChanged, Payload: ws.State()})
}
