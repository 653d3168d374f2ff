package http

import (
	stdhttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	wsAdapter "github.com/lorrc/repair-desk/internal/adapters/primary/websocket"
	"github.com/lorrc/repair-desk/internal/core/mocks"
)

func TestWebSocketHandler_OriginCheck(t *testing.T) {
	h := NewWebSocketHandler(wsAdapter.NewHub(discardLogger()), mocks.NewMockWorkspaceProvider(), WebSocketConfig{
		AllowedOrigins: []string{"desk.example.ac.th", "*.school.ac.th"},
	}, discardLogger())
	check := h.upgrader.CheckOrigin

	tests := []struct {
		name   string
		origin string
		want   bool
	}{
		{"no origin header", "", true},
		{"same host", "http://api.local:8080", true},
		{"listed host", "https://desk.example.ac.th", true},
		{"wildcard subdomain", "https://it.school.ac.th", true},
		{"wildcard apex", "https://school.ac.th", true},
		{"foreign host", "https://evil.example.com", false},
		{"suffix lookalike", "https://notschool.ac.th", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(stdhttp.MethodGet, "http://api.local:8080/api/v1/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, check(req))
		})
	}
}

func TestWebSocketHandler_RequiresClient(t *testing.T) {
	provider := mocks.NewMockWorkspaceProvider()
	h := NewWebSocketHandler(wsAdapter.NewHub(discardLogger()), provider, WebSocketConfig{}, discardLogger())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/ws", nil))

	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)
	provider.AssertNotCalled(t, "Acquire")
}
