package websocket_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/repair-desk/internal/adapters/primary/websocket"
	"github.com/lorrc/repair-desk/internal/core/domain"
)

type harness struct {
	hub    *websocket.Hub
	server *httptest.Server
	cancel context.CancelFunc
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := websocket.NewHub(logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	upgrader := gorilla.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.MustParse(r.URL.Query().Get("client"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := websocket.NewClient(hub, conn, id, logger)
		client.OnStateRequest = func() {
			hub.Publish(id, domain.Event{Type: domain.EventStateChanged, Payload: map[string]string{"view": "home"}})
		}
		if hub.Attach(client) {
			go client.WritePump()
			go client.ReadPump()
		}
	}))

	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return &harness{hub: hub, server: server, cancel: cancel}
}

func (h *harness) dial(t *testing.T, clientID uuid.UUID) *gorilla.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "?client=" + clientID.String()
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *gorilla.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var event map[string]any
	require.NoError(t, json.Unmarshal(data, &event))
	return event
}

func TestHub_PublishReachesEveryConnectionOfOneClient(t *testing.T) {
	h := newHarness(t)
	alice, bob := uuid.New(), uuid.New()

	tab1 := h.dial(t, alice)
	tab2 := h.dial(t, alice)
	other := h.dial(t, bob)

	require.Eventually(t, func() bool { return h.hub.GetClientCount() == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, h.hub.IsClientConnected(alice))

	h.hub.Publish(alice, domain.NewAlertEvent(domain.Alert{Level: domain.AlertSuccess, Message: "Repair request saved."}))

	for _, conn := range []*gorilla.Conn{tab1, tab2} {
		event := readEvent(t, conn)
		assert.Equal(t, "ALERT", event["type"])
		payload := event["payload"].(map[string]any)
		assert.Equal(t, "Repair request saved.", payload["message"])
	}

	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := other.ReadMessage()
	assert.Error(t, err, "other clients receive nothing")
}

func TestHub_PingAndStateRequest(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t, uuid.New())

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "PING"}))
	assert.Equal(t, "PONG", readEvent(t, conn)["type"])

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "GET_STATE"}))
	assert.Equal(t, "STATE_CHANGED", readEvent(t, conn)["type"])
}

func TestHub_UnregistersClosedConnections(t *testing.T) {
	h := newHarness(t)
	id := uuid.New()
	conn := h.dial(t, id)
	require.Eventually(t, func() bool { return h.hub.IsClientConnected(id) }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool { return !h.hub.IsClientConnected(id) }, 2*time.Second, 10*time.Millisecond)
	assert.NotPanics(t, func() {
		h.hub.Publish(id, domain.Event{Type: domain.EventStateChanged})
	})
}

func TestHub_ShutdownClosesConnections(t *testing.T) {
	h := newHarness(t)
	id := uuid.New()
	conn := h.dial(t, id)
	require.Eventually(t, func() bool { return h.hub.IsClientConnected(id) }, 2*time.Second, 10*time.Millisecond)

	h.cancel()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	require.Eventually(t, func() bool { return h.hub.GetClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
