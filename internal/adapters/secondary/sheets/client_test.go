package sheets_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lorrc/repair-desk/internal/adapters/secondary/sheets"
	"github.com/lorrc/repair-desk/internal/core/domain"
	apperrors "github.com/lorrc/repair-desk/internal/core/errors"
	"github.com/lorrc/repair-desk/internal/core/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *sheets.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return sheets.NewClient(sheets.Config{EndpointURL: server.URL, Timeout: timeout}, logger)
}

func TestClient_ListDecodesSpreadsheetCells(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = io.WriteString(w, `[
			{"id": 1741330800000, "teacherName": "ครูสมชาย", "department": "ฝ่ายบริหารงบประมาณ",
			 "assetNumber": 4401, "phone": "081-234-5678", "problemType": "คอมพิวเตอร์",
			 "description": "เปิดไม่ติด", "location": "ห้อง 201", "status": "รอดำเนินการ",
			 "createdAt": "07/03/68 14:00 น.", "completedAt": "", "rating": ""},
			{"id": "1741330700000", "teacherName": "ครูสมหญิง", "phone": 812345678,
			 "status": "done", "completedAt": "07/03/68 15:00 น.",
			 "rating": "{\"technicianName\":\"ช่างเอ\",\"score\":\"5\",\"comment\":\"ดีมาก\"}"},
			{"id": 1741330600000.0, "status": "เสร็จสิ้น", "completedAt": null,
			 "rating": {"technicianName": "ช่างบี", "score": 3, "comment": null}}
		]`)
	}, time.Second)

	tickets, err := client.List(context.Background())

	require.NoError(t, err)
	require.Len(t, tickets, 3)

	first := tickets[0]
	assert.Equal(t, int64(1741330800000), first.ID)
	assert.Equal(t, "4401", first.AssetNumber)
	assert.Equal(t, domain.StatusPending, first.Status)
	assert.Nil(t, first.CompletedAt)
	assert.Nil(t, first.Rating)

	second := tickets[1]
	assert.Equal(t, int64(1741330700000), second.ID)
	assert.Equal(t, "812345678", second.Phone)
	assert.Equal(t, domain.StatusDone, second.Status, "english aliases are normalised")
	require.NotNil(t, second.CompletedAt)
	assert.Equal(t, "07/03/68 15:00 น.", *second.CompletedAt)
	require.NotNil(t, second.Rating)
	assert.Equal(t, domain.Rating{TechnicianName: "ช่างเอ", Score: 5, Comment: "ดีมาก"}, *second.Rating)

	third := tickets[2]
	assert.Equal(t, int64(1741330600000), third.ID)
	assert.Nil(t, third.CompletedAt)
	require.NotNil(t, third.Rating)
	assert.Equal(t, 3, third.Rating.Score)
	assert.Empty(t, third.Rating.Comment)
}

func TestClient_ListErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		timeout time.Duration
		want    error
		status  int
	}{
		{
			name: "server error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			want:   apperrors.ErrRemoteTransport,
			status: http.StatusBadGateway,
		},
		{
			name: "object instead of array",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `{"error": "script failed"}`)
			},
			want: apperrors.ErrRemoteFormat,
		},
		{
			name: "invalid json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `[{"id": 1,`)
			},
			want: apperrors.ErrRemoteFormat,
		},
		{
			name: "non numeric id",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `[{"id": "abc"}]`)
			},
			want: apperrors.ErrRemoteFormat,
		},
		{
			name: "slow endpoint",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			timeout: 50 * time.Millisecond,
			want:    apperrors.ErrRemoteTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			timeout := tt.timeout
			if timeout == 0 {
				timeout = time.Second
			}
			client := newClient(t, tt.handler, timeout)

			tickets, err := client.List(context.Background())

			assert.Nil(t, tickets)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			if tt.status != 0 {
				var statusErr *apperrors.RemoteStatusError
				require.True(t, errors.As(err, &statusErr))
				assert.Equal(t, tt.status, statusErr.StatusCode)
			}
		})
	}
}

func TestClient_ListCancelledByCaller(t *testing.T) {
	started := make(chan struct{})
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := client.List(ctx)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrRemoteTransport)
	assert.ErrorIs(t, err, context.Canceled, "callers can tell a hang-up from an outage")
	assert.NotErrorIs(t, err, apperrors.ErrRemoteTimeout)
}

func TestClient_ListFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/exec", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/echo", http.StatusFound)
	})
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id": 7, "status": "กำลังดำเนินการ"}]`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	client := sheets.NewClient(sheets.Config{EndpointURL: server.URL + "/exec", Timeout: time.Second},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	tickets, err := client.List(context.Background())

	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, domain.StatusInProgress, tickets[0].Status)
}

func TestClient_UpsertPostsFlattenedPayload(t *testing.T) {
	var got map[string]any
	var contentType string
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		contentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"result": "ok"}`)
	}, time.Second)

	completed := "07/03/68 15:00 น."
	ticket := domain.Ticket{
		ID:          42,
		TeacherName: "ครูสมชาย",
		Status:      domain.StatusDone,
		CompletedAt: &completed,
		Rating:      &domain.Rating{TechnicianName: "ช่างเอ", Score: 4},
	}

	ok := client.Upsert(context.Background(), ticket, ports.ActionUpdate)

	require.True(t, ok)
	assert.Equal(t, "text/plain;charset=utf-8", contentType)
	assert.Equal(t, "update", got["action"])
	assert.Equal(t, float64(42), got["id"])
	assert.Equal(t, "ครูสมชาย", got["teacherName"])
	assert.Equal(t, string(domain.StatusDone), got["status"])
	assert.Equal(t, completed, got["completedAt"])
	rating, isObject := got["rating"].(map[string]any)
	require.True(t, isObject)
	assert.Equal(t, float64(4), rating["score"])
}

func TestClient_UpsertReportsFailureAsFalse(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		timeout time.Duration
	}{
		{
			name: "rejected",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			timeout: time.Second,
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				<-r.Context().Done()
			},
			timeout: 50 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newClient(t, tt.handler, tt.timeout)

			ok := client.Upsert(context.Background(), domain.Ticket{ID: 1}, ports.ActionAdd)

			assert.False(t, ok)
		})
	}
}

func TestClient_UpsertUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()
	client := sheets.NewClient(sheets.Config{EndpointURL: url, Timeout: time.Second},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.False(t, client.Upsert(context.Background(), domain.Ticket{ID: 1}, ports.ActionAdd))

	_, err := client.List(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrRemoteTransport)
}
