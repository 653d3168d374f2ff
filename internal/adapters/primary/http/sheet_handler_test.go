package http

import (
	"encoding/json"
	"errors"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/repair-desk/internal/core/domain"
	"github.com/lorrc/repair-desk/internal/core/mocks"
	"github.com/lorrc/repair-desk/internal/core/ports"
)

func newSheetRouter(repo ports.SheetRepository) stdhttp.Handler {
	r := chi.NewRouter()
	NewSheetHandler(repo, NewErrorHandler(discardLogger()), discardLogger()).RegisterRoutes(r)
	return r
}

func TestSheetHandler_List(t *testing.T) {
	repo := mocks.NewMockSheetRepository()
	repo.On("ListTickets", mock.Anything).Return([]domain.Ticket{
		{ID: 2, Status: domain.StatusDone},
		{ID: 1, Status: domain.StatusPending},
	}, nil).Once()

	rec := httptest.NewRecorder()
	newSheetRouter(repo).ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/", nil))

	require.Equal(t, stdhttp.StatusOK, rec.Code)
	// The desk expects a bare array, not the usual envelope.
	var tickets []domain.Ticket
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tickets))
	require.Len(t, tickets, 2)
	assert.Equal(t, int64(2), tickets[0].ID)
	repo.AssertExpectations(t)
}

func TestSheetHandler_ListFailure(t *testing.T) {
	repo := mocks.NewMockSheetRepository()
	repo.On("ListTickets", mock.Anything).Return(nil, errors.New("connection refused")).Once()

	rec := httptest.NewRecorder()
	newSheetRouter(repo).ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, "/", nil))

	assert.Equal(t, stdhttp.StatusInternalServerError, rec.Code)
}

func TestSheetHandler_Upsert(t *testing.T) {
	t.Run("flattened text/plain body", func(t *testing.T) {
		repo := mocks.NewMockSheetRepository()
		repo.On("UpsertTicket", mock.Anything, mock.MatchedBy(func(ticket domain.Ticket) bool {
			return ticket.ID == 1700000000000 && ticket.Status == domain.StatusInProgress && ticket.TeacherName == "ครูสมชาย"
		})).Return(false, nil).Once()

		body := `{"action":"update","id":1700000000000,"teacherName":"ครูสมชาย","status":"กำลังดำเนินการ","createdAt":"5/3/2567 09:00:00","completedAt":null,"rating":null}`
		req := httptest.NewRequest(stdhttp.MethodPost, "/", strings.NewReader(body))
		req.Header.Set("Content-Type", "text/plain;charset=utf-8")
		rec := httptest.NewRecorder()

		newSheetRouter(repo).ServeHTTP(rec, req)

		require.Equal(t, stdhttp.StatusOK, rec.Code)
		var resp SheetUpsertResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "success", resp.Result)
		assert.Equal(t, ports.ActionUpdate, resp.Action)
		assert.False(t, resp.Created)
		repo.AssertExpectations(t)
	})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"unknown action", `{"action":"delete","id":1,"status":"รอดำเนินการ"}`, stdhttp.StatusUnprocessableEntity},
		{"missing id", `{"action":"add","status":"รอดำเนินการ"}`, stdhttp.StatusUnprocessableEntity},
		{"unknown status", `{"action":"add","id":1,"status":"archived"}`, stdhttp.StatusUnprocessableEntity},
		{"not json", `action=add`, stdhttp.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := mocks.NewMockSheetRepository()
			rec := httptest.NewRecorder()

			newSheetRouter(repo).ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodPost, "/", strings.NewReader(tt.body)))

			assert.Equal(t, tt.want, rec.Code)
			repo.AssertNotCalled(t, "UpsertTicket", mock.Anything, mock.Anything)
		})
	}
}
