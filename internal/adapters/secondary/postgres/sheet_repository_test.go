package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/repair-desk/internal/core/domain"
)

func newSheetRepository() *SheetRepository {
	return NewSheetRepository(testPool, NewTransactionManager(testPool))
}

func TestSheetRepository_UpsertAndList(t *testing.T) {
	truncate(t)
	ctx := context.Background()
	repo := newSheetRepository()

	older := domain.Ticket{
		ID:          1741330600000,
		TeacherName: "ครูสมหญิง",
		Department:  "ฝ่ายวิชาการ",
		Phone:       "081-234-5678",
		Status:      domain.StatusPending,
		CreatedAt:   "07/03/68 13:56 น.",
	}
	newer := domain.Ticket{
		ID:          1741330800000,
		TeacherName: "ครูสมชาย",
		Status:      domain.StatusPending,
		CreatedAt:   "07/03/68 14:00 น.",
	}

	created, err := repo.UpsertTicket(ctx, older)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = repo.UpsertTicket(ctx, newer)
	require.NoError(t, err)
	assert.True(t, created)

	tickets, err := repo.ListTickets(ctx)
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, newer.ID, tickets[0].ID, "newest first")
	assert.Equal(t, older, tickets[1])
}

func TestSheetRepository_UpsertReplacesExistingRow(t *testing.T) {
	truncate(t)
	ctx := context.Background()
	repo := newSheetRepository()

	ticket := domain.Ticket{ID: 42, TeacherName: "ครูสมชาย", Status: domain.StatusInProgress, CreatedAt: "07/03/68 14:00 น."}
	_, err := repo.UpsertTicket(ctx, ticket)
	require.NoError(t, err)

	completed := "07/03/68 15:00 น."
	ticket.Status = domain.StatusDone
	ticket.CompletedAt = &completed
	ticket.Rating = &domain.Rating{TechnicianName: "ช่างเอ", Score: 5, Comment: "รวดเร็ว"}

	created, err := repo.UpsertTicket(ctx, ticket)
	require.NoError(t, err)
	assert.False(t, created)

	tickets, err := repo.ListTickets(ctx)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, ticket, tickets[0])
}

func TestTransactionManager_RollsBackOnError(t *testing.T) {
	truncate(t)
	ctx := context.Background()
	tm := NewTransactionManager(testPool)
	repo := NewSheetRepository(testPool, tm)
	boom := errors.New("boom")

	err := tm.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := repo.UpsertTicket(ctx, domain.Ticket{ID: 7, Status: domain.StatusPending}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	tickets, err := repo.ListTickets(ctx)
	require.NoError(t, err)
	assert.Empty(t, tickets)
}
