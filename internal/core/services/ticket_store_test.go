package services_test

import (
	"testing"

	"github.com/lorrc/repair-desk/internal/core/domain"
	"github.com/lorrc/repair-desk/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(tickets []domain.Ticket) []int64 {
	out := make([]int64, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, t.ID)
	}
	return out
}

func TestTicketStore_ReplaceSortsDescending(t *testing.T) {
	store := services.NewTicketStore()

	store.Replace([]domain.Ticket{
		{ID: 2, Status: domain.StatusPending},
		{ID: 9, Status: domain.StatusDone},
		{ID: 5, Status: domain.StatusPending},
		{ID: 9, Status: domain.StatusPending},
	})

	assert.Equal(t, []int64{9, 5, 2}, ids(store.Snapshot()))
	got, ok := store.Get(9)
	require.True(t, ok)
	assert.Equal(t, domain.StatusDone, got.Status, "first occurrence of a duplicated id wins")
}

func TestTicketStore_PrependAndPut(t *testing.T) {
	store := services.NewTicketStore()
	store.Replace([]domain.Ticket{{ID: 10}, {ID: 20}})

	store.Prepend(domain.Ticket{ID: 30, Status: domain.StatusPending})
	assert.Equal(t, []int64{30, 20, 10}, ids(store.Snapshot()))

	store.Prepend(domain.Ticket{ID: 15})
	assert.Equal(t, []int64{30, 20, 15, 10}, ids(store.Snapshot()), "order holds for ids below the top")

	assert.True(t, store.Put(domain.Ticket{ID: 20, Status: domain.StatusDone}))
	assert.False(t, store.Put(domain.Ticket{ID: 99}))
	got, _ := store.Get(20)
	assert.Equal(t, domain.StatusDone, got.Status)

	assert.True(t, store.Remove(15))
	assert.False(t, store.Remove(15))
	assert.Equal(t, []int64{30, 20, 10}, ids(store.Snapshot()))
	assert.Equal(t, int64(30), store.MaxID())
}

func TestTicketStore_MutationsDoNotShareSlices(t *testing.T) {
	store := services.NewTicketStore()
	store.Replace([]domain.Ticket{{ID: 1, Status: domain.StatusPending}})

	before := store.ByStatus(domain.StatusPending)
	version := store.Version()

	store.Put(domain.Ticket{ID: 1, Status: domain.StatusInProgress})

	assert.NotEqual(t, version, store.Version())
	require.Len(t, before, 1)
	assert.Equal(t, domain.StatusPending, before[0].Status, "earlier views are not modified")
	assert.Empty(t, store.ByStatus(domain.StatusPending))
	assert.Len(t, store.ByStatus(domain.StatusInProgress), 1)
}

func TestTicketStore_DerivedViewsAreMemoized(t *testing.T) {
	store := services.NewTicketStore()
	store.Replace([]domain.Ticket{
		{ID: 3, Status: domain.StatusDone},
		{ID: 2, Status: domain.StatusPending},
		{ID: 1, Status: domain.StatusPending},
	})

	first := store.ByStatus(domain.StatusPending)
	second := store.ByStatus(domain.StatusPending)
	require.Len(t, first, 2)
	assert.Same(t, &first[0], &second[0], "unchanged collection reuses the derived view")

	counts := store.Counts()
	assert.Equal(t, 2, counts[domain.StatusPending])
	assert.Equal(t, 0, counts[domain.StatusInProgress])
	assert.Equal(t, 1, counts[domain.StatusDone])

	counts[domain.StatusDone] = 42
	assert.Equal(t, 1, store.Counts()[domain.StatusDone], "callers get their own copy of the counts")
}

func TestTicketStore_EmptyViews(t *testing.T) {
	store := services.NewTicketStore()

	assert.NotNil(t, store.ByStatus(domain.StatusDone))
	assert.Empty(t, store.ByStatus(domain.StatusDone))
	assert.Equal(t, int64(0), store.MaxID())

	store.Replace(nil)
	assert.NotNil(t, store.Snapshot())
}
