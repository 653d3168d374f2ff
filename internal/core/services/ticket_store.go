package services

import (
	"cmp"
	"slices"

	"github.com/lorrc/repair-desk/internal/core/domain"
)

// TicketStore holds a workspace's ticket collection, sorted strictly
// descending by id. Every mutation installs a new slice, so slices handed
// out earlier are never modified. Derived views are computed lazily and
// reused until the next mutation.
//
// TicketStore is not safe for concurrent use; the owning workspace
// serialises access.
type TicketStore struct {
	tickets []domain.Ticket
	version uint64
	views   *derivedViews
}

type derivedViews struct {
	version  uint64
	byStatus map[domain.TicketStatus][]domain.Ticket
	counts   domain.StatusCounts
}

// NewTicketStore creates an empty store.
func NewTicketStore() *TicketStore {
	return &TicketStore{tickets: []domain.Ticket{}}
}

// Version changes every time the collection is replaced.
func (s *TicketStore) Version() uint64 {
	return s.version
}

// Len returns the number of tickets.
func (s *TicketStore) Len() int {
	return len(s.tickets)
}

// Snapshot returns the collection in display order.
func (s *TicketStore) Snapshot() []domain.Ticket {
	return slices.Clone(s.tickets)
}

// Get looks a ticket up by id.
func (s *TicketStore) Get(id int64) (domain.Ticket, bool) {
	if i := s.indexOf(id); i >= 0 {
		return s.tickets[i], true
	}
	return domain.Ticket{}, false
}

// Replace installs a new collection. Duplicated ids keep their first
// occurrence.
func (s *TicketStore) Replace(tickets []domain.Ticket) {
	next := slices.Clone(tickets)
	slices.SortStableFunc(next, func(a, b domain.Ticket) int {
		return cmp.Compare(b.ID, a.ID)
	})
	next = slices.CompactFunc(next, func(a, b domain.Ticket) bool {
		return a.ID == b.ID
	})
	if next == nil {
		next = []domain.Ticket{}
	}
	s.install(next)
}

// Prepend adds a new ticket. Fresh ids are the largest, so the ticket
// normally lands at the front; an existing id is replaced instead.
func (s *TicketStore) Prepend(ticket domain.Ticket) {
	if s.Put(ticket) {
		return
	}
	pos, _ := slices.BinarySearchFunc(s.tickets, ticket.ID, func(t domain.Ticket, id int64) int {
		return cmp.Compare(id, t.ID)
	})
	next := make([]domain.Ticket, 0, len(s.tickets)+1)
	next = append(next, s.tickets[:pos]...)
	next = append(next, ticket)
	next = append(next, s.tickets[pos:]...)
	s.install(next)
}

// Put replaces the ticket with the same id. It reports false when the id
// is unknown.
func (s *TicketStore) Put(ticket domain.Ticket) bool {
	i := s.indexOf(ticket.ID)
	if i < 0 {
		return false
	}
	next := slices.Clone(s.tickets)
	next[i] = ticket
	s.install(next)
	return true
}

// Remove deletes a ticket by id.
func (s *TicketStore) Remove(id int64) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	next := make([]domain.Ticket, 0, len(s.tickets)-1)
	next = append(next, s.tickets[:i]...)
	next = append(next, s.tickets[i+1:]...)
	s.install(next)
	return true
}

// MaxID returns the largest id held, or 0 for an empty store.
func (s *TicketStore) MaxID() int64 {
	if len(s.tickets) == 0 {
		return 0
	}
	return s.tickets[0].ID
}

// ByStatus returns the tickets with the given status in display order.
// The returned slice is shared between callers and must not be modified.
func (s *TicketStore) ByStatus(status domain.TicketStatus) []domain.Ticket {
	if list, ok := s.derived().byStatus[status]; ok {
		return list
	}
	return []domain.Ticket{}
}

// Counts returns the number of tickets per status. Every known status is
// present in the result.
func (s *TicketStore) Counts() domain.StatusCounts {
	counts := make(domain.StatusCounts, len(domain.Statuses))
	for status, n := range s.derived().counts {
		counts[status] = n
	}
	return counts
}

func (s *TicketStore) install(next []domain.Ticket) {
	s.tickets = next
	s.version++
	s.views = nil
}

func (s *TicketStore) derived() *derivedViews {
	if s.views != nil && s.views.version == s.version {
		return s.views
	}

	views := &derivedViews{
		version:  s.version,
		byStatus: make(map[domain.TicketStatus][]domain.Ticket, len(domain.Statuses)),
		counts:   make(domain.StatusCounts, len(domain.Statuses)),
	}
	for _, status := range domain.Statuses {
		views.byStatus[status] = []domain.Ticket{}
		views.counts[status] = 0
	}
	for _, t := range s.tickets {
		views.byStatus[t.Status] = append(views.byStatus[t.Status], t)
		views.counts[t.Status]++
	}
	s.views = views
	return views
}

func (s *TicketStore) indexOf(id int64) int {
	i, found := slices.BinarySearchFunc(s.tickets, id, func(t domain.Ticket, id int64) int {
		return cmp.Compare(id, t.ID)
	})
	if !found {
		return -1
	}
	return i
}
