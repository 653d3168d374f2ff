package ports

import (
	"context"
	"time"

	"github.com/lorrc/repair-desk/internal/core/domain"
)

// UpsertAction tags a write sent to the remote store.
type UpsertAction string

const (
	ActionAdd    UpsertAction = "add"
	ActionUpdate UpsertAction = "update"
)

// IsValid reports whether the action is one the remote store understands.
func (a UpsertAction) IsValid() bool {
	return a == ActionAdd || a == ActionUpdate
}

// RemoteStore is the authoritative ticket collection behind a single HTTP endpoint.
type RemoteStore interface {
	// List returns every ticket. Failures are classified as
	// ErrRemoteTimeout, ErrRemoteTransport or ErrRemoteFormat.
	List(ctx context.Context) ([]domain.Ticket, error)
	// Upsert creates or updates one ticket. It reports false on any failure
	// instead of returning an error.
	Upsert(ctx context.Context, ticket domain.Ticket, action UpsertAction) bool
}

// KeyValueStore is the backend for the snapshot cache and persisted preferences.
// Get returns apperrors.ErrKeyNotFound for a missing key. A zero ttl keeps
// the value until it is overwritten.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
}

// SheetRepository stores the rows served by the development sheet endpoint.
type SheetRepository interface {
	ListTickets(ctx context.Context) ([]domain.Ticket, error)
	UpsertTicket(ctx context.Context, ticket domain.Ticket) (created bool, err error)
}

// TransactionManager defines the port for running atomic operations.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
