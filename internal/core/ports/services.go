package ports

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/repair-desk/internal/core/domain"
)

// TransitionResult reports what AdvanceStatus did.
type TransitionResult string

const (
	// TransitionApplied means the change was applied and is being persisted.
	TransitionApplied TransitionResult = "applied"
	// TransitionSkipped means a transition for the same ticket was already in flight.
	TransitionSkipped TransitionResult = "skipped"
)

// Workspace is one client's desk: its ticket store, view state, in-flight
// set and rating draft.
type Workspace interface {
	State() domain.DeskState
	Load(ctx context.Context, force bool) error
	SaveFormDraft(form domain.TicketForm)
	CreateTicket(ctx context.Context, form domain.TicketForm) (domain.Ticket, error)
	AdvanceStatus(ctx context.Context, ticketID int64, target domain.TicketStatus) (TransitionResult, error)
	StartRating(ticketID int64) (domain.RatingDraft, error)
	UpdateRatingDraft(draft domain.RatingDraft) (domain.RatingDraft, error)
	SubmitRating(ctx context.Context) (domain.Ticket, error)
	SetView(view domain.View)
	SetFilter(ctx context.Context, status domain.TicketStatus) error
	ExportCompleted(w io.Writer) error
	// Wait blocks until every background write has finished.
	Wait()
}

// WorkspaceProvider hands out the workspace belonging to a client.
type WorkspaceProvider interface {
	Acquire(clientID uuid.UUID) Workspace
	Shutdown()
}

// EventPublisher delivers real-time events to a single client.
type EventPublisher interface {
	Publish(clientID uuid.UUID, event domain.Event)
}

// Exporter renders completed tickets as a downloadable workbook.
type Exporter interface {
	Export(w io.Writer, tickets []domain.Ticket) error
	FileName(now time.Time) string
	ContentType() string
}
