package services

import (
	"context"

	"github.com/lorrc/repair-desk/internal/core/domain"
	apperrors "github.com/lorrc/repair-desk/internal/core/errors"
	"github.com/lorrc/repair-desk/internal/core/ports"
)

// MutationPolicy decides what happens when the remote store refuses an
// optimistic change.
type MutationPolicy struct {
	RollbackOnFailure bool
	AlertOnFailure    bool
}

// MutationPolicies holds one policy per mutation kind.
type MutationPolicies struct {
	Create     MutationPolicy
	Transition MutationPolicy
	Rating     MutationPolicy
}

// DefaultMutationPolicies keeps a created ticket and stays quiet when its
// background save fails, while status changes and ratings are reverted and
// reported.
func DefaultMutationPolicies() MutationPolicies {
	return MutationPolicies{
		Create:     MutationPolicy{RollbackOnFailure: false, AlertOnFailure: false},
		Transition: MutationPolicy{RollbackOnFailure: true, AlertOnFailure: true},
		Rating:     MutationPolicy{RollbackOnFailure: true, AlertOnFailure: true},
	}
}

// CreateTicket validates the form, shows the new ticket at the top of the
// Pending list right away and saves it in the background.
func (w *Workspace) CreateTicket(ctx context.Context, form domain.TicketForm) (domain.Ticket, error) {
	if err := form.Validate(); err != nil {
		return domain.Ticket{}, err
	}

	w.mu.Lock()
	if !w.view.CanMutate() {
		w.mu.Unlock()
		return domain.Ticket{}, apperrors.ErrDisconnected
	}
	ticket, err := domain.NewTicket(w.ids.Next(), form, w.stampTime())
	if err != nil {
		w.mu.Unlock()
		return domain.Ticket{}, err
	}
	w.store.Prepend(ticket)
	w.cache.Write(ctx, w.store.Snapshot())
	w.form = domain.TicketForm{}
	w.cancelFilterSwitch()
	_ = w.view.SetFilter(ctx, domain.StatusPending)
	w.view.SetView(domain.ViewList)
	w.mu.Unlock()

	w.logger.InfoContext(ctx, "ticket created", "ticket_id", ticket.ID)
	w.alert(domain.AlertSuccess, "Repair request saved.", ticket.ID)
	w.publishState()

	bg := context.WithoutCancel(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.reconcileCreate(bg, ticket)
	}()

	return ticket, nil
}

func (w *Workspace) reconcileCreate(ctx context.Context, ticket domain.Ticket) {
	ok := w.remote.Upsert(ctx, ticket, ports.ActionAdd)
	recordMutation(mutationCreate, ok)
	if ok {
		return
	}

	w.logger.WarnContext(ctx, "ticket kept locally but not saved to the remote store", "ticket_id", ticket.ID)
	policy := w.cfg.Policies.Create
	if policy.RollbackOnFailure {
		w.mu.Lock()
		removed := w.store.Remove(ticket.ID)
		w.mu.Unlock()
		if removed {
			rollbacksTotal.WithLabelValues(string(mutationCreate)).Inc()
			w.publishState()
		}
	}
	if policy.AlertOnFailure {
		w.alert(domain.AlertError, "The repair request could not be saved. Please try again.", ticket.ID)
	}
}

// AdvanceStatus moves a ticket to target, which must be its next status.
// A ticket with a transition already in flight is left alone and
// TransitionSkipped is returned.
func (w *Workspace) AdvanceStatus(ctx context.Context, ticketID int64, target domain.TicketStatus) (ports.TransitionResult, error) {
	bg := context.WithoutCancel(ctx)

	w.mu.Lock()
	original, ok := w.store.Get(ticketID)
	if !ok {
		w.mu.Unlock()
		return "", apperrors.ErrTicketNotFound
	}
	if _, busy := w.inFlight[ticketID]; busy {
		w.mu.Unlock()
		return ports.TransitionSkipped, nil
	}
	updated, err := original.WithStatus(target, w.stampTime())
	if err != nil {
		w.mu.Unlock()
		return "", err
	}
	w.store.Put(updated)
	w.cache.Write(ctx, w.store.Snapshot())
	w.scheduleFilterSwitch(bg, updated.Status)
	w.inFlight[ticketID] = struct{}{}
	w.mu.Unlock()

	w.logger.InfoContext(ctx, "ticket status changed",
		"ticket_id", ticketID,
		"from", original.Status,
		"to", updated.Status,
	)
	w.publishState()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.reconcileTransition(bg, original, updated)
	}()

	return ports.TransitionApplied, nil
}

func (w *Workspace) reconcileTransition(ctx context.Context, original, updated domain.Ticket) {
	ok := w.remote.Upsert(ctx, updated, ports.ActionUpdate)
	recordMutation(mutationTransition, ok)
	policy := w.cfg.Policies.Transition

	w.mu.Lock()
	delete(w.inFlight, original.ID)
	rolledBack := false
	if !ok && policy.RollbackOnFailure {
		// The cache keeps the optimistic value; only the visible ticket reverts.
		rolledBack = w.store.Put(original)
		w.cancelFilterSwitch()
		_ = w.view.SetFilter(ctx, original.Status)
	}
	w.mu.Unlock()

	if !ok {
		w.logger.WarnContext(ctx, "status change rejected by the remote store",
			"ticket_id", original.ID,
			"rolled_back", rolledBack,
		)
		if rolledBack {
			rollbacksTotal.WithLabelValues(string(mutationTransition)).Inc()
		}
		if policy.AlertOnFailure {
			w.alert(domain.AlertError, "Could not update the ticket status. Please try again.", original.ID)
		}
	}
	w.publishState()
}

// StartRating opens the rating form for a finished, unrated ticket.
func (w *Workspace) StartRating(ticketID int64) (domain.RatingDraft, error) {
	w.mu.Lock()
	ticket, ok := w.store.Get(ticketID)
	if !ok {
		w.mu.Unlock()
		return domain.RatingDraft{}, apperrors.ErrTicketNotFound
	}
	if !ticket.CanBeRated() {
		w.mu.Unlock()
		return domain.RatingDraft{}, apperrors.ErrRatingNotAllowed
	}
	draft := domain.RatingDraft{
		TicketID:       ticketID,
		TechnicianName: w.cfg.TechnicianName,
	}
	w.draft = &draft
	w.view.SetView(domain.ViewRating)
	w.mu.Unlock()

	w.publishState()
	return draft, nil
}

// UpdateRatingDraft stores the score, comment and technician being entered.
// A score of 0 means none has been picked yet.
func (w *Workspace) UpdateRatingDraft(update domain.RatingDraft) (domain.RatingDraft, error) {
	if update.Score < 0 || update.Score > domain.MaxRatingScore {
		return domain.RatingDraft{}, apperrors.ErrInvalidRating
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.draft == nil {
		return domain.RatingDraft{}, apperrors.ErrNoRatingDraft
	}
	if update.TicketID != 0 && update.TicketID != w.draft.TicketID {
		return domain.RatingDraft{}, apperrors.ErrNoRatingDraft
	}
	w.draft.Score = update.Score
	w.draft.Comment = update.Comment
	if update.TechnicianName != "" {
		w.draft.TechnicianName = update.TechnicianName
	}
	return *w.draft, nil
}

// SubmitRating applies the drafted rating and waits for the remote store.
// A missing score is rejected before anything changes.
func (w *Workspace) SubmitRating(ctx context.Context) (domain.Ticket, error) {
	w.mu.Lock()
	if w.draft == nil {
		w.mu.Unlock()
		return domain.Ticket{}, apperrors.ErrNoRatingDraft
	}
	if w.draft.Score < domain.MinRatingScore || w.draft.Score > domain.MaxRatingScore {
		w.mu.Unlock()
		return domain.Ticket{}, apperrors.ErrInvalidRating
	}
	if w.submitting {
		w.mu.Unlock()
		return domain.Ticket{}, apperrors.ErrRatingInProgress
	}
	draft := *w.draft
	original, ok := w.store.Get(draft.TicketID)
	if !ok {
		w.mu.Unlock()
		return domain.Ticket{}, apperrors.ErrTicketNotFound
	}
	updated, err := original.WithRating(domain.Rating{
		TechnicianName: draft.TechnicianName,
		Score:          draft.Score,
		Comment:        draft.Comment,
	})
	if err != nil {
		w.mu.Unlock()
		return domain.Ticket{}, err
	}
	w.store.Put(updated)
	w.submitting = true
	w.mu.Unlock()
	w.publishState()

	bg := context.WithoutCancel(ctx)
	ok = w.remote.Upsert(bg, updated, ports.ActionUpdate)
	recordMutation(mutationRating, ok)
	policy := w.cfg.Policies.Rating

	w.mu.Lock()
	w.submitting = false
	rolledBack := false
	if ok {
		w.cache.Write(bg, w.store.Snapshot())
		w.draft = nil
		w.view.SetView(domain.ViewList)
	} else if policy.RollbackOnFailure {
		rolledBack = w.store.Put(original)
	}
	w.mu.Unlock()

	if ok {
		w.logger.InfoContext(ctx, "ticket rated", "ticket_id", updated.ID, "score", draft.Score)
		w.alert(domain.AlertSuccess, "Thank you for rating the repair.", updated.ID)
		w.publishState()
		return updated, nil
	}

	w.logger.WarnContext(ctx, "rating rejected by the remote store",
		"ticket_id", updated.ID,
		"rolled_back", rolledBack,
	)
	if rolledBack {
		rollbacksTotal.WithLabelValues(string(mutationRating)).Inc()
	}
	if policy.AlertOnFailure {
		w.alert(domain.AlertError, "Could not save the rating. Please try again.", updated.ID)
	}
	w.publishState()
	return original, apperrors.ErrRemoteRejected
}
