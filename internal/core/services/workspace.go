package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/repair-desk/internal/core/domain"
	apperrors "github.com/lorrc/repair-desk/internal/core/errors"
	"github.com/lorrc/repair-desk/internal/core/ports"
)

const slowLoadMessage = "Loading is taking longer than usual, please wait..."

// WorkspaceConfig holds the per-workspace tunables.
type WorkspaceConfig struct {
	CacheKey          string
	FilterKey         string
	CacheDuration     time.Duration
	FilterSwitchDelay time.Duration
	SlowLoadAfter     time.Duration
	TechnicianName    string
	Policies          MutationPolicies
	// Location is the zone ticket stamps are written in. Nil keeps the
	// clock's own zone.
	Location *time.Location
}

// WorkspaceDeps are the collaborators shared by every workspace.
type WorkspaceDeps struct {
	Remote    ports.RemoteStore
	KV        ports.KeyValueStore
	Publisher ports.EventPublisher
	Exporter  ports.Exporter
	IDs       *IDGenerator
	Clock     Clock
	Logger    *slog.Logger
}

// Workspace is one client's desk. All state changes happen under mu;
// calls to the remote store never do. Background writes re-acquire mu to
// reconcile their result.
type Workspace struct {
	mu       sync.Mutex
	clientID uuid.UUID
	cfg      WorkspaceConfig

	remote    ports.RemoteStore
	publisher ports.EventPublisher
	exporter  ports.Exporter
	ids       *IDGenerator
	now       Clock
	logger    *slog.Logger

	cache *SnapshotCache
	store *TicketStore
	view  *ViewController

	inFlight   map[int64]struct{}
	form       domain.TicketForm
	draft      *domain.RatingDraft
	submitting bool

	loadSeq     uint64
	slowTimer   *time.Timer
	filterSeq   uint64
	filterTimer *time.Timer

	wg sync.WaitGroup
}

var _ ports.Workspace = (*Workspace)(nil)

// NewWorkspace creates an empty workspace. Call Mount to restore the saved
// filter and run the initial load.
func NewWorkspace(clientID uuid.UUID, deps WorkspaceDeps, cfg WorkspaceConfig) *Workspace {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	ids := deps.IDs
	if ids == nil {
		ids = NewIDGenerator(now)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("client_id", clientID.String())

	return &Workspace{
		clientID:  clientID,
		cfg:       cfg,
		remote:    deps.Remote,
		publisher: deps.Publisher,
		exporter:  deps.Exporter,
		ids:       ids,
		now:       now,
		logger:    logger,
		cache:     NewSnapshotCache(deps.KV, cfg.CacheKey, cfg.CacheDuration, now, logger),
		store:     NewTicketStore(),
		view:      NewViewController(NewFilterPreference(deps.KV, cfg.FilterKey, logger)),
		inFlight:  make(map[int64]struct{}),
	}
}

// ClientID returns the owner of the workspace.
func (w *Workspace) ClientID() uuid.UUID {
	return w.clientID
}

// Mount restores the persisted filter and performs the initial, unforced load.
func (w *Workspace) Mount(ctx context.Context) error {
	w.mu.Lock()
	w.view.Restore(ctx)
	w.mu.Unlock()

	return w.Load(ctx, false)
}

// Load populates the ticket store. Unless force is set, a fresh cache
// snapshot is used and the network is skipped. A failed network load
// empties the store and marks the link as broken. A load whose ctx is
// cancelled leaves tickets and connectivity as they were.
func (w *Workspace) Load(ctx context.Context, force bool) error {
	if !force {
		if tickets, ok := w.cache.Read(ctx); ok {
			w.mu.Lock()
			w.loadSeq++
			w.stopSlowTimer()
			w.store.Replace(tickets)
			w.ids.Observe(w.store.MaxID())
			w.view.LoadSucceeded()
			w.mu.Unlock()

			w.logger.DebugContext(ctx, "tickets loaded from cache", "count", len(tickets))
			w.publishState()
			return nil
		}
	}

	w.mu.Lock()
	w.loadSeq++
	seq := w.loadSeq
	w.view.BeginLoad()
	w.startSlowTimer(seq)
	w.mu.Unlock()
	w.publishState()

	tickets, err := w.remote.List(ctx)

	w.mu.Lock()
	if seq != w.loadSeq {
		// A newer load owns the state now.
		w.mu.Unlock()
		return err
	}
	w.stopSlowTimer()
	if err != nil && errors.Is(ctx.Err(), context.Canceled) {
		// The caller went away; the remote store was never judged.
		w.view.LoadAbandoned()
		w.mu.Unlock()

		w.logger.DebugContext(ctx, "ticket load abandoned", "error", err, "forced", force)
		w.publishState()
		return err
	}
	if err != nil {
		w.store.Replace(nil)
		w.view.LoadFailed(loadFailureMessage(err))
		w.mu.Unlock()

		w.logger.WarnContext(ctx, "ticket load failed", "error", err, "forced", force)
		w.publishState()
		return err
	}
	w.store.Replace(tickets)
	w.ids.Observe(w.store.MaxID())
	w.cache.Write(ctx, w.store.Snapshot())
	w.view.LoadSucceeded()
	count := w.store.Len()
	w.mu.Unlock()

	w.logger.InfoContext(ctx, "tickets loaded from remote store", "count", count, "forced", force)
	w.publishState()
	return nil
}

// stampTime is the current time in the desk's zone, for ticket stamps.
func (w *Workspace) stampTime() time.Time {
	now := w.now()
	if w.cfg.Location != nil {
		return now.In(w.cfg.Location)
	}
	return now
}

// State returns a snapshot of everything the client renders.
func (w *Workspace) State() domain.DeskState {
	w.mu.Lock()
	defer w.mu.Unlock()

	state := domain.DeskState{
		Counts:   w.store.Counts(),
		Tickets:  w.store.ByStatus(w.view.Filter()),
		InFlight: w.inFlightIDs(),
		Form:     w.form,
	}
	w.view.Apply(&state)
	if w.draft != nil {
		draft := *w.draft
		state.RatingDraft = &draft
	}
	return state
}

// SaveFormDraft keeps the partially filled request form.
func (w *Workspace) SaveFormDraft(form domain.TicketForm) {
	w.mu.Lock()
	form.Phone = domain.FormatPhone(form.Phone)
	w.form = form
	w.mu.Unlock()
}

// SetView jumps to another screen.
func (w *Workspace) SetView(view domain.View) {
	w.mu.Lock()
	w.view.SetView(view)
	w.mu.Unlock()
	w.publishState()
}

// SetFilter switches the status filter. An explicit choice overrides a
// pending automatic switch.
func (w *Workspace) SetFilter(ctx context.Context, status domain.TicketStatus) error {
	w.mu.Lock()
	w.cancelFilterSwitch()
	err := w.view.SetFilter(ctx, status)
	w.mu.Unlock()
	if err != nil {
		return err
	}
	w.publishState()
	return nil
}

// ExportCompleted writes the finished tickets, in display order, as a workbook.
func (w *Workspace) ExportCompleted(out io.Writer) error {
	w.mu.Lock()
	done := slices.Clone(w.store.ByStatus(domain.StatusDone))
	w.mu.Unlock()

	if len(done) == 0 {
		return apperrors.ErrNothingToExport
	}
	if w.exporter == nil {
		return fmt.Errorf("%w: no exporter configured", apperrors.ErrInternal)
	}
	return w.exporter.Export(out, done)
}

// Wait blocks until background writes and pending timers have finished.
func (w *Workspace) Wait() {
	w.wg.Wait()
}

// Idle reports whether nothing is in flight.
func (w *Workspace) Idle() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.inFlight) == 0 && !w.submitting
}

// Close stops pending timers and waits for background work.
func (w *Workspace) Close() {
	w.mu.Lock()
	w.loadSeq++
	w.stopSlowTimer()
	w.cancelFilterSwitch()
	w.mu.Unlock()

	w.wg.Wait()
}

func (w *Workspace) inFlightIDs() []int64 {
	ids := make([]int64, 0, len(w.inFlight))
	for id := range w.inFlight {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// startSlowTimer must be called with mu held.
func (w *Workspace) startSlowTimer(seq uint64) {
	w.stopSlowTimer()
	if w.cfg.SlowLoadAfter <= 0 {
		return
	}
	w.wg.Add(1)
	w.slowTimer = time.AfterFunc(w.cfg.SlowLoadAfter, func() {
		defer w.wg.Done()

		w.mu.Lock()
		if seq != w.loadSeq {
			w.mu.Unlock()
			return
		}
		w.view.SlowLoad(slowLoadMessage)
		w.mu.Unlock()
		w.publishState()
	})
}

// stopSlowTimer must be called with mu held.
func (w *Workspace) stopSlowTimer() {
	if w.slowTimer != nil && w.slowTimer.Stop() {
		w.wg.Done()
	}
	w.slowTimer = nil
}

// scheduleFilterSwitch moves the filter to status after the configured
// delay so a ticket that just changed status stays visible. Must be called
// with mu held.
func (w *Workspace) scheduleFilterSwitch(ctx context.Context, status domain.TicketStatus) {
	w.cancelFilterSwitch()
	if w.cfg.FilterSwitchDelay <= 0 {
		_ = w.view.SetFilter(ctx, status)
		return
	}

	seq := w.filterSeq
	w.wg.Add(1)
	w.filterTimer = time.AfterFunc(w.cfg.FilterSwitchDelay, func() {
		defer w.wg.Done()

		w.mu.Lock()
		if seq != w.filterSeq {
			w.mu.Unlock()
			return
		}
		w.filterTimer = nil
		_ = w.view.SetFilter(ctx, status)
		w.mu.Unlock()
		w.publishState()
	})
}

// cancelFilterSwitch must be called with mu held. A callback that already
// fired but has not yet taken the lock sees the bumped sequence and gives up.
func (w *Workspace) cancelFilterSwitch() {
	w.filterSeq++
	if w.filterTimer != nil && w.filterTimer.Stop() {
		w.wg.Done()
	}
	w.filterTimer = nil
}

func (w *Workspace) publishState() {
	if w.publisher == nil {
		return
	}
	w.publisher.Publish(w.clientID, domain.Event{Type: domain.EventStateChanged, Payload: w.State()})
}

func (w *Workspace) alert(level domain.AlertLevel, message string, ticketID int64) {
	if w.publisher == nil {
		return
	}
	w.publisher.Publish(w.clientID, domain.NewAlertEvent(domain.Alert{
		Level:    level,
		Message:  message,
		TicketID: ticketID,
	}))
}

// loadFailureMessage picks the banner text for a failed load.
func loadFailureMessage(err error) string {
	var statusErr *apperrors.RemoteStatusError
	switch {
	case errors.Is(err, apperrors.ErrRemoteTimeout):
		return "Connection timed out. Check the network connection and try again."
	case errors.As(err, &statusErr):
		return fmt.Sprintf("The remote store responded with an error: HTTP %d.", statusErr.StatusCode)
	case errors.Is(err, apperrors.ErrRemoteTransport):
		return "Cannot reach the remote store. Check the network connection and the endpoint address."
	case errors.Is(err, apperrors.ErrRemoteFormat):
		return "The remote store returned data in an unexpected format."
	default:
		return fmt.Sprintf("Could not load tickets: %v", err)
	}
}
