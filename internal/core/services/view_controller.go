package services

import (
	"context"

	"github.com/lorrc/repair-desk/internal/core/domain"
	apperrors "github.com/lorrc/repair-desk/internal/core/errors"
)

// ViewController tracks which screen is shown, the active status filter,
// and the state of the link to the remote store. Any view can be reached
// from any other.
//
// Like TicketStore it relies on the owning workspace for locking.
type ViewController struct {
	view         domain.View
	filter       domain.TicketStatus
	connectivity domain.Connectivity
	loading      bool
	banner       string
	shelved      string
	warning      string
	prefs        *FilterPreference
}

// NewViewController starts on the form with the Pending filter while the
// first load is outstanding.
func NewViewController(prefs *FilterPreference) *ViewController {
	return &ViewController{
		view:         domain.ViewHome,
		filter:       domain.StatusPending,
		connectivity: domain.Connecting,
		loading:      true,
		prefs:        prefs,
	}
}

// Restore applies the persisted filter, if any.
func (v *ViewController) Restore(ctx context.Context) {
	if v.prefs == nil {
		return
	}
	if status, ok := v.prefs.Load(ctx); ok {
		v.filter = status
	}
}

func (v *ViewController) View() domain.View {
	return v.view
}

func (v *ViewController) SetView(view domain.View) {
	v.view = view
}

func (v *ViewController) Filter() domain.TicketStatus {
	return v.filter
}

// SetFilter switches the active filter and persists the choice.
func (v *ViewController) SetFilter(ctx context.Context, status domain.TicketStatus) error {
	if !status.IsValid() {
		return apperrors.ErrInvalidStatus
	}
	v.filter = status
	if v.prefs != nil {
		v.prefs.Save(ctx, status)
	}
	return nil
}

func (v *ViewController) Connectivity() domain.Connectivity {
	return v.connectivity
}

// CanMutate reports whether new tickets may be submitted.
func (v *ViewController) CanMutate() bool {
	return v.connectivity != domain.Disconnected
}

// BeginLoad marks a network load as started and clears old messages.
func (v *ViewController) BeginLoad() {
	v.loading = true
	v.shelved = v.banner
	v.banner = ""
	v.warning = ""
}

// SlowLoad shows the non-blocking notice for a load that is taking long.
func (v *ViewController) SlowLoad(message string) {
	if v.loading {
		v.warning = message
	}
}

// LoadSucceeded marks the remote store as reachable.
func (v *ViewController) LoadSucceeded() {
	v.loading = false
	v.warning = ""
	v.banner = ""
	v.connectivity = domain.Connected
}

// LoadAbandoned ends a load that never reached a verdict. Connectivity and
// any banner from before the load are kept.
func (v *ViewController) LoadAbandoned() {
	v.loading = false
	v.warning = ""
	v.banner = v.shelved
}

// LoadFailed shows a persistent banner until the next load starts.
func (v *ViewController) LoadFailed(banner string) {
	v.loading = false
	v.warning = ""
	v.banner = banner
	v.connectivity = domain.Disconnected
}

// Apply copies the view fields into state.
func (v *ViewController) Apply(state *domain.DeskState) {
	state.View = v.view
	state.Filter = v.filter
	state.Connectivity = v.connectivity
	state.Loading = v.loading
	state.Banner = v.banner
	state.Warning = v.warning
	state.CanCreate = v.CanMutate()
}
