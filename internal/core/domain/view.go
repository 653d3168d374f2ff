package domain

import apperrors "github.com/lorrc/repair-desk/internal/core/errors"

// View is one of the application screens.
type View string

const (
	ViewHome   View = "home"
	ViewList   View = "list"
	ViewRating View = "rating"
)

// ParseView validates a view name.
func ParseView(value string) (View, error) {
	switch v := View(value); v {
	case ViewHome, ViewList, ViewRating:
		return v, nil
	}
	return "", apperrors.ErrInvalidView
}

// Connectivity describes the state of the link to the remote store.
type Connectivity string

const (
	Connecting   Connectivity = "connecting"
	Connected    Connectivity = "connected"
	Disconnected Connectivity = "error"
)

// RatingDraft is the rating form being filled in.
type RatingDraft struct {
	TicketID       int64  `json:"ticketId"`
	Score          int    `json:"score"`
	Comment        string `json:"comment"`
	TechnicianName string `json:"technicianName"`
}

// StatusCounts holds the number of tickets per status.
type StatusCounts map[TicketStatus]int

// DeskState is everything a client needs to render the current screen.
type DeskState struct {
	View         View         `json:"view"`
	Filter       TicketStatus `json:"filter"`
	Connectivity Connectivity `json:"connectivity"`
	Loading      bool         `json:"loading"`
	Banner       string       `json:"banner,omitempty"`
	Warning      string       `json:"warning,omitempty"`
	Counts       StatusCounts `json:"counts"`
	Tickets      []Ticket     `json:"tickets"`
	InFlight     []int64      `json:"inFlight"`
	Form         TicketForm   `json:"form"`
	RatingDraft  *RatingDraft `json:"ratingDraft"`
	CanCreate    bool         `json:"canCreate"`
}
