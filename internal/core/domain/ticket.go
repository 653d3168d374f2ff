package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/lorrc/repair-desk/internal/core/errors"
)

// Field constraints for repair requests.
const (
	PhoneDigits          = 10
	MinRatingScore       = 1
	MaxRatingScore       = 5
	MaxFieldLength       = 255
	MaxDescriptionLength = 5000
)

// TicketStatus represents the possible states of a repair ticket.
// The values are the labels the institution's spreadsheet stores.
type TicketStatus string

const (
	StatusPending    TicketStatus = "รอดำเนินการ"
	StatusInProgress TicketStatus = "กำลังดำเนินการ"
	StatusDone       TicketStatus = "เสร็จสิ้น"
)

// Statuses lists every status in lifecycle order.
var Statuses = []TicketStatus{StatusPending, StatusInProgress, StatusDone}

// nextStatus is the transition table. Done is terminal.
var nextStatus = map[TicketStatus]TicketStatus{
	StatusPending:    StatusInProgress,
	StatusInProgress: StatusDone,
}

// IsValid checks if the status is one of the known lifecycle states.
func (s TicketStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Next returns the state that follows s, or false when s is terminal.
func (s TicketStatus) Next() (TicketStatus, bool) {
	next, ok := nextStatus[s]
	return next, ok
}

// CanTransitionTo reports whether target is the immediate successor of s.
func (s TicketStatus) CanTransitionTo(target TicketStatus) bool {
	next, ok := s.Next()
	return ok && next == target
}

// ParseStatus accepts either the stored label or one of the English
// aliases PENDING, IN_PROGRESS and DONE.
func ParseStatus(value string) (TicketStatus, error) {
	value = strings.TrimSpace(value)
	switch strings.ToUpper(value) {
	case "PENDING":
		return StatusPending, nil
	case "IN_PROGRESS", "INPROGRESS":
		return StatusInProgress, nil
	case "DONE":
		return StatusDone, nil
	}
	status := TicketStatus(value)
	if !status.IsValid() {
		return "", apperrors.ErrInvalidStatus
	}
	return status, nil
}

// Rating is the requester's assessment of a finished repair.
type Rating struct {
	TechnicianName string `json:"technicianName"`
	Score          int    `json:"score"`
	Comment        string `json:"comment"`
}

// Ticket is a single repair request.
type Ticket struct {
	ID          int64        `json:"id"`
	TeacherName string       `json:"teacherName"`
	Department  string       `json:"department"`
	AssetNumber string       `json:"assetNumber"`
	Phone       string       `json:"phone"`
	ProblemType string       `json:"problemType"`
	Description string       `json:"description"`
	Location    string       `json:"location"`
	Status      TicketStatus `json:"status"`
	CreatedAt   string       `json:"createdAt"`
	CompletedAt *string      `json:"completedAt"`
	Rating      *Rating      `json:"rating"`
}

// IsRated reports whether a rating with a real score is attached.
// A rating record with score 0 is treated as no rating.
func (t Ticket) IsRated() bool {
	return t.Rating != nil && t.Rating.Score > 0
}

// CanBeRated reports whether a rating may be attached now.
func (t Ticket) CanBeRated() bool {
	return t.Status == StatusDone && !t.IsRated()
}

// WithStatus returns a copy of the ticket moved to target. Entering Done
// stamps CompletedAt; an existing CompletedAt is kept.
func (t Ticket) WithStatus(target TicketStatus, now time.Time) (Ticket, error) {
	if !target.IsValid() {
		return t, apperrors.ErrInvalidStatus
	}
	if !t.Status.CanTransitionTo(target) {
		return t, fmt.Errorf("%w: %s -> %s", apperrors.ErrInvalidStatusTransition, t.Status, target)
	}

	updated := t
	updated.Status = target
	if target == StatusDone && updated.CompletedAt == nil {
		stamp := FormatTimestamp(now)
		updated.CompletedAt = &stamp
	}
	return updated, nil
}

// WithRating returns a copy of the ticket carrying rating.
func (t Ticket) WithRating(rating Rating) (Ticket, error) {
	if rating.Score < MinRatingScore || rating.Score > MaxRatingScore {
		return t, apperrors.ErrInvalidRating
	}
	if !t.CanBeRated() {
		return t, apperrors.ErrRatingNotAllowed
	}

	updated := t
	r := rating
	updated.Rating = &r
	return updated, nil
}

// TicketForm holds the fields a requester fills in.
type TicketForm struct {
	TeacherName string `json:"teacherName"`
	Department  string `json:"department"`
	AssetNumber string `json:"assetNumber"`
	Phone       string `json:"phone"`
	ProblemType string `json:"problemType"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

// Validate checks presence of every field and the phone number format.
func (f TicketForm) Validate() error {
	errs := apperrors.NewValidationErrors()

	required := []struct {
		field string
		value string
	}{
		{"teacherName", f.TeacherName},
		{"department", f.Department},
		{"assetNumber", f.AssetNumber},
		{"phone", f.Phone},
		{"problemType", f.ProblemType},
		{"description", f.Description},
		{"location", f.Location},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs.Add(r.field, "This field is required")
		} else if r.field != "description" && len(r.value) > MaxFieldLength {
			errs.Add(r.field, fmt.Sprintf("Must be at most %d characters", MaxFieldLength))
		}
	}

	if len(f.Description) > MaxDescriptionLength {
		errs.Add("description", fmt.Sprintf("Must be at most %d characters", MaxDescriptionLength))
	}

	if strings.TrimSpace(f.Phone) != "" && len(PhoneDigitsOf(f.Phone)) != PhoneDigits {
		errs.Add("phone", "Phone number must have exactly 10 digits")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// NewTicket builds a Pending ticket from a validated form.
func NewTicket(id int64, form TicketForm, now time.Time) (Ticket, error) {
	if err := form.Validate(); err != nil {
		return Ticket{}, err
	}

	return Ticket{
		ID:          id,
		TeacherName: strings.TrimSpace(form.TeacherName),
		Department:  strings.TrimSpace(form.Department),
		AssetNumber: strings.TrimSpace(form.AssetNumber),
		Phone:       FormatPhone(form.Phone),
		ProblemType: strings.TrimSpace(form.ProblemType),
		Description: strings.TrimSpace(form.Description),
		Location:    strings.TrimSpace(form.Location),
		Status:      StatusPending,
		CreatedAt:   FormatTimestamp(now),
	}, nil
}

// PhoneDigitsOf strips everything but digits.
func PhoneDigitsOf(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatPhone renders up to ten digits as xxx-xxx-xxxx, the way the form
// displays partially typed numbers.
func FormatPhone(phone string) string {
	digits := PhoneDigitsOf(phone)
	if len(digits) > PhoneDigits {
		digits = digits[:PhoneDigits]
	}
	switch {
	case len(digits) > 6:
		return digits[:3] + "-" + digits[3:6] + "-" + digits[6:]
	case len(digits) > 3:
		return digits[:3] + "-" + digits[3:]
	default:
		return digits
	}
}

// FormatTimestamp renders t as DD/MM/YY HH:MM น. using the two-digit
// Buddhist-era year.
func FormatTimestamp(t time.Time) string {
	return fmt.Sprintf("%02d/%02d/%02d %02d:%02d น.",
		t.Day(), int(t.Month()), (t.Year()+543)%100, t.Hour(), t.Minute())
}
