package sheets

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/lorrc/repair-desk/internal/core/domain"
	apperrors "github.com/lorrc/repair-desk/internal/core/errors"
)

// Spreadsheet cells come back with whatever type the sheet inferred: ids
// and phone numbers may be numbers, empty cells may be "" or null, and the
// rating column may hold a JSON object serialised into a string.

type wireTicket struct {
	ID          cellInt         `json:"id"`
	TeacherName cellString      `json:"teacherName"`
	Department  cellString      `json:"department"`
	AssetNumber cellString      `json:"assetNumber"`
	Phone       cellString      `json:"phone"`
	ProblemType cellString      `json:"problemType"`
	Description cellString      `json:"description"`
	Location    cellString      `json:"location"`
	Status      cellString      `json:"status"`
	CreatedAt   cellString      `json:"createdAt"`
	CompletedAt cellString      `json:"completedAt"`
	Rating      json.RawMessage `json:"rating"`
}

type wireRating struct {
	TechnicianName cellString `json:"technicianName"`
	Score          cellInt    `json:"score"`
	Comment        cellString `json:"comment"`
}

// DecodeTickets parses a list response. Anything but a JSON array of
// objects is ErrRemoteFormat.
func DecodeTickets(body []byte) ([]domain.Ticket, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '[' {
		return nil, fmt.Errorf("%w: response is not a JSON array", apperrors.ErrRemoteFormat)
	}

	var rows []wireTicket
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrRemoteFormat, err)
	}

	tickets := make([]domain.Ticket, 0, len(rows))
	for i, row := range rows {
		ticket, err := row.toDomain()
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", apperrors.ErrRemoteFormat, i, err)
		}
		tickets = append(tickets, ticket)
	}
	return tickets, nil
}

func (w wireTicket) toDomain() (domain.Ticket, error) {
	ticket := domain.Ticket{
		ID:          int64(w.ID),
		TeacherName: string(w.TeacherName),
		Department:  string(w.Department),
		AssetNumber: string(w.AssetNumber),
		Phone:       string(w.Phone),
		ProblemType: string(w.ProblemType),
		Description: string(w.Description),
		Location:    string(w.Location),
		Status:      domain.TicketStatus(w.Status),
		CreatedAt:   string(w.CreatedAt),
	}
	if status, err := domain.ParseStatus(string(w.Status)); err == nil {
		ticket.Status = status
	}
	if completed := strings.TrimSpace(string(w.CompletedAt)); completed != "" {
		ticket.CompletedAt = &completed
	}

	rating, err := decodeRating(w.Rating)
	if err != nil {
		return domain.Ticket{}, err
	}
	ticket.Rating = rating
	return ticket, nil
}

func decodeRating(raw json.RawMessage) (*domain.Rating, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("rating: %w", err)
		}
		inner = strings.TrimSpace(inner)
		if inner == "" || inner == "null" {
			return nil, nil
		}
		raw = json.RawMessage(inner)
	}

	var wr wireRating
	if err := json.Unmarshal(raw, &wr); err != nil {
		return nil, fmt.Errorf("rating: %w", err)
	}
	return &domain.Rating{
		TechnicianName: string(wr.TechnicianName),
		Score:          int(wr.Score),
		Comment:        string(wr.Comment),
	}, nil
}

// cellString accepts strings, numbers, booleans and null.
type cellString string

func (s *cellString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*s = ""
	case len(data) > 0 && data[0] == '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = cellString(v)
	case len(data) > 0 && (data[0] == '{' || data[0] == '['):
		return fmt.Errorf("unexpected composite value %s", data)
	default:
		*s = cellString(data)
	}
	return nil
}

// cellInt accepts integers, integral floats and numeric strings. Empty
// values decode as 0.
type cellInt int64

func (n *cellInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}

	text := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			*n = 0
			return nil
		}
	}

	if v, err := strconv.ParseInt(text, 10, 64); err == nil {
		*n = cellInt(v)
		return nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f != float64(int64(f)) {
		return fmt.Errorf("not an integer: %s", data)
	}
	*n = cellInt(int64(f))
	return nil
}
