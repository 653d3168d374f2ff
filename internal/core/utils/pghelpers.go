package utils

import (
	"github.com/jackc/pgx/v5/pgtype"
)

// ToNullString converts an optional string to a pgtype.Text.
// A nil pointer or an empty string is stored as NULL.
func ToNullString(s *string) pgtype.Text {
	if s == nil || *s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: *s, Valid: true}
}

// FromNullString converts a pgtype.Text back to an optional string.
func FromNullString(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}
