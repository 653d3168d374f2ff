package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorrc/repair-desk/internal/core/domain"
	"github.com/lorrc/repair-desk/internal/core/ports"
	"github.com/lorrc/repair-desk/internal/core/utils"
)

const ticketColumns = `id, teacher_name, department, asset_number, phone, problem_type,
       description, location, status, created_at, completed_at, rating`

// SheetRepository keeps the rows behind the development sheet endpoint.
type SheetRepository struct {
	pool *pgxpool.Pool
	tm   ports.TransactionManager
}

var _ ports.SheetRepository = (*SheetRepository)(nil)

func NewSheetRepository(pool *pgxpool.Pool, tm ports.TransactionManager) *SheetRepository {
	return &SheetRepository{pool: pool, tm: tm}
}

// ListTickets returns every row, newest id first.
func (r *SheetRepository) ListTickets(ctx context.Context) ([]domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM repair_tickets ORDER BY id DESC`

	rows, err := GetDBTX(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	tickets := make([]domain.Ticket, 0)
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// UpsertTicket inserts the row or replaces the existing one with the same id.
func (r *SheetRepository) UpsertTicket(ctx context.Context, ticket domain.Ticket) (bool, error) {
	rating, err := encodeRating(ticket.Rating)
	if err != nil {
		return false, err
	}

	var created bool
	err = r.tm.WithTransaction(ctx, func(ctx context.Context) error {
		db := GetDBTX(ctx, r.pool)

		var existing int64
		err := db.QueryRow(ctx, `SELECT id FROM repair_tickets WHERE id = $1 FOR UPDATE`, ticket.ID).Scan(&existing)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			created = true
			_, err = db.Exec(ctx, `
INSERT INTO repair_tickets (`+ticketColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
				ticket.ID, ticket.TeacherName, ticket.Department, ticket.AssetNumber, ticket.Phone,
				ticket.ProblemType, ticket.Description, ticket.Location, string(ticket.Status),
				ticket.CreatedAt, utils.ToNullString(ticket.CompletedAt), rating,
			)
		case err == nil:
			_, err = db.Exec(ctx, `
UPDATE repair_tickets
SET teacher_name = $2, department = $3, asset_number = $4, phone = $5, problem_type = $6,
    description = $7, location = $8, status = $9, created_at = $10, completed_at = $11,
    rating = $12, updated_at = NOW()
WHERE id = $1`,
				ticket.ID, ticket.TeacherName, ticket.Department, ticket.AssetNumber, ticket.Phone,
				ticket.ProblemType, ticket.Description, ticket.Location, string(ticket.Status),
				ticket.CreatedAt, utils.ToNullString(ticket.CompletedAt), rating,
			)
		}
		return err
	})
	if err != nil {
		return false, fmt.Errorf("upsert ticket %d: %w", ticket.ID, err)
	}
	return created, nil
}

func scanTicket(row pgx.Row) (domain.Ticket, error) {
	var (
		t           domain.Ticket
		status      string
		completedAt pgtype.Text
		rating      []byte
	)
	if err := row.Scan(&t.ID, &t.TeacherName, &t.Department, &t.AssetNumber, &t.Phone,
		&t.ProblemType, &t.Description, &t.Location, &status, &t.CreatedAt, &completedAt, &rating); err != nil {
		return domain.Ticket{}, fmt.Errorf("scan ticket: %w", err)
	}
	t.Status = domain.TicketStatus(status)
	t.CompletedAt = utils.FromNullString(completedAt)

	if len(rating) > 0 {
		var r domain.Rating
		if err := json.Unmarshal(rating, &r); err != nil {
			return domain.Ticket{}, fmt.Errorf("decode rating of ticket %d: %w", t.ID, err)
		}
		t.Rating = &r
	}
	return t, nil
}

func encodeRating(r *domain.Rating) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode rating: %w", err)
	}
	return b, nil
}
