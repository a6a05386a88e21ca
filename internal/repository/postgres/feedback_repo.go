package postgres

import (
	"context"

	"student-helpdesk/internal/models"
	"student-helpdesk/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

type FeedbackRepo struct{ db *pgxpool.Pool }

func NewFeedbackRepo(db *pgxpool.Pool) repository.FeedbackRepository { return &FeedbackRepo{db: db} }

// ListByTicket returns the thread oldest first.
func (r *FeedbackRepo) ListByTicket(ctx context.Context, ticketID string) ([]models.Feedback, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, ticket_id, message, attachments, COALESCE(author_id::text, ''),
		       author_name, author_role, read_by, created_at
		FROM feedbacks
		WHERE ticket_id = $1
		ORDER BY created_at ASC, id
	`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Feedback{}
	for rows.Next() {
		var f models.Feedback
		if err := rows.Scan(&f.ID, &f.TicketID, &f.Message, &f.Attachments, &f.AuthorID,
			&f.AuthorName, &f.AuthorRole, &f.ReadBy, &f.CreatedAt); err != nil {
			return nil, err
		}
		if f.Attachments == nil {
			f.Attachments = []models.Attachment{}
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Create stores f; the author has implicitly read their own message.
func (r *FeedbackRepo) Create(ctx context.Context, f *models.Feedback) error {
	if f.Attachments == nil {
		f.Attachments = []models.Attachment{}
	}
	if f.ReadBy == nil {
		f.ReadBy = map[string]bool{}
	}
	if f.AuthorID != "" {
		f.ReadBy[f.AuthorID] = true
	}
	return r.db.QueryRow(ctx, `
		INSERT INTO feedbacks (ticket_id, message, attachments, author_id, author_name, author_role, read_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, created_at
	`, f.TicketID, f.Message, f.Attachments, nullIfEmpty(f.AuthorID), f.AuthorName, f.AuthorRole, f.ReadBy).
		Scan(&f.ID, &f.CreatedAt)
}

func (r *FeedbackRepo) MarkRead(ctx context.Context, ticketID, userID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE feedbacks
		SET read_by = read_by || jsonb_build_object($2::text, true)
		WHERE ticket_id = $1 AND NOT (read_by ? $2::text)
	`, ticketID, userID)
	return err
}

func (r *FeedbackRepo) CountUnread(ctx context.Context, ticketID, userID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM feedbacks
		WHERE ticket_id = $1 AND NOT (read_by ? $2::text)
	`, ticketID, userID).Scan(&n)
	return n, err
}
