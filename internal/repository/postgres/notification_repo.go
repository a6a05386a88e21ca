package postgres

import (
	"context"

	"student-helpdesk/internal/models"
	"student-helpdesk/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

type NotificationRepo struct{ db *pgxpool.Pool }

func NewNotificationRepo(db *pgxpool.Pool) repository.NotificationRepository {
	return &NotificationRepo{db: db}
}

// A notification reaches a viewer directly through recipient_id or as a role
// broadcast. Direct ones keep is_read; broadcasts record readers in read_by.
const (
	addressedTo  = `(recipient_id = $1::uuid OR $2::text = ANY(recipient_roles))`
	readByViewer = `(CASE WHEN recipient_id = $1::uuid THEN is_read ELSE $1::text = ANY(read_by) END)`
)

func (r *NotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	if n.RecipientRoles == nil {
		n.RecipientRoles = []string{}
	}
	return r.db.QueryRow(ctx, `
		INSERT INTO notifications (ticket_id, type, title, message, recipient_id, recipient_roles, sender_id, sender_name)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id, created_at
	`, nullIfEmpty(n.TicketID), n.Type, n.Title, n.Message, nullIfEmpty(n.RecipientID), n.RecipientRoles,
		nullIfEmpty(n.SenderID), n.SenderName).
		Scan(&n.ID, &n.CreatedAt)
}

// List returns the viewer's inbox newest first with Read resolved for them.
func (r *NotificationRepo) List(ctx context.Context, rc models.Recipient, unreadOnly bool, limit, offset int) ([]models.Notification, int, error) {
	if limit <= 0 || limit > repository.MaxLimit {
		limit = repository.DefaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	where := `WHERE ` + addressedTo
	if unreadOnly {
		where += ` AND NOT ` + readByViewer
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications `+where, rc.UserID, rc.Role).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, COALESCE(ticket_id::text, ''), type, title, message,
		       COALESCE(recipient_id::text, ''), recipient_roles, `+readByViewer+`,
		       COALESCE(sender_id::text, ''), sender_name, created_at
		FROM notifications
		`+where+`
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4
	`, rc.UserID, rc.Role, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.TicketID, &n.Type, &n.Title, &n.Message,
			&n.RecipientID, &n.RecipientRoles, &n.Read,
			&n.SenderID, &n.SenderName, &n.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, n)
	}
	return out, total, rows.Err()
}

// CountUnread is derived from stored read state so it never drifts below zero.
func (r *NotificationRepo) CountUnread(ctx context.Context, rc models.Recipient) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications
		WHERE `+addressedTo+` AND NOT `+readByViewer,
		rc.UserID, rc.Role).Scan(&n)
	return n, err
}

func (r *NotificationRepo) MarkRead(ctx context.Context, id string, rc models.Recipient) (bool, error) {
	var direct bool
	err := r.db.QueryRow(ctx, `
		SELECT recipient_id IS NOT DISTINCT FROM $1::uuid
		FROM notifications
		WHERE id = $3 AND `+addressedTo,
		rc.UserID, rc.Role, id).Scan(&direct)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, err
	}

	if direct {
		_, err = r.db.Exec(ctx, `UPDATE notifications SET is_read = true WHERE id = $1`, id)
	} else {
		_, err = r.db.Exec(ctx, `
			UPDATE notifications
			SET read_by = array_append(read_by, $2::text)
			WHERE id = $1 AND NOT ($2::text = ANY(read_by))
		`, id, rc.UserID)
	}
	return err == nil, err
}

// MarkAllRead returns how many notifications changed state for the viewer.
func (r *NotificationRepo) MarkAllRead(ctx context.Context, rc models.Recipient) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	direct, err := tx.Exec(ctx, `
		UPDATE notifications SET is_read = true
		WHERE recipient_id = $1::uuid AND NOT is_read
	`, rc.UserID)
	if err != nil {
		return 0, err
	}
	broadcast, err := tx.Exec(ctx, `
		UPDATE notifications
		SET read_by = array_append(read_by, $1::text)
		WHERE recipient_id IS NULL AND $2::text = ANY(recipient_roles) AND NOT ($1::text = ANY(read_by))
	`, rc.UserID, rc.Role)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return int(direct.RowsAffected() + broadcast.RowsAffected()), nil
}
