package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"student-helpdesk/internal/models"
	"student-helpdesk/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TicketRepo struct{ db *pgxpool.Pool }

func NewTicketRepo(db *pgxpool.Pool) repository.TicketRepository { return &TicketRepo{db: db} }

// listColumns strips inline attachment data; Get returns it in full.
const listColumns = `
	t.id, t.user_id, t.reporter_name, t.reporter_nim, t.reporter_program, t.reporter_phone,
	t.category, t.sub_category, t.title, t.description, t.attachment - 'data', t.status,
	t.is_anonymous, COALESCE(t.anon_token, ''), COALESCE(t.assigned_to::text, ''), COALESCE(u.name, ''),
	t.read_by_admin, t.read_by_student, t.hidden_for, t.created_at, t.updated_at`

const fullColumns = `
	t.id, t.user_id, t.reporter_name, t.reporter_nim, t.reporter_program, t.reporter_phone,
	t.category, t.sub_category, t.title, t.description, t.attachment, t.status,
	t.is_anonymous, COALESCE(t.anon_token, ''), COALESCE(t.assigned_to::text, ''), COALESCE(u.name, ''),
	t.read_by_admin, t.read_by_student, t.hidden_for, t.created_at, t.updated_at`

func scanTicket(row pgx.Row) (*models.Ticket, error) {
	var t models.Ticket
	err := row.Scan(
		&t.ID, &t.UserID, &t.Name, &t.NIM, &t.Program, &t.Phone,
		&t.Category, &t.SubCategory, &t.Title, &t.Description, &t.Attachment, &t.Status,
		&t.Anonymous, &t.AnonToken, &t.AssignedTo, &t.AssigneeName,
		&t.ReadByAdmin, &t.ReadByStudent, &t.HiddenFor, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// -----------------------------------------------------------------------------
// Listing with filters + pagination + sort + assignee name join
// -----------------------------------------------------------------------------

// List returns one page of tickets and the total for the same filter set.
func (r *TicketRepo) List(ctx context.Context, f repository.TicketFilter) ([]models.Ticket, int, error) {
	f.Normalize(repository.ExportLimit)
	whereSQL, args := buildTicketWhere(f)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tickets t `+whereSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sql := fmt.Sprintf(`
		SELECT %s
		FROM tickets t
		LEFT JOIN users u ON u.id = t.assigned_to
		%s
		ORDER BY t.%s %s, t.id
		LIMIT $%d OFFSET $%d
	`, listColumns, whereSQL, f.Sort, f.Order, len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []models.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *t)
	}
	return out, total, rows.Err()
}

// -----------------------------------------------------------------------------
// Single ticket + create/update
// -----------------------------------------------------------------------------

func (r *TicketRepo) Get(ctx context.Context, id string) (*models.Ticket, error) {
	t, err := scanTicket(r.db.QueryRow(ctx, `
		SELECT `+fullColumns+`
		FROM tickets t
		LEFT JOIN users u ON u.id = t.assigned_to
		WHERE t.id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

func (r *TicketRepo) Create(ctx context.Context, t *models.Ticket) error {
	now := time.Now()
	if t.Status == "" {
		t.Status = models.StatusNew
	}
	return r.db.QueryRow(ctx, `
		INSERT INTO tickets (
			user_id, reporter_name, reporter_nim, reporter_program, reporter_phone,
			category, sub_category, title, description, attachment, status,
			is_anonymous, anon_token, assigned_to, read_by_admin, read_by_student,
			created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		RETURNING id, created_at, updated_at
	`,
		t.UserID, t.Name, t.NIM, t.Program, t.Phone,
		t.Category, t.SubCategory, t.Title, t.Description, t.Attachment, t.Status,
		t.Anonymous, nullIfEmpty(t.AnonToken), nullIfEmpty(t.AssignedTo), t.ReadByAdmin, t.ReadByStudent,
		now, now,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

// Update writes the staff-editable fields.
func (r *TicketRepo) Update(ctx context.Context, t *models.Ticket) error {
	t.UpdatedAt = time.Now()
	ct, err := r.db.Exec(ctx, `
		UPDATE tickets SET
			category=$1, sub_category=$2, title=$3, description=$4, assigned_to=$5, updated_at=$6
		WHERE id=$7
	`,
		t.Category, t.SubCategory, t.Title, t.Description, nullIfEmpty(t.AssignedTo), t.UpdatedAt, t.ID,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *TicketRepo) UpdateStatus(ctx context.Context, id string, status models.TicketStatus) error {
	ct, err := r.db.Exec(ctx, `UPDATE tickets SET status=$1, updated_at=now() WHERE id=$2`, status, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *TicketRepo) SetRead(ctx context.Context, id string, side repository.ReadSide, read bool) error {
	col := "read_by_student"
	if side == repository.ReadSideAdmin {
		col = "read_by_admin"
	}
	_, err := r.db.Exec(ctx, `UPDATE tickets SET `+col+`=$1 WHERE id=$2`, read, id)
	return err
}

// Hide appends userID to hidden_for once.
func (r *TicketRepo) Hide(ctx context.Context, id, userID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE tickets
		SET hidden_for = array_append(hidden_for, $2::text)
		WHERE id = $1 AND NOT ($2::text = ANY(hidden_for))
	`, id, userID)
	return err
}

// Delete removes the ticket; feedbacks and notifications cascade.
func (r *TicketRepo) Delete(ctx context.Context, id string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// -----------------------------------------------------------------------------
// Reporting
// -----------------------------------------------------------------------------

// Stats aggregates tickets created since the given time (zero = all time).
func (r *TicketRepo) Stats(ctx context.Context, since time.Time) (*models.TicketStats, error) {
	st := &models.TicketStats{}
	err := r.db.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE is_anonymous),
			COUNT(*) FILTER (WHERE NOT read_by_admin),
			COUNT(*) FILTER (WHERE status = 'done' AND updated_at >= now() - interval '7 days')
		FROM tickets
		WHERE created_at >= $1
	`, since).Scan(&st.Total, &st.Anonymous, &st.UnreadForAdmin, &st.Resolved7d)
	if err != nil {
		return nil, err
	}

	if st.ByStatus, err = r.countBy(ctx, `status`, since); err != nil {
		return nil, err
	}
	if st.ByCategory, err = r.countBy(ctx, `category`, since); err != nil {
		return nil, err
	}
	if st.ByMonth, err = r.countBy(ctx, `to_char(date_trunc('month', created_at), 'YYYY-MM')`, since); err != nil {
		return nil, err
	}
	return st, nil
}

func (r *TicketRepo) countBy(ctx context.Context, expr string, since time.Time) ([]models.CountByKey, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+expr+` AS k, COUNT(*)
		FROM tickets
		WHERE created_at >= $1
		GROUP BY k
		ORDER BY k
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.CountByKey{}
	for rows.Next() {
		var c models.CountByKey
		if err := rows.Scan(&c.Key, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// buildTicketWhere composes WHERE clause and args for the filter set.
func buildTicketWhere(f repository.TicketFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	// free-text search (ILIKE)
	if s := strings.TrimSpace(f.Q); s != "" {
		p := "%" + s + "%"
		args = append(args, p)
		clauses = append(clauses, "(t.title ILIKE $"+itoa(len(args))+" OR t.description ILIKE $"+itoa(len(args))+")")
	}

	// exact filters
	if s := strings.TrimSpace(f.Status); s != "" {
		args = append(args, s)
		clauses = append(clauses, "t.status = $"+itoa(len(args)))
	}
	if s := strings.TrimSpace(f.Category); s != "" {
		args = append(args, s)
		clauses = append(clauses, "t.category = $"+itoa(len(args)))
	}
	if s := strings.TrimSpace(f.SubCategory); s != "" {
		args = append(args, s)
		clauses = append(clauses, "t.sub_category = $"+itoa(len(args)))
	}
	if f.Anonymous != nil {
		args = append(args, *f.Anonymous)
		clauses = append(clauses, "t.is_anonymous = $"+itoa(len(args)))
	}
	if s := strings.TrimSpace(f.Owner); s != "" {
		args = append(args, s)
		clauses = append(clauses, "t.user_id = $"+itoa(len(args))+"::uuid")
	}
	if s := strings.TrimSpace(f.Assignee); s != "" {
		args = append(args, s)
		clauses = append(clauses, "t.assigned_to = $"+itoa(len(args))+"::uuid")
	}
	if s := strings.TrimSpace(f.Viewer); s != "" {
		args = append(args, s)
		clauses = append(clauses, "NOT ($"+itoa(len(args))+"::text = ANY(t.hidden_for))")
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		clauses = append(clauses, "t.created_at >= $"+itoa(len(args)))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		clauses = append(clauses, "t.created_at < $"+itoa(len(args)))
	}

	return "WHERE " + strings.Join(clauses, " AND "), args
}

func isNoRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

// small helper to avoid fmt for performance-sensitive path.
func itoa(i int) string { return strconv.Itoa(i) }
