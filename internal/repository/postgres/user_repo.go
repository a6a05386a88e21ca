package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"student-helpdesk/internal/models"
	"student-helpdesk/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepo struct{ db *pgxpool.Pool }

func NewUserRepo(db *pgxpool.Pool) repository.UserRepository { return &UserRepo{db: db} }

// uniqueViolation is the Postgres SQLSTATE for a unique index conflict.
const uniqueViolation = "23505"

const userColumns = `id, email, name, role, active, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// Create user (stores bcrypt hash in password_h)
func (r *UserRepo) Create(ctx context.Context, email, name, role, passwordHash string) (*models.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `
		INSERT INTO users (email, name, role, password_h)
		VALUES ($1,$2,$3,$4)
		RETURNING `+userColumns,
		email, name, role, passwordHash))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return nil, repository.ErrDuplicate
	}
	return u, err
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, string, error) {
	var u models.User
	var ph string
	err := r.db.QueryRow(ctx, `
		SELECT id, email, name, role, active, password_h, created_at, updated_at
		FROM users WHERE email=$1`, email).
		Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.Active, &ph, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", nil
		}
		return nil, "", err
	}
	return &u, ph, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
}

// GetPasswordHash returns "" when the user does not exist.
func (r *UserRepo) GetPasswordHash(ctx context.Context, id string) (string, error) {
	var ph string
	err := r.db.QueryRow(ctx, `SELECT password_h FROM users WHERE id=$1`, id).Scan(&ph)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return ph, err
}

// -----------------------------------------------------------------------------
// Admin/list/update operations
// -----------------------------------------------------------------------------

// List returns a filtered, paginated list of users and total count.
// Filters: q (matches email or name, ILIKE), role (exact), active (*bool).
func (r *UserRepo) List(ctx context.Context, q, role string, active *bool, limit, offset int) ([]models.User, int, error) {
	if limit <= 0 || limit > repository.MaxLimit {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	clauses := []string{"1=1"}
	args := []any{}

	if s := strings.TrimSpace(q); s != "" {
		p := "%" + s + "%"
		args = append(args, p, p)
		clauses = append(clauses, "(email ILIKE $"+itoa(len(args)-1)+" OR name ILIKE $"+itoa(len(args))+")")
	}
	if s := strings.TrimSpace(role); s != "" {
		args = append(args, s)
		clauses = append(clauses, "role = $"+itoa(len(args)))
	}
	if active != nil {
		args = append(args, *active)
		clauses = append(clauses, "active = $"+itoa(len(args)))
	}

	// Count
	countSQL := `SELECT COUNT(*) FROM users WHERE ` + strings.Join(clauses, " AND ")
	var total int
	if err := r.db.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	// Page
	args = append(args, limit, offset)
	listSQL := fmt.Sprintf(`
		SELECT %s
		FROM users
		WHERE %s
		ORDER BY updated_at DESC
		LIMIT $%d OFFSET $%d
	`, userColumns, strings.Join(clauses, " AND "), len(args)-1, len(args))
	rows, err := r.db.Query(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

func (r *UserRepo) UpdateRole(ctx context.Context, id, role string) (*models.User, error) {
	return scanUser(r.db.QueryRow(ctx, `
		UPDATE users
		SET role=$1, updated_at=now()
		WHERE id=$2
		RETURNING `+userColumns, role, id))
}

func (r *UserRepo) SetActive(ctx context.Context, id string, active bool) (*models.User, error) {
	return scanUser(r.db.QueryRow(ctx, `
		UPDATE users
		SET active=$1, updated_at=now()
		WHERE id=$2
		RETURNING `+userColumns, active, id))
}

func (r *UserRepo) UpdateBasic(ctx context.Context, id, name string) (*models.User, error) {
	return scanUser(r.db.QueryRow(ctx, `
		UPDATE users
		SET name=$1, updated_at=now()
		WHERE id=$2
		RETURNING `+userColumns, name, id))
}

func (r *UserRepo) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE users
		SET password_h=$1, updated_at=now()
		WHERE id=$2
	`, passwordHash, id)
	return err
}
