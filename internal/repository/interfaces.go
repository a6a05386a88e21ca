package repository

import (
	"context"
	"errors"
	"time"

	"student-helpdesk/internal/models"
)

// ErrDuplicate is returned when a unique key (such as a user email) is taken.
var ErrDuplicate = errors.New("duplicate key")

// ReadSide selects which per-role read flag of a ticket is touched.
type ReadSide string

const (
	ReadSideAdmin   ReadSide = "admin"
	ReadSideStudent ReadSide = "student"
)

type TicketRepository interface {
	List(ctx context.Context, f TicketFilter) ([]models.Ticket, int, error)
	Get(ctx context.Context, id string) (*models.Ticket, error)
	Create(ctx context.Context, t *models.Ticket) error
	Update(ctx context.Context, t *models.Ticket) error
	UpdateStatus(ctx context.Context, id string, status models.TicketStatus) error
	SetRead(ctx context.Context, id string, side ReadSide, read bool) error
	Hide(ctx context.Context, id, userID string) error
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context, since time.Time) (*models.TicketStats, error)
}

type FeedbackRepository interface {
	ListByTicket(ctx context.Context, ticketID string) ([]models.Feedback, error)
	Create(ctx context.Context, f *models.Feedback) error
	MarkRead(ctx context.Context, ticketID, userID string) error
	CountUnread(ctx context.Context, ticketID, userID string) (int, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, r models.Recipient, unreadOnly bool, limit, offset int) ([]models.Notification, int, error)
	CountUnread(ctx context.Context, r models.Recipient) (int, error)
	// MarkRead reports whether the notification is addressed to r.
	MarkRead(ctx context.Context, id string, r models.Recipient) (bool, error)
	MarkAllRead(ctx context.Context, r models.Recipient) (int, error)
}

type UserRepository interface {
	Create(ctx context.Context, email, name, role, passwordHash string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, string /*passwordHash*/, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetPasswordHash(ctx context.Context, id string) (string, error)
	List(ctx context.Context, q, role string, active *bool, limit, offset int) ([]models.User, int, error)
	UpdateRole(ctx context.Context, id, role string) (*models.User, error)
	SetActive(ctx context.Context, id string, active bool) (*models.User, error)
	UpdateBasic(ctx context.Context, id, name string) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
}
