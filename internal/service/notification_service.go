package service

import (
	"context"

	"github.com/rs/zerolog"

	"student-helpdesk/internal/models"
	"student-helpdesk/internal/repository"
	"student-helpdesk/internal/utils"
)

type NotificationService struct {
	repo repository.NotificationRepository
	log  zerolog.Logger
}

func NewNotificationService(repo repository.NotificationRepository, log zerolog.Logger) *NotificationService {
	return &NotificationService{repo: repo, log: log}
}

func recipient(actor utils.Identity) models.Recipient {
	return models.Recipient{UserID: actor.UserID, Role: actor.Role}
}

func (s *NotificationService) List(ctx context.Context, actor utils.Identity, unreadOnly bool, limit, offset int) ([]models.Notification, int, error) {
	return s.repo.List(ctx, recipient(actor), unreadOnly, limit, offset)
}

func (s *NotificationService) UnreadCount(ctx context.Context, actor utils.Identity) (int, error) {
	return s.repo.CountUnread(ctx, recipient(actor))
}

// MarkRead is idempotent. Unread counts are derived from stored state, so
// repeating it cannot push the counter below zero.
func (s *NotificationService) MarkRead(ctx context.Context, actor utils.Identity, id string) error {
	if !utils.IsUUID(id) {
		return ErrNotFound
	}
	ok, err := s.repo.MarkRead(ctx, id, recipient(actor))
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, actor utils.Identity) (int, error) {
	return s.repo.MarkAllRead(ctx, recipient(actor))
}

// notify writes n best-effort: failures are logged and dropped, never retried.
func (s *NotificationService) notify(ctx context.Context, n models.Notification) {
	if err := s.repo.Create(ctx, &n); err != nil {
		s.log.Warn().Err(err).
			Str("ticket_id", n.TicketID).
			Str("type", string(n.Type)).
			Str("recipient_id", n.RecipientID).
			Strs("recipient_roles", n.RecipientRoles).
			Msg("notification write failed")
	}
}

// notifyUser sends a direct notification unless the recipient is the actor.
func (s *NotificationService) notifyUser(ctx context.Context, actor utils.Identity, userID string, n models.Notification) {
	if userID == "" || userID == actor.UserID {
		return
	}
	n.RecipientID = userID
	n.SenderID, n.SenderName = actor.UserID, actor.Name
	s.notify(ctx, n)
}

func (s *NotificationService) notifyStaff(ctx context.Context, actor utils.Identity, senderName string, n models.Notification) {
	n.RecipientRoles = models.StaffRoles
	n.SenderID, n.SenderName = actor.UserID, senderName
	s.notify(ctx, n)
}
