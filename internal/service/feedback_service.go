package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"student-helpdesk/internal/models"
	"student-helpdesk/internal/repository"
	"student-helpdesk/internal/utils"
	"student-helpdesk/internal/validate"
)

const maxMessageLen = 5000

type FeedbackService struct {
	feedbacks repository.FeedbackRepository
	tickets   repository.TicketRepository
	access    *TicketService
	notes     *NotificationService
	log       zerolog.Logger

	maxAttachment int
}

func NewFeedbackService(feedbacks repository.FeedbackRepository, tickets *TicketService, notes *NotificationService, log zerolog.Logger) *FeedbackService {
	return &FeedbackService{
		feedbacks:     feedbacks,
		tickets:       tickets.tickets,
		access:        tickets,
		notes:         notes,
		log:           log,
		maxAttachment: tickets.maxAttachment,
	}
}

// Post adds a message to the ticket thread and flags the ticket unread for
// the other party. Students reach all staff; staff reach the owner.
func (s *FeedbackService) Post(ctx context.Context, actor utils.Identity, ticketID, message string, attachments []models.Attachment) (*models.Feedback, error) {
	t, err := s.access.load(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	msg, err := validate.Required("message", message, maxMessageLen)
	if err != nil {
		return nil, invalid("message", err)
	}
	if err := validate.Attachments(attachments, s.maxAttachment); err != nil {
		return nil, invalid("attachments", err)
	}
	for _, a := range attachments {
		if err := validate.OwnedBy(a, actor.UserID); err != nil {
			return nil, invalid("attachments", err)
		}
	}

	f := &models.Feedback{
		TicketID:    ticketID,
		Message:     msg,
		Attachments: attachments,
		AuthorID:    actor.UserID,
		AuthorName:  actor.Name,
		AuthorRole:  actor.Role,
	}
	if err := s.feedbacks.Create(ctx, f); err != nil {
		return nil, fmt.Errorf("create feedback: %w", err)
	}

	n := models.Notification{
		TicketID: ticketID,
		Type:     models.NotifyNewFeedback,
		Title:    "New feedback",
		Message:  t.Title,
	}
	other := repository.ReadSideAdmin
	if models.IsStaff(actor.Role) {
		other = repository.ReadSideStudent
		s.notes.notifyUser(ctx, actor, t.UserID, n)
	} else {
		sender := actor.Name
		if t.Anonymous {
			sender = anonymousName
		}
		s.notes.notifyStaff(ctx, actor, sender, n)
	}
	if err := s.tickets.SetRead(ctx, ticketID, other, false); err != nil {
		s.log.Warn().Err(err).Str("ticket_id", ticketID).Msg("flag ticket unread failed")
	}
	return f, nil
}

// List returns the thread oldest first and marks it read for the actor.
// Read maps in the result reflect the state before this call.
func (s *FeedbackService) List(ctx context.Context, actor utils.Identity, ticketID string) ([]models.Feedback, error) {
	if _, err := s.access.load(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	list, err := s.feedbacks.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.feedbacks.MarkRead(ctx, ticketID, actor.UserID); err != nil {
		s.log.Warn().Err(err).Str("ticket_id", ticketID).Msg("mark feedback read failed")
	}
	if err := s.tickets.SetRead(ctx, ticketID, sideOf(actor), true); err != nil {
		s.log.Warn().Err(err).Str("ticket_id", ticketID).Msg("mark ticket read failed")
	}
	return list, nil
}

func (s *FeedbackService) UnreadCount(ctx context.Context, actor utils.Identity, ticketID string) (int, error) {
	if _, err := s.access.load(ctx, actor, ticketID); err != nil {
		return 0, err
	}
	return s.feedbacks.CountUnread(ctx, ticketID, actor.UserID)
}

// AttachmentURL resolves attachment n of one feedback message the same way
// TicketService.AttachmentURL does for the ticket attachment.
func (s *FeedbackService) AttachmentURL(ctx context.Context, actor utils.Identity, ticketID, feedbackID string, n int) (string, error) {
	if _, err := s.access.load(ctx, actor, ticketID); err != nil {
		return "", err
	}
	list, err := s.feedbacks.ListByTicket(ctx, ticketID)
	if err != nil {
		return "", err
	}
	for _, f := range list {
		if f.ID != feedbackID {
			continue
		}
		if n < 0 || n >= len(f.Attachments) {
			return "", ErrNotFound
		}
		return s.access.resolveAttachment(ctx, &f.Attachments[n])
	}
	return "", ErrNotFound
}
