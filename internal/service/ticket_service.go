package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"student-helpdesk/internal/config"
	"student-helpdesk/internal/export"
	"student-helpdesk/internal/mailer"
	"student-helpdesk/internal/models"
	"student-helpdesk/internal/repository"
	"student-helpdesk/internal/storage"
	"student-helpdesk/internal/utils"
	"student-helpdesk/internal/validate"
)

// BlobStore presigns bucket access for attachments.
type BlobStore interface {
	PresignUpload(ctx context.Context, owner, filename, contentType string) (*storage.Upload, error)
	PresignDownload(ctx context.Context, key string) (string, error)
}

type MailSender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

const (
	maxTitleLen       = 150
	maxDescriptionLen = 5000
	maxNameLen        = 100
	anonymousName     = "Anonymous"
)

type CreateTicketInput struct {
	Name        string             `json:"name"`
	NIM         string             `json:"nim"`
	Program     string             `json:"program"`
	Phone       string             `json:"phone"`
	Category    string             `json:"category"`
	SubCategory string             `json:"subCategory"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Anonymous   bool               `json:"anonymous"`
	Attachment  *models.Attachment `json:"attachment"`
}

// UpdateTicketInput holds staff edits; nil fields are left unchanged.
// An empty AssignedTo clears the assignee.
type UpdateTicketInput struct {
	Category    *string `json:"category"`
	SubCategory *string `json:"subCategory"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	AssignedTo  *string `json:"assignedTo"`
}

type TokenReveal struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type TicketService struct {
	tickets   repository.TicketRepository
	feedbacks repository.FeedbackRepository
	users     repository.UserRepository
	notes     *NotificationService
	auth      *AuthService
	blobs     BlobStore
	mail      MailSender
	log       zerolog.Logger

	catalog       models.Catalog
	maxAttachment int
	tokenReveal   time.Duration
	now           func() time.Time
}

func NewTicketService(
	tickets repository.TicketRepository,
	feedbacks repository.FeedbackRepository,
	users repository.UserRepository,
	notes *NotificationService,
	auth *AuthService,
	cfg config.Config,
	log zerolog.Logger,
) *TicketService {
	return &TicketService{
		tickets:       tickets,
		feedbacks:     feedbacks,
		users:         users,
		notes:         notes,
		auth:          auth,
		log:           log,
		catalog:       cfg.Categories,
		maxAttachment: cfg.AttachmentMaxBytes,
		tokenReveal:   cfg.TokenReveal,
		now:           time.Now,
	}
}

// WithStorage enables bucket-backed attachments.
func (s *TicketService) WithStorage(b BlobStore) *TicketService { s.blobs = b; return s }

// WithMailer enables emailing ticket summaries.
func (s *TicketService) WithMailer(m MailSender) *TicketService { s.mail = m; return s }

func (s *TicketService) Categories() models.Catalog { return s.catalog }

// -----------------------------------------------------------------------------
// Create / read
// -----------------------------------------------------------------------------

// Create validates everything before the first write. The staff broadcast
// that follows is best-effort and independent of the ticket write.
func (s *TicketService) Create(ctx context.Context, actor utils.Identity, in CreateTicketInput) (*models.Ticket, error) {
	t := &models.Ticket{
		UserID:        actor.UserID,
		Anonymous:     in.Anonymous,
		Status:        models.StatusNew,
		ReadByAdmin:   false,
		ReadByStudent: true,
	}

	var err error
	if t.Title, err = validate.Required("title", in.Title, maxTitleLen); err != nil {
		return nil, invalid("title", err)
	}
	if t.Description, err = validate.Required("description", in.Description, maxDescriptionLen); err != nil {
		return nil, invalid("description", err)
	}
	t.Category = strings.TrimSpace(in.Category)
	t.SubCategory = strings.TrimSpace(in.SubCategory)
	if err := s.catalog.Validate(t.Category, t.SubCategory); err != nil {
		return nil, invalid("subCategory", err)
	}
	if err := s.reporterFields(t, in); err != nil {
		return nil, err
	}
	if in.Attachment != nil {
		a := *in.Attachment
		if _, err := validate.Attachment(&a, s.maxAttachment); err != nil {
			return nil, invalid("attachment", err)
		}
		if err := validate.OwnedBy(a, actor.UserID); err != nil {
			return nil, invalid("attachment", err)
		}
		t.Attachment = &a
	}
	if t.Anonymous {
		t.AnonToken = newAnonToken()
	}

	if err := s.tickets.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}

	sender := actor.Name
	if t.Anonymous {
		sender = anonymousName
	}
	s.notes.notifyStaff(ctx, actor, sender, models.Notification{
		TicketID: t.ID,
		Type:     models.NotifyNewTicket,
		Title:    "New ticket",
		Message:  t.Title,
	})

	v := t.ViewFor(actor.Role)
	return &v, nil
}

// reporterFields are mandatory for named tickets. Anonymous reporters may
// still supply them; they are kept for staff and redacted for everyone else.
func (s *TicketService) reporterFields(t *models.Ticket, in CreateTicketInput) error {
	name := strings.TrimSpace(in.Name)
	nim := strings.TrimSpace(in.NIM)
	program := strings.TrimSpace(in.Program)
	phone := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(in.Phone))

	if !t.Anonymous {
		var err error
		if name, err = validate.Required("name", name, maxNameLen); err != nil {
			return invalid("name", err)
		}
		if program, err = validate.Required("program", program, maxNameLen); err != nil {
			return invalid("program", err)
		}
		if nim == "" {
			return &ValidationError{Field: "nim", Msg: "nim is required"}
		}
		if phone == "" {
			return &ValidationError{Field: "phone", Msg: "phone is required"}
		}
	}
	if nim != "" {
		if err := validate.NIM(nim); err != nil {
			return invalid("nim", err)
		}
	}
	if phone != "" {
		if err := validate.Phone(phone); err != nil {
			return invalid("phone", err)
		}
	}
	t.Name, t.NIM, t.Program, t.Phone = optional(name), optional(nim), optional(program), optional(phone)
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// newAnonToken returns ANON- followed by 12 upper-case hex characters.
func newAnonToken() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ANON-" + strings.ToUpper(raw[:12])
}

// load returns the ticket if actor may see it: staff see every ticket,
// students only their own. Tickets the actor hid are reported missing.
func (s *TicketService) load(ctx context.Context, actor utils.Identity, id string) (*models.Ticket, error) {
	if !utils.IsUUID(id) {
		return nil, ErrNotFound
	}
	t, err := s.tickets.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil || t.HiddenBy(actor.UserID) {
		return nil, ErrNotFound
	}
	if !models.IsStaff(actor.Role) && t.UserID != actor.UserID {
		return nil, ErrNotFound
	}
	return t, nil
}

func (s *TicketService) Get(ctx context.Context, actor utils.Identity, id string) (*models.Ticket, error) {
	t, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	v := t.ViewFor(actor.Role)
	return &v, nil
}

// List applies the actor's visibility on top of f.
func (s *TicketService) List(ctx context.Context, actor utils.Identity, f repository.TicketFilter) ([]models.Ticket, int, error) {
	f.Normalize(repository.MaxLimit)
	return s.list(ctx, actor, f)
}

func (s *TicketService) list(ctx context.Context, actor utils.Identity, f repository.TicketFilter) ([]models.Ticket, int, error) {
	if f.Assignee != "" && !utils.IsUUID(f.Assignee) {
		return nil, 0, &ValidationError{Field: "assignee", Msg: "assignee must be a user id"}
	}
	f.Viewer = actor.UserID
	if !models.IsStaff(actor.Role) {
		f.Owner = actor.UserID
	}
	items, total, err := s.tickets.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	for i := range items {
		items[i] = items[i].ViewFor(actor.Role)
	}
	return items, total, nil
}

// -----------------------------------------------------------------------------
// Staff workflow
// -----------------------------------------------------------------------------

// UpdateStatus moves a ticket along new → in_progress → done (done may reopen
// to in_progress). Writing the current status is a no-op. A real transition
// notifies the owner and, when distinct from owner and actor, the assignee.
func (s *TicketService) UpdateStatus(ctx context.Context, actor utils.Identity, id string, status models.TicketStatus) (*models.Ticket, error) {
	if !models.IsStaff(actor.Role) {
		return nil, ErrForbidden
	}
	if !status.Valid() {
		return nil, &ValidationError{Field: "status", Msg: "unknown status " + string(status)}
	}
	t, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if t.Status == status {
		v := t.ViewFor(actor.Role)
		return &v, nil
	}
	if !models.CanTransition(t.Status, status) {
		return nil, ErrInvalidTransition
	}

	from := t.Status
	if err := s.tickets.UpdateStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	t.Status = status
	t.UpdatedAt = s.now()
	if err := s.tickets.SetRead(ctx, id, repository.ReadSideStudent, false); err != nil {
		s.log.Warn().Err(err).Str("ticket_id", id).Msg("flag ticket unread failed")
	}
	t.ReadByStudent = false

	n := models.Notification{
		TicketID: id,
		Type:     models.NotifyStatusChanged,
		Title:    "Ticket status changed",
		Message:  fmt.Sprintf("%q moved from %s to %s", t.Title, from, status),
	}
	s.notes.notifyUser(ctx, actor, t.UserID, n)
	if t.AssignedTo != t.UserID {
		s.notes.notifyUser(ctx, actor, t.AssignedTo, n)
	}

	v := t.ViewFor(actor.Role)
	return &v, nil
}

// Update applies staff edits. A new assignee must be an active staff member
// and is notified of the assignment.
func (s *TicketService) Update(ctx context.Context, actor utils.Identity, id string, in UpdateTicketInput) (*models.Ticket, error) {
	if !models.IsStaff(actor.Role) {
		return nil, ErrForbidden
	}
	t, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		if t.Title, err = validate.Required("title", *in.Title, maxTitleLen); err != nil {
			return nil, invalid("title", err)
		}
	}
	if in.Description != nil {
		if t.Description, err = validate.Required("description", *in.Description, maxDescriptionLen); err != nil {
			return nil, invalid("description", err)
		}
	}
	if in.Category != nil {
		t.Category = strings.TrimSpace(*in.Category)
	}
	if in.SubCategory != nil {
		t.SubCategory = strings.TrimSpace(*in.SubCategory)
	}
	if err := s.catalog.Validate(t.Category, t.SubCategory); err != nil {
		return nil, invalid("subCategory", err)
	}

	assigned := false
	if in.AssignedTo != nil && strings.TrimSpace(*in.AssignedTo) != t.AssignedTo {
		next := strings.TrimSpace(*in.AssignedTo)
		if next != "" {
			if !utils.IsUUID(next) {
				return nil, &ValidationError{Field: "assignedTo", Msg: "assignee must be an active staff member"}
			}
			u, err := s.users.GetByID(ctx, next)
			if err != nil {
				return nil, err
			}
			if u == nil || !u.Active || !models.IsStaff(u.Role) {
				return nil, &ValidationError{Field: "assignedTo", Msg: "assignee must be an active staff member"}
			}
			t.AssigneeName = u.Name
			assigned = true
		} else {
			t.AssigneeName = ""
		}
		t.AssignedTo = next
	}

	if err := s.tickets.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("update ticket: %w", err)
	}
	if assigned {
		s.notes.notifyUser(ctx, actor, t.AssignedTo, models.Notification{
			TicketID: id,
			Type:     models.NotifyAssigned,
			Title:    "Ticket assigned to you",
			Message:  t.Title,
		})
	}
	v := t.ViewFor(actor.Role)
	return &v, nil
}

// Hide removes the ticket from the actor's own lists only.
func (s *TicketService) Hide(ctx context.Context, actor utils.Identity, id string) error {
	if _, err := s.load(ctx, actor, id); err != nil {
		return err
	}
	return s.tickets.Hide(ctx, id, actor.UserID)
}

// Delete removes the ticket for everyone.
func (s *TicketService) Delete(ctx context.Context, actor utils.Identity, id string) error {
	if !models.IsStaff(actor.Role) {
		return ErrForbidden
	}
	t, err := s.tickets.Get(ctx, id)
	if err != nil {
		return err
	}
	if t == nil {
		return ErrNotFound
	}
	return s.tickets.Delete(ctx, id)
}

// MarkRead clears the unread flag on the actor's side of the ticket.
func (s *TicketService) MarkRead(ctx context.Context, actor utils.Identity, id string) error {
	if _, err := s.load(ctx, actor, id); err != nil {
		return err
	}
	return s.tickets.SetRead(ctx, id, sideOf(actor), true)
}

func sideOf(actor utils.Identity) repository.ReadSide {
	if models.IsStaff(actor.Role) {
		return repository.ReadSideAdmin
	}
	return repository.ReadSideStudent
}

// -----------------------------------------------------------------------------
// Anonymity token
// -----------------------------------------------------------------------------

// RevealToken returns the token to the ticket owner after re-authentication.
// Clients show it until ExpiresAt.
func (s *TicketService) RevealToken(ctx context.Context, actor utils.Identity, id, password string) (*TokenReveal, error) {
	t, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if t.UserID != actor.UserID {
		return nil, ErrForbidden
	}
	if !t.Anonymous || t.AnonToken == "" {
		return nil, ErrNotAnonymous
	}
	if err := s.auth.VerifyPassword(ctx, actor.UserID, password); err != nil {
		return nil, err
	}
	return &TokenReveal{Token: t.AnonToken, ExpiresAt: s.now().Add(s.tokenReveal)}, nil
}

// VerifyToken lets staff confirm a reporter's claim to an anonymous ticket.
func (s *TicketService) VerifyToken(ctx context.Context, actor utils.Identity, id, token string) (bool, error) {
	if !models.IsStaff(actor.Role) {
		return false, ErrForbidden
	}
	t, err := s.load(ctx, actor, id)
	if err != nil {
		return false, err
	}
	if !t.Anonymous || t.AnonToken == "" {
		return false, ErrNotAnonymous
	}
	return utils.SecureEqual(strings.ToUpper(strings.TrimSpace(token)), t.AnonToken), nil
}

// -----------------------------------------------------------------------------
// Attachments
// -----------------------------------------------------------------------------

// PresignAttachment returns an upload URL; the resulting storage path is then
// sent as a ticket or feedback attachment.
func (s *TicketService) PresignAttachment(ctx context.Context, actor utils.Identity, filename, contentType string) (*storage.Upload, error) {
	if s.blobs == nil {
		return nil, ErrStorageDisabled
	}
	return s.blobs.PresignUpload(ctx, actor.UserID, filename, contentType)
}

// AttachmentURL resolves the ticket attachment to something a browser can
// open: a presigned URL for stored files, a data URL for inline ones.
func (s *TicketService) AttachmentURL(ctx context.Context, actor utils.Identity, id string) (string, error) {
	t, err := s.load(ctx, actor, id)
	if err != nil {
		return "", err
	}
	if t.Attachment == nil {
		return "", ErrNotFound
	}
	return s.resolveAttachment(ctx, t.Attachment)
}

func (s *TicketService) resolveAttachment(ctx context.Context, a *models.Attachment) (string, error) {
	if a.StoragePath == "" {
		return "data:" + a.ContentType + ";base64," + a.Data, nil
	}
	if s.blobs == nil {
		return "", ErrStorageDisabled
	}
	return s.blobs.PresignDownload(ctx, a.StoragePath)
}

// -----------------------------------------------------------------------------
// Outbound mail and reporting
// -----------------------------------------------------------------------------

// EmailSummary mails a PDF summary of the ticket to an arbitrary address.
// The attachment is rendered as a non-staff viewer would see it so anonymous
// reporters stay anonymous outside the helpdesk.
func (s *TicketService) EmailSummary(ctx context.Context, actor utils.Identity, id, to, note string) error {
	if !models.IsStaff(actor.Role) {
		return ErrForbidden
	}
	if s.mail == nil {
		return ErrMailDisabled
	}
	addr, err := validate.Email(to)
	if err != nil {
		return invalid("to", err)
	}
	t, err := s.load(ctx, actor, id)
	if err != nil {
		return err
	}
	thread, err := s.feedbacks.ListByTicket(ctx, id)
	if err != nil {
		return err
	}

	var pdf bytes.Buffer
	if err := export.TicketPDF(&pdf, *t, thread, models.RoleStudent); err != nil {
		return fmt.Errorf("render ticket pdf: %w", err)
	}

	var body strings.Builder
	if note = strings.TrimSpace(note); note != "" {
		body.WriteString(note + "\n\n")
	}
	fmt.Fprintf(&body, "Ticket: %s\nCategory: %s / %s\nStatus: %s\nCreated: %s\n\n%s\n\nSent by %s.\n",
		t.Title, t.Category, t.SubCategory, t.Status, t.CreatedAt.Format(time.RFC1123), t.Description, actor.Name)

	return s.mail.Send(ctx, mailer.Message{
		To:      []string{addr},
		Subject: "[Helpdesk] " + t.Title,
		Text:    body.String(),
		Attachments: []mailer.Attachment{{
			Filename:    "ticket-" + t.ID + ".pdf",
			ContentType: "application/pdf",
			Data:        pdf.Bytes(),
		}},
	})
}

func (s *TicketService) Summary(ctx context.Context, actor utils.Identity, since time.Time) (*models.TicketStats, error) {
	if !models.IsStaff(actor.Role) {
		return nil, ErrForbidden
	}
	return s.tickets.Stats(ctx, since)
}

const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

// Export writes every ticket matching f, up to repository.ExportLimit.
func (s *TicketService) Export(ctx context.Context, actor utils.Identity, w io.Writer, format string, f repository.TicketFilter) error {
	if !models.IsStaff(actor.Role) {
		return ErrForbidden
	}
	if format != FormatCSV && format != FormatPDF {
		return &ValidationError{Field: "format", Msg: "format must be csv or pdf"}
	}
	f.Limit, f.Offset = repository.ExportLimit, 0
	f.Normalize(repository.ExportLimit)
	items, _, err := s.list(ctx, actor, f)
	if err != nil {
		return err
	}
	if format == FormatCSV {
		return export.WriteCSV(w, items, actor.Role)
	}
	stats, err := s.tickets.Stats(ctx, f.From)
	if err != nil {
		return err
	}
	return export.ReportPDF(w, stats, items, actor.Role)
}
