// Package testutil provides in-memory repositories for service and handler tests.
package testutil

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"student-helpdesk/internal/models"
	"student-helpdesk/internal/repository"
)

var errNoRows = errors.New("no rows")

// -----------------------------------------------------------------------------
// Users
// -----------------------------------------------------------------------------

type UserRepo struct {
	mu     sync.Mutex
	users  map[string]models.User
	hashes map[string]string
}

func NewUserRepo() *UserRepo {
	return &UserRepo{users: map[string]models.User{}, hashes: map[string]string{}}
}

func (r *UserRepo) Create(_ context.Context, email, name, role, passwordHash string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return nil, repository.ErrDuplicate
		}
	}
	now := time.Now()
	u := models.User{ID: uuid.NewString(), Email: email, Name: name, Role: role, Active: true, CreatedAt: now, UpdatedAt: now}
	r.users[u.ID] = u
	r.hashes[u.ID] = passwordHash
	return &u, nil
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*models.User, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return &u, r.hashes[u.ID], nil
		}
	}
	return nil, "", nil
}

func (r *UserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *UserRepo) GetPasswordHash(_ context.Context, id string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hashes[id], nil
}

func (r *UserRepo) List(_ context.Context, q, role string, active *bool, limit, offset int) ([]models.User, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q = strings.ToLower(strings.TrimSpace(q))
	out := []models.User{}
	for _, u := range r.users {
		if q != "" && !strings.Contains(strings.ToLower(u.Email), q) && !strings.Contains(strings.ToLower(u.Name), q) {
			continue
		}
		if role != "" && u.Role != role {
			continue
		}
		if active != nil && u.Active != *active {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return page(out, limit, offset), len(out), nil
}

func (r *UserRepo) update(id string, fn func(*models.User)) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	fn(&u)
	u.UpdatedAt = time.Now()
	r.users[id] = u
	return &u, nil
}

func (r *UserRepo) UpdateRole(_ context.Context, id, role string) (*models.User, error) {
	return r.update(id, func(u *models.User) { u.Role = role })
}

func (r *UserRepo) SetActive(_ context.Context, id string, active bool) (*models.User, error) {
	return r.update(id, func(u *models.User) { u.Active = active })
}

func (r *UserRepo) UpdateBasic(_ context.Context, id, name string) (*models.User, error) {
	return r.update(id, func(u *models.User) { u.Name = name })
}

func (r *UserRepo) UpdatePasswordHash(_ context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return errNoRows
	}
	r.hashes[id] = passwordHash
	return nil
}

// -----------------------------------------------------------------------------
// Tickets
// -----------------------------------------------------------------------------

type TicketRepo struct {
	mu      sync.Mutex
	tickets map[string]models.Ticket
	users   *UserRepo // resolves assignee names, may be nil
}

func NewTicketRepo(users *UserRepo) *TicketRepo {
	return &TicketRepo{tickets: map[string]models.Ticket{}, users: users}
}

func (r *TicketRepo) withAssignee(t models.Ticket) models.Ticket {
	t.AssigneeName = ""
	if t.AssignedTo != "" && r.users != nil {
		if u, _ := r.users.GetByID(context.Background(), t.AssignedTo); u != nil {
			t.AssigneeName = u.Name
		}
	}
	t.HiddenFor = slices.Clone(t.HiddenFor)
	return t
}

func (r *TicketRepo) List(_ context.Context, f repository.TicketFilter) ([]models.Ticket, int, error) {
	f.Normalize(repository.ExportLimit)
	r.mu.Lock()
	defer r.mu.Unlock()

	q := strings.ToLower(strings.TrimSpace(f.Q))
	out := []models.Ticket{}
	for _, t := range r.tickets {
		switch {
		case q != "" && !strings.Contains(strings.ToLower(t.Title), q) && !strings.Contains(strings.ToLower(t.Description), q):
		case f.Status != "" && string(t.Status) != f.Status:
		case f.Category != "" && t.Category != f.Category:
		case f.SubCategory != "" && t.SubCategory != f.SubCategory:
		case f.Anonymous != nil && t.Anonymous != *f.Anonymous:
		case f.Owner != "" && t.UserID != f.Owner:
		case f.Assignee != "" && t.AssignedTo != f.Assignee:
		case f.Viewer != "" && t.HiddenBy(f.Viewer):
		case !f.From.IsZero() && t.CreatedAt.Before(f.From):
		case !f.To.IsZero() && !t.CreatedAt.Before(f.To):
		default:
			t = r.withAssignee(t)
			if t.Attachment != nil {
				a := *t.Attachment
				a.Data = ""
				t.Attachment = &a
			}
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		var less bool
		switch f.Sort {
		case "updated_at":
			less = out[i].UpdatedAt.Before(out[j].UpdatedAt)
		case "status":
			less = out[i].Status < out[j].Status
		default:
			less = out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		if f.Order == "desc" {
			return !less
		}
		return less
	})
	return page(out, f.Limit, f.Offset), len(out), nil
}

func (r *TicketRepo) Get(_ context.Context, id string) (*models.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil, nil
	}
	t = r.withAssignee(t)
	return &t, nil
}

func (r *TicketRepo) Create(_ context.Context, t *models.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	t.ID = uuid.NewString()
	if t.Status == "" {
		t.Status = models.StatusNew
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	r.tickets[t.ID] = *t
	return nil
}

func (r *TicketRepo) Update(_ context.Context, t *models.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.tickets[t.ID]
	if !ok {
		return errNoRows
	}
	cur.Category, cur.SubCategory = t.Category, t.SubCategory
	cur.Title, cur.Description = t.Title, t.Description
	cur.AssignedTo = t.AssignedTo
	cur.UpdatedAt = time.Now()
	t.UpdatedAt = cur.UpdatedAt
	r.tickets[t.ID] = cur
	return nil
}

func (r *TicketRepo) UpdateStatus(_ context.Context, id string, status models.TicketStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return errNoRows
	}
	t.Status = status
	t.UpdatedAt = time.Now()
	r.tickets[id] = t
	return nil
}

func (r *TicketRepo) SetRead(_ context.Context, id string, side repository.ReadSide, read bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil
	}
	if side == repository.ReadSideAdmin {
		t.ReadByAdmin = read
	} else {
		t.ReadByStudent = read
	}
	r.tickets[id] = t
	return nil
}

func (r *TicketRepo) Hide(_ context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok || t.HiddenBy(userID) {
		return nil
	}
	t.HiddenFor = append(slices.Clone(t.HiddenFor), userID)
	r.tickets[id] = t
	return nil
}

func (r *TicketRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[id]; !ok {
		return errNoRows
	}
	delete(r.tickets, id)
	return nil
}

func (r *TicketRepo) Stats(_ context.Context, since time.Time) (*models.TicketStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := &models.TicketStats{}
	byStatus, byCategory, byMonth := map[string]int{}, map[string]int{}, map[string]int{}
	weekAgo := time.Now().Add(-7 * 24 * time.Hour)
	for _, t := range r.tickets {
		if t.CreatedAt.Before(since) {
			continue
		}
		st.Total++
		if t.Anonymous {
			st.Anonymous++
		}
		if !t.ReadByAdmin {
			st.UnreadForAdmin++
		}
		if t.Status == models.StatusDone && !t.UpdatedAt.Before(weekAgo) {
			st.Resolved7d++
		}
		byStatus[string(t.Status)]++
		byCategory[t.Category]++
		byMonth[t.CreatedAt.Format("2006-01")]++
	}
	st.ByStatus, st.ByCategory, st.ByMonth = counts(byStatus), counts(byCategory), counts(byMonth)
	return st, nil
}

// -----------------------------------------------------------------------------
// Feedbacks
// -----------------------------------------------------------------------------

type FeedbackRepo struct {
	mu        sync.Mutex
	feedbacks []models.Feedback
}

func NewFeedbackRepo() *FeedbackRepo { return &FeedbackRepo{} }

func (r *FeedbackRepo) ListByTicket(_ context.Context, ticketID string) ([]models.Feedback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Feedback{}
	for _, f := range r.feedbacks {
		if f.TicketID == ticketID {
			f.ReadBy = cloneMap(f.ReadBy)
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *FeedbackRepo) Create(_ context.Context, f *models.Feedback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f.ID = uuid.NewString()
	f.CreatedAt = time.Now()
	if f.Attachments == nil {
		f.Attachments = []models.Attachment{}
	}
	if f.ReadBy == nil {
		f.ReadBy = map[string]bool{}
	}
	if f.AuthorID != "" {
		f.ReadBy[f.AuthorID] = true
	}
	stored := *f
	stored.ReadBy = cloneMap(f.ReadBy)
	r.feedbacks = append(r.feedbacks, stored)
	return nil
}

func (r *FeedbackRepo) MarkRead(_ context.Context, ticketID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.feedbacks {
		if r.feedbacks[i].TicketID == ticketID {
			r.feedbacks[i].ReadBy[userID] = true
		}
	}
	return nil
}

func (r *FeedbackRepo) CountUnread(_ context.Context, ticketID, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, f := range r.feedbacks {
		if f.TicketID == ticketID && !f.ReadBy[userID] {
			n++
		}
	}
	return n, nil
}

// -----------------------------------------------------------------------------
// Notifications
// -----------------------------------------------------------------------------

type notificationRow struct {
	n      models.Notification
	readBy map[string]bool
}

type NotificationRepo struct {
	mu   sync.Mutex
	rows []*notificationRow

	// FailCreate makes Create return an error, for best-effort paths.
	FailCreate bool
}

func NewNotificationRepo() *NotificationRepo { return &NotificationRepo{} }

func (r *NotificationRepo) Create(_ context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailCreate {
		return errors.New("notification store unavailable")
	}
	n.ID = uuid.NewString()
	n.CreatedAt = time.Now()
	n.Read = false
	r.rows = append(r.rows, &notificationRow{n: *n, readBy: map[string]bool{}})
	return nil
}

// All returns every stored notification in insertion order.
func (r *NotificationRepo) All() []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Notification, 0, len(r.rows))
	for _, row := range r.rows {
		out = append(out, row.n)
	}
	return out
}

func addressed(n models.Notification, rc models.Recipient) bool {
	if n.RecipientID != "" {
		return n.RecipientID == rc.UserID
	}
	return slices.Contains(n.RecipientRoles, rc.Role)
}

func (row *notificationRow) readFor(rc models.Recipient) bool {
	if row.n.RecipientID != "" {
		return row.n.Read
	}
	return row.readBy[rc.UserID]
}

func (r *NotificationRepo) List(_ context.Context, rc models.Recipient, unreadOnly bool, limit, offset int) ([]models.Notification, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Notification{}
	for i := len(r.rows) - 1; i >= 0; i-- {
		row := r.rows[i]
		if !addressed(row.n, rc) {
			continue
		}
		read := row.readFor(rc)
		if unreadOnly && read {
			continue
		}
		n := row.n
		n.Read = read
		out = append(out, n)
	}
	if limit <= 0 || limit > repository.MaxLimit {
		limit = repository.DefaultLimit
	}
	return page(out, limit, offset), len(out), nil
}

func (r *NotificationRepo) CountUnread(_ context.Context, rc models.Recipient) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, row := range r.rows {
		if addressed(row.n, rc) && !row.readFor(rc) {
			n++
		}
	}
	return n, nil
}

func (r *NotificationRepo) MarkRead(_ context.Context, id string, rc models.Recipient) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.n.ID != id {
			continue
		}
		if !addressed(row.n, rc) {
			return false, nil
		}
		if row.n.RecipientID != "" {
			row.n.Read = true
		} else {
			row.readBy[rc.UserID] = true
		}
		return true, nil
	}
	return false, nil
}

func (r *NotificationRepo) MarkAllRead(_ context.Context, rc models.Recipient) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, row := range r.rows {
		if !addressed(row.n, rc) || row.readFor(rc) {
			continue
		}
		if row.n.RecipientID != "" {
			row.n.Read = true
		} else {
			row.readBy[rc.UserID] = true
		}
		n++
	}
	return n, nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func counts(m map[string]int) []models.CountByKey {
	out := make([]models.CountByKey, 0, len(m))
	for k, v := range m {
		out = append(out, models.CountByKey{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func cloneMap(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

var (
	_ repository.UserRepository         = (*UserRepo)(nil)
	_ repository.TicketRepository       = (*TicketRepo)(nil)
	_ repository.FeedbackRepository     = (*FeedbackRepo)(nil)
	_ repository.NotificationRepository = (*NotificationRepo)(nil)
)
