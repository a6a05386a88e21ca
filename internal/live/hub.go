// Package live fans database change events out to connected clients.
package live

import (
	"encoding/json"
	"slices"
	"sync"
	"sync/atomic"

	"student-helpdesk/internal/models"
)

const (
	KindTicket       = "ticket"
	KindFeedback     = "feedback"
	KindNotification = "notification"
	KindResync       = "resync"
)

// Event carries ids and routing fields only; clients re-fetch what changed.
type Event struct {
	Kind           string   `json:"kind"`
	ID             string   `json:"id,omitempty"`
	TicketID       string   `json:"ticketId,omitempty"`
	OwnerID        string   `json:"ownerId,omitempty"`
	Status         string   `json:"status,omitempty"`
	RecipientID    string   `json:"recipientId,omitempty"`
	RecipientRoles []string `json:"recipientRoles,omitempty"`
}

func Decode(payload string) (Event, error) {
	var e Event
	err := json.Unmarshal([]byte(payload), &e)
	return e, err
}

// VisibleTo reports whether a user with the given role should hear about e.
func (e Event) VisibleTo(userID, role string) bool {
	switch e.Kind {
	case KindResync:
		return true
	case KindNotification:
		if e.RecipientID != "" {
			return e.RecipientID == userID
		}
		return slices.Contains(e.RecipientRoles, role)
	case KindTicket, KindFeedback:
		return models.IsStaff(role) || e.OwnerID == userID
	}
	return false
}

// SubscriberBuffer is the per-subscriber channel size. A full buffer drops
// the event and marks the subscriber for resync.
const SubscriberBuffer = 64

type Subscriber struct {
	UserID string
	Role   string

	ch     chan Event
	resync atomic.Bool
}

func (s *Subscriber) Events() <-chan Event { return s.ch }

// TakeResync reports and clears a pending overflow.
func (s *Subscriber) TakeResync() bool { return s.resync.Swap(false) }

type Hub struct {
	mu   sync.Mutex
	subs map[*Subscriber]struct{}
}

func NewHub() *Hub { return &Hub{subs: map[*Subscriber]struct{}{}} }

func (h *Hub) Subscribe(userID, role string) *Subscriber {
	s := &Subscriber{UserID: userID, Role: role, ch: make(chan Event, SubscriberBuffer)}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Unsubscribe removes s and closes its channel. Safe to call twice.
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.ch)
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Publish delivers e to every subscriber allowed to see it without blocking.
func (h *Hub) Publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		if !e.VisibleTo(s.UserID, s.Role) {
			continue
		}
		select {
		case s.ch <- e:
		default:
			s.resync.Store(true)
		}
	}
}

// Resync tells every subscriber its view may be stale.
func (h *Hub) Resync() { h.Publish(Event{Kind: KindResync}) }
