package models

import "time"

type TicketStatus string

const (
	StatusNew        TicketStatus = "new"
	StatusInProgress TicketStatus = "in_progress"
	StatusDone       TicketStatus = "done"
)

func (s TicketStatus) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// CanTransition reports whether a ticket may move from one status to another.
// done → in_progress is the manual reopen.
func CanTransition(from, to TicketStatus) bool {
	switch {
	case from == StatusNew && to == StatusInProgress:
		return true
	case from == StatusInProgress && to == StatusDone:
		return true
	case from == StatusDone && to == StatusInProgress:
		return true
	}
	return false
}

// Attachment is either inlined as base64 (Data) or stored in the bucket (StoragePath).
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	Data        string `json:"data,omitempty"`
	StoragePath string `json:"storagePath,omitempty"`
}

type Ticket struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`

	// Reporter fields; nil in views of anonymous tickets for non-staff viewers.
	Name    *string `json:"name"`
	NIM     *string `json:"nim"`
	Program *string `json:"program"`
	Phone   *string `json:"phone"`

	Category    string       `json:"category"`
	SubCategory string       `json:"subCategory"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Attachment  *Attachment  `json:"attachment,omitempty"`
	Status      TicketStatus `json:"status"`

	Anonymous    bool   `json:"anonymous"`
	AnonToken    string `json:"-"`
	AssignedTo   string `json:"assignedTo,omitempty"`
	AssigneeName string `json:"assigneeName,omitempty"`

	ReadByAdmin   bool     `json:"readByAdmin"`
	ReadByStudent bool     `json:"readByStudent"`
	HiddenFor     []string `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ViewFor returns the ticket as a viewer with the given role may see it.
func (t Ticket) ViewFor(role string) Ticket {
	v := t
	v.HiddenFor = nil
	if t.Anonymous && !IsStaff(role) {
		v.Name, v.NIM, v.Program, v.Phone = nil, nil, nil, nil
	}
	return v
}

// HiddenBy reports whether userID soft-deleted the ticket.
func (t Ticket) HiddenBy(userID string) bool {
	for _, id := range t.HiddenFor {
		if id == userID {
			return true
		}
	}
	return false
}

type CountByKey struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

type TicketStats struct {
	Total          int          `json:"total"`
	ByStatus       []CountByKey `json:"byStatus"`
	ByCategory     []CountByKey `json:"byCategory"`
	ByMonth        []CountByKey `json:"byMonth"`
	Anonymous      int          `json:"anonymous"`
	UnreadForAdmin int          `json:"unreadForAdmin"`
	Resolved7d     int          `json:"resolved7d"`
}
