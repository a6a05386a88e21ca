package models

import "time"

type NotificationType string

const (
	NotifyNewTicket     NotificationType = "new_ticket"
	NotifyStatusChanged NotificationType = "status_changed"
	NotifyNewFeedback   NotificationType = "new_feedback"
	NotifyAssigned      NotificationType = "ticket_assigned"
)

// Notification targets either one user (RecipientID) or every user holding one
// of RecipientRoles. Read is resolved for the viewer that loaded it.
type Notification struct {
	ID             string           `json:"id"`
	TicketID       string           `json:"ticketId"`
	Type           NotificationType `json:"type"`
	Title          string           `json:"title"`
	Message        string           `json:"message"`
	RecipientID    string           `json:"recipientId,omitempty"`
	RecipientRoles []string         `json:"recipientRoles,omitempty"`
	Read           bool             `json:"read"`
	SenderID       string           `json:"senderId"`
	SenderName     string           `json:"senderName"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// Recipient identifies the viewer of a notification inbox.
type Recipient struct {
	UserID string
	Role   string
}
