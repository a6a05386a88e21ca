package models

import "time"

type Feedback struct {
	ID          string          `json:"id"`
	TicketID    string          `json:"ticketId"`
	Message     string          `json:"message"`
	Attachments []Attachment    `json:"attachments"`
	AuthorID    string          `json:"authorId"`
	AuthorName  string          `json:"authorName"`
	AuthorRole  string          `json:"authorRole"`
	ReadBy      map[string]bool `json:"readBy"`
	CreatedAt   time.Time       `json:"createdAt"`
}
