package repository

import (
	"strings"
	"time"
)

type TicketFilter struct {
	Q           string
	Status      string
	Category    string
	SubCategory string
	Anonymous   *bool
	Owner       string // restrict to tickets submitted by this user
	Assignee    string
	Viewer      string // hide tickets this user soft-deleted
	From        time.Time
	To          time.Time
	Limit       int
	Offset      int
	Sort        string // created_at, updated_at, status
	Order       string // asc|desc
}

const (
	DefaultLimit = 20
	MaxLimit     = 200
	ExportLimit  = 5000
)

// Normalize clamps paging and sorting to supported values.
func (f *TicketFilter) Normalize(maxLimit int) {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	switch strings.ToLower(strings.TrimSpace(f.Sort)) {
	case "created_at", "updated_at", "status":
		f.Sort = strings.ToLower(strings.TrimSpace(f.Sort))
	default:
		f.Sort = "created_at"
	}
	switch strings.ToLower(strings.TrimSpace(f.Order)) {
	case "asc":
		f.Order = "asc"
	default:
		f.Order = "desc"
	}
}
