// Package export renders ticket lists and summaries as CSV and PDF.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"student-helpdesk/internal/models"
)

var csvHeader = []string{
	"id", "created_at", "status", "category", "sub_category", "title",
	"anonymous", "name", "nim", "program", "phone", "assignee", "updated_at",
}

// WriteCSV writes tickets as seen by a viewer with the given role.
func WriteCSV(w io.Writer, tickets []models.Ticket, role string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, t := range tickets {
		v := t.ViewFor(role)
		if err := cw.Write([]string{
			v.ID,
			v.CreatedAt.Format(time.RFC3339),
			string(v.Status),
			v.Category,
			v.SubCategory,
			v.Title,
			strconv.FormatBool(v.Anonymous),
			deref(v.Name),
			deref(v.NIM),
			deref(v.Program),
			deref(v.Phone),
			v.AssigneeName,
			v.UpdatedAt.Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
