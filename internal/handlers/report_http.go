package handlers

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"student-helpdesk/internal/service"
	"student-helpdesk/internal/utils"
)

type ReportsHTTP struct {
	svc *service.TicketService
}

func NewReportsHTTP(svc *service.TicketService) *ReportsHTTP { return &ReportsHTTP{svc: svc} }

// GET /api/reports/summary?since=
func (h *ReportsHTTP) Summary() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		since := utils.QueryDate(r.URL.Query(), "since")
		st, err := h.svc.Summary(r.Context(), utils.IdentityFrom(r.Context()), since)
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.JSON(w, http.StatusOK, st)
	}
}

// GET /api/reports/export?format=csv|pdf plus the ticket list filters
func (h *ReportsHTTP) Export() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
		if format == "" {
			format = service.FormatCSV
		}

		// buffer so a failure midway still yields a JSON error
		var buf bytes.Buffer
		if err := h.svc.Export(r.Context(), utils.IdentityFrom(r.Context()), &buf, format, ticketFilter(r)); err != nil {
			writeError(w, r, err)
			return
		}

		ct := "text/csv; charset=utf-8"
		if format == service.FormatPDF {
			ct = "application/pdf"
		}
		name := "tickets-" + time.Now().Format("20060102") + "." + format
		w.Header().Set("Content-Type", ct)
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	}
}
