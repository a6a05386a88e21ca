package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"student-helpdesk/internal/models"
	"student-helpdesk/internal/repository"
	"student-helpdesk/internal/service"
	"student-helpdesk/internal/utils"
)

// TicketHTTP wires ticket endpoints to the ticket service.
type TicketHTTP struct {
	svc *service.TicketService
}

func NewTicketHTTP(svc *service.TicketService) *TicketHTTP {
	return &TicketHTTP{svc: svc}
}

// ticketFilter reads the shared list/export filter from the query string.
func ticketFilter(r *http.Request) repository.TicketFilter {
	qv := r.URL.Query()
	return repository.TicketFilter{
		Q:           strings.TrimSpace(qv.Get("q")),
		Status:      strings.TrimSpace(qv.Get("status")),
		Category:    strings.TrimSpace(qv.Get("category")),
		SubCategory: strings.TrimSpace(qv.Get("subCategory")),
		Anonymous:   utils.QueryBool(qv, "anonymous"),
		Assignee:    strings.TrimSpace(qv.Get("assignee")),
		From:        utils.QueryDate(qv, "from"),
		To:          utils.QueryDate(qv, "to"),
		Limit:       utils.QueryInt(qv, "limit", repository.DefaultLimit),
		Offset:      utils.QueryInt(qv, "offset", 0),
		Sort:        qv.Get("sort"),
		Order:       qv.Get("order"),
	}
}

// -----------------------------------------------------------------------------
// GET /api/tickets?q=&status=&category=&subCategory=&anonymous=&assignee=&from=&to=&limit=&offset=&sort=&order=
// -----------------------------------------------------------------------------
func (h *TicketHTTP) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := ticketFilter(r)
		items, total, err := h.svc.List(r.Context(), utils.IdentityFrom(r.Context()), f)
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.JSON(w, http.StatusOK, map[string]any{
			"items":  items,
			"total":  total,
			"limit":  f.Limit,
			"offset": f.Offset,
		})
	}
}

// GET /api/categories
func (h *TicketHTTP) Categories() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		utils.JSON(w, http.StatusOK, h.svc.Categories())
	}
}

// -----------------------------------------------------------------------------
// POST /api/tickets
// -----------------------------------------------------------------------------
func (h *TicketHTTP) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.CreateTicketInput
		if err := utils.Decode(r, &in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		t, err := h.svc.Create(r.Context(), utils.IdentityFrom(r.Context()), in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.JSON(w, http.StatusCreated, t)
	}
}

// -----------------------------------------------------------------------------
// GET /api/tickets/{id}
// -----------------------------------------------------------------------------
func (h *TicketHTTP) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := h.svc.Get(r.Context(), utils.IdentityFrom(r.Context()), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.JSON(w, http.StatusOK, t)
	}
}

// -----------------------------------------------------------------------------
// PATCH /api/tickets/{id}  (staff)
// -----------------------------------------------------------------------------
func (h *TicketHTTP) Update() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.UpdateTicketInput
		if err := utils.Decode(r, &in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		t, err := h.svc.Update(r.Context(), utils.IdentityFrom(r.Context()), chi.URLParam(r, "id"), in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.JSON(w, http.StatusOK, t)
	}
}

// -----------------------------------------------------------------------------
// PATCH /api/tickets/{id}/status  (staff)
// -----------------------------------------------------------------------------
func (h *TicketHTTP) UpdateStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Status string `json:"status"`
		}
		if err := utils.Decode(r, &in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		status := models.TicketStatus(strings.ToLower(strings.TrimSpace(in.Status)))
		t, err := h.svc.UpdateStatus(r.Context(), utils.IdentityFrom(r.Context()), chi.URLParam(r, "id"), status)
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.JSON(w, http.StatusOK, t)
	}
}

// -----------------------------------------------------------------------------
// DELETE /api/tickets/{id}          hide for the caller
// DELETE /api/tickets/{id}/purge    remove for everyone (staff)
// -----------------------------------------------------------------------------
func (h *TicketHTTP) Hide() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.svc.Hide(r.Context(), utils.IdentityFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *TicketHTTP) Purge() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.svc.Delete(r.Context(), utils.IdentityFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /api/tickets/{id}/read
func (h *TicketHTTP) MarkRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.svc.MarkRead(r.Context(), utils.IdentityFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// -----------------------------------------------------------------------------
// Anonymous token
// -----------------------------------------------------------------------------

// POST /api/tickets/{id}/token/reveal  {password}
func (h *TicketHTTP) RevealToken() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Password string `json:"password"`
		}
		if err := utils.Decode(r, &in); err != nil || in.Password == "" {
			utils.Error(w, http.StatusBadRequest, "password is required")
			return
		}
		rev, err := h.svc.RevealToken(r.Context(), utils.IdentityFrom(r.Context()), chi.URLParam(r, "id"), in.Password)
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.JSON(w, http.StatusOK, rev)
	}
}

// POST /api/tickets/{id}/token/verify  {token}  (staff)
func (h *TicketHTTP) VerifyToken() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Token string `json:"token"`
		}
		if err := utils.Decode(r, &in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		ok, err := h.svc.VerifyToken(r.Context(), utils.IdentityFrom(r.Context()), chi.URLParam(r, "id"), in.Token)
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.JSON(w, http.StatusOK, map[string]bool{"valid": ok})
	}
}

// -----------------------------------------------------------------------------
// Attachment + email
// -----------------------------------------------------------------------------

// GET /api/tickets/{id}/attachment
func (h *TicketHTTP) Attachment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url, err := h.svc.AttachmentURL(r.Context(), utils.IdentityFrom(r.Context()), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.JSON(w, http.StatusOK, map[string]string{"url": url})
	}
}

// POST /api/tickets/{id}/email  {to, note}  (staff)
func (h *TicketHTTP) Email() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			To   string `json:"to"`
			Note string `json:"note"`
		}
		if err := utils.Decode(r, &in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		if err := h.svc.EmailSummary(r.Context(), utils.IdentityFrom(r.Context()), chi.URLParam(r, "id"), in.To, in.Note); err != nil {
			writeError(w, r, err)
			return
		}
		utils.JSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
	}
}
