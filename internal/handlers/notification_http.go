package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"student-helpdesk/internal/repository"
	"student-helpdesk/internal/service"
	"student-helpdesk/internal/utils"
)

type NotificationHTTP struct {
	svc *service.NotificationService
}

func NewNotificationHTTP(svc *service.NotificationService) *NotificationHTTP {
	return &NotificationHTTP{svc: svc}
}

// GET /api/notifications?unread=&limit=&offset=
func (h *NotificationHTTP) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qv := r.URL.Query()
		unread := utils.QueryBool(qv, "unread")
		limit := utils.QueryInt(qv, "limit", repository.DefaultLimit)
		offset := utils.QueryInt(qv, "offset", 0)

		items, total, err := h.svc.List(r.Context(), utils.IdentityFrom(r.Context()), unread != nil && *unread, limit, offset)
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.JSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
	}
}

// GET /api/notifications/unread-count
func (h *NotificationHTTP) UnreadCount() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := h.svc.UnreadCount(r.Context(), utils.IdentityFrom(r.Context()))
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.JSON(w, http.StatusOK, map[string]int{"count": n})
	}
}

// POST /api/notifications/{id}/read
func (h *NotificationHTTP) MarkRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.svc.MarkRead(r.Context(), utils.IdentityFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /api/notifications/read-all
func (h *NotificationHTTP) MarkAllRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := h.svc.MarkAllRead(r.Context(), utils.IdentityFrom(r.Context()))
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.JSON(w, http.StatusOK, map[string]int{"updated": n})
	}
}
