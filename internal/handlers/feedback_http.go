package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"student-helpdesk/internal/models"
	"student-helpdesk/internal/service"
	"student-helpdesk/internal/utils"
)

type FeedbackHTTP struct {
	svc *service.FeedbackService
}

func NewFeedbackHTTP(svc *service.FeedbackService) *FeedbackHTTP { return &FeedbackHTTP{svc: svc} }

// GET /api/tickets/{id}/feedbacks
// Items carry the read state from before this call; the thread is then marked read.
func (h *FeedbackHTTP) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := h.svc.List(r.Context(), utils.IdentityFrom(r.Context()), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.JSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
	}
}

// POST /api/tickets/{id}/feedbacks  {message, attachments}
func (h *FeedbackHTTP) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Message     string              `json:"message"`
			Attachments []models.Attachment `json:"attachments"`
		}
		if err := utils.Decode(r, &in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		fb, err := h.svc.Post(r.Context(), utils.IdentityFrom(r.Context()), chi.URLParam(r, "id"), in.Message, in.Attachments)
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.JSON(w, http.StatusCreated, fb)
	}
}

// GET /api/tickets/{id}/feedbacks/unread-count
func (h *FeedbackHTTP) UnreadCount() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := h.svc.UnreadCount(r.Context(), utils.IdentityFrom(r.Context()), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.JSON(w, http.StatusOK, map[string]int{"count": n})
	}
}

// GET /api/tickets/{id}/feedbacks/{fid}/attachments/{n}
func (h *FeedbackHTTP) Attachment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := strconv.Atoi(chi.URLParam(r, "n"))
		if err != nil {
			utils.Error(w, http.StatusNotFound, "not found")
			return
		}
		url, err := h.svc.AttachmentURL(r.Context(), utils.IdentityFrom(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "fid"), n)
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.JSON(w, http.StatusOK, map[string]string{"url": url})
	}
}
