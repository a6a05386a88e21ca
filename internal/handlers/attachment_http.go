package handlers

import (
	"net/http"

	"student-helpdesk/internal/service"
	"student-helpdesk/internal/utils"
)

type AttachmentHTTP struct {
	svc *service.TicketService
}

func NewAttachmentHTTP(svc *service.TicketService) *AttachmentHTTP { return &AttachmentHTTP{svc: svc} }

// POST /api/attachments/presign  {filename, contentType}
func (h *AttachmentHTTP) Presign() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Filename    string `json:"filename"`
			ContentType string `json:"contentType"`
		}
		if err := utils.Decode(r, &in); err != nil || in.Filename == "" {
			utils.Error(w, http.StatusBadRequest, "filename is required")
			return
		}
		up, err := h.svc.PresignAttachment(r.Context(), utils.IdentityFrom(r.Context()), in.Filename, in.ContentType)
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.JSON(w, http.StatusOK, up)
	}
}
