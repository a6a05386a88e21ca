package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"student-helpdesk/internal/service"
	"student-helpdesk/internal/utils"
)

// writeError maps service errors to status codes. Anything unrecognised is
// logged and reported as a bare 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		utils.JSON(w, http.StatusBadRequest, map[string]string{"error": ve.Msg, "field": ve.Field})
	case errors.Is(err, service.ErrNotFound):
		utils.Error(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrForbidden):
		utils.Error(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, service.ErrInvalidCredentials):
		utils.Error(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrInactiveUser):
		utils.Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrEmailDomain):
		utils.Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrEmailTaken):
		utils.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, service.ErrNotAnonymous):
		utils.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrAttachmentTooLarge):
		utils.Error(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, service.ErrStorageDisabled), errors.Is(err, service.ErrMailDisabled):
		utils.Error(w, http.StatusServiceUnavailable, err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		utils.Error(w, http.StatusInternalServerError, "internal error")
	}
}
