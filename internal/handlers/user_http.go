package handlers

import (
	"net/http"
	"strings"

	"student-helpdesk/internal/models"
	"student-helpdesk/internal/repository"
	"student-helpdesk/internal/service"
	"student-helpdesk/internal/utils"
	"student-helpdesk/internal/validate"

	"github.com/go-chi/chi/v5"
)

type UserHTTP struct {
	repo repository.UserRepository
	auth *service.AuthService
}

func NewUserHTTP(r repository.UserRepository, auth *service.AuthService) *UserHTTP {
	return &UserHTTP{repo: r, auth: auth}
}

// GET /api/users?q=&role=&active=&limit=&offset=
func (h *UserHTTP) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qv := r.URL.Query()
		limit := utils.QueryInt(qv, "limit", repository.DefaultLimit)
		offset := utils.QueryInt(qv, "offset", 0)

		users, total, err := h.repo.List(r.Context(), qv.Get("q"), qv.Get("role"), utils.QueryBool(qv, "active"), limit, offset)
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.JSON(w, http.StatusOK, map[string]any{"items": users, "total": total})
	}
}

// PATCH /api/users/{id}/role
func (h *UserHTTP) UpdateRole() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Role string `json:"role"`
		}
		if err := utils.Decode(r, &req); err != nil || strings.TrimSpace(req.Role) == "" {
			utils.Error(w, http.StatusBadRequest, "invalid request")
			return
		}
		target, ok := h.manageable(w, r)
		if !ok {
			return
		}
		if target.ID == utils.IdentityFrom(r.Context()).UserID {
			utils.Error(w, http.StatusBadRequest, "cannot change your own role")
			return
		}
		role := strings.ToLower(strings.TrimSpace(req.Role))
		// only a super admin hands out super admin
		if role == models.RoleSuperAdmin && utils.IdentityFrom(r.Context()).Role != models.RoleSuperAdmin {
			utils.Error(w, http.StatusForbidden, "forbidden")
			return
		}
		h.respondUser(w, r)(h.repo.UpdateRole(r.Context(), target.ID, role))
	}
}

// PATCH /api/users/{id}/active
func (h *UserHTTP) SetActive() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Active *bool `json:"active"`
		}
		if err := utils.Decode(r, &req); err != nil || req.Active == nil {
			utils.Error(w, http.StatusBadRequest, "invalid request")
			return
		}
		target, ok := h.manageable(w, r)
		if !ok {
			return
		}
		if target.ID == utils.IdentityFrom(r.Context()).UserID && !*req.Active {
			utils.Error(w, http.StatusBadRequest, "cannot deactivate yourself")
			return
		}
		h.respondUser(w, r)(h.repo.SetActive(r.Context(), target.ID, *req.Active))
	}
}

// PATCH /api/users/{id}/basic
func (h *UserHTTP) UpdateBasic() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !utils.IsUUID(id) {
			utils.Error(w, http.StatusNotFound, "user not found")
			return
		}
		var req struct {
			Name string `json:"name"`
		}
		if err := utils.Decode(r, &req); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid request")
			return
		}
		name, err := validate.Required("name", req.Name, 100)
		if err != nil {
			utils.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		h.respondUser(w, r)(h.repo.UpdateBasic(r.Context(), id, name))
	}
}

// PATCH /api/users/{id}/password
func (h *UserHTTP) UpdatePassword() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req struct {
			Current string `json:"currentPassword"`
			New     string `json:"newPassword"`
		}
		if err := utils.Decode(r, &req); err != nil || req.New == "" {
			utils.Error(w, http.StatusBadRequest, "invalid request")
			return
		}
		if err := h.auth.ChangePassword(r.Context(), id, req.Current, req.New); err != nil {
			writeError(w, r, err)
			return
		}
		utils.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// manageable loads the {id} user and refuses when a non super admin targets
// a super admin account.
func (h *UserHTTP) manageable(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	id := chi.URLParam(r, "id")
	if !utils.IsUUID(id) {
		utils.Error(w, http.StatusNotFound, "user not found")
		return nil, false
	}
	u, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	if u == nil {
		utils.Error(w, http.StatusNotFound, "user not found")
		return nil, false
	}
	if u.Role == models.RoleSuperAdmin && utils.IdentityFrom(r.Context()).Role != models.RoleSuperAdmin {
		utils.Error(w, http.StatusForbidden, "forbidden")
		return nil, false
	}
	return u, true
}

func (h *UserHTTP) respondUser(w http.ResponseWriter, r *http.Request) func(*models.User, error) {
	return func(u *models.User, err error) {
		if err != nil {
			writeError(w, r, err)
			return
		}
		if u == nil {
			utils.Error(w, http.StatusNotFound, "user not found")
			return
		}
		utils.JSON(w, http.StatusOK, u)
	}
}
