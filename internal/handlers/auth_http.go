package handlers

import (
	"net/http"
	"time"

	"student-helpdesk/internal/middleware"
	"student-helpdesk/internal/models"
	"student-helpdesk/internal/service"
	"student-helpdesk/internal/utils"
)

type AuthHTTP struct {
	svc    *service.AuthService
	ttl    time.Duration
	secure bool
}

// NewAuthHTTP issues session cookies valid for ttl; secure marks them HTTPS-only.
func NewAuthHTTP(s *service.AuthService, ttl time.Duration, secure bool) *AuthHTTP {
	return &AuthHTTP{svc: s, ttl: ttl, secure: secure}
}

func profile(u *models.User) map[string]any {
	return map[string]any{
		"id":        u.ID,
		"name":      u.Name,
		"email":     u.Email,
		"role":      u.Role,
		"active":    u.Active,
		"createdAt": u.CreatedAt,
		"updatedAt": u.UpdatedAt,
	}
}

// POST /api/auth/register
func (h *AuthHTTP) Register() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Email    string `json:"email"`
			Name     string `json:"name"`
			Password string `json:"password"`
		}
		if err := utils.Decode(r, &in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		u, err := h.svc.Register(r.Context(), in.Email, in.Name, in.Password)
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.JSON(w, http.StatusCreated, profile(u))
	}
}

// POST /api/auth/login
func (h *AuthHTTP) Login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := utils.Decode(r, &in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}

		token, u, err := h.svc.Login(r.Context(), in.Email, in.Password)
		if err != nil {
			writeError(w, r, err)
			return
		}

		// Issue httpOnly session cookie
		http.SetCookie(w, &http.Cookie{
			Name:     middleware.SessionCookie,
			Value:    token,
			Path:     "/",
			HttpOnly: true,
			// Lax works for same-origin (frontend via reverse proxy)
			SameSite: http.SameSiteLaxMode,
			Secure:   h.secure,
			Expires:  time.Now().Add(h.ttl),
		})

		body := profile(u)
		body["token"] = token // for non-browser clients using Authorization: Bearer
		utils.JSON(w, http.StatusOK, body)
	}
}

// POST /api/auth/logout
func (h *AuthHTTP) Logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{
			Name:     middleware.SessionCookie,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Secure:   h.secure,
			MaxAge:   -1,              // expire immediately
			Expires:  time.Unix(0, 0), // for older browsers
		})
		w.WriteHeader(http.StatusNoContent)
	}
}

// GET /api/auth/me
func (h *AuthHTTP) Me() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := utils.IdentityFrom(r.Context())
		if id.UserID == "" {
			utils.Error(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		u, err := h.svc.Me(r.Context(), id.UserID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		utils.JSON(w, http.StatusOK, profile(u))
	}
}
