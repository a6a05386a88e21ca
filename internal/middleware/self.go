package middleware

import (
	"net/http"

	"student-helpdesk/internal/utils"

	"github.com/go-chi/chi/v5"
)

// RequireSelfOrRoles allows if {id} == ctx user id OR user has any of the given roles.
func RequireSelfOrRoles(roles ...string) func(http.Handler) http.Handler {
	roleSet := map[string]struct{}{}
	for _, r := range roles {
		roleSet[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := utils.IdentityFrom(r.Context())
			pathID := chi.URLParam(r, "id")

			if _, ok := roleSet[id.Role]; ok {
				next.ServeHTTP(w, r)
				return
			}
			// otherwise only self
			if id.UserID != "" && pathID == id.UserID {
				next.ServeHTTP(w, r)
				return
			}
			utils.Error(w, http.StatusForbidden, "forbidden")
		})
	}
}

// RequireSelf allows only the user named by {id}.
func RequireSelf() func(http.Handler) http.Handler { return RequireSelfOrRoles() }
