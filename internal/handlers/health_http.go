package handlers

import (
	"context"
	"net/http"
	"time"

	"student-helpdesk/internal/utils"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Health reports ok when the database answers within two seconds.
func Health(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if db != nil {
			if err := db.Ping(ctx); err != nil {
				utils.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "db": err.Error()})
				return
			}
		}
		utils.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
