package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"student-helpdesk/internal/live"
	"student-helpdesk/internal/utils"
)

// HeartbeatInterval keeps idle proxies from closing the stream.
var HeartbeatInterval = 25 * time.Second

type StreamHTTP struct {
	hub *live.Hub
}

func NewStreamHTTP(hub *live.Hub) *StreamHTTP { return &StreamHTTP{hub: hub} }

// GET /api/stream
// Server-Sent Events; each event names what changed and clients re-fetch it.
func (h *StreamHTTP) Events() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := utils.IdentityFrom(r.Context())
		log := zerolog.Ctx(r.Context())

		rc := http.NewResponseController(w)
		// the server WriteTimeout would cut the stream otherwise
		_ = rc.SetWriteDeadline(time.Time{})

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)

		sub := h.hub.Subscribe(id.UserID, id.Role)
		defer h.hub.Unsubscribe(sub)

		if err := writeEvent(w, live.Event{Kind: "ready"}); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			log.Debug().Err(err).Msg("stream: flush unsupported")
			return
		}

		ticker := time.NewTicker(HeartbeatInterval)
		defer ticker.Stop()

		for {
			var err error
			select {
			case <-r.Context().Done():
				return
			case e, ok := <-sub.Events():
				if !ok {
					return
				}
				err = writeEvent(w, e)
			case <-ticker.C:
				_, err = fmt.Fprint(w, ": ping\n\n")
			}
			// events were dropped while the buffer was full
			if err == nil && sub.TakeResync() {
				err = writeEvent(w, live.Event{Kind: live.KindResync})
			}
			if err == nil {
				err = rc.Flush()
			}
			if err != nil {
				log.Debug().Err(err).Str("user_id", id.UserID).Msg("stream closed")
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, e live.Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Kind, b)
	return err
}
