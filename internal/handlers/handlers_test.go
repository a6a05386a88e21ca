package handlers

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"student-helpdesk/internal/live"
	"student-helpdesk/internal/service"
	"student-helpdesk/internal/utils"
)

func TestWriteErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{&service.ValidationError{Field: "title", Msg: "title is required"}, http.StatusBadRequest},
		{service.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("load: %w", service.ErrForbidden), http.StatusForbidden},
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{service.ErrEmailTaken, http.StatusConflict},
		{service.ErrInvalidTransition, http.StatusConflict},
		{service.ErrAttachmentTooLarge, http.StatusRequestEntityTooLarge},
		{service.ErrMailDisabled, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tc.err)
		assert.Equal(t, tc.code, rec.Code, tc.err.Error())
	}

	rec := httptest.NewRecorder()
	writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("pq: secret detail"))
	assert.NotContains(t, rec.Body.String(), "secret detail")

	rec = httptest.NewRecorder()
	writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), &service.ValidationError{Field: "nim", Msg: "nim must be digits"})
	assert.JSONEq(t, `{"error":"nim must be digits","field":"nim"}`, rec.Body.String())
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("down") }

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health(nil)(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	Health(failingPinger{})(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func readEvent(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	var lines []string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if line == "" {
			if len(lines) > 0 {
				return strings.Join(lines, "\n")
			}
			continue
		}
		lines = append(lines, line)
	}
}

func TestStreamDeliversVisibleEvents(t *testing.T) {
	hub := live.NewHub()
	sh := NewStreamHTTP(hub)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := utils.WithIdentity(r.Context(), utils.Identity{UserID: "u1", Role: "student"})
		sh.Events()(w, r.WithContext(ctx))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	br := bufio.NewReader(resp.Body)
	assert.Contains(t, readEvent(t, br), "event: ready")
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	// another student's ticket is filtered out; the next event proves ordering
	hub.Publish(live.Event{Kind: live.KindTicket, ID: "t2", OwnerID: "u2"})
	hub.Publish(live.Event{Kind: live.KindTicket, ID: "t1", OwnerID: "u1", Status: "done"})

	ev := readEvent(t, br)
	assert.Contains(t, ev, "event: ticket")
	assert.Contains(t, ev, `"id":"t1"`)
	assert.NotContains(t, ev, "t2")

	cancel()
	require.Eventually(t, func() bool { return hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}
