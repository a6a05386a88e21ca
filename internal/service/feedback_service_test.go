package service

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"student-helpdesk/internal/models"
)

func TestFeedbackFromStudentReachesStaff(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tk := e.createTicket(t, validInput())
	require.NoError(t, e.ticket.MarkRead(ctx, e.admin, tk.ID))
	before := len(e.notes.All())

	f, err := e.feedback.Post(ctx, e.student, tk.ID, "  Masih belum bisa  ", nil)
	require.NoError(t, err)
	assert.Equal(t, "Masih belum bisa", f.Message)
	assert.Equal(t, models.RoleStudent, f.AuthorRole)
	assert.True(t, f.ReadBy[e.student.UserID])

	all := e.notes.All()
	require.Len(t, all, before+1)
	last := all[len(all)-1]
	assert.Equal(t, models.NotifyNewFeedback, last.Type)
	assert.Equal(t, models.StaffRoles, last.RecipientRoles)

	got, _ := e.tickets.Get(ctx, tk.ID)
	assert.False(t, got.ReadByAdmin)
}

func TestFeedbackFromStaffReachesOwner(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tk := e.createTicket(t, validInput())

	_, err := e.feedback.Post(ctx, e.admin, tk.ID, "Sedang kami cek", nil)
	require.NoError(t, err)

	owner := e.notificationsFor(e.student.UserID)
	require.Len(t, owner, 1)
	assert.Equal(t, "Rina", owner[0].SenderName)
	got, _ := e.tickets.Get(ctx, tk.ID)
	assert.False(t, got.ReadByStudent)

	n, err := e.feedback.UnreadCount(ctx, e.student, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, err := e.feedback.List(ctx, e.student, tk.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].ReadBy[e.student.UserID])

	n, err = e.feedback.UnreadCount(ctx, e.student, tk.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	got, _ = e.tickets.Get(ctx, tk.ID)
	assert.True(t, got.ReadByStudent)
}

func TestFeedbackRules(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tk := e.createTicket(t, validInput())

	_, err := e.feedback.Post(ctx, e.other, tk.ID, "halo", nil)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.feedback.List(ctx, e.other, tk.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.feedback.Post(ctx, e.student, tk.ID, " ", nil)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)

	chunk := base64.StdEncoding.EncodeToString(make([]byte, 600))
	_, err = e.feedback.Post(ctx, e.student, tk.ID, "foto", []models.Attachment{{Data: chunk}, {Data: chunk}})
	assert.ErrorIs(t, err, ErrAttachmentTooLarge)

	list, err := e.feedback.List(ctx, e.student, tk.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestFeedbackOnAnonymousTicketHidesSender(t *testing.T) {
	e := newEnv(t)
	in := validInput()
	in.Anonymous = true
	tk := e.createTicket(t, in)

	_, err := e.feedback.Post(context.Background(), e.student, tk.ID, "tambahan info", nil)
	require.NoError(t, err)
	all := e.notes.All()
	assert.Equal(t, "Anonymous", all[len(all)-1].SenderName)
}

func TestFeedbackAttachmentURL(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tk := e.createTicket(t, validInput())

	_, err := e.feedback.Post(ctx, e.student, tk.ID, "punya orang lain", []models.Attachment{
		{Name: "x.png", StoragePath: "attachments/" + e.other.UserID + "/01J/x.png"},
	})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "attachments", ve.Field)

	key := "attachments/" + e.student.UserID + "/01J/bukti.png"
	fb, err := e.feedback.Post(ctx, e.student, tk.ID, "bukti", []models.Attachment{
		{Name: "a.txt", ContentType: "text/plain", Data: "aGVsbG8="},
		{Name: "bukti.png", StoragePath: key},
	})
	require.NoError(t, err)

	url, err := e.feedback.AttachmentURL(ctx, e.admin, tk.ID, fb.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "data:text/plain;base64,aGVsbG8=", url)

	_, err = e.feedback.AttachmentURL(ctx, e.admin, tk.ID, fb.ID, 1)
	assert.ErrorIs(t, err, ErrStorageDisabled)
	e.ticket.WithStorage(&fakeBlobs{})
	url, err = e.feedback.AttachmentURL(ctx, e.student, tk.ID, fb.ID, 1)
	require.NoError(t, err)
	assert.Contains(t, url, key)

	_, err = e.feedback.AttachmentURL(ctx, e.student, tk.ID, fb.ID, 2)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.feedback.AttachmentURL(ctx, e.other, tk.ID, fb.ID, 0)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = e.feedback.AttachmentURL(ctx, e.student, tk.ID, "missing", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}
