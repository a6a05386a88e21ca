package service

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/base64"
	"io"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"student-helpdesk/internal/models"
	"student-helpdesk/internal/repository"
)

func TestCreateValidates(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	cases := map[string]func(*CreateTicketInput){
		"title":       func(in *CreateTicketInput) { in.Title = " " },
		"description": func(in *CreateTicketInput) { in.Description = "" },
		"subCategory": func(in *CreateTicketInput) { in.SubCategory = "ukt" },
		"name":        func(in *CreateTicketInput) { in.Name = "" },
		"nim":         func(in *CreateTicketInput) { in.NIM = "12ab" },
		"phone":       func(in *CreateTicketInput) { in.Phone = "021-555" },
	}
	for field, mutate := range cases {
		in := validInput()
		mutate(&in)
		_, err := e.ticket.Create(ctx, e.student, in)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve, field)
		assert.Equal(t, field, ve.Field)
	}

	_, total, err := e.tickets.List(ctx, repository.TicketFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, e.notes.All())
}

func TestCreateBroadcastsToStaff(t *testing.T) {
	e := newEnv(t)
	tk := e.createTicket(t, validInput())

	assert.Equal(t, models.StatusNew, tk.Status)
	assert.False(t, tk.ReadByAdmin)
	assert.True(t, tk.ReadByStudent)
	assert.Equal(t, "Budi Santoso", *tk.Name)

	all := e.notes.All()
	require.Len(t, all, 1)
	assert.Equal(t, models.NotifyNewTicket, all[0].Type)
	assert.Equal(t, models.StaffRoles, all[0].RecipientRoles)
	assert.Empty(t, all[0].RecipientID)
	assert.Equal(t, "Budi", all[0].SenderName)
}

func TestAnonymousTicketRedaction(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	in := validInput()
	in.Anonymous = true
	tk := e.createTicket(t, in)
	assert.Nil(t, tk.Name)
	assert.Nil(t, tk.NIM)
	assert.Nil(t, tk.Program)
	assert.Nil(t, tk.Phone)

	asStudent, err := e.ticket.Get(ctx, e.student, tk.ID)
	require.NoError(t, err)
	assert.Nil(t, asStudent.Name)

	asAdmin, err := e.ticket.Get(ctx, e.admin, tk.ID)
	require.NoError(t, err)
	require.NotNil(t, asAdmin.Name)
	assert.Equal(t, "Budi Santoso", *asAdmin.Name)
	assert.Equal(t, "1301190001", *asAdmin.NIM)

	stored, err := e.tickets.Get(ctx, tk.ID)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^ANON-[0-9A-F]{12}$`), stored.AnonToken)

	assert.Equal(t, "Anonymous", e.notes.All()[0].SenderName)
}

func TestAnonymousTicketNeedsNoReporterFields(t *testing.T) {
	e := newEnv(t)
	tk := e.createTicket(t, CreateTicketInput{
		Anonymous: true, Category: "kemahasiswaan", SubCategory: "perundungan",
		Title: "Perundungan di asrama", Description: "Terjadi berulang kali.",
	})
	got, err := e.ticket.Get(context.Background(), e.admin, tk.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Name)
}

func TestOversizedAttachmentRejectedBeforeWrite(t *testing.T) {
	e := newEnv(t)
	in := validInput()
	in.Attachment = &models.Attachment{Name: "big.jpg", Data: base64.StdEncoding.EncodeToString(make([]byte, 2000))}

	_, err := e.ticket.Create(context.Background(), e.student, in)
	assert.ErrorIs(t, err, ErrAttachmentTooLarge)

	_, total, err := e.tickets.List(context.Background(), repository.TicketFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, e.notes.All())
}

func TestVisibility(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	mine := e.createTicket(t, validInput())
	theirs, err := e.ticket.Create(ctx, e.other, validInput())
	require.NoError(t, err)

	_, err = e.ticket.Get(ctx, e.student, theirs.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	items, total, err := e.ticket.List(ctx, e.student, repository.TicketFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, mine.ID, items[0].ID)

	_, total, err = e.ticket.List(ctx, e.admin, repository.TicketFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	require.NoError(t, e.ticket.Hide(ctx, e.student, mine.ID))
	require.NoError(t, e.ticket.Hide(ctx, e.student, mine.ID))
	_, total, err = e.ticket.List(ctx, e.student, repository.TicketFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	_, err = e.ticket.Get(ctx, e.student, mine.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// hiding is per user
	_, err = e.ticket.Get(ctx, e.admin, mine.ID)
	assert.NoError(t, err)
	stored, _ := e.tickets.Get(ctx, mine.ID)
	assert.Equal(t, []string{e.student.UserID}, stored.HiddenFor)
}

func TestListStripsInlineAttachmentData(t *testing.T) {
	e := newEnv(t)
	in := validInput()
	in.Attachment = &models.Attachment{Name: "a.txt", Data: base64.StdEncoding.EncodeToString([]byte("hello"))}
	tk := e.createTicket(t, in)

	items, _, err := e.ticket.List(context.Background(), e.admin, repository.TicketFilter{})
	require.NoError(t, err)
	require.NotNil(t, items[0].Attachment)
	assert.Empty(t, items[0].Attachment.Data)
	assert.Equal(t, int64(5), items[0].Attachment.Size)

	full, err := e.ticket.Get(context.Background(), e.admin, tk.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, full.Attachment.Data)
}

func TestUpdateStatusTransitions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tk := e.createTicket(t, validInput())

	_, err := e.ticket.UpdateStatus(ctx, e.student, tk.ID, models.StatusInProgress)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = e.ticket.UpdateStatus(ctx, e.admin, tk.ID, models.StatusDone)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = e.ticket.UpdateStatus(ctx, e.admin, tk.ID, "closed")
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)

	got, err := e.ticket.UpdateStatus(ctx, e.admin, tk.ID, models.StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, got.Status)
	assert.False(t, got.ReadByStudent)

	// same status: nothing written, nobody notified
	before := len(e.notes.All())
	_, err = e.ticket.UpdateStatus(ctx, e.admin, tk.ID, models.StatusInProgress)
	require.NoError(t, err)
	assert.Len(t, e.notes.All(), before)

	_, err = e.ticket.UpdateStatus(ctx, e.admin, tk.ID, models.StatusDone)
	require.NoError(t, err)
	reopened, err := e.ticket.UpdateStatus(ctx, e.admin, tk.ID, models.StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, reopened.Status)
}

func TestUpdateStatusNotifiesEachRecipientOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tk := e.createTicket(t, validInput())
	assignee := e.admin2.UserID
	_, err := e.ticket.Update(ctx, e.admin, tk.ID, UpdateTicketInput{AssignedTo: &assignee})
	require.NoError(t, err)
	require.Len(t, e.notificationsFor(assignee), 1) // assignment

	_, err = e.ticket.UpdateStatus(ctx, e.admin, tk.ID, models.StatusInProgress)
	require.NoError(t, err)

	owner := e.notificationsFor(e.student.UserID)
	require.Len(t, owner, 1)
	assert.Equal(t, models.NotifyStatusChanged, owner[0].Type)
	assert.Equal(t, e.admin.UserID, owner[0].SenderID)
	assert.Len(t, e.notificationsFor(assignee), 2)
	assert.Empty(t, e.notificationsFor(e.admin.UserID))

	// the assignee acting is not notified about their own change
	_, err = e.ticket.UpdateStatus(ctx, e.admin2, tk.ID, models.StatusDone)
	require.NoError(t, err)
	assert.Len(t, e.notificationsFor(assignee), 2)
	assert.Len(t, e.notificationsFor(e.student.UserID), 2)
}

func TestUpdateStatusSwallowsNotificationFailure(t *testing.T) {
	e := newEnv(t)
	tk := e.createTicket(t, validInput())
	e.notes.FailCreate = true

	got, err := e.ticket.UpdateStatus(context.Background(), e.admin, tk.ID, models.StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, got.Status)
}

func TestUpdateAssignment(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tk := e.createTicket(t, validInput())

	student := e.other.UserID
	_, err := e.ticket.Update(ctx, e.admin, tk.ID, UpdateTicketInput{AssignedTo: &student})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "assignedTo", ve.Field)

	cat, sub := "fasilitas", "toilet"
	assignee := e.admin2.UserID
	got, err := e.ticket.Update(ctx, e.admin, tk.ID, UpdateTicketInput{Category: &cat, SubCategory: &sub, AssignedTo: &assignee})
	require.NoError(t, err)
	assert.Equal(t, "fasilitas", got.Category)
	assert.Equal(t, "Joko", got.AssigneeName)

	n := e.notificationsFor(assignee)
	require.Len(t, n, 1)
	assert.Equal(t, models.NotifyAssigned, n[0].Type)

	badSub := "wifi"
	_, err = e.ticket.Update(ctx, e.admin, tk.ID, UpdateTicketInput{SubCategory: &badSub})
	assert.ErrorAs(t, err, &ve)

	empty := ""
	got, err = e.ticket.Update(ctx, e.admin, tk.ID, UpdateTicketInput{AssignedTo: &empty})
	require.NoError(t, err)
	assert.Empty(t, got.AssignedTo)

	_, err = e.ticket.Update(ctx, e.student, tk.ID, UpdateTicketInput{})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRevealAndVerifyToken(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	e.ticket.now = func() time.Time { return now }

	named := e.createTicket(t, validInput())
	_, err := e.ticket.RevealToken(ctx, e.student, named.ID, password)
	assert.ErrorIs(t, err, ErrNotAnonymous)

	in := validInput()
	in.Anonymous = true
	tk := e.createTicket(t, in)

	_, err = e.ticket.RevealToken(ctx, e.student, tk.ID, "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = e.ticket.RevealToken(ctx, e.admin, tk.ID, password)
	assert.ErrorIs(t, err, ErrForbidden)

	rev, err := e.ticket.RevealToken(ctx, e.student, tk.ID, password)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rev.Token, "ANON-"))
	assert.Equal(t, now.Add(10*time.Second), rev.ExpiresAt)

	ok, err := e.ticket.VerifyToken(ctx, e.admin, tk.ID, strings.ToLower(rev.Token))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = e.ticket.VerifyToken(ctx, e.admin, tk.ID, "ANON-000000000000")
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = e.ticket.VerifyToken(ctx, e.student, tk.ID, rev.Token)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAttachmentURL(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	inline := validInput()
	inline.Attachment = &models.Attachment{Name: "a.txt", Data: "data:text/plain;base64,aGVsbG8="}
	tk := e.createTicket(t, inline)
	url, err := e.ticket.AttachmentURL(ctx, e.student, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, "data:text/plain;base64,aGVsbG8=", url)

	stored := validInput()
	key := "attachments/" + e.student.UserID + "/01J/b.png"
	stored.Attachment = &models.Attachment{Name: "b.png", StoragePath: key}
	tk2 := e.createTicket(t, stored)
	_, err = e.ticket.AttachmentURL(ctx, e.student, tk2.ID)
	assert.ErrorIs(t, err, ErrStorageDisabled)

	blobs := &fakeBlobs{}
	e.ticket.WithStorage(blobs)
	url, err = e.ticket.AttachmentURL(ctx, e.student, tk2.ID)
	require.NoError(t, err)
	assert.Contains(t, url, key)

	up, err := e.ticket.PresignAttachment(ctx, e.student, "foto.png", "image/png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(up.Key, "attachments/"+e.student.UserID+"/"))

	none := e.createTicket(t, validInput())
	_, err = e.ticket.AttachmentURL(ctx, e.student, none.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoredAttachmentMustBelongToUploader(t *testing.T) {
	e := newEnv(t)
	in := validInput()
	in.Attachment = &models.Attachment{Name: "b.png", StoragePath: "attachments/" + e.other.UserID + "/01J/b.png"}
	_, err := e.ticket.Create(context.Background(), e.student, in)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "attachment", ve.Field)

	list, total, err := e.ticket.List(context.Background(), e.admin, repository.TicketFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, list)
}

func TestMalformedIDs(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.ticket.Get(ctx, e.admin, "abc")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, e.ticket.Hide(ctx, e.student, "abc"), ErrNotFound)
	assert.ErrorIs(t, e.notify.MarkRead(ctx, e.student, "x"), ErrNotFound)

	var ve *ValidationError
	_, _, err = e.ticket.List(ctx, e.admin, repository.TicketFilter{Assignee: "nobody"})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "assignee", ve.Field)

	tk := e.createTicket(t, validInput())
	bad := "not-a-uuid"
	_, err = e.ticket.Update(ctx, e.admin, tk.ID, UpdateTicketInput{AssignedTo: &bad})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "assignedTo", ve.Field)
}

// pdfText inflates the PDF content streams so rendered strings can be searched.
func pdfText(t *testing.T, b []byte) string {
	t.Helper()
	var out bytes.Buffer
	for {
		i := bytes.Index(b, []byte("stream\n"))
		if i < 0 {
			break
		}
		b = b[i+len("stream\n"):]
		end := bytes.Index(b, []byte("endstream"))
		require.GreaterOrEqual(t, end, 0)
		if zr, err := zlib.NewReader(bytes.NewReader(b[:end])); err == nil {
			raw, _ := io.ReadAll(zr)
			out.Write(raw)
		}
		b = b[end+len("endstream"):]
	}
	return out.String()
}

func TestEmailSummaryKeepsAnonymousAuthorOutOfThread(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	in := validInput()
	in.Anonymous = true
	tk := e.createTicket(t, in)
	_, err := e.feedback.Post(ctx, e.student, tk.ID, "Masih belum bisa", nil)
	require.NoError(t, err)
	_, err = e.feedback.Post(ctx, e.admin, tk.ID, "Teknisi menuju lokasi", nil)
	require.NoError(t, err)

	mail := &fakeMail{}
	e.ticket.WithMailer(mail)
	require.NoError(t, e.ticket.EmailSummary(ctx, e.admin, tk.ID, "wali@example.com", ""))
	require.Len(t, mail.sent, 1)

	text := pdfText(t, mail.sent[0].Attachments[0].Data)
	assert.NotContains(t, text, e.student.Name)
	assert.NotContains(t, text, "Budi Santoso")
	assert.Contains(t, text, "Anonymous")
	assert.Contains(t, text, e.admin.Name)
}

func TestEmailSummary(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	in := validInput()
	in.Anonymous = true
	tk := e.createTicket(t, in)

	assert.ErrorIs(t, e.ticket.EmailSummary(ctx, e.admin, tk.ID, "x@example.com", ""), ErrMailDisabled)

	mail := &fakeMail{}
	e.ticket.WithMailer(mail)
	assert.ErrorIs(t, e.ticket.EmailSummary(ctx, e.student, tk.ID, "x@example.com", ""), ErrForbidden)

	var ve *ValidationError
	assert.ErrorAs(t, e.ticket.EmailSummary(ctx, e.admin, tk.ID, "not-an-address", ""), &ve)

	require.NoError(t, e.ticket.EmailSummary(ctx, e.admin, tk.ID, "Wali@Example.com", "Mohon ditindaklanjuti"))
	require.Len(t, mail.sent, 1)
	m := mail.sent[0]
	assert.Equal(t, []string{"wali@example.com"}, m.To)
	assert.Contains(t, m.Subject, tk.Title)
	assert.True(t, strings.HasPrefix(m.Text, "Mohon ditindaklanjuti"))
	assert.NotContains(t, m.Text, "Budi Santoso")
	require.Len(t, m.Attachments, 1)
	assert.True(t, bytes.HasPrefix(m.Attachments[0].Data, []byte("%PDF-")))
}

func TestSummaryAndExport(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.createTicket(t, validInput())
	in := validInput()
	in.Anonymous = true
	e.createTicket(t, in)

	_, err := e.ticket.Summary(ctx, e.student, time.Time{})
	assert.ErrorIs(t, err, ErrForbidden)
	st, err := e.ticket.Summary(ctx, e.admin, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 1, st.Anonymous)
	assert.Equal(t, 2, st.UnreadForAdmin)

	var buf bytes.Buffer
	require.NoError(t, e.ticket.Export(ctx, e.admin, &buf, FormatCSV, repository.TicketFilter{}))
	assert.Equal(t, 3, strings.Count(buf.String(), "\n"))

	buf.Reset()
	require.NoError(t, e.ticket.Export(ctx, e.admin, &buf, FormatPDF, repository.TicketFilter{}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))

	var ve *ValidationError
	assert.ErrorAs(t, e.ticket.Export(ctx, e.admin, &buf, "xlsx", repository.TicketFilter{}), &ve)
	assert.ErrorIs(t, e.ticket.Export(ctx, e.student, &buf, FormatCSV, repository.TicketFilter{}), ErrForbidden)
}

func TestDeleteAndMarkRead(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tk := e.createTicket(t, validInput())

	require.NoError(t, e.ticket.MarkRead(ctx, e.admin, tk.ID))
	got, _ := e.tickets.Get(ctx, tk.ID)
	assert.True(t, got.ReadByAdmin)

	assert.ErrorIs(t, e.ticket.Delete(ctx, e.student, tk.ID), ErrForbidden)
	require.NoError(t, e.ticket.Delete(ctx, e.admin, tk.ID))
	assert.ErrorIs(t, e.ticket.Delete(ctx, e.admin, tk.ID), ErrNotFound)
	_, err := e.ticket.Get(ctx, e.admin, tk.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
