package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"student-helpdesk/internal/config"
	"student-helpdesk/internal/mailer"
	"student-helpdesk/internal/models"
	"student-helpdesk/internal/storage"
	"student-helpdesk/internal/testutil"
	"student-helpdesk/internal/utils"
)

func init() { utils.BcryptCost = bcrypt.MinCost }

type env struct {
	cfg       config.Config
	users     *testutil.UserRepo
	tickets   *testutil.TicketRepo
	feedbacks *testutil.FeedbackRepo
	notes     *testutil.NotificationRepo

	auth     *AuthService
	ticket   *TicketService
	feedback *FeedbackService
	notify   *NotificationService

	student, other, admin, admin2 utils.Identity
}

const password = "rahasia123"

func testConfig() config.Config {
	return config.Config{
		SessionSecret:      "test-secret",
		SessionTTL:         time.Hour,
		StudentDomains:     []string{"student.univ.ac.id"},
		AdminDomains:       []string{"univ.ac.id"},
		AttachmentMaxBytes: 1000,
		TokenReveal:        10 * time.Second,
		Categories:         models.DefaultCatalog,
	}
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{cfg: testConfig()}
	e.users = testutil.NewUserRepo()
	e.tickets = testutil.NewTicketRepo(e.users)
	e.feedbacks = testutil.NewFeedbackRepo()
	e.notes = testutil.NewNotificationRepo()

	log := zerolog.Nop()
	e.auth = NewAuthService(e.users, e.cfg)
	e.notify = NewNotificationService(e.notes, log)
	e.ticket = NewTicketService(e.tickets, e.feedbacks, e.users, e.notify, e.auth, e.cfg, log)
	e.feedback = NewFeedbackService(e.feedbacks, e.ticket, e.notify, log)

	e.student = e.register(t, "budi@student.univ.ac.id", "Budi")
	e.other = e.register(t, "sari@student.univ.ac.id", "Sari")
	e.admin = e.register(t, "rina@univ.ac.id", "Rina")
	e.admin2 = e.register(t, "joko@univ.ac.id", "Joko")
	return e
}

func (e *env) register(t *testing.T, email, name string) utils.Identity {
	t.Helper()
	u, err := e.auth.Register(context.Background(), email, name, password)
	require.NoError(t, err)
	return utils.Identity{UserID: u.ID, Role: u.Role, Name: u.Name}
}

func validInput() CreateTicketInput {
	return CreateTicketInput{
		Name:        "Budi Santoso",
		NIM:         "1301190001",
		Program:     "Informatika",
		Phone:       "081234567890",
		Category:    "layanan_it",
		SubCategory: "wifi",
		Title:       "Wifi gedung F mati",
		Description: "Sejak pagi tidak bisa terhubung.",
	}
}

func (e *env) createTicket(t *testing.T, in CreateTicketInput) *models.Ticket {
	t.Helper()
	tk, err := e.ticket.Create(context.Background(), e.student, in)
	require.NoError(t, err)
	return tk
}

// notificationsFor returns stored notifications addressed to id directly.
func (e *env) notificationsFor(id string) []models.Notification {
	var out []models.Notification
	for _, n := range e.notes.All() {
		if n.RecipientID == id {
			out = append(out, n)
		}
	}
	return out
}

type fakeBlobs struct{ keys []string }

func (f *fakeBlobs) PresignUpload(_ context.Context, owner, filename, contentType string) (*storage.Upload, error) {
	key := storage.NewKey(owner, filename)
	return &storage.Upload{Key: key, URL: "https://s3.test/" + key, ContentType: contentType}, nil
}

func (f *fakeBlobs) PresignDownload(_ context.Context, key string) (string, error) {
	f.keys = append(f.keys, key)
	return "https://s3.test/" + key + "?sig", nil
}

type fakeMail struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (f *fakeMail) Send(_ context.Context, m mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m)
	return nil
}
