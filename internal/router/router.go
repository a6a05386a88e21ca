package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"student-helpdesk/internal/config"
	"student-helpdesk/internal/handlers"
	"student-helpdesk/internal/live"
	"student-helpdesk/internal/middleware"
	"student-helpdesk/internal/models"
	"student-helpdesk/internal/repository"
	"student-helpdesk/internal/service"
)

// Deps are the wired services the routes call into.
type Deps struct {
	DB            handlers.Pinger
	Users         repository.UserRepository
	Auth          *service.AuthService
	Tickets       *service.TicketService
	Feedbacks     *service.FeedbackService
	Notifications *service.NotificationService
	Hub           *live.Hub
}

// bodyHeadroom leaves room for the text fields sent next to an attachment.
const bodyHeadroom = 256 << 10

func New(log zerolog.Logger, cfg config.Config, d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.Origin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(httprate.LimitByIP(cfg.RateLimit, time.Minute))
	r.Use(middleware.LimitBody(int64(cfg.AttachmentMaxBytes) + bodyHeadroom))
	r.Use(middleware.WithAuth(log, cfg.SessionSecret))

	// Health
	r.Get("/healthz", handlers.Health(d.DB))

	ah := handlers.NewAuthHTTP(d.Auth, cfg.SessionTTL, cfg.Env != "dev")
	th := handlers.NewTicketHTTP(d.Tickets)
	fh := handlers.NewFeedbackHTTP(d.Feedbacks)
	nh := handlers.NewNotificationHTTP(d.Notifications)
	uh := handlers.NewUserHTTP(d.Users, d.Auth)
	rh := handlers.NewReportsHTTP(d.Tickets)
	at := handlers.NewAttachmentHTTP(d.Tickets)
	sh := handlers.NewStreamHTTP(d.Hub)

	staff := middleware.RequireRoles(models.StaffRoles...)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", ah.Register())
		r.Post("/login", ah.Login())
		r.Post("/logout", ah.Logout())
		r.With(middleware.RequireAuth).Get("/me", ah.Me())
	})

	// Everything below requires a session
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)

		r.Get("/api/categories", th.Categories())

		r.Route("/api/tickets", func(r chi.Router) {
			r.Get("/", th.List())
			r.Post("/", th.Create())
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", th.Get())
				r.With(staff).Patch("/", th.Update())
				r.Delete("/", th.Hide())
				r.With(staff).Delete("/purge", th.Purge())
				r.With(staff).Patch("/status", th.UpdateStatus())
				r.Post("/read", th.MarkRead())
				r.Post("/token/reveal", th.RevealToken())
				r.With(staff).Post("/token/verify", th.VerifyToken())
				r.Get("/attachment", th.Attachment())
				r.With(staff).Post("/email", th.Email())

				r.Get("/feedbacks", fh.List())
				r.Post("/feedbacks", fh.Create())
				r.Get("/feedbacks/unread-count", fh.UnreadCount())
				r.Get("/feedbacks/{fid}/attachments/{n}", fh.Attachment())
			})
		})

		r.Route("/api/notifications", func(r chi.Router) {
			r.Get("/", nh.List())
			r.Get("/unread-count", nh.UnreadCount())
			r.Post("/read-all", nh.MarkAllRead())
			r.Post("/{id}/read", nh.MarkRead())
		})

		r.Post("/api/attachments/presign", at.Presign())

		r.Route("/api/users", func(r chi.Router) {
			r.With(staff).Get("/", uh.List())
			r.Route("/{id}", func(r chi.Router) {
				r.With(staff).Patch("/role", uh.UpdateRole())
				r.With(staff).Patch("/active", uh.SetActive())
				r.With(middleware.RequireSelfOrRoles(models.StaffRoles...)).Patch("/basic", uh.UpdateBasic())
				r.With(middleware.RequireSelf()).Patch("/password", uh.UpdatePassword())
			})
		})

		r.Route("/api/reports", func(r chi.Router) {
			r.Use(staff)
			r.Get("/summary", rh.Summary())
			r.Get("/export", rh.Export())
		})

		r.Get("/api/stream", sh.Events())
	})

	return r
}
