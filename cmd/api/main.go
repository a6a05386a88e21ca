package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"student-helpdesk/internal/config"
	"student-helpdesk/internal/database"
	"student-helpdesk/internal/live"
	"student-helpdesk/internal/mailer"
	"student-helpdesk/internal/repository/postgres"
	"student-helpdesk/internal/router"
	"student-helpdesk/internal/service"
	"student-helpdesk/internal/storage"
	"student-helpdesk/pkg/logger"
)

func main() {
	configPath := pflag.String("config", "", "optional YAML config file; environment variables take precedence")
	migrateOnly := pflag.Bool("migrate-only", false, "apply database migrations and exit")
	pflag.Parse()

	// config + logger
	cfg, err := config.Load(*configPath)
	if err != nil {
		fl := logger.New("prod")
		fl.Fatal().Err(err).Msg("config load failed")
	}
	l := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// db
	pool, err := database.Open(ctx, cfg)
	if err != nil {
		l.Fatal().Err(err).Msg("db connect failed")
	}
	defer pool.Close()

	version, err := database.Migrate(pool)
	if err != nil {
		l.Fatal().Err(err).Msg("db migrate failed")
	}
	l.Info().Uint("version", version).Msg("schema up to date")
	if *migrateOnly {
		return
	}

	// repos + services
	users := postgres.NewUserRepo(pool)
	auth := service.NewAuthService(users, cfg)
	notes := service.NewNotificationService(postgres.NewNotificationRepo(pool), l)
	tickets := service.NewTicketService(
		postgres.NewTicketRepo(pool),
		postgres.NewFeedbackRepo(pool),
		users, notes, auth, cfg, l,
	)
	feedbacks := service.NewFeedbackService(postgres.NewFeedbackRepo(pool), tickets, notes, l)

	// optional integrations; nil means disabled
	store, err := storage.New(ctx, cfg.S3)
	if err != nil {
		l.Fatal().Err(err).Msg("storage init failed")
	}
	if store != nil {
		tickets.WithStorage(store)
		l.Info().Str("bucket", cfg.S3.Bucket).Msg("attachment storage enabled")
	}
	m, err := mailer.New(cfg.SMTP)
	if err != nil {
		l.Fatal().Err(err).Msg("mailer init failed")
	}
	if m != nil {
		tickets.WithMailer(m)
		l.Info().Str("smtp_host", cfg.SMTP.Host).Msg("mail enabled")
	}

	// live updates
	hub := live.NewHub()
	go live.NewListener(pool, hub, l).Run(ctx)

	// http
	r := router.New(l, cfg, router.Deps{
		DB:            pool,
		Users:         users,
		Auth:          auth,
		Tickets:       tickets,
		Feedbacks:     feedbacks,
		Notifications: notes,
		Hub:           hub,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		l.Info().Str("addr", srv.Addr).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal().Err(err).Msg("server error")
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	l.Info().Msg("shutdown complete")
}
