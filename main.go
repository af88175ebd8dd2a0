package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/msomdec/revtrack/internal/config"
	"github.com/msomdec/revtrack/internal/handler"
	"github.com/msomdec/revtrack/internal/logging"
	"github.com/msomdec/revtrack/internal/mailer"
	"github.com/msomdec/revtrack/internal/repository/sqldb"
	"github.com/msomdec/revtrack/internal/scheduler"
	"github.com/msomdec/revtrack/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stdout, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	db, err := sqldb.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		return err
	}
	slog.Info("database migrations applied", "driver", db.Driver())

	schedule, err := service.NewRevisionSchedule(cfg.Revision.Intervals)
	if err != nil {
		return err
	}

	authService := service.NewAuthService(db.Users(), cfg.Auth.JWTSecret, cfg.Auth.BcryptCost, cfg.Auth.TokenTTL)
	questionService := service.NewQuestionService(db.Questions(), service.QuestionServiceConfig{
		Schedule: schedule,
		Policy:   service.EditPolicy{AllowDueDateOverride: cfg.Revision.AllowDueDateOverride},
		Location: loc,
	})

	sink, err := newReminderSink(cfg, logger)
	if err != nil {
		return err
	}
	reminderService := service.NewReminderService(db.Questions(), sink, service.ReminderServiceConfig{
		Location:  loc,
		Logger:    logger.With("component", "reminders"),
		Signature: cfg.Reminder.Signature,
	})

	daily, err := scheduler.NewDaily(loc, cfg.Reminder.At, logger.With("component", "scheduler"))
	if err != nil {
		return err
	}
	if err := daily.Register("due-reminders", func(ctx context.Context) error {
		_, err := reminderService.SendDueReminders(ctx)
		return err
	}); err != nil {
		return err
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Reminder.RunOnStart {
		if err := daily.RunNow(ctx); err != nil {
			slog.Error("startup reminder run failed", "error", err)
		}
	}
	if cfg.Reminder.Enabled {
		daily.Start()
	}
	defer daily.Stop()

	authLimiter := service.NewTokenBucket(cfg.Auth.RateLimit, cfg.Auth.RateBurst)
	go authLimiter.RunCleanup(ctx, 5*time.Minute, 10*time.Minute)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, authService, questionService, authLimiter)

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           handler.Wrap(mux, cfg.Server.CORSOrigins, cfg.Server.MaxBodyBytes),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

// newReminderSink delivers over SMTP when a host is configured and logs the
// messages otherwise.
func newReminderSink(cfg *config.Config, logger *slog.Logger) (service.ReminderSink, error) {
	if cfg.SMTP.Host == "" {
		slog.Warn("smtp.host not set; reminders will be logged instead of sent")
		return mailer.NewLogSink(logger.With("component", "mailer")), nil
	}

	sink, err := mailer.NewSMTPSink(mailer.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		TLS:      cfg.SMTP.TLS,
		FromAddr: cfg.SMTP.FromAddr,
		FromName: cfg.SMTP.FromName,
		Timeout:  cfg.SMTP.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("configure smtp: %w", err)
	}
	return sink, nil
}
