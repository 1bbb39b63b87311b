package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "milltownabc/docs"

	"milltownabc/internal/booking"
	"milltownabc/internal/calendar"
	"milltownabc/internal/config"
	"milltownabc/internal/db"
	"milltownabc/internal/email"
	"milltownabc/internal/guard"
	"milltownabc/internal/jobs"
	"milltownabc/internal/logger"
	"milltownabc/internal/member"
	"milltownabc/internal/payment"
	"milltownabc/internal/server"

	"github.com/redis/go-redis/v9"
)

// @title Milltown ABC API
// @version 1.0
// @description Class booking for Milltown Amateur Boxing Club.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logger.Info("Starting Milltown ABC", "env", cfg.Env, "timezone", cfg.Timezone)

	logger.Info("Connecting to database...")
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := db.RunMigrations(database, cfg.MigrationsPath); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("Migrations completed")

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	emailService := email.New(rdb, email.Config{
		From:     cfg.EmailFrom,
		FromName: cfg.EmailFromName,
		SMTPHost: cfg.SMTPHost,
		SMTPPort: cfg.SMTPPort,
		SMTPUser: cfg.SMTPUser,
		SMTPPass: cfg.SMTPPass,
		BaseURL:  cfg.AppBaseURL,
		Location: cfg.Location,
	})
	go emailService.Start(ctx)
	dispatcher := email.NewDispatcher(30 * time.Second)

	var counters guard.CounterStore = guard.NewMemoryCounterStore()
	if cfg.RateLimitBackend == "redis" {
		counters = guard.NewRedisCounterStore(rdb)
	}
	abuse := guard.New(
		guard.NewDailyLimiter(counters, cfg.Location),
		guard.NewCaptchaVerifier(cfg.CaptchaSecret, cfg.CaptchaVerifyURL),
		guard.NewAuditLog(cfg.AuditLogSize),
		guard.Options{BookingsPerDay: cfg.BookingsPerIPPerDay, SignupsPerDay: cfg.SignupsPerIPPerDay},
	)

	gateway := payment.NewMidtransGateway(cfg.PaymentServerKey, cfg.PaymentTimeout)
	switch {
	case !gateway.Configured():
		logger.Warn("Payment gateway has no server key, card payments will fail")
	case !gateway.SupportsCurrency(cfg.Currency):
		logger.Warn("Payment gateway cannot settle the configured currency, card payments are off", "currency", cfg.Currency)
	}

	memberRepo := member.NewRepository(database)
	classRepo := calendar.NewRepository(database)

	members := member.NewService(memberRepo, abuse, emailService, dispatcher, cfg.JWTSecret)
	classes := calendar.NewService(classRepo, calendar.Options{
		Location:         cfg.Location,
		Weeks:            cfg.ScheduleWeeks,
		PublicWindowDays: cfg.PublicWindowDays,
		DefaultCapacity:  cfg.DefaultCapacity,
		PriceCents:       cfg.SessionPriceCents,
	})
	bookings := booking.NewService(
		booking.NewRepository(database),
		memberRepo,
		classRepo,
		gateway,
		abuse,
		emailService,
		dispatcher,
		booking.Options{
			Location:          cfg.Location,
			SessionPriceCents: cfg.SessionPriceCents,
			Currency:          cfg.Currency,
			MaxFutureBookings: cfg.MaxFutureBookings,
		},
	)

	scheduler, err := jobs.NewScheduler(cfg.Location, classes, emailService)
	if err != nil {
		logger.Fatalf("Failed to set up job scheduler: %v", err)
	}
	scheduler.Start()

	srv := server.New(cfg, server.Services{
		Members:  members,
		Calendar: classes,
		Bookings: bookings,
		Guard:    abuse,
		Gateway:  gateway,
	})

	serverErrChan := make(chan error, 1)
	go func() {
		logger.Infof("Server starting on port %s", cfg.Port)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Infof("Received signal: %v", sig)
	case err := <-serverErrChan:
		logger.Errorf("Server error: %v", err)
	}

	logger.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Error during server shutdown: %v", err)
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Errorf("Job scheduler did not stop in time: %v", err)
	}
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		logger.Errorf("Background tasks did not finish in time: %v", err)
	}

	cancel()
	logger.Info("Server stopped")
}
