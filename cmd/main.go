// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/event-reservations/internal/auth"
	"github.com/Shivanand-hulikatti/event-reservations/internal/cache"
	"github.com/Shivanand-hulikatti/event-reservations/internal/config"
	"github.com/Shivanand-hulikatti/event-reservations/internal/database"
	"github.com/Shivanand-hulikatti/event-reservations/internal/handler"
	"github.com/Shivanand-hulikatti/event-reservations/internal/notify"
	"github.com/Shivanand-hulikatti/event-reservations/internal/repository"
	"github.com/Shivanand-hulikatti/event-reservations/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logrus.Fatal(err)
	}
}

func setupLogging(cfg *config.Config) {
	logrus.SetOutput(os.Stdout)
	if cfg.Log.Format == "json" || cfg.IsProduction() {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logrus.Warnf("unknown log level %q, using info", cfg.Log.Level)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

func run(ctx context.Context, cfg *config.Config) error {
	// ── 1. Connect to PostgreSQL and migrate ─────────────────────────────
	pool, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()
	logrus.Info("connected to PostgreSQL")

	if err := database.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	// ── 2. Optional cache and activity stream ────────────────────────────
	var eventCache cache.EventCache = cache.Noop{}
	if cfg.Redis.Addr != "" {
		rdb, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logrus.WithError(err).Warn("redis unavailable, event cache disabled")
		} else {
			defer rdb.Close()
			eventCache = cache.NewRedisCache(rdb, cfg.Redis.CacheTTL)
			logrus.WithField("addr", cfg.Redis.Addr).Info("event cache enabled")
		}
	}

	var publisher notify.Publisher = notify.Noop{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = notify.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logrus.WithError(err).Warn("close publisher")
		}
	}()

	// ── 3. Wire up layers ────────────────────────────────────────────────
	tx := repository.NewTransactor(pool, cfg.Database.TxAttempts)
	eventRepo := repository.NewEventRepository(pool, tx)
	userRepo := repository.NewUserRepository(pool)
	reservationRepo := repository.NewReservationRepository(pool, tx)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	eventSvc := service.NewEventService(eventRepo, eventCache, publisher)
	reservationSvc := service.NewReservationService(reservationRepo, eventRepo, eventCache, publisher)
	userSvc := service.NewUserService(userRepo, reservationRepo, tokens, cfg.Auth.BcryptCost, eventCache, publisher)

	if err := userSvc.EnsureAdmin(ctx, cfg.Admin); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	var limiter *handler.RateLimiter
	if cfg.Server.ReservationRPS > 0 {
		limiter = handler.NewRateLimiter(cfg.Server.ReservationRPS, cfg.Server.ReservationBurst, 10*time.Minute)
	}

	router := handler.NewRouter(handler.RouterConfig{
		Events:       handler.NewEventHandler(eventSvc),
		Reservations: handler.NewReservationHandler(reservationSvc),
		Users:        handler.NewUserHandler(userSvc),
		Tokens:       tokens,
		Limiter:      limiter,
		CORSOrigins:  cfg.Server.CORSOrigins,
	})

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logrus.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logrus.Info("server stopped")
	return nil
}
