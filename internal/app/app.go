package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ritams/smashit-sub000/internal/config"
	"github.com/ritams/smashit-sub000/internal/dispatch"
	"github.com/ritams/smashit-sub000/internal/postgres"
	"github.com/ritams/smashit-sub000/internal/redis"
	postgresrepo "github.com/ritams/smashit-sub000/internal/repository/postgres"
	redisrepo "github.com/ritams/smashit-sub000/internal/repository/redis"
	"github.com/ritams/smashit-sub000/internal/service"
	httpgin "github.com/ritams/smashit-sub000/internal/transport/http/gin"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	dispatcher *dispatch.Dispatcher
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	// Initialize dependencies
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.Name,
		cfg.Postgres.SSLMode,
	)

	pgxPool, err := postgres.New(context.Background(), postgres.Config{DSN: dsn})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	rdb, err := redis.New(context.Background(), redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	// Initialize repositories
	store := postgresrepo.NewStore(pgxPool)
	cache := redisrepo.New(rdb)
	pubsub := redis.NewEventsPubSub(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(rdb, "rl", cfg.Booking.RateLimitPerMin, 1*time.Minute)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, cfg.Booking.IdempotencyTTL)

	// Per-space admission queue
	dispatcher := dispatch.New(dispatch.Config{
		QueueLen: cfg.Booking.QueueLen,
		Wait:     cfg.Booking.QueueWait,
	})

	// Initialize services
	services := service.NewServices(store, cache, pubsub, dispatcher, logger, service.Config{})

	// Initialize Gin router
	router := httpgin.NewRouter(services, idempotencyStore, limiter, logger)

	return &App{
		cfg:        cfg,
		logger:     logger,
		dispatcher: dispatcher,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Graceful shutdown: stop accepting requests first, then drain the
	// per-space queues so accepted admissions run to completion.
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.httpServer.Shutdown(ctx); err != nil {
			return err
		}
		return a.dispatcher.Close(ctx)
	})

	return g.Wait()
}
