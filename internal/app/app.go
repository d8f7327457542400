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

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kirinyoku/beachclub/internal/config"
	"github.com/kirinyoku/beachclub/internal/postgres"
	"github.com/kirinyoku/beachclub/internal/queue"
	"github.com/kirinyoku/beachclub/internal/redis"
	postgresrepo "github.com/kirinyoku/beachclub/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/beachclub/internal/repository/redis"
	"github.com/kirinyoku/beachclub/internal/service"
	"github.com/kirinyoku/beachclub/internal/service/admin"
	"github.com/kirinyoku/beachclub/internal/service/notify"
	"github.com/kirinyoku/beachclub/internal/service/query"
	"github.com/kirinyoku/beachclub/internal/service/reservation"
	httpgin "github.com/kirinyoku/beachclub/internal/transport/http/gin"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	pool       *pgxpool.Pool
	rdb        *goredis.Client
	events     *queue.Publisher
	pubsub     *redisrepo.DatesPubSub
	httpServer *http.Server
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	// Initialize dependencies
	pgxPool, err := postgres.New(ctx, postgres.Config{
		DSN:      cfg.Postgres.DSN(),
		MaxConns: cfg.Postgres.MaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	rdb, err := redis.New(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		pgxPool.Close()
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	var events *queue.Publisher
	if cfg.RabbitMQ.URL != "" {
		events, err = queue.NewPublisher(cfg.RabbitMQ.URL, logger)
		if err != nil {
			pgxPool.Close()
			_ = rdb.Close()
			return nil, fmt.Errorf("failed to initialize rabbitmq: %w", err)
		}
	} else {
		logger.Warn("RABBITMQ_URL not set, reservation events are disabled")
	}

	// Initialize repositories
	store := postgresrepo.NewStore(pgxPool)
	if err := bootstrapStore(ctx, store, cfg.StatesFile, logger); err != nil {
		pgxPool.Close()
		_ = rdb.Close()
		_ = events.Close()
		return nil, err
	}

	cache := redisrepo.New(rdb)
	pubsub := redisrepo.NewDatesPubSub(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(
		rdb,
		"create",
		cfg.Reservation.CreateLimit,
		cfg.Reservation.CreateLimitWindow,
	)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, cfg.Reservation.IdempotencyTTL)
	notifier := notify.New(cache, pubsub, events, logger)

	// Initialize services
	services := service.NewServices(store, cache, notifier, limiter, logger, service.Config{
		Reservation: reservation.Config{
			TicketMaxRetries: cfg.Reservation.TicketMaxRetries,
		},
		Query: query.Config{
			FloorPlanTTL: cfg.Reservation.FloorPlanTTL,
		},
		Admin:          admin.Config{},
		MoveSessionTTL: cfg.Reservation.MoveSessionTTL,
	})

	// Initialize Gin router
	router := httpgin.NewRouter(
		services,
		idempotencyStore,
		logger,
		httpgin.RateLimit(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst),
	)

	return &App{
		cfg:    cfg,
		logger: logger,
		pool:   pgxPool,
		rdb:    rdb,
		events: events,
		pubsub: pubsub,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// bootstrapStore applies the schema and seeds the state catalog. A missing
// seed file is fine once the table has rows.
func bootstrapStore(ctx context.Context, store *postgresrepo.Store, statesFile string, logger *slog.Logger) error {
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	states, err := config.LoadStateCatalog(statesFile)
	if err != nil {
		logger.Warn("state catalog seed not loaded", "file", statesFile, "error", err)
		return nil
	}

	if err := store.States().Seed(ctx, states); err != nil {
		return fmt.Errorf("failed to seed states: %w", err)
	}

	return nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	defer a.close()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Floor plan change feed, logged for operators tailing the service
	g.Go(func() error {
		err := a.pubsub.Subscribe(gCtx, func(ctx context.Context, date time.Time) {
			a.logger.Debug("floor plan changed", "date", date.Format("2006-01-02"))
		})
		if err != nil && gCtx.Err() == nil {
			return fmt.Errorf("dates subscription: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}

func (a *App) close() {
	if err := a.events.Close(); err != nil {
		a.logger.Warn("close rabbitmq publisher", "error", err)
	}
	if err := a.rdb.Close(); err != nil {
		a.logger.Warn("close redis", "error", err)
	}
	a.pool.Close()
}
