package service

import (
	"log/slog"
	"time"

	postgres "github.com/kirinyoku/beachclub/internal/repository/postgres"
	redis "github.com/kirinyoku/beachclub/internal/repository/redis"
	"github.com/kirinyoku/beachclub/internal/service/admin"
	"github.com/kirinyoku/beachclub/internal/service/availability"
	"github.com/kirinyoku/beachclub/internal/service/movemode"
	"github.com/kirinyoku/beachclub/internal/service/notify"
	"github.com/kirinyoku/beachclub/internal/service/query"
	"github.com/kirinyoku/beachclub/internal/service/reservation"
)

type Services struct {
	Availability *availability.Service
	Reservation  *reservation.Service
	Query        *query.Service
	Admin        *admin.Service
	Move         *movemode.Service
	MoveSessions *movemode.Registry
}

type Config struct {
	Reservation    reservation.Config
	Query          query.Config
	Admin          admin.Config
	MoveSessionTTL time.Duration
}

func NewServices(
	store *postgres.Store,
	cache *redis.Cache,
	notifier *notify.Notifier,
	limiter *redis.SlidingWindowLimiter,
	logger *slog.Logger,
	cfg Config,
) *Services {
	checker := availability.New(store)
	move := movemode.New(store, checker, notifier)

	return &Services{
		Availability: checker,
		Reservation:  reservation.New(store, checker, notifier, limiter, logger, cfg.Reservation),
		Query:        query.New(store, cache, cfg.Query),
		Admin:        admin.New(store, checker, notifier, logger, cfg.Admin),
		Move:         move,
		MoveSessions: movemode.NewRegistry(move, cfg.MoveSessionTTL, logger),
	}
}
