// Package notify bundles the side effects that follow a committed write:
// read-model invalidation, date change fan-out and lifecycle events.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirinyoku/beachclub/internal/domain"
	"github.com/kirinyoku/beachclub/internal/queue"
	redisrepo "github.com/kirinyoku/beachclub/internal/repository/redis"
)

// Notifier is used only from after-commit hooks. Every field is optional
// and a nil *Notifier does nothing.
type Notifier struct {
	cache  *redisrepo.Cache
	pubsub *redisrepo.DatesPubSub
	events *queue.Publisher
	logger *slog.Logger
}

func New(
	cache *redisrepo.Cache,
	pubsub *redisrepo.DatesPubSub,
	events *queue.Publisher,
	logger *slog.Logger,
) *Notifier {
	return &Notifier{cache: cache, pubsub: pubsub, events: events, logger: logger}
}

// DatesChanged drops cached floor plans and tells subscribers to refresh.
func (n *Notifier) DatesChanged(ctx context.Context, dates []time.Time) {
	if n == nil || len(dates) == 0 {
		return
	}

	if n.cache != nil {
		if err := n.cache.InvalidateDates(ctx, dates); err != nil {
			n.warn("invalidate floor plan cache", err)
		}
	}

	if n.pubsub != nil {
		if err := n.pubsub.PublishDatesChanged(ctx, dates); err != nil {
			n.warn("publish dates changed", err)
		}
	}
}

func (n *Notifier) Reservation(ctx context.Context, ev queue.ReservationEvent) {
	if n == nil || n.events == nil {
		return
	}

	if err := n.events.Publish(ctx, ev); err != nil {
		n.warn("publish reservation event", err, "type", string(ev.Type), "reservation_id", ev.ReservationID)
	}
}

func (n *Notifier) warn(msg string, err error, args ...any) {
	if n.logger == nil {
		return
	}
	n.logger.Warn(msg, append([]any{"error", err}, args...)...)
}

// DateStrings formats dates for event payloads.
func DateStrings(dates []time.Time) []string {
	out := make([]string, 0, len(dates))
	for _, d := range domain.UniqueDays(dates) {
		out = append(out, domain.DateKey(d))
	}
	return out
}
