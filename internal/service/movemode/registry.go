package movemode

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// Registry keeps the open move sessions of all operators. Sessions that are
// not touched for ttl expire; expiry needs no cleanup since the pool was
// never persisted.
type Registry struct {
	sessions *cache.Cache
	ledger   Ledger
	ttl      time.Duration
}

func NewRegistry(ledger Ledger, ttl time.Duration, logger *slog.Logger) *Registry {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	c := cache.New(ttl, ttl/2)
	if logger != nil {
		c.OnEvicted(func(id string, v any) {
			if s, ok := v.(*Session); ok && len(s.Pool()) > 0 {
				logger.Warn("move session expired with pooled reservations",
					"session_id", id,
					"pooled", len(s.Pool()),
				)
			}
		})
	}

	return &Registry{
		sessions: c,
		ledger:   ledger,
		ttl:      ttl,
	}
}

// Open creates an active session for date.
func (r *Registry) Open(date time.Time) *Session {
	s := NewSession(uuid.NewString(), r.ledger)
	s.Activate(date)
	r.sessions.Set(s.ID(), s, r.ttl)
	return s
}

// Get returns the session and extends its lifetime.
func (r *Registry) Get(id string) (*Session, error) {
	v, ok := r.sessions.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}

	s := v.(*Session)
	r.sessions.Set(id, s, r.ttl)

	return s, nil
}

// Close deactivates the session and forgets it.
func (r *Registry) Close(id string) ([]PoolEntry, error) {
	s, err := r.Get(id)
	if err != nil {
		return nil, err
	}

	left := s.Deactivate()
	r.sessions.Delete(id)

	return left, nil
}
