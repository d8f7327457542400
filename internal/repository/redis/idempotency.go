package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// StoredResponse is the answer a finished create request gave to its
// Idempotency-Key.
type StoredResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

type idemRecord struct {
	Pending  bool            `json:"pending,omitempty"`
	Response *StoredResponse `json:"response,omitempty"`
}

// IdempotencyStore keeps one record per client Idempotency-Key: pending
// while the first request runs, then the response it produced.
type IdempotencyStore struct {
	rdb        *redis.Client
	ttl        time.Duration
	pendingTTL time.Duration
}

func NewIdempotencyStore(rdb *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb, ttl: ttl, pendingTTL: time.Minute}
}

// Claim marks key pending. It reports false when another request already
// holds or finished it.
func (s *IdempotencyStore) Claim(ctx context.Context, key string) (bool, error) {
	b, _ := json.Marshal(idemRecord{Pending: true})
	return s.rdb.SetNX(ctx, KeyIdemReservation(key), b, s.pendingTTL).Result()
}

// Lookup returns the stored response of key, nil while it is absent or pending.
func (s *IdempotencyStore) Lookup(ctx context.Context, key string) (*StoredResponse, error) {
	raw, err := s.rdb.Get(ctx, KeyIdemReservation(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec idemRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}

	return rec.Response, nil
}

// Complete replaces the pending marker with the response for the full ttl.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, status int, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	b, err := json.Marshal(idemRecord{Response: &StoredResponse{Status: status, Body: payload}})
	if err != nil {
		return err
	}

	return s.rdb.Set(ctx, KeyIdemReservation(key), b, s.ttl).Err()
}

// Abandon forgets key so that the client may retry with it.
func (s *IdempotencyStore) Abandon(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, KeyIdemReservation(key)).Err()
}
