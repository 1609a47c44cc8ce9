package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/projectmarket-backend/pkg/redis"
)

const claimScope = "consumer"

// Guard lets one delivery of an outbox event through per consumer. Pub/Sub is
// at-least-once, so every consumer claims the event id before side effects.
type Guard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	now   func() time.Time
}

// NewGuard keeps claims for ttl; zero keeps them until evicted.
func NewGuard(store redis.IdempotencyStore, ttl time.Duration) (*Guard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Guard{store: store, ttl: ttl, now: time.Now}, nil
}

// Claim reports true when this call took the claim, false when an earlier
// delivery already holds it.
func (g *Guard) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	return g.store.SetNX(ctx, key, g.now().UTC().Format(time.RFC3339), g.ttl)
}

// Release drops a claim so the next redelivery is handled again.
func (g *Guard) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := g.key(consumer, eventID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *Guard) key(consumer string, eventID uuid.UUID) (string, error) {
	consumer = strings.TrimSpace(consumer)
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey(claimScope+":"+consumer, eventID.String()), nil
}
