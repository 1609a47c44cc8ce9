package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type setOnceStore map[string]any

func (s setOnceStore) Get(_ context.Context, key string) (string, error) {
	return fmt.Sprint(s[key]), nil
}

func (s setOnceStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, taken := s[key]; taken {
		return false, nil
	}
	s[key] = value
	return true, nil
}

func (s setOnceStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s, key)
	}
	return nil
}

func (s setOnceStore) IdempotencyKey(scope, id string) string {
	return "pm:idempotency:" + scope + ":" + id
}

func ExampleGuard_Claim() {
	ctx := context.Background()
	guard, _ := NewGuard(setOnceStore{}, 30*24*time.Hour)
	eventID := uuid.MustParse("f47ac10b-58cc-4372-a567-0e02b2c3d479")

	for delivery := 1; delivery <= 2; delivery++ {
		claimed, _ := guard.Claim(ctx, "notification-worker", eventID)
		fmt.Printf("delivery %d claimed=%t\n", delivery, claimed)
	}
	_ = guard.Release(ctx, "notification-worker", eventID)
	claimed, _ := guard.Claim(ctx, "notification-worker", eventID)
	fmt.Printf("after release claimed=%t\n", claimed)
	// Output:
	// delivery 1 claimed=true
	// delivery 2 claimed=false
	// after release claimed=true
}
