package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	claimed  bool
	err      error
	key      string
	value    any
	ttl      time.Duration
	released []string
}

func (s *recordingStore) Get(context.Context, string) (string, error) {
	return "", nil
}

func (s *recordingStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.key, s.value, s.ttl = key, value, ttl
	return s.claimed, s.err
}

func (s *recordingStore) Del(_ context.Context, keys ...string) error {
	s.released = append(s.released, keys...)
	return nil
}

func (s *recordingStore) IdempotencyKey(scope, id string) string {
	return "pm:idempotency:" + scope + ":" + id
}

func TestNewGuardValidates(t *testing.T) {
	_, err := NewGuard(nil, time.Hour)
	assert.Error(t, err)

	_, err = NewGuard(&recordingStore{}, -time.Second)
	assert.Error(t, err)
}

func TestClaimStoresTimestampUnderConsumerKey(t *testing.T) {
	store := &recordingStore{claimed: true}
	guard, err := NewGuard(store, 24*time.Hour)
	require.NoError(t, err)
	guard.now = func() time.Time { return time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC) }

	eventID := uuid.New()
	claimed, err := guard.Claim(context.Background(), " notification-worker ", eventID)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, "pm:idempotency:consumer:notification-worker:"+eventID.String(), store.key)
	assert.Equal(t, "2026-01-05T09:00:00Z", store.value)
	assert.Equal(t, 24*time.Hour, store.ttl)
}

func TestClaimReportsEarlierDelivery(t *testing.T) {
	guard, err := NewGuard(&recordingStore{claimed: false}, time.Hour)
	require.NoError(t, err)

	claimed, err := guard.Claim(context.Background(), "notification-worker", uuid.New())
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestClaimPropagatesStoreError(t *testing.T) {
	guard, err := NewGuard(&recordingStore{err: errors.New("redis down")}, time.Hour)
	require.NoError(t, err)

	_, err = guard.Claim(context.Background(), "notification-worker", uuid.New())
	assert.Error(t, err)
}

func TestClaimRequiresConsumerAndEvent(t *testing.T) {
	guard, err := NewGuard(&recordingStore{claimed: true}, time.Hour)
	require.NoError(t, err)

	_, err = guard.Claim(context.Background(), "", uuid.New())
	assert.Error(t, err)
	_, err = guard.Claim(context.Background(), "notification-worker", uuid.Nil)
	assert.Error(t, err)
}

func TestReleaseDeletesClaim(t *testing.T) {
	store := &recordingStore{}
	guard, err := NewGuard(store, time.Hour)
	require.NoError(t, err)

	eventID := uuid.New()
	require.NoError(t, guard.Release(context.Background(), "notification-worker", eventID))
	assert.Equal(t, []string{"pm:idempotency:consumer:notification-worker:" + eventID.String()}, store.released)
}
