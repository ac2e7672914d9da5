package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/careloop/clinic-scheduling/internal/scheduling"
)

type reservationLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReservationLocker creates a scheduling.Locker backed by a per
// (provider, datetime) Redis key. The lock is a try-lock: a contending
// caller gets scheduling.ErrLockNotAcquired instead of waiting.
func NewReservationLocker(client *redis.Client, ttl time.Duration) scheduling.Locker {
	return &reservationLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *reservationLocker) WithReservationLock(ctx context.Context, providerID uuid.UUID, at time.Time, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:reservation:%s:%d", providerID, at.Unix())
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire reservation lock: %w", err)
	}
	if !ok {
		return scheduling.ErrLockNotAcquired
	}

	defer func() {
		_ = l.release(ctx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *reservationLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release reservation lock: %w", err)
	}
	return nil
}
