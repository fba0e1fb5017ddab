package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockBusy is returned when the per-user lease could not be
// acquired within the wait budget.
var ErrLockBusy = errors.New("store: session lock busy")

// releaseScript deletes the lease only when the caller still owns it,
// so an expired-and-reacquired lease is never released by the old
// holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SessionLock serializes event processing per user. Updates for the
// same user are applied one at a time; updates for different users
// run concurrently.
type SessionLock struct {
	rdb      *redis.Client
	ttl      time.Duration
	maxWait  time.Duration
	interval time.Duration
}

func NewSessionLock(rdb *redis.Client, ttl, maxWait time.Duration) *SessionLock {
	return &SessionLock{
		rdb:      rdb,
		ttl:      ttl,
		maxWait:  maxWait,
		interval: 50 * time.Millisecond,
	}
}

// Acquire takes the lease for userId, polling until maxWait elapses.
// The returned token must be passed to Release.
func (l *SessionLock) Acquire(ctx context.Context, userId string) (string, error) {
	key := lockKey(userId)
	token := uuid.NewString()
	deadline := time.Now().Add(l.maxWait)

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return "", fmt.Errorf("acquire session lock: %w", err)
		}
		if ok {
			return token, nil
		}
		if time.Now().After(deadline) {
			return "", ErrLockBusy
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(l.interval):
		}
	}
}

// Release gives the lease back if token still owns it.
func (l *SessionLock) Release(ctx context.Context, userId, token string) error {
	if err := releaseScript.Run(ctx, l.rdb, []string{lockKey(userId)}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release session lock: %w", err)
	}
	return nil
}

func lockKey(userId string) string {
	return "invoice:lock:session:" + userId
}
