package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"invoice-collector-be/internal/entity"
)

// SessionCache is the hot read path in front of Postgres. Entries
// carry the session version; a cached copy older than the database
// row loses and is simply overwritten on the next write-through.
type SessionCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSessionCache(rdb *redis.Client, ttl time.Duration) *SessionCache {
	return &SessionCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached session for userId, or nil on miss. Cache
// errors degrade to a miss so Postgres stays authoritative.
func (c *SessionCache) Get(ctx context.Context, userId string) *entity.Session {
	data, err := c.rdb.Get(ctx, sessionKey(userId)).Bytes()
	if err != nil {
		return nil
	}
	var s entity.Session
	if err := json.Unmarshal(data, &s); err != nil {
		c.rdb.Del(ctx, sessionKey(userId))
		return nil
	}
	return &s
}

// Put writes the session through after a successful database commit.
func (c *SessionCache) Put(ctx context.Context, s *entity.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("cache session: %w", err)
	}
	if err := c.rdb.Set(ctx, sessionKey(s.UserId), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache session: %w", err)
	}
	return nil
}

// Drop evicts the cached session, forcing the next read to Postgres.
func (c *SessionCache) Drop(ctx context.Context, userId string) {
	c.rdb.Del(ctx, sessionKey(userId))
}

func sessionKey(userId string) string {
	return "invoice:session:" + userId
}
