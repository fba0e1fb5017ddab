package memory

import (
	"encoding/json"
	"log"
	"time"

	"github.com/patrickmn/go-cache"

	"invoice-collector-be/internal/entity"
)

// SessionRepository is the in-process hot cache in front of Redis and
// Postgres. Entries are stored as serialized snapshots, the same way
// the Redis layer stores them: a caller mutating the session it got
// from Get never touches the cached copy until the next Save. Entries
// are only ever written after a successful database commit, so a hit
// here is as fresh as the last commit on this node; cross-node
// staleness is caught by the version check on write.
type SessionRepository struct {
	cache *cache.Cache
}

func NewSessionRepository() *SessionRepository {
	// Entries idle out long before the 24h session expiry; purge
	// every 5 minutes.
	c := cache.New(15*time.Minute, 5*time.Minute)
	return &SessionRepository{
		cache: c,
	}
}

func (r *SessionRepository) Save(session *entity.Session) {
	data, err := json.Marshal(session)
	if err != nil {
		log.Printf("[ERROR] Failed to snapshot session %s for hot cache: %v", session.Id, err)
		return
	}
	r.cache.Set(session.UserId, data, cache.DefaultExpiration)
}

func (r *SessionRepository) Get(userId string) (*entity.Session, bool) {
	x, found := r.cache.Get(userId)
	if !found {
		return nil, false
	}
	var s entity.Session
	if err := json.Unmarshal(x.([]byte), &s); err != nil {
		r.cache.Delete(userId)
		return nil, false
	}
	return &s, true
}

func (r *SessionRepository) Delete(userId string) {
	r.cache.Delete(userId)
}
