package specification

import (
	"time"

	"gorm.io/gorm"
)

// ByUserId filters by the external conversation owner.
type ByUserId struct {
	UserId string
}

func (s ByUserId) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.UserId)
}

// ActiveStates filters sessions still in a live workflow state.
type ActiveStates struct {
	States []string
}

func (s ActiveStates) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("current_state IN ?", s.States)
}

// LastActivityBefore filters sessions idle since the cutoff. Used by
// the expiry sweep.
type LastActivityBefore struct {
	Cutoff time.Time
}

func (s LastActivityBefore) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("last_activity < ?", s.Cutoff)
}

// ByStatus filters dead letter entries by status.
type ByStatus struct {
	Statuses []string
}

func (s ByStatus) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status IN ?", s.Statuses)
}

// DueBefore filters dead letter entries whose retry time has arrived.
type DueBefore struct {
	Now time.Time
}

func (s DueBefore) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("next_retry_at IS NULL OR next_retry_at <= ?", s.Now)
}
