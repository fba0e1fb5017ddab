package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ConversationSession is the durable row behind an active session.
// Structured sub-state (collected fields, pending list, work items,
// error history) lives in JSONB columns; the hot path reads through
// Redis and only falls back here on cache miss or restart.
type ConversationSession struct {
	Id     uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId string    `gorm:"type:text;not null;index"`
	ChatId string    `gorm:"type:text;not null"`

	CurrentState      string  `gorm:"type:text;not null"`
	Mode              string  `gorm:"type:text"`
	CurrentField      string  `gorm:"type:text"`
	ConfirmField      string  `gorm:"type:text"`
	ConfirmValue      string  `gorm:"type:text"`
	ConfirmConfidence float64 `gorm:"not null;default:0"`
	EditingField      string  `gorm:"type:text"`

	Collected        datatypes.JSON `gorm:"type:jsonb"`
	Pending          datatypes.JSON `gorm:"type:jsonb"`
	Candidates       datatypes.JSON `gorm:"type:jsonb"`
	WorkItems        datatypes.JSON `gorm:"type:jsonb"`
	ProcessingErrors datatypes.JSON `gorm:"type:jsonb"`

	Degradation  string `gorm:"type:text;not null;default:full"`
	RetryCount   int    `gorm:"not null;default:0"`
	LastUpdateId int64  `gorm:"not null;default:0"`

	Version      int       `gorm:"not null;default:1"`
	LastActivity time.Time `gorm:"not null;index"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (ConversationSession) TableName() string {
	return "conversation_sessions"
}
