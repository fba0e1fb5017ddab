package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type DeadLetterEntry struct {
	Id            uuid.UUID      `gorm:"type:uuid;primaryKey"`
	OperationType string         `gorm:"type:text;not null;index"`
	Payload       datatypes.JSON `gorm:"type:jsonb"`
	ErrorSummary  string         `gorm:"type:text"`
	AttemptCount  int            `gorm:"not null;default:0"`
	MaxAttempts   int            `gorm:"not null;default:5"`
	Status        string         `gorm:"type:text;not null;index"`
	NextRetryAt   *time.Time     `gorm:"index"`
	Version       int            `gorm:"not null;default:1"`
	EnqueuedAt    time.Time      `gorm:"not null"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime"`
}

func (DeadLetterEntry) TableName() string {
	return "dead_letter_entries"
}
