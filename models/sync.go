package models

import (
	"time"

	"gorm.io/gorm"
)

// PendingMutation is the single replay slot for a logical queue. A queue
// holds at most one payload: enqueueing overwrites whatever was pending
// (last write wins), and the row is deleted only after a confirmed
// successful replay to the backend.
type PendingMutation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	QueueName string    `gorm:"uniqueIndex;not null" json:"queue_name"`
	Payload   []byte    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MigrateSyncModels runs database migrations for sync-queue models
func MigrateSyncModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&PendingMutation{},
	)
}
