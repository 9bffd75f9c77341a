package models

import (
	"time"

	"gorm.io/gorm"
)

// NotificationRecord is the persisted copy of a dispatched notification.
// Records are keyed by tag so a repeated trigger for the same symbol
// replaces the previous record instead of stacking; reconnecting windows
// read recent records to catch up on what they missed.
type NotificationRecord struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	Tag                string    `gorm:"uniqueIndex;not null" json:"tag"`
	Title              string    `json:"title"`
	Body               string    `json:"body"`
	Icon               string    `json:"icon"`
	Badge              string    `json:"badge"`
	TargetURL          string    `json:"target_url"`
	Actions            string    `json:"actions"` // JSON-encoded action list
	RequireInteraction bool      `json:"require_interaction"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// MigrateNotificationModels runs database migrations for notification models
func MigrateNotificationModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&NotificationRecord{},
	)
}
