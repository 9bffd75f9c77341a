package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"go_edge_gateway/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Notification defaults, merged into every dispatched payload.
const (
	DefaultTitle = "Market Dashboard"
	DefaultBody  = "You have a new update."
	DefaultIcon  = "/icons/icon-192.png"
	DefaultBadge = "/icons/badge-72.png"
	DefaultTag   = "general"
	DefaultURL   = "/"
)

// ActionDismiss closes the notification without touching any window.
const ActionDismiss = "dismiss"

// Action is one button on a notification
type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

// Payload is a fully built notification
type Payload struct {
	Title              string   `json:"title"`
	Body               string   `json:"body"`
	Icon               string   `json:"icon"`
	Badge              string   `json:"badge"`
	Tag                string   `json:"tag"`
	URL                string   `json:"url"`
	Actions            []Action `json:"actions"`
	RequireInteraction bool     `json:"requireInteraction"`
}

// pushMessage is the wire shape of an incoming push body; data.url carries
// the deep link.
type pushMessage struct {
	Title              string   `json:"title"`
	Body               string   `json:"body"`
	Icon               string   `json:"icon"`
	Badge              string   `json:"badge"`
	Tag                string   `json:"tag"`
	Actions            []Action `json:"actions"`
	RequireInteraction bool     `json:"requireInteraction"`
	Data               struct {
		URL string `json:"url"`
	} `json:"data"`
}

// ClickEvent is a notification-click reported by a window
type ClickEvent struct {
	Tag    string `json:"tag"`
	Action string `json:"action"`
	URL    string `json:"url"`
}

// WindowRegistry is the window-facing side of the dispatcher. Implemented
// by the Hub; faked in tests.
type WindowRegistry interface {
	Broadcast(cmd Command)
	Focus(targetURL string) bool
	Open(targetURL string) error
}

// Dispatcher builds and delivers notifications and routes click events back
// to windows.
type Dispatcher struct {
	db      *gorm.DB
	windows WindowRegistry
	history *HistoryMirror
}

// NewDispatcher creates a new notification dispatcher. history may be nil
// when no mirror is configured.
func NewDispatcher(db *gorm.DB, windows WindowRegistry, history *HistoryMirror) *Dispatcher {
	return &Dispatcher{db: db, windows: windows, history: history}
}

// Build merges a raw push body with the notification defaults. A body that
// is not valid JSON degrades to a text-only notification: the raw text
// becomes the body and everything else falls back to defaults. The
// notification is never dropped.
func (d *Dispatcher) Build(raw []byte) Payload {
	var msg pushMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Printf("Malformed push payload, using raw text body: %v", err)
		return Payload{
			Title: DefaultTitle,
			Body:  string(raw),
			Icon:  DefaultIcon,
			Badge: DefaultBadge,
			Tag:   DefaultTag,
			URL:   DefaultURL,
		}
	}

	payload := Payload{
		Title:              msg.Title,
		Body:               msg.Body,
		Icon:               msg.Icon,
		Badge:              msg.Badge,
		Tag:                msg.Tag,
		URL:                msg.Data.URL,
		Actions:            msg.Actions,
		RequireInteraction: msg.RequireInteraction,
	}
	if payload.Title == "" {
		payload.Title = DefaultTitle
	}
	if payload.Body == "" {
		payload.Body = DefaultBody
	}
	if payload.Icon == "" {
		payload.Icon = DefaultIcon
	}
	if payload.Badge == "" {
		payload.Badge = DefaultBadge
	}
	if payload.Tag == "" {
		payload.Tag = DefaultTag
	}
	if payload.URL == "" {
		payload.URL = DefaultURL
	}
	return payload
}

// Dispatch persists the notification (tag-keyed, so a repeat replaces the
// prior one) and pushes it to every connected window.
func (d *Dispatcher) Dispatch(ctx context.Context, payload Payload) error {
	actions, err := json.Marshal(payload.Actions)
	if err != nil {
		return fmt.Errorf("action encoding failed: %w", err)
	}

	record := models.NotificationRecord{
		Tag:                payload.Tag,
		Title:              payload.Title,
		Body:               payload.Body,
		Icon:               payload.Icon,
		Badge:              payload.Badge,
		TargetURL:          payload.URL,
		Actions:            string(actions),
		RequireInteraction: payload.RequireInteraction,
	}
	err = d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tag"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "body", "icon", "badge", "target_url", "actions",
			"require_interaction", "updated_at",
		}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("notification record write failed: %w", err)
	}

	d.history.Record(ctx, &record)

	d.windows.Broadcast(Command{Type: CommandNotification, Data: payload})
	return nil
}

// OnClick closes the clicked notification and routes the user: dismiss does
// nothing further, any other action resolves the target URL and performs
// exactly one focus-or-open.
func (d *Dispatcher) OnClick(ctx context.Context, event ClickEvent) error {
	d.windows.Broadcast(Command{
		Type: CommandNotificationClose,
		Data: map[string]string{"tag": event.Tag},
	})

	if event.Action == ActionDismiss {
		return nil
	}

	targetURL := event.URL
	if targetURL == "" {
		targetURL = d.targetFor(ctx, event.Tag)
	}

	if d.windows.Focus(targetURL) {
		return nil
	}
	return d.windows.Open(targetURL)
}

// Recent returns the latest dispatched notifications, newest first, so a
// reconnecting window can catch up.
func (d *Dispatcher) Recent(ctx context.Context, limit int) ([]models.NotificationRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var records []models.NotificationRecord
	err := d.db.WithContext(ctx).Order("updated_at DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("notification listing failed: %w", err)
	}
	return records, nil
}

// targetFor resolves a click's deep link from the persisted record.
func (d *Dispatcher) targetFor(ctx context.Context, tag string) string {
	var record models.NotificationRecord
	err := d.db.WithContext(ctx).Where("tag = ?", tag).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || record.TargetURL == "" {
		return DefaultURL
	}
	if err != nil {
		log.Printf("Notification lookup failed for tag %s: %v", tag, err)
		return DefaultURL
	}
	return record.TargetURL
}
