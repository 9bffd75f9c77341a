package models

import (
	"encoding/json"
	"net/http"
	"time"

	"gorm.io/gorm"
)

// CacheStore registers a named cache store. Entries reference stores by
// name; the registry exists so an empty store still has an identity that
// activation can enumerate.
type CacheStore struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// CacheEntry is a snapshot of a successful upstream response, keyed by the
// full request identity (method + URL) within a store. Only 2xx responses
// are ever persisted.
type CacheEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	StoreName string    `gorm:"index:idx_store_method_url,unique;not null" json:"store_name"`
	Method    string    `gorm:"index:idx_store_method_url,unique;not null" json:"method"`
	URL       string    `gorm:"index:idx_store_method_url,unique;not null" json:"url"`
	Status    int       `json:"status"`
	Headers   string    `json:"headers"` // JSON-encoded http.Header snapshot
	Body      []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Header decodes the stored header snapshot. A corrupt or empty snapshot
// yields an empty header rather than an error; the body and status are
// what matter for replay.
func (e *CacheEntry) Header() http.Header {
	header := http.Header{}
	if e.Headers == "" {
		return header
	}
	var raw map[string][]string
	if err := json.Unmarshal([]byte(e.Headers), &raw); err != nil {
		return header
	}
	for key, values := range raw {
		for _, v := range values {
			header.Add(key, v)
		}
	}
	return header
}

// SetHeader encodes a header snapshot for storage.
func (e *CacheEntry) SetHeader(header http.Header) error {
	raw, err := json.Marshal(map[string][]string(header))
	if err != nil {
		return err
	}
	e.Headers = string(raw)
	return nil
}

// MigrateCacheModels runs database migrations for cache-related models
func MigrateCacheModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&CacheStore{},
		&CacheEntry{},
	)
}
