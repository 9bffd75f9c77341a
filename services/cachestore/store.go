package cachestore

import (
	"errors"
	"fmt"

	"go_edge_gateway/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Manager owns the named cache stores. All stores share one table; a store
// is its name plus the entries carrying it. Concurrent writers to the same
// key resolve by last writer wins (upsert).
type Manager struct {
	db *gorm.DB
}

// NewManager creates a new cache store manager
func NewManager(db *gorm.DB) *Manager {
	return &Manager{db: db}
}

// Ensure registers a store name so it exists even while empty.
func (m *Manager) Ensure(name string) error {
	store := models.CacheStore{Name: name}
	if err := m.db.Where("name = ?", name).FirstOrCreate(&store).Error; err != nil {
		return fmt.Errorf("failed to ensure store %s: %w", name, err)
	}
	return nil
}

// Get looks up an entry in one named store. A miss is not an error.
func (m *Manager) Get(storeName, method, url string) (*models.CacheEntry, bool, error) {
	var entry models.CacheEntry
	err := m.db.Where("store_name = ? AND method = ? AND url = ?", storeName, method, url).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup failed: %w", err)
	}
	return &entry, true, nil
}

// GetAny looks up an entry across all stores, preferring the most recently
// written match. This is the "match any store" lookup the fallback paths use.
func (m *Manager) GetAny(method, url string) (*models.CacheEntry, bool, error) {
	var entry models.CacheEntry
	err := m.db.Where("method = ? AND url = ?", method, url).
		Order("updated_at DESC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup failed: %w", err)
	}
	return &entry, true, nil
}

// Put writes an entry into a store, replacing any previous snapshot for the
// same method + URL.
func (m *Manager) Put(storeName string, entry *models.CacheEntry) error {
	entry.StoreName = storeName
	err := m.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "store_name"}, {Name: "method"}, {Name: "url"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "headers", "body", "updated_at",
		}),
	}).Create(entry).Error
	if err != nil {
		return fmt.Errorf("cache write failed: %w", err)
	}
	return nil
}

// Delete removes a single entry from a store.
func (m *Manager) Delete(storeName, method, url string) error {
	err := m.db.Where("store_name = ? AND method = ? AND url = ?", storeName, method, url).
		Delete(&models.CacheEntry{}).Error
	if err != nil {
		return fmt.Errorf("cache delete failed: %w", err)
	}
	return nil
}

// List returns all entries of a store.
func (m *Manager) List(storeName string) ([]models.CacheEntry, error) {
	var entries []models.CacheEntry
	if err := m.db.Where("store_name = ?", storeName).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("cache list failed: %w", err)
	}
	return entries, nil
}

// StoreNames returns the names of all known stores: registered ones plus
// any name that still has entries.
func (m *Manager) StoreNames() ([]string, error) {
	var registered []string
	if err := m.db.Model(&models.CacheStore{}).Pluck("name", &registered).Error; err != nil {
		return nil, fmt.Errorf("store listing failed: %w", err)
	}

	var withEntries []string
	if err := m.db.Model(&models.CacheEntry{}).Distinct("store_name").
		Pluck("store_name", &withEntries).Error; err != nil {
		return nil, fmt.Errorf("store listing failed: %w", err)
	}

	seen := make(map[string]bool, len(registered)+len(withEntries))
	names := make([]string, 0, len(registered)+len(withEntries))
	for _, name := range append(registered, withEntries...) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names, nil
}

// Drop deletes a store: its registration and every entry in it.
func (m *Manager) Drop(name string) error {
	if err := m.db.Where("store_name = ?", name).Delete(&models.CacheEntry{}).Error; err != nil {
		return fmt.Errorf("failed to drop store %s: %w", name, err)
	}
	if err := m.db.Where("name = ?", name).Delete(&models.CacheStore{}).Error; err != nil {
		return fmt.Errorf("failed to drop store %s: %w", name, err)
	}
	return nil
}
