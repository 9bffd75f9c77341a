package syncqueue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"go_edge_gateway/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Logical queue names
const (
	QueueWatchlist = "watchlist"
	QueuePortfolio = "portfolio"
)

// ErrUnknownQueue is returned for queue names without a configured endpoint.
var ErrUnknownQueue = errors.New("unknown sync queue")

// Manager persists at most one pending optimistic payload per logical queue
// and replays it to the backend when a sync signal fires. Replay is
// at-least-once: the slot is deleted only after a confirmed 2xx.
type Manager struct {
	db         *gorm.DB
	httpClient *http.Client
	endpoints  map[string]string
}

// NewManager creates a new sync queue manager
func NewManager(db *gorm.DB, backendBaseURL string, client *http.Client) *Manager {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	base := strings.TrimSuffix(backendBaseURL, "/")
	return &Manager{
		db:         db,
		httpClient: client,
		endpoints: map[string]string{
			QueueWatchlist: base + "/api/watchlist/sync",
			QueuePortfolio: base + "/api/portfolio/sync",
		},
	}
}

// Queues returns the configured queue names in stable order.
func (m *Manager) Queues() []string {
	names := make([]string, 0, len(m.endpoints))
	for name := range m.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Enqueue stores a payload in the queue's single slot, overwriting any
// pending entry (last write wins, no ordering).
func (m *Manager) Enqueue(queueName string, payload json.RawMessage) error {
	if _, ok := m.endpoints[queueName]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQueue, queueName)
	}

	mutation := models.PendingMutation{
		QueueName: queueName,
		Payload:   []byte(payload),
	}
	err := m.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "queue_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&mutation).Error
	if err != nil {
		return fmt.Errorf("enqueue failed for %s: %w", queueName, err)
	}
	return nil
}

// Pending returns the queue's pending mutation, if any.
func (m *Manager) Pending(queueName string) (*models.PendingMutation, bool, error) {
	var mutation models.PendingMutation
	err := m.db.Where("queue_name = ?", queueName).First(&mutation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("pending lookup failed for %s: %w", queueName, err)
	}
	return &mutation, true, nil
}

// OnSyncSignal replays the queue's pending payload. An empty slot is a
// no-op. The slot is deleted only on a confirmed successful replay; any
// failure leaves it intact for the next signal, so duplicate signals for
// the same tag are harmless.
func (m *Manager) OnSyncSignal(ctx context.Context, queueName string) (bool, error) {
	endpoint, ok := m.endpoints[queueName]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownQueue, queueName)
	}

	mutation, found, err := m.Pending(queueName)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(mutation.Payload))
	if err != nil {
		return false, fmt.Errorf("replay request failed for %s: %w", queueName, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("replay failed for %s, payload retained: %w", queueName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("replay rejected for %s with status %d, payload retained", queueName, resp.StatusCode)
	}

	if err := m.db.Where("queue_name = ?", queueName).Delete(&models.PendingMutation{}).Error; err != nil {
		// The backend accepted the payload; a failed delete means the next
		// signal re-sends it. Acceptable under at-least-once delivery.
		log.Printf("Failed to clear replayed slot for %s: %v", queueName, err)
		return true, nil
	}

	log.Printf("Replayed pending %s mutation", queueName)
	return true, nil
}
