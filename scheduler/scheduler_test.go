package scheduler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"go_edge_gateway/models"
	"go_edge_gateway/services/syncqueue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.MigrateSyncModels(db))
	require.NoError(t, models.MigrateNotificationModels(db))
	return db
}

func TestReconnectFiresSyncSignals(t *testing.T) {
	var posts int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			atomic.AddInt32(&posts, 1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	db := newTestDB(t)
	queues := syncqueue.NewManager(db, backend.URL, nil)
	s := NewScheduler(db, nil, queues, Options{BackendBaseURL: backend.URL})

	require.NoError(t, queues.Enqueue(syncqueue.QueueWatchlist, []byte(`{"symbols":["ABC"]}`)))

	ctx := context.Background()

	// Still online: no transition, nothing replays.
	s.SetOnline(ctx, true)
	assert.EqualValues(t, 0, atomic.LoadInt32(&posts))

	// Offline, then back online: the restoration signal replays the queue.
	s.SetOnline(ctx, false)
	assert.False(t, s.Online())
	s.SetOnline(ctx, true)
	assert.True(t, s.Online())
	assert.EqualValues(t, 1, atomic.LoadInt32(&posts))

	_, found, err := queues.Pending(syncqueue.QueueWatchlist)
	require.NoError(t, err)
	assert.False(t, found)

	// A repeated online report is not another transition.
	s.SetOnline(ctx, true)
	assert.EqualValues(t, 1, atomic.LoadInt32(&posts))
}

func TestProbeConnectivityTracksBackendHealth(t *testing.T) {
	healthy := int32(1)
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.LoadInt32(&healthy) == 1 {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer backend.Close()

	db := newTestDB(t)
	queues := syncqueue.NewManager(db, backend.URL, nil)
	s := NewScheduler(db, nil, queues, Options{BackendBaseURL: backend.URL})

	ctx := context.Background()

	s.ProbeConnectivity(ctx)
	assert.True(t, s.Online())

	atomic.StoreInt32(&healthy, 0)
	s.ProbeConnectivity(ctx)
	assert.False(t, s.Online())

	atomic.StoreInt32(&healthy, 1)
	s.ProbeConnectivity(ctx)
	assert.True(t, s.Online())
}

func TestCleanupRemovesOnlyOldNotifications(t *testing.T) {
	db := newTestDB(t)
	s := NewScheduler(db, nil, syncqueue.NewManager(db, "http://localhost", nil), Options{})

	old := models.NotificationRecord{Tag: "alert-OLD", Title: "old"}
	require.NoError(t, db.Create(&old).Error)
	require.NoError(t, db.Model(&old).Update("updated_at", time.Now().Add(-45*24*time.Hour)).Error)
	require.NoError(t, db.Create(&models.NotificationRecord{Tag: "alert-NEW", Title: "new"}).Error)

	s.cleanupNotifications()

	var remaining []models.NotificationRecord
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, "alert-NEW", remaining[0].Tag)
}
