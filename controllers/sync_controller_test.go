package controllers

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"go_edge_gateway/models"
	"go_edge_gateway/services/syncqueue"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newSyncRouter(t *testing.T, backendURL string) (*gin.Engine, *syncqueue.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.MigrateSyncModels(db))

	queues := syncqueue.NewManager(db, backendURL, nil)
	controller := NewSyncController(queues)

	router := gin.New()
	router.POST("/internal/queues/:queue", controller.Enqueue)
	router.POST("/internal/sync/:queue", controller.TriggerSync)
	return router, queues
}

func TestEnqueueAcceptsJSONPayload(t *testing.T) {
	router, queues := newSyncRouter(t, "http://localhost")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/queues/watchlist", strings.NewReader(`{"symbols":["ABC"]}`))
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)

	pending, found, err := queues.Pending(syncqueue.QueueWatchlist)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `{"symbols":["ABC"]}`, string(pending.Payload))
}

func TestEnqueueRejectsInvalidJSON(t *testing.T) {
	router, _ := newSyncRouter(t, "http://localhost")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/queues/watchlist", strings.NewReader("not-json"))
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnqueueUnknownQueueIs404(t *testing.T) {
	router, _ := newSyncRouter(t, "http://localhost")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/queues/settings", strings.NewReader(`{}`))
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTriggerSyncReplaysAndReportsStatus(t *testing.T) {
	var posts int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&posts, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	router, queues := newSyncRouter(t, backend.URL)
	require.NoError(t, queues.Enqueue(syncqueue.QueuePortfolio, []byte(`{"holdings":[]}`)))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/sync/portfolio", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"replayed"`)
	assert.EqualValues(t, 1, atomic.LoadInt32(&posts))

	// Second signal finds an empty slot.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/internal/sync/portfolio", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"empty"`)
	assert.EqualValues(t, 1, atomic.LoadInt32(&posts))
}

func TestTriggerSyncReportsRetainedPayloadOnFailure(t *testing.T) {
	router, queues := newSyncRouter(t, "http://127.0.0.1:1")
	require.NoError(t, queues.Enqueue(syncqueue.QueueWatchlist, []byte(`{"symbols":["ABC"]}`)))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/sync/watchlist", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), `"retained"`)

	_, found, err := queues.Pending(syncqueue.QueueWatchlist)
	require.NoError(t, err)
	assert.True(t, found)
}
