package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go_edge_gateway/services/syncqueue"

	"github.com/gin-gonic/gin"
)

// SyncController handles optimistic-write queueing and sync signals
type SyncController struct {
	queues *syncqueue.Manager
}

// NewSyncController creates a new sync controller
func NewSyncController(queues *syncqueue.Manager) *SyncController {
	return &SyncController{queues: queues}
}

// Enqueue stores an optimistic write for later replay
// POST /internal/queues/:queue
func (sc *SyncController) Enqueue(c *gin.Context) {
	queueName := c.Param("queue")

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable payload"})
		return
	}
	if !json.Valid(payload) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payload must be valid JSON"})
		return
	}

	if err := sc.queues.Enqueue(queueName, payload); err != nil {
		if errors.Is(err, syncqueue.ErrUnknownQueue) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown queue", "queue": queueName})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "enqueue failed"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status": "queued",
		"queue":  queueName,
	})
}

// TriggerSync fires a background-sync signal for one queue
// POST /internal/sync/:queue
func (sc *SyncController) TriggerSync(c *gin.Context) {
	queueName := c.Param("queue")

	replayed, err := sc.queues.OnSyncSignal(c.Request.Context(), queueName)
	if err != nil {
		if errors.Is(err, syncqueue.ErrUnknownQueue) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown queue", "queue": queueName})
			return
		}
		// Replay failed; the payload stays queued for the next signal.
		c.JSON(http.StatusBadGateway, gin.H{
			"status": "retained",
			"queue":  queueName,
			"error":  err.Error(),
		})
		return
	}

	status := "empty"
	if replayed {
		status = "replayed"
	}
	c.JSON(http.StatusOK, gin.H{
		"status": status,
		"queue":  queueName,
	})
}
