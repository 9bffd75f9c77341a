package controllers

import (
	"net/http"
	"strconv"

	"go_edge_gateway/services/notify"

	"github.com/gin-gonic/gin"
)

// WindowController handles dashboard window attachment and notification
// click routing
type WindowController struct {
	hub        *notify.Hub
	dispatcher *notify.Dispatcher
}

// NewWindowController creates a new window controller
func NewWindowController(hub *notify.Hub, dispatcher *notify.Dispatcher) *WindowController {
	return &WindowController{hub: hub, dispatcher: dispatcher}
}

// Attach upgrades a dashboard window to a WebSocket connection
// GET /internal/windows
func (wc *WindowController) Attach(c *gin.Context) {
	if err := wc.hub.Attach(c.Writer, c.Request); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	}
}

// Click routes a notification-click event
// POST /internal/notifications/click
func (wc *WindowController) Click(c *gin.Context) {
	var event notify.ClickEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid click event"})
		return
	}

	if err := wc.dispatcher.OnClick(c.Request.Context(), event); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "click routing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "handled"})
}

// Recent returns the latest dispatched notifications for catch-up
// GET /internal/notifications
func (wc *WindowController) Recent(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	records, err := wc.dispatcher.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"notifications": records,
		"count":         len(records),
	})
}
