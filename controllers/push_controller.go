package controllers

import (
	"io"
	"net/http"

	"go_edge_gateway/services/alerts"
	"go_edge_gateway/services/notify"

	"github.com/gin-gonic/gin"
)

// PushController handles push-message ingress and manual periodic-sync
// triggers. Both endpoints are idempotent: a duplicate push re-dispatches a
// tag-deduped notification, a duplicate trigger reruns a full evaluation
// cycle.
type PushController struct {
	dispatcher *notify.Dispatcher
	alerts     *alerts.Engine
}

// NewPushController creates a new push controller
func NewPushController(dispatcher *notify.Dispatcher, alertEngine *alerts.Engine) *PushController {
	return &PushController{dispatcher: dispatcher, alerts: alertEngine}
}

// Receive turns a push message into a notification
// POST /internal/push
func (pc *PushController) Receive(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable push body"})
		return
	}

	// Build never rejects: a malformed body degrades to a text notification.
	payload := pc.dispatcher.Build(raw)
	if err := pc.dispatcher.Dispatch(c.Request.Context(), payload); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "dispatch failed"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status": "dispatched",
		"tag":    payload.Tag,
	})
}

// TriggerEvaluation runs one alert evaluation cycle on demand
// POST /internal/periodic-sync
func (pc *PushController) TriggerEvaluation(c *gin.Context) {
	if err := pc.alerts.Evaluate(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"status": "aborted",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "evaluated"})
}
