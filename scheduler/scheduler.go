// Package scheduler owns all timing for the edge gateway. The engines have
// no scheduling authority of their own: periodic alert evaluation,
// connectivity probing (the background-sync signal source) and history
// cleanup are all driven from here, and every job body is idempotent under
// duplicate or missed invocations.
package scheduler

import (
	"context"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"go_edge_gateway/models"
	"go_edge_gateway/services/alerts"
	"go_edge_gateway/services/syncqueue"

	"github.com/go-co-op/gocron"
	"gorm.io/gorm"
)

// notificationRetention is how long dispatched notification records are kept.
const notificationRetention = 30 * 24 * time.Hour

// Options configures the scheduler
type Options struct {
	BackendBaseURL    string
	AlertSyncInterval time.Duration
	ProbeInterval     time.Duration
	Client            *http.Client
}

// Scheduler manages scheduled jobs
type Scheduler struct {
	cron       *gocron.Scheduler
	db         *gorm.DB
	alerts     *alerts.Engine
	queues     *syncqueue.Manager
	httpClient *http.Client
	healthURL  string

	alertInterval time.Duration
	probeInterval time.Duration

	mu     sync.Mutex
	online bool
}

// NewScheduler creates a new scheduler instance
func NewScheduler(db *gorm.DB, alertEngine *alerts.Engine, queues *syncqueue.Manager, opts Options) *Scheduler {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Scheduler{
		cron:          gocron.NewScheduler(time.UTC),
		db:            db,
		alerts:        alertEngine,
		queues:        queues,
		httpClient:    client,
		healthURL:     strings.TrimSuffix(opts.BackendBaseURL, "/") + "/health",
		alertInterval: opts.AlertSyncInterval,
		probeInterval: opts.ProbeInterval,
		online:        true, // assume online until the first probe says otherwise
	}
}

// Start starts all scheduled jobs
func (s *Scheduler) Start() {
	log.Println("Starting scheduler...")

	// Periodic sync: evaluate price alerts
	s.cron.Every(s.alertInterval).Do(func() {
		if err := s.alerts.Evaluate(context.Background()); err != nil {
			log.Printf("Alert evaluation cycle failed: %v", err)
		}
	})

	// Connectivity probe: fires background-sync signals on reconnection
	s.cron.Every(s.probeInterval).Do(func() {
		s.ProbeConnectivity(context.Background())
	})

	// Cleanup old notification records weekly on Sunday at 01:00
	s.cron.Every(1).Week().Sunday().At("01:00").Do(func() {
		s.cleanupNotifications()
	})

	s.cron.StartAsync()
	log.Println("Scheduler started successfully")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("Scheduler stopped")
}

// ProbeConnectivity checks the backend health endpoint and records the
// result. The offline-to-online transition is the connectivity-restored
// signal that triggers queue replay.
func (s *Scheduler) ProbeConnectivity(ctx context.Context) {
	s.SetOnline(ctx, s.backendReachable(ctx))
}

// SetOnline applies a probe result. Going from offline to online fires one
// sync signal per registered queue; replay failures keep their payloads for
// the next transition or probe.
func (s *Scheduler) SetOnline(ctx context.Context, online bool) {
	s.mu.Lock()
	wasOnline := s.online
	s.online = online
	s.mu.Unlock()

	if !online {
		if wasOnline {
			log.Println("Backend unreachable, queuing replays until reconnect")
		}
		return
	}
	if wasOnline {
		return
	}

	log.Println("Connectivity restored, replaying pending mutations")
	for _, queue := range s.queues.Queues() {
		replayed, err := s.queues.OnSyncSignal(ctx, queue)
		if err != nil {
			log.Printf("Sync replay failed for %s: %v", queue, err)
			continue
		}
		if !replayed {
			log.Printf("No pending mutation for %s", queue)
		}
	}
}

// Online reports the last probed connectivity state.
func (s *Scheduler) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// backendReachable performs one health probe.
func (s *Scheduler) backendReachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.healthURL, nil)
	if err != nil {
		return false
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// cleanupNotifications removes old notification records to save storage
func (s *Scheduler) cleanupNotifications() {
	log.Println("Cleaning up old notification records...")
	cutoff := time.Now().Add(-notificationRetention)
	result := s.db.Where("updated_at < ?", cutoff).Delete(&models.NotificationRecord{})
	if result.Error != nil {
		log.Printf("Error cleaning up notification records: %v", result.Error)
		return
	}
	log.Printf("Removed %d old notification records", result.RowsAffected)
}
