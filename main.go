package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go_edge_gateway/config"
	"go_edge_gateway/models"
	"go_edge_gateway/routes"
	"go_edge_gateway/scheduler"
	"go_edge_gateway/services/alerts"
	"go_edge_gateway/services/cachestore"
	"go_edge_gateway/services/gateway"
	"go_edge_gateway/services/lifecycle"
	"go_edge_gateway/services/notify"
	"go_edge_gateway/services/syncqueue"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func main() {
	log.Println("==============================================")
	log.Println("  Market Dashboard Edge Gateway - Starting...")
	log.Println("==============================================")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("Warning: Config load issue: %v", err)
	}

	// Set Gin mode based on environment
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create Gin router
	router := gin.New()

	// Add middlewares
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger())

	// Setup health check endpoints FIRST so the platform can detect the
	// service is up; stores are initialized in background
	setupHealthEndpoints(router)

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	// Start server IMMEDIATELY so the platform knows we're listening
	go func() {
		log.Printf("Gateway listening on 0.0.0.0:%s", cfg.Port)
		log.Println("==============================================")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Initialize stores and engines in background
	var jobScheduler *scheduler.Scheduler
	go func() {
		// Initialize database connection
		db, err := config.InitDB()
		if err != nil {
			log.Printf("ERROR: Database connection failed: %v", err)
			log.Println("Service will continue in limited mode (health check only)")
			return
		}

		// Run database migrations
		log.Println("Running database migrations...")
		if err := runMigrations(db); err != nil {
			log.Printf("ERROR: Migration failed: %v", err)
		} else {
			log.Println("Database migrations completed successfully")
		}

		markReady(db)

		// Construct engines
		stores := cachestore.NewManager(db)
		hub := notify.NewHub()
		dispatcher := notify.NewDispatcher(db, hub, notify.InitHistoryMirror())
		queues := syncqueue.NewManager(db, cfg.BackendBaseURL, nil)
		alertEngine := alerts.NewEngine(dispatcher, alerts.Options{
			BackendBaseURL:    cfg.BackendBaseURL,
			PriceFetchTimeout: cfg.PriceFetchTimeout,
		})
		proxyEngine := gateway.NewEngine(stores, gateway.Options{
			BackendBaseURL:  cfg.BackendBaseURL,
			FrontendBaseURL: cfg.FrontendBaseURL,
			APIPrefix:       cfg.APIPrefix,
			RuntimeStore:    cfg.RuntimeStoreName,
			OfflinePath:     cfg.OfflinePath,
		})
		lifecycleManager := lifecycle.NewManager(stores, hub, lifecycle.Options{
			FrontendBaseURL:  cfg.FrontendBaseURL,
			StaticStoreName:  cfg.StaticStoreName(),
			RuntimeStoreName: cfg.RuntimeStoreName,
			PrecacheManifest: cfg.PrecacheManifest,
		})

		// Install: precache the manifest and activate immediately. Partial
		// precache failure is logged inside and never blocks startup.
		installCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		if err := lifecycleManager.OnInstall(installCtx); err != nil {
			log.Printf("Warning: Install did not fully complete: %v", err)
		}
		cancel()

		// Setup routes and the intercepting proxy
		routes.SetupRoutes(router, &routes.Dependencies{
			Engine:     proxyEngine,
			Queues:     queues,
			Dispatcher: dispatcher,
			Hub:        hub,
			Alerts:     alertEngine,
			JWTSecret:  cfg.JWTSecret,
		})

		// Start background scheduler
		jobScheduler = scheduler.NewScheduler(db, alertEngine, queues, scheduler.Options{
			BackendBaseURL:    cfg.BackendBaseURL,
			AlertSyncInterval: cfg.AlertSyncInterval,
			ProbeInterval:     cfg.ProbeInterval,
		})
		go jobScheduler.Start()

		log.Println("Gateway fully initialized")
	}()

	// Graceful shutdown
	gracefulShutdown(server, jobScheduler)
}

// runMigrations runs all database migrations
func runMigrations(db *gorm.DB) error {
	if err := models.MigrateCacheModels(db); err != nil {
		return err
	}
	if err := models.MigrateSyncModels(db); err != nil {
		return err
	}
	if err := models.MigrateNotificationModels(db); err != nil {
		return err
	}
	return nil
}

// readiness state shared with the /ready endpoint, guarded for access from
// the background init goroutine and request handlers
var (
	readyMu sync.RWMutex
	readyDB *gorm.DB
)

func markReady(db *gorm.DB) {
	readyMu.Lock()
	readyDB = db
	readyMu.Unlock()
}

func readyDatabase() *gorm.DB {
	readyMu.RLock()
	defer readyMu.RUnlock()
	return readyDB
}

// setupHealthEndpoints sets up health check endpoints
func setupHealthEndpoints(router *gin.Engine) {
	// Liveness probe - always returns OK if server is running
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// Readiness probe - checks if the store database is usable
	router.GET("/ready", func(c *gin.Context) {
		db := readyDatabase()
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Stores not initialized",
			})
			return
		}

		sqlDB, err := db.DB()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Store connection error",
			})
			return
		}
		if err := sqlDB.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Store ping failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
		})
	})

	// Startup probe
	router.GET("/startup", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "started",
		})
	})
}

// corsMiddleware returns a CORS middleware handler
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestLogger returns a request logging middleware
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip logging for health checks to reduce noise
		path := c.Request.URL.Path
		if path == "/health" || path == "/ready" || path == "/startup" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		// Only log errors or slow requests in production
		if c.Writer.Status() >= 400 || duration > 1*time.Second {
			log.Printf("%s %s %d %v", c.Request.Method, path, c.Writer.Status(), duration)
		}
	}
}

// gracefulShutdown handles graceful shutdown of the server
func gracefulShutdown(server *http.Server, jobScheduler *scheduler.Scheduler) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	sig := <-quit
	log.Printf("Received signal %v, shutting down gracefully...", sig)

	// Stop scheduler first
	if jobScheduler != nil {
		jobScheduler.Stop()
	}

	// Shutdown HTTP server
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Close database connection
	if config.DB != nil {
		sqlDB, err := config.DB.DB()
		if err == nil {
			sqlDB.Close()
			log.Println("Database connection closed")
		}
	}

	log.Println("Gateway shutdown completed")
}
