/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the rent engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from environment (.env supported)
  2. Configure structured logging
  3. Initialize SQLite store
  4. Wire domain services (rent, work logs, timer)
  5. Run a startup recalculation to repair any drift
  6. Start the HTTP server and the nightly scheduler
  7. Shut down gracefully on SIGINT/SIGTERM

CONFIGURATION (environment variables):
  PORT                HTTP server port (default: 8080)
  DB_PATH             SQLite database path (default: ./data/rent.db)
                      Use ":memory:" for in-memory database
  LOG_LEVEL           logrus level (default: info)
  BASE_RENT           Monthly base rent (default: 1100)
  HOURLY_CREDIT_RATE  Credit per worked hour (default: 50)
  MONTHLY_CAP_HOURS   Creditable hours per month (default: 8)
  CREDIT_WORKER       Worker whose billable time earns credit
  RECALC_CRON         Nightly recalculation schedule (empty disables)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

SEE ALSO:
  - internal/config/config.go: Configuration loading
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hearth/rent-engine/api"
	"github.com/hearth/rent-engine/internal/config"
	"github.com/hearth/rent-engine/rent"
	"github.com/hearth/rent-engine/store/sqlite"
	"github.com/hearth/rent-engine/worklog"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath, log)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Wire domain services
	rentCfg := rent.Config{
		BaseRent:         cfg.BaseRent,
		HourlyCreditRate: cfg.HourlyCreditRate,
		MonthlyCapHours:  cfg.MonthlyCapHours,
	}
	if err := rentCfg.Validate(); err != nil {
		log.Fatalf("Invalid rent configuration: %v", err)
	}

	rentSvc := rent.NewService(store, store, store, rentCfg, rent.SystemClock(), log)
	workSvc := worklog.NewService(store, rentSvc, cfg.CreditWorker, cfg.HourlyCreditRate, rent.SystemClock(), log)
	timer := worklog.NewTimer(store, workSvc, rent.SystemClock(), log)

	// Repair any drift left by a crash mid-recalculation
	if updated, err := rentSvc.RecalculateAll(context.Background(), "startup"); err != nil {
		log.WithError(err).Warn("startup recalculation failed")
	} else {
		log.WithField("periods_updated", updated).Info("startup recalculation complete")
	}

	// HTTP layer
	handler := api.NewHandler(rentSvc, workSvc, timer, log)
	handler.DefaultWorker = cfg.CreditWorker
	router := api.NewRouter(handler)

	scheduler := api.NewRecalcScheduler(rentSvc, cfg.RecalcCron, log)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.WithField("port", cfg.Port).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("server stopped")
}
