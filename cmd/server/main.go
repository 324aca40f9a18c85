package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hostdesk/syncengine/internal/config"
	"hostdesk/syncengine/internal/db"
	"hostdesk/syncengine/internal/ingest"
	"hostdesk/syncengine/internal/jobs"
	"hostdesk/syncengine/internal/logging"
	"hostdesk/syncengine/internal/routes"
)

// @title HostDesk Sync Engine API
// @version 1.0
// @description Flat-file to spreadsheet record sync with idempotent webhook ingestion.
// @host localhost:8080
// @BasePath /
func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging
	appEnv := os.Getenv("APP_ENV")
	if appEnv == "" {
		appEnv = "development"
	}

	if err := logging.Init(appEnv); err != nil {
		log.Fatalf("❌ Failed to initialize logger: %v", err)
	}
	defer logging.Close()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("Failed to load configuration", "error", err.Error())
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	logging.Info("Sync engine starting up",
		"environment", cfg.AppEnv,
		"spreadsheet_id", cfg.SpreadsheetID,
		"tables", len(cfg.Tables),
		"timestamp", time.Now().Format(time.RFC3339),
	)

	// Connect to SQLite with sqlx (sync history)
	if err := db.InitSQLite(cfg.SQLitePath); err != nil {
		logging.Error("Failed to open SQLite (sqlx)", "error", err.Error())
		log.Fatalf("❌ Failed to open SQLite (sqlx): %v", err)
	}
	logging.Info("Opened SQLite (sqlx)")

	// Connect to SQLite with GORM (ingestion ledger)
	if _, err := db.InitSQLiteORM(cfg.SQLitePath, &ingest.LedgerEntry{}); err != nil {
		logging.Error("Failed to open SQLite (GORM)", "error", err.Error())
		log.Fatalf("❌ Failed to open SQLite (GORM): %v", err)
	}
	logging.Info("Opened SQLite (GORM)")

	upSince := time.Now()

	// Initialize router with Chi
	// Note: metricsReg is created in RegisterRoutes and applied as global middleware
	router, deps := routes.RegisterRoutes(cfg, upSince)

	// Scheduled reconcile across all registered tables
	syncJob := jobs.NewTableSyncJob(deps.Services.Orchestrator, deps.Services.Dispatcher)
	go syncJob.RunScheduled(context.Background(), cfg.SyncInterval)
	logging.Info("Scheduled sync job started", "interval", cfg.SyncInterval.String())

	// Setup metrics endpoint outside of Chi router
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", router) // Mount Chi router at root
	logging.Info("Prometheus metrics endpoint registered at /metrics")

	addr := fmt.Sprintf(":%d", cfg.Port)
	logging.Info("Server starting",
		"port", cfg.Port,
		"environment", cfg.AppEnv,
	)

	log.Printf("Starting server on %s", addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}
