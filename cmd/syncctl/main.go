package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"hostdesk/syncengine/internal/api"
	"hostdesk/syncengine/internal/config"
	"hostdesk/syncengine/internal/db"
	"hostdesk/syncengine/internal/ingest"
	"hostdesk/syncengine/internal/logging"
	syncpkg "hostdesk/syncengine/internal/sync"
)

// syncctl runs one reconcile pass from the command line, for operators and
// cron setups that do not want the HTTP server.
func main() {
	table := flag.String("table", "", "table to reconcile (default: all registered tables)")
	modeFlag := flag.String("mode", "auto", "sync mode: auto|pull|push|bidirectional")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall timeout")
	flag.Parse()

	mode, err := syncpkg.ParseMode(*modeFlag)
	if err != nil {
		log.Fatalf("bad mode: %v", err)
	}

	if err := logging.Init("development"); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logging.Close()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := db.InitSQLite(cfg.SQLitePath); err != nil {
		log.Fatalf("open sqlite (sqlx): %v", err)
	}
	if _, err := db.InitSQLiteORM(cfg.SQLitePath, &ingest.LedgerEntry{}); err != nil {
		log.Fatalf("open sqlite (gorm): %v", err)
	}

	deps, err := api.InitDependencies(cfg)
	if err != nil {
		log.Fatalf("init dependencies: %v", err)
	}
	orch := deps.Services.Orchestrator

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	specs := orch.Registry().All()
	if *table != "" {
		spec, err := orch.Registry().Get(*table)
		if err != nil {
			log.Fatalf("%v", err)
		}
		specs = []syncpkg.TableSpec{spec}
	}

	failed := 0
	for _, spec := range specs {
		res, err := orch.Reconcile(ctx, spec.Name, mode)
		if err != nil {
			log.Printf("table %s: %v", spec.Name, err)
			failed++
			continue
		}
		fmt.Printf("%s: mode=%s added=%d kept_local=%d kept_remote=%d deleted=%d no_op=%t (%s)\n",
			res.Table, res.Mode, res.Added, res.KeptLocal, res.KeptRemote, res.Deleted, res.NoOp,
			res.Duration.Round(time.Millisecond))
	}

	if failed > 0 {
		log.Fatalf("%d table(s) failed", failed)
	}
}
