package api

import (
	"fmt"
	"os"

	"hostdesk/syncengine/internal/config"
	"hostdesk/syncengine/internal/db"
	"hostdesk/syncengine/internal/ingest"
	"hostdesk/syncengine/internal/metrics"
	"hostdesk/syncengine/internal/models"
	"hostdesk/syncengine/internal/notify"
	"hostdesk/syncengine/internal/remote"
	syncpkg "hostdesk/syncengine/internal/sync"
	"hostdesk/syncengine/internal/store"

	"github.com/redis/go-redis/v9"
)

type Repositories struct {
	Ledger  *ingest.LedgerRepo
	History *syncpkg.HistoryRepo
}

type Services struct {
	Files        *store.FlatFileStore
	Tokens       remote.TokenProvider
	Sheets       *remote.SheetsClient
	Registry     *syncpkg.Registry
	Orchestrator *syncpkg.Orchestrator
	Gate         *ingest.Gate
	Dispatcher   *notify.Dispatcher
	Metrics      *metrics.MetricsRegistry
}

type Dependencies struct {
	Repo     *Repositories
	Services *Services
}

// InitDependencies wires repositories and services from the loaded config.
// db.InitSQLite and db.InitSQLiteORM must have run first.
func InitDependencies(cfg *config.Config) (*Dependencies, error) {

	repositories := &Repositories{
		Ledger:  ingest.NewLedgerRepo(db.ORM),
		History: syncpkg.NewHistoryRepo(db.DB),
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", cfg.DataDir, err)
	}
	files := store.NewFlatFileStore(cfg.DataDir)

	tokens, err := buildTokenProvider(cfg)
	if err != nil {
		return nil, err
	}
	sheets := remote.NewSheetsClient(cfg.SheetsBaseURL, cfg.SpreadsheetID, tokens)

	metricsReg := metrics.NewMetricsRegistry()
	sheets.SetMetrics(metricsReg)

	registry := syncpkg.NewRegistry()
	for _, t := range cfg.Tables {
		registry.Register(syncpkg.TableSpec{
			Name:   t.Name,
			Tab:    t.Tab,
			Schema: models.BookingSchema,
		})
	}

	orchestrator := syncpkg.NewOrchestrator(files, sheets, repositories.History, registry, metricsReg)

	// The webhook commits to the first configured table.
	if len(cfg.Tables) == 0 {
		return nil, fmt.Errorf("no sync tables configured")
	}
	gate := ingest.NewGate(
		cfg.Tables[0].Name,
		models.BookingSchema,
		files,
		repositories.Ledger,
		ingest.DefaultBookingFilter(),
		[]byte(cfg.WebhookSecret),
	)

	var dispatcher *notify.Dispatcher
	if cfg.RedisAddr != "" {
		dispatcher = notify.NewDispatcher(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	}

	services := &Services{
		Files:        files,
		Tokens:       tokens,
		Sheets:       sheets,
		Registry:     registry,
		Orchestrator: orchestrator,
		Gate:         gate,
		Dispatcher:   dispatcher,
		Metrics:      metricsReg,
	}

	return &Dependencies{
		Repo:     repositories,
		Services: services,
	}, nil
}

func buildTokenProvider(cfg *config.Config) (remote.TokenProvider, error) {
	if cfg.ServiceAccount != "" && cfg.PrivateKeyPEM != "" {
		return remote.NewServiceTokenProvider(cfg.TokenEndpoint, cfg.ServiceAccount, cfg.PrivateKeyPEM)
	}
	// Emulator setups pass a raw bearer token instead of a key pair.
	return &remote.StaticTokenProvider{Value: os.Getenv("SHEETS_STATIC_TOKEN")}, nil
}
