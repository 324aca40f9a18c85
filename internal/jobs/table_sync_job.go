package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"hostdesk/syncengine/internal/notify"
	syncpkg "hostdesk/syncengine/internal/sync"

	"golang.org/x/sync/errgroup"
)

// TableSyncJob reconciles every registered table on a schedule. Tables run
// concurrently; a failure on one table never blocks the others.
type TableSyncJob struct {
	orch       *syncpkg.Orchestrator
	dispatcher *notify.Dispatcher
}

// NewTableSyncJob creates a new table sync job instance. dispatcher may be
// nil.
func NewTableSyncJob(orch *syncpkg.Orchestrator, dispatcher *notify.Dispatcher) *TableSyncJob {
	return &TableSyncJob{orch: orch, dispatcher: dispatcher}
}

// Run executes one reconcile pass across all registered tables.
func (j *TableSyncJob) Run(ctx context.Context) error {
	start := time.Now()
	specs := j.orch.Registry().All()
	log.Printf("[TableSyncJob] Starting sync of %d tables at %s", len(specs), start.Format(time.RFC3339))

	if len(specs) == 0 {
		log.Printf("[TableSyncJob] No tables registered")
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, spec := range specs {
		spec := spec
		g.Go(func() error {
			res, err := j.orch.Reconcile(gctx, spec.Name, syncpkg.ModeAuto)
			if err != nil {
				log.Printf("[TableSyncJob] Error syncing table %s: %v", spec.Name, err)
				return fmt.Errorf("table %s: %w", spec.Name, err)
			}
			log.Printf("[TableSyncJob] Table %s synced in %s (added=%d no_op=%t)",
				spec.Name, res.Duration.Round(time.Millisecond), res.Added, res.NoOp)

			// Best effort: rows the sheet introduced are fanned out once the
			// pass has committed. A dispatch failure must not fail the sync.
			if j.dispatcher.Enabled() && len(res.NewFromRemote) > 0 {
				if err := j.dispatcher.DispatchBatch(gctx, spec.Name, res.NewFromRemote); err != nil {
					log.Printf("[TableSyncJob] Error dispatching %d new records for table %s: %v",
						len(res.NewFromRemote), spec.Name, err)
				}
			}
			return nil
		})
	}

	err := g.Wait()
	log.Printf("[TableSyncJob] Completed sync of %d tables in %s", len(specs), time.Since(start).Round(time.Millisecond))
	return err
}

// RunScheduled runs the table sync job on a schedule (e.g., every hour)
func (j *TableSyncJob) RunScheduled(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run immediately on start only if some table has not completed a pass
	// within the interval; a quick restart must not burn remote quota.
	if j.shouldRunInitialSync(ctx, interval) {
		if err := j.Run(ctx); err != nil {
			log.Printf("[TableSyncJob] Error in initial run: %v", err)
		}
	}

	for {
		select {
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				log.Printf("[TableSyncJob] Error in scheduled run: %v", err)
			}
		case <-ctx.Done():
			log.Printf("[TableSyncJob] Shutting down scheduled sync")
			return
		}
	}
}

// shouldRunInitialSync reports whether any registered table is due for a
// pass: never synced, or last synced longer than interval ago.
func (j *TableSyncJob) shouldRunInitialSync(ctx context.Context, interval time.Duration) bool {
	for _, spec := range j.orch.Registry().All() {
		ts, err := j.orch.LastSyncTime(ctx, spec.Name)
		if err != nil {
			log.Printf("[TableSyncJob] Error reading last sync time for %s: %v", spec.Name, err)
			return true
		}
		if ts == nil {
			log.Printf("[TableSyncJob] Table %s never synced. Running initial sync.", spec.Name)
			return true
		}
		if time.Since(*ts) >= interval {
			log.Printf("[TableSyncJob] Table %s last synced %s ago. Running initial sync.",
				spec.Name, time.Since(*ts).Truncate(time.Minute))
			return true
		}
	}
	log.Printf("[TableSyncJob] All tables synced within the last %s. Skipping initial sync.", interval)
	return false
}
