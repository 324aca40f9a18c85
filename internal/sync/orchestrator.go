package sync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"hostdesk/syncengine/internal/constants"
	"hostdesk/syncengine/internal/logging"
	"hostdesk/syncengine/internal/metrics"
	"hostdesk/syncengine/internal/record"
	"hostdesk/syncengine/internal/remote"
	"hostdesk/syncengine/internal/store"
)

// Mode selects the sync direction for one reconcile pass
type Mode string

const (
	// ModeAuto picks pull when the local file does not exist yet (bootstrap),
	// bidirectional otherwise.
	ModeAuto Mode = "auto"
	// ModePull overwrites the local table with the remote tab ("reset from
	// source of truth").
	ModePull Mode = "pull"
	// ModePush overwrites the remote tab with the local table, used after a
	// local mutation.
	ModePush Mode = "push"
	// ModeBidirectional merges both sides with whole-record last-write-wins.
	ModeBidirectional Mode = "bidirectional"
)

// ParseMode validates a mode string, defaulting empty to auto.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return ModeAuto, nil
	case ModeAuto:
		return ModeAuto, nil
	case ModePull:
		return ModePull, nil
	case ModePush:
		return ModePush, nil
	case ModeBidirectional:
		return ModeBidirectional, nil
	}
	return "", fmt.Errorf("unknown sync mode %q", s)
}

// Result summarizes one reconcile pass
type Result struct {
	Table      string
	Mode       Mode
	Added      int
	KeptLocal  int
	KeptRemote int
	Deleted    int
	NoOp       bool
	Duration   time.Duration

	// NewFromRemote holds the rows that first appeared on the remote side
	// this pass, for notification fan-out. Local additions are not included;
	// the ingestion path already announced them.
	NewFromRemote []*record.Record
}

// Orchestrator reconciles registered tables between the flat-file store and
// the remote spreadsheet. It never retries internally and never applies a
// partial merge: on any store or remote error the pass aborts with both
// sides untouched.
type Orchestrator struct {
	files    *store.FlatFileStore
	remote   remote.TableClient
	history  *HistoryRepo
	registry *Registry
	metrics  *metrics.MetricsRegistry
	now      func() time.Time

	mu         sync.Mutex
	tableLocks map[string]*sync.Mutex
}

// NewOrchestrator wires the orchestrator. metrics may be nil.
func NewOrchestrator(files *store.FlatFileStore, client remote.TableClient, history *HistoryRepo, registry *Registry, metricsReg *metrics.MetricsRegistry) *Orchestrator {
	return &Orchestrator{
		files:      files,
		remote:     client,
		history:    history,
		registry:   registry,
		metrics:    metricsReg,
		now:        time.Now,
		tableLocks: make(map[string]*sync.Mutex),
	}
}

// Registry exposes the table registry for callers that iterate tables.
func (o *Orchestrator) Registry() *Registry { return o.registry }

// LastSyncTime reports when the table last completed a pass of any kind,
// nil when it never has.
func (o *Orchestrator) LastSyncTime(ctx context.Context, tableName string) (*time.Time, error) {
	var latest *time.Time
	for _, event := range []string{
		constants.SyncEventPull,
		constants.SyncEventPush,
		constants.SyncEventBidirectional,
	} {
		ts, err := o.history.GetLastSyncTime(ctx, tableName, event)
		if err != nil {
			return nil, err
		}
		if ts != nil && (latest == nil || ts.After(*latest)) {
			latest = ts
		}
	}
	return latest, nil
}

// Reconcile runs one pass for a table. Passes against the same table are
// serialized; different tables run independently.
func (o *Orchestrator) Reconcile(ctx context.Context, tableName string, mode Mode) (*Result, error) {
	spec, err := o.registry.Get(tableName)
	if err != nil {
		return nil, err
	}

	lock := o.lockFor(tableName)
	lock.Lock()
	defer lock.Unlock()

	if mode == ModeAuto || mode == "" {
		if o.files.Exists(spec.Name) {
			mode = ModeBidirectional
		} else {
			mode = ModePull
		}
	}

	start := o.now()
	var res *Result
	switch mode {
	case ModePull:
		res, err = o.pull(ctx, spec)
	case ModePush:
		res, err = o.push(ctx, spec)
	case ModeBidirectional:
		res, err = o.bidirectional(ctx, spec)
	default:
		return nil, fmt.Errorf("unknown sync mode %q", mode)
	}

	duration := o.now().Sub(start)
	if o.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		o.metrics.SyncRunsTotal.WithLabelValues(tableName, string(mode), status).Inc()
		o.metrics.SyncRunDuration.WithLabelValues(tableName, string(mode)).Observe(duration.Seconds())
	}
	if err != nil {
		logging.Error("sync failed", "table", tableName, "mode", string(mode), "error", err.Error())
		return nil, fmt.Errorf("sync failed for table %s: %w", tableName, err)
	}

	res.Table = tableName
	res.Mode = mode
	res.Duration = duration
	o.countReconciled(res)
	logging.Info("sync completed",
		"table", tableName,
		"mode", string(mode),
		"added", res.Added,
		"kept_local", res.KeptLocal,
		"kept_remote", res.KeptRemote,
		"deleted", res.Deleted,
		"no_op", res.NoOp,
		"duration_ms", duration.Milliseconds(),
	)
	return res, nil
}

// pull overwrites the local table with the remote tab.
func (o *Orchestrator) pull(ctx context.Context, spec TableSpec) (*Result, error) {
	remoteTbl, err := o.remote.Pull(ctx, spec.Name, spec.Tab, spec.Schema)
	if err != nil {
		return nil, err
	}
	remoteTbl.CollapseDuplicateIDs()

	localTbl, err := o.files.Load(spec.Name, spec.Schema)
	if err != nil {
		return nil, err
	}

	res := &Result{Added: len(remoteTbl.Records)}
	if fingerprint(localTbl, false) == fingerprint(remoteTbl, false) {
		res.NoOp = true
	} else if err := o.files.Save(remoteTbl); err != nil {
		return nil, err
	}

	if err := o.history.RecordSync(ctx, spec.Name, constants.SyncEventPull); err != nil {
		return nil, err
	}
	if err := o.history.ReplaceRemoteIDs(ctx, spec.Name, tableIDs(remoteTbl)); err != nil {
		return nil, err
	}
	return res, nil
}

// push overwrites the remote tab with the local table. The remote side is
// read first only to detect a no-op and save the overwrite quota.
func (o *Orchestrator) push(ctx context.Context, spec TableSpec) (*Result, error) {
	localTbl, err := o.files.Load(spec.Name, spec.Schema)
	if err != nil {
		return nil, err
	}
	localTbl.CollapseDuplicateIDs()

	remoteTbl, err := o.remote.Pull(ctx, spec.Name, spec.Tab, spec.Schema)
	if err != nil {
		return nil, err
	}

	res := &Result{Added: len(localTbl.Records)}
	if fingerprint(localTbl, false) == fingerprint(remoteTbl, false) {
		res.NoOp = true
	} else if err := o.remote.Push(ctx, spec.Tab, localTbl); err != nil {
		return nil, err
	}

	if err := o.history.RecordSync(ctx, spec.Name, constants.SyncEventPush); err != nil {
		return nil, err
	}
	if err := o.history.ReplaceRemoteIDs(ctx, spec.Name, tableIDs(localTbl)); err != nil {
		return nil, err
	}
	return res, nil
}

// bidirectional merges both sides: union by sync_id, whole-record
// last-write-wins on conflicts, remote preferred on ties. A local-only record
// is a deletion only when the last pass saw its id on the remote; one the
// remote never held (a fresh webhook commit, say) is an addition.
func (o *Orchestrator) bidirectional(ctx context.Context, spec TableSpec) (*Result, error) {
	remoteTbl, err := o.remote.Pull(ctx, spec.Name, spec.Tab, spec.Schema)
	if err != nil {
		return nil, err
	}
	remoteTbl.CollapseDuplicateIDs()

	localTbl, err := o.files.Load(spec.Name, spec.Schema)
	if err != nil {
		return nil, err
	}
	localTbl.CollapseDuplicateIDs()

	remoteSeen, err := o.history.RemoteIDs(ctx, spec.Name)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	merged := o.merge(spec, localTbl, remoteTbl, remoteSeen, res)

	localChanged := fingerprint(merged, false) != fingerprint(localTbl, false)
	// Identities minted during the pull exist nowhere but in memory; the
	// push must happen even when the merge changed nothing else, or the
	// sheet's blank ids would be re-minted on every pass.
	remoteChanged := fingerprint(merged, true) != fingerprint(remoteTbl, true) ||
		remoteTbl.Minted > 0
	res.NoOp = !localChanged && !remoteChanged

	// Remote first: if the push fails nothing has been written anywhere, so
	// the pass leaves both stores in their prior state.
	if remoteChanged {
		if err := o.remote.Push(ctx, spec.Tab, merged); err != nil {
			return nil, err
		}
	}
	if localChanged {
		if err := o.files.Save(merged); err != nil {
			return nil, err
		}
	}

	if err := o.history.RecordSync(ctx, spec.Name, constants.SyncEventBidirectional); err != nil {
		return nil, err
	}
	if err := o.history.ReplaceRemoteIDs(ctx, spec.Name, tableIDs(merged)); err != nil {
		return nil, err
	}
	return res, nil
}

// merge builds the unioned table. Remote row order is preserved (humans own
// it); local-only survivors are appended after.
func (o *Orchestrator) merge(spec TableSpec, localTbl, remoteTbl *record.Table, remoteSeen map[string]bool, res *Result) *record.Table {
	merged := record.NewTable(spec.Name, spec.Schema)
	now := o.now()
	log := logging.WithTable(spec.Name)

	localByID := make(map[string]*record.Record, len(localTbl.Records))
	for _, lr := range localTbl.Records {
		localByID[lr.SyncID] = lr
	}
	inRemote := make(map[string]bool, len(remoteTbl.Records))

	for _, rr := range remoteTbl.Records {
		inRemote[rr.SyncID] = true

		lr, both := localByID[rr.SyncID]
		if !both {
			c := rr.Clone()
			merged.Append(c)
			res.Added++
			res.NewFromRemote = append(res.NewFromRemote, c)
			continue
		}

		if lr.Hash() == rr.Hash() {
			// Semantically identical; keep the remote copy and its stamp.
			merged.Append(rr.Clone())
			continue
		}

		// Divergent copies: whole-record last-write-wins, remote on ties or
		// missing timestamps. No field-level blending.
		winner, side := rr, "remote"
		if lr.LastSync.After(rr.LastSync) {
			winner, side = lr, "local"
		}
		log.Infow("conflict resolved",
			"sync_id", rr.SyncID,
			"winner", side,
			"changed_fields", strings.Join(record.ChangedFields(lr, rr), ","),
		)
		if side == "local" {
			res.KeptLocal++
		} else {
			res.KeptRemote++
		}

		w := winner.Clone()
		w.Touch(now)
		merged.Append(w)
	}

	for _, lr := range localTbl.Records {
		if inRemote[lr.SyncID] {
			continue
		}
		if remoteSeen[lr.SyncID] {
			// The last pass saw this id on the remote and now it is gone,
			// so the row was deleted in the sheet.
			log.Infow("deletion propagated from remote", "sync_id", lr.SyncID)
			res.Deleted++
			continue
		}
		w := lr.Clone()
		w.Touch(now)
		merged.Append(w)
		res.Added++
	}

	return merged
}

func (o *Orchestrator) countReconciled(res *Result) {
	if o.metrics == nil {
		return
	}
	add := func(action string, n int) {
		if n > 0 {
			o.metrics.RecordsReconciled.WithLabelValues(res.Table, action).Add(float64(n))
		}
	}
	add("added", res.Added)
	add("kept_local", res.KeptLocal)
	add("kept_remote", res.KeptRemote)
	add("deleted", res.Deleted)
}

func (o *Orchestrator) lockFor(tableName string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.tableLocks[tableName]
	if !ok {
		lock = &sync.Mutex{}
		o.tableLocks[tableName] = lock
	}
	return lock
}

func tableIDs(tbl *record.Table) []string {
	ids := make([]string, 0, len(tbl.Records))
	for _, r := range tbl.Records {
		ids = append(ids, r.SyncID)
	}
	return ids
}

// fingerprint digests a table's identity and content (and optionally the
// reconciliation stamps) in row order, for cheap no-op detection.
func fingerprint(tbl *record.Table, withTimestamps bool) string {
	h := sha256.New()
	for _, r := range tbl.Records {
		fmt.Fprintf(h, "%s:%s", r.SyncID, r.Hash())
		if withTimestamps {
			fmt.Fprintf(h, ":%s", record.FormatTimestamp(r.LastSync))
		}
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
