package trigger

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/care-orchestrator/pkg/care"
	"github.com/codeready-toolchain/care-orchestrator/pkg/metrics"
	"github.com/codeready-toolchain/care-orchestrator/pkg/store"
)

// CandidateStore is the subset of store.Store the trigger worker needs.
type CandidateStore interface {
	ListActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error)
	ScanTriggerCandidates(ctx context.Context, tenantID uuid.UUID, triggerType care.TriggerType) ([]store.TriggerCandidate, error)
}

// SuggestionCreator is the suggestion gate's entry point, as the trigger
// worker needs it. Defined here rather than imported from pkg/suggestion
// directly so tests can substitute a fake without constructing a full gate.
type SuggestionCreator interface {
	CreateSuggestionIfNew(ctx context.Context, tenantID uuid.UUID, trigger care.TriggerData) (*uuid.UUID, error)
}

// StateStore is care.StateStore plus the read path the signal adapter needs
// to determine the entity's current state before proposing a transition.
type StateStore interface {
	care.StateStore
	GetCareState(ctx context.Context, ref care.EntityRef) (care.CareStateRecord, error)
}

// Worker is the periodic multi-tenant scanner described in §4.G.
type Worker struct {
	store       CandidateStore
	stateStore  StateStore
	suggestions SuggestionCreator
	locker      TenantLocker
	cfg         Config
	thresholds  care.Thresholds
	writeMode   care.WriteMode

	pollInterval time.Duration
	pollJitter   time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	metrics *metrics.Registry
	logger  *slog.Logger
}

// NewWorker constructs a Worker. pollInterval/pollJitter govern the sleep
// between scan cycles; cfg bounds concurrency and per-tenant batch size.
func NewWorker(
	candidateStore CandidateStore,
	stateStore StateStore,
	suggestions SuggestionCreator,
	locker TenantLocker,
	cfg Config,
	pollInterval, pollJitter time.Duration,
	logger *slog.Logger,
) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		store:        candidateStore,
		stateStore:   stateStore,
		suggestions:  suggestions,
		locker:       locker,
		cfg:          cfg,
		thresholds:   care.DefaultThresholds(),
		writeMode:    care.WriteMode{StateWriteEnabled: true},
		pollInterval: pollInterval,
		pollJitter:   pollJitter,
		stopCh:       make(chan struct{}),
		logger:       logger,
	}
}

// WithMetrics attaches the Prometheus registry the worker reports
// scan_cycles_total and candidates_found_total against. Leaving this unset
// is safe; m is nil-checked before use.
func (w *Worker) WithMetrics(m *metrics.Registry) *Worker {
	w.metrics = m
	return w
}

// Start begins the scan loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the loop to stop and waits for the in-flight cycle to finish.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		default:
			w.RunCycle(ctx)
			w.sleep(w.interval())
		}
	}
}

func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

func (w *Worker) interval() time.Duration {
	if w.pollJitter <= 0 {
		return w.pollInterval
	}
	offset := time.Duration(rand.Int64N(int64(2 * w.pollJitter)))
	return w.pollInterval - w.pollJitter + offset
}

// RunCycle scans every active tenant once, bounded by cfg.WorkerCount
// concurrent tenant scans. A store error listing tenants aborts the cycle;
// a per-tenant failure is logged and does not stop the others.
func (w *Worker) RunCycle(ctx context.Context) {
	tenantIDs, err := w.store.ListActiveTenantIDs(ctx)
	if err != nil {
		w.logger.Error("trigger worker: failed to list active tenants", "error", err)
		w.recordScanCycle("error")
		return
	}

	sem := make(chan struct{}, maxInt(w.cfg.WorkerCount, 1))
	var wg sync.WaitGroup
	for _, tenantID := range tenantIDs {
		sem <- struct{}{}
		wg.Add(1)
		go func(tenantID uuid.UUID) {
			defer wg.Done()
			defer func() { <-sem }()
			w.scanTenant(ctx, tenantID)
		}(tenantID)
	}
	wg.Wait()
	w.recordScanCycle("completed")
}

func (w *Worker) recordScanCycle(outcome string) {
	if w.metrics == nil {
		return
	}
	w.metrics.TriggerScanCycles.WithLabelValues(outcome).Inc()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (w *Worker) scanTenant(ctx context.Context, tenantID uuid.UUID) {
	release, ok := w.locker.TryLock(tenantID)
	if !ok {
		return // another scan already in flight for this tenant
	}
	defer release()

	log := w.logger.With("tenant_id", tenantID)

	candidates := make(map[uuid.UUID]care.TriggerData)
	for _, triggerType := range allTriggerTypes {
		rows, err := w.store.ScanTriggerCandidates(ctx, tenantID, triggerType)
		if err != nil {
			log.Error("trigger worker: scan failed", "trigger_type", triggerType, "error", err)
			continue
		}
		if w.metrics != nil && len(rows) > 0 {
			w.metrics.TriggerCandidatesFound.WithLabelValues(string(triggerType)).Add(float64(len(rows)))
		}
		for _, row := range rows {
			data := care.TriggerData{
				TriggerID:  triggerType,
				RecordType: row.RecordType,
				RecordID:   row.RecordID,
				Context:    row.Context,
				Priority:   priorityFor(triggerType),
			}
			w.mergeCandidate(candidates, data)
		}
	}

	ordered := orderByPriority(candidates)
	if len(ordered) > w.cfg.BatchCapPerTenant {
		ordered = ordered[:w.cfg.BatchCapPerTenant]
	}

	for _, data := range ordered {
		w.feedSignalAdapter(ctx, tenantID, data)

		if _, err := w.suggestions.CreateSuggestionIfNew(ctx, tenantID, data); err != nil {
			log.Error("trigger worker: suggestion gate failed", "record_id", data.RecordID, "error", err)
		}
	}
}

// mergeCandidate applies the §4.G tie-break: when a record already has a
// candidate trigger, keep only the higher-priority one.
func (w *Worker) mergeCandidate(candidates map[uuid.UUID]care.TriggerData, data care.TriggerData) {
	existing, ok := candidates[data.RecordID]
	if !ok || care.HigherPriority(data.Priority, data.TriggerID, existing.Priority, existing.TriggerID) {
		candidates[data.RecordID] = data
	}
}

func orderByPriority(candidates map[uuid.UUID]care.TriggerData) []care.TriggerData {
	ordered := make([]care.TriggerData, 0, len(candidates))
	for _, d := range candidates {
		ordered = append(ordered, d)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return care.HigherPriority(ordered[i].Priority, ordered[i].TriggerID, ordered[j].Priority, ordered[j].TriggerID)
	})
	return ordered
}

// feedSignalAdapter derives CareSignals from the trigger context and
// opportunistically runs them through the State Engine. Failures here are
// logged and do not prevent the suggestion gate from running.
func (w *Worker) feedSignalAdapter(ctx context.Context, tenantID uuid.UUID, data care.TriggerData) {
	ref := care.EntityRef{TenantID: tenantID, EntityType: data.RecordType, EntityID: data.RecordID}
	if !ref.Valid() {
		return
	}

	signals := signalsFromContext(data.Context)
	current, err := w.currentState(ctx, ref)
	if err != nil {
		w.logger.Warn("trigger worker: signal adapter could not load current state", "record_id", data.RecordID, "error", err)
		return
	}

	now := time.Now()
	proposal := care.ProposeTransition(current, signals, w.thresholds, now)
	if proposal == nil {
		return
	}

	if err := care.ApplyTransition(ctx, ref, proposal, w.stateStore, care.SystemActor, w.writeMode, now); err != nil {
		w.logger.Warn("trigger worker: applying proposed transition failed", "record_id", data.RecordID, "error", err)
	}
}

func (w *Worker) currentState(ctx context.Context, ref care.EntityRef) (care.CareState, error) {
	rec, err := w.stateStore.GetCareState(ctx, ref)
	if err != nil {
		if store.IsNotFound(err) {
			return care.CareStateUnaware, nil
		}
		return care.CareStateUnaware, err
	}
	return rec.CareState, nil
}

// signalsFromContext builds CareSignals from a trigger's context map, e.g.
// silence_days = context.days_stagnant (§4.G).
func signalsFromContext(ctx map[string]any) care.CareSignals {
	var signals care.CareSignals
	signals.Meta = ctx

	if v, ok := intFromAny(ctx["silence_days"]); ok {
		signals.SilenceDays = &v
	} else if v, ok := intFromAny(ctx["days_stagnant"]); ok {
		signals.SilenceDays = &v
	}
	if v, ok := intFromAny(ctx["engagement_score"]); ok {
		signals.EngagementScore = &v
	}
	if v, ok := ctx["last_inbound_at"].(time.Time); ok {
		signals.LastInboundAt = &v
	}
	return signals
}

func intFromAny(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
