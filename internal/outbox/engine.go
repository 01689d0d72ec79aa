package outbox

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/orderstack/pos-ledger/internal/cloud"
	"github.com/orderstack/pos-ledger/internal/model"
	"github.com/orderstack/pos-ledger/pkg/logger"
	"github.com/orderstack/pos-ledger/pkg/prom"
)

const (
	DefaultBatchSize    = 50
	DefaultInterval     = 5 * time.Minute
	DefaultStartupDelay = 20 * time.Second
	DefaultFetchLimit   = 200
)

// Ledger is the slice of the sale repository the engine needs.
type Ledger interface {
	Unsynced(ctx context.Context, tenantID string, limit int) ([]*model.SalesTransaction, error)
	MarkSynced(ctx context.Context, ids []string, at time.Time) error
	SyncCounts(ctx context.Context, tenantID string) (total, synced int64, err error)
}

// Pusher submits one batch to the cloud ingest endpoint.
type Pusher interface {
	Push(ctx context.Context, tenantID string, batch []cloud.TransactionPayload) (*cloud.SyncResponse, error)
}

type Config struct {
	TenantID     string
	BatchSize    int
	FetchLimit   int
	Interval     time.Duration
	StartupDelay time.Duration
	RunTimeout   time.Duration
}

// Engine is the outbox pusher: on every tick it drains pending ledger rows to
// the cloud in chronological batches and stamps the accepted prefix of each
// batch as synced. It owns all of its scheduler state; independent instances
// can coexist in tests.
//
// Failures are engine-internal: a dead network means zero progress this tick
// and nothing more. The order-taking path never waits on this code.
type Engine struct {
	config Config
	ledger Ledger
	pusher Pusher

	running atomic.Bool // re-entrancy guard, one run at a time
	stopCh  chan struct{}
	trigger chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup

	mu        sync.Mutex
	lastRun   *model.RunResult
	lastRunAt *time.Time
}

func NewEngine(config Config, ledger Ledger, pusher Pusher) *Engine {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.FetchLimit <= 0 {
		config.FetchLimit = DefaultFetchLimit
	}
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.StartupDelay < 0 {
		config.StartupDelay = DefaultStartupDelay
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = 2 * time.Minute
	}
	return &Engine{
		config:  config,
		ledger:  ledger,
		pusher:  pusher,
		stopCh:  make(chan struct{}),
		trigger: make(chan struct{}, 1),
	}
}

// Start launches the periodic loop. The first run fires after the startup
// delay, staggered against other jobs hitting the same endpoint at boot,
// not immediately.
func (e *Engine) Start() {
	e.wg.Add(1)
	go e.loop()
	logger.Info("outbox engine started",
		"tenant", e.config.TenantID, "interval", e.config.Interval, "batch_size", e.config.BatchSize)
}

// Stop prevents future ticks. An in-flight run is not aborted; it finishes
// its current batch work and the loop then exits.
func (e *Engine) Stop() {
	e.stopped.Do(func() { close(e.stopCh) })
	e.wg.Wait()
	logger.Info("outbox engine stopped", "tenant", e.config.TenantID)
}

// TriggerNow requests an immediate run. If a run is already in flight the
// request coalesces into at most one follow-up.
func (e *Engine) TriggerNow() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

func (e *Engine) loop() {
	defer e.wg.Done()

	startup := time.NewTimer(e.config.StartupDelay)
	defer startup.Stop()

	select {
	case <-startup.C:
	case <-e.stopCh:
		return
	}

	e.tick()

	ticker := time.NewTicker(e.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.tick()
		case <-e.trigger:
			e.tick()
		case <-e.stopCh:
			return
		}
	}
}

func (e *Engine) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), e.config.RunTimeout)
	defer cancel()
	e.RunOnce(ctx)
}

// RunOnce performs a single outbox pass and reports what it did. A tick that
// lands while a previous run is still in flight is a no-op, not queued.
func (e *Engine) RunOnce(ctx context.Context) model.RunResult {
	if e.config.TenantID == "" {
		return model.RunResult{}
	}
	if !e.running.CompareAndSwap(false, true) {
		logger.Debug("sync run already in progress, skipping tick", "tenant", e.config.TenantID)
		return model.RunResult{}
	}
	defer e.running.Store(false)

	result := e.run(ctx)

	now := time.Now()
	e.mu.Lock()
	e.lastRun = &result
	e.lastRunAt = &now
	e.mu.Unlock()

	prom.IncCounter(prom.SystemSync, prom.MetricSyncRuns)
	return result
}

func (e *Engine) run(ctx context.Context) model.RunResult {
	var result model.RunResult

	rows, err := e.ledger.Unsynced(ctx, e.config.TenantID, e.config.FetchLimit)
	if err != nil {
		logger.Error("failed to read unsynced rows", "tenant", e.config.TenantID, "error", err)
		result.Errors = append(result.Errors, fmt.Sprintf("read unsynced: %v", err))
		return result
	}
	if len(rows) == 0 {
		return result
	}

	logger.Info("sync run starting", "tenant", e.config.TenantID, "pending", len(rows))

	for start := 0; start < len(rows); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		synced, errs, pushErr := e.pushBatch(ctx, batch)
		result.Synced += synced
		result.Errors = append(result.Errors, errs...)

		if pushErr != nil {
			// transport failure: the remaining rows stay pending and are
			// retried on the next scheduled tick, no backoff
			logger.Warn("batch push failed, deferring remainder to next tick",
				"tenant", e.config.TenantID, "error", pushErr, "remaining", len(rows)-start)
			result.Errors = append(result.Errors, pushErr.Error())
			prom.IncCounter(prom.SystemSync, prom.MetricSyncPushErrors)
			break
		}
	}

	e.updatePendingGauge(ctx)

	logger.Info("sync run finished",
		"tenant", e.config.TenantID, "synced", result.Synced, "errors", len(result.Errors))
	return result
}

// pushBatch submits one batch and marks the accepted prefix as synced. The
// endpoint accepts items in submission order, so the first synced rows of the
// batch are exactly the accepted ones.
func (e *Engine) pushBatch(ctx context.Context, batch []*model.SalesTransaction) (int, []string, error) {
	payloads := make([]cloud.TransactionPayload, len(batch))
	for i, tx := range batch {
		payloads[i] = cloud.ToPayload(tx)
	}

	started := time.Now()
	resp, err := e.pusher.Push(ctx, e.config.TenantID, payloads)
	prom.AddHistogram(prom.SystemSync, prom.MetricSyncPushDuration, time.Since(started).Seconds())
	if err != nil {
		return 0, nil, err
	}

	accepted := resp.Synced
	if accepted > len(batch) {
		accepted = len(batch)
	}
	if accepted > 0 {
		ids := make([]string, accepted)
		for i := 0; i < accepted; i++ {
			ids[i] = batch[i].ID
		}
		if err := e.ledger.MarkSynced(ctx, ids, time.Now()); err != nil {
			// the cloud has the rows; next tick re-pushes and the endpoint's
			// idempotent upsert absorbs the replay
			logger.Error("failed to mark rows synced", "tenant", e.config.TenantID, "error", err)
			return 0, resp.Errors, fmt.Errorf("mark synced: %w", err)
		}
		prom.AddCounter(prom.SystemSync, prom.MetricSyncPushed, float64(accepted))
	}

	return accepted, resp.Errors, nil
}

func (e *Engine) updatePendingGauge(ctx context.Context) {
	total, synced, err := e.ledger.SyncCounts(ctx, e.config.TenantID)
	if err != nil {
		return
	}
	prom.SetGaugeVec(prom.SystemSync, prom.MetricSyncPending, float64(total-synced), e.config.TenantID)
}

// Status reports outbox progress for the sync-status query.
func (e *Engine) Status(ctx context.Context) (*model.SyncStatus, error) {
	total, synced, err := e.ledger.SyncCounts(ctx, e.config.TenantID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	lastRun := e.lastRun
	lastRunAt := e.lastRunAt
	e.mu.Unlock()

	return &model.SyncStatus{
		TenantID:  e.config.TenantID,
		Total:     total,
		Synced:    synced,
		Pending:   total - synced,
		LastRunAt: lastRunAt,
		LastRun:   lastRun,
	}, nil
}
