// Package engine coordinates the offline-first sync core: it owns the flush
// cycle over the mutation queue, identifier reconciliation, and the
// caller-facing read/write operations backed by the local store.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mkalas/centavo/internal/common"
	"github.com/mkalas/centavo/internal/merge"
	"github.com/mkalas/centavo/internal/model"
	"github.com/mkalas/centavo/internal/service"
)

// DefaultBatchSize caps concurrent remote operations per batch.
const DefaultBatchSize = 10

// DefaultDebounce delays a connectivity-triggered sync so a flapping
// connection doesn't start a cycle it can't finish.
const DefaultDebounce = 2 * time.Second

// Options configures an Engine.
type Options struct {
	Store        service.Store
	Remote       service.RemoteClient
	Connectivity service.Connectivity
	Logger       *slog.Logger
	BatchSize    int
	Debounce     time.Duration
}

// Engine is the sync orchestrator. At most one flush cycle runs at a time;
// a SyncNow call during an active cycle is a no-op.
type Engine struct {
	store        service.Store
	remote       service.RemoteClient
	connectivity service.Connectivity
	logger       *slog.Logger

	batchSize int
	debounce  time.Duration

	syncing atomic.Bool

	mu           sync.Mutex
	lastSyncTime time.Time
	lastError    string
	pending      int
}

// New creates an Engine. The store must already be initialized.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if opts.Remote == nil {
		return nil, fmt.Errorf("remote client is required")
	}
	if opts.Connectivity == nil {
		return nil, fmt.Errorf("connectivity source is required")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	e := &Engine{
		store:        opts.Store,
		remote:       opts.Remote,
		connectivity: opts.Connectivity,
		logger:       opts.Logger,
		batchSize:    opts.BatchSize,
		debounce:     opts.Debounce,
	}
	return e, nil
}

// Status returns the caller-facing sync state.
func (e *Engine) Status() service.SyncStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return service.SyncStatus{
		IsSyncing:         e.syncing.Load(),
		LastSyncTime:      e.lastSyncTime,
		PendingOperations: e.pending,
		Error:             e.lastError,
	}
}

// SyncNow runs one flush cycle: read the pending queue, apply it remotely in
// batches, reconcile ids for successful creates, and prune confirmed
// entries. Expected failures (offline, remote unreachable, partial batch
// failure) are recorded in the status and returned as sentinel errors; they
// never clear the queue. A call while a cycle is already running returns
// immediately with no error.
func (e *Engine) SyncNow(ctx context.Context) error {
	if !e.connectivity.Online() {
		e.setError(common.ErrOffline.Error())
		return common.ErrOffline
	}

	if !e.syncing.CompareAndSwap(false, true) {
		return nil
	}
	defer e.syncing.Store(false)

	// Every attempt starts clean; errors are not sticky.
	e.setError("")

	pending, err := e.store.DequeuePending(ctx)
	if err != nil {
		e.setError(err.Error())
		return fmt.Errorf("failed to read pending queue: %w", err)
	}

	if len(pending) == 0 {
		return e.finishCycle(ctx)
	}

	// Updates and deletes that still target a temporary id wait for the
	// create's reconciliation; everything else ships in queue order.
	eligible := make([]model.Mutation, 0, len(pending))
	for _, m := range pending {
		if m.Type != model.MutationCreate && m.TargetsTempID() {
			continue
		}
		eligible = append(eligible, m)
	}

	if len(eligible) == 0 {
		return e.finishCycle(ctx)
	}

	if !e.remote.ProbeAvailability(ctx) {
		e.setError(common.ErrRemoteUnavailable.Error())
		e.refreshPending(ctx)
		return common.ErrRemoteUnavailable
	}

	e.logger.Info("flushing offline queue",
		"pending", len(pending),
		"eligible", len(eligible))

	result := e.remote.ApplyBatch(ctx, eligible, e.batchSize)

	for _, op := range result.Successful {
		if err := e.store.MarkSynced(ctx, op.Mutation.ID); err != nil {
			e.logger.Error("failed to mark mutation synced",
				"mutation", op.Mutation.ID,
				"error", err)
			continue
		}
		if op.Mutation.Type == model.MutationCreate && op.NewID != "" {
			if err := e.reconcile(ctx, op.Mutation.Collection, op.Mutation.EntityID, op.NewID); err != nil {
				e.logger.Error("identifier reconciliation failed",
					"collection", op.Mutation.Collection,
					"temp_id", op.Mutation.EntityID,
					"new_id", op.NewID,
					"error", err)
			}
		}
	}

	if err := e.store.PruneSynced(ctx); err != nil {
		e.logger.Error("failed to prune synced mutations", "error", err)
	}

	e.refreshPending(ctx)

	if len(result.Failed) > 0 {
		msg := fmt.Sprintf("%d operations failed", len(result.Failed))
		e.setError(msg)
		// Partial progress is preserved; failed entries stay queued for
		// the next cycle.
		return fmt.Errorf("sync incomplete: %s", msg)
	}

	return e.finishCycle(ctx)
}

// finishCycle records a successful cycle completion.
func (e *Engine) finishCycle(ctx context.Context) error {
	now := time.Now().UTC()
	if err := e.store.SetLastSyncTime(ctx, now); err != nil {
		e.logger.Error("failed to record last sync time", "error", err)
	}
	e.refreshPending(ctx)
	e.mu.Lock()
	e.lastSyncTime = now
	e.lastError = ""
	e.mu.Unlock()
	return nil
}

// AddOfflineOperation enqueues a mutation for later replay and returns the
// queue entry's id.
func (e *Engine) AddOfflineOperation(ctx context.Context, m model.Mutation) (string, error) {
	id, err := e.store.Enqueue(ctx, m)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue mutation: %w", err)
	}
	e.refreshPending(ctx)
	return id, nil
}

// FetchAll returns the authoritative entity list for a collection. When the
// remote store is reachable the fresh snapshot is merged with the local
// cache and the result written back; otherwise the cache is served as-is.
func (e *Engine) FetchAll(ctx context.Context, c model.Collection) ([]model.Document, error) {
	local, err := e.store.GetAll(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("failed to read local cache: %w", err)
	}

	if !e.connectivity.Online() {
		return local, nil
	}

	remoteDocs, err := e.remote.FetchAll(ctx, c)
	if err != nil {
		e.logger.Debug("remote fetch failed, serving cache",
			"collection", c,
			"error", err)
		return local, nil
	}

	merged := merge.Merge(local, remoteDocs)
	if err := e.store.SaveAll(ctx, c, merged); err != nil {
		return nil, fmt.Errorf("failed to write merged cache: %w", err)
	}
	return merged, nil
}

// Create stores a new entity, writing through to the remote store when
// online and falling back to the offline queue otherwise.
func (e *Engine) Create(ctx context.Context, c model.Collection, doc model.Document) (model.Document, error) {
	if e.connectivity.Online() {
		created, err := e.CreateOnline(ctx, c, doc)
		if err == nil {
			return created, nil
		}
		e.logger.Debug("online create failed, queueing offline",
			"collection", c,
			"error", err)
	}
	return e.CreateOffline(ctx, c, doc)
}

// CreateOnline inserts the entity remotely, stores the server-assigned row
// locally, and returns it. Fails fast when disconnected.
func (e *Engine) CreateOnline(ctx context.Context, c model.Collection, doc model.Document) (model.Document, error) {
	if !e.connectivity.Online() {
		return model.Document{}, common.ErrOffline
	}

	m := model.NewMutation(model.MutationCreate, c, doc.ID, doc.Data)
	res := e.remote.Apply(ctx, m)
	if res.Err != nil {
		return model.Document{}, res.Err
	}

	created, err := model.RewriteID(doc, res.NewID)
	if err != nil {
		return model.Document{}, err
	}
	if err := e.store.SaveOne(ctx, c, created); err != nil {
		return model.Document{}, fmt.Errorf("failed to cache created entity: %w", err)
	}
	return created, nil
}

// CreateOffline stores the entity locally under a temporary id and queues a
// create mutation for the next flush cycle. Works regardless of
// connectivity.
func (e *Engine) CreateOffline(ctx context.Context, c model.Collection, doc model.Document) (model.Document, error) {
	if !model.IsTempID(doc.ID) {
		rewritten, err := model.RewriteID(doc, model.NewTempID())
		if err != nil {
			return model.Document{}, err
		}
		doc = rewritten
	}

	if err := e.store.SaveOne(ctx, c, doc); err != nil {
		return model.Document{}, fmt.Errorf("failed to cache entity: %w", err)
	}

	m := model.NewMutation(model.MutationCreate, c, doc.ID, doc.Data)
	if _, err := e.AddOfflineOperation(ctx, m); err != nil {
		return model.Document{}, err
	}
	return doc, nil
}

// UpdateOnline applies an edit. Edits require knowing the authoritative
// current state, so while disconnected they are rejected outright rather
// than queued. An edit to a not-yet-reconciled entity stays local and is
// queued behind its create.
func (e *Engine) UpdateOnline(ctx context.Context, c model.Collection, doc model.Document) (model.Document, error) {
	if !e.connectivity.Online() {
		return model.Document{}, common.ErrOffline
	}

	if model.IsTempID(doc.ID) {
		// The entity hasn't been assigned a permanent id yet; persist
		// locally and queue the update, held back until reconciliation.
		if err := e.store.SaveOne(ctx, c, doc); err != nil {
			return model.Document{}, fmt.Errorf("failed to cache entity: %w", err)
		}
		m := model.NewMutation(model.MutationUpdate, c, doc.ID, doc.Data)
		if _, err := e.AddOfflineOperation(ctx, m); err != nil {
			return model.Document{}, err
		}
		return doc, nil
	}

	m := model.NewMutation(model.MutationUpdate, c, doc.ID, doc.Data)
	res := e.remote.Apply(ctx, m)
	if res.Err != nil {
		return model.Document{}, res.Err
	}

	if err := e.store.SaveOne(ctx, c, doc); err != nil {
		return model.Document{}, fmt.Errorf("failed to cache updated entity: %w", err)
	}
	return doc, nil
}

// DeleteOnline removes the entity locally right away and propagates the
// delete remotely, queueing it when the remote write isn't possible.
func (e *Engine) DeleteOnline(ctx context.Context, c model.Collection, id string) error {
	if err := e.store.DeleteOne(ctx, c, id); err != nil {
		return fmt.Errorf("failed to delete cached entity: %w", err)
	}

	if model.IsTempID(id) {
		// Never synced; cancel the queued create instead of sending a
		// delete for an id the server has never seen.
		return e.cancelPendingFor(ctx, c, id)
	}

	if e.connectivity.Online() {
		m := model.NewMutation(model.MutationDelete, c, id, nil)
		res := e.remote.Apply(ctx, m)
		if res.Err == nil {
			e.refreshPending(ctx)
			return nil
		}
		e.logger.Debug("online delete failed, queueing offline",
			"collection", c,
			"id", id,
			"error", res.Err)
	}

	_, err := e.AddOfflineOperation(ctx, model.NewMutation(model.MutationDelete, c, id, nil))
	return err
}

// cancelPendingFor retires every queued mutation targeting a temporary id
// whose entity was deleted before ever syncing.
func (e *Engine) cancelPendingFor(ctx context.Context, c model.Collection, tempID string) error {
	pending, err := e.store.DequeuePending(ctx)
	if err != nil {
		return fmt.Errorf("failed to read pending queue: %w", err)
	}
	for _, m := range pending {
		if m.Collection != c || m.EntityID != tempID {
			continue
		}
		if err := e.store.MarkSynced(ctx, m.ID); err != nil {
			return fmt.Errorf("failed to cancel mutation %s: %w", m.ID, err)
		}
	}
	if err := e.store.PruneSynced(ctx); err != nil {
		return fmt.Errorf("failed to prune cancelled mutations: %w", err)
	}
	e.refreshPending(ctx)
	return nil
}

func (e *Engine) refreshPending(ctx context.Context) {
	pending, err := e.store.DequeuePending(ctx)
	if err != nil {
		e.logger.Error("failed to count pending mutations", "error", err)
		return
	}
	e.mu.Lock()
	e.pending = len(pending)
	e.mu.Unlock()
}

func (e *Engine) setError(msg string) {
	e.mu.Lock()
	e.lastError = msg
	e.mu.Unlock()
}

// LoadState primes the engine's pending count and last sync time from the
// store, typically right after startup.
func (e *Engine) LoadState(ctx context.Context) {
	e.refreshPending(ctx)
	if t, err := e.store.LastSyncTime(ctx); err == nil {
		e.mu.Lock()
		e.lastSyncTime = t
		e.mu.Unlock()
	}
}
