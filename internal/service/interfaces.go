// Package service defines the interfaces the sync core is built against.
package service

import (
	"context"
	"time"

	"github.com/mkalas/centavo/internal/model"
)

// Store is the contract for the local durable store: per-collection entity
// documents, the offline mutation queue, and sync metadata. Implementations
// must be safe for use from multiple goroutines.
type Store interface {
	// Init prepares the store. It is idempotent and must be called before
	// any other method.
	Init(ctx context.Context) error

	// Entity collections.
	GetAll(ctx context.Context, c model.Collection) ([]model.Document, error)
	SaveAll(ctx context.Context, c model.Collection, docs []model.Document) error
	GetOne(ctx context.Context, c model.Collection, id string) (*model.Document, error)
	SaveOne(ctx context.Context, c model.Collection, doc model.Document) error
	DeleteOne(ctx context.Context, c model.Collection, id string) error

	// Offline mutation queue.
	Enqueue(ctx context.Context, m model.Mutation) (string, error)
	DequeuePending(ctx context.Context) ([]model.Mutation, error)
	MarkSynced(ctx context.Context, mutationID string) error
	UpdateMutation(ctx context.Context, m model.Mutation) error
	PruneSynced(ctx context.Context) error

	// Sync metadata.
	LastSyncTime(ctx context.Context) (time.Time, error)
	SetLastSyncTime(ctx context.Context, t time.Time) error

	// Maintenance.
	ClearAll(ctx context.Context) error
	IsDataAvailable(ctx context.Context) (bool, error)
	Close() error
}

// OpResult reports the outcome of applying a single mutation remotely.
type OpResult struct {
	Err      error
	NewID    string
	Mutation model.Mutation
}

// BatchResult partitions a batch application into successes and failures.
type BatchResult struct {
	Successful []OpResult
	Failed     []OpResult
}

// RemoteClient performs network writes against the hosted backend. Apply and
// ApplyBatch report failures through OpResult rather than returned errors so
// a single bad operation never aborts a flush cycle.
type RemoteClient interface {
	// ProbeAvailability performs a cheap read-only call. Any network or
	// auth error reports as unavailable.
	ProbeAvailability(ctx context.Context) bool

	// Apply performs one remote write. For creates the server-assigned id
	// is returned in OpResult.NewID.
	Apply(ctx context.Context, m model.Mutation) OpResult

	// ApplyBatch partitions mutations into batches of batchSize, runs each
	// batch's operations concurrently, and joins every batch before
	// starting the next.
	ApplyBatch(ctx context.Context, muts []model.Mutation, batchSize int) BatchResult

	// FetchAll retrieves the remote snapshot of a collection.
	FetchAll(ctx context.Context, c model.Collection) ([]model.Document, error)

	// Subscribe opens the change-notification feed for a collection.
	Subscribe(ctx context.Context, c model.Collection) (ChangeSubscription, error)
}

// Change is one entry from the remote change-notification feed.
type Change struct {
	Timestamp  time.Time
	EntityID   string
	Collection model.Collection
}

// ChangeSubscription is a cancellable handle on the change feed.
type ChangeSubscription interface {
	Changes() <-chan Change
	Close()
}

// Connectivity exposes the host environment's online/offline signal.
type Connectivity interface {
	Online() bool
	// Subscribe returns a handle emitting the new online state on every
	// transition. Callers must Close the handle on teardown.
	Subscribe() ConnectivitySubscription
}

// ConnectivitySubscription is a cancellable handle on connectivity events.
type ConnectivitySubscription interface {
	Events() <-chan bool
	Close()
}

// Session answers whether a valid authenticated session exists and supplies
// the bearer token for remote calls. UserID identifies the authenticated
// owner so remote writes can be scoped defensively.
type Session interface {
	Valid() bool
	Token(ctx context.Context) (string, error)
	UserID() string
}

// SyncStatus is the caller-facing view of the sync orchestrator's state.
type SyncStatus struct {
	LastSyncTime      time.Time
	Error             string
	PendingOperations int
	IsSyncing         bool
}

// RetryPolicy decides the delay before a retry attempt (1-based). A false
// second return stops retrying. Policies are pure so tests can simulate time.
type RetryPolicy func(attempt int) (time.Duration, bool)
