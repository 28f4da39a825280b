package storage

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mkalas/centavo/internal/common"
	"github.com/mkalas/centavo/internal/model"
	"github.com/mkalas/centavo/internal/service"
)

// DefaultInitTimeout bounds how long the structured tier may take to open
// before the store is forced onto the flat tier.
const DefaultInitTimeout = 5 * time.Second

// FallbackStore serves every operation from the structured tier until the
// first failure, then permanently downgrades to the flat tier for the rest
// of its lifetime. Callers never see the tier distinction: a failed
// structured operation is retried once against the flat tier before
// returning.
type FallbackStore struct {
	primary     service.Store
	fallback    service.Store
	logger      *slog.Logger
	initTimeout time.Duration
	mu          sync.Mutex
	degraded    bool
	flatReady   bool
}

// NewFallbackStore wraps a structured primary store and a flat fallback.
func NewFallbackStore(primary, fallback service.Store) *FallbackStore {
	return &FallbackStore{
		primary:     primary,
		fallback:    fallback,
		initTimeout: DefaultInitTimeout,
		logger:      slog.Default(),
	}
}

// Init attempts to open the structured tier within a bounded window. On any
// failure or timeout it silently downgrades to the flat tier; structured-tier
// initialization problems are never surfaced to callers.
func (s *FallbackStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.degraded {
		return s.initFlatLocked(ctx)
	}

	initCtx, cancel := context.WithTimeout(ctx, s.initTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.primary.Init(initCtx) }()

	select {
	case err := <-done:
		if err == nil {
			return nil
		}
		s.logger.Warn("structured store init failed, degrading to flat tier", "error", err)
	case <-initCtx.Done():
		s.logger.Warn("structured store init timed out, degrading to flat tier")
	}

	s.degraded = true
	return s.initFlatLocked(ctx)
}

func (s *FallbackStore) initFlatLocked(ctx context.Context) error {
	if s.flatReady {
		return nil
	}
	if err := s.fallback.Init(ctx); err != nil {
		return err
	}
	s.flatReady = true
	return nil
}

// Degraded reports whether the store has fallen back to the flat tier.
func (s *FallbackStore) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// active returns the store to try first and whether it is the primary tier.
func (s *FallbackStore) active() (service.Store, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.degraded {
		return s.fallback, false
	}
	return s.primary, true
}

// degrade flips the tier flag and prepares the flat tier.
func (s *FallbackStore) degrade(ctx context.Context, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.degraded {
		s.logger.Warn("structured store operation failed, degrading to flat tier", "error", cause)
		s.degraded = true
	}
	if !s.flatReady {
		if err := s.fallback.Init(ctx); err != nil {
			s.logger.Error("flat tier init failed", "error", err)
			return
		}
		s.flatReady = true
	}
}

// run executes op against the active tier, degrading and retrying on the
// flat tier when the structured tier fails. Not-found results and rejected
// caller input are logical outcomes, not storage failures, and pass through
// unchanged.
func (s *FallbackStore) run(ctx context.Context, op func(service.Store) error) error {
	store, isPrimary := s.active()
	err := op(store)
	if err == nil || !isPrimary || ctx.Err() != nil ||
		errors.Is(err, common.ErrNotFound) || errors.Is(err, common.ErrInvalidInput) {
		return err
	}
	s.degrade(ctx, err)
	return op(s.fallback)
}

// GetAll implements service.Store.
func (s *FallbackStore) GetAll(ctx context.Context, c model.Collection) ([]model.Document, error) {
	var docs []model.Document
	err := s.run(ctx, func(st service.Store) error {
		var opErr error
		docs, opErr = st.GetAll(ctx, c)
		return opErr
	})
	return docs, err
}

// SaveAll implements service.Store.
func (s *FallbackStore) SaveAll(ctx context.Context, c model.Collection, docs []model.Document) error {
	return s.run(ctx, func(st service.Store) error {
		return st.SaveAll(ctx, c, docs)
	})
}

// GetOne implements service.Store.
func (s *FallbackStore) GetOne(ctx context.Context, c model.Collection, id string) (*model.Document, error) {
	var doc *model.Document
	err := s.run(ctx, func(st service.Store) error {
		var opErr error
		doc, opErr = st.GetOne(ctx, c, id)
		return opErr
	})
	return doc, err
}

// SaveOne implements service.Store.
func (s *FallbackStore) SaveOne(ctx context.Context, c model.Collection, doc model.Document) error {
	return s.run(ctx, func(st service.Store) error {
		return st.SaveOne(ctx, c, doc)
	})
}

// DeleteOne implements service.Store.
func (s *FallbackStore) DeleteOne(ctx context.Context, c model.Collection, id string) error {
	return s.run(ctx, func(st service.Store) error {
		return st.DeleteOne(ctx, c, id)
	})
}

// Enqueue implements service.Store.
func (s *FallbackStore) Enqueue(ctx context.Context, m model.Mutation) (string, error) {
	var id string
	err := s.run(ctx, func(st service.Store) error {
		var opErr error
		id, opErr = st.Enqueue(ctx, m)
		return opErr
	})
	return id, err
}

// DequeuePending implements service.Store.
func (s *FallbackStore) DequeuePending(ctx context.Context) ([]model.Mutation, error) {
	var muts []model.Mutation
	err := s.run(ctx, func(st service.Store) error {
		var opErr error
		muts, opErr = st.DequeuePending(ctx)
		return opErr
	})
	return muts, err
}

// MarkSynced implements service.Store.
func (s *FallbackStore) MarkSynced(ctx context.Context, mutationID string) error {
	return s.run(ctx, func(st service.Store) error {
		return st.MarkSynced(ctx, mutationID)
	})
}

// UpdateMutation implements service.Store.
func (s *FallbackStore) UpdateMutation(ctx context.Context, m model.Mutation) error {
	return s.run(ctx, func(st service.Store) error {
		return st.UpdateMutation(ctx, m)
	})
}

// PruneSynced implements service.Store.
func (s *FallbackStore) PruneSynced(ctx context.Context) error {
	return s.run(ctx, func(st service.Store) error {
		return st.PruneSynced(ctx)
	})
}

// LastSyncTime implements service.Store.
func (s *FallbackStore) LastSyncTime(ctx context.Context) (time.Time, error) {
	var t time.Time
	err := s.run(ctx, func(st service.Store) error {
		var opErr error
		t, opErr = st.LastSyncTime(ctx)
		return opErr
	})
	return t, err
}

// SetLastSyncTime implements service.Store.
func (s *FallbackStore) SetLastSyncTime(ctx context.Context, t time.Time) error {
	return s.run(ctx, func(st service.Store) error {
		return st.SetLastSyncTime(ctx, t)
	})
}

// ClearAll implements service.Store.
func (s *FallbackStore) ClearAll(ctx context.Context) error {
	return s.run(ctx, func(st service.Store) error {
		return st.ClearAll(ctx)
	})
}

// IsDataAvailable implements service.Store.
func (s *FallbackStore) IsDataAvailable(ctx context.Context) (bool, error) {
	var available bool
	err := s.run(ctx, func(st service.Store) error {
		var opErr error
		available, opErr = st.IsDataAvailable(ctx)
		return opErr
	})
	return available, err
}

// Close closes whichever tiers were opened.
func (s *FallbackStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.primary.Close()
	if s.flatReady {
		if ferr := s.fallback.Close(); ferr != nil && err == nil {
			err = ferr
		}
	}
	return err
}
