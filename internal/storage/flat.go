package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/mkalas/centavo/internal/common"
	"github.com/mkalas/centavo/internal/model"
)

// FlatStore implements service.Store as plain JSON files, one per
// collection plus the mutation queue and sync metadata. It is the fallback
// tier used when the structured store is unavailable.
type FlatStore struct {
	docs  map[model.Collection]map[string]model.Document
	meta  map[string]string
	dir   string
	queue []model.Mutation
	mu    sync.Mutex
}

// NewFlatStore creates a flat store rooted at dir.
func NewFlatStore(dir string) *FlatStore {
	return &FlatStore{
		dir:  dir,
		docs: make(map[model.Collection]map[string]model.Document),
		meta: make(map[string]string),
	}
}

// Init loads any previously persisted state from disk. Idempotent.
func (s *FlatStore) Init(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return fmt.Errorf("failed to create flat store directory: %w", err)
	}

	for _, c := range model.Collections {
		items := make(map[string]model.Document)
		if err := s.loadFile(string(c)+".json", &items); err != nil {
			return err
		}
		if len(items) > 0 || s.docs[c] == nil {
			s.docs[c] = items
		}
	}
	var queue []model.Mutation
	if err := s.loadFile("queue.json", &queue); err != nil {
		return err
	}
	if queue != nil {
		s.queue = queue
	}
	meta := make(map[string]string)
	if err := s.loadFile("meta.json", &meta); err != nil {
		return err
	}
	if len(meta) > 0 {
		s.meta = meta
	}
	return nil
}

// Close is a no-op; every write is flushed as it happens.
func (s *FlatStore) Close() error { return nil }

// GetAll returns every document in a collection, newest first.
func (s *FlatStore) GetAll(ctx context.Context, c model.Collection) ([]model.Document, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateCollection(c); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Document, 0, len(s.docs[c]))
	for _, doc := range s.docs[c] {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortKey > out[j].SortKey })
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// SaveAll replaces the entire contents of a collection.
func (s *FlatStore) SaveAll(ctx context.Context, c model.Collection, docs []model.Document) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCollection(c); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items := make(map[string]model.Document, len(docs))
	for _, doc := range docs {
		items[doc.ID] = doc
	}
	s.docs[c] = items
	return s.saveFile(string(c)+".json", items)
}

// GetOne returns a single document, or common.ErrNotFound.
func (s *FlatStore) GetOne(ctx context.Context, c model.Collection, id string) (*model.Document, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateCollection(c); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[c][id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", c, id, common.ErrNotFound)
	}
	return &doc, nil
}

// SaveOne inserts or replaces a single document.
func (s *FlatStore) SaveOne(ctx context.Context, c model.Collection, doc model.Document) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCollection(c); err != nil {
		return err
	}
	if err := validateString(doc.ID, "doc.ID"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.docs[c] == nil {
		s.docs[c] = make(map[string]model.Document)
	}
	s.docs[c][doc.ID] = doc
	return s.saveFile(string(c)+".json", s.docs[c])
}

// DeleteOne removes a single document. Deleting an absent id is not an error.
func (s *FlatStore) DeleteOne(ctx context.Context, c model.Collection, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCollection(c); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.docs[c], id)
	return s.saveFile(string(c)+".json", s.docs[c])
}

// Enqueue appends a mutation to the offline queue.
func (s *FlatStore) Enqueue(ctx context.Context, m model.Mutation) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}
	if err := validateMutation(m); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.queue = append(s.queue, m)
	if err := s.saveFile("queue.json", s.queue); err != nil {
		return "", err
	}
	return m.ID, nil
}

// DequeuePending returns every unsynced mutation in insertion order.
func (s *FlatStore) DequeuePending(ctx context.Context) ([]model.Mutation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Mutation
	for _, m := range s.queue {
		if !m.Synced {
			out = append(out, m)
		}
	}
	return out, nil
}

// MarkSynced flags a queue entry as confirmed by the remote store.
func (s *FlatStore) MarkSynced(ctx context.Context, mutationID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(mutationID, "mutationID"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.queue {
		if s.queue[i].ID == mutationID {
			s.queue[i].Synced = true
			return s.saveFile("queue.json", s.queue)
		}
	}
	return fmt.Errorf("mutation %s: %w", mutationID, common.ErrNotFound)
}

// UpdateMutation rewrites a queue entry in place.
func (s *FlatStore) UpdateMutation(ctx context.Context, m model.Mutation) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateMutation(m); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.queue {
		if s.queue[i].ID == m.ID {
			s.queue[i] = m
			return s.saveFile("queue.json", s.queue)
		}
	}
	return fmt.Errorf("mutation %s: %w", m.ID, common.ErrNotFound)
}

// PruneSynced removes every queue entry already confirmed by the remote store.
func (s *FlatStore) PruneSynced(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.queue[:0]
	for _, m := range s.queue {
		if !m.Synced {
			kept = append(kept, m)
		}
	}
	s.queue = kept
	return s.saveFile("queue.json", s.queue)
}

// LastSyncTime returns the recorded time of the last successful sync.
func (s *FlatStore) LastSyncTime(ctx context.Context) (time.Time, error) {
	if err := validateContext(ctx); err != nil {
		return time.Time{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.meta["last_sync_time"]
	if !ok {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse last sync time: %w", err)
	}
	return t, nil
}

// SetLastSyncTime records the time of the last successful sync.
func (s *FlatStore) SetLastSyncTime(ctx context.Context, t time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.meta["last_sync_time"] = t.UTC().Format(time.RFC3339Nano)
	return s.saveFile("meta.json", s.meta)
}

// ClearAll wipes every collection, the queue, and metadata.
func (s *FlatStore) ClearAll(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range model.Collections {
		s.docs[c] = make(map[string]model.Document)
		if err := s.saveFile(string(c)+".json", s.docs[c]); err != nil {
			return err
		}
	}
	s.queue = nil
	if err := s.saveFile("queue.json", s.queue); err != nil {
		return err
	}
	s.meta = make(map[string]string)
	return s.saveFile("meta.json", s.meta)
}

// IsDataAvailable reports whether any collection holds at least one entity.
func (s *FlatStore) IsDataAvailable(ctx context.Context) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, items := range s.docs {
		if len(items) > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (s *FlatStore) loadFile(name string, v any) error {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path) // #nosec G304 -- path is store-internal
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return nil
}

// saveFile writes atomically via a temp file rename so a crash mid-write
// never leaves a truncated cache behind.
func (s *FlatStore) saveFile(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}
