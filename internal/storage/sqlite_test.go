package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/mkalas/centavo/internal/common"
	"github.com/mkalas/centavo/internal/model"
)

// Helper to create an initialized store on a throwaway database.
func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := store.Init(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to init store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testDocument(id string, updated time.Time) model.Document {
	return model.Document{
		ID:        id,
		UpdatedAt: updated,
		SortKey:   updated.UTC().Format(time.RFC3339Nano) + "/" + id,
		Data:      []byte(fmt.Sprintf(`{"id":%q}`, id)),
	}
}

func TestSQLiteStore_SaveAndGetDocuments(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	docs := []model.Document{
		testDocument("tx-1", base),
		testDocument("tx-2", base.Add(time.Hour)),
		testDocument("tx-3", base.Add(2*time.Hour)),
	}
	if err := store.SaveAll(ctx, model.CollectionTransactions, docs); err != nil {
		t.Fatalf("SaveAll failed: %v", err)
	}

	got, err := store.GetAll(ctx, model.CollectionTransactions)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 documents, got %d", len(got))
	}
	// Natural order is sort key descending, newest first.
	if got[0].ID != "tx-3" || got[2].ID != "tx-1" {
		t.Errorf("Unexpected order: %s, %s, %s", got[0].ID, got[1].ID, got[2].ID)
	}
	if !got[0].UpdatedAt.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("UpdatedAt mismatch: %v", got[0].UpdatedAt)
	}

	// SaveAll replaces the collection wholesale.
	if err := store.SaveAll(ctx, model.CollectionTransactions, docs[:1]); err != nil {
		t.Fatalf("SaveAll replace failed: %v", err)
	}
	got, err = store.GetAll(ctx, model.CollectionTransactions)
	if err != nil {
		t.Fatalf("GetAll after replace failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Expected 1 document after replace, got %d", len(got))
	}
}

func TestSQLiteStore_CollectionsAreIsolated(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	if err := store.SaveOne(ctx, model.CollectionTransactions, testDocument("shared-id", now)); err != nil {
		t.Fatalf("SaveOne failed: %v", err)
	}
	if err := store.SaveOne(ctx, model.CollectionCategories, testDocument("shared-id", now)); err != nil {
		t.Fatalf("SaveOne failed: %v", err)
	}

	txns, err := store.GetAll(ctx, model.CollectionTransactions)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(txns) != 1 {
		t.Errorf("Expected 1 transaction, got %d", len(txns))
	}

	if err := store.DeleteOne(ctx, model.CollectionTransactions, "shared-id"); err != nil {
		t.Fatalf("DeleteOne failed: %v", err)
	}
	if _, err := store.GetOne(ctx, model.CollectionCategories, "shared-id"); err != nil {
		t.Errorf("Category copy should survive transaction delete: %v", err)
	}
}

func TestSQLiteStore_GetOneNotFound(t *testing.T) {
	store := createTestStore(t)

	_, err := store.GetOne(context.Background(), model.CollectionTransactions, "missing")
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStore_SaveOneUpserts(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	doc := testDocument("tx-1", now)
	if err := store.SaveOne(ctx, model.CollectionTransactions, doc); err != nil {
		t.Fatalf("SaveOne failed: %v", err)
	}

	doc.Data = []byte(`{"id":"tx-1","description":"edited"}`)
	doc.UpdatedAt = now.Add(time.Minute)
	if err := store.SaveOne(ctx, model.CollectionTransactions, doc); err != nil {
		t.Fatalf("SaveOne upsert failed: %v", err)
	}

	got, err := store.GetOne(ctx, model.CollectionTransactions, "tx-1")
	if err != nil {
		t.Fatalf("GetOne failed: %v", err)
	}
	if string(got.Data) != string(doc.Data) {
		t.Errorf("Upsert did not replace data: %s", got.Data)
	}
}

func TestSQLiteStore_QueueSurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := store.Init(ctx); err != nil {
		t.Fatalf("Failed to init store: %v", err)
	}

	m := model.NewMutation(model.MutationCreate, model.CollectionTransactions, "temp_1", []byte(`{"id":"temp_1"}`))
	if _, err := store.Enqueue(ctx, m); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Simulates an app restart: the queue entry must still be there.
	reopened, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	if err := reopened.Init(ctx); err != nil {
		t.Fatalf("Failed to re-init store: %v", err)
	}

	pending, err := reopened.DequeuePending(ctx)
	if err != nil {
		t.Fatalf("DequeuePending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("Expected 1 pending mutation after reopen, got %d", len(pending))
	}
	if pending[0].ID != m.ID || pending[0].EntityID != "temp_1" {
		t.Errorf("Mutation mismatch after reopen: %+v", pending[0])
	}
	if pending[0].Synced {
		t.Error("Pending mutation should not be marked synced")
	}
}

func TestSQLiteStore_QueueOrder(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		m := model.NewMutation(model.MutationCreate, model.CollectionTransactions,
			fmt.Sprintf("temp_%d", i), nil)
		m.Timestamp = base.Add(time.Duration(i) * time.Second)
		if _, err := store.Enqueue(ctx, m); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	pending, err := store.DequeuePending(ctx)
	if err != nil {
		t.Fatalf("DequeuePending failed: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("Expected 3 pending, got %d", len(pending))
	}
	for i, m := range pending {
		want := fmt.Sprintf("temp_%d", i)
		if m.EntityID != want {
			t.Errorf("Position %d: expected %s, got %s", i, want, m.EntityID)
		}
	}
}

func TestSQLiteStore_MarkSyncedAndPrune(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	first := model.NewMutation(model.MutationCreate, model.CollectionTransactions, "temp_a", nil)
	second := model.NewMutation(model.MutationCreate, model.CollectionTransactions, "temp_b", nil)
	second.Timestamp = first.Timestamp.Add(time.Second)
	for _, m := range []model.Mutation{first, second} {
		if _, err := store.Enqueue(ctx, m); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	if err := store.MarkSynced(ctx, first.ID); err != nil {
		t.Fatalf("MarkSynced failed: %v", err)
	}

	// A synced entry no longer shows up as pending but is still stored
	// until pruned.
	pending, err := store.DequeuePending(ctx)
	if err != nil {
		t.Fatalf("DequeuePending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != second.ID {
		t.Fatalf("Expected only the unsynced mutation to remain pending, got %d", len(pending))
	}

	if err := store.PruneSynced(ctx); err != nil {
		t.Fatalf("PruneSynced failed: %v", err)
	}
	pending, err = store.DequeuePending(ctx)
	if err != nil {
		t.Fatalf("DequeuePending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("Prune must not touch unsynced entries, got %d pending", len(pending))
	}
}

func TestSQLiteStore_MarkSyncedMissing(t *testing.T) {
	store := createTestStore(t)

	err := store.MarkSynced(context.Background(), "no-such-mutation")
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStore_UpdateMutation(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	m := model.NewMutation(model.MutationUpdate, model.CollectionSavingsTransactions,
		"temp_goal", []byte(`{"savingsGoalId":"temp_goal"}`))
	if _, err := store.Enqueue(ctx, m); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	m.EntityID = "goal-9"
	m.Data = []byte(`{"savingsGoalId":"goal-9"}`)
	if err := store.UpdateMutation(ctx, m); err != nil {
		t.Fatalf("UpdateMutation failed: %v", err)
	}

	pending, err := store.DequeuePending(ctx)
	if err != nil {
		t.Fatalf("DequeuePending failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("Expected 1 pending, got %d", len(pending))
	}
	if pending[0].EntityID != "goal-9" {
		t.Errorf("EntityID not rewritten: %s", pending[0].EntityID)
	}
	if string(pending[0].Data) != `{"savingsGoalId":"goal-9"}` {
		t.Errorf("Data not rewritten: %s", pending[0].Data)
	}
}

func TestSQLiteStore_LastSyncTime(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	got, err := store.LastSyncTime(ctx)
	if err != nil {
		t.Fatalf("LastSyncTime failed: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("Expected zero time before first sync, got %v", got)
	}

	want := time.Date(2026, 7, 4, 16, 30, 0, 0, time.UTC)
	if err := store.SetLastSyncTime(ctx, want); err != nil {
		t.Fatalf("SetLastSyncTime failed: %v", err)
	}
	got, err = store.LastSyncTime(ctx)
	if err != nil {
		t.Fatalf("LastSyncTime failed: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestSQLiteStore_ClearAll(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	if err := store.SaveOne(ctx, model.CollectionTransactions, testDocument("tx-1", time.Now().UTC())); err != nil {
		t.Fatalf("SaveOne failed: %v", err)
	}
	if _, err := store.Enqueue(ctx, model.NewMutation(model.MutationCreate, model.CollectionTransactions, "temp_1", nil)); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := store.SetLastSyncTime(ctx, time.Now().UTC()); err != nil {
		t.Fatalf("SetLastSyncTime failed: %v", err)
	}

	if err := store.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}

	available, err := store.IsDataAvailable(ctx)
	if err != nil {
		t.Fatalf("IsDataAvailable failed: %v", err)
	}
	if available {
		t.Error("Expected no data after ClearAll")
	}
	pending, err := store.DequeuePending(ctx)
	if err != nil {
		t.Fatalf("DequeuePending failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("Expected empty queue after ClearAll, got %d", len(pending))
	}
	last, err := store.LastSyncTime(ctx)
	if err != nil {
		t.Fatalf("LastSyncTime failed: %v", err)
	}
	if !last.IsZero() {
		t.Errorf("Expected zero last sync time after ClearAll, got %v", last)
	}
}

func TestSQLiteStore_IsDataAvailable(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	available, err := store.IsDataAvailable(ctx)
	if err != nil {
		t.Fatalf("IsDataAvailable failed: %v", err)
	}
	if available {
		t.Error("Fresh store should report no data")
	}

	if err := store.SaveOne(ctx, model.CollectionCategories, testDocument("cat-1", time.Now().UTC())); err != nil {
		t.Fatalf("SaveOne failed: %v", err)
	}
	available, err = store.IsDataAvailable(ctx)
	if err != nil {
		t.Fatalf("IsDataAvailable failed: %v", err)
	}
	if !available {
		t.Error("Store with one entity should report data available")
	}
}

func TestSQLiteStore_Validation(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	if err := store.SaveOne(ctx, "bogus", testDocument("x", time.Now().UTC())); !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for unknown collection, got %v", err)
	}
	if _, err := store.GetOne(ctx, model.CollectionTransactions, ""); !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty id, got %v", err)
	}
}
