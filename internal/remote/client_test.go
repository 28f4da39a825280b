package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkalas/centavo/internal/common"
	"github.com/mkalas/centavo/internal/model"
	"github.com/mkalas/centavo/internal/service"
)

// stubSession is always valid with a fixed token.
type stubSession struct {
	token  string
	userID string
	valid  bool
}

func (s *stubSession) Valid() bool                           { return s.valid }
func (s *stubSession) Token(context.Context) (string, error) { return s.token, nil }
func (s *stubSession) UserID() string                        { return s.userID }

var _ service.Session = (*stubSession)(nil)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig(srv.URL, "test-api-key")
	cfg.InterBatchDelay = time.Millisecond
	cfg.Retry = common.FixedDelay(1, 0)
	client, err := NewClient(cfg, &stubSession{token: "test-token", userID: "user-1", valid: true})
	require.NoError(t, err)
	return client, srv
}

func createMutation(entityID string) model.Mutation {
	payload := []byte(`{"id":"` + entityID + `","description":"Test","amount":"5",` +
		`"type":"expense","date":"2026-04-01T00:00:00Z"}`)
	return model.NewMutation(model.MutationCreate, model.CollectionTransactions, entityID, payload)
}

func TestClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{}, &stubSession{valid: true})
	assert.Error(t, err)
}

func TestProbeAvailability(t *testing.T) {
	t.Run("reachable backend", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
			assert.Equal(t, "test-api-key", r.Header.Get("apikey"))
			_, _ = w.Write([]byte(`[]`))
		}))
		assert.True(t, client.ProbeAvailability(context.Background()))
	})

	t.Run("server error", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		assert.False(t, client.ProbeAvailability(context.Background()))
	})

	t.Run("invalid session", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`[]`))
		}))
		defer srv.Close()
		client, err := NewClient(DefaultConfig(srv.URL, ""), &stubSession{valid: false})
		require.NoError(t, err)
		assert.False(t, client.ProbeAvailability(context.Background()))
	})
}

func TestApplyCreateReturnsAssignedID(t *testing.T) {
	var gotBody map[string]any
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/v1/transactions", r.URL.Path)
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`[{"id":"tx-900"}]`))
	}))

	res := client.Apply(context.Background(), createMutation("temp_1"))

	require.NoError(t, res.Err)
	assert.Equal(t, "tx-900", res.NewID)
	// The temporary id never crosses the wire.
	assert.NotContains(t, gotBody, "id")
}

func TestApplyCreateMissingIDInResponse(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))

	res := client.Apply(context.Background(), createMutation("temp_1"))
	assert.Error(t, res.Err)
}

func TestApplyUpdateScopesToOwner(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "eq.tx-1", r.URL.Query().Get("id"))
		assert.Equal(t, "eq.user-1", r.URL.Query().Get("user_id"))
		_, _ = w.Write([]byte(`[]`))
	}))

	payload := []byte(`{"id":"tx-1","description":"Edited","amount":"5","type":"expense","date":"2026-04-01T00:00:00Z"}`)
	m := model.NewMutation(model.MutationUpdate, model.CollectionTransactions, "tx-1", payload)

	res := client.Apply(context.Background(), m)
	assert.NoError(t, res.Err)
}

func TestApplyDelete(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "eq.tx-1", r.URL.Query().Get("id"))
		w.WriteHeader(http.StatusNoContent)
	}))

	m := model.NewMutation(model.MutationDelete, model.CollectionTransactions, "tx-1", nil)
	res := client.Apply(context.Background(), m)
	assert.NoError(t, res.Err)
}

func TestApplyNeverReturnsErrorForFailures(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))

	res := client.Apply(context.Background(), createMutation("temp_1"))

	// Failure is reported in the result, tied to its mutation.
	assert.Error(t, res.Err)
	assert.Equal(t, "temp_1", res.Mutation.EntityID)
}

func TestApplyBatchPartialFailure(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		// Every second insert fails.
		if n%2 == 0 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`[{"id":"assigned"}]`))
	}))

	muts := []model.Mutation{
		createMutation("temp_1"),
		createMutation("temp_2"),
		createMutation("temp_3"),
		createMutation("temp_4"),
	}

	result := client.ApplyBatch(context.Background(), muts, 2)

	assert.Len(t, result.Successful, 2)
	assert.Len(t, result.Failed, 2)
	assert.Equal(t, 4, calls)
	for _, op := range result.Failed {
		assert.Error(t, op.Err)
		assert.NotEmpty(t, op.Mutation.ID)
	}
}

func TestApplyBatchBoundsConcurrency(t *testing.T) {
	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		_, _ = w.Write([]byte(`[{"id":"assigned"}]`))
	}))

	muts := make([]model.Mutation, 6)
	for i := range muts {
		muts[i] = createMutation(model.NewTempID())
	}

	result := client.ApplyBatch(context.Background(), muts, 2)

	assert.Len(t, result.Successful, 6)
	assert.LessOrEqual(t, maxInFlight, 2)
}

func TestPlanBatchesSeparatesSameEntity(t *testing.T) {
	update := func(entityID string) model.Mutation {
		return model.NewMutation(model.MutationUpdate, model.CollectionTransactions, entityID, nil)
	}

	muts := []model.Mutation{update("a"), update("a"), update("b"), update("a")}
	batches := planBatches(muts, 10)

	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 2) // first a + b
	assert.Len(t, batches[1], 1) // second a
	assert.Len(t, batches[2], 1) // third a
	for _, batch := range batches {
		seen := make(map[string]bool)
		for _, m := range batch {
			key := string(m.Collection) + "/" + m.EntityID
			assert.False(t, seen[key], "entity repeated within one batch")
			seen[key] = true
		}
	}
}

func TestPlanBatchesRespectsSize(t *testing.T) {
	muts := make([]model.Mutation, 7)
	for i := range muts {
		muts[i] = createMutation(model.NewTempID())
	}

	batches := planBatches(muts, 3)

	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 3)
	assert.Len(t, batches[1], 3)
	assert.Len(t, batches[2], 1)
}

func TestFetchAll(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/categories", r.URL.Path)
		_, _ = w.Write([]byte(`[{"id":"cat-1","name":"Food","type":"expense"}]`))
	}))

	docs, err := client.FetchAll(context.Background(), model.CollectionCategories)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "cat-1", docs[0].ID)
}

func TestFetchAllRetriesTransientFailure(t *testing.T) {
	var hits atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[{"id":"cat-1","name":"Food","type":"expense"}]`))
	}))
	client.config.Retry = common.FixedDelay(3, 0)

	docs, err := client.FetchAll(context.Background(), model.CollectionCategories)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetchAllExhaustsRetries(t *testing.T) {
	var hits atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	client.config.Retry = common.FixedDelay(2, 0)

	_, err := client.FetchAll(context.Background(), model.CollectionCategories)
	require.Error(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestSubscribeEmitsChanges(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/realtime/v1/changes", r.URL.Path)
		assert.Equal(t, "transactions", r.URL.Query().Get("collection"))
		_, _ = w.Write([]byte(`[{"entity_id":"tx-1","collection":"transactions","timestamp":"2026-04-01T10:00:00Z"}]`))
	}))
	client.config.PollInterval = 10 * time.Millisecond

	sub, err := client.Subscribe(context.Background(), model.CollectionTransactions)
	require.NoError(t, err)
	defer sub.Close()

	select {
	case change := <-sub.Changes():
		assert.Equal(t, "tx-1", change.EntityID)
		assert.Equal(t, model.CollectionTransactions, change.Collection)
	case <-time.After(2 * time.Second):
		t.Fatal("No change received")
	}
}
