package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/mkalas/centavo/internal/common"
	"github.com/mkalas/centavo/internal/model"
	"github.com/mkalas/centavo/internal/service"
)

// Config holds settings for the remote client.
type Config struct {
	// BaseURL is the root of the hosted backend, e.g. https://x.example.co
	BaseURL string
	// APIKey is sent on every request alongside the bearer token.
	APIKey string
	// BatchSize caps how many mutations are in flight concurrently.
	BatchSize int
	// InterBatchDelay is the fixed pause between batches.
	InterBatchDelay time.Duration
	// PollInterval paces the change-feed long poll.
	PollInterval time.Duration
	// Timeout bounds each HTTP request.
	Timeout time.Duration
	// Retry decides how snapshot fetches are retried. Writes are not
	// retried here; the mutation queue replays them on the next cycle.
	Retry service.RetryPolicy
}

// DefaultConfig returns production defaults for the given backend URL.
func DefaultConfig(baseURL, apiKey string) Config {
	return Config{
		BaseURL:         baseURL,
		APIKey:          apiKey,
		BatchSize:       10,
		InterBatchDelay: 500 * time.Millisecond,
		PollInterval:    5 * time.Second,
		Timeout:         30 * time.Second,
		Retry:           common.Backoff(3, 500*time.Millisecond, 5*time.Second),
	}
}

// Client talks to the hosted backend's REST surface. It implements
// service.RemoteClient: per-operation failures are reported through OpResult,
// never as panics or errors that abort a batch.
type Client struct {
	httpClient *http.Client
	session    service.Session
	logger     *slog.Logger
	config     Config
}

// NewClient creates a remote client.
func NewClient(config Config, session service.Session) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("%w: remote base URL", common.ErrMissingConfig)
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 10
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Retry == nil {
		config.Retry = common.Backoff(3, 500*time.Millisecond, 5*time.Second)
	}
	return &Client{
		config:     config,
		session:    session,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     slog.Default(),
	}, nil
}

// ProbeAvailability performs a cheap read against the categories collection.
// Any network or auth failure reports as unavailable; it never returns an
// error.
func (c *Client) ProbeAvailability(ctx context.Context) bool {
	if !c.session.Valid() {
		return false
	}

	req, err := c.newRequest(ctx, http.MethodGet,
		c.collectionURL(model.CollectionCategories, url.Values{
			"select": {"id"},
			"limit":  {"1"},
		}), nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// FetchAll retrieves the remote snapshot of a collection. The read is
// retried per the configured policy; a fetch that keeps failing falls back
// to the local cache at the call site, so exhausting the policy is not
// fatal.
func (c *Client) FetchAll(ctx context.Context, collection model.Collection) ([]model.Document, error) {
	if !c.session.Valid() {
		return nil, common.ErrAuthRequired
	}

	var docs []model.Document
	err := common.WithRetry(ctx, func() error {
		var fetchErr error
		docs, fetchErr = c.fetchSnapshot(ctx, collection)
		return fetchErr
	}, c.config.Retry)
	return docs, err
}

func (c *Client) fetchSnapshot(ctx context.Context, collection model.Collection) ([]model.Document, error) {
	req, err := c.newRequest(ctx, http.MethodGet,
		c.collectionURL(collection, url.Values{"select": {"*"}}), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrRemoteUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s failed: %d - %s", collection, resp.StatusCode, string(body))
	}

	return decodeRows(collection, body)
}

// Apply performs one remote write. Outcomes are reported through OpResult so
// a failure never crosses the boundary as an error.
func (c *Client) Apply(ctx context.Context, m model.Mutation) service.OpResult {
	result := service.OpResult{Mutation: m}

	if !c.session.Valid() {
		result.Err = common.ErrAuthRequired
		return result
	}

	switch m.Type {
	case model.MutationCreate:
		newID, err := c.applyCreate(ctx, m)
		result.NewID = newID
		result.Err = err
	case model.MutationUpdate:
		result.Err = c.applyUpdate(ctx, m)
	case model.MutationDelete:
		result.Err = c.applyDelete(ctx, m)
	default:
		result.Err = fmt.Errorf("unknown mutation type %q", m.Type)
	}

	if result.Err != nil {
		c.logger.Debug("remote operation failed",
			"mutation", m.ID,
			"type", m.Type,
			"collection", m.Collection,
			"error", result.Err)
	}
	return result
}

// ApplyBatch partitions mutations into batches, executes each batch's
// operations concurrently, and joins the whole batch before starting the
// next. A fixed delay separates batches. Two mutations targeting the same
// entity are never placed in the same batch, which preserves their relative
// order.
func (c *Client) ApplyBatch(ctx context.Context, muts []model.Mutation, batchSize int) service.BatchResult {
	if batchSize <= 0 {
		batchSize = c.config.BatchSize
	}

	var result service.BatchResult
	batches := planBatches(muts, batchSize)

	for i, batch := range batches {
		if i > 0 && c.config.InterBatchDelay > 0 {
			select {
			case <-ctx.Done():
				for _, m := range batch {
					result.Failed = append(result.Failed, service.OpResult{Mutation: m, Err: ctx.Err()})
				}
				continue
			case <-time.After(c.config.InterBatchDelay):
			}
		}

		results := make([]service.OpResult, len(batch))
		var wg sync.WaitGroup
		for j, m := range batch {
			wg.Add(1)
			go func(j int, m model.Mutation) {
				defer wg.Done()
				results[j] = c.Apply(ctx, m)
			}(j, m)
		}
		wg.Wait()

		for _, r := range results {
			if r.Err != nil {
				result.Failed = append(result.Failed, r)
			} else {
				result.Successful = append(result.Successful, r)
			}
		}
	}

	return result
}

// planBatches fills batches in queue order, deferring any mutation whose
// (collection, entity) key already appears in the current batch so that
// same-entity operations execute in separate, sequential batches.
func planBatches(muts []model.Mutation, batchSize int) [][]model.Mutation {
	var batches [][]model.Mutation
	remaining := muts

	for len(remaining) > 0 {
		batch := make([]model.Mutation, 0, batchSize)
		inBatch := make(map[string]bool, batchSize)
		var deferred []model.Mutation

		for _, m := range remaining {
			key := string(m.Collection) + "/" + m.EntityID
			if len(batch) >= batchSize || inBatch[key] {
				deferred = append(deferred, m)
				continue
			}
			batch = append(batch, m)
			inBatch[key] = true
		}

		batches = append(batches, batch)
		remaining = deferred
	}

	return batches
}

func (c *Client) applyCreate(ctx context.Context, m model.Mutation) (string, error) {
	row, err := encodeMutationRow(m.Collection, m.Data)
	if err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.collectionURL(m.Collection, nil), row)
	if err != nil {
		return "", err
	}
	// Ask the backend to echo the inserted row so we get the assigned id.
	req.Header.Set("Prefer", "return=representation")

	body, err := c.do(req)
	if err != nil {
		return "", err
	}

	var rows []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &rows); err != nil || len(rows) == 0 || rows[0].ID == "" {
		return "", fmt.Errorf("insert into %s returned no id", m.Collection)
	}
	return rows[0].ID, nil
}

func (c *Client) applyUpdate(ctx context.Context, m model.Mutation) error {
	row, err := encodeMutationRow(m.Collection, m.Data)
	if err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodPatch,
		c.collectionURL(m.Collection, c.ownerScope(m.EntityID)), row)
	if err != nil {
		return err
	}

	_, err = c.do(req)
	return err
}

func (c *Client) applyDelete(ctx context.Context, m model.Mutation) error {
	req, err := c.newRequest(ctx, http.MethodDelete,
		c.collectionURL(m.Collection, c.ownerScope(m.EntityID)), nil)
	if err != nil {
		return err
	}

	_, err = c.do(req)
	return err
}

// ownerScope filters a write to the target row and the authenticated owner.
// Row-level security enforces ownership server-side; the filter is client
// defense against cross-tenant writes.
func (c *Client) ownerScope(id string) url.Values {
	v := url.Values{"id": {"eq." + id}}
	if uid := c.session.UserID(); uid != "" {
		v.Set("user_id", "eq."+uid)
	}
	return v
}

func (c *Client) collectionURL(collection model.Collection, query url.Values) string {
	u := c.config.BaseURL + "/rest/v1/" + string(collection)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) newRequest(ctx context.Context, method, u string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	token, err := c.session.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrAuthRequired, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if c.config.APIKey != "" {
		req.Header.Set("apikey", c.config.APIKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrRemoteUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("remote returned %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
