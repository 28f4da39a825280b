package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mkalas/centavo/internal/model"
	"github.com/mkalas/centavo/internal/service"
)

// changeRow is the wire shape of one change-feed entry.
type changeRow struct {
	EntityID   string    `json:"entity_id"`
	Collection string    `json:"collection"`
	Timestamp  time.Time `json:"timestamp"`
}

// subscription polls the backend change feed for one collection and emits
// entries on a channel until closed.
type subscription struct {
	cancel  context.CancelFunc
	changes chan service.Change
}

func (s *subscription) Changes() <-chan service.Change { return s.changes }

func (s *subscription) Close() { s.cancel() }

// Subscribe opens the change-notification feed for a collection. The
// returned handle must be closed on teardown; closing stops the poll loop
// and closes the Changes channel.
func (c *Client) Subscribe(ctx context.Context, collection model.Collection) (service.ChangeSubscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		changes: make(chan service.Change, 16),
		cancel:  cancel,
	}

	interval := c.config.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	go func() {
		defer close(sub.changes)
		since := time.Now().UTC()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-subCtx.Done():
				return
			case <-ticker.C:
			}

			rows, err := c.pollChanges(subCtx, collection, since)
			if err != nil {
				c.logger.Debug("change feed poll failed",
					"collection", collection,
					"error", err)
				continue
			}
			for _, row := range rows {
				if row.Timestamp.After(since) {
					since = row.Timestamp
				}
				select {
				case sub.changes <- service.Change{
					Collection: model.Collection(row.Collection),
					EntityID:   row.EntityID,
					Timestamp:  row.Timestamp,
				}:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return sub, nil
}

func (c *Client) pollChanges(ctx context.Context, collection model.Collection, since time.Time) ([]changeRow, error) {
	query := url.Values{
		"collection": {string(collection)},
		"since":      {since.Format(time.RFC3339Nano)},
	}
	req, err := c.newRequest(ctx, http.MethodGet,
		c.config.BaseURL+"/realtime/v1/changes?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errStatus(resp.StatusCode, body)
	}

	var rows []changeRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

type statusError struct {
	body   string
	status int
}

func (e *statusError) Error() string {
	return "remote returned " + http.StatusText(e.status) + ": " + e.body
}

func errStatus(status int, body []byte) error {
	return &statusError{status: status, body: string(body)}
}
