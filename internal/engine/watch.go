package engine

import (
	"context"
	"time"

	"github.com/mkalas/centavo/internal/model"
)

// Watch reacts to connectivity transitions until ctx is cancelled: when the
// connection comes back while mutations are queued, a flush cycle starts
// after a debounce delay. It also follows the remote change feed and
// refreshes the cache when another session mutates the same data.
func (e *Engine) Watch(ctx context.Context) {
	sub := e.connectivity.Subscribe()
	defer sub.Close()

	changes := e.subscribeChanges(ctx)

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case online, ok := <-sub.Events():
			if !ok {
				return
			}
			if !online {
				continue
			}
			if e.Status().PendingOperations == 0 {
				continue
			}
			// Debounce so a flapping connection doesn't trigger a
			// cycle it can't finish.
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(e.debounce, func() {
				if err := e.SyncNow(ctx); err != nil {
					e.logger.Debug("connectivity-triggered sync failed", "error", err)
				}
			})

		case change, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			if _, err := e.FetchAll(ctx, change.Collection); err != nil {
				e.logger.Debug("change-triggered refresh failed",
					"collection", change.Collection,
					"error", err)
			}
		}
	}
}

// subscribeChanges fans every collection's change feed into one channel.
func (e *Engine) subscribeChanges(ctx context.Context) <-chan serviceChange {
	out := make(chan serviceChange)
	active := 0

	for _, c := range model.Collections {
		sub, err := e.remote.Subscribe(ctx, c)
		if err != nil {
			e.logger.Debug("change feed unavailable", "collection", c, "error", err)
			continue
		}
		active++
		go func() {
			defer sub.Close()
			for {
				select {
				case <-ctx.Done():
					return
				case ch, ok := <-sub.Changes():
					if !ok {
						return
					}
					select {
					case out <- serviceChange{Collection: ch.Collection}:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	if active == 0 {
		close(out)
	}
	return out
}

type serviceChange struct {
	Collection model.Collection
}
