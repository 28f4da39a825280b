package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/mkalas/centavo/internal/common"
	"github.com/mkalas/centavo/internal/model"
)

// reconcile replaces every local reference to a temporary id with the
// server-assigned permanent id: the cached entity is re-keyed, and pending
// queue entries targeting or referencing the temporary id are rewritten so
// held-back mutations become eligible for the next cycle.
//
// Idempotent: if the temporary id is no longer cached the entity swap is a
// no-op, and a second pass over the queue finds nothing left to rewrite.
func (e *Engine) reconcile(ctx context.Context, c model.Collection, tempID, permID string) error {
	doc, err := e.store.GetOne(ctx, c, tempID)
	switch {
	case errors.Is(err, common.ErrNotFound):
		// Already reconciled or never cached.
	case err != nil:
		return fmt.Errorf("failed to load %s/%s: %w", c, tempID, err)
	default:
		rekeyed, rerr := model.RewriteID(*doc, permID)
		if rerr != nil {
			return rerr
		}
		// Two steps; a crash between them leaves a duplicate that the
		// next merge removes, since merge de-duplicates by id.
		if err := e.store.SaveOne(ctx, c, rekeyed); err != nil {
			return fmt.Errorf("failed to save %s/%s: %w", c, permID, err)
		}
		if err := e.store.DeleteOne(ctx, c, tempID); err != nil {
			return fmt.Errorf("failed to remove %s/%s: %w", c, tempID, err)
		}
	}

	return e.rewriteQueueReferences(ctx, tempID, permID)
}

// rewriteQueueReferences retargets pending mutations from tempID to permID,
// both as the mutation's target entity and inside payload fields that
// reference it (e.g. a queued transaction pointing at an unreconciled
// category).
func (e *Engine) rewriteQueueReferences(ctx context.Context, tempID, permID string) error {
	pending, err := e.store.DequeuePending(ctx)
	if err != nil {
		return fmt.Errorf("failed to read pending queue: %w", err)
	}

	for _, m := range pending {
		changed := false
		if m.EntityID == tempID {
			m.EntityID = permID
			changed = true
		}
		if len(m.Data) > 0 {
			data, refChanged, err := model.RewriteReference(m.Data, tempID, permID)
			if err != nil {
				return fmt.Errorf("failed to rewrite payload of %s: %w", m.ID, err)
			}
			if refChanged {
				m.Data = data
				changed = true
			}
		}
		if !changed {
			continue
		}
		if err := e.store.UpdateMutation(ctx, m); err != nil {
			return fmt.Errorf("failed to update mutation %s: %w", m.ID, err)
		}
	}
	return nil
}
