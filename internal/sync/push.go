package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/marcus/cardbox/internal/models"
)

// Push drains the sync queue in FIFO order, one item per request so a
// failure is attributed to exactly one operation. A failed item is marked
// and left in the queue; the drain continues with the next item rather
// than aborting the batch.
func (e *Engine) Push(ctx context.Context) (PushResult, error) {
	var res PushResult

	items, err := e.local.PendingItems()
	if err != nil {
		return res, fmt.Errorf("load pending items: %w", err)
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if err := e.local.MarkSyncing(item.ID); err != nil {
			return res, fmt.Errorf("mark syncing %d: %w", item.ID, err)
		}

		if err := e.pushItem(ctx, item); err != nil {
			res.Failed++
			slog.Warn("push failed",
				"queue_id", item.ID,
				"operation", item.Operation,
				"entity_id", item.EntityID,
				"err", err)
			if merr := e.local.MarkFailed(item.ID, err.Error()); merr != nil {
				return res, fmt.Errorf("mark failed %d: %w", item.ID, merr)
			}
			continue
		}

		if err := e.local.MarkSynced(item.ID); err != nil {
			return res, fmt.Errorf("mark synced %d: %w", item.ID, err)
		}
		res.Pushed++
	}

	return res, nil
}

// pushItem applies a single queue item against the remote store.
func (e *Engine) pushItem(ctx context.Context, item models.SyncQueueItem) error {
	payload, err := models.DecodePayload(item.Operation, item.Payload)
	if err != nil {
		return err
	}

	switch item.Operation {
	case models.OpCreateNode, models.OpUpdateNode:
		return e.remote.UpsertNode(ctx, payload.Node)
	case models.OpDeleteNode:
		return e.remote.SoftDeleteNode(ctx, payload.Node)
	case models.OpCreateField, models.OpUpdateField:
		return e.remote.UpsertField(ctx, payload.Field)
	case models.OpDeleteField:
		return e.remote.SoftDeleteField(ctx, payload.Field)
	case models.OpCreateHistory:
		return e.remote.InsertHistory(ctx, payload.History)
	default:
		return fmt.Errorf("unknown operation %q", item.Operation)
	}
}
