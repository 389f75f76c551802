package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Sync runs one complete cycle: push the queue, then pull with the given
// mode. The watermark stored on success is the cycle START time, so a
// remote write that lands mid-cycle is picked up again by the next delta.
func (e *Engine) Sync(ctx context.Context, mode Mode) (*Result, error) {
	start := time.Now().UnixMilli()
	res := &Result{Mode: mode}

	push, err := e.Push(ctx)
	res.Push = push
	if err != nil {
		return res, fmt.Errorf("push: %w", err)
	}

	switch mode {
	case ModeFull:
		pull, err := e.pullFull(ctx)
		res.Pull = pull
		if err != nil {
			return res, fmt.Errorf("full pull: %w", err)
		}
	default:
		since, err := e.local.LastSyncTimestamp()
		if err != nil {
			return res, fmt.Errorf("load watermark: %w", err)
		}
		if since == 0 {
			// Never synced: a delta from zero would miss remote
			// hard-deletes, so the first cycle is always full.
			res.Mode = ModeFull
			pull, err := e.pullFull(ctx)
			res.Pull = pull
			if err != nil {
				return res, fmt.Errorf("initial full pull: %w", err)
			}
		} else {
			pull, err := e.pullDelta(ctx, since)
			res.Pull = pull
			if err != nil {
				return res, fmt.Errorf("delta pull: %w", err)
			}
		}
	}

	if err := e.local.SetLastSyncTimestamp(start); err != nil {
		return res, fmt.Errorf("store watermark: %w", err)
	}

	slog.Debug("sync cycle complete",
		"device", e.deviceID,
		"mode", res.Mode.String(),
		"pushed", res.Push.Pushed,
		"push_failed", res.Push.Failed,
		"nodes_applied", res.Pull.NodesApplied,
		"fields_applied", res.Pull.FieldsApplied,
		"history_applied", res.Pull.HistoryApplied,
		"purged", res.Pull.NodesPurged+res.Pull.FieldsPurged)

	return res, nil
}
