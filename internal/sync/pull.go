package sync

import (
	"context"
	"fmt"

	"github.com/marcus/cardbox/internal/models"
)

// pullFull replicates the complete remote collections into the local
// store. It is the only pull that can observe remote hard-deletes: a
// local row whose id is absent from the remote listing, and which has no
// pending local write, is purged.
func (e *Engine) pullFull(ctx context.Context) (PullResult, error) {
	var res PullResult

	pending, err := e.local.PendingEntityIDs()
	if err != nil {
		return res, fmt.Errorf("load pending ids: %w", err)
	}

	remoteNodes, err := e.remote.ListNodes(ctx)
	if err != nil {
		return res, fmt.Errorf("list remote nodes: %w", err)
	}
	remoteNodeIDs := make(map[string]bool, len(remoteNodes))
	for i := range remoteNodes {
		n := &remoteNodes[i]
		remoteNodeIDs[n.ID] = true
		if pending[n.ID] {
			res.NodesSkipped++
			continue
		}
		if err := e.local.ApplyRemoteNode(n); err != nil {
			return res, fmt.Errorf("apply remote node %s: %w", n.ID, err)
		}
		res.NodesApplied++
	}

	remoteFields, err := e.remote.ListFields(ctx)
	if err != nil {
		return res, fmt.Errorf("list remote fields: %w", err)
	}
	remoteFieldIDs := make(map[string]bool, len(remoteFields))
	for i := range remoteFields {
		f := &remoteFields[i]
		remoteFieldIDs[f.ID] = true
		if pending[f.ID] {
			res.FieldsSkipped++
			continue
		}
		if err := e.local.ApplyRemoteField(f); err != nil {
			return res, fmt.Errorf("apply remote field %s: %w", f.ID, err)
		}
		res.FieldsApplied++
	}

	applied, err := e.pullHistory(ctx)
	if err != nil {
		return res, err
	}
	res.HistoryApplied = applied

	// Local rows missing from the remote were hard-deleted there.
	// Pending entities are kept; they have not been pushed yet.
	localNodes, err := e.local.AllNodes()
	if err != nil {
		return res, fmt.Errorf("list local nodes: %w", err)
	}
	for _, n := range localNodes {
		if remoteNodeIDs[n.ID] || pending[n.ID] {
			continue
		}
		if err := e.local.HardDeleteNode(n.ID); err != nil {
			return res, fmt.Errorf("purge node %s: %w", n.ID, err)
		}
		res.NodesPurged++
	}

	localFields, err := e.local.AllFields()
	if err != nil {
		return res, fmt.Errorf("list local fields: %w", err)
	}
	for _, f := range localFields {
		if remoteFieldIDs[f.ID] || pending[f.ID] {
			continue
		}
		if err := e.local.HardDeleteField(f.ID); err != nil {
			return res, fmt.Errorf("purge field %s: %w", f.ID, err)
		}
		res.FieldsPurged++
	}

	return res, nil
}

// pullDelta replicates only records changed since the watermark. It is
// blind to remote hard-deletes; soft deletes still arrive because a
// tombstone is an updated record.
func (e *Engine) pullDelta(ctx context.Context, sinceMS int64) (PullResult, error) {
	var res PullResult

	pending, err := e.local.PendingEntityIDs()
	if err != nil {
		return res, fmt.Errorf("load pending ids: %w", err)
	}

	nodes, err := e.remote.NodesChangedSince(ctx, sinceMS)
	if err != nil {
		return res, fmt.Errorf("remote node changes: %w", err)
	}
	for i := range nodes {
		n := &nodes[i]
		if pending[n.ID] {
			res.NodesSkipped++
			continue
		}
		if err := e.local.ApplyRemoteNode(n); err != nil {
			return res, fmt.Errorf("apply remote node %s: %w", n.ID, err)
		}
		res.NodesApplied++
	}

	fields, err := e.remote.FieldsChangedSince(ctx, sinceMS)
	if err != nil {
		return res, fmt.Errorf("remote field changes: %w", err)
	}
	for i := range fields {
		f := &fields[i]
		if pending[f.ID] {
			res.FieldsSkipped++
			continue
		}
		if err := e.local.ApplyRemoteField(f); err != nil {
			return res, fmt.Errorf("apply remote field %s: %w", f.ID, err)
		}
		res.FieldsApplied++
	}

	applied, err := e.pullHistory(ctx)
	if err != nil {
		return res, err
	}
	res.HistoryApplied = applied

	return res, nil
}

// pullHistory replicates remote history entries the local store does not
// have yet. Entries are immutable, so skipping known ids is safe and the
// pending-write check does not apply.
func (e *Engine) pullHistory(ctx context.Context) (int, error) {
	known, err := e.local.AllHistoryIDs()
	if err != nil {
		return 0, fmt.Errorf("load local history ids: %w", err)
	}

	entries, err := e.remote.ListHistory(ctx)
	if err != nil {
		return 0, fmt.Errorf("list remote history: %w", err)
	}

	applied := 0
	for i := range entries {
		h := &entries[i]
		if known[h.ID] {
			continue
		}
		if !models.IsValidHistoryAction(h.Action) {
			return applied, fmt.Errorf("history entry %s has invalid action %q", h.ID, h.Action)
		}
		if err := e.local.UpsertHistoryEntry(h); err != nil {
			return applied, fmt.Errorf("apply history %s: %w", h.ID, err)
		}
		applied++
	}
	return applied, nil
}
