// Package store declares the adapter contracts the sync engine works
// against. The local store owns the entity and control tables; the remote
// store is the network-backed authority. The engine never reaches past
// these interfaces into storage internals.
package store

import (
	"context"

	"github.com/marcus/cardbox/internal/models"
)

// Local is the embedded store side of the sync engine: the queue, the
// replication write paths, and the watermark. Implemented by *db.DB.
//
// The GetAny accessors return (nil, nil) for absent rows; the replication
// Apply/HardDelete writes bypass the queue and history deliberately.
type Local interface {
	// Sync queue
	PendingItems() ([]models.SyncQueueItem, error)
	PendingEntityIDs() (map[string]bool, error)
	MarkSyncing(id int64) error
	MarkSynced(id int64) error
	MarkFailed(id int64, errMsg string) error

	// Entity replication paths
	GetNodeAny(id string) (*models.Node, error)
	AllNodes() ([]models.Node, error)
	ApplyRemoteNode(n *models.Node) error
	HardDeleteNode(id string) error

	GetFieldAny(id string) (*models.Field, error)
	AllFields() ([]models.Field, error)
	ApplyRemoteField(f *models.Field) error
	HardDeleteField(id string) error

	AllHistoryIDs() (map[string]bool, error)
	UpsertHistoryEntry(h *models.HistoryEntry) error

	// Watermark
	LastSyncTimestamp() (int64, error)
	SetLastSyncTimestamp(ms int64) error
}

// Remote is the authoritative store. Writes taken from the sync queue ask
// the server to assign the timestamp rather than trusting the client clock.
// List reads page internally; callers see complete collections.
type Remote interface {
	UpsertNode(ctx context.Context, n *models.Node) error
	SoftDeleteNode(ctx context.Context, n *models.Node) error
	UpsertField(ctx context.Context, f *models.Field) error
	SoftDeleteField(ctx context.Context, f *models.Field) error
	InsertHistory(ctx context.Context, h *models.HistoryEntry) error

	ListNodes(ctx context.Context) ([]models.Node, error)
	ListFields(ctx context.Context) ([]models.Field, error)
	ListHistory(ctx context.Context) ([]models.HistoryEntry, error)

	NodesChangedSince(ctx context.Context, sinceMS int64) ([]models.Node, error)
	FieldsChangedSince(ctx context.Context, sinceMS int64) ([]models.Field, error)
}
