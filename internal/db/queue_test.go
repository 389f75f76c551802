package db

import (
	"testing"

	"github.com/marcus/cardbox/internal/models"
)

func seedQueue(t *testing.T, database *DB, names ...string) []string {
	t.Helper()
	var ids []string
	for _, name := range names {
		n := &models.Node{Name: name, UpdatedBy: "dev-1"}
		if err := database.CreateNode(n); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		ids = append(ids, n.ID)
	}
	return ids
}

func TestPendingItemsFIFO(t *testing.T) {
	database := testDB(t)
	ids := seedQueue(t, database, "a", "b", "c")

	items, err := database.PendingItems()
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("pending = %d, want 3", len(items))
	}
	for i, item := range items {
		if item.EntityID != ids[i] {
			t.Errorf("item %d entity = %s, want %s", i, item.EntityID, ids[i])
		}
		if item.Status != models.QueuePending {
			t.Errorf("item %d status = %s", i, item.Status)
		}
	}
}

func TestMarkSyncedRemovesItem(t *testing.T) {
	database := testDB(t)
	seedQueue(t, database, "a")

	items, _ := database.PendingItems()
	if err := database.MarkSynced(items[0].ID); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	count, _ := database.CountPending()
	if count != 0 {
		t.Errorf("pending after synced = %d, want 0", count)
	}
}

func TestMarkFailedKeepsItemWithError(t *testing.T) {
	database := testDB(t)
	seedQueue(t, database, "a")

	items, _ := database.PendingItems()
	if err := database.MarkFailed(items[0].ID, "connection refused"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := database.MarkFailed(items[0].ID, "timeout"); err != nil {
		t.Fatalf("second mark failed: %v", err)
	}

	items, _ = database.PendingItems()
	if len(items) != 1 {
		t.Fatalf("failed item dropped from pending set")
	}
	if items[0].RetryCount != 2 || items[0].LastError != "timeout" {
		t.Errorf("item = %+v, want retry 2 and last error kept", items[0])
	}
}

func TestSyncingItemsStayPending(t *testing.T) {
	// An item stuck in syncing (crash mid-push) must be retried by the
	// next drain rather than stranded.
	database := testDB(t)
	seedQueue(t, database, "a")

	items, _ := database.PendingItems()
	if err := database.MarkSyncing(items[0].ID); err != nil {
		t.Fatalf("mark syncing: %v", err)
	}

	items, _ = database.PendingItems()
	if len(items) != 1 || items[0].Status != models.QueueSyncing {
		t.Fatalf("pending = %+v, want the syncing item", items)
	}
}

func TestPendingEntityIDs(t *testing.T) {
	database := testDB(t)
	ids := seedQueue(t, database, "a", "b")

	pending, err := database.PendingEntityIDs()
	if err != nil {
		t.Fatalf("pending ids: %v", err)
	}
	for _, id := range ids {
		if !pending[id] {
			t.Errorf("id %s missing from pending set", id)
		}
	}

	items, _ := database.PendingItems()
	for _, item := range items {
		if err := database.MarkSynced(item.ID); err != nil {
			t.Fatalf("mark synced: %v", err)
		}
	}
	pending, _ = database.PendingEntityIDs()
	if len(pending) != 0 {
		t.Errorf("pending set after drain = %v, want empty", pending)
	}
}

func TestQueueTailNewestFirst(t *testing.T) {
	database := testDB(t)
	ids := seedQueue(t, database, "a", "b", "c")

	tail, err := database.QueueTail(2)
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(tail) != 2 {
		t.Fatalf("tail = %d items, want 2", len(tail))
	}
	if tail[0].EntityID != ids[2] || tail[1].EntityID != ids[1] {
		t.Errorf("tail order = %s, %s, want newest first", tail[0].EntityID, tail[1].EntityID)
	}
}

func TestLastSyncTimestampRoundTrip(t *testing.T) {
	database := testDB(t)

	ms, err := database.LastSyncTimestamp()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ms != 0 {
		t.Errorf("initial watermark = %d, want 0", ms)
	}

	if err := database.SetLastSyncTimestamp(12345); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := database.SetLastSyncTimestamp(67890); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	ms, _ = database.LastSyncTimestamp()
	if ms != 67890 {
		t.Errorf("watermark = %d, want 67890", ms)
	}
}
