package db

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/marcus/cardbox/internal/apperr"
	"github.com/marcus/cardbox/internal/models"
)

// enqueueTx appends a sync queue item inside the caller's transaction.
// Every local write that must reach the server calls this in the same
// transaction as the entity write itself.
func enqueueTx(tx *sql.Tx, op models.Operation, entityID string, payload any) error {
	entityType, err := models.EntityTypeFor(op)
	if err != nil {
		return apperr.Wrap(apperr.CodeValidation, "enqueue", err)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, "marshal queue payload", err)
	}

	_, err = tx.Exec(`
		INSERT INTO sync_queue (operation, entity_type, entity_id, payload, timestamp, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(op), string(entityType), entityID, string(data), nowMS(), string(models.QueuePending))
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, "insert queue item", err)
	}
	return nil
}

func scanQueueItems(rows *sql.Rows) ([]models.SyncQueueItem, error) {
	var items []models.SyncQueueItem
	for rows.Next() {
		var it models.SyncQueueItem
		var op, et, status, payload string
		if err := rows.Scan(&it.ID, &op, &et, &it.EntityID, &payload, &it.Timestamp, &status, &it.RetryCount, &it.LastError); err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		it.Operation = models.Operation(op)
		it.EntityType = models.EntityType(et)
		it.Status = models.QueueStatus(status)
		it.Payload = json.RawMessage(payload)
		items = append(items, it)
	}
	return items, rows.Err()
}

// PendingItems returns unconfirmed queue items in enqueue (FIFO) order.
// Failed items are included: a failed item is still local intent and is
// retried simply because the next cycle re-reads it.
func (db *DB) PendingItems() ([]models.SyncQueueItem, error) {
	rows, err := db.conn.Query(`
		SELECT id, operation, entity_type, entity_id, payload, timestamp, status, retry_count, last_error
		FROM sync_queue
		WHERE status IN ('pending', 'failed', 'syncing')
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "query pending items", err)
	}
	defer rows.Close()
	return scanQueueItems(rows)
}

// PendingEntityIDs returns the set of entity ids referenced by any
// unconfirmed queue item. The resolver treats membership here as the sole
// signal of local intent.
func (db *DB) PendingEntityIDs() (map[string]bool, error) {
	rows, err := db.conn.Query(`
		SELECT DISTINCT entity_id FROM sync_queue
		WHERE status IN ('pending', 'failed', 'syncing')
	`)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "query pending entity ids", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan entity id: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// MarkSyncing flags an item as in flight.
func (db *DB) MarkSyncing(id int64) error {
	return db.withWriteLock(func() error {
		_, err := db.conn.Exec(`UPDATE sync_queue SET status = 'syncing' WHERE id = ?`, id)
		return apperr.Wrap(apperr.CodeInternal, "mark syncing", err)
	})
}

// MarkSynced removes a confirmed item; synced items are not retained.
func (db *DB) MarkSynced(id int64) error {
	return db.withWriteLock(func() error {
		_, err := db.conn.Exec(`DELETE FROM sync_queue WHERE id = ?`, id)
		return apperr.Wrap(apperr.CodeInternal, "mark synced", err)
	})
}

// MarkFailed records a per-item failure and leaves the item in place so a
// later cycle retries it.
func (db *DB) MarkFailed(id int64, errMsg string) error {
	return db.withWriteLock(func() error {
		_, err := db.conn.Exec(`
			UPDATE sync_queue
			SET status = 'failed', retry_count = retry_count + 1, last_error = ?
			WHERE id = ?
		`, errMsg, id)
		return apperr.Wrap(apperr.CodeInternal, "mark failed", err)
	})
}

// CountPending returns the number of unconfirmed queue items.
func (db *DB) CountPending() (int64, error) {
	var n int64
	err := db.conn.QueryRow(`
		SELECT COUNT(*) FROM sync_queue WHERE status IN ('pending', 'failed', 'syncing')
	`).Scan(&n)
	return n, apperr.Wrap(apperr.CodeInternal, "count pending", err)
}

// QueueTail returns the newest limit queue items, newest first.
// Used by the monitor view.
func (db *DB) QueueTail(limit int) ([]models.SyncQueueItem, error) {
	rows, err := db.conn.Query(`
		SELECT id, operation, entity_type, entity_id, payload, timestamp, status, retry_count, last_error
		FROM sync_queue
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "query queue tail", err)
	}
	defer rows.Close()
	return scanQueueItems(rows)
}
