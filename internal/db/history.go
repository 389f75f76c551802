package db

import (
	"database/sql"
	"fmt"

	"github.com/marcus/cardbox/internal/apperr"
	"github.com/marcus/cardbox/internal/models"
)

const historyCols = `id, data_field_id, parent_node_id, action, prev_value, new_value, updated_by, updated_at, rev`

func scanHistory(row interface{ Scan(...any) error }) (*models.HistoryEntry, error) {
	var h models.HistoryEntry
	var action string
	var prev, next sql.NullString
	err := row.Scan(&h.ID, &h.DataFieldID, &h.ParentNodeID, &action, &prev, &next, &h.UpdatedBy, &h.UpdatedAt, &h.Rev)
	if err != nil {
		return nil, err
	}
	h.Action = models.HistoryAction(action)
	if prev.Valid {
		h.PrevValue = &prev.String
	}
	if next.Valid {
		h.NewValue = &next.String
	}
	return &h, nil
}

// appendHistoryTx writes the next history revision for a field inside the
// caller's transaction, and enqueues the matching create-history item. The
// max-rev lookup and the insert share the transaction so two writers can
// never compute the same rev.
func appendHistoryTx(tx *sql.Tx, f *models.Field, action models.HistoryAction, prevValue, newValue *string) error {
	var rev int
	err := tx.QueryRow(`
		SELECT COALESCE(MAX(rev) + 1, 0) FROM field_history WHERE data_field_id = ?
	`, f.ID).Scan(&rev)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, "next history rev", err)
	}

	h := models.HistoryEntry{
		ID:           models.HistoryID(f.ID, rev),
		DataFieldID:  f.ID,
		ParentNodeID: f.ParentNodeID,
		Action:       action,
		PrevValue:    prevValue,
		NewValue:     newValue,
		UpdatedBy:    f.UpdatedBy,
		UpdatedAt:    f.UpdatedAt,
		Rev:          rev,
	}

	_, err = tx.Exec(`
		INSERT INTO field_history (id, data_field_id, parent_node_id, action, prev_value, new_value, updated_by, updated_at, rev)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, h.ID, h.DataFieldID, h.ParentNodeID, string(h.Action), nullable(h.PrevValue), nullable(h.NewValue), h.UpdatedBy, h.UpdatedAt, h.Rev)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, "insert history entry", err)
	}

	return enqueueTx(tx, models.OpCreateHistory, h.ID, &h)
}

// GetFieldHistory returns a field's history in rev order, oldest first.
func (db *DB) GetFieldHistory(fieldID string) ([]models.HistoryEntry, error) {
	rows, err := db.conn.Query(`
		SELECT `+historyCols+` FROM field_history
		WHERE data_field_id = ?
		ORDER BY rev ASC
	`, NormalizeFieldID(fieldID))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "query field history", err)
	}
	defer rows.Close()

	var entries []models.HistoryEntry
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, *h)
	}
	return entries, rows.Err()
}

// AllHistoryIDs returns every history entry id. Full collection sync uses
// this only for result accounting; history is never deleted locally.
func (db *DB) AllHistoryIDs() (map[string]bool, error) {
	rows, err := db.conn.Query(`SELECT id FROM field_history`)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "list history ids", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan history id: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// UpsertHistoryEntry applies a remote history entry keyed by its
// deterministic id. Applying the same entry twice is a no-op, so local-only
// and remote-only history coexist.
func (db *DB) UpsertHistoryEntry(h *models.HistoryEntry) error {
	return db.withWriteLock(func() error {
		_, err := db.conn.Exec(`
			INSERT OR REPLACE INTO field_history (id, data_field_id, parent_node_id, action, prev_value, new_value, updated_by, updated_at, rev)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, h.ID, h.DataFieldID, h.ParentNodeID, string(h.Action), nullable(h.PrevValue), nullable(h.NewValue), h.UpdatedBy, h.UpdatedAt, h.Rev)
		return apperr.Wrap(apperr.CodeInternal, "upsert history entry", err)
	})
}
