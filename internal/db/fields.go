package db

import (
	"database/sql"
	"fmt"

	"github.com/marcus/cardbox/internal/apperr"
	"github.com/marcus/cardbox/internal/models"
)

const fieldCols = `id, parent_node_id, name, value, card_order, updated_by, updated_at, deleted_at`

func scanField(row interface{ Scan(...any) error }) (*models.Field, error) {
	var f models.Field
	var value sql.NullString
	var deletedAt sql.NullInt64
	err := row.Scan(&f.ID, &f.ParentNodeID, &f.Name, &value, &f.CardOrder, &f.UpdatedBy, &f.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	if value.Valid {
		f.Value = &value.String
	}
	if deletedAt.Valid {
		f.DeletedAt = &deletedAt.Int64
	}
	return &f, nil
}

func scanFields(rows *sql.Rows) ([]models.Field, error) {
	var fields []models.Field
	for rows.Next() {
		f, err := scanField(rows)
		if err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		fields = append(fields, *f)
	}
	return fields, rows.Err()
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// NextCardOrder returns max(card_order)+1 among the node's fields, deleted
// ones included so a restore never collides, or 0 when the node has none.
func (db *DB) NextCardOrder(parentNodeID string) (int, error) {
	var next int
	err := db.conn.QueryRow(`
		SELECT COALESCE(MAX(card_order) + 1, 0) FROM fields WHERE parent_node_id = ?
	`, NormalizeNodeID(parentNodeID)).Scan(&next)
	return next, apperr.Wrap(apperr.CodeInternal, "next card order", err)
}

func nextCardOrderTx(tx *sql.Tx, parentNodeID string) (int, error) {
	var next int
	err := tx.QueryRow(`
		SELECT COALESCE(MAX(card_order) + 1, 0) FROM fields WHERE parent_node_id = ?
	`, parentNodeID).Scan(&next)
	return next, err
}

// CreateField inserts a field, assigns the next card order, appends the
// rev-0 history entry, and enqueues both writes in one transaction.
func (db *DB) CreateField(f *models.Field) error {
	if f.Name == "" {
		return apperr.New(apperr.CodeValidation, "field name is required")
	}
	if f.ParentNodeID == "" {
		return apperr.New(apperr.CodeValidation, "field parent node is required")
	}
	f.ParentNodeID = NormalizeNodeID(f.ParentNodeID)
	if f.ID == "" {
		id, err := generateFieldID()
		if err != nil {
			return apperr.Wrap(apperr.CodeInternal, "generate field id", err)
		}
		f.ID = id
	}
	f.UpdatedAt = nowMS()
	f.DeletedAt = nil

	return db.withTx(func(tx *sql.Tx) error {
		order, err := nextCardOrderTx(tx, f.ParentNodeID)
		if err != nil {
			return apperr.Wrap(apperr.CodeInternal, "next card order", err)
		}
		f.CardOrder = order

		_, err = tx.Exec(`
			INSERT INTO fields (id, parent_node_id, name, value, card_order, updated_by, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, f.ID, f.ParentNodeID, f.Name, nullable(f.Value), f.CardOrder, f.UpdatedBy, f.UpdatedAt)
		if err != nil {
			return apperr.Wrap(apperr.CodeInternal, "insert field", err)
		}
		if err := enqueueTx(tx, models.OpCreateField, f.ID, f); err != nil {
			return err
		}
		return appendHistoryTx(tx, f, models.HistoryCreate, nil, f.Value)
	})
}

// GetField returns a field by id, excluding soft-deleted fields.
func (db *DB) GetField(id string) (*models.Field, error) {
	f, err := scanField(db.conn.QueryRow(`
		SELECT `+fieldCols+` FROM fields WHERE id = ? AND deleted_at IS NULL
	`, NormalizeFieldID(id)))
	if err == sql.ErrNoRows {
		return nil, apperr.Newf(apperr.CodeNotFound, "field %s", id)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "get field", err)
	}
	return f, nil
}

// GetFieldAny returns a field regardless of deletion state, or (nil, nil)
// when no row exists.
func (db *DB) GetFieldAny(id string) (*models.Field, error) {
	f, err := scanField(db.conn.QueryRow(`SELECT `+fieldCols+` FROM fields WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "get field", err)
	}
	return f, nil
}

// ListFields returns a node's non-deleted fields in card order.
func (db *DB) ListFields(parentNodeID string) ([]models.Field, error) {
	rows, err := db.conn.Query(`
		SELECT `+fieldCols+` FROM fields
		WHERE parent_node_id = ? AND deleted_at IS NULL
		ORDER BY card_order ASC
	`, NormalizeNodeID(parentNodeID))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "list fields", err)
	}
	defer rows.Close()
	return scanFields(rows)
}

// ListDeletedFields returns soft-deleted fields of a node.
func (db *DB) ListDeletedFields(parentNodeID string) ([]models.Field, error) {
	rows, err := db.conn.Query(`
		SELECT `+fieldCols+` FROM fields
		WHERE parent_node_id = ? AND deleted_at IS NOT NULL
		ORDER BY card_order ASC
	`, NormalizeNodeID(parentNodeID))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "list deleted fields", err)
	}
	defer rows.Close()
	return scanFields(rows)
}

// AllFields returns every field row including soft-deleted ones, for full
// collection sync deletion detection.
func (db *DB) AllFields() ([]models.Field, error) {
	rows, err := db.conn.Query(`SELECT ` + fieldCols + ` FROM fields`)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "list all fields", err)
	}
	defer rows.Close()
	return scanFields(rows)
}

// UpdateField rewrites a field's name/value, appends an update history
// entry, and enqueues update-field plus the history item in one transaction.
func (db *DB) UpdateField(f *models.Field) error {
	f.ID = NormalizeFieldID(f.ID)

	return db.withTx(func(tx *sql.Tx) error {
		prev, err := scanField(tx.QueryRow(`
			SELECT `+fieldCols+` FROM fields WHERE id = ? AND deleted_at IS NULL
		`, f.ID))
		if err == sql.ErrNoRows {
			return apperr.Newf(apperr.CodeNotFound, "field %s", f.ID)
		}
		if err != nil {
			return apperr.Wrap(apperr.CodeInternal, "load field", err)
		}

		f.ParentNodeID = prev.ParentNodeID
		f.CardOrder = prev.CardOrder
		f.UpdatedAt = nowMS()
		if f.Name == "" {
			f.Name = prev.Name
		}

		_, err = tx.Exec(`
			UPDATE fields SET name = ?, value = ?, updated_by = ?, updated_at = ? WHERE id = ?
		`, f.Name, nullable(f.Value), f.UpdatedBy, f.UpdatedAt, f.ID)
		if err != nil {
			return apperr.Wrap(apperr.CodeInternal, "update field", err)
		}
		if err := enqueueTx(tx, models.OpUpdateField, f.ID, f); err != nil {
			return err
		}
		return appendHistoryTx(tx, f, models.HistoryUpdate, prev.Value, f.Value)
	})
}

// SoftDeleteField marks a field deleted, appends a delete history entry,
// and enqueues both. Deleting an absent field succeeds as a no-op
// (idempotent delete); deleting an already-deleted field likewise.
func (db *DB) SoftDeleteField(id string, updatedBy string) error {
	id = NormalizeFieldID(id)

	return db.withTx(func(tx *sql.Tx) error {
		f, err := scanField(tx.QueryRow(`SELECT `+fieldCols+` FROM fields WHERE id = ?`, id))
		if err == sql.ErrNoRows {
			return nil // absent field: idempotent no-op
		}
		if err != nil {
			return apperr.Wrap(apperr.CodeInternal, "load field", err)
		}
		if f.Deleted() {
			return nil
		}

		prevValue := f.Value
		now := nowMS()
		f.DeletedAt = &now
		f.UpdatedAt = now
		f.UpdatedBy = updatedBy

		_, err = tx.Exec(`
			UPDATE fields SET deleted_at = ?, updated_at = ?, updated_by = ? WHERE id = ?
		`, now, now, updatedBy, id)
		if err != nil {
			return apperr.Wrap(apperr.CodeInternal, "soft delete field", err)
		}
		if err := enqueueTx(tx, models.OpDeleteField, id, f); err != nil {
			return err
		}
		return appendHistoryTx(tx, f, models.HistoryDelete, prevValue, nil)
	})
}

// RestoreField clears a field's deletion mark and propagates it as an
// update-field write. No history entry: restore is not a value edit.
func (db *DB) RestoreField(id string, updatedBy string) error {
	id = NormalizeFieldID(id)

	return db.withTx(func(tx *sql.Tx) error {
		f, err := scanField(tx.QueryRow(`SELECT `+fieldCols+` FROM fields WHERE id = ?`, id))
		if err == sql.ErrNoRows {
			return apperr.Newf(apperr.CodeNotFound, "field %s", id)
		}
		if err != nil {
			return apperr.Wrap(apperr.CodeInternal, "load field", err)
		}

		now := nowMS()
		f.DeletedAt = nil
		f.UpdatedAt = now
		f.UpdatedBy = updatedBy

		_, err = tx.Exec(`
			UPDATE fields SET deleted_at = NULL, updated_at = ?, updated_by = ? WHERE id = ?
		`, now, updatedBy, id)
		if err != nil {
			return apperr.Wrap(apperr.CodeInternal, "restore field", err)
		}
		return enqueueTx(tx, models.OpUpdateField, id, f)
	})
}

// ApplyRemoteField upserts a remote field verbatim, bypassing queue and
// history.
func (db *DB) ApplyRemoteField(f *models.Field) error {
	return db.withWriteLock(func() error {
		var deletedAt any
		if f.DeletedAt != nil {
			deletedAt = *f.DeletedAt
		}
		_, err := db.conn.Exec(`
			INSERT OR REPLACE INTO fields (id, parent_node_id, name, value, card_order, updated_by, updated_at, deleted_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, f.ID, f.ParentNodeID, f.Name, nullable(f.Value), f.CardOrder, f.UpdatedBy, f.UpdatedAt, deletedAt)
		return apperr.Wrap(apperr.CodeInternal, "apply remote field", err)
	})
}

// HardDeleteField removes a field row outright (full collection sync only).
func (db *DB) HardDeleteField(id string) error {
	return db.withWriteLock(func() error {
		_, err := db.conn.Exec(`DELETE FROM fields WHERE id = ?`, id)
		return apperr.Wrap(apperr.CodeInternal, "hard delete field", err)
	})
}
