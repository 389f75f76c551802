package db

import (
	"database/sql"
	"fmt"

	"github.com/marcus/cardbox/internal/apperr"
	"github.com/marcus/cardbox/internal/models"
)

const nodeCols = `id, parent_id, name, subtitle, updated_by, updated_at, deleted_at`

func scanNode(row interface{ Scan(...any) error }) (*models.Node, error) {
	var n models.Node
	var deletedAt sql.NullInt64
	err := row.Scan(&n.ID, &n.ParentID, &n.Name, &n.Subtitle, &n.UpdatedBy, &n.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		n.DeletedAt = &deletedAt.Int64
	}
	return &n, nil
}

func scanNodes(rows *sql.Rows) ([]models.Node, error) {
	var nodes []models.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, *n)
	}
	return nodes, rows.Err()
}

// CreateNode inserts a node and enqueues its create-node item in one
// transaction. Fills ID and UpdatedAt on the passed struct.
func (db *DB) CreateNode(n *models.Node) error {
	if n.Name == "" {
		return apperr.New(apperr.CodeValidation, "node name is required")
	}
	if n.ID == "" {
		id, err := generateNodeID()
		if err != nil {
			return apperr.Wrap(apperr.CodeInternal, "generate node id", err)
		}
		n.ID = id
	}
	n.UpdatedAt = nowMS()
	n.DeletedAt = nil

	return db.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO nodes (id, parent_id, name, subtitle, updated_by, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, n.ID, n.ParentID, n.Name, n.Subtitle, n.UpdatedBy, n.UpdatedAt)
		if err != nil {
			return apperr.Wrap(apperr.CodeInternal, "insert node", err)
		}
		return enqueueTx(tx, models.OpCreateNode, n.ID, n)
	})
}

// GetNode returns a node by id, excluding soft-deleted nodes.
func (db *DB) GetNode(id string) (*models.Node, error) {
	n, err := scanNode(db.conn.QueryRow(`
		SELECT `+nodeCols+` FROM nodes WHERE id = ? AND deleted_at IS NULL
	`, NormalizeNodeID(id)))
	if err == sql.ErrNoRows {
		return nil, apperr.Newf(apperr.CodeNotFound, "node %s", id)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "get node", err)
	}
	return n, nil
}

// GetNodeAny returns a node regardless of deletion state, or (nil, nil)
// when no row exists. Replication paths use this for existence checks.
func (db *DB) GetNodeAny(id string) (*models.Node, error) {
	n, err := scanNode(db.conn.QueryRow(`SELECT `+nodeCols+` FROM nodes WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "get node", err)
	}
	return n, nil
}

// ListRoots returns non-deleted nodes with no parent, newest first.
func (db *DB) ListRoots() ([]models.Node, error) {
	rows, err := db.conn.Query(`
		SELECT ` + nodeCols + ` FROM nodes
		WHERE parent_id = '' AND deleted_at IS NULL
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "list roots", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// ListChildren returns non-deleted children of a node. Children of a
// soft-deleted parent still exist; they are simply unreachable through
// normal listing of the parent.
func (db *DB) ListChildren(parentID string) ([]models.Node, error) {
	rows, err := db.conn.Query(`
		SELECT `+nodeCols+` FROM nodes
		WHERE parent_id = ? AND deleted_at IS NULL
		ORDER BY updated_at DESC
	`, NormalizeNodeID(parentID))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "list children", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// ListDeletedNodes returns soft-deleted nodes, most recently deleted first.
func (db *DB) ListDeletedNodes() ([]models.Node, error) {
	rows, err := db.conn.Query(`
		SELECT ` + nodeCols + ` FROM nodes
		WHERE deleted_at IS NOT NULL
		ORDER BY deleted_at DESC
	`)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "list deleted nodes", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// AllNodes returns every node row including soft-deleted ones. Full
// collection sync uses this for deletion detection by set difference.
func (db *DB) AllNodes() ([]models.Node, error) {
	rows, err := db.conn.Query(`SELECT ` + nodeCols + ` FROM nodes`)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "list all nodes", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// UpdateNode rewrites a node's values and enqueues an update-node item.
// Updating an absent or deleted node is reported, not ignored.
func (db *DB) UpdateNode(n *models.Node) error {
	n.ID = NormalizeNodeID(n.ID)
	n.UpdatedAt = nowMS()

	return db.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE nodes SET parent_id = ?, name = ?, subtitle = ?, updated_by = ?, updated_at = ?
			WHERE id = ? AND deleted_at IS NULL
		`, n.ParentID, n.Name, n.Subtitle, n.UpdatedBy, n.UpdatedAt, n.ID)
		if err != nil {
			return apperr.Wrap(apperr.CodeInternal, "update node", err)
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			return apperr.Newf(apperr.CodeNotFound, "node %s", n.ID)
		}
		return enqueueTx(tx, models.OpUpdateNode, n.ID, n)
	})
}

// SoftDeleteNode marks a node deleted and enqueues a delete-node item.
// Deleting an already-deleted node is a no-op. Children are not cascaded.
func (db *DB) SoftDeleteNode(id string, updatedBy string) error {
	id = NormalizeNodeID(id)

	return db.withTx(func(tx *sql.Tx) error {
		n, err := scanNode(tx.QueryRow(`SELECT `+nodeCols+` FROM nodes WHERE id = ?`, id))
		if err == sql.ErrNoRows {
			return apperr.Newf(apperr.CodeNotFound, "node %s", id)
		}
		if err != nil {
			return apperr.Wrap(apperr.CodeInternal, "load node", err)
		}
		if n.Deleted() {
			return nil // idempotent: first deleted_at wins
		}

		now := nowMS()
		n.DeletedAt = &now
		n.UpdatedAt = now
		n.UpdatedBy = updatedBy

		_, err = tx.Exec(`
			UPDATE nodes SET deleted_at = ?, updated_at = ?, updated_by = ? WHERE id = ?
		`, now, now, updatedBy, id)
		if err != nil {
			return apperr.Wrap(apperr.CodeInternal, "soft delete node", err)
		}
		return enqueueTx(tx, models.OpDeleteNode, id, n)
	})
}

// RestoreNode clears a node's deletion mark. Propagates as a value update;
// there is no separate restore operation on the wire.
func (db *DB) RestoreNode(id string, updatedBy string) error {
	id = NormalizeNodeID(id)

	return db.withTx(func(tx *sql.Tx) error {
		n, err := scanNode(tx.QueryRow(`SELECT `+nodeCols+` FROM nodes WHERE id = ?`, id))
		if err == sql.ErrNoRows {
			return apperr.Newf(apperr.CodeNotFound, "node %s", id)
		}
		if err != nil {
			return apperr.Wrap(apperr.CodeInternal, "load node", err)
		}

		now := nowMS()
		n.DeletedAt = nil
		n.UpdatedAt = now
		n.UpdatedBy = updatedBy

		_, err = tx.Exec(`
			UPDATE nodes SET deleted_at = NULL, updated_at = ?, updated_by = ? WHERE id = ?
		`, now, updatedBy, id)
		if err != nil {
			return apperr.Wrap(apperr.CodeInternal, "restore node", err)
		}
		return enqueueTx(tx, models.OpUpdateNode, id, n)
	})
}

// ApplyRemoteNode upserts a remote node verbatim. No queue item and no
// history entry: replication writes are not local intent.
func (db *DB) ApplyRemoteNode(n *models.Node) error {
	return db.withWriteLock(func() error {
		var deletedAt any
		if n.DeletedAt != nil {
			deletedAt = *n.DeletedAt
		}
		_, err := db.conn.Exec(`
			INSERT OR REPLACE INTO nodes (id, parent_id, name, subtitle, updated_by, updated_at, deleted_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, n.ID, n.ParentID, n.Name, n.Subtitle, n.UpdatedBy, n.UpdatedAt, deletedAt)
		return apperr.Wrap(apperr.CodeInternal, "apply remote node", err)
	})
}

// HardDeleteNode removes a node row outright. Only full collection sync
// calls this, to propagate remote-side hard removals.
func (db *DB) HardDeleteNode(id string) error {
	return db.withWriteLock(func() error {
		_, err := db.conn.Exec(`DELETE FROM nodes WHERE id = ?`, id)
		return apperr.Wrap(apperr.CodeInternal, "hard delete node", err)
	})
}
