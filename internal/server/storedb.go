package server

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/marcus/cardbox/internal/models"
)

const storeSchema = `
CREATE TABLE IF NOT EXISTS nodes (
    id TEXT PRIMARY KEY,
    parent_id TEXT NOT NULL DEFAULT '',
    name TEXT NOT NULL,
    subtitle TEXT NOT NULL DEFAULT '',
    updated_by TEXT NOT NULL DEFAULT '',
    updated_at INTEGER NOT NULL,
    deleted_at INTEGER
);

CREATE TABLE IF NOT EXISTS fields (
    id TEXT PRIMARY KEY,
    parent_node_id TEXT NOT NULL,
    name TEXT NOT NULL,
    value TEXT,
    card_order INTEGER NOT NULL DEFAULT 0,
    updated_by TEXT NOT NULL DEFAULT '',
    updated_at INTEGER NOT NULL,
    deleted_at INTEGER
);

CREATE TABLE IF NOT EXISTS field_history (
    id TEXT PRIMARY KEY,
    data_field_id TEXT NOT NULL,
    parent_node_id TEXT NOT NULL,
    action TEXT NOT NULL,
    prev_value TEXT,
    new_value TEXT,
    updated_by TEXT NOT NULL DEFAULT '',
    updated_at INTEGER NOT NULL,
    rev INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_nodes_updated ON nodes(updated_at);
CREATE INDEX IF NOT EXISTS idx_fields_updated ON fields(updated_at);
CREATE INDEX IF NOT EXISTS idx_fields_parent ON fields(parent_node_id);
CREATE INDEX IF NOT EXISTS idx_history_field ON field_history(data_field_id);
`

// StoreDB is the authoritative server-side store. All writes pass through
// it and receive server-assigned timestamps when the client asks for them.
type StoreDB struct {
	conn *sql.DB
}

// OpenStore opens (and if needed creates) the server database at dbPath.
func OpenStore(dbPath string) (*StoreDB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	conn.Exec("PRAGMA synchronous=NORMAL")

	if _, err := conn.Exec(storeSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &StoreDB{conn: conn}, nil
}

// NewStoreForConn wraps an existing connection. Used by tests.
func NewStoreForConn(conn *sql.DB) (*StoreDB, error) {
	if _, err := conn.Exec(storeSchema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &StoreDB{conn: conn}, nil
}

// Close closes the underlying connection.
func (s *StoreDB) Close() error {
	return s.conn.Close()
}

func serverNow() int64 {
	return time.Now().UnixMilli()
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// UpsertNode inserts or replaces a node. When serverTime is true the
// stored updated_at is stamped with the server clock.
func (s *StoreDB) UpsertNode(n models.Node, serverTime bool) (models.Node, error) {
	if serverTime {
		n.UpdatedAt = serverNow()
	}
	_, err := s.conn.Exec(`
		INSERT OR REPLACE INTO nodes (id, parent_id, name, subtitle, updated_by, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.ParentID, n.Name, n.Subtitle, n.UpdatedBy, n.UpdatedAt, n.DeletedAt)
	if err != nil {
		return models.Node{}, fmt.Errorf("upsert node: %w", err)
	}
	return n, nil
}

// SoftDeleteNode marks a node deleted. When serverTime is true both
// deleted_at and updated_at are stamped with the server clock. Deleting
// an unknown node stores a tombstone so late-arriving replicas converge.
func (s *StoreDB) SoftDeleteNode(n models.Node, serverTime bool) (models.Node, error) {
	if serverTime {
		now := serverNow()
		n.UpdatedAt = now
		n.DeletedAt = &now
	} else if n.DeletedAt == nil {
		n.DeletedAt = &n.UpdatedAt
	}
	return s.UpsertNode(n, false)
}

// UpsertField inserts or replaces a field.
func (s *StoreDB) UpsertField(f models.Field, serverTime bool) (models.Field, error) {
	if serverTime {
		f.UpdatedAt = serverNow()
	}
	_, err := s.conn.Exec(`
		INSERT OR REPLACE INTO fields (id, parent_node_id, name, value, card_order, updated_by, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.ParentNodeID, f.Name, nullable(f.Value), f.CardOrder, f.UpdatedBy, f.UpdatedAt, f.DeletedAt)
	if err != nil {
		return models.Field{}, fmt.Errorf("upsert field: %w", err)
	}
	return f, nil
}

// SoftDeleteField marks a field deleted, mirroring SoftDeleteNode.
func (s *StoreDB) SoftDeleteField(f models.Field, serverTime bool) (models.Field, error) {
	if serverTime {
		now := serverNow()
		f.UpdatedAt = now
		f.DeletedAt = &now
	} else if f.DeletedAt == nil {
		f.DeletedAt = &f.UpdatedAt
	}
	return s.UpsertField(f, false)
}

// InsertHistory stores a history entry. Entries are immutable once
// written; re-pushing the same id is a no-op rather than an error.
func (s *StoreDB) InsertHistory(h models.HistoryEntry, serverTime bool) (models.HistoryEntry, error) {
	if serverTime {
		h.UpdatedAt = serverNow()
	}
	_, err := s.conn.Exec(`
		INSERT OR IGNORE INTO field_history (id, data_field_id, parent_node_id, action, prev_value, new_value, updated_by, updated_at, rev)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.DataFieldID, h.ParentNodeID, h.Action, nullable(h.PrevValue), nullable(h.NewValue), h.UpdatedBy, h.UpdatedAt, h.Rev)
	if err != nil {
		return models.HistoryEntry{}, fmt.Errorf("insert history: %w", err)
	}
	return h, nil
}

func scanStoreNode(rows *sql.Rows) (models.Node, error) {
	var n models.Node
	err := rows.Scan(&n.ID, &n.ParentID, &n.Name, &n.Subtitle, &n.UpdatedBy, &n.UpdatedAt, &n.DeletedAt)
	return n, err
}

func scanStoreField(rows *sql.Rows) (models.Field, error) {
	var f models.Field
	err := rows.Scan(&f.ID, &f.ParentNodeID, &f.Name, &f.Value, &f.CardOrder, &f.UpdatedBy, &f.UpdatedAt, &f.DeletedAt)
	return f, err
}

func scanStoreHistory(rows *sql.Rows) (models.HistoryEntry, error) {
	var h models.HistoryEntry
	err := rows.Scan(&h.ID, &h.DataFieldID, &h.ParentNodeID, &h.Action, &h.PrevValue, &h.NewValue, &h.UpdatedBy, &h.UpdatedAt, &h.Rev)
	return h, err
}

// ListNodes returns up to limit nodes ordered by id, starting after
// afterID. Deleted nodes are included so replicas see tombstones.
func (s *StoreDB) ListNodes(afterID string, limit int) ([]models.Node, error) {
	rows, err := s.conn.Query(`
		SELECT id, parent_id, name, subtitle, updated_by, updated_at, deleted_at
		FROM nodes WHERE id > ? ORDER BY id ASC LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	var out []models.Node
	for rows.Next() {
		n, err := scanStoreNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// ListFields returns up to limit fields ordered by id, starting after afterID.
func (s *StoreDB) ListFields(afterID string, limit int) ([]models.Field, error) {
	rows, err := s.conn.Query(`
		SELECT id, parent_node_id, name, value, card_order, updated_by, updated_at, deleted_at
		FROM fields WHERE id > ? ORDER BY id ASC LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}
	defer rows.Close()

	var out []models.Field
	for rows.Next() {
		f, err := scanStoreField(rows)
		if err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ListHistory returns up to limit history entries ordered by id, starting
// after afterID.
func (s *StoreDB) ListHistory(afterID string, limit int) ([]models.HistoryEntry, error) {
	rows, err := s.conn.Query(`
		SELECT id, data_field_id, parent_node_id, action, prev_value, new_value, updated_by, updated_at, rev
		FROM field_history WHERE id > ? ORDER BY id ASC LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []models.HistoryEntry
	for rows.Next() {
		h, err := scanStoreHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// NodesChangedSince returns nodes with updated_at strictly greater than since.
func (s *StoreDB) NodesChangedSince(since int64) ([]models.Node, error) {
	rows, err := s.conn.Query(`
		SELECT id, parent_id, name, subtitle, updated_by, updated_at, deleted_at
		FROM nodes WHERE updated_at > ? ORDER BY updated_at ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("nodes changed since: %w", err)
	}
	defer rows.Close()

	var out []models.Node
	for rows.Next() {
		n, err := scanStoreNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// FieldsChangedSince returns fields with updated_at strictly greater than since.
func (s *StoreDB) FieldsChangedSince(since int64) ([]models.Field, error) {
	rows, err := s.conn.Query(`
		SELECT id, parent_node_id, name, value, card_order, updated_by, updated_at, deleted_at
		FROM fields WHERE updated_at > ? ORDER BY updated_at ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("fields changed since: %w", err)
	}
	defer rows.Close()

	var out []models.Field
	for rows.Next() {
		f, err := scanStoreField(rows)
		if err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// HardDeleteNode removes a node row entirely. Admin use only; normal
// replication never hard-deletes on the server.
func (s *StoreDB) HardDeleteNode(id string) error {
	_, err := s.conn.Exec(`DELETE FROM nodes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("hard delete node: %w", err)
	}
	return nil
}

// HardDeleteField removes a field row entirely.
func (s *StoreDB) HardDeleteField(id string) error {
	_, err := s.conn.Exec(`DELETE FROM fields WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("hard delete field: %w", err)
	}
	return nil
}

// StoreStatus summarizes row counts per collection.
type StoreStatus struct {
	Nodes        int `json:"nodes"`
	DeletedNodes int `json:"deleted_nodes"`
	Fields       int `json:"fields"`
	History      int `json:"history"`
}

// Status returns row counts for the admin status endpoint.
func (s *StoreDB) Status() (StoreStatus, error) {
	var st StoreStatus
	row := s.conn.QueryRow(`SELECT
		(SELECT COUNT(*) FROM nodes),
		(SELECT COUNT(*) FROM nodes WHERE deleted_at IS NOT NULL),
		(SELECT COUNT(*) FROM fields),
		(SELECT COUNT(*) FROM field_history)`)
	if err := row.Scan(&st.Nodes, &st.DeletedNodes, &st.Fields, &st.History); err != nil {
		return StoreStatus{}, fmt.Errorf("store status: %w", err)
	}
	return st, nil
}
