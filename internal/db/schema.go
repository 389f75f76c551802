package db

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

const schema = `
-- Nodes: hierarchical records, soft-deleted via deleted_at
CREATE TABLE IF NOT EXISTS nodes (
    id TEXT PRIMARY KEY,
    parent_id TEXT DEFAULT '',
    name TEXT NOT NULL,
    subtitle TEXT DEFAULT '',
    updated_by TEXT DEFAULT '',
    updated_at INTEGER NOT NULL,
    deleted_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent_id);
CREATE INDEX IF NOT EXISTS idx_nodes_deleted ON nodes(deleted_at);

-- Fields: ordered key/value cards attached to a node
CREATE TABLE IF NOT EXISTS fields (
    id TEXT PRIMARY KEY,
    parent_node_id TEXT NOT NULL,
    name TEXT NOT NULL,
    value TEXT,
    card_order INTEGER NOT NULL DEFAULT 0,
    updated_by TEXT DEFAULT '',
    updated_at INTEGER NOT NULL,
    deleted_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_fields_parent ON fields(parent_node_id);
CREATE INDEX IF NOT EXISTS idx_fields_deleted ON fields(deleted_at);
CREATE INDEX IF NOT EXISTS idx_fields_order ON fields(parent_node_id, card_order);

-- Field history: append-only, never updated or deleted locally.
-- id is "{field_id}:{rev}" so remote and local entries converge by key.
CREATE TABLE IF NOT EXISTS field_history (
    id TEXT PRIMARY KEY,
    data_field_id TEXT NOT NULL,
    parent_node_id TEXT NOT NULL,
    action TEXT NOT NULL,
    prev_value TEXT,
    new_value TEXT,
    updated_by TEXT DEFAULT '',
    updated_at INTEGER NOT NULL,
    rev INTEGER NOT NULL,
    UNIQUE(data_field_id, rev)
);
CREATE INDEX IF NOT EXISTS idx_history_field ON field_history(data_field_id, rev);

-- Sync queue: pending local mutations not yet confirmed remotely.
-- rowid gives FIFO enqueue order.
CREATE TABLE IF NOT EXISTS sync_queue (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    operation TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    payload TEXT NOT NULL,
    timestamp INTEGER NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    retry_count INTEGER NOT NULL DEFAULT 0,
    last_error TEXT DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_queue_status ON sync_queue(status);
CREATE INDEX IF NOT EXISTS idx_queue_entity ON sync_queue(entity_id);

-- Sync metadata: single-row key/value control table
CREATE TABLE IF NOT EXISTS sync_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);
`

// migrate creates the schema and records the version. Future versions add
// idempotent ALTERs below the base schema.
func (db *DB) migrate() error {
	if _, err := db.conn.Exec(schema); err != nil {
		return err
	}

	var v int
	err := db.conn.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&v)
	if err != nil {
		return err
	}
	if v < SchemaVersion {
		if _, err := db.conn.Exec(`INSERT OR REPLACE INTO schema_version (version) VALUES (?)`, SchemaVersion); err != nil {
			return err
		}
	}
	return nil
}
