package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const dbFile = ".cardbox/cards.db"

// DB wraps the local store connection. It owns the entity tables (nodes,
// fields, field_history) and the two sync control tables (sync_queue,
// sync_meta); everything else in the process goes through its methods.
type DB struct {
	conn    *sql.DB
	baseDir string
}

// Open opens an existing database and runs any pending migrations.
func Open(baseDir string) (*DB, error) {
	dbPath := filepath.Join(baseDir, dbFile)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: run 'cardbox init' first")
	}

	return open(baseDir, dbPath)
}

// Initialize creates the database directory and schema.
func Initialize(baseDir string) (*DB, error) {
	dbPath := filepath.Join(baseDir, dbFile)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	return open(baseDir, dbPath)
}

func open(baseDir, dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL allows concurrent reads while writes are serialized
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Busy timeout as fallback protection, matches the write-lock timeout
	if _, err := conn.Exec("PRAGMA busy_timeout=500"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	conn.Exec("PRAGMA synchronous=NORMAL")

	db := &DB{conn: conn, baseDir: baseDir}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

// NewForConn wraps an already-open connection. Used by tests with the
// in-memory driver; skips the file lock (baseDir empty means in-process only).
func NewForConn(conn *sql.DB) (*DB, error) {
	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying *sql.DB for callers that need raw transactions.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// withWriteLock executes fn while holding the exclusive cross-process write
// lock. In-memory databases (no baseDir) skip the file lock.
func (db *DB) withWriteLock(fn func() error) error {
	if db.baseDir == "" {
		return fn()
	}
	locker := newWriteLocker(db.baseDir)
	if err := locker.acquire(defaultTimeout); err != nil {
		return err
	}
	defer locker.release()
	return fn()
}

// withTx runs fn inside a transaction under the write lock, committing on
// nil and rolling back otherwise. All entity+queue+history triads go
// through here so the queue can never diverge from the data it describes.
func (db *DB) withTx(fn func(tx *sql.Tx) error) error {
	return db.withWriteLock(func() error {
		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		if err := fn(tx); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		return nil
	})
}

// nowMS returns the current wall clock as epoch milliseconds, the timestamp
// unit used everywhere in storage and on the wire.
func nowMS() int64 {
	return time.Now().UnixMilli()
}
