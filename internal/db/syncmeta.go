package db

import (
	"database/sql"
	"strconv"

	"github.com/marcus/cardbox/internal/apperr"
)

const metaLastSync = "last_sync_timestamp"

// LastSyncTimestamp returns the delta-sync watermark in epoch ms, or 0 when
// no sync has completed yet.
func (db *DB) LastSyncTimestamp() (int64, error) {
	var raw string
	err := db.conn.QueryRow(`SELECT value FROM sync_meta WHERE key = ?`, metaLastSync).Scan(&raw)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, apperr.Wrap(apperr.CodeInternal, "read sync watermark", err)
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperr.Wrap(apperr.CodeInternal, "parse sync watermark", err)
	}
	return ms, nil
}

// SetLastSyncTimestamp advances the watermark. Callers pass the cycle's
// start time, not its completion time, so entities updated mid-cycle are
// re-read next time instead of missed.
func (db *DB) SetLastSyncTimestamp(ms int64) error {
	return db.withWriteLock(func() error {
		_, err := db.conn.Exec(`
			INSERT OR REPLACE INTO sync_meta (key, value) VALUES (?, ?)
		`, metaLastSync, strconv.FormatInt(ms, 10))
		return apperr.Wrap(apperr.CodeInternal, "set sync watermark", err)
	})
}
