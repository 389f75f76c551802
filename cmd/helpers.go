package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/marcus/cardbox/internal/db"
	"github.com/marcus/cardbox/internal/remote"
	cbsync "github.com/marcus/cardbox/internal/sync"
	"github.com/marcus/cardbox/internal/syncconfig"
)

// deviceName identifies this machine in updated_by fields.
func deviceName() string {
	id, err := syncconfig.GetDeviceID()
	if err != nil || id == "" {
		return "local"
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// buildEngine wires the local database to the configured sync server.
func buildEngine(database *db.DB) (*cbsync.Engine, error) {
	deviceID, err := syncconfig.GetDeviceID()
	if err != nil {
		return nil, err
	}
	client := remote.New(syncconfig.GetServerURL(), syncconfig.GetAPIKey(), deviceID)
	return cbsync.NewEngine(database, client, deviceID), nil
}

// autoSyncAfterMutation runs a quick delta cycle after a mutating command
// completes. Runs synchronously with a short timeout. Errors are logged,
// not returned: the queue keeps the write safe for the next attempt.
func autoSyncAfterMutation() {
	if !syncconfig.GetAutoSyncEnabled() {
		return
	}
	if !syncconfig.IsLinked() {
		return
	}

	dir := getBaseDir()
	if dir == "" {
		return
	}

	database, err := db.Open(dir)
	if err != nil {
		slog.Debug("autosync: open db", "err", err)
		return
	}
	defer database.Close()

	engine, err := buildEngine(database)
	if err != nil {
		slog.Debug("autosync: build engine", "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := engine.Sync(ctx, cbsync.ModeDelta); err != nil {
		slog.Debug("autosync: cycle", "err", err)
	}
}
