package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/cardbox/internal/db"
	"github.com/marcus/cardbox/internal/models"
	"github.com/marcus/cardbox/internal/output"
	"github.com/marcus/cardbox/internal/remote"
	cbsync "github.com/marcus/cardbox/internal/sync"
	"github.com/marcus/cardbox/internal/syncconfig"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	Short:   "Run a sync cycle now",
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !syncconfig.IsLinked() {
			output.Error("not linked to a sync server; run 'cardbox sync link <url>'")
			return fmt.Errorf("not linked")
		}

		database, err := db.Open(getBaseDir())
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer database.Close()

		engine, err := buildEngine(database)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		mode := cbsync.ModeDelta
		if full, _ := cmd.Flags().GetBool("full"); full {
			mode = cbsync.ModeFull
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		res, err := engine.Sync(ctx, mode)
		if err != nil {
			output.Error("sync failed: %v", err)
			return err
		}

		output.Success("Synced (%s)", res.Mode)
		output.Info("  pushed %d, failed %d", res.Push.Pushed, res.Push.Failed)
		output.Info("  applied %d nodes, %d fields, %d history entries",
			res.Pull.NodesApplied, res.Pull.FieldsApplied, res.Pull.HistoryApplied)
		if purged := res.Pull.NodesPurged + res.Pull.FieldsPurged; purged > 0 {
			output.Info("  purged %d records deleted on the server", purged)
		}
		if res.Push.Failed > 0 {
			output.Warning("%d writes stay queued; see 'cardbox sync status'", res.Push.Failed)
		}
		return nil
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue depth and last sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := db.Open(getBaseDir())
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer database.Close()

		count, err := database.CountPending()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		lastSync, err := database.LastSyncTimestamp()
		if err != nil {
			output.Error("%v", err)
			return err
		}

		fmt.Println(output.SectionHeader("Sync status"))
		if !syncconfig.IsLinked() {
			output.Info("  server:    not linked")
		} else {
			output.Info("  server:    %s", syncconfig.GetServerURL())
		}
		output.Info("  queued:    %d", count)
		output.Info("  last sync: %s", output.FormatTimeAgo(lastSync))

		items, err := database.PendingItems()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		for _, item := range items {
			if item.Status != models.QueueFailed {
				continue
			}
			output.Warning("  failed %s %s (retry %d): %s",
				item.Operation, item.EntityID, item.RetryCount, item.LastError)
		}

		if syncconfig.IsLinked() {
			deviceID, derr := syncconfig.GetDeviceID()
			if derr == nil {
				client := remote.New(syncconfig.GetServerURL(), syncconfig.GetAPIKey(), deviceID)
				ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
				defer cancel()
				if st, herr := client.Status(ctx); herr == nil {
					output.Info("  server holds %d nodes (%d deleted), %d fields, %d history entries",
						st.Nodes, st.DeletedNodes, st.Fields, st.History)
				} else {
					output.Warning("  server unreachable: %v", herr)
				}
			}
		}
		return nil
	},
}

var syncLinkCmd = &cobra.Command{
	Use:   "link <server-url>",
	Short: "Link this machine to a sync server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url := args[0]
		key, _ := cmd.Flags().GetString("key")

		deviceID, err := syncconfig.GetDeviceID()
		if err != nil {
			output.Error("%v", err)
			return err
		}

		client := remote.New(url, key, deviceID)
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		if _, err := client.HealthCheck(ctx); err != nil {
			output.Error("server check failed: %v", err)
			return err
		}

		if err := syncconfig.SaveAuth(&syncconfig.AuthCredentials{
			APIKey:    key,
			ServerURL: url,
			DeviceID:  deviceID,
		}); err != nil {
			output.Error("save credentials: %v", err)
			return err
		}

		output.Success("Linked to %s", url)
		output.Info("Run 'cardbox sync --full' for the initial replication.")
		return nil
	},
}

var syncUnlinkCmd = &cobra.Command{
	Use:   "unlink",
	Short: "Forget the sync server credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := syncconfig.ClearAuth(); err != nil {
			output.Error("%v", err)
			return err
		}
		output.Success("Unlinked. Local data is untouched.")
		return nil
	},
}

func init() {
	syncCmd.Flags().Bool("full", false, "full-collection sync (reconciles server-side deletes)")
	syncLinkCmd.Flags().String("key", "", "server API key")

	syncCmd.AddCommand(syncStatusCmd, syncLinkCmd, syncUnlinkCmd)
	rootCmd.AddCommand(syncCmd)
}
