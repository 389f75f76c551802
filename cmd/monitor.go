package cmd

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/marcus/cardbox/internal/db"
	"github.com/marcus/cardbox/internal/output"
	cbsync "github.com/marcus/cardbox/internal/sync"
	"github.com/marcus/cardbox/internal/syncconfig"
	"github.com/marcus/cardbox/pkg/monitor"
)

var monitorCmd = &cobra.Command{
	Use:     "monitor",
	Short:   "Live view of the sync queue with background sync running",
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
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

		manager := cbsync.NewManager(engine, cbsync.ManagerOptions{
			Interval: syncconfig.GetAutoSyncInterval(),
			Debounce: syncconfig.GetAutoSyncDebounce(),
		})
		manager.SetEnabled(syncconfig.GetAutoSyncEnabled() && syncconfig.IsLinked())
		manager.Start()
		defer manager.Stop()

		p := tea.NewProgram(monitor.New(database, manager), tea.WithAltScreen())
		_, err = p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}
