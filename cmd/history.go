package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/cardbox/internal/db"
	"github.com/marcus/cardbox/internal/output"
)

var historyCmd = &cobra.Command{
	Use:     "history <field-id>",
	Short:   "Show the edit history of a field",
	GroupID: "cards",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := db.Open(getBaseDir())
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer database.Close()

		id := db.NormalizeFieldID(args[0])
		entries, err := database.GetFieldHistory(id)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if len(entries) == 0 {
			output.Info("no history for %s", id)
			return nil
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return output.JSON(entries)
		}

		fmt.Println(output.SectionHeader(id))
		for i := range entries {
			fmt.Println(output.HistoryLine(&entries[i]))
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().Bool("json", false, "JSON output")
	rootCmd.AddCommand(historyCmd)
}
