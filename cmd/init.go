package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/marcus/cardbox/internal/db"
	"github.com/marcus/cardbox/internal/output"
)

var initCmd = &cobra.Command{
	Use:     "init",
	Short:   "Initialize a cardbox store in the current directory",
	Long:    `Creates the local .cardbox directory and SQLite database.`,
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		baseDir := getBaseDir()

		if _, err := os.Stat(filepath.Join(baseDir, ".cardbox")); err == nil {
			output.Warning(".cardbox/ already exists")
			return nil
		}

		database, err := db.Initialize(baseDir)
		if err != nil {
			output.Error("failed to initialize database: %v", err)
			return err
		}
		defer database.Close()

		fmt.Println("INITIALIZED .cardbox/")
		fmt.Println("Next: cardbox node add \"My first card\"")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
