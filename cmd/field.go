package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/cardbox/internal/db"
	"github.com/marcus/cardbox/internal/models"
	"github.com/marcus/cardbox/internal/output"
)

var fieldCmd = &cobra.Command{
	Use:     "field",
	Short:   "Manage fields on a node",
	GroupID: "cards",
}

var fieldSetCmd = &cobra.Command{
	Use:   "set <node-id> <name> <value>",
	Short: "Create or update a field",
	Long: `Sets a field on a node. An existing field with the same name is
updated in place; otherwise a new field is appended to the card.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := db.Open(getBaseDir())
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer database.Close()

		nodeID := db.NormalizeNodeID(args[0])
		name, value := args[1], args[2]

		if _, err := database.GetNode(nodeID); err != nil {
			output.Error("%v", err)
			return err
		}

		fields, err := database.ListFields(nodeID)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		var existing *models.Field
		for i := range fields {
			if fields[i].Name == name {
				existing = &fields[i]
				break
			}
		}

		if existing != nil {
			existing.Value = &value
			existing.UpdatedBy = deviceName()
			if err := database.UpdateField(existing); err != nil {
				output.Error("%v", err)
				return err
			}
			output.Success("Updated %s.%s", nodeID, name)
		} else {
			f := &models.Field{
				ParentNodeID: nodeID,
				Name:         name,
				Value:        &value,
				UpdatedBy:    deviceName(),
			}
			if err := database.CreateField(f); err != nil {
				output.Error("%v", err)
				return err
			}
			output.Success("Created %s (%s.%s)", f.ID, nodeID, name)
		}

		database.Close()
		autoSyncAfterMutation()
		return nil
	},
}

var fieldListCmd = &cobra.Command{
	Use:     "list <node-id>",
	Aliases: []string{"ls"},
	Short:   "List fields of a node in card order",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := db.Open(getBaseDir())
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer database.Close()

		nodeID := db.NormalizeNodeID(args[0])
		deleted, _ := cmd.Flags().GetBool("deleted")
		asJSON, _ := cmd.Flags().GetBool("json")

		var fields []models.Field
		if deleted {
			fields, err = database.ListDeletedFields(nodeID)
		} else {
			fields, err = database.ListFields(nodeID)
		}
		if err != nil {
			output.Error("%v", err)
			return err
		}

		if asJSON {
			return output.JSON(fields)
		}
		if len(fields) == 0 {
			output.Info("no fields")
			return nil
		}
		for i := range fields {
			fmt.Println(output.FieldLine(&fields[i]))
		}
		return nil
	},
}

var fieldRmCmd = &cobra.Command{
	Use:     "rm <field-id>",
	Aliases: []string{"delete"},
	Short:   "Soft-delete a field",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := db.Open(getBaseDir())
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer database.Close()

		id := db.NormalizeFieldID(args[0])
		if err := database.SoftDeleteField(id, deviceName()); err != nil {
			output.Error("%v", err)
			return err
		}
		output.Success("Deleted %s", id)
		database.Close()
		autoSyncAfterMutation()
		return nil
	},
}

var fieldRestoreCmd = &cobra.Command{
	Use:   "restore <field-id>",
	Short: "Restore a soft-deleted field",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := db.Open(getBaseDir())
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer database.Close()

		id := db.NormalizeFieldID(args[0])
		if err := database.RestoreField(id, deviceName()); err != nil {
			output.Error("%v", err)
			return err
		}
		output.Success("Restored %s", id)
		database.Close()
		autoSyncAfterMutation()
		return nil
	},
}

func init() {
	fieldListCmd.Flags().Bool("deleted", false, "list soft-deleted fields")
	fieldListCmd.Flags().Bool("json", false, "JSON output")

	fieldCmd.AddCommand(fieldSetCmd, fieldListCmd, fieldRmCmd, fieldRestoreCmd)
	rootCmd.AddCommand(fieldCmd)
}
