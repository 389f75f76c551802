package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/marcus/cardbox/internal/db"
	"github.com/marcus/cardbox/internal/models"
	"github.com/marcus/cardbox/internal/output"
	"github.com/marcus/cardbox/internal/tree"
)

var nodeCmd = &cobra.Command{
	Use:     "node",
	Short:   "Manage nodes (cards)",
	GroupID: "cards",
}

var nodeAddCmd = &cobra.Command{
	Use:     "add <name>",
	Aliases: []string{"create", "new"},
	Short:   "Create a node",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := db.Open(getBaseDir())
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer database.Close()

		parent, _ := cmd.Flags().GetString("parent")
		subtitle, _ := cmd.Flags().GetString("subtitle")
		if parent != "" {
			parent = db.NormalizeNodeID(parent)
			if _, err := database.GetNode(parent); err != nil {
				output.Error("parent: %v", err)
				return err
			}
		}

		n := &models.Node{
			ParentID:  parent,
			Name:      args[0],
			Subtitle:  subtitle,
			UpdatedBy: deviceName(),
		}
		if err := database.CreateNode(n); err != nil {
			output.Error("%v", err)
			return err
		}

		output.Success("Created %s", n.ID)
		database.Close()
		autoSyncAfterMutation()
		return nil
	},
}

var nodeListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List root nodes, or children with --parent",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := db.Open(getBaseDir())
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer database.Close()

		parent, _ := cmd.Flags().GetString("parent")
		deleted, _ := cmd.Flags().GetBool("deleted")
		asJSON, _ := cmd.Flags().GetBool("json")

		var nodes []models.Node
		switch {
		case deleted:
			nodes, err = database.ListDeletedNodes()
		case parent != "":
			nodes, err = database.ListChildren(db.NormalizeNodeID(parent))
		default:
			nodes, err = database.ListRoots()
		}
		if err != nil {
			output.Error("%v", err)
			return err
		}

		if asJSON {
			return output.JSON(nodes)
		}
		if len(nodes) == 0 {
			output.Info("no nodes")
			return nil
		}
		for i := range nodes {
			fmt.Println(output.NodeOneLiner(&nodes[i]))
		}
		return nil
	},
}

var nodeShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a node with its fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := db.Open(getBaseDir())
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer database.Close()

		id := db.NormalizeNodeID(args[0])
		n, err := database.GetNode(id)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		all, err := database.AllNodes()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		arena := tree.Build(all)
		chain, cycle := arena.Ancestors(n.ID)
		if len(chain) > 0 {
			parts := make([]string, 0, len(chain))
			for _, s := range chain {
				parts = append(parts, s.Name)
			}
			crumb := strings.Join(parts, " / ")
			if cycle {
				crumb += " / …(cycle)"
			}
			fmt.Println(output.Subtle(crumb))
		}

		fields, err := database.ListFields(n.ID)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		if plain, _ := cmd.Flags().GetBool("plain"); plain {
			fmt.Println(output.SectionHeader(n.Name))
			if n.Subtitle != "" {
				fmt.Println(output.Subtle(n.Subtitle))
			}
			for i := range fields {
				fmt.Println(output.FieldLine(&fields[i]))
			}
			return nil
		}

		rendered, err := output.RenderMarkdown(nodeMarkdown(n, fields))
		if err != nil {
			// Fall back to plain output on render failure.
			fmt.Println(output.SectionHeader(n.Name))
			for i := range fields {
				fmt.Println(output.FieldLine(&fields[i]))
			}
			return nil
		}
		fmt.Print(rendered)
		fmt.Println(output.Subtle(fmt.Sprintf("%s  updated %s", n.ID, output.FormatTimeAgo(n.UpdatedAt))))
		return nil
	},
}

// nodeMarkdown assembles a markdown document for the show command.
func nodeMarkdown(n *models.Node, fields []models.Field) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", n.Name)
	if n.Subtitle != "" {
		fmt.Fprintf(&b, "_%s_\n\n", n.Subtitle)
	}
	for i := range fields {
		f := &fields[i]
		val := "(empty)"
		if f.Value != nil {
			val = *f.Value
		}
		fmt.Fprintf(&b, "- **%s**: %s\n", f.Name, val)
	}
	return b.String()
}

var nodeTreeCmd = &cobra.Command{
	Use:   "tree [id]",
	Short: "Print the node hierarchy",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := db.Open(getBaseDir())
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer database.Close()

		all, err := database.AllNodes()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		arena := tree.Build(all)

		print := func(s tree.Summary, depth int) {
			indent := strings.Repeat("  ", depth)
			fmt.Printf("%s%s %s\n", indent, s.Name, output.Subtle(s.ID))
		}

		if len(args) == 1 {
			id := db.NormalizeNodeID(args[0])
			if _, ok := arena.Get(id); !ok {
				output.Error("node %s not found", id)
				return fmt.Errorf("node %s not found", id)
			}
			arena.Walk(id, print)
			return nil
		}
		for _, root := range arena.Roots() {
			arena.Walk(root, print)
		}
		return nil
	},
}

var nodeRmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete"},
	Short:   "Soft-delete a node",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := db.Open(getBaseDir())
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer database.Close()

		id := db.NormalizeNodeID(args[0])
		n, err := database.GetNode(id)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			var confirmed bool
			form := huh.NewForm(huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Delete %q?", n.Name)).
					Description("The node stays recoverable with node restore.").
					Value(&confirmed),
			))
			if err := form.Run(); err != nil {
				return err
			}
			if !confirmed {
				output.Info("aborted")
				return nil
			}
		}

		if err := database.SoftDeleteNode(id, deviceName()); err != nil {
			output.Error("%v", err)
			return err
		}
		output.Success("Deleted %s", id)
		database.Close()
		autoSyncAfterMutation()
		return nil
	},
}

var nodeRestoreCmd = &cobra.Command{
	Use:   "restore <id>",
	Short: "Restore a soft-deleted node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := db.Open(getBaseDir())
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer database.Close()

		id := db.NormalizeNodeID(args[0])
		if err := database.RestoreNode(id, deviceName()); err != nil {
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
	nodeAddCmd.Flags().StringP("parent", "p", "", "parent node id")
	nodeAddCmd.Flags().StringP("subtitle", "s", "", "subtitle text")
	nodeListCmd.Flags().StringP("parent", "p", "", "list children of this node")
	nodeListCmd.Flags().Bool("deleted", false, "list soft-deleted nodes")
	nodeListCmd.Flags().Bool("json", false, "JSON output")
	nodeShowCmd.Flags().Bool("plain", false, "skip markdown rendering")
	nodeRmCmd.Flags().BoolP("yes", "y", false, "skip confirmation")

	nodeCmd.AddCommand(nodeAddCmd, nodeListCmd, nodeShowCmd, nodeTreeCmd, nodeRmCmd, nodeRestoreCmd)
	rootCmd.AddCommand(nodeCmd)
}
