package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/balkashynov/hangar/internal/db"
	"github.com/balkashynov/hangar/internal/models"
	"github.com/balkashynov/hangar/internal/parser"
)

var findingCmd = &cobra.Command{
	Use:   "finding",
	Short: "Edit findings",
}

var findingDescribeCmd = &cobra.Command{
	Use:   "describe <finding>",
	Short: "Set a finding's description and action taken",
	Long: `Set the free-text description and action of a finding. Flags that are
not given leave the field unchanged.

Example:
  hangar finding describe 482913-01 --desc "Corrosion on lower skin" --action "Blend per SRM 51-10"`,
	Args: cobra.ExactArgs(1),
	Run: withApp(func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		id, err := parser.NormalizeFindingID(args[0])
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			return
		}

		var req db.UpdateFindingRequest
		if cmd.Flags().Changed("desc") {
			v, _ := cmd.Flags().GetString("desc")
			req.Description = &v
		}
		if cmd.Flags().Changed("action") {
			v, _ := cmd.Flags().GetString("action")
			req.Action = &v
		}
		if req.Description == nil && req.Action == nil {
			fmt.Fprintln(out, "Error: nothing to change. Use --desc and/or --action")
			return
		}

		f, err := db.UpdateFinding(db.DB, id, req)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			return
		}
		fmt.Fprintf(out, "✏️  Updated finding %s\n", f.ID)
		fmt.Fprintf(out, "Description: %s\n", orNone(f.Description))
		fmt.Fprintf(out, "Action:      %s\n", orNone(f.Action))
	}),
}

var materialCmd = &cobra.Command{
	Use:   "material",
	Short: "Book materials onto a finding",
}

var materialAddCmd = &cobra.Command{
	Use:   "add <finding>",
	Short: "Add a material line",
	Long: `Add a material line to a finding.

Example:
  hangar material add 482913-01 --name MS20995C32 --qty 2 --unit FT --avail "in stock"`,
	Args: cobra.ExactArgs(1),
	Run: withApp(func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		id, err := parser.NormalizeFindingID(args[0])
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			return
		}

		var m models.Material
		m.Name, _ = cmd.Flags().GetString("name")
		m.Quantity, _ = cmd.Flags().GetString("qty")
		m.Unit, _ = cmd.Flags().GetString("unit")
		m.Description, _ = cmd.Flags().GetString("desc")
		m.Availability, _ = cmd.Flags().GetString("avail")

		created, err := db.AddMaterial(db.DB, id, m)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			return
		}
		fmt.Fprintf(out, "📦 Added %s %s %s to %s\n", created.Quantity, created.Unit, created.Name, id)
	}),
}

var materialRmCmd = &cobra.Command{
	Use:     "rm <finding> <index>",
	Aliases: []string{"remove"},
	Short:   "Remove a material line by its position (1-based)",
	Args:    cobra.ExactArgs(2),
	Run: withApp(func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		id, err := parser.NormalizeFindingID(args[0])
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			return
		}
		index, err := strconv.Atoi(args[1])
		if err != nil || index < 1 {
			fmt.Fprintf(out, "Error: invalid material index '%s'\n", args[1])
			return
		}

		removed, err := db.RemoveMaterial(db.DB, id, index-1)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			return
		}
		fmt.Fprintf(out, "🗑️  Removed %s from %s\n", removed.Name, id)
	}),
}

func init() {
	findingDescribeCmd.Flags().String("desc", "", "Finding description")
	findingDescribeCmd.Flags().String("action", "", "Action taken")
	findingCmd.AddCommand(findingDescribeCmd)

	materialAddCmd.Flags().String("name", "", "Material name or part number (required)")
	materialAddCmd.Flags().String("qty", "", "Quantity (required)")
	materialAddCmd.Flags().String("unit", "", "Unit, e.g. EA, FT, ML")
	materialAddCmd.Flags().String("desc", "", "Description")
	materialAddCmd.Flags().String("avail", "", "Availability, e.g. in stock, ordered, AOG")
	materialCmd.AddCommand(materialAddCmd)
	materialCmd.AddCommand(materialRmCmd)
}
