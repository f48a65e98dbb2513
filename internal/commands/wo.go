package commands

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/spf13/cobra"

	"github.com/balkashynov/hangar/internal/db"
	"github.com/balkashynov/hangar/internal/models"
	"github.com/balkashynov/hangar/internal/timeutil"
)

var woCmd = &cobra.Command{
	Use:     "wo",
	Aliases: []string{"workorder"},
	Short:   "Create and inspect work orders",
}

var woCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a work order with its batch of findings",
	Long: `Create a work order. A batch of empty findings is created with it
(findings_per_work_order in the config, 5 by default).

Examples:
  hangar wo create --wo-number 4500123 --pn 3214-55 --sn A-778 --customer Garuda
  hangar wo create --reg PK-GLM --findings 3`,
	Run: withApp(func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		req := db.CreateWorkOrderRequest{Findings: cfg.FindingsPerWorkOrder}
		req.WONumber, _ = cmd.Flags().GetString("wo-number")
		req.PartDesc, _ = cmd.Flags().GetString("part-desc")
		req.PartNumber, _ = cmd.Flags().GetString("pn")
		req.Serial, _ = cmd.Flags().GetString("sn")
		req.AircraftReg, _ = cmd.Flags().GetString("reg")
		req.Customer, _ = cmd.Flags().GetString("customer")
		if n, _ := cmd.Flags().GetInt("findings"); n > 0 {
			req.Findings = n
		}

		wo, err := db.CreateWorkOrder(db.DB, req, svc.Engine().Now())
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			return
		}
		fmt.Fprintf(out, "✅ Created work order %s (%s) with %d findings\n", wo.ID, wo.AircraftReg, len(wo.Findings))
		fmt.Fprintf(out, "Findings: %s .. %s\n", wo.Findings[0].ID, wo.Findings[len(wo.Findings)-1].ID)
	}),
}

var woListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List work orders",
	Run: withApp(func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		wos, err := db.ListWorkOrders(db.DB)
		if err != nil {
			fmt.Fprintf(out, "Error fetching work orders: %v\n", err)
			return
		}
		if len(wos) == 0 {
			fmt.Fprintln(out, "No work orders found. Use 'hangar wo create' to open one.")
			return
		}

		fmt.Fprintf(out, "%-7s %-12s %-8s %-20s %-15s %s\n", "ID", "WO NUMBER", "A/C", "PART", "CUSTOMER", "FINDINGS")
		fmt.Fprintln(out, strings.Repeat("-", 80))
		for _, wo := range wos {
			open := 0
			for _, f := range wo.Findings {
				if f.Status != models.StatusClosed {
					open++
				}
			}
			fmt.Fprintf(out, "%-7s %-12s %-8s %-20s %-15s %d (%d open)\n",
				wo.ID,
				truncate(wo.WONumber, 12),
				wo.AircraftReg,
				truncate(wo.PartDesc, 20),
				truncate(wo.Customer, 15),
				len(wo.Findings),
				open)
		}
	}),
}

var woShowCmd = &cobra.Command{
	Use:   "show <wo>",
	Short: "Show a work order with its findings",
	Args:  cobra.ExactArgs(1),
	Run: withApp(func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		wo, err := db.GetWorkOrder(db.DB, args[0])
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			return
		}

		fmt.Fprintf(out, "Work order %s\n", wo.ID)
		fmt.Fprintf(out, "  WO number: %s\n", orNone(wo.WONumber))
		fmt.Fprintf(out, "  Part:      %s  P/N %s  S/N %s\n", orNone(wo.PartDesc), orNone(wo.PartNumber), orNone(wo.Serial))
		fmt.Fprintf(out, "  A/C reg:   %s\n", wo.AircraftReg)
		fmt.Fprintf(out, "  Customer:  %s\n\n", orNone(wo.Customer))

		fmt.Fprintf(out, "%-10s %-12s %-10s %-6s %s\n", "FINDING", "STATUS", "MAN-HOURS", "MAT", "DESCRIPTION")
		fmt.Fprintln(out, strings.Repeat("-", 80))
		for _, f := range wo.Findings {
			status, err := svc.Engine().Status(f.ID)
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				return
			}
			total, _ := svc.Engine().TotalDuration(f.ID)
			fmt.Fprintf(out, "%-10s %-12s %-10s %-6d %s\n",
				f.ID, status, fmt.Sprintf("%.2f", timeutil.ManHours(total.Duration)), len(f.Materials), truncate(f.Description, 40))
		}
	}),
}

var woAddFindingCmd = &cobra.Command{
	Use:   "add-finding <wo>",
	Short: "Add another finding to a work order",
	Args:  cobra.ExactArgs(1),
	Run: withApp(func(cmd *cobra.Command, args []string) {
		f, err := db.AddFinding(db.DB, args[0])
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Error: %v\n", err)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ Added finding %s\n", f.ID)
	}),
}

var woSetCmd = &cobra.Command{
	Use:   "set <wo> <field> <value>",
	Short: "Change one general data field",
	Long: `Change one general data field of a work order.

Fields: wo_number, part_desc, pn, sn, ac_reg, customer

Example:
  hangar wo set 482913 ac_reg PK-GLM`,
	Args: cobra.ExactArgs(3),
	Run: withApp(func(cmd *cobra.Command, args []string) {
		if err := db.UpdateGeneralData(db.DB, args[0], args[1], args[2]); err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Error: %v\n", err)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✏️  Work order %s: %s updated\n", args[0], args[1])
	}),
}

func truncate(s string, n int) string {
	if n <= 3 {
		return ansi.Truncate(s, n, "")
	}
	return ansi.Truncate(s, n, "...")
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	woCreateCmd.Flags().String("wo-number", "", "Customer work order number")
	woCreateCmd.Flags().String("part-desc", "", "Part description")
	woCreateCmd.Flags().String("pn", "", "Part number")
	woCreateCmd.Flags().String("sn", "", "Serial number")
	woCreateCmd.Flags().String("reg", "", "Aircraft registration (default PK-GLL)")
	woCreateCmd.Flags().String("customer", "", "Customer")
	woCreateCmd.Flags().Int("findings", 0, "Number of findings to create (default from config)")

	woCmd.AddCommand(woCreateCmd)
	woCmd.AddCommand(woListCmd)
	woCmd.AddCommand(woShowCmd)
	woCmd.AddCommand(woAddFindingCmd)
	woCmd.AddCommand(woSetCmd)
}
