package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/balkashynov/hangar/internal/parser"
	"github.com/balkashynov/hangar/internal/service"
)

var timesheetCmd = &cobra.Command{
	Use:   "timesheet",
	Short: "Show the weekly man-hour timesheet",
	Long: `Show booked man-hours for a calendar week, one row per employee and
finding, split by the day each session started. Open sessions are booked
once they stop.

Example output:
  Employee  Finding      Mon   Tue   Wed   Thu   Fri   Total
  A123      482913-01    -     2.00  -     0.50  -      2.50
  B456      482913-01    -     1.00  -     -     -      1.00
  Total                  0.00  3.00  0.00  0.50  0.00   3.50`,
	Run: withApp(func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		weekOf := svc.Engine().Now()
		if w, _ := cmd.Flags().GetString("week"); w != "" {
			t, err := parser.ParseTimestamp(w, weekOf)
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				return
			}
			weekOf = t
		}

		ts, err := svc.Timesheet(weekOf)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			return
		}
		if len(ts.Rows) == 0 {
			fmt.Fprintln(out, "No man-hours booked this week.")
			return
		}
		displayTimesheet(out, ts)
	}),
}

var weekdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday}

// displayTimesheet prints Mon-Fri always and weekend days only when booked
func displayTimesheet(out io.Writer, ts *service.Timesheet) {
	weekend := map[time.Weekday]bool{}
	for _, row := range ts.Rows {
		for day, d := range row.Days {
			if d > 0 && (day == time.Saturday || day == time.Sunday) {
				weekend[day] = true
			}
		}
	}
	var days []time.Weekday
	for i, day := range weekdays {
		if i < 5 || weekend[day] {
			days = append(days, day)
		}
	}

	const dayWidth = 6
	fmt.Fprintf(out, "%-10s%-12s", "Employee", "Finding")
	for _, day := range days {
		fmt.Fprintf(out, "%*s", dayWidth, day.String()[:3])
	}
	fmt.Fprintf(out, "%*s\n", dayWidth+2, "Total")
	fmt.Fprintln(out, strings.Repeat("-", 22+dayWidth*len(days)+dayWidth+2))

	dayTotals := make(map[time.Weekday]time.Duration)
	var grand time.Duration
	for _, row := range ts.Rows {
		fmt.Fprintf(out, "%-10s%-12s", truncate(row.EmployeeID, 9), row.FindingID)
		for _, day := range days {
			d := row.Days[day]
			dayTotals[day] += d
			if d > 0 {
				fmt.Fprintf(out, "%*.2f", dayWidth, d.Hours())
			} else {
				fmt.Fprintf(out, "%*s", dayWidth, "-")
			}
		}
		fmt.Fprintf(out, "%*.2f\n", dayWidth+2, row.Total.Hours())
		grand += row.Total
	}

	fmt.Fprintln(out, strings.Repeat("-", 22+dayWidth*len(days)+dayWidth+2))
	fmt.Fprintf(out, "%-22s", "Total")
	for _, day := range days {
		fmt.Fprintf(out, "%*.2f", dayWidth, dayTotals[day].Hours())
	}
	fmt.Fprintf(out, "%*.2f\n", dayWidth+2, grand.Hours())

	fmt.Fprintf(out, "\nWeek of %s to %s\n",
		ts.Start.Format("Jan 2"),
		ts.Start.AddDate(0, 0, 6).Format("Jan 2, 2006"))
	if ts.Skipped > 0 {
		fmt.Fprintf(out, "⚠️  %d session(s) with a negative duration left out\n", ts.Skipped)
	}
	if ts.Orphaned > 0 {
		fmt.Fprintf(out, "⚠️  %d stop event(s) without a start in the ledger\n", ts.Orphaned)
	}
}

func init() {
	timesheetCmd.Flags().String("week", "", "Any date in the week to show (dd/mm/yyyy HH:MM or RFC 3339; default this week)")
}
