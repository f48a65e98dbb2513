package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/balkashynov/hangar/internal/engine"
	"github.com/balkashynov/hangar/internal/ledger"
	"github.com/balkashynov/hangar/internal/models"
	"github.com/balkashynov/hangar/internal/parser"
	"github.com/balkashynov/hangar/internal/service"
	"github.com/balkashynov/hangar/internal/timeutil"
	"github.com/balkashynov/hangar/internal/tui"
)

var startCmd = &cobra.Command{
	Use:   "start <finding>",
	Short: "Start a man-hour session on a finding",
	Long: `Start a man-hour session on a finding. Opens the live timer by default,
use --no-ui for a simple start.

If someone else is already working the finding the start is refused and
their sessions are listed; pass --join to work alongside them.

Examples:
  hangar start 482913-01 --emp A123 --task T1
  hangar start 482913-01 --emp B456 --task T2 --join --no-ui
  hangar start 482913/1 --emp A123 --task T1 --at "15 minutes ago"`,
	Args: cobra.ExactArgs(1),
	Run: withApp(func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		id, err := parser.NormalizeFindingID(args[0])
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			return
		}
		emp, _ := cmd.Flags().GetString("emp")
		task, _ := cmd.Flags().GetString("task")
		join, _ := cmd.Flags().GetBool("join")
		at, _ := cmd.Flags().GetString("at")

		req := engine.StartRequest{
			FindingID:  id,
			EmployeeID: parser.NormalizeToken(emp),
			TaskCode:   parser.NormalizeToken(task),
			JoinAnyway: join,
		}
		if at != "" {
			if req.Timestamp, err = parser.ParseTimestamp(at, svc.Engine().Now()); err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				return
			}
		}

		res, err := svc.Start(req)
		if err != nil {
			printRejection(out, err)
			return
		}

		fmt.Fprintf(out, "⏱️  %s started task %s on finding %s\n", res.Session.EmployeeID, res.Session.TaskCode, id)
		fmt.Fprintf(out, "Started at: %s\n", res.Session.Start.Format("15:04:05"))
		fmt.Fprintf(out, "Execution: %s\n", res.ExecutionID)
		if len(res.Joined) > 0 {
			fmt.Fprintf(out, "👥 Working alongside %d other session(s)\n", len(res.Joined))
		}

		if noUI, _ := cmd.Flags().GetBool("no-ui"); !noUI {
			if err := tui.RunTimerTUI(svc, id, res.Session.EmployeeID); err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
			}
		}
	}),
}

var stopCmd = &cobra.Command{
	Use:   "stop <finding>",
	Short: "Stop a man-hour session",
	Long: `Stop a session on a finding, selected by --emp or --exec.

The disposition says where the work stands:
  progress   work continues later (finding goes back to OPEN)
  hold       waiting on parts or approval (ON_HOLD)
  closed     work is complete (CLOSED)

While other sessions stay open the finding remains IN_PROGRESS whatever the
disposition. Close-out evidence can be attached with --photo.

Examples:
  hangar stop 482913-01 --emp A123 -d progress
  hangar stop 482913-01 --emp A123 -d closed --photo ./panel.jpg`,
	Args: cobra.ExactArgs(1),
	Run: withApp(func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		id, err := parser.NormalizeFindingID(args[0])
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			return
		}
		emp, _ := cmd.Flags().GetString("emp")
		exec, _ := cmd.Flags().GetString("exec")
		dispInput, _ := cmd.Flags().GetString("disposition")
		evidenceRef, _ := cmd.Flags().GetString("evidence")
		photoPath, _ := cmd.Flags().GetString("photo")
		at, _ := cmd.Flags().GetString("at")

		disp, err := parser.ParseDisposition(dispInput)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			return
		}
		req := engine.StopRequest{
			ExecutionID: strings.TrimSpace(exec),
			FindingID:   id,
			EmployeeID:  parser.NormalizeToken(emp),
			Disposition: disp,
			EvidenceRef: evidenceRef,
		}
		if at != "" {
			if req.Timestamp, err = parser.ParseTimestamp(at, svc.Engine().Now()); err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				return
			}
		}

		var photo *service.Photo
		if photoPath != "" {
			f, err := os.Open(photoPath)
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				return
			}
			defer f.Close()
			photo = &service.Photo{Filename: photoPath, Body: f}
		}

		res, err := svc.Stop(context.Background(), req, photo)
		if err != nil {
			printRejection(out, err)
			return
		}

		fmt.Fprintf(out, "⏹️  %s stopped task %s on finding %s (%s)\n",
			res.Session.EmployeeID, res.Session.TaskCode, id, res.Session.Disposition)
		fmt.Fprintf(out, "Session duration: %s\n", timeutil.FormatClock(res.Session.Duration))
		fmt.Fprintf(out, "Finding status: %s\n", res.Status)
		if len(res.Remaining) > 0 {
			fmt.Fprintf(out, "👥 %d session(s) still open on this finding\n", len(res.Remaining))
		}
		if res.Session.EvidenceRef != "" {
			fmt.Fprintf(out, "📷 Evidence: %s\n", res.Session.EvidenceRef)
		}
		if res.EvidenceMissing {
			fmt.Fprintln(out, "⚠️  Finding closed without evidence")
		}
	}),
}

var statusCmd = &cobra.Command{
	Use:   "status [finding]",
	Short: "Show a finding's status, or every open session",
	Args:  cobra.MaximumNArgs(1),
	Run: withApp(func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		now := svc.Engine().Now()

		if len(args) == 0 {
			active, err := svc.Engine().AllActive()
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				return
			}
			if len(active) == 0 {
				fmt.Fprintln(out, "No active man-hour sessions")
				return
			}
			printSessions(out, active, now)
			return
		}

		id, err := parser.NormalizeFindingID(args[0])
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			return
		}
		ov, err := svc.Overview(id)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			return
		}

		fmt.Fprintf(out, "Finding %s: %s\n", id, ov.Status)
		if ov.Finding.Description != "" {
			fmt.Fprintf(out, "Description: %s\n", ov.Finding.Description)
		}
		fmt.Fprintf(out, "Booked: %s (%.2f MH) over %d session(s)\n",
			timeutil.FormatClock(ov.Total.Duration), timeutil.ManHours(ov.Total.Duration), ov.Total.Sessions)
		if ov.EvidenceRef != "" {
			fmt.Fprintf(out, "Evidence: %s\n", ov.EvidenceRef)
		}
		if len(ov.Active) > 0 {
			fmt.Fprintln(out)
			printSessions(out, ov.Active, now)
		}
	}),
}

var historyCmd = &cobra.Command{
	Use:   "history <finding>",
	Short: "Show a finding's session events, newest first",
	Args:  cobra.ExactArgs(1),
	Run: withApp(func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		id, err := parser.NormalizeFindingID(args[0])
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			return
		}
		hist, err := svc.Engine().History(id)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			return
		}
		if len(hist) == 0 {
			fmt.Fprintf(out, "No sessions recorded on %s\n", id)
			return
		}

		fmt.Fprintf(out, "%-19s %-6s %-10s %-8s %s\n", "TIME", "EVENT", "EMPLOYEE", "TASK", "DETAIL")
		fmt.Fprintln(out, strings.Repeat("-", 80))
		for _, h := range hist {
			ev := h.Event
			detail := ""
			if ev.Kind == models.EventStop {
				detail = string(ev.Disposition)
				if h.Start != nil {
					detail = timeutil.FormatClock(ev.Timestamp.Sub(h.Start.Timestamp)) + " " + detail
				}
				if ev.EvidenceRef != "" {
					detail += " 📷 " + ev.EvidenceRef
				}
			}
			fmt.Fprintf(out, "%-19s %-6s %-10s %-8s %s\n",
				ev.Timestamp.Local().Format("2006-01-02 15:04:05"), ev.Kind, ev.EmployeeID, ev.TaskCode, detail)
		}

		if _, err := svc.Engine().CompletedSessions(id); errors.Is(err, ledger.ErrNegativeDuration) {
			fmt.Fprintf(out, "\n⚠️  %v\n", err)
		}
	}),
}

var timerCmd = &cobra.Command{
	Use:   "timer <finding>",
	Short: "Open the live timer for a finding",
	Long: `Open the live timer for a finding. With --emp the stop keys close that
employee's session; without it the timer is read-only.`,
	Args: cobra.ExactArgs(1),
	Run: withApp(func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		id, err := parser.NormalizeFindingID(args[0])
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			return
		}
		emp, _ := cmd.Flags().GetString("emp")
		if err := tui.RunTimerTUI(svc, id, parser.NormalizeToken(emp)); err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}),
}

// printSessions lists open sessions with their live elapsed time
func printSessions(out io.Writer, sessions []ledger.Session, now time.Time) {
	fmt.Fprintf(out, "%-10s %-10s %-8s %-9s %-10s %s\n", "FINDING", "EMPLOYEE", "TASK", "STARTED", "ELAPSED", "EXECUTION")
	fmt.Fprintln(out, strings.Repeat("-", 90))
	for _, s := range sessions {
		fmt.Fprintf(out, "%-10s %-10s %-8s %-9s %-10s %s\n",
			s.FindingID, s.EmployeeID, s.TaskCode, s.Start.Local().Format("15:04:05"),
			timeutil.FormatClock(s.Elapsed(now)), s.ExecutionID)
	}
}

// printRejection explains a refused start or stop, naming whoever blocks it
func printRejection(out io.Writer, err error) {
	var rej *engine.RejectionError
	if !errors.As(err, &rej) {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}

	switch {
	case errors.Is(err, engine.ErrConflict):
		fmt.Fprintf(out, "⚠️  Finding %s is already being worked:\n", rej.FindingID)
	case errors.Is(err, engine.ErrSessionLocked):
		fmt.Fprintln(out, "🔒 Another session is running. Only one session may be open at a time:")
	case errors.Is(err, engine.ErrDuplicateSession):
		fmt.Fprintf(out, "⚠️  %s already has an open session on %s:\n", rej.EmployeeID, rej.FindingID)
	case errors.Is(err, engine.ErrFindingClosed):
		fmt.Fprintf(out, "✅ Finding %s is closed. No further sessions can be started.\n", rej.FindingID)
		return
	default:
		fmt.Fprintf(out, "Error: %s\n", rej.Reason)
		return
	}
	for _, s := range rej.Blocking {
		fmt.Fprintf(out, "  • %s on %s, task %s, since %s\n", s.EmployeeID, s.FindingID, s.TaskCode, s.Start.Local().Format("02 Jan 15:04"))
	}
	if errors.Is(err, engine.ErrConflict) {
		fmt.Fprintln(out, "Use --join to work alongside them.")
	}
}

func init() {
	startCmd.Flags().String("emp", "", "Employee id")
	startCmd.Flags().String("task", "", "Task code")
	startCmd.Flags().Bool("join", false, "Work alongside sessions already open on the finding")
	startCmd.Flags().String("at", "", "Start time (HH:MM, dd/mm/yyyy HH:MM, RFC 3339, \"X minutes ago\")")
	startCmd.Flags().Bool("no-ui", false, "Start without the live timer")

	stopCmd.Flags().String("emp", "", "Employee whose session to stop")
	stopCmd.Flags().String("exec", "", "Execution id of the session to stop")
	stopCmd.Flags().StringP("disposition", "d", "", "progress, hold or closed (required)")
	stopCmd.Flags().String("photo", "", "Evidence photo to upload")
	stopCmd.Flags().String("evidence", "", "Existing evidence reference")
	stopCmd.Flags().String("at", "", "Stop time (same formats as start --at)")

	timerCmd.Flags().String("emp", "", "Employee whose session the stop keys close")
}
