package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var helpCmd = &cobra.Command{
	Use:   "help",
	Short: "Show comprehensive help for hangar",
	Long:  `Display detailed help for all hangar commands and flags.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprint(cmd.OutOrStdout(), customHelp)
	},
}

const customHelp = `
██╗  ██╗ █████╗ ███╗   ██╗ ██████╗  █████╗ ██████╗
██║  ██║██╔══██╗████╗  ██║██╔════╝ ██╔══██╗██╔══██╗
███████║███████║██╔██╗ ██║██║  ███╗███████║██████╔╝
██╔══██║██╔══██║██║╚██╗██║██║   ██║██╔══██║██╔══██╗
██║  ██║██║  ██║██║ ╚████║╚██████╔╝██║  ██║██║  ██║
╚═╝  ╚═╝╚═╝  ╚═╝╚═╝  ╚═══╝ ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝

hangar - man-hour tracking for maintenance findings

WORK ORDERS:

  wo create               Create a work order and its batch of findings
    --wo-number           Customer work order number
    --part-desc           Part description
    --pn, --sn            Part and serial number
    --reg                 Aircraft registration (default PK-GLL)
    --customer            Customer
    --findings            Batch size (default from config)
  wo ls                   List work orders
  wo show <wo>            Work order with findings, status and man-hours
  wo add-finding <wo>     Add another finding
  wo set <wo> <f> <v>     Change wo_number|part_desc|pn|sn|ac_reg|customer

FINDINGS:

  finding describe <id>   Set --desc and/or --action
  material add <id>       Book a material (--name, --qty, --unit, --desc, --avail)
  material rm <id> <n>    Remove material line n

  Finding ids look like 482913-01; 482913/1 and "482913 1" also work.

SESSIONS:

  start <id>              Start a session
    --emp, --task         Employee id and task code (required)
    --join                Work alongside sessions already open
    --at                  Start time (HH:MM, dd/mm/yyyy HH:MM, "X minutes ago")
    --no-ui               Skip the live timer
  stop <id>               Stop a session
    --emp | --exec        Whose session, or which execution
    -d, --disposition     progress | hold | closed
    --photo               Evidence photo to upload
    --evidence            Existing evidence reference
    --at                  Stop time
  status [id]             Finding status, or every open session
  history <id>            Session events, newest first
  timer <id>              Live timer (--emp enables the stop keys)

    Timer keys:
      p             Stop · in progress
      h             Stop · on hold
      c             Stop · close
      esc/q         Exit, session keeps running

REPORTS AND SERVER:

  timesheet               Weekly man-hours per employee and finding
    --week                Any date in the week to show
  serve                   HTTP API for shop-floor terminals
    --port                Listen port
  version                 Version information
  help                    Show this help

Global flags: --config <file>, -v/--verbose

`
