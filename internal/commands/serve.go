package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/balkashynov/hangar/internal/api"
	"github.com/balkashynov/hangar/internal/audit"
	"github.com/balkashynov/hangar/internal/db"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API for shop-floor terminals",
	Long: `Run the HTTP API. Terminals start and stop sessions, upload evidence
and read finding status through it. Sessions open longer than
audit.max_session are reported in the log on the audit.schedule.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		verbose = true
		if err := initApp(); err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			return
		}
		defer db.Close()

		port, _ := cmd.Flags().GetInt("port")
		if port == 0 {
			port = cfg.Server.Port
		}
		logger := newLogger(cfg, os.Stderr)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		auditor, err := audit.New(audit.Opts{
			Source:     svc,
			Schedule:   cfg.Audit.Schedule,
			MaxSession: cfg.Audit.MaxSession,
			Clock:      svc.Engine(),
			Logger:     logger,
		})
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			return
		}
		auditor.Run()
		auditor.Start(ctx)

		err = api.Start(ctx, api.StartOpts{
			Service:              svc,
			Port:                 port,
			Logger:               logger,
			Out:                  out,
			FindingsPerWorkOrder: cfg.FindingsPerWorkOrder,
		})
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "Listen port (default server.port from the config)")
}
