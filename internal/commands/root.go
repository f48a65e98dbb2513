package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/balkashynov/hangar/internal/config"
	"github.com/balkashynov/hangar/internal/db"
	"github.com/balkashynov/hangar/internal/service"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	cfgFile string
	verbose bool

	cfg *config.Config
	svc *service.Service
)

var rootCmd = &cobra.Command{
	Use:   "hangar",
	Short: "Man-hour tracking for aircraft maintenance findings",
	Long: `hangar records who worked on which maintenance finding and for how long.

Mechanics start and stop sessions on a finding; the finding's status and
booked man-hours are derived from that session history.`,
	SilenceUsage: true,
}

// initApp loads the config, opens the database and wires the service
func initApp() error {
	path := cfgFile
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	c, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := db.Initialize(c.Database.Path); err != nil {
		return err
	}
	s, err := service.FromConfig(db.DB, c, newLogger(c, os.Stderr))
	if err != nil {
		return err
	}
	cfg, svc = c, s
	return nil
}

// newLogger logs to w at the configured level for serve and --verbose.
// Plain CLI commands stay quiet.
func newLogger(c *config.Config, w io.Writer) *slog.Logger {
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	level, _ := config.ParseLevel(c.Log.Level)
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// withApp wraps a command function to initialize the app first
func withApp(fn func(*cobra.Command, []string)) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		if err := initApp(); err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Error: %v\n", err)
			return
		}
		defer db.Close()
		fn(cmd, args)
	}
}

// SetVersion sets the version information
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "hangar %s (commit %s, built %s)\n", version, commit, date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.hangar/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log engine decisions to stderr")

	rootCmd.AddCommand(woCmd)
	rootCmd.AddCommand(findingCmd)
	rootCmd.AddCommand(materialCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(timerCmd)
	rootCmd.AddCommand(timesheetCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.SetHelpCommand(helpCmd)
	rootCmd.AddCommand(versionCmd)
}
