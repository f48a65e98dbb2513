// Package audit reports man-hour sessions that have stayed open for too
// long. Sessions never expire on their own, so a shift change that forgot
// to stop the clock shows up here instead. It only reads the ledger.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/balkashynov/hangar/internal/ledger"
	"github.com/balkashynov/hangar/internal/timeutil"
)

// Source lists open sessions older than a limit
type Source interface {
	LongRunning(now time.Time, limit time.Duration) ([]ledger.Session, error)
}

// Opts configures an Auditor
type Opts struct {
	Source     Source
	Schedule   string // standard 5-field cron or @every descriptor
	MaxSession time.Duration
	Clock      timeutil.Clock
	Logger     *slog.Logger
}

// Auditor runs the report on a cron schedule
type Auditor struct {
	opts Opts
	cron *cron.Cron
}

// New validates opts and prepares the schedule
func New(opts Opts) (*Auditor, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("audit: source is required")
	}
	if opts.MaxSession <= 0 {
		return nil, fmt.Errorf("audit: max session must be positive")
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	a := &Auditor{opts: opts, cron: cron.New()}
	if _, err := a.cron.AddFunc(opts.Schedule, func() { a.Run() }); err != nil {
		return nil, fmt.Errorf("audit: schedule %q: %w", opts.Schedule, err)
	}
	return a, nil
}

// Run checks once and logs a warning per long-running session. It returns
// what it found.
func (a *Auditor) Run() []ledger.Session {
	now := a.opts.Clock.Now()
	long, err := a.opts.Source.LongRunning(now, a.opts.MaxSession)
	if err != nil {
		a.opts.Logger.Error("long-running session audit", "error", err)
		return nil
	}
	for _, s := range long {
		a.opts.Logger.Warn("session open past limit",
			"finding", s.FindingID,
			"employee", s.EmployeeID,
			"task", s.TaskCode,
			"execution", s.ExecutionID,
			"open_for", timeutil.FormatClock(s.Elapsed(now)),
		)
	}
	return long
}

// Start runs the schedule until ctx is cancelled
func (a *Auditor) Start(ctx context.Context) {
	a.cron.Start()
	go func() {
		<-ctx.Done()
		<-a.cron.Stop().Done()
	}()
}
