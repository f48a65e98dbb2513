package service

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/balkashynov/hangar/internal/ledger"
)

// TimesheetRow is one employee's booked time on one finding, split by the
// weekday each session started on.
type TimesheetRow struct {
	EmployeeID string                         `json:"employee_id"`
	FindingID  string                         `json:"finding_id"`
	Days       map[time.Weekday]time.Duration `json:"days"`
	Total      time.Duration                  `json:"total"`
}

// Timesheet covers the calendar week starting at Start
type Timesheet struct {
	Start time.Time      `json:"start"`
	Rows  []TimesheetRow `json:"rows"`
	// Skipped counts sessions left out because their duration is negative.
	Skipped int `json:"skipped,omitempty"`
	// Orphaned counts STOP events in the ledger that have no START.
	Orphaned int `json:"orphaned,omitempty"`
}

// WeekStart returns midnight of the Monday on or before t
func WeekStart(t time.Time) time.Time {
	daysFromMonday := int(t.Weekday()+6) % 7
	d := t.AddDate(0, 0, -daysFromMonday)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
}

// Timesheet books completed sessions that started in the week of weekOf.
// Open sessions are not booked until they stop.
func (s *Service) Timesheet(weekOf time.Time) (*Timesheet, error) {
	done, err := s.engine.AllCompleted()
	problems, ok := integrityProblems(err)
	if !ok {
		return nil, fmt.Errorf("service: timesheet: %w", err)
	}

	start := WeekStart(weekOf)
	end := start.AddDate(0, 0, 7)
	ts := &Timesheet{Start: start}
	for _, p := range problems {
		if errors.Is(p, ledger.ErrInvalidTransition) {
			ts.Orphaned++
			s.logger.Warn("timesheet: ledger integrity", "error", p)
		}
	}
	rows := make(map[[2]string]*TimesheetRow)
	for _, cs := range done {
		if cs.Start.Before(start) || !cs.Start.Before(end) {
			continue
		}
		if cs.Duration < 0 {
			ts.Skipped++
			continue
		}
		k := [2]string{cs.EmployeeID, cs.FindingID}
		row, ok := rows[k]
		if !ok {
			row = &TimesheetRow{EmployeeID: cs.EmployeeID, FindingID: cs.FindingID, Days: make(map[time.Weekday]time.Duration)}
			rows[k] = row
		}
		row.Days[cs.Start.Weekday()] += cs.Duration
		row.Total += cs.Duration
	}

	for _, row := range rows {
		ts.Rows = append(ts.Rows, *row)
	}
	sort.Slice(ts.Rows, func(i, j int) bool {
		if ts.Rows[i].EmployeeID != ts.Rows[j].EmployeeID {
			return ts.Rows[i].EmployeeID < ts.Rows[j].EmployeeID
		}
		return ts.Rows[i].FindingID < ts.Rows[j].FindingID
	})
	if ts.Skipped > 0 {
		s.logger.Warn("timesheet skipped negative sessions", "count", ts.Skipped, "week", start.Format("2006-01-02"))
	}
	return ts, nil
}

// integrityProblems splits the error returned by AllCompleted into its
// data-integrity conditions. ok is false when err carries anything else,
// such as a storage failure.
func integrityProblems(err error) (problems []error, ok bool) {
	if err == nil {
		return nil, true
	}
	if joined, isJoin := err.(interface{ Unwrap() []error }); isJoin {
		for _, e := range joined.Unwrap() {
			sub, ok := integrityProblems(e)
			if !ok {
				return nil, false
			}
			problems = append(problems, sub...)
		}
		return problems, true
	}
	if errors.Is(err, ledger.ErrNegativeDuration) || errors.Is(err, ledger.ErrInvalidTransition) {
		return []error{err}, true
	}
	return nil, false
}
