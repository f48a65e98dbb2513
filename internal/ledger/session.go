package ledger

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/balkashynov/hangar/internal/models"
)

// Session is an open stretch of work: a START with no STOP yet.
type Session struct {
	ExecutionID string    `json:"execution_id"`
	FindingID   string    `json:"finding_id"`
	EmployeeID  string    `json:"employee_id"`
	TaskCode    string    `json:"task_code"`
	Start       time.Time `json:"start"`
	Seq         uint      `json:"seq"`
}

// Elapsed is the read-only live projection used by timers
func (s Session) Elapsed(now time.Time) time.Duration {
	return now.Sub(s.Start)
}

// CompletedSession is a START paired with its STOP
type CompletedSession struct {
	Session
	Stop        time.Time          `json:"stop"`
	Duration    time.Duration      `json:"duration"`
	Disposition models.Disposition `json:"disposition"`
	EvidenceRef string             `json:"evidence_ref,omitempty"`
}

// Total is the accumulated man-hour figure for a finding
type Total struct {
	Duration time.Duration `json:"duration"`
	Sessions int           `json:"sessions"`
}

// HistoryEntry is one audit row. Start is set on STOP rows and points at the
// START the STOP closed.
type HistoryEntry struct {
	Event models.SessionEvent  `json:"event"`
	Start *models.SessionEvent `json:"start,omitempty"`
}

func sessionOf(e models.SessionEvent) Session {
	return Session{
		ExecutionID: e.ExecutionID,
		FindingID:   e.FindingID,
		EmployeeID:  e.EmployeeID,
		TaskCode:    e.TaskCode,
		Start:       e.Timestamp,
		Seq:         e.ID,
	}
}

// activeFrom keeps each START whose execution has no STOP, in event order.
func activeFrom(events []models.SessionEvent) []Session {
	stopped := make(map[string]bool)
	for _, e := range events {
		if e.Kind == models.EventStop {
			stopped[e.ExecutionID] = true
		}
	}
	var active []Session
	for _, e := range events {
		if e.Kind == models.EventStart && !stopped[e.ExecutionID] {
			active = append(active, sessionOf(e))
		}
	}
	return active
}

// completedFrom returns completed sessions in STOP order.
func completedFrom(events []models.SessionEvent) ([]CompletedSession, error) {
	starts := make(map[string]models.SessionEvent)
	var (
		done []CompletedSession
		errs []error
	)
	for _, e := range events {
		switch e.Kind {
		case models.EventStart:
			starts[e.ExecutionID] = e
		case models.EventStop:
			start, ok := starts[e.ExecutionID]
			if !ok {
				errs = append(errs, fmt.Errorf("%w: STOP %d for execution %s has no START",
					ErrInvalidTransition, e.ID, e.ExecutionID))
				continue
			}
			cs := CompletedSession{
				Session:     sessionOf(start),
				Stop:        e.Timestamp,
				Duration:    e.Timestamp.Sub(start.Timestamp),
				Disposition: e.Disposition,
				EvidenceRef: e.EvidenceRef,
			}
			if cs.Duration < 0 {
				errs = append(errs, fmt.Errorf("%w: execution %s by %s: %s",
					ErrNegativeDuration, cs.ExecutionID, cs.EmployeeID, cs.Duration))
			}
			done = append(done, cs)
		}
	}
	return done, errors.Join(errs...)
}

// historyFrom orders events newest first; equal timestamps put the later
// insertion first.
func historyFrom(events []models.SessionEvent) []HistoryEntry {
	starts := make(map[string]models.SessionEvent)
	entries := make([]HistoryEntry, 0, len(events))
	for _, e := range events {
		entry := HistoryEntry{Event: e}
		switch e.Kind {
		case models.EventStart:
			starts[e.ExecutionID] = e
		case models.EventStop:
			if start, ok := starts[e.ExecutionID]; ok {
				entry.Start = &start
			}
		}
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Event, entries[j].Event
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.ID > b.ID
	})
	return entries
}

// derive replays events in insertion order. The finding is IN_PROGRESS while
// any session is open; when the last open session stops, its disposition
// decides the resting state.
func derive(events []models.SessionEvent) findingState {
	st := findingState{status: models.StatusOpen}
	active := make(map[string]bool)
	for _, e := range events {
		switch e.Kind {
		case models.EventStart:
			active[e.ExecutionID] = true
		case models.EventStop:
			if !active[e.ExecutionID] {
				continue
			}
			delete(active, e.ExecutionID)
			if len(active) > 0 {
				continue
			}
			st = restState(e)
		}
	}
	if len(active) > 0 {
		st = findingState{status: models.StatusInProgress}
	}
	if n := len(events); n > 0 {
		st.lastID = events[n-1].ID
	}
	return st
}

func restState(stop models.SessionEvent) findingState {
	switch stop.Disposition {
	case models.DispositionClosed:
		return findingState{status: models.StatusClosed, evidence: stop.EvidenceRef}
	case models.DispositionHold:
		return findingState{status: models.StatusOnHold}
	default:
		return findingState{status: models.StatusOpen}
	}
}

// DeriveStatus computes a finding's status from its events in insertion order.
func DeriveStatus(events []models.SessionEvent) models.Status {
	return derive(events).status
}
