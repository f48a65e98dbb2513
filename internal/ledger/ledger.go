// Package ledger holds the append-only man-hour event log and every view
// derived from it: active sessions, completed sessions, history and status.
package ledger

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/balkashynov/hangar/internal/models"
)

var (
	// ErrInvalidTransition is returned when an event would break START/STOP pairing.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrNegativeDuration marks a STOP timestamped before its START.
	ErrNegativeDuration = errors.New("negative session duration")
)

// Store is the durable, append-only backing of a Ledger. Append must assign
// ev.ID in strictly increasing order; Events and All return insertion order.
// LastID returns the highest ID recorded for the finding, 0 if none.
type Store interface {
	Append(ev *models.SessionEvent) error
	Events(findingID string) ([]models.SessionEvent, error)
	All() ([]models.SessionEvent, error)
	LastID(findingID string) (uint, error)
}

// findingState is the memoized projection of one finding's events up to and
// including event lastID.
type findingState struct {
	status   models.Status
	evidence string
	lastID   uint
}

// Ledger validates appends against a Store and keeps a per-finding status
// index. An index entry is only trusted while no newer event exists for the
// finding, so appends made by another process sharing the store are seen.
type Ledger struct {
	store Store

	mu    sync.RWMutex
	index map[string]findingState
}

// New wraps store in a Ledger
func New(store Store) *Ledger {
	return &Ledger{
		store: store,
		index: make(map[string]findingState),
	}
}

// Append validates ev against the finding's current events and durably
// appends it. On STOP the employee and task code are taken from the matching
// START when left empty. The stored event is returned.
func (l *Ledger) Append(ev models.SessionEvent) (models.SessionEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ev.ExecutionID = strings.TrimSpace(ev.ExecutionID)
	ev.FindingID = strings.TrimSpace(ev.FindingID)
	if ev.ExecutionID == "" || ev.FindingID == "" {
		return ev, fmt.Errorf("ledger: append: %w: execution and finding ids are required", ErrInvalidTransition)
	}
	if ev.Timestamp.IsZero() {
		return ev, fmt.Errorf("ledger: append: %w: timestamp is required", ErrInvalidTransition)
	}

	events, err := l.store.Events(ev.FindingID)
	if err != nil {
		return ev, fmt.Errorf("ledger: append: %w", err)
	}

	switch ev.Kind {
	case models.EventStart:
		if err := checkStart(events, ev); err != nil {
			return ev, fmt.Errorf("ledger: append: %w", err)
		}
	case models.EventStop:
		start, err := checkStop(events, ev)
		if err != nil {
			return ev, fmt.Errorf("ledger: append: %w", err)
		}
		if ev.EmployeeID == "" {
			ev.EmployeeID = start.EmployeeID
		}
		if ev.TaskCode == "" {
			ev.TaskCode = start.TaskCode
		}
	default:
		return ev, fmt.Errorf("ledger: append: %w: unknown event kind %q", ErrInvalidTransition, ev.Kind)
	}

	ev.ID = 0
	if err := l.store.Append(&ev); err != nil {
		return ev, fmt.Errorf("ledger: append: %w", err)
	}

	events = append(events, ev)
	l.index[ev.FindingID] = derive(events)
	return ev, nil
}

func checkStart(events []models.SessionEvent, ev models.SessionEvent) error {
	if strings.TrimSpace(ev.EmployeeID) == "" {
		return fmt.Errorf("%w: START without employee", ErrInvalidTransition)
	}
	for _, e := range events {
		if e.ExecutionID == ev.ExecutionID {
			return fmt.Errorf("%w: execution %s already recorded", ErrInvalidTransition, ev.ExecutionID)
		}
	}
	for _, s := range activeFrom(events) {
		if s.EmployeeID == ev.EmployeeID {
			return fmt.Errorf("%w: %s already has execution %s open on %s",
				ErrInvalidTransition, ev.EmployeeID, s.ExecutionID, ev.FindingID)
		}
	}
	return nil
}

func checkStop(events []models.SessionEvent, ev models.SessionEvent) (Session, error) {
	for _, s := range activeFrom(events) {
		if s.ExecutionID != ev.ExecutionID {
			continue
		}
		if ev.EmployeeID != "" && ev.EmployeeID != s.EmployeeID {
			return s, fmt.Errorf("%w: execution %s belongs to %s, not %s",
				ErrInvalidTransition, s.ExecutionID, s.EmployeeID, ev.EmployeeID)
		}
		if ev.Timestamp.Before(s.Start) {
			return s, fmt.Errorf("%w: execution %s stops at %s before its start %s", ErrNegativeDuration,
				s.ExecutionID, ev.Timestamp.Format(time.RFC3339), s.Start.Format(time.RFC3339))
		}
		if ev.Disposition != "" && !ev.Disposition.Valid() {
			return s, fmt.Errorf("%w: unknown disposition %q", ErrInvalidTransition, ev.Disposition)
		}
		return s, nil
	}
	return Session{}, fmt.Errorf("%w: STOP without active START for execution %s on %s",
		ErrInvalidTransition, ev.ExecutionID, ev.FindingID)
}

// Status returns the finding's derived status. The memoized value is reused
// until the store holds a newer event for the finding.
func (l *Ledger) Status(findingID string) (models.Status, error) {
	st, err := l.state(findingID)
	return st.status, err
}

// Evidence returns the evidence reference recorded by the STOP that closed
// the finding, or "" when it is not closed or none was attached.
func (l *Ledger) Evidence(findingID string) (string, error) {
	st, err := l.state(findingID)
	return st.evidence, err
}

func (l *Ledger) state(findingID string) (findingState, error) {
	last, err := l.store.LastID(findingID)
	if err != nil {
		return findingState{status: models.StatusOpen}, fmt.Errorf("ledger: status %s: %w", findingID, err)
	}
	l.mu.RLock()
	st, ok := l.index[findingID]
	l.mu.RUnlock()
	if ok && st.lastID == last {
		return st, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if st, ok := l.index[findingID]; ok && st.lastID >= last {
		return st, nil
	}
	events, err := l.store.Events(findingID)
	if err != nil {
		return findingState{status: models.StatusOpen}, fmt.Errorf("ledger: status %s: %w", findingID, err)
	}
	st = derive(events)
	l.index[findingID] = st
	return st, nil
}

// Events returns the raw events of a finding in insertion order
func (l *Ledger) Events(findingID string) ([]models.SessionEvent, error) {
	events, err := l.store.Events(findingID)
	if err != nil {
		return nil, fmt.Errorf("ledger: events %s: %w", findingID, err)
	}
	return events, nil
}

// ActiveSessions returns the finding's open sessions ordered by their START
func (l *Ledger) ActiveSessions(findingID string) ([]Session, error) {
	events, err := l.Events(findingID)
	if err != nil {
		return nil, err
	}
	return activeFrom(events), nil
}

// AllActive returns open sessions across every finding, ordered by START.
func (l *Ledger) AllActive() ([]Session, error) {
	events, err := l.store.All()
	if err != nil {
		return nil, fmt.Errorf("ledger: all active: %w", err)
	}
	return activeFrom(events), nil
}

// CompletedSessions pairs every STOP with its START. Sessions with a negative
// duration are returned as recorded together with an error wrapping
// ErrNegativeDuration.
func (l *Ledger) CompletedSessions(findingID string) ([]CompletedSession, error) {
	events, err := l.Events(findingID)
	if err != nil {
		return nil, err
	}
	return completedFrom(events)
}

// AllCompleted returns completed sessions across every finding in STOP
// order, with the same negative duration reporting as CompletedSessions.
func (l *Ledger) AllCompleted() ([]CompletedSession, error) {
	events, err := l.store.All()
	if err != nil {
		return nil, fmt.Errorf("ledger: all completed: %w", err)
	}
	return completedFrom(events)
}

// TotalDuration sums the durations of the finding's completed sessions.
// Active sessions do not count.
func (l *Ledger) TotalDuration(findingID string) (Total, error) {
	done, err := l.CompletedSessions(findingID)
	var total Total
	for _, s := range done {
		total.Duration += s.Duration
		total.Sessions++
	}
	return total, err
}

// History returns the finding's events newest first.
func (l *Ledger) History(findingID string) ([]HistoryEntry, error) {
	events, err := l.Events(findingID)
	if err != nil {
		return nil, err
	}
	return historyFrom(events), nil
}
