package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/balkashynov/hangar/internal/ledger"
)

var (
	ErrMissingInput     = errors.New("missing input")
	ErrDuplicateSession = errors.New("duplicate session")
	ErrSessionLocked    = errors.New("session locked")
	ErrFindingClosed    = errors.New("finding closed")
	ErrNoActiveSession  = errors.New("no active session")
	// ErrConflict is returned in collaborative mode when other employees are
	// working the finding and the caller did not choose to join.
	ErrConflict = errors.New("finding has active sessions")
)

// RejectionError describes a refused start or stop. It unwraps to one of
// the sentinel errors above and names whoever is blocking the request.
type RejectionError struct {
	Kind       error
	FindingID  string
	EmployeeID string
	Reason     string
	Blocking   []ledger.Session
}

func (e *RejectionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: finding %s", e.Kind, e.FindingID)
	if e.EmployeeID != "" {
		fmt.Fprintf(&b, ", employee %s", e.EmployeeID)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	if len(e.Blocking) > 0 {
		b.WriteString(" (blocked by ")
		for i, s := range e.Blocking {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s on %s task %s since %s [%s]",
				s.EmployeeID, s.FindingID, s.TaskCode, s.Start.Format("02 Jan 15:04"), s.ExecutionID)
		}
		b.WriteString(")")
	}
	return b.String()
}

func (e *RejectionError) Unwrap() error { return e.Kind }

func reject(kind error, findingID, employeeID, reason string, blocking ...ledger.Session) *RejectionError {
	return &RejectionError{
		Kind:       kind,
		FindingID:  findingID,
		EmployeeID: employeeID,
		Reason:     reason,
		Blocking:   blocking,
	}
}

// Blocking returns the sessions named by a rejection, if err is one.
func Blocking(err error) []ledger.Session {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej.Blocking
	}
	return nil
}
