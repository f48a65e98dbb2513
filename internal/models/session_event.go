package models

import "time"

// EventKind is the type of a ledger entry
type EventKind string

const (
	EventStart EventKind = "START"
	EventStop  EventKind = "STOP"
)

// Disposition is the operator's choice when stopping a session
type Disposition string

const (
	DispositionProgress Disposition = "PROGRESS" // keep the finding in progress
	DispositionHold     Disposition = "ON_HOLD"
	DispositionClosed   Disposition = "CLOSED"
)

// Valid reports whether d is one of the known dispositions
func (d Disposition) Valid() bool {
	switch d {
	case DispositionProgress, DispositionHold, DispositionClosed:
		return true
	}
	return false
}

// Status is the lifecycle state of a finding, derived from its ledger
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusOnHold     Status = "ON_HOLD"
	StatusClosed     Status = "CLOSED"
)

// SessionEvent is one immutable ledger entry. The ID doubles as the
// insertion sequence.
type SessionEvent struct {
	ID        uint      `gorm:"primarykey" json:"seq"`
	CreatedAt time.Time `json:"created_at"`

	ExecutionID string    `gorm:"not null;index" json:"execution_id"`
	FindingID   string    `gorm:"not null;index" json:"finding_id"`
	EmployeeID  string    `gorm:"not null" json:"employee_id"`
	TaskCode    string    `json:"task_code"`
	Kind        EventKind `gorm:"not null" json:"kind"`
	Timestamp   time.Time `gorm:"not null" json:"timestamp"`

	// STOP only
	Disposition Disposition `json:"disposition,omitempty"`
	EvidenceRef string      `json:"evidence_ref,omitempty"`
}
