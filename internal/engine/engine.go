// Package engine decides whether man-hour sessions may start or stop on a
// finding and records the outcome in the ledger.
//
// Every start and stop runs as one read-check-append critical section. In
// collaborative mode the section is per finding; with SingleGlobalSession
// one lock covers the whole engine because the rule spans all findings.
package engine

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/balkashynov/hangar/internal/ledger"
	"github.com/balkashynov/hangar/internal/models"
	"github.com/balkashynov/hangar/internal/timeutil"
)

// Config selects the concurrency policy
type Config struct {
	// SingleGlobalSession allows only one active session across every finding.
	SingleGlobalSession bool `yaml:"single_global_session" json:"single_global_session"`
}

// Opts holds the engine's collaborators. Only Ledger is required.
type Opts struct {
	Ledger *ledger.Ledger
	Config Config
	Clock  timeutil.Clock
	Logger *slog.Logger
	NewID  func() string
}

// Engine applies the concurrency policy on top of a ledger
type Engine struct {
	ledger *ledger.Ledger
	cfg    Config
	clock  timeutil.Clock
	logger *slog.Logger
	newID  func() string

	global sync.Mutex
	mu     sync.Mutex // guards locks
	locks  map[string]*sync.Mutex
}

// New builds an Engine from opts
func New(opts Opts) (*Engine, error) {
	if opts.Ledger == nil {
		return nil, fmt.Errorf("engine: ledger is required")
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}
	return &Engine{
		ledger: opts.Ledger,
		cfg:    opts.Config,
		clock:  opts.Clock,
		logger: opts.Logger,
		newID:  opts.NewID,
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

// Config returns the active policy
func (e *Engine) Config() Config { return e.cfg }

// lock enters the critical section for findingID and returns its release.
func (e *Engine) lock(findingID string) func() {
	if e.cfg.SingleGlobalSession {
		e.global.Lock()
		return e.global.Unlock
	}
	e.mu.Lock()
	m, ok := e.locks[findingID]
	if !ok {
		m = &sync.Mutex{}
		e.locks[findingID] = m
	}
	e.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// StartRequest asks to open a session
type StartRequest struct {
	FindingID  string    `json:"finding_id"`
	EmployeeID string    `json:"employee_id"`
	TaskCode   string    `json:"task_code"`
	Timestamp  time.Time `json:"timestamp"`   // zero means now
	JoinAnyway bool      `json:"join_anyway"` // proceed despite other employees' sessions
}

// StartResult reports an accepted start
type StartResult struct {
	ExecutionID string           `json:"execution_id"`
	Status      models.Status    `json:"status"`
	Session     ledger.Session   `json:"session"`
	Joined      []ledger.Session `json:"joined,omitempty"` // sessions already active on the finding
}

// StartSession opens a session for req.EmployeeID on req.FindingID. A
// rejected request leaves the ledger untouched.
func (e *Engine) StartSession(req StartRequest) (*StartResult, error) {
	req.FindingID = strings.TrimSpace(req.FindingID)
	req.EmployeeID = strings.TrimSpace(req.EmployeeID)
	req.TaskCode = strings.TrimSpace(req.TaskCode)
	if req.FindingID == "" {
		return nil, reject(ErrMissingInput, req.FindingID, req.EmployeeID, "finding id is required")
	}

	unlock := e.lock(req.FindingID)
	defer unlock()

	status, err := e.ledger.Status(req.FindingID)
	if err != nil {
		return nil, fmt.Errorf("engine: start: %w", err)
	}
	if status == models.StatusClosed {
		return nil, e.rejected(reject(ErrFindingClosed, req.FindingID, req.EmployeeID, "closed findings accept no further sessions"))
	}

	var missing []string
	if req.EmployeeID == "" {
		missing = append(missing, "employee id")
	}
	if req.TaskCode == "" {
		missing = append(missing, "task code")
	}
	if len(missing) > 0 {
		return nil, e.rejected(reject(ErrMissingInput, req.FindingID, req.EmployeeID, strings.Join(missing, " and ")+" required"))
	}

	active, err := e.ledger.ActiveSessions(req.FindingID)
	if err != nil {
		return nil, fmt.Errorf("engine: start: %w", err)
	}
	var others []ledger.Session
	for _, s := range active {
		if s.EmployeeID == req.EmployeeID {
			return nil, e.rejected(reject(ErrDuplicateSession, req.FindingID, req.EmployeeID, "employee already has an open session here", s))
		}
		others = append(others, s)
	}

	if e.cfg.SingleGlobalSession {
		all, err := e.ledger.AllActive()
		if err != nil {
			return nil, fmt.Errorf("engine: start: %w", err)
		}
		if len(all) > 0 {
			return nil, e.rejected(reject(ErrSessionLocked, req.FindingID, req.EmployeeID, "stop the running session first", all...))
		}
	} else if len(others) > 0 && !req.JoinAnyway {
		return nil, e.rejected(reject(ErrConflict, req.FindingID, req.EmployeeID, "join explicitly to work in parallel", others...))
	}

	ts := req.Timestamp
	if ts.IsZero() {
		ts = e.clock.Now()
	}
	ev, err := e.ledger.Append(models.SessionEvent{
		ExecutionID: e.newID(),
		FindingID:   req.FindingID,
		EmployeeID:  req.EmployeeID,
		TaskCode:    req.TaskCode,
		Kind:        models.EventStart,
		Timestamp:   ts,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: start: %w", err)
	}

	e.logger.Info("session started",
		"finding", ev.FindingID,
		"employee", ev.EmployeeID,
		"task", ev.TaskCode,
		"execution", ev.ExecutionID,
		"parallel", len(others),
	)
	return &StartResult{
		ExecutionID: ev.ExecutionID,
		Status:      models.StatusInProgress,
		Session: ledger.Session{
			ExecutionID: ev.ExecutionID,
			FindingID:   ev.FindingID,
			EmployeeID:  ev.EmployeeID,
			TaskCode:    ev.TaskCode,
			Start:       ev.Timestamp,
			Seq:         ev.ID,
		},
		Joined: others,
	}, nil
}

// CheckConflicts lists the sessions that would stand in the way of
// employeeID starting on findingID, without changing anything. In
// single-session mode that is every active session in the system.
func (e *Engine) CheckConflicts(findingID, employeeID string) ([]ledger.Session, error) {
	var (
		active []ledger.Session
		err    error
	)
	if e.cfg.SingleGlobalSession {
		active, err = e.ledger.AllActive()
	} else {
		active, err = e.ledger.ActiveSessions(findingID)
	}
	if err != nil {
		return nil, fmt.Errorf("engine: conflicts: %w", err)
	}
	var out []ledger.Session
	for _, s := range active {
		if s.FindingID == findingID && s.EmployeeID == employeeID {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// StopRequest asks to close a session. The session is found by ExecutionID
// or, when that is empty, by EmployeeID.
type StopRequest struct {
	ExecutionID string             `json:"execution_id"`
	FindingID   string             `json:"finding_id"`
	EmployeeID  string             `json:"employee_id"`
	Timestamp   time.Time          `json:"timestamp"` // zero means now
	Disposition models.Disposition `json:"disposition"`
	EvidenceRef string             `json:"evidence_ref"`
}

// StopResult reports an accepted stop
type StopResult struct {
	Status    models.Status           `json:"status"`
	Session   ledger.CompletedSession `json:"session"`
	Remaining []ledger.Session        `json:"remaining,omitempty"`
	// EvidenceMissing is set when the finding closed without an evidence
	// reference. The close still stands.
	EvidenceMissing bool `json:"evidence_missing,omitempty"`
}

// StopSession closes a session and returns the finding's new status. When
// other sessions remain open the finding stays IN_PROGRESS whatever the
// disposition; otherwise the disposition decides.
func (e *Engine) StopSession(req StopRequest) (*StopResult, error) {
	req.FindingID = strings.TrimSpace(req.FindingID)
	req.EmployeeID = strings.TrimSpace(req.EmployeeID)
	req.ExecutionID = strings.TrimSpace(req.ExecutionID)
	req.EvidenceRef = strings.TrimSpace(req.EvidenceRef)
	if req.FindingID == "" {
		return nil, reject(ErrMissingInput, req.FindingID, req.EmployeeID, "finding id is required")
	}
	if req.ExecutionID == "" && req.EmployeeID == "" {
		return nil, reject(ErrMissingInput, req.FindingID, "", "execution id or employee id required")
	}
	if !req.Disposition.Valid() {
		return nil, reject(ErrMissingInput, req.FindingID, req.EmployeeID,
			fmt.Sprintf("disposition must be %s, %s or %s", models.DispositionProgress, models.DispositionHold, models.DispositionClosed))
	}

	unlock := e.lock(req.FindingID)
	defer unlock()

	active, err := e.ledger.ActiveSessions(req.FindingID)
	if err != nil {
		return nil, fmt.Errorf("engine: stop: %w", err)
	}
	match, ok := findSession(active, req.ExecutionID, req.EmployeeID)
	if !ok {
		reason := "no open session for employee " + req.EmployeeID
		if req.ExecutionID != "" {
			reason = "execution " + req.ExecutionID + " is not open"
		}
		return nil, e.rejected(reject(ErrNoActiveSession, req.FindingID, req.EmployeeID, reason))
	}

	ts := req.Timestamp
	if ts.IsZero() {
		ts = e.clock.Now()
	}
	ev, err := e.ledger.Append(models.SessionEvent{
		ExecutionID: match.ExecutionID,
		FindingID:   req.FindingID,
		EmployeeID:  match.EmployeeID,
		TaskCode:    match.TaskCode,
		Kind:        models.EventStop,
		Timestamp:   ts,
		Disposition: req.Disposition,
		EvidenceRef: req.EvidenceRef,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: stop: %w", err)
	}

	remaining, err := e.ledger.ActiveSessions(req.FindingID)
	if err != nil {
		return nil, fmt.Errorf("engine: stop: %w", err)
	}
	status, err := e.ledger.Status(req.FindingID)
	if err != nil {
		return nil, fmt.Errorf("engine: stop: %w", err)
	}

	res := &StopResult{
		Status: status,
		Session: ledger.CompletedSession{
			Session:     match,
			Stop:        ev.Timestamp,
			Duration:    ev.Timestamp.Sub(match.Start),
			Disposition: ev.Disposition,
			EvidenceRef: ev.EvidenceRef,
		},
		Remaining:       remaining,
		EvidenceMissing: status == models.StatusClosed && ev.EvidenceRef == "",
	}

	e.logger.Info("session stopped",
		"finding", req.FindingID,
		"employee", match.EmployeeID,
		"execution", match.ExecutionID,
		"duration", res.Session.Duration.String(),
		"disposition", string(req.Disposition),
		"status", string(status),
		"remaining", len(remaining),
	)
	if res.EvidenceMissing {
		e.logger.Warn("finding closed without evidence", "finding", req.FindingID)
	}
	return res, nil
}

// FindActive looks up the open session a StopRequest with the same
// execution and employee ids would close, without entering the critical
// section.
func (e *Engine) FindActive(findingID, executionID, employeeID string) (ledger.Session, bool, error) {
	active, err := e.ledger.ActiveSessions(strings.TrimSpace(findingID))
	if err != nil {
		return ledger.Session{}, false, fmt.Errorf("engine: find active: %w", err)
	}
	s, ok := findSession(active, strings.TrimSpace(executionID), strings.TrimSpace(employeeID))
	return s, ok, nil
}

func findSession(active []ledger.Session, executionID, employeeID string) (ledger.Session, bool) {
	for _, s := range active {
		if executionID != "" {
			if s.ExecutionID == executionID && (employeeID == "" || s.EmployeeID == employeeID) {
				return s, true
			}
			continue
		}
		if s.EmployeeID == employeeID {
			return s, true
		}
	}
	return ledger.Session{}, false
}

func (e *Engine) rejected(rej *RejectionError) error {
	e.logger.Debug("request rejected",
		"finding", rej.FindingID,
		"employee", rej.EmployeeID,
		"kind", rej.Kind.Error(),
		"blocking", len(rej.Blocking),
	)
	return rej
}

// Status returns the finding's ledger-derived status
func (e *Engine) Status(findingID string) (models.Status, error) {
	return e.ledger.Status(findingID)
}

// ActiveSessions returns the finding's open sessions
func (e *Engine) ActiveSessions(findingID string) ([]ledger.Session, error) {
	return e.ledger.ActiveSessions(findingID)
}

// AllActive returns open sessions on every finding
func (e *Engine) AllActive() ([]ledger.Session, error) {
	return e.ledger.AllActive()
}

// History returns the finding's events newest first
func (e *Engine) History(findingID string) ([]ledger.HistoryEntry, error) {
	return e.ledger.History(findingID)
}

// CompletedSessions returns the finding's closed sessions
func (e *Engine) CompletedSessions(findingID string) ([]ledger.CompletedSession, error) {
	return e.ledger.CompletedSessions(findingID)
}

// AllCompleted returns closed sessions on every finding
func (e *Engine) AllCompleted() ([]ledger.CompletedSession, error) {
	return e.ledger.AllCompleted()
}

// TotalDuration returns the finding's accumulated man-hours
func (e *Engine) TotalDuration(findingID string) (ledger.Total, error) {
	return e.ledger.TotalDuration(findingID)
}

// Evidence returns the evidence reference of the closing stop
func (e *Engine) Evidence(findingID string) (string, error) {
	return e.ledger.Evidence(findingID)
}

// Now exposes the engine clock so live views tick on the same time source
func (e *Engine) Now() time.Time { return e.clock.Now() }
