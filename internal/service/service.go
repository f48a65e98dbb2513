// Package service ties the session engine to the work order records and the
// evidence store. It is what the CLI and the HTTP API call.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/balkashynov/hangar/internal/db"
	"github.com/balkashynov/hangar/internal/engine"
	"github.com/balkashynov/hangar/internal/evidence"
	"github.com/balkashynov/hangar/internal/ledger"
	"github.com/balkashynov/hangar/internal/models"
)

// Service is the man-hour facade over one database
type Service struct {
	db       *gorm.DB
	engine   *engine.Engine
	uploader evidence.Uploader
	logger   *slog.Logger
}

// New builds a Service. uploader may be nil when evidence is only ever
// passed as an existing reference.
func New(conn *gorm.DB, eng *engine.Engine, uploader evidence.Uploader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{db: conn, engine: eng, uploader: uploader, logger: logger}
}

// Engine returns the underlying policy engine
func (s *Service) Engine() *engine.Engine { return s.engine }

// DB returns the work order database
func (s *Service) DB() *gorm.DB { return s.db }

// Start opens a session on an existing finding
func (s *Service) Start(req engine.StartRequest) (*engine.StartResult, error) {
	if _, err := db.GetFinding(s.db, req.FindingID); err != nil {
		return nil, err
	}
	res, err := s.engine.StartSession(req)
	if err != nil {
		return nil, err
	}
	s.syncStatus(req.FindingID, res.Status)
	return res, nil
}

// Photo is an evidence upload attached to a stop
type Photo struct {
	Filename string
	Body     io.Reader
}

// Stop closes a session. A photo, if given, is uploaded before the engine's
// critical section is entered and its reference rides on the STOP event.
// The upload is skipped when the stop would be rejected anyway, so no blob
// is stored for it. Evidence is only copied to the finding when the finding
// ends up CLOSED.
func (s *Service) Stop(ctx context.Context, req engine.StopRequest, photo *Photo) (*engine.StopResult, error) {
	if _, err := db.GetFinding(s.db, req.FindingID); err != nil {
		return nil, err
	}
	if photo != nil {
		ok, err := s.stoppable(req)
		if err != nil {
			return nil, fmt.Errorf("service: stop: %w", err)
		}
		if !ok {
			photo = nil
		}
	}
	if photo != nil {
		if s.uploader == nil {
			return nil, fmt.Errorf("service: stop: no evidence store configured")
		}
		ref, err := s.uploader.Upload(ctx, photo.Filename, photo.Body)
		if err != nil {
			return nil, fmt.Errorf("service: stop: %w", err)
		}
		req.EvidenceRef = ref
	}

	res, err := s.engine.StopSession(req)
	if err != nil {
		return nil, err
	}
	s.syncStatus(req.FindingID, res.Status)
	if res.Status == models.StatusClosed && res.Session.EvidenceRef != "" {
		if err := db.SetFindingEvidence(s.db, req.FindingID, res.Session.EvidenceRef); err != nil {
			s.logger.Error("mirror evidence", "finding", req.FindingID, "error", err)
		}
	}
	return res, nil
}

// stoppable reports whether req names an open session with a valid
// disposition. It takes no lock; the engine still decides.
func (s *Service) stoppable(req engine.StopRequest) (bool, error) {
	if !req.Disposition.Valid() {
		return false, nil
	}
	_, open, err := s.engine.FindActive(req.FindingID, req.ExecutionID, req.EmployeeID)
	return open, err
}

// Upload stores evidence ahead of a stop and returns its reference
func (s *Service) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	if s.uploader == nil {
		return "", fmt.Errorf("service: upload: no evidence store configured")
	}
	ref, err := s.uploader.Upload(ctx, filename, r)
	if err != nil {
		return "", fmt.Errorf("service: upload: %w", err)
	}
	return ref, nil
}

// syncStatus mirrors the derived status onto the finding row for listings.
// The ledger stays authoritative, so a failure is only logged.
func (s *Service) syncStatus(findingID string, status models.Status) {
	if err := db.SyncFindingStatus(s.db, findingID, status); err != nil {
		s.logger.Error("mirror status", "finding", findingID, "error", err)
	}
}

// Overview is everything a finding card shows about man-hours
type Overview struct {
	Finding     *models.Finding       `json:"finding"`
	Status      models.Status         `json:"status"`
	Active      []ledger.Session      `json:"active"`
	Total       ledger.Total          `json:"total"`
	History     []ledger.HistoryEntry `json:"history"`
	EvidenceRef string                `json:"evidence_ref,omitempty"`
	AsOf        time.Time             `json:"as_of"`
}

// Overview gathers a finding's record and its ledger projections
func (s *Service) Overview(findingID string) (*Overview, error) {
	f, err := db.GetFinding(s.db, findingID)
	if err != nil {
		return nil, err
	}
	status, err := s.engine.Status(findingID)
	if err != nil {
		return nil, err
	}
	active, err := s.engine.ActiveSessions(findingID)
	if err != nil {
		return nil, err
	}
	total, err := s.engine.TotalDuration(findingID)
	if err != nil {
		return nil, err
	}
	history, err := s.engine.History(findingID)
	if err != nil {
		return nil, err
	}
	ref, err := s.engine.Evidence(findingID)
	if err != nil {
		return nil, err
	}
	if ref == "" {
		ref = f.EvidenceRef
	}
	f.Status = status
	return &Overview{
		Finding:     f,
		Status:      status,
		Active:      active,
		Total:       total,
		History:     history,
		EvidenceRef: ref,
		AsOf:        s.engine.Now(),
	}, nil
}

// LongRunning returns active sessions older than limit at now
func (s *Service) LongRunning(now time.Time, limit time.Duration) ([]ledger.Session, error) {
	all, err := s.engine.AllActive()
	if err != nil {
		return nil, err
	}
	var out []ledger.Session
	for _, a := range all {
		if a.Elapsed(now) > limit {
			out = append(out, a)
		}
	}
	return out, nil
}
