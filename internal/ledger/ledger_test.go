package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/balkashynov/hangar/internal/models"
)

var t0 = time.Date(2024, 5, 14, 7, 0, 0, 0, time.UTC)

func start(exec, finding, emp, task string, at time.Duration) models.SessionEvent {
	return models.SessionEvent{
		ExecutionID: exec,
		FindingID:   finding,
		EmployeeID:  emp,
		TaskCode:    task,
		Kind:        models.EventStart,
		Timestamp:   t0.Add(at),
	}
}

func stop(exec, finding string, at time.Duration, d models.Disposition) models.SessionEvent {
	return models.SessionEvent{
		ExecutionID: exec,
		FindingID:   finding,
		Kind:        models.EventStop,
		Timestamp:   t0.Add(at),
		Disposition: d,
	}
}

func mustAppend(t *testing.T, l *Ledger, ev models.SessionEvent) models.SessionEvent {
	t.Helper()
	got, err := l.Append(ev)
	if err != nil {
		t.Fatalf("Append(%s %s): %v", ev.Kind, ev.ExecutionID, err)
	}
	return got
}

func TestAppend_StopFillsEmployeeAndTask(t *testing.T) {
	l := New(NewMemoryStore())
	mustAppend(t, l, start("e1", "F", "A123", "T1", 0))
	got := mustAppend(t, l, stop("e1", "F", 10*time.Second, models.DispositionProgress))

	if got.EmployeeID != "A123" || got.TaskCode != "T1" {
		t.Errorf("stop event = %s/%s, want A123/T1", got.EmployeeID, got.TaskCode)
	}
	if got.ID != 2 {
		t.Errorf("stop ID = %d, want 2", got.ID)
	}
}

func TestAppend_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		ev      models.SessionEvent
		wantErr error
	}{
		{"stop without start", stop("nope", "F", time.Minute, models.DispositionHold), ErrInvalidTransition},
		{"second start same employee", start("e2", "F", "A123", "T2", time.Minute), ErrInvalidTransition},
		{"reused execution id", start("e1", "F", "B456", "T2", time.Minute), ErrInvalidTransition},
		{"stop before start", stop("e1", "F", -time.Minute, models.DispositionHold), ErrNegativeDuration},
		{"unknown kind", models.SessionEvent{ExecutionID: "x", FindingID: "F", Kind: "PAUSE", Timestamp: t0}, ErrInvalidTransition},
		{"missing timestamp", models.SessionEvent{ExecutionID: "x", FindingID: "F", Kind: models.EventStart, EmployeeID: "C"}, ErrInvalidTransition},
		{"stop by other employee", func() models.SessionEvent {
			ev := stop("e1", "F", time.Minute, models.DispositionHold)
			ev.EmployeeID = "B456"
			return ev
		}(), ErrInvalidTransition},
		{"unknown disposition", stop("e1", "F", time.Minute, "DONE"), ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			l := New(store)
			mustAppend(t, l, start("e1", "F", "A123", "T1", 0))

			_, err := l.Append(tt.ev)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Append err = %v, want %v", err, tt.wantErr)
			}
			if store.Len() != 1 {
				t.Errorf("store has %d events after rejected append, want 1", store.Len())
			}
		})
	}
}

func TestActiveSessions_InsertionOrder(t *testing.T) {
	l := New(NewMemoryStore())
	mustAppend(t, l, start("e1", "F", "A", "T1", 0))
	mustAppend(t, l, start("e2", "F", "B", "T1", time.Second))
	mustAppend(t, l, start("e3", "F", "C", "T1", 2*time.Second))
	mustAppend(t, l, start("e4", "G", "A", "T1", 2*time.Second))
	mustAppend(t, l, stop("e2", "F", 3*time.Second, models.DispositionProgress))

	active, err := l.ActiveSessions("F")
	if err != nil {
		t.Fatalf("ActiveSessions: %v", err)
	}
	if len(active) != 2 || active[0].ExecutionID != "e1" || active[1].ExecutionID != "e3" {
		t.Fatalf("active = %+v, want e1, e3", active)
	}

	all, err := l.AllActive()
	if err != nil {
		t.Fatalf("AllActive: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("AllActive len = %d, want 3", len(all))
	}
}

func TestCompletedSessions_RoundTrip(t *testing.T) {
	l := New(NewMemoryStore())
	mustAppend(t, l, start("e1", "F", "A", "T1", 0))
	mustAppend(t, l, stop("e1", "F", 42*time.Second, models.DispositionHold))

	// A STOP for an execution that has not started is refused and leaves the
	// first pair untouched.
	if _, err := l.Append(stop("e2", "F", 50*time.Second, models.DispositionHold)); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("reverse-order STOP err = %v, want ErrInvalidTransition", err)
	}
	mustAppend(t, l, start("e2", "F", "B", "T2", 60*time.Second))

	done, err := l.CompletedSessions("F")
	if err != nil {
		t.Fatalf("CompletedSessions: %v", err)
	}
	if len(done) != 1 {
		t.Fatalf("completed = %d, want 1", len(done))
	}
	if done[0].Duration != 42*time.Second {
		t.Errorf("duration = %s, want 42s", done[0].Duration)
	}
	if done[0].EmployeeID != "A" || done[0].TaskCode != "T1" {
		t.Errorf("completed = %+v", done[0])
	}
}

func TestTotalDuration_IgnoresActive(t *testing.T) {
	l := New(NewMemoryStore())
	mustAppend(t, l, start("e1", "F", "A", "T1", 0))
	mustAppend(t, l, start("e2", "F", "B", "T2", 5*time.Second))
	mustAppend(t, l, stop("e1", "F", 10*time.Second, models.DispositionProgress))
	mustAppend(t, l, start("e3", "F", "C", "T3", 11*time.Second))

	total, err := l.TotalDuration("F")
	if err != nil {
		t.Fatalf("TotalDuration: %v", err)
	}
	if total.Duration != 10*time.Second || total.Sessions != 1 {
		t.Errorf("total = %+v, want 10s over 1 session", total)
	}

	mustAppend(t, l, stop("e2", "F", 20*time.Second, models.DispositionProgress))
	next, _ := l.TotalDuration("F")
	if next.Duration != 25*time.Second {
		t.Errorf("total = %s, want 25s", next.Duration)
	}
	if next.Duration < total.Duration {
		t.Error("total duration decreased")
	}
}

func TestAllCompleted_AcrossFindings(t *testing.T) {
	l := New(NewMemoryStore())
	mustAppend(t, l, start("e1", "F", "A", "T1", 0))
	mustAppend(t, l, start("e2", "G", "B", "T2", time.Second))
	mustAppend(t, l, stop("e2", "G", 4*time.Second, models.DispositionHold))
	mustAppend(t, l, stop("e1", "F", 10*time.Second, models.DispositionClosed))
	mustAppend(t, l, start("e3", "G", "C", "T3", 11*time.Second))

	done, err := l.AllCompleted()
	if err != nil {
		t.Fatalf("AllCompleted: %v", err)
	}
	if len(done) != 2 {
		t.Fatalf("completed = %d, want 2", len(done))
	}
	if done[0].FindingID != "G" || done[0].Duration != 3*time.Second {
		t.Errorf("first = %+v, want G for 3s", done[0])
	}
	if done[1].FindingID != "F" || done[1].Duration != 10*time.Second {
		t.Errorf("second = %+v, want F for 10s", done[1])
	}
}

type rawStore struct{ events []models.SessionEvent }

func (r *rawStore) Append(ev *models.SessionEvent) error {
	ev.ID = uint(len(r.events) + 1)
	r.events = append(r.events, *ev)
	return nil
}
func (r *rawStore) Events(string) ([]models.SessionEvent, error) { return r.events, nil }
func (r *rawStore) All() ([]models.SessionEvent, error)         { return r.events, nil }
func (r *rawStore) LastID(string) (uint, error)                 { return uint(len(r.events)), nil }

func TestCompletedSessions_ReportsNegativeDuration(t *testing.T) {
	// Written by another writer with a skewed clock.
	store := &rawStore{}
	store.Append(&models.SessionEvent{ExecutionID: "e1", FindingID: "F", EmployeeID: "A", Kind: models.EventStart, Timestamp: t0.Add(time.Minute)})
	store.Append(&models.SessionEvent{ExecutionID: "e1", FindingID: "F", EmployeeID: "A", Kind: models.EventStop, Timestamp: t0})

	l := New(store)
	done, err := l.CompletedSessions("F")
	if !errors.Is(err, ErrNegativeDuration) {
		t.Fatalf("err = %v, want ErrNegativeDuration", err)
	}
	if len(done) != 1 || done[0].Duration != -time.Minute {
		t.Errorf("completed = %+v, want one session of -1m", done)
	}
}

func TestHistory_NewestFirst(t *testing.T) {
	l := New(NewMemoryStore())
	mustAppend(t, l, start("e1", "F", "A", "T1", 0))
	mustAppend(t, l, start("e2", "F", "B", "T2", 5*time.Second))
	mustAppend(t, l, stop("e1", "F", 5*time.Second, models.DispositionProgress))

	h, err := l.History("F")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(h) != 3 {
		t.Fatalf("history len = %d, want 3", len(h))
	}
	// e2 START and e1 STOP share a timestamp; the later insertion comes first.
	if h[0].Event.Kind != models.EventStop || h[0].Event.ExecutionID != "e1" {
		t.Errorf("h[0] = %s %s, want STOP e1", h[0].Event.Kind, h[0].Event.ExecutionID)
	}
	if h[0].Start == nil || h[0].Start.ExecutionID != "e1" || h[0].Start.Kind != models.EventStart {
		t.Errorf("h[0].Start = %+v, want START of e1", h[0].Start)
	}
	if h[1].Event.ExecutionID != "e2" || h[2].Event.ExecutionID != "e1" {
		t.Errorf("order = %s, %s", h[1].Event.ExecutionID, h[2].Event.ExecutionID)
	}
	if h[1].Start != nil {
		t.Error("START rows should not carry a start reference")
	}
}

func TestStatus_Derivation(t *testing.T) {
	tests := []struct {
		name   string
		events []models.SessionEvent
		want   models.Status
	}{
		{"no events", nil, models.StatusOpen},
		{"one active", []models.SessionEvent{start("e1", "F", "A", "T", 0)}, models.StatusInProgress},
		{"stopped progress", []models.SessionEvent{
			start("e1", "F", "A", "T", 0), stop("e1", "F", time.Second, models.DispositionProgress),
		}, models.StatusOpen},
		{"stopped hold", []models.SessionEvent{
			start("e1", "F", "A", "T", 0), stop("e1", "F", time.Second, models.DispositionHold),
		}, models.StatusOnHold},
		{"closed", []models.SessionEvent{
			start("e1", "F", "A", "T", 0), stop("e1", "F", time.Second, models.DispositionClosed),
		}, models.StatusClosed},
		{"close while another active", []models.SessionEvent{
			start("e1", "F", "A", "T", 0), start("e2", "F", "B", "T", 0),
			stop("e1", "F", time.Second, models.DispositionClosed),
		}, models.StatusInProgress},
		{"last stopper holds", []models.SessionEvent{
			start("e1", "F", "A", "T", 0), start("e2", "F", "B", "T", 0),
			stop("e1", "F", time.Second, models.DispositionClosed),
			stop("e2", "F", 2*time.Second, models.DispositionHold),
		}, models.StatusOnHold},
		{"resumed after hold", []models.SessionEvent{
			start("e1", "F", "A", "T", 0), stop("e1", "F", time.Second, models.DispositionHold),
			start("e2", "F", "A", "T", 2*time.Second),
		}, models.StatusInProgress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveStatus(tt.events); got != tt.want {
				t.Errorf("DeriveStatus = %s, want %s", got, tt.want)
			}

			l := New(NewMemoryStore())
			for _, ev := range tt.events {
				mustAppend(t, l, ev)
			}
			got, err := l.Status("F")
			if err != nil {
				t.Fatalf("Status: %v", err)
			}
			if got != tt.want {
				t.Errorf("Status = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestStatus_IndexRebuiltFromStore(t *testing.T) {
	store := NewMemoryStore()
	first := New(store)
	mustAppend(t, first, start("e1", "F", "A", "T", 0))
	ev := stop("e1", "F", time.Minute, models.DispositionClosed)
	ev.EvidenceRef = "evidence/abc.jpg"
	mustAppend(t, first, ev)

	// A fresh ledger over the same store derives the same state.
	second := New(store)
	status, err := second.Status("F")
	if err != nil || status != models.StatusClosed {
		t.Fatalf("Status = %s, %v; want CLOSED", status, err)
	}
	ref, _ := second.Evidence("F")
	if ref != "evidence/abc.jpg" {
		t.Errorf("Evidence = %q, want evidence/abc.jpg", ref)
	}
}

func TestStatus_SeesAppendsFromAnotherLedger(t *testing.T) {
	store := NewMemoryStore()
	reader := New(store)
	writer := New(store)

	if status, _ := reader.Status("F"); status != models.StatusOpen {
		t.Fatalf("initial Status = %s, want OPEN", status)
	}

	mustAppend(t, writer, start("e1", "F", "A", "T", 0))
	if status, _ := reader.Status("F"); status != models.StatusInProgress {
		t.Fatalf("Status after foreign START = %s, want IN_PROGRESS", status)
	}

	mustAppend(t, writer, stop("e1", "F", time.Minute, models.DispositionClosed))
	if status, _ := reader.Status("F"); status != models.StatusClosed {
		t.Fatalf("Status after foreign STOP = %s, want CLOSED", status)
	}
}
