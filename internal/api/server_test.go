package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/balkashynov/hangar/internal/db"
	"github.com/balkashynov/hangar/internal/engine"
	"github.com/balkashynov/hangar/internal/evidence"
	"github.com/balkashynov/hangar/internal/ledger"
	"github.com/balkashynov/hangar/internal/models"
	"github.com/balkashynov/hangar/internal/service"
	"github.com/balkashynov/hangar/internal/timeutil"
)

var t0 = time.Date(2024, 5, 14, 7, 0, 0, 0, time.UTC)

type fixture struct {
	router http.Handler
	clock  *timeutil.ManualClock
	wo     *models.WorkOrder
}

func newFixture(t *testing.T, cfg engine.Config) *fixture {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, _ := conn.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	clock := timeutil.NewManualClock(t0)
	eng, err := engine.New(engine.Opts{
		Ledger: ledger.New(db.NewEventStore(conn)),
		Config: cfg,
		Clock:  clock,
	})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	store, err := evidence.NewDirStore(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("NewDirStore: %v", err)
	}
	wo, err := db.CreateWorkOrder(conn, db.CreateWorkOrderRequest{Findings: 2}, t0)
	if err != nil {
		t.Fatalf("CreateWorkOrder: %v", err)
	}
	svc := service.New(conn, eng, store, nil)
	return &fixture{router: NewRouter(svc, nil, 5), clock: clock, wo: wo}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t, engine.Config{})
	rec := f.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestWorkOrders_CreateAndGet(t *testing.T) {
	f := newFixture(t, engine.Config{})
	f.clock.Advance(time.Second)

	rec := f.do(t, http.MethodPost, "/api/work-orders", map[string]any{"wo_number": "WO-9", "customer": "Garuda"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body %s", rec.Code, rec.Body.String())
	}
	wo := decode[models.WorkOrder](t, rec)
	if len(wo.Findings) != 5 || wo.AircraftReg != models.DefaultAircraftReg {
		t.Fatalf("work order = %+v", wo)
	}

	rec = f.do(t, http.MethodGet, "/api/work-orders/"+wo.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	rec = f.do(t, http.MethodGet, "/api/work-orders/000000", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown work order status = %d, want 404", rec.Code)
	}
}

func TestSessions_CollaborativeFlow(t *testing.T) {
	f := newFixture(t, engine.Config{})
	fid := f.wo.Findings[0].ID
	base := "/api/findings/" + fid

	rec := f.do(t, http.MethodPost, base+"/sessions/start", map[string]any{"employee_id": "a123", "task_code": "t1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("start A status = %d body %s", rec.Code, rec.Body.String())
	}
	startA := decode[engine.StartResult](t, rec)
	if startA.Session.EmployeeID != "A123" || startA.Session.TaskCode != "T1" {
		t.Errorf("start normalized to %+v", startA.Session)
	}

	f.clock.Advance(5 * time.Second)
	rec = f.do(t, http.MethodPost, base+"/sessions/start", map[string]any{"employee_id": "B456", "task_code": "T2"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("start B without join status = %d, want 409", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["kind"] != engine.ErrConflict.Error() {
		t.Errorf("kind = %v", body["kind"])
	}
	if blocking, _ := body["blocking"].([]any); len(blocking) != 1 {
		t.Errorf("blocking = %v, want A's session", body["blocking"])
	}

	rec = f.do(t, http.MethodGet, base+"/conflicts?employee=B456", nil)
	conflicts := decode[map[string]any](t, rec)
	if active, _ := conflicts["active"].([]any); len(active) != 1 {
		t.Errorf("conflicts = %v", conflicts)
	}

	rec = f.do(t, http.MethodPost, base+"/sessions/start", map[string]any{"employee_id": "B456", "task_code": "T2", "join_anyway": true})
	if rec.Code != http.StatusCreated {
		t.Fatalf("join status = %d body %s", rec.Code, rec.Body.String())
	}

	f.clock.Advance(5 * time.Second)
	rec = f.do(t, http.MethodPost, base+"/sessions/stop", map[string]any{"execution_id": startA.ExecutionID, "disposition": "closed"})
	if rec.Code != http.StatusOK {
		t.Fatalf("stop A status = %d body %s", rec.Code, rec.Body.String())
	}
	stopA := decode[engine.StopResult](t, rec)
	if stopA.Status != models.StatusInProgress {
		t.Errorf("status after A = %s, want IN_PROGRESS", stopA.Status)
	}

	f.clock.Advance(10 * time.Second)
	rec = f.do(t, http.MethodPost, base+"/sessions/stop", map[string]any{"employee_id": "B456", "disposition": "hold"})
	if rec.Code != http.StatusOK {
		t.Fatalf("stop B status = %d body %s", rec.Code, rec.Body.String())
	}
	if got := decode[engine.StopResult](t, rec).Status; got != models.StatusOnHold {
		t.Errorf("status after B = %s, want ON_HOLD", got)
	}

	rec = f.do(t, http.MethodGet, base+"/duration", nil)
	dur := decode[map[string]any](t, rec)
	if dur["seconds"] != float64(25) || dur["clock"] != "00:00:25" {
		t.Errorf("duration = %v, want 25s", dur)
	}

	rec = f.do(t, http.MethodGet, base+"/history", nil)
	if hist := decode[[]ledger.HistoryEntry](t, rec); len(hist) != 4 {
		t.Errorf("history entries = %d, want 4", len(hist))
	}

	rec = f.do(t, http.MethodGet, base, nil)
	ov := decode[service.Overview](t, rec)
	if ov.Status != models.StatusOnHold || ov.Finding.Status != models.StatusOnHold {
		t.Errorf("overview status = %s / %s", ov.Status, ov.Finding.Status)
	}
}

func TestSessions_SingleGlobalLock(t *testing.T) {
	f := newFixture(t, engine.Config{SingleGlobalSession: true})
	first := "/api/findings/" + f.wo.Findings[0].ID
	second := "/api/findings/" + f.wo.Findings[1].ID

	rec := f.do(t, http.MethodPost, first+"/sessions/start", map[string]any{"employee_id": "A123", "task_code": "T1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("start status = %d", rec.Code)
	}
	rec = f.do(t, http.MethodPost, second+"/sessions/start", map[string]any{"employee_id": "B456", "task_code": "T2", "join_anyway": true})
	if rec.Code != http.StatusConflict {
		t.Fatalf("second start status = %d, want 409", rec.Code)
	}
	if body := decode[map[string]any](t, rec); body["kind"] != engine.ErrSessionLocked.Error() {
		t.Errorf("kind = %v", body["kind"])
	}

	rec = f.do(t, http.MethodGet, "/api/sessions/active", nil)
	if active := decode[[]ledger.Session](t, rec); len(active) != 1 {
		t.Errorf("active = %d, want 1", len(active))
	}
}

func TestSessions_ErrorMapping(t *testing.T) {
	f := newFixture(t, engine.Config{})
	base := "/api/findings/" + f.wo.Findings[0].ID
	other := "/api/findings/" + f.wo.Findings[1].ID
	rec := f.do(t, http.MethodPost, other+"/sessions/start",
		map[string]any{"employee_id": "C789", "task_code": "T3", "timestamp": "2024-05-14T10:00:00Z"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("start = %d: %s", rec.Code, rec.Body.String())
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
		kind   string
	}{
		{"bad finding ref", http.MethodGet, "/api/findings/abc/status", nil, http.StatusBadRequest, ""},
		{"unknown finding", http.MethodPost, "/api/findings/999999-01/sessions/start", map[string]any{"employee_id": "A", "task_code": "T"}, http.StatusNotFound, ""},
		{"missing task", http.MethodPost, base + "/sessions/start", map[string]any{"employee_id": "A"}, http.StatusBadRequest, ""},
		{"bad timestamp", http.MethodPost, base + "/sessions/start", map[string]any{"employee_id": "A", "task_code": "T", "timestamp": "yesterday-ish"}, http.StatusBadRequest, ""},
		{"stop nothing open", http.MethodPost, base + "/sessions/stop", map[string]any{"employee_id": "A", "disposition": "progress"}, http.StatusNotFound, ""},
		{"bad disposition", http.MethodPost, base + "/sessions/stop", map[string]any{"employee_id": "A", "disposition": "finished?"}, http.StatusBadRequest, ""},
		{"stop before start", http.MethodPost, other + "/sessions/stop", map[string]any{"employee_id": "C789", "disposition": "progress", "timestamp": "2024-05-14T09:00:00Z"}, http.StatusUnprocessableEntity, ledger.ErrNegativeDuration.Error()},
		{"material without name", http.MethodPost, base + "/materials", map[string]any{"qty": "2"}, http.StatusBadRequest, db.ErrInvalidInput.Error()},
		{"material on unknown finding", http.MethodPost, "/api/findings/999999-01/materials", map[string]any{"name": "Rivet", "qty": "2"}, http.StatusNotFound, ""},
		{"unknown work order finding", http.MethodPost, "/api/work-orders/999999/findings", nil, http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.method, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
			if tt.kind != "" {
				if body := decode[map[string]any](t, rec); body["kind"] != tt.kind {
					t.Errorf("kind = %v, want %q", body["kind"], tt.kind)
				}
			}
		})
	}

	// The rejected stop left the session open.
	rec = f.do(t, http.MethodGet, other+"/sessions/active", nil)
	if !strings.Contains(rec.Body.String(), "C789") {
		t.Errorf("active after rejected stop = %s, want C789 still open", rec.Body.String())
	}
}

func TestSessions_ClosedRejectsStart(t *testing.T) {
	f := newFixture(t, engine.Config{})
	base := "/api/findings/" + f.wo.Findings[0].ID

	f.do(t, http.MethodPost, base+"/sessions/start", map[string]any{"employee_id": "A123", "task_code": "T1"})
	f.clock.Advance(time.Minute)
	rec := f.do(t, http.MethodPost, base+"/sessions/stop", map[string]any{"employee_id": "A123", "disposition": "closed"})
	res := decode[engine.StopResult](t, rec)
	if res.Status != models.StatusClosed || !res.EvidenceMissing {
		t.Fatalf("stop result = %+v, want CLOSED with evidence missing", res)
	}

	rec = f.do(t, http.MethodPost, base+"/sessions/start", map[string]any{"employee_id": "B456", "task_code": "T2", "join_anyway": true})
	if rec.Code != http.StatusConflict {
		t.Fatalf("start on closed status = %d, want 409", rec.Code)
	}
	if body := decode[map[string]any](t, rec); body["kind"] != engine.ErrFindingClosed.Error() {
		t.Errorf("kind = %v", body["kind"])
	}
}

func TestStop_MultipartPhoto(t *testing.T) {
	f := newFixture(t, engine.Config{})
	base := "/api/findings/" + f.wo.Findings[0].ID

	f.do(t, http.MethodPost, base+"/sessions/start", map[string]any{"employee_id": "A123", "task_code": "T1"})
	f.clock.Advance(time.Minute)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("employee_id", "A123")
	mw.WriteField("disposition", "closed")
	fw, err := mw.CreateFormFile("photo", "panel.JPG")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	fw.Write([]byte("jpeg bytes"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, base+"/sessions/stop", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d body %s", rec.Code, rec.Body.String())
	}
	res := decode[engine.StopResult](t, rec)
	if res.Status != models.StatusClosed || res.EvidenceMissing {
		t.Fatalf("stop result = %+v", res)
	}
	if !strings.HasPrefix(res.Session.EvidenceRef, evidence.RefPrefix) || !strings.HasSuffix(res.Session.EvidenceRef, ".jpg") {
		t.Errorf("evidence ref = %q", res.Session.EvidenceRef)
	}

	rec = f.do(t, http.MethodGet, base, nil)
	if ov := decode[service.Overview](t, rec); ov.EvidenceRef != res.Session.EvidenceRef {
		t.Errorf("overview evidence = %q", ov.EvidenceRef)
	}
}

func TestMaterials_Routes(t *testing.T) {
	f := newFixture(t, engine.Config{})
	base := "/api/findings/" + f.wo.Findings[0].ID

	rec := f.do(t, http.MethodPost, base+"/materials", map[string]any{"name": "MS20995C32", "qty": "2", "unit": "FT"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d body %s", rec.Code, rec.Body.String())
	}
	rec = f.do(t, http.MethodPost, base+"/materials", map[string]any{"name": "no qty"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("add without qty status = %d, want 400", rec.Code)
	}
	rec = f.do(t, http.MethodDelete, base+"/materials/1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove status = %d body %s", rec.Code, rec.Body.String())
	}
	rec = f.do(t, http.MethodDelete, base+"/materials/1", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("remove missing status = %d", rec.Code)
	}
}
