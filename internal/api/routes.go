package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/balkashynov/hangar/internal/db"
	"github.com/balkashynov/hangar/internal/engine"
	"github.com/balkashynov/hangar/internal/ledger"
	"github.com/balkashynov/hangar/internal/models"
	"github.com/balkashynov/hangar/internal/parser"
	"github.com/balkashynov/hangar/internal/service"
	"github.com/balkashynov/hangar/internal/timeutil"
)

type handlers struct {
	svc                  *service.Service
	findingsPerWorkOrder int
}

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, h *handlers) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	api := router.Group("/api")

	api.GET("/work-orders", h.listWorkOrders)
	api.POST("/work-orders", h.createWorkOrder)
	api.GET("/work-orders/:id", h.getWorkOrder)
	api.POST("/work-orders/:id/findings", h.addFinding)

	api.GET("/sessions/active", h.allActive)

	f := api.Group("/findings/:id")
	f.GET("", h.overview)
	f.GET("/status", h.status)
	f.GET("/sessions/active", h.activeSessions)
	f.GET("/history", h.history)
	f.GET("/duration", h.duration)
	f.GET("/conflicts", h.conflicts)
	f.POST("/sessions/start", h.start)
	f.POST("/sessions/stop", h.stop)
	f.POST("/materials", h.addMaterial)
	f.DELETE("/materials/:index", h.removeMaterial)

	api.POST("/evidence", h.uploadEvidence)
}

// writeError maps engine rejections onto HTTP status codes. Rejections carry
// the blocking sessions so the terminal can offer join/wait.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	body := gin.H{"error": err.Error()}
	switch {
	case errors.Is(err, engine.ErrMissingInput):
		status = http.StatusBadRequest
	case errors.Is(err, db.ErrInvalidInput):
		status = http.StatusBadRequest
		body["kind"] = db.ErrInvalidInput.Error()
	case errors.Is(err, ledger.ErrNegativeDuration):
		status = http.StatusUnprocessableEntity
		body["kind"] = ledger.ErrNegativeDuration.Error()
	case errors.Is(err, ledger.ErrInvalidTransition):
		status = http.StatusUnprocessableEntity
		body["kind"] = ledger.ErrInvalidTransition.Error()
	case errors.Is(err, engine.ErrConflict),
		errors.Is(err, engine.ErrDuplicateSession),
		errors.Is(err, engine.ErrSessionLocked),
		errors.Is(err, engine.ErrFindingClosed):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrNoActiveSession):
		status = http.StatusNotFound
	case errors.Is(err, db.ErrNotFound):
		status = http.StatusNotFound
	}
	var rej *engine.RejectionError
	if errors.As(err, &rej) {
		body["kind"] = rej.Kind.Error()
		if len(rej.Blocking) > 0 {
			body["blocking"] = rej.Blocking
		}
	}
	c.JSON(status, body)
}

func findingParam(c *gin.Context) (string, bool) {
	id, err := parser.NormalizeFindingID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return id, true
}

func (h *handlers) listWorkOrders(c *gin.Context) {
	wos, err := db.ListWorkOrders(h.svc.DB())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, wos)
}

type createWorkOrderBody struct {
	WONumber    string `json:"wo_number"`
	PartDesc    string `json:"part_desc"`
	PartNumber  string `json:"pn"`
	Serial      string `json:"sn"`
	AircraftReg string `json:"ac_reg"`
	Customer    string `json:"customer"`
	Findings    int    `json:"findings"`
}

func (h *handlers) createWorkOrder(c *gin.Context) {
	var body createWorkOrderBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if body.Findings == 0 {
		body.Findings = h.findingsPerWorkOrder
	}
	wo, err := db.CreateWorkOrder(h.svc.DB(), db.CreateWorkOrderRequest{
		WONumber:    body.WONumber,
		PartDesc:    body.PartDesc,
		PartNumber:  body.PartNumber,
		Serial:      body.Serial,
		AircraftReg: body.AircraftReg,
		Customer:    body.Customer,
		Findings:    body.Findings,
	}, h.svc.Engine().Now())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, wo)
}

func (h *handlers) getWorkOrder(c *gin.Context) {
	wo, err := db.GetWorkOrder(h.svc.DB(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, wo)
}

func (h *handlers) addFinding(c *gin.Context) {
	f, err := db.AddFinding(h.svc.DB(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

func (h *handlers) overview(c *gin.Context) {
	id, ok := findingParam(c)
	if !ok {
		return
	}
	ov, err := h.svc.Overview(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ov)
}

func (h *handlers) status(c *gin.Context) {
	id, ok := findingParam(c)
	if !ok {
		return
	}
	status, err := h.svc.Engine().Status(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"finding_id": id, "status": status})
}

func (h *handlers) activeSessions(c *gin.Context) {
	id, ok := findingParam(c)
	if !ok {
		return
	}
	active, err := h.svc.Engine().ActiveSessions(id)
	if err != nil {
		writeError(c, err)
		return
	}
	now := h.svc.Engine().Now()
	out := make([]gin.H, 0, len(active))
	for _, s := range active {
		out = append(out, gin.H{
			"session": s,
			"elapsed": timeutil.FormatClock(s.Elapsed(now)),
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) allActive(c *gin.Context) {
	active, err := h.svc.Engine().AllActive()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, active)
}

func (h *handlers) history(c *gin.Context) {
	id, ok := findingParam(c)
	if !ok {
		return
	}
	hist, err := h.svc.Engine().History(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, hist)
}

func (h *handlers) duration(c *gin.Context) {
	id, ok := findingParam(c)
	if !ok {
		return
	}
	total, err := h.svc.Engine().TotalDuration(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"finding_id": id,
		"seconds":    int64(total.Duration / time.Second),
		"clock":      timeutil.FormatClock(total.Duration),
		"man_hours":  timeutil.ManHours(total.Duration),
		"sessions":   total.Sessions,
	})
}

func (h *handlers) conflicts(c *gin.Context) {
	id, ok := findingParam(c)
	if !ok {
		return
	}
	emp := parser.NormalizeToken(c.Query("employee"))
	conflicts, err := h.svc.Engine().CheckConflicts(id, emp)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"finding_id":            id,
		"single_global_session": h.svc.Engine().Config().SingleGlobalSession,
		"active":                conflicts,
	})
}

type startBody struct {
	EmployeeID string `json:"employee_id"`
	TaskCode   string `json:"task_code"`
	Timestamp  string `json:"timestamp"`
	JoinAnyway bool   `json:"join_anyway"`
}

func (h *handlers) start(c *gin.Context) {
	id, ok := findingParam(c)
	if !ok {
		return
	}
	var body startBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ts, ok := h.timestamp(c, body.Timestamp)
	if !ok {
		return
	}
	req := engine.StartRequest{
		FindingID:  id,
		EmployeeID: parser.NormalizeToken(body.EmployeeID),
		TaskCode:   parser.NormalizeToken(body.TaskCode),
		Timestamp:  ts,
		JoinAnyway: body.JoinAnyway,
	}
	res, err := h.svc.Start(req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

type stopBody struct {
	ExecutionID string `json:"execution_id" form:"execution_id"`
	EmployeeID  string `json:"employee_id" form:"employee_id"`
	Disposition string `json:"disposition" form:"disposition"`
	EvidenceRef string `json:"evidence_ref" form:"evidence_ref"`
	Timestamp   string `json:"timestamp" form:"timestamp"`
}

// timestamp parses an optional event time. Empty leaves the zero time so
// the engine stamps the event with its own clock.
func (h *handlers) timestamp(c *gin.Context, raw string) (time.Time, bool) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, true
	}
	ts, err := parser.ParseTimestamp(raw, h.svc.Engine().Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": engine.ErrMissingInput.Error()})
		return time.Time{}, false
	}
	return ts, true
}

// stop accepts JSON, or multipart form data with an optional "photo" file
// that is uploaded as evidence.
func (h *handlers) stop(c *gin.Context) {
	id, ok := findingParam(c)
	if !ok {
		return
	}
	var body stopBody
	if err := c.ShouldBind(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	disp, err := parser.ParseDisposition(body.Disposition)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": engine.ErrMissingInput.Error()})
		return
	}
	ts, ok := h.timestamp(c, body.Timestamp)
	if !ok {
		return
	}
	req := engine.StopRequest{
		ExecutionID: body.ExecutionID,
		FindingID:   id,
		EmployeeID:  parser.NormalizeToken(body.EmployeeID),
		Timestamp:   ts,
		Disposition: disp,
		EvidenceRef: body.EvidenceRef,
	}

	var photo *service.Photo
	if fh, err := c.FormFile("photo"); err == nil {
		file, err := fh.Open()
		if err != nil {
			writeError(c, err)
			return
		}
		defer file.Close()
		photo = &service.Photo{Filename: fh.Filename, Body: file}
	}

	res, err := h.svc.Stop(c.Request.Context(), req, photo)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) addMaterial(c *gin.Context) {
	id, ok := findingParam(c)
	if !ok {
		return
	}
	var m models.Material
	if err := c.ShouldBindJSON(&m); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	created, err := db.AddMaterial(h.svc.DB(), id, m)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *handlers) removeMaterial(c *gin.Context) {
	id, ok := findingParam(c)
	if !ok {
		return
	}
	var idx struct {
		Index int `uri:"index" binding:"min=1"`
	}
	if err := c.ShouldBindUri(&idx); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "material index must be a positive number"})
		return
	}
	removed, err := db.RemoveMaterial(h.svc.DB(), id, idx.Index-1)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, removed)
}

func (h *handlers) uploadEvidence(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field \"file\" is required"})
		return
	}
	file, err := fh.Open()
	if err != nil {
		writeError(c, err)
		return
	}
	defer file.Close()
	ref, err := h.svc.Upload(c.Request.Context(), fh.Filename, file)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ref": ref})
}
