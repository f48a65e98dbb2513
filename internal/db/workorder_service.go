package db

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/balkashynov/hangar/internal/models"
)

var (
	// ErrNotFound is returned when a work order, finding or material line
	// does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput marks a request the caller has to correct.
	ErrInvalidInput = errors.New("invalid input")
)

// DefaultFindingsPerWorkOrder is the size of the batch created with a work order
const DefaultFindingsPerWorkOrder = 5

// CreateWorkOrderRequest holds the general data of a new work order
type CreateWorkOrderRequest struct {
	WONumber    string
	PartDesc    string
	PartNumber  string
	Serial      string
	AircraftReg string
	Customer    string
	Findings    int // batch size; 0 uses DefaultFindingsPerWorkOrder
}

// CreateWorkOrder creates a work order together with its batch of findings
func CreateWorkOrder(conn *gorm.DB, req CreateWorkOrderRequest, now time.Time) (*models.WorkOrder, error) {
	count := req.Findings
	if count <= 0 {
		count = DefaultFindingsPerWorkOrder
	}
	reg := strings.TrimSpace(req.AircraftReg)
	if reg == "" {
		reg = models.DefaultAircraftReg
	}

	var wo models.WorkOrder
	err := conn.Transaction(func(tx *gorm.DB) error {
		id, err := nextWorkOrderID(tx, now)
		if err != nil {
			return err
		}
		wo = models.WorkOrder{
			ID:          id,
			WONumber:    strings.TrimSpace(req.WONumber),
			PartDesc:    strings.TrimSpace(req.PartDesc),
			PartNumber:  strings.TrimSpace(req.PartNumber),
			Serial:      strings.TrimSpace(req.Serial),
			AircraftReg: strings.ToUpper(reg),
			Customer:    strings.TrimSpace(req.Customer),
		}
		for i := 1; i <= count; i++ {
			wo.Findings = append(wo.Findings, newFinding(id, i))
		}
		return tx.Create(&wo).Error
	})
	if err != nil {
		return nil, fmt.Errorf("db: create work order: %w", err)
	}
	return &wo, nil
}

// nextWorkOrderID derives a six-digit id from the creation time, stepping
// forward past ids already taken.
func nextWorkOrderID(tx *gorm.DB, now time.Time) (string, error) {
	n := now.UnixMilli() % 1000000
	for range 1000 {
		id := fmt.Sprintf("%06d", n)
		var count int64
		if err := tx.Unscoped().Model(&models.WorkOrder{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return id, nil
		}
		n = (n + 1) % 1000000
	}
	return "", fmt.Errorf("no free work order id near %06d", now.UnixMilli()%1000000)
}

func newFinding(woID string, seq int) models.Finding {
	display := fmt.Sprintf("%02d", seq)
	return models.Finding{
		ID:          woID + "-" + display,
		WorkOrderID: woID,
		DisplayID:   display,
		Seq:         seq,
		Status:      models.StatusOpen,
	}
}

// AddFinding appends an ad hoc finding to a work order
func AddFinding(conn *gorm.DB, woID string) (*models.Finding, error) {
	var f models.Finding
	err := conn.Transaction(func(tx *gorm.DB) error {
		var wo models.WorkOrder
		if err := tx.First(&wo, "id = ?", woID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("work order %s %w", woID, ErrNotFound)
			}
			return err
		}
		var maxSeq int
		if err := tx.Model(&models.Finding{}).Where("work_order_id = ?", woID).
			Select("COALESCE(MAX(seq), 0)").Scan(&maxSeq).Error; err != nil {
			return err
		}
		f = newFinding(woID, maxSeq+1)
		return tx.Create(&f).Error
	})
	if err != nil {
		return nil, fmt.Errorf("db: add finding: %w", err)
	}
	return &f, nil
}

// GetWorkOrder retrieves a work order with findings and materials
func GetWorkOrder(conn *gorm.DB, id string) (*models.WorkOrder, error) {
	var wo models.WorkOrder
	err := conn.Preload("Findings", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("seq ASC")
	}).Preload("Findings.Materials", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("id ASC")
	}).First(&wo, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("work order %s %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("db: get work order %s: %w", id, err)
	}
	return &wo, nil
}

// ListWorkOrders returns work orders newest first
func ListWorkOrders(conn *gorm.DB) ([]models.WorkOrder, error) {
	var wos []models.WorkOrder
	err := conn.Preload("Findings", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("seq ASC")
	}).Order("created_at DESC").Find(&wos).Error
	if err != nil {
		return nil, fmt.Errorf("db: list work orders: %w", err)
	}
	return wos, nil
}

// generalDataColumns maps user-facing field names to columns
var generalDataColumns = map[string]string{
	"wo_number": "wo_number",
	"part_desc": "part_desc",
	"pn":        "part_number",
	"sn":        "serial",
	"ac_reg":    "aircraft_reg",
	"customer":  "customer",
}

// UpdateGeneralData sets one general data field of a work order
func UpdateGeneralData(conn *gorm.DB, woID, field, value string) error {
	column, ok := generalDataColumns[strings.ToLower(strings.TrimSpace(field))]
	if !ok {
		return fmt.Errorf("%w: unknown work order field %q", ErrInvalidInput, field)
	}
	value = strings.TrimSpace(value)
	if column == "aircraft_reg" {
		value = strings.ToUpper(value)
	}
	res := conn.Model(&models.WorkOrder{}).Where("id = ?", woID).Update(column, value)
	if res.Error != nil {
		return fmt.Errorf("db: update work order %s: %w", woID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("work order %s %w", woID, ErrNotFound)
	}
	return nil
}

// GetFinding retrieves a finding with its materials
func GetFinding(conn *gorm.DB, id string) (*models.Finding, error) {
	var f models.Finding
	err := conn.Preload("Materials", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("id ASC")
	}).First(&f, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("finding %s %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("db: get finding %s: %w", id, err)
	}
	return &f, nil
}

// UpdateFindingRequest carries the editable free-text fields. Nil leaves a
// field unchanged.
type UpdateFindingRequest struct {
	Description *string
	Action      *string
}

// UpdateFinding edits a finding's description and action text
func UpdateFinding(conn *gorm.DB, id string, req UpdateFindingRequest) (*models.Finding, error) {
	updates := map[string]interface{}{}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Action != nil {
		updates["action"] = *req.Action
	}
	if len(updates) > 0 {
		res := conn.Model(&models.Finding{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return nil, fmt.Errorf("db: update finding %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, fmt.Errorf("finding %s %w", id, ErrNotFound)
		}
	}
	return GetFinding(conn, id)
}

// AddMaterial books a material line onto a finding
func AddMaterial(conn *gorm.DB, findingID string, m models.Material) (*models.Material, error) {
	m.Name = strings.TrimSpace(m.Name)
	m.Quantity = strings.TrimSpace(m.Quantity)
	if m.Name == "" || m.Quantity == "" {
		return nil, fmt.Errorf("%w: material name and quantity are required", ErrInvalidInput)
	}
	if _, err := GetFinding(conn, findingID); err != nil {
		return nil, err
	}
	m.ID = 0
	m.FindingID = findingID
	if err := conn.Create(&m).Error; err != nil {
		return nil, fmt.Errorf("db: add material to %s: %w", findingID, err)
	}
	return &m, nil
}

// RemoveMaterial deletes the material at index (0-based, insertion order)
func RemoveMaterial(conn *gorm.DB, findingID string, index int) (*models.Material, error) {
	f, err := GetFinding(conn, findingID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(f.Materials) {
		return nil, fmt.Errorf("finding %s has no material #%d: %w", findingID, index+1, ErrNotFound)
	}
	m := f.Materials[index]
	if err := conn.Delete(&models.Material{}, m.ID).Error; err != nil {
		return nil, fmt.Errorf("db: remove material from %s: %w", findingID, err)
	}
	return &m, nil
}

// SetFindingEvidence stores the evidence reference on the finding row
func SetFindingEvidence(conn *gorm.DB, findingID, ref string) error {
	res := conn.Model(&models.Finding{}).Where("id = ?", findingID).Update("evidence_ref", ref)
	if res.Error != nil {
		return fmt.Errorf("db: set evidence on %s: %w", findingID, res.Error)
	}
	return nil
}

// SyncFindingStatus mirrors the ledger-derived status onto the finding row
func SyncFindingStatus(conn *gorm.DB, findingID string, status models.Status) error {
	res := conn.Model(&models.Finding{}).Where("id = ?", findingID).Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("db: sync status on %s: %w", findingID, res.Error)
	}
	return nil
}
