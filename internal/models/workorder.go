package models

import (
	"time"

	"gorm.io/gorm"
)

// DefaultAircraftReg is filled into new work orders until the planner edits it.
const DefaultAircraftReg = "PK-GLL"

// WorkOrder groups the findings raised against one component or aircraft visit
type WorkOrder struct {
	ID        string         `gorm:"primarykey" json:"id"` // six-digit internal id
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// General data
	WONumber    string `json:"wo_number"`
	PartDesc    string `json:"part_desc"`
	PartNumber  string `json:"pn"`
	Serial      string `json:"sn"`
	AircraftReg string `json:"ac_reg"`
	Customer    string `json:"customer"`

	// Relationships
	Findings []Finding `gorm:"foreignKey:WorkOrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"findings"`
}

// Finding is a single discrepancy tracked within a work order
type Finding struct {
	ID          string    `gorm:"primarykey" json:"id"` // <work order>-<NN>
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	WorkOrderID string    `gorm:"not null;index" json:"work_order_id"`
	DisplayID   string    `json:"display_id"` // NN
	Seq         int       `gorm:"not null" json:"seq"`

	Description string `json:"description"`
	Action      string `json:"action"`
	EvidenceRef string `json:"evidence_ref"`

	// Status mirrors the ledger-derived status for listing; it is never read
	// to make a session decision.
	Status Status `gorm:"default:OPEN" json:"status"`

	// Relationships
	Materials []Material `gorm:"foreignKey:FindingID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"materials"`
}

// Material is a consumed part or consumable booked against a finding
type Material struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	FindingID string    `gorm:"not null;index" json:"finding_id"`

	Name         string `gorm:"not null" json:"name"` // name or part number
	Description  string `json:"description"`
	Quantity     string `gorm:"not null" json:"qty"`
	Unit         string `json:"unit"`
	Availability string `json:"availability"` // e.g. "in stock", "ordered", "AOG"
}
