package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type MaintenanceStatus string

const (
	MaintenancePending    MaintenanceStatus = "pending"
	MaintenanceInProgress MaintenanceStatus = "in_progress"
	MaintenanceCompleted  MaintenanceStatus = "completed"
	MaintenanceCancelled  MaintenanceStatus = "cancelled"
)

// Terminal reports whether no further transition is accepted
func (s MaintenanceStatus) Terminal() bool {
	return s == MaintenanceCompleted || s == MaintenanceCancelled
}

const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// PartUsage is one consumed spare part recorded on a request
type PartUsage struct {
	PartID    uuid.UUID       `json:"part_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// MaintenanceRequest is a work order tracking a printer issue from report to resolution
type MaintenanceRequest struct {
	ID             uuid.UUID                     `gorm:"type:uuid;primaryKey" json:"id"`
	PrinterID      uuid.UUID                     `gorm:"type:uuid;not null;index" json:"printer_id"`
	Printer        *Printer                      `gorm:"foreignKey:PrinterID" json:"printer,omitempty"`
	ClientID       uuid.UUID                     `gorm:"type:uuid;not null;index" json:"client_id"`
	Client         *User                         `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	TechnicianID   *uuid.UUID                    `gorm:"type:uuid;index" json:"technician_id"`
	Technician     *User                         `gorm:"foreignKey:TechnicianID" json:"technician,omitempty"`
	Issue          string                        `gorm:"type:text;not null" json:"issue"`
	Description    string                        `gorm:"type:text" json:"description"`
	Priority       string                        `gorm:"type:varchar(20);not null;default:'normal';index" json:"priority"`
	Status         MaintenanceStatus             `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ScheduledDate  *time.Time                    `json:"scheduled_date"`
	CompletionDate *time.Time                    `json:"completion_date"`
	Diagnosis      string                        `gorm:"type:text" json:"diagnosis"`
	Solution       string                        `gorm:"type:text" json:"solution"`
	PartsUsed      datatypes.JSONSlice[PartUsage] `json:"parts_used"`
	LaborCost      decimal.Decimal               `gorm:"type:numeric(12,2);not null;default:0" json:"labor_cost"`
	TotalCost      decimal.Decimal               `gorm:"type:numeric(12,2);not null;default:0" json:"total_cost"`
	TechnicalNotes string                        `gorm:"type:text" json:"technical_notes"`
	StartTime      *time.Time                    `json:"start_time"`
	EndTime        *time.Time                    `json:"end_time"`
	CancelReason   string                        `gorm:"type:text" json:"cancel_reason,omitempty"`
	Version        int                           `gorm:"not null;default:1" json:"version"`
	CreatedAt      time.Time                     `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time                     `json:"updated_at"`
}

func (m *MaintenanceRequest) BeforeCreate(tx *gorm.DB) error {
	assignID(&m.ID)
	if m.Version == 0 {
		m.Version = 1
	}
	return nil
}

// ComputeTotalCost returns labor plus the sum of quantity times unit price
func ComputeTotalCost(labor decimal.Decimal, parts []PartUsage) decimal.Decimal {
	total := labor
	for _, p := range parts {
		total = total.Add(p.UnitPrice.Mul(decimal.NewFromInt(int64(p.Quantity))))
	}
	return total
}
