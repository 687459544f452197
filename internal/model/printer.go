package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PrinterStatus string

const (
	PrinterAvailable   PrinterStatus = "available"
	PrinterRented      PrinterStatus = "rented"
	PrinterMaintenance PrinterStatus = "maintenance"
	PrinterSold        PrinterStatus = "sold"
)

func (s PrinterStatus) Valid() bool {
	switch s {
	case PrinterAvailable, PrinterRented, PrinterMaintenance, PrinterSold:
		return true
	}
	return false
}

const (
	PrinterTypeColor      = "color"
	PrinterTypeMonochrome = "monochrome"
)

const (
	ConditionNew         = "new"
	ConditionUsed        = "used"
	ConditionRefurbished = "refurbished"
)

// Printer is a physical asset the company sells, rents and services
type Printer struct {
	ID           uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	Model        string        `gorm:"type:varchar(255);not null" json:"model"`
	SerialNumber string        `gorm:"type:varchar(100);uniqueIndex;not null" json:"serial_number"`
	Type         string        `gorm:"type:varchar(20);not null" json:"type"`
	Status       PrinterStatus `gorm:"type:varchar(20);not null;default:'available';index" json:"status"`
	Condition    string        `gorm:"type:varchar(20);not null;default:'new'" json:"condition"`
	Brand        string        `gorm:"type:varchar(100)" json:"brand"`
	Location     string        `gorm:"type:varchar(255)" json:"location"`
	Address      string        `gorm:"type:varchar(255)" json:"address"` // network address used for telemetry, e.g. snmp://10.0.0.5

	InkC  int `gorm:"default:0" json:"ink_c"`
	InkM  int `gorm:"default:0" json:"ink_m"`
	InkY  int `gorm:"default:0" json:"ink_y"`
	InkK  int `gorm:"default:0" json:"ink_k"`
	InkBW int `gorm:"column:ink_bw;default:0" json:"ink_bw"`

	DrumC  int `gorm:"default:0" json:"drum_c"`
	DrumM  int `gorm:"default:0" json:"drum_m"`
	DrumY  int `gorm:"default:0" json:"drum_y"`
	DrumK  int `gorm:"default:0" json:"drum_k"`
	DrumBW int `gorm:"column:drum_bw;default:0" json:"drum_bw"`

	CounterBW    int64 `gorm:"column:counter_bw;default:0" json:"counter_bw"`
	CounterColor int64 `gorm:"default:0" json:"counter_color"`
	CounterTotal int64 `gorm:"default:0" json:"counter_total"`

	LastPolledAt *time.Time `json:"last_polled_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (p *Printer) BeforeCreate(tx *gorm.DB) error {
	assignID(&p.ID)
	return nil
}
