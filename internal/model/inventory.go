package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	CategoryInk   = "ink"
	CategorySpare = "spare"
	CategoryPaper = "paper"
)

// InventoryItem is a spare part or consumable kept in stock
type InventoryItem struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string          `gorm:"type:varchar(255);not null" json:"name"`
	SKU          string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"sku"`
	Category     string          `gorm:"type:varchar(20);not null;index" json:"category"`
	Brand        string          `gorm:"type:varchar(100)" json:"brand"`
	Quantity     int             `gorm:"type:int;default:0;not null" json:"quantity"`
	MinQuantity  int             `gorm:"type:int;default:0;not null" json:"min_quantity"`
	CostPrice    decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"cost_price"`
	SellingPrice decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"selling_price"`
	Location     string          `gorm:"type:varchar(255)" json:"location"`
	Supplier     string          `gorm:"type:varchar(255)" json:"supplier"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (i *InventoryItem) BeforeCreate(tx *gorm.DB) error {
	assignID(&i.ID)
	return nil
}

// LowStock reports whether the item is at or below its reorder threshold
func (i *InventoryItem) LowStock() bool {
	return i.Quantity <= i.MinQuantity
}

const (
	MovementIn     = "IN"
	MovementOut    = "OUT"
	MovementAdjust = "ADJUST"
)

// StockMovement records every change to an item's quantity
type StockMovement struct {
	ID                   uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ItemID               uuid.UUID  `gorm:"type:uuid;not null;index" json:"item_id"`
	MaintenanceRequestID *uuid.UUID `gorm:"type:uuid;index" json:"maintenance_request_id"` // nil for manual restocks
	Type                 string     `gorm:"type:varchar(10);not null" json:"type"`
	QuantityChanged      int        `gorm:"type:int;not null" json:"quantity_changed"`
	StockAfter           int        `gorm:"type:int;not null" json:"stock_after"`
	Note                 string     `gorm:"type:text" json:"note"`
	CreatedAt            time.Time  `gorm:"index" json:"created_at"`
}

func (m *StockMovement) BeforeCreate(tx *gorm.DB) error {
	assignID(&m.ID)
	return nil
}
