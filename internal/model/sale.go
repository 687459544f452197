package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	SaleTypeSale   = "sale"
	SaleTypeRental = "rental"
)

type SaleStatus string

const (
	SalePending   SaleStatus = "pending"
	SaleCompleted SaleStatus = "completed"
	SaleCancelled SaleStatus = "cancelled"
)

const (
	PaymentCash     = "cash"
	PaymentCard     = "card"
	PaymentTransfer = "transfer"
)

// Sale is a sale or rental of one printer to one client
type Sale struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	PrinterID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"printer_id"`
	Printer       *Printer        `gorm:"foreignKey:PrinterID" json:"printer,omitempty"`
	ClientID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"client_id"`
	Client        *User           `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Type          string          `gorm:"type:varchar(20);not null" json:"type"`
	Amount        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	PaymentMethod string          `gorm:"type:varchar(20);not null" json:"payment_method"`
	Status        SaleStatus      `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	InvoiceNumber string          `gorm:"type:varchar(100)" json:"invoice_number"`
	RentalStart   *time.Time      `json:"rental_start,omitempty"`
	RentalEnd     *time.Time      `json:"rental_end,omitempty"`
	Notes         string          `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (s *Sale) BeforeCreate(tx *gorm.DB) error {
	assignID(&s.ID)
	return nil
}
