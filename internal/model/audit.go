package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActionCreateUser        = "CREATE_USER"
	ActionUpdateUser        = "UPDATE_USER"
	ActionDeleteUser        = "DELETE_USER"
	ActionCreateRole        = "CREATE_ROLE"
	ActionDeleteRole        = "DELETE_ROLE"
	ActionUpdateRolePerms   = "UPDATE_ROLE_PERMISSIONS"
	ActionCreatePrinter     = "CREATE_PRINTER"
	ActionUpdatePrinter     = "UPDATE_PRINTER"
	ActionDeletePrinter     = "DELETE_PRINTER"
	ActionPrinterStatus     = "PRINTER_STATUS"
	ActionPrinterTelemetry  = "PRINTER_TELEMETRY"
	ActionCreateSale        = "CREATE_SALE"
	ActionCompleteSale      = "COMPLETE_SALE"
	ActionCancelSale        = "CANCEL_SALE"
	ActionCreateMaintenance = "CREATE_MAINTENANCE"
	ActionAssignTechnician  = "ASSIGN_TECHNICIAN"
	ActionRecordWork        = "RECORD_WORK"
	ActionCompleteRequest   = "COMPLETE_MAINTENANCE"
	ActionCancelRequest     = "CANCEL_MAINTENANCE"
	ActionCreateItem        = "CREATE_INVENTORY_ITEM"
	ActionUpdateItem        = "UPDATE_INVENTORY_ITEM"
	ActionDeleteItem        = "DELETE_INVENTORY_ITEM"
	ActionRestockItem       = "RESTOCK_INVENTORY_ITEM"
)

// AuditLog tracks who changed what and when
type AuditLog struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID     `gorm:"type:uuid;index" json:"user_id"` // nil for system actions
	User       *User          `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL;" json:"user,omitempty"`
	Action     string         `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string         `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string         `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    datatypes.JSON `json:"details"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	assignID(&a.ID)
	return nil
}
