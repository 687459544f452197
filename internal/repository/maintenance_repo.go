package repository

import (
	"context"
	"errors"
	"time"

	"printhub/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrStaleVersion is returned when a versioned update finds the row changed since it was read
var ErrStaleVersion = errors.New("maintenance request was modified concurrently")

// MaintenanceSortColumns whitelists sort_by values
var MaintenanceSortColumns = map[string]string{
	"created_at":      "maintenance_requests.created_at",
	"updated_at":      "maintenance_requests.updated_at",
	"scheduled_date":  "maintenance_requests.scheduled_date",
	"completion_date": "maintenance_requests.completion_date",
	"priority":        "maintenance_requests.priority",
	"status":          "maintenance_requests.status",
	"total_cost":      "maintenance_requests.total_cost",
	"labor_cost":      "maintenance_requests.labor_cost",
	"issue":           "maintenance_requests.issue",
}

type MaintenanceFilter struct {
	Status       string
	Priority     string
	TechnicianID *uuid.UUID
	ClientID     *uuid.UUID
	PrinterID    *uuid.UUID
	StartDate    *time.Time // inclusive, on created_at
	EndDate      *time.Time // exclusive
	SortBy       string     // key of MaintenanceSortColumns
	SortDesc     bool
	Page         int
	Limit        int // <= 0 disables paging
}

type TechnicianLoad struct {
	TechnicianID   uuid.UUID `json:"technician_id"`
	TechnicianName string    `json:"technician_name"`
	Total          int64     `json:"total"`
	Completed      int64     `json:"completed"`
}

type MaintenanceCounts struct {
	Total      int64
	ByStatus   map[model.MaintenanceStatus]int64
	Revenue    decimal.Decimal
	Technician []TechnicianLoad
}

type MaintenanceRepository interface {
	Create(ctx context.Context, req *model.MaintenanceRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.MaintenanceRequest, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.MaintenanceRequest, error)
	SaveVersioned(ctx context.Context, req *model.MaintenanceRequest) error
	List(ctx context.Context, filter MaintenanceFilter) ([]model.MaintenanceRequest, int64, error)
	CountOpenForPrinter(ctx context.Context, printerID, excludeID uuid.UUID) (int64, error)
	ListOpenByUser(ctx context.Context, userID uuid.UUID) ([]model.MaintenanceRequest, error)
	DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	Counts(ctx context.Context) (*MaintenanceCounts, error)
}

type maintenanceRepository struct {
	db *gorm.DB
}

func NewMaintenanceRepository(db *gorm.DB) MaintenanceRepository {
	return &maintenanceRepository{db: db}
}

func (r *maintenanceRepository) Create(ctx context.Context, req *model.MaintenanceRequest) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Create(req).Error
}

func (r *maintenanceRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.MaintenanceRequest, error) {
	var req model.MaintenanceRequest
	err := GetDB(ctx, r.db).
		Preload("Printer").Preload("Client").Preload("Technician").
		First(&req, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// FindByIDForUpdate locks the request row until the surrounding transaction ends
func (r *maintenanceRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.MaintenanceRequest, error) {
	var req model.MaintenanceRequest
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// SaveVersioned writes every mutable column if the row still carries req.Version,
// then bumps req.Version. Returns ErrStaleVersion when another writer got there first.
func (r *maintenanceRepository) SaveVersioned(ctx context.Context, req *model.MaintenanceRequest) error {
	expected := req.Version
	result := GetDB(ctx, r.db).Model(&model.MaintenanceRequest{}).
		Where("id = ? AND version = ?", req.ID, expected).
		Updates(map[string]any{
			"technician_id":   req.TechnicianID,
			"issue":           req.Issue,
			"description":     req.Description,
			"priority":        req.Priority,
			"status":          req.Status,
			"scheduled_date":  req.ScheduledDate,
			"completion_date": req.CompletionDate,
			"diagnosis":       req.Diagnosis,
			"solution":        req.Solution,
			"parts_used":      req.PartsUsed,
			"labor_cost":      req.LaborCost,
			"total_cost":      req.TotalCost,
			"technical_notes": req.TechnicalNotes,
			"start_time":      req.StartTime,
			"end_time":        req.EndTime,
			"cancel_reason":   req.CancelReason,
			"version":         expected + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleVersion
	}
	req.Version = expected + 1
	return nil
}

func (r *maintenanceRepository) List(ctx context.Context, filter MaintenanceFilter) ([]model.MaintenanceRequest, int64, error) {
	var requests []model.MaintenanceRequest
	var total int64

	scope := func(tx *gorm.DB) *gorm.DB {
		if filter.Status != "" {
			tx = tx.Where("maintenance_requests.status = ?", filter.Status)
		}
		if filter.Priority != "" {
			tx = tx.Where("maintenance_requests.priority = ?", filter.Priority)
		}
		if filter.TechnicianID != nil {
			tx = tx.Where("maintenance_requests.technician_id = ?", *filter.TechnicianID)
		}
		if filter.ClientID != nil {
			tx = tx.Where("maintenance_requests.client_id = ?", *filter.ClientID)
		}
		if filter.PrinterID != nil {
			tx = tx.Where("maintenance_requests.printer_id = ?", *filter.PrinterID)
		}
		if filter.StartDate != nil {
			tx = tx.Where("maintenance_requests.created_at >= ?", *filter.StartDate)
		}
		if filter.EndDate != nil {
			tx = tx.Where("maintenance_requests.created_at < ?", *filter.EndDate)
		}
		return tx
	}

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.MaintenanceRequest{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column, ok := MaintenanceSortColumns[filter.SortBy]
	if !ok {
		column = MaintenanceSortColumns["created_at"]
	}

	query := db.Scopes(scope).
		Preload("Printer").Preload("Client").Preload("Technician").
		Order(clause.OrderByColumn{Column: clause.Column{Name: column, Raw: true}, Desc: filter.SortDesc})
	if filter.Limit > 0 {
		query = query.Offset((filter.Page - 1) * filter.Limit).Limit(filter.Limit)
	}
	if err := query.Find(&requests).Error; err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

var openStatuses = []model.MaintenanceStatus{model.MaintenancePending, model.MaintenanceInProgress}

// CountOpenForPrinter counts open requests with a technician assigned on the
// printer, leaving out excludeID
func (r *maintenanceRepository) CountOpenForPrinter(ctx context.Context, printerID, excludeID uuid.UUID) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.MaintenanceRequest{}).
		Where("printer_id = ? AND id <> ?", printerID, excludeID).
		Where("technician_id IS NOT NULL AND status IN ?", openStatuses).
		Count(&count).Error
	return count, err
}

// ListOpenByUser returns assigned open requests where the user is the client or the technician
func (r *maintenanceRepository) ListOpenByUser(ctx context.Context, userID uuid.UUID) ([]model.MaintenanceRequest, error) {
	var requests []model.MaintenanceRequest
	err := GetDB(ctx, r.db).
		Where("client_id = ? OR technician_id = ?", userID, userID).
		Where("technician_id IS NOT NULL AND status IN ?", openStatuses).
		Order("created_at").
		Find(&requests).Error
	return requests, err
}

// DeleteByUser removes requests where the user is the client or the technician
func (r *maintenanceRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	result := GetDB(ctx, r.db).
		Where("client_id = ? OR technician_id = ?", userID, userID).
		Delete(&model.MaintenanceRequest{})
	return result.RowsAffected, result.Error
}

func (r *maintenanceRepository) Counts(ctx context.Context) (*MaintenanceCounts, error) {
	db := GetDB(ctx, r.db)
	counts := &MaintenanceCounts{
		ByStatus: make(map[model.MaintenanceStatus]int64),
		Revenue:  decimal.Zero,
	}

	var statusRows []struct {
		Status model.MaintenanceStatus
		Count  int64
	}
	if err := db.Model(&model.MaintenanceRequest{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&statusRows).Error; err != nil {
		return nil, err
	}
	for _, row := range statusRows {
		counts.ByStatus[row.Status] = row.Count
		counts.Total += row.Count
	}

	var completed []model.MaintenanceRequest
	if err := db.Select("total_cost").Where("status = ?", model.MaintenanceCompleted).Find(&completed).Error; err != nil {
		return nil, err
	}
	for _, c := range completed {
		counts.Revenue = counts.Revenue.Add(c.TotalCost)
	}

	if err := db.Model(&model.MaintenanceRequest{}).
		Select("users.id as technician_id, users.name as technician_name, COUNT(*) as total, "+
			"SUM(CASE WHEN maintenance_requests.status = ? THEN 1 ELSE 0 END) as completed", model.MaintenanceCompleted).
		Joins("JOIN users ON users.id = maintenance_requests.technician_id").
		Group("users.id, users.name").
		Order("total desc").
		Scan(&counts.Technician).Error; err != nil {
		return nil, err
	}

	return counts, nil
}
