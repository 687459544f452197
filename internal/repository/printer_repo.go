package repository

import (
	"context"
	"strings"

	"printhub/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PrinterFilter struct {
	Status string
	Type   string
	Search string
	Page   int
	Limit  int
}

type PrinterRepository interface {
	Create(ctx context.Context, printer *model.Printer) error
	Update(ctx context.Context, printer *model.Printer) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Printer, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Printer, error)
	FindBySerial(ctx context.Context, serial string) (*model.Printer, error)
	List(ctx context.Context, filter PrinterFilter) ([]model.Printer, int64, error)
	ListSoldOrRentedTo(ctx context.Context, clientID uuid.UUID) ([]model.Printer, error)
	CountByStatus(ctx context.Context) (map[model.PrinterStatus]int64, error)
	SetStatus(ctx context.Context, id uuid.UUID, status model.PrinterStatus) error
}

type printerRepository struct {
	db *gorm.DB
}

func NewPrinterRepository(db *gorm.DB) PrinterRepository {
	return &printerRepository{db: db}
}

func (r *printerRepository) Create(ctx context.Context, printer *model.Printer) error {
	return GetDB(ctx, r.db).Create(printer).Error
}

// Update writes every column except status, which only SetStatus changes
func (r *printerRepository) Update(ctx context.Context, printer *model.Printer) error {
	return GetDB(ctx, r.db).Omit("status").Save(printer).Error
}

func (r *printerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Printer{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *printerRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Printer, error) {
	var printer model.Printer
	if err := GetDB(ctx, r.db).First(&printer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &printer, nil
}

// FindByIDForUpdate locks the printer row until the surrounding transaction ends
func (r *printerRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Printer, error) {
	var printer model.Printer
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).First(&printer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &printer, nil
}

func (r *printerRepository) FindBySerial(ctx context.Context, serial string) (*model.Printer, error) {
	var printer model.Printer
	if err := GetDB(ctx, r.db).First(&printer, "serial_number = ?", serial).Error; err != nil {
		return nil, err
	}
	return &printer, nil
}

func (r *printerRepository) List(ctx context.Context, filter PrinterFilter) ([]model.Printer, int64, error) {
	var printers []model.Printer
	var total int64

	scope := func(tx *gorm.DB) *gorm.DB {
		if filter.Status != "" {
			tx = tx.Where("status = ?", filter.Status)
		}
		if filter.Type != "" {
			tx = tx.Where("type = ?", filter.Type)
		}
		if filter.Search != "" {
			like := "%" + strings.ToLower(filter.Search) + "%"
			tx = tx.Where("LOWER(model) LIKE ? OR LOWER(serial_number) LIKE ? OR LOWER(brand) LIKE ?", like, like, like)
		}
		return tx
	}

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Printer{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := db.Scopes(scope).Order("created_at desc").Offset(offset).Limit(filter.Limit).Find(&printers).Error; err != nil {
		return nil, 0, err
	}

	return printers, total, nil
}

// ListSoldOrRentedTo returns printers on completed sales to the client
func (r *printerRepository) ListSoldOrRentedTo(ctx context.Context, clientID uuid.UUID) ([]model.Printer, error) {
	var printers []model.Printer
	err := GetDB(ctx, r.db).
		Joins("JOIN sales ON sales.printer_id = printers.id").
		Where("sales.client_id = ? AND sales.status = ?", clientID, model.SaleCompleted).
		Distinct().
		Order("printers.model asc").
		Find(&printers).Error
	return printers, err
}

func (r *printerRepository) CountByStatus(ctx context.Context) (map[model.PrinterStatus]int64, error) {
	var rows []struct {
		Status model.PrinterStatus
		Count  int64
	}
	err := GetDB(ctx, r.db).Model(&model.Printer{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[model.PrinterStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *printerRepository) SetStatus(ctx context.Context, id uuid.UUID, status model.PrinterStatus) error {
	return GetDB(ctx, r.db).Model(&model.Printer{}).Where("id = ?", id).Update("status", status).Error
}
