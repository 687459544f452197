package repository

import (
	"context"

	"printhub/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SaleFilter struct {
	Status    string
	Type      string
	ClientID  *uuid.UUID
	PrinterID *uuid.UUID
	Page      int
	Limit     int
}

type SaleRepository interface {
	Create(ctx context.Context, sale *model.Sale) error
	Update(ctx context.Context, sale *model.Sale) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Sale, error)
	List(ctx context.Context, filter SaleFilter) ([]model.Sale, int64, error)
	ListCompletedRentals(ctx context.Context, clientID uuid.UUID) ([]model.Sale, error)
	DeleteByClient(ctx context.Context, clientID uuid.UUID) (int64, error)
	CompletedRevenue(ctx context.Context) (decimal.Decimal, int64, error)
}

type saleRepository struct {
	db *gorm.DB
}

func NewSaleRepository(db *gorm.DB) SaleRepository {
	return &saleRepository{db: db}
}

func (r *saleRepository) Create(ctx context.Context, sale *model.Sale) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Create(sale).Error
}

func (r *saleRepository) Update(ctx context.Context, sale *model.Sale) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Save(sale).Error
}

func (r *saleRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error) {
	var sale model.Sale
	if err := GetDB(ctx, r.db).Preload("Printer").Preload("Client").First(&sale, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *saleRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Sale, error) {
	var sale model.Sale
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).First(&sale, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *saleRepository) List(ctx context.Context, filter SaleFilter) ([]model.Sale, int64, error) {
	var sales []model.Sale
	var total int64

	scope := func(tx *gorm.DB) *gorm.DB {
		if filter.Status != "" {
			tx = tx.Where("status = ?", filter.Status)
		}
		if filter.Type != "" {
			tx = tx.Where("type = ?", filter.Type)
		}
		if filter.ClientID != nil {
			tx = tx.Where("client_id = ?", *filter.ClientID)
		}
		if filter.PrinterID != nil {
			tx = tx.Where("printer_id = ?", *filter.PrinterID)
		}
		return tx
	}

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Sale{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := db.Scopes(scope).Preload("Printer").Preload("Client").
		Order("created_at desc").
		Offset(offset).Limit(filter.Limit).
		Find(&sales).Error; err != nil {
		return nil, 0, err
	}

	return sales, total, nil
}

// ListCompletedRentals returns the client's rentals that currently hold a printer
func (r *saleRepository) ListCompletedRentals(ctx context.Context, clientID uuid.UUID) ([]model.Sale, error) {
	var sales []model.Sale
	err := GetDB(ctx, r.db).
		Where("client_id = ? AND type = ? AND status = ?", clientID, model.SaleTypeRental, model.SaleCompleted).
		Order("created_at").
		Find(&sales).Error
	return sales, err
}

func (r *saleRepository) DeleteByClient(ctx context.Context, clientID uuid.UUID) (int64, error) {
	result := GetDB(ctx, r.db).Where("client_id = ?", clientID).Delete(&model.Sale{})
	return result.RowsAffected, result.Error
}

// CompletedRevenue sums the amount of completed sales
func (r *saleRepository) CompletedRevenue(ctx context.Context) (decimal.Decimal, int64, error) {
	var sales []model.Sale
	if err := GetDB(ctx, r.db).Select("amount").Where("status = ?", model.SaleCompleted).Find(&sales).Error; err != nil {
		return decimal.Zero, 0, err
	}
	total := decimal.Zero
	for _, s := range sales {
		total = total.Add(s.Amount)
	}
	return total, int64(len(sales)), nil
}
