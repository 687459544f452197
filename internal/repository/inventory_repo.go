package repository

import (
	"context"
	"strings"

	"printhub/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InventoryFilter struct {
	Category string
	Search   string
	LowStock bool
	Page     int
	Limit    int // <= 0 disables paging
}

type InventoryRepository interface {
	Create(ctx context.Context, item *model.InventoryItem) error
	Update(ctx context.Context, item *model.InventoryItem) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.InventoryItem, error)
	FindBySKU(ctx context.Context, sku string) (*model.InventoryItem, error)
	FindManyForUpdate(ctx context.Context, ids []uuid.UUID) ([]model.InventoryItem, error)
	UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int) error
	List(ctx context.Context, filter InventoryFilter) ([]model.InventoryItem, int64, error)
	ListLowStock(ctx context.Context) ([]model.InventoryItem, error)

	CreateMovement(ctx context.Context, movement *model.StockMovement) error
	ListMovements(ctx context.Context, itemID uuid.UUID, limit int) ([]model.StockMovement, error)
	CountMovementsForRequest(ctx context.Context, requestID uuid.UUID) (int64, error)
}

type inventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) InventoryRepository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) Create(ctx context.Context, item *model.InventoryItem) error {
	return GetDB(ctx, r.db).Create(item).Error
}

func (r *inventoryRepository) Update(ctx context.Context, item *model.InventoryItem) error {
	return GetDB(ctx, r.db).Save(item).Error
}

func (r *inventoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.InventoryItem{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *inventoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.InventoryItem, error) {
	var item model.InventoryItem
	if err := GetDB(ctx, r.db).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *inventoryRepository) FindBySKU(ctx context.Context, sku string) (*model.InventoryItem, error) {
	var item model.InventoryItem
	if err := GetDB(ctx, r.db).First(&item, "sku = ?", sku).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// FindManyForUpdate locks the given items in id order so concurrent
// consumers always acquire row locks in the same sequence.
func (r *inventoryRepository) FindManyForUpdate(ctx context.Context, ids []uuid.UUID) ([]model.InventoryItem, error) {
	var items []model.InventoryItem
	if len(ids) == 0 {
		return items, nil
	}
	err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id asc").
		Find(&items).Error
	return items, err
}

func (r *inventoryRepository) UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int) error {
	return GetDB(ctx, r.db).Model(&model.InventoryItem{}).Where("id = ?", id).Update("quantity", quantity).Error
}

func (r *inventoryRepository) List(ctx context.Context, filter InventoryFilter) ([]model.InventoryItem, int64, error) {
	var items []model.InventoryItem
	var total int64

	scope := func(tx *gorm.DB) *gorm.DB {
		if filter.Category != "" {
			tx = tx.Where("category = ?", filter.Category)
		}
		if filter.Search != "" {
			like := "%" + strings.ToLower(filter.Search) + "%"
			tx = tx.Where("LOWER(name) LIKE ? OR LOWER(sku) LIKE ? OR LOWER(brand) LIKE ?", like, like, like)
		}
		if filter.LowStock {
			tx = tx.Where("quantity <= min_quantity")
		}
		return tx
	}

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.InventoryItem{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := db.Scopes(scope).Order("created_at desc")
	if filter.Limit > 0 {
		query = query.Offset((filter.Page - 1) * filter.Limit).Limit(filter.Limit)
	}
	if err := query.Find(&items).Error; err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

func (r *inventoryRepository) ListLowStock(ctx context.Context) ([]model.InventoryItem, error) {
	var items []model.InventoryItem
	err := GetDB(ctx, r.db).Where("quantity <= min_quantity").Order("quantity asc, name asc").Find(&items).Error
	return items, err
}

func (r *inventoryRepository) CreateMovement(ctx context.Context, movement *model.StockMovement) error {
	return GetDB(ctx, r.db).Create(movement).Error
}

func (r *inventoryRepository) ListMovements(ctx context.Context, itemID uuid.UUID, limit int) ([]model.StockMovement, error) {
	var movements []model.StockMovement
	err := GetDB(ctx, r.db).Where("item_id = ?", itemID).Order("created_at desc").Limit(limit).Find(&movements).Error
	return movements, err
}

func (r *inventoryRepository) CountMovementsForRequest(ctx context.Context, requestID uuid.UUID) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.StockMovement{}).Where("maintenance_request_id = ?", requestID).Count(&count).Error
	return count, err
}
