package service

import (
	"context"
	"sort"
	"strings"

	"printhub/internal/apperr"
	"printhub/internal/export"
	"printhub/internal/model"
	"printhub/internal/rbac"
	"printhub/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DTOs
type CreateInventoryItemRequest struct {
	Name         string          `json:"name" binding:"required"`
	SKU          string          `json:"sku" binding:"required"`
	Category     string          `json:"category" binding:"required,oneof=ink spare paper"`
	Brand        string          `json:"brand"`
	Quantity     int             `json:"quantity" binding:"min=0"`
	MinQuantity  int             `json:"min_quantity" binding:"min=0"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	Location     string          `json:"location"`
	Supplier     string          `json:"supplier"`
}

type UpdateInventoryItemRequest struct {
	Name         *string          `json:"name" binding:"omitempty,min=1"`
	SKU          *string          `json:"sku" binding:"omitempty,min=1"`
	Category     *string          `json:"category" binding:"omitempty,oneof=ink spare paper"`
	Brand        *string          `json:"brand"`
	Quantity     *int             `json:"quantity" binding:"omitempty,min=0"`
	MinQuantity  *int             `json:"min_quantity" binding:"omitempty,min=0"`
	CostPrice    *decimal.Decimal `json:"cost_price"`
	SellingPrice *decimal.Decimal `json:"selling_price"`
	Location     *string          `json:"location"`
	Supplier     *string          `json:"supplier"`
}

type RestockRequest struct {
	Quantity int    `json:"quantity" binding:"required,gt=0"`
	Note     string `json:"note"`
}

type InventoryListQuery struct {
	Category string
	Search   string
	LowStock bool
	Page     int
	Limit    int
}

// LowStockEvent is the websocket payload for inventory.low_stock
type LowStockEvent struct {
	ItemID      uuid.UUID `json:"item_id"`
	Name        string    `json:"name"`
	SKU         string    `json:"sku"`
	Quantity    int       `json:"quantity"`
	MinQuantity int       `json:"min_quantity"`
}

type InventoryService interface {
	// ConsumeParts decrements stock for every part, all-or-nothing, and
	// returns the touched items that are now at or below their threshold.
	// It joins the transaction carried by ctx when there is one; in that
	// case publishing the low-stock events is left to the caller.
	ConsumeParts(ctx context.Context, requestID *uuid.UUID, parts []model.PartUsage) ([]model.InventoryItem, error)
	LowStockItems(ctx context.Context) ([]model.InventoryItem, error)
	PublishLowStock(items []model.InventoryItem)

	CreateItem(ctx context.Context, req CreateInventoryItemRequest) (*model.InventoryItem, error)
	UpdateItem(ctx context.Context, id string, req UpdateInventoryItemRequest) (*model.InventoryItem, error)
	DeleteItem(ctx context.Context, id string) error
	GetItem(ctx context.Context, id string) (*model.InventoryItem, error)
	ListItems(ctx context.Context, query InventoryListQuery) ([]model.InventoryItem, int64, error)
	Restock(ctx context.Context, id string, req RestockRequest) (*model.InventoryItem, error)
	ListMovements(ctx context.Context, id string, limit int) ([]model.StockMovement, error)
	Export(ctx context.Context) ([]byte, error)
}

type inventoryService struct {
	repo      repository.InventoryRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
	events    EventPublisher
}

func NewInventoryService(
	repo repository.InventoryRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	events EventPublisher,
) InventoryService {
	if events == nil {
		events = NopPublisher
	}
	return &inventoryService{
		repo:      repo,
		auditRepo: auditRepo,
		txManager: txManager,
		events:    events,
	}
}

func (s *inventoryService) ConsumeParts(ctx context.Context, requestID *uuid.UUID, parts []model.PartUsage) ([]model.InventoryItem, error) {
	need := make(map[uuid.UUID]int, len(parts))
	for _, p := range parts {
		if p.PartID == uuid.Nil {
			return nil, apperr.InvalidInput("part_id is required")
		}
		if p.Quantity <= 0 {
			return nil, apperr.InvalidInput("quantity for part %s must be positive", p.PartID)
		}
		need[p.PartID] += p.Quantity
	}
	if len(need) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(need))
	for id := range need {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	joined := repository.InTx(ctx)
	var low []model.InventoryItem

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		items, err := s.repo.FindManyForUpdate(txCtx, ids)
		if err != nil {
			return dbError(err, "inventory item")
		}

		byID := make(map[uuid.UUID]*model.InventoryItem, len(items))
		for i := range items {
			byID[items[i].ID] = &items[i]
		}

		// Check every line before touching any row
		for _, id := range ids {
			item, ok := byID[id]
			if !ok {
				return apperr.NotFound("inventory item %s not found", id)
			}
			if item.Quantity < need[id] {
				return apperr.InsufficientStock("insufficient stock for %s: have %d, need %d", item.SKU, item.Quantity, need[id])
			}
		}

		for _, id := range ids {
			item := byID[id]
			item.Quantity -= need[id]
			if err := s.repo.UpdateQuantity(txCtx, id, item.Quantity); err != nil {
				return dbError(err, "inventory item")
			}
			movement := &model.StockMovement{
				ItemID:               id,
				MaintenanceRequestID: requestID,
				Type:                 model.MovementOut,
				QuantityChanged:      -need[id],
				StockAfter:           item.Quantity,
				Note:                 "consumed by maintenance",
			}
			if err := s.repo.CreateMovement(txCtx, movement); err != nil {
				return dbError(err, "stock movement")
			}
			if item.LowStock() {
				low = append(low, *item)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !joined {
		s.PublishLowStock(low)
	}
	return low, nil
}

func (s *inventoryService) PublishLowStock(items []model.InventoryItem) {
	for _, item := range items {
		s.events.Publish(EventLowStock, LowStockEvent{
			ItemID:      item.ID,
			Name:        item.Name,
			SKU:         item.SKU,
			Quantity:    item.Quantity,
			MinQuantity: item.MinQuantity,
		})
	}
}

func (s *inventoryService) LowStockItems(ctx context.Context) ([]model.InventoryItem, error) {
	items, err := s.repo.ListLowStock(ctx)
	if err != nil {
		return nil, dbError(err, "inventory")
	}
	return items, nil
}

func (s *inventoryService) CreateItem(ctx context.Context, req CreateInventoryItemRequest) (*model.InventoryItem, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.CostPrice.IsNegative() || req.SellingPrice.IsNegative() {
		return nil, apperr.InvalidInput("prices must not be negative")
	}

	item := &model.InventoryItem{
		Name:         strings.TrimSpace(req.Name),
		SKU:          strings.TrimSpace(req.SKU),
		Category:     req.Category,
		Brand:        req.Brand,
		Quantity:     req.Quantity,
		MinQuantity:  req.MinQuantity,
		CostPrice:    req.CostPrice,
		SellingPrice: req.SellingPrice,
		Location:     req.Location,
		Supplier:     req.Supplier,
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, item); err != nil {
			return dbError(err, "inventory item")
		}
		if item.Quantity > 0 {
			if err := s.repo.CreateMovement(txCtx, &model.StockMovement{
				ItemID:          item.ID,
				Type:            model.MovementIn,
				QuantityChanged: item.Quantity,
				StockAfter:      item.Quantity,
				Note:            "initial stock",
			}); err != nil {
				return dbError(err, "stock movement")
			}
		}
		return s.auditRepo.Record(txCtx, rbac.ActorID(ctx), model.ActionCreateItem, item.ID.String(), item.Name, req)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *inventoryService) UpdateItem(ctx context.Context, id string, req UpdateInventoryItemRequest) (*model.InventoryItem, error) {
	itemID, err := parseID(id, "inventory item")
	if err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if (req.CostPrice != nil && req.CostPrice.IsNegative()) || (req.SellingPrice != nil && req.SellingPrice.IsNegative()) {
		return nil, apperr.InvalidInput("prices must not be negative")
	}

	var item *model.InventoryItem
	var low bool
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		locked, err := s.repo.FindManyForUpdate(txCtx, []uuid.UUID{itemID})
		if err != nil {
			return dbError(err, "inventory item")
		}
		if len(locked) == 0 {
			return apperr.NotFound("inventory item not found")
		}
		item = &locked[0]
		before := item.Quantity

		if req.Name != nil {
			item.Name = strings.TrimSpace(*req.Name)
		}
		if req.SKU != nil {
			item.SKU = strings.TrimSpace(*req.SKU)
		}
		if req.Category != nil {
			item.Category = *req.Category
		}
		if req.Brand != nil {
			item.Brand = *req.Brand
		}
		if req.Quantity != nil {
			item.Quantity = *req.Quantity
		}
		if req.MinQuantity != nil {
			item.MinQuantity = *req.MinQuantity
		}
		if req.CostPrice != nil {
			item.CostPrice = *req.CostPrice
		}
		if req.SellingPrice != nil {
			item.SellingPrice = *req.SellingPrice
		}
		if req.Location != nil {
			item.Location = *req.Location
		}
		if req.Supplier != nil {
			item.Supplier = *req.Supplier
		}

		if err := s.repo.Update(txCtx, item); err != nil {
			return dbError(err, "inventory item")
		}
		if item.Quantity != before {
			if err := s.repo.CreateMovement(txCtx, &model.StockMovement{
				ItemID:          item.ID,
				Type:            model.MovementAdjust,
				QuantityChanged: item.Quantity - before,
				StockAfter:      item.Quantity,
				Note:            "manual adjustment",
			}); err != nil {
				return dbError(err, "stock movement")
			}
			low = item.LowStock()
		}
		return s.auditRepo.Record(txCtx, rbac.ActorID(ctx), model.ActionUpdateItem, item.ID.String(), item.Name, req)
	})
	if err != nil {
		return nil, err
	}

	if low {
		s.PublishLowStock([]model.InventoryItem{*item})
	}
	return item, nil
}

func (s *inventoryService) DeleteItem(ctx context.Context, id string) error {
	itemID, err := parseID(id, "inventory item")
	if err != nil {
		return err
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		item, err := s.repo.FindByID(txCtx, itemID)
		if err != nil {
			return dbError(err, "inventory item")
		}
		if err := s.repo.Delete(txCtx, itemID); err != nil {
			return dbError(err, "inventory item")
		}
		return s.auditRepo.Record(txCtx, rbac.ActorID(ctx), model.ActionDeleteItem, item.ID.String(), item.Name, nil)
	})
}

func (s *inventoryService) GetItem(ctx context.Context, id string) (*model.InventoryItem, error) {
	itemID, err := parseID(id, "inventory item")
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindByID(ctx, itemID)
	if err != nil {
		return nil, dbError(err, "inventory item")
	}
	return item, nil
}

func (s *inventoryService) ListItems(ctx context.Context, query InventoryListQuery) ([]model.InventoryItem, int64, error) {
	page, limit := normalizePage(query.Page, query.Limit)
	items, total, err := s.repo.List(ctx, repository.InventoryFilter{
		Category: query.Category,
		Search:   strings.TrimSpace(query.Search),
		LowStock: query.LowStock,
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		return nil, 0, dbError(err, "inventory")
	}
	return items, total, nil
}

func (s *inventoryService) Restock(ctx context.Context, id string, req RestockRequest) (*model.InventoryItem, error) {
	itemID, err := parseID(id, "inventory item")
	if err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	var item *model.InventoryItem
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		locked, err := s.repo.FindManyForUpdate(txCtx, []uuid.UUID{itemID})
		if err != nil {
			return dbError(err, "inventory item")
		}
		if len(locked) == 0 {
			return apperr.NotFound("inventory item not found")
		}
		item = &locked[0]
		item.Quantity += req.Quantity

		if err := s.repo.UpdateQuantity(txCtx, item.ID, item.Quantity); err != nil {
			return dbError(err, "inventory item")
		}
		if err := s.repo.CreateMovement(txCtx, &model.StockMovement{
			ItemID:          item.ID,
			Type:            model.MovementIn,
			QuantityChanged: req.Quantity,
			StockAfter:      item.Quantity,
			Note:            req.Note,
		}); err != nil {
			return dbError(err, "stock movement")
		}
		return s.auditRepo.Record(txCtx, rbac.ActorID(ctx), model.ActionRestockItem, item.ID.String(), item.Name, req)
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(EventStockChanged, map[string]any{
		"item_id":  item.ID,
		"quantity": item.Quantity,
	})
	return item, nil
}

func (s *inventoryService) ListMovements(ctx context.Context, id string, limit int) ([]model.StockMovement, error) {
	itemID, err := parseID(id, "inventory item")
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.FindByID(ctx, itemID); err != nil {
		return nil, dbError(err, "inventory item")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	movements, err := s.repo.ListMovements(ctx, itemID, limit)
	if err != nil {
		return nil, dbError(err, "stock movement")
	}
	return movements, nil
}

func (s *inventoryService) Export(ctx context.Context) ([]byte, error) {
	items, _, err := s.repo.List(ctx, repository.InventoryFilter{})
	if err != nil {
		return nil, dbError(err, "inventory")
	}

	columns := []export.Column{
		{Title: "SKU", Width: 16},
		{Title: "Name", Width: 32},
		{Title: "Category", Width: 12},
		{Title: "Brand", Width: 16},
		{Title: "Quantity", Width: 10},
		{Title: "Min Quantity", Width: 12},
		{Title: "Cost Price", Width: 12},
		{Title: "Selling Price", Width: 12},
		{Title: "Location", Width: 20},
		{Title: "Supplier", Width: 20},
		{Title: "Low Stock", Width: 10},
	}
	rows := make([][]any, 0, len(items))
	for _, item := range items {
		rows = append(rows, []any{
			item.SKU,
			item.Name,
			item.Category,
			item.Brand,
			item.Quantity,
			item.MinQuantity,
			item.CostPrice.InexactFloat64(),
			item.SellingPrice.InexactFloat64(),
			item.Location,
			item.Supplier,
			item.LowStock(),
		})
	}

	data, err := export.Workbook("Inventory", columns, rows)
	if err != nil {
		return nil, apperr.Internal(err, "failed to build inventory export")
	}
	return data, nil
}
