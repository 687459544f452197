package handler

import (
	"net/http"
	"strconv"

	"printhub/internal/middleware"
	"printhub/internal/rbac"
	"printhub/internal/service"
	"printhub/pkg/pagination"
	"printhub/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type InventoryHandler struct {
	inventoryService service.InventoryService
	authz            *middleware.Authorizer
	log              *zap.Logger
}

func NewInventoryHandler(inventoryService service.InventoryService, authz *middleware.Authorizer, log *zap.Logger) *InventoryHandler {
	return &InventoryHandler{inventoryService: inventoryService, authz: authz, log: log}
}

func (h *InventoryHandler) RegisterRoutes(router *gin.RouterGroup) {
	inventory := router.Group("/api/inventory")
	{
		inventory.GET("", h.authz.Require(rbac.InventoryView), h.ListItems)
		inventory.GET("/low-stock", h.authz.Require(rbac.InventoryView), h.LowStock)
		inventory.GET("/export", h.authz.Require(rbac.InventoryView), h.ExportItems)
		inventory.GET("/:id", h.authz.Require(rbac.InventoryView), h.GetItem)
		inventory.GET("/:id/movements", h.authz.Require(rbac.InventoryView), h.ListMovements)
		inventory.POST("", h.authz.Require(rbac.InventoryCreate), h.CreateItem)
		inventory.PUT("/:id", h.authz.Require(rbac.InventoryEdit), h.UpdateItem)
		inventory.POST("/:id/restock", h.authz.Require(rbac.InventoryEdit), h.Restock)
		inventory.DELETE("/:id", h.authz.Require(rbac.InventoryDelete), h.DeleteItem)
	}
}

// ListItems handles retrieving paginated stock
// @Summary      List inventory items
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        category   query     string  false  "ink|spare|paper"
// @Param        search     query     string  false  "Name, SKU or brand contains"
// @Param        low_stock  query     bool    false  "Only items at or below their minimum"
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Number of items per page (default 20)"
// @Success      200        {object}  response.Response{data=pagination.Page}
// @Router       /api/inventory [get]
func (h *InventoryHandler) ListItems(c *gin.Context) {
	p := pagination.Parse(c)
	lowStock, _ := strconv.ParseBool(c.DefaultQuery("low_stock", "false"))

	items, total, err := h.inventoryService.ListItems(c.Request.Context(), service.InventoryListQuery{
		Category: c.Query("category"),
		Search:   c.Query("search"),
		LowStock: lowStock,
		Page:     p.Page,
		Limit:    p.Limit,
	})
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	ok(c, p.NewPage(items, total))
}

// LowStock lists items at or below their minimum quantity
// @Summary      Low stock items
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]model.InventoryItem}
// @Router       /api/inventory/low-stock [get]
func (h *InventoryHandler) LowStock(c *gin.Context) {
	items, err := h.inventoryService.LowStockItems(c.Request.Context())
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	ok(c, items)
}

// ExportItems streams the stock sheet
// @Summary      Export inventory
// @Tags         inventory
// @Security     BearerAuth
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success      200  {file}  file
// @Router       /api/inventory/export [get]
func (h *InventoryHandler) ExportItems(c *gin.Context) {
	data, err := h.inventoryService.Export(c.Request.Context())
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	sendWorkbook(c, "inventory", data)
}

// GetItem handles GET /api/inventory/:id
// @Summary      Get inventory item
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Item ID"
// @Success      200  {object}  response.Response{data=model.InventoryItem}
// @Failure      404  {object}  response.Response
// @Router       /api/inventory/{id} [get]
func (h *InventoryHandler) GetItem(c *gin.Context) {
	item, err := h.inventoryService.GetItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	ok(c, item)
}

// ListMovements returns the newest stock movements of an item
// @Summary      Stock movements
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        id     path      string  true   "Item ID"
// @Param        limit  query     int     false  "Max rows (default 50)"
// @Success      200    {object}  response.Response{data=[]model.StockMovement}
// @Router       /api/inventory/{id}/movements [get]
func (h *InventoryHandler) ListMovements(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	movements, err := h.inventoryService.ListMovements(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	ok(c, movements)
}

// CreateItem handles POST /api/inventory
// @Summary      Add inventory item
// @Tags         inventory
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateInventoryItemRequest  true  "Item"
// @Success      201      {object}  response.Response{data=model.InventoryItem}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response "Duplicate SKU"
// @Router       /api/inventory [post]
func (h *InventoryHandler) CreateItem(c *gin.Context) {
	var req service.CreateInventoryItemRequest
	if !bindJSON(c, h.log, &req) {
		return
	}
	item, err := h.inventoryService.CreateItem(c.Request.Context(), req)
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	created(c, item)
}

// UpdateItem handles PUT /api/inventory/:id
// @Summary      Update inventory item
// @Tags         inventory
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                              true  "Item ID"
// @Param        payload  body      service.UpdateInventoryItemRequest  true  "Fields to change"
// @Success      200      {object}  response.Response{data=model.InventoryItem}
// @Router       /api/inventory/{id} [put]
func (h *InventoryHandler) UpdateItem(c *gin.Context) {
	var req service.UpdateInventoryItemRequest
	if !bindJSON(c, h.log, &req) {
		return
	}
	item, err := h.inventoryService.UpdateItem(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	ok(c, item)
}

// Restock handles POST /api/inventory/:id/restock
// @Summary      Restock item
// @Tags         inventory
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                  true  "Item ID"
// @Param        payload  body      service.RestockRequest  true  "Quantity received"
// @Success      200      {object}  response.Response{data=model.InventoryItem}
// @Router       /api/inventory/{id}/restock [post]
func (h *InventoryHandler) Restock(c *gin.Context) {
	var req service.RestockRequest
	if !bindJSON(c, h.log, &req) {
		return
	}
	item, err := h.inventoryService.Restock(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	ok(c, item)
}

// DeleteItem handles DELETE /api/inventory/:id
// @Summary      Delete inventory item
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Item ID"
// @Success      200  {object}  response.Response
// @Router       /api/inventory/{id} [delete]
func (h *InventoryHandler) DeleteItem(c *gin.Context) {
	if err := h.inventoryService.DeleteItem(c.Request.Context(), c.Param("id")); err != nil {
		response.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Item deleted successfully"))
}
