package handler

import (
	"printhub/internal/middleware"
	"printhub/internal/rbac"
	"printhub/internal/service"
	"printhub/pkg/pagination"
	"printhub/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type SaleHandler struct {
	saleService service.SaleService
	authz       *middleware.Authorizer
	log         *zap.Logger
}

func NewSaleHandler(saleService service.SaleService, authz *middleware.Authorizer, log *zap.Logger) *SaleHandler {
	return &SaleHandler{saleService: saleService, authz: authz, log: log}
}

func (h *SaleHandler) RegisterRoutes(router *gin.RouterGroup) {
	sales := router.Group("/api/sales")
	{
		sales.GET("", h.authz.Require(rbac.SalesView), h.ListSales)
		sales.GET("/:id", h.authz.Require(rbac.SalesView), h.GetSale)
		sales.POST("", h.authz.Require(rbac.SalesCreate), h.CreateSale)
		sales.POST("/:id/complete", h.authz.Require(rbac.SalesEdit), h.CompleteSale)
		sales.POST("/:id/cancel", h.authz.Require(rbac.SalesCancel), h.CancelSale)
	}
}

// ListSales handles GET /api/sales
// @Summary      List sales and rentals
// @Tags         sales
// @Produce      json
// @Security     BearerAuth
// @Param        status      query     string  false  "pending|completed|cancelled"
// @Param        type        query     string  false  "sale|rental"
// @Param        client_id   query     string  false  "Client ID"
// @Param        printer_id  query     string  false  "Printer ID"
// @Param        page        query     int     false  "Page number (default 1)"
// @Param        limit       query     int     false  "Items per page (default 20)"
// @Success      200         {object}  response.Response{data=pagination.Page}
// @Router       /api/sales [get]
func (h *SaleHandler) ListSales(c *gin.Context) {
	p := pagination.Parse(c)
	sales, total, err := h.saleService.List(c.Request.Context(), service.SaleListQuery{
		Status:    c.Query("status"),
		Type:      c.Query("type"),
		ClientID:  c.Query("client_id"),
		PrinterID: c.Query("printer_id"),
		Page:      p.Page,
		Limit:     p.Limit,
	})
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	ok(c, p.NewPage(sales, total))
}

// GetSale handles GET /api/sales/:id
// @Summary      Get sale
// @Tags         sales
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Sale ID"
// @Success      200  {object}  response.Response{data=model.Sale}
// @Failure      404  {object}  response.Response
// @Router       /api/sales/{id} [get]
func (h *SaleHandler) GetSale(c *gin.Context) {
	sale, err := h.saleService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	ok(c, sale)
}

// CreateSale handles POST /api/sales
// @Summary      Create sale or rental
// @Tags         sales
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateSaleRequest  true  "Sale"
// @Success      201      {object}  response.Response{data=model.Sale}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response "Printer not available"
// @Router       /api/sales [post]
func (h *SaleHandler) CreateSale(c *gin.Context) {
	var req service.CreateSaleRequest
	if !bindJSON(c, h.log, &req) {
		return
	}
	sale, err := h.saleService.Create(c.Request.Context(), req)
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	created(c, sale)
}

// CompleteSale handles POST /api/sales/:id/complete
// @Summary      Complete sale
// @Description  Marks the printer sold or rented
// @Tags         sales
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Sale ID"
// @Success      200  {object}  response.Response{data=model.Sale}
// @Failure      409  {object}  response.Response
// @Router       /api/sales/{id}/complete [post]
func (h *SaleHandler) CompleteSale(c *gin.Context) {
	sale, err := h.saleService.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	ok(c, sale)
}

// CancelSale handles POST /api/sales/:id/cancel
// @Summary      Cancel sale or end rental
// @Tags         sales
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                     true  "Sale ID"
// @Param        payload  body      service.CancelSaleRequest  false "Reason"
// @Success      200      {object}  response.Response{data=model.Sale}
// @Failure      409      {object}  response.Response
// @Router       /api/sales/{id}/cancel [post]
func (h *SaleHandler) CancelSale(c *gin.Context) {
	var req service.CancelSaleRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, h.log, &req) {
		return
	}
	sale, err := h.saleService.Cancel(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	ok(c, sale)
}
