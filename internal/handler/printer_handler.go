package handler

import (
	"net/http"

	"printhub/internal/middleware"
	"printhub/internal/rbac"
	"printhub/internal/service"
	"printhub/pkg/pagination"
	"printhub/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PrinterHandler struct {
	printerService service.PrinterService
	authz          *middleware.Authorizer
	log            *zap.Logger
}

func NewPrinterHandler(printerService service.PrinterService, authz *middleware.Authorizer, log *zap.Logger) *PrinterHandler {
	return &PrinterHandler{printerService: printerService, authz: authz, log: log}
}

func (h *PrinterHandler) RegisterRoutes(router *gin.RouterGroup) {
	printers := router.Group("/api/printers")
	{
		printers.GET("", h.authz.Require(rbac.PrintersView), h.ListPrinters)
		printers.GET("/:id", h.authz.Require(rbac.PrintersView), h.GetPrinter)
		printers.POST("", h.authz.Require(rbac.PrintersCreate), h.CreatePrinter)
		printers.PUT("/:id", h.authz.Require(rbac.PrintersEdit), h.UpdatePrinter)
		printers.PUT("/:id/status", h.authz.Require(rbac.PrintersEdit), h.UpdateStatus)
		printers.POST("/:id/telemetry", h.authz.Require(rbac.PrintersEdit), h.RefreshTelemetry)
		printers.DELETE("/:id", h.authz.Require(rbac.PrintersDelete), h.DeletePrinter)
	}
}

// ListPrinters handles GET /api/printers
// @Summary      List printers
// @Tags         printers
// @Produce      json
// @Security     BearerAuth
// @Param        status  query     string  false  "available|rented|maintenance|sold"
// @Param        type    query     string  false  "color|monochrome"
// @Param        search  query     string  false  "Model, serial, brand or location contains"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Success      200     {object}  response.Response{data=pagination.Page}
// @Failure      400     {object}  response.Response
// @Router       /api/printers [get]
func (h *PrinterHandler) ListPrinters(c *gin.Context) {
	p := pagination.Parse(c)
	printers, total, err := h.printerService.List(c.Request.Context(), service.PrinterListQuery{
		Status: c.Query("status"),
		Type:   c.Query("type"),
		Search: c.Query("search"),
		Page:   p.Page,
		Limit:  p.Limit,
	})
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	ok(c, p.NewPage(printers, total))
}

// GetPrinter handles GET /api/printers/:id
// @Summary      Get printer
// @Tags         printers
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Printer ID"
// @Success      200  {object}  response.Response{data=model.Printer}
// @Failure      404  {object}  response.Response
// @Router       /api/printers/{id} [get]
func (h *PrinterHandler) GetPrinter(c *gin.Context) {
	printer, err := h.printerService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	ok(c, printer)
}

// CreatePrinter handles POST /api/printers
// @Summary      Register printer
// @Tags         printers
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreatePrinterRequest  true  "Printer"
// @Success      201      {object}  response.Response{data=model.Printer}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/printers [post]
func (h *PrinterHandler) CreatePrinter(c *gin.Context) {
	var req service.CreatePrinterRequest
	if !bindJSON(c, h.log, &req) {
		return
	}
	printer, err := h.printerService.Create(c.Request.Context(), req)
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	created(c, printer)
}

// UpdatePrinter handles PUT /api/printers/:id
// @Summary      Update printer
// @Description  Status is not editable here; use the status endpoint
// @Tags         printers
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                        true  "Printer ID"
// @Param        payload  body      service.UpdatePrinterRequest  true  "Fields to change"
// @Success      200      {object}  response.Response{data=model.Printer}
// @Failure      404      {object}  response.Response
// @Router       /api/printers/{id} [put]
func (h *PrinterHandler) UpdatePrinter(c *gin.Context) {
	var req service.UpdatePrinterRequest
	if !bindJSON(c, h.log, &req) {
		return
	}
	printer, err := h.printerService.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	ok(c, printer)
}

// UpdateStatus handles PUT /api/printers/:id/status
// @Summary      Change printer status
// @Tags         printers
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                              true  "Printer ID"
// @Param        payload  body      service.UpdatePrinterStatusRequest  true  "Target status"
// @Success      200      {object}  response.Response{data=model.Printer}
// @Failure      409      {object}  response.Response "Transition not allowed"
// @Router       /api/printers/{id}/status [put]
func (h *PrinterHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdatePrinterStatusRequest
	if !bindJSON(c, h.log, &req) {
		return
	}
	printer, err := h.printerService.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	ok(c, printer)
}

// RefreshTelemetry handles POST /api/printers/:id/telemetry
// @Summary      Poll printer supplies and counters
// @Description  Probes the printer's network address over SNMP or IPP and stores the reading
// @Tags         printers
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Printer ID"
// @Success      200  {object}  response.Response{data=model.Printer}
// @Failure      400  {object}  response.Response "Printer has no address"
// @Router       /api/printers/{id}/telemetry [post]
func (h *PrinterHandler) RefreshTelemetry(c *gin.Context) {
	printer, err := h.printerService.RefreshTelemetry(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	ok(c, printer)
}

// DeletePrinter handles DELETE /api/printers/:id
// @Summary      Delete printer
// @Tags         printers
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Printer ID"
// @Success      200  {object}  response.Response
// @Failure      409  {object}  response.Response "Printer is rented or in maintenance"
// @Router       /api/printers/{id} [delete]
func (h *PrinterHandler) DeletePrinter(c *gin.Context) {
	if err := h.printerService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Printer deleted successfully"))
}
