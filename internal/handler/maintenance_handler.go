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

type MaintenanceHandler struct {
	maintenanceService service.MaintenanceService
	authz              *middleware.Authorizer
	log                *zap.Logger
}

func NewMaintenanceHandler(maintenanceService service.MaintenanceService, authz *middleware.Authorizer, log *zap.Logger) *MaintenanceHandler {
	return &MaintenanceHandler{maintenanceService: maintenanceService, authz: authz, log: log}
}

func (h *MaintenanceHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/maintenance")
	{
		group.GET("", h.authz.Require(rbac.MaintenanceView), h.ListRequests)
		group.GET("/stats", h.authz.Require(rbac.MaintenanceView), h.GetStats)
		group.GET("/export", h.authz.Require(rbac.MaintenanceView), h.ExportRequests)
		group.GET("/:id", h.authz.Require(rbac.MaintenanceView), h.GetRequest)
		group.POST("", h.authz.Require(rbac.MaintenanceCreate), h.CreateRequest)
		group.POST("/:id/assign", h.authz.Require(rbac.MaintenanceEdit), h.AssignTechnician)
		group.PUT("/:id/work", h.authz.Require(rbac.MaintenanceEdit), h.RecordWork)
		group.POST("/:id/complete", h.authz.Require(rbac.MaintenanceComplete), h.CompleteRequest)
		group.POST("/:id/cancel", h.authz.Require(rbac.MaintenanceDelete), h.CancelRequest)
	}
}

func maintenanceQuery(c *gin.Context, p pagination.Params) service.MaintenanceListQuery {
	return service.MaintenanceListQuery{
		Status:       c.Query("status"),
		Priority:     c.Query("priority"),
		TechnicianID: c.Query("technician_id"),
		ClientID:     c.Query("client_id"),
		PrinterID:    c.Query("printer_id"),
		StartDate:    c.Query("start_date"),
		EndDate:      c.Query("end_date"),
		SortBy:       c.Query("sort_by"),
		SortOrder:    c.Query("sort_order"),
		Page:         p.Page,
		Limit:        p.Limit,
	}
}

// ListRequests handles GET /api/maintenance
// @Summary      List maintenance requests
// @Tags         maintenance
// @Produce      json
// @Security     BearerAuth
// @Param        status         query     string  false  "pending|in_progress|completed|cancelled"
// @Param        priority       query     string  false  "low|normal|high|urgent"
// @Param        technician_id  query     string  false  "Technician ID"
// @Param        client_id      query     string  false  "Client ID"
// @Param        start_date     query     string  false  "Created on or after (YYYY-MM-DD)"
// @Param        end_date       query     string  false  "Created on or before (YYYY-MM-DD)"
// @Param        sort_by        query     string  false  "created_at|updated_at|priority|status|scheduled_date|completion_date|total_cost"
// @Param        sort_order     query     string  false  "asc|desc (default desc)"
// @Param        page           query     int     false  "Page number (default 1)"
// @Param        limit          query     int     false  "Items per page (default 20)"
// @Success      200            {object}  response.Response{data=pagination.Page}
// @Failure      400            {object}  response.Response
// @Router       /api/maintenance [get]
func (h *MaintenanceHandler) ListRequests(c *gin.Context) {
	p := pagination.Parse(c)
	requests, total, err := h.maintenanceService.List(c.Request.Context(), maintenanceQuery(c, p))
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	ok(c, p.NewPage(requests, total))
}

// GetStats handles GET /api/maintenance/stats
// @Summary      Maintenance totals and per-technician load
// @Tags         maintenance
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.MaintenanceStats}
// @Router       /api/maintenance/stats [get]
func (h *MaintenanceHandler) GetStats(c *gin.Context) {
	stats, err := h.maintenanceService.Stats(c.Request.Context())
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	ok(c, stats)
}

// ExportRequests handles GET /api/maintenance/export
// @Summary      Export maintenance requests
// @Description  Same filters as the list endpoint, without paging
// @Tags         maintenance
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security     BearerAuth
// @Success      200  {file}  file
// @Router       /api/maintenance/export [get]
func (h *MaintenanceHandler) ExportRequests(c *gin.Context) {
	data, err := h.maintenanceService.Export(c.Request.Context(), maintenanceQuery(c, pagination.Params{}))
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	sendWorkbook(c, "maintenance", data)
}

// GetRequest handles GET /api/maintenance/:id
// @Summary      Get maintenance request
// @Tags         maintenance
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=model.MaintenanceRequest}
// @Failure      404  {object}  response.Response
// @Router       /api/maintenance/{id} [get]
func (h *MaintenanceHandler) GetRequest(c *gin.Context) {
	request, err := h.maintenanceService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	ok(c, request)
}

// CreateRequest handles POST /api/maintenance
// @Summary      Open maintenance request
// @Description  client_id defaults to the caller and is only honored for callers holding maintenance:edit
// @Tags         maintenance
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateMaintenanceRequest  true  "Request"
// @Success      201      {object}  response.Response{data=model.MaintenanceRequest}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/maintenance [post]
func (h *MaintenanceHandler) CreateRequest(c *gin.Context) {
	var req service.CreateMaintenanceRequest
	if !bindJSON(c, h.log, &req) {
		return
	}
	// Only staff who can edit requests may file one for another user
	onBehalf, err := h.authz.Allows(c, rbac.MaintenanceEdit)
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	if req.ClientID == "" || !onBehalf {
		req.ClientID = middleware.CurrentIdentity(c).UserID.String()
	}

	request, err := h.maintenanceService.Create(c.Request.Context(), req)
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	created(c, request)
}

// AssignTechnician handles POST /api/maintenance/:id/assign
// @Summary      Assign technician
// @Tags         maintenance
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                           true  "Request ID"
// @Param        payload  body      service.AssignTechnicianRequest  true  "Technician"
// @Success      200      {object}  response.Response{data=model.MaintenanceRequest}
// @Failure      409      {object}  response.Response
// @Router       /api/maintenance/{id}/assign [post]
func (h *MaintenanceHandler) AssignTechnician(c *gin.Context) {
	var req service.AssignTechnicianRequest
	if !bindJSON(c, h.log, &req) {
		return
	}
	request, err := h.maintenanceService.AssignTechnician(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	ok(c, request)
}

// RecordWork handles PUT /api/maintenance/:id/work
// @Summary      Record technician work
// @Tags         maintenance
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                     true  "Request ID"
// @Param        payload  body      service.RecordWorkRequest  true  "Work log"
// @Success      200      {object}  response.Response{data=model.MaintenanceRequest}
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response "Insufficient stock"
// @Router       /api/maintenance/{id}/work [put]
func (h *MaintenanceHandler) RecordWork(c *gin.Context) {
	var req service.RecordWorkRequest
	if !bindJSON(c, h.log, &req) {
		return
	}
	request, err := h.maintenanceService.RecordWork(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	ok(c, request)
}

// CompleteRequest handles POST /api/maintenance/:id/complete
// @Summary      Complete maintenance request
// @Tags         maintenance
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                              true  "Request ID"
// @Param        payload  body      service.CompleteMaintenanceRequest  true  "Outcome"
// @Success      200      {object}  response.Response{data=model.MaintenanceRequest}
// @Failure      409      {object}  response.Response "Already completed or cancelled"
// @Failure      422      {object}  response.Response "Insufficient stock"
// @Router       /api/maintenance/{id}/complete [post]
func (h *MaintenanceHandler) CompleteRequest(c *gin.Context) {
	var req service.CompleteMaintenanceRequest
	if !bindJSON(c, h.log, &req) {
		return
	}
	request, err := h.maintenanceService.Complete(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	ok(c, request)
}

// CancelRequest handles POST /api/maintenance/:id/cancel
// @Summary      Cancel maintenance request
// @Tags         maintenance
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                            true   "Request ID"
// @Param        payload  body      service.CancelMaintenanceRequest  false  "Reason"
// @Success      200      {object}  response.Response{data=model.MaintenanceRequest}
// @Failure      409      {object}  response.Response
// @Router       /api/maintenance/{id}/cancel [post]
func (h *MaintenanceHandler) CancelRequest(c *gin.Context) {
	var req service.CancelMaintenanceRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, h.log, &req) {
		return
	}
	request, err := h.maintenanceService.Cancel(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	ok(c, request)
}
