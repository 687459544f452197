package handler

import (
	"printhub/internal/middleware"
	"printhub/internal/rbac"
	"printhub/internal/service"
	"printhub/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type StatisticsHandler struct {
	statisticsService service.StatisticsService
	authz             *middleware.Authorizer
	log               *zap.Logger
}

func NewStatisticsHandler(statisticsService service.StatisticsService, authz *middleware.Authorizer, log *zap.Logger) *StatisticsHandler {
	return &StatisticsHandler{statisticsService: statisticsService, authz: authz, log: log}
}

func (h *StatisticsHandler) RegisterRoutes(router *gin.RouterGroup) {
	statsGroup := router.Group("/api/statistics")
	{
		statsGroup.GET("", h.authz.Require(rbac.MaintenanceView), h.GetStatistics)
	}
}

// @Summary      Get Dashboard Statistics
// @Description  Printers by status, completed sales revenue, maintenance totals and the low-stock count
// @Tags         Statistics
// @Produce      json
// @Success      200 {object} response.Response{data=service.DashboardStatistics}
// @Failure      401 {object} response.Response
// @Failure      403 {object} response.Response
// @Security     BearerAuth
// @Router       /api/statistics [get]
func (h *StatisticsHandler) GetStatistics(c *gin.Context) {
	stats, err := h.statisticsService.GetStatistics(c.Request.Context())
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	ok(c, stats)
}
