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

type AuditHandler struct {
	auditService service.AuditService
	authz        *middleware.Authorizer
	log          *zap.Logger
}

func NewAuditHandler(auditService service.AuditService, authz *middleware.Authorizer, log *zap.Logger) *AuditHandler {
	return &AuditHandler{auditService: auditService, authz: authz, log: log}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/audit-logs")
	group.Use(h.authz.Require(rbac.AuditView))
	{
		group.GET("", h.GetAuditLogs)
	}
}

// GetAuditLogs retrieves paginated records with the acting user preloaded
// @Summary      Get audit logs
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        action query     string false "Exact action filter, e.g. COMPLETE_MAINTENANCE"
// @Param        page   query     int    false "Page number (default 1)"
// @Param        limit  query     int    false "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=pagination.Page}
// @Router       /api/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	p := pagination.Parse(c)

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), p.Page, p.Limit, c.Query("action"))
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	ok(c, p.NewPage(logs, total))
}
