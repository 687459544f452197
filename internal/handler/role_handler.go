package handler

import (
	"printhub/internal/middleware"
	"printhub/internal/rbac"
	"printhub/internal/service"
	"printhub/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RoleHandler struct {
	roleService service.RoleService
	authz       *middleware.Authorizer
	log         *zap.Logger
}

func NewRoleHandler(roleService service.RoleService, authz *middleware.Authorizer, log *zap.Logger) *RoleHandler {
	return &RoleHandler{roleService: roleService, authz: authz, log: log}
}

func (h *RoleHandler) RegisterRoutes(router *gin.RouterGroup) {
	roles := router.Group("/api/roles")
	{
		roles.GET("", h.authz.Require(rbac.RolesView), h.ListRoles)
		roles.GET("/:id", h.authz.Require(rbac.RolesView), h.GetRole)
		roles.POST("", h.authz.Require(rbac.RolesEdit), h.CreateRole)
		roles.DELETE("/:id", h.authz.Require(rbac.RolesEdit), h.DeleteRole)
		roles.PUT("/:id/permissions", h.authz.Require(rbac.RolesEdit), h.UpdateRolePermissions)
	}

	router.GET("/api/permissions", h.authz.Require(rbac.RolesView), h.ListPermissions)
}

// ListRoles returns all roles with their permissions
// @Summary      List roles
// @Tags         roles
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.RoleResponse}
// @Router       /api/roles [get]
func (h *RoleHandler) ListRoles(c *gin.Context) {
	roles, err := h.roleService.ListRoles(c.Request.Context())
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	ok(c, roles)
}

// GetRole returns a single role by ID
// @Summary      Get role
// @Tags         roles
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Role ID"
// @Success      200  {object}  response.Response{data=service.RoleResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/roles/{id} [get]
func (h *RoleHandler) GetRole(c *gin.Context) {
	role, err := h.roleService.GetRole(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	ok(c, role)
}

// CreateRole creates a new custom role
// @Summary      Create role
// @Tags         roles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateRoleRequest  true  "Role"
// @Success      201      {object}  response.Response{data=service.RoleResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/roles [post]
func (h *RoleHandler) CreateRole(c *gin.Context) {
	var req service.CreateRoleRequest
	if !bindJSON(c, h.log, &req) {
		return
	}

	role, err := h.roleService.CreateRole(c.Request.Context(), req)
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	created(c, role)
}

// DeleteRole deletes a non-system role that no user holds
// @Summary      Delete role
// @Tags         roles
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Role ID"
// @Success      200  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/roles/{id} [delete]
func (h *RoleHandler) DeleteRole(c *gin.Context) {
	if err := h.roleService.DeleteRole(c.Request.Context(), c.Param("id")); err != nil {
		response.Abort(c, h.log, err)
		return
	}
	ok(c, gin.H{"message": "Role deleted successfully"})
}

// ListPermissions returns the permission catalog grouped by resource
// @Summary      List permissions
// @Tags         roles
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.PermissionGroup}
// @Router       /api/permissions [get]
func (h *RoleHandler) ListPermissions(c *gin.Context) {
	perms, err := h.roleService.ListPermissions(c.Request.Context())
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	ok(c, perms)
}

// UpdateRolePermissions replaces all permissions for a role.
// The next request by any holder of the role sees the new grants.
// @Summary      Replace role permissions
// @Tags         roles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                                true  "Role ID"
// @Param        payload  body      service.UpdateRolePermissionsRequest  true  "Permission codes"
// @Success      200      {object}  response.Response{data=service.RoleResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/roles/{id}/permissions [put]
func (h *RoleHandler) UpdateRolePermissions(c *gin.Context) {
	var req service.UpdateRolePermissionsRequest
	if !bindJSON(c, h.log, &req) {
		return
	}

	role, err := h.roleService.UpdateRolePermissions(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	ok(c, role)
}
