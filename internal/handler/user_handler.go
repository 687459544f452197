package handler

import (
	"net/http"
	"time"

	"printhub/internal/middleware"
	"printhub/internal/rbac"
	"printhub/internal/service"
	"printhub/pkg/pagination"
	"printhub/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type UserHandler struct {
	userService    service.UserService
	printerService service.PrinterService
	authz          *middleware.Authorizer
	cookies        middleware.CookieSettings
	log            *zap.Logger
}

// NewUserHandler sets up the routing dependencies for auth and user endpoints
func NewUserHandler(
	userService service.UserService,
	printerService service.PrinterService,
	authz *middleware.Authorizer,
	cookies middleware.CookieSettings,
	log *zap.Logger,
) *UserHandler {
	return &UserHandler{
		userService:    userService,
		printerService: printerService,
		authz:          authz,
		cookies:        cookies,
		log:            log,
	}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/login", h.Login)
		authGroup.POST("/logout", h.Logout)
		authGroup.GET("/me", h.authz.Authenticate(), h.GetMe)
	}

	users := router.Group("/api/users")
	{
		users.POST("/ping", h.authz.Authenticate(), h.Ping)
		users.GET("/technicians", h.authz.Require(rbac.MaintenanceView), h.ListTechnicians)
		users.GET("", h.authz.Require(rbac.UsersView), h.ListUsers)
		users.GET("/:id", h.authz.Require(rbac.UsersView), h.GetUserByID)
		users.GET("/:id/permissions", h.authz.Require(rbac.UsersView), h.GetUserPermissions)
		users.GET("/:id/printers", h.authz.Require(rbac.PrintersView), h.GetUserPrinters)
		users.POST("", h.authz.Require(rbac.UsersCreate), h.CreateUser)
		users.PUT("/:id", h.authz.Require(rbac.UsersEdit), h.UpdateUser)
		users.DELETE("/:id", h.authz.Require(rbac.UsersDelete), h.DeleteUser)
	}
}

// Login handles POST /api/auth/login to authenticate and return a JWT token
// @Summary      Login user
// @Description  Authenticates a user by email and password, returning a JWT token and the caller's permissions
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.LoginUserRequest   true  "Login Credentials"
// @Success      200      {object}  response.Response{data=service.LoginResponse}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Router       /api/auth/login [post]
func (h *UserHandler) Login(c *gin.Context) {
	var req service.LoginUserRequest
	if !bindJSON(c, h.log, &req) {
		return
	}

	res, err := h.userService.Login(c.Request.Context(), req)
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}

	h.cookies.SetTokenCookie(c, res.Token, time.Until(res.ExpiresAt))
	ok(c, res)
}

// Logout handles POST /api/auth/logout to clear the auth cookie
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /api/auth/logout [post]
func (h *UserHandler) Logout(c *gin.Context) {
	h.cookies.ClearTokenCookie(c)
	ok(c, "Logged out")
}

// GetMe handles GET /api/auth/me to return the current user and permissions
// @Summary      Get current user
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.MeResponse}
// @Failure      401  {object}  response.Response
// @Router       /api/auth/me [get]
func (h *UserHandler) GetMe(c *gin.Context) {
	id := middleware.CurrentIdentity(c)
	me, err := h.userService.Me(c.Request.Context(), id.UserID)
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	ok(c, me)
}

// Ping handles POST /api/users/ping to stamp the caller's last activity
// @Summary      Heartbeat
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response
// @Router       /api/users/ping [post]
func (h *UserHandler) Ping(c *gin.Context) {
	id := middleware.CurrentIdentity(c)
	if err := h.userService.Ping(c.Request.Context(), id.UserID); err != nil {
		response.Abort(c, h.log, err)
		return
	}
	ok(c, gin.H{"pinged_at": time.Now().UTC()})
}

// CreateUser handles POST /api/users
// @Summary      Create a new user
// @Description  Creates a new user validating constraints and hashing password
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateUserRequest  true  "Create User Payload"
// @Success      201      {object}  response.Response{data=service.UserResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/users [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req service.CreateUserRequest
	if !bindJSON(c, h.log, &req) {
		return
	}

	user, err := h.userService.CreateUser(c.Request.Context(), req)
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	created(c, user)
}

// ListUsers handles GET /api/users
// @Summary      List users
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        search query     string false "Name or email contains"
// @Param        role   query     string false "Role name"
// @Param        page   query     int    false "Page number (default 1)"
// @Param        limit  query     int    false "Items per page (default 20)"
// @Success      200    {object}  response.Response{data=pagination.Page}
// @Router       /api/users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	p := pagination.Parse(c)
	users, total, err := h.userService.ListUsers(c.Request.Context(), service.UserListQuery{
		Search: c.Query("search"),
		Role:   c.Query("role"),
		Page:   p.Page,
		Limit:  p.Limit,
	})
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	ok(c, p.NewPage(users, total))
}

// ListTechnicians handles GET /api/users/technicians
// @Summary      List technicians
// @Description  Users who can be assigned to maintenance work
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.UserResponse}
// @Router       /api/users/technicians [get]
func (h *UserHandler) ListTechnicians(c *gin.Context) {
	users, err := h.userService.ListTechnicians(c.Request.Context())
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	ok(c, users)
}

// GetUserByID handles GET /api/users/:id
// @Summary      Get user by ID
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response{data=service.UserResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/users/{id} [get]
func (h *UserHandler) GetUserByID(c *gin.Context) {
	user, err := h.userService.GetUserByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	ok(c, user)
}

// GetUserPermissions handles GET /api/users/:id/permissions
// @Summary      Effective permissions of a user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response{data=[]string}
// @Failure      404  {object}  response.Response
// @Router       /api/users/{id}/permissions [get]
func (h *UserHandler) GetUserPermissions(c *gin.Context) {
	perms, err := h.userService.UserPermissions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	ok(c, perms)
}

// GetUserPrinters handles GET /api/users/:id/printers
// @Summary      Printers a client bought or rented
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Client ID"
// @Success      200  {object}  response.Response{data=[]model.Printer}
// @Router       /api/users/{id}/printers [get]
func (h *UserHandler) GetUserPrinters(c *gin.Context) {
	printers, err := h.printerService.ListForClient(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	ok(c, printers)
}

// UpdateUser handles PUT /api/users/:id
// @Summary      Update user
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                     true  "User ID"
// @Param        payload  body      service.UpdateUserRequest  true  "Update User Payload"
// @Success      200      {object}  response.Response{data=service.UserResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/users/{id} [put]
func (h *UserHandler) UpdateUser(c *gin.Context) {
	var req service.UpdateUserRequest
	if !bindJSON(c, h.log, &req) {
		return
	}

	user, err := h.userService.UpdateUser(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Abort(c, h.log, err)
		return
	}
	ok(c, user)
}

// DeleteUser handles DELETE /api/users/:id
// @Summary      Delete user
// @Description  Deletes the user together with their maintenance requests and sales
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/users/{id} [delete]
func (h *UserHandler) DeleteUser(c *gin.Context) {
	if err := h.userService.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
		response.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "User deleted successfully"))
}
