package handler

import (
	"fmt"
	"net/http"
	"time"

	"printhub/internal/apperr"
	"printhub/internal/export"
	"printhub/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Route is implemented by every handler that mounts endpoints
type Route interface {
	RegisterRoutes(router *gin.RouterGroup)
}

// bindJSON decodes the body and reports binding failures as InvalidInput
func bindJSON(c *gin.Context, log *zap.Logger, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Abort(c, log, apperr.InvalidInput("invalid request payload: %v", err))
		return false
	}
	return true
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, response.Success(http.StatusOK, data))
}

func created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, data))
}

// sendWorkbook streams an xlsx attachment named <prefix>_<date>.xlsx
func sendWorkbook(c *gin.Context, prefix string, data []byte) {
	filename := fmt.Sprintf("%s_%s.xlsx", prefix, time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, export.ContentTypeXLSX, data)
}
